package message

import (
	"errors"
	"fmt"

	jose "gopkg.in/square/go-jose.v2"

	"github.com/jinnatar/idpy-oidc/keyjar"
)

// TokenClass is the result of classifying an ambiguous compact token.
type TokenClass int

const (
	// TokenNeither means the payload has neither JWS nor JWE structure.
	TokenNeither TokenClass = iota
	// TokenSigned means the payload parses as a compact JWS.
	TokenSigned
	// TokenEncrypted means the payload parses as a compact JWE.
	TokenEncrypted
)

// Classify probes a payload for JWS structure first, then JWE. The
// probe order is a deterministic tie-break for malformed input, not a
// structural requirement.
func Classify(raw string) TokenClass {
	if _, err := jose.ParseSigned(raw); err == nil {
		return TokenSigned
	}
	if _, err := jose.ParseEncrypted(raw); err == nil {
		return TokenEncrypted
	}
	return TokenNeither
}

// UnpackJWS verifies the signature on a compact JWS using the owner's
// verification keys and returns the payload. Keys are matched on key
// ID when the token carries one. If allowedAlgs is non-empty the
// signing algorithm must be one of them.
//
// A keyjar.KeyNotFoundError is returned when no candidate key exists;
// any other failure means a key was found but the signature did not
// check out.
func UnpackJWS(raw, owner string, keys []jose.JSONWebKey, allowedAlgs []string) ([]byte, error) {
	jws, err := jose.ParseSigned(raw)
	if err != nil {
		return nil, fmt.Errorf("parsing signed token: %v", err)
	}

	kid := ""
	alg := ""
	for _, sig := range jws.Signatures {
		kid = sig.Header.KeyID
		alg = sig.Header.Algorithm
		break
	}

	if len(allowedAlgs) > 0 && !contains(allowedAlgs, alg) {
		return nil, fmt.Errorf("signing alg %q not in allowed set %v", alg, allowedAlgs)
	}

	candidates := 0
	for _, key := range keys {
		if kid != "" && key.KeyID != "" && key.KeyID != kid {
			continue
		}
		candidates++
		if payload, err := jws.Verify(key); err == nil {
			return payload, nil
		}
	}

	if candidates == 0 {
		return nil, &keyjar.KeyNotFoundError{Owner: owner, KID: kid}
	}
	return nil, errors.New("failed to verify token signature")
}

// DecryptJWE decrypts a compact JWE with the given private keys,
// returning the plaintext.
func DecryptJWE(raw, owner string, keys []jose.JSONWebKey) ([]byte, error) {
	jwe, err := jose.ParseEncrypted(raw)
	if err != nil {
		return nil, fmt.Errorf("parsing encrypted token: %v", err)
	}

	if len(keys) == 0 {
		return nil, &keyjar.KeyNotFoundError{Owner: owner}
	}

	for _, key := range keys {
		if payload, err := jwe.Decrypt(key.Key); err == nil {
			return payload, nil
		}
	}
	return nil, errors.New("failed to decrypt token")
}

func contains(set []string, v string) bool {
	for _, s := range set {
		if s == v {
			return true
		}
	}
	return false
}
