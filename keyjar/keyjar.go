// Package keyjar resolves the JSON web keys used to verify, decrypt
// and sign protocol messages, indexed by the party that owns them.
package keyjar

import (
	"fmt"

	jose "gopkg.in/square/go-jose.v2"
)

// KeyJar is the key source consulted during response verification and
// request signing. Owners are issuer URLs for remote parties, or the
// client's own identifier for its private keys.
type KeyJar interface {
	// VerificationKeys returns the public keys usable to check
	// signatures produced by the given owner.
	VerificationKeys(owner string) []jose.JSONWebKey
	// DecryptionKeys returns the private keys usable to decrypt
	// material addressed to the given owner.
	DecryptionKeys(owner string) []jose.JSONWebKey
	// SigningKeys returns the private keys the given owner signs with.
	SigningKeys(owner string) []jose.JSONWebKey
	// HasOwner reports whether any keys are held for the owner at all.
	HasOwner(owner string) bool
}

// KeyNotFoundError indicates that no key applicable to the operation
// could be located for the owner.
type KeyNotFoundError struct {
	Owner string
	KID   string
}

func (k *KeyNotFoundError) Error() string {
	if k.KID != "" {
		return fmt.Sprintf("no key %q found for %q", k.KID, k.Owner)
	}
	return fmt.Sprintf("no keys found for %q", k.Owner)
}

var _ KeyJar = (*Static)(nil)

// Static is an in-memory KeyJar populated at bootstrap.
type Static struct {
	keys map[string]jose.JSONWebKeySet
}

func NewStatic() *Static {
	return &Static{keys: map[string]jose.JSONWebKeySet{}}
}

// Add appends keys for the given owner.
func (s *Static) Add(owner string, keys ...jose.JSONWebKey) {
	ks := s.keys[owner]
	ks.Keys = append(ks.Keys, keys...)
	s.keys[owner] = ks
}

func (s *Static) VerificationKeys(owner string) []jose.JSONWebKey {
	return s.use(owner, "sig", true)
}

func (s *Static) DecryptionKeys(owner string) []jose.JSONWebKey {
	return s.use(owner, "enc", false)
}

func (s *Static) SigningKeys(owner string) []jose.JSONWebKey {
	return s.use(owner, "sig", false)
}

func (s *Static) HasOwner(owner string) bool {
	return len(s.keys[owner].Keys) > 0
}

func (s *Static) use(owner, use string, public bool) []jose.JSONWebKey {
	var out []jose.JSONWebKey
	for _, k := range s.keys[owner].Keys {
		if k.Use != "" && k.Use != use {
			continue
		}
		if public && !k.IsPublic() {
			k = k.Public()
		}
		out = append(out, k)
	}
	return out
}
