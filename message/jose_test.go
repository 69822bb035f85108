package message

import (
	"crypto/rand"
	"crypto/rsa"
	"encoding/json"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	jose "gopkg.in/square/go-jose.v2"

	"github.com/jinnatar/idpy-oidc/keyjar"
)

func encryptedToken(t *testing.T, key *rsa.PrivateKey, payload []byte) string {
	t.Helper()

	enc, err := jose.NewEncrypter(jose.A128GCM, jose.Recipient{Algorithm: jose.RSA_OAEP, Key: &key.PublicKey}, nil)
	if err != nil {
		t.Fatalf("creating encrypter: %v", err)
	}
	jwe, err := enc.Encrypt(payload)
	if err != nil {
		t.Fatalf("encrypting: %v", err)
	}
	raw, err := jwe.CompactSerialize()
	if err != nil {
		t.Fatalf("serializing: %v", err)
	}
	return raw
}

func TestClassify(t *testing.T) {
	key, signed := signedIDToken(t, map[string]interface{}{"sub": "x"})
	encrypted := encryptedToken(t, key, []byte(`{"sub":"x"}`))

	for _, tc := range []struct {
		Name string
		Raw  string
		Want TokenClass
	}{
		{Name: "Signed", Raw: signed, Want: TokenSigned},
		{Name: "Encrypted", Raw: encrypted, Want: TokenEncrypted},
		{Name: "Plain JSON", Raw: `{"sub":"x"}`, Want: TokenNeither},
		{Name: "Garbage", Raw: "not-a-token", Want: TokenNeither},
		{Name: "Empty", Raw: "", Want: TokenNeither},
	} {
		t.Run(tc.Name, func(t *testing.T) {
			if got := Classify(tc.Raw); got != tc.Want {
				t.Errorf("Classify() = %v, want %v", got, tc.Want)
			}
		})
	}
}

func TestUnpackJWS(t *testing.T) {
	key, raw := signedIDToken(t, map[string]interface{}{"sub": "user-1"})
	pub := jose.JSONWebKey{Key: key.Public(), KeyID: "sig-1", Algorithm: "RS256", Use: "sig"}

	otherKey, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generating key: %v", err)
	}
	wrongPub := jose.JSONWebKey{Key: otherKey.Public(), KeyID: "sig-1", Algorithm: "RS256", Use: "sig"}

	for _, tc := range []struct {
		Name        string
		Keys        []jose.JSONWebKey
		AllowedAlgs []string
		WantErr     bool
		WantKNF     bool
	}{
		{Name: "Valid", Keys: []jose.JSONWebKey{pub}},
		{Name: "Valid among others", Keys: []jose.JSONWebKey{{Key: otherKey.Public(), KeyID: "old"}, pub}},
		{Name: "Restricted alg accepted", Keys: []jose.JSONWebKey{pub}, AllowedAlgs: []string{"RS256"}},
		{Name: "Restricted alg rejected", Keys: []jose.JSONWebKey{pub}, AllowedAlgs: []string{"ES256"}, WantErr: true},
		{Name: "No keys at all", Keys: nil, WantErr: true, WantKNF: true},
		{Name: "No kid match", Keys: []jose.JSONWebKey{{Key: otherKey.Public(), KeyID: "other"}}, WantErr: true, WantKNF: true},
		{Name: "Kid matches but signature fails", Keys: []jose.JSONWebKey{wrongPub}, WantErr: true},
	} {
		t.Run(tc.Name, func(t *testing.T) {
			payload, err := UnpackJWS(raw, "https://issuer.example.com", tc.Keys, tc.AllowedAlgs)
			if tc.WantErr {
				if err == nil {
					t.Fatal("want error, got none")
				}
				var knf *keyjar.KeyNotFoundError
				if got := errors.As(err, &knf); got != tc.WantKNF {
					t.Errorf("KeyNotFoundError = %v, want %v (err: %v)", got, tc.WantKNF, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			var claims map[string]interface{}
			if err := json.Unmarshal(payload, &claims); err != nil {
				t.Fatalf("unmarshaling payload: %v", err)
			}
			if diff := cmp.Diff(map[string]interface{}{"sub": "user-1"}, claims); diff != "" {
				t.Errorf("claims mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestDecryptJWE(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generating key: %v", err)
	}
	raw := encryptedToken(t, key, []byte(`{"sub":"user-1"}`))

	payload, err := DecryptJWE(raw, "test-client", []jose.JSONWebKey{{Key: key, KeyID: "enc-1", Use: "enc"}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(payload) != `{"sub":"user-1"}` {
		t.Errorf("payload = %s", payload)
	}

	if _, err := DecryptJWE(raw, "test-client", nil); err == nil {
		t.Error("want error with no keys")
	} else {
		var knf *keyjar.KeyNotFoundError
		if !errors.As(err, &knf) {
			t.Errorf("want KeyNotFoundError, got %T", err)
		}
	}
}
