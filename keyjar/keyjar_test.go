package keyjar

import (
	"crypto/rand"
	"crypto/rsa"
	"testing"

	jose "gopkg.in/square/go-jose.v2"
)

func TestStatic(t *testing.T) {
	issuerKey, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generating key: %v", err)
	}
	clientKey, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generating key: %v", err)
	}

	jar := NewStatic()
	jar.Add("https://issuer.example.com", jose.JSONWebKey{Key: issuerKey, KeyID: "sig-1", Use: "sig"})
	jar.Add("test-client",
		jose.JSONWebKey{Key: clientKey, KeyID: "client-sig", Use: "sig"},
		jose.JSONWebKey{Key: clientKey, KeyID: "client-enc", Use: "enc"},
	)

	if !jar.HasOwner("https://issuer.example.com") {
		t.Error("issuer not known")
	}
	if jar.HasOwner("https://unknown.example.com") {
		t.Error("unknown owner reported as known")
	}

	vk := jar.VerificationKeys("https://issuer.example.com")
	if len(vk) != 1 {
		t.Fatalf("got %d verification keys, want 1", len(vk))
	}
	if !vk[0].IsPublic() {
		t.Error("verification key not converted to its public form")
	}

	sk := jar.SigningKeys("test-client")
	if len(sk) != 1 || sk[0].KeyID != "client-sig" {
		t.Errorf("signing keys = %v, want client-sig only", keyIDs(sk))
	}
	if sk[0].IsPublic() {
		t.Error("signing key must stay private")
	}

	dk := jar.DecryptionKeys("test-client")
	if len(dk) != 1 || dk[0].KeyID != "client-enc" {
		t.Errorf("decryption keys = %v, want client-enc only", keyIDs(dk))
	}

	if got := jar.VerificationKeys("https://unknown.example.com"); len(got) != 0 {
		t.Errorf("unknown owner yielded %d keys", len(got))
	}
}

func keyIDs(keys []jose.JSONWebKey) []string {
	ids := make([]string, len(keys))
	for i, k := range keys {
		ids[i] = k.KeyID
	}
	return ids
}
