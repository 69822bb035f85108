package client

import (
	"crypto/rand"
	"crypto/rsa"
	"encoding/json"
	"testing"

	jose "gopkg.in/square/go-jose.v2"

	"github.com/jinnatar/idpy-oidc/discovery"
	"github.com/jinnatar/idpy-oidc/keyjar"
	"github.com/jinnatar/idpy-oidc/message"
)

const (
	testIssuer   = "https://op.example.com"
	testClientID = "test-client"
)

// testKeys carries the fixture keys: the issuer's signing key and the
// client's own signing/decryption key.
type testKeys struct {
	Issuer *rsa.PrivateKey
	Client *rsa.PrivateKey
}

func newTestContext(t *testing.T) (*Context, testKeys) {
	t.Helper()

	issuerKey, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generating issuer key: %v", err)
	}
	clientKey, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generating client key: %v", err)
	}

	jar := keyjar.NewStatic()
	jar.Add(testIssuer, jose.JSONWebKey{Key: issuerKey, KeyID: "op-sig", Algorithm: "RS256", Use: "sig"})
	jar.Add(testClientID,
		jose.JSONWebKey{Key: clientKey, KeyID: "rp-sig", Algorithm: "RS256", Use: "sig"},
		jose.JSONWebKey{Key: clientKey, KeyID: "rp-enc", Use: "enc"},
	)

	ctx := NewContext(testIssuer, testClientID)
	ctx.ClientSecret = "sssh"
	ctx.KeyJar = jar
	ctx.Provider = &discovery.ProviderMetadata{
		Issuer:                testIssuer,
		AuthorizationEndpoint: testIssuer + "/auth",
		TokenEndpoint:         testIssuer + "/token",
		UserinfoEndpoint:      testIssuer + "/userinfo",
	}

	return ctx, testKeys{Issuer: issuerKey, Client: clientKey}
}

// signResponse returns claims signed with the issuer's key as a
// compact JWS.
func signResponse(t *testing.T, key *rsa.PrivateKey, claims map[string]interface{}) string {
	t.Helper()

	signer, err := jose.NewSigner(jose.SigningKey{Algorithm: jose.RS256, Key: key}, &jose.SignerOptions{
		ExtraHeaders: map[jose.HeaderKey]interface{}{"kid": "op-sig"},
	})
	if err != nil {
		t.Fatalf("creating signer: %v", err)
	}

	payload, err := json.Marshal(claims)
	if err != nil {
		t.Fatalf("marshaling claims: %v", err)
	}
	jws, err := signer.Sign(payload)
	if err != nil {
		t.Fatalf("signing: %v", err)
	}
	raw, err := jws.CompactSerialize()
	if err != nil {
		t.Fatalf("serializing: %v", err)
	}
	return raw
}

// encryptResponse returns claims encrypted to the client's key as a
// compact JWE.
func encryptResponse(t *testing.T, key *rsa.PrivateKey, claims map[string]interface{}) string {
	t.Helper()

	enc, err := jose.NewEncrypter(jose.A128GCM, jose.Recipient{Algorithm: jose.RSA_OAEP, Key: &key.PublicKey}, nil)
	if err != nil {
		t.Fatalf("creating encrypter: %v", err)
	}
	payload, err := json.Marshal(claims)
	if err != nil {
		t.Fatalf("marshaling claims: %v", err)
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

func tokenRequestSchema() *message.Schema {
	return &message.Schema{
		Name: "TestTokenRequest",
		Params: []message.Param{
			{Name: "grant_type", Kind: message.String, Required: true},
			{Name: "code", Kind: message.String},
			{Name: "redirect_uri", Kind: message.String},
			{Name: "scope", Kind: message.Strings},
			{Name: "state", Kind: message.String},
			{Name: "client_id", Kind: message.String},
			{Name: "client_secret", Kind: message.String},
			{Name: "client_assertion", Kind: message.String},
			{Name: "client_assertion_type", Kind: message.String},
			{Name: "access_token", Kind: message.String},
		},
	}
}

func tokenResponseSchema() *message.Schema {
	return &message.Schema{
		Name: "TestTokenResponse",
		Params: []message.Param{
			{Name: "access_token", Kind: message.String, Required: true},
			{Name: "token_type", Kind: message.String},
			{Name: "expires_in", Kind: message.Int},
			{Name: "iss", Kind: message.String},
			{Name: "state", Kind: message.String},
		},
	}
}

func newTestService(t *testing.T, ctx *Context, mutate func(*Config)) *Service {
	t.Helper()

	cfg := Config{
		Name:         "accesstoken",
		EndpointName: "token_endpoint",
		HTTPMethod:   "POST",
		Request:      tokenRequestSchema(),
		Response:     tokenResponseSchema(),
	}
	if mutate != nil {
		mutate(&cfg)
	}

	svc, err := New(ctx, cfg)
	if err != nil {
		t.Fatalf("creating service: %v", err)
	}
	return svc
}
