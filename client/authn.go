package client

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"net/url"
	"time"

	"golang.org/x/oauth2"
	jose "gopkg.in/square/go-jose.v2"
	"gopkg.in/square/go-jose.v2/jwt"

	"github.com/jinnatar/idpy-oidc/keyjar"
	"github.com/jinnatar/idpy-oidc/message"
)

// Identifiers for the built-in client authentication methods.
const (
	AuthnClientSecretBasic = "client_secret_basic"
	AuthnClientSecretPost  = "client_secret_post"
	AuthnBearerHeader      = "bearer_header"
	AuthnPrivateKeyJWT     = "private_key_jwt"
)

const clientAssertionTypeJWT = "urn:ietf:params:oauth:client-assertion-type:jwt-bearer"

// HTTPArgs is the HTTP-level material an authentication strategy
// produces or augments.
type HTTPArgs struct {
	Headers map[string]string
}

// SetHeader stores a header, allocating the map on first use.
func (h *HTTPArgs) SetHeader(name, value string) {
	if h.Headers == nil {
		h.Headers = map[string]string{}
	}
	h.Headers[name] = value
}

// AuthnStrategy stamps a request with one client authentication
// mechanism. Construct may mutate the message in place (e.g. injecting
// a secret or assertion) and/or augment the HTTP args (e.g. an
// Authorization header).
type AuthnStrategy interface {
	Construct(msg *message.Message, s *Service, httpArgs *HTTPArgs) (*HTTPArgs, error)
}

// authnStrategy resolves a method identifier: the service-local
// registry first, then the entity-wide one.
func (s *Service) authnStrategy(method string) (AuthnStrategy, error) {
	if strat, ok := s.authnMethods[method]; ok {
		return strat, nil
	}
	if strat, ok := s.ctx.AuthnMethods[method]; ok {
		return strat, nil
	}
	s.log.Errorf("unknown client authentication method: %s", method)
	return nil, &UnsupportedAuthnMethodError{Method: method}
}

// initAuthentication runs the resolved strategy. An empty method is a
// pass-through.
func (s *Service) initAuthentication(msg *message.Message, method string, httpArgs *HTTPArgs) (*HTTPArgs, error) {
	if httpArgs == nil {
		httpArgs = &HTTPArgs{}
	}
	if method == "" {
		return httpArgs, nil
	}

	s.log.Debugf("client authn method: %s", method)
	strat, err := s.authnStrategy(method)
	if err != nil {
		return nil, err
	}
	return strat.Construct(msg, s, httpArgs)
}

var _ AuthnStrategy = (*ClientSecretBasic)(nil)

// ClientSecretBasic authenticates with the client id and secret in an
// HTTP basic Authorization header.
//
// https://tools.ietf.org/html/rfc6749#section-2.3.1
type ClientSecretBasic struct{}

func (ClientSecretBasic) Construct(_ *message.Message, s *Service, httpArgs *HTTPArgs) (*HTTPArgs, error) {
	if s.ctx.ClientSecret == "" {
		return nil, fmt.Errorf("client_secret_basic: no client secret configured")
	}
	cred := url.QueryEscape(s.ctx.ClientID) + ":" + url.QueryEscape(s.ctx.ClientSecret)
	httpArgs.SetHeader("Authorization", "Basic "+base64.StdEncoding.EncodeToString([]byte(cred)))
	return httpArgs, nil
}

var _ AuthnStrategy = (*ClientSecretPost)(nil)

// ClientSecretPost injects the client id and secret into the request
// message body.
type ClientSecretPost struct{}

func (ClientSecretPost) Construct(msg *message.Message, s *Service, httpArgs *HTTPArgs) (*HTTPArgs, error) {
	if s.ctx.ClientSecret == "" {
		return nil, fmt.Errorf("client_secret_post: no client secret configured")
	}
	if err := msg.Set("client_id", s.ctx.ClientID); err != nil {
		return nil, err
	}
	if err := msg.Set("client_secret", s.ctx.ClientSecret); err != nil {
		return nil, err
	}
	return httpArgs, nil
}

var _ AuthnStrategy = (*BearerHeader)(nil)

// BearerHeader authorizes with a bearer token: an access_token field
// on the message wins (and is moved out of the body into the header),
// otherwise the configured TokenSource is asked for one.
type BearerHeader struct {
	// TokenSource supplies tokens when the message does not carry one.
	TokenSource oauth2.TokenSource
}

func (b BearerHeader) Construct(msg *message.Message, _ *Service, httpArgs *HTTPArgs) (*HTTPArgs, error) {
	tok := msg.GetString("access_token")
	if tok != "" {
		msg.Delete("access_token")
	} else {
		if b.TokenSource == nil {
			return nil, fmt.Errorf("bearer_header: no access token on request and no token source")
		}
		t, err := b.TokenSource.Token()
		if err != nil {
			return nil, fmt.Errorf("bearer_header: fetching token: %v", err)
		}
		tok = t.AccessToken
	}

	httpArgs.SetHeader("Authorization", "Bearer "+tok)
	return httpArgs, nil
}

var _ AuthnStrategy = (*PrivateKeyJWT)(nil)

// PrivateKeyJWT authenticates with a signed client assertion placed in
// the request body.
//
// https://tools.ietf.org/html/rfc7523#section-2.2
type PrivateKeyJWT struct {
	// Alg defaults to RS256.
	Alg jose.SignatureAlgorithm
	// Lifetime bounds the assertion's exp claim. Defaults to 10
	// minutes.
	Lifetime time.Duration
	// Clock returns the current time. time.Now when nil.
	Clock func() time.Time
}

func (p PrivateKeyJWT) Construct(msg *message.Message, s *Service, httpArgs *HTTPArgs) (*HTTPArgs, error) {
	keys := s.ctx.KeyJar.SigningKeys(s.ctx.ClientID)
	if len(keys) == 0 {
		return nil, &keyjar.KeyNotFoundError{Owner: s.ctx.ClientID}
	}
	key := keys[0]

	alg := p.Alg
	if alg == "" {
		alg = jose.RS256
	}
	lifetime := p.Lifetime
	if lifetime == 0 {
		lifetime = 10 * time.Minute
	}
	clock := p.Clock
	if clock == nil {
		clock = time.Now
	}

	aud, err := s.Endpoint()
	if err != nil {
		return nil, fmt.Errorf("private_key_jwt: resolving audience: %v", err)
	}

	signer, err := jose.NewSigner(jose.SigningKey{Algorithm: alg, Key: key.Key}, &jose.SignerOptions{
		ExtraHeaders: map[jose.HeaderKey]interface{}{"kid": key.KeyID},
	})
	if err != nil {
		return nil, fmt.Errorf("private_key_jwt: creating signer: %v", err)
	}

	now := clock()
	assertion, err := jwt.Signed(signer).Claims(jwt.Claims{
		Issuer:   s.ctx.ClientID,
		Subject:  s.ctx.ClientID,
		Audience: jwt.Audience{aud},
		IssuedAt: jwt.NewNumericDate(now),
		Expiry:   jwt.NewNumericDate(now.Add(lifetime)),
		ID:       randomJTI(),
	}).CompactSerialize()
	if err != nil {
		return nil, fmt.Errorf("private_key_jwt: signing assertion: %v", err)
	}

	if err := msg.Set("client_assertion_type", clientAssertionTypeJWT); err != nil {
		return nil, err
	}
	if err := msg.Set("client_assertion", assertion); err != nil {
		return nil, err
	}
	return httpArgs, nil
}

func randomJTI() string {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		// crypto/rand failing is unrecoverable
		panic(err)
	}
	return hex.EncodeToString(b)
}
