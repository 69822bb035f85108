// Package discovery fetches OIDC provider metadata and the issuer's
// signing keys from the well-known configuration document.
package discovery

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"

	jose "gopkg.in/square/go-jose.v2"
)

const oidcwk = "/.well-known/openid-configuration"

// Client fetches the provider metadata for a given issuer, and can
// return the issuer's public signing keys on demand.
//
// It should be created via NewClient to ensure it is initialized
// correctly.
type Client struct {
	md *ProviderMetadata

	hc *http.Client

	jwks   jose.JSONWebKeySet
	jwksMu sync.Mutex
}

// ClientOpt is an option that can configure a client
type ClientOpt func(c *Client)

// WithHTTPClient will set a http.Client for the initial discovery, and
// key fetching. If not set, http.DefaultClient will be used.
func WithHTTPClient(hc *http.Client) ClientOpt {
	return func(c *Client) {
		c.hc = hc
	}
}

// NewClient will initialize a Client, performing the initial discovery.
func NewClient(ctx context.Context, issuer string, opts ...ClientOpt) (*Client, error) {
	c := &Client{
		md: &ProviderMetadata{},
		hc: http.DefaultClient,
	}

	for _, o := range opts {
		o(c)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, issuer+oidcwk, nil)
	if err != nil {
		return nil, fmt.Errorf("building request for %s: %v", issuer+oidcwk, err)
	}
	mdr, err := c.hc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("error fetching %s: %v", issuer+oidcwk, err)
	}
	err = json.NewDecoder(mdr.Body).Decode(c.md)
	_ = mdr.Body.Close()
	if err != nil {
		return nil, fmt.Errorf("error decoding provider metadata response: %v", err)
	}

	return c, nil
}

// Metadata returns the ProviderMetadata that was retrieved when the
// client was instantiated
func (c *Client) Metadata() *ProviderMetadata {
	return c.md
}

// PublicKeys will fetch and return the JWKS endpoint for this metadata.
// Each call performs a new HTTP request to the endpoint.
func (c *Client) PublicKeys(ctx context.Context) ([]jose.JSONWebKey, error) {
	if c.md.JWKSURI == "" {
		return nil, fmt.Errorf("metadata has no JWKS endpoint, cannot fetch keys")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.md.JWKSURI, nil)
	if err != nil {
		return nil, fmt.Errorf("building request for %s: %v", c.md.JWKSURI, err)
	}
	res, err := c.hc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to get keys from %s: %v", c.md.JWKSURI, err)
	}

	ks := &jose.JSONWebKeySet{}
	err = json.NewDecoder(res.Body).Decode(ks)
	_ = res.Body.Close()
	if err != nil {
		return nil, fmt.Errorf("failed decoding JWKS response: %v", err)
	}

	return ks.Keys, nil
}

// CachedKeys returns the most recently fetched key set without any
// network access.
func (c *Client) CachedKeys() []jose.JSONWebKey {
	c.jwksMu.Lock()
	defer c.jwksMu.Unlock()
	return append([]jose.JSONWebKey(nil), c.jwks.Keys...)
}

// Refresh re-fetches the key set from the JWKS endpoint and replaces
// the cached copy.
func (c *Client) Refresh(ctx context.Context) error {
	keys, err := c.PublicKeys(ctx)
	if err != nil {
		return err
	}

	c.jwksMu.Lock()
	defer c.jwksMu.Unlock()
	c.jwks = jose.JSONWebKeySet{Keys: keys}
	return nil
}
