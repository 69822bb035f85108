// Package client implements the generic request/response engine an
// OAuth2/OIDC client drives its protocol operations through: building
// and authenticating outbound protocol messages, serializing them into
// transport-agnostic HTTP request descriptions, and decoding and
// verifying responses across their possible wire encodings.
package client

import (
	"github.com/jinnatar/idpy-oidc/discovery"
	"github.com/jinnatar/idpy-oidc/keyjar"
)

// Context is the client-wide state shared by every service of one
// client entity: the issuer it talks to, its own identity and keys,
// provider metadata, and the parameter values negotiated with or
// registered at the provider.
//
// A Context is owned by the enclosing client entity and borrowed by
// each service. It is not safe for concurrent use; callers serialize
// access per client entity.
type Context struct {
	// Issuer is the identity of the provider, used to anchor response
	// verification.
	Issuer string
	// ClientID is this client's registered identifier.
	ClientID string
	// ClientSecret is the shared secret used by the secret-based
	// authentication methods.
	ClientSecret string
	// Provider holds the provider's endpoint metadata, normally
	// populated from discovery.
	Provider *discovery.ProviderMetadata
	// KeyJar resolves verification, decryption and signing keys.
	KeyJar keyjar.KeyJar
	// AuthnMethods is the entity-wide authentication method registry,
	// shared across services. Service-local registrations shadow it.
	AuthnMethods map[string]AuthnStrategy

	negotiated   map[string]interface{}
	preferred    map[string]interface{}
	registered   map[string]interface{}
	callbackURIs map[string][]string
}

// NewContext initializes a Context for the given issuer and client.
func NewContext(issuer, clientID string) *Context {
	return &Context{
		Issuer:       issuer,
		ClientID:     clientID,
		Provider:     &discovery.ProviderMetadata{Issuer: issuer},
		AuthnMethods: map[string]AuthnStrategy{},
		negotiated:   map[string]interface{}{},
		preferred:    map[string]interface{}{},
		registered:   map[string]interface{}{},
		callbackURIs: map[string][]string{},
	}
}

// SetNegotiated records a parameter value agreed with the provider.
func (c *Context) SetNegotiated(name string, value interface{}) {
	c.negotiated[name] = value
}

// SetPreferred records a parameter value this client prefers.
func (c *Context) SetPreferred(name string, value interface{}) {
	c.preferred[name] = value
}

// SetRegistered records a parameter value registered at the provider.
func (c *Context) SetRegistered(name string, value interface{}) {
	c.registered[name] = value
}

// Usage returns the parameter values requests should draw from: the
// negotiated set when any exists, otherwise the preferred set with
// registered values taking precedence per key.
func (c *Context) Usage() map[string]interface{} {
	if len(c.negotiated) > 0 {
		out := make(map[string]interface{}, len(c.negotiated))
		for k, v := range c.negotiated {
			out[k] = v
		}
		return out
	}

	out := make(map[string]interface{}, len(c.preferred))
	for k, v := range c.preferred {
		if rv, ok := c.registered[k]; ok {
			out[k] = rv
		} else {
			out[k] = v
		}
	}
	return out
}

// Endpoint returns the provider endpoint registered under the given
// name, or "" when unknown.
func (c *Context) Endpoint(name string) string {
	if c.Provider == nil {
		return ""
	}
	return c.Provider.Endpoint(name)
}

// RegisterCallbackURIs merges the given callback URIs into the shared
// set, skipping values already present under their target.
func (c *Context) RegisterCallbackURIs(uris map[string][]string) {
	for target, vv := range uris {
		for _, uri := range vv {
			if !containsString(c.callbackURIs[target], uri) {
				c.callbackURIs[target] = append(c.callbackURIs[target], uri)
			}
		}
	}
}

// CallbackURIs returns a copy of the registered callback URIs.
func (c *Context) CallbackURIs() map[string][]string {
	out := make(map[string][]string, len(c.callbackURIs))
	for target, vv := range c.callbackURIs {
		out[target] = append([]string(nil), vv...)
	}
	return out
}

func containsString(set []string, v string) bool {
	for _, s := range set {
		if s == v {
			return true
		}
	}
	return false
}
