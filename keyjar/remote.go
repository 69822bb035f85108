package keyjar

import (
	"context"

	jose "gopkg.in/square/go-jose.v2"

	"github.com/jinnatar/idpy-oidc/discovery"
)

var _ KeyJar = (*Remote)(nil)

// Remote serves the issuer's verification keys from a discovery
// client's JWKS cache, while delegating the client's own private keys
// to a local jar. Callers refresh the cache out of band via
// Refresh; lookups themselves never touch the network.
type Remote struct {
	issuer string
	dc     *discovery.Client

	// Local holds the client's own signing/decryption keys. May be nil
	// if the client has none.
	Local *Static
}

// NewRemote performs the initial JWKS fetch for the discovered issuer.
func NewRemote(ctx context.Context, dc *discovery.Client, local *Static) (*Remote, error) {
	r := &Remote{
		issuer: dc.Metadata().Issuer,
		dc:     dc,
		Local:  local,
	}
	if err := dc.Refresh(ctx); err != nil {
		return nil, err
	}
	return r, nil
}

// Refresh re-fetches the issuer's key set.
func (r *Remote) Refresh(ctx context.Context) error {
	return r.dc.Refresh(ctx)
}

func (r *Remote) VerificationKeys(owner string) []jose.JSONWebKey {
	if owner == r.issuer {
		return r.dc.CachedKeys()
	}
	if r.Local != nil {
		return r.Local.VerificationKeys(owner)
	}
	return nil
}

func (r *Remote) DecryptionKeys(owner string) []jose.JSONWebKey {
	if r.Local != nil {
		return r.Local.DecryptionKeys(owner)
	}
	return nil
}

func (r *Remote) SigningKeys(owner string) []jose.JSONWebKey {
	if r.Local != nil {
		return r.Local.SigningKeys(owner)
	}
	return nil
}

func (r *Remote) HasOwner(owner string) bool {
	if owner == r.issuer {
		return len(r.dc.CachedKeys()) > 0
	}
	return r.Local != nil && r.Local.HasOwner(owner)
}
