package discovery

// ProviderMetadata is the subset of the OIDC provider configuration
// this client consumes: the issuer identity, the endpoint URLs requests
// are sent to, and the JWKS location verification keys are fetched
// from.
//
// https://openid.net/specs/openid-connect-discovery-1_0.html#ProviderMetadata
type ProviderMetadata struct {
	// Issuer is the URL the OP asserts as its Issuer Identifier. It
	// must be identical to the iss claim in tokens issued from this
	// issuer.
	Issuer string `json:"issuer,omitempty"`
	// AuthorizationEndpoint is the OP's OAuth 2.0 authorization
	// endpoint.
	AuthorizationEndpoint string `json:"authorization_endpoint,omitempty"`
	// TokenEndpoint is the OP's OAuth 2.0 token endpoint. Required
	// unless only the implicit flow is used.
	TokenEndpoint string `json:"token_endpoint,omitempty"`
	// UserinfoEndpoint is the OP's userinfo endpoint.
	UserinfoEndpoint string `json:"userinfo_endpoint,omitempty"`
	// JWKSURI locates the OP's JSON Web Key Set, containing the signing
	// keys the RP uses to validate signatures from the OP.
	JWKSURI string `json:"jwks_uri,omitempty"`
	// RegistrationEndpoint is the OP's dynamic client registration
	// endpoint.
	RegistrationEndpoint string `json:"registration_endpoint,omitempty"`
	// RevocationEndpoint is the OP's OAuth 2.0 token revocation
	// endpoint.
	RevocationEndpoint string `json:"revocation_endpoint,omitempty"`
	// IntrospectionEndpoint is the OP's OAuth 2.0 token introspection
	// endpoint.
	IntrospectionEndpoint string `json:"introspection_endpoint,omitempty"`
	// EndSessionEndpoint is the OP's RP-initiated logout endpoint.
	EndSessionEndpoint string `json:"end_session_endpoint,omitempty"`

	ScopesSupported                   []string `json:"scopes_supported,omitempty"`
	ResponseTypesSupported            []string `json:"response_types_supported,omitempty"`
	GrantTypesSupported               []string `json:"grant_types_supported,omitempty"`
	TokenEndpointAuthMethodsSupported []string `json:"token_endpoint_auth_methods_supported,omitempty"`
	IDTokenSigningAlgValuesSupported  []string `json:"id_token_signing_alg_values_supported,omitempty"`
}

// Endpoint returns the URL registered under the given endpoint name,
// e.g. "token_endpoint". An unknown or unset name returns "".
func (p *ProviderMetadata) Endpoint(name string) string {
	switch name {
	case "authorization_endpoint":
		return p.AuthorizationEndpoint
	case "token_endpoint":
		return p.TokenEndpoint
	case "userinfo_endpoint":
		return p.UserinfoEndpoint
	case "jwks_uri":
		return p.JWKSURI
	case "registration_endpoint":
		return p.RegistrationEndpoint
	case "revocation_endpoint":
		return p.RevocationEndpoint
	case "introspection_endpoint":
		return p.IntrospectionEndpoint
	case "end_session_endpoint":
		return p.EndSessionEndpoint
	}
	return ""
}
