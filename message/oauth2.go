package message

// Canned schemas for the standard OAuth2/OIDC message types. Services
// reference these as their request/response/error schemas; anything
// nonstandard can declare its own.

// AuthorizationRequestSchema declares the authorization endpoint
// request.
//
// https://tools.ietf.org/html/rfc6749#section-4.1.1
func AuthorizationRequestSchema() *Schema {
	return &Schema{
		Name: "AuthorizationRequest",
		Params: []Param{
			{Name: "response_type", Kind: String, Required: true},
			{Name: "client_id", Kind: String, Required: true},
			{Name: "redirect_uri", Kind: String},
			{Name: "scope", Kind: Strings},
			{Name: "state", Kind: String},
			{Name: "nonce", Kind: String},
			{Name: "acr_values", Kind: Strings},
			{Name: "prompt", Kind: Strings},
			{Name: "max_age", Kind: Int},
		},
	}
}

// TokenRequestSchema declares the token endpoint request.
//
// https://tools.ietf.org/html/rfc6749#section-4.1.3
func TokenRequestSchema() *Schema {
	return &Schema{
		Name: "AccessTokenRequest",
		Params: []Param{
			{Name: "grant_type", Kind: String, Required: true},
			{Name: "code", Kind: String},
			{Name: "redirect_uri", Kind: String},
			{Name: "client_id", Kind: String},
			{Name: "client_secret", Kind: String},
			{Name: "refresh_token", Kind: String},
			{Name: "scope", Kind: Strings},
			{Name: "client_assertion_type", Kind: String},
			{Name: "client_assertion", Kind: String},
			{Name: "state", Kind: String},
		},
	}
}

// TokenResponseSchema declares the token endpoint response, with the
// id_token as a nested signed token.
//
// https://tools.ietf.org/html/rfc6749#section-5.1
func TokenResponseSchema() *Schema {
	return &Schema{
		Name: "AccessTokenResponse",
		Params: []Param{
			{Name: "access_token", Kind: String, Required: true},
			{Name: "token_type", Kind: String, Required: true},
			{Name: "expires_in", Kind: Int},
			{Name: "refresh_token", Kind: String},
			{Name: "scope", Kind: Strings},
			{Name: "id_token", Kind: JWT},
			{Name: "state", Kind: String},
		},
	}
}

// UserinfoResponseSchema declares the userinfo endpoint response.
func UserinfoResponseSchema() *Schema {
	return &Schema{
		Name: "OpenIDSchema",
		Params: []Param{
			{Name: "sub", Kind: String, Required: true},
			{Name: "name", Kind: String},
			{Name: "email", Kind: String},
			{Name: "email_verified", Kind: Bool},
			{Name: "iss", Kind: String},
			{Name: "aud", Kind: Strings},
		},
	}
}

// ProviderConfigurationSchema declares the provider-metadata response.
func ProviderConfigurationSchema() *Schema {
	return &Schema{
		Name: "ProviderConfigurationResponse",
		Params: []Param{
			{Name: "issuer", Kind: String, Required: true},
			{Name: "authorization_endpoint", Kind: String, Required: true},
			{Name: "token_endpoint", Kind: String},
			{Name: "userinfo_endpoint", Kind: String},
			{Name: "jwks_uri", Kind: String},
			{Name: "registration_endpoint", Kind: String},
			{Name: "revocation_endpoint", Kind: String},
			{Name: "introspection_endpoint", Kind: String},
			{Name: "end_session_endpoint", Kind: String},
			{Name: "scopes_supported", Kind: Strings},
			{Name: "response_types_supported", Kind: Strings, Required: true},
			{Name: "grant_types_supported", Kind: Strings},
		},
	}
}

// ErrorResponseSchema declares the error-shaped response returned by
// any endpoint.
//
// https://tools.ietf.org/html/rfc6749#section-5.2
func ErrorResponseSchema() *Schema {
	return &Schema{
		Name: "ResponseMessage",
		Params: []Param{
			{Name: "error", Kind: String, Required: true},
			{Name: "error_description", Kind: String},
			{Name: "error_uri", Kind: String},
			{Name: "state", Kind: String},
		},
	}
}
