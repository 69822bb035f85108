package message

// Format names a wire serialization for a protocol message.
type Format string

const (
	FormatJSON       Format = "json"
	FormatURLEncoded Format = "urlencoded"
	FormatJWT        Format = "jwt"
	FormatJWS        Format = "jws"
	FormatJWE        Format = "jwe"
	// FormatJOSE is an ambiguous compact token that must be probed as
	// signed or encrypted.
	FormatJOSE Format = "jose"
	// FormatText is passed through unparsed and unverified.
	FormatText Format = "text"
)

// Content types selected when serializing a request body.
const (
	ContentTypeURLEncoded = "application/x-www-form-urlencoded"
	ContentTypeJSON       = "application/json"
	ContentTypeJOSE       = "application/jose"
)

// IsJOSEFormat reports whether the format serializes to a compact JOSE
// token on the wire.
func IsJOSEFormat(f Format) bool {
	switch f {
	case FormatJWT, FormatJWS, FormatJWE, FormatJOSE:
		return true
	}
	return false
}
