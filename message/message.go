// Package message implements the schema-declared protocol messages
// exchanged with an OAuth2/OIDC provider, along with their wire
// serializations and verification.
package message

import (
	"encoding/json"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"

	"github.com/jinnatar/idpy-oidc/keyjar"
)

// Message is one instance of a declared schema. Fields keep their
// insertion order; declared fields are type-checked against the schema
// on the way in. Fields outside the declared set are allowed, matching
// the protocol's extensibility rules.
type Message struct {
	schema *Schema
	order  []string
	values map[string]interface{}

	// RawJWS preserves the compact signed serialization this message
	// was unwrapped from, or carries the signed form of an outbound
	// request object.
	RawJWS string
	// RawJWE preserves the compact encrypted serialization this
	// message was unwrapped from.
	RawJWE string

	verified map[string]map[string]interface{}
}

// New builds a message from the given values. Declared fields are
// added first, in schema order, then any extra fields in sorted order
// so construction is deterministic. A value a declared field rejects
// fails with a ValidationError.
func New(schema *Schema, values map[string]interface{}) (*Message, error) {
	m := &Message{
		schema: schema,
		values: map[string]interface{}{},
	}

	for _, p := range schema.Params {
		v, ok := values[p.Name]
		if !ok {
			continue
		}
		if err := m.Set(p.Name, v); err != nil {
			return nil, err
		}
	}

	var extras []string
	for name := range values {
		if !schema.Declares(name) {
			extras = append(extras, name)
		}
	}
	sort.Strings(extras)
	for _, name := range extras {
		if err := m.Set(name, values[name]); err != nil {
			return nil, err
		}
	}

	return m, nil
}

// Schema returns the schema this message was built against.
func (m *Message) Schema() *Schema {
	return m.schema
}

// Set stores a field value, validating it against the schema when the
// field is declared.
func (m *Message) Set(name string, value interface{}) error {
	if p, ok := m.schema.Param(name); ok {
		v, err := coerce(p, value)
		if err != nil {
			return &ValidationError{Schema: m.schema.Name, Field: name, Reason: err.Error()}
		}
		value = v
	}
	if _, ok := m.values[name]; !ok {
		m.order = append(m.order, name)
	}
	m.values[name] = value
	return nil
}

// Get returns a field value.
func (m *Message) Get(name string) (interface{}, bool) {
	v, ok := m.values[name]
	return v, ok
}

// GetString returns a field as a string, or "" if absent or not a
// string.
func (m *Message) GetString(name string) string {
	s, _ := m.values[name].(string)
	return s
}

// Has reports whether the field is set.
func (m *Message) Has(name string) bool {
	_, ok := m.values[name]
	return ok
}

// Delete removes a field.
func (m *Message) Delete(name string) {
	if _, ok := m.values[name]; !ok {
		return
	}
	delete(m.values, name)
	for i, n := range m.order {
		if n == name {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
}

// Names returns the set field names in insertion order.
func (m *Message) Names() []string {
	return append([]string(nil), m.order...)
}

// Map returns a copy of the field values.
func (m *Message) Map() map[string]interface{} {
	out := make(map[string]interface{}, len(m.values))
	for k, v := range m.values {
		out[k] = v
	}
	return out
}

// IsError reports whether this is an error-shaped protocol response.
func (m *Message) IsError() bool {
	return m.Has("error")
}

// ToJSON serializes the message as a JSON object.
func (m *Message) ToJSON() ([]byte, error) {
	return json.Marshal(m.values)
}

// ToURLEncoded serializes the message as form-encoded key=value pairs.
func (m *Message) ToURLEncoded() (string, error) {
	vals := url.Values{}
	for _, name := range m.order {
		s, err := stringValue(m.values[name])
		if err != nil {
			return "", fmt.Errorf("field %q: %v", name, err)
		}
		vals.Set(name, s)
	}
	return vals.Encode(), nil
}

// ParseJSON builds a message from a JSON object payload.
func ParseJSON(schema *Schema, data []byte) (*Message, error) {
	var raw map[string]interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, &ValidationError{Schema: schema.Name, Field: "", Reason: "not a JSON object", Cause: err}
	}
	return New(schema, raw)
}

// ParseURLEncoded builds a message from form-encoded data.
func ParseURLEncoded(schema *Schema, data string) (*Message, error) {
	vals, err := url.ParseQuery(data)
	if err != nil {
		return nil, &ValidationError{Schema: schema.Name, Field: "", Reason: "not urlencoded form data", Cause: err}
	}
	raw := make(map[string]interface{}, len(vals))
	for name, vv := range vals {
		if len(vv) == 1 {
			raw[name] = vv[0]
		} else {
			raw[name] = vv
		}
	}
	return New(schema, raw)
}

// VerifyOptions carries the arguments gathered for verification.
type VerifyOptions struct {
	// Issuer the response is anchored against.
	Issuer string
	// KeyJar resolves the issuer's verification keys. Nested-JWT
	// fields are not unwrapped when nil.
	KeyJar keyjar.KeyJar
	// ClientID is the client's own identifier, checked against nested
	// token audiences.
	ClientID string
	// AllowHTTP permits a plain-HTTP issuer. Only granted for the
	// provider-metadata operation.
	AllowHTTP bool
	// AllowedSignAlgs restricts the signing algorithms accepted on
	// nested tokens. Empty means no restriction.
	AllowedSignAlgs []string
}

// Verify checks the message against its schema and the issuer context:
// required fields must be present, an issuer field must match the
// expected issuer, and declared JWT fields are unwrapped and
// signature-checked against the keyjar. Verified nested claims are
// retrievable via VerifiedClaims.
func (m *Message) Verify(opts VerifyOptions) error {
	for _, p := range m.schema.Params {
		if p.Required && !m.Has(p.Name) {
			return &ValidationError{Schema: m.schema.Name, Field: p.Name, Reason: "required but missing"}
		}
	}

	if iss := m.issuerField(); iss != "" {
		if !opts.AllowHTTP && strings.HasPrefix(iss, "http://") {
			return &ValidationError{Schema: m.schema.Name, Field: "issuer", Reason: "plain-http issuer not allowed"}
		}
		if opts.Issuer != "" && iss != opts.Issuer {
			return &ValidationError{
				Schema: m.schema.Name,
				Field:  "issuer",
				Reason: fmt.Sprintf("got %q, expected %q", iss, opts.Issuer),
			}
		}
	}

	for _, p := range m.schema.Params {
		if p.Kind != JWT || !m.Has(p.Name) || opts.KeyJar == nil {
			continue
		}
		raw := m.GetString(p.Name)
		if raw == "" {
			continue
		}
		claims, err := m.verifyNested(p.Name, raw, opts)
		if err != nil {
			return err
		}
		if m.verified == nil {
			m.verified = map[string]map[string]interface{}{}
		}
		m.verified[p.Name] = claims
	}

	return nil
}

// VerifiedClaims returns the claims of a nested JWT field that Verify
// unwrapped.
func (m *Message) VerifiedClaims(name string) (map[string]interface{}, bool) {
	claims, ok := m.verified[name]
	return claims, ok
}

func (m *Message) verifyNested(name, raw string, opts VerifyOptions) (map[string]interface{}, error) {
	keys := opts.KeyJar.VerificationKeys(opts.Issuer)
	payload, err := UnpackJWS(raw, opts.Issuer, keys, opts.AllowedSignAlgs)
	if err != nil {
		return nil, err
	}

	var claims map[string]interface{}
	if err := json.Unmarshal(payload, &claims); err != nil {
		return nil, &ValidationError{Schema: m.schema.Name, Field: name, Reason: "token payload is not a JSON object", Cause: err}
	}

	if iss, _ := claims["iss"].(string); iss != "" && opts.Issuer != "" && iss != opts.Issuer {
		return nil, &ValidationError{
			Schema: m.schema.Name,
			Field:  name,
			Reason: fmt.Sprintf("token issuer %q, expected %q", iss, opts.Issuer),
		}
	}
	if opts.ClientID != "" {
		if aud, ok := claims["aud"]; ok && !audienceContains(aud, opts.ClientID) {
			return nil, &ValidationError{
				Schema: m.schema.Name,
				Field:  name,
				Reason: fmt.Sprintf("audience %v does not include %q", aud, opts.ClientID),
			}
		}
	}

	return claims, nil
}

func (m *Message) issuerField() string {
	if s := m.GetString("issuer"); s != "" {
		return s
	}
	return m.GetString("iss")
}

func audienceContains(aud interface{}, clientID string) bool {
	switch v := aud.(type) {
	case string:
		return v == clientID
	case []string:
		return contains(v, clientID)
	case []interface{}:
		for _, a := range v {
			if s, ok := a.(string); ok && s == clientID {
				return true
			}
		}
	}
	return false
}

func coerce(p Param, value interface{}) (interface{}, error) {
	switch p.Kind {
	case Any:
		return value, nil
	case String, JWT:
		s, ok := value.(string)
		if !ok {
			return nil, fmt.Errorf("expected string, got %T", value)
		}
		return s, nil
	case Int:
		switch v := value.(type) {
		case int:
			return int64(v), nil
		case int64:
			return v, nil
		case float64:
			if v != float64(int64(v)) {
				return nil, fmt.Errorf("expected integer, got %v", v)
			}
			return int64(v), nil
		}
		return nil, fmt.Errorf("expected integer, got %T", value)
	case Bool:
		b, ok := value.(bool)
		if !ok {
			return nil, fmt.Errorf("expected bool, got %T", value)
		}
		return b, nil
	case Strings:
		switch v := value.(type) {
		case string:
			return strings.Fields(v), nil
		case []string:
			return v, nil
		case []interface{}:
			out := make([]string, 0, len(v))
			for _, e := range v {
				s, ok := e.(string)
				if !ok {
					return nil, fmt.Errorf("expected list of strings, got %T element", e)
				}
				out = append(out, s)
			}
			return out, nil
		}
		return nil, fmt.Errorf("expected list of strings, got %T", value)
	}
	return nil, fmt.Errorf("unknown parameter kind %d", p.Kind)
}

func stringValue(v interface{}) (string, error) {
	switch t := v.(type) {
	case string:
		return t, nil
	case []string:
		return strings.Join(t, " "), nil
	case bool:
		return strconv.FormatBool(t), nil
	case int64:
		return strconv.FormatInt(t, 10), nil
	case int:
		return strconv.Itoa(t), nil
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64), nil
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return "", err
		}
		return string(b), nil
	}
}
