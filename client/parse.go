package client

import (
	"encoding/json"
	"errors"
	"net/url"
	"strings"

	"github.com/jinnatar/idpy-oidc/keyjar"
	"github.com/jinnatar/idpy-oidc/message"
)

// Response is the outcome of parsing one response payload: a verified
// protocol message (or an error-shaped one, which short-circuits
// verification), a text passthrough, or a bare list.
type Response struct {
	Message *message.Message
	Text    string
	List    []interface{}
}

// IsError reports whether the parsed response is error-shaped.
func (r *Response) IsError() bool {
	return r.Message != nil && r.Message.IsError()
}

// ResponseOptions carries per-call arguments for response parsing.
type ResponseOptions struct {
	// State is handed to the post-parse hook.
	State string
	// BehaviourArgs are reserved for verification behaviour tweaks.
	BehaviourArgs map[string]interface{}
}

// ParseResponse decodes a raw response under the declared format
// (defaulting from the service descriptor), verifies it, and runs the
// post-parse hook. See the package documentation for the decode
// fallbacks: an ambiguous "jose" payload is probed as signed then
// encrypted, and a payload mistagged as JSON is retried once as a
// compact token.
func (s *Service) ParseResponse(raw string, sformat message.Format, opts *ResponseOptions) (*Response, error) {
	if opts == nil {
		opts = &ResponseOptions{}
	}
	if sformat == "" {
		sformat = s.responseBodyType
	}
	s.log.Debugf("response format: %s", sformat)

	// An empty payload is a terminal failure under every format, the
	// text passthrough included.
	if raw == "" {
		s.log.Error("missing or faulty response")
		return nil, &ResponseError{Reason: "empty response body"}
	}

	// Non-empty text responses are never schema-deserialized and never
	// verified.
	if sformat == message.FormatText {
		return &Response{Text: raw}, nil
	}

	data, rawJWS, rawJWE, err := s.decode(raw, sformat)
	if err != nil {
		return nil, err
	}

	if arr, ok := data.([]interface{}); ok {
		if !s.responseSchema.List {
			return nil, &DeserializationError{Format: string(sformat), Cause: errors.New("unexpected array payload")}
		}
		// Lists pass through without schema deserialization or
		// verification, the empty list included.
		return &Response{List: arr}, nil
	}

	fields, ok := data.(map[string]interface{})
	if !ok || len(fields) == 0 {
		s.log.Error("missing or faulty response")
		return nil, &ResponseError{Reason: "empty decoded response"}
	}

	// Error-shaped responses are a valid protocol outcome: decode them
	// with the error schema and skip verification.
	if _, isErr := fields["error"]; isErr {
		errMsg, err := message.New(s.errorSchema, fields)
		if err != nil {
			return nil, err
		}
		s.log.Debugf("error response: %v", errMsg.Map())
		return &Response{Message: errMsg}, nil
	}

	msg, err := message.New(s.responseSchema, fields)
	if err != nil {
		// The schema rejected the decoded data. When the declared
		// format was json the payload may really be a compact token;
		// one retry before giving up.
		if sformat != message.FormatJSON {
			return nil, &DeserializationError{Format: string(sformat), Cause: err}
		}
		s.log.Errorf("error while deserializing: %v (1 pass)", err)
		payload, terr := s.unpackSigned(raw)
		if terr != nil {
			s.log.Errorf("error while deserializing: %v", terr)
			return nil, &DeserializationError{Format: string(sformat), Cause: err}
		}
		data, derr := unmarshalPayload(payload, sformat)
		if derr != nil {
			return nil, derr
		}
		retry, ok := data.(map[string]interface{})
		if !ok {
			return nil, &DeserializationError{Format: string(sformat), Cause: err}
		}
		msg, err = message.New(s.responseSchema, retry)
		if err != nil {
			return nil, &DeserializationError{Format: string(sformat), Cause: err}
		}
		rawJWS = raw
	}
	s.log.Debugf("initial response parsing => %v", msg.Map())

	if err := s.verify(msg); err != nil {
		if s.metrics != nil {
			s.metrics.verifyFailures.WithLabelValues(s.name).Inc()
		}
		return nil, err
	}

	if rawJWS != "" {
		msg.RawJWS = rawJWS
	} else if rawJWE != "" {
		msg.RawJWE = rawJWE
	}

	if s.postParse != nil {
		msg, err = s.postParse(msg, s, opts.State)
		if err != nil {
			return nil, err
		}
	}

	if msg == nil {
		s.log.Error("missing or faulty response")
		return nil, &ResponseError{Reason: "empty response after post-processing"}
	}

	if s.metrics != nil {
		s.metrics.responsesParsed.WithLabelValues(s.name).Inc()
	}

	return &Response{Message: msg}, nil
}

// decode classifies and decodes the raw payload into structured data,
// preserving any compact token it was unwrapped from.
func (s *Service) decode(raw string, sformat message.Format) (data interface{}, rawJWS, rawJWE string, err error) {
	switch sformat {
	case message.FormatJOSE:
		// Ambiguous: probe as signed first, then encrypted. Anything
		// else is treated as already-decoded data.
		switch message.Classify(raw) {
		case message.TokenSigned:
			payload, err := s.unpackSigned(raw)
			if err != nil {
				return nil, "", "", err
			}
			data, err := unmarshalPayload(payload, sformat)
			return data, raw, "", err
		case message.TokenEncrypted:
			payload, err := s.decrypt(raw)
			if err != nil {
				return nil, "", "", err
			}
			data, err := unmarshalPayload(payload, sformat)
			return data, "", raw, err
		default:
			data, err := unmarshalPayload([]byte(raw), sformat)
			return data, "", "", err
		}

	case message.FormatJWE:
		payload, err := s.decrypt(raw)
		if err != nil {
			return nil, "", "", err
		}
		data, err := unmarshalPayload(payload, sformat)
		return data, "", raw, err

	case message.FormatJWT, message.FormatJWS:
		payload, err := s.unpackSigned(raw)
		if err != nil {
			return nil, "", "", err
		}
		data, err := unmarshalPayload(payload, sformat)
		return data, raw, "", err

	case message.FormatURLEncoded:
		data, err := decodeForm(urlInfo(raw))
		if err != nil {
			return nil, "", "", &DeserializationError{Format: string(sformat), Cause: err}
		}
		return data, "", "", nil

	case message.FormatJSON:
		var data interface{}
		if err := json.Unmarshal([]byte(raw), &data); err == nil {
			return data, "", "", nil
		}
		// Could be a JWS or JWE wrongly tagged as JSON; retry once as
		// a signed token before giving up.
		s.log.Errorf("error while deserializing as json (1 pass)")
		payload, err := s.unpackSigned(raw)
		if err != nil {
			s.log.Errorf("error while deserializing: %v", err)
			return nil, "", "", &DeserializationError{Format: string(sformat), Cause: err}
		}
		d, err := unmarshalPayload(payload, sformat)
		return d, raw, "", err

	default:
		return nil, "", "", &DeserializationError{Format: string(sformat)}
	}
}

func (s *Service) unpackSigned(raw string) ([]byte, error) {
	if s.ctx.KeyJar == nil {
		return nil, &keyjar.KeyNotFoundError{Owner: s.ctx.Issuer}
	}
	keys := s.ctx.KeyJar.VerificationKeys(s.ctx.Issuer)
	return message.UnpackJWS(raw, s.ctx.Issuer, keys, s.allowedSignAlgs)
}

func (s *Service) decrypt(raw string) ([]byte, error) {
	if s.ctx.KeyJar == nil {
		return nil, &keyjar.KeyNotFoundError{Owner: s.ctx.ClientID}
	}
	keys := s.ctx.KeyJar.DecryptionKeys(s.ctx.ClientID)
	return message.DecryptJWE(raw, s.ctx.ClientID, keys)
}

func unmarshalPayload(payload []byte, sformat message.Format) (interface{}, error) {
	var data interface{}
	if err := json.Unmarshal(payload, &data); err != nil {
		return nil, &DeserializationError{Format: string(sformat), Cause: err}
	}
	return data, nil
}

// decodeForm parses form-encoded data into a field map.
func decodeForm(data string) (map[string]interface{}, error) {
	vals, err := url.ParseQuery(data)
	if err != nil {
		return nil, err
	}
	out := make(map[string]interface{}, len(vals))
	for name, vv := range vals {
		if len(vv) == 1 {
			out[name] = vv[0]
		} else {
			out[name] = vv
		}
	}
	return out, nil
}

// urlInfo picks the query or fragment component out of a payload that
// is a whole URL.
func urlInfo(raw string) string {
	if !strings.Contains(raw, "?") && !strings.Contains(raw, "#") {
		return raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	if u.RawQuery != "" {
		return u.RawQuery
	}
	return u.EscapedFragment()
}

// gatherVerifyArguments collects the arguments for the message verify
// call. Only the provider-metadata operation may accept a plain-HTTP
// issuer.
func (s *Service) gatherVerifyArguments() message.VerifyOptions {
	return message.VerifyOptions{
		Issuer:          s.ctx.Issuer,
		KeyJar:          s.ctx.KeyJar,
		ClientID:        s.ctx.ClientID,
		AllowHTTP:       s.name == "provider_info" && strings.HasPrefix(s.ctx.Issuer, "http://"),
		AllowedSignAlgs: s.allowedSignAlgs,
	}
}

// verify runs cryptographic/issuer verification on a parsed message.
// Failures are logged and re-raised, never downgraded; the missing-key
// case additionally logs whether the issuer is known to the keyjar at
// all.
func (s *Service) verify(msg *message.Message) error {
	vopts := s.gatherVerifyArguments()
	s.log.Debugf("verify response for issuer %s", vopts.Issuer)

	err := msg.Verify(vopts)
	if err == nil {
		return nil
	}

	var knf *keyjar.KeyNotFoundError
	if errors.As(err, &knf) {
		s.log.Errorf("could not find an appropriate key: %v", err)
		if vopts.KeyJar != nil && !vopts.KeyJar.HasOwner(vopts.Issuer) {
			s.log.Debugf("issuer %s not found in keyjar", vopts.Issuer)
		}
		return err
	}

	s.log.Errorf("got exception while verifying response: %v", err)
	return err
}
