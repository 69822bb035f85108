package client

import (
	"fmt"

	jose "gopkg.in/square/go-jose.v2"

	"github.com/jinnatar/idpy-oidc/keyjar"
	"github.com/jinnatar/idpy-oidc/message"
)

// PreConstructHook rewrites the request parameters before the message
// is instantiated. It may return a post-args contribution for the
// post-construct hooks; contributions are not merged across hooks, the
// last non-nil one wins (see Service.doPreConstruct).
type PreConstructHook func(args map[string]interface{}, s *Service, postArgs map[string]interface{}, extra map[string]interface{}) (map[string]interface{}, map[string]interface{}, error)

// PostConstructHook rewrites the already-instantiated request message.
type PostConstructHook func(msg *message.Message, s *Service, postArgs map[string]interface{}) (*message.Message, error)

// HeaderHook augments the outbound HTTP headers. token carries the
// bearer/DPoP token extracted from an Authorization header produced by
// the authentication step, if any.
type HeaderHook func(ctx *Context, headers map[string]string, msg *message.Message, authnMethod, endpointName, httpMethod, token string, extra map[string]interface{}) (map[string]string, error)

// PostParseHook post-processes a verified response message.
type PostParseHook func(msg *message.Message, s *Service, state string) (*message.Message, error)

// SignRequestObject is a post-construct hook that signs the message
// into its compact JWS form, which the serializer uses for JOSE-encoded
// request bodies. The signing key is the client's own; the algorithm
// can be overridden through the "request_object_alg" post-arg.
func SignRequestObject(msg *message.Message, s *Service, postArgs map[string]interface{}) (*message.Message, error) {
	alg := jose.RS256
	if a, ok := postArgs["request_object_alg"].(string); ok && a != "" {
		alg = jose.SignatureAlgorithm(a)
	}

	keys := s.ctx.KeyJar.SigningKeys(s.ctx.ClientID)
	if len(keys) == 0 {
		return nil, &keyjar.KeyNotFoundError{Owner: s.ctx.ClientID}
	}
	key := keys[0]

	signer, err := jose.NewSigner(jose.SigningKey{Algorithm: alg, Key: key.Key}, &jose.SignerOptions{
		ExtraHeaders: map[jose.HeaderKey]interface{}{"kid": key.KeyID},
	})
	if err != nil {
		return nil, fmt.Errorf("creating request object signer: %v", err)
	}

	payload, err := msg.ToJSON()
	if err != nil {
		return nil, fmt.Errorf("serializing request object: %v", err)
	}

	jws, err := signer.Sign(payload)
	if err != nil {
		return nil, fmt.Errorf("signing request object: %v", err)
	}
	raw, err := jws.CompactSerialize()
	if err != nil {
		return nil, fmt.Errorf("serializing request object: %v", err)
	}

	msg.RawJWS = raw
	return msg, nil
}
