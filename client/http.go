package client

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/jinnatar/idpy-oidc/message"
)

// HTTPRequest is the transport-agnostic description of one outbound
// request. It is handed to whatever transport the caller uses; the
// originating message is kept for diagnostics.
type HTTPRequest struct {
	Method  string
	URL     string
	Body    []byte
	Headers map[string]string
	Message *message.Message
}

// Endpoint resolves where this service's requests are sent: an
// explicitly configured URL wins, otherwise the endpoint is looked up
// by name in the provider metadata.
func (s *Service) Endpoint() (string, error) {
	if s.endpoint != "" {
		return s.endpoint, nil
	}
	if u := s.ctx.Endpoint(s.endpointName); u != "" {
		return u, nil
	}
	return "", fmt.Errorf("no endpoint known for %q (%s)", s.name, s.endpointName)
}

// headers builds the outbound header set: the authentication strategy
// first, then every extra-header hook in order. A bearer or DPoP token
// produced by the authentication step is passed on to the hooks.
func (s *Service) headers(msg *message.Message, httpMethod, authnMethod string, extra map[string]interface{}) (map[string]string, error) {
	httpArgs, err := s.initAuthentication(msg, authnMethod, nil)
	if err != nil {
		return nil, err
	}

	headers := httpArgs.Headers
	if headers == nil {
		headers = map[string]string{}
	}

	token := ""
	if authz := headers["Authorization"]; authz != "" {
		if strings.HasPrefix(authz, "Bearer ") || strings.HasPrefix(authz, "DPoP ") {
			token = authz[strings.Index(authz, " ")+1:]
		}
	}

	for _, hook := range s.extraHeaders {
		headers, err = hook(s.ctx, headers, msg, authnMethod, s.endpointName, httpMethod, token, extra)
		if err != nil {
			return nil, err
		}
	}

	return headers, nil
}

// requestURL embeds the message parameters as the query component for
// methods that carry no body.
func requestURL(endpoint string, msg *message.Message, method string) (string, error) {
	if method != http.MethodGet && method != http.MethodDelete {
		return endpoint, nil
	}

	query, err := msg.ToURLEncoded()
	if err != nil {
		return "", err
	}
	if query == "" {
		return endpoint, nil
	}

	sep := "?"
	if strings.Contains(endpoint, "?") {
		sep = "&"
	}
	return endpoint + sep + query, nil
}

// bodyContentType selects the body encoding purely from the body
// format.
func bodyContentType(bodyType message.Format) string {
	switch bodyType {
	case message.FormatURLEncoded:
		return message.ContentTypeURLEncoded
	case message.FormatJWS, message.FormatJWE, message.FormatJOSE:
		return message.ContentTypeJOSE
	default:
		return message.ContentTypeJSON
	}
}

func serializeBody(msg *message.Message, contentType string) ([]byte, error) {
	switch contentType {
	case message.ContentTypeURLEncoded:
		body, err := msg.ToURLEncoded()
		if err != nil {
			return nil, err
		}
		return []byte(body), nil
	case message.ContentTypeJOSE:
		// The compact form is produced up front, normally by a
		// request-object post-construct hook.
		if msg.RawJWS != "" {
			return []byte(msg.RawJWS), nil
		}
		if msg.RawJWE != "" {
			return []byte(msg.RawJWE), nil
		}
		return nil, fmt.Errorf("message has no compact JOSE serialization; install a request-object hook")
	default:
		return msg.ToJSON()
	}
}

// RequestParameters builds the request message, authenticates it, and
// assembles the transport-agnostic HTTP request description. Method,
// body encoding and authentication method default from the service
// descriptor.
func (s *Service) RequestParameters(args map[string]interface{}, opts *RequestOptions) (*HTTPRequest, error) {
	if opts == nil {
		opts = &RequestOptions{}
	}

	method := opts.Method
	if method == "" {
		method = s.httpMethod
	}
	authnMethod := opts.AuthnMethod
	if authnMethod == "" {
		authnMethod = s.defaultAuthnMethod
	}
	bodyType := opts.BodyType
	if bodyType == "" {
		bodyType = s.requestBodyType
	}

	msg, err := s.Construct(args, opts)
	if err != nil {
		return nil, err
	}
	s.log.Debugf("request: %v", msg.Map())

	hookExtra := make(map[string]interface{}, len(opts.Extra)+1)
	for k, v := range opts.Extra {
		hookExtra[k] = v
	}
	if s.ctx.Issuer != "" {
		hookExtra["iss"] = s.ctx.Issuer
	}

	headers, err := s.headers(msg, method, authnMethod, hookExtra)
	if err != nil {
		return nil, err
	}

	endpoint := opts.Endpoint
	if endpoint == "" {
		endpoint, err = s.Endpoint()
		if err != nil {
			return nil, err
		}
	}

	u, err := requestURL(endpoint, msg, method)
	if err != nil {
		return nil, err
	}

	req := &HTTPRequest{
		Method:  method,
		URL:     u,
		Message: msg,
	}

	if method == http.MethodPost {
		contentType := bodyContentType(bodyType)
		body, err := serializeBody(msg, contentType)
		if err != nil {
			return nil, err
		}
		req.Body = body
		headers["Content-Type"] = contentType
	}

	if len(headers) > 0 {
		req.Headers = headers
	}

	if s.metrics != nil {
		s.metrics.requestsBuilt.WithLabelValues(s.name).Inc()
	}

	return req, nil
}
