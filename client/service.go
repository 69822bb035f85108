package client

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/jinnatar/idpy-oidc/message"
)

// Config holds the static identity of one protocol operation. A
// Service is built from it once, at client bootstrap.
type Config struct {
	// Name is the operation name the service is indexed by, e.g.
	// "authorization" or "accesstoken".
	Name string
	// EndpointName keys the endpoint URL lookup in the provider
	// metadata, e.g. "token_endpoint".
	EndpointName string
	// Endpoint overrides the metadata lookup with a fixed URL.
	Endpoint string
	// HTTPMethod is the default method. Defaults to GET.
	HTTPMethod string
	// RequestBodyType is the default body encoding. Defaults to
	// urlencoded.
	RequestBodyType message.Format
	// ResponseBodyType is the default response encoding. Defaults to
	// json.
	ResponseBodyType message.Format
	// DefaultAuthnMethod names the authentication method used when the
	// caller does not pick one. It must resolve to a registered
	// strategy.
	DefaultAuthnMethod string
	// Asynchronous marks operations whose result arrives out-of-band
	// (e.g. via a redirect) rather than as an immediate response.
	Asynchronous bool

	// Request, Response and Error are the declared message schemas.
	Request  *message.Schema
	Response *message.Schema
	Error    *message.Schema

	// RequestArgs are statically configured parameter values, applied
	// to every call unless explicitly overridden.
	RequestArgs map[string]interface{}
	// DefaultRequestArgs are fallback values, used per declared field
	// when nothing else resolves, and injected verbatim for keys
	// outside the declared set.
	DefaultRequestArgs map[string]interface{}

	// AuthnMethods is the service-local authentication registry. It
	// shadows the entity-wide registry per identifier.
	AuthnMethods map[string]AuthnStrategy
	// AllowedSignAlgs restricts the signing algorithms accepted on
	// signed responses for this operation.
	AllowedSignAlgs []string

	// PreConstructArgs and PostConstructArgs are configured arguments
	// handed to the respective hook chains; call-scoped extras
	// override them per key.
	PreConstructArgs  map[string]interface{}
	PostConstructArgs map[string]interface{}

	// CallbackPaths maps callback target names to the URL path(s)
	// registered for them.
	CallbackPaths map[string][]string

	// Logger receives diagnostics. Defaults to the logrus standard
	// logger.
	Logger logrus.FieldLogger
	// Metrics, if set, counts built requests and parsed responses.
	Metrics *Metrics
}

// Service is the engine for one protocol operation. It is immutable
// once configured; hook chains may be appended during bootstrap only.
type Service struct {
	ctx *Context

	name               string
	endpointName       string
	endpoint           string
	httpMethod         string
	requestBodyType    message.Format
	responseBodyType   message.Format
	defaultAuthnMethod string
	synchronous        bool
	allowedSignAlgs    []string

	requestSchema  *message.Schema
	responseSchema *message.Schema
	errorSchema    *message.Schema

	requestArgs        map[string]interface{}
	defaultRequestArgs map[string]interface{}

	authnMethods map[string]AuthnStrategy

	preConstructArgs  map[string]interface{}
	postConstructArgs map[string]interface{}

	preConstruct  []PreConstructHook
	postConstruct []PostConstructHook
	extraHeaders  []HeaderHook
	postParse     PostParseHook

	callbackPaths map[string][]string

	log     logrus.FieldLogger
	metrics *Metrics
}

// New builds a Service bound to the shared client context.
func New(ctx *Context, cfg Config) (*Service, error) {
	if ctx == nil {
		return nil, fmt.Errorf("service requires a client context")
	}
	if cfg.Name == "" {
		return nil, fmt.Errorf("service requires a name")
	}

	s := &Service{
		ctx:                ctx,
		name:               cfg.Name,
		endpointName:       cfg.EndpointName,
		endpoint:           cfg.Endpoint,
		httpMethod:         cfg.HTTPMethod,
		requestBodyType:    cfg.RequestBodyType,
		responseBodyType:   cfg.ResponseBodyType,
		defaultAuthnMethod: cfg.DefaultAuthnMethod,
		synchronous:        !cfg.Asynchronous,
		allowedSignAlgs:    cfg.AllowedSignAlgs,
		requestSchema:      cfg.Request,
		responseSchema:     cfg.Response,
		errorSchema:        cfg.Error,
		requestArgs:        cfg.RequestArgs,
		defaultRequestArgs: cfg.DefaultRequestArgs,
		authnMethods:       cfg.AuthnMethods,
		preConstructArgs:   cfg.PreConstructArgs,
		postConstructArgs:  cfg.PostConstructArgs,
		callbackPaths:      cfg.CallbackPaths,
		log:                cfg.Logger,
		metrics:            cfg.Metrics,
	}

	if s.httpMethod == "" {
		s.httpMethod = "GET"
	}
	if s.requestBodyType == "" {
		s.requestBodyType = message.FormatURLEncoded
	}
	if s.responseBodyType == "" {
		s.responseBodyType = message.FormatJSON
	}
	if s.requestSchema == nil {
		s.requestSchema = &message.Schema{Name: cfg.Name + "Request"}
	}
	if s.responseSchema == nil {
		s.responseSchema = &message.Schema{Name: cfg.Name + "Response"}
	}
	if s.errorSchema == nil {
		s.errorSchema = message.ErrorResponseSchema()
	}
	if s.authnMethods == nil {
		s.authnMethods = map[string]AuthnStrategy{}
	}
	if s.log == nil {
		s.log = logrus.StandardLogger()
	}

	if s.defaultAuthnMethod != "" {
		if _, err := s.authnStrategy(s.defaultAuthnMethod); err != nil {
			return nil, fmt.Errorf("default authn method: %v", err)
		}
	}

	return s, nil
}

// Name returns the declared operation name.
func (s *Service) Name() string { return s.name }

// EndpointName returns the provider-metadata key for this operation's
// endpoint.
func (s *Service) EndpointName() string { return s.endpointName }

// Context returns the shared client context this service borrows.
func (s *Service) Context() *Context { return s.ctx }

// Synchronous reports whether the operation blocks for an immediate
// response, as opposed to a result that arrives out-of-band.
func (s *Service) Synchronous() bool { return s.synchronous }

// RequestSchema returns the declared request message schema.
func (s *Service) RequestSchema() *message.Schema { return s.requestSchema }

// ResponseSchema returns the declared response message schema.
func (s *Service) ResponseSchema() *message.Schema { return s.responseSchema }

// AppendPreConstruct appends hooks to the pre-construct chain. Order
// is preserved; bootstrap-time only.
func (s *Service) AppendPreConstruct(hooks ...PreConstructHook) {
	s.preConstruct = append(s.preConstruct, hooks...)
}

// AppendPostConstruct appends hooks to the post-construct chain.
func (s *Service) AppendPostConstruct(hooks ...PostConstructHook) {
	s.postConstruct = append(s.postConstruct, hooks...)
}

// AppendHeaderHook appends extra-header hooks.
func (s *Service) AppendHeaderHook(hooks ...HeaderHook) {
	s.extraHeaders = append(s.extraHeaders, hooks...)
}

// SetPostParse installs the post-parse-response hook.
func (s *Service) SetPostParse(hook PostParseHook) {
	s.postParse = hook
}

// RequestOptions carries per-call overrides for building one request.
type RequestOptions struct {
	// State is injected into the request when the schema declares a
	// state field and construction did not already set one.
	State string
	// Method overrides the descriptor's HTTP method.
	Method string
	// BodyType overrides the descriptor's request body encoding.
	BodyType message.Format
	// AuthnMethod overrides the descriptor's authentication method.
	AuthnMethod string
	// Endpoint overrides endpoint resolution.
	Endpoint string
	// Extra is handed to the pre-construct hooks, overriding the
	// configured hook arguments per key.
	Extra map[string]interface{}
	// BehaviourArgs are merged into the post-construct arguments.
	BehaviourArgs map[string]interface{}
}

// gatherRequestArgs resolves the final parameter set for one call.
// Resolution per declared field, first match wins: explicit call
// argument, statically configured value, negotiated/registered usage
// value, per-service default. Remaining defaults are injected verbatim
// afterwards, declared or not. Empty usage and default values never
// enter a request; unresolved fields are omitted.
func (s *Service) gatherRequestArgs(args map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(args))
	for k, v := range args {
		out[k] = v
	}

	for k, v := range s.requestArgs {
		if _, ok := out[k]; !ok {
			out[k] = v
		}
	}

	use := s.ctx.Usage()
	for _, p := range s.requestSchema.Params {
		if _, ok := out[p.Name]; ok {
			continue
		}
		if v, ok := use[p.Name]; ok && !emptyValue(v) {
			out[p.Name] = v
			continue
		}
		if v, ok := s.defaultRequestArgs[p.Name]; ok && !emptyValue(v) {
			out[p.Name] = v
		}
	}

	for k, v := range s.defaultRequestArgs {
		if _, ok := out[k]; !ok && !emptyValue(v) {
			out[k] = v
		}
	}

	return out
}

// emptyValue reports whether a fallback value carries no content and
// should be left out of the request.
func emptyValue(v interface{}) bool {
	switch t := v.(type) {
	case nil:
		return true
	case string:
		return t == ""
	case bool:
		return !t
	case int:
		return t == 0
	case int64:
		return t == 0
	case float64:
		return t == 0
	case []string:
		return len(t) == 0
	case []interface{}:
		return len(t) == 0
	case map[string]interface{}:
		return len(t) == 0
	}
	return false
}

// methodArgs merges configured hook arguments with call-scoped extras,
// extras winning per key.
func methodArgs(configured, extra map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(configured)+len(extra))
	for k, v := range configured {
		out[k] = v
	}
	for k, v := range extra {
		out[k] = v
	}
	return out
}

func (s *Service) doPreConstruct(args, extra map[string]interface{}) (map[string]interface{}, map[string]interface{}, error) {
	hookArgs := methodArgs(s.preConstructArgs, extra)

	postArgs := map[string]interface{}{}
	for _, hook := range s.preConstruct {
		var contrib map[string]interface{}
		var err error
		args, contrib, err = hook(args, s, postArgs, hookArgs)
		if err != nil {
			return nil, nil, err
		}
		// Contributions are not merged across hooks; the last non-nil
		// one is what the post-construct chain sees.
		if contrib != nil {
			postArgs = contrib
		}
	}
	return args, postArgs, nil
}

func (s *Service) doPostConstruct(msg *message.Message, postArgs map[string]interface{}) (*message.Message, error) {
	args := methodArgs(s.postConstructArgs, postArgs)

	var err error
	for _, hook := range s.postConstruct {
		msg, err = hook(msg, s, args)
		if err != nil {
			return nil, err
		}
	}
	return msg, nil
}

// Construct builds the request message: pre-construct hooks, state
// injection, parameter resolution, message instantiation (schema
// rejections propagate), behaviour-arg merge, post-construct hooks.
func (s *Service) Construct(args map[string]interface{}, opts *RequestOptions) (*message.Message, error) {
	if opts == nil {
		opts = &RequestOptions{}
	}
	if args == nil {
		args = map[string]interface{}{}
	}

	args, postArgs, err := s.doPreConstruct(args, opts.Extra)
	if err != nil {
		return nil, err
	}

	// Don't overwrite a state the hooks already put there.
	if opts.State != "" && s.requestSchema.Declares("state") {
		if _, ok := args["state"]; !ok {
			args["state"] = opts.State
		}
	}

	args = s.gatherRequestArgs(args)

	msg, err := message.New(s.requestSchema, args)
	if err != nil {
		return nil, err
	}

	for k, v := range opts.BehaviourArgs {
		postArgs[k] = v
	}

	return s.doPostConstruct(msg, postArgs)
}

// CallbackURIs produces the callback URLs for the given targets
// (default: all declared targets), merging with URIs already
// registered on the client context without duplication. The produced
// set is registered on the context; the full merged set is returned,
// entries for non-requested targets included.
func (s *Service) CallbackURIs(baseURL, clientHex string, targets []string) map[string][]string {
	if len(targets) == 0 {
		for target := range s.callbackPaths {
			targets = append(targets, target)
		}
	}

	existing := s.ctx.CallbackURIs()
	out := make(map[string][]string, len(targets))
	for _, target := range targets {
		if uris, ok := existing[target]; ok {
			out[target] = uris
			continue
		}
		for _, path := range s.callbackPaths[target] {
			out[target] = append(out[target], fmt.Sprintf("%s/%s/%s", baseURL, path, clientHex))
		}
	}

	s.ctx.RegisterCallbackURIs(out)
	return s.ctx.CallbackURIs()
}
