package client

import (
	"os"

	"github.com/ghodss/yaml"
	"github.com/pkg/errors"

	"github.com/jinnatar/idpy-oidc/message"
)

// FileConfig is the YAML-loadable part of a client configuration: the
// entity identity plus the wire settings of each service. Schemas,
// hooks and strategies are code, not configuration, and are attached
// after loading.
type FileConfig struct {
	Issuer       string                       `json:"issuer"`
	ClientID     string                       `json:"clientID"`
	ClientSecret string                       `json:"clientSecret"`
	Services     map[string]ServiceFileConfig `json:"services"`
}

// ServiceFileConfig holds the configurable wire settings of one
// service.
type ServiceFileConfig struct {
	EndpointName       string                 `json:"endpointName"`
	Endpoint           string                 `json:"endpoint"`
	HTTPMethod         string                 `json:"httpMethod"`
	RequestBodyType    string                 `json:"requestBodyType"`
	ResponseBodyType   string                 `json:"responseBodyType"`
	DefaultAuthnMethod string                 `json:"defaultAuthnMethod"`
	RequestArgs        map[string]interface{} `json:"requestArgs"`
	DefaultRequestArgs map[string]interface{} `json:"defaultRequestArgs"`
	AllowedSignAlgs    []string               `json:"allowedSignAlgs"`
}

// LoadConfig reads a FileConfig from a YAML file.
func LoadConfig(path string) (*FileConfig, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read config %s", path)
	}

	cfg := &FileConfig{}
	if err := yaml.Unmarshal(raw, cfg); err != nil {
		return nil, errors.Wrapf(err, "failed to parse config %s", path)
	}
	return cfg, nil
}

// Apply copies the loaded wire settings onto a service Config,
// leaving fields the file does not set untouched.
func (sc ServiceFileConfig) Apply(cfg *Config) {
	if sc.EndpointName != "" {
		cfg.EndpointName = sc.EndpointName
	}
	if sc.Endpoint != "" {
		cfg.Endpoint = sc.Endpoint
	}
	if sc.HTTPMethod != "" {
		cfg.HTTPMethod = sc.HTTPMethod
	}
	if sc.RequestBodyType != "" {
		cfg.RequestBodyType = message.Format(sc.RequestBodyType)
	}
	if sc.ResponseBodyType != "" {
		cfg.ResponseBodyType = message.Format(sc.ResponseBodyType)
	}
	if sc.DefaultAuthnMethod != "" {
		cfg.DefaultAuthnMethod = sc.DefaultAuthnMethod
	}
	if sc.RequestArgs != nil {
		cfg.RequestArgs = sc.RequestArgs
	}
	if sc.DefaultRequestArgs != nil {
		cfg.DefaultRequestArgs = sc.DefaultRequestArgs
	}
	if sc.AllowedSignAlgs != nil {
		cfg.AllowedSignAlgs = sc.AllowedSignAlgs
	}
}
