// Command oidcreq discovers an OIDC provider and prints the serialized
// request description for an authorization or token operation, without
// sending it anywhere. Useful for inspecting exactly what a configured
// client would put on the wire.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/jinnatar/idpy-oidc/client"
	"github.com/jinnatar/idpy-oidc/discovery"
	"github.com/jinnatar/idpy-oidc/message"
)

func main() {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "%s: %s\n", os.Args[0], err)
		os.Exit(1)
	}
}

var cmd = cobra.Command{
	Use:  "oidcreq",
	RunE: run,
}

var ( // flags
	issuer       string
	clientID     string
	clientSecret string
	redirectURI  string
	scope        string
	state        string
	operation    string
)

func init() {
	cmd.Flags().StringVar(&issuer, "issuer", "", "OIDC issuer URL (required)")
	cmd.Flags().StringVar(&clientID, "client-id", "", "OAuth2 client ID (required)")
	cmd.Flags().StringVar(&clientSecret, "client-secret", "", "OAuth2 client secret")
	cmd.Flags().StringVar(&redirectURI, "redirect-uri", "", "Redirect URI for the authorization request")
	cmd.Flags().StringVar(&scope, "scope", "openid", "Requested scopes, space separated")
	cmd.Flags().StringVar(&state, "state", "", "State value to bind the request to")
	cmd.Flags().StringVar(&operation, "operation", "authorization", `Operation to build: "authorization" or "accesstoken"`)
}

func run(_ *cobra.Command, _ []string) error {
	logger := logrus.New()

	if issuer == "" || clientID == "" {
		return fmt.Errorf("--issuer and --client-id are required")
	}

	ctx := context.Background()
	dc, err := discovery.NewClient(ctx, issuer)
	if err != nil {
		return errors.Wrap(err, "failed to discover provider")
	}

	cctx := client.NewContext(issuer, clientID)
	cctx.ClientSecret = clientSecret
	cctx.Provider = dc.Metadata()
	cctx.AuthnMethods = map[string]client.AuthnStrategy{
		client.AuthnClientSecretBasic: client.ClientSecretBasic{},
		client.AuthnClientSecretPost:  client.ClientSecretPost{},
	}

	services, err := client.InitServices(map[string]client.Definition{
		"authorization": {New: func(c *client.Context) (*client.Service, error) {
			return client.New(c, client.Config{
				Name:         "authorization",
				EndpointName: "authorization_endpoint",
				Request:      message.AuthorizationRequestSchema(),
				Error:        message.ErrorResponseSchema(),
				Asynchronous: true,
				RequestArgs: map[string]interface{}{
					"response_type": "code",
				},
				DefaultRequestArgs: map[string]interface{}{
					"scope": scope,
				},
				Logger: logger,
			})
		}},
		"accesstoken": {New: func(c *client.Context) (*client.Service, error) {
			return client.New(c, client.Config{
				Name:               "accesstoken",
				EndpointName:       "token_endpoint",
				HTTPMethod:         "POST",
				RequestBodyType:    message.FormatURLEncoded,
				DefaultAuthnMethod: client.AuthnClientSecretBasic,
				Request:            message.TokenRequestSchema(),
				Response:           message.TokenResponseSchema(),
				Error:              message.ErrorResponseSchema(),
				RequestArgs: map[string]interface{}{
					"grant_type": "authorization_code",
				},
				Logger: logger,
			})
		}},
	}, cctx)
	if err != nil {
		return errors.Wrap(err, "failed to initialize services")
	}

	svc, ok := services[operation]
	if !ok {
		return fmt.Errorf("unknown operation %q", operation)
	}

	args := map[string]interface{}{"client_id": clientID}
	if redirectURI != "" {
		args["redirect_uri"] = redirectURI
	}

	req, err := svc.RequestParameters(args, &client.RequestOptions{State: state})
	if err != nil {
		return errors.Wrapf(err, "failed to build %s request", operation)
	}

	out := map[string]interface{}{
		"method": req.Method,
		"url":    req.URL,
	}
	if len(req.Body) > 0 {
		out["body"] = string(req.Body)
	}
	if len(req.Headers) > 0 {
		out["headers"] = req.Headers
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}
