package client

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/jinnatar/idpy-oidc/keyjar"
	"github.com/jinnatar/idpy-oidc/message"
)

func TestParseResponseJSON(t *testing.T) {
	ctx, _ := newTestContext(t)
	svc := newTestService(t, ctx, nil)

	resp, err := svc.ParseResponse(`{"access_token":"at-1","token_type":"Bearer","expires_in":3600}`, "", nil)
	if err != nil {
		t.Fatalf("parsing: %v", err)
	}
	if resp.IsError() {
		t.Fatal("unexpected error response")
	}

	want := map[string]interface{}{
		"access_token": "at-1",
		"token_type":   "Bearer",
		"expires_in":   int64(3600),
	}
	if diff := cmp.Diff(want, resp.Message.Map()); diff != "" {
		t.Errorf("message mismatch (-want +got): %s", diff)
	}
}

func TestParseResponseEmpty(t *testing.T) {
	ctx, _ := newTestContext(t)
	svc := newTestService(t, ctx, nil)

	for _, raw := range []string{"", "{}"} {
		_, err := svc.ParseResponse(raw, "", nil)
		var rerr *ResponseError
		if !errors.As(err, &rerr) {
			t.Errorf("%q: want ResponseError, got %v", raw, err)
		}
	}
}

func TestParseResponseText(t *testing.T) {
	ctx, _ := newTestContext(t)
	svc := newTestService(t, ctx, nil)

	resp, err := svc.ParseResponse("OK", message.FormatText, nil)
	if err != nil {
		t.Fatalf("parsing: %v", err)
	}
	if resp.Text != "OK" || resp.Message != nil {
		t.Errorf("want text passthrough, got %+v", resp)
	}

	// An empty body is terminal even under the text format.
	_, err = svc.ParseResponse("", message.FormatText, nil)
	var rerr *ResponseError
	if !errors.As(err, &rerr) {
		t.Errorf("empty text: want ResponseError, got %v", err)
	}
}

func TestParseResponseList(t *testing.T) {
	ctx, _ := newTestContext(t)
	svc := newTestService(t, ctx, func(cfg *Config) {
		cfg.Response = &message.Schema{Name: "Claims", List: true}
	})

	resp, err := svc.ParseResponse(`["email","phone"]`, "", nil)
	if err != nil {
		t.Fatalf("parsing: %v", err)
	}
	if diff := cmp.Diff([]interface{}{"email", "phone"}, resp.List); diff != "" {
		t.Errorf("list mismatch (-want +got): %s", diff)
	}

	// The empty list passes through too, without becoming an error.
	resp, err = svc.ParseResponse(`[]`, "", nil)
	if err != nil {
		t.Fatalf("parsing empty list: %v", err)
	}
	if resp.List == nil || len(resp.List) != 0 {
		t.Errorf("want empty list, got %+v", resp)
	}

	// An array against a non-list schema is a deserialization failure.
	plain := newTestService(t, ctx, nil)
	_, err = plain.ParseResponse(`["email"]`, "", nil)
	var derr *DeserializationError
	if !errors.As(err, &derr) {
		t.Errorf("want DeserializationError, got %v", err)
	}
}

func TestParseResponseErrorShaped(t *testing.T) {
	ctx, _ := newTestContext(t)
	// No keyjar: verification would fail if it ran, proving the
	// error branch skips it.
	ctx.KeyJar = nil
	svc := newTestService(t, ctx, nil)

	resp, err := svc.ParseResponse(`{"error":"invalid_grant","error_description":"code expired"}`, "", nil)
	if err != nil {
		t.Fatalf("parsing: %v", err)
	}
	if !resp.IsError() {
		t.Fatal("want error-shaped response")
	}
	if got := resp.Message.GetString("error"); got != "invalid_grant" {
		t.Errorf("error: got %q", got)
	}
	if got := resp.Message.GetString("error_description"); got != "code expired" {
		t.Errorf("error_description: got %q", got)
	}
}

func TestParseResponseURLEncoded(t *testing.T) {
	ctx, _ := newTestContext(t)
	svc := newTestService(t, ctx, func(cfg *Config) {
		cfg.Name = "authorization"
		cfg.Response = &message.Schema{
			Name: "AuthzResponse",
			Params: []message.Param{
				{Name: "code", Kind: message.String, Required: true},
				{Name: "state", Kind: message.String},
			},
		}
	})

	for _, tc := range []struct {
		Name string
		Raw  string
	}{
		{Name: "bare query string", Raw: "code=Z0FBQ&state=st-1"},
		{Name: "full url with query", Raw: "https://rp.example.com/authz_cb?code=Z0FBQ&state=st-1"},
		{Name: "full url with fragment", Raw: "https://rp.example.com/authz_cb#code=Z0FBQ&state=st-1"},
	} {
		t.Run(tc.Name, func(t *testing.T) {
			resp, err := svc.ParseResponse(tc.Raw, message.FormatURLEncoded, nil)
			if err != nil {
				t.Fatalf("parsing: %v", err)
			}
			if got := resp.Message.GetString("code"); got != "Z0FBQ" {
				t.Errorf("code: got %q", got)
			}
			if got := resp.Message.GetString("state"); got != "st-1" {
				t.Errorf("state: got %q", got)
			}
		})
	}
}

func TestParseResponseSigned(t *testing.T) {
	ctx, keys := newTestContext(t)
	svc := newTestService(t, ctx, nil)

	claims := map[string]interface{}{
		"access_token": "at-1",
		"token_type":   "Bearer",
		"iss":          testIssuer,
	}
	raw := signResponse(t, keys.Issuer, claims)

	for _, sformat := range []message.Format{message.FormatJWT, message.FormatJWS, message.FormatJOSE} {
		t.Run(string(sformat), func(t *testing.T) {
			resp, err := svc.ParseResponse(raw, sformat, nil)
			if err != nil {
				t.Fatalf("parsing: %v", err)
			}
			if got := resp.Message.GetString("access_token"); got != "at-1" {
				t.Errorf("access_token: got %q", got)
			}
			// The compact form the message was unwrapped from is kept.
			if resp.Message.RawJWS != raw {
				t.Errorf("RawJWS not preserved")
			}
		})
	}
}

func TestParseResponseEncrypted(t *testing.T) {
	ctx, keys := newTestContext(t)
	svc := newTestService(t, ctx, nil)

	claims := map[string]interface{}{
		"access_token": "at-1",
		"iss":          testIssuer,
	}
	raw := encryptResponse(t, keys.Client, claims)

	for _, sformat := range []message.Format{message.FormatJWE, message.FormatJOSE} {
		t.Run(string(sformat), func(t *testing.T) {
			resp, err := svc.ParseResponse(raw, sformat, nil)
			if err != nil {
				t.Fatalf("parsing: %v", err)
			}
			if got := resp.Message.GetString("access_token"); got != "at-1" {
				t.Errorf("access_token: got %q", got)
			}
			if resp.Message.RawJWE != raw {
				t.Errorf("RawJWE not preserved")
			}
		})
	}
}

func TestParseResponseMistaggedJSON(t *testing.T) {
	ctx, keys := newTestContext(t)
	svc := newTestService(t, ctx, nil)

	claims := map[string]interface{}{
		"access_token": "at-1",
		"iss":          testIssuer,
	}
	raw := signResponse(t, keys.Issuer, claims)

	// Declared as json, really a compact token: one retry as signed.
	resp, err := svc.ParseResponse(raw, message.FormatJSON, nil)
	if err != nil {
		t.Fatalf("parsing: %v", err)
	}
	if got := resp.Message.GetString("access_token"); got != "at-1" {
		t.Errorf("access_token: got %q", got)
	}
	if resp.Message.RawJWS != raw {
		t.Errorf("RawJWS not preserved")
	}
}

func TestParseResponseMissingKey(t *testing.T) {
	ctx, keys := newTestContext(t)
	// A keyjar that does not know the issuer.
	jar := keyjar.NewStatic()
	ctx.KeyJar = jar
	svc := newTestService(t, ctx, nil)

	raw := signResponse(t, keys.Issuer, map[string]interface{}{"access_token": "at-1"})

	_, err := svc.ParseResponse(raw, message.FormatJWT, nil)
	var knf *keyjar.KeyNotFoundError
	if !errors.As(err, &knf) {
		t.Fatalf("want KeyNotFoundError, got %v", err)
	}
	if knf.Owner != testIssuer {
		t.Errorf("owner: got %q, want %q", knf.Owner, testIssuer)
	}
}

func TestParseResponseIssuerMismatch(t *testing.T) {
	ctx, keys := newTestContext(t)
	svc := newTestService(t, ctx, nil)

	raw := signResponse(t, keys.Issuer, map[string]interface{}{
		"access_token": "at-1",
		"iss":          "https://evil.example.com",
	})

	if _, err := svc.ParseResponse(raw, message.FormatJWT, nil); err == nil {
		t.Error("want issuer mismatch to fail verification, got nil")
	}
}

func TestParseResponsePostParse(t *testing.T) {
	ctx, _ := newTestContext(t)
	svc := newTestService(t, ctx, nil)

	svc.SetPostParse(func(msg *message.Message, _ *Service, state string) (*message.Message, error) {
		if state != "st-1" {
			t.Errorf("state: got %q, want %q", state, "st-1")
		}
		if err := msg.Set("state", state); err != nil {
			return nil, err
		}
		return msg, nil
	})

	resp, err := svc.ParseResponse(`{"access_token":"at-1"}`, "", &ResponseOptions{State: "st-1"})
	if err != nil {
		t.Fatalf("parsing: %v", err)
	}
	if got := resp.Message.GetString("state"); got != "st-1" {
		t.Errorf("state: got %q", got)
	}
}

func TestParseResponseRequiredMissing(t *testing.T) {
	ctx, _ := newTestContext(t)
	svc := newTestService(t, ctx, nil)

	// The response schema requires access_token.
	if _, err := svc.ParseResponse(`{"token_type":"Bearer"}`, "", nil); err == nil {
		t.Error("want verification to reject a missing required field, got nil")
	}
}
