package client

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
)

// successful are the statuses treated as carrying a usable response
// body.
var successful = map[int]bool{
	200: true, 201: true, 202: true, 203: true, 204: true, 205: true, 206: true,
}

// HTTPError indicates a generic HTTP error occurred during an
// interaction. It exposes details about the returned response, as well
// as the original error
type HTTPError struct {
	Response *http.Response
	Body     []byte
	Cause    error
}

func (h *HTTPError) Error() string {
	return fmt.Sprintf("http status %s: %s", h.Response.Status, string(h.Body))
}

func (h *HTTPError) Unwrap() error {
	return h.Cause
}

// Do executes a request description over a real HTTP client and
// returns the raw response body, ready for ParseResponse. The engine
// itself is transport-agnostic; this helper exists for callers who
// have no transport of their own.
//
// Bodies returned with 400 or 401 are handed back without error, since
// error-shaped responses are a valid protocol outcome the caller still
// parses. Every other non-success status is an *HTTPError.
func Do(ctx context.Context, hc *http.Client, req *HTTPRequest) (string, error) {
	if hc == nil {
		hc = http.DefaultClient
	}

	var body io.Reader
	if len(req.Body) > 0 {
		body = bytes.NewReader(req.Body)
	}

	hreq, err := http.NewRequestWithContext(ctx, req.Method, req.URL, body)
	if err != nil {
		return "", fmt.Errorf("building request for %s: %v", req.URL, err)
	}
	for name, value := range req.Headers {
		hreq.Header.Set(name, value)
	}

	resp, err := hc.Do(hreq)
	if err != nil {
		return "", fmt.Errorf("doing request: %v", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", &HTTPError{Response: resp, Cause: err}
	}

	if !successful[resp.StatusCode] && resp.StatusCode != http.StatusBadRequest && resp.StatusCode != http.StatusUnauthorized {
		return "", &HTTPError{Response: resp, Body: raw}
	}

	return string(raw), nil
}
