// Package api is the HTTP edge of the sync subsystem: a thin authorized
// transport over the back-office REST API, the error taxonomy callers match
// on, response envelope normalization, and the URL classification that maps
// endpoints onto queue intents and cache collections.
package api

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/dmitrijs2005/tripdesk/internal/client/session"
	"github.com/dmitrijs2005/tripdesk/internal/logging"
)

// Transport issues raw authorized requests and classifies the outcome. It
// never queues and never consults the cache; that policy lives one layer up.
type Transport struct {
	baseURL string
	http    *http.Client
	session *session.Store
	log     logging.Logger
}

func NewTransport(baseURL string, sess *session.Store, log logging.Logger) *Transport {
	return &Transport{
		baseURL: baseURL,
		http:    &http.Client{Timeout: 15 * time.Second},
		session: sess,
		log:     log.With("component", "api"),
	}
}

// Do performs one HTTP request against the API. Returns the response body on
// any 2xx. Failures map onto the taxonomy: transport-level errors wrap
// ErrNetworkAbsent, a 401 wraps ErrUnauthorized, any other status becomes a
// *ServerError.
func (t *Transport) Do(ctx context.Context, method, path string, body []byte, headers map[string]string) ([]byte, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, t.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token := t.session.Token(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := t.http.Do(req)
	if err != nil {
		// The request never got an answer; the wire itself failed.
		return nil, fmt.Errorf("%s %s: %v: %w", method, path, err, ErrNetworkAbsent)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%s %s: reading response: %v: %w", method, path, err, ErrNetworkAbsent)
	}

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return respBody, nil
	case resp.StatusCode == http.StatusUnauthorized:
		return nil, fmt.Errorf("%s %s: %w", method, path, ErrUnauthorized)
	default:
		return nil, &ServerError{StatusCode: resp.StatusCode, Body: respBody}
	}
}

// GetJSON fetches a resource with no extra headers.
func (t *Transport) GetJSON(ctx context.Context, path string) ([]byte, error) {
	return t.Do(ctx, http.MethodGet, path, nil, nil)
}
