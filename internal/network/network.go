// Package network provides the shared http plumbing used by the remote data sources.
package network

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/leighmacdonald/trueplayers/internal/encoding"
)

var (
	ErrFetchJSON   = errors.New("failed to fetch json")
	ErrHTTPStatus  = errors.New("unexpected http status")
	ErrInvalidBody = errors.New("invalid response body")
)

// HTTPDoer defines a common interface for HTTP clients.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// NewClient creates the http client used for all outbound requests.
func NewClient(timeout time.Duration) *http.Client {
	return &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			DialContext:           (&net.Dialer{Timeout: 10 * time.Second}).DialContext,
			TLSHandshakeTimeout:   10 * time.Second,
			ResponseHeaderTimeout: 10 * time.Second,
			ExpectContinueTimeout: 6 * time.Second,
			MaxIdleConnsPerHost:   8,
		},
	}
}

// FetchJSON will query a json http service using a generic type for receiving results. Any
// non 2xx response is treated as an error.
func FetchJSON[T any](ctx context.Context, client HTTPDoer, url string) (*T, error) {
	req, errReq := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if errReq != nil {
		return nil, errors.Join(errReq, ErrFetchJSON)
	}

	req.Header.Set("Accept", "application/json")
	// Battlelog only answers with json when it believes the request came from its own frontend.
	req.Header.Set("X-Requested-With", "XMLHttpRequest")

	resp, errResp := client.Do(req)
	if errResp != nil {
		return nil, errors.Join(errResp, ErrFetchJSON)
	}

	defer func(body io.ReadCloser) {
		if err := body.Close(); err != nil {
			slog.Error("Failed to close response body", slog.String("error", err.Error()))
		}
	}(resp.Body)

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return nil, errors.Join(fmt.Errorf("%w: %d", ErrHTTPStatus, resp.StatusCode), ErrFetchJSON)
	}

	value, errValue := encoding.UnmarshalJSON[T](resp.Body)
	if errValue != nil {
		return nil, errors.Join(errValue, ErrInvalidBody, ErrFetchJSON)
	}

	return &value, nil
}
