// Package httpclient provides the HTTP client used to talk to the TMDB v3 API.
// Every request is built against a fixed base URL and carries the API key as the
// api_key query parameter. Responses outside the 2xx range are returned as *HTTPError;
// transport failures are wrapped with ErrRequestFailed.
package httpclient

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"time"

	"github.com/tansive/tmdbauth/internal/common/apperrors"
	"github.com/tansive/tmdbauth/internal/common/logtrace"
	"github.com/tidwall/gjson"
)

// APIKeyParam is the query parameter that carries the API key.
const APIKeyParam = "api_key"

// AttemptIDHeader carries the login attempt ID for server-side correlation.
const AttemptIDHeader = "X-Attempt-Id"

// DefaultTimeout bounds a single request when ClientOptions.Timeout is zero.
const DefaultTimeout = 30 * time.Second

// ErrRequestFailed is returned when the request could not be sent or its body
// could not be read.
var ErrRequestFailed apperrors.Error = apperrors.New("request failed")

// Configurator provides the server location and API key.
type Configurator interface {
	GetServerURL() string
	GetAPIKey() string
}

// HTTPError represents a response whose status code is outside the 2xx range.
type HTTPError struct {
	StatusCode int    // HTTP status code of the response
	Message    string // TMDB status_message, or the raw body
}

// Error implements the error interface for HTTPError.
func (e *HTTPError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("unexpected status %d", e.StatusCode)
	}
	return fmt.Sprintf("unexpected status %d: %s", e.StatusCode, e.Message)
}

// HTTPClient makes requests to the TMDB API.
type HTTPClient struct {
	config     Configurator
	httpClient *http.Client
}

// ClientOptions contains options for configuring the HTTP client.
type ClientOptions struct {
	Timeout   time.Duration     // per-request timeout, DefaultTimeout if zero
	Transport http.RoundTripper // optional transport override
}

// NewClient creates a new HTTP client using the provided configuration.
func NewClient(config Configurator, opts ...ClientOptions) *HTTPClient {
	clientOpts := ClientOptions{}
	if len(opts) > 0 {
		clientOpts = opts[0]
	}
	if clientOpts.Timeout <= 0 {
		clientOpts.Timeout = DefaultTimeout
	}
	httpClient := &http.Client{Timeout: clientOpts.Timeout}
	if clientOpts.Transport != nil {
		httpClient.Transport = clientOpts.Transport
	}
	return &HTTPClient{
		config:     config,
		httpClient: httpClient,
	}
}

// RequestOptions describes a single API call.
type RequestOptions struct {
	Method      string            // GET or POST
	Path        string            // path relative to the server URL, e.g. /account
	QueryParams map[string]string // query parameters besides api_key
	Body        []byte            // optional JSON body
}

// DoRequest performs the request and returns the response body of a 2xx response.
func (c *HTTPClient) DoRequest(ctx context.Context, opts RequestOptions) ([]byte, error) {
	req, err := newRequest(ctx, c.config, opts)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, transportError(err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, ErrRequestFailed.MsgErr("failed to read response body", err)
	}
	if err := checkStatus(resp.StatusCode, body); err != nil {
		return nil, err
	}
	return body, nil
}

func newRequest(ctx context.Context, config Configurator, opts RequestOptions) (*http.Request, error) {
	u, err := url.Parse(config.GetServerURL())
	if err != nil {
		return nil, fmt.Errorf("invalid server URL: %w", err)
	}
	if u.Path == "" {
		u.Path = "/"
	}
	u.Path = path.Join(u.Path, opts.Path)

	q := u.Query()
	for k, v := range opts.QueryParams {
		q.Set(k, v)
	}
	q.Set(APIKeyParam, config.GetAPIKey())
	u.RawQuery = q.Encode()

	method := opts.Method
	if method == "" {
		method = http.MethodGet
	}

	var body io.Reader = http.NoBody
	if len(opts.Body) > 0 {
		body = bytes.NewReader(opts.Body)
	}
	req, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if id := logtrace.AttemptIDFromContext(ctx); id != "" {
		req.Header.Set(AttemptIDHeader, id)
	}
	if len(opts.Body) > 0 {
		req.Header.Set("Content-Type", "application/json")
	}
	return req, nil
}

// transportError strips the request URL, which carries the API key and possibly the
// password, from a client error.
func transportError(err error) error {
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		err = urlErr.Err
	}
	return ErrRequestFailed.Err(err)
}

// checkStatus maps a non-2xx status to *HTTPError, preferring the TMDB status_message.
func checkStatus(code int, body []byte) error {
	if code >= 200 && code <= 299 {
		return nil
	}
	msg := string(body)
	if gjson.ValidBytes(body) {
		if m := gjson.GetBytes(body, "status_message"); m.Type == gjson.String {
			msg = m.String()
		}
	}
	return &HTTPError{
		StatusCode: code,
		Message:    msg,
	}
}
