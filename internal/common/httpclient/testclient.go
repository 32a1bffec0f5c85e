package httpclient

import (
	"context"
	"net/http"
	"net/http/httptest"
)

// TestHTTPClient serves requests straight from an http.Handler using
// httptest.NewRecorder, without opening a socket.
type TestHTTPClient struct {
	config  Configurator
	handler http.Handler
}

// NewTestClient creates a client that dispatches every request to handler.
func NewTestClient(config Configurator, handler http.Handler) *TestHTTPClient {
	return &TestHTTPClient{
		config:  config,
		handler: handler,
	}
}

// DoRequest builds the request exactly like HTTPClient and records the handler's response.
func (c *TestHTTPClient) DoRequest(ctx context.Context, opts RequestOptions) ([]byte, error) {
	req, err := newRequest(ctx, c.config, opts)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, transportError(err)
	}

	rr := httptest.NewRecorder()
	c.handler.ServeHTTP(rr, req)
	body := rr.Body.Bytes()

	if err := checkStatus(rr.Code, body); err != nil {
		return nil, err
	}
	return body, nil
}
