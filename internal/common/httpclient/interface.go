package httpclient

import "context"

// HTTPClientInterface is satisfied by the network client and by the in-process test client.
type HTTPClientInterface interface {
	// DoRequest makes an HTTP request with the given options and returns the body of a
	// 2xx response.
	DoRequest(ctx context.Context, opts RequestOptions) ([]byte, error)
}

var _ HTTPClientInterface = &HTTPClient{}
var _ HTTPClientInterface = &TestHTTPClient{}
