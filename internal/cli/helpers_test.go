package cli

import (
	"net/http"
)

type blockingTransport struct {
	started chan<- struct{}
	release <-chan struct{}
}

func (b blockingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if b.started != nil {
		select {
		case b.started <- struct{}{}:
		default:
		}
	}
	select {
	case <-req.Context().Done():
		return nil, req.Context().Err()
	case <-b.release:
		return nil, http.ErrServerClosed
	}
}
