package nes

import "context"

// Client is a request/response RPC channel over a single persistent
// connection, with out-of-band broadcast delivery and automatic
// reconnection.
type Client interface {
	Connect(ctx context.Context) error
	Disconnect() error

	Request(ctx context.Context, req Request) (*Response, error)
	Get(ctx context.Context, path string) (*Response, error)

	Authenticate(ctx context.Context, token string) error
}

// Request describes an outbound RPC call. Method defaults to GET when
// empty, so a Request containing only a path behaves like a plain fetch.
type Request struct {
	Method  string
	Path    string
	Headers map[string]string
	Payload any
}

// Response carries the server's reply to a Request. It is returned even
// when the status code indicates an application-level failure, alongside
// the corresponding *StatusError.
type Response struct {
	StatusCode int
	Headers    map[string]string
	Payload    any
}
