// Package client calls requests on a remote mediator over one of its
// transports.
package client

import (
	"context"
	"encoding/json"
	"fmt"
	"maps"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/felixgeelhaar/mediate/transport"
)

// Transport defines the interface for client-side transport.
type Transport interface {
	// Send sends a frame and waits for the result. Remote failures are
	// returned as *Error.
	Send(ctx context.Context, frame transport.Frame) (json.RawMessage, error)
	// Close closes the transport connection.
	Close() error
}

// Error is a failure reported by the remote side.
type Error struct {
	// Status is the HTTP status, or 0 for frame transports.
	Status int
	Body   transport.ErrorBody
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Body.Code, e.Body.Error)
}

// Client sends requests by name.
type Client struct {
	transport Transport
	opts      clientOptions
	requestID atomic.Int64
}

// Option configures a Client.
type Option func(*clientOptions)

type clientOptions struct {
	timeout  time.Duration
	metadata map[string]string
}

// WithTimeout sets the default timeout for requests.
func WithTimeout(d time.Duration) Option {
	return func(o *clientOptions) {
		o.timeout = d
	}
}

// WithMetadata sends key=value with every request.
func WithMetadata(key, value string) Option {
	return func(o *clientOptions) {
		o.metadata[key] = value
	}
}

// WithToken authenticates every request with a bearer token.
func WithToken(token string) Option {
	return WithMetadata("Authorization", "Bearer "+token)
}

// New creates a new client with the given transport.
func New(t Transport, opts ...Option) *Client {
	options := clientOptions{
		timeout:  30 * time.Second,
		metadata: map[string]string{},
	}

	for _, opt := range opts {
		opt(&options)
	}

	return &Client{
		transport: t,
		opts:      options,
	}
}

// Call sends the request registered as name with payload and decodes the
// result into out. out may be nil.
func (c *Client) Call(ctx context.Context, name string, payload, out any) error {
	var raw json.RawMessage
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("marshal payload: %w", err)
		}
		raw = data
	}

	frame := transport.Frame{
		ID:       strconv.FormatInt(c.requestID.Add(1), 10),
		Name:     name,
		Payload:  raw,
		Metadata: maps.Clone(c.opts.metadata),
	}

	if c.opts.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.opts.timeout)
		defer cancel()
	}

	result, err := c.transport.Send(ctx, frame)
	if err != nil {
		return err
	}

	if out == nil || len(result) == 0 {
		return nil
	}
	if err := json.Unmarshal(result, out); err != nil {
		return fmt.Errorf("decode %s result: %w", name, err)
	}
	return nil
}

// Close closes the underlying transport.
func (c *Client) Close() error {
	return c.transport.Close()
}
