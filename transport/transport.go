package transport

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/felixgeelhaar/mediate/behavior"
	"github.com/felixgeelhaar/mediate/mediator"
	"github.com/felixgeelhaar/mediate/schema"
)

// Dispatcher decodes and dispatches named requests. *mediator.Mediator
// implements it.
type Dispatcher interface {
	Decode(name string, raw json.RawMessage) (any, error)
	Dispatch(ctx context.Context, req any) (any, error)
}

// Lister is optionally implemented by dispatchers that can list their
// registered requests.
type Lister interface {
	Requests() []mediator.RequestInfo
}

// Transport defines the communication layer interface.
type Transport interface {
	// Serve starts the transport, blocking until ctx is canceled or an error occurs.
	Serve(ctx context.Context) error

	// Addr returns the transport's address description.
	Addr() string
}

// RequestDescription is one entry of the GET /requests listing.
type RequestDescription struct {
	Name     string         `json:"name"`
	Category string         `json:"category,omitempty"`
	Schema   *schema.Schema `json:"schema"`
}

// ForwardedHeaders are copied from HTTP requests into behavior.Metadata.
var ForwardedHeaders = []string{"Authorization", "X-API-Key", "X-Request-ID"}

// headerMetadata extracts the forwarded headers of r.
func headerMetadata(h http.Header) behavior.Metadata {
	md := make(behavior.Metadata, len(ForwardedHeaders))
	for _, key := range ForwardedHeaders {
		if v := h.Get(key); v != "" {
			md[key] = v
		}
	}
	return md
}

// requestContext attaches md to ctx, and its X-Request-ID as the request ID.
func requestContext(ctx context.Context, md behavior.Metadata) context.Context {
	if id := md["X-Request-ID"]; id != "" {
		ctx = behavior.ContextWithRequestID(ctx, id)
	}
	return behavior.ContextWithMetadata(ctx, md)
}
