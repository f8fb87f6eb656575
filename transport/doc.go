// Package transport exposes a mediator to remote callers.
//
// # HTTP Transport
//
// The HTTP transport is a chi router that decodes the body of
// POST /requests/{name} into the request type registered under name and
// dispatches it:
//
//	t := transport.NewHTTP(":8080", m,
//	    transport.WithReadTimeout(10*time.Second),
//	    transport.WithWebSocket("/ws"),
//	)
//	err := t.Serve(ctx)
//
// The HTTP transport exposes the following endpoints:
//   - POST /requests/{name} - Dispatch a request
//   - GET /requests - List registered request names
//   - GET /health - Health check endpoint
//   - GET /ws - WebSocket endpoint, when enabled
//
// Failures are encoded as an ErrorBody with a status code chosen by
// StatusCode. Validation failures carry every field error:
//
//	HTTP/1.1 422 Unprocessable Entity
//	{"error":"validation failed","code":"validation_failed","errors":[{"field":"name","message":"must not be empty"}]}
//
// # Frame Transports
//
// WebSocket and Stdio exchange one JSON Frame per message and answer each
// with a Reply carrying the same id:
//
//	{"id":"1","name":"CreateEmployee","payload":{"name":"Ada"}}
//	{"id":"1","result":{"id":"...","name":"Ada"}}
//
// Authorization, X-API-Key and X-Request-ID headers, and the metadata of a
// frame, are made available to behaviors through behavior.Metadata.
package transport
