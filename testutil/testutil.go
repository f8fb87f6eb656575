// Package testutil provides helpers for testing code built on the mediator.
//
// Client drives a Dispatcher the way a transport does, by request name and
// JSON payload, without starting a server. Logger records log entries for
// assertions:
//
//	func TestCreateEmployee(t *testing.T) {
//	    m := newMediator(t)
//	    tc := testutil.NewClient(t, m).WithToken("secret")
//
//	    emp := testutil.MustCall[Employee](tc, "employee.create", map[string]any{"name": "Ada"})
//	    assert.Equal(t, "Ada", emp.Name)
//
//	    errBody := tc.CallError("employee.create", map[string]any{})
//	    assert.Equal(t, "validation_failed", errBody.Code)
//	}
package testutil

import (
	"context"
	"encoding/json"
	"fmt"
	"maps"
	"sync"
	"testing"

	"github.com/felixgeelhaar/mediate/behavior"
	"github.com/felixgeelhaar/mediate/transport"
)

// Client is an in-memory client for a Dispatcher.
type Client struct {
	t        testing.TB
	d        transport.Dispatcher
	ctx      context.Context
	metadata behavior.Metadata
}

// NewClient creates a new test client for d.
func NewClient(t testing.TB, d transport.Dispatcher) *Client {
	t.Helper()
	return &Client{
		t:        t,
		d:        d,
		ctx:      context.Background(),
		metadata: behavior.Metadata{},
	}
}

// WithContext returns a copy of the client that dispatches with ctx.
func (c *Client) WithContext(ctx context.Context) *Client {
	cp := c.clone()
	cp.ctx = ctx
	return cp
}

// WithMetadata returns a copy of the client that sends key=value with every
// request.
func (c *Client) WithMetadata(key, value string) *Client {
	cp := c.clone()
	cp.metadata[key] = value
	return cp
}

// WithToken is shorthand for an Authorization bearer header.
func (c *Client) WithToken(token string) *Client {
	return c.WithMetadata("Authorization", "Bearer "+token)
}

func (c *Client) clone() *Client {
	cp := *c
	cp.metadata = maps.Clone(c.metadata)
	return &cp
}

// Call decodes payload into the request registered as name and dispatches
// it. The result is returned as JSON. Failures are returned as the body a
// transport would send.
func (c *Client) Call(name string, payload any) (json.RawMessage, *transport.ErrorBody) {
	c.t.Helper()

	var raw json.RawMessage
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			c.t.Fatalf("failed to marshal payload: %v", err)
		}
		raw = data
	}

	req, err := c.d.Decode(name, raw)
	if err != nil {
		return nil, errorBody(err)
	}

	ctx := behavior.ContextWithMetadata(c.ctx, maps.Clone(c.metadata))
	result, err := c.d.Dispatch(ctx, req)
	if err != nil {
		return nil, errorBody(err)
	}

	data, err := json.Marshal(result)
	if err != nil {
		c.t.Fatalf("failed to marshal result: %v", err)
	}
	return data, nil
}

// CallError calls name and fails the test if the call succeeds.
func (c *Client) CallError(name string, payload any) *transport.ErrorBody {
	c.t.Helper()

	result, errBody := c.Call(name, payload)
	if errBody == nil {
		c.t.Fatalf("%s: expected an error, got %s", name, result)
	}
	return errBody
}

// MustCall calls name, fails the test on error and decodes the result as T.
func MustCall[T any](c *Client, name string, payload any) T {
	c.t.Helper()

	var out T
	result, errBody := c.Call(name, payload)
	if errBody != nil {
		c.t.Fatalf("%s: unexpected error: %s (%s)", name, errBody.Error, errBody.Code)
		return out
	}
	if err := json.Unmarshal(result, &out); err != nil {
		c.t.Fatalf("%s: failed to decode result %s: %v", name, result, err)
	}
	return out
}

func errorBody(err error) *transport.ErrorBody {
	body := transport.NewErrorBody(err)
	return &body
}

// Entry is one recorded log call.
type Entry struct {
	Level   string
	Message string
	Fields  []behavior.Field
}

// Field returns the value of the field named key.
func (e Entry) Field(key string) (any, bool) {
	for _, f := range e.Fields {
		if f.Key == key {
			return f.Value, true
		}
	}
	return nil, false
}

// Logger is a behavior.Logger that records every entry. It is safe for
// concurrent use.
type Logger struct {
	mu      sync.Mutex
	entries []Entry
}

func (l *Logger) Info(msg string, fields ...behavior.Field)  { l.add("info", msg, fields) }
func (l *Logger) Error(msg string, fields ...behavior.Field) { l.add("error", msg, fields) }
func (l *Logger) Debug(msg string, fields ...behavior.Field) { l.add("debug", msg, fields) }
func (l *Logger) Warn(msg string, fields ...behavior.Field)  { l.add("warn", msg, fields) }

func (l *Logger) add(level, msg string, fields []behavior.Field) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, Entry{
		Level:   level,
		Message: msg,
		Fields:  append([]behavior.Field(nil), fields...),
	})
}

// Entries returns a copy of the recorded entries.
func (l *Logger) Entries() []Entry {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]Entry(nil), l.entries...)
}

// Messages returns the messages logged at level, or at every level when
// level is empty.
func (l *Logger) Messages(level string) []string {
	var out []string
	for _, e := range l.Entries() {
		if level == "" || e.Level == level {
			out = append(out, e.Message)
		}
	}
	return out
}

// Lines returns every entry as "level:message".
func (l *Logger) Lines() []string {
	var out []string
	for _, e := range l.Entries() {
		out = append(out, fmt.Sprintf("%s:%s", e.Level, e.Message))
	}
	return out
}

// Reset discards the recorded entries.
func (l *Logger) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = nil
}
