package mediator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"slices"
	"sync"

	"github.com/felixgeelhaar/mediate/behavior"
	"github.com/felixgeelhaar/mediate/pipeline"
)

// Registration and lookup errors.
var (
	ErrNoHandler      = errors.New("mediator: no handler registered")
	ErrHandlerExists  = errors.New("mediator: handler already registered")
	ErrUnknownRequest = errors.New("mediator: unknown request name")
	ErrNameExists     = errors.New("mediator: request name already registered")
)

// Category groups requests so mediator-wide behaviors can target a subset.
type Category string

// Built-in categories.
const (
	CategoryCommand Category = "command"
	CategoryQuery   Category = "query"
)

// Categorized is implemented by requests that belong to a category.
type Categorized interface {
	Category() Category
}

// RequestInfo describes a registered handler.
type RequestInfo struct {
	Name     string
	Request  reflect.Type
	Response reflect.Type
	Category Category
}

// Option configures a Mediator.
type Option func(*Mediator)

// WithLogger sets the logger for registration and routing events.
func WithLogger(l behavior.Logger) Option {
	return func(m *Mediator) {
		m.logger = l
	}
}

// WithBehaviors adds mediator-wide behaviors that apply to every request.
func WithBehaviors(behaviors ...pipeline.Behavior[any, any]) Option {
	return func(m *Mediator) {
		for _, b := range behaviors {
			m.behaviors = append(m.behaviors, scopedBehavior{behavior: b})
		}
	}
}

// Mediator routes requests to handlers. It is safe for concurrent use.
type Mediator struct {
	mu sync.RWMutex

	logger    behavior.Logger
	handlers  map[reflect.Type]*entry
	names     map[string]reflect.Type
	behaviors []scopedBehavior
}

type scopedBehavior struct {
	behavior   pipeline.Behavior[any, any]
	categories []Category
}

// appliesTo reports whether the behavior runs for a request in category c.
// Unscoped behaviors run for every request.
func (s scopedBehavior) appliesTo(c Category) bool {
	if len(s.categories) == 0 {
		return true
	}
	return c != "" && slices.Contains(s.categories, c)
}

// entry is a registered handler. typed holds a *handlerEntry[Req, Resp].
type entry struct {
	info     RequestInfo
	typed    any
	dispatch func(ctx context.Context, m *Mediator, req any) (any, error)
}

type handlerEntry[Req, Resp any] struct {
	handler   pipeline.Handler[Req, Resp]
	behaviors []pipeline.Behavior[Req, Resp]
}

// New creates a mediator with the given options.
func New(opts ...Option) *Mediator {
	m := &Mediator{
		logger:   behavior.NopLogger{},
		handlers: make(map[reflect.Type]*entry),
		names:    make(map[string]reflect.Type),
	}

	for _, opt := range opts {
		opt(m)
	}

	return m
}

// Use adds a mediator-wide behavior. With no categories it runs for every
// request; otherwise it runs only for requests whose Category is listed.
// Behaviors run in the order they were added.
func (m *Mediator) Use(b pipeline.Behavior[any, any], categories ...Category) error {
	if b == nil {
		return pipeline.NewContractViolation(pipeline.ErrNilBehavior, "mediator behavior is nil")
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.behaviors = append(m.behaviors, scopedBehavior{
		behavior:   b,
		categories: append([]Category(nil), categories...),
	})
	return nil
}

// Register adds handler for requests of type Req. behaviors run inside the
// mediator-wide behaviors, closest to the handler. The request is also made
// available to Decode under its RequestName.
func Register[Req, Resp any](m *Mediator, handler pipeline.Handler[Req, Resp], behaviors ...pipeline.Behavior[Req, Resp]) error {
	reqType := reflect.TypeFor[Req]()
	if handler == nil {
		return pipeline.NewContractViolation(pipeline.ErrNilHandler, "nil handler for %s", reqType)
	}
	if reqType.Kind() == reflect.Interface {
		return fmt.Errorf("mediator: request type must be concrete, got %s", reqType)
	}
	for i, b := range behaviors {
		if b == nil {
			return pipeline.NewContractViolation(pipeline.ErrNilBehavior, "behavior %d for %s is nil", i, reqType)
		}
	}

	prototype := newPrototype(reqType)
	info := RequestInfo{
		Name:     behavior.RequestName(prototype),
		Request:  reqType,
		Response: reflect.TypeFor[Resp](),
	}
	if c, ok := prototype.(Categorized); ok {
		info.Category = c.Category()
	}

	typed := &handlerEntry[Req, Resp]{
		handler:   handler,
		behaviors: append([]pipeline.Behavior[Req, Resp](nil), behaviors...),
	}

	e := &entry{
		info:  info,
		typed: typed,
		dispatch: func(ctx context.Context, m *Mediator, req any) (any, error) {
			r, ok := req.(Req)
			if !ok {
				return nil, pipeline.NewContractViolation(pipeline.ErrTypeMismatch, "request %T is not %s", req, reqType)
			}
			return send(ctx, m, typed, r)
		},
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.handlers[reqType]; exists {
		return fmt.Errorf("%w: %s", ErrHandlerExists, reqType)
	}
	if t, exists := m.names[info.Name]; exists && t != reqType {
		return fmt.Errorf("%w: %q is %s", ErrNameExists, info.Name, t)
	}

	m.handlers[reqType] = e
	m.names[info.Name] = reqType

	m.logger.Debug("handler registered",
		behavior.F("request", info.Name),
		behavior.F("response", info.Response.String()),
	)
	return nil
}

// MustRegister is like Register but panics on error.
func MustRegister[Req, Resp any](m *Mediator, handler pipeline.Handler[Req, Resp], behaviors ...pipeline.Behavior[Req, Resp]) {
	if err := Register(m, handler, behaviors...); err != nil {
		panic(err)
	}
}

// Send dispatches req to the handler registered for its dynamic type and
// returns the typed response. The behavior chain is composed for this call
// only: mediator behaviors that apply to the request's category, then the
// handler's own behaviors, then the handler.
//
// Send returns an error wrapping ErrNoHandler if no handler is registered and
// a *pipeline.ContractViolation of kind ErrTypeMismatch if the handler
// produces a response that is not a Resp.
func Send[Req, Resp any](ctx context.Context, m *Mediator, req Req) (Resp, error) {
	var zero Resp

	e, err := m.lookup(req)
	if err != nil {
		return zero, err
	}

	if typed, ok := e.typed.(*handlerEntry[Req, Resp]); ok {
		return send(ctx, m, typed, req)
	}

	respType := reflect.TypeFor[Resp]()
	if e.info.Response.Kind() != reflect.Interface && respType.Kind() != reflect.Interface &&
		!e.info.Response.AssignableTo(respType) {
		return zero, pipeline.NewContractViolation(pipeline.ErrTypeMismatch,
			"%s is handled with response %s, not %s", e.info.Name, e.info.Response, respType)
	}

	// Req is an interface or Resp differs from the registered response type
	out, err := e.dispatch(ctx, m, req)
	if err != nil {
		resp, _ := out.(Resp)
		return resp, err
	}
	return assertResponse[Resp](out, e.info.Name)
}

// Dispatch sends an untyped request. It is the entry point for transports
// that decode requests by name.
func (m *Mediator) Dispatch(ctx context.Context, req any) (any, error) {
	e, err := m.lookup(req)
	if err != nil {
		return nil, err
	}
	return e.dispatch(ctx, m, req)
}

// RegisterName maps name to the dynamic type of prototype so that Decode can
// construct it. Register already maps each request's RequestName; use this
// for aliases such as versioned wire names.
func (m *Mediator) RegisterName(name string, prototype any) error {
	t := reflect.TypeOf(prototype)
	if t == nil {
		return fmt.Errorf("mediator: nil prototype for %q", name)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if existing, ok := m.names[name]; ok && existing != t {
		return fmt.Errorf("%w: %q is %s", ErrNameExists, name, existing)
	}
	m.names[name] = t
	return nil
}

// Decode builds a new request of the type registered under name and
// unmarshals raw into it. Empty raw yields the zero request.
func (m *Mediator) Decode(name string, raw json.RawMessage) (any, error) {
	m.mu.RLock()
	t, ok := m.names[name]
	m.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownRequest, name)
	}

	var ptr reflect.Value
	if t.Kind() == reflect.Pointer {
		ptr = reflect.New(t.Elem())
	} else {
		ptr = reflect.New(t)
	}

	if len(raw) > 0 {
		if err := json.Unmarshal(raw, ptr.Interface()); err != nil {
			return nil, fmt.Errorf("decode %s: %w", name, err)
		}
	}

	if t.Kind() == reflect.Pointer {
		return ptr.Interface(), nil
	}
	return ptr.Elem().Interface(), nil
}

// Requests returns info about all registered handlers, sorted by name.
func (m *Mediator) Requests() []RequestInfo {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]RequestInfo, 0, len(m.handlers))
	for _, e := range m.handlers {
		result = append(result, e.info)
	}
	slices.SortFunc(result, func(a, b RequestInfo) int {
		switch {
		case a.Name < b.Name:
			return -1
		case a.Name > b.Name:
			return 1
		}
		return 0
	})
	return result
}

// Has reports whether a handler is registered for req's dynamic type.
func (m *Mediator) Has(req any) bool {
	_, ok := m.find(req)
	return ok
}

func (m *Mediator) lookup(req any) (*entry, error) {
	e, ok := m.find(req)
	if !ok {
		m.logger.Warn("no handler registered", behavior.F("request", behavior.RequestName(req)))
		return nil, fmt.Errorf("%w: %s", ErrNoHandler, behavior.RequestName(req))
	}
	return e, nil
}

func (m *Mediator) find(req any) (*entry, bool) {
	t := reflect.TypeOf(req)
	if t == nil {
		return nil, false
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.handlers[t]
	return e, ok
}

// behaviorsFor snapshots the mediator-wide behaviors that apply to c.
func (m *Mediator) behaviorsFor(c Category) []pipeline.Behavior[any, any] {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]pipeline.Behavior[any, any], 0, len(m.behaviors))
	for _, s := range m.behaviors {
		if s.appliesTo(c) {
			result = append(result, s.behavior)
		}
	}
	return result
}

func send[Req, Resp any](ctx context.Context, m *Mediator, h *handlerEntry[Req, Resp], req Req) (Resp, error) {
	var category Category
	if c, ok := any(req).(Categorized); ok {
		category = c.Category()
	}

	wide := m.behaviorsFor(category)
	chain := make([]pipeline.Behavior[Req, Resp], 0, len(wide)+len(h.behaviors))
	for _, b := range wide {
		chain = append(chain, adapt[Req, Resp](b))
	}
	chain = append(chain, h.behaviors...)

	return pipeline.Execute(ctx, req, h.handler, chain...)
}

// adapt runs an untyped behavior inside a typed chain. The untyped response
// is asserted back to Resp on the way out.
func adapt[Req, Resp any](b pipeline.Behavior[any, any]) pipeline.Behavior[Req, Resp] {
	return pipeline.BehaviorFunc[Req, Resp](func(ctx context.Context, req Req, next pipeline.Next[Resp]) (Resp, error) {
		out, err := b.Handle(ctx, req, func(ctx context.Context) (any, error) {
			return next(ctx)
		})
		if err != nil {
			resp, _ := out.(Resp)
			return resp, err
		}
		return assertResponse[Resp](out, fmt.Sprintf("%T", b))
	})
}

// assertResponse converts out to Resp. A nil out is the zero Resp.
func assertResponse[Resp any](out any, source string) (Resp, error) {
	var zero Resp
	if out == nil {
		return zero, nil
	}
	resp, ok := out.(Resp)
	if !ok {
		return zero, pipeline.NewContractViolation(pipeline.ErrTypeMismatch, "%s returned %T, want %s", source, out, reflect.TypeFor[Resp]())
	}
	return resp, nil
}

// newPrototype returns a non-nil value of t for naming and category lookup.
func newPrototype(t reflect.Type) any {
	if t.Kind() == reflect.Pointer {
		return reflect.New(t.Elem()).Interface()
	}
	return reflect.New(t).Elem().Interface()
}
