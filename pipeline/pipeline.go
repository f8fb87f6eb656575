// Package pipeline executes an ordered chain of behaviors around a terminal handler.
package pipeline

import (
	"context"
	"fmt"
	"sync/atomic"
)

// Handler is the terminal handler that produces the business response.
type Handler[Req, Resp any] func(ctx context.Context, req Req) (Resp, error)

// Next is the continuation handed to a behavior. The request is bound by the
// pipeline; only the context is passed so behaviors can derive it.
type Next[Resp any] func(ctx context.Context) (Resp, error)

// Behavior wraps the handling of a request with pre and post logic.
//
// A behavior either calls next exactly once, or never calls it and returns its
// own response or error. Calling next a second time returns a
// *ContractViolation.
type Behavior[Req, Resp any] interface {
	Handle(ctx context.Context, req Req, next Next[Resp]) (Resp, error)
}

// BehaviorFunc is an adapter to allow ordinary functions as behaviors.
type BehaviorFunc[Req, Resp any] func(ctx context.Context, req Req, next Next[Resp]) (Resp, error)

// Handle calls f(ctx, req, next).
func (f BehaviorFunc[Req, Resp]) Handle(ctx context.Context, req Req, next Next[Resp]) (Resp, error) {
	return f(ctx, req, next)
}

// Execute runs req through behaviors and handler.
// Behaviors are applied in order, so Execute(ctx, req, h, b1, b2, b3) results in
// b1 wrapping b2 wrapping b3 wrapping h. The call chain is built fresh for
// every call and discarded afterwards.
func Execute[Req, Resp any](ctx context.Context, req Req, handler Handler[Req, Resp], behaviors ...Behavior[Req, Resp]) (Resp, error) {
	if handler == nil {
		var zero Resp
		return zero, newViolation(ErrNilHandler, "no terminal handler for %T", req)
	}

	next := Next[Resp](func(ctx context.Context) (Resp, error) {
		return handler(ctx, req)
	})

	// Fold from last to first so the first behavior ends up outermost
	for i := len(behaviors) - 1; i >= 0; i-- {
		b := behaviors[i]
		if b == nil {
			var zero Resp
			return zero, newViolation(ErrNilBehavior, "behavior %d is nil", i)
		}
		inner := once(next, b)
		next = func(ctx context.Context) (Resp, error) {
			return b.Handle(ctx, req, inner)
		}
	}

	return next(ctx)
}

// once guards a continuation so that only its first call reaches the inner chain.
func once[Req, Resp any](next Next[Resp], owner Behavior[Req, Resp]) Next[Resp] {
	var called atomic.Bool
	return func(ctx context.Context) (Resp, error) {
		if !called.CompareAndSwap(false, true) {
			var zero Resp
			return zero, newViolation(ErrNextCalledTwice, "%T called next more than once", owner)
		}
		return next(ctx)
	}
}

// Chain composes multiple behaviors into a single behavior.
// Chain(b1, b2) behaves like b1 wrapping b2.
func Chain[Req, Resp any](behaviors ...Behavior[Req, Resp]) Behavior[Req, Resp] {
	return BehaviorFunc[Req, Resp](func(ctx context.Context, req Req, next Next[Resp]) (Resp, error) {
		return Execute(ctx, req, func(ctx context.Context, _ Req) (Resp, error) {
			return next(ctx)
		}, behaviors...)
	})
}

// Wrap returns a handler that runs every call through behaviors and handler.
func Wrap[Req, Resp any](handler Handler[Req, Resp], behaviors ...Behavior[Req, Resp]) Handler[Req, Resp] {
	bs := append([]Behavior[Req, Resp](nil), behaviors...)
	return func(ctx context.Context, req Req) (Resp, error) {
		return Execute(ctx, req, handler, bs...)
	}
}

// Pipeline provides a fluent API for building a behavior chain around a handler.
// Use must not be called concurrently with Send.
type Pipeline[Req, Resp any] struct {
	handler   Handler[Req, Resp]
	behaviors []Behavior[Req, Resp]
}

// New creates a pipeline for handler with the given behaviors.
func New[Req, Resp any](handler Handler[Req, Resp], behaviors ...Behavior[Req, Resp]) *Pipeline[Req, Resp] {
	return &Pipeline[Req, Resp]{
		handler:   handler,
		behaviors: append([]Behavior[Req, Resp](nil), behaviors...),
	}
}

// Use appends behaviors to the pipeline and returns the updated pipeline.
func (p *Pipeline[Req, Resp]) Use(behaviors ...Behavior[Req, Resp]) *Pipeline[Req, Resp] {
	p.behaviors = append(p.behaviors, behaviors...)
	return p
}

// Len returns the number of behaviors in the pipeline.
func (p *Pipeline[Req, Resp]) Len() int {
	return len(p.behaviors)
}

// Send dispatches req through the pipeline.
func (p *Pipeline[Req, Resp]) Send(ctx context.Context, req Req) (Resp, error) {
	return Execute(ctx, req, p.handler, p.behaviors...)
}

// Handler returns the pipeline as a plain handler.
func (p *Pipeline[Req, Resp]) Handler() Handler[Req, Resp] {
	return Wrap(p.handler, p.behaviors...)
}

// String describes the pipeline for debugging.
func (p *Pipeline[Req, Resp]) String() string {
	var req Req
	var resp Resp
	return fmt.Sprintf("pipeline[%T -> %T] (%d behaviors)", req, resp, len(p.behaviors))
}
