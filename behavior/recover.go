package behavior

import (
	"context"
	"fmt"

	"github.com/felixgeelhaar/mediate/pipeline"
)

// PanicError is returned by Recover when a later link panics.
type PanicError struct {
	Request string
	Value   any
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("panic while handling %s: %v", e.Request, e.Value)
}

// Unwrap returns the panic value when it is an error.
func (e *PanicError) Unwrap() error {
	err, _ := e.Value.(error)
	return err
}

// PanicHandler is called when a panic is recovered.
type PanicHandler func(ctx context.Context, req any, panicVal any) error

// Recover returns a behavior that catches panics from the rest of the chain
// and converts them to a *PanicError, so enclosing behaviors see an ordinary
// failure.
func Recover[Req, Resp any]() pipeline.Behavior[Req, Resp] {
	return RecoverWithHandler[Req, Resp](defaultPanicHandler)
}

// RecoverWithHandler returns a behavior that catches panics and calls the provided handler.
// This allows for custom panic handling such as logging or alerting.
func RecoverWithHandler[Req, Resp any](handler PanicHandler) pipeline.Behavior[Req, Resp] {
	return pipeline.BehaviorFunc[Req, Resp](func(ctx context.Context, req Req, next pipeline.Next[Resp]) (resp Resp, err error) {
		defer func() {
			if r := recover(); r != nil {
				var zero Resp
				resp, err = zero, handler(ctx, req, r)
			}
		}()
		return next(ctx)
	})
}

// defaultPanicHandler converts a panic value to a *PanicError.
func defaultPanicHandler(_ context.Context, req any, panicVal any) error {
	return &PanicError{Request: RequestName(req), Value: panicVal}
}
