// Package pipeline runs a request through an ordered chain of behaviors
// wrapped around a terminal handler.
//
// Each behavior receives the request and a continuation. It may run logic
// before and after calling the continuation, transform the result, or return
// without calling it at all (short-circuit).
//
// # Basic Usage
//
//	resp, err := pipeline.Execute(ctx, req, handler,
//	    logging,
//	    validation,
//	)
//
// The first behavior is the outermost wrapper: "before" logic runs in
// registration order and "after" logic runs in reverse order.
//
//	logging before -> validation before -> handler -> validation after -> logging after
//
// # Reusable Pipelines
//
//	p := pipeline.New(handler).Use(logging, validation)
//	resp, err := p.Send(ctx, req)
//
// A fresh call chain is built for every Send, so a Pipeline and its behaviors
// may be shared by concurrent callers as long as the behaviors themselves keep
// no per-request state in shared fields.
//
// # Custom Behaviors
//
//	audit := pipeline.BehaviorFunc[CreateEmployee, Employee](
//	    func(ctx context.Context, req CreateEmployee, next pipeline.Next[Employee]) (Employee, error) {
//	        emp, err := next(ctx)
//	        if err == nil {
//	            record(emp)
//	        }
//	        return emp, err
//	    })
//
// The continuation may be called at most once. A second call returns a
// *ContractViolation matching ErrNextCalledTwice and the inner chain does not
// run again.
package pipeline
