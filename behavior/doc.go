// Package behavior provides reference pipeline behaviors for cross-cutting
// concerns.
//
// Every constructor is generic over the request and response types, so the
// same behavior serves a typed pipeline.Pipeline[CreateEmployee, Employee] or
// the untyped [any, any] chain a mediator applies to every request.
//
// # Basic Usage
//
//	p := pipeline.New(handler,
//	    behavior.Recover[CreateEmployee, Employee](),
//	    behavior.RequestID[CreateEmployee, Employee](),
//	    behavior.Logging[CreateEmployee, Employee](logger),
//	    behavior.ValidateWith[CreateEmployee, Employee](validator),
//	)
//
// # Available Behaviors
//
//   - Recover: Converts panics into *PanicError
//   - RequestID: Injects unique request IDs into the context
//   - Logging: Logs entry, then success or failure with timing
//   - Authorize: Authenticates the caller and applies policies
//   - Validation: Runs registered validators and short-circuits on field errors
//   - Timeout: Enforces request deadlines
//   - RateLimit: Token bucket limiting per key
//   - OTel: OpenTelemetry spans and metrics
//   - Observe: Prometheus counters and histograms
//
// # Default Stacks
//
//	// Recover + RequestID + Logging + Validation
//	stack := behavior.DefaultStack(logger, registry)
//
//	// Recover + RequestID + Logging + Authorize + Validation
//	stack := behavior.SecureStack(logger, registry, authenticator)
//
// Authorize sits before Validation so unauthenticated requests never run
// business-rule validators.
//
// # Custom Behaviors
//
//	func Audit[Req, Resp any](sink AuditSink) pipeline.Behavior[Req, Resp] {
//	    return pipeline.BehaviorFunc[Req, Resp](func(ctx context.Context, req Req, next pipeline.Next[Resp]) (Resp, error) {
//	        resp, err := next(ctx)
//	        sink.Record(ctx, req, err)
//	        return resp, err
//	    })
//	}
package behavior
