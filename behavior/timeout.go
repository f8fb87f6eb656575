package behavior

import (
	"context"
	"time"

	"github.com/felixgeelhaar/mediate/pipeline"
)

// Timeout returns a behavior that enforces a deadline on the rest of the chain.
// Inner links observe the deadline through their context; the behavior does
// not abandon a link that ignores it.
func Timeout[Req, Resp any](d time.Duration) pipeline.Behavior[Req, Resp] {
	return pipeline.BehaviorFunc[Req, Resp](func(ctx context.Context, req Req, next pipeline.Next[Resp]) (Resp, error) {
		ctx, cancel := context.WithTimeout(ctx, d)
		defer cancel()
		return next(ctx)
	})
}
