package behavior

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/felixgeelhaar/mediate/pipeline"
)

func TestTimeout(t *testing.T) {
	t.Run("allows fast requests through", func(t *testing.T) {
		resp, err := pipeline.Execute(context.Background(), greet{Name: "Ada"}, greetHandler, Timeout[greet, string](time.Second))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if resp != "hello Ada" {
			t.Errorf("resp = %q, want %q", resp, "hello Ada")
		}
	})

	t.Run("cancels slow requests", func(t *testing.T) {
		slow := func(ctx context.Context, req greet) (string, error) {
			select {
			case <-time.After(5 * time.Second):
				return "late", nil
			case <-ctx.Done():
				return "", ctx.Err()
			}
		}

		start := time.Now()
		_, err := pipeline.Execute(context.Background(), greet{}, slow, Timeout[greet, string](20*time.Millisecond))

		if !errors.Is(err, context.DeadlineExceeded) {
			t.Errorf("err = %v, want context.DeadlineExceeded", err)
		}
		if time.Since(start) > 2*time.Second {
			t.Error("timeout did not cancel the handler")
		}
		if Outcome(err) != OutcomeTimeout {
			t.Errorf("Outcome = %q, want %q", Outcome(err), OutcomeTimeout)
		}
	})

	t.Run("sets deadline on context", func(t *testing.T) {
		var hasDeadline bool
		handler := func(ctx context.Context, req greet) (string, error) {
			_, hasDeadline = ctx.Deadline()
			return "", nil
		}

		_, _ = pipeline.Execute(context.Background(), greet{}, handler, Timeout[greet, string](time.Minute))
		if !hasDeadline {
			t.Error("expected deadline on context")
		}
	})
}
