package pipeline

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"pgregory.net/rapid"
)

func TestExecuteOrderingProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		n := rapid.IntRange(0, 12).Draw(t, "behaviors")
		stopAt := rapid.IntRange(-1, n-1).Draw(t, "short_circuit_at")

		var events []string
		handlerCalls := 0
		stop := errors.New("stop")

		behaviors := make([]Behavior[int, int], 0, n)
		for i := 0; i < n; i++ {
			i := i
			behaviors = append(behaviors, BehaviorFunc[int, int](func(ctx context.Context, req int, next Next[int]) (int, error) {
				events = append(events, fmt.Sprintf("before-%d", i))
				if i == stopAt {
					return 0, stop
				}
				resp, err := next(ctx)
				events = append(events, fmt.Sprintf("after-%d", i))
				return resp, err
			}))
		}

		handler := func(ctx context.Context, req int) (int, error) {
			handlerCalls++
			return req * 2, nil
		}

		req := rapid.Int().Draw(t, "request")
		resp, err := Execute(context.Background(), req, handler, behaviors...)

		last := n - 1
		if stopAt >= 0 {
			last = stopAt
		}

		var expected []string
		for i := 0; i <= last; i++ {
			expected = append(expected, fmt.Sprintf("before-%d", i))
		}
		for i := last; i >= 0; i-- {
			if i == stopAt {
				continue
			}
			expected = append(expected, fmt.Sprintf("after-%d", i))
		}

		if len(events) != len(expected) {
			t.Fatalf("events = %v, want %v", events, expected)
		}
		for i := range expected {
			if events[i] != expected[i] {
				t.Fatalf("events[%d] = %q, want %q", i, events[i], expected[i])
			}
		}

		if stopAt >= 0 {
			if handlerCalls != 0 {
				t.Fatalf("handler called %d times after short-circuit", handlerCalls)
			}
			if !errors.Is(err, stop) {
				t.Fatalf("err = %v, want %v", err, stop)
			}
			return
		}

		if handlerCalls != 1 {
			t.Fatalf("handler calls = %d, want 1", handlerCalls)
		}
		if err != nil || resp != req*2 {
			t.Fatalf("resp, err = %d, %v; want %d, nil", resp, err, req*2)
		}
	})
}
