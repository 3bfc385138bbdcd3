package llm

import (
	"context"
	"sync/atomic"

	"github.com/spaceboy202105/chatbot-test/internal/domain"
)

// newFragmentSeq wraps produce so that it can only be iterated once.
func newFragmentSeq(produce func(yield func(string, error) bool)) FragmentSeq {
	var used atomic.Bool
	return func(yield func(string, error) bool) {
		if used.Swap(true) {
			yield("", domain.ErrStreamConsumed)
			return
		}
		produce(yield)
	}
}

// FragmentsOf returns a sequence that yields each fragment in order.
func FragmentsOf(fragments ...string) FragmentSeq {
	return newFragmentSeq(func(yield func(string, error) bool) {
		for _, f := range fragments {
			if !yield(f, nil) {
				return
			}
		}
	})
}

// streamBlocking exposes a blocking call as a one-fragment stream. The call
// runs on its own goroutine so the consumer stays responsive to ctx.
func streamBlocking(ctx context.Context, call func(context.Context) (string, error)) FragmentSeq {
	return newFragmentSeq(func(yield func(string, error) bool) {
		type result struct {
			text string
			err  error
		}
		done := make(chan result, 1)
		go func() {
			text, err := call(ctx)
			done <- result{text: text, err: err}
		}()

		select {
		case <-ctx.Done():
			yield("", ctx.Err())
		case r := <-done:
			if r.err != nil {
				yield("", r.err)
				return
			}
			if r.text != "" {
				yield(r.text, nil)
			}
		}
	})
}
