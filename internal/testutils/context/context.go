package context

import (
	"context"
	"testing"
	"time"
)

// fallback is used as a timeout for tests running without -timeout.
const fallback = 30 * time.Second

// WithTest wraps ctx with a deadline of t.
//
// The deadline is 1 second before test's deadline, to be able to clean-up resources.
// When the test has no deadline, the context is timed out after 30 seconds.
func WithTest(ctx context.Context, t *testing.T) (context.Context, context.CancelFunc) {
	if deadline, ok := t.Deadline(); ok {
		return context.WithDeadline(ctx, deadline.Add(-time.Second))
	}
	return context.WithTimeout(ctx, fallback)
}
