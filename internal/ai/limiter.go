package ai

import "context"

// limiter caps concurrent provider calls. A nil limiter admits everything.
type limiter struct {
	sem chan struct{}
}

func newLimiter(maxConcurrent int) *limiter {
	if maxConcurrent <= 0 {
		return nil
	}
	return &limiter{sem: make(chan struct{}, maxConcurrent)}
}

// acquire blocks until a slot is free or ctx is done.
func (l *limiter) acquire(ctx context.Context) (release func(), err error) {
	if l == nil {
		return func() {}, nil
	}
	select {
	case l.sem <- struct{}{}:
		return func() { <-l.sem }, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
