package generation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/1001stories/stories-api/internal/platform/logger"
)

// Chain tries each Completer in order and returns the first successful
// reply. A blocked or empty prompt is not retried on the next provider.
type Chain struct {
	completers []Completer
}

var _ Completer = (*Chain)(nil)

// NewChain returns a Chain over primary followed by fallbacks. Nil entries
// are skipped. With a single usable completer NewChain returns it as is.
func NewChain(primary Completer, fallbacks ...Completer) Completer {
	all := make([]Completer, 0, 1+len(fallbacks))
	for _, c := range append([]Completer{primary}, fallbacks...) {
		if c != nil {
			all = append(all, c)
		}
	}
	if len(all) == 1 {
		return all[0]
	}
	return &Chain{completers: all}
}

// Name returns the primary provider name.
func (c *Chain) Name() string {
	if len(c.completers) == 0 {
		return "none"
	}
	return c.completers[0].Name()
}

// Complete implements Completer.
func (c *Chain) Complete(ctx context.Context, req Request) (*Response, error) {
	if len(c.completers) == 0 {
		return nil, ErrNotConfigured
	}

	log := logger.FromContext(ctx)
	var errs []error
	for i, completer := range c.completers {
		resp, err := completer.Complete(ctx, req)
		if err == nil {
			if i > 0 {
				log.Warn("served by fallback provider",
					slog.String("provider", completer.Name()),
					slog.Int("position", i))
			}
			return resp, nil
		}

		errs = append(errs, fmt.Errorf("%s: %w", completer.Name(), err))
		if errors.Is(err, ErrEmptyPrompt) || errors.Is(err, ErrContentBlocked) || ctx.Err() != nil {
			break
		}
		log.Warn("provider failed, trying next",
			slog.String("provider", completer.Name()),
			slog.String("error", err.Error()))
	}
	return nil, errors.Join(errs...)
}
