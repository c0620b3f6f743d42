// Package extract turns a fetched email into a reconciliation candidate.
package extract

import (
	"context"
	"errors"

	"golang.org/x/time/rate"

	"jobtrack-engine/internal/domain"
	"jobtrack-engine/internal/mailbox"
)

// ErrNotApplication is returned when a message is clearly not about a job application.
var ErrNotApplication = errors.New("not a job application email")

type Extractor interface {
	Extract(ctx context.Context, m mailbox.Message) (domain.Candidate, error)
}

type Func func(ctx context.Context, m mailbox.Message) (domain.Candidate, error)

func (f Func) Extract(ctx context.Context, m mailbox.Message) (domain.Candidate, error) {
	return f(ctx, m)
}

// Limited throttles an Extractor, typically one that calls a hosted model.
type Limited struct {
	Next    Extractor
	Limiter *rate.Limiter
}

// NewLimited returns ex unchanged when perSec is not positive.
func NewLimited(ex Extractor, perSec float64, burst int) Extractor {
	if perSec <= 0 {
		return ex
	}
	if burst <= 0 {
		burst = 1
	}
	return &Limited{Next: ex, Limiter: rate.NewLimiter(rate.Limit(perSec), burst)}
}

func (l *Limited) Extract(ctx context.Context, m mailbox.Message) (domain.Candidate, error) {
	if err := l.Limiter.Wait(ctx); err != nil {
		return domain.Candidate{}, err
	}
	return l.Next.Extract(ctx, m)
}
