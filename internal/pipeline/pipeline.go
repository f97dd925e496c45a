// Package pipeline runs one domain's fetch for a selection generation and
// commits the outcome only while that generation is still current.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"fleet_dashboard/internal/logger"
	"fleet_dashboard/internal/metrics"
	"fleet_dashboard/internal/models"
)

// Guard is the part of the selection store a pipeline needs.
type Guard interface {
	Token() models.Token
	// IfCurrent runs fn while token is current and no mutation can
	// interleave. It reports whether fn ran.
	IfCurrent(token models.Token, fn func()) bool
}

// FetchFunc loads one domain for a selection.
type FetchFunc[R any] func(ctx context.Context, sel models.Selection) (R, error)

// Result is the outcome of one Load.
type Result[R any] struct {
	Domain models.Domain
	Status models.Status
	Token  models.Token
	Data   R
	Kind   models.ErrorKind
	Err    error
}

// Summary is a one-line, user facing description of a failure.
func (r Result[R]) Summary() string {
	if r.Err == nil {
		return ""
	}
	switch r.Kind {
	case models.KindMalformedResponse:
		return fmt.Sprintf("%s data could not be read: %v", r.Domain, r.Err)
	default:
		return fmt.Sprintf("%s data could not be loaded: %v", r.Domain, r.Err)
	}
}

type Options[R any] struct {
	// Timeout bounds a single fetch. Zero means no bound beyond ctx.
	Timeout time.Duration
	// OnCommit runs under the guard for Loaded and Failed results of the
	// current generation.
	OnCommit func(Result[R])
	Log      *logger.Logger
}

// Pipeline is safe for concurrent Loads; they are ordered by token only.
type Pipeline[R any] struct {
	domain models.Domain
	fetch  FetchFunc[R]
	guard  Guard
	opts   Options[R]

	mu    sync.Mutex
	state Result[R]
}

func New[R any](domain models.Domain, fetch FetchFunc[R], guard Guard, opts Options[R]) *Pipeline[R] {
	return &Pipeline[R]{
		domain: domain,
		fetch:  fetch,
		guard:  guard,
		opts:   opts,
		state:  Result[R]{Domain: domain, Status: models.StatusIdle},
	}
}

func (p *Pipeline[R]) Domain() models.Domain { return p.domain }

// State returns the last committed (or loading) result.
func (p *Pipeline[R]) State() Result[R] {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Load fetches sel for token and commits the outcome if token is still
// current when the fetch completes. A superseded result is returned with
// StatusStale and leaves State untouched.
func (p *Pipeline[R]) Load(ctx context.Context, sel models.Selection, token models.Token) Result[R] {
	if p.guard.Token() != token {
		return p.stale(token, 0)
	}
	p.markLoading(token)

	fctx := ctx
	if p.opts.Timeout > 0 {
		var cancel context.CancelFunc
		fctx, cancel = context.WithTimeout(ctx, p.opts.Timeout)
		defer cancel()
	}

	started := time.Now()
	data, err := p.fetch(fctx, sel)
	elapsed := time.Since(started)
	metrics.FetchDuration.WithLabelValues(string(p.domain)).Observe(elapsed.Seconds())

	res := Result[R]{Domain: p.domain, Token: token}
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) && !errors.Is(err, models.ErrNetworkFailure) {
			err = fmt.Errorf("%w: timed out after %s", models.ErrNetworkFailure, elapsed.Round(time.Millisecond))
		}
		res.Status = models.StatusFailed
		res.Kind = models.KindOf(err)
		res.Err = err
	} else {
		res.Status = models.StatusLoaded
		res.Data = data
	}

	committed := p.guard.IfCurrent(token, func() {
		p.mu.Lock()
		p.state = res
		p.mu.Unlock()
		if p.opts.OnCommit != nil {
			p.opts.OnCommit(res)
		}
	})
	if !committed {
		return p.stale(token, elapsed)
	}

	metrics.FetchTotal.WithLabelValues(string(p.domain), string(res.Status)).Inc()
	if res.Status == models.StatusFailed && p.opts.Log != nil {
		p.opts.Log.Warnw("panel_failed",
			"domain", p.domain,
			"token", token,
			"kind", res.Kind,
			"error", err,
		)
	}
	return res
}

func (p *Pipeline[R]) markLoading(token models.Token) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if token < p.state.Token {
		return
	}
	var zero R
	p.state = Result[R]{Domain: p.domain, Status: models.StatusLoading, Token: token, Data: zero}
}

func (p *Pipeline[R]) stale(token models.Token, elapsed time.Duration) Result[R] {
	metrics.FetchTotal.WithLabelValues(string(p.domain), string(models.StatusStale)).Inc()
	if p.opts.Log != nil {
		p.opts.Log.Debugw("fetch_stale",
			"domain", p.domain,
			"token", token,
			"elapsed", elapsed,
		)
	}
	return Result[R]{Domain: p.domain, Status: models.StatusStale, Token: token}
}
