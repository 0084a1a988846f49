// Package poller watches a customer environment after a backup pull until it
// has been ready long enough to be trusted, or until a ceiling is reached.
package poller

import (
	"context"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"

	"github.com/edvin/envdash/internal/model"
	"github.com/edvin/envdash/internal/platform"
)

const (
	DefaultInterval     = 60 * time.Second
	DefaultStableWindow = 2 * time.Minute
	DefaultMaxDuration  = 30 * time.Minute
)

var (
	pollsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "envdash_polls_active",
		Help: "Number of environment polls currently running",
	})

	pollsFinished = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "envdash_polls_finished_total",
		Help: "Finished environment polls by final phase",
	}, []string{"state"})
)

// Checker reports the current environment status for a customer: one of
// ready, not_ready or unavailable.
type Checker interface {
	Check(ctx context.Context, c model.Customer) (string, error)
}

// Timing holds the thresholds applied on every tick.
type Timing struct {
	StableWindow time.Duration
	MaxDuration  time.Duration
}

type Options struct {
	Interval     time.Duration
	StableWindow time.Duration
	MaxDuration  time.Duration
	Now          func() time.Time
	// After schedules the next tick. Defaults to time.After.
	After       func(time.Duration) <-chan time.Time
	BaseContext context.Context
}

// Poller runs at most one poll per customer. Polls for different customers
// are independent goroutines.
type Poller struct {
	checker  Checker
	interval time.Duration
	timing   Timing
	now      func() time.Time
	after    func(time.Duration) <-chan time.Time
	logger   zerolog.Logger

	baseCtx context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup

	mu     sync.Mutex
	active map[int]context.CancelFunc
	states map[int]model.PollState
}

func New(checker Checker, opts Options, logger zerolog.Logger) *Poller {
	if opts.Interval <= 0 {
		opts.Interval = DefaultInterval
	}
	if opts.StableWindow <= 0 {
		opts.StableWindow = DefaultStableWindow
	}
	if opts.MaxDuration <= 0 {
		opts.MaxDuration = DefaultMaxDuration
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.After == nil {
		opts.After = time.After
	}
	if opts.BaseContext == nil {
		opts.BaseContext = context.Background()
	}
	ctx, cancel := context.WithCancel(opts.BaseContext)

	return &Poller{
		checker:  checker,
		interval: opts.Interval,
		timing:   Timing{StableWindow: opts.StableWindow, MaxDuration: opts.MaxDuration},
		now:      opts.Now,
		after:    opts.After,
		logger:   logger.With().Str("component", "poller").Logger(),
		baseCtx:  ctx,
		cancel:   cancel,
		active:   make(map[int]context.CancelFunc),
		states:   make(map[int]model.PollState),
	}
}

// Start begins polling the customer's environment. If a poll is already
// running for the customer, its current state is returned with false.
func (p *Poller) Start(c model.Customer) (model.PollState, bool) {
	p.mu.Lock()
	if _, ok := p.active[c.ID]; ok {
		state := p.states[c.ID]
		p.mu.Unlock()
		return state, false
	}

	state := model.PollState{
		ID:         platform.NewID(),
		CustomerID: c.ID,
		Domain:     c.Domain,
		Phase:      model.PollPolling,
		StartedAt:  p.now().UTC(),
		LastStatus: model.EnvPendingValidation,
	}
	ctx, cancel := context.WithCancel(p.baseCtx)
	p.active[c.ID] = cancel
	p.states[c.ID] = state
	p.mu.Unlock()

	pollsActive.Inc()
	p.logger.Info().Int("customer_id", c.ID).Str("domain", c.Domain).Str("poll_id", state.ID).Msg("environment poll started")

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		defer p.finish(c.ID, cancel)
		p.run(ctx, c, state)
	}()
	return state, true
}

// State returns the latest state of the customer's most recent poll.
func (p *Poller) State(customerID int) (model.PollState, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	s, ok := p.states[customerID]
	return s, ok
}

// Active reports whether a poll is running for the customer.
func (p *Poller) Active(customerID int) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, ok := p.active[customerID]
	return ok
}

// Stop cancels every running poll and waits for them to exit.
func (p *Poller) Stop() {
	p.cancel()
	p.wg.Wait()
}

// Wait blocks until every running poll has reached a terminal state or been
// cancelled.
func (p *Poller) Wait() {
	p.wg.Wait()
}

func (p *Poller) run(ctx context.Context, c model.Customer, state model.PollState) {
	logger := p.logger.With().Int("customer_id", c.ID).Str("poll_id", state.ID).Logger()

	for {
		select {
		case <-ctx.Done():
			logger.Info().Msg("environment poll cancelled")
			return
		case <-p.after(p.interval):
		}

		status, err := p.checker.Check(ctx, c)
		if err != nil {
			if ctx.Err() != nil {
				logger.Info().Msg("environment poll cancelled")
				return
			}
			logger.Warn().Err(err).Msg("environment check failed")
			status = model.EnvUnavailable
		}

		state = Advance(state, status, p.now().UTC(), p.timing)

		p.mu.Lock()
		p.states[c.ID] = state
		p.mu.Unlock()

		logger.Debug().Str("status", status).Str("phase", state.Phase).Int("ticks", state.Ticks).Msg("environment poll tick")

		if state.Terminal() {
			pollsFinished.WithLabelValues(state.Phase).Inc()
			logger.Info().Str("phase", state.Phase).Str("status", state.LastStatus).Int("ticks", state.Ticks).Msg("environment poll finished")
			return
		}
	}
}

func (p *Poller) finish(customerID int, cancel context.CancelFunc) {
	cancel()
	p.mu.Lock()
	delete(p.active, customerID)
	p.mu.Unlock()
	pollsActive.Dec()
}

// Advance applies one observation to a polling state. A ready observation
// becomes stable once ready has been seen continuously for StableWindow. Any
// other observation resets the ready streak and times the poll out once
// MaxDuration has elapsed since it started.
// The streak is measured from the first ready observation, so a window of N
// intervals needs N+1 consecutive ready ticks.
func Advance(state model.PollState, observed string, now time.Time, t Timing) model.PollState {
	if state.Terminal() {
		return state
	}

	checked := now
	state.Ticks++
	state.LastStatus = observed
	state.LastCheckedAt = &checked

	if observed == model.EnvReady {
		if state.ReadySince == nil {
			since := now
			state.ReadySince = &since
		}
		if now.Sub(*state.ReadySince) >= t.StableWindow {
			state.Phase = model.PollStable
			state.FinishedAt = &checked
		}
		return state
	}

	state.ReadySince = nil
	if now.Sub(state.StartedAt) >= t.MaxDuration {
		state.Phase = model.PollTimedOut
		state.FinishedAt = &checked
	}
	return state
}
