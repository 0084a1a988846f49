// Package validation memoizes environment probe results per domain and
// debounces validation requests per customer.
package validation

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/edvin/envdash/internal/model"
)

// DefaultCooldown is the minimum time between two validation requests for the
// same customer.
const DefaultCooldown = 5 * time.Second

var (
	validationRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "envdash_validation_requests_total",
		Help: "Validation requests by outcome (enqueued, cached, cooldown, skipped)",
	}, []string{"outcome"})

	cacheEntries = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "envdash_validation_cache_entries",
		Help: "Number of domains with a memoized probe result",
	})
)

// Prober runs a single environment probe. Implementations must not fail; all
// errors are reported inside the result.
type Prober interface {
	Probe(ctx context.Context, domain string) model.ProbeResult
}

type Options struct {
	Cooldown time.Duration
	Now      func() time.Time
	// BaseContext bounds every probe the orchestrator starts. Cancelling it
	// aborts in-flight probes.
	BaseContext context.Context
}

// Orchestrator owns the validation cache. Entries never expire; they are
// replaced only after an explicit Invalidate.
type Orchestrator struct {
	prober   Prober
	cooldown time.Duration
	now      func() time.Time
	baseCtx  context.Context
	logger   zerolog.Logger

	flights singleflight.Group
	wg      sync.WaitGroup

	mu          sync.Mutex
	entries     map[string]model.ProbeResult
	generations map[string]uint64
	queued      map[string]bool
	lastRequest map[int]time.Time
}

func New(prober Prober, opts Options, logger zerolog.Logger) *Orchestrator {
	if opts.Cooldown <= 0 {
		opts.Cooldown = DefaultCooldown
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.BaseContext == nil {
		opts.BaseContext = context.Background()
	}
	return &Orchestrator{
		prober:      prober,
		cooldown:    opts.Cooldown,
		now:         opts.Now,
		baseCtx:     opts.BaseContext,
		logger:      logger.With().Str("component", "validation").Logger(),
		entries:     make(map[string]model.ProbeResult),
		generations: make(map[string]uint64),
		queued:      make(map[string]bool),
		lastRequest: make(map[int]time.Time),
	}
}

// RequestValidation schedules a background probe for the customer's domain
// unless one is cached, already running, or the customer asked less than the
// cooldown ago. ITAR-hosted customers and customers without a domain are never
// probed. It reports whether a probe was scheduled.
func (o *Orchestrator) RequestValidation(c model.Customer) bool {
	if c.ITARHosting || !model.HasValidDomain(c.Domain) {
		validationRequests.WithLabelValues("skipped").Inc()
		return false
	}
	key := model.NormalizeDomain(c.Domain)
	now := o.now()

	o.mu.Lock()
	if last, ok := o.lastRequest[c.ID]; ok && now.Sub(last) < o.cooldown {
		o.mu.Unlock()
		validationRequests.WithLabelValues("cooldown").Inc()
		return false
	}
	gen := o.generations[key]
	fk := flightKey(key, gen)
	if _, ok := o.entries[key]; ok || o.queued[fk] {
		o.mu.Unlock()
		validationRequests.WithLabelValues("cached").Inc()
		return false
	}
	o.queued[fk] = true
	o.lastRequest[c.ID] = now
	o.mu.Unlock()

	validationRequests.WithLabelValues("enqueued").Inc()
	o.logger.Debug().Int("customer_id", c.ID).Str("domain", key).Msg("validation enqueued")

	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		o.flights.Do(fk, func() (any, error) {
			return o.probe(key, gen), nil
		})
		o.mu.Lock()
		delete(o.queued, fk)
		o.mu.Unlock()
	}()
	return true
}

// Validate returns the cached result for domain, probing it first if needed.
// Concurrent callers for the same domain share one probe. If ctx ends first,
// an unreachable result is returned and the shared probe keeps running.
func (o *Orchestrator) Validate(ctx context.Context, domain string) model.ProbeResult {
	if !model.HasValidDomain(domain) {
		return model.ProbeResult{
			Domain:    domain,
			Reason:    model.ReasonNetworkError,
			Error:     "invalid domain",
			CheckedAt: o.now().UTC(),
		}
	}
	key := model.NormalizeDomain(domain)

	o.mu.Lock()
	if r, ok := o.entries[key]; ok {
		o.mu.Unlock()
		return r
	}
	gen := o.generations[key]
	o.mu.Unlock()

	ch := o.flights.DoChan(flightKey(key, gen), func() (any, error) {
		return o.probe(key, gen), nil
	})
	select {
	case res := <-ch:
		return res.Val.(model.ProbeResult)
	case <-ctx.Done():
		return model.ProbeResult{
			Domain:    key,
			Reason:    model.ReasonNetworkError,
			Error:     ctx.Err().Error(),
			CheckedAt: o.now().UTC(),
		}
	}
}

// Refresh discards the cached result for domain and probes it again.
func (o *Orchestrator) Refresh(ctx context.Context, domain string) model.ProbeResult {
	o.Invalidate(domain)
	return o.Validate(ctx, domain)
}

// Invalidate drops the cached result for domain. Probes already running for
// the old entry finish but their result is discarded.
func (o *Orchestrator) Invalidate(domain string) {
	key := model.NormalizeDomain(domain)
	o.mu.Lock()
	delete(o.entries, key)
	o.generations[key]++
	cacheEntries.Set(float64(len(o.entries)))
	o.mu.Unlock()
}

// Entry returns the cached result for domain.
func (o *Orchestrator) Entry(domain string) (model.ProbeResult, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	r, ok := o.entries[model.NormalizeDomain(domain)]
	return r, ok
}

// Status returns the validation status for domain. A domain with no result
// yet is pending.
func (o *Orchestrator) Status(domain string) string {
	r, ok := o.Entry(domain)
	if !ok {
		return model.ValidationPending
	}
	return r.ValidationStatus()
}

// Len returns the number of cached results.
func (o *Orchestrator) Len() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.entries)
}

// Wait blocks until every probe scheduled by RequestValidation has finished.
func (o *Orchestrator) Wait() {
	o.wg.Wait()
}

func (o *Orchestrator) probe(key string, gen uint64) model.ProbeResult {
	// Double-check after the singleflight barrier.
	o.mu.Lock()
	if r, ok := o.entries[key]; ok && o.generations[key] == gen {
		o.mu.Unlock()
		return r
	}
	o.mu.Unlock()

	r := o.prober.Probe(o.baseCtx, key)

	o.mu.Lock()
	if o.generations[key] == gen {
		o.entries[key] = r
		cacheEntries.Set(float64(len(o.entries)))
	}
	o.mu.Unlock()

	o.logger.Debug().
		Str("domain", key).
		Str("status", r.ValidationStatus()).
		Msg("validation finished")
	return r
}

func flightKey(domain string, gen uint64) string {
	return domain + "#" + strconv.FormatUint(gen, 10)
}
