// Package prober checks whether a customer's development environment serves
// its own login page or has been redirected to the vendor's main site.
package prober

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"

	"github.com/edvin/envdash/internal/model"
	"github.com/edvin/envdash/internal/platform"
)

// LoginPath is requested on every probe.
const LoginPath = "/auth/login_new"

var (
	probeTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "envdash_probe_total",
		Help: "Total environment probes by result",
	}, []string{"result"})

	probeDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "envdash_probe_duration_seconds",
		Help:    "Environment probe duration in seconds",
		Buckets: prometheus.DefBuckets,
	})
)

// Options configures a Prober.
type Options struct {
	DevHostSuffix  string
	MainSiteDomain string
	Timeout        time.Duration
	MaxRedirects   int
	// Transport overrides the HTTP transport. Nil uses http.DefaultTransport.
	Transport http.RoundTripper
	Now       func() time.Time
}

// Prober issues single HTTP probes against development environments. It holds
// no mutable state and is safe for concurrent use.
type Prober struct {
	suffix     string
	mainDomain string
	httpClient *http.Client
	now        func() time.Time
	logger     zerolog.Logger
}

func New(opts Options, logger zerolog.Logger) *Prober {
	if opts.Timeout <= 0 {
		opts.Timeout = 5 * time.Second
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	maxRedirects := opts.MaxRedirects

	return &Prober{
		suffix:     opts.DevHostSuffix,
		mainDomain: strings.ToLower(opts.MainSiteDomain),
		now:        opts.Now,
		logger:     logger.With().Str("component", "prober").Logger(),
		httpClient: &http.Client{
			Timeout:   opts.Timeout,
			Transport: opts.Transport,
			CheckRedirect: func(_ *http.Request, via []*http.Request) error {
				if len(via) > maxRedirects {
					return fmt.Errorf("stopped after %d redirects", maxRedirects)
				}
				return nil
			},
		},
	}
}

// URL returns the probe URL for a domain.
func (p *Prober) URL(domain string) string {
	return "http://" + platform.DevHostname(domain, p.suffix) + LoginPath
}

// Probe requests the environment login page for domain and classifies the
// outcome. It never fails: every error is reported as an unreachable result.
func (p *Prober) Probe(ctx context.Context, domain string) model.ProbeResult {
	start := time.Now()
	result := p.probe(ctx, domain)
	result.Domain = domain
	result.CheckedAt = p.now().UTC()

	probeDuration.Observe(time.Since(start).Seconds())
	probeTotal.WithLabelValues(resultLabel(result)).Inc()

	p.logger.Debug().
		Str("domain", domain).
		Bool("reachable", result.Reachable).
		Int("status", result.HTTPStatus).
		Str("final_url", result.FinalURL).
		Str("reason", result.Reason).
		Msg("probe finished")

	return result
}

func (p *Prober) probe(ctx context.Context, domain string) model.ProbeResult {
	target := p.URL(domain)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return model.ProbeResult{Reason: model.ReasonNetworkError, Error: err.Error()}
	}
	req.Header.Set("User-Agent", "envdash-prober/1.0")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return model.ProbeResult{Reason: model.ReasonNetworkError, Error: err.Error()}
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))

	finalURL := resp.Request.URL.String()

	if resp.StatusCode >= 500 {
		return model.ProbeResult{
			HTTPStatus: resp.StatusCode,
			FinalURL:   finalURL,
			Reason:     model.ReasonAPIError,
			Error:      fmt.Sprintf("environment returned status %d", resp.StatusCode),
		}
	}

	if p.redirectedToMainSite(finalURL, domain) {
		return model.ProbeResult{
			HTTPStatus: resp.StatusCode,
			FinalURL:   finalURL,
			Reason:     model.ReasonRedirectedToMainSite,
		}
	}

	return model.ProbeResult{
		Reachable:  true,
		HTTPStatus: resp.StatusCode,
		FinalURL:   finalURL,
	}
}

// redirectedToMainSite reports whether the final URL points at the vendor's
// main site rather than the customer's environment.
func (p *Prober) redirectedToMainSite(finalURL, domain string) bool {
	if p.mainDomain == "" {
		return false
	}
	u := strings.ToLower(finalURL)
	return strings.Contains(u, p.mainDomain) && !strings.Contains(u, model.NormalizeDomain(domain))
}

func resultLabel(r model.ProbeResult) string {
	if r.Reachable {
		return "reachable"
	}
	return r.Reason
}
