package poller

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edvin/envdash/internal/model"
)

var testTiming = Timing{StableWindow: 2 * time.Minute, MaxDuration: 30 * time.Minute}

func repeat(status string, n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = status
	}
	return out
}

// runSequence feeds observations at 60s ticks and returns every intermediate state.
func runSequence(observations []string) []model.PollState {
	start := time.Date(2026, 10, 16, 9, 0, 0, 0, time.UTC)
	state := model.PollState{Phase: model.PollPolling, StartedAt: start}
	var states []model.PollState
	for i, obs := range observations {
		state = Advance(state, obs, start.Add(time.Duration(i+1)*time.Minute), testTiming)
		states = append(states, state)
	}
	return states
}

// ---------- Advance ----------

func TestAdvance_ReadyStreakBecomesStable(t *testing.T) {
	seq := append(repeat(model.EnvNotReady, 29), model.EnvReady, model.EnvReady)
	states := runSequence(seq)

	last := states[len(states)-1]
	assert.Equal(t, model.PollPolling, last.Phase, "only 60s of ready observed so far")
	assert.Equal(t, 31, last.Ticks)
	require.NotNil(t, last.ReadySince)

	states = runSequence(append(seq, model.EnvReady))
	last = states[len(states)-1]
	assert.Equal(t, model.PollStable, last.Phase)
	assert.Equal(t, 2*time.Minute, last.LastCheckedAt.Sub(*last.ReadySince))
	require.NotNil(t, last.FinishedAt)
}

func TestAdvance_NeverStableBeforeWindow(t *testing.T) {
	states := runSequence(repeat(model.EnvReady, 3))
	assert.Equal(t, model.PollPolling, states[0].Phase)
	assert.Equal(t, model.PollPolling, states[1].Phase)
	assert.Equal(t, model.PollStable, states[2].Phase)
}

func TestAdvance_ReadyStreakResetByNotReady(t *testing.T) {
	states := runSequence([]string{
		model.EnvReady, model.EnvReady, model.EnvNotReady, model.EnvReady, model.EnvReady,
	})
	last := states[len(states)-1]
	assert.Equal(t, model.PollPolling, last.Phase)
	assert.Equal(t, states[3].ReadySince, last.ReadySince)
	assert.Nil(t, states[2].ReadySince)
}

func TestAdvance_TimesOutWithoutReady(t *testing.T) {
	states := runSequence(repeat(model.EnvNotReady, 30))

	assert.Equal(t, model.PollPolling, states[28].Phase)
	last := states[29]
	assert.Equal(t, model.PollTimedOut, last.Phase)
	assert.Equal(t, model.EnvNotReady, last.LastStatus)
	require.NotNil(t, last.FinishedAt)
}

func TestAdvance_UnavailableKeepsPollingAndIsReported(t *testing.T) {
	states := runSequence([]string{model.EnvUnavailable, model.EnvNotReady, model.EnvUnavailable})
	last := states[len(states)-1]
	assert.Equal(t, model.PollPolling, last.Phase)
	assert.Equal(t, model.EnvUnavailable, last.LastStatus)

	states = runSequence(repeat(model.EnvUnavailable, 30))
	last = states[len(states)-1]
	assert.Equal(t, model.PollTimedOut, last.Phase)
	assert.Equal(t, model.EnvUnavailable, last.LastStatus)
}

func TestAdvance_TerminalStateIsFinal(t *testing.T) {
	state := model.PollState{Phase: model.PollStable, Ticks: 3}
	next := Advance(state, model.EnvNotReady, time.Now(), testTiming)
	assert.Equal(t, state, next)
}

// ---------- Poller ----------

// scriptedChecker returns observations in order and repeats the last one.
type scriptedChecker struct {
	mu    sync.Mutex
	seq   []string
	errs  map[int]error
	calls int
}

func (s *scriptedChecker) Check(_ context.Context, _ model.Customer) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.calls
	s.calls++
	if err, ok := s.errs[i]; ok {
		return "", err
	}
	if i >= len(s.seq) {
		return s.seq[len(s.seq)-1], nil
	}
	return s.seq[i], nil
}

func (s *scriptedChecker) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

// instantClock advances virtual time by the requested delay and fires at once.
type instantClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *instantClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *instantClock) After(d time.Duration) <-chan time.Time {
	c.mu.Lock()
	c.now = c.now.Add(d)
	now := c.now
	c.mu.Unlock()
	ch := make(chan time.Time, 1)
	ch <- now
	return ch
}

func newTestPoller(checker Checker, clock *instantClock) *Poller {
	return New(checker, Options{
		Interval:     time.Minute,
		StableWindow: 2 * time.Minute,
		MaxDuration:  30 * time.Minute,
		Now:          clock.Now,
		After:        clock.After,
	}, zerolog.Nop())
}

func TestPoller_ReachesStable(t *testing.T) {
	clock := &instantClock{now: time.Date(2026, 10, 16, 9, 0, 0, 0, time.UTC)}
	checker := &scriptedChecker{seq: append(repeat(model.EnvNotReady, 5), model.EnvReady)}
	p := newTestPoller(checker, clock)

	state, started := p.Start(model.Customer{ID: 7, Domain: "acme"})
	require.True(t, started)
	assert.Equal(t, model.PollPolling, state.Phase)
	assert.NotEmpty(t, state.ID)

	p.Wait()

	final, ok := p.State(7)
	require.True(t, ok)
	assert.Equal(t, model.PollStable, final.Phase)
	assert.Equal(t, model.EnvReady, final.LastStatus)
	assert.Equal(t, 8, final.Ticks)
	assert.Equal(t, 8, checker.Calls())
	assert.False(t, p.Active(7))
}

func TestPoller_TimesOut(t *testing.T) {
	clock := &instantClock{now: time.Date(2026, 10, 16, 9, 0, 0, 0, time.UTC)}
	checker := &scriptedChecker{seq: []string{model.EnvNotReady}}
	p := newTestPoller(checker, clock)

	p.Start(model.Customer{ID: 7, Domain: "acme"})
	p.Wait()

	final, ok := p.State(7)
	require.True(t, ok)
	assert.Equal(t, model.PollTimedOut, final.Phase)
	assert.Equal(t, 30, checker.Calls())
}

func TestPoller_CheckErrorTreatedAsUnavailable(t *testing.T) {
	clock := &instantClock{now: time.Date(2026, 10, 16, 9, 0, 0, 0, time.UTC)}
	checker := &scriptedChecker{
		seq:  []string{model.EnvNotReady, model.EnvReady},
		errs: map[int]error{0: errors.New("boom")},
	}
	p := newTestPoller(checker, clock)

	p.Start(model.Customer{ID: 7, Domain: "acme"})
	p.Wait()

	// unavailable, not_ready, then three ready ticks spanning two minutes.
	final, _ := p.State(7)
	assert.Equal(t, model.PollStable, final.Phase)
	assert.Equal(t, 5, final.Ticks)
}

func TestPoller_StartIsIdempotentWhileActive(t *testing.T) {
	gate := make(chan time.Time)
	checker := &scriptedChecker{seq: []string{model.EnvReady}}
	p := New(checker, Options{
		Interval: time.Minute,
		After:    func(time.Duration) <-chan time.Time { return gate },
	}, zerolog.Nop())

	first, started := p.Start(model.Customer{ID: 7, Domain: "acme"})
	require.True(t, started)

	second, started := p.Start(model.Customer{ID: 7, Domain: "acme"})
	assert.False(t, started)
	assert.Equal(t, first.ID, second.ID)
	assert.True(t, p.Active(7))

	other, started := p.Start(model.Customer{ID: 8, Domain: "globex"})
	assert.True(t, started)
	assert.NotEqual(t, first.ID, other.ID)

	p.Stop()
	assert.False(t, p.Active(7))
	assert.False(t, p.Active(8))
	assert.Equal(t, 0, checker.Calls())
}

func TestPoller_RestartAfterTerminal(t *testing.T) {
	clock := &instantClock{now: time.Date(2026, 10, 16, 9, 0, 0, 0, time.UTC)}
	checker := &scriptedChecker{seq: []string{model.EnvReady}}
	p := newTestPoller(checker, clock)

	first, _ := p.Start(model.Customer{ID: 7, Domain: "acme"})
	p.Wait()

	second, started := p.Start(model.Customer{ID: 7, Domain: "acme"})
	require.True(t, started)
	assert.NotEqual(t, first.ID, second.ID)
	p.Wait()
}
