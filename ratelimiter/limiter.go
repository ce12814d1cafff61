// Package ratelimiter implements the per-extractor-kind adaptive pacing gate
// described by the component design: it never rejects a call, it only slows
// callers down in response to observed success/failure signals.
package ratelimiter

import (
	"context"
	"sync"
	"time"

	"github.com/rudderlabs/rudder-go-kit/config"
	"github.com/rudderlabs/rudder-go-kit/logger"
	"github.com/rudderlabs/rudder-go-kit/stats"
	"go.uber.org/atomic"
)

const (
	initialDelay     = 100 * time.Millisecond
	successThreshold = 3
	minStress        = 1.0
	maxStress        = 16.0

	// globalFailureStreak/globalSuccessStreak are the cross-kind windows
	// release observes to drive the global stress signal: enough
	// back-to-back failures across any mix of kinds means "stress", enough
	// back-to-back successes means "calm", per spec §4.4.
	globalFailureStreak = 3
	globalSuccessStreak = 5
)

// Outcome describes how a call completed, for Release to adjust state on.
type Outcome int

const (
	Success Outcome = iota
	Failure
)

type kindState struct {
	mu                  sync.Mutex
	delay               time.Duration
	consecutiveSuccess  int
	consecutiveFailure  int
	inFlight            chan struct{}
	maxInFlight         int
}

func newKindState(maxInFlight int) *kindState {
	return &kindState{
		delay:       initialDelay,
		inFlight:    make(chan struct{}, maxInFlight),
		maxInFlight: maxInFlight,
	}
}

// Limiter holds per-kind pacing state plus a process-wide stress multiplier
// that every kind's delay is scaled by.
type Limiter struct {
	mu    sync.Mutex
	kinds map[string]*kindState

	stressMultiplier atomic.Float64
	maxInFlight      int
	minDelay         time.Duration
	maxDelay         time.Duration

	globalConsecutiveFailure atomic.Int32
	globalConsecutiveSuccess atomic.Int32

	log   logger.Logger
	stats stats.Stats
}

func New(maxInFlight int, log logger.Logger, st stats.Stats) *Limiter {
	if maxInFlight <= 0 {
		maxInFlight = config.GetIntVar(8, 1, "SfmcInventory.RateLimiter.defaultMaxInFlight")
	}
	l := &Limiter{
		kinds:       make(map[string]*kindState),
		maxInFlight: maxInFlight,
		minDelay:    config.GetDurationVar(50, time.Millisecond, "SfmcInventory.RateLimiter.minDelay"),
		maxDelay:    config.GetDurationVar(30, time.Second, "SfmcInventory.RateLimiter.maxDelay"),
		log:         log.Child("rate-limiter"),
		stats:       st,
	}
	l.stressMultiplier.Store(minStress)
	return l
}

func (l *Limiter) stateFor(kind string) *kindState {
	l.mu.Lock()
	defer l.mu.Unlock()
	st, ok := l.kinds[kind]
	if !ok {
		st = newKindState(l.maxInFlight)
		l.kinds[kind] = st
	}
	return st
}

// Acquire waits until fewer than maxInFlight calls of this kind are
// outstanding, then sleeps delay*stressMultiplier before returning. The
// returned release func must be called exactly once, with the outcome of the
// call it gated.
func (l *Limiter) Acquire(ctx context.Context, kind string) (release func(Outcome), err error) {
	st := l.stateFor(kind)

	select {
	case st.inFlight <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	st.mu.Lock()
	delay := st.delay
	st.mu.Unlock()

	sleepFor := time.Duration(float64(delay) * l.stressMultiplier.Load())
	select {
	case <-time.After(sleepFor):
	case <-ctx.Done():
		<-st.inFlight
		return nil, ctx.Err()
	}

	var released atomic.Bool
	return func(outcome Outcome) {
		if released.Swap(true) {
			return
		}
		l.release(kind, st, outcome)
		<-st.inFlight
	}, nil
}

func (l *Limiter) release(kind string, st *kindState, outcome Outcome) {
	st.mu.Lock()
	switch outcome {
	case Success:
		st.consecutiveFailure = 0
		st.consecutiveSuccess++
		if st.consecutiveSuccess >= successThreshold {
			st.delay = maxDuration(l.minDelay, st.delay/2)
			st.consecutiveSuccess = 0
		}
	case Failure:
		st.consecutiveSuccess = 0
		st.consecutiveFailure++
		st.delay = minDuration(l.maxDelay, st.delay*2)
	}
	delay := st.delay
	st.mu.Unlock()

	if l.stats != nil {
		l.stats.NewTaggedStat("sfmc_rate_limiter_delay_ms", stats.GaugeType, stats.Tags{"kind": kind}).Gauge(float64(delay.Milliseconds()))
	}

	l.observeGlobal(outcome)
}

// observeGlobal tracks outcomes across every kind's release calls, not just
// this one's, and trips the global stress/calm signal on a cross-kind streak.
// This is what makes ReportStress/ReportCalm fire from real traffic: every
// REST and SOAP call already reports its outcome here via Acquire's release
// func, so a run of failures on one kind immediately slows every other kind
// down too, and a clean run anywhere lets the whole limiter cool back off.
func (l *Limiter) observeGlobal(outcome Outcome) {
	switch outcome {
	case Success:
		l.globalConsecutiveFailure.Store(0)
		if l.globalConsecutiveSuccess.Add(1) >= globalSuccessStreak {
			l.globalConsecutiveSuccess.Store(0)
			l.ReportCalm()
		}
	case Failure:
		l.globalConsecutiveSuccess.Store(0)
		if l.globalConsecutiveFailure.Add(1) >= globalFailureStreak {
			l.globalConsecutiveFailure.Store(0)
			l.ReportStress()
		}
	}
}

// ReportStress lets a caller that observed many 429/5xx responses across
// kinds in a recent window double the global stress multiplier, up to the
// ceiling. release calls this automatically on a cross-kind failure streak;
// it stays exported so a caller with its own out-of-band signal (e.g. a
// caches-warming pass that isn't gated through Acquire/release at all) can
// report stress too.
func (l *Limiter) ReportStress() {
	for {
		cur := l.stressMultiplier.Load()
		next := cur * 2
		if next > maxStress {
			next = maxStress
		}
		if l.stressMultiplier.CompareAndSwap(cur, next) {
			l.log.Infow("rate limiter stress increased", "stressMultiplier", next)
			return
		}
	}
}

// ReportCalm lets a caller that observed a clean window (successes, no
// stress signals) halve the global stress multiplier, down to the floor.
// release calls this automatically on a cross-kind success streak.
func (l *Limiter) ReportCalm() {
	for {
		cur := l.stressMultiplier.Load()
		next := cur / 2
		if next < minStress {
			next = minStress
		}
		if l.stressMultiplier.CompareAndSwap(cur, next) {
			return
		}
	}
}

// StressMultiplier returns the current global multiplier, for tests and
// statistics.json.
func (l *Limiter) StressMultiplier() float64 {
	return l.stressMultiplier.Load()
}

// DelayFor returns the current per-kind delay (before stress scaling), for
// tests and statistics.json.
func (l *Limiter) DelayFor(kind string) time.Duration {
	st := l.stateFor(kind)
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.delay
}

func maxDuration(a, b time.Duration) time.Duration {
	if a > b {
		return a
	}
	return b
}

func minDuration(a, b time.Duration) time.Duration {
	if a < b {
		return a
	}
	return b
}
