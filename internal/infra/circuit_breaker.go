package infra

import (
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// BreakerState is reported by /health.
type BreakerState int

const (
	BreakerClosed BreakerState = iota
	BreakerOpen
	BreakerHalfOpen
)

func (s BreakerState) String() string {
	switch s {
	case BreakerClosed:
		return "closed"
	case BreakerOpen:
		return "open"
	case BreakerHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// ErrBreakerOpen is returned without calling through while the breaker is
// open, or while a half-open probe is already in flight.
var ErrBreakerOpen = errors.New("circuit breaker is open")

// BreakerConfig tunes a Breaker. Zero fields take the defaults.
type BreakerConfig struct {
	Name      string
	Failures  int           // consecutive failures that open the breaker (5)
	Successes int           // half-open successes that close it again (2)
	Cooldown  time.Duration // time spent open before probing (60s)
}

// Breaker guards a flaky dependency (the SMTP relay) so callers fail fast
// while it is down.
type Breaker struct {
	cfg BreakerConfig
	now func() time.Time

	mu        sync.Mutex
	state     BreakerState
	failures  int
	successes int
	openedAt  time.Time
	probing   bool
}

func NewBreaker(cfg BreakerConfig) *Breaker {
	if cfg.Name == "" {
		cfg.Name = "breaker"
	}
	if cfg.Failures <= 0 {
		cfg.Failures = 5
	}
	if cfg.Successes <= 0 {
		cfg.Successes = 2
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = time.Minute
	}
	return &Breaker{cfg: cfg, now: time.Now}
}

func (b *Breaker) State() BreakerState {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.cool()
	return b.state
}

// cool moves an open breaker to half-open once the cooldown elapsed.
// Caller holds mu.
func (b *Breaker) cool() {
	if b.state == BreakerOpen && b.now().Sub(b.openedAt) >= b.cfg.Cooldown {
		b.transition(BreakerHalfOpen)
	}
}

func (b *Breaker) transition(to BreakerState) {
	from := b.state
	b.state = to
	b.failures, b.successes = 0, 0
	if to == BreakerOpen {
		b.openedAt = b.now()
	}
	log.Warn().
		Str("breaker", b.cfg.Name).
		Str("from", from.String()).
		Str("to", to.String()).
		Msg("circuit breaker state change")
}

// Execute calls fn unless the breaker is open. Half-open admits one probe
// at a time.
func (b *Breaker) Execute(fn func() error) error {
	b.mu.Lock()
	b.cool()
	switch {
	case b.state == BreakerOpen:
		b.mu.Unlock()
		return ErrBreakerOpen
	case b.state == BreakerHalfOpen && b.probing:
		b.mu.Unlock()
		return ErrBreakerOpen
	case b.state == BreakerHalfOpen:
		b.probing = true
	}
	b.mu.Unlock()

	err := fn()

	b.mu.Lock()
	defer b.mu.Unlock()
	b.probing = false
	if err != nil {
		b.record(false)
		return err
	}
	b.record(true)
	return nil
}

// record is called with mu held.
func (b *Breaker) record(ok bool) {
	switch b.state {
	case BreakerClosed:
		if ok {
			b.failures = 0
			return
		}
		b.failures++
		if b.failures >= b.cfg.Failures {
			b.transition(BreakerOpen)
		}
	case BreakerHalfOpen:
		if !ok {
			b.transition(BreakerOpen)
			return
		}
		b.successes++
		if b.successes >= b.cfg.Successes {
			b.transition(BreakerClosed)
		}
	}
}
