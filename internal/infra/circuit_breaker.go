package infra

import (
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// BreakerState is the position of a Breaker. The numeric values are exported
// as the hospital_breaker_state gauge.
type BreakerState int

const (
	BreakerClosed BreakerState = iota
	BreakerHalfOpen
	BreakerOpen
)

func (s BreakerState) String() string {
	switch s {
	case BreakerClosed:
		return "closed"
	case BreakerHalfOpen:
		return "half-open"
	case BreakerOpen:
		return "open"
	}
	return "unknown"
}

// ErrBreakerOpen is returned without calling the guarded function.
var ErrBreakerOpen = errors.New("circuit breaker is open")

type BreakerConfig struct {
	Name string
	// consecutive failures that open the breaker
	Failures int
	// how long the breaker stays open before letting one trial call through
	Cooldown time.Duration
	// called outside the lock after every transition
	OnChange func(name string, from, to BreakerState)
}

// SMTPBreakerConfig guards the mail relay: three failed sends open it for two
// minutes, so a dead relay does not hold every notification worker on dial timeouts.
func SMTPBreakerConfig(m *Metrics) BreakerConfig {
	return BreakerConfig{Name: "smtp", Failures: 3, Cooldown: 2 * time.Minute, OnChange: m.BreakerChanged}
}

// Breaker is a consecutive-failure circuit breaker. While half-open exactly one
// call tries the dependency; concurrent callers fail fast until it returns.
type Breaker struct {
	cfg BreakerConfig
	now func() time.Time

	mu       sync.Mutex
	state    BreakerState
	failures int
	openedAt time.Time
	probing  bool
}

func NewBreaker(cfg BreakerConfig) *Breaker {
	if cfg.Failures <= 0 {
		cfg.Failures = 3
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = time.Minute
	}
	return &Breaker{cfg: cfg, now: time.Now}
}

func (b *Breaker) State() BreakerState {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state == BreakerOpen && b.cooledDown() {
		return BreakerHalfOpen
	}
	return b.state
}

func (b *Breaker) cooledDown() bool {
	return b.now().Sub(b.openedAt) >= b.cfg.Cooldown
}

// Execute runs fn unless the breaker is open, and records its outcome.
func (b *Breaker) Execute(fn func() error) error {
	if err := b.admit(); err != nil {
		return err
	}
	err := fn()
	b.record(err)
	return err
}

func (b *Breaker) admit() error {
	b.mu.Lock()
	var from, to BreakerState
	switch b.state {
	case BreakerClosed:
		b.mu.Unlock()
		return nil
	case BreakerOpen:
		if !b.cooledDown() {
			b.mu.Unlock()
			return ErrBreakerOpen
		}
		from, to = b.state, BreakerHalfOpen
		b.state = BreakerHalfOpen
	}
	if b.probing {
		b.mu.Unlock()
		return ErrBreakerOpen
	}
	b.probing = true
	b.mu.Unlock()
	if from != to {
		b.notify(from, to)
	}
	return nil
}

func (b *Breaker) record(err error) {
	b.mu.Lock()
	from := b.state
	if b.state == BreakerHalfOpen {
		b.probing = false
	}
	switch {
	case err == nil:
		b.failures = 0
		b.state = BreakerClosed
	case b.state == BreakerHalfOpen:
		b.state = BreakerOpen
		b.openedAt = b.now()
	default:
		b.failures++
		if b.failures >= b.cfg.Failures {
			b.state = BreakerOpen
			b.openedAt = b.now()
			b.failures = 0
		}
	}
	to := b.state
	b.mu.Unlock()
	if from != to {
		b.notify(from, to)
	}
}

func (b *Breaker) notify(from, to BreakerState) {
	log.Warn().Str("breaker", b.cfg.Name).Str("from", from.String()).Str("to", to.String()).Msg("circuit breaker state change")
	if b.cfg.OnChange != nil {
		b.cfg.OnChange(b.cfg.Name, from, to)
	}
}
