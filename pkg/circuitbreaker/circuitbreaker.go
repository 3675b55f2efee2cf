package circuitbreaker

import (
	"errors"
	"sync"
	"time"
)

type Status uint8

const (
	Closed   Status = 1
	Open     Status = 2
	HalfOpen Status = 3
)

var ErrOpen = errors.New("circuit breaker is open")

type CircuitBreaker interface {
	Call(fn func() error) error
	State() Status
	Reset()
}

type circuitBreaker struct {
	mu    sync.Mutex
	state Status
	now   func() time.Time

	// window of the most recent call outcomes, true = failed
	window []bool
	pos    int

	failureRatio float64
	cooldown     time.Duration
	openedAt     time.Time

	// successes needed in HalfOpen before closing again
	recoveryCalls int
	successes     int
}

// New returns a breaker that opens once failureRatio of the last windowSize
// calls failed, rejects calls for cooldown, then probes in HalfOpen.
func New(windowSize int, cooldown time.Duration, failureRatio float64, recoveryCalls int) CircuitBreaker {
	if windowSize <= 0 {
		windowSize = 1
	}
	return &circuitBreaker{
		state:         Closed,
		now:           time.Now,
		window:        make([]bool, windowSize),
		failureRatio:  failureRatio,
		cooldown:      cooldown,
		recoveryCalls: recoveryCalls,
	}
}

func (cb *circuitBreaker) Call(fn func() error) error {
	cb.mu.Lock()
	if cb.state == Open {
		if cb.now().Sub(cb.openedAt) <= cb.cooldown {
			cb.mu.Unlock()
			return ErrOpen
		}
		cb.state = HalfOpen
		cb.successes = 0
	}
	cb.mu.Unlock()

	err := fn()

	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.window[cb.pos] = err != nil
	cb.pos = (cb.pos + 1) % len(cb.window)

	if cb.state == HalfOpen {
		if err != nil {
			cb.trip()
			return err
		}
		cb.successes++
		if cb.successes >= cb.recoveryCalls {
			cb.reset()
		}
		return nil
	}

	fails := 0
	for _, failed := range cb.window {
		if failed {
			fails++
		}
	}
	if float64(fails)/float64(len(cb.window)) >= cb.failureRatio {
		cb.trip()
	}
	return err
}

func (cb *circuitBreaker) State() Status {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

func (cb *circuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.reset()
}

func (cb *circuitBreaker) trip() {
	cb.state = Open
	cb.successes = 0
	cb.openedAt = cb.now()
}

func (cb *circuitBreaker) reset() {
	for i := range cb.window {
		cb.window[i] = false
	}
	cb.pos = 0
	cb.successes = 0
	cb.state = Closed
}
