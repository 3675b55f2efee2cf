package circuitbreaker

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time { return c.t }

func newTestBreaker(clock *fakeClock) *circuitBreaker {
	cb := New(10, time.Second, 0.3, 3).(*circuitBreaker)
	cb.now = clock.now
	return cb
}

func Test_circuitBreaker_Call(t *testing.T) {
	t.Parallel()
	errService := errors.New("service error")
	ok := func() error { return nil }
	failing := func() error { return errService }

	tests := []struct {
		name      string
		run       func(cb *circuitBreaker, clock *fakeClock)
		wantState Status
		wantErr   error
		lastCall  func() error
	}{
		{
			name: "stays closed on success",
			run: func(cb *circuitBreaker, _ *fakeClock) {
				for i := 0; i < 50; i++ {
					_ = cb.Call(ok)
				}
			},
			wantState: Closed,
			lastCall:  ok,
		},
		{
			name: "opens after failure ratio",
			run: func(cb *circuitBreaker, _ *fakeClock) {
				for i := 0; i < 3; i++ {
					_ = cb.Call(failing)
				}
			},
			wantState: Open,
			wantErr:   ErrOpen,
			lastCall:  ok,
		},
		{
			name: "half open probe failure reopens",
			run: func(cb *circuitBreaker, clock *fakeClock) {
				for i := 0; i < 3; i++ {
					_ = cb.Call(failing)
				}
				clock.t = clock.t.Add(2 * time.Second)
			},
			wantState: Open,
			wantErr:   errService,
			lastCall:  failing,
		},
		{
			name: "recovers after enough successes",
			run: func(cb *circuitBreaker, clock *fakeClock) {
				for i := 0; i < 3; i++ {
					_ = cb.Call(failing)
				}
				clock.t = clock.t.Add(2 * time.Second)
				_ = cb.Call(ok)
				_ = cb.Call(ok)
			},
			wantState: Closed,
			lastCall:  ok,
		},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			clock := &fakeClock{t: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
			cb := newTestBreaker(clock)
			tt.run(cb, clock)

			err := cb.Call(tt.lastCall)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
			} else {
				require.NoError(t, err)
			}
			require.Equal(t, tt.wantState, cb.State())
		})
	}
}

func Test_circuitBreaker_Reset(t *testing.T) {
	cb := New(2, time.Hour, 0.5, 1)
	_ = cb.Call(func() error { return errors.New("boom") })
	require.Equal(t, Open, cb.State())

	cb.Reset()
	require.Equal(t, Closed, cb.State())
	require.NoError(t, cb.Call(func() error { return nil }))
}
