package circuitbreaker

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

var errUpstream = errors.New("upstream down")

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestBreaker(maxFailures int) (*CircuitBreaker, *fakeClock) {
	clock := &fakeClock{t: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	cb := NewCircuitBreakerWithWindow("exchange", maxFailures, 10*time.Second, time.Minute)
	cb.now = clock.now
	return cb, clock
}

func fail() error { return errUpstream }
func ok() error   { return nil }

func TestOpensAfterMaxFailures(t *testing.T) {
	cb, _ := newTestBreaker(2)

	for i := 0; i < 3; i++ {
		assert.ErrorIs(t, cb.Execute(fail, nil), errUpstream)
	}
	assert.Equal(t, StateOpen, cb.GetState())

	called := false
	err := cb.Execute(func() error { called = true; return nil }, nil)
	assert.ErrorIs(t, err, ErrOpen)
	assert.False(t, called)
}

func TestFallbackWhileOpen(t *testing.T) {
	cb, _ := newTestBreaker(0)
	_ = cb.Execute(fail, nil)

	errFallback := errors.New("fallback")
	assert.ErrorIs(t, cb.Execute(ok, func() error { return errFallback }), errFallback)
}

func TestHalfOpenTrialCall(t *testing.T) {
	tests := []struct {
		name  string
		trial func() error
		want  State
	}{
		{"success closes", ok, StateClosed},
		{"failure reopens", fail, StateOpen},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cb, clock := newTestBreaker(0)
			_ = cb.Execute(fail, nil)
			assert.Equal(t, StateOpen, cb.GetState())

			clock.advance(11 * time.Second)
			_ = cb.Execute(tt.trial, nil)
			assert.Equal(t, tt.want, cb.GetState())
		})
	}
}

func TestOldFailuresExpire(t *testing.T) {
	cb, clock := newTestBreaker(1)

	_ = cb.Execute(fail, nil)
	clock.advance(2 * time.Minute)
	_ = cb.Execute(fail, nil)

	assert.Equal(t, StateClosed, cb.GetState())
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "closed", StateClosed.String())
	assert.Equal(t, "open", StateOpen.String())
	assert.Equal(t, "half-open", StateHalfOpen.String())
}
