package infra

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kentonium3/bake-tracker/internal/unit"
)

var errBoom = errors.New("boom")

func failingFn() error { return errBoom }
func okFn() error      { return nil }

func TestCircuitBreakerTripsAfterThreshold(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{FailureThreshold: 3, SuccessThreshold: 1, OpenTimeout: time.Minute})

	for i := 0; i < 3; i++ {
		assert.ErrorIs(t, cb.Execute(failingFn), errBoom)
	}
	assert.Equal(t, CBOpen, cb.State())

	// Open fast-fails without invoking fn.
	called := false
	err := cb.Execute(func() error { called = true; return nil })
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.False(t, called)
}

func TestCircuitBreakerClosedResetsOnSuccess(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{FailureThreshold: 3, SuccessThreshold: 1, OpenTimeout: time.Minute})

	assert.ErrorIs(t, cb.Execute(failingFn), errBoom)
	assert.ErrorIs(t, cb.Execute(failingFn), errBoom)
	require.NoError(t, cb.Execute(okFn))

	// The streak restarted; two more failures do not trip it.
	assert.ErrorIs(t, cb.Execute(failingFn), errBoom)
	assert.ErrorIs(t, cb.Execute(failingFn), errBoom)
	assert.Equal(t, CBClosed, cb.State())
}

func TestCircuitBreakerRecoversThroughHalfOpen(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{
		FailureThreshold: 1,
		SuccessThreshold: 2,
		OpenTimeout:      10 * time.Millisecond,
	})

	assert.ErrorIs(t, cb.Execute(failingFn), errBoom)
	assert.Equal(t, CBOpen, cb.State())

	time.Sleep(15 * time.Millisecond)
	assert.Equal(t, CBHalfOpen, cb.State())

	// One success is not enough to close.
	require.NoError(t, cb.Execute(okFn))
	assert.Equal(t, CBHalfOpen, cb.State())
	require.NoError(t, cb.Execute(okFn))
	assert.Equal(t, CBClosed, cb.State())
}

func TestCircuitBreakerProbeFailureReopens(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{
		FailureThreshold: 1,
		SuccessThreshold: 1,
		OpenTimeout:      10 * time.Millisecond,
	})

	assert.ErrorIs(t, cb.Execute(failingFn), errBoom)
	time.Sleep(15 * time.Millisecond)
	require.Equal(t, CBHalfOpen, cb.State())

	assert.ErrorIs(t, cb.Execute(failingFn), errBoom)
	assert.Equal(t, CBOpen, cb.State())
}

func TestGuardedConverter(t *testing.T) {
	ctx := context.Background()
	g := NewGuardedConverter(unit.NewTableConverter(), CircuitBreakerConfig{
		FailureThreshold: 2,
		SuccessThreshold: 1,
		OpenTimeout:      time.Minute,
	})

	got, err := g.Convert(ctx, decimal.NewFromInt(2), "kg", "g")
	require.NoError(t, err)
	assert.True(t, got.Equal(decimal.NewFromInt(2000)))

	// Conversion failures count against the breaker.
	_, err = g.Convert(ctx, decimal.NewFromInt(1), "kg", "ml")
	assert.ErrorIs(t, err, unit.ErrIncompatibleUnits)
	_, err = g.Convert(ctx, decimal.NewFromInt(1), "kg", "ml")
	assert.ErrorIs(t, err, unit.ErrIncompatibleUnits)

	_, err = g.Convert(ctx, decimal.NewFromInt(2), "kg", "g")
	assert.ErrorIs(t, err, ErrCircuitOpen)
}
