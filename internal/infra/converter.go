package infra

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/kentonium3/bake-tracker/internal/unit"
)

// GuardedConverter wraps the external unit-conversion collaborator with the
// circuit breaker, so a flapping converter fast-fails consumption calls
// instead of stalling every transaction behind it.
type GuardedConverter struct {
	inner   unit.Converter
	breaker *CircuitBreaker
}

func NewGuardedConverter(inner unit.Converter, cfg CircuitBreakerConfig) *GuardedConverter {
	return &GuardedConverter{inner: inner, breaker: NewCircuitBreaker(cfg)}
}

func (g *GuardedConverter) Convert(ctx context.Context, qty decimal.Decimal, from, to string) (decimal.Decimal, error) {
	var result decimal.Decimal
	err := g.breaker.Execute(func() error {
		var convErr error
		result, convErr = g.inner.Convert(ctx, qty, from, to)
		return convErr
	})
	if err != nil {
		return decimal.Zero, err
	}
	return result, nil
}

var _ unit.Converter = (*GuardedConverter)(nil)
