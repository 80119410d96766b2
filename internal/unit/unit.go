// Package unit defines the unit-conversion boundary the ledger consumes.
// Conversion arithmetic is an external collaborator; the core only depends on
// the Converter interface. TableConverter is the reference implementation
// used in tests and small deployments.
package unit

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/shopspring/decimal"
)

var (
	// ErrUnknownUnit is returned when a unit name has no registered rule.
	ErrUnknownUnit = errors.New("unknown unit")
	// ErrIncompatibleUnits is returned when the two units measure different
	// dimensions (mass vs volume, etc.).
	ErrIncompatibleUnits = errors.New("incompatible units")
)

// ConversionScale is the decimal precision conversions are rounded to.
// Carries three digits beyond the ledger's 3-decimal quantity precision so
// repeated conversions cannot drift into stored quantities.
const ConversionScale = 6

// Converter converts a quantity between units. A failed conversion is a hard
// error for every consumer: callers abort without partial mutation.
type Converter interface {
	Convert(ctx context.Context, qty decimal.Decimal, from, to string) (decimal.Decimal, error)
}

type rule struct {
	dimension string
	factor    decimal.Decimal // multiplier to the dimension's base unit
}

// TableConverter resolves conversions through a rule table: each unit maps
// to (dimension, factor-to-base). Safe for concurrent use.
type TableConverter struct {
	mu    sync.RWMutex
	rules map[string]rule
}

// NewTableConverter returns a converter preloaded with the kitchen and
// wrapping units the operation uses. Additional units register via AddUnit.
func NewTableConverter() *TableConverter {
	c := &TableConverter{rules: make(map[string]rule)}

	// mass, base gram
	c.AddUnit("g", "mass", decimal.NewFromInt(1))
	c.AddUnit("kg", "mass", decimal.NewFromInt(1000))
	c.AddUnit("oz", "mass", decimal.RequireFromString("28.3495"))
	c.AddUnit("lb", "mass", decimal.RequireFromString("453.592"))

	// volume, base millilitre
	c.AddUnit("ml", "volume", decimal.NewFromInt(1))
	c.AddUnit("l", "volume", decimal.NewFromInt(1000))
	c.AddUnit("tsp", "volume", decimal.RequireFromString("4.929"))
	c.AddUnit("tbsp", "volume", decimal.RequireFromString("14.787"))
	c.AddUnit("cup", "volume", decimal.RequireFromString("236.588"))
	c.AddUnit("floz", "volume", decimal.RequireFromString("29.574"))

	// length, base centimetre (ribbon, twine)
	c.AddUnit("mm", "length", decimal.RequireFromString("0.1"))
	c.AddUnit("cm", "length", decimal.NewFromInt(1))
	c.AddUnit("m", "length", decimal.NewFromInt(100))
	c.AddUnit("in", "length", decimal.RequireFromString("2.54"))

	// discrete items
	c.AddUnit("unit", "count", decimal.NewFromInt(1))
	c.AddUnit("each", "count", decimal.NewFromInt(1))
	c.AddUnit("dozen", "count", decimal.NewFromInt(12))

	return c
}

// AddUnit registers (or replaces) a unit rule: 1 name = factor base units of
// dimension.
func (c *TableConverter) AddUnit(name, dimension string, factor decimal.Decimal) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.rules[name] = rule{dimension: dimension, factor: factor}
}

// Convert converts qty from one unit to another within the same dimension.
func (c *TableConverter) Convert(_ context.Context, qty decimal.Decimal, from, to string) (decimal.Decimal, error) {
	if from == to {
		return qty, nil
	}

	c.mu.RLock()
	src, okFrom := c.rules[from]
	dst, okTo := c.rules[to]
	c.mu.RUnlock()

	if !okFrom {
		return decimal.Zero, fmt.Errorf("%w: %q", ErrUnknownUnit, from)
	}
	if !okTo {
		return decimal.Zero, fmt.Errorf("%w: %q", ErrUnknownUnit, to)
	}
	if src.dimension != dst.dimension {
		return decimal.Zero, fmt.Errorf("%w: %q (%s) -> %q (%s)",
			ErrIncompatibleUnits, from, src.dimension, to, dst.dimension)
	}

	return qty.Mul(src.factor).DivRound(dst.factor, ConversionScale), nil
}

var _ Converter = (*TableConverter)(nil)
