// Package order computes the sort keys that define queue order. A new key is
// always allocated strictly between its two neighbors, so inserting or moving
// an entry never rewrites anyone else's key.
package order

import (
	"errors"
	"fmt"
	"math"
)

// Key is a queue entry's sort key. Display order is ascending Key.
type Key int64

const (
	// Origin is the key assigned to the first entry of an empty queue,
	// the midpoint of the signed key space.
	Origin Key = 0

	// Step is the gap left after the current tail when appending. A fresh
	// gap of 2^20 survives 20 midpoint inserts at the same spot before the
	// allocator runs out of integers and the queue has to rebalance.
	Step Key = 1 << 20
)

// ErrExhausted reports that no integer exists strictly between the two
// neighbor keys. The caller is expected to rebalance and retry.
var ErrExhausted = errors.New("order: key space between neighbors is exhausted")

// Between returns a key strictly between prev and next. A nil prev means
// there is no lower neighbor (insert at the head), a nil next means there is
// no upper neighbor (append at the tail).
func Between(prev, next *Key) (Key, error) {
	switch {
	case prev == nil && next == nil:
		return Origin, nil

	case next == nil:
		if *prev == math.MaxInt64 {
			return 0, ErrExhausted
		}
		if *prev > math.MaxInt64-Step {
			// Not enough room for a full step, halve what is left.
			m := mid(*prev, math.MaxInt64)
			if m == *prev {
				return 0, ErrExhausted
			}
			return m, nil
		}
		return *prev + Step, nil

	case prev == nil:
		if *next == math.MinInt64 {
			return 0, ErrExhausted
		}
		if *next < math.MinInt64+Step {
			return mid(math.MinInt64, *next), nil
		}
		return *next - Step, nil

	default:
		if *prev >= *next {
			return 0, fmt.Errorf("order: prev key %d is not below next key %d", *prev, *next)
		}
		m := mid(*prev, *next)
		if m == *prev {
			// Gap of exactly one, nothing fits between.
			return 0, ErrExhausted
		}
		return m, nil
	}
}

// Rebalanced returns n fresh evenly spaced keys starting at Origin, used to
// reassign the whole queue in display order after Between reports ErrExhausted.
func Rebalanced(n int) []Key {
	keys := make([]Key, n)
	for i := range keys {
		keys[i] = Origin + Key(i)*Step
	}
	return keys
}

// mid is the overflow-safe floor midpoint of a and b.
func mid(a, b Key) Key {
	return (a & b) + (a^b)>>1
}
