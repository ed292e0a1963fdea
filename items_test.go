package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestItemDeckNoRepeatsUntilExhaustion(t *testing.T) {
	deck := newItemDeck(42)

	seen := make(map[string]bool, len(items))
	for round := 1; round <= len(items); round++ {
		item := deck.draw(round)

		assert.False(t, seen[item.Name], "item %q repeated before exhaustion", item.Name)
		seen[item.Name] = true
	}

	require.Len(t, seen, len(items))

	// Catalog exhausted; the next draw must still succeed.
	item := deck.draw(len(items) + 1)
	assert.True(t, seen[item.Name])
}

func TestItemDeckReset(t *testing.T) {
	deck := newItemDeck(7)

	first := deck.draw(1)
	deck.reset()

	// After a reset the same item may come up again; drawing everything
	// must not skip it.
	seen := make(map[string]bool, len(items))
	for round := 1; round <= len(items); round++ {
		seen[deck.draw(round).Name] = true
	}

	assert.True(t, seen[first.Name])
}

func TestItemDeckParityBias(t *testing.T) {
	// While the pool is large, even rounds draw flying items and odd rounds
	// draw non-flying ones.
	deck := newItemDeck(1)

	for round := 1; round <= 10; round++ {
		item := deck.draw(round)

		if round%2 == 0 {
			assert.True(t, item.CanFly, "round %d drew %q", round, item.Name)
		} else {
			assert.False(t, item.CanFly, "round %d drew %q", round, item.Name)
		}
	}
}

func TestCatalogShape(t *testing.T) {
	var flying, grounded int
	names := make(map[string]bool, len(items))

	for _, item := range items {
		assert.False(t, names[item.Name], "duplicate item %q", item.Name)
		names[item.Name] = true

		if item.CanFly {
			flying++
		} else {
			grounded++
		}
	}

	// Both pools must be deep enough to survive the parity bias.
	assert.Greater(t, flying, parityBiasThreshold)
	assert.Greater(t, grounded, parityBiasThreshold)
}
