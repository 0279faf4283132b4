package rng

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSeededIsDeterministic(t *testing.T) {
	a := NewSeeded(42)
	b := NewSeeded(42)
	for i := 0; i < 100; i++ {
		require.Equal(t, a.Next(), b.Next())
	}
}

func TestIntnBounds(t *testing.T) {
	g := NewSeeded(1)
	for i := 0; i < 1000; i++ {
		v := g.Intn(7)
		require.GreaterOrEqual(t, v, 0)
		require.Less(t, v, 7)
	}
}

func TestIntnPanicsOnNonPositive(t *testing.T) {
	g := NewSeeded(1)
	require.Panics(t, func() { g.Intn(0) })
}

func TestNewProducesUsableGenerator(t *testing.T) {
	g := New()
	require.NotPanics(t, func() { g.Next() })
}
