package bbfs

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/iquefs/bbfs/internal/rng"
	"github.com/iquefs/bbfs/internal/simnand"
)

// newTestFS formats and mounts a simnand device of nBlocks blocks with a
// deterministic RNG, for tests that need reproducible allocation and
// flush-target choices.
func newTestFS(t *testing.T, nBlocks int) (*FileSystem, *simnand.Device) {
	t.Helper()
	ctx := context.Background()
	dev := simnand.New(nBlocks)

	require.NoError(t, Format(ctx, dev))
	fs, err := Mount(ctx, dev, WithRNG(rng.NewSeeded(1234)))
	require.NoError(t, err)
	return fs, dev
}
