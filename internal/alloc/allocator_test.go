package alloc

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/iquefs/bbfs/internal/fat"
	"github.com/iquefs/bbfs/internal/rng"
)

const totalBlocks = 4096 // one 64 MiB superblock's worth

func TestLinearPreference(t *testing.T) {
	var ft fat.Table
	view := fat.NewMultiTable([]*fat.Table{&ft}, totalBlocks)
	a := New(view, totalBlocks, rng.NewSeeded(1))

	b, err := a.NextBlock(view, fat.Entry(100), false)
	require.NoError(t, err)
	require.Equal(t, fat.Entry(101), b)
}

func TestLinearPreferenceSkipsWhenNextTaken(t *testing.T) {
	var ft fat.Table
	ft.Set(101, fat.Entry(200)) // block 101 already in use
	view := fat.NewMultiTable([]*fat.Table{&ft}, totalBlocks)
	a := New(view, totalBlocks, rng.NewSeeded(1))

	b, err := a.NextBlock(view, fat.Entry(100), false)
	require.NoError(t, err)
	require.NotEqual(t, fat.Entry(101), b)
}

func TestSmallFileLandsInSmallArea(t *testing.T) {
	var ft fat.Table
	view := fat.NewMultiTable([]*fat.Table{&ft}, totalBlocks)
	a := New(view, totalBlocks, rng.NewSeeded(7))

	b, err := a.NextBlock(view, fat.Terminator, false)
	require.NoError(t, err)
	require.GreaterOrEqual(t, int(b), a.SmallAreaIdx())
	require.Less(t, int(b), totalBlocks-SuperblockAreaBlocks)
}

func TestBigFileUsesWholeDeviceLinearScan(t *testing.T) {
	var ft fat.Table
	// Occupy every block in the small-file area so only a big-file scan
	// from block 0 can succeed.
	for b := totalBlocks - (1024*1024)/blockSize(); b < totalBlocks-SuperblockAreaBlocks; b++ {
		ft.Set(b, fat.Entry(1))
	}
	view := fat.NewMultiTable([]*fat.Table{&ft}, totalBlocks)
	a := New(view, totalBlocks, rng.NewSeeded(3))

	b, err := a.NextBlock(view, fat.Terminator, true)
	require.NoError(t, err)
	require.Equal(t, fat.Entry(0), b)
}

func TestNoSpace(t *testing.T) {
	var ft fat.Table
	for b := 0; b < totalBlocks; b++ {
		ft.Set(b, fat.Entry(1))
	}
	view := fat.NewMultiTable([]*fat.Table{&ft}, totalBlocks)
	a := New(view, totalBlocks, rng.NewSeeded(3))

	_, err := a.NextBlock(view, fat.Terminator, true)
	require.ErrorIs(t, err, ErrNoSpace)
}

func TestSmallAreaResizeMaintainsFreeRatio(t *testing.T) {
	var ft fat.Table
	view := fat.NewMultiTable([]*fat.Table{&ft}, totalBlocks)
	a := New(view, totalBlocks, rng.NewSeeded(9))

	// Allocate repeatedly; the area must keep growing to hold the 20%
	// free-ratio invariant (P7) rather than running out.
	for i := 0; i < 100; i++ {
		b, err := a.NextBlock(view, fat.Terminator, false)
		require.NoError(t, err)
		view.Set(int(b), fat.Terminator)
	}

	free := a.SmallAreaFree()
	span := totalBlocks - SuperblockAreaBlocks - a.SmallAreaIdx()
	require.True(t, a.SmallAreaIdx() == 0 || free*5 >= span)
}
