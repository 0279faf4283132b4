package direntry

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/iquefs/bbfs/internal/fat"
)

func TestCreateFindDelete(t *testing.T) {
	var tbl Table
	var ft fat.Table

	idx, err := tbl.Create("GAME.BIN")
	require.NoError(t, err)
	require.GreaterOrEqual(t, idx, 0)
	require.Equal(t, fat.Terminator, tbl.Entries[idx].Block)

	found, err := tbl.FindByName("GAME.BIN")
	require.NoError(t, err)
	require.Equal(t, idx, found)

	tbl.Delete(idx, &ft)
	require.False(t, tbl.Entries[idx].Valid)

	found, err = tbl.FindByName("GAME.BIN")
	require.NoError(t, err)
	require.Equal(t, -1, found)
}

func TestCreateFillsTable(t *testing.T) {
	var tbl Table
	for i := 0; i < Count; i++ {
		_, err := tbl.Create("F")
		require.NoError(t, err)
	}
	_, err := tbl.Create("ONEMORE")
	require.ErrorIs(t, err, ErrNoSpace)
}

func TestShrinkFreesTrailingBlocks(t *testing.T) {
	var tbl Table
	var ft fat.Table

	idx, err := tbl.Create("BIG.BIN")
	require.NoError(t, err)

	// Build a 4-block chain: 10 -> 11 -> 12 -> 13 -> TERMINATOR.
	ft.Set(10, fat.Entry(11))
	ft.Set(11, fat.Entry(12))
	ft.Set(12, fat.Entry(13))
	ft.Set(13, fat.Terminator)
	tbl.Entries[idx].Block = fat.Entry(10)
	tbl.Entries[idx].Size = 4 * blockSize

	tbl.Shrink(idx, &ft, 2*blockSize)

	require.Equal(t, fat.Entry(11), ft.Get(10))
	require.Equal(t, fat.Terminator, ft.Get(11))
	require.Equal(t, fat.Unused, ft.Get(12))
	require.Equal(t, fat.Unused, ft.Get(13))
	require.Equal(t, uint32(2*blockSize), tbl.Entries[idx].Size)
}

func TestShrinkToZeroFreesEverything(t *testing.T) {
	var tbl Table
	var ft fat.Table

	idx, err := tbl.Create("BIG.BIN")
	require.NoError(t, err)
	ft.Set(10, fat.Terminator)
	tbl.Entries[idx].Block = fat.Entry(10)
	tbl.Entries[idx].Size = blockSize

	tbl.Shrink(idx, &ft, 0)

	require.Equal(t, fat.Terminator, tbl.Entries[idx].Block)
	require.Equal(t, fat.Unused, ft.Get(10))
	require.Equal(t, uint32(0), tbl.Entries[idx].Size)
}
