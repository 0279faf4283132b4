package fat

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEntrySentinelStrings(t *testing.T) {
	require.Equal(t, "UNUSED", Unused.String())
	require.Equal(t, "TERMINATOR", Terminator.String())
	require.Equal(t, "BADBLOCK", BadBlock.String())
	require.Equal(t, "RESERVED", Reserved.String())
	require.Equal(t, "block(42)", Entry(42).String())
}

func TestEntryIsSentinel(t *testing.T) {
	require.True(t, Unused.IsSentinel())
	require.True(t, BadBlock.IsSentinel())
	require.True(t, Reserved.IsSentinel())
	require.False(t, Terminator.IsSentinel())
	require.False(t, Entry(7).IsSentinel())
}

func TestTableGetSet(t *testing.T) {
	var tbl Table
	require.Equal(t, 4096, tbl.Len())
	tbl.Set(10, Entry(11))
	require.Equal(t, Entry(11), tbl.Get(10))
	require.Equal(t, Unused, tbl.Get(0))
}

func TestMultiTableSingle(t *testing.T) {
	var a Table
	mt := NewMultiTable([]*Table{&a}, 4096)
	mt.Set(5, Entry(6))
	require.Equal(t, Entry(6), mt.Get(5))
	require.Equal(t, Entry(6), a.Get(5))
	require.Equal(t, 4096, mt.TotalBlocks())
}

func TestMultiTableSpanning(t *testing.T) {
	var a, b Table
	mt := NewMultiTable([]*Table{&a, &b}, 8192)

	mt.Set(4096, Entry(1))
	require.Equal(t, Entry(1), b.Get(0))
	require.Equal(t, Entry(1), mt.Get(4096))

	mt.Set(0, Entry(2))
	require.Equal(t, Entry(2), a.Get(0))
}

func TestMultiTableOutOfRange(t *testing.T) {
	var a Table
	mt := NewMultiTable([]*Table{&a}, 4096)

	require.Equal(t, Reserved, mt.Get(-1))
	require.Equal(t, Reserved, mt.Get(4096))

	mt.Set(5000, Entry(1)) // no-op, must not panic
}
