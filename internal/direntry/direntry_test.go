package direntry

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/iquefs/bbfs/internal/fat"
)

func TestParseNameValid(t *testing.T) {
	stem, ext, err := ParseName("README.TXT")
	require.NoError(t, err)

	e := Entry{Name: stem, Ext: ext, Valid: true}
	require.Equal(t, "README.TXT", AssembleName(&e))
}

func TestParseNameNoExt(t *testing.T) {
	stem, ext, err := ParseName("BOOT")
	require.NoError(t, err)
	e := Entry{Name: stem, Ext: ext, Valid: true}
	require.Equal(t, "BOOT", AssembleName(&e))
}

func TestParseNameRejectsOverlong(t *testing.T) {
	_, _, err := ParseName("WAYTOOLONGNAME.TXT")
	require.ErrorIs(t, err, ErrInvalidName)

	_, _, err = ParseName("FILE.TOOLONG")
	require.ErrorIs(t, err, ErrInvalidName)

	_, _, err = ParseName("")
	require.ErrorIs(t, err, ErrInvalidName)
}

func TestParseNameRejectsExtraDot(t *testing.T) {
	_, _, err := ParseName("FILE.TAR.GZ")
	require.ErrorIs(t, err, ErrInvalidName)
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	stem, ext, err := ParseName("KERNEL.BIN")
	require.NoError(t, err)

	e := Entry{Name: stem, Ext: ext, Valid: true, Block: fat.Entry(12), Padding: 100, Size: 16 * 512}
	buf := make([]byte, EntrySize)
	e.Encode(buf)

	got := Decode(buf)
	require.Equal(t, e, got)
	require.Equal(t, uint32(16*512-100), got.ByteSize())
}

func TestEntrySizeMatchesSuperblockBudget(t *testing.T) {
	const fatBytes = 4096 * 2
	const footerBytes = 12
	require.Equal(t, 16384, fatBytes+Count*EntrySize+footerBytes)
}
