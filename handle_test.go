package bbfs

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestScenario2_CreateWriteReadBack(t *testing.T) {
	fs, _ := newTestFS(t, 256)

	h, err := fs.Open("HELLO.TXT", ModeRW, FlagCreate)
	require.NoError(t, err)
	n, err := h.Write([]byte("Hi!"))
	require.NoError(t, err)
	require.Equal(t, 3, n)
	require.NoError(t, h.Close())

	idx, err := fs.entries().FindByName("HELLO.TXT")
	require.NoError(t, err)
	e := fs.entries().Entries[idx]
	require.Equal(t, uint32(BlockSize), e.Size)
	require.Equal(t, uint16(BlockSize-3), e.Padding)

	rh, err := fs.Open("HELLO.TXT", ModeRO, 0)
	require.NoError(t, err)
	buf := make([]byte, 3)
	n, err = rh.Read(buf)
	require.NoError(t, err)
	require.Equal(t, 3, n)
	require.Equal(t, "Hi!", string(buf))
	require.NoError(t, rh.Close())
}

func TestScenario3_CrashMidWriteLeavesNoFile(t *testing.T) {
	fs, dev := newTestFS(t, 256)

	h, err := fs.Open("BIG.BIN", ModeWO, FlagCreate)
	require.NoError(t, err)
	buf := make([]byte, 20*1024) // spans two 16 KiB blocks
	for i := range buf {
		buf[i] = 0xAB
	}
	_, err = h.Write(buf)
	require.NoError(t, err)
	// Simulate a crash here: never call Close, so nothing was flushed to
	// the superblock area. Remount from the same device.

	fs2, err := Mount(context.Background(), dev)
	require.NoError(t, err)
	idx, err := fs2.entries().FindByName("BIG.BIN")
	require.NoError(t, err)
	require.Equal(t, -1, idx)
}

func TestScenario4_CrashAfterFlushPersists(t *testing.T) {
	fs, dev := newTestFS(t, 256)

	h, err := fs.Open("BIG.BIN", ModeWO, FlagCreate)
	require.NoError(t, err)
	buf := make([]byte, 20*1024)
	for i := range buf {
		buf[i] = 0xAB
	}
	_, err = h.Write(buf)
	require.NoError(t, err)
	require.NoError(t, h.Close()) // flush completes before the "crash"

	fs2, err := Mount(context.Background(), dev)
	require.NoError(t, err)
	rh, err := fs2.Open("BIG.BIN", ModeRO, 0)
	require.NoError(t, err)
	got := make([]byte, len(buf))
	n, err := rh.Read(got)
	require.NoError(t, err)
	require.Equal(t, len(buf), n)
	require.Equal(t, buf, got)
}

func TestReadYourWritesP5(t *testing.T) {
	fs, _ := newTestFS(t, 256)

	h, err := fs.Open("P5.BIN", ModeWO, FlagCreate)
	require.NoError(t, err)
	payload := make([]byte, 5000)
	for i := range payload {
		payload[i] = byte(i)
	}
	_, err = h.Write(payload)
	require.NoError(t, err)
	require.NoError(t, h.Close())

	rh, err := fs.Open("P5.BIN", ModeRO, 0)
	require.NoError(t, err)
	got := make([]byte, len(payload))
	n, err := rh.Read(got)
	require.NoError(t, err)
	require.Equal(t, len(payload), n)
	require.Equal(t, payload, got)
	require.NoError(t, rh.Close())
}

func TestTruncateIdempotenceP6(t *testing.T) {
	fs, _ := newTestFS(t, 256)

	h, err := fs.Open("T6.BIN", ModeWO, FlagCreate)
	require.NoError(t, err)
	_, err = h.Write(make([]byte, 100))
	require.NoError(t, err)

	require.NoError(t, h.Ftruncate(5000))
	sizeAfterFirst := h.finalSize
	flagsAfterFirst := h.flags

	require.NoError(t, h.Ftruncate(5000))
	require.Equal(t, sizeAfterFirst, h.finalSize)
	require.Equal(t, flagsAfterFirst, h.flags)

	require.NoError(t, h.Close())
	idx, err := fs.entries().FindByName("T6.BIN")
	require.NoError(t, err)
	require.Equal(t, uint32(5000), fs.entries().Entries[idx].ByteSize())
}

func TestFtruncateShrink(t *testing.T) {
	fs, _ := newTestFS(t, 256)

	h, err := fs.Open("SHR.BIN", ModeWO, FlagCreate)
	require.NoError(t, err)
	_, err = h.Write(make([]byte, 5000))
	require.NoError(t, err)
	require.NoError(t, h.Ftruncate(10))
	require.NoError(t, h.Close())

	idx, err := fs.entries().FindByName("SHR.BIN")
	require.NoError(t, err)
	require.Equal(t, uint32(10), fs.entries().Entries[idx].ByteSize())
}

func TestOpenExclOnExistingFails(t *testing.T) {
	fs, _ := newTestFS(t, 256)

	h, err := fs.Open("X.BIN", ModeWO, FlagCreate)
	require.NoError(t, err)
	require.NoError(t, h.Close())

	_, err = fs.Open("X.BIN", ModeWO, FlagCreate|FlagExcl)
	require.ErrorIs(t, err, ErrExists)
}

func TestOpenMissingWithoutCreateFails(t *testing.T) {
	fs, _ := newTestFS(t, 256)
	_, err := fs.Open("NOPE.BIN", ModeRO, 0)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestOpenRejectsBadName(t *testing.T) {
	fs, _ := newTestFS(t, 256)
	_, err := fs.Open("WAYTOOLONGNAME.TXT", ModeWO, FlagCreate)
	require.ErrorIs(t, err, ErrInvalidName)
}

func TestSeekWithinWrittenData(t *testing.T) {
	fs, _ := newTestFS(t, 256)

	h, err := fs.Open("SK.BIN", ModeRW, FlagCreate)
	require.NoError(t, err)
	_, err = h.Write([]byte("0123456789"))
	require.NoError(t, err)
	require.NoError(t, h.Close())

	rh, err := fs.Open("SK.BIN", ModeRO, 0)
	require.NoError(t, err)
	pos, err := rh.Seek(5, SeekStart)
	require.NoError(t, err)
	require.Equal(t, int64(5), pos)

	buf := make([]byte, 5)
	n, err := rh.Read(buf)
	require.NoError(t, err)
	require.Equal(t, 5, n)
	require.Equal(t, "56789", string(buf))
}
