package direntry

import (
	"github.com/iquefs/bbfs/internal/fat"
)

// Count is the fixed number of directory slots per superblock: 409, the remainder of the 16 KiB superblock after the 8 KiB FAT
// and the 12-byte footer.
const Count = 409

// Table is the in-memory directory table: a flat array of 409 fixed-size
// entries, scanned linearly for every lookup.
type Table struct {
	Entries [Count]Entry
}

// Find returns the index of the first valid entry whose name matches, or
// -1 if none does.
func (t *Table) Find(stem [NameLen]byte, ext [ExtLen]byte) int {
	for i := range t.Entries {
		e := &t.Entries[i]
		if e.Valid && e.matches(stem, ext) {
			return i
		}
	}
	return -1
}

// FindByName parses name and looks it up.3.
func (t *Table) FindByName(name string) (idx int, err error) {
	stem, ext, err := ParseName(name)
	if err != nil {
		return -1, err
	}
	return t.Find(stem, ext), nil
}

// Create allocates the first free (valid==0) slot for name and returns its
// index, ready for the caller to extend via Write. Returns ErrNoSpace if
// the table is full.
func (t *Table) Create(name string) (idx int, err error) {
	stem, ext, err := ParseName(name)
	if err != nil {
		return -1, err
	}
	for i := range t.Entries {
		if !t.Entries[i].Valid {
			t.Entries[i] = Entry{
				Name:  stem,
				Ext:   ext,
				Valid: true,
				Block: fat.Terminator,
			}
			return i, nil
		}
	}
	return -1, ErrNoSpace
}

// Delete releases every block in entry idx's chain and marks the slot
// free.
func (t *Table) Delete(idx int, f fat.View) {
	t.Shrink(idx, f, 0)
	t.Entries[idx].Valid = false
}

// Shrink truncates entry idx's chain to newLen bytes, freeing every block
// beyond the last one kept and updating Size/Padding.
// blockSize is the device's fixed block size (spec.BlockSize).
func (t *Table) Shrink(idx int, f fat.View, newLen uint32) {
	e := &t.Entries[idx]
	keepBlocks := ceilDiv(newLen, blockSize)

	if keepBlocks == 0 {
		// Free the entire chain.
		b := e.Block
		for b != fat.Terminator && !b.IsSentinel() {
			next := f.Get(int(b))
			f.Set(int(b), fat.Unused)
			b = next
		}
		e.Block = fat.Terminator
	} else {
		b := e.Block
		for i := uint32(1); i < keepBlocks; i++ {
			b = f.Get(int(b))
		}
		// b is now the last block to keep; free everything after it.
		next := f.Get(int(b))
		f.Set(int(b), fat.Terminator)
		for next != fat.Terminator && !next.IsSentinel() {
			after := f.Get(int(next))
			f.Set(int(next), fat.Unused)
			next = after
		}
	}

	e.Size = keepBlocks * blockSize
	e.Padding = uint16((blockSize - newLen%blockSize) % blockSize)
}

// blockSize mirrors spec.BlockSize (16 KiB); duplicated here as an
// untyped constant to avoid an import cycle with the root package, which
// imports direntry.
const blockSize = 32 * 512

func ceilDiv(n, d uint32) uint32 {
	if n == 0 {
		return 0
	}
	return (n + d - 1) / d
}
