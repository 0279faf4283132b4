// Package fat defines the BBFS block-allocation table: a flat, 16-bit
// signed array indexed by block number whose entries either chain to the
// next block of a file or hold one of a small set of sentinel values.
package fat

import "fmt"

// Entry is a single FAT slot. Positive values chain to the next block in
// a file; 0 (Unused) and the negative values are sentinels.
type Entry int16

// Sentinel values, per the on-flash format.
const (
	Unused     Entry = 0
	Terminator Entry = -1
	BadBlock   Entry = -2
	Reserved   Entry = -3
)

// String renders sentinel values for diagnostics; a chain value prints as
// its block number.
func (e Entry) String() string {
	switch e {
	case Unused:
		return "UNUSED"
	case Terminator:
		return "TERMINATOR"
	case BadBlock:
		return "BADBLOCK"
	case Reserved:
		return "RESERVED"
	default:
		return fmt.Sprintf("block(%d)", int16(e))
	}
}

// IsSentinel reports whether e is one of the three reserved values that
// never denote a live chain link.
func (e Entry) IsSentinel() bool {
	return e == Unused || e == BadBlock || e == Reserved
}

// Table is the in-memory FAT for one superblock: 4096 entries, one per
// block in the 64 MiB region that superblock governs.
type Table struct {
	Entries [4096]Entry
}

// Get returns the entry at block index i.
func (t *Table) Get(i int) Entry {
	return t.Entries[i]
}

// Set stores v at block index i.
func (t *Table) Set(i int, v Entry) {
	t.Entries[i] = v
}

// Len reports the number of FAT slots (always 4096, one per superblock).
func (t *Table) Len() int {
	return len(t.Entries)
}
