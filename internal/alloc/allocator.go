// Package alloc implements BBFS's block allocator: linear preference,
// then a randomly-probed small-file area near the end of the device, then
// a full linear scan for big files.
//
// Unlike an end-of-file, append-only allocator for a write-once file
// format, BBFS blocks get freed and reused constantly, so there is no
// AllocatedBlock ledger here — free/used state lives entirely in the FAT
// (internal/fat), and this package's state is just the small-area
// bookkeeping.
package alloc

import (
	"errors"

	"github.com/iquefs/bbfs/internal/fat"
	"github.com/iquefs/bbfs/internal/rng"
)

// ErrNoSpace is returned when no free block can be found in the required
// region.
var ErrNoSpace = errors.New("alloc: no free block")

// SuperblockAreaBlocks is the fixed number of blocks at the tail of the
// device reserved for the superblock pool; they are never allocated as
// file data.
const SuperblockAreaBlocks = 16

// BigFileThreshold is the final-size cutoff at or above which a file is
// allocated via the big-file (whole-device linear scan) path instead of
// the small-file area.
const BigFileThreshold = 512 * 1024

// Allocator holds the small-file area's bookkeeping and the RNG used for
// both the small-area probe and, by the flush protocol, the superblock
// wear-leveling target.
type Allocator struct {
	totalBlocks   int
	smallAreaIdx  int
	smallAreaFree int
	rand          *rng.LCG
}

// New initializes the allocator for a device of totalBlocks blocks,
// scanning the initial small-file area to seed smallAreaFree.
func New(f fat.View, totalBlocks int, r *rng.LCG) *Allocator {
	a := &Allocator{
		totalBlocks: totalBlocks,
		rand:        r,
	}
	a.smallAreaIdx = totalBlocks - (1024*1024)/blockSize()
	if a.smallAreaIdx < 0 {
		a.smallAreaIdx = 0
	}
	a.smallAreaFree = a.countFree(f, a.smallAreaIdx, totalBlocks-SuperblockAreaBlocks)
	return a
}

// blockSize mirrors the root package's block size constant; duplicated
// to avoid an import cycle with the root package (which imports alloc).
func blockSize() int { return 32 * 512 }

func (a *Allocator) countFree(f fat.View, from, to int) int {
	n := 0
	for b := from; b < to; b++ {
		if f.Get(b) == fat.Unused {
			n++
		}
	}
	return n
}

// SmallAreaIdx reports the current start of the small-file area, for
// tests and fsck diagnostics.
func (a *Allocator) SmallAreaIdx() int { return a.smallAreaIdx }

// SmallAreaFree reports the small-file area's current free-block count.
func (a *Allocator) SmallAreaFree() int { return a.smallAreaFree }

// NextBlock chooses the next block to extend a file into, given the
// previous block in its chain (fat.Terminator for a brand new file) and
// whether the file's eventual size makes it a "big file".
// It does not mark the chosen block used; the caller (the write engine)
// does that as part of the end-block FAT splice.
func (a *Allocator) NextBlock(f fat.View, prev fat.Entry, bigFile bool) (fat.Entry, error) {
	// 1. Linear preference.
	if prev != fat.Terminator && !prev.IsSentinel() {
		candidate := int(prev) + 1
		if candidate < a.totalBlocks && f.Get(candidate) == fat.Unused {
			return fat.Entry(candidate), nil
		}
	}

	if !bigFile {
		if b, ok := a.allocSmallArea(f); ok {
			return b, nil
		}
		return 0, ErrNoSpace
	}

	// 3. Big-file path: linear scan over the device, excluding the
	// superblock area — those blocks are never file-data regardless of
	// what the FAT currently holds for them.
	for b := 0; b < a.totalBlocks-SuperblockAreaBlocks; b++ {
		if f.Get(b) == fat.Unused {
			return fat.Entry(b), nil
		}
	}
	return 0, ErrNoSpace
}

// allocSmallArea implements the small-file area's random-probe allocation
// and triggers the resize routine on success.
func (a *Allocator) allocSmallArea(f fat.View) (fat.Entry, bool) {
	areaEnd := a.totalBlocks - SuperblockAreaBlocks
	areaLen := areaEnd - a.smallAreaIdx
	if areaLen <= 0 {
		return 0, false
	}

	start := a.rand.Intn(areaLen)
	for i := 0; i < areaLen; i++ {
		b := a.smallAreaIdx + (start+i)%areaLen
		if f.Get(b) == fat.Unused {
			a.smallAreaFree--
			a.resize(f)
			return fat.Entry(b), true
		}
	}
	return 0, false
}

// resize grows the small-file area leftward while its free-block ratio
// stays below 20%, preserving the invariant
// smallAreaFree*5 >= (totalBlocks-smallAreaIdx) OR smallAreaIdx == 0.
func (a *Allocator) resize(f fat.View) {
	for a.smallAreaIdx > 0 && a.smallAreaFree*5 < (a.totalBlocks-a.smallAreaIdx) {
		a.smallAreaIdx--
		if f.Get(a.smallAreaIdx) == fat.Unused {
			a.smallAreaFree++
		}
	}
}
