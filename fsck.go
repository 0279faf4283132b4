package bbfs

import (
	"fmt"

	"github.com/bits-and-blooms/bitset"

	"github.com/iquefs/bbfs/internal/direntry"
	"github.com/iquefs/bbfs/internal/fat"
)

// Fsck runs the offline integrity checks over the mounted, in-memory
// superblock and returns the number of problems found. In fix mode,
// every check repairs what it can and the repaired state is flushed
// before returning.
func (fs *FileSystem) Fsck(fix bool) (int, error) {
	count := 0
	count += fs.fsckHygiene(fix)
	count += fs.fsckUniqueness(fix)
	count += fs.fsckSizeBounds(fix)

	chainErrs, used := fs.fsckChains(fix)
	count += chainErrs
	count += fs.fsckOrphans(fix, used)

	if fix && count > 0 {
		if err := fs.flush(bgCtx); err != nil {
			return count, err
		}
	}
	return count, nil
}

// fsckHygiene checks that bytes beyond a name/ext's string length are
// zero.
func (fs *FileSystem) fsckHygiene(fix bool) int {
	count := 0
	t := fs.entries()
	for i := range t.Entries {
		e := &t.Entries[i]
		if !e.Valid {
			continue
		}
		if zeroedAfterFirstZero(e.Name[:]) && zeroedAfterFirstZero(e.Ext[:]) {
			continue
		}
		count++
		if fix {
			zeroTrailing(e.Name[:])
			zeroTrailing(e.Ext[:])
			fs.markDirty(0)
		}
	}
	return count
}

func zeroedAfterFirstZero(b []byte) bool {
	i := 0
	for i < len(b) && b[i] != 0 {
		i++
	}
	for ; i < len(b); i++ {
		if b[i] != 0 {
			return false
		}
	}
	return true
}

func zeroTrailing(b []byte) {
	i := 0
	for i < len(b) && b[i] != 0 {
		i++
	}
	for ; i < len(b); i++ {
		b[i] = 0
	}
}

// bloomSize is the fixed 512-bit bloom filter width the duplicate check
// uses.
const bloomSize = 512

// bloomIndices derives two bit positions from an entry's 11-byte
// name||ext key: the first from one 32-bit FNV-1a hash of the key, the
// second from a multiplicative remix of that same hash, so k=2 indices
// come from one pass over the key.
func bloomIndices(name [8]byte, ext [3]byte) (uint, uint) {
	var key [11]byte
	copy(key[:8], name[:])
	copy(key[8:], ext[:])

	var h1 uint32 = 2166136261
	for _, b := range key {
		h1 ^= uint32(b)
		h1 *= 16777619
	}
	h2 := h1*2654435761 + 1
	return uint(h1 % bloomSize), uint(h2 % bloomSize)
}

// fsckUniqueness runs bloom-filter-gated, linearly-confirmed duplicate
// detection. On a confirmed duplicate, the later (higher-index) entry is
// the one invalidated.
func (fs *FileSystem) fsckUniqueness(fix bool) int {
	count := 0
	t := fs.entries()
	bloom := bitset.New(bloomSize)

	for i := range t.Entries {
		e := &t.Entries[i]
		if !e.Valid {
			continue
		}
		i1, i2 := bloomIndices(e.Name, e.Ext)
		if bloom.Test(i1) && bloom.Test(i2) {
			if _, dup := findPriorDuplicate(t, i); dup {
				count++
				if fix {
					e.Valid = false
					fs.markDirty(0)
				}
				continue
			}
		}
		bloom.Set(i1)
		bloom.Set(i2)
	}
	return count
}

func findPriorDuplicate(t *direntry.Table, i int) (int, bool) {
	e := &t.Entries[i]
	for j := 0; j < i; j++ {
		o := &t.Entries[j]
		if o.Valid && o.Name == e.Name && o.Ext == e.Ext {
			return j, true
		}
	}
	return 0, false
}

// fsckSizeBounds checks that size is a multiple of the block size and
// padding is less than one block.
func (fs *FileSystem) fsckSizeBounds(fix bool) int {
	count := 0
	t := fs.entries()
	for i := range t.Entries {
		e := &t.Entries[i]
		if !e.Valid {
			continue
		}
		bad := e.Size%BlockSize != 0 || uint32(e.Padding) >= BlockSize
		if !bad {
			continue
		}
		count++
		if fix {
			e.Size = roundUp(e.Size, BlockSize)
			e.Padding = uint16(uint32(e.Padding) % BlockSize)
			fs.markDirty(0)
		}
	}
	return count
}

// fsckChains checks that each valid entry's chain has exactly
// ceil(size/B) live hops, every hop in range, no early TERMINATOR, and a
// TERMINATOR exactly at the end. It returns the used-block bitmap the
// orphan scan needs.
func (fs *FileSystem) fsckChains(fix bool) (int, *bitset.BitSet) {
	used := bitset.New(uint(fs.totalBlocks))
	count := 0
	t := fs.entries()

	for i := range t.Entries {
		e := &t.Entries[i]
		if !e.Valid || e.Size == 0 {
			continue
		}
		want := int((e.Size + BlockSize - 1) / BlockSize)

		var chain []int
		b := e.Block
		ok := true
		for hop := 0; hop < want; hop++ {
			// The first hop comes from Entry.Block, where 0 is block 0
			// rather than the Unused sentinel.
			if b == fat.Terminator || (hop > 0 && b.IsSentinel()) || int(b) < 0 || int(b) >= fs.totalBlocks {
				ok = false
				break
			}
			chain = append(chain, int(b))
			if hop == want-1 {
				if fs.fatView.Get(int(b)) != fat.Terminator {
					ok = false
				}
				break
			}
			b = fs.fatView.Get(int(b))
		}

		for _, blk := range chain {
			used.Set(uint(blk))
		}
		if ok {
			continue
		}

		count++
		if fix {
			fs.entries().Shrink(i, fs.fatView, uint32(len(chain))*BlockSize)
			name := fs.randomFsckName()
			stem, ext, _ := direntry.ParseName(name)
			e.Name, e.Ext = stem, ext
			fs.markDirty(0)
		}
	}
	return count, used
}

// fsckOrphans recovers any block that looks live (fat[b] is not a
// free/bad/reserved sentinel) but wasn't reached by any valid entry's
// chain into a new FSCK-named entry.
func (fs *FileSystem) fsckOrphans(fix bool, used *bitset.BitSet) int {
	count := 0
	for b := 0; b < fs.totalBlocks; b++ {
		if used.Test(uint(b)) {
			continue
		}
		if fs.fatView.Get(b).IsSentinel() {
			continue
		}

		// b itself is a block index (block 0 included); only the values
		// read from FAT slots along the way are checked for sentinels.
		chainLen := 0
		cur := b
		for {
			used.Set(uint(cur))
			chainLen++
			next := fs.fatView.Get(cur)
			if next == fat.Terminator || next.IsSentinel() || used.Test(uint(next)) {
				break
			}
			cur = int(next)
		}

		count++
		if fix {
			name := fs.randomFsckName()
			idx, err := fs.entries().Create(name)
			if err == nil {
				e := &fs.entries().Entries[idx]
				e.Block = fat.Entry(b)
				e.Size = uint32(chainLen) * BlockSize
				e.Padding = 0
				fs.markDirty(0)
			}
		}
	}
	return count
}

// randomFsckName produces a fresh, collision-free "FSCKxxxx" stem.
func (fs *FileSystem) randomFsckName() string {
	for {
		name := fmt.Sprintf("FSCK%04X", fs.rand.Intn(0x10000))
		if idx, _ := fs.entries().FindByName(name); idx < 0 {
			return name
		}
	}
}
