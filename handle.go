package bbfs

import (
	"context"

	"github.com/iquefs/bbfs/internal/direntry"
	"github.com/iquefs/bbfs/internal/fat"
	"github.com/iquefs/bbfs/internal/utils"
)

// bgCtx is used for the NAND calls the open-file engine issues on its own
// behalf. The public read/write/seek/etc. API signatures carry no
// context; only Mount, Format and the internal flush take one
// explicitly (Fsck and the handle operations pass bgCtx to flush).
var bgCtx = context.Background()

// Mode selects a handle's read/write access, orthogonal to the CREATE/
// EXCL/TRUNC/APPEND flags.
type Mode int

const (
	ModeRO Mode = iota
	ModeWO
	ModeRW
)

// OpenFlag is the bitset of open-time behaviors orthogonal to Mode.
type OpenFlag uint8

const (
	FlagCreate OpenFlag = 1 << iota
	FlagExcl
	FlagTrunc
	FlagAppend
)

// handleFlag is the open-file engine's internal state bitset.
type handleFlag uint8

const (
	flagReading handleFlag = 1 << iota
	flagWriting
	flagPageCached
	flagBlockShadowed
	flagLazyExtend
)

// backLink is a (superblock_index, fat_index)-style address used in place
// of a raw pointer into the FAT: it names either a FAT slot (fatSlot >= 0)
// or the owning entry's Block field (fatSlot == -1), so the write engine
// can splice chains by index instead of by borrowed reference,
// sidestepping any aliasing concern with the handle's page-cache buffer.
type backLink struct {
	fs       *FileSystem
	entryIdx int
	fatSlot  int
}

func (b *backLink) get() fat.Entry {
	if b.fatSlot == -1 {
		return b.fs.entries().Entries[b.entryIdx].Block
	}
	return b.fs.fatView.Get(b.fatSlot)
}

func (b *backLink) set(v fat.Entry) {
	if b.fatSlot == -1 {
		b.fs.entries().Entries[b.entryIdx].Block = v
		b.fs.markDirty(0)
		return
	}
	b.fs.fatView.Set(b.fatSlot, v)
	b.fs.markDirty(b.fs.sbIndexForBlock(b.fatSlot))
}

// Handle is an open BBFS file: its position, its place in the FAT chain,
// and — for write-enabled handles — the page cache and shadow-block state
// the write protocol needs.
type Handle struct {
	fs       *FileSystem
	entryIdx int
	flags    handleFlag

	pos      int64
	curBlock fat.Entry
	back     backLink

	finalSize uint32 // LAZY_EXTEND target
	pageBuf   []byte
}

func (h *Handle) entry() *direntry.Entry {
	return &h.fs.entries().Entries[h.entryIdx]
}

// Name returns the handle's assembled "STEM.EXT" filename.
func (h *Handle) Name() string {
	return direntry.AssembleName(h.entry())
}

// Open opens name under mode/flags, implementing the CREATE/EXCL/TRUNC/
// APPEND open contract.
func (fs *FileSystem) Open(name string, mode Mode, flags OpenFlag) (*Handle, error) {
	idx, ferr := fs.entries().FindByName(name)
	if ferr != nil {
		return nil, &Error{Kind: KindInvalidName, Cause: ferr}
	}
	exists := idx >= 0

	if exists && flags&FlagCreate != 0 && flags&FlagExcl != 0 {
		return nil, newErr(KindExists, name)
	}
	if !exists {
		if flags&FlagCreate == 0 {
			return nil, newErr(KindNotFound, name)
		}
		var err error
		idx, err = fs.entries().Create(name)
		if err != nil {
			return nil, mapDirentryErr(err, name)
		}
		fs.markDirty(0)
	}

	if flags&FlagTrunc != 0 {
		fs.entries().Shrink(idx, fs.fatView, 0)
		fs.markDirty(0)
	}

	h := &Handle{fs: fs, entryIdx: idx}
	switch mode {
	case ModeRO:
		h.flags = flagReading
	case ModeWO:
		h.flags = flagWriting
	case ModeRW:
		h.flags = flagReading | flagWriting
	}
	if h.flags&flagWriting != 0 {
		h.pageBuf = utils.GetBuffer(PageSize)
	}

	target := int64(0)
	if flags&FlagAppend != 0 {
		target = int64(h.entry().ByteSize())
	}
	if err := h.seekWalk(target); err != nil {
		return nil, err
	}

	fs.log.Debug("open", "name", name, "mode", mode, "flags", flags)
	return h, nil
}

func mapDirentryErr(err error, name string) error {
	switch err {
	case direntry.ErrNoSpace:
		return newErr(KindNoSpace, name)
	case direntry.ErrInvalidName:
		return newErr(KindInvalidName, name)
	default:
		return &Error{Kind: KindInvalidName, Context: name, Cause: err}
	}
}

// seekWalk positions the handle at byte offset target by walking the
// chain from the entry head, and sets curBlock/back accordingly. It does
// not itself clamp target to the file's size — callers are expected to
// have already validated target against ByteSize()/finalSize.
func (h *Handle) seekWalk(target int64) error {
	e := h.entry()
	hops := int(target / BlockSize)
	cur := e.Block
	back := backLink{fs: h.fs, entryIdx: h.entryIdx, fatSlot: -1}

	for i := 0; i < hops; i++ {
		if cur == fat.Terminator || cur.IsSentinel() {
			return newErr(KindCorruptChain, "chain ended before target position")
		}
		back = backLink{fs: h.fs, entryIdx: h.entryIdx, fatSlot: int(cur)}
		cur = h.fs.fatView.Get(int(cur))
	}

	h.curBlock = cur
	h.back = back
	h.pos = target
	return nil
}

// Read implements ("Read"): bounds-checked against the
// logical size, bounds-clipped at EOF (never a positive-but-wrong read;
// error-taxonomy note).
func (h *Handle) Read(buf []byte) (int, error) {
	if h.flags&flagReading == 0 {
		return 0, newErr(KindBadHandle, "read on non-reading handle")
	}
	size := int64(h.entry().ByteSize())
	if h.pos >= size {
		return 0, nil
	}

	total := 0
	for len(buf) > 0 && h.pos < size {
		if h.curBlock == fat.Terminator || h.curBlock.IsSentinel() {
			return total, newErr(KindCorruptChain, "read past terminator before EOF")
		}
		blockOff := int(h.pos % BlockSize)
		n := len(buf)
		if rem := BlockSize - blockOff; n > rem {
			n = rem
		}
		if rem := int(size - h.pos); n > rem {
			n = rem
		}

		if err := h.fs.dev.ReadAt(bgCtx, int(h.curBlock), blockOff, buf[:n]); err != nil {
			return total, wrapIo("read", err)
		}
		buf = buf[n:]
		h.pos += int64(n)
		total += n

		if blockOff+n == BlockSize {
			h.back = backLink{fs: h.fs, entryIdx: h.entryIdx, fatSlot: int(h.curBlock)}
			h.curBlock = h.fs.fatView.Get(int(h.curBlock))
		}
	}
	return total, nil
}

// Close flushes any pending write state, materializes a deferred
// ftruncate-grow extension, and invokes the flush protocol.
func (h *Handle) Close() error {
	if h.flags&flagWriting != 0 {
		if err := h.finishWrite(); err != nil {
			return err
		}
		if err := h.fs.flush(bgCtx); err != nil {
			return err
		}
		utils.ReleaseBuffer(h.pageBuf)
		h.pageBuf = nil
	}
	return nil
}
