package bbfs

import (
	"github.com/iquefs/bbfs/internal/fat"
)

// Write implements write protocol: full-page writes go
// straight to the shadow block; partial pages go through the page cache,
// preloaded from the block being replaced (or zero-filled, for a block
// that has no predecessor) so the untouched tail of the page survives.
func (h *Handle) Write(buf []byte) (int, error) {
	if h.flags&flagWriting == 0 {
		return 0, newErr(KindBadHandle, "write on non-writing handle")
	}

	written := 0
	for len(buf) > 0 {
		if h.flags&flagBlockShadowed == 0 {
			if err := h.beginBlock(); err != nil {
				return written, err
			}
		}

		blockOff := int(h.pos % BlockSize)
		pageOff := blockOff % PageSize
		pageIdx := blockOff / PageSize
		n := len(buf)
		if space := PageSize - pageOff; n > space {
			n = space
		}

		if pageOff == 0 && n == PageSize {
			if err := h.fs.dev.WritePages(bgCtx, int(h.curBlock), pageIdx, 1, buf[:n], true); err != nil {
				return written, wrapIo("write page", err)
			}
		} else {
			if h.flags&flagPageCached == 0 {
				if err := h.pageBegin(pageIdx); err != nil {
					return written, err
				}
			}
			copy(h.pageBuf[pageOff:pageOff+n], buf[:n])
			if pageOff+n == PageSize {
				if err := h.pageEnd(pageIdx); err != nil {
					return written, err
				}
			}
		}

		buf = buf[n:]
		h.pos += int64(n)
		written += n
		h.trackSize()

		if blockOff+n == BlockSize {
			if err := h.endBlock(); err != nil {
				return written, err
			}
		}
	}
	return written, nil
}

// trackSize grows the entry's on-flash Size/Padding when a write has
// carried pos past the file's previously-recorded logical size.
func (h *Handle) trackSize() {
	e := h.entry()
	if uint32(h.pos) > e.ByteSize() {
		e.Size = roundUp(uint32(h.pos), BlockSize)
		e.Padding = uint16((BlockSize - uint32(h.pos)%BlockSize) % BlockSize)
		h.fs.markDirty(0)
	}
}

func roundUp(n, d uint32) uint32 {
	return ((n + d - 1) / d) * d
}

// beginBlock allocates and erases a shadow block to extend the file into.
// The handle's current-block pointer moves to the shadow block; the
// back-link still points at whatever the shadow is replacing (or nothing,
// for a brand-new chain).
func (h *Handle) beginBlock() error {
	finalSize := h.entry().ByteSize()
	if h.flags&flagLazyExtend != 0 {
		finalSize = h.finalSize
	}
	bigFile := finalSize >= BigFileThreshold

	prev := fat.Terminator
	if h.back.fatSlot >= 0 {
		prev = fat.Entry(h.back.fatSlot)
	}
	nb, err := h.fs.alloc.NextBlock(h.fs.fatView, prev, bigFile)
	if err != nil {
		return newErr(KindNoSpace, "allocate block")
	}
	if err := h.fs.dev.EraseBlock(bgCtx, int(nb)); err != nil {
		return wrapIo("erase shadow block", err)
	}
	h.curBlock = nb
	h.flags |= flagBlockShadowed
	return nil
}

// pageBegin loads the page cache from the block being replaced, or zero-fills it when there is no predecessor
// block to read from.
func (h *Handle) pageBegin(pageIdx int) error {
	old := h.back.get()
	if old != fat.Terminator && !old.IsSentinel() {
		if err := h.fs.dev.ReadAt(bgCtx, int(old), pageIdx*PageSize, h.pageBuf); err != nil {
			return wrapIo("page-begin read", err)
		}
	} else {
		for i := range h.pageBuf {
			h.pageBuf[i] = 0
		}
	}
	h.flags |= flagPageCached
	return nil
}

// pageEnd commits the page cache to the shadow block.
func (h *Handle) pageEnd(pageIdx int) error {
	if err := h.fs.dev.WritePages(bgCtx, int(h.curBlock), pageIdx, 1, h.pageBuf, true); err != nil {
		return wrapIo("page-end write", err)
	}
	h.flags &^= flagPageCached
	return nil
}

// endBlock splices the shadow block into the chain in place of whatever
// the back-link pointed at, frees the old block if there was one, and
// advances the handle to the next block in the (possibly pre-existing)
// chain.
func (h *Handle) endBlock() error {
	old := h.back.get()
	newB := h.curBlock

	next := fat.Terminator
	if old != fat.Terminator && !old.IsSentinel() {
		next = h.fs.fatView.Get(int(old))
		h.fs.fatView.Set(int(old), fat.Unused)
		h.fs.markDirty(h.fs.sbIndexForBlock(int(old)))
	}
	h.fs.fatView.Set(int(newB), next)
	h.fs.markDirty(h.fs.sbIndexForBlock(int(newB)))
	h.back.set(newB)

	h.back = backLink{fs: h.fs, entryIdx: h.entryIdx, fatSlot: int(newB)}
	h.curBlock = next
	h.flags &^= flagBlockShadowed
	return nil
}

// flushPending commits whatever partial page/shadow-block state a write
// left behind, even mid-page or mid-block.
func (h *Handle) flushPending() error {
	if h.flags&flagPageCached != 0 {
		blockOff := int(h.pos % BlockSize)
		if err := h.pageEnd(blockOff / PageSize); err != nil {
			return err
		}
	}
	if h.flags&flagBlockShadowed != 0 {
		if err := h.endBlock(); err != nil {
			return err
		}
	}
	return nil
}

// finishWrite runs at Close: flush pending state, materialize a deferred
// ftruncate-grow extension if one is outstanding, then flush whatever
// that extension itself left pending.
func (h *Handle) finishWrite() error {
	if err := h.flushPending(); err != nil {
		return err
	}
	if h.flags&flagLazyExtend != 0 {
		if err := h.materialize(h.finalSize); err != nil {
			return err
		}
		if err := h.flushPending(); err != nil {
			return err
		}
		h.flags &^= flagLazyExtend
	}
	return nil
}

// materialize writes zero bytes from the entry's current size up to
// target, implementing a deferred ftruncate-grow.
func (h *Handle) materialize(target uint32) error {
	// Always re-walk: a preceding flushPending may have committed a
	// mid-block shadow and left curBlock/back pointing past pos.
	cur := h.entry().ByteSize()
	if err := h.seekWalk(int64(cur)); err != nil {
		return err
	}

	const chunk = 4096
	zero := make([]byte, chunk)
	remaining := int64(target) - int64(cur)
	for remaining > 0 {
		n := int64(len(zero))
		if n > remaining {
			n = remaining
		}
		w, err := h.Write(zero[:n])
		if err != nil {
			return err
		}
		remaining -= int64(w)
	}
	return nil
}

// Ftruncate implements truncate/grow contract: shrinking
// frees blocks immediately; growing is deferred (LAZY_EXTEND) until the
// handle seeks past, or closes with, the new size still outstanding.
func (h *Handle) Ftruncate(newLen uint32) error {
	if h.flags&flagWriting == 0 {
		return newErr(KindBadHandle, "ftruncate on non-writing handle")
	}

	cur := h.entry().ByteSize()
	if h.flags&flagLazyExtend != 0 {
		cur = h.finalSize
	}

	switch {
	case newLen < cur:
		if uint32(h.pos) > newLen {
			if _, err := h.Seek(int64(newLen), SeekStart); err != nil {
				return err
			}
		}
		if err := h.flushPending(); err != nil {
			return err
		}
		h.fs.entries().Shrink(h.entryIdx, h.fs.fatView, newLen)
		h.fs.markDirty(0)
		h.flags &^= flagLazyExtend
		pos := h.pos
		if pos > int64(newLen) {
			pos = int64(newLen)
		}
		return h.seekWalk(pos)

	case newLen > cur:
		h.flags |= flagLazyExtend
		h.finalSize = newLen
		return nil

	default:
		return nil
	}
}

// Seek whence constants, mirroring io.Seek*.
const (
	SeekStart   = 0
	SeekCurrent = 1
	SeekEnd     = 2
)

// Seek implements seek contract: positions clamp to
// [0, size] (or [0, final_size] while a grow is deferred), flushing any
// write state in flight and materializing a deferred extension's gap
// when the target lands beyond the current real size.
func (h *Handle) Seek(offset int64, whence int) (int64, error) {
	e := h.entry()
	cur := int64(e.ByteSize())

	var base int64
	switch whence {
	case SeekStart:
		base = 0
	case SeekCurrent:
		base = h.pos
	case SeekEnd:
		base = cur
	default:
		return 0, newErr(KindBadHandle, "invalid whence")
	}
	target := base + offset

	upper := cur
	if h.flags&flagLazyExtend != 0 {
		upper = int64(h.finalSize)
	}
	if target < 0 {
		target = 0
	}
	if target > upper {
		target = upper
	}
	if target == h.pos {
		return h.pos, nil
	}

	if h.flags&flagWriting != 0 {
		if err := h.flushPending(); err != nil {
			return 0, err
		}
	}

	if h.flags&flagLazyExtend != 0 && target > int64(e.ByteSize()) {
		if err := h.materialize(uint32(target)); err != nil {
			return 0, err
		}
		if err := h.flushPending(); err != nil {
			return 0, err
		}
		if uint32(h.pos) >= h.finalSize {
			h.flags &^= flagLazyExtend
		}
		return h.pos, nil
	}

	if err := h.seekWalk(target); err != nil {
		return 0, err
	}
	return h.pos, nil
}
