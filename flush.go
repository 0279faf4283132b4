package bbfs

import (
	"context"
)

// flush implements: when any superblock is dirty, rewrite every
// superblock, last to first, to a freshly-erased, wear-leveling-chosen
// block within its
// 16-block superblock area, updating the primary's footer.link to the
// secondary's new home as it goes.
func (fs *FileSystem) flush(ctx context.Context) error {
	if !fs.anyDirty() {
		return nil
	}

	for i := len(fs.superblocks) - 1; i >= 0; i-- {
		s := fs.superblocks[i]
		s.Footer.Seqno++

		target := fs.pickFlushTarget(i)
		if err := fs.dev.EraseBlock(ctx, target); err != nil {
			return wrapIo("flush: erase target", err)
		}
		image := s.Encode() // recomputes the checksum
		if err := fs.dev.WritePages(ctx, target, 0, PagesPerBlock, image, true); err != nil {
			return wrapIo("flush: write superblock", err)
		}

		fs.sbBlockIdx[i] = target
		for p := range fs.pageDirty[i] {
			fs.pageDirty[i][p] = false
		}

		if i > 0 {
			prev := fs.superblocks[i-1]
			prev.Footer.Link = uint16(target)
			fs.markDirty(i - 1)
		}
	}

	fs.log.Debug("flush: committed", "superblocks", len(fs.superblocks))
	return nil
}

// pickFlushTarget selects a block within superblock sbIdx's 16-block
// area, spreading writes across the area for wear-leveling.
func (fs *FileSystem) pickFlushTarget(sbIdx int) int {
	areaStart := fs.totalBlocks - SuperblockAreaBlocks
	offset := fs.rand.Intn(SuperblockAreaBlocks)
	target := areaStart + offset
	if target == fs.sbBlockIdx[sbIdx] {
		target = areaStart + (offset+1)%SuperblockAreaBlocks
	}
	return target
}
