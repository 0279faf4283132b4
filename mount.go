package bbfs

import (
	"context"
	"log/slog"
	"sort"

	"github.com/iquefs/bbfs/internal/alloc"
	"github.com/iquefs/bbfs/internal/direntry"
	"github.com/iquefs/bbfs/internal/fat"
	"github.com/iquefs/bbfs/internal/nand"
	"github.com/iquefs/bbfs/internal/rng"
	"github.com/iquefs/bbfs/internal/sb"
	"github.com/iquefs/bbfs/internal/utils"
)

// FileSystem is the mounted, in-memory BBFS state: the superblock pair,
// the FAT view composed over it, the allocator, and the NAND adapter
// underneath. It is process-wide, single-writer state; the
// caller is responsible for serializing mutating calls.
type FileSystem struct {
	dev nand.Device
	log *slog.Logger

	totalBlocks    int
	numSuperblocks int

	superblocks []*sb.Superblock
	sbBlockIdx  []int // physical block each superblock currently occupies
	pageDirty   [][]bool

	fatView *fat.MultiTable
	alloc   *alloc.Allocator
	rand    *rng.LCG
}

// Option configures Mount.
type Option func(*mountConfig)

type mountConfig struct {
	log *slog.Logger
	rng *rng.LCG
}

// WithLogger overrides the default slog.Logger used for mount/flush/fsck
// diagnostics.
func WithLogger(l *slog.Logger) Option {
	return func(c *mountConfig) { c.log = l }
}

// WithRNG overrides the wear-leveling RNG, primarily so tests can force
// deterministic allocation/flush-target choices.
func WithRNG(r *rng.LCG) Option {
	return func(c *mountConfig) { c.rng = r }
}

type candidate struct {
	blockIdx int
	seqno    uint32
}

// Mount locates the newest internally-consistent superblock (pair, on
// devices over 64 MiB) and initializes in-memory filesystem state from it.
func Mount(ctx context.Context, dev nand.Device, opts ...Option) (*FileSystem, error) {
	cfg := mountConfig{log: slog.Default(), rng: rng.New()}
	for _, o := range opts {
		o(&cfg)
	}

	size, err := dev.DeviceSize(ctx)
	if err != nil {
		return nil, wrapIo("mount: device size", err)
	}
	totalBlocks := int(size / BlockSize)
	if totalBlocks <= SuperblockAreaBlocks {
		return nil, newErr(KindSuperblockCorrupt, "device too small to hold a superblock area")
	}

	linkedExpected := totalBlocks > FATEntriesPerSuperblock

	areaStart := totalBlocks - SuperblockAreaBlocks
	candidates, err := collectCandidates(ctx, dev, areaStart, totalBlocks)
	if err != nil {
		return nil, err
	}
	sort.Slice(candidates, func(i, j int) bool { return candidates[i].seqno > candidates[j].seqno })

	for _, c := range candidates {
		primary, err := readSuperblock(ctx, dev, c.blockIdx)
		if err != nil {
			cfg.log.Debug("mount: candidate failed checksum", "block", c.blockIdx, "err", err)
			continue
		}
		if !primary.Footer.IsPrimary() {
			continue
		}

		superblocks := []*sb.Superblock{primary}
		sbBlockIdx := []int{c.blockIdx}

		if linkedExpected {
			linkBlock := int(primary.Footer.Link)
			secondary, err := readSuperblock(ctx, dev, linkBlock)
			if err != nil {
				cfg.log.Debug("mount: linked secondary failed checksum", "block", linkBlock, "err", err)
				continue
			}
			if !secondary.Footer.IsLinked() || secondary.Footer.Seqno != primary.Footer.Seqno {
				continue
			}
			superblocks = append(superblocks, secondary)
			sbBlockIdx = append(sbBlockIdx, linkBlock)
		}

		fs := buildFileSystem(dev, cfg, totalBlocks, superblocks, sbBlockIdx)
		fs.log.Info("mount: mounted", "totalBlocks", totalBlocks, "seqno", primary.Footer.Seqno, "linked", linkedExpected)
		return fs, nil
	}

	return nil, newErr(KindSuperblockCorrupt, "no valid superblock candidate found")
}

func collectCandidates(ctx context.Context, dev nand.Device, from, to int) ([]candidate, error) {
	var out []candidate
	buf := utils.GetBuffer(12)
	defer utils.ReleaseBuffer(buf)
	for b := from; b < to; b++ {
		if err := dev.ReadAt(ctx, b, sb.Size-12, buf); err != nil {
			return nil, wrapIo("mount: read footer", err)
		}
		f, err := sb.DecodeFooter(buf)
		if err != nil || !f.IsPrimary() {
			continue
		}
		out = append(out, candidate{blockIdx: b, seqno: f.Seqno})
	}
	return out, nil
}

func readSuperblock(ctx context.Context, dev nand.Device, block int) (*sb.Superblock, error) {
	buf := make([]byte, sb.Size)
	if err := dev.ReadAt(ctx, block, 0, buf); err != nil {
		return nil, wrapIo("read superblock", err)
	}
	return sb.Decode(buf)
}

func buildFileSystem(dev nand.Device, cfg mountConfig, totalBlocks int, superblocks []*sb.Superblock, sbBlockIdx []int) *FileSystem {
	fatTables := make([]*fat.Table, len(superblocks))
	for i, s := range superblocks {
		fatTables[i] = &s.FAT
	}
	view := fat.NewMultiTable(fatTables, totalBlocks)

	pageDirty := make([][]bool, len(superblocks))
	for i := range pageDirty {
		pageDirty[i] = make([]bool, PagesPerBlock)
	}

	fs := &FileSystem{
		dev:            dev,
		log:            cfg.log,
		totalBlocks:    totalBlocks,
		numSuperblocks: len(superblocks),
		superblocks:    superblocks,
		sbBlockIdx:     sbBlockIdx,
		pageDirty:      pageDirty,
		fatView:        view,
		rand:           cfg.rng,
	}
	fs.alloc = alloc.New(view, totalBlocks, cfg.rng)
	return fs
}

// markDirty marks every page of superblock index sbIdx dirty. BBFS always
// rewrites a superblock's entire 16 KiB image when flushing it (a NAND
// block must be fully erased before any page within it can be
// programmed again), so per-page granularity only matters for the
// "anything changed" check flush's step 1 makes; this collapses to
// marking the whole block.
func (fs *FileSystem) markDirty(sbIdx int) {
	for i := range fs.pageDirty[sbIdx] {
		fs.pageDirty[sbIdx][i] = true
	}
}

func (fs *FileSystem) anyDirty() bool {
	for _, pages := range fs.pageDirty {
		for _, d := range pages {
			if d {
				return true
			}
		}
	}
	return false
}

// sbIndexForBlock returns which superblock's FAT governs global block b.
func (fs *FileSystem) sbIndexForBlock(b int) int {
	return b / FATEntriesPerSuperblock
}

// TotalBlocks reports the mounted device's block count.
func (fs *FileSystem) TotalBlocks() int { return fs.totalBlocks }

// Format writes a blank, valid superblock pair (primary, and a linked
// secondary for devices over 64 MiB) to a freshly-provisioned device, so
// Mount has something to find.
func Format(ctx context.Context, dev nand.Device) error {
	size, err := dev.DeviceSize(ctx)
	if err != nil {
		return wrapIo("format: device size", err)
	}
	totalBlocks := int(size / BlockSize)
	if totalBlocks <= SuperblockAreaBlocks {
		return newErr(KindSuperblockCorrupt, "device too small to hold a superblock area")
	}
	linked := totalBlocks > FATEntriesPerSuperblock

	primaryBlock := totalBlocks - SuperblockAreaBlocks
	primary := &sb.Superblock{}
	primary.Footer.Magic = sb.MagicPrimary

	var secondary *sb.Superblock
	if linked {
		secondary = &sb.Superblock{}
		secondary.Footer.Magic = sb.MagicLinked
	}
	reserveSuperblockArea(primary, secondary, totalBlocks)

	if linked {
		secondaryBlock := primaryBlock + 1
		if err := writeSuperblockImage(ctx, dev, secondaryBlock, secondary); err != nil {
			return err
		}
		primary.Footer.Link = uint16(secondaryBlock)
	}
	return writeSuperblockImage(ctx, dev, primaryBlock, primary)
}

// reserveSuperblockArea marks the last SuperblockAreaBlocks blocks of the
// device Reserved in whichever superblock's FAT governs them, so the
// "last 16 blocks are never file-data" invariant is explicit in the FAT
// itself rather than only enforced by the allocator's scan bounds.
func reserveSuperblockArea(primary, secondary *sb.Superblock, totalBlocks int) {
	for b := totalBlocks - SuperblockAreaBlocks; b < totalBlocks; b++ {
		sbIdx := b / FATEntriesPerSuperblock
		local := b % FATEntriesPerSuperblock
		if sbIdx == 0 {
			primary.FAT.Set(local, fat.Reserved)
		} else if secondary != nil {
			secondary.FAT.Set(local, fat.Reserved)
		}
	}
}

func writeSuperblockImage(ctx context.Context, dev nand.Device, block int, s *sb.Superblock) error {
	if err := dev.EraseBlock(ctx, block); err != nil {
		return wrapIo("format: erase", err)
	}
	img := s.Encode()
	if err := dev.WritePages(ctx, block, 0, PagesPerBlock, img, true); err != nil {
		return wrapIo("format: write superblock", err)
	}
	return nil
}

// entries returns the live directory table. Only the primary superblock
// carries directory entries — chaining a second superblock on devices
// over 64 MiB extends the FAT's address space, not the namespace, so the
// 409-entry budget in stays a single flat count regardless of
// device size (see DESIGN.md).
func (fs *FileSystem) entries() *direntry.Table {
	return &fs.superblocks[0].Entries
}
