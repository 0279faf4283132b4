// Package bbfs implements BBFS, a small log-structured filesystem for raw
// NAND flash: a flat namespace of fixed 8.3 filenames over a device of up
// to 128 MiB, with crash-safe in-place updates, wear-leveling bias,
// fragmentation-aware allocation, and an offline integrity checker.
package bbfs

import (
	"github.com/iquefs/bbfs/internal/nand"
)

// PageSize, BlockSize, and PagesPerBlock are the device-invariant
// geometry constants.
const (
	PageSize      = nand.PageSize
	BlockSize     = nand.BlockSize
	PagesPerBlock = nand.PagesPerBlock
)

// FATEntriesPerSuperblock is the number of blocks one superblock's FAT
// governs: 64 MiB / BlockSize.
const FATEntriesPerSuperblock = 4096

// EntriesPerSuperblock is the fixed size of the directory table.
const EntriesPerSuperblock = 409

// SuperblockAreaBlocks is the number of blocks at the tail of the device
// reserved for the superblock pool.
const SuperblockAreaBlocks = 16

// MaxBytesPerSuperblock is the device capacity one superblock governs
// (64 MiB).
const MaxBytesPerSuperblock = FATEntriesPerSuperblock * BlockSize

// MaxSuperblocks is the largest superblock-chain length BBFS supports,
// covering devices up to 128 MiB.
const MaxSuperblocks = 2

// BigFileThreshold is the cutoff, in bytes, at or above which a file's
// allocations prefer the whole-device linear scan instead of the
// small-file area.
const BigFileThreshold = 512 * 1024
