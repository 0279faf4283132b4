// Package nand defines the adapter contract BBFS's engine consumes and
// never implements itself: the raw page/block I/O
// primitives of the underlying NAND driver.
package nand

import "context"

// PageSize and BlockSize are the device-invariant geometry constants.
// PagesPerBlock follows from the two.
const (
	PageSize      = 512
	BlockSize     = 32 * PageSize
	PagesPerBlock = BlockSize / PageSize
)

// Device is the NAND adapter contract BBFS's filesystem core is built
// against. Implementations may block; all failures propagate as a
// generic I/O error. BBFS never retries a failed
// call — retries, if any, belong in the adapter.
type Device interface {
	// DeviceSize returns the total device capacity in bytes. Must be a
	// multiple of BlockSize.
	DeviceSize(ctx context.Context) (int64, error)

	// ReadAt reads len(buf) bytes from block at byte offset offset
	// within the block (0 <= offset, offset+len(buf) <= BlockSize).
	ReadAt(ctx context.Context, block, offset int, buf []byte) error

	// WritePages writes count whole pages of buf (len(buf) ==
	// count*PageSize) to block starting at firstPage. The target pages
	// must already be erased. withECC requests the driver compute and
	// store an error-correcting code alongside the data; BBFS sets it
	// for all file and superblock data.
	WritePages(ctx context.Context, block, firstPage, count int, buf []byte, withECC bool) error

	// EraseBlock erases block in its entirety.
	EraseBlock(ctx context.Context, block int) error
}
