// Package nandfile backs the NAND adapter contract with a single flat
// image file through an afero.Fs, letting callers swap
// afero.NewMemMapFs() (tests) for afero.NewOsFs() (a real device image on
// disk) without touching any BBFS core code. Grounded on aligator/GoFAT,
// which wires afero.Fs directly into its FAT driver the same way.
package nandfile

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/afero"

	"github.com/iquefs/bbfs/internal/nand"
)

// Device is an afero-backed NAND: a flat file of nBlocks*BlockSize bytes,
// created (zero-filled) if it does not already exist.
type Device struct {
	fs   afero.Fs
	path string
	size int64
}

// Open opens (creating if necessary) path within fs as a device image of
// nBlocks blocks. If the file already exists it must already be exactly
// that size.
func Open(fs afero.Fs, path string, nBlocks int) (*Device, error) {
	size := int64(nBlocks) * nand.BlockSize

	info, err := fs.Stat(path)
	if err == nil {
		if info.Size() != size {
			return nil, fmt.Errorf("nandfile: %s is %d bytes, want %d", path, info.Size(), size)
		}
		return &Device{fs: fs, path: path, size: size}, nil
	}

	f, err := fs.Create(path)
	if err != nil {
		return nil, fmt.Errorf("nandfile: create %s: %w", path, err)
	}
	defer f.Close()
	if err := f.Truncate(size); err != nil {
		return nil, fmt.Errorf("nandfile: truncate %s: %w", path, err)
	}
	return &Device{fs: fs, path: path, size: size}, nil
}

// DeviceSize implements nand.Device.
func (d *Device) DeviceSize(ctx context.Context) (int64, error) {
	return d.size, nil
}

// ReadAt implements nand.Device.
func (d *Device) ReadAt(ctx context.Context, block, offset int, buf []byte) error {
	f, err := d.fs.Open(d.path)
	if err != nil {
		return fmt.Errorf("nandfile: open: %w", err)
	}
	defer f.Close()

	at := int64(block)*nand.BlockSize + int64(offset)
	if _, err := f.ReadAt(buf, at); err != nil {
		return fmt.Errorf("nandfile: read at %d: %w", at, err)
	}
	return nil
}

// WritePages implements nand.Device.
func (d *Device) WritePages(ctx context.Context, block, firstPage, count int, buf []byte, withECC bool) error {
	if len(buf) != count*nand.PageSize {
		return fmt.Errorf("nandfile: buffer length %d != %d", len(buf), count*nand.PageSize)
	}
	f, err := d.fs.OpenFile(d.path, os.O_RDWR, 0o644)
	if err != nil {
		return fmt.Errorf("nandfile: open for write: %w", err)
	}
	defer f.Close()

	at := int64(block)*nand.BlockSize + int64(firstPage)*nand.PageSize
	if _, err := f.WriteAt(buf, at); err != nil {
		return fmt.Errorf("nandfile: write at %d: %w", at, err)
	}
	return nil
}

// EraseBlock implements nand.Device by writing 0xFF over the whole block,
// matching the blank-NAND convention simnand also uses.
func (d *Device) EraseBlock(ctx context.Context, block int) error {
	f, err := d.fs.OpenFile(d.path, os.O_RDWR, 0o644)
	if err != nil {
		return fmt.Errorf("nandfile: open for erase: %w", err)
	}
	defer f.Close()

	blank := make([]byte, nand.BlockSize)
	for i := range blank {
		blank[i] = 0xFF
	}
	at := int64(block) * nand.BlockSize
	if _, err := f.WriteAt(blank, at); err != nil {
		return fmt.Errorf("nandfile: erase at %d: %w", at, err)
	}
	return nil
}
