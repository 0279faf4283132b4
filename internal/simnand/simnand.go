// Package simnand is an in-memory NAND simulator used by BBFS's own test
// suite: a small fixed backing buffer with deliberately unforgiving
// bounds checks, extended with erase/program-state tracking and
// injectable crash points so the crash-safety property tests can
// simulate power loss mid-operation.
package simnand

import (
	"context"
	"errors"
	"fmt"

	"github.com/iquefs/bbfs/internal/nand"
)

// ErrCrashed is returned by every write or erase on a Device once its
// injected crash point has been reached. Reads and DeviceSize are not
// affected.
var ErrCrashed = errors.New("simnand: simulated power loss")

// Device is an in-memory NAND: one byte slice per block, plus a
// per-block "erased" flag recording whether the block has been written
// since its last erase. WritePages does not consult the flag: a write to
// a page that is not erased is accepted and overwrites it.
type Device struct {
	blockSize int
	blocks    [][]byte
	erased    []bool

	crashAfter int // -1 disables; otherwise number of writes/erases remaining before ErrCrashed
	crashed    bool
	writeCount int
}

// New creates a Device with nBlocks blocks of nand.BlockSize bytes each,
// all initially erased (all 0xFF, matching blank NAND).
func New(nBlocks int) *Device {
	d := &Device{
		blockSize:  nand.BlockSize,
		blocks:     make([][]byte, nBlocks),
		erased:     make([]bool, nBlocks),
		crashAfter: -1,
	}
	for i := range d.blocks {
		d.blocks[i] = make([]byte, d.blockSize)
		for j := range d.blocks[i] {
			d.blocks[i][j] = 0xFF
		}
		d.erased[i] = true
	}
	return d
}

// CrashAfter arms the simulator to fail every write and erase, starting
// with the (n+1)th write or erase from now. n==0 crashes on the next
// write or erase.
func (d *Device) CrashAfter(n int) {
	d.crashAfter = n
}

// Crashed reports whether the simulated crash point has been reached.
func (d *Device) Crashed() bool { return d.crashed }

func (d *Device) checkCrash() error {
	if d.crashed {
		return ErrCrashed
	}
	if d.crashAfter == 0 {
		d.crashed = true
		return ErrCrashed
	}
	return nil
}

func (d *Device) countMutation() {
	d.writeCount++
	if d.crashAfter > 0 {
		d.crashAfter--
	}
}

// DeviceSize implements nand.Device.
func (d *Device) DeviceSize(ctx context.Context) (int64, error) {
	return int64(len(d.blocks)) * int64(d.blockSize), nil
}

// ReadAt implements nand.Device. Reading is always permitted, even from
// an erased (never-written) block, the way a real NAND returns
// 0xFF-filled pages for erased-but-unwritten space.
func (d *Device) ReadAt(ctx context.Context, block, offset int, buf []byte) error {
	if block < 0 || block >= len(d.blocks) {
		return fmt.Errorf("simnand: block %d out of range", block)
	}
	if offset < 0 || offset+len(buf) > d.blockSize {
		return fmt.Errorf("simnand: read out of block range")
	}
	copy(buf, d.blocks[block][offset:offset+len(buf)])
	return nil
}

// WritePages implements nand.Device.
func (d *Device) WritePages(ctx context.Context, block, firstPage, count int, buf []byte, withECC bool) error {
	if err := d.checkCrash(); err != nil {
		return err
	}
	if block < 0 || block >= len(d.blocks) {
		return fmt.Errorf("simnand: block %d out of range", block)
	}
	want := count * nand.PageSize
	if len(buf) != want {
		return fmt.Errorf("simnand: buffer length %d != %d", len(buf), want)
	}
	off := firstPage * nand.PageSize
	copy(d.blocks[block][off:off+want], buf)
	d.erased[block] = false
	d.countMutation()
	return nil
}

// EraseBlock implements nand.Device.
func (d *Device) EraseBlock(ctx context.Context, block int) error {
	if err := d.checkCrash(); err != nil {
		return err
	}
	if block < 0 || block >= len(d.blocks) {
		return fmt.Errorf("simnand: block %d out of range", block)
	}
	for i := range d.blocks[block] {
		d.blocks[block][i] = 0xFF
	}
	d.erased[block] = true
	d.countMutation()
	return nil
}
