// Package sb implements the BBFS superblock codec: reading, verifying,
// and writing the fixed 16 KiB superblock image that holds one
// superblock's FAT, its 409-entry directory table, and its 12-byte
// footer.
//
// The encode/decode functions use explicit, field-at-a-time byte-order
// handling (no unsafe reinterpretation of host memory layout) over a
// single fixed big-endian layout.
package sb

import (
	"encoding/binary"
	"errors"

	"github.com/iquefs/bbfs/internal/direntry"
	"github.com/iquefs/bbfs/internal/fat"
)

// Size is the fixed on-flash size of a superblock: 16 KiB, identical to
// the device block size.
const Size = 32 * 512

// ChecksumMagic is the constant the sum of every big-endian 16-bit word in
// a superblock must equal once its checksum field is filled in.
const ChecksumMagic = 0xCAD7

// Magic values for the footer. BBFS canonicalizes 'BBFS'
// as the only valid primary magic and 'BBFL' as the only valid linked
// secondary magic.
var (
	MagicPrimary = [4]byte{'B', 'B', 'F', 'S'}
	MagicLinked  = [4]byte{'B', 'B', 'F', 'L'}
)

const (
	fatBytes     = 4096 * 2           // 8192
	entriesBytes = direntry.Count * direntry.EntrySize // 8180
	footerBytes  = 12
)

func init() {
	// Sanity-check the layout fits exactly in one block; a mismatch here
	// would mean the format constants drifted out of sync.
	if fatBytes+entriesBytes+footerBytes != Size {
		panic("sb: superblock layout does not sum to Size")
	}
}

// Footer is the 12-byte trailer of a superblock.
type Footer struct {
	Magic    [4]byte
	Seqno    uint32
	Link     uint16
	Checksum uint16
}

// IsPrimary reports whether the footer carries the primary magic.
func (f *Footer) IsPrimary() bool { return f.Magic == MagicPrimary }

// IsLinked reports whether the footer carries the linked-secondary magic.
func (f *Footer) IsLinked() bool { return f.Magic == MagicLinked }

// Superblock is the decoded, in-memory form of one 16 KiB superblock
// image.
type Superblock struct {
	FAT     fat.Table
	Entries direntry.Table
	Footer  Footer
}

// ErrTooSmall is returned by Decode when the supplied buffer is shorter
// than Size.
var ErrTooSmall = errors.New("sb: buffer shorter than superblock size")

// ErrBadChecksum is returned by Decode when the block's checksum does not
// sum to ChecksumMagic (the condition Verify reports as false).
var ErrBadChecksum = errors.New("sb: checksum does not verify")

// Verify reports whether the sum of every big-endian 16-bit word in block
// equals ChecksumMagic.
func Verify(block []byte) bool {
	var sum uint16
	for i := 0; i+1 < len(block); i += 2 {
		sum += binary.BigEndian.Uint16(block[i:])
	}
	return sum == ChecksumMagic
}

// ReadFooter decodes only the 12-byte footer at the end of block, for the
// cheap first pass of mount, without validating the
// checksum or decoding the FAT/entries.
func ReadFooter(block []byte) (Footer, error) {
	if len(block) < Size {
		return Footer{}, ErrTooSmall
	}
	return decodeFooter(block[Size-footerBytes:]), nil
}

// DecodeFooter parses a bare 12-byte footer buffer (as read directly from
// offset Size-12 within a block, without fetching the whole superblock
// image), for mount's cheap candidate-collection pass.
func DecodeFooter(b []byte) (Footer, error) {
	if len(b) < footerBytes {
		return Footer{}, ErrTooSmall
	}
	return decodeFooter(b), nil
}

func decodeFooter(b []byte) Footer {
	var f Footer
	copy(f.Magic[:], b[0:4])
	f.Seqno = binary.BigEndian.Uint32(b[4:8])
	f.Link = binary.BigEndian.Uint16(b[8:10])
	f.Checksum = binary.BigEndian.Uint16(b[10:12])
	return f
}

// Decode parses and checksum-verifies a full superblock image.
func Decode(block []byte) (*Superblock, error) {
	if len(block) < Size {
		return nil, ErrTooSmall
	}
	if !Verify(block) {
		return nil, ErrBadChecksum
	}

	s := &Superblock{}
	for i := 0; i < 4096; i++ {
		s.FAT.Set(i, fat.Entry(int16(binary.BigEndian.Uint16(block[i*2:]))))
	}
	base := fatBytes
	for i := 0; i < direntry.Count; i++ {
		off := base + i*direntry.EntrySize
		s.Entries.Entries[i] = direntry.Decode(block[off : off+direntry.EntrySize])
	}
	s.Footer = decodeFooter(block[Size-footerBytes:])
	return s, nil
}

// Encode serializes s into a freshly-computed, checksum-valid 16 KiB
// image: the footer's checksum field is recomputed from scratch.
func (s *Superblock) Encode() []byte {
	buf := make([]byte, Size)
	for i := 0; i < 4096; i++ {
		binary.BigEndian.PutUint16(buf[i*2:], uint16(s.FAT.Get(i)))
	}
	base := fatBytes
	for i := 0; i < direntry.Count; i++ {
		off := base + i*direntry.EntrySize
		e := s.Entries.Entries[i]
		e.Encode(buf[off : off+direntry.EntrySize])
	}

	footerOff := Size - footerBytes
	copy(buf[footerOff:], s.Footer.Magic[:])
	binary.BigEndian.PutUint32(buf[footerOff+4:], s.Footer.Seqno)
	binary.BigEndian.PutUint16(buf[footerOff+8:], s.Footer.Link)
	binary.BigEndian.PutUint16(buf[footerOff+10:], 0)

	var sum uint16
	for i := 0; i+1 < len(buf); i += 2 {
		sum += binary.BigEndian.Uint16(buf[i:])
	}
	checksum := uint16(ChecksumMagic - sum)
	binary.BigEndian.PutUint16(buf[footerOff+10:], checksum)
	s.Footer.Checksum = checksum

	return buf
}
