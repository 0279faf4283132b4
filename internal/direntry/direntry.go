// Package direntry implements BBFS's flat directory table: fixed 8.3
// filenames packed into a 409-slot array per superblock, and the
// find/create/delete/shrink operations that walk it and the FAT chains it
// roots.
package direntry

import (
	"encoding/binary"
	"strings"

	"github.com/iquefs/bbfs/internal/fat"
)

// EntrySize is the fixed on-flash size of one directory entry. Derived
// from the superblock size budget: a superblock is exactly
// 16384 bytes, of which 8192 go to the FAT and 12 to the footer, leaving
// 8180 bytes for 409 entries — 8180/409 = 20 bytes exactly. Both "17
// bytes" and "18 bytes" appear in the distilled spec text as loose
// descriptions of the same layout; 20 is the value that actually
// round-trips through the fixed superblock size (see DESIGN.md).
const EntrySize = 20

// NameLen and ExtLen are the maximum stem and extension lengths of the
// fixed 8.3 naming scheme.
const (
	NameLen = 8
	ExtLen  = 3
)

// Entry is one slot of the 409-entry directory table.
type Entry struct {
	Name    [NameLen]byte
	Ext     [ExtLen]byte
	Valid   bool
	Block   fat.Entry // first block of the file, or Terminator if empty
	Padding uint16    // bytes of padding in the last block
	Size    uint32    // file size in bytes, rounded up to a multiple of B
}

// Encode writes the entry's on-flash representation into dst, which must
// be at least EntrySize bytes.
func (e *Entry) Encode(dst []byte) {
	copy(dst[0:NameLen], e.Name[:])
	copy(dst[NameLen:NameLen+ExtLen], e.Ext[:])
	if e.Valid {
		dst[NameLen+ExtLen] = 1
	} else {
		dst[NameLen+ExtLen] = 0
	}
	off := NameLen + ExtLen + 1
	binary.BigEndian.PutUint16(dst[off:], uint16(e.Block))
	binary.BigEndian.PutUint16(dst[off+2:], e.Padding)
	binary.BigEndian.PutUint32(dst[off+4:], e.Size)
}

// Decode parses an entry from its on-flash representation, which must be
// at least EntrySize bytes.
func Decode(src []byte) Entry {
	var e Entry
	copy(e.Name[:], src[0:NameLen])
	copy(e.Ext[:], src[NameLen:NameLen+ExtLen])
	e.Valid = src[NameLen+ExtLen] != 0
	off := NameLen + ExtLen + 1
	e.Block = fat.Entry(binary.BigEndian.Uint16(src[off:]))
	e.Padding = binary.BigEndian.Uint16(src[off+2:])
	e.Size = binary.BigEndian.Uint32(src[off+4:])
	return e
}

// ByteSize returns the file's logical size in bytes: size on flash minus
// trailing padding.
func (e *Entry) ByteSize() uint32 {
	return e.Size - uint32(e.Padding)
}

// stemExt holds a parsed 8.3 name before it is packed into an Entry.
type stemExt struct {
	stem [NameLen]byte
	ext  [ExtLen]byte
}

// ParseName splits name into its zero-padded stem and extension, rejecting
// anything that doesn't fit the 8.3 scheme.
func ParseName(name string) (stem [NameLen]byte, ext [ExtLen]byte, err error) {
	base, extPart, _ := strings.Cut(name, ".")
	if len(base) == 0 || len(base) > NameLen || len(extPart) > ExtLen {
		return stem, ext, ErrInvalidName
	}
	if strings.Contains(extPart, ".") {
		return stem, ext, ErrInvalidName
	}
	copy(stem[:], base)
	copy(ext[:], extPart)
	return stem, ext, nil
}

// AssembleName reassembles an entry's on-flash stem/ext into a
// human-readable "STEM.EXT" form (or bare "STEM" if the extension is
// empty), used by directory enumeration and Handle.Name.
func AssembleName(e *Entry) string {
	stem := trimZero(e.Name[:])
	ext := trimZero(e.Ext[:])
	if ext == "" {
		return stem
	}
	return stem + "." + ext
}

func trimZero(b []byte) string {
	i := 0
	for i < len(b) && b[i] != 0 {
		i++
	}
	return string(b[:i])
}

// matches reports whether e's stem/ext equal the parsed (stem, ext) pair,
// using a fixed-length strncmp-style comparison.
func (e *Entry) matches(stem [NameLen]byte, ext [ExtLen]byte) bool {
	return e.Name == stem && e.Ext == ext
}
