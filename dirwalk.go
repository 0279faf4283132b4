package bbfs

import (
	"github.com/iquefs/bbfs/internal/direntry"
)

// DirEntry is one result of directory enumeration. Type is always "regular file" — BBFS has no
// subdirectories.
type DirEntry struct {
	Name string
	Type string
	Size uint32
}

// Dir is an opaque enumeration cursor over the flat namespace.
type Dir struct {
	fs     *FileSystem
	cursor int
}

// FindFirst opens a directory iterator over the one valid path, "/".
// Any other path is InvalidName.
func (fs *FileSystem) FindFirst(path string) (*Dir, error) {
	if path != "/" {
		return nil, newErr(KindInvalidName, path)
	}
	return &Dir{fs: fs, cursor: -1}, nil
}

// FindNext advances the cursor to the next valid slot and returns its
// entry, or ok == false once the table is exhausted.
func (d *Dir) FindNext() (entry DirEntry, ok bool) {
	t := d.fs.entries()
	for d.cursor++; d.cursor < direntry.Count; d.cursor++ {
		e := &t.Entries[d.cursor]
		if !e.Valid {
			continue
		}
		return DirEntry{
			Name: direntry.AssembleName(e),
			Type: "regular file",
			Size: e.ByteSize(),
		}, true
	}
	return DirEntry{}, false
}
