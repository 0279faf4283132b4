package bbfs

import "github.com/iquefs/bbfs/internal/fat"

// GetFileBlocks returns the full, in-order list of physical block indices
// backing name's chain, for memory-mapping clients. Returns NotFound if name does not exist.
func (fs *FileSystem) GetFileBlocks(name string) ([]int, error) {
	idx, err := fs.entries().FindByName(name)
	if err != nil {
		return nil, &Error{Kind: KindInvalidName, Context: name, Cause: err}
	}
	if idx < 0 {
		return nil, newErr(KindNotFound, name)
	}

	var blocks []int
	b := fs.entries().Entries[idx].Block
	for b != fat.Terminator && !b.IsSentinel() {
		blocks = append(blocks, int(b))
		b = fs.fatView.Get(int(b))
	}
	return blocks, nil
}
