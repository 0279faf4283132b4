package bbfs

// Unlink frees name's entire block chain and releases its directory slot,
// then flushes.
func (fs *FileSystem) Unlink(name string) error {
	idx, err := fs.entries().FindByName(name)
	if err != nil {
		return &Error{Kind: KindInvalidName, Context: name, Cause: err}
	}
	if idx < 0 {
		return newErr(KindNotFound, name)
	}

	fs.entries().Delete(idx, fs.fatView)
	fs.markDirty(0)
	fs.log.Debug("unlink", "name", name)
	return fs.flush(bgCtx)
}
