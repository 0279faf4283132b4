// Package utils holds small, dependency-free helpers shared across BBFS's
// internal packages.
package utils

import "sync"

var bufferPool = sync.Pool{
	New: func() interface{} {
		return make([]byte, 0, 512) // one NAND page
	},
}

// GetBuffer returns a byte slice of the requested size from the pool,
// sized for the page- and footer-scratch buffers mount and the open-file
// engine allocate repeatedly.
func GetBuffer(size int) []byte {
	buf := bufferPool.Get().([]byte)
	if cap(buf) < size {
		return make([]byte, size, size*2)
	}
	return buf[:size]
}

// ReleaseBuffer returns a buffer to the pool.
func ReleaseBuffer(buf []byte) {
	//nolint:staticcheck // SA6002: slice descriptor copy is acceptable for sync.Pool
	bufferPool.Put(buf[:0])
}
