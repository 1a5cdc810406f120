//go:build !unix

package pool

import "unsafe"

// Without mmap the arena lives on the Go heap. It is allocated as words so
// that the base is pointer aligned.
func sysMap(size int) ([]byte, error) {
	words := make([]uint64, (size+7)/8)
	return unsafe.Slice((*byte)(unsafe.Pointer(&words[0])), size), nil
}

func sysUnmap(buf []byte) error {
	return nil
}
