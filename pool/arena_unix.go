//go:build unix

package pool

import "golang.org/x/sys/unix"

func sysMap(size int) ([]byte, error) {
	return unix.Mmap(-1, 0, size, unix.PROT_READ|unix.PROT_WRITE,
		unix.MAP_PRIVATE|unix.MAP_ANON)
}

func sysUnmap(buf []byte) error {
	return unix.Munmap(buf)
}
