//go:build unix

package load

import (
	"fmt"

	"golang.org/x/sys/unix"

	"github.com/xyproto/zelf"
)

// MapAnon allocates size bytes of anonymous, zero-filled, read-write
// memory via mmap(2) and returns a LoadBuf over it based at base. The
// mapping is never unmapped automatically; callers needing deterministic
// cleanup should call Unmap.
func MapAnon(size int, base zelf.Addr) (LoadBuf, error) {
	mem, err := unix.Mmap(-1, 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_ANON|unix.MAP_PRIVATE)
	if err != nil {
		return LoadBuf{}, fmt.Errorf("load: mmap failed: %w", err)
	}
	return LoadBuf{mem: mem, base: base}, nil
}

// OpenMapped opens path read-only and mmaps its entire contents,
// returning a LoadBuf based at base. Unlike MapAnon, the returned
// buffer is backed by the file itself: writes to it are not supported
// by this package's callers, which only ever read through it.
func OpenMapped(path string, base zelf.Addr) (LoadBuf, error) {
	fd, err := unix.Open(path, unix.O_RDONLY, 0)
	if err != nil {
		return LoadBuf{}, fmt.Errorf("load: open %s: %w", path, err)
	}
	defer unix.Close(fd)

	var stat unix.Stat_t
	if err := unix.Fstat(fd, &stat); err != nil {
		return LoadBuf{}, fmt.Errorf("load: stat %s: %w", path, err)
	}
	size := int(stat.Size)
	if size == 0 {
		return LoadBuf{mem: []byte{}, base: base}, nil
	}
	mem, err := unix.Mmap(fd, 0, size, unix.PROT_READ, unix.MAP_PRIVATE)
	if err != nil {
		return LoadBuf{}, fmt.Errorf("load: mmap %s: %w", path, err)
	}
	return LoadBuf{mem: mem, base: base}, nil
}

// Unmap releases memory obtained from MapAnon or OpenMapped.
func Unmap(l LoadBuf) error {
	if len(l.mem) == 0 {
		return nil
	}
	return unix.Munmap(l.mem)
}
