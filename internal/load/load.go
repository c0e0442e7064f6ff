// Package load places a single loadable ELF segment into process memory
// and translates addresses within it.
//
// LoadBuf mirrors the reference implementation's LoadBuf: one buffer
// backs exactly one PT_LOAD segment, and MapAnon/OpenMapped back that
// buffer with real memory obtained via mmap(2) when the caller wants
// pages instead of a plain Go slice.
package load

import (
	"fmt"
	"sort"

	"github.com/xyproto/zelf"
)

// LoadBuf is the memory a single PT_LOAD segment is placed into. base is
// the address the buffer is mapped at; origAddr is the segment's
// original p_vaddr, recorded by Load and used by Offset to translate
// addresses that assumed the original mapping.
type LoadBuf struct {
	mem      []byte
	base     zelf.Addr
	origAddr zelf.Addr
}

// NewLoadBuf wraps mem as the backing memory for a segment mapped at
// base. Nothing guarantees mem is actually mapped there; callers that
// need that guarantee should use MapAnon or OpenMapped.
func NewLoadBuf(mem []byte, base zelf.Addr) LoadBuf {
	return LoadBuf{mem: mem, base: base}
}

// Bytes returns the underlying buffer.
func (l LoadBuf) Bytes() []byte { return l.mem }

// Base returns the address l is mapped at.
func (l LoadBuf) Base() zelf.Addr { return l.base }

// Load copies a Load segment's file content into l, which must be at
// least hdr.MemSize bytes, and records hdr.VirtAddr as the segment's
// original address for later use by Offset. Bytes past len(content) (the
// portion covered by MemSize but not FileSize, e.g. .bss) are left as
// whatever l already contained; callers backing l with fresh
// zero-initialized memory (as MapAnon does) get zero-fill for free.
func (l *LoadBuf) Load(hdr zelf.ProgHdrData, content []byte) error {
	if hdr.Tag != zelf.ProgHdrLoad {
		return fmt.Errorf("load: program header is not a Load segment")
	}
	memSize := int(hdr.MemSize)
	if uint64(memSize) != hdr.MemSize {
		return fmt.Errorf("load: segment memory size 0x%x overflows int", hdr.MemSize)
	}
	if len(l.mem) < memSize {
		return fmt.Errorf("load: buffer of %d bytes too short for segment of %d bytes", len(l.mem), memSize)
	}
	copy(l.mem, content)
	l.origAddr = hdr.VirtAddr
	return nil
}

// Offset reports the byte distance within l between the segment's
// original address and addr, for translating an address recorded
// relative to the segment's original mapping into the buffer's own
// coordinates. ok is false when addr lies before the original address or
// at or past the end of l's buffer.
func (l LoadBuf) Offset(addr zelf.Addr) (offset int64, ok bool) {
	if addr < l.origAddr {
		return 0, false
	}
	d := uint64(addr - l.origAddr)
	if d >= uint64(len(l.mem)) {
		return 0, false
	}
	return int64(d), true
}

// Sort orders bufs by base address ascending, mirroring the reference
// implementation's LoadBuf::sort, used to lay segments out in address
// order before mapping them one after another.
func Sort(bufs []LoadBuf) {
	sort.Slice(bufs, func(i, j int) bool { return bufs[i].base < bufs[j].base })
}
