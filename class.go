package zelf

import (
	"encoding/binary"
	"fmt"
)

// Class selects the ELF word size: 32-bit or 64-bit. It fixes the widths
// of every multi-byte field in the file per the System V ELF
// specification: class32 uses 16/32/32/32 bit half/word/addr/offset,
// class64 widens addr and offset to 64 bits.
type Class uint8

const (
	Class32 Class = 1
	Class64 Class = 2
)

func (c Class) String() string {
	switch c {
	case Class32:
		return "ELFCLASS32"
	case Class64:
		return "ELFCLASS64"
	default:
		return fmt.Sprintf("ELFCLASS(%d)", uint8(c))
	}
}

func (c Class) valid() bool {
	return c == Class32 || c == Class64
}

// Half, Word, Addr, Offset and Addend mirror the System V ELF primitive
// widths named in the specification. Addr, Offset and Addend are always
// carried as 64-bit Go values regardless of class; the class only
// determines how many bytes are read or written at the buffer boundary,
// the same convention used by debug/elf and every ELF reader in the wider
// Go ecosystem.
type (
	Half   uint16
	Word   uint32
	Addr   uint64
	Offset uint64
	Addend int64
)

func (a Addr) String() string   { return fmt.Sprintf("0x%x", uint64(a)) }
func (o Offset) String() string { return fmt.Sprintf("0x%x", uint64(o)) }
func (a Addend) String() string { return fmt.Sprintf("%+d", int64(a)) }

// width carries the (class, byte order) pair that every handle in this
// package is logically parameterized over. The specification frames this
// pair as a phantom, compile-time axis; Go has no zero-cost way to
// monomorphize over a value this small without generating a type per
// (class, order) combination, so width carries it at runtime instead —
// the same "vtable dispatch" choice debug/elf, yalue/elf_reader and
// db47h/mirv/elf all make by carrying a binary.ByteOrder value.
type width struct {
	class Class
	order binary.ByteOrder
}

func (w width) addrSize() int {
	if w.class == Class32 {
		return 4
	}
	return 8
}

func (w width) half(b []byte) Half       { return Half(w.order.Uint16(b)) }
func (w width) putHalf(b []byte, v Half) { w.order.PutUint16(b, uint16(v)) }

func (w width) word(b []byte) Word       { return Word(w.order.Uint32(b)) }
func (w width) putWord(b []byte, v Word) { w.order.PutUint32(b, uint32(v)) }

func (w width) addr(b []byte) Addr {
	if w.class == Class32 {
		return Addr(w.order.Uint32(b))
	}
	return Addr(w.order.Uint64(b))
}

func (w width) putAddr(b []byte, v Addr) {
	if w.class == Class32 {
		w.order.PutUint32(b, uint32(v))
	} else {
		w.order.PutUint64(b, uint64(v))
	}
}

func (w width) offset(b []byte) Offset        { return Offset(w.addr(b)) }
func (w width) putOffset(b []byte, v Offset)  { w.putAddr(b, Addr(v)) }

func (w width) addend(b []byte) Addend {
	if w.class == Class32 {
		return Addend(int32(w.order.Uint32(b)))
	}
	return Addend(int64(w.order.Uint64(b)))
}

func (w width) putAddend(b []byte, v Addend) {
	if w.class == Class32 {
		w.order.PutUint32(b, uint32(int32(v)))
	} else {
		w.order.PutUint64(b, uint64(v))
	}
}
