package zelf

import (
	"encoding/binary"
	"fmt"
)

// ProgHdrTag is the p_type field of a program header entry.
type ProgHdrTag uint8

const (
	ProgHdrNull ProgHdrTag = iota
	ProgHdrLoad
	ProgHdrDynamic
	ProgHdrInterp
	ProgHdrNote
	ProgHdrShlib
	ProgHdrProgHdr
	ProgHdrUnknown
)

func (t ProgHdrTag) String() string {
	switch t {
	case ProgHdrNull:
		return "Null"
	case ProgHdrLoad:
		return "Load"
	case ProgHdrDynamic:
		return "Dynamic"
	case ProgHdrInterp:
		return "Interp"
	case ProgHdrNote:
		return "Note"
	case ProgHdrShlib:
		return "Shlib"
	case ProgHdrProgHdr:
		return "ProgHdr"
	default:
		return "Unknown"
	}
}

func decodeProgHdrTag(raw uint32) ProgHdrTag {
	switch raw {
	case 0:
		return ProgHdrNull
	case 1:
		return ProgHdrLoad
	case 2:
		return ProgHdrDynamic
	case 3:
		return ProgHdrInterp
	case 4:
		return ProgHdrNote
	case 5:
		return ProgHdrShlib
	case 6:
		return ProgHdrProgHdr
	default:
		return ProgHdrUnknown
	}
}

func progHdrTagCode(t ProgHdrTag) uint32 {
	switch t {
	case ProgHdrNull:
		return 0
	case ProgHdrLoad:
		return 1
	case ProgHdrDynamic:
		return 2
	case ProgHdrInterp:
		return 3
	case ProgHdrNote:
		return 4
	case ProgHdrShlib:
		return 5
	case ProgHdrProgHdr:
		return 6
	default:
		return 0
	}
}

// ProgHdrPerms is the R/W/X decoding of a program header's p_flags.
type ProgHdrPerms struct {
	R, W, X bool
}

func decodeProgHdrPerms(flags uint32) ProgHdrPerms {
	return ProgHdrPerms{R: flags&0x4 != 0, W: flags&0x2 != 0, X: flags&0x1 != 0}
}

func (p ProgHdrPerms) encode() uint32 {
	var f uint32
	if p.R {
		f |= 0x4
	}
	if p.W {
		f |= 0x2
	}
	if p.X {
		f |= 0x1
	}
	return f
}

func progHdrDefaultAlign(t ProgHdrTag, addrSize int) uint64 {
	switch t {
	case ProgHdrDynamic, ProgHdrProgHdr:
		return uint64(addrSize)
	case ProgHdrNote:
		return 4
	case ProgHdrInterp:
		return 1
	default:
		return 0
	}
}

// ProgHdrData is the raw projected variant of a program header entry.
// Content is {Offset, FileSize} pending WithElfData. Perms is valid for
// Load; UnknownTag/UnknownFlags are valid for Unknown.
type ProgHdrData struct {
	Tag          ProgHdrTag
	VirtAddr     Addr
	PhysAddr     Addr
	Offset       uint64
	FileSize     uint64
	MemSize      uint64
	Align        uint64
	Perms        ProgHdrPerms
	UnknownTag   uint32
	UnknownFlags uint32
}

func (p ProgHdrData) String() string {
	switch p.Tag {
	case ProgHdrLoad:
		perms := "---"
		b := []byte(perms)
		if p.Perms.R {
			b[0] = 'r'
		}
		if p.Perms.W {
			b[1] = 'w'
		}
		if p.Perms.X {
			b[2] = 'x'
		}
		return fmt.Sprintf("Load(vaddr=0x%x filesz=0x%x memsz=0x%x %s)", uint64(p.VirtAddr), p.FileSize, p.MemSize, string(b))
	case ProgHdrUnknown:
		return fmt.Sprintf("Unknown(0x%x)", p.UnknownTag)
	default:
		return fmt.Sprintf("%s(offset=0x%x size=0x%x)", p.Tag, p.Offset, p.FileSize)
	}
}

// WithElfData resolves this entry's {offset, size} content locator into
// a byte sub-slice of elfData. Null and Shlib entries carry no content
// and return nil.
func (p ProgHdrData) WithElfData(elfData []byte) ([]byte, error) {
	switch p.Tag {
	case ProgHdrNull, ProgHdrShlib:
		return nil, nil
	}
	end := p.Offset + p.FileSize
	if end > uint64(len(elfData)) || end < p.Offset {
		return nil, &Error{Kind: DataOutOfBounds, Offset: p.Offset, Size: p.FileSize}
	}
	return elfData[p.Offset:end], nil
}

func progHdrEntSize(class Class) int {
	if class == Class32 {
		return 32
	}
	return 56
}

// ProgHdr is a handle onto one fixed-size program header record.
type ProgHdr struct {
	data []byte
	w    width
}

// Data projects the entry; decoding never fails, unrecognized p_type
// values project to ProgHdrUnknown.
func (p ProgHdr) Data() ProgHdrData {
	w := p.w
	var tagRaw, flags uint32
	var offset, vaddr, paddr, filesz, memsz, align uint64
	if w.class == Class32 {
		tagRaw = uint32(w.word(p.data[0:4]))
		offset = uint64(w.word(p.data[4:8]))
		vaddr = uint64(w.word(p.data[8:12]))
		paddr = uint64(w.word(p.data[12:16]))
		filesz = uint64(w.word(p.data[16:20]))
		memsz = uint64(w.word(p.data[20:24]))
		flags = uint32(w.word(p.data[24:28]))
		align = uint64(w.word(p.data[28:32]))
	} else {
		tagRaw = uint32(w.word(p.data[0:4]))
		flags = uint32(w.word(p.data[4:8]))
		offset = w.order.Uint64(p.data[8:16])
		vaddr = w.order.Uint64(p.data[16:24])
		paddr = w.order.Uint64(p.data[24:32])
		filesz = w.order.Uint64(p.data[32:40])
		memsz = w.order.Uint64(p.data[40:48])
		align = w.order.Uint64(p.data[48:56])
	}
	tag := decodeProgHdrTag(tagRaw)
	out := ProgHdrData{
		Tag: tag, VirtAddr: Addr(vaddr), PhysAddr: Addr(paddr),
		Offset: offset, FileSize: filesz, MemSize: memsz, Align: align,
	}
	if tag == ProgHdrLoad {
		out.Perms = decodeProgHdrPerms(flags)
	}
	if tag == ProgHdrUnknown {
		out.UnknownTag = tagRaw
		out.UnknownFlags = flags
	}
	return out
}

// ProgHdrs is a read-only, non-owning view over a sequence of
// fixed-size program header records.
type ProgHdrs struct {
	data []byte
	w    width
}

// NewProgHdrs validates that data's length is a multiple of the
// class-dependent entry size.
func NewProgHdrs(data []byte, class Class, order binary.ByteOrder) (ProgHdrs, error) {
	entSize := progHdrEntSize(class)
	if len(data)%entSize != 0 {
		return ProgHdrs{}, &Error{Kind: BadSize, Size: uint64(len(data)), Want: uint64(entSize)}
	}
	return ProgHdrs{data: data, w: width{class: class, order: order}}, nil
}

func (p ProgHdrs) Len() int { return len(p.data) / progHdrEntSize(p.w.class) }

func (p ProgHdrs) Idx(i int) (ProgHdr, bool) {
	entSize := progHdrEntSize(p.w.class)
	if i < 0 || (i+1)*entSize > len(p.data) {
		return ProgHdr{}, false
	}
	return ProgHdr{data: p.data[i*entSize : (i+1)*entSize], w: p.w}, true
}

type ProgHdrsIter struct {
	p   ProgHdrs
	idx int
}

func (p ProgHdrs) Iter() *ProgHdrsIter { return &ProgHdrsIter{p: p} }

func (it *ProgHdrsIter) Next() (ProgHdr, bool) {
	h, ok := it.p.Idx(it.idx)
	if !ok {
		return ProgHdr{}, false
	}
	it.idx++
	return h, true
}

// ProgHdrsRequiredBytes returns the buffer size CreateProgHdrsSplit
// needs for n entries of class.
func ProgHdrsRequiredBytes(class Class, n int) int {
	return progHdrEntSize(class) * n
}

// CreateProgHdrsSplit writes entries into buf, filling Align with the
// writer's per-variant default (pointer-wide for Dynamic/ProgHdr,
// word-wide for Note, 1 for Interp) whenever an entry leaves Align
// unset (zero) for a variant that has a nonzero default.
func CreateProgHdrsSplit(buf []byte, class Class, order binary.ByteOrder, entries []ProgHdrData) (written, rest []byte, err error) {
	w := width{class: class, order: order}
	entSize := progHdrEntSize(class)
	need := entSize * len(entries)
	if len(buf) < need {
		return nil, nil, &Error{Kind: BadSize, Size: uint64(len(buf)), Want: uint64(need)}
	}
	for i, e := range entries {
		rec := buf[i*entSize : (i+1)*entSize]
		align := e.Align
		if align == 0 {
			align = progHdrDefaultAlign(e.Tag, w.addrSize())
		}
		var tagCode, flags uint32
		if e.Tag == ProgHdrUnknown {
			tagCode = e.UnknownTag
			flags = e.UnknownFlags
		} else {
			tagCode = progHdrTagCode(e.Tag)
			if e.Tag == ProgHdrLoad {
				flags = e.Perms.encode()
			}
		}
		if class == Class32 {
			w.putWord(rec[0:4], Word(tagCode))
			w.putWord(rec[4:8], Word(uint32(e.Offset)))
			w.putWord(rec[8:12], Word(uint32(e.VirtAddr)))
			w.putWord(rec[12:16], Word(uint32(e.PhysAddr)))
			w.putWord(rec[16:20], Word(uint32(e.FileSize)))
			w.putWord(rec[20:24], Word(uint32(e.MemSize)))
			w.putWord(rec[24:28], Word(flags))
			w.putWord(rec[28:32], Word(uint32(align)))
		} else {
			w.putWord(rec[0:4], Word(tagCode))
			w.putWord(rec[4:8], Word(flags))
			w.order.PutUint64(rec[8:16], e.Offset)
			w.order.PutUint64(rec[16:24], uint64(e.VirtAddr))
			w.order.PutUint64(rec[24:32], uint64(e.PhysAddr))
			w.order.PutUint64(rec[32:40], e.FileSize)
			w.order.PutUint64(rec[40:48], e.MemSize)
			w.order.PutUint64(rec[48:56], align)
		}
	}
	return buf[:need], buf[need:], nil
}
