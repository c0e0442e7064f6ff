package zelf

import (
	"encoding/binary"
	"fmt"
)

// RelArch selects which machine's relocation type codes Rel/Rela
// projection decodes against. It mirrors the architectures this package
// recognizes in the ELF header's e_machine field (see elf.go).
type RelArch uint8

const (
	RelArchX86 RelArch = iota // i386 (EM_386)
	RelArchX86_64
	RelArchAArch64
	RelArchRiscv64
)

// RelSemantic is the architecture-independent relocation category a
// type code decodes to. Every architecture's numeric codes collapse
// onto this shared set; Unknown preserves the raw code in
// RelKind.TypeCode for codes this package does not recognize.
type RelSemantic uint8

const (
	RelNone RelSemantic = iota
	RelAbs32
	RelAbs64
	RelPC32
	RelPC64
	RelGOT32
	RelPLT32
	RelCopy
	RelGlobDat
	RelJumpSlot
	RelRelative
	RelGOTOff
	RelGOTPC
	RelUnknown
)

func (s RelSemantic) String() string {
	switch s {
	case RelNone:
		return "None"
	case RelAbs32:
		return "Abs32"
	case RelAbs64:
		return "Abs64"
	case RelPC32:
		return "PC32"
	case RelPC64:
		return "PC64"
	case RelGOT32:
		return "GOT32"
	case RelPLT32:
		return "PLT32"
	case RelCopy:
		return "Copy"
	case RelGlobDat:
		return "GlobDat"
	case RelJumpSlot:
		return "JumpSlot"
	case RelRelative:
		return "Relative"
	case RelGOTOff:
		return "GOTOff"
	case RelGOTPC:
		return "GOTPC"
	default:
		return "Unknown"
	}
}

// RelKind is the decoded type field of a relocation entry.
type RelKind struct {
	Arch     RelArch
	Semantic RelSemantic
	TypeCode uint32
}

func (k RelKind) String() string {
	if k.Semantic == RelUnknown {
		return fmt.Sprintf("Unknown(0x%x)", k.TypeCode)
	}
	return k.Semantic.String()
}

func decodeRelType(arch RelArch, code uint32) RelKind {
	sem := RelUnknown
	switch arch {
	case RelArchX86:
		switch code {
		case 0:
			sem = RelNone
		case 1:
			sem = RelAbs32
		case 2:
			sem = RelPC32
		case 3:
			sem = RelGOT32
		case 4:
			sem = RelPLT32
		case 5:
			sem = RelCopy
		case 6:
			sem = RelGlobDat
		case 7:
			sem = RelJumpSlot
		case 8:
			sem = RelRelative
		case 9:
			sem = RelGOTOff
		case 10:
			sem = RelGOTPC
		}
	case RelArchX86_64:
		switch code {
		case 0:
			sem = RelNone
		case 1:
			sem = RelAbs64
		case 2:
			sem = RelPC32
		case 3:
			sem = RelGOT32
		case 4:
			sem = RelPLT32
		case 5:
			sem = RelCopy
		case 6:
			sem = RelGlobDat
		case 7:
			sem = RelJumpSlot
		case 8:
			sem = RelRelative
		case 9:
			sem = RelGOTPC
		}
	case RelArchAArch64:
		switch code {
		case 0:
			sem = RelNone
		case 257:
			sem = RelAbs64
		case 258:
			sem = RelAbs32
		case 260:
			sem = RelPC64
		case 261:
			sem = RelPC32
		case 1024:
			sem = RelCopy
		case 1025:
			sem = RelGlobDat
		case 1026:
			sem = RelJumpSlot
		case 1027:
			sem = RelRelative
		}
	case RelArchRiscv64:
		switch code {
		case 0:
			sem = RelNone
		case 1:
			sem = RelAbs32
		case 2:
			sem = RelAbs64
		case 3:
			sem = RelRelative
		case 4:
			sem = RelCopy
		case 5:
			sem = RelJumpSlot
		}
	}
	return RelKind{Arch: arch, Semantic: sem, TypeCode: code}
}

func relSymShift(class Class) uint {
	if class == Class32 {
		return 8
	}
	return 32
}

func relTypeMask(class Class) uint64 {
	if class == Class32 {
		return 0xff
	}
	return 0xffffffff
}

func decodeRelInfo(class Class, info uint64) (sym uint32, typeCode uint32) {
	shift := relSymShift(class)
	mask := relTypeMask(class)
	return uint32(info >> shift), uint32(info & mask)
}

func encodeRelInfo(class Class, sym uint32, typeCode uint32) uint64 {
	shift := relSymShift(class)
	return uint64(sym)<<shift | uint64(typeCode)&relTypeMask(class)
}

// RelData is the projected form of a Rel entry: a relocated offset, the
// symbol-table index to apply, and the decoded relocation kind.
type RelData struct {
	Offset Addr
	Sym    uint32
	Kind   RelKind
}

// RelaData is a RelData with an explicit addend.
type RelaData struct {
	RelData
	Addend Addend
}

func relEntSize(class Class) int {
	if class == Class32 {
		return 8
	}
	return 16
}

func relaEntSize(class Class) int {
	if class == Class32 {
		return 12
	}
	return 24
}

// Rel is a read-only, non-owning view over a sequence of fixed-size
// Rel (offset, info) relocation records.
type Rel struct {
	data []byte
	w    width
	arch RelArch
}

// NewRel validates that data's length is a multiple of the
// class-dependent Rel entry size.
func NewRel(data []byte, class Class, order binary.ByteOrder, arch RelArch) (Rel, error) {
	entSize := relEntSize(class)
	if len(data)%entSize != 0 {
		return Rel{}, &Error{Kind: BadSize, Size: uint64(len(data)), Want: uint64(entSize)}
	}
	return Rel{data: data, w: width{class: class, order: order}, arch: arch}, nil
}

func (r Rel) Len() int { return len(r.data) / relEntSize(r.w.class) }

// Idx projects the i'th Rel entry directly, since Rel carries no handle
// type distinct from its projected data.
func (r Rel) Idx(i int) (RelData, bool) {
	entSize := relEntSize(r.w.class)
	if i < 0 || (i+1)*entSize > len(r.data) {
		return RelData{}, false
	}
	rec := r.data[i*entSize : (i+1)*entSize]
	w := r.w
	offset := w.addr(rec[0:w.addrSize()])
	var info uint64
	if w.class == Class32 {
		info = uint64(w.word(rec[4:8]))
	} else {
		info = w.order.Uint64(rec[8:16])
	}
	sym, typeCode := decodeRelInfo(w.class, info)
	return RelData{Offset: offset, Sym: sym, Kind: decodeRelType(r.arch, typeCode)}, true
}

type RelIter struct {
	r   Rel
	idx int
}

func (r Rel) Iter() *RelIter { return &RelIter{r: r} }

func (it *RelIter) Next() (RelData, bool) {
	d, ok := it.r.Idx(it.idx)
	if !ok {
		return RelData{}, false
	}
	it.idx++
	return d, true
}

// RelRequiredBytes returns the buffer size CreateRelSplit needs for n
// entries of class.
func RelRequiredBytes(class Class, n int) int { return relEntSize(class) * n }

// CreateRelSplit writes entries into buf, returning the written prefix
// and unused remainder.
func CreateRelSplit(buf []byte, class Class, order binary.ByteOrder, entries []RelData) (written, rest []byte, err error) {
	w := width{class: class, order: order}
	entSize := relEntSize(class)
	need := entSize * len(entries)
	if len(buf) < need {
		return nil, nil, &Error{Kind: BadSize, Size: uint64(len(buf)), Want: uint64(need)}
	}
	for i, e := range entries {
		rec := buf[i*entSize : (i+1)*entSize]
		w.putAddr(rec[0:w.addrSize()], e.Offset)
		info := encodeRelInfo(class, e.Sym, e.Kind.TypeCode)
		if class == Class32 {
			w.putWord(rec[4:8], Word(uint32(info)))
		} else {
			w.order.PutUint64(rec[8:16], info)
		}
	}
	return buf[:need], buf[need:], nil
}

// Rela is a read-only, non-owning view over a sequence of fixed-size
// Rela (offset, info, addend) relocation records.
type Rela struct {
	data []byte
	w    width
	arch RelArch
}

// NewRela validates that data's length is a multiple of the
// class-dependent Rela entry size.
func NewRela(data []byte, class Class, order binary.ByteOrder, arch RelArch) (Rela, error) {
	entSize := relaEntSize(class)
	if len(data)%entSize != 0 {
		return Rela{}, &Error{Kind: BadSize, Size: uint64(len(data)), Want: uint64(entSize)}
	}
	return Rela{data: data, w: width{class: class, order: order}, arch: arch}, nil
}

func (r Rela) Len() int { return len(r.data) / relaEntSize(r.w.class) }

func (r Rela) Idx(i int) (RelaData, bool) {
	entSize := relaEntSize(r.w.class)
	if i < 0 || (i+1)*entSize > len(r.data) {
		return RelaData{}, false
	}
	rec := r.data[i*entSize : (i+1)*entSize]
	w := r.w
	if w.class == Class32 {
		offset := w.addr(rec[0:4])
		info := uint64(w.word(rec[4:8]))
		addend := w.addend(rec[8:12])
		sym, typeCode := decodeRelInfo(w.class, info)
		return RelaData{
			RelData: RelData{Offset: offset, Sym: sym, Kind: decodeRelType(r.arch, typeCode)},
			Addend:  addend,
		}, true
	}
	offset := w.addr(rec[0:8])
	info := w.order.Uint64(rec[8:16])
	addend := w.addend(rec[16:24])
	sym, typeCode := decodeRelInfo(w.class, info)
	return RelaData{
		RelData: RelData{Offset: offset, Sym: sym, Kind: decodeRelType(r.arch, typeCode)},
		Addend:  addend,
	}, true
}

type RelaIter struct {
	r   Rela
	idx int
}

func (r Rela) Iter() *RelaIter { return &RelaIter{r: r} }

func (it *RelaIter) Next() (RelaData, bool) {
	d, ok := it.r.Idx(it.idx)
	if !ok {
		return RelaData{}, false
	}
	it.idx++
	return d, true
}

// RelaRequiredBytes returns the buffer size CreateRelaSplit needs for n
// entries of class.
func RelaRequiredBytes(class Class, n int) int { return relaEntSize(class) * n }

// CreateRelaSplit writes entries into buf, returning the written prefix
// and unused remainder.
func CreateRelaSplit(buf []byte, class Class, order binary.ByteOrder, entries []RelaData) (written, rest []byte, err error) {
	w := width{class: class, order: order}
	entSize := relaEntSize(class)
	need := entSize * len(entries)
	if len(buf) < need {
		return nil, nil, &Error{Kind: BadSize, Size: uint64(len(buf)), Want: uint64(need)}
	}
	for i, e := range entries {
		rec := buf[i*entSize : (i+1)*entSize]
		info := encodeRelInfo(class, e.Sym, e.Kind.TypeCode)
		if class == Class32 {
			w.putAddr(rec[0:4], e.Offset)
			w.putWord(rec[4:8], Word(uint32(info)))
			w.putAddend(rec[8:12], e.Addend)
		} else {
			w.putAddr(rec[0:8], e.Offset)
			w.order.PutUint64(rec[8:16], info)
			w.putAddend(rec[16:24], e.Addend)
		}
	}
	return buf[:need], buf[need:], nil
}
