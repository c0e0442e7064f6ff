package zelf

import (
	"encoding/binary"
	"fmt"
)

func symEntrySize(class Class) int {
	if class == Class32 {
		return 16
	}
	return 24
}

// SymBindTag is the symbol binding carried in the high nibble of a
// symbol's info byte.
type SymBindTag uint8

const (
	BindLocal SymBindTag = iota
	BindGlobal
	BindWeak
	BindOther
)

// SymBind is the tagged-union projection of a symbol's binding nibble.
type SymBind struct {
	Tag   SymBindTag
	Other uint8 // valid only when Tag == BindOther
}

func (t SymBindTag) String() string {
	switch t {
	case BindLocal:
		return "Local"
	case BindGlobal:
		return "Global"
	case BindWeak:
		return "Weak"
	default:
		return "Other"
	}
}

func decodeSymBind(nibble uint8) SymBind {
	switch nibble {
	case 0:
		return SymBind{Tag: BindLocal}
	case 1:
		return SymBind{Tag: BindGlobal}
	case 2:
		return SymBind{Tag: BindWeak}
	default:
		return SymBind{Tag: BindOther, Other: nibble}
	}
}

func (b SymBind) String() string {
	if b.Tag == BindOther {
		return fmt.Sprintf("Other(%d)", b.Other)
	}
	return b.Tag.String()
}

func (b SymBind) encode() uint8 {
	switch b.Tag {
	case BindLocal:
		return 0
	case BindGlobal:
		return 1
	case BindWeak:
		return 2
	default:
		return b.Other & 0xf
	}
}

// SymKindTag is the symbol type carried in the low nibble of a symbol's
// info byte.
type SymKindTag uint8

const (
	SymNone SymKindTag = iota
	SymObject
	SymFunction
	SymSection
	SymFile
	SymCommon
	SymTLS
	SymOther
)

// SymKind is the tagged-union projection of a symbol's type nibble.
type SymKind struct {
	Tag   SymKindTag
	Other uint8 // valid only when Tag == SymOther
}

func (t SymKindTag) String() string {
	switch t {
	case SymNone:
		return "None"
	case SymObject:
		return "Object"
	case SymFunction:
		return "Function"
	case SymSection:
		return "Section"
	case SymFile:
		return "File"
	case SymCommon:
		return "Common"
	case SymTLS:
		return "TLS"
	default:
		return "Other"
	}
}

func decodeSymKind(nibble uint8) SymKind {
	switch nibble {
	case 0:
		return SymKind{Tag: SymNone}
	case 1:
		return SymKind{Tag: SymObject}
	case 2:
		return SymKind{Tag: SymFunction}
	case 3:
		return SymKind{Tag: SymSection}
	case 4:
		return SymKind{Tag: SymFile}
	case 5:
		return SymKind{Tag: SymCommon}
	case 6:
		return SymKind{Tag: SymTLS}
	default:
		return SymKind{Tag: SymOther, Other: nibble}
	}
}

func (k SymKind) String() string {
	if k.Tag == SymOther {
		return fmt.Sprintf("Other(%d)", k.Other)
	}
	return k.Tag.String()
}

func (k SymKind) encode() uint8 {
	switch k.Tag {
	case SymNone:
		return 0
	case SymObject:
		return 1
	case SymFunction:
		return 2
	case SymSection:
		return 3
	case SymFile:
		return 4
	case SymCommon:
		return 5
	case SymTLS:
		return 6
	default:
		return k.Other & 0xf
	}
}

// SymSectionTag classifies a symbol's st_shndx field.
type SymSectionTag uint8

const (
	SecUndef SymSectionTag = iota
	SecAbsolute
	SecCommon
	SecIndex
	SecOther
)

const (
	shnUndef  Half = 0
	shnAbs    Half = 0xfff1
	shnCommon Half = 0xfff2
	shnLoRes  Half = 0xff00
)

// SymSectionRef is the tagged-union projection of a symbol's section
// index.
type SymSectionRef struct {
	Tag   SymSectionTag
	Index Half // valid when Tag is SecIndex or SecOther
}

func (t SymSectionTag) String() string {
	switch t {
	case SecUndef:
		return "Undef"
	case SecAbsolute:
		return "Absolute"
	case SecCommon:
		return "Common"
	case SecIndex:
		return "Index"
	default:
		return "Other"
	}
}

func decodeSymSection(v Half) SymSectionRef {
	switch v {
	case shnUndef:
		return SymSectionRef{Tag: SecUndef}
	case shnAbs:
		return SymSectionRef{Tag: SecAbsolute}
	case shnCommon:
		return SymSectionRef{Tag: SecCommon}
	default:
		if v >= shnLoRes {
			return SymSectionRef{Tag: SecOther, Index: v}
		}
		return SymSectionRef{Tag: SecIndex, Index: v}
	}
}

func (s SymSectionRef) String() string {
	switch s.Tag {
	case SecIndex, SecOther:
		return fmt.Sprintf("%s(%d)", s.Tag, s.Index)
	default:
		return s.Tag.String()
	}
}

func (s SymSectionRef) encode() Half {
	switch s.Tag {
	case SecUndef:
		return shnUndef
	case SecAbsolute:
		return shnAbs
	case SecCommon:
		return shnCommon
	default:
		return s.Index
	}
}

// SymData is the raw projected variant of a symbol-table entry: all
// fields decoded from their on-disk representation except the symbol
// name, which remains a strtab index until resolved with WithStrtab.
type SymData struct {
	Name    uint32
	Value   Addr
	Size    Offset
	Bind    SymBind
	Kind    SymKind
	Section SymSectionRef
}

func (s SymData) String() string {
	return fmt.Sprintf("Sym(nameidx=%d value=0x%x size=%d bind=%s kind=%s section=%s)",
		s.Name, uint64(s.Value), uint64(s.Size), s.Bind, s.Kind, s.Section)
}

// ResolvedSym is a SymData whose name has been resolved against a
// Strtab. NameErr holds a UTF8Decode error when the indexed bytes were
// not valid UTF-8; Name is empty in that case.
type ResolvedSym struct {
	Name    string
	NameErr error
	Value   Addr
	Size    Offset
	Bind    SymBind
	Kind    SymKind
	Section SymSectionRef
}

// WithStrtab resolves s.Name against tab. It fails only when the name
// index itself is out of bounds; invalid UTF-8 is reported in the
// returned ResolvedSym.NameErr instead of failing the conversion, the
// same split the specification's WithStrtab trait makes for every
// name-bearing entry.
func (s SymData) WithStrtab(tab Strtab) (ResolvedSym, error) {
	name, nameErr, err := resolveStrtabName(tab, s.Name)
	if err != nil {
		return ResolvedSym{}, err
	}
	return ResolvedSym{
		Name: name, NameErr: nameErr,
		Value: s.Value, Size: s.Size, Bind: s.Bind, Kind: s.Kind, Section: s.Section,
	}, nil
}

// Sym is a handle onto one fixed-size symbol-table record.
type Sym struct {
	data []byte
	w    width
}

// Data projects the entry into its tagged-union form. The reference
// behavior maps unrecognized bind/kind nibbles to their Other arm rather
// than failing, so this never errors.
func (s Sym) Data() SymData {
	w := s.w
	if w.class == Class32 {
		name := w.word(s.data[0:4])
		value := w.addr(s.data[4:8])
		size := w.offset(s.data[8:12])
		info := s.data[12]
		shndx := w.half(s.data[14:16])
		return SymData{
			Name: uint32(name), Value: value, Size: size,
			Bind: decodeSymBind(info >> 4), Kind: decodeSymKind(info & 0xf),
			Section: decodeSymSection(shndx),
		}
	}
	name := w.word(s.data[0:4])
	info := s.data[4]
	shndx := w.half(s.data[6:8])
	value := w.addr(s.data[8:16])
	size := w.offset(s.data[16:24])
	return SymData{
		Name: uint32(name), Value: value, Size: size,
		Bind: decodeSymBind(info >> 4), Kind: decodeSymKind(info & 0xf),
		Section: decodeSymSection(shndx),
	}
}

// Symtab is a read-only, non-owning view over a sequence of fixed-size
// symbol-table records.
type Symtab struct {
	data []byte
	w    width
}

// NewSymtab validates invariant I1 (size is a multiple of the entry
// size for class) and returns a Symtab borrowing data.
func NewSymtab(data []byte, class Class, order binary.ByteOrder) (Symtab, error) {
	entSize := symEntrySize(class)
	if len(data)%entSize != 0 {
		return Symtab{}, &Error{Kind: BadSize, Size: uint64(len(data)), Want: uint64(entSize)}
	}
	return Symtab{data: data, w: width{class: class, order: order}}, nil
}

// Len returns the number of symbol entries.
func (t Symtab) Len() int { return len(t.data) / symEntrySize(t.w.class) }

// Idx returns the i'th symbol handle, or false if out of range.
func (t Symtab) Idx(i int) (Sym, bool) {
	entSize := symEntrySize(t.w.class)
	if i < 0 || (i+1)*entSize > len(t.data) {
		return Sym{}, false
	}
	return Sym{data: t.data[i*entSize : (i+1)*entSize], w: t.w}, true
}

// SymtabIter iterates every symbol handle in insertion order.
type SymtabIter struct {
	t   Symtab
	idx int
}

func (t Symtab) Iter() *SymtabIter { return &SymtabIter{t: t} }

func (it *SymtabIter) Next() (Sym, bool) {
	s, ok := it.t.Idx(it.idx)
	if !ok {
		return Sym{}, false
	}
	it.idx++
	return s, true
}

// SymtabRequiredBytes returns the buffer size CreateSymtabSplit needs to
// hold n entries for class.
func SymtabRequiredBytes(class Class, n int) int {
	return symEntrySize(class) * n
}

// CreateSymtabSplit writes entries in order into buf, encoding
// info = (bind<<4)|kind and the section-index encoding described in the
// specification. It returns the written prefix and the unused remainder
// of buf.
func CreateSymtabSplit(buf []byte, class Class, order binary.ByteOrder, entries []SymData) (written, rest []byte, err error) {
	w := width{class: class, order: order}
	entSize := symEntrySize(class)
	need := entSize * len(entries)
	if len(buf) < need {
		return nil, nil, &Error{Kind: BadSize, Size: uint64(len(buf)), Want: uint64(need)}
	}
	for i, e := range entries {
		rec := buf[i*entSize : (i+1)*entSize]
		info := (e.Bind.encode() << 4) | e.Kind.encode()
		shndx := e.Section.encode()
		if class == Class32 {
			w.putWord(rec[0:4], Word(e.Name))
			w.putAddr(rec[4:8], e.Value)
			w.putOffset(rec[8:12], e.Size)
			rec[12] = info
			rec[13] = 0
			w.putHalf(rec[14:16], shndx)
		} else {
			w.putWord(rec[0:4], Word(e.Name))
			rec[4] = info
			rec[5] = 0
			w.putHalf(rec[6:8], shndx)
			w.putAddr(rec[8:16], e.Value)
			w.putOffset(rec[16:24], e.Size)
		}
	}
	return buf[:need], buf[need:], nil
}
