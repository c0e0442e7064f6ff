package zelf

import (
	"encoding/binary"
	"fmt"
)

// SectionHdrTag is the sh_type field of a section header entry.
type SectionHdrTag uint8

const (
	SecHdrNull SectionHdrTag = iota
	SecHdrProgBits
	SecHdrSymtab
	SecHdrStrtab
	SecHdrRela
	SecHdrHash
	SecHdrDynamic
	SecHdrNote
	SecHdrNobits
	SecHdrRel
	SecHdrDynsym
	SecHdrUnknown
)

func (t SectionHdrTag) String() string {
	switch t {
	case SecHdrNull:
		return "Null"
	case SecHdrProgBits:
		return "ProgBits"
	case SecHdrSymtab:
		return "Symtab"
	case SecHdrStrtab:
		return "Strtab"
	case SecHdrRela:
		return "Rela"
	case SecHdrHash:
		return "Hash"
	case SecHdrDynamic:
		return "Dynamic"
	case SecHdrNote:
		return "Note"
	case SecHdrNobits:
		return "Nobits"
	case SecHdrRel:
		return "Rel"
	case SecHdrDynsym:
		return "Dynsym"
	default:
		return "Unknown"
	}
}

func decodeSectionHdrTag(raw uint32) SectionHdrTag {
	switch raw {
	case 0:
		return SecHdrNull
	case 1:
		return SecHdrProgBits
	case 2:
		return SecHdrSymtab
	case 3:
		return SecHdrStrtab
	case 4:
		return SecHdrRela
	case 5:
		return SecHdrHash
	case 6:
		return SecHdrDynamic
	case 7:
		return SecHdrNote
	case 8:
		return SecHdrNobits
	case 9:
		return SecHdrRel
	case 11:
		return SecHdrDynsym
	default:
		return SecHdrUnknown
	}
}

func sectionHdrTagCode(t SectionHdrTag) uint32 {
	switch t {
	case SecHdrNull:
		return 0
	case SecHdrProgBits:
		return 1
	case SecHdrSymtab:
		return 2
	case SecHdrStrtab:
		return 3
	case SecHdrRela:
		return 4
	case SecHdrHash:
		return 5
	case SecHdrDynamic:
		return 6
	case SecHdrNote:
		return 7
	case SecHdrNobits:
		return 8
	case SecHdrRel:
		return 9
	case SecHdrDynsym:
		return 11
	default:
		return 0
	}
}

// SectionFlags is the exec/alloc/write decoding of a section header's
// sh_flags.
type SectionFlags struct {
	Exec, Alloc, Write bool
}

func decodeSectionFlags(v uint64) SectionFlags {
	return SectionFlags{Exec: v&0x4 != 0, Alloc: v&0x2 != 0, Write: v&0x1 != 0}
}

func (f SectionFlags) encode() uint64 {
	var v uint64
	if f.Exec {
		v |= 0x4
	}
	if f.Alloc {
		v |= 0x2
	}
	if f.Write {
		v |= 0x1
	}
	return v
}

// requiredEntSize returns the entry size tag requires, or 0 if tag does
// not constrain it. Per DESIGN.md's Q3 decision, an on-disk entry_size
// of zero is accepted regardless of tag (relaxed from the reference
// behavior of treating it as a mismatch).
func requiredEntSize(tag SectionHdrTag, class Class) uint64 {
	switch tag {
	case SecHdrSymtab, SecHdrDynsym:
		return uint64(symEntrySize(class))
	case SecHdrRela:
		return uint64(relaEntSize(class))
	case SecHdrRel:
		return uint64(relEntSize(class))
	case SecHdrDynamic:
		return uint64(dynEntSize(class))
	default:
		return 0
	}
}

// SectionHdrData is the raw projected variant of a section header
// entry. NameIdx, {Offset, Size} and Link/Info are pending resolution
// via WithStrtab, WithElfData and WithSectionHdrs respectively.
type SectionHdrData struct {
	Tag         SectionHdrTag
	NameIdx     uint32
	Flags       SectionFlags
	Addr        Addr
	Offset      uint64
	Size        uint64
	Link        uint32
	Info        uint32
	AddrAlign   uint64
	EntSize     uint64
	UnknownType uint32
}

func (d SectionHdrData) String() string {
	if d.Tag == SecHdrUnknown {
		return fmt.Sprintf("Unknown(0x%x, size=0x%x)", d.UnknownType, d.Size)
	}
	return fmt.Sprintf("%s(size=0x%x addr=0x%x)", d.Tag, d.Size, uint64(d.Addr))
}

// WithStrtab resolves d.NameIdx against tab.
func (d SectionHdrData) WithStrtab(tab Strtab) (ResolvedSectionHdrName, error) {
	name, nameErr, err := resolveStrtabName(tab, d.NameIdx)
	if err != nil {
		return ResolvedSectionHdrName{}, err
	}
	return ResolvedSectionHdrName{SectionHdrData: d, Name: name, NameErr: nameErr}, nil
}

// ResolvedSectionHdrName is a SectionHdrData whose NameIdx has been
// resolved against a Strtab.
type ResolvedSectionHdrName struct {
	SectionHdrData
	Name    string
	NameErr error
}

// WithElfData resolves d's {Offset, Size} body locator into a byte
// sub-slice of elfData. SecHdrNull and SecHdrNobits occupy no file
// bytes and return nil.
func (d SectionHdrData) WithElfData(elfData []byte) ([]byte, error) {
	if d.Tag == SecHdrNull || d.Tag == SecHdrNobits {
		return nil, nil
	}
	end := d.Offset + d.Size
	if end > uint64(len(elfData)) || end < d.Offset {
		return nil, &Error{Kind: DataOutOfBounds, Offset: d.Offset, Size: d.Size}
	}
	return elfData[d.Offset:end], nil
}

// ResolvedSectionLinks is a SectionHdrData whose Link (and, for
// Rel/Rela, Info) fields have been resolved into direct SectionHdr
// handles.
type ResolvedSectionLinks struct {
	SectionHdrData
	LinkHdr *SectionHdr
	InfoHdr *SectionHdr
}

// WithSectionHdrs resolves d's cross-references into hdrs, validating
// the referenced section's kind per invariants I3/I4: Symtab/Dynsym
// link to a Strtab, Hash/Rel/Rela link to a Symtab or Dynsym, and
// Rel/Rela's info names an arbitrary target section.
func (d SectionHdrData) WithSectionHdrs(hdrs SectionHdrs) (ResolvedSectionLinks, error) {
	out := ResolvedSectionLinks{SectionHdrData: d}
	switch d.Tag {
	case SecHdrSymtab, SecHdrDynsym:
		h, err := lookupSectionHdrKind(hdrs, d.Link, BadStrtabIdx, SecHdrStrtab)
		if err != nil {
			return ResolvedSectionLinks{}, err
		}
		out.LinkHdr = h
	case SecHdrHash:
		h, err := lookupSectionHdrKind(hdrs, d.Link, BadSymtabIdx, SecHdrSymtab, SecHdrDynsym)
		if err != nil {
			return ResolvedSectionLinks{}, err
		}
		out.LinkHdr = h
	case SecHdrRel, SecHdrRela:
		linkHdr, err := lookupSectionHdrKind(hdrs, d.Link, BadSymtabIdx, SecHdrSymtab, SecHdrDynsym)
		if err != nil {
			return ResolvedSectionLinks{}, err
		}
		infoHdr, ok := hdrs.Idx(int(d.Info))
		if !ok {
			return ResolvedSectionLinks{}, &Error{Kind: IdxOutOfBounds, Idx: uint64(d.Info)}
		}
		out.LinkHdr = linkHdr
		out.InfoHdr = &infoHdr
	}
	return out, nil
}

func lookupSectionHdrKind(hdrs SectionHdrs, idx uint32, mismatchKind Kind, want ...SectionHdrTag) (*SectionHdr, error) {
	h, ok := hdrs.Idx(int(idx))
	if !ok {
		return nil, &Error{Kind: IdxOutOfBounds, Idx: uint64(idx)}
	}
	hd, err := h.Data()
	if err != nil {
		return nil, err
	}
	tag := hd.Tag
	for _, w := range want {
		if tag == w {
			return &h, nil
		}
	}
	return nil, &Error{Kind: mismatchKind, Idx: uint64(idx)}
}

func sectionHdrEntSize(class Class) int {
	if class == Class32 {
		return 40
	}
	return 64
}

// SectionHdr is a handle onto one fixed-size section header record.
type SectionHdr struct {
	data []byte
	w    width
}

// Data projects the entry, validating entry-size consistency for
// Symtab, Dynsym, Rela, Rel and Dynamic (see DESIGN.md's Q3 decision
// on zero entry sizes).
func (s SectionHdr) Data() (SectionHdrData, error) {
	w := s.w
	var nameIdx, typeRaw uint32
	var flags, addr, offset, size, addrAlign, entSize uint64
	var link, info uint32
	if w.class == Class32 {
		nameIdx = uint32(w.word(s.data[0:4]))
		typeRaw = uint32(w.word(s.data[4:8]))
		flags = uint64(w.word(s.data[8:12]))
		addr = uint64(w.word(s.data[12:16]))
		offset = uint64(w.word(s.data[16:20]))
		size = uint64(w.word(s.data[20:24]))
		link = uint32(w.word(s.data[24:28]))
		info = uint32(w.word(s.data[28:32]))
		addrAlign = uint64(w.word(s.data[32:36]))
		entSize = uint64(w.word(s.data[36:40]))
	} else {
		nameIdx = uint32(w.word(s.data[0:4]))
		typeRaw = uint32(w.word(s.data[4:8]))
		flags = w.order.Uint64(s.data[8:16])
		addr = w.order.Uint64(s.data[16:24])
		offset = w.order.Uint64(s.data[24:32])
		size = w.order.Uint64(s.data[32:40])
		link = uint32(w.word(s.data[40:44]))
		info = uint32(w.word(s.data[44:48]))
		addrAlign = w.order.Uint64(s.data[48:56])
		entSize = w.order.Uint64(s.data[56:64])
	}
	tag := decodeSectionHdrTag(typeRaw)
	if want := requiredEntSize(tag, w.class); want != 0 && entSize != 0 && entSize != want {
		return SectionHdrData{}, &Error{Kind: BadEntSize, Want: want, Got: entSize}
	}
	out := SectionHdrData{
		Tag: tag, NameIdx: nameIdx, Flags: decodeSectionFlags(flags),
		Addr: Addr(addr), Offset: offset, Size: size,
		Link: link, Info: info, AddrAlign: addrAlign, EntSize: entSize,
	}
	if tag == SecHdrUnknown {
		out.UnknownType = typeRaw
	}
	return out, nil
}

// SectionHdrs is a read-only, non-owning view over a sequence of
// fixed-size section header records.
type SectionHdrs struct {
	data []byte
	w    width
}

// NewSectionHdrs validates that data's length is a multiple of the
// class-dependent entry size.
func NewSectionHdrs(data []byte, class Class, order binary.ByteOrder) (SectionHdrs, error) {
	entSize := sectionHdrEntSize(class)
	if len(data)%entSize != 0 {
		return SectionHdrs{}, &Error{Kind: BadSize, Size: uint64(len(data)), Want: uint64(entSize)}
	}
	return SectionHdrs{data: data, w: width{class: class, order: order}}, nil
}

func (s SectionHdrs) Len() int { return len(s.data) / sectionHdrEntSize(s.w.class) }

func (s SectionHdrs) Idx(i int) (SectionHdr, bool) {
	entSize := sectionHdrEntSize(s.w.class)
	if i < 0 || (i+1)*entSize > len(s.data) {
		return SectionHdr{}, false
	}
	return SectionHdr{data: s.data[i*entSize : (i+1)*entSize], w: s.w}, true
}

type SectionHdrsIter struct {
	s   SectionHdrs
	idx int
}

func (s SectionHdrs) Iter() *SectionHdrsIter { return &SectionHdrsIter{s: s} }

func (it *SectionHdrsIter) Next() (SectionHdr, bool) {
	h, ok := it.s.Idx(it.idx)
	if !ok {
		return SectionHdr{}, false
	}
	it.idx++
	return h, true
}

// SectionHdrsRequiredBytes returns the buffer size
// CreateSectionHdrsSplit needs for n entries of class.
func SectionHdrsRequiredBytes(class Class, n int) int {
	return sectionHdrEntSize(class) * n
}

// CreateSectionHdrsSplit writes entries into buf. Per DESIGN.md's Q4
// decision, it leaves Link/Info at the caller-supplied value verbatim
// (including zero) rather than inferring defaults; callers needing
// non-default Note/Dynamic/Strtab info or Hash-neighbor link values
// must set them explicitly or use SecHdrUnknown.
func CreateSectionHdrsSplit(buf []byte, class Class, order binary.ByteOrder, entries []SectionHdrData) (written, rest []byte, err error) {
	w := width{class: class, order: order}
	entSize := sectionHdrEntSize(class)
	need := entSize * len(entries)
	if len(buf) < need {
		return nil, nil, &Error{Kind: BadSize, Size: uint64(len(buf)), Want: uint64(need)}
	}
	for i, e := range entries {
		rec := buf[i*entSize : (i+1)*entSize]
		var typeCode uint32
		if e.Tag == SecHdrUnknown {
			typeCode = e.UnknownType
		} else {
			typeCode = sectionHdrTagCode(e.Tag)
		}
		flags := e.Flags.encode()
		if class == Class32 {
			w.putWord(rec[0:4], Word(e.NameIdx))
			w.putWord(rec[4:8], Word(typeCode))
			w.putWord(rec[8:12], Word(uint32(flags)))
			w.putWord(rec[12:16], Word(uint32(e.Addr)))
			w.putWord(rec[16:20], Word(uint32(e.Offset)))
			w.putWord(rec[20:24], Word(uint32(e.Size)))
			w.putWord(rec[24:28], Word(e.Link))
			w.putWord(rec[28:32], Word(e.Info))
			w.putWord(rec[32:36], Word(uint32(e.AddrAlign)))
			w.putWord(rec[36:40], Word(uint32(e.EntSize)))
		} else {
			w.putWord(rec[0:4], Word(e.NameIdx))
			w.putWord(rec[4:8], Word(typeCode))
			w.order.PutUint64(rec[8:16], flags)
			w.order.PutUint64(rec[16:24], uint64(e.Addr))
			w.order.PutUint64(rec[24:32], e.Offset)
			w.order.PutUint64(rec[32:40], e.Size)
			w.putWord(rec[40:44], Word(e.Link))
			w.putWord(rec[44:48], Word(e.Info))
			w.order.PutUint64(rec[48:56], e.AddrAlign)
			w.order.PutUint64(rec[56:64], e.EntSize)
		}
	}
	return buf[:need], buf[need:], nil
}
