package zelf

import (
	"encoding/binary"
	"fmt"
)

// DynTag enumerates the dynamic-section tag codes this package
// recognizes. See DESIGN.md for the Q1/Q2 decisions this decoding
// implements: tag 24 decodes as BindNow (not TextRel), and tags 15 and
// 29 decode to distinct RPath/RunPath variants rather than being
// conflated.
type DynTag uint8

const (
	DynNull DynTag = iota
	DynNeeded
	DynPLTRelSize
	DynPLTGOT
	DynHash
	DynStrtab
	DynSymtab
	DynRela
	DynRelaSize
	DynRelaEntSize
	DynStrtabSize
	DynSymtabEntSize
	DynInit
	DynFini
	DynName
	DynRPath
	DynSymbolic
	DynRel
	DynRelSize
	DynRelEntSize
	DynPLTRela
	DynDebug
	DynTextRel
	DynJumpRel
	DynBindNow
	DynInitArray
	DynFiniArray
	DynInitArraySize
	DynFiniArraySize
	DynRunPath
	DynFlags
	DynPreInitArray
	DynPreInitArraySize
	DynSymtabIdx
	DynUnknown
)

func (t DynTag) String() string {
	switch t {
	case DynNull:
		return "Null"
	case DynNeeded:
		return "Needed"
	case DynPLTRelSize:
		return "PLTRelSize"
	case DynPLTGOT:
		return "PLTGOT"
	case DynHash:
		return "Hash"
	case DynStrtab:
		return "Strtab"
	case DynSymtab:
		return "Symtab"
	case DynRela:
		return "Rela"
	case DynRelaSize:
		return "RelaSize"
	case DynRelaEntSize:
		return "RelaEntSize"
	case DynStrtabSize:
		return "StrtabSize"
	case DynSymtabEntSize:
		return "SymtabEntSize"
	case DynInit:
		return "Init"
	case DynFini:
		return "Fini"
	case DynName:
		return "Name"
	case DynRPath:
		return "RPath"
	case DynSymbolic:
		return "Symbolic"
	case DynRel:
		return "Rel"
	case DynRelSize:
		return "RelSize"
	case DynRelEntSize:
		return "RelEntSize"
	case DynPLTRela:
		return "PLTRela"
	case DynDebug:
		return "Debug"
	case DynTextRel:
		return "TextRel"
	case DynJumpRel:
		return "JumpRel"
	case DynBindNow:
		return "BindNow"
	case DynInitArray:
		return "InitArray"
	case DynFiniArray:
		return "FiniArray"
	case DynInitArraySize:
		return "InitArraySize"
	case DynFiniArraySize:
		return "FiniArraySize"
	case DynRunPath:
		return "RunPath"
	case DynFlags:
		return "Flags"
	case DynPreInitArray:
		return "PreInitArray"
	case DynPreInitArraySize:
		return "PreInitArraySize"
	case DynSymtabIdx:
		return "SymtabIdx"
	default:
		return "Unknown"
	}
}

func dynTagCode(t DynTag) int64 {
	switch t {
	case DynNull:
		return 0
	case DynNeeded:
		return 1
	case DynPLTRelSize:
		return 2
	case DynPLTGOT:
		return 3
	case DynHash:
		return 4
	case DynStrtab:
		return 5
	case DynSymtab:
		return 6
	case DynRela:
		return 7
	case DynRelaSize:
		return 8
	case DynRelaEntSize:
		return 9
	case DynStrtabSize:
		return 10
	case DynSymtabEntSize:
		return 11
	case DynInit:
		return 12
	case DynFini:
		return 13
	case DynName:
		return 14
	case DynRPath:
		return 15
	case DynSymbolic:
		return 16
	case DynRel:
		return 17
	case DynRelSize:
		return 18
	case DynRelEntSize:
		return 19
	case DynPLTRela:
		return 20
	case DynDebug:
		return 21
	case DynTextRel:
		return 22
	case DynJumpRel:
		return 23
	case DynBindNow:
		return 24
	case DynInitArray:
		return 25
	case DynFiniArray:
		return 26
	case DynInitArraySize:
		return 27
	case DynFiniArraySize:
		return 28
	case DynRunPath:
		return 29
	case DynFlags:
		return 30
	case DynPreInitArray:
		return 32
	case DynPreInitArraySize:
		return 33
	case DynSymtabIdx:
		return 34
	default:
		return -1
	}
}

func decodeDynTag(raw int64) DynTag {
	switch raw {
	case 0:
		return DynNull
	case 1:
		return DynNeeded
	case 2:
		return DynPLTRelSize
	case 3:
		return DynPLTGOT
	case 4:
		return DynHash
	case 5:
		return DynStrtab
	case 6:
		return DynSymtab
	case 7:
		return DynRela
	case 8:
		return DynRelaSize
	case 9:
		return DynRelaEntSize
	case 10:
		return DynStrtabSize
	case 11:
		return DynSymtabEntSize
	case 12:
		return DynInit
	case 13:
		return DynFini
	case 14:
		return DynName
	case 15:
		return DynRPath
	case 16:
		return DynSymbolic
	case 17:
		return DynRel
	case 18:
		return DynRelSize
	case 19:
		return DynRelEntSize
	case 20:
		return DynPLTRela
	case 21:
		return DynDebug
	case 22:
		return DynTextRel
	case 23:
		return DynJumpRel
	case 24:
		return DynBindNow
	case 25:
		return DynInitArray
	case 26:
		return DynFiniArray
	case 27:
		return DynInitArraySize
	case 28:
		return DynFiniArraySize
	case 29:
		return DynRunPath
	case 30:
		return DynFlags
	case 32:
		return DynPreInitArray
	case 33:
		return DynPreInitArraySize
	case 34:
		return DynSymtabIdx
	default:
		return DynUnknown
	}
}

// DynamicEntData is the raw projected variant of a .dynamic entry.
// Value holds the raw d_val/d_ptr for every tag; for PLTRela the writer
// ignores it and encodes PLTRelaIsRela instead. NameIdx is populated (duplicating Value) for the four tags whose
// value is a strtab index, ready for WithStrtab. PLTRelaIsRela is valid
// only when Tag is DynPLTRela. UnknownTag is valid only when Tag is
// DynUnknown.
type DynamicEntData struct {
	Tag           DynTag
	Value         uint64
	NameIdx       uint32
	PLTRelaIsRela bool
	UnknownTag    int64
}

func (d DynamicEntData) String() string {
	switch d.Tag {
	case DynUnknown:
		return fmt.Sprintf("Unknown(0x%x, val=0x%x)", d.UnknownTag, d.Value)
	case DynPLTRela:
		if d.PLTRelaIsRela {
			return "PLTRela(Rela)"
		}
		return "PLTRela(Rel)"
	default:
		if hasNameIdx(d.Tag) {
			return fmt.Sprintf("%s(nameidx=%d)", d.Tag, d.NameIdx)
		}
		return fmt.Sprintf("%s(0x%x)", d.Tag, d.Value)
	}
}

func hasNameIdx(t DynTag) bool {
	return t == DynNeeded || t == DynName || t == DynRPath || t == DynRunPath
}

// ResolvedDynamicEnt is a DynamicEntData whose NameIdx, if any, has been
// resolved against a Strtab.
type ResolvedDynamicEnt struct {
	DynamicEntData
	Name    string
	NameErr error
}

// WithStrtab resolves d.NameIdx against tab. It is a no-op returning
// Name == "" for tags that do not carry a name index. As with SymData,
// an out-of-bounds index fails the conversion; invalid UTF-8 is folded
// into NameErr.
func (d DynamicEntData) WithStrtab(tab Strtab) (ResolvedDynamicEnt, error) {
	if !hasNameIdx(d.Tag) {
		return ResolvedDynamicEnt{DynamicEntData: d}, nil
	}
	name, nameErr, err := resolveStrtabName(tab, d.NameIdx)
	if err != nil {
		return ResolvedDynamicEnt{}, err
	}
	return ResolvedDynamicEnt{DynamicEntData: d, Name: name, NameErr: nameErr}, nil
}

func dynEntSize(class Class) int {
	if class == Class32 {
		return 8
	}
	return 16
}

// DynamicEnt is a handle onto one fixed-size .dynamic record: a
// (d_tag, d_val) pair, d_tag signed and d_val an unsigned union of
// pointer/integer interpretations.
type DynamicEnt struct {
	data []byte
	w    width
}

// Data projects the entry. It fails only for tag 20 (PLTRela), whose
// value must be 7 or 17 per the specification; every other tag,
// including unrecognized ones, decodes without error.
func (d DynamicEnt) Data() (DynamicEntData, error) {
	w := d.w
	var rawTag int64
	var rawVal uint64
	if w.class == Class32 {
		rawTag = int64(int32(w.word(d.data[0:4])))
		rawVal = uint64(w.word(d.data[4:8]))
	} else {
		rawTag = int64(w.order.Uint64(d.data[0:8]))
		rawVal = w.order.Uint64(d.data[8:16])
	}
	tag := decodeDynTag(rawTag)
	out := DynamicEntData{Tag: tag, Value: rawVal}
	if hasNameIdx(tag) {
		out.NameIdx = uint32(rawVal)
	}
	if tag == DynUnknown {
		out.UnknownTag = rawTag
	}
	if tag == DynPLTRela {
		switch rawVal {
		case 7:
			out.PLTRelaIsRela = true
		case 17:
			out.PLTRelaIsRela = false
		default:
			return DynamicEntData{}, &Error{Kind: BadInfo, Idx: rawVal,
				Msg: "dynamic PLTRela entry value must be 7 (Rela) or 17 (Rel)"}
		}
	}
	return out, nil
}

// Dynamic is a read-only, non-owning view over a sequence of
// fixed-size .dynamic records.
type Dynamic struct {
	data []byte
	w    width
}

// NewDynamic validates that data's length is a multiple of the
// class-dependent entry size.
func NewDynamic(data []byte, class Class, order binary.ByteOrder) (Dynamic, error) {
	entSize := dynEntSize(class)
	if len(data)%entSize != 0 {
		return Dynamic{}, &Error{Kind: BadSize, Size: uint64(len(data)), Want: uint64(entSize)}
	}
	return Dynamic{data: data, w: width{class: class, order: order}}, nil
}

func (d Dynamic) Len() int { return len(d.data) / dynEntSize(d.w.class) }

func (d Dynamic) Idx(i int) (DynamicEnt, bool) {
	entSize := dynEntSize(d.w.class)
	if i < 0 || (i+1)*entSize > len(d.data) {
		return DynamicEnt{}, false
	}
	return DynamicEnt{data: d.data[i*entSize : (i+1)*entSize], w: d.w}, true
}

// DynamicIter iterates every .dynamic record up to and including the
// first DynNull entry, matching readelf's convention that DT_NULL
// terminates the logical table even when the buffer holds trailing
// padding entries.
type DynamicIter struct {
	d    Dynamic
	idx  int
	done bool
}

func (d Dynamic) Iter() *DynamicIter { return &DynamicIter{d: d} }

func (it *DynamicIter) Next() (DynamicEntData, error, bool) {
	if it.done {
		return DynamicEntData{}, nil, false
	}
	ent, ok := it.d.Idx(it.idx)
	if !ok {
		it.done = true
		return DynamicEntData{}, nil, false
	}
	it.idx++
	data, err := ent.Data()
	if err != nil {
		it.done = true
		return DynamicEntData{}, err, true
	}
	if data.Tag == DynNull {
		it.done = true
	}
	return data, nil, true
}

// DynamicRequiredBytes returns the buffer size CreateDynamicSplit needs
// to hold n entries for class.
func DynamicRequiredBytes(class Class, n int) int {
	return dynEntSize(class) * n
}

// CreateDynamicSplit writes entries into buf using the writer's
// canonical tag codes (Symbolic=16, TextRel=22, BindNow=24, RunPath=29),
// returning the written prefix and unused remainder.
func CreateDynamicSplit(buf []byte, class Class, order binary.ByteOrder, entries []DynamicEntData) (written, rest []byte, err error) {
	w := width{class: class, order: order}
	entSize := dynEntSize(class)
	need := entSize * len(entries)
	if len(buf) < need {
		return nil, nil, &Error{Kind: BadSize, Size: uint64(len(buf)), Want: uint64(need)}
	}
	for i, e := range entries {
		rec := buf[i*entSize : (i+1)*entSize]
		var tagCode int64
		var val uint64
		switch e.Tag {
		case DynUnknown:
			tagCode = e.UnknownTag
			val = e.Value
		case DynPLTRela:
			tagCode = dynTagCode(e.Tag)
			if e.PLTRelaIsRela {
				val = 7
			} else {
				val = 17
			}
		default:
			tagCode = dynTagCode(e.Tag)
			if hasNameIdx(e.Tag) {
				val = uint64(e.NameIdx)
			} else {
				val = e.Value
			}
		}
		if class == Class32 {
			w.putWord(rec[0:4], Word(uint32(tagCode)))
			w.putWord(rec[4:8], Word(uint32(val)))
		} else {
			w.order.PutUint64(rec[0:8], uint64(tagCode))
			w.order.PutUint64(rec[8:16], val)
		}
	}
	return buf[:need], buf[need:], nil
}
