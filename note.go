package zelf

import (
	"encoding/binary"
	"fmt"
)

const noteWordSize = 4

// Common FreeBSD note kinds, named for the fixture in spec.md's T3 test
// vector. Kind stays a raw uint32 elsewhere; these are recognition
// constants for String(), not an exhaustive enum.
const (
	NoteABITag     uint32 = 1 // NT_FREEBSD_ABI_TAG
	NoteNoInitTag  uint32 = 2 // NT_FREEBSD_NOINIT_TAG
	NoteArchTag    uint32 = 3 // NT_FREEBSD_ARCH_TAG
	NoteFeatureCtl uint32 = 4 // NT_FREEBSD_FEATURE_CTL
)

// NoteData is the projected form of a single ELF note record: a 4-byte
// kind plus raw name and descriptor bytes. Name and Desc borrow directly
// from the underlying buffer.
type NoteData struct {
	Kind uint32
	Name []byte
	Desc []byte
}

func (n NoteData) String() string {
	var kind string
	switch n.Kind {
	case NoteABITag:
		kind = "ABITag"
	case NoteNoInitTag:
		kind = "NoInitTag"
	case NoteArchTag:
		kind = "ArchTag"
	case NoteFeatureCtl:
		kind = "FeatureCtl"
	default:
		kind = fmt.Sprintf("kind %d", n.Kind)
	}
	return fmt.Sprintf("%s(%q, %d bytes)", kind, n.Name, len(n.Desc))
}

func noteRecordSize(nameSize, descSize int) int {
	return noteWordSize*3 + nameSize + descSize
}

func noteSizeAt(data []byte, order binary.ByteOrder) (int, bool) {
	if len(data) < noteWordSize*2 {
		return 0, false
	}
	nameSize := int(order.Uint32(data[0:4]))
	descSize := int(order.Uint32(data[4:8]))
	size := noteRecordSize(nameSize, descSize)
	if len(data) < size {
		return 0, false
	}
	return size, true
}

func noteProject(data []byte, order binary.ByteOrder) NoteData {
	nameSize := int(order.Uint32(data[0:4]))
	descSize := int(order.Uint32(data[4:8]))
	kind := order.Uint32(data[8:12])
	nameStart := 12
	nameEnd := nameStart + nameSize
	descStart := nameEnd
	descEnd := descStart + descSize
	return NoteData{Kind: kind, Name: data[nameStart:nameEnd], Desc: data[descStart:descEnd]}
}

// Notes is a read-only, non-owning view over a sequence of
// variable-length ELF note records.
type Notes struct {
	data  []byte
	order binary.ByteOrder
}

// NewNotes validates that iterating the buffer from offset 0 consumes
// it exactly, with no record exceeding the buffer and no leftover
// bytes.
func NewNotes(data []byte, order binary.ByteOrder) (Notes, error) {
	idx := 0
	for idx < len(data) {
		size, ok := noteSizeAt(data[idx:], order)
		if !ok {
			return Notes{}, &Error{Kind: EntryOutOfBounds, Offset: uint64(idx),
				Msg: "ELF note record exceeds the remaining buffer"}
		}
		idx += size
	}
	return Notes{data: data, order: order}, nil
}

// NotesIter is a lazy, finite, forward-only iterator over every note
// record.
type NotesIter struct {
	n   Notes
	idx int
}

func (n Notes) Iter() *NotesIter { return &NotesIter{n: n} }

func (it *NotesIter) Next() (NoteData, bool) {
	if it.idx >= len(it.n.data) {
		return NoteData{}, false
	}
	buf := it.n.data[it.idx:]
	size, ok := noteSizeAt(buf, it.n.order)
	if !ok {
		return NoteData{}, false
	}
	rec := buf[:size]
	it.idx += size
	return noteProject(rec, it.n.order), true
}

// NotesRequiredBytes sums (12 + len(name) + len(desc)) over notes, the
// buffer size CreateNotesSplit needs to encode them.
func NotesRequiredBytes(notes []NoteData) int {
	size := 0
	for _, n := range notes {
		size += noteRecordSize(len(n.Name), len(n.Desc))
	}
	return size
}

// CreateNotesSplit writes notes in order into buf, returning the
// written prefix and unused remainder. It fails only if buf is too
// small to hold every record.
func CreateNotesSplit(buf []byte, order binary.ByteOrder, notes []NoteData) (written, rest []byte, err error) {
	idx := 0
	for _, n := range notes {
		size := noteRecordSize(len(n.Name), len(n.Desc))
		if len(buf) < idx+size {
			return nil, nil, &Error{Kind: BadSize, Size: uint64(len(buf)), Want: uint64(idx + size)}
		}
		order.PutUint32(buf[idx:idx+4], uint32(len(n.Name)))
		order.PutUint32(buf[idx+4:idx+8], uint32(len(n.Desc)))
		order.PutUint32(buf[idx+8:idx+12], n.Kind)
		nameStart := idx + 12
		nameEnd := nameStart + len(n.Name)
		copy(buf[nameStart:nameEnd], n.Name)
		descEnd := nameEnd + len(n.Desc)
		copy(buf[nameEnd:descEnd], n.Desc)
		idx += size
	}
	return buf[:idx], buf[idx:], nil
}
