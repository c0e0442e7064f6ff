package zelf

import (
	"bytes"
	"encoding/binary"
	"testing"
)

func TestNotesRoundTrip(t *testing.T) {
	notes := []NoteData{
		{Kind: 1, Name: []byte("GNU"), Desc: []byte{1, 2, 3, 4}},
		{Kind: 2, Name: nil, Desc: []byte("hello")},
	}
	buf := make([]byte, NotesRequiredBytes(notes))
	written, rest, err := CreateNotesSplit(buf, binary.LittleEndian, notes)
	if err != nil {
		t.Fatalf("CreateNotesSplit: %v", err)
	}
	if len(rest) != 0 {
		t.Fatalf("rest has %d bytes left, want 0", len(rest))
	}
	ns, err := NewNotes(written, binary.LittleEndian)
	if err != nil {
		t.Fatalf("NewNotes: %v", err)
	}
	var got []NoteData
	it := ns.Iter()
	for {
		n, ok := it.Next()
		if !ok {
			break
		}
		got = append(got, n)
	}
	if len(got) != len(notes) {
		t.Fatalf("iterated %d notes, want %d", len(got), len(notes))
	}
	for i, want := range notes {
		if got[i].Kind != want.Kind {
			t.Errorf("note %d Kind = %d, want %d", i, got[i].Kind, want.Kind)
		}
		if !bytes.Equal(got[i].Name, want.Name) {
			t.Errorf("note %d Name = %v, want %v", i, got[i].Name, want.Name)
		}
		if !bytes.Equal(got[i].Desc, want.Desc) {
			t.Errorf("note %d Desc = %v, want %v", i, got[i].Desc, want.Desc)
		}
	}
}

func TestNewNotesRejectsTruncatedRecord(t *testing.T) {
	buf := make([]byte, 8)
	binary.LittleEndian.PutUint32(buf[0:4], 100) // claims a 100-byte name
	binary.LittleEndian.PutUint32(buf[4:8], 0)
	if _, err := NewNotes(buf, binary.LittleEndian); err == nil {
		t.Fatal("NewNotes with truncated record succeeded, want error")
	} else if e, ok := err.(*Error); !ok || e.Kind != EntryOutOfBounds {
		t.Errorf("error = %v, want EntryOutOfBounds", err)
	}
}

func TestNewNotesRejectsTooShortHeader(t *testing.T) {
	if _, err := NewNotes([]byte{1, 2, 3}, binary.LittleEndian); err == nil {
		t.Fatal("NewNotes with short header succeeded, want error")
	}
}

func TestNewNotesEmpty(t *testing.T) {
	ns, err := NewNotes(nil, binary.LittleEndian)
	if err != nil {
		t.Fatalf("NewNotes(nil): %v", err)
	}
	if _, ok := ns.Iter().Next(); ok {
		t.Error("Next() on empty Notes returned an entry, want none")
	}
}

func TestCreateNotesSplitTooSmall(t *testing.T) {
	notes := []NoteData{{Kind: 1, Name: []byte("abc"), Desc: []byte("defg")}}
	buf := make([]byte, 4)
	if _, _, err := CreateNotesSplit(buf, binary.LittleEndian, notes); err == nil {
		t.Error("CreateNotesSplit with undersized buffer succeeded, want error")
	}
}
