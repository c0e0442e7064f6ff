package zelf

import (
	"encoding/binary"
	"testing"
)

func TestSectionHdrRoundTrip64(t *testing.T) {
	entries := []SectionHdrData{
		{Tag: SecHdrNull},
		{Tag: SecHdrStrtab, NameIdx: 1, Offset: 0x40, Size: 0x10},
		{Tag: SecHdrProgBits, NameIdx: 7, Flags: SectionFlags{Alloc: true, Exec: true}, Addr: 0x1000, Offset: 0x1000, Size: 0x200},
	}
	buf := make([]byte, SectionHdrsRequiredBytes(Class64, len(entries)))
	written, rest, err := CreateSectionHdrsSplit(buf, Class64, binary.LittleEndian, entries)
	if err != nil {
		t.Fatalf("CreateSectionHdrsSplit: %v", err)
	}
	if len(rest) != 0 {
		t.Fatalf("rest has %d bytes, want 0", len(rest))
	}
	hdrs, err := NewSectionHdrs(written, Class64, binary.LittleEndian)
	if err != nil {
		t.Fatalf("NewSectionHdrs: %v", err)
	}
	if hdrs.Len() != len(entries) {
		t.Fatalf("Len() = %d, want %d", hdrs.Len(), len(entries))
	}
	for i, want := range entries {
		h, ok := hdrs.Idx(i)
		if !ok {
			t.Fatalf("Idx(%d) failed", i)
		}
		got, err := h.Data()
		if err != nil {
			t.Fatalf("Data() at %d: %v", i, err)
		}
		if got != want {
			t.Errorf("entry %d = %+v, want %+v", i, got, want)
		}
	}
}

func TestSectionHdrDataZeroEntSizeAccepted(t *testing.T) {
	entries := []SectionHdrData{{Tag: SecHdrSymtab, EntSize: 0}}
	buf := make([]byte, SectionHdrsRequiredBytes(Class64, len(entries)))
	written, _, err := CreateSectionHdrsSplit(buf, Class64, binary.LittleEndian, entries)
	if err != nil {
		t.Fatalf("CreateSectionHdrsSplit: %v", err)
	}
	hdrs, err := NewSectionHdrs(written, Class64, binary.LittleEndian)
	if err != nil {
		t.Fatalf("NewSectionHdrs: %v", err)
	}
	h, _ := hdrs.Idx(0)
	if _, err := h.Data(); err != nil {
		t.Errorf("Data() with zero EntSize on Symtab failed: %v, want accepted", err)
	}
}

func TestSectionHdrDataMismatchedEntSizeRejected(t *testing.T) {
	entries := []SectionHdrData{{Tag: SecHdrSymtab, EntSize: 999}}
	buf := make([]byte, SectionHdrsRequiredBytes(Class64, len(entries)))
	written, _, err := CreateSectionHdrsSplit(buf, Class64, binary.LittleEndian, entries)
	if err != nil {
		t.Fatalf("CreateSectionHdrsSplit: %v", err)
	}
	hdrs, err := NewSectionHdrs(written, Class64, binary.LittleEndian)
	if err != nil {
		t.Fatalf("NewSectionHdrs: %v", err)
	}
	h, _ := hdrs.Idx(0)
	if _, err := h.Data(); err == nil {
		t.Fatal("Data() with mismatched EntSize succeeded, want BadEntSize")
	} else if e, ok := err.(*Error); !ok || e.Kind != BadEntSize {
		t.Errorf("error = %v, want BadEntSize", err)
	}
}

func TestSectionHdrDataWithStrtab(t *testing.T) {
	tab, err := NewStrtab([]byte("\x00.text\x00"))
	if err != nil {
		t.Fatalf("NewStrtab: %v", err)
	}
	d := SectionHdrData{Tag: SecHdrProgBits, NameIdx: 1}
	resolved, err := d.WithStrtab(tab)
	if err != nil {
		t.Fatalf("WithStrtab: %v", err)
	}
	if resolved.Name != ".text" {
		t.Errorf("Name = %q, want .text", resolved.Name)
	}
}

func TestSectionHdrDataWithElfDataNobitsIsNil(t *testing.T) {
	d := SectionHdrData{Tag: SecHdrNobits, Offset: 0, Size: 100}
	data, err := d.WithElfData(make([]byte, 10))
	if err != nil {
		t.Fatalf("WithElfData: %v", err)
	}
	if data != nil {
		t.Errorf("WithElfData(Nobits) = %v, want nil", data)
	}
}

func TestSectionHdrDataWithSectionHdrsSymtabLinksToStrtab(t *testing.T) {
	entries := []SectionHdrData{
		{Tag: SecHdrNull},
		{Tag: SecHdrStrtab},
		{Tag: SecHdrSymtab, Link: 1},
	}
	buf := make([]byte, SectionHdrsRequiredBytes(Class64, len(entries)))
	written, _, err := CreateSectionHdrsSplit(buf, Class64, binary.LittleEndian, entries)
	if err != nil {
		t.Fatalf("CreateSectionHdrsSplit: %v", err)
	}
	hdrs, err := NewSectionHdrs(written, Class64, binary.LittleEndian)
	if err != nil {
		t.Fatalf("NewSectionHdrs: %v", err)
	}
	h, _ := hdrs.Idx(2)
	d, err := h.Data()
	if err != nil {
		t.Fatalf("Data(): %v", err)
	}
	resolved, err := d.WithSectionHdrs(hdrs)
	if err != nil {
		t.Fatalf("WithSectionHdrs: %v", err)
	}
	if resolved.LinkHdr == nil {
		t.Fatal("LinkHdr is nil, want resolved Strtab handle")
	}
	linkData, err := resolved.LinkHdr.Data()
	if err != nil {
		t.Fatalf("LinkHdr.Data(): %v", err)
	}
	if linkData.Tag != SecHdrStrtab {
		t.Errorf("LinkHdr.Tag = %v, want SecHdrStrtab", linkData.Tag)
	}
}

func TestSectionHdrDataWithSectionHdrsSymtabBadLink(t *testing.T) {
	entries := []SectionHdrData{
		{Tag: SecHdrProgBits},
		{Tag: SecHdrSymtab, Link: 0},
	}
	buf := make([]byte, SectionHdrsRequiredBytes(Class64, len(entries)))
	written, _, err := CreateSectionHdrsSplit(buf, Class64, binary.LittleEndian, entries)
	if err != nil {
		t.Fatalf("CreateSectionHdrsSplit: %v", err)
	}
	hdrs, err := NewSectionHdrs(written, Class64, binary.LittleEndian)
	if err != nil {
		t.Fatalf("NewSectionHdrs: %v", err)
	}
	h, _ := hdrs.Idx(1)
	d, _ := h.Data()
	if _, err := d.WithSectionHdrs(hdrs); err == nil {
		t.Fatal("WithSectionHdrs with ProgBits link succeeded, want BadStrtabIdx")
	} else if e, ok := err.(*Error); !ok || e.Kind != BadStrtabIdx {
		t.Errorf("error = %v, want BadStrtabIdx", err)
	}
}

func TestSectionHdrDataWithSectionHdrsRelaLinkAndInfo(t *testing.T) {
	entries := []SectionHdrData{
		{Tag: SecHdrProgBits},     // 0: target section for Info
		{Tag: SecHdrSymtab},       // 1: symtab for Link
		{Tag: SecHdrRela, Link: 1, Info: 0},
	}
	buf := make([]byte, SectionHdrsRequiredBytes(Class64, len(entries)))
	written, _, err := CreateSectionHdrsSplit(buf, Class64, binary.LittleEndian, entries)
	if err != nil {
		t.Fatalf("CreateSectionHdrsSplit: %v", err)
	}
	hdrs, err := NewSectionHdrs(written, Class64, binary.LittleEndian)
	if err != nil {
		t.Fatalf("NewSectionHdrs: %v", err)
	}
	h, _ := hdrs.Idx(2)
	d, _ := h.Data()
	resolved, err := d.WithSectionHdrs(hdrs)
	if err != nil {
		t.Fatalf("WithSectionHdrs: %v", err)
	}
	if resolved.LinkHdr == nil || resolved.InfoHdr == nil {
		t.Fatal("expected both LinkHdr and InfoHdr resolved")
	}
}

func TestSectionHdrsBadSize(t *testing.T) {
	if _, err := NewSectionHdrs(make([]byte, 7), Class64, binary.LittleEndian); err == nil {
		t.Error("NewSectionHdrs with misaligned buffer succeeded, want error")
	}
}

func TestSectionHdrsIter(t *testing.T) {
	entries := []SectionHdrData{{Tag: SecHdrNull}, {Tag: SecHdrProgBits}, {Tag: SecHdrStrtab}}
	buf := make([]byte, SectionHdrsRequiredBytes(Class32, len(entries)))
	written, _, err := CreateSectionHdrsSplit(buf, Class32, binary.LittleEndian, entries)
	if err != nil {
		t.Fatalf("CreateSectionHdrsSplit: %v", err)
	}
	hdrs, err := NewSectionHdrs(written, Class32, binary.LittleEndian)
	if err != nil {
		t.Fatalf("NewSectionHdrs: %v", err)
	}
	count := 0
	it := hdrs.Iter()
	for {
		if _, ok := it.Next(); !ok {
			break
		}
		count++
	}
	if count != len(entries) {
		t.Errorf("iterated %d, want %d", count, len(entries))
	}
}
