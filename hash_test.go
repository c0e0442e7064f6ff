package zelf

import (
	"encoding/binary"
	"testing"
)

func TestElfHashKnownVector(t *testing.T) {
	// The empty name hashes to 0 under the SysV algorithm.
	if got := ElfHash(nil); got != 0 {
		t.Errorf("ElfHash(nil) = %d, want 0", got)
	}
	if got := ElfHash([]byte("a")); got != 0x61 {
		t.Errorf(`ElfHash("a") = 0x%x, want 0x61`, got)
	}
}

func buildHashtabFixture(t *testing.T) (Hashtab, Symtab, Strtab) {
	t.Helper()
	strData := []byte("\x00foo\x00bar\x00")
	strtab, err := NewStrtab(strData)
	if err != nil {
		t.Fatalf("NewStrtab: %v", err)
	}
	syms := []SymData{
		{Name: 0},
		{Name: 1}, // foo
		{Name: 5}, // bar
	}
	symBuf := make([]byte, SymtabRequiredBytes(Class64, len(syms)))
	written, _, err := CreateSymtabSplit(symBuf, Class64, binary.LittleEndian, syms)
	if err != nil {
		t.Fatalf("CreateSymtabSplit: %v", err)
	}
	symtab, err := NewSymtab(written, Class64, binary.LittleEndian)
	if err != nil {
		t.Fatalf("NewSymtab: %v", err)
	}

	nbucket, nchain := uint32(1), uint32(3)
	buf := make([]byte, 8+4*nbucket+4*nchain)
	binary.LittleEndian.PutUint32(buf[0:4], nbucket)
	binary.LittleEndian.PutUint32(buf[4:8], nchain)
	binary.LittleEndian.PutUint32(buf[8:12], 1) // bucket[0] = sym 1 ("foo")
	binary.LittleEndian.PutUint32(buf[12:16], 0)
	binary.LittleEndian.PutUint32(buf[16:20], 2) // chain[1] = sym 2 ("bar")
	binary.LittleEndian.PutUint32(buf[20:24], 0) // chain[2] = 0, end of chain

	hashtab, err := NewHashtab(buf, binary.LittleEndian, symtab, strtab)
	if err != nil {
		t.Fatalf("NewHashtab: %v", err)
	}
	return hashtab, symtab, strtab
}

func TestHashtabLookupFound(t *testing.T) {
	h, _, _ := buildHashtabFixture(t)
	sym, ok := h.Lookup("bar")
	if !ok {
		t.Fatal("Lookup(bar) failed, want found")
	}
	if sym.Data().Name != 5 {
		t.Errorf("Lookup(bar) resolved Sym with Name idx %d, want 5", sym.Data().Name)
	}
}

func TestHashtabLookupNotFound(t *testing.T) {
	h, _, _ := buildHashtabFixture(t)
	if _, ok := h.Lookup("missing"); ok {
		t.Error("Lookup(missing) succeeded, want not found")
	}
}

func TestNewHashtabRejectsOutOfBoundsIndex(t *testing.T) {
	strtab, err := NewStrtab([]byte("\x00"))
	if err != nil {
		t.Fatalf("NewStrtab: %v", err)
	}
	symBuf := make([]byte, SymtabRequiredBytes(Class64, 1))
	written, _, err := CreateSymtabSplit(symBuf, Class64, binary.LittleEndian, []SymData{{}})
	if err != nil {
		t.Fatalf("CreateSymtabSplit: %v", err)
	}
	symtab, err := NewSymtab(written, Class64, binary.LittleEndian)
	if err != nil {
		t.Fatalf("NewSymtab: %v", err)
	}

	buf := make([]byte, 8+4+4)
	binary.LittleEndian.PutUint32(buf[0:4], 1)
	binary.LittleEndian.PutUint32(buf[4:8], 1)
	binary.LittleEndian.PutUint32(buf[8:12], 99) // out of bounds: symtab has 1 entry
	binary.LittleEndian.PutUint32(buf[12:16], 0)

	if _, err := NewHashtab(buf, binary.LittleEndian, symtab, strtab); err == nil {
		t.Fatal("NewHashtab with out-of-bounds bucket value succeeded, want error")
	} else if e, ok := err.(*Error); !ok || e.Kind != IdxOutOfBounds {
		t.Errorf("error = %v, want IdxOutOfBounds", err)
	}
}

func TestNewHashtabTooShort(t *testing.T) {
	if _, err := NewHashtab([]byte{1, 2, 3}, binary.LittleEndian, Symtab{}, Strtab{}); err == nil {
		t.Error("NewHashtab with short buffer succeeded, want error")
	}
}
