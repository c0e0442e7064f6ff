package zelf

import (
	"debug/elf"
	"encoding/binary"
	"os"
	"testing"
)

func TestMuxRejectsBadMagic(t *testing.T) {
	data := make([]byte, 16)
	copy(data, []byte{0, 'E', 'L', 'F', 2, 1, 1})
	if _, err := Mux(data); err == nil {
		t.Fatal("Mux with bad magic succeeded, want error")
	} else if e, ok := err.(*Error); !ok || e.Kind != BadMagic {
		t.Errorf("error = %v, want BadMagic", err)
	}
}

func TestMuxRejectsBadClass(t *testing.T) {
	data := make([]byte, 16)
	copy(data, []byte{0x7f, 'E', 'L', 'F', 9, 1, 1})
	if _, err := Mux(data); err == nil {
		t.Fatal("Mux with bad class succeeded, want error")
	} else if e, ok := err.(*Error); !ok || e.Kind != BadClass {
		t.Errorf("error = %v, want BadClass", err)
	}
}

func TestMuxRejectsBadEndian(t *testing.T) {
	data := make([]byte, 16)
	copy(data, []byte{0x7f, 'E', 'L', 'F', 2, 9, 1})
	if _, err := Mux(data); err == nil {
		t.Fatal("Mux with bad endian byte succeeded, want error")
	} else if e, ok := err.(*Error); !ok || e.Kind != BadEndian {
		t.Errorf("error = %v, want BadEndian", err)
	}
}

func TestMuxTooShort(t *testing.T) {
	if _, err := Mux(make([]byte, 4)); err == nil {
		t.Fatal("Mux on short buffer succeeded, want error")
	} else if e, ok := err.(*Error); !ok || e.Kind != TooShort {
		t.Errorf("error = %v, want TooShort", err)
	}
}

func TestElfHdrRoundTrip64(t *testing.T) {
	want := ElfHdrData{
		Class: Class64, Order: binary.LittleEndian, ABI: ABILinux,
		Kind: ObjKind{Tag: KindExecutable, Code: 2}, Machine: MachineX86_64, Version: 1,
		EntryAddr:           0x401000,
		ProgHdrTable:        TablePos{Offset: 64, NumEnts: 2},
		SectionHdrTable:     TablePos{Offset: 4096, NumEnts: 5},
		SectionHdrStrtabIdx: 4,
	}
	buf := make([]byte, elfHdrSize(Class64))
	if err := CreateElfHdr(buf, want); err != nil {
		t.Fatalf("CreateElfHdr: %v", err)
	}
	hdr, err := NewElfHdr(buf)
	if err != nil {
		t.Fatalf("NewElfHdr: %v", err)
	}
	got := hdr.Data()
	if got != want {
		t.Errorf("round trip = %+v, want %+v", got, want)
	}
}

func TestNewElfHdrRejectsBadProgHdrEntSize(t *testing.T) {
	d := ElfHdrData{Class: Class64, Order: binary.LittleEndian, Kind: ObjKind{Tag: KindExecutable, Code: 2}, ProgHdrTable: TablePos{Offset: 64, NumEnts: 1}}
	buf := make([]byte, elfHdrSize(Class64))
	if err := CreateElfHdr(buf, d); err != nil {
		t.Fatalf("CreateElfHdr: %v", err)
	}
	// Corrupt phentsize in place.
	binary.LittleEndian.PutUint16(buf[54:56], 1)
	if _, err := NewElfHdr(buf); err == nil {
		t.Fatal("NewElfHdr with bad phentsize succeeded, want error")
	} else if e, ok := err.(*Error); !ok || e.Kind != BadProgHdrEntSize {
		t.Errorf("error = %v, want BadProgHdrEntSize", err)
	}
}

func TestNewElfHdrRejectsBadSectionHdrEntSize(t *testing.T) {
	d := ElfHdrData{Class: Class64, Order: binary.LittleEndian, Kind: ObjKind{Tag: KindExecutable, Code: 2}, SectionHdrTable: TablePos{Offset: 64, NumEnts: 1}}
	buf := make([]byte, elfHdrSize(Class64))
	if err := CreateElfHdr(buf, d); err != nil {
		t.Fatalf("CreateElfHdr: %v", err)
	}
	binary.LittleEndian.PutUint16(buf[58:60], 1)
	if _, err := NewElfHdr(buf); err == nil {
		t.Fatal("NewElfHdr with bad shentsize succeeded, want error")
	} else if e, ok := err.(*Error); !ok || e.Kind != BadSectionHdrEntSize {
		t.Errorf("error = %v, want BadSectionHdrEntSize", err)
	}
}

func TestElfHdrProgHdrsAndSectionHdrsResolve(t *testing.T) {
	progHdrs := []ProgHdrData{
		{Tag: ProgHdrLoad, VirtAddr: 0x400000, Offset: 0, FileSize: 0x78, MemSize: 0x78, Perms: ProgHdrPerms{R: true, X: true}},
	}
	phBuf := make([]byte, ProgHdrsRequiredBytes(Class64, len(progHdrs)))
	writtenPH, _, err := CreateProgHdrsSplit(phBuf, Class64, binary.LittleEndian, progHdrs)
	if err != nil {
		t.Fatalf("CreateProgHdrsSplit: %v", err)
	}

	d := ElfHdrData{
		Class: Class64, Order: binary.LittleEndian, Kind: ObjKind{Tag: KindExecutable, Code: 2},
		ProgHdrTable: TablePos{Offset: uint64(elfHdrSize(Class64)), NumEnts: uint16(len(progHdrs))},
	}
	hdrBuf := make([]byte, elfHdrSize(Class64))
	if err := CreateElfHdr(hdrBuf, d); err != nil {
		t.Fatalf("CreateElfHdr: %v", err)
	}

	elfData := append(append([]byte{}, hdrBuf...), writtenPH...)
	hdr, err := NewElfHdr(elfData)
	if err != nil {
		t.Fatalf("NewElfHdr: %v", err)
	}
	phs, err := hdr.Data().ProgHdrs(elfData)
	if err != nil {
		t.Fatalf("ProgHdrs: %v", err)
	}
	if phs.Len() != 1 {
		t.Fatalf("ProgHdrs.Len() = %d, want 1", phs.Len())
	}
	ph, _ := phs.Idx(0)
	if got := ph.Data(); got != progHdrs[0] {
		t.Errorf("resolved prog header = %+v, want %+v", got, progHdrs[0])
	}
	shs, err := hdr.Data().SectionHdrs(elfData)
	if err != nil {
		t.Fatalf("SectionHdrs: %v", err)
	}
	if shs.Len() != 0 {
		t.Errorf("SectionHdrs.Len() = %d, want 0 (absent table)", shs.Len())
	}
}

// TestAgainstDebugElf assembles a minimal 64-bit little-endian executable
// and cross-checks the structure this package reads against the standard
// library's debug/elf as an independent oracle.
func TestAgainstDebugElf(t *testing.T) {
	const entrySize = 64
	progHdrs := []ProgHdrData{
		{Tag: ProgHdrLoad, VirtAddr: 0x400000, PhysAddr: 0x400000, Offset: 0, FileSize: 0x1000, MemSize: 0x1000, Perms: ProgHdrPerms{R: true, X: true}},
	}
	phBuf := make([]byte, ProgHdrsRequiredBytes(Class64, len(progHdrs)))
	writtenPH, _, err := CreateProgHdrsSplit(phBuf, Class64, binary.LittleEndian, progHdrs)
	if err != nil {
		t.Fatalf("CreateProgHdrsSplit: %v", err)
	}

	d := ElfHdrData{
		Class: Class64, Order: binary.LittleEndian, ABI: ABILinux,
		Kind: ObjKind{Tag: KindExecutable, Code: 2}, Machine: MachineX86_64, Version: 1,
		EntryAddr:    0x400000,
		ProgHdrTable: TablePos{Offset: entrySize, NumEnts: uint16(len(progHdrs))},
	}
	hdrBuf := make([]byte, elfHdrSize(Class64))
	if err := CreateElfHdr(hdrBuf, d); err != nil {
		t.Fatalf("CreateElfHdr: %v", err)
	}

	image := append(append([]byte{}, hdrBuf...), writtenPH...)
	// Pad the file out so the Load segment's file range exists.
	if need := int(progHdrs[0].Offset + progHdrs[0].FileSize); len(image) < need {
		image = append(image, make([]byte, need-len(image))...)
	}

	f, err := os.CreateTemp(t.TempDir(), "zelf-*.bin")
	if err != nil {
		t.Fatalf("CreateTemp: %v", err)
	}
	if _, err := f.Write(image); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := f.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	oracle, err := elf.Open(f.Name())
	if err != nil {
		t.Fatalf("debug/elf.Open: %v", err)
	}
	defer oracle.Close()

	if oracle.Class != elf.ELFCLASS64 {
		t.Errorf("oracle.Class = %v, want ELFCLASS64", oracle.Class)
	}
	if oracle.Machine != elf.EM_X86_64 {
		t.Errorf("oracle.Machine = %v, want EM_X86_64", oracle.Machine)
	}
	if len(oracle.Progs) != 1 {
		t.Fatalf("oracle.Progs has %d entries, want 1", len(oracle.Progs))
	}
	if oracle.Progs[0].Vaddr != 0x400000 {
		t.Errorf("oracle prog Vaddr = 0x%x, want 0x400000", oracle.Progs[0].Vaddr)
	}

	hdr, err := NewElfHdr(image)
	if err != nil {
		t.Fatalf("NewElfHdr: %v", err)
	}
	got := hdr.Data()
	if got.Machine != MachineX86_64 {
		t.Errorf("Machine = %v, want MachineX86_64", got.Machine)
	}
	if got.EntryAddr != 0x400000 {
		t.Errorf("EntryAddr = 0x%x, want 0x400000", uint64(got.EntryAddr))
	}
	phs, err := got.ProgHdrs(image)
	if err != nil {
		t.Fatalf("ProgHdrs: %v", err)
	}
	if phs.Len() != 1 {
		t.Fatalf("ProgHdrs.Len() = %d, want 1", phs.Len())
	}
	ph, _ := phs.Idx(0)
	if pd := ph.Data(); pd.VirtAddr != 0x400000 {
		t.Errorf("VirtAddr = 0x%x, want 0x400000", uint64(pd.VirtAddr))
	}
}
