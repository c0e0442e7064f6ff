package zelf

import (
	"encoding/binary"
	"fmt"
)

var elfMagic = [4]byte{0x7f, 'E', 'L', 'F'}

// ABI is the e_ident[EI_OSABI] byte. Unrecognized values are preserved
// verbatim rather than mapped to a separate Other representation; the
// numeric value itself already serves as that.
type ABI uint8

const (
	ABISysV       ABI = 0
	ABIHPUX       ABI = 1
	ABINetBSD     ABI = 2
	ABILinux      ABI = 3
	ABIHurd       ABI = 4
	ABISolaris    ABI = 6
	ABIAIX        ABI = 7
	ABIIRIX       ABI = 8
	ABIFreeBSD    ABI = 9
	ABITru64      ABI = 10
	ABIModesto    ABI = 11
	ABIOpenBSD    ABI = 12
	ABIOpenVMS    ABI = 13
	ABINonStop    ABI = 14
	ABIAROS       ABI = 15
	ABIFenixOS    ABI = 16
	ABICloudABI   ABI = 17
	ABIOpenVOS    ABI = 18
	ABIARM        ABI = 0x61
	ABIStandalone ABI = 0xff
)

func (a ABI) String() string {
	switch a {
	case ABISysV:
		return "SysV"
	case ABIHPUX:
		return "HPUX"
	case ABINetBSD:
		return "NetBSD"
	case ABILinux:
		return "Linux"
	case ABIHurd:
		return "Hurd"
	case ABISolaris:
		return "Solaris"
	case ABIAIX:
		return "AIX"
	case ABIIRIX:
		return "IRIX"
	case ABIFreeBSD:
		return "FreeBSD"
	case ABITru64:
		return "Tru64"
	case ABIModesto:
		return "Modesto"
	case ABIOpenBSD:
		return "OpenBSD"
	case ABIOpenVMS:
		return "OpenVMS"
	case ABINonStop:
		return "NonStop"
	case ABIAROS:
		return "AROS"
	case ABIFenixOS:
		return "FenixOS"
	case ABICloudABI:
		return "CloudABI"
	case ABIOpenVOS:
		return "OpenVOS"
	case ABIARM:
		return "ARM"
	case ABIStandalone:
		return "Standalone"
	default:
		return fmtOther(uint64(a))
	}
}

// Machine is the e_machine field. This package names the architectures
// cmd/zelfdump and RelArch need to recognize; every other code point
// round-trips as itself.
type Machine uint16

const (
	MachineNone    Machine = 0
	MachineSPARC   Machine = 2
	MachineI386    Machine = 3
	MachineMIPS    Machine = 8
	MachinePowerPC Machine = 20
	MachineARM     Machine = 40
	MachineX86_64  Machine = 62
	MachineAArch64 Machine = 183
	MachineRISCV   Machine = 243
)

func (m Machine) String() string {
	switch m {
	case MachineNone:
		return "None"
	case MachineSPARC:
		return "SPARC"
	case MachineI386:
		return "I386"
	case MachineMIPS:
		return "MIPS"
	case MachinePowerPC:
		return "PowerPC"
	case MachineARM:
		return "ARM"
	case MachineX86_64:
		return "X86_64"
	case MachineAArch64:
		return "AArch64"
	case MachineRISCV:
		return "RISCV"
	default:
		return fmtOther(uint64(m))
	}
}

// RelArch maps the subset of machines this package decodes relocation
// types for; the zero value (RelArchX86) is also the fallback for
// machines with no dedicated decoding.
func (m Machine) RelArch() RelArch {
	switch m {
	case MachineX86_64:
		return RelArchX86_64
	case MachineAArch64:
		return RelArchAArch64
	case MachineRISCV:
		return RelArchRiscv64
	default:
		return RelArchX86
	}
}

func fmtOther(v uint64) string {
	const hexDigits = "0123456789abcdef"
	if v == 0 {
		return "Other(0x0)"
	}
	var buf [18]byte
	i := len(buf)
	for v > 0 {
		i--
		buf[i] = hexDigits[v&0xf]
		v >>= 4
	}
	i--
	buf[i] = 'x'
	i--
	buf[i] = '0'
	return "Other(" + string(buf[i:]) + ")"
}

// ObjKindTag classifies the e_type field.
type ObjKindTag uint8

const (
	KindRelocatable ObjKindTag = iota
	KindExecutable
	KindDynamic
	KindCore
	KindArchSpecific
)

func (t ObjKindTag) String() string {
	switch t {
	case KindRelocatable:
		return "Relocatable"
	case KindExecutable:
		return "Executable"
	case KindDynamic:
		return "Dynamic"
	case KindCore:
		return "Core"
	case KindArchSpecific:
		return "ArchSpecific"
	default:
		return fmtOther(uint64(t))
	}
}

// ObjKind is the decoded e_type field. Code is always populated; it
// only needs inspecting when Tag is KindArchSpecific.
type ObjKind struct {
	Tag  ObjKindTag
	Code uint16
}

func (k ObjKind) String() string {
	if k.Tag == KindArchSpecific {
		return fmt.Sprintf("ArchSpecific(0x%x)", k.Code)
	}
	return k.Tag.String()
}

func decodeObjKind(code uint16) (ObjKind, error) {
	switch code {
	case 1:
		return ObjKind{Tag: KindRelocatable, Code: code}, nil
	case 2:
		return ObjKind{Tag: KindExecutable, Code: code}, nil
	case 3:
		return ObjKind{Tag: KindDynamic, Code: code}, nil
	case 4:
		return ObjKind{Tag: KindCore, Code: code}, nil
	default:
		if code >= 0xff00 {
			return ObjKind{Tag: KindArchSpecific, Code: code}, nil
		}
		return ObjKind{}, &Error{Kind: BadKind, Got: uint64(code)}
	}
}

// ElfVariant is the result of Mux: the (class, byte order) pair
// discovered from an ELF image's identification bytes.
type ElfVariant struct {
	Class Class
	Order binary.ByteOrder
}

// Mux reads only the first 16 identification bytes of data and
// dispatches to one of the four (class, byte order) combinations this
// package supports, without interpreting the rest of the header.
func Mux(data []byte) (ElfVariant, error) {
	if len(data) < 16 {
		return ElfVariant{}, &Error{Kind: TooShort}
	}
	if [4]byte(data[0:4]) != elfMagic {
		return ElfVariant{}, &Error{Kind: BadMagic}
	}
	var class Class
	switch data[4] {
	case 1:
		class = Class32
	case 2:
		class = Class64
	default:
		return ElfVariant{}, &Error{Kind: BadClass, Got: uint64(data[4])}
	}
	var order binary.ByteOrder
	switch data[5] {
	case 1:
		order = binary.LittleEndian
	case 2:
		order = binary.BigEndian
	default:
		return ElfVariant{}, &Error{Kind: BadEndian, Got: uint64(data[5])}
	}
	if data[6] != 1 {
		return ElfVariant{}, &Error{Kind: BadVersion, Got: uint64(data[6])}
	}
	return ElfVariant{Class: class, Order: order}, nil
}

func elfHdrSize(class Class) int {
	if class == Class32 {
		return 52
	}
	return 64
}

// TablePos locates a fixed-size table within the ELF image: a file
// offset and an entry count. A prog-header table may be legitimately
// absent, encoded as {Offset: 0, NumEnts: 0}.
type TablePos struct {
	Offset  uint64
	NumEnts uint16
}

// ElfHdrData is the projected ELF header.
type ElfHdrData struct {
	Class               Class
	Order               binary.ByteOrder
	ABI                 ABI
	ABIVersion          uint8
	Kind                ObjKind
	Machine             Machine
	Version             uint32
	EntryAddr           Addr
	Flags               uint32
	ProgHdrTable        TablePos
	SectionHdrTable     TablePos
	SectionHdrStrtabIdx uint16
}

// ElfHdr is a handle onto a validated ELF header occupying the first
// elfHdrSize(class) bytes of an ELF image.
type ElfHdr struct {
	data []byte
	w    width
}

// NewElfHdr validates the full ELF header: identification bytes (via
// Mux), the e_ident version byte, e_type, and the program/section
// header entry sizes against invariant I7.
func NewElfHdr(data []byte) (ElfHdr, error) {
	variant, err := Mux(data)
	if err != nil {
		return ElfHdr{}, err
	}
	w := width{class: variant.Class, order: variant.Order}
	size := elfHdrSize(variant.Class)
	if len(data) < size {
		return ElfHdr{}, &Error{Kind: TooShort}
	}
	typeCode := w.half(data[16:18])
	if _, err := decodeObjKind(uint16(typeCode)); err != nil {
		return ElfHdr{}, err
	}
	addrSize := w.addrSize()
	phoffOff := 24 + addrSize
	shoffOff := phoffOff + addrSize
	flagsOff := shoffOff + addrSize
	ehsizeOff := flagsOff + 4
	phentsizeOff := ehsizeOff + 2
	phnumOff := phentsizeOff + 2
	shentsizeOff := phnumOff + 2
	shnumOff := shentsizeOff + 2

	phentsize := w.half(data[phentsizeOff : phentsizeOff+2])
	phnum := w.half(data[phnumOff : phnumOff+2])
	if phnum != 0 && int(phentsize) != progHdrEntSize(variant.Class) {
		return ElfHdr{}, &Error{Kind: BadProgHdrEntSize, Want: uint64(progHdrEntSize(variant.Class)), Got: uint64(phentsize)}
	}
	shentsize := w.half(data[shentsizeOff : shentsizeOff+2])
	shnum := w.half(data[shnumOff : shnumOff+2])
	if shnum != 0 && int(shentsize) != sectionHdrEntSize(variant.Class) {
		return ElfHdr{}, &Error{Kind: BadSectionHdrEntSize, Want: uint64(sectionHdrEntSize(variant.Class)), Got: uint64(shentsize)}
	}
	return ElfHdr{data: data[:size], w: w}, nil
}

// Data projects the header. It never fails: every field it reads was
// already validated by NewElfHdr.
func (h ElfHdr) Data() ElfHdrData {
	w := h.w
	d := h.data
	abi := ABI(d[7])
	abiVersion := d[8]
	typeCode := w.half(d[16:18])
	kind, _ := decodeObjKind(uint16(typeCode))
	machine := Machine(w.half(d[18:20]))
	version := uint32(w.word(d[20:24]))
	addrSize := w.addrSize()
	entry := w.addr(d[24 : 24+addrSize])
	phoffOff := 24 + addrSize
	shoffOff := phoffOff + addrSize
	flagsOff := shoffOff + addrSize
	ehsizeOff := flagsOff + 4
	phentsizeOff := ehsizeOff + 2
	phnumOff := phentsizeOff + 2
	shentsizeOff := phnumOff + 2
	shnumOff := shentsizeOff + 2
	shstrndxOff := shnumOff + 2

	phoff := w.addr(d[phoffOff : phoffOff+addrSize])
	shoff := w.addr(d[shoffOff : shoffOff+addrSize])
	flags := uint32(w.word(d[flagsOff : flagsOff+4]))
	phnum := w.half(d[phnumOff : phnumOff+2])
	shnum := w.half(d[shnumOff : shnumOff+2])
	shstrndx := w.half(d[shstrndxOff : shstrndxOff+2])

	return ElfHdrData{
		Class: w.class, Order: w.order, ABI: abi, ABIVersion: abiVersion,
		Kind: kind, Machine: machine, Version: version, EntryAddr: entry, Flags: flags,
		ProgHdrTable:        TablePos{Offset: uint64(phoff), NumEnts: uint16(phnum)},
		SectionHdrTable:     TablePos{Offset: uint64(shoff), NumEnts: uint16(shnum)},
		SectionHdrStrtabIdx: uint16(shstrndx),
	}
}

// ProgHdrs resolves the header's program-header table against the full
// ELF image, returning a zero-length ProgHdrs if the table is absent.
func (h ElfHdrData) ProgHdrs(elfData []byte) (ProgHdrs, error) {
	entSize := progHdrEntSize(h.Class)
	n := int(h.ProgHdrTable.NumEnts)
	start := h.ProgHdrTable.Offset
	end := start + uint64(entSize*n)
	if end > uint64(len(elfData)) {
		return ProgHdrs{}, &Error{Kind: DataOutOfBounds, Offset: start, Size: uint64(entSize * n)}
	}
	return NewProgHdrs(elfData[start:end], h.Class, h.Order)
}

// SectionHdrs resolves the header's section-header table against the
// full ELF image.
func (h ElfHdrData) SectionHdrs(elfData []byte) (SectionHdrs, error) {
	entSize := sectionHdrEntSize(h.Class)
	n := int(h.SectionHdrTable.NumEnts)
	start := h.SectionHdrTable.Offset
	end := start + uint64(entSize*n)
	if end > uint64(len(elfData)) {
		return SectionHdrs{}, &Error{Kind: DataOutOfBounds, Offset: start, Size: uint64(entSize * n)}
	}
	return NewSectionHdrs(elfData[start:end], h.Class, h.Order)
}

// CreateElfHdr writes d into buf, which must be exactly
// elfHdrSize(d.Class) bytes.
func CreateElfHdr(buf []byte, d ElfHdrData) error {
	size := elfHdrSize(d.Class)
	if len(buf) != size {
		return &Error{Kind: BadSize, Size: uint64(len(buf)), Want: uint64(size)}
	}
	w := width{class: d.Class, order: d.Order}
	copy(buf[0:4], elfMagic[:])
	if d.Class == Class32 {
		buf[4] = 1
	} else {
		buf[4] = 2
	}
	if d.Order == binary.BigEndian {
		buf[5] = 2
	} else {
		buf[5] = 1
	}
	buf[6] = 1
	buf[7] = byte(d.ABI)
	buf[8] = d.ABIVersion
	for i := 9; i < 16; i++ {
		buf[i] = 0
	}
	w.putHalf(buf[16:18], Half(d.Kind.Code))
	w.putHalf(buf[18:20], Half(d.Machine))
	w.putWord(buf[20:24], Word(d.Version))
	addrSize := w.addrSize()
	w.putAddr(buf[24:24+addrSize], d.EntryAddr)
	phoffOff := 24 + addrSize
	shoffOff := phoffOff + addrSize
	flagsOff := shoffOff + addrSize
	ehsizeOff := flagsOff + 4
	phentsizeOff := ehsizeOff + 2
	phnumOff := phentsizeOff + 2
	shentsizeOff := phnumOff + 2
	shnumOff := shentsizeOff + 2
	shstrndxOff := shnumOff + 2

	w.putAddr(buf[phoffOff:phoffOff+addrSize], Addr(d.ProgHdrTable.Offset))
	w.putAddr(buf[shoffOff:shoffOff+addrSize], Addr(d.SectionHdrTable.Offset))
	w.putWord(buf[flagsOff:flagsOff+4], Word(d.Flags))
	w.putHalf(buf[ehsizeOff:ehsizeOff+2], Half(size))
	w.putHalf(buf[phentsizeOff:phentsizeOff+2], Half(progHdrEntSize(d.Class)))
	w.putHalf(buf[phnumOff:phnumOff+2], Half(d.ProgHdrTable.NumEnts))
	w.putHalf(buf[shentsizeOff:shentsizeOff+2], Half(sectionHdrEntSize(d.Class)))
	w.putHalf(buf[shnumOff:shnumOff+2], Half(d.SectionHdrTable.NumEnts))
	w.putHalf(buf[shstrndxOff:shstrndxOff+2], Half(d.SectionHdrStrtabIdx))
	return nil
}
