package zelf

import "encoding/binary"

// ElfHash is the standard System V ELF symbol-name hash used by SysV
// .hash sections.
func ElfHash(name []byte) uint32 {
	var h uint32
	for _, c := range name {
		h = (h << 4) + uint32(c)
		g := h & 0xf0000000
		if g != 0 {
			h ^= g >> 24
		}
		h &^= g
	}
	return h
}

// Hashtab is a read-only, non-owning view over a SysV .hash section: a
// header of (nbucket, nchain) followed by nbucket bucket entries and
// nchain chain entries, each a 32-bit symbol-table index.
type Hashtab struct {
	data    []byte
	order   binary.ByteOrder
	nbucket uint32
	nchain  uint32
	symtab  Symtab
	strtab  Strtab
}

// NewHashtab validates that the bucket and chain arrays fit in data and
// that every bucket/chain value is a valid index into symtab.
func NewHashtab(data []byte, order binary.ByteOrder, symtab Symtab, strtab Strtab) (Hashtab, error) {
	if len(data) < 8 {
		return Hashtab{}, &Error{Kind: TooShort}
	}
	nbucket := order.Uint32(data[0:4])
	nchain := order.Uint32(data[4:8])
	need := 8 + 4*int(nbucket) + 4*int(nchain)
	if len(data) < need {
		return Hashtab{}, &Error{Kind: BadSize, Size: uint64(len(data)), Want: uint64(need)}
	}
	h := Hashtab{data: data, order: order, nbucket: nbucket, nchain: nchain, symtab: symtab, strtab: strtab}
	symCount := uint32(symtab.Len())
	for i := uint32(0); i < nbucket; i++ {
		if v := h.bucket(i); v >= symCount {
			return Hashtab{}, &Error{Kind: IdxOutOfBounds, Idx: uint64(v)}
		}
	}
	for i := uint32(0); i < nchain; i++ {
		if v := h.chain(i); v >= symCount {
			return Hashtab{}, &Error{Kind: IdxOutOfBounds, Idx: uint64(v)}
		}
	}
	return h, nil
}

func (h Hashtab) bucket(i uint32) uint32 {
	off := 8 + 4*int(i)
	return h.order.Uint32(h.data[off : off+4])
}

func (h Hashtab) chain(i uint32) uint32 {
	off := 8 + 4*int(h.nbucket) + 4*int(i)
	return h.order.Uint32(h.data[off : off+4])
}

// Lookup resolves name to its Sym handle by walking the bucket chain
// for ElfHash(name) mod nbucket, comparing each candidate's resolved
// name against name.
func (h Hashtab) Lookup(name string) (Sym, bool) {
	if h.nbucket == 0 {
		return Sym{}, false
	}
	idx := h.bucket(ElfHash([]byte(name)) % h.nbucket)
	for idx != 0 {
		sym, ok := h.symtab.Idx(int(idx))
		if !ok {
			return Sym{}, false
		}
		resolved, err := sym.Data().WithStrtab(h.strtab)
		if err == nil && resolved.NameErr == nil && resolved.Name == name {
			return sym, true
		}
		idx = h.chain(idx)
	}
	return Sym{}, false
}
