package zelf

import "unicode/utf8"

// Strtab is a read-only, non-owning view over an ELF string table: a byte
// buffer whose first and last bytes are zero, logically a set of
// null-terminated substrings indexed by their starting byte offset.
// Multiple logical strings may share a physical suffix; offset 0 always
// names the empty string.
type Strtab struct {
	data []byte
}

// NewStrtab validates data against invariant I2 (first and last byte are
// zero) and returns a Strtab borrowing it.
func NewStrtab(data []byte) (Strtab, error) {
	if len(data) == 0 || data[0] != 0 || data[len(data)-1] != 0 {
		return Strtab{}, &Error{Kind: BadSize, Msg: "strtab must be non-empty with a leading and trailing zero byte"}
	}
	return Strtab{data: data}, nil
}

// Bytes returns the underlying buffer.
func (s Strtab) Bytes() []byte { return s.data }

func (s Strtab) rawAt(i uint64) ([]byte, error) {
	if i >= uint64(len(s.data)) {
		return nil, &Error{Kind: OutOfBounds, Idx: i}
	}
	end := i
	for s.data[end] != 0 {
		end++
	}
	return s.data[i:end], nil
}

// Idx decodes the null-terminated substring starting at byte offset i.
// It returns OutOfBounds when i names a position beyond the buffer and
// UTF8Decode when the terminator exists but the bytes are not valid
// UTF-8.
func (s Strtab) Idx(i uint64) (string, error) {
	raw, err := s.rawAt(i)
	if err != nil {
		return "", err
	}
	if !utf8.Valid(raw) {
		return "", &Error{Kind: UTF8Decode, Bytes: raw}
	}
	return string(raw), nil
}

// StrtabEntry is one entry yielded by a StrtabIter: the string's starting
// offset plus either its decoded value or a decode error.
type StrtabEntry struct {
	Offset uint64
	Str    string
	Err    error
}

// StrtabIter is a lazy, finite, forward-only iterator over every logical
// substring of a Strtab, stepping by len+1 after each terminator.
type StrtabIter struct {
	s    Strtab
	off  uint64
	done bool
}

// Iter returns an iterator over every substring of s in ascending offset
// order.
func (s Strtab) Iter() *StrtabIter {
	return &StrtabIter{s: s}
}

// Next advances the iterator, returning false once the buffer is
// exhausted.
func (it *StrtabIter) Next() (StrtabEntry, bool) {
	if it.done || it.off >= uint64(len(it.s.data)) {
		return StrtabEntry{}, false
	}
	raw, err := it.s.rawAt(it.off)
	if err != nil {
		it.done = true
		return StrtabEntry{}, false
	}
	entry := StrtabEntry{Offset: it.off}
	if utf8.Valid(raw) {
		entry.Str = string(raw)
	} else {
		entry.Err = &Error{Kind: UTF8Decode, Bytes: raw}
	}
	it.off += uint64(len(raw)) + 1
	return entry, true
}

// StrtabRequiredBytes returns the number of bytes CreateSplit would need
// to encode strings: one leading zero plus len+1 for every string.
func StrtabRequiredBytes(strings []string) int {
	n := 1
	for _, s := range strings {
		n += len(s) + 1
	}
	return n
}

// CreateSplit emits the leading zero byte, then each string's bytes
// followed by a zero byte, in input order, into buf. It returns the
// written prefix and the unused remainder of buf, or an error if buf is
// too small.
func CreateSplit(buf []byte, strings []string) (written, rest []byte, err error) {
	need := StrtabRequiredBytes(strings)
	if len(buf) < need {
		return nil, nil, &Error{Kind: BadSize, Size: uint64(len(buf)), Want: uint64(need),
			Msg: "strtab buffer too small to hold requested strings"}
	}
	n := 0
	buf[n] = 0
	n++
	for _, s := range strings {
		n += copy(buf[n:], s)
		buf[n] = 0
		n++
	}
	return buf[:n], buf[n:], nil
}
