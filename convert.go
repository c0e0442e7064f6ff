package zelf

import "unicode/utf8"

// resolveStrtabName resolves idx against tab, splitting the failure mode
// the way every WithStrtab conversion in this package does: an
// out-of-bounds index fails the whole conversion (err != nil), while
// invalid UTF-8 at a valid index is reported back to the caller as
// nameErr so the rest of the decoded entry can still be used.
func resolveStrtabName(tab Strtab, idx uint32) (name string, nameErr error, err error) {
	raw, e := tab.rawAt(uint64(idx))
	if e != nil {
		return "", nil, e
	}
	if !utf8.Valid(raw) {
		return "", &Error{Kind: UTF8Decode, Bytes: raw}, nil
	}
	return string(raw), nil, nil
}

// The three staged conversions below are not expressed as shared
// interfaces: each raw type's WithElfData/WithStrtab/WithSectionHdrs
// method returns that type's own resolved result type rather than any,
// so callers get a concrete struct back instead of an interface{} they
// would immediately have to type-assert. The method names and the
// out-of-bounds/decode-error split above are the convention; see
// SymData.WithStrtab, DynamicEntData.WithStrtab, SectionHdrData.WithElfData
// and ProgHdrData.WithElfData for the per-type implementations.
