// Package vr models DICOM Value Representations (PS3.5 §6.2): the
// two-character type codes that govern how an element's value is encoded,
// padded, and length-framed on the wire.
package vr

import "fmt"

// VR identifies a Value Representation.
type VR uint8

const (
	ApplicationEntity           VR = iota + 1 // AE
	AgeString                                 // AS
	AttributeTag                              // AT
	CodeString                                // CS
	Date                                      // DA
	DecimalString                             // DS
	DateTime                                  // DT
	FloatingPointDouble                       // FD
	FloatingPointSingle                       // FL
	IntegerString                             // IS
	LongString                                // LO
	LongText                                  // LT
	OtherByte                                 // OB
	OtherDouble                               // OD
	OtherFloat                                // OF
	OtherLong                                 // OL
	OtherVeryLong                             // OV
	OtherWord                                 // OW
	PersonName                                // PN
	ShortString                               // SH
	SignedLong                                // SL
	SequenceOfItems                           // SQ
	SignedShort                               // SS
	ShortText                                 // ST
	SignedVeryLong                            // SV
	Time                                      // TM
	UnlimitedCharacters                       // UC
	UniqueIdentifier                          // UI
	UnsignedLong                              // UL
	Unknown                                   // UN
	UniversalResourceIdentifier               // UR
	UnsignedShort                             // US
	UnlimitedText                             // UT
	UnsignedVeryLong                          // UV
)

// kind buckets VRs by the broad shape of their values.
type kind uint8

const (
	kindString kind = iota + 1
	kindBinary
	kindNumeric
	kindOther
)

// properties carries everything the codec layer needs to know about one VR.
type properties struct {
	code   string
	kind   kind
	maxLen int  // 0 = unlimited
	pad    byte // odd-length padding byte
	long32 bool // 32-bit length field in explicit VR encoding
}

// vrTable is the single source of truth for VR behavior, indexed by VR.
var vrTable = map[VR]properties{
	ApplicationEntity:           {"AE", kindString, 16, ' ', false},
	AgeString:                   {"AS", kindString, 4, ' ', false},
	AttributeTag:                {"AT", kindOther, 0, ' ', false},
	CodeString:                  {"CS", kindString, 16, ' ', false},
	Date:                        {"DA", kindString, 8, ' ', false},
	DecimalString:               {"DS", kindString, 16, ' ', false},
	DateTime:                    {"DT", kindString, 26, ' ', false},
	FloatingPointDouble:         {"FD", kindNumeric, 0, 0x00, false},
	FloatingPointSingle:         {"FL", kindNumeric, 0, 0x00, false},
	IntegerString:               {"IS", kindString, 12, ' ', false},
	LongString:                  {"LO", kindString, 64, ' ', false},
	LongText:                    {"LT", kindString, 10240, ' ', false},
	OtherByte:                   {"OB", kindBinary, 0, 0x00, true},
	OtherDouble:                 {"OD", kindBinary, 0, 0x00, true},
	OtherFloat:                  {"OF", kindBinary, 0, 0x00, true},
	OtherLong:                   {"OL", kindBinary, 0, 0x00, true},
	OtherVeryLong:               {"OV", kindBinary, 0, 0x00, true},
	OtherWord:                   {"OW", kindBinary, 0, 0x00, true},
	PersonName:                  {"PN", kindString, 324, ' ', false},
	ShortString:                 {"SH", kindString, 16, ' ', false},
	SignedLong:                  {"SL", kindNumeric, 0, 0x00, false},
	SequenceOfItems:             {"SQ", kindOther, 0, ' ', true},
	SignedShort:                 {"SS", kindNumeric, 0, 0x00, false},
	ShortText:                   {"ST", kindString, 1024, ' ', false},
	SignedVeryLong:              {"SV", kindNumeric, 0, 0x00, false},
	Time:                        {"TM", kindString, 14, ' ', false},
	UnlimitedCharacters:         {"UC", kindString, 0, ' ', true},
	UniqueIdentifier:            {"UI", kindString, 64, 0x00, false},
	UnsignedLong:                {"UL", kindNumeric, 0, 0x00, false},
	Unknown:                     {"UN", kindBinary, 0, 0x00, true},
	UniversalResourceIdentifier: {"UR", kindString, 0, ' ', true},
	UnsignedShort:               {"US", kindNumeric, 0, 0x00, false},
	UnlimitedText:               {"UT", kindString, 0, ' ', true},
	UnsignedVeryLong:            {"UV", kindNumeric, 0, 0x00, false},
}

// byCode resolves a two-character code back to its VR.
var byCode = func() map[string]VR {
	m := make(map[string]VR, len(vrTable))
	for v, p := range vrTable {
		m[p.code] = v
	}
	return m
}()

// String returns the two-character code; unrecognized values print as "UN".
func (v VR) String() string {
	if p, ok := vrTable[v]; ok {
		return p.code
	}
	return "UN"
}

// IsValid reports whether s is a recognized two-character VR code.
func IsValid(s string) bool {
	_, ok := byCode[s]
	return ok
}

// Parse resolves a two-character VR code.
func Parse(s string) (VR, error) {
	if v, ok := byCode[s]; ok {
		return v, nil
	}
	return 0, fmt.Errorf("invalid VR: %q", s)
}

// UsesExplicitLength32 reports whether this VR is framed with a 32-bit
// length (after 2 reserved bytes) in explicit VR encoding (PS3.5 §7.1.2).
func (v VR) UsesExplicitLength32() bool {
	return vrTable[v].long32
}

// PaddingByte is the byte appended to pad odd-length values: NUL for UI,
// the binary VRs and the numeric VRs, space for everything else.
func (v VR) PaddingByte() byte {
	if p, ok := vrTable[v]; ok {
		return p.pad
	}
	return 0x00
}

// MaxLength is the VR's value-length ceiling in bytes, 0 when unlimited.
func (v VR) MaxLength() int {
	return vrTable[v].maxLen
}

// AllowsBackslash reports whether backslash is data rather than a
// multi-value delimiter for this VR.
func (v VR) AllowsBackslash() bool {
	return v == PersonName
}

// IsStringType reports whether values of this VR are character data.
func (v VR) IsStringType() bool {
	return vrTable[v].kind == kindString
}

// IsBinaryType reports whether values of this VR are opaque byte data.
func (v VR) IsBinaryType() bool {
	return vrTable[v].kind == kindBinary
}

// IsNumericType reports whether values of this VR are fixed-width numbers.
func (v VR) IsNumericType() bool {
	return vrTable[v].kind == kindNumeric
}
