// Package value holds the concrete value types behind a dataset element:
// strings, raw bytes, integers, and floats, each tied to a Value
// Representation that fixes its wire encoding.
package value

import (
	"encoding/binary"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/codeninja55/dicom-gateway/dicom/vr"
)

// Value is the element-value contract: every concrete type knows its VR,
// its wire bytes, a printable form, and how to compare itself.
type Value interface {
	VR() vr.VR
	Bytes() []byte
	String() string
	Equals(other Value) bool
}

var (
	_ Value = (*StringValue)(nil)
	_ Value = (*BytesValue)(nil)
	_ Value = (*IntValue)(nil)
	_ Value = (*FloatValue)(nil)
)

// StringValue carries one or more character-string values (the AE, AS,
// CS, DA, DS, DT, IS, LO, LT, PN, SH, ST, TM, UC, UI, UR, UT family).
type StringValue struct {
	vr     vr.VR
	values []string
}

// NewStringValue builds a StringValue, rejecting non-string VRs and
// values past the VR's length ceiling.
func NewStringValue(v vr.VR, values []string) (*StringValue, error) {
	if !v.IsStringType() {
		return nil, fmt.Errorf("VR %s is not a string type", v)
	}
	if max := v.MaxLength(); max > 0 {
		for _, val := range values {
			limit := max
			// A DA range ("lo-hi", used for query range matching) holds two dates.
			if v == vr.Date && strings.Contains(val, "-") {
				limit = 2*max + 1
			}
			if len(val) > limit {
				return nil, fmt.Errorf("value %q exceeds maximum length %d for VR %s", val, limit, v)
			}
		}
	}
	return &StringValue{vr: v, values: values}, nil
}

func (s *StringValue) VR() vr.VR { return s.vr }

// Strings returns the individual values.
func (s *StringValue) Strings() []string { return s.values }

// String joins multi-valued data with the DICOM backslash delimiter.
func (s *StringValue) String() string {
	return strings.Join(s.values, `\`)
}

// Bytes encodes the joined values, NUL-padding odd-length UIs.
func (s *StringValue) Bytes() []byte {
	if len(s.values) == 0 {
		return []byte{}
	}
	joined := strings.Join(s.values, `\`)
	if s.vr == vr.UniqueIdentifier && len(joined)%2 != 0 {
		joined += "\x00"
	}
	return []byte(joined)
}

func (s *StringValue) Equals(other Value) bool {
	o, ok := other.(*StringValue)
	if !ok || s.vr != o.vr || len(s.values) != len(o.values) {
		return false
	}
	for i, v := range s.values {
		if v != o.values[i] {
			return false
		}
	}
	return true
}

// BytesValue carries opaque byte data (OB, OD, OF, OL, OV, OW, UN), and
// also backs SQ elements whose items this module passes through undecoded.
type BytesValue struct {
	vr   vr.VR
	data []byte
}

// NewBytesValue builds a BytesValue; nil data becomes an empty slice.
func NewBytesValue(v vr.VR, data []byte) (*BytesValue, error) {
	if !v.IsBinaryType() && v != vr.SequenceOfItems {
		return nil, fmt.Errorf("VR %s is not a binary type", v)
	}
	if data == nil {
		data = []byte{}
	}
	return &BytesValue{vr: v, data: data}, nil
}

func (b *BytesValue) VR() vr.VR { return b.vr }

// Bytes returns the data, NUL-padded to even length.
func (b *BytesValue) Bytes() []byte {
	if len(b.data)%2 == 0 {
		return b.data
	}
	return append(append(make([]byte, 0, len(b.data)+1), b.data...), 0x00)
}

// String renders a hex dump, truncated past 16 bytes.
func (b *BytesValue) String() string {
	if len(b.data) == 0 {
		return "[]"
	}
	shown := b.data
	if len(shown) > 16 {
		shown = shown[:16]
	}
	var sb strings.Builder
	sb.WriteByte('[')
	for i, c := range shown {
		if i > 0 {
			sb.WriteByte(' ')
		}
		fmt.Fprintf(&sb, "%02X", c)
	}
	if len(b.data) > 16 {
		fmt.Fprintf(&sb, " ... (%d bytes)", len(b.data))
	}
	sb.WriteByte(']')
	return sb.String()
}

func (b *BytesValue) Equals(other Value) bool {
	o, ok := other.(*BytesValue)
	if !ok || b.vr != o.vr || len(b.data) != len(o.data) {
		return false
	}
	for i, c := range b.data {
		if c != o.data[i] {
			return false
		}
	}
	return true
}

// IntValue carries fixed-width integer values (SS, US, SL, UL, SV, UV)
// and AT tag pairs, all held as int64 and range-checked against the VR.
type IntValue struct {
	vr     vr.VR
	values []int64
}

// intWidth returns the per-value byte width for an integer VR, 0 when the
// VR isn't an integer type.
func intWidth(v vr.VR) int {
	switch v {
	case vr.SignedShort, vr.UnsignedShort:
		return 2
	case vr.SignedLong, vr.UnsignedLong, vr.AttributeTag:
		return 4
	case vr.SignedVeryLong, vr.UnsignedVeryLong:
		return 8
	}
	return 0
}

// intRange gives the inclusive bounds a value must satisfy for its VR.
func intRange(v vr.VR) (lo, hi int64) {
	switch v {
	case vr.SignedShort:
		return math.MinInt16, math.MaxInt16
	case vr.UnsignedShort:
		return 0, math.MaxUint16
	case vr.SignedLong:
		return math.MinInt32, math.MaxInt32
	case vr.UnsignedLong, vr.AttributeTag:
		return 0, math.MaxUint32
	case vr.UnsignedVeryLong:
		return 0, math.MaxInt64
	default: // SignedVeryLong
		return math.MinInt64, math.MaxInt64
	}
}

// NewIntValue builds an IntValue, rejecting non-integer VRs and
// out-of-range values.
func NewIntValue(v vr.VR, values []int64) (*IntValue, error) {
	if intWidth(v) == 0 {
		return nil, fmt.Errorf("VR %s is not an integer type", v)
	}
	lo, hi := intRange(v)
	for _, val := range values {
		if val < lo || val > hi {
			return nil, fmt.Errorf("value %d out of range for %s: [%d, %d]", val, v, lo, hi)
		}
	}
	return &IntValue{vr: v, values: values}, nil
}

func (i *IntValue) VR() vr.VR { return i.vr }

// Ints returns the individual values.
func (i *IntValue) Ints() []int64 { return i.values }

func (i *IntValue) String() string {
	parts := make([]string, len(i.values))
	for n, val := range i.values {
		parts[n] = strconv.FormatInt(val, 10)
	}
	return strings.Join(parts, `\`)
}

// Bytes encodes each value little-endian at the VR's width. AT values are
// two uint16 halves (group then element), not one uint32.
func (i *IntValue) Bytes() []byte {
	width := intWidth(i.vr)
	out := make([]byte, len(i.values)*width)
	for n, val := range i.values {
		dst := out[n*width:]
		switch width {
		case 2:
			binary.LittleEndian.PutUint16(dst, uint16(val))
		case 4:
			if i.vr == vr.AttributeTag {
				binary.LittleEndian.PutUint16(dst, uint16(val>>16))
				binary.LittleEndian.PutUint16(dst[2:], uint16(val))
			} else {
				binary.LittleEndian.PutUint32(dst, uint32(val))
			}
		case 8:
			binary.LittleEndian.PutUint64(dst, uint64(val))
		}
	}
	return out
}

func (i *IntValue) Equals(other Value) bool {
	o, ok := other.(*IntValue)
	if !ok || i.vr != o.vr || len(i.values) != len(o.values) {
		return false
	}
	for n, val := range i.values {
		if val != o.values[n] {
			return false
		}
	}
	return true
}

// FloatValue carries IEEE 754 values (FL, FD). NaN and the infinities are
// legal DICOM values and survive the round trip.
type FloatValue struct {
	vr     vr.VR
	values []float64
}

// NewFloatValue builds a FloatValue for FL or FD.
func NewFloatValue(v vr.VR, values []float64) (*FloatValue, error) {
	if v != vr.FloatingPointSingle && v != vr.FloatingPointDouble {
		return nil, fmt.Errorf("VR %s is not a floating-point type", v)
	}
	return &FloatValue{vr: v, values: values}, nil
}

func (f *FloatValue) VR() vr.VR { return f.vr }

// Floats returns the individual values.
func (f *FloatValue) Floats() []float64 { return f.values }

func (f *FloatValue) String() string {
	parts := make([]string, len(f.values))
	for n, val := range f.values {
		switch {
		case math.IsNaN(val):
			parts[n] = "NaN"
		case math.IsInf(val, 1):
			parts[n] = "+Inf"
		case math.IsInf(val, -1):
			parts[n] = "-Inf"
		default:
			parts[n] = strconv.FormatFloat(val, 'g', -1, 64)
		}
	}
	return strings.Join(parts, `\`)
}

// Bytes encodes little-endian binary32 (FL, narrowing from float64) or
// binary64 (FD).
func (f *FloatValue) Bytes() []byte {
	if f.vr == vr.FloatingPointSingle {
		out := make([]byte, len(f.values)*4)
		for n, val := range f.values {
			binary.LittleEndian.PutUint32(out[n*4:], math.Float32bits(float32(val)))
		}
		return out
	}
	out := make([]byte, len(f.values)*8)
	for n, val := range f.values {
		binary.LittleEndian.PutUint64(out[n*8:], math.Float64bits(val))
	}
	return out
}

// Equals treats NaN as equal to NaN so value comparison stays an
// equivalence relation over stored data.
func (f *FloatValue) Equals(other Value) bool {
	o, ok := other.(*FloatValue)
	if !ok || f.vr != o.vr || len(f.values) != len(o.values) {
		return false
	}
	for n, val := range f.values {
		if math.IsNaN(val) && math.IsNaN(o.values[n]) {
			continue
		}
		if val != o.values[n] {
			return false
		}
	}
	return true
}
