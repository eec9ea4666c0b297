package dicom

import (
	"fmt"
	"io"
	"math"
	"strings"

	"github.com/codeninja55/dicom-gateway/dicom/element"
	"github.com/codeninja55/dicom-gateway/dicom/tag"
	"github.com/codeninja55/dicom-gateway/dicom/value"
	"github.com/codeninja55/dicom-gateway/dicom/vr"
)

// Item and delimiter tags used by sequences and encapsulated pixel data
// (PS3.5 §7.5, §A.4), as packed uint32s for cheap comparison.
const (
	itemStartTag   = uint32(0xFFFE_E000)
	itemEndTag     = uint32(0xFFFE_E00D)
	sequenceEndTag = uint32(0xFFFE_E0DD)
)

// undefinedLength is the 32-bit marker for delimiter-terminated values.
const undefinedLength = uint32(0xFFFFFFFF)

// ElementParser decodes data elements from a stream under one transfer
// syntax. Explicit VR streams carry the VR inline; implicit VR streams
// resolve it through the dictionary. Sequence *items* are not modeled:
// SQ content is skipped (the gateway relays datasets, it does not edit
// nested structures), and encapsulated pixel data is captured as its raw
// fragment stream.
type ElementParser struct {
	reader *Reader
	ts     *TransferSyntax
}

// NewElementParser binds a Reader and transfer syntax.
func NewElementParser(reader *Reader, ts *TransferSyntax) *ElementParser {
	return &ElementParser{reader: reader, ts: ts}
}

// ReadElement decodes the next complete data element.
func (p *ElementParser) ReadElement() (*element.Element, error) {
	t, err := p.readTag()
	if err != nil {
		return nil, fmt.Errorf("failed to read tag: %w", err)
	}

	v, length, err := p.readVRAndLength(t)
	if err != nil {
		return nil, fmt.Errorf("header for tag %s: %w", t, err)
	}

	val, err := p.readValue(t, v, length)
	if err != nil {
		return nil, fmt.Errorf("failed to read value for tag %s: %w", t, err)
	}

	elem, err := element.NewElement(t, v, val)
	if err != nil {
		return nil, fmt.Errorf("failed to create element for tag %s: %w", t, err)
	}
	return elem, nil
}

// readTag reads the 4-byte group/element pair.
func (p *ElementParser) readTag() (tag.Tag, error) {
	group, err := p.reader.ReadUint16()
	if err != nil {
		return tag.Tag{}, err
	}
	elem, err := p.reader.ReadUint16()
	if err != nil {
		return tag.Tag{}, err
	}
	return tag.New(group, elem), nil
}

// readVRAndLength consumes the rest of an element header after the tag.
// Explicit VR: 2-byte VR code, then either a 16-bit length or (for the
// long VRs) 2 reserved bytes plus a 32-bit length. Implicit VR: a 32-bit
// length, the VR resolved from the dictionary (first listed VR wins; UN
// for tags the dictionary doesn't know).
func (p *ElementParser) readVRAndLength(t tag.Tag) (vr.VR, uint32, error) {
	if !p.ts.ExplicitVR {
		v := vr.Unknown
		if info, err := tag.Find(t); err == nil && len(info.VRs) > 0 {
			v = info.VRs[0]
		}
		length, err := p.reader.ReadUint32()
		if err != nil {
			return 0, 0, fmt.Errorf("failed to read length: %w", err)
		}
		return v, length, nil
	}

	code, err := p.reader.ReadString(2)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to read VR: %w", err)
	}
	v, err := vr.Parse(code)
	if err != nil {
		return 0, 0, fmt.Errorf("%w: %q", ErrInvalidVR, code)
	}

	if v.UsesExplicitLength32() {
		// 2 reserved bytes (nominally zero, tolerated otherwise), then
		// the 32-bit length.
		if _, err := p.reader.ReadUint16(); err != nil {
			return 0, 0, fmt.Errorf("failed to read reserved field: %w", err)
		}
		length, err := p.reader.ReadUint32()
		if err != nil {
			return 0, 0, fmt.Errorf("failed to read 32-bit length: %w", err)
		}
		return v, length, nil
	}

	length16, err := p.reader.ReadUint16()
	if err != nil {
		return 0, 0, fmt.Errorf("failed to read 16-bit length: %w", err)
	}
	return v, uint32(length16), nil
}

// readValue decodes the value field for (t, v, length).
func (p *ElementParser) readValue(t tag.Tag, v vr.VR, length uint32) (value.Value, error) {
	if length == 0 {
		return emptyValue(v)
	}

	if length == undefinedLength {
		switch {
		case v == vr.SequenceOfItems:
			return p.skipSequence(t)
		case (v == vr.OtherByte || v == vr.OtherWord) && t == tag.New(0x7FE0, 0x0010):
			return p.readEncapsulatedPixelData(v)
		}
		return nil, fmt.Errorf("%w: undefined length for non-sequence VR %s", ErrUndefinedLength, v)
	}

	switch {
	case v == vr.SequenceOfItems:
		// Defined-length sequence: consume and discard the content.
		if _, err := p.reader.ReadBytes(int(length)); err != nil {
			return nil, fmt.Errorf("failed to skip sequence %s content (%d bytes): %w", t, length, err)
		}
		return value.NewBytesValue(vr.SequenceOfItems, []byte{})
	case v.IsStringType():
		return p.readStringValue(v, length)
	case v == vr.FloatingPointSingle || v == vr.FloatingPointDouble:
		return p.readFloatValue(v, length)
	case v.IsNumericType():
		return p.readIntValue(v, length)
	default:
		return p.readBytesValue(v, length)
	}
}

// emptyValue builds the zero-length value appropriate for v.
func emptyValue(v vr.VR) (value.Value, error) {
	switch {
	case v == vr.SequenceOfItems:
		return value.NewBytesValue(vr.SequenceOfItems, []byte{})
	case v.IsStringType():
		return value.NewStringValue(v, []string{})
	case v == vr.FloatingPointSingle || v == vr.FloatingPointDouble:
		return value.NewFloatValue(v, []float64{})
	case v.IsNumericType():
		return value.NewIntValue(v, []int64{})
	case v.IsBinaryType():
		return value.NewBytesValue(v, []byte{})
	default:
		return value.NewBytesValue(vr.Unknown, []byte{})
	}
}

// readStringValue reads character data, strips trailing NUL/space
// padding, and splits multi-valued data on the backslash delimiter.
func (p *ElementParser) readStringValue(v vr.VR, length uint32) (*value.StringValue, error) {
	raw, err := p.reader.ReadString(int(length))
	if err != nil {
		return nil, fmt.Errorf("failed to read string data: %w", err)
	}

	trimmed := strings.TrimRight(raw, "\x00 ")
	values := []string{}
	if trimmed != "" {
		values = strings.Split(trimmed, `\`)
	}

	val, err := value.NewStringValue(v, values)
	if err != nil {
		return nil, fmt.Errorf("failed to create string value: %w", err)
	}
	return val, nil
}

// numericWidth is the per-value byte width for fixed-width VRs.
func numericWidth(v vr.VR) int {
	switch v {
	case vr.SignedShort, vr.UnsignedShort:
		return 2
	case vr.SignedLong, vr.UnsignedLong, vr.AttributeTag, vr.FloatingPointSingle:
		return 4
	case vr.SignedVeryLong, vr.UnsignedVeryLong, vr.FloatingPointDouble:
		return 8
	}
	return 0
}

// readNumericRaw validates length against the VR's width and returns the
// raw value bytes.
func (p *ElementParser) readNumericRaw(v vr.VR, length uint32) ([]byte, int, error) {
	width := numericWidth(v)
	if width == 0 {
		return nil, 0, fmt.Errorf("unsupported numeric VR: %s", v)
	}
	if int(length)%width != 0 {
		return nil, 0, fmt.Errorf("invalid length %d for VR %s (not multiple of %d)", length, v, width)
	}
	raw, err := p.reader.ReadBytes(int(length))
	if err != nil {
		return nil, 0, err
	}
	return raw, width, nil
}

// readIntValue decodes the integer family, sign-extending the signed VRs.
func (p *ElementParser) readIntValue(v vr.VR, length uint32) (*value.IntValue, error) {
	raw, width, err := p.readNumericRaw(v, length)
	if err != nil {
		return nil, err
	}

	order := p.ts.ByteOrder
	values := make([]int64, 0, len(raw)/width)
	for off := 0; off < len(raw); off += width {
		var val int64
		switch width {
		case 2:
			u := order.Uint16(raw[off:])
			if v == vr.SignedShort {
				val = int64(int16(u))
			} else {
				val = int64(u)
			}
		case 4:
			u := order.Uint32(raw[off:])
			if v == vr.SignedLong {
				val = int64(int32(u))
			} else {
				val = int64(u)
			}
		case 8:
			val = int64(order.Uint64(raw[off:]))
		}
		values = append(values, val)
	}

	intVal, err := value.NewIntValue(v, values)
	if err != nil {
		return nil, fmt.Errorf("failed to create int value: %w", err)
	}
	return intVal, nil
}

// readFloatValue decodes FL/FD data.
func (p *ElementParser) readFloatValue(v vr.VR, length uint32) (*value.FloatValue, error) {
	raw, width, err := p.readNumericRaw(v, length)
	if err != nil {
		return nil, err
	}

	order := p.ts.ByteOrder
	values := make([]float64, 0, len(raw)/width)
	for off := 0; off < len(raw); off += width {
		if width == 4 {
			values = append(values, float64(math.Float32frombits(order.Uint32(raw[off:]))))
		} else {
			values = append(values, math.Float64frombits(order.Uint64(raw[off:])))
		}
	}

	floatVal, err := value.NewFloatValue(v, values)
	if err != nil {
		return nil, fmt.Errorf("failed to create float value: %w", err)
	}
	return floatVal, nil
}

// readBytesValue captures opaque byte data.
func (p *ElementParser) readBytesValue(v vr.VR, length uint32) (*value.BytesValue, error) {
	if !v.IsBinaryType() {
		v = vr.Unknown
	}
	data, err := p.reader.ReadBytes(int(length))
	if err != nil {
		return nil, fmt.Errorf("failed to read binary data: %w", err)
	}
	bytesVal, err := value.NewBytesValue(v, data)
	if err != nil {
		return nil, fmt.Errorf("failed to create bytes value: %w", err)
	}
	return bytesVal, nil
}

// skipSequence consumes an undefined-length sequence through its
// Sequence Delimitation Item, recursing into nested undefined-length
// sequences, and returns the empty-SQ placeholder.
func (p *ElementParser) skipSequence(seqTag tag.Tag) (value.Value, error) {
	for {
		t, err := p.readTag()
		if err != nil {
			return nil, fmt.Errorf("unexpected EOF while skipping sequence %s: %w", seqTag, err)
		}

		switch t.Uint32() {
		case sequenceEndTag:
			if _, err := p.reader.ReadUint32(); err != nil {
				return nil, fmt.Errorf("failed to read sequence delimitation length: %w", err)
			}
			return value.NewBytesValue(vr.SequenceOfItems, []byte{})

		case itemStartTag:
			length, err := p.reader.ReadUint32()
			if err != nil {
				return nil, fmt.Errorf("failed to read item length: %w", err)
			}
			if length == undefinedLength {
				if err := p.skipItem(); err != nil {
					return nil, fmt.Errorf("failed to skip undefined length item: %w", err)
				}
			} else if length > 0 {
				if _, err := p.reader.ReadBytes(int(length)); err != nil {
					return nil, fmt.Errorf("failed to skip item content: %w", err)
				}
			}

		case itemEndTag:
			return nil, fmt.Errorf("unexpected item delimitation tag while skipping sequence %s", seqTag)

		default:
			if err := p.skipElementBody(t); err != nil {
				return nil, err
			}
		}
	}
}

// skipItem consumes an undefined-length item through its Item
// Delimitation Item.
func (p *ElementParser) skipItem() error {
	for {
		t, err := p.readTag()
		if err != nil {
			if err == io.EOF {
				return io.EOF
			}
			return fmt.Errorf("failed to read tag while skipping item: %w", err)
		}

		switch t.Uint32() {
		case itemEndTag:
			if _, err := p.reader.ReadUint32(); err != nil {
				return fmt.Errorf("failed to read item delimitation length: %w", err)
			}
			return nil
		case sequenceEndTag:
			// The item delimiter is missing; surface it rather than
			// silently consuming the parent sequence's terminator.
			return fmt.Errorf("found sequence delimitation while expecting item delimitation")
		}

		if err := p.skipElementBody(t); err != nil {
			return err
		}
	}
}

// skipElementBody reads the header remainder for an element inside a
// skipped sequence/item and discards its value, recursing for nested
// undefined-length sequences.
func (p *ElementParser) skipElementBody(t tag.Tag) error {
	v, length, err := p.readVRAndLength(t)
	if err != nil {
		return fmt.Errorf("header while skipping %s: %w", t, err)
	}

	if length == undefinedLength {
		if v != vr.SequenceOfItems {
			return fmt.Errorf("%w: undefined length for %s inside skipped sequence", ErrUndefinedLength, v)
		}
		_, err := p.skipSequence(t)
		return err
	}

	if length > 0 {
		if _, err := p.reader.ReadBytes(int(length)); err != nil {
			return fmt.Errorf("failed to skip element value: %w", err)
		}
	}
	return nil
}

// readEncapsulatedPixelData captures an undefined-length (7FE0,0010)
// fragment stream (PS3.5 §A.4) verbatim: each Item header and its data,
// plus the terminating Sequence Delimitation Item, re-serialized
// little-endian so the cached instance round-trips byte-exact.
func (p *ElementParser) readEncapsulatedPixelData(pixelVR vr.VR) (value.Value, error) {
	var out []byte
	appendU32 := func(u uint32) {
		out = append(out, byte(u), byte(u>>8), byte(u>>16), byte(u>>24))
	}

	for {
		t, err := p.readTag()
		if err != nil {
			return nil, fmt.Errorf("unexpected EOF while reading encapsulated pixel data: %w", err)
		}

		length, err := p.reader.ReadUint32()
		if err != nil {
			return nil, fmt.Errorf("failed to read fragment length: %w", err)
		}

		switch t.Uint32() {
		case sequenceEndTag:
			out = append(out, 0xFE, 0xFF, 0xDD, 0xE0)
			appendU32(0)
			return value.NewBytesValue(pixelVR, out)

		case itemStartTag:
			out = append(out, 0xFE, 0xFF, 0x00, 0xE0)
			appendU32(length)
			if length > 0 {
				data, err := p.reader.ReadBytes(int(length))
				if err != nil {
					return nil, fmt.Errorf("failed to read fragment data (%d bytes): %w", length, err)
				}
				out = append(out, data...)
			}

		default:
			return nil, fmt.Errorf("unexpected tag %s while reading encapsulated pixel data (expected Item or Sequence Delimitation)", t)
		}
	}
}
