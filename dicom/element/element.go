// Package element pairs a tag and VR with a concrete value: the unit a
// dataset is composed of.
package element

import (
	"fmt"
	"strconv"

	"github.com/codeninja55/dicom-gateway/dicom/tag"
	"github.com/codeninja55/dicom-gateway/dicom/value"
	"github.com/codeninja55/dicom-gateway/dicom/vr"
)

// Element is one DICOM data element. The VR is stored alongside the value
// so an element decoded from an implicit-VR stream still knows how to
// re-encode itself explicitly.
type Element struct {
	tag   tag.Tag
	vr    vr.VR
	value value.Value
}

// NewElement builds an element, requiring the value to carry the same VR.
func NewElement(t tag.Tag, v vr.VR, val value.Value) (*Element, error) {
	if val == nil {
		return nil, fmt.Errorf("value cannot be nil")
	}
	if val.VR() != v {
		return nil, fmt.Errorf("value VR %s does not match element VR %s", val.VR(), v)
	}
	return &Element{tag: t, vr: v, value: val}, nil
}

// Tag returns the element's tag.
func (e *Element) Tag() tag.Tag { return e.tag }

// VR returns the element's Value Representation.
func (e *Element) VR() vr.VR { return e.vr }

// Value returns the element's value.
func (e *Element) Value() value.Value { return e.value }

// Name resolves the dictionary display name, "" for private or unknown
// tags.
func (e *Element) Name() string {
	info, err := tag.Find(e.tag)
	if err != nil {
		return ""
	}
	return info.Name
}

// Keyword resolves the dictionary keyword, "" for private or unknown tags.
func (e *Element) Keyword() string {
	info, err := tag.Find(e.tag)
	if err != nil {
		return ""
	}
	return info.Keyword
}

// ValueMultiplicity counts the stored values: per-entry for the multi-
// valued types, "0" or "1" for byte data.
func (e *Element) ValueMultiplicity() string {
	switch v := e.value.(type) {
	case *value.StringValue:
		return strconv.Itoa(len(v.Strings()))
	case *value.IntValue:
		return strconv.Itoa(len(v.Ints()))
	case *value.FloatValue:
		return strconv.Itoa(len(v.Floats()))
	case *value.BytesValue:
		if len(v.Bytes()) == 0 {
			return "0"
		}
		return "1"
	}
	return "1"
}

// String renders "(GGGG,EEEE) VR [Name] = value", omitting the name for
// tags outside the dictionary and truncating long values.
func (e *Element) String() string {
	val := e.value.String()
	if len(val) > 80 {
		val = val[:80] + "..."
	}
	if name := e.Name(); name != "" {
		return fmt.Sprintf("%s %s [%s] = %s", e.tag, e.vr, name, val)
	}
	return fmt.Sprintf("%s %s = %s", e.tag, e.vr, val)
}

// SetValue replaces the element's value; the replacement must carry the
// element's VR.
func (e *Element) SetValue(val value.Value) error {
	if val == nil {
		return fmt.Errorf("value cannot be nil")
	}
	if val.VR() != e.vr {
		return fmt.Errorf("value VR %s does not match element VR %s", val.VR(), e.vr)
	}
	e.value = val
	return nil
}

// Equals compares tag, VR, and value.
func (e *Element) Equals(other *Element) bool {
	return other != nil &&
		e.tag == other.tag &&
		e.vr == other.vr &&
		e.value.Equals(other.value)
}
