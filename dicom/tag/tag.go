// Package tag models DICOM data element tags, the (group, element) pairs
// that key every attribute in a dataset, plus the PS3.6 dictionary lookups
// the rest of the module resolves keywords and VRs through.
package tag

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/codeninja55/dicom-gateway/dicom/vr"
)

// MetadataGroup holds the File Meta Information elements (PS3.10 §7.1).
const MetadataGroup = 0x0002

// Tag is a DICOM data element identifier. Odd groups are private; group
// 0x0002 is reserved for file meta information. Ordering is by group,
// then element.
type Tag struct {
	Group   uint16
	Element uint16
}

// New builds a Tag from its group and element numbers.
func New(group, element uint16) Tag {
	return Tag{Group: group, Element: element}
}

// Equals reports whether two tags identify the same element.
func (t Tag) Equals(other Tag) bool {
	return t == other
}

// Compare orders tags by group then element, returning -1, 0, or 1.
func (t Tag) Compare(other Tag) int {
	a, b := t.Uint32(), other.Uint32()
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

// String renders the tag in the conventional "(GGGG,EEEE)" hex notation.
func (t Tag) String() string {
	return fmt.Sprintf("(%04X,%04X)", t.Group, t.Element)
}

// Uint32 packs the tag into a single word, group in the high half. Used
// for ordering and for the 8-hex-digit DICOMweb JSON keys.
func (t Tag) Uint32() uint32 {
	return uint32(t.Group)<<16 | uint32(t.Element)
}

// IsPrivate reports whether the tag sits in a private (odd) group.
func (t Tag) IsPrivate() bool {
	return t.Group&1 == 1
}

// IsMetaElement reports whether the tag belongs to the File Meta
// Information group.
func (t Tag) IsMetaElement() bool {
	return t.Group == MetadataGroup
}

// Parse reads "(GGGG,EEEE)" or "GGGG,EEEE" hex notation back into a Tag.
func Parse(s string) (Tag, error) {
	trimmed := strings.TrimSuffix(strings.TrimPrefix(strings.TrimSpace(s), "("), ")")
	group, element, ok := strings.Cut(trimmed, ",")
	if !ok {
		return Tag{}, fmt.Errorf("invalid tag format: %q, expected (GGGG,EEEE)", s)
	}

	g, err := strconv.ParseUint(strings.TrimSpace(group), 16, 16)
	if err != nil {
		return Tag{}, fmt.Errorf("invalid group number: %w", err)
	}
	e, err := strconv.ParseUint(strings.TrimSpace(element), 16, 16)
	if err != nil {
		return Tag{}, fmt.Errorf("invalid element number: %w", err)
	}

	return New(uint16(g), uint16(e)), nil
}

// Info is one dictionary row: the tag, its permissible VRs (always at
// least one), display name, machine keyword, value multiplicity, and
// retirement flag.
type Info struct {
	Tag     Tag
	VRs     []vr.VR
	Name    string
	Keyword string
	VM      string
	Retired bool
}

// Find resolves a tag against the dictionary. A (gggg,0000) tag in an even
// group that isn't listed resolves to the generic group-length entry the
// standard defines for every group.
func Find(t Tag) (Info, error) {
	if info, ok := TagDict[t]; ok {
		return info, nil
	}
	if t.Element == 0x0000 && t.Group&1 == 0 {
		return Info{
			Tag:     t,
			VRs:     []vr.VR{vr.UnsignedLong},
			Name:    "Generic Group Length",
			Keyword: "GenericGroupLength",
			VM:      "1",
		}, nil
	}
	return Info{}, fmt.Errorf("tag %s not found in dictionary", t)
}

// FindByKeyword resolves a dictionary entry by its keyword, falling back
// to the display name. Linear over the dictionary; callers on hot paths
// should resolve once and hold the Info.
func FindByKeyword(keyword string) (Info, error) {
	if keyword == "" {
		return Info{}, fmt.Errorf("keyword cannot be empty")
	}
	for _, info := range TagDict {
		if info.Keyword == keyword || info.Name == keyword {
			return info, nil
		}
	}
	return Info{}, fmt.Errorf("tag with keyword %q not found in dictionary", keyword)
}
