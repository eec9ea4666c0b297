package dicom

import (
	"fmt"
	"sort"
	"strings"

	"github.com/codeninja55/dicom-gateway/dicom/element"
	"github.com/codeninja55/dicom-gateway/dicom/tag"
)

// DataSet is a tag-indexed collection of data elements. It is the shape
// every C-FIND identifier, C-STORE payload, and cached instance takes
// inside the gateway.
type DataSet struct {
	elements map[tag.Tag]*element.Element
}

// NewDataSet returns an empty dataset.
func NewDataSet() *DataSet {
	return &DataSet{elements: map[tag.Tag]*element.Element{}}
}

// NewDataSetWithElements builds a dataset from elements, rejecting nils
// and duplicate tags.
func NewDataSetWithElements(elements []*element.Element) (*DataSet, error) {
	ds := NewDataSet()
	for _, elem := range elements {
		if elem == nil {
			return nil, fmt.Errorf("cannot add nil element")
		}
		if ds.Contains(elem.Tag()) {
			return nil, fmt.Errorf("duplicate tag %s in elements", elem.Tag())
		}
		ds.elements[elem.Tag()] = elem
	}
	return ds, nil
}

// Add inserts elem, replacing any element already stored under its tag.
func (ds *DataSet) Add(elem *element.Element) error {
	if elem == nil {
		return fmt.Errorf("cannot add nil element")
	}
	ds.elements[elem.Tag()] = elem
	return nil
}

// Get returns the element stored under t.
func (ds *DataSet) Get(t tag.Tag) (*element.Element, error) {
	if elem, ok := ds.elements[t]; ok {
		return elem, nil
	}
	return nil, fmt.Errorf("element with tag %s not found", t)
}

// GetByKeyword resolves a dictionary keyword to its tag and fetches that
// element.
func (ds *DataSet) GetByKeyword(keyword string) (*element.Element, error) {
	info, err := tag.FindByKeyword(keyword)
	if err != nil {
		return nil, fmt.Errorf("unknown keyword %q: %w", keyword, err)
	}
	return ds.Get(info.Tag)
}

// Contains reports whether an element is stored under t.
func (ds *DataSet) Contains(t tag.Tag) bool {
	_, ok := ds.elements[t]
	return ok
}

// Remove drops the element under t, erroring if absent.
func (ds *DataSet) Remove(t tag.Tag) error {
	if !ds.Contains(t) {
		return fmt.Errorf("element with tag %s not found", t)
	}
	delete(ds.elements, t)
	return nil
}

// Len returns the element count.
func (ds *DataSet) Len() int {
	return len(ds.elements)
}

// Tags returns the dataset's tags in ascending wire order. The slice is
// freshly allocated.
func (ds *DataSet) Tags() []tag.Tag {
	tags := make([]tag.Tag, 0, len(ds.elements))
	for t := range ds.elements {
		tags = append(tags, t)
	}
	sort.Slice(tags, func(i, j int) bool { return tags[i].Uint32() < tags[j].Uint32() })
	return tags
}

// Elements returns the elements in ascending tag order. Encoders depend
// on this ordering: DICOM streams must be written group/element sorted.
func (ds *DataSet) Elements() []*element.Element {
	out := make([]*element.Element, 0, len(ds.elements))
	for _, t := range ds.Tags() {
		out = append(out, ds.elements[t])
	}
	return out
}

// String renders a sorted, indented listing for logs and debugging.
func (ds *DataSet) String() string {
	switch ds.Len() {
	case 0:
		return "DataSet with 0 elements"
	case 1:
		var sb strings.Builder
		sb.WriteString("DataSet with 1 element:\n")
		sb.WriteString("  " + ds.Elements()[0].String() + "\n")
		return sb.String()
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "DataSet with %d elements:\n", ds.Len())
	for _, elem := range ds.Elements() {
		sb.WriteString("  " + elem.String() + "\n")
	}
	return sb.String()
}

// Copy returns a dataset with the same elements. Elements themselves are
// shared; replace values with SetValue rather than mutating in place if
// both copies must stay independent.
func (ds *DataSet) Copy() *DataSet {
	copied := NewDataSet()
	for t, elem := range ds.elements {
		copied.elements[t] = elem
	}
	return copied
}

// Merge copies other's elements over this dataset's, replacing on
// collision.
func (ds *DataSet) Merge(other *DataSet) error {
	if other == nil {
		return fmt.Errorf("cannot merge nil dataset")
	}
	for t, elem := range other.elements {
		ds.elements[t] = elem
	}
	return nil
}

// FileMetaInformation extracts the group 0x0002 elements into their own
// dataset, nil when none are present.
func (ds *DataSet) FileMetaInformation() *DataSet {
	var meta *DataSet
	for t, elem := range ds.elements {
		if t.Group != tag.MetadataGroup {
			continue
		}
		if meta == nil {
			meta = NewDataSet()
		}
		meta.elements[t] = elem
	}
	return meta
}
