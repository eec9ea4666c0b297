package dicom

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/codeninja55/dicom-gateway/dicom/element"
	"github.com/codeninja55/dicom-gateway/dicom/tag"
	"github.com/codeninja55/dicom-gateway/dicom/uid"
	"github.com/codeninja55/dicom-gateway/dicom/value"
	"github.com/codeninja55/dicom-gateway/dicom/vr"
)

// Implementation identity stamped into every written file's meta group.
const (
	implementationClassUID    = "1.2.826.0.1.3680043.10.1451"
	implementationVersionName = "GO-RADX_1_0"
)

// WriteOptions configures Part 10 encoding.
type WriteOptions struct {
	// TransferSyntax for the dataset; nil means Explicit VR Little Endian.
	TransferSyntax *uid.UID

	// Overwrite permits replacing an existing file.
	Overwrite bool

	// CreateDirs makes missing parent directories.
	CreateDirs bool

	// Atomic writes through a temp file + rename.
	Atomic bool

	// ValidateAfterWrite re-parses the written file as a self-check.
	ValidateAfterWrite bool
}

// WriteFile writes ds as a Part 10 file with default options.
func WriteFile(path string, ds *DataSet) error {
	return WriteFileWithOptions(path, ds, WriteOptions{})
}

// WriteFileWithOptions writes ds as a Part 10 file: preamble, "DICM",
// generated File Meta Information, then the dataset under the chosen
// transfer syntax.
func WriteFileWithOptions(path string, ds *DataSet, opts WriteOptions) error {
	if ds == nil {
		return fmt.Errorf("cannot write nil dataset")
	}
	opts = withWriteDefaults(opts)

	if err := requireSOPIdentity(ds); err != nil {
		return err
	}

	if opts.CreateDirs {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return fmt.Errorf("failed to create parent directories: %w", err)
		}
	}
	if !opts.Overwrite {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("file already exists: %s (use Overwrite: true to replace)", path)
		}
	}

	if opts.Atomic {
		return writeAtomic(path, ds, opts)
	}
	return writeDirect(path, ds, opts)
}

// WriteBytes encodes ds as a complete in-memory Part 10 stream, the
// same framing WriteFileWithOptions puts on disk. The WADO path uses
// this to serialize a retrieved instance once for both the HTTP
// response and the cache.
func WriteBytes(ds *DataSet, opts WriteOptions) ([]byte, error) {
	if ds == nil {
		return nil, fmt.Errorf("cannot write nil dataset")
	}
	opts = withWriteDefaults(opts)

	if err := requireSOPIdentity(ds); err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := encodePart10(&buf, ds, opts); err != nil {
		return nil, fmt.Errorf("failed to write DICOM data: %w", err)
	}
	return buf.Bytes(), nil
}

func withWriteDefaults(opts WriteOptions) WriteOptions {
	if opts.TransferSyntax == nil {
		ts := uid.ExplicitVRLittleEndian
		opts.TransferSyntax = &ts
	}
	return opts
}

// requireSOPIdentity insists on non-empty, syntactically valid SOP
// Class and SOP Instance UIDs: without them the meta group cannot be
// generated and no PACS would accept the object.
func requireSOPIdentity(ds *DataSet) error {
	for _, req := range []struct {
		t    tag.Tag
		name string
	}{
		{tag.New(0x0008, 0x0016), "SOPClassUID"},
		{tag.New(0x0008, 0x0018), "SOPInstanceUID"},
	} {
		elem, err := ds.Get(req.t)
		if err != nil {
			return fmt.Errorf("missing required element %s %s: %w", req.name, req.t, err)
		}
		s := uidStringOf(elem)
		if s == "" {
			return fmt.Errorf("%s %s is empty", req.name, req.t)
		}
		if !uid.IsValid(s) {
			return fmt.Errorf("invalid %s format: %s", req.name, s)
		}
	}
	return nil
}

// uidStringOf reads a UID out of an element even when an implicit-VR
// parse left it as UN bytes rather than a UI string.
func uidStringOf(elem *element.Element) string {
	if bv, ok := elem.Value().(*value.BytesValue); ok {
		return strings.TrimSpace(strings.TrimRight(string(bv.Bytes()), "\x00 "))
	}
	return strings.TrimSpace(elem.Value().String())
}

// writeAtomic encodes into a sibling temp file and renames over path.
func writeAtomic(path string, ds *DataSet, opts WriteOptions) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".dicom-tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath) // no-op after a successful rename

	if err := encodePart10(tmp, ds, opts); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write DICOM data: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to sync file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("failed to rename temp file: %w", err)
	}

	if opts.ValidateAfterWrite {
		if _, err := ParseFile(path); err != nil {
			return fmt.Errorf("validation failed after write: %w", err)
		}
	}
	return nil
}

func writeDirect(path string, ds *DataSet, opts WriteOptions) (err error) {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer func() {
		if closeErr := file.Close(); closeErr != nil && err == nil {
			err = fmt.Errorf("failed to close file: %w", closeErr)
		}
	}()

	if err := encodePart10(file, ds, opts); err != nil {
		return fmt.Errorf("failed to write DICOM data: %w", err)
	}
	if opts.ValidateAfterWrite {
		if _, err := ParseFile(path); err != nil {
			return fmt.Errorf("validation failed after write: %w", err)
		}
	}
	return nil
}

// encodePart10 emits the full file structure onto w.
func encodePart10(w io.Writer, ds *DataSet, opts WriteOptions) error {
	if _, err := w.Write(make([]byte, 128)); err != nil {
		return fmt.Errorf("failed to write preamble: %w", err)
	}
	if _, err := w.Write([]byte("DICM")); err != nil {
		return fmt.Errorf("failed to write DICM prefix: %w", err)
	}

	meta, err := buildFileMeta(ds, opts.TransferSyntax)
	if err != nil {
		return fmt.Errorf("failed to generate file meta information: %w", err)
	}

	// The meta group is always Explicit VR Little Endian. It is staged to
	// a buffer first so the leading (0002,0000) group length can carry the
	// byte count the parser needs to find the dataset boundary.
	var metaBuf bytes.Buffer
	for _, elem := range meta.Elements() {
		if err := encodeElement(&metaBuf, elem, true); err != nil {
			return fmt.Errorf("failed to write meta info element %s: %w", elem.Tag(), err)
		}
	}
	groupLength, err := value.NewIntValue(vr.UnsignedLong, []int64{int64(metaBuf.Len())})
	if err != nil {
		return err
	}
	groupLengthElem, err := element.NewElement(tag.New(0x0002, 0x0000), vr.UnsignedLong, groupLength)
	if err != nil {
		return err
	}
	if err := encodeElement(w, groupLengthElem, true); err != nil {
		return fmt.Errorf("failed to write meta group length: %w", err)
	}
	if _, err := w.Write(metaBuf.Bytes()); err != nil {
		return fmt.Errorf("failed to write file meta information: %w", err)
	}

	explicit := opts.TransferSyntax.String() != uid.ImplicitVRLittleEndian.String()
	for _, elem := range ds.Elements() {
		if elem.Tag().IsMetaElement() {
			// Regenerated above; never copied from the source dataset.
			continue
		}
		if err := encodeElement(w, elem, explicit); err != nil {
			return fmt.Errorf("failed to write element %s: %w", elem.Tag(), err)
		}
	}
	return nil
}

// buildFileMeta derives the group 0x0002 elements from the dataset's
// SOP identity and the chosen transfer syntax.
func buildFileMeta(ds *DataSet, transferSyntax *uid.UID) (*DataSet, error) {
	meta := NewDataSet()

	version, err := value.NewBytesValue(vr.OtherByte, []byte{0x00, 0x01})
	if err != nil {
		return nil, err
	}
	versionElem, err := element.NewElement(tag.New(0x0002, 0x0001), vr.OtherByte, version)
	if err != nil {
		return nil, err
	}
	if err := meta.Add(versionElem); err != nil {
		return nil, err
	}

	sopClass, err := ds.Get(tag.New(0x0008, 0x0016))
	if err != nil {
		return nil, fmt.Errorf("missing SOPClassUID: %w", err)
	}
	sopInstance, err := ds.Get(tag.New(0x0008, 0x0018))
	if err != nil {
		return nil, fmt.Errorf("missing SOPInstanceUID: %w", err)
	}

	for _, m := range []struct {
		t  tag.Tag
		v  vr.VR
		s  string
	}{
		{tag.New(0x0002, 0x0002), vr.UniqueIdentifier, uidStringOf(sopClass)},
		{tag.New(0x0002, 0x0003), vr.UniqueIdentifier, uidStringOf(sopInstance)},
		{tag.New(0x0002, 0x0010), vr.UniqueIdentifier, transferSyntax.String()},
		{tag.New(0x0002, 0x0012), vr.UniqueIdentifier, implementationClassUID},
		{tag.New(0x0002, 0x0013), vr.ShortString, implementationVersionName},
	} {
		val, err := value.NewStringValue(m.v, []string{m.s})
		if err != nil {
			return nil, fmt.Errorf("meta element %s: %w", m.t, err)
		}
		elem, err := element.NewElement(m.t, m.v, val)
		if err != nil {
			return nil, fmt.Errorf("meta element %s: %w", m.t, err)
		}
		if err := meta.Add(elem); err != nil {
			return nil, err
		}
	}

	return meta, nil
}

// encodeElement emits one element header + value, little-endian. The
// explicit flag picks between the two header layouts; implicit VR is
// always a 4-byte length with no VR code.
func encodeElement(w io.Writer, elem *element.Element, explicit bool) error {
	v := elem.VR()
	data := elem.Value().Bytes()
	length := uint32(len(data))

	var hdr [12]byte
	binary.LittleEndian.PutUint16(hdr[0:], elem.Tag().Group)
	binary.LittleEndian.PutUint16(hdr[2:], elem.Tag().Element)
	n := 4

	switch {
	case !explicit:
		binary.LittleEndian.PutUint32(hdr[4:], length)
		n = 8
	case v.UsesExplicitLength32():
		copy(hdr[4:6], v.String())
		// hdr[6:8] stays zero: the reserved bytes.
		binary.LittleEndian.PutUint32(hdr[8:], length)
		n = 12
	default:
		if length > 0xFFFF {
			return fmt.Errorf("value length %d exceeds 2-byte limit for VR %s", length, v)
		}
		copy(hdr[4:6], v.String())
		binary.LittleEndian.PutUint16(hdr[6:], uint16(length))
		n = 8
	}

	if _, err := w.Write(hdr[:n]); err != nil {
		return fmt.Errorf("failed to write element header: %w", err)
	}
	if length > 0 {
		if _, err := w.Write(data); err != nil {
			return fmt.Errorf("failed to write value bytes: %w", err)
		}
	}
	return nil
}
