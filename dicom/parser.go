package dicom

import (
	"compress/flate"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/codeninja55/dicom-gateway/dicom/element"
	"github.com/codeninja55/dicom-gateway/dicom/tag"
	"github.com/codeninja55/dicom-gateway/dicom/value"
)

// TransferSyntax describes how a dataset is encoded on the wire or on
// disk: VR explicitness, byte order, and whether the stream is deflated
// or carries compressed pixel data.
type TransferSyntax struct {
	UID        string
	ExplicitVR bool
	ByteOrder  binary.ByteOrder
	Compressed bool
	Deflated   bool
}

// knownTransferSyntaxes maps the UIDs this parser can decode to their
// framing. Compressed syntaxes decode structurally; their pixel data is
// carried through as the raw fragment stream, never transcoded.
var knownTransferSyntaxes = map[string]TransferSyntax{
	"1.2.840.10008.1.2":        {ExplicitVR: false, ByteOrder: binary.LittleEndian},                   // Implicit VR LE
	"1.2.840.10008.1.2.1":      {ExplicitVR: true, ByteOrder: binary.LittleEndian},                    // Explicit VR LE
	"1.2.840.10008.1.2.2":      {ExplicitVR: true, ByteOrder: binary.BigEndian},                       // Explicit VR BE
	"1.2.840.10008.1.2.1.99":   {ExplicitVR: true, ByteOrder: binary.LittleEndian, Deflated: true},    // Deflated Explicit VR LE
	"1.2.840.10008.1.2.5":      {ExplicitVR: true, ByteOrder: binary.LittleEndian, Compressed: true}, // RLE Lossless
	"1.2.840.10008.1.2.4.50":   {ExplicitVR: true, ByteOrder: binary.LittleEndian, Compressed: true}, // JPEG Baseline
	"1.2.840.10008.1.2.4.51":   {ExplicitVR: true, ByteOrder: binary.LittleEndian, Compressed: true}, // JPEG Extended
	"1.2.840.10008.1.2.4.57":   {ExplicitVR: true, ByteOrder: binary.LittleEndian, Compressed: true}, // JPEG Lossless
	"1.2.840.10008.1.2.4.70":   {ExplicitVR: true, ByteOrder: binary.LittleEndian, Compressed: true}, // JPEG Lossless SV1
	"1.2.840.10008.1.2.4.80":   {ExplicitVR: true, ByteOrder: binary.LittleEndian, Compressed: true}, // JPEG-LS Lossless
	"1.2.840.10008.1.2.4.81":   {ExplicitVR: true, ByteOrder: binary.LittleEndian, Compressed: true}, // JPEG-LS Near-Lossless
	"1.2.840.10008.1.2.4.90":   {ExplicitVR: true, ByteOrder: binary.LittleEndian, Compressed: true}, // JPEG 2000 Lossless
	"1.2.840.10008.1.2.4.91":   {ExplicitVR: true, ByteOrder: binary.LittleEndian, Compressed: true}, // JPEG 2000
	"1.2.840.10008.1.2.4.201":  {ExplicitVR: true, ByteOrder: binary.LittleEndian, Compressed: true}, // HTJ2K Lossless
	"1.2.840.10008.1.2.4.203":  {ExplicitVR: true, ByteOrder: binary.LittleEndian, Compressed: true}, // HTJ2K
}

// LookupTransferSyntax resolves a transfer syntax UID to its framing.
func LookupTransferSyntax(uid string) (*TransferSyntax, error) {
	ts, ok := knownTransferSyntaxes[uid]
	if !ok {
		return nil, fmt.Errorf("%w: Transfer Syntax UID %q not supported", ErrInvalidTransferSyntax, uid)
	}
	ts.UID = uid
	return &ts, nil
}

// fileMetaSyntax is the fixed encoding of group 0x0002: Explicit VR
// Little Endian, regardless of the dataset's transfer syntax.
var fileMetaSyntax = &TransferSyntax{ExplicitVR: true, ByteOrder: binary.LittleEndian}

// Parser decodes one Part 10 stream: preamble, File Meta Information,
// then the dataset under the transfer syntax the meta group names.
type Parser struct {
	reader *Reader
	raw    io.Reader // undecorated stream, for interposing an inflater
	ts     *TransferSyntax

	// lookahead holds a dataset element consumed while scanning for the
	// end of the meta group (when no group length was present).
	lookahead *element.Element
}

// ParseFile parses a Part 10 file from disk.
func ParseFile(path string) (*DataSet, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()
	return ParseReader(file)
}

// ParseReader parses a complete Part 10 stream: 128-byte preamble,
// "DICM", File Meta Information, dataset. The meta elements are merged
// into the returned dataset.
func ParseReader(r io.Reader) (*DataSet, error) {
	p := &Parser{reader: NewReader(r, binary.LittleEndian), raw: r}

	if err := p.readPreamble(); err != nil {
		return nil, fmt.Errorf("invalid DICOM file: %w", err)
	}

	meta, err := p.readFileMetaInformation()
	if err != nil {
		return nil, fmt.Errorf("failed to read File Meta Information: %w", err)
	}

	tsUID := meta.GetString(tag.New(0x0002, 0x0010))
	if tsUID == "" {
		return nil, fmt.Errorf("%w: Transfer Syntax UID not found in File Meta Information", ErrMissingTransferSyntax)
	}
	p.ts, err = LookupTransferSyntax(tsUID)
	if err != nil {
		return nil, fmt.Errorf("failed to detect transfer syntax: %w", err)
	}

	p.reader.SetByteOrder(p.ts.ByteOrder)
	if p.ts.Deflated {
		// The dataset that follows the (uncompressed) meta group is a raw
		// DEFLATE stream (RFC 1951, no zlib header).
		inflater := flate.NewReader(p.raw)
		defer inflater.Close()
		p.reader = NewReader(inflater, p.ts.ByteOrder)
	}

	ds, err := p.readDataset()
	if err != nil {
		return nil, fmt.Errorf("failed to read dataset: %w", err)
	}

	if err := ds.Merge(meta); err != nil {
		return nil, err
	}
	return ds, nil
}

// readPreamble consumes the 128 ignored bytes and the "DICM" marker.
func (p *Parser) readPreamble() error {
	if _, err := p.reader.ReadBytes(128); err != nil {
		return fmt.Errorf("%w: failed to read preamble: %v", ErrInvalidPreamble, err)
	}
	marker, err := p.reader.ReadString(4)
	if err != nil {
		return fmt.Errorf("%w: file truncated at DICM prefix", ErrInvalidPreamble)
	}
	if marker != "DICM" {
		return fmt.Errorf("%w: expected 'DICM', got %q", ErrInvalidPreamble, marker)
	}
	return nil
}

// readFileMetaInformation decodes group 0x0002. When the leading
// (0002,0000) group length is present it bounds the read exactly;
// otherwise elements are consumed until the first non-0002 tag, which is
// buffered for the dataset pass.
func (p *Parser) readFileMetaInformation() (*DataSet, error) {
	ep := NewElementParser(p.reader, fileMetaSyntax)
	meta := NewDataSet()

	first, err := ep.ReadElement()
	if err != nil {
		return nil, fmt.Errorf("failed to read first File Meta element: %w", err)
	}
	_ = meta.Add(first)

	if length, ok := groupLengthOf(first); ok && length > 0 {
		start := p.reader.Position()
		for p.reader.Position()-start < int64(length) {
			elem, err := ep.ReadElement()
			if err != nil {
				if err == io.EOF {
					break
				}
				return nil, fmt.Errorf("failed to read File Meta element: %w", err)
			}
			_ = meta.Add(elem)
		}
		return meta, nil
	}

	for {
		elem, err := ep.ReadElement()
		if err != nil {
			if err == io.EOF {
				return nil, fmt.Errorf("unexpected EOF while reading File Meta Information")
			}
			return nil, fmt.Errorf("failed to read File Meta element: %w", err)
		}
		if !elem.Tag().IsMetaElement() {
			p.lookahead = elem
			return meta, nil
		}
		_ = meta.Add(elem)
	}
}

// groupLengthOf extracts the byte count from a (0002,0000) element.
func groupLengthOf(elem *element.Element) (uint32, bool) {
	if elem.Tag() != tag.New(0x0002, 0x0000) {
		return 0, false
	}
	iv, ok := elem.Value().(*value.IntValue)
	if !ok || len(iv.Ints()) == 0 {
		return 0, false
	}
	return uint32(iv.Ints()[0]), true
}

// readDataset decodes elements until EOF under the detected syntax. An
// EOF surfacing mid-element (truncated file) ends the read with what was
// decoded so far rather than failing the whole parse.
func (p *Parser) readDataset() (*DataSet, error) {
	ep := NewElementParser(p.reader, p.ts)
	ds := NewDataSet()

	if p.lookahead != nil {
		_ = ds.Add(p.lookahead)
		p.lookahead = nil
	}

	for {
		elem, err := ep.ReadElement()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return ds, nil
			}
			return nil, fmt.Errorf("failed to read dataset element: %w", err)
		}
		_ = ds.Add(elem)
	}
}
