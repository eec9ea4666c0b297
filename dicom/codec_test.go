package dicom_test

import (
	"bytes"
	"encoding/binary"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codeninja55/dicom-gateway/dicom"
	"github.com/codeninja55/dicom-gateway/dicom/tag"
	"github.com/codeninja55/dicom-gateway/dicom/uid"
	"github.com/codeninja55/dicom-gateway/dicom/vr"
)

func sampleDataset(t *testing.T) *dicom.DataSet {
	t.Helper()
	ds := dicom.NewDataSet()
	require.NoError(t, ds.Add(strElem(t, tag.New(0x0008, 0x0016), vr.UniqueIdentifier, "1.2.840.10008.5.1.4.1.1.2")))
	require.NoError(t, ds.SetSOPInstanceUID("1.2.3.4.5"))
	require.NoError(t, ds.SetStudyInstanceUID("1.2.3"))
	require.NoError(t, ds.SetSeriesInstanceUID("1.2.3.4"))
	require.NoError(t, ds.SetPatientName("Doe^John"))
	require.NoError(t, ds.SetPatientID("P001"))
	return ds
}

func TestReader(t *testing.T) {
	r := dicom.NewReader(bytes.NewReader([]byte{0x01, 0x02, 0x03, 0x04, 0x05, 0x06, 'A', 'B'}), binary.LittleEndian)

	u16, err := r.ReadUint16()
	require.NoError(t, err)
	assert.EqualValues(t, 0x0201, u16)

	u32, err := r.ReadUint32()
	require.NoError(t, err)
	assert.EqualValues(t, 0x06050403, u32)

	s, err := r.ReadString(2)
	require.NoError(t, err)
	assert.Equal(t, "AB", s)
	assert.EqualValues(t, 8, r.Position())

	_, err = r.ReadUint16()
	assert.Equal(t, io.EOF, err, "clean EOF at a boundary")
}

func TestReaderTornRead(t *testing.T) {
	r := dicom.NewReader(bytes.NewReader([]byte{0x01}), binary.LittleEndian)
	_, err := r.ReadUint32()
	assert.Equal(t, io.ErrUnexpectedEOF, err)
}

func TestReaderByteOrderSwitch(t *testing.T) {
	r := dicom.NewReader(bytes.NewReader([]byte{0x01, 0x02, 0x01, 0x02}), binary.LittleEndian)

	le, err := r.ReadUint16()
	require.NoError(t, err)
	assert.EqualValues(t, 0x0201, le)

	r.SetByteOrder(binary.BigEndian)
	be, err := r.ReadUint16()
	require.NoError(t, err)
	assert.EqualValues(t, 0x0102, be)
}

// TestWriteBytesParseRoundTrip drives the full codec: encode to Part 10
// bytes, decode back, and compare the surviving elements.
func TestWriteBytesParseRoundTrip(t *testing.T) {
	for _, ts := range []uid.UID{uid.ExplicitVRLittleEndian, uid.ImplicitVRLittleEndian} {
		t.Run(ts.String(), func(t *testing.T) {
			ds := sampleDataset(t)

			data, err := dicom.WriteBytes(ds, dicom.WriteOptions{TransferSyntax: &ts})
			require.NoError(t, err)

			// Part 10 framing: 128-byte preamble then DICM.
			require.Greater(t, len(data), 132)
			assert.Equal(t, "DICM", string(data[128:132]))

			parsed, err := dicom.ParseReader(bytes.NewReader(data))
			require.NoError(t, err)

			assert.Equal(t, "1.2.3", parsed.GetString(tag.StudyInstanceUID))
			assert.Equal(t, "1.2.3.4", parsed.GetString(tag.SeriesInstanceUID))
			assert.Equal(t, "1.2.3.4.5", parsed.GetString(tag.SOPInstanceUID))
			assert.Equal(t, "Doe^John", parsed.GetString(tag.PatientName))
			assert.Equal(t, "P001", parsed.GetString(tag.PatientID))
			assert.Equal(t, ts.String(), parsed.GetString(tag.TransferSyntaxUID))
		})
	}
}

func TestWriteBytesRequiresSOPIdentity(t *testing.T) {
	ds := dicom.NewDataSet()
	require.NoError(t, ds.SetPatientName("Doe^John"))

	_, err := dicom.WriteBytes(ds, dicom.WriteOptions{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SOPClassUID")
}

func TestWriteFileAndParseFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sub", "instance.dcm")

	ds := sampleDataset(t)
	require.NoError(t, dicom.WriteFileWithOptions(path, ds, dicom.WriteOptions{
		CreateDirs:         true,
		Atomic:             true,
		ValidateAfterWrite: true,
	}))

	parsed, err := dicom.ParseFile(path)
	require.NoError(t, err)
	assert.Equal(t, "1.2.3.4.5", parsed.GetString(tag.SOPInstanceUID))

	// A second write without Overwrite must refuse.
	err = dicom.WriteFileWithOptions(path, ds, dicom.WriteOptions{CreateDirs: true})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already exists")

	// No stray temp files from the atomic path.
	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestParseReaderRejectsBadPreamble(t *testing.T) {
	_, err := dicom.ParseReader(bytes.NewReader([]byte("definitely not dicom")))
	assert.ErrorIs(t, err, dicom.ErrInvalidPreamble)

	junk := append(make([]byte, 128), []byte("JUNK")...)
	_, err = dicom.ParseReader(bytes.NewReader(junk))
	assert.ErrorIs(t, err, dicom.ErrInvalidPreamble)
}

func TestLookupTransferSyntax(t *testing.T) {
	ts, err := dicom.LookupTransferSyntax("1.2.840.10008.1.2")
	require.NoError(t, err)
	assert.False(t, ts.ExplicitVR)
	assert.Equal(t, binary.ByteOrder(binary.LittleEndian), ts.ByteOrder)

	ts, err = dicom.LookupTransferSyntax("1.2.840.10008.1.2.2")
	require.NoError(t, err)
	assert.True(t, ts.ExplicitVR)
	assert.Equal(t, binary.ByteOrder(binary.BigEndian), ts.ByteOrder)

	ts, err = dicom.LookupTransferSyntax("1.2.840.10008.1.2.1.99")
	require.NoError(t, err)
	assert.True(t, ts.Deflated)

	_, err = dicom.LookupTransferSyntax("9.9.9")
	assert.ErrorIs(t, err, dicom.ErrInvalidTransferSyntax)
}
