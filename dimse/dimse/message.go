package dimse

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/codeninja55/dicom-gateway/dicom"
	"github.com/codeninja55/dicom-gateway/dicom/vr"
	"github.com/codeninja55/dicom-gateway/dimse/pdu"
)

// implicitLE is the fixed encoding of every DIMSE command set (PS3.7
// §6.3.1) and of the dataset fragments this implementation emits.
var implicitLE = &dicom.TransferSyntax{
	UID:        "1.2.840.10008.1.2",
	ExplicitVR: false,
	ByteOrder:  binary.LittleEndian,
}

// explicitLE decodes dataset fragments from peers whose context
// negotiated Explicit VR Little Endian.
var explicitLE = &dicom.TransferSyntax{
	UID:        "1.2.840.10008.1.2.1",
	ExplicitVR: true,
	ByteOrder:  binary.LittleEndian,
}

// Message is one DIMSE message: the command set, its optional dataset,
// and the presentation context both travel under.
type Message struct {
	CommandSet            *CommandSet
	DataSet               *dicom.DataSet
	PresentationContextID uint8
}

// Encode serializes the message into P-DATA-TF PDUs sized to the
// negotiated max PDU length: command fragments first (flagged as
// command), then dataset fragments, the final fragment of each part
// carrying the last-fragment bit.
func (m *Message) Encode(maxPDULength uint32) ([]*pdu.DataTF, error) {
	cmdDS, err := m.CommandSet.ToDataSet()
	if err != nil {
		return nil, fmt.Errorf("encode command set: %w", err)
	}
	var cmdBuf bytes.Buffer
	if err := encodeImplicitLE(cmdDS, &cmdBuf); err != nil {
		return nil, fmt.Errorf("serialize command: %w", err)
	}

	pdus := fragment(cmdBuf.Bytes(), m.PresentationContextID, pdu.MessageControlCommand, maxPDULength)

	if m.DataSet != nil {
		var dsBuf bytes.Buffer
		if err := encodeImplicitLE(m.DataSet, &dsBuf); err != nil {
			return nil, fmt.Errorf("serialize dataset: %w", err)
		}
		pdus = append(pdus, fragment(dsBuf.Bytes(), m.PresentationContextID, pdu.MessageControlDataset, maxPDULength)...)
	}

	return pdus, nil
}

// fragment splits data into single-PDV P-DATA-TF PDUs. kind is the
// command/dataset bit; the final chunk additionally carries the
// last-fragment bit. Zero-length data still yields one empty PDV so a
// present-but-empty dataset is represented on the wire.
func fragment(data []byte, pcID uint8, kind uint8, maxPDULength uint32) []*pdu.DataTF {
	// Room per PDV: the negotiated max covers the PDU body; subtract the
	// 6-byte PDU header and 6 bytes of PDV framing.
	chunkMax := int(maxPDULength) - 12

	var pdus []*pdu.DataTF
	for first := true; first || len(data) > 0; first = false {
		chunk := data
		if len(chunk) > chunkMax {
			chunk = chunk[:chunkMax]
		}
		data = data[len(chunk):]

		control := kind
		if len(data) == 0 {
			control |= pdu.MessageControlLastFragment
		}

		pdus = append(pdus, &pdu.DataTF{Items: []pdu.PresentationDataValue{{
			PresentationContextID: pcID,
			MessageControlHeader:  control,
			Data:                  chunk,
		}}})
	}
	return pdus
}

// Decode reassembles a complete message from its P-DATA-TF PDUs.
func Decode(pdus []*pdu.DataTF) (*Message, error) {
	var commandData, datasetData []byte
	var pcID uint8
	sawDataset := false

	for _, dataPDU := range pdus {
		for _, item := range dataPDU.Items {
			if pcID == 0 {
				pcID = item.PresentationContextID
			}
			if item.IsCommand() {
				commandData = append(commandData, item.Data...)
			} else {
				sawDataset = true
				datasetData = append(datasetData, item.Data...)
			}
		}
	}

	if len(commandData) == 0 {
		return nil, fmt.Errorf("no command data found in PDUs")
	}
	cmdDS, err := decodeImplicitLE(bytes.NewReader(commandData))
	if err != nil {
		return nil, fmt.Errorf("decode command dataset: %w", err)
	}
	cmdSet, err := FromDataSet(cmdDS)
	if err != nil {
		return nil, fmt.Errorf("parse command set: %w", err)
	}

	msg := &Message{CommandSet: cmdSet, PresentationContextID: pcID}
	if sawDataset {
		ds, err := decodeDataSet(datasetData)
		if err != nil {
			return nil, fmt.Errorf("decode dataset: %w", err)
		}
		msg.DataSet = ds
	}
	return msg, nil
}

// decodeDataSet decodes dataset bytes under whichever little-endian VR
// encoding the peer's accepted context used. The reassembly path
// doesn't carry the negotiated syntax, so the encoding is sniffed: in
// explicit VR, bytes 4-5 of the first element are a printable two-char
// VR code, which never forms the low half of a sane implicit length.
func decodeDataSet(data []byte) (*dicom.DataSet, error) {
	ts := implicitLE
	if len(data) >= 6 && vr.IsValid(string(data[4:6])) {
		ts = explicitLE
	}
	parser := dicom.NewElementParser(dicom.NewReader(bytes.NewReader(data), binary.LittleEndian), ts)
	ds := dicom.NewDataSet()
	for {
		elem, err := parser.ReadElement()
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				return ds, nil
			}
			return nil, fmt.Errorf("failed to read element: %w", err)
		}
		if err := ds.Add(elem); err != nil {
			return nil, fmt.Errorf("failed to add element to dataset: %w", err)
		}
	}
}

// encodeImplicitLE writes ds in Implicit VR Little Endian: tag, 4-byte
// length, value.
func encodeImplicitLE(ds *dicom.DataSet, w io.Writer) error {
	var hdr [8]byte
	for _, elem := range ds.Elements() {
		data := elem.Value().Bytes()
		binary.LittleEndian.PutUint16(hdr[0:], elem.Tag().Group)
		binary.LittleEndian.PutUint16(hdr[2:], elem.Tag().Element)
		binary.LittleEndian.PutUint32(hdr[4:], uint32(len(data)))
		if _, err := w.Write(hdr[:]); err != nil {
			return fmt.Errorf("failed to write element header: %w", err)
		}
		if len(data) > 0 {
			if _, err := w.Write(data); err != nil {
				return fmt.Errorf("failed to write value bytes: %w", err)
			}
		}
	}
	return nil
}

// decodeImplicitLE reads elements until the stream runs dry.
func decodeImplicitLE(r io.Reader) (*dicom.DataSet, error) {
	parser := dicom.NewElementParser(dicom.NewReader(r, binary.LittleEndian), implicitLE)
	ds := dicom.NewDataSet()
	for {
		elem, err := parser.ReadElement()
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				return ds, nil
			}
			return nil, fmt.Errorf("failed to read element: %w", err)
		}
		if err := ds.Add(elem); err != nil {
			return nil, fmt.Errorf("failed to add element to dataset: %w", err)
		}
	}
}

// MessageReassembler accumulates P-DATA-TF PDUs per presentation
// context until a message is complete.
type MessageReassembler struct {
	fragments map[uint8][]*pdu.DataTF
}

// NewMessageReassembler returns an empty reassembler.
func NewMessageReassembler() *MessageReassembler {
	return &MessageReassembler{fragments: map[uint8][]*pdu.DataTF{}}
}

// AddPDU folds one PDU in. It returns the reassembled message once
// complete, else nil. A command's last fragment only completes the
// message when the command set itself declares no dataset follows;
// peers that set the command's last-fragment bit ahead of dataset
// fragments (as PS3.8 prescribes) are handled by waiting for the
// dataset's own last fragment.
func (r *MessageReassembler) AddPDU(dataPDU *pdu.DataTF) (*Message, error) {
	if len(dataPDU.Items) == 0 {
		return nil, nil
	}

	pcID := dataPDU.Items[0].PresentationContextID
	r.fragments[pcID] = append(r.fragments[pcID], dataPDU)

	last := dataPDU.Items[len(dataPDU.Items)-1]
	if !last.IsLastFragment() {
		return nil, nil
	}

	if last.IsCommand() {
		msg, err := Decode(r.fragments[pcID])
		if err != nil {
			return nil, err
		}
		if msg.CommandSet.CommandDataSetType != DataSetNotPresent {
			// Dataset fragments still to come on this context.
			return nil, nil
		}
		delete(r.fragments, pcID)
		return msg, nil
	}

	msg, err := Decode(r.fragments[pcID])
	if err != nil {
		return nil, err
	}
	delete(r.fragments, pcID)
	return msg, nil
}
