package pdu

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// ErrPDUTooLarge reports a PDU or PDV whose declared length exceeds the
// protocol maximum.
var ErrPDUTooLarge = errors.New("PDU or item length exceeds maximum allowed size")

// Message control header bits (PS3.8 §9.3.5.1): bit 0 command/dataset,
// bit 1 last-fragment.
const (
	MessageControlCommand      uint8 = 0x01
	MessageControlLastFragment uint8 = 0x02
	MessageControlDataset      uint8 = 0x00
	MessageControlDatasetLast  uint8 = 0x02
)

// PresentationDataValue is one PDV item: the presentation context the
// fragment belongs to, the control header, and the fragment bytes.
type PresentationDataValue struct {
	PresentationContextID uint8
	MessageControlHeader  uint8
	Data                  []byte
}

// IsCommand reports whether the fragment carries command-set bytes.
func (pdv *PresentationDataValue) IsCommand() bool {
	return pdv.MessageControlHeader&MessageControlCommand != 0
}

// IsLastFragment reports whether this fragment completes its command or
// dataset.
func (pdv *PresentationDataValue) IsLastFragment() bool {
	return pdv.MessageControlHeader&MessageControlLastFragment != 0
}

// DataTF is a P-DATA-TF PDU: one or more PDV items back to back.
type DataTF struct {
	Items []PresentationDataValue
}

func (p *DataTF) Type() byte { return PDUTypeData }

func (p *DataTF) Encode(w io.Writer) error {
	var body bytes.Buffer
	var hdr [6]byte
	for _, item := range p.Items {
		binary.BigEndian.PutUint32(hdr[0:], uint32(2+len(item.Data)))
		hdr[4] = item.PresentationContextID
		hdr[5] = item.MessageControlHeader
		body.Write(hdr[:])
		body.Write(item.Data)
	}

	if err := writePDUHeader(w, PDUTypeData, uint32(body.Len())); err != nil {
		return err
	}
	_, err := w.Write(body.Bytes())
	return err
}

func (p *DataTF) Decode(r io.Reader) error {
	for {
		var hdr [6]byte
		if _, err := io.ReadFull(r, hdr[:4]); err != nil {
			if err == io.EOF {
				return nil
			}
			return err
		}

		length := binary.BigEndian.Uint32(hdr[:4])
		switch {
		case length > MaxPDULength:
			return fmt.Errorf("PDV item length %d exceeds maximum %d: %w", length, MaxPDULength, ErrPDUTooLarge)
		case length < 2:
			return fmt.Errorf("PDV item length %d shorter than its fixed fields", length)
		}

		if _, err := io.ReadFull(r, hdr[4:]); err != nil {
			return err
		}

		pdv := PresentationDataValue{
			PresentationContextID: hdr[4],
			MessageControlHeader:  hdr[5],
			Data:                  make([]byte, length-2),
		}
		if _, err := io.ReadFull(r, pdv.Data); err != nil {
			return err
		}
		p.Items = append(p.Items, pdv)
	}
}
