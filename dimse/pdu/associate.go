package pdu

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
)

// Presentation context results carried in A-ASSOCIATE-AC.
const (
	PresentationContextAcceptance                   uint8 = 0
	PresentationContextUserRejection                uint8 = 1
	PresentationContextProviderRejection            uint8 = 2
	PresentationContextAbstractSyntaxNotSupported   uint8 = 3
	PresentationContextTransferSyntaxesNotSupported uint8 = 4
)

// A-ASSOCIATE-RJ result values.
const (
	AssociateRJResultPermanent uint8 = 1
	AssociateRJResultTransient uint8 = 2
)

// A-ASSOCIATE-RJ source values.
const (
	AssociateRJSourceServiceUser                 uint8 = 1
	AssociateRJSourceServiceProvider             uint8 = 2
	AssociateRJSourceServiceProviderACSE         uint8 = 2
	AssociateRJSourceServiceProviderPresentation uint8 = 3
)

// A-ASSOCIATE-RJ service-user reasons (PS3.8 table 9-21).
const (
	AssociateRJReasonNoReasonGiven                  uint8 = 1
	AssociateRJReasonApplicationContextNotSupported uint8 = 2
	AssociateRJReasonCallingAENotRecognized         uint8 = 3
	AssociateRJReasonCalledAENotRecognized          uint8 = 7
)

// PresentationContextRQ is one proposed context: abstract syntax plus
// candidate transfer syntaxes, keyed by an odd context id.
type PresentationContextRQ struct {
	ID               uint8
	AbstractSyntax   string
	TransferSyntaxes []string
}

// PresentationContextAC is the acceptor's answer for one proposed
// context id: a result code and, when accepted, the chosen syntax.
type PresentationContextAC struct {
	ID             uint8
	Result         uint8
	TransferSyntax string
}

// UserInformation carries the negotiated max PDU length and the
// implementation identity sub-items.
type UserInformation struct {
	MaxPDULength           uint32
	ImplementationClassUID string
	ImplementationVersion  string
}

// AssociateRQ is an A-ASSOCIATE-RQ.
type AssociateRQ struct {
	ProtocolVersion      uint16
	CalledAETitle        [16]byte
	CallingAETitle       [16]byte
	ApplicationContext   string
	PresentationContexts []PresentationContextRQ
	UserInfo             UserInformation
}

// AssociateAC is an A-ASSOCIATE-AC; same fixed layout as the request,
// different presentation-context item shape.
type AssociateAC struct {
	ProtocolVersion      uint16
	CalledAETitle        [16]byte
	CallingAETitle       [16]byte
	ApplicationContext   string
	PresentationContexts []PresentationContextAC
	UserInfo             UserInformation
}

// AssociateRJ is an A-ASSOCIATE-RJ.
type AssociateRJ struct {
	Result uint8
	Source uint8
	Reason uint8
}

func (p *AssociateRQ) Type() byte { return PDUTypeAssociateRQ }
func (p *AssociateAC) Type() byte { return PDUTypeAssociateAC }
func (p *AssociateRJ) Type() byte { return PDUTypeAssociateRJ }

// item is one TLV sub-item: type byte, reserved byte, 16-bit length,
// payload.
func appendItem(buf *bytes.Buffer, itemType byte, data []byte) {
	var hdr [4]byte
	hdr[0] = itemType
	binary.BigEndian.PutUint16(hdr[2:], uint16(len(data)))
	buf.Write(hdr[:])
	buf.Write(data)
}

// forEachItem walks TLV items until the reader runs dry.
func forEachItem(r io.Reader, visit func(itemType byte, data []byte) error) error {
	for {
		var hdr [4]byte
		if _, err := io.ReadFull(r, hdr[:]); err != nil {
			if err == io.EOF {
				return nil
			}
			return err
		}
		data := make([]byte, binary.BigEndian.Uint16(hdr[2:]))
		if _, err := io.ReadFull(r, data); err != nil {
			return err
		}
		if err := visit(hdr[0], data); err != nil {
			return err
		}
	}
}

// encodeAssociateFixed writes the 68-byte fixed part shared by RQ and
// AC: version, reserved, the two AE titles, 32 reserved bytes.
func encodeAssociateFixed(buf *bytes.Buffer, version uint16, called, calling [16]byte) {
	var v [4]byte
	binary.BigEndian.PutUint16(v[:2], version)
	buf.Write(v[:])
	buf.Write(called[:])
	buf.Write(calling[:])
	buf.Write(make([]byte, 32))
}

// decodeAssociateFixed reads the shared fixed part.
func decodeAssociateFixed(r io.Reader, version *uint16, called, calling *[16]byte) error {
	var v [4]byte
	if _, err := io.ReadFull(r, v[:]); err != nil {
		return err
	}
	*version = binary.BigEndian.Uint16(v[:2])
	if _, err := io.ReadFull(r, called[:]); err != nil {
		return err
	}
	if _, err := io.ReadFull(r, calling[:]); err != nil {
		return err
	}
	_, err := io.CopyN(io.Discard, r, 32)
	return err
}

func (p *AssociateRQ) Encode(w io.Writer) error {
	var buf bytes.Buffer
	encodeAssociateFixed(&buf, p.ProtocolVersion, p.CalledAETitle, p.CallingAETitle)
	appendItem(&buf, ItemTypeApplicationContext, []byte(p.ApplicationContext))
	for _, pc := range p.PresentationContexts {
		appendPresentationContextRQ(&buf, pc)
	}
	appendUserInformation(&buf, p.UserInfo)

	if err := writePDUHeader(w, PDUTypeAssociateRQ, uint32(buf.Len())); err != nil {
		return err
	}
	_, err := w.Write(buf.Bytes())
	return err
}

func (p *AssociateRQ) Decode(r io.Reader) error {
	if err := decodeAssociateFixed(r, &p.ProtocolVersion, &p.CalledAETitle, &p.CallingAETitle); err != nil {
		return err
	}
	return forEachItem(r, func(itemType byte, data []byte) error {
		switch itemType {
		case ItemTypeApplicationContext:
			p.ApplicationContext = string(data)
		case ItemTypePresentationContextRQ:
			pc, err := decodePresentationContextRQ(data)
			if err != nil {
				return err
			}
			p.PresentationContexts = append(p.PresentationContexts, pc)
		case ItemTypeUserInformation:
			ui, err := decodeUserInformation(data)
			if err != nil {
				return err
			}
			p.UserInfo = ui
		}
		return nil
	})
}

func (p *AssociateAC) Encode(w io.Writer) error {
	var buf bytes.Buffer
	encodeAssociateFixed(&buf, p.ProtocolVersion, p.CalledAETitle, p.CallingAETitle)
	appendItem(&buf, ItemTypeApplicationContext, []byte(p.ApplicationContext))
	for _, pc := range p.PresentationContexts {
		appendPresentationContextAC(&buf, pc)
	}
	appendUserInformation(&buf, p.UserInfo)

	if err := writePDUHeader(w, PDUTypeAssociateAC, uint32(buf.Len())); err != nil {
		return err
	}
	_, err := w.Write(buf.Bytes())
	return err
}

func (p *AssociateAC) Decode(r io.Reader) error {
	if err := decodeAssociateFixed(r, &p.ProtocolVersion, &p.CalledAETitle, &p.CallingAETitle); err != nil {
		return err
	}
	return forEachItem(r, func(itemType byte, data []byte) error {
		switch itemType {
		case ItemTypeApplicationContext:
			p.ApplicationContext = string(data)
		case ItemTypePresentationContextAC:
			pc, err := decodePresentationContextAC(data)
			if err != nil {
				return err
			}
			p.PresentationContexts = append(p.PresentationContexts, pc)
		case ItemTypeUserInformation:
			ui, err := decodeUserInformation(data)
			if err != nil {
				return err
			}
			p.UserInfo = ui
		}
		return nil
	})
}

func (p *AssociateRJ) Encode(w io.Writer) error {
	if err := writePDUHeader(w, PDUTypeAssociateRJ, 4); err != nil {
		return err
	}
	body := [4]byte{0, p.Result, p.Source, p.Reason}
	_, err := w.Write(body[:])
	return err
}

func (p *AssociateRJ) Decode(r io.Reader) error {
	var body [4]byte
	if _, err := io.ReadFull(r, body[:]); err != nil {
		return fmt.Errorf("read associate-rj body: %w", err)
	}
	p.Result, p.Source, p.Reason = body[1], body[2], body[3]
	return nil
}

func appendPresentationContextRQ(buf *bytes.Buffer, pc PresentationContextRQ) {
	var inner bytes.Buffer
	inner.Write([]byte{pc.ID, 0, 0, 0})
	appendItem(&inner, ItemTypeAbstractSyntax, []byte(pc.AbstractSyntax))
	for _, ts := range pc.TransferSyntaxes {
		appendItem(&inner, ItemTypeTransferSyntax, []byte(ts))
	}
	appendItem(buf, ItemTypePresentationContextRQ, inner.Bytes())
}

func decodePresentationContextRQ(data []byte) (PresentationContextRQ, error) {
	var pc PresentationContextRQ
	if len(data) < 4 {
		return pc, fmt.Errorf("presentation context item too short: %d bytes", len(data))
	}
	pc.ID = data[0]
	err := forEachItem(bytes.NewReader(data[4:]), func(itemType byte, itemData []byte) error {
		switch itemType {
		case ItemTypeAbstractSyntax:
			pc.AbstractSyntax = string(itemData)
		case ItemTypeTransferSyntax:
			pc.TransferSyntaxes = append(pc.TransferSyntaxes, string(itemData))
		}
		return nil
	})
	return pc, err
}

func appendPresentationContextAC(buf *bytes.Buffer, pc PresentationContextAC) {
	var inner bytes.Buffer
	inner.Write([]byte{pc.ID, 0, pc.Result, 0})
	if pc.Result == PresentationContextAcceptance {
		appendItem(&inner, ItemTypeTransferSyntax, []byte(pc.TransferSyntax))
	}
	appendItem(buf, ItemTypePresentationContextAC, inner.Bytes())
}

func decodePresentationContextAC(data []byte) (PresentationContextAC, error) {
	var pc PresentationContextAC
	if len(data) < 4 {
		return pc, fmt.Errorf("presentation context item too short: %d bytes", len(data))
	}
	pc.ID, pc.Result = data[0], data[2]
	err := forEachItem(bytes.NewReader(data[4:]), func(itemType byte, itemData []byte) error {
		if itemType == ItemTypeTransferSyntax {
			pc.TransferSyntax = string(itemData)
		}
		return nil
	})
	return pc, err
}

func appendUserInformation(buf *bytes.Buffer, ui UserInformation) {
	var inner bytes.Buffer
	if ui.MaxPDULength > 0 {
		var v [4]byte
		binary.BigEndian.PutUint32(v[:], ui.MaxPDULength)
		appendItem(&inner, ItemTypeMaxLength, v[:])
	}
	if ui.ImplementationClassUID != "" {
		appendItem(&inner, ItemTypeImplementationClassUID, []byte(ui.ImplementationClassUID))
	}
	if ui.ImplementationVersion != "" {
		appendItem(&inner, ItemTypeImplementationVersion, []byte(ui.ImplementationVersion))
	}
	appendItem(buf, ItemTypeUserInformation, inner.Bytes())
}

func decodeUserInformation(data []byte) (UserInformation, error) {
	var ui UserInformation
	err := forEachItem(bytes.NewReader(data), func(itemType byte, itemData []byte) error {
		switch itemType {
		case ItemTypeMaxLength:
			if len(itemData) != 4 {
				return fmt.Errorf("max-length sub-item has %d bytes, want 4", len(itemData))
			}
			ui.MaxPDULength = binary.BigEndian.Uint32(itemData)
		case ItemTypeImplementationClassUID:
			ui.ImplementationClassUID = string(itemData)
		case ItemTypeImplementationVersion:
			ui.ImplementationVersion = string(itemData)
		}
		return nil
	})
	return ui, err
}
