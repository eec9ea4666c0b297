package pdu

import "io"

// ReleaseRQ is an A-RELEASE-RQ. Its body is 4 reserved bytes.
type ReleaseRQ struct{}

// ReleaseRP is an A-RELEASE-RP, same empty shape as the request.
type ReleaseRP struct{}

func (p *ReleaseRQ) Type() byte { return PDUTypeReleaseRQ }
func (p *ReleaseRP) Type() byte { return PDUTypeReleaseRP }

func (p *ReleaseRQ) Encode(w io.Writer) error { return encodeReserved4(w, PDUTypeReleaseRQ) }
func (p *ReleaseRP) Encode(w io.Writer) error { return encodeReserved4(w, PDUTypeReleaseRP) }

func (p *ReleaseRQ) Decode(r io.Reader) error { return discardN(r, 4) }
func (p *ReleaseRP) Decode(r io.Reader) error { return discardN(r, 4) }

// encodeReserved4 emits a PDU whose whole body is 4 zero bytes.
func encodeReserved4(w io.Writer, pduType byte) error {
	if err := writePDUHeader(w, pduType, 4); err != nil {
		return err
	}
	_, err := w.Write(make([]byte, 4))
	return err
}

// discardN consumes n reserved bytes.
func discardN(r io.Reader, n int64) error {
	_, err := io.CopyN(io.Discard, r, n)
	return err
}
