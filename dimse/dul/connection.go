package dul

import (
	"context"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"github.com/codeninja55/dicom-gateway/dimse/pdu"
)

// defaultIODeadline bounds any single PDU read or write.
const defaultIODeadline = 30 * time.Second

// Connection pairs a TCP connection with PDU framing and the upper-
// layer state machine. One goroutine services a connection at a time;
// the mutex keeps deadline handling and framing coherent if that ever
// isn't true.
type Connection struct {
	conn          net.Conn
	maxPDULength  uint32
	sm            *StateMachine
	mu            sync.Mutex
	readDeadline  time.Duration
	writeDeadline time.Duration
}

// NewConnection wraps an accepted or dialed net.Conn.
func NewConnection(conn net.Conn) *Connection {
	return &Connection{
		conn:          conn,
		maxPDULength:  pdu.DefaultMaxPDULength,
		sm:            NewStateMachine(),
		readDeadline:  defaultIODeadline,
		writeDeadline: defaultIODeadline,
	}
}

// Dial opens a transport connection and fires the connect-confirmation
// event, leaving the connection ready for RequestAssociation.
func Dial(ctx context.Context, network, address string) (*Connection, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, network, address)
	if err != nil {
		return nil, fmt.Errorf("dial: %w", err)
	}
	c := NewConnection(conn)
	_, _ = c.sm.ProcessEvent(AE1)
	return c, nil
}

// SetMaxPDULength records the peer's negotiated max, clamped to the
// protocol ceiling.
func (c *Connection) SetMaxPDULength(length uint32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.maxPDULength = min(length, pdu.MaxPDULength)
}

// GetMaxPDULength returns the negotiated maximum PDU length.
func (c *Connection) GetMaxPDULength() uint32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.maxPDULength
}

// SendPDU writes one PDU under the write deadline.
func (c *Connection) SendPDU(ctx context.Context, p pdu.PDU) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.writeDeadline > 0 {
		if err := c.conn.SetWriteDeadline(time.Now().Add(c.writeDeadline)); err != nil {
			return fmt.Errorf("set write deadline: %w", err)
		}
		defer c.conn.SetWriteDeadline(time.Time{})
	}

	if err := p.Encode(c.conn); err != nil {
		return fmt.Errorf("encode PDU: %w", err)
	}
	return nil
}

// ReadPDU reads one PDU under the read deadline, feeding the
// transport-closed event into the state machine on EOF.
func (c *Connection) ReadPDU(ctx context.Context) (pdu.PDU, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.readDeadline > 0 {
		if err := c.conn.SetReadDeadline(time.Now().Add(c.readDeadline)); err != nil {
			return nil, fmt.Errorf("set read deadline: %w", err)
		}
		defer c.conn.SetReadDeadline(time.Time{})
	}

	p, err := pdu.ReadPDU(c.conn)
	if err != nil {
		if err == io.EOF {
			_, _ = c.sm.ProcessEvent(AE17)
		}
		return nil, err
	}
	return p, nil
}

// Close tears down the transport and fires the transport-closed event.
func (c *Connection) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil {
		return nil
	}
	err := c.conn.Close()
	_, _ = c.sm.ProcessEvent(AE17)
	return err
}

// RemoteAddr returns the peer's network address.
func (c *Connection) RemoteAddr() net.Addr { return c.conn.RemoteAddr() }

// LocalAddr returns this side's network address.
func (c *Connection) LocalAddr() net.Addr { return c.conn.LocalAddr() }

// SetReadDeadline sets the per-read timeout.
func (c *Connection) SetReadDeadline(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.readDeadline = d
}

// SetWriteDeadline sets the per-write timeout.
func (c *Connection) SetWriteDeadline(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.writeDeadline = d
}

// StateMachine exposes the connection's state machine.
func (c *Connection) StateMachine() *StateMachine { return c.sm }

// TriggerTransportIndication fires AE-2 after an SCP accepts a TCP
// connection, moving the machine to the awaiting-associate state.
func (c *Connection) TriggerTransportIndication(ctx context.Context) error {
	if _, err := c.sm.ProcessEvent(AE2); err != nil {
		return fmt.Errorf("trigger transport indication: %w", err)
	}
	return nil
}
