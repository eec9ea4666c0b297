// Package scu implements the gateway's DIMSE client role: C-ECHO,
// C-STORE, C-FIND, C-GET, and C-MOVE against a configured PACS peer,
// one association per Client.
package scu

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/codeninja55/dicom-gateway/dicom"
	"github.com/codeninja55/dicom-gateway/dicom/uid"
	"github.com/codeninja55/dicom-gateway/dimse/dimse"
	"github.com/codeninja55/dicom-gateway/dimse/dul"
	"github.com/codeninja55/dicom-gateway/dimse/pdu"
)

// Config identifies both AEs, the peer address, and the contexts to
// propose.
type Config struct {
	CallingAETitle       string
	CalledAETitle        string
	RemoteAddr           string
	MaxPDULength         uint32
	PresentationContexts []dul.PresentationContextRQ
}

// Client is one SCU association. It is not safe for concurrent
// operations; the gateway opens a fresh Client per retrieval.
type Client struct {
	config      Config
	conn        *dul.Connection
	assoc       *dul.Association
	messageID   uint32
	reassembler *dimse.MessageReassembler
}

// NewClient builds an unconnected client.
func NewClient(config Config) *Client {
	if config.MaxPDULength == 0 {
		config.MaxPDULength = pdu.DefaultMaxPDULength
	}
	return &Client{
		config:      config,
		reassembler: dimse.NewMessageReassembler(),
	}
}

// Connect dials the peer and negotiates the association.
func (c *Client) Connect(ctx context.Context) error {
	conn, err := dul.Dial(ctx, "tcp", c.config.RemoteAddr)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	c.conn = conn
	c.assoc = dul.NewAssociation(conn, c.config.CalledAETitle, c.config.CallingAETitle)

	if err := c.assoc.RequestAssociation(ctx, c.config.PresentationContexts); err != nil {
		_ = c.conn.Close()
		return fmt.Errorf("request association: %w", err)
	}
	return nil
}

// Close releases the association gracefully.
func (c *Client) Close(ctx context.Context) error {
	if c.assoc == nil {
		return nil
	}
	return c.assoc.Release(ctx)
}

// Abort tears the association down with A-ABORT, for cancellation
// paths where a graceful release would block.
func (c *Client) Abort(ctx context.Context) error {
	if c.assoc == nil {
		return nil
	}
	return c.assoc.Abort(ctx, pdu.AbortSourceServiceUser, pdu.AbortReasonNotSpecified)
}

// isPending reports whether a response status is in the Pending range,
// meaning more responses follow on this operation.
func isPending(status uint16) bool {
	return status == dimse.StatusPending || status == dimse.StatusPendingWarning
}

// nextMessageID hands out request ids, wrapping within uint16.
func (c *Client) nextMessageID() uint16 {
	id := atomic.AddUint32(&c.messageID, 1)
	if id > 0xFFFF {
		atomic.StoreUint32(&c.messageID, 1)
		return 1
	}
	return uint16(id)
}

// sendRequest builds and transmits one request on the accepted context
// for sopClassUID, returning the message id used.
func (c *Client) sendRequest(ctx context.Context, commandField uint16, sopClassUID string, ds *dicom.DataSet, extra func(*dimse.CommandSet)) error {
	pc, ok := c.assoc.FindPresentationContext(sopClassUID)
	if !ok {
		return fmt.Errorf("no presentation context for %s", sopClassUID)
	}

	cmd := &dimse.CommandSet{
		CommandField:        commandField,
		MessageID:           c.nextMessageID(),
		Priority:            dimse.PriorityMedium,
		CommandDataSetType:  dimse.DataSetNotPresent,
		AffectedSOPClassUID: sopClassUID,
	}
	if ds != nil {
		cmd.CommandDataSetType = dimse.DataSetPresent
	}
	if extra != nil {
		extra(cmd)
	}

	return c.sendMessage(ctx, &dimse.Message{
		CommandSet:            cmd,
		DataSet:               ds,
		PresentationContextID: pc.ID,
	})
}

func (c *Client) sendMessage(ctx context.Context, msg *dimse.Message) error {
	pdus, err := msg.Encode(c.conn.GetMaxPDULength())
	if err != nil {
		return err
	}
	for _, p := range pdus {
		if err := c.assoc.SendData(ctx, p); err != nil {
			return err
		}
	}
	return nil
}

// receiveMessage reads PDUs until the reassembler yields a complete
// message.
func (c *Client) receiveMessage(ctx context.Context) (*dimse.Message, error) {
	for {
		raw, err := c.conn.ReadPDU(ctx)
		if err != nil {
			return nil, err
		}
		dataPDU, ok := raw.(*pdu.DataTF)
		if !ok {
			return nil, fmt.Errorf("expected P-DATA-TF, got %T", raw)
		}
		if msg, err := c.reassembler.AddPDU(dataPDU); err != nil {
			return nil, err
		} else if msg != nil {
			return msg, nil
		}
	}
}

// Echo runs one C-ECHO against the peer.
func (c *Client) Echo(ctx context.Context) error {
	verification := uid.VerificationSOPClass.String()
	if err := c.sendRequest(ctx, dimse.CommandCEchoRQ, verification, nil, nil); err != nil {
		return fmt.Errorf("send C-ECHO-RQ: %w", err)
	}

	rsp, err := c.receiveMessage(ctx)
	if err != nil {
		return fmt.Errorf("receive C-ECHO-RSP: %w", err)
	}
	if rsp.CommandSet.Status != dimse.StatusSuccess {
		return fmt.Errorf("C-ECHO failed: status=0x%04X", rsp.CommandSet.Status)
	}
	return nil
}

// Store transmits one instance with C-STORE.
func (c *Client) Store(ctx context.Context, ds *dicom.DataSet, sopClassUID, sopInstanceUID string) error {
	err := c.sendRequest(ctx, dimse.CommandCStoreRQ, sopClassUID, ds, func(cmd *dimse.CommandSet) {
		cmd.AffectedSOPInstanceUID = sopInstanceUID
	})
	if err != nil {
		return fmt.Errorf("send C-STORE-RQ: %w", err)
	}

	rsp, err := c.receiveMessage(ctx)
	if err != nil {
		return fmt.Errorf("receive C-STORE-RSP: %w", err)
	}
	if rsp.CommandSet.Status != dimse.StatusSuccess {
		return fmt.Errorf("C-STORE failed: status=0x%04X", rsp.CommandSet.Status)
	}
	return nil
}

// Find issues a C-FIND and streams each Pending response's identifier
// dataset to callback until the terminal status.
func (c *Client) Find(ctx context.Context, queryLevel, sopClassUID string, query *dicom.DataSet, callback func(*dicom.DataSet) error) error {
	if err := c.sendRequest(ctx, dimse.CommandCFindRQ, sopClassUID, query, nil); err != nil {
		return fmt.Errorf("send C-FIND-RQ: %w", err)
	}

	for {
		rsp, err := c.receiveMessage(ctx)
		if err != nil {
			return fmt.Errorf("receive C-FIND-RSP: %w", err)
		}

		status := rsp.CommandSet.Status
		switch {
		case isPending(status):
			if rsp.DataSet != nil && callback != nil {
				if err := callback(rsp.DataSet); err != nil {
					return err
				}
			}
		case status == dimse.StatusSuccess:
			return nil
		default:
			return fmt.Errorf("C-FIND failed: status=0x%04X", status)
		}
	}
}

// Get issues a C-GET: matching instances arrive as C-STORE-RQ
// sub-operations on this same association, each handed to storeHandler
// and acknowledged inline, until the terminal C-GET-RSP.
func (c *Client) Get(ctx context.Context, sopClassUID string, query *dicom.DataSet, storeHandler func(*dicom.DataSet) error) error {
	if err := c.sendRequest(ctx, dimse.CommandCGetRQ, sopClassUID, query, nil); err != nil {
		return fmt.Errorf("send C-GET-RQ: %w", err)
	}

	for {
		rsp, err := c.receiveMessage(ctx)
		if err != nil {
			return fmt.Errorf("receive C-GET-RSP: %w", err)
		}

		if rsp.CommandSet.CommandField == dimse.CommandCStoreRQ {
			if err := c.answerInlineStore(ctx, rsp, storeHandler); err != nil {
				return err
			}
			continue
		}

		status := rsp.CommandSet.Status
		switch {
		case isPending(status):
		case status == dimse.StatusSuccess:
			return nil
		default:
			return fmt.Errorf("C-GET failed: status=0x%04X", status)
		}
	}
}

// answerInlineStore hands a C-GET sub-operation's dataset to the
// handler and sends the C-STORE-RSP back on the same context.
func (c *Client) answerInlineStore(ctx context.Context, req *dimse.Message, storeHandler func(*dicom.DataSet) error) error {
	if storeHandler != nil && req.DataSet != nil {
		if err := storeHandler(req.DataSet); err != nil {
			return fmt.Errorf("store handler: %w", err)
		}
	}

	rsp := &dimse.Message{
		CommandSet: &dimse.CommandSet{
			CommandField:              dimse.CommandCStoreRSP,
			MessageIDBeingRespondedTo: req.CommandSet.MessageID,
			CommandDataSetType:        dimse.DataSetNotPresent,
			Status:                    dimse.StatusSuccess,
			AffectedSOPClassUID:       req.CommandSet.AffectedSOPClassUID,
			AffectedSOPInstanceUID:    req.CommandSet.AffectedSOPInstanceUID,
		},
		PresentationContextID: req.PresentationContextID,
	}
	if err := c.sendMessage(ctx, rsp); err != nil {
		return fmt.Errorf("send C-STORE-RSP: %w", err)
	}
	return nil
}

// MoveResult carries the terminal sub-operation counters from a
// C-MOVE-RSP. The instances themselves never travel on this
// association: the PACS opens its own association to the move
// destination AE, so only counts are reported here.
type MoveResult struct {
	Completed uint16
	Failed    uint16
	Warning   uint16
}

// Move issues a C-MOVE toward destination and blocks until the terminal
// response. Correlating the C-STOREs that land on the destination
// association with this call is the caller's job (see the tracker
// package).
func (c *Client) Move(ctx context.Context, sopClassUID, destination string, query *dicom.DataSet) (*MoveResult, error) {
	err := c.sendRequest(ctx, dimse.CommandCMoveRQ, sopClassUID, query, func(cmd *dimse.CommandSet) {
		cmd.MoveDestination = destination
	})
	if err != nil {
		return nil, fmt.Errorf("send C-MOVE-RQ: %w", err)
	}

	for {
		rsp, err := c.receiveMessage(ctx)
		if err != nil {
			return nil, fmt.Errorf("receive C-MOVE-RSP: %w", err)
		}

		status := rsp.CommandSet.Status
		if isPending(status) {
			continue
		}

		result := &MoveResult{
			Completed: rsp.CommandSet.NumberOfCompletedSubOps,
			Failed:    rsp.CommandSet.NumberOfFailedSubOps,
			Warning:   rsp.CommandSet.NumberOfWarningSubOps,
		}
		if status != dimse.StatusSuccess {
			return result, fmt.Errorf("C-MOVE failed: status=0x%04X", status)
		}
		return result, nil
	}
}
