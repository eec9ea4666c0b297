// Package dul drives the DICOM Upper Layer: PDU-framed connections, the
// PS3.8 state machine, and association lifecycle for both the requester
// (toward PACS peers) and acceptor (for PACS-initiated C-STORE) roles.
package dul

import (
	"context"
	"fmt"
	"sync"

	"github.com/codeninja55/dicom-gateway/dimse/pdu"
)

// dicomApplicationContext is the single application context name DICOM
// defines (PS3.7 annex A.2.1).
const dicomApplicationContext = "1.2.840.10008.3.1.1.1"

// Implementation identity offered during negotiation.
const (
	implementationClassUID = "1.2.826.0.1.3680043.10.1451"
	implementationVersion  = "GO-RADX_1_0"
)

// AssociationRejectedError is returned by RequestAssociation when the
// peer answers with A-ASSOCIATE-RJ, carrying the rejection's result,
// source, and reason bytes so callers can distinguish an upstream
// refusal from a network failure.
type AssociationRejectedError struct {
	Result uint8
	Source uint8
	Reason uint8
}

func (e *AssociationRejectedError) Error() string {
	return fmt.Sprintf("association rejected: result=%d source=%d reason=%d",
		e.Result, e.Source, e.Reason)
}

// PresentationContextRQ is a context proposal handed to
// RequestAssociation.
type PresentationContextRQ struct {
	ID               uint8
	AbstractSyntax   string
	TransferSyntaxes []string
}

// PresentationContext is one negotiated context as both sides settled
// it.
type PresentationContext struct {
	ID             uint8
	AbstractSyntax string
	TransferSyntax string
	Result         uint8
	Accepted       bool
}

// Association is one upper-layer association over a Connection, in
// either role.
type Association struct {
	conn               *Connection
	calledAETitle      string
	callingAETitle     string
	applicationContext string
	contexts           map[uint8]*PresentationContext
	maxPDULength       uint32
	mu                 sync.RWMutex
}

// NewAssociation wraps conn for the given AE pair.
func NewAssociation(conn *Connection, calledAE, callingAE string) *Association {
	return &Association{
		conn:               conn,
		calledAETitle:      calledAE,
		callingAETitle:     callingAE,
		applicationContext: dicomApplicationContext,
		contexts:           map[uint8]*PresentationContext{},
		maxPDULength:       pdu.DefaultMaxPDULength,
	}
}

// userInfo builds the user-information item this side offers.
func (a *Association) userInfo() pdu.UserInformation {
	return pdu.UserInformation{
		MaxPDULength:           a.maxPDULength,
		ImplementationClassUID: implementationClassUID,
		ImplementationVersion:  implementationVersion,
	}
}

// require fires an event and checks the machine prescribed the expected
// action.
func (a *Association) require(event Event, want Action) error {
	action, err := a.conn.sm.ProcessEvent(event)
	if err != nil {
		return fmt.Errorf("state machine error: %w", err)
	}
	if action != want {
		return fmt.Errorf("unexpected action: %v", action)
	}
	return nil
}

// RequestAssociation proposes the given contexts and blocks for the
// peer's answer. On acceptance the negotiated contexts and the peer's
// max PDU length are recorded; on A-ASSOCIATE-RJ the typed rejection
// error is returned.
func (a *Association) RequestAssociation(ctx context.Context, proposals []PresentationContextRQ) error {
	if err := a.require(AE3, ActionSendAssociateRQ); err != nil {
		return err
	}

	rq := &pdu.AssociateRQ{
		ProtocolVersion:    0x0001,
		CalledAETitle:      pdu.PadAETitle(a.calledAETitle),
		CallingAETitle:     pdu.PadAETitle(a.callingAETitle),
		ApplicationContext: a.applicationContext,
		UserInfo:           a.userInfo(),
	}

	proposedAbstract := make(map[uint8]string, len(proposals))
	for _, p := range proposals {
		rq.PresentationContexts = append(rq.PresentationContexts, pdu.PresentationContextRQ{
			ID:               p.ID,
			AbstractSyntax:   p.AbstractSyntax,
			TransferSyntaxes: p.TransferSyntaxes,
		})
		proposedAbstract[p.ID] = p.AbstractSyntax
	}

	if err := a.conn.SendPDU(ctx, rq); err != nil {
		return fmt.Errorf("send A-ASSOCIATE-RQ: %w", err)
	}

	response, err := a.conn.ReadPDU(ctx)
	if err != nil {
		return fmt.Errorf("read association response: %w", err)
	}

	switch p := response.(type) {
	case *pdu.AssociateAC:
		if _, err := a.conn.sm.ProcessEvent(AE6); err != nil {
			return fmt.Errorf("state machine error: %w", err)
		}

		a.mu.Lock()
		for _, pc := range p.PresentationContexts {
			a.contexts[pc.ID] = &PresentationContext{
				ID:             pc.ID,
				AbstractSyntax: proposedAbstract[pc.ID],
				TransferSyntax: pc.TransferSyntax,
				Result:         pc.Result,
				Accepted:       pc.Result == pdu.PresentationContextAcceptance,
			}
		}
		a.maxPDULength = p.UserInfo.MaxPDULength
		a.mu.Unlock()

		a.conn.SetMaxPDULength(p.UserInfo.MaxPDULength)
		return nil

	case *pdu.AssociateRJ:
		_, _ = a.conn.sm.ProcessEvent(AE7)
		return &AssociationRejectedError{Result: p.Result, Source: p.Source, Reason: p.Reason}

	default:
		return fmt.Errorf("unexpected PDU type: %T", response)
	}
}

// AcceptAssociation answers an inbound A-ASSOCIATE-RQ: negotiate every
// proposed context against the supported map and send the A-ASSOCIATE-AC.
func (a *Association) AcceptAssociation(ctx context.Context, rq *pdu.AssociateRQ, supportedContexts map[string][]string) error {
	if _, err := a.conn.sm.ProcessEvent(AE8); err != nil {
		return fmt.Errorf("state machine error: %w", err)
	}

	a.mu.Lock()
	a.calledAETitle = pdu.TrimAETitle(rq.CalledAETitle)
	a.callingAETitle = pdu.TrimAETitle(rq.CallingAETitle)
	a.applicationContext = rq.ApplicationContext
	a.mu.Unlock()

	var answers []pdu.PresentationContextAC
	for _, proposal := range rq.PresentationContexts {
		pc := negotiateContext(proposal, supportedContexts)
		answers = append(answers, pdu.PresentationContextAC{
			ID:             pc.ID,
			Result:         pc.Result,
			TransferSyntax: pc.TransferSyntax,
		})
		if pc.Accepted {
			a.mu.Lock()
			a.contexts[pc.ID] = pc
			a.mu.Unlock()
		}
	}

	ac := &pdu.AssociateAC{
		ProtocolVersion:      0x0001,
		CalledAETitle:        rq.CalledAETitle,
		CallingAETitle:       rq.CallingAETitle,
		ApplicationContext:   rq.ApplicationContext,
		PresentationContexts: answers,
		UserInfo:             a.userInfo(),
	}

	if err := a.require(AE4, ActionSendAssociateAC); err != nil {
		return err
	}
	if err := a.conn.SendPDU(ctx, ac); err != nil {
		return fmt.Errorf("send A-ASSOCIATE-AC: %w", err)
	}
	return nil
}

// negotiateContext answers one proposal: unknown abstract syntax is
// rejected outright; otherwise the acceptor's preference order (the
// order of the supported list) picks the transfer syntax, falling back
// to transfer-syntaxes-not-supported when nothing overlaps.
func negotiateContext(rq pdu.PresentationContextRQ, supported map[string][]string) *PresentationContext {
	pc := &PresentationContext{ID: rq.ID, AbstractSyntax: rq.AbstractSyntax}

	acceptable, ok := supported[rq.AbstractSyntax]
	if !ok {
		pc.Result = pdu.PresentationContextAbstractSyntaxNotSupported
		return pc
	}

	for _, preferred := range acceptable {
		for _, offered := range rq.TransferSyntaxes {
			if offered == preferred {
				pc.TransferSyntax = offered
				pc.Result = pdu.PresentationContextAcceptance
				pc.Accepted = true
				return pc
			}
		}
	}

	pc.Result = pdu.PresentationContextTransferSyntaxesNotSupported
	return pc
}

// RejectAssociation answers an inbound A-ASSOCIATE-RQ with an
// A-ASSOCIATE-RJ, used when AE-title validation fails before contexts
// are even considered.
func (a *Association) RejectAssociation(ctx context.Context, result, source, reason uint8) error {
	if _, err := a.conn.sm.ProcessEvent(AE8); err != nil {
		return fmt.Errorf("state machine error: %w", err)
	}
	if err := a.require(AE5, ActionSendAssociateRJ); err != nil {
		return err
	}

	rj := &pdu.AssociateRJ{Result: result, Source: source, Reason: reason}
	if err := a.conn.SendPDU(ctx, rj); err != nil {
		return fmt.Errorf("send A-ASSOCIATE-RJ: %w", err)
	}
	return nil
}

// Release performs the graceful release handshake and closes the
// transport.
func (a *Association) Release(ctx context.Context) error {
	if err := a.require(AE11, ActionSendReleaseRQ); err != nil {
		return err
	}
	if err := a.conn.SendPDU(ctx, &pdu.ReleaseRQ{}); err != nil {
		return fmt.Errorf("send A-RELEASE-RQ: %w", err)
	}

	response, err := a.conn.ReadPDU(ctx)
	if err != nil {
		return fmt.Errorf("read release response: %w", err)
	}
	if _, ok := response.(*pdu.ReleaseRP); !ok {
		return fmt.Errorf("expected A-RELEASE-RP, got %T", response)
	}
	if _, err := a.conn.sm.ProcessEvent(AE13); err != nil {
		return fmt.Errorf("state machine error: %w", err)
	}
	return a.conn.Close()
}

// Abort sends A-ABORT and closes the transport.
func (a *Association) Abort(ctx context.Context, source, reason uint8) error {
	if _, err := a.conn.sm.ProcessEvent(AE15); err != nil {
		return fmt.Errorf("state machine error: %w", err)
	}
	if err := a.conn.SendPDU(ctx, &pdu.Abort{Source: source, Reason: reason}); err != nil {
		return fmt.Errorf("send A-ABORT: %w", err)
	}
	return a.conn.Close()
}

// SendData sends one P-DATA-TF.
func (a *Association) SendData(ctx context.Context, data *pdu.DataTF) error {
	if err := a.require(AE9, ActionSendData); err != nil {
		return err
	}
	return a.conn.SendPDU(ctx, data)
}

// GetPresentationContext looks a negotiated context up by id.
func (a *Association) GetPresentationContext(id uint8) (*PresentationContext, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	pc, ok := a.contexts[id]
	return pc, ok
}

// FindPresentationContext finds an accepted context by abstract syntax.
func (a *Association) FindPresentationContext(abstractSyntax string) (*PresentationContext, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	for _, pc := range a.contexts {
		if pc.Accepted && pc.AbstractSyntax == abstractSyntax {
			return pc, true
		}
	}
	return nil, false
}

// Connection exposes the underlying connection.
func (a *Association) Connection() *Connection { return a.conn }

// CalledAETitle returns the called AE title.
func (a *Association) CalledAETitle() string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.calledAETitle
}

// CallingAETitle returns the calling AE title.
func (a *Association) CallingAETitle() string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.callingAETitle
}
