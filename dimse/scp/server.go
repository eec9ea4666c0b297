// Package scp implements the gateway's DIMSE acceptor role. It accepts
// associations from configured PACS peers and services exactly two
// verbs: C-ECHO, and the C-STORE sub-operations a gateway-issued C-MOVE
// triggers. Query/retrieve requests are always refused: the gateway
// consumes Q/R services, it never provides them.
package scp

import (
	"context"
	"fmt"
	"net"
	"sync"
	"sync/atomic"

	"github.com/codeninja55/dicom-gateway/dicom"
	"github.com/codeninja55/dicom-gateway/dimse/dimse"
	"github.com/codeninja55/dicom-gateway/dimse/dul"
	"github.com/codeninja55/dicom-gateway/dimse/pdu"
)

// EchoRequest describes an inbound C-ECHO.
type EchoRequest struct {
	CallingAE string
	CalledAE  string
}

// EchoResponse is the handler's answer to a C-ECHO.
type EchoResponse struct {
	Status uint16
}

// EchoHandler services C-ECHO requests.
type EchoHandler interface {
	HandleEcho(ctx context.Context, req *EchoRequest) *EchoResponse
}

// StoreRequest describes an inbound C-STORE with its decoded dataset.
type StoreRequest struct {
	CallingAE      string
	CalledAE       string
	SOPClassUID    string
	SOPInstanceUID string
	DataSet        *dicom.DataSet
}

// StoreResponse is the handler's answer to a C-STORE.
type StoreResponse struct {
	Status uint16
}

// StoreHandler services C-STORE requests.
type StoreHandler interface {
	HandleStore(ctx context.Context, req *StoreRequest) *StoreResponse
}

// Config parameterizes one SCP listener.
type Config struct {
	AETitle           string
	ListenAddr        string
	MaxPDULength      uint32
	MaxAssociations   int
	SupportedContexts map[string][]string // abstract syntax -> acceptable transfer syntaxes, in preference order

	// AllowedCallingAETitles restricts which calling AE titles may open
	// an association. An inbound C-STORE is only ever legitimate here as
	// the payload of a C-MOVE this gateway itself issued, so the calling
	// AE must be one of the configured PACS peers. Empty accepts any.
	AllowedCallingAETitles []string

	// The two serviced verbs. There is no Find/Get/Move handler to
	// configure: those commands always answer SOP-class-not-supported.
	EchoHandler  EchoHandler
	StoreHandler StoreHandler
}

// Server accepts and services inbound associations.
type Server struct {
	config       Config
	listener     net.Listener
	active       int32
	wg           sync.WaitGroup
	shutdownCh   chan struct{}
	shutdownOnce sync.Once
}

// NewServer applies defaults to cfg and builds an unstarted server.
func NewServer(config Config) (*Server, error) {
	if config.MaxPDULength == 0 {
		config.MaxPDULength = pdu.DefaultMaxPDULength
	}
	if config.MaxAssociations == 0 {
		config.MaxAssociations = 10
	}
	return &Server{
		config:     config,
		shutdownCh: make(chan struct{}),
	}, nil
}

// Addr reports the bound listen address, useful when ListenAddr named
// port 0.
func (s *Server) Addr() net.Addr {
	return s.listener.Addr()
}

// Listen binds the listener and starts accepting in the background.
func (s *Server) Listen(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.config.ListenAddr)
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}
	s.listener = listener
	go s.acceptLoop(ctx)
	return nil
}

// Shutdown stops accepting, closes the listener, and waits (bounded by
// ctx) for in-flight associations to drain.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	s.shutdownOnce.Do(func() {
		close(s.shutdownCh)
		if s.listener != nil {
			_ = s.listener.Close()
		}

		drained := make(chan struct{})
		go func() {
			s.wg.Wait()
			close(drained)
		}()
		select {
		case <-drained:
		case <-ctx.Done():
			err = ctx.Err()
		}
	})
	return err
}

func (s *Server) shuttingDown() bool {
	select {
	case <-s.shutdownCh:
		return true
	default:
		return false
	}
}

func (s *Server) acceptLoop(ctx context.Context) {
	for {
		if s.shuttingDown() || ctx.Err() != nil {
			return
		}

		conn, err := s.listener.Accept()
		if err != nil {
			if s.shuttingDown() {
				return
			}
			continue
		}

		if atomic.LoadInt32(&s.active) >= int32(s.config.MaxAssociations) {
			_ = conn.Close()
			continue
		}

		s.wg.Add(1)
		go s.serveConnection(ctx, conn)
	}
}

// serveConnection takes one TCP connection through association
// negotiation and message servicing.
func (s *Server) serveConnection(ctx context.Context, netConn net.Conn) {
	defer s.wg.Done()
	defer func() { _ = netConn.Close() }()

	atomic.AddInt32(&s.active, 1)
	defer atomic.AddInt32(&s.active, -1)

	conn := dul.NewConnection(netConn)
	conn.SetMaxPDULength(s.config.MaxPDULength)
	if err := conn.TriggerTransportIndication(ctx); err != nil {
		return
	}

	first, err := conn.ReadPDU(ctx)
	if err != nil {
		return
	}
	rq, ok := first.(*pdu.AssociateRQ)
	if !ok {
		return
	}

	callingAE := pdu.TrimAETitle(rq.CallingAETitle)
	assoc := dul.NewAssociation(conn, s.config.AETitle, callingAE)

	if calledAE := pdu.TrimAETitle(rq.CalledAETitle); calledAE != s.config.AETitle {
		_ = assoc.RejectAssociation(ctx, pdu.AssociateRJResultPermanent,
			pdu.AssociateRJSourceServiceUser, pdu.AssociateRJReasonCalledAENotRecognized)
		return
	}
	if !s.callingAllowed(callingAE) {
		_ = assoc.RejectAssociation(ctx, pdu.AssociateRJResultPermanent,
			pdu.AssociateRJSourceServiceUser, pdu.AssociateRJReasonCallingAENotRecognized)
		return
	}
	if err := assoc.AcceptAssociation(ctx, rq, s.config.SupportedContexts); err != nil {
		return
	}

	sess := &session{
		config:      &s.config,
		assoc:       assoc,
		conn:        conn,
		reassembler: dimse.NewMessageReassembler(),
	}
	sess.run(ctx)
}

// callingAllowed checks the allow-list; an empty list admits everyone.
func (s *Server) callingAllowed(callingAE string) bool {
	if len(s.config.AllowedCallingAETitles) == 0 {
		return true
	}
	for _, aet := range s.config.AllowedCallingAETitles {
		if aet == callingAE {
			return true
		}
	}
	return false
}

// session services one accepted association until release, abort, or
// error.
type session struct {
	config      *Config
	assoc       *dul.Association
	conn        *dul.Connection
	reassembler *dimse.MessageReassembler
}

func (h *session) run(ctx context.Context) {
	for ctx.Err() == nil {
		raw, err := h.conn.ReadPDU(ctx)
		if err != nil {
			return
		}

		switch p := raw.(type) {
		case *pdu.DataTF:
			if err := h.onData(ctx, p); err != nil {
				return
			}
		case *pdu.ReleaseRQ:
			_, _ = h.conn.StateMachine().ProcessEvent(dul.AE12)
			_, _ = h.conn.StateMachine().ProcessEvent(dul.AE14)
			_ = h.conn.SendPDU(ctx, &pdu.ReleaseRP{})
			return
		case *pdu.Abort:
			return
		}
	}
}

// onData folds a P-DATA-TF into the reassembler and dispatches any
// completed message by command field.
func (h *session) onData(ctx context.Context, dataPDU *pdu.DataTF) error {
	msg, err := h.reassembler.AddPDU(dataPDU)
	if err != nil || msg == nil {
		return err
	}

	switch msg.CommandSet.CommandField {
	case dimse.CommandCEchoRQ:
		return h.serveEcho(ctx, msg)
	case dimse.CommandCStoreRQ:
		return h.serveStore(ctx, msg)
	case dimse.CommandCFindRQ:
		return h.refuse(ctx, msg, dimse.CommandCFindRSP)
	case dimse.CommandCGetRQ:
		return h.refuse(ctx, msg, dimse.CommandCGetRSP)
	case dimse.CommandCMoveRQ:
		return h.refuse(ctx, msg, dimse.CommandCMoveRSP)
	default:
		return fmt.Errorf("unsupported command: 0x%04X", msg.CommandSet.CommandField)
	}
}

func (h *session) serveEcho(ctx context.Context, msg *dimse.Message) error {
	status := dimse.StatusSuccess
	if h.config.EchoHandler != nil {
		rsp := h.config.EchoHandler.HandleEcho(ctx, &EchoRequest{
			CallingAE: h.assoc.CallingAETitle(),
			CalledAE:  h.assoc.CalledAETitle(),
		})
		status = rsp.Status
	}

	return h.reply(ctx, msg, &dimse.CommandSet{
		CommandField:              dimse.CommandCEchoRSP,
		MessageIDBeingRespondedTo: msg.CommandSet.MessageID,
		CommandDataSetType:        dimse.DataSetNotPresent,
		Status:                    status,
		AffectedSOPClassUID:       msg.CommandSet.AffectedSOPClassUID,
	})
}

func (h *session) serveStore(ctx context.Context, msg *dimse.Message) error {
	status := dimse.StatusSuccess
	if h.config.StoreHandler != nil {
		rsp := h.config.StoreHandler.HandleStore(ctx, &StoreRequest{
			CallingAE:      h.assoc.CallingAETitle(),
			CalledAE:       h.assoc.CalledAETitle(),
			SOPClassUID:    msg.CommandSet.AffectedSOPClassUID,
			SOPInstanceUID: msg.CommandSet.AffectedSOPInstanceUID,
			DataSet:        msg.DataSet,
		})
		status = rsp.Status
	}

	return h.reply(ctx, msg, &dimse.CommandSet{
		CommandField:              dimse.CommandCStoreRSP,
		MessageIDBeingRespondedTo: msg.CommandSet.MessageID,
		CommandDataSetType:        dimse.DataSetNotPresent,
		Status:                    status,
		AffectedSOPClassUID:       msg.CommandSet.AffectedSOPClassUID,
		AffectedSOPInstanceUID:    msg.CommandSet.AffectedSOPInstanceUID,
	})
}

// refuse answers a query/retrieve request with SOP-class-not-supported.
// Inbound C-STORE sub-operations triggered by a gateway-issued C-MOVE
// arrive on a separate association and go through serveStore, never
// here.
func (h *session) refuse(ctx context.Context, msg *dimse.Message, responseField uint16) error {
	return h.reply(ctx, msg, &dimse.CommandSet{
		CommandField:              responseField,
		MessageIDBeingRespondedTo: msg.CommandSet.MessageID,
		CommandDataSetType:        dimse.DataSetNotPresent,
		Status:                    dimse.StatusSOPClassNotSupported,
		AffectedSOPClassUID:       msg.CommandSet.AffectedSOPClassUID,
	})
}

// reply encodes and sends one response on the request's presentation
// context.
func (h *session) reply(ctx context.Context, req *dimse.Message, cmd *dimse.CommandSet) error {
	rsp := &dimse.Message{
		CommandSet:            cmd,
		PresentationContextID: req.PresentationContextID,
	}
	pdus, err := rsp.Encode(h.conn.GetMaxPDULength())
	if err != nil {
		return err
	}
	for _, p := range pdus {
		if err := h.assoc.SendData(ctx, p); err != nil {
			return err
		}
	}
	return nil
}
