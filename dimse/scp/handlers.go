package scp

import (
	"context"

	"github.com/codeninja55/dicom-gateway/dimse/dimse"
)

// DefaultEchoHandler answers every C-ECHO with Success.
type DefaultEchoHandler struct{}

// NewDefaultEchoHandler returns the always-success echo handler.
func NewDefaultEchoHandler() *DefaultEchoHandler {
	return &DefaultEchoHandler{}
}

func (h *DefaultEchoHandler) HandleEcho(ctx context.Context, req *EchoRequest) *EchoResponse {
	return &EchoResponse{Status: dimse.StatusSuccess}
}

// EchoHandlerFunc adapts a function to EchoHandler.
type EchoHandlerFunc func(ctx context.Context, req *EchoRequest) *EchoResponse

func (f EchoHandlerFunc) HandleEcho(ctx context.Context, req *EchoRequest) *EchoResponse {
	return f(ctx, req)
}

// StoreHandlerFunc adapts a function to StoreHandler.
type StoreHandlerFunc func(ctx context.Context, req *StoreRequest) *StoreResponse

func (f StoreHandlerFunc) HandleStore(ctx context.Context, req *StoreRequest) *StoreResponse {
	return f(ctx, req)
}
