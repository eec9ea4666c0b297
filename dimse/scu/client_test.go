package scu_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codeninja55/dicom-gateway/dicom"
	"github.com/codeninja55/dicom-gateway/dimse/dul"
	"github.com/codeninja55/dicom-gateway/dimse/scp"
	"github.com/codeninja55/dicom-gateway/dimse/scu"
)

const (
	verificationSOP = "1.2.840.10008.1.1"
	ctImageSOP      = "1.2.840.10008.5.1.4.1.1.2"
	prFindSOP       = "1.2.840.10008.5.1.4.1.2.1.1"
	prMoveSOP       = "1.2.840.10008.5.1.4.1.2.1.2"
	prGetSOP        = "1.2.840.10008.5.1.4.1.2.1.3"
	implicitLE      = "1.2.840.10008.1.2"
)

// gatewaySCP starts the gateway-shaped SCP (echo + store only, Q/R
// refused) and returns its dial address.
func gatewaySCP(t *testing.T, store scp.StoreHandler) string {
	t.Helper()

	server, err := scp.NewServer(scp.Config{
		AETitle:      "TEST_SCP",
		ListenAddr:   "127.0.0.1:0",
		EchoHandler:  scp.NewDefaultEchoHandler(),
		StoreHandler: store,
		SupportedContexts: map[string][]string{
			verificationSOP: {implicitLE},
			ctImageSOP:      {implicitLE},
			prFindSOP:       {implicitLE},
			prMoveSOP:       {implicitLE},
			prGetSOP:        {implicitLE},
		},
	})
	require.NoError(t, err)
	require.NoError(t, server.Listen(context.Background()))
	t.Cleanup(func() { _ = server.Shutdown(context.Background()) })

	time.Sleep(50 * time.Millisecond)
	return server.Addr().String()
}

// connect builds and associates a client proposing the given abstract
// syntaxes.
func connect(t *testing.T, ctx context.Context, addr string, abstractSyntaxes ...string) *scu.Client {
	t.Helper()

	contexts := make([]dul.PresentationContextRQ, len(abstractSyntaxes))
	for i, as := range abstractSyntaxes {
		contexts[i] = dul.PresentationContextRQ{
			ID:               uint8(i*2 + 1),
			AbstractSyntax:   as,
			TransferSyntaxes: []string{implicitLE},
		}
	}

	client := scu.NewClient(scu.Config{
		CallingAETitle:       "TEST_SCU",
		CalledAETitle:        "TEST_SCP",
		RemoteAddr:           addr,
		PresentationContexts: contexts,
	})
	require.NoError(t, client.Connect(ctx))
	t.Cleanup(func() { _ = client.Close(context.Background()) })
	return client
}

func TestEcho(t *testing.T) {
	addr := gatewaySCP(t, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	client := connect(t, ctx, addr, verificationSOP)
	require.NoError(t, client.Echo(ctx))
}

func TestStore(t *testing.T) {
	type captured struct {
		sopClass, sopInstance string
		ds                    *dicom.DataSet
	}
	var got captured

	addr := gatewaySCP(t, scp.StoreHandlerFunc(func(ctx context.Context, req *scp.StoreRequest) *scp.StoreResponse {
		got = captured{req.SOPClassUID, req.SOPInstanceUID, req.DataSet}
		return &scp.StoreResponse{Status: 0x0000}
	}))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	ds := dicom.NewDataSet()
	require.NoError(t, ds.SetPatientName("Test^Patient"))
	require.NoError(t, ds.SetPatientID("12345"))

	client := connect(t, ctx, addr, ctImageSOP)
	require.NoError(t, client.Store(ctx, ds, ctImageSOP, "1.2.840.999.123.456.789"))

	assert.Equal(t, ctImageSOP, got.sopClass)
	assert.Equal(t, "1.2.840.999.123.456.789", got.sopInstance)
	require.NotNil(t, got.ds)
}

// The gateway's own SCP is never a query provider; issuing the Q/R
// verbs against it must surface the refusal as an error with no
// results delivered. The protocol-generic success paths for these
// verbs run against a real PACS in the orthanc integration suite.

func TestFindRefusedByGatewaySCP(t *testing.T) {
	addr := gatewaySCP(t, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	client := connect(t, ctx, addr, prFindSOP)

	query := dicom.NewDataSet()
	require.NoError(t, query.SetPatientName("*"))

	matches := 0
	err := client.Find(ctx, "PATIENT", prFindSOP, query, func(ds *dicom.DataSet) error {
		matches++
		return nil
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "0x0122")
	assert.Zero(t, matches)
}

func TestMoveRefusedByGatewaySCP(t *testing.T) {
	addr := gatewaySCP(t, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	client := connect(t, ctx, addr, prMoveSOP)

	query := dicom.NewDataSet()
	require.NoError(t, query.SetStudyInstanceUID("1.2.3.4.5"))

	result, err := client.Move(ctx, prMoveSOP, "DEST_AE", query)
	require.Error(t, err)
	require.NotNil(t, result, "terminal counters ride along even on failure")
	assert.Zero(t, result.Completed)
}

func TestGetRefusedByGatewaySCP(t *testing.T) {
	addr := gatewaySCP(t, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	client := connect(t, ctx, addr, prGetSOP, ctImageSOP)

	query := dicom.NewDataSet()
	require.NoError(t, query.SetStudyInstanceUID("1.2.3.4.5"))

	received := 0
	err := client.Get(ctx, prGetSOP, query, func(ds *dicom.DataSet) error {
		received++
		return nil
	})
	require.Error(t, err)
	assert.Zero(t, received)
}

func TestConnectRefusedPort(t *testing.T) {
	client := scu.NewClient(scu.Config{
		CallingAETitle: "TEST_SCU",
		CalledAETitle:  "TEST_SCP",
		RemoteAddr:     "127.0.0.1:1", // nothing listens here
		PresentationContexts: []dul.PresentationContextRQ{
			{ID: 1, AbstractSyntax: verificationSOP, TransferSyntaxes: []string{implicitLE}},
		},
	})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	assert.Error(t, client.Connect(ctx))
}

func TestConnectExpiredContext(t *testing.T) {
	addr := gatewaySCP(t, nil)

	ctx, cancel := context.WithTimeout(context.Background(), time.Nanosecond)
	defer cancel()
	time.Sleep(10 * time.Millisecond)

	client := scu.NewClient(scu.Config{
		CallingAETitle: "TEST_SCU",
		CalledAETitle:  "TEST_SCP",
		RemoteAddr:     addr,
		PresentationContexts: []dul.PresentationContextRQ{
			{ID: 1, AbstractSyntax: verificationSOP, TransferSyntaxes: []string{implicitLE}},
		},
	})
	assert.Error(t, client.Connect(ctx))
}
