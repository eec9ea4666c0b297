package main

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codeninja55/dicom-gateway/dicom"
	"github.com/codeninja55/dicom-gateway/dimse/dimse"
	"github.com/codeninja55/dicom-gateway/dimse/dul"
	"github.com/codeninja55/dicom-gateway/dimse/scp"
	"github.com/codeninja55/dicom-gateway/dimse/scu"
	"github.com/codeninja55/dicom-gateway/internal/tracker"
)

func storeDataset(t *testing.T, studyUID, seriesUID, sopUID string) *dicom.DataSet {
	t.Helper()
	ds := dicom.NewDataSet()
	require.NoError(t, ds.SetStudyInstanceUID(studyUID))
	require.NoError(t, ds.SetSeriesInstanceUID(seriesUID))
	require.NoError(t, ds.SetSOPInstanceUID(sopUID))
	return ds
}

func TestStoreHandler_RejectsUnsolicitedStore(t *testing.T) {
	trk := tracker.New()
	defer trk.Close()

	handler := storeHandler(trk, zerolog.Nop())
	rsp := handler(context.Background(), &scp.StoreRequest{
		DataSet:        storeDataset(t, "1.2", "1.2.1", "1.2.1.1"),
		SOPInstanceUID: "1.2.1.1",
		CallingAE:      "TEST_PACS",
	})

	assert.Equal(t, dimse.StatusNotAuthorized, rsp.Status)
	assert.Zero(t, trk.Pending())
}

func TestStoreHandler_AcceptsStoreForPendingMove(t *testing.T) {
	trk := tracker.New()
	defer trk.Close()

	_, future, err := trk.Register("1.2", "1.2.1", "", 5*time.Second)
	require.NoError(t, err)

	handler := storeHandler(trk, zerolog.Nop())
	rsp := handler(context.Background(), &scp.StoreRequest{
		DataSet:        storeDataset(t, "1.2", "1.2.1", "1.2.1.1"),
		SOPInstanceUID: "1.2.1.1",
		CallingAE:      "TEST_PACS",
	})
	require.Equal(t, dimse.StatusSuccess, rsp.Status)

	// The future resolves once the move's terminal response reports the
	// expected sub-operation total.
	valid, correlationID := trk.Validate("1.2", "1.2.1", "1.2.1.1")
	require.True(t, valid)
	require.NoError(t, trk.CompleteMove(correlationID, 1))

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	result, err := future.Wait(ctx)
	require.NoError(t, err)
	assert.Len(t, result.Datasets, 1)
}

func TestStoreHandler_MissingStudyUIDFailsProcessing(t *testing.T) {
	trk := tracker.New()
	defer trk.Close()

	handler := storeHandler(trk, zerolog.Nop())
	rsp := handler(context.Background(), &scp.StoreRequest{
		DataSet:        dicom.NewDataSet(),
		SOPInstanceUID: "1.2.1.1",
		CallingAE:      "TEST_PACS",
	})

	assert.Equal(t, dimse.StatusProcessingFailure, rsp.Status)
}

// TestUnsolicitedStoreRejectedOverAssociation drives the rejection over a
// real association: an authorized peer AE sends a C-STORE-RQ with no
// preceding C-MOVE and gets status 0x0124 back.
func TestUnsolicitedStoreRejectedOverAssociation(t *testing.T) {
	trk := tracker.New()
	defer trk.Close()

	sopClassUID := "1.2.840.10008.5.1.4.1.1.2" // CT Image Storage

	server, err := scp.NewServer(scp.Config{
		AETitle:                "GATEWAY",
		ListenAddr:             "127.0.0.1:0",
		MaxPDULength:           16384,
		AllowedCallingAETitles: []string{"TEST_PACS"},
		SupportedContexts: map[string][]string{
			"1.2.840.10008.1.1": {"1.2.840.10008.1.2"},
			sopClassUID:         {"1.2.840.10008.1.2"},
		},
		EchoHandler:  scp.NewDefaultEchoHandler(),
		StoreHandler: scp.StoreHandlerFunc(storeHandler(trk, zerolog.Nop())),
	})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	require.NoError(t, server.Listen(ctx))
	defer server.Shutdown(context.Background())
	time.Sleep(100 * time.Millisecond)

	client := scu.NewClient(scu.Config{
		CallingAETitle: "TEST_PACS",
		CalledAETitle:  "GATEWAY",
		RemoteAddr:     server.Addr().String(),
		MaxPDULength:   16384,
		PresentationContexts: []dul.PresentationContextRQ{
			{ID: 1, AbstractSyntax: sopClassUID, TransferSyntaxes: []string{"1.2.840.10008.1.2"}},
		},
	})
	require.NoError(t, client.Connect(ctx))
	defer client.Close(context.Background())

	err = client.Store(ctx, storeDataset(t, "9.9", "9.9.1", "9.9.1.1"), sopClassUID, "9.9.1.1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "0x0124")
}

func TestSupportedContexts(t *testing.T) {
	contexts := supportedContexts()

	assert.Contains(t, contexts, "1.2.840.10008.1.1")           // Verification
	assert.Contains(t, contexts, "1.2.840.10008.5.1.4.1.2.2.1") // Study Root FIND
	assert.Contains(t, contexts, "1.2.840.10008.5.1.4.1.2.2.2") // Study Root MOVE
	assert.Contains(t, contexts, "1.2.840.10008.5.1.4.1.2.2.3") // Study Root GET
	assert.Contains(t, contexts, "1.2.840.10008.5.1.4.1.1.2")   // CT Image Storage

	for abstractSyntax, syntaxes := range contexts {
		assert.NotEmpty(t, syntaxes, "no transfer syntaxes for %s", abstractSyntax)
		assert.Equal(t, "1.2.840.10008.1.2.1", syntaxes[0], "preferred syntax order for %s", abstractSyntax)
	}
}
