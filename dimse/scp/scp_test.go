package scp_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codeninja55/dicom-gateway/dicom"
	"github.com/codeninja55/dicom-gateway/dimse/dimse"
	"github.com/codeninja55/dicom-gateway/dimse/dul"
	"github.com/codeninja55/dicom-gateway/dimse/scp"
	"github.com/codeninja55/dicom-gateway/dimse/scu"
)

const (
	verificationSOP = "1.2.840.10008.1.1"
	ctImageSOP      = "1.2.840.10008.5.1.4.1.1.2"
	implicitLE      = "1.2.840.10008.1.2"
)

// startServer brings up an SCP on an OS-assigned port and returns it
// with its dial address.
func startServer(t *testing.T, cfg scp.Config) (*scp.Server, string) {
	t.Helper()

	if cfg.ListenAddr == "" {
		cfg.ListenAddr = "127.0.0.1:0"
	}
	if cfg.SupportedContexts == nil {
		cfg.SupportedContexts = map[string][]string{
			verificationSOP: {implicitLE},
			ctImageSOP:      {implicitLE},
		}
	}

	server, err := scp.NewServer(cfg)
	require.NoError(t, err)
	require.NoError(t, server.Listen(context.Background()))
	t.Cleanup(func() { _ = server.Shutdown(context.Background()) })

	time.Sleep(50 * time.Millisecond)
	return server, server.Addr().String()
}

// dialClient associates an SCU to addr proposing the given abstract
// syntaxes over implicit little endian.
func dialClient(t *testing.T, ctx context.Context, addr, callingAE string, abstractSyntaxes ...string) *scu.Client {
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
		CallingAETitle:       callingAE,
		CalledAETitle:        "TEST_SCP",
		RemoteAddr:           addr,
		PresentationContexts: contexts,
	})
	require.NoError(t, client.Connect(ctx))
	t.Cleanup(func() { _ = client.Close(context.Background()) })
	return client
}

func TestEcho(t *testing.T) {
	_, addr := startServer(t, scp.Config{
		AETitle:     "TEST_SCP",
		EchoHandler: scp.NewDefaultEchoHandler(),
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	client := dialClient(t, ctx, addr, "TEST_SCU", verificationSOP)
	require.NoError(t, client.Echo(ctx))
}

func TestEchoCustomHandler(t *testing.T) {
	var sawCallingAE string
	handler := scp.EchoHandlerFunc(func(ctx context.Context, req *scp.EchoRequest) *scp.EchoResponse {
		sawCallingAE = req.CallingAE
		return &scp.EchoResponse{Status: dimse.StatusSuccess}
	})

	_, addr := startServer(t, scp.Config{AETitle: "TEST_SCP", EchoHandler: handler})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	client := dialClient(t, ctx, addr, "CUSTOM_SCU", verificationSOP)
	require.NoError(t, client.Echo(ctx))
	assert.Equal(t, "CUSTOM_SCU", sawCallingAE)
}

func TestStoreDeliversDataset(t *testing.T) {
	var mu sync.Mutex
	var got *scp.StoreRequest

	_, addr := startServer(t, scp.Config{
		AETitle: "TEST_SCP",
		StoreHandler: scp.StoreHandlerFunc(func(ctx context.Context, req *scp.StoreRequest) *scp.StoreResponse {
			mu.Lock()
			got = req
			mu.Unlock()
			return &scp.StoreResponse{Status: dimse.StatusSuccess}
		}),
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	ds := dicom.NewDataSet()
	require.NoError(t, ds.SetPatientName("Store^Test"))
	require.NoError(t, ds.SetStudyInstanceUID("1.2.3"))

	client := dialClient(t, ctx, addr, "TEST_SCU", ctImageSOP)
	require.NoError(t, client.Store(ctx, ds, ctImageSOP, "1.2.3.4.5"))

	mu.Lock()
	defer mu.Unlock()
	require.NotNil(t, got)
	assert.Equal(t, ctImageSOP, got.SOPClassUID)
	assert.Equal(t, "1.2.3.4.5", got.SOPInstanceUID)
	assert.Equal(t, "TEST_SCU", got.CallingAE)
	require.NotNil(t, got.DataSet)
}

func TestStoreFailureStatusSurfacesToClient(t *testing.T) {
	_, addr := startServer(t, scp.Config{
		AETitle: "TEST_SCP",
		StoreHandler: scp.StoreHandlerFunc(func(ctx context.Context, req *scp.StoreRequest) *scp.StoreResponse {
			return &scp.StoreResponse{Status: dimse.StatusProcessingFailure}
		}),
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	client := dialClient(t, ctx, addr, "TEST_SCU", ctImageSOP)
	err := client.Store(ctx, dicom.NewDataSet(), ctImageSOP, "1.2.3.4.5")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "0x0110")
}

func TestCallingAETitleRejected(t *testing.T) {
	_, addr := startServer(t, scp.Config{
		AETitle:                "TEST_SCP",
		AllowedCallingAETitles: []string{"KNOWN_PEER"},
		EchoHandler:            scp.NewDefaultEchoHandler(),
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	client := scu.NewClient(scu.Config{
		CallingAETitle: "STRANGER",
		CalledAETitle:  "TEST_SCP",
		RemoteAddr:     addr,
		PresentationContexts: []dul.PresentationContextRQ{
			{ID: 1, AbstractSyntax: verificationSOP, TransferSyntaxes: []string{implicitLE}},
		},
	})

	err := client.Connect(ctx)
	require.Error(t, err)
	var rejected *dul.AssociationRejectedError
	require.ErrorAs(t, err, &rejected)
	assert.Equal(t, uint8(3), rejected.Reason, "calling-AE-not-recognized")
}

func TestConcurrentClients(t *testing.T) {
	_, addr := startServer(t, scp.Config{
		AETitle:     "TEST_SCP",
		EchoHandler: scp.NewDefaultEchoHandler(),
	})

	var wg sync.WaitGroup
	errs := make(chan error, 5)
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()

			client := scu.NewClient(scu.Config{
				CallingAETitle: "TEST_SCU",
				CalledAETitle:  "TEST_SCP",
				RemoteAddr:     addr,
				PresentationContexts: []dul.PresentationContextRQ{
					{ID: 1, AbstractSyntax: verificationSOP, TransferSyntaxes: []string{implicitLE}},
				},
			})
			if err := client.Connect(ctx); err != nil {
				errs <- err
				return
			}
			defer client.Close(context.Background())
			errs <- client.Echo(ctx)
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		assert.NoError(t, err)
	}
}

// TestMultipleOperationsOneAssociation interleaves echo and store verbs
// on a single association.
func TestMultipleOperationsOneAssociation(t *testing.T) {
	var mu sync.Mutex
	var stores []string

	_, addr := startServer(t, scp.Config{
		AETitle:     "TEST_SCP",
		EchoHandler: scp.NewDefaultEchoHandler(),
		StoreHandler: scp.StoreHandlerFunc(func(ctx context.Context, req *scp.StoreRequest) *scp.StoreResponse {
			mu.Lock()
			stores = append(stores, req.SOPInstanceUID)
			mu.Unlock()
			return &scp.StoreResponse{Status: dimse.StatusSuccess}
		}),
	})

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client := dialClient(t, ctx, addr, "TEST_SCU", verificationSOP, ctImageSOP)

	require.NoError(t, client.Echo(ctx))
	for i, sopUID := range []string{"1.2.3.1", "1.2.3.2", "1.2.3.3"} {
		ds := dicom.NewDataSet()
		require.NoError(t, ds.SetPatientID("P00"+sopUID))
		require.NoError(t, ds.SetStudyInstanceUID("1.2.3"))
		require.NoError(t, client.Store(ctx, ds, ctImageSOP, sopUID), "store %d", i)
	}
	require.NoError(t, client.Echo(ctx))

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"1.2.3.1", "1.2.3.2", "1.2.3.3"}, stores)
}

func TestShutdownStopsAccepting(t *testing.T) {
	server, addr := startServer(t, scp.Config{
		AETitle:     "TEST_SCP",
		EchoHandler: scp.NewDefaultEchoHandler(),
	})
	require.NoError(t, server.Shutdown(context.Background()))

	client := scu.NewClient(scu.Config{
		CallingAETitle: "TEST_SCU",
		CalledAETitle:  "TEST_SCP",
		RemoteAddr:     addr,
		PresentationContexts: []dul.PresentationContextRQ{
			{ID: 1, AbstractSyntax: verificationSOP, TransferSyntaxes: []string{implicitLE}},
		},
	})
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	assert.Error(t, client.Connect(ctx))
}
