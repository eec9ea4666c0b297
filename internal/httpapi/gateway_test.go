package httpapi_test

import (
	"encoding/json"
	"io"
	"mime"
	"mime/multipart"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codeninja55/dicom-gateway/internal/cache"
	"github.com/codeninja55/dicom-gateway/internal/config"
	"github.com/codeninja55/dicom-gateway/internal/httpapi"
	"github.com/codeninja55/dicom-gateway/internal/tracker"
	"github.com/codeninja55/dicom-gateway/internal/translator"
)

// closedPort returns a 127.0.0.1 port nothing is listening on, so SCU dials
// against it fail immediately with connection refused.
func closedPort(t *testing.T) int {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := l.Addr().(*net.TCPAddr).Port
	require.NoError(t, l.Close())
	return port
}

func newTestGateway(t *testing.T, mutate func(*config.Config)) (*httpapi.Gateway, http.Handler) {
	t.Helper()

	cfg := config.Defaults()
	cfg.DIMSEProxySettings.ProxyServer = config.AEEndpoint{AET: "GATEWAY", IP: "127.0.0.1", Port: 11112}
	cfg.DIMSEProxySettings.Peers = []config.AEEndpoint{
		{AET: "TEST_PACS", IP: "127.0.0.1", Port: closedPort(t)},
	}
	cfg.StoragePath = t.TempDir()
	cfg.EnableMetrics = false
	if mutate != nil {
		mutate(&cfg)
	}
	require.NoError(t, config.Validate(&cfg))

	c, err := cache.New(cfg.StoragePath, time.Hour, 1<<20, zerolog.Nop())
	require.NoError(t, err)

	trk := tracker.New()
	t.Cleanup(trk.Close)

	g := httpapi.NewGateway(&cfg, c, trk, nil, nil, zerolog.Nop())
	return g, g.NewRouter()
}

func decodeErrorEnvelope(t *testing.T, body io.Reader) map[string]interface{} {
	t.Helper()
	var envelope map[string]interface{}
	require.NoError(t, json.NewDecoder(body).Decode(&envelope))
	return envelope
}

func TestPing(t *testing.T) {
	_, router := newTestGateway(t, nil)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ping", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "pong", rec.Body.String())
}

func TestStatus(t *testing.T) {
	_, router := newTestGateway(t, nil)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/status", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "application/json")

	var status struct {
		Status string `json:"status"`
		Peers  []struct {
			AET string `json:"aet"`
		} `json:"peers"`
		Tracker struct {
			Pending int `json:"pending"`
		} `json:"tracker"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&status))
	assert.Equal(t, "ok", status.Status)
	require.Len(t, status.Peers, 1)
	assert.Equal(t, "TEST_PACS", status.Peers[0].AET)
	assert.Zero(t, status.Tracker.Pending)
}

func TestQIDOSeries_InvalidStudyUID(t *testing.T) {
	_, router := newTestGateway(t, nil)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/studies/abc%20def/series", nil))

	require.Equal(t, http.StatusBadRequest, rec.Code)
	envelope := decodeErrorEnvelope(t, rec.Body)
	assert.Equal(t, "Invalid StudyInstanceUID", envelope["error"])
	assert.Equal(t, float64(http.StatusBadRequest), envelope["statusCode"])
	assert.NotEmpty(t, envelope["timestamp"])
}

func TestWADOInstance_InvalidUIDs(t *testing.T) {
	_, router := newTestGateway(t, nil)

	cases := []struct {
		name string
		path string
		want string
	}{
		{"bad study", "/studies/not-a-uid/series/1.2.1/instances/1.2.1.1", "Invalid StudyInstanceUID"},
		{"bad series", "/studies/1.2/series/1..2/instances/1.2.1.1", "Invalid SeriesInstanceUID"},
		{"bad instance", "/studies/1.2/series/1.2.1/instances/1.2.x", "Invalid SOPInstanceUID"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, tc.path, nil))

			require.Equal(t, http.StatusBadRequest, rec.Code)
			envelope := decodeErrorEnvelope(t, rec.Body)
			assert.Equal(t, tc.want, envelope["error"])
		})
	}
}

func TestWADOInstance_CacheHit(t *testing.T) {
	g, router := newTestGateway(t, nil)

	payload := []byte("DICM fake part10 payload")
	require.NoError(t, g.Cache.Store("1.2", "1.2.1", "1.2.1.1", payload))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/studies/1.2/series/1.2.1/instances/1.2.1.1", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/dicom", rec.Header().Get("Content-Type"))
	assert.Equal(t, "HIT", rec.Header().Get("X-Cache"))
	assert.Equal(t, payload, rec.Body.Bytes())
}

func TestWADOSeries_CacheHitMultipart(t *testing.T) {
	g, router := newTestGateway(t, nil)

	instances := [][]byte{
		[]byte("first instance bytes"),
		[]byte("second instance bytes"),
		[]byte("third instance bytes"),
	}
	boundary := translator.NewBoundary(1700000000, 0xcafe)
	body := translator.CreateMultipart(instances, boundary)
	require.NoError(t, g.Cache.Store("1.2", "1.2.1", "", body))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/studies/1.2/series/1.2.1", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "HIT", rec.Header().Get("X-Cache"))

	mediaType, params, err := mime.ParseMediaType(rec.Header().Get("Content-Type"))
	require.NoError(t, err)
	assert.Equal(t, "multipart/related", mediaType)
	assert.Equal(t, boundary, params["boundary"])

	mr := multipart.NewReader(rec.Body, params["boundary"])
	var parts [][]byte
	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		assert.Equal(t, "application/dicom", part.Header.Get("Content-Type"))
		data, err := io.ReadAll(part)
		require.NoError(t, err)
		parts = append(parts, data)
	}
	assert.Equal(t, instances, parts)
}

func TestWADOSeries_CacheHitSingleInstanceBody(t *testing.T) {
	g, router := newTestGateway(t, nil)

	// A series retrieval that yielded exactly one instance is cached as bare
	// Part-10 bytes; a later HIT must not dress it up as multipart.
	payload := []byte("\x00\x00\x00\x00DICM single instance")
	require.NoError(t, g.Cache.Store("1.2", "1.2.1", "", payload))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/studies/1.2/series/1.2.1", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "HIT", rec.Header().Get("X-Cache"))
	assert.Equal(t, "application/dicom", rec.Header().Get("Content-Type"))
	assert.Equal(t, payload, rec.Body.Bytes())
}

func TestWADOInstance_PeerUnreachable(t *testing.T) {
	_, router := newTestGateway(t, func(cfg *config.Config) {
		cfg.UseCGet = true
	})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/studies/1.2/series/1.2.1/instances/1.2.1.1", nil))

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	envelope := decodeErrorEnvelope(t, rec.Body)
	assert.Contains(t, envelope["error"].(string), "TEST_PACS")
	assert.Equal(t, float64(http.StatusInternalServerError), envelope["statusCode"])
}

func TestWADOInstance_PeerUnreachable_CMove(t *testing.T) {
	g, router := newTestGateway(t, func(cfg *config.Config) {
		cfg.UseCGet = false
	})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/studies/1.2/series/1.2.1/instances/1.2.1.1", nil))

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	// The failed move's tracker registration is cancelled, not leaked.
	assert.Zero(t, g.Tracker.Pending())
}

func TestQIDOStudies_PeerUnreachable(t *testing.T) {
	_, router := newTestGateway(t, nil)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/studies?PatientName=DOE", nil))

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	envelope := decodeErrorEnvelope(t, rec.Body)
	assert.NotEmpty(t, envelope["error"])
}

func TestDimseEcho_PeerIndexOutOfRange(t *testing.T) {
	_, router := newTestGateway(t, nil)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/dimse/echo", strings.NewReader(`{"peerIndex":5}`))
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	envelope := decodeErrorEnvelope(t, rec.Body)
	assert.Equal(t, "peerIndex out of range", envelope["error"])
}

func TestDimseEcho_BadBody(t *testing.T) {
	_, router := newTestGateway(t, nil)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/dimse/echo", strings.NewReader("{not json"))
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDimseEcho_Unreachable(t *testing.T) {
	_, router := newTestGateway(t, nil)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/dimse/echo", strings.NewReader(`{"peerIndex":0}`))
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Success      bool   `json:"success"`
		Peer         string `json:"peer"`
		ResponseTime string `json:"responseTime"`
		Error        string `json:"error"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.False(t, resp.Success)
	assert.Equal(t, "TEST_PACS", resp.Peer)
	assert.NotEmpty(t, resp.ResponseTime)
	assert.NotEmpty(t, resp.Error)
}
