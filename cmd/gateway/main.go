// Command gateway is the DICOMweb-to-DIMSE translating gateway's process
// entrypoint: it loads configuration, wires the cache/tracker/metrics
// dependencies, starts the DIMSE SCP listener and the HTTP server side by
// side, and shuts both down gracefully on SIGINT/SIGTERM.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/codeninja55/dicom-gateway/dicom/tag"
	"github.com/codeninja55/dicom-gateway/dicom/uid"
	"github.com/codeninja55/dicom-gateway/dimse/dimse"
	"github.com/codeninja55/dicom-gateway/dimse/scp"
	"github.com/codeninja55/dicom-gateway/internal/cache"
	"github.com/codeninja55/dicom-gateway/internal/config"
	"github.com/codeninja55/dicom-gateway/internal/httpapi"
	"github.com/codeninja55/dicom-gateway/internal/metrics"
	"github.com/codeninja55/dicom-gateway/internal/tracker"
)

// cacheSweepInterval is how often expired and over-budget cache entries
// are evicted.
const cacheSweepInterval = 15 * time.Minute

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}).
		With().Timestamp().Logger()
	log.Logger = logger
	logger.Info().Str("proxyMode", string(cfg.ProxyMode)).Msg("starting dicom-gateway")

	if cfg.ProxyMode != config.ProxyModeDIMSE {
		logger.Fatal().Str("proxyMode", string(cfg.ProxyMode)).
			Msg("dicomweb pass-through proxy mode is an external collaborator, not implemented by this core")
	}

	fileCache, err := cache.New(cfg.StoragePath, time.Duration(cfg.CacheRetentionMinutes)*time.Minute, cfg.CacheMaxSizeBytes, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to open file cache")
	}
	defer fileCache.Close()

	if result, err := fileCache.Validate(); err != nil {
		logger.Warn().Err(err).Msg("cache validation failed at startup")
	} else {
		logger.Info().Int("valid", result.Valid).Int("invalid", result.Invalid).Int("orphan", result.Orphan).
			Msg("cache validated at startup")
	}

	moveTracker := tracker.New()
	defer moveTracker.Close()

	reg := prometheus.NewRegistry()
	m := metrics.New(reg, moveTracker.Pending)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	fileCache.StartSweep(ctx, cacheSweepInterval)

	scpServer, err := newSCPServer(cfg, moveTracker, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to construct DIMSE SCP server")
	}
	if err := scpServer.Listen(ctx); err != nil {
		logger.Fatal().Err(err).Msg("failed to start DIMSE SCP listener")
	}
	logger.Info().Str("aet", cfg.DIMSEProxySettings.ProxyServer.AET).
		Int("port", cfg.DIMSEProxySettings.ProxyServer.Port).
		Msg("DIMSE SCP listening")

	gw := httpapi.NewGateway(cfg, fileCache, moveTracker, m, scpServer, logger)
	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.WebserverPort),
		Handler:      gw.NewRouter(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
	}

	go func() {
		logger.Info().Int("port", cfg.WebserverPort).Msg("HTTP server starting")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("HTTP server shutdown error")
	}
	if err := scpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("DIMSE SCP shutdown error")
	}

	logger.Info().Msg("gateway stopped")
}

// newSCPServer builds the DIMSE SCP: it accepts Verification
// and every Study-Root Q/R SOP class plus every Storage SOP Class, rejects
// calling AE titles outside the configured peer list, and gates inbound
// C-STORE through the correlation tracker so only an authorized sub-operation
// of a gateway-initiated C-MOVE is ever written anywhere.
func newSCPServer(cfg *config.Config, trk *tracker.Tracker, logger zerolog.Logger) (*scp.Server, error) {
	allowed := make([]string, len(cfg.DIMSEProxySettings.Peers))
	for i, p := range cfg.DIMSEProxySettings.Peers {
		allowed[i] = p.AET
	}

	serverCfg := scp.Config{
		AETitle:                cfg.DIMSEProxySettings.ProxyServer.AET,
		ListenAddr:             fmt.Sprintf(":%d", cfg.DIMSEProxySettings.ProxyServer.Port),
		MaxPDULength:           16384,
		MaxAssociations:        cfg.MaxAssociations * 4,
		SupportedContexts:      supportedContexts(),
		AllowedCallingAETitles: allowed,
		EchoHandler:            scp.NewDefaultEchoHandler(),
		StoreHandler:           scp.StoreHandlerFunc(storeHandler(trk, logger)),
	}

	return scp.NewServer(serverCfg)
}

// preferredTransferSyntaxes is the acceptance priority order: uncompressed
// little-endian first, then the other uncompressed encodings, then the
// common lossless compressed syntaxes. A proposed context offering none of
// these is answered transfer-syntaxes-not-supported; there is no fallback
// to the peer's first offered syntax.
var preferredTransferSyntaxes = []string{
	"1.2.840.10008.1.2.1",    // Explicit VR Little Endian
	"1.2.840.10008.1.2",      // Implicit VR Little Endian
	"1.2.840.10008.1.2.2",    // Explicit VR Big Endian
	"1.2.840.10008.1.2.4.70", // JPEG Lossless
	"1.2.840.10008.1.2.4.90", // JPEG 2000 Lossless
	"1.2.840.10008.1.2.4.80", // JPEG-LS Lossless
	"1.2.840.10008.1.2.5",    // RLE Lossless
}

// supportedContexts builds the abstract-syntax → acceptable-transfer-syntax
// map the SCP negotiates against: Verification, every Study-Root Q/R SOP
// class, and every Storage SOP Class known to the dicom/uid registry.
func supportedContexts() map[string][]string {
	out := map[string][]string{
		uid.VerificationSOPClass.String():                       preferredTransferSyntaxes,
		uid.StudyRootQueryRetrieveInformationModelFind.String(): preferredTransferSyntaxes,
		uid.StudyRootQueryRetrieveInformationModelMove.String(): preferredTransferSyntaxes,
		uid.StudyRootQueryRetrieveInformationModelGet.String():  preferredTransferSyntaxes,
	}

	var storageUIDs []string
	for _, info := range uid.FindAllByType(uid.TypeSOPClass) {
		if info.Retired {
			continue
		}
		if strings.Contains(info.Name, "Storage") {
			storageUIDs = append(storageUIDs, info.UID)
		}
	}
	sort.Strings(storageUIDs)
	for _, u := range storageUIDs {
		out[u] = preferredTransferSyntaxes
	}

	return out
}

// storeHandler services the C-STORE verb: extract the dataset's
// identifying UIDs, validate against the tracker, and respond
// NotAuthorized/Success/ProcessingFailure accordingly. A rejected store is
// never written anywhere; the tracker's Validate call happens before any
// file-system interaction.
func storeHandler(trk *tracker.Tracker, logger zerolog.Logger) func(ctx context.Context, req *scp.StoreRequest) *scp.StoreResponse {
	return func(ctx context.Context, req *scp.StoreRequest) *scp.StoreResponse {
		studyUID, err := scp.GetStringFromDataSet(req.DataSet, tag.StudyInstanceUID)
		if err != nil {
			logger.Warn().Err(err).Msg("c-store: dataset missing StudyInstanceUID")
			return &scp.StoreResponse{Status: dimse.StatusProcessingFailure}
		}
		seriesUID, _ := scp.GetStringFromDataSet(req.DataSet, tag.SeriesInstanceUID)
		sopInstanceUID := req.SOPInstanceUID
		if sopInstanceUID == "" {
			sopInstanceUID, _ = scp.GetStringFromDataSet(req.DataSet, tag.SOPInstanceUID)
		}

		valid, correlationID := trk.Validate(studyUID, seriesUID, sopInstanceUID)
		if !valid {
			logger.Warn().Str("study", studyUID).Str("series", seriesUID).Str("instance", sopInstanceUID).
				Str("callingAE", req.CallingAE).
				Msg("c-store: rejected, no matching pending C-MOVE")
			return &scp.StoreResponse{Status: dimse.StatusNotAuthorized}
		}

		if err := trk.Record(correlationID, req.DataSet); err != nil {
			logger.Error().Err(err).Str("correlationId", correlationID).Msg("c-store: failed to record dataset")
			return &scp.StoreResponse{Status: dimse.StatusProcessingFailure}
		}

		return &scp.StoreResponse{Status: dimse.StatusSuccess}
	}
}
