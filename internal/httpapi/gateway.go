// Package httpapi wires the cache, tracker, and DIMSE SCU/SCP roles to the
// gateway's HTTP surface: QIDO-RS query handlers, WADO-RS retrieval handlers,
// and the supplemental /ping, /status, and /dimse/echo endpoints.
package httpapi

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/codeninja55/dicom-gateway/dimse/scp"
	"github.com/codeninja55/dicom-gateway/internal/cache"
	"github.com/codeninja55/dicom-gateway/internal/config"
	"github.com/codeninja55/dicom-gateway/internal/metrics"
	"github.com/codeninja55/dicom-gateway/internal/tracker"
)

// peerState tracks the per-peer bookkeeping the /status endpoint reports.
type peerState struct {
	mu          sync.Mutex
	lastEcho    time.Time
	lastEchoOK  bool
	everEchoed  bool
	rateLimiter *rate.Limiter
}

// Gateway bundles the process-wide dependencies every HTTP handler needs:
// configuration, the file cache, the C-MOVE correlation tracker, metrics,
// a reference to the running SCP server (for /status), and a semaphore
// bounding concurrent outbound associations.
type Gateway struct {
	Config  *config.Config
	Cache   *cache.Cache
	Tracker *tracker.Tracker
	Metrics *metrics.Metrics
	Log     zerolog.Logger
	SCP     *scp.Server

	assocSem chan struct{}
	started  time.Time

	peersMu sync.Mutex
	peers   []*peerState
}

// NewGateway constructs a Gateway. One rate.Limiter is created per
// configured peer, bounding the rate of outbound C-FIND/C-MOVE/C-GET
// requests against that PACS; the association semaphore is sized from
// cfg.MaxAssociations.
func NewGateway(cfg *config.Config, c *cache.Cache, t *tracker.Tracker, m *metrics.Metrics, srv *scp.Server, log zerolog.Logger) *Gateway {
	peers := make([]*peerState, len(cfg.DIMSEProxySettings.Peers))
	for i := range peers {
		peers[i] = &peerState{
			rateLimiter: rate.NewLimiter(rate.Limit(10), 20),
		}
	}

	return &Gateway{
		Config:   cfg,
		Cache:    c,
		Tracker:  t,
		Metrics:  m,
		SCP:      srv,
		Log:      log,
		assocSem: make(chan struct{}, cfg.MaxAssociations),
		started:  time.Now(),
		peers:    peers,
	}
}

// acquireAssociation blocks until an outbound-association slot is available
// or ctx is cancelled, releasing it via the returned func on every exit path.
func (g *Gateway) acquireAssociation(ctx context.Context) (release func(), err error) {
	select {
	case g.assocSem <- struct{}{}:
		return func() { <-g.assocSem }, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// peerRateLimit blocks on the rate limiter for the peer at idx, returning an
// error if idx is out of range or ctx is cancelled first.
func (g *Gateway) peerRateLimit(ctx context.Context, idx int) error {
	g.peersMu.Lock()
	if idx < 0 || idx >= len(g.peers) {
		g.peersMu.Unlock()
		return fmt.Errorf("httpapi: peer index %d out of range", idx)
	}
	limiter := g.peers[idx].rateLimiter
	g.peersMu.Unlock()
	return limiter.Wait(ctx)
}

// recordEcho updates the last-echo bookkeeping for /status, for peer idx.
func (g *Gateway) recordEcho(idx int, ok bool) {
	g.peersMu.Lock()
	defer g.peersMu.Unlock()
	if idx < 0 || idx >= len(g.peers) {
		return
	}
	p := g.peers[idx]
	p.mu.Lock()
	p.lastEcho = time.Now()
	p.lastEchoOK = ok
	p.everEchoed = true
	p.mu.Unlock()
}

// Uptime reports how long the gateway has been running, for /status.
func (g *Gateway) Uptime() time.Duration {
	return time.Since(g.started)
}
