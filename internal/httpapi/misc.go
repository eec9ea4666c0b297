package httpapi

import (
	"encoding/json"
	"net/http"
	"time"
)

// handlePing serves GET /ping.
func (g *Gateway) handlePing(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("pong"))
}

// statusPeer is one peer's entry in the /status response.
type statusPeer struct {
	AET        string `json:"aet"`
	Host       string `json:"host"`
	Port       int    `json:"port"`
	LastEcho   string `json:"lastEcho,omitempty"`
	LastEchoOK bool   `json:"lastEchoOk"`
}

// statusResponse is the /status JSON body.
type statusResponse struct {
	Status  string       `json:"status"`
	Uptime  string       `json:"uptime"`
	Peers   []statusPeer `json:"peers"`
	Cache   cacheStatus  `json:"cache"`
	Tracker trackerStatus `json:"tracker"`
}

type cacheStatus struct {
	Entries   int   `json:"entries"`
	SizeBytes int64 `json:"sizeBytes"`
}

type trackerStatus struct {
	Pending int `json:"pending"`
}

// handleStatus serves GET /status.
func (g *Gateway) handleStatus(w http.ResponseWriter, _ *http.Request) {
	g.peersMu.Lock()
	peers := make([]statusPeer, len(g.peers))
	for i, p := range g.peers {
		p.mu.Lock()
		cfgPeer := g.Config.DIMSEProxySettings.Peers[i]
		peers[i] = statusPeer{
			AET:        cfgPeer.AET,
			Host:       cfgPeer.IP,
			Port:       cfgPeer.Port,
			LastEchoOK: p.lastEchoOK,
		}
		if p.everEchoed {
			peers[i].LastEcho = p.lastEcho.Format(time.RFC3339)
		}
		p.mu.Unlock()
	}
	g.peersMu.Unlock()

	cacheStats := g.Cache.Stats()

	resp := statusResponse{
		Status: "ok",
		Uptime: g.Uptime().String(),
		Peers:  peers,
		Cache: cacheStatus{
			Entries:   cacheStats.Entries,
			SizeBytes: cacheStats.SizeBytes,
		},
		Tracker: trackerStatus{Pending: g.Tracker.Pending()},
	}

	_ = writeJSON(w, http.StatusOK, resp)
}

// echoRequest is the POST /dimse/echo request body.
type echoRequest struct {
	PeerIndex int `json:"peerIndex"`
}

// echoResponse is the POST /dimse/echo response body.
type echoResponse struct {
	Success      bool   `json:"success"`
	Peer         string `json:"peer"`
	ResponseTime string `json:"responseTime"`
	Error        string `json:"error,omitempty"`
}

// handleDimseEcho serves POST /dimse/echo.
func (g *Gateway) handleDimseEcho(w http.ResponseWriter, r *http.Request) {
	var req echoRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	peers := g.Config.DIMSEProxySettings.Peers
	if req.PeerIndex < 0 || req.PeerIndex >= len(peers) {
		writeError(w, http.StatusBadRequest, "peerIndex out of range")
		return
	}
	peer := peers[req.PeerIndex]
	own := g.Config.DIMSEProxySettings.ProxyServer

	started := time.Now()
	err := echo(r.Context(), own, peer)
	elapsed := time.Since(started)
	g.recordEcho(req.PeerIndex, err == nil)

	resp := echoResponse{
		Success:      err == nil,
		Peer:         peer.AET,
		ResponseTime: elapsed.String(),
	}
	if err != nil {
		resp.Error = err.Error()
	}

	_ = writeJSON(w, http.StatusOK, resp)
}
