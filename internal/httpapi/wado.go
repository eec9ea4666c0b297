package httpapi

import (
	"bytes"
	"fmt"
	"math/rand"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/codeninja55/dicom-gateway/dicom"
	"github.com/codeninja55/dicom-gateway/dicom/tag"
	"github.com/codeninja55/dicom-gateway/internal/translator"
)

// handleWADOStudy serves GET /studies/{study}.
func (g *Gateway) handleWADOStudy(w http.ResponseWriter, r *http.Request) {
	studyUID := chi.URLParam(r, "study")
	if !translator.ValidateUID(studyUID) {
		writeError(w, http.StatusBadRequest, "Invalid StudyInstanceUID")
		return
	}
	g.wado(w, r, retrieveLevel{studyUID: studyUID})
}

// handleWADOSeries serves GET /studies/{study}/series/{series}.
func (g *Gateway) handleWADOSeries(w http.ResponseWriter, r *http.Request) {
	studyUID := chi.URLParam(r, "study")
	seriesUID := chi.URLParam(r, "series")
	if !translator.ValidateUID(studyUID) {
		writeError(w, http.StatusBadRequest, "Invalid StudyInstanceUID")
		return
	}
	if !translator.ValidateUID(seriesUID) {
		writeError(w, http.StatusBadRequest, "Invalid SeriesInstanceUID")
		return
	}
	g.wado(w, r, retrieveLevel{studyUID: studyUID, seriesUID: seriesUID})
}

// handleWADOInstance serves GET /studies/{study}/series/{series}/instances/{instance}.
func (g *Gateway) handleWADOInstance(w http.ResponseWriter, r *http.Request) {
	studyUID := chi.URLParam(r, "study")
	seriesUID := chi.URLParam(r, "series")
	instanceUID := chi.URLParam(r, "instance")
	if !translator.ValidateUID(studyUID) {
		writeError(w, http.StatusBadRequest, "Invalid StudyInstanceUID")
		return
	}
	if !translator.ValidateUID(seriesUID) {
		writeError(w, http.StatusBadRequest, "Invalid SeriesInstanceUID")
		return
	}
	if !translator.ValidateUID(instanceUID) {
		writeError(w, http.StatusBadRequest, "Invalid SOPInstanceUID")
		return
	}
	g.wado(w, r, retrieveLevel{studyUID: studyUID, seriesUID: seriesUID, instanceUID: instanceUID})
}

// wado runs the shared WADO algorithm: cache lookup at the
// exact requested granularity, falling back to an SCU retrieve on miss,
// then re-packaging and caching every returned instance individually so a
// later single-instance WADO request can hit cache even when this one
// couldn't.
func (g *Gateway) wado(w http.ResponseWriter, r *http.Request, lvl retrieveLevel) {
	if g.Config.EnableCache {
		if data, ok, err := g.Cache.Retrieve(lvl.studyUID, lvl.seriesUID, lvl.instanceUID); err == nil && ok {
			w.Header().Set("X-Cache", "HIT")
			// A series/study retrieval that yielded exactly one instance was
			// cached as bare Part-10 bytes, so the request level alone can't
			// tell the two shapes apart. Multipart bodies always lead with
			// their "--<boundary>" marker; Part-10 bytes never do (they open
			// with the 128-byte preamble).
			writeWADOBody(w, data, !bytes.HasPrefix(data, []byte("--")))
			if g.Metrics != nil {
				g.Metrics.CacheHits.Inc()
			}
			return
		}
		if g.Metrics != nil {
			g.Metrics.CacheMisses.Inc()
		}
	}

	results, err := g.retrieve(r.Context(), lvl)
	if err != nil {
		writeError(w, statusForError(err), err.Error())
		return
	}
	if len(results) == 0 {
		writeError(w, http.StatusNotFound, "No matching instances")
		return
	}

	instances := make([][]byte, 0, len(results))
	for _, ds := range results {
		data, err := dicom.WriteBytes(ds, dicom.WriteOptions{})
		if err != nil {
			writeError(w, http.StatusInternalServerError, fmt.Sprintf("serialize instance: %s", err))
			return
		}
		instances = append(instances, data)

		if g.Config.EnableCache {
			studyUID := ds.GetString(tag.StudyInstanceUID)
			seriesUID := ds.GetString(tag.SeriesInstanceUID)
			instanceUID := ds.GetString(tag.SOPInstanceUID)
			if studyUID != "" {
				if err := g.Cache.Store(studyUID, seriesUID, instanceUID, data); err != nil {
					g.Log.Warn().Err(err).Msg("wado: failed to cache retrieved instance")
				}
			}
		}
	}

	var body []byte
	isSingle := len(instances) == 1
	if isSingle {
		body = instances[0]
	} else {
		boundary := translator.NewBoundary(time.Now().UnixNano(), rand.Uint32())
		body = translator.CreateMultipart(instances, boundary)
	}

	if g.Config.EnableCache {
		if err := g.Cache.Store(lvl.studyUID, lvl.seriesUID, lvl.instanceUID, body); err != nil {
			g.Log.Warn().Err(err).Msg("wado: failed to cache aggregate response")
		}
	}

	w.Header().Set("X-Cache", "MISS")
	writeWADOBody(w, body, isSingle)
}

// writeWADOBody sets the content type for a WADO response body and writes
// it. A cached multipart body carries its own boundary in its first line,
// which is recovered here rather than re-derived, since the cached bytes
// were already correctly framed at store time.
func writeWADOBody(w http.ResponseWriter, data []byte, singleInstance bool) {
	if singleInstance {
		w.Header().Set("Content-Type", "application/dicom")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(data)
		return
	}

	boundary := multipartBoundaryOf(data)
	w.Header().Set("Content-Type", fmt.Sprintf(`multipart/related; type="application/dicom"; boundary=%s`, boundary))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

// multipartBoundaryOf recovers the boundary token from a previously-created
// multipart body's leading "--<boundary>\r\n" marker.
func multipartBoundaryOf(data []byte) string {
	end := bytes.IndexByte(data, '\r')
	if end < 2 || !bytes.HasPrefix(data, []byte("--")) {
		return ""
	}
	return string(data[2:end])
}
