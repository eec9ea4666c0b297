package httpapi

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/codeninja55/dicom-gateway/dicom"
	"github.com/codeninja55/dicom-gateway/internal/translator"
)

// handleQIDOStudies serves GET /studies.
func (g *Gateway) handleQIDOStudies(w http.ResponseWriter, r *http.Request) {
	g.qido(w, r, translator.LevelStudy, "", "")
}

// handleQIDOSeries serves GET /studies/{study}/series.
func (g *Gateway) handleQIDOSeries(w http.ResponseWriter, r *http.Request) {
	studyUID := chi.URLParam(r, "study")
	if !translator.ValidateUID(studyUID) {
		writeError(w, http.StatusBadRequest, "Invalid StudyInstanceUID")
		return
	}
	g.qido(w, r, translator.LevelSeries, studyUID, "")
}

// handleQIDOInstances serves GET /studies/{study}/series/{series}/instances.
func (g *Gateway) handleQIDOInstances(w http.ResponseWriter, r *http.Request) {
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
	g.qido(w, r, translator.LevelImage, studyUID, seriesUID)
}

// qido runs the shared QIDO algorithm: build the query dataset from the
// request's query parameters, C-FIND at level, translate matches to
// DICOMweb JSON, and apply limit/offset client-side.
func (g *Gateway) qido(w http.ResponseWriter, r *http.Request, level translator.Level, studyUID, seriesUID string) {
	params := map[string][]string(r.URL.Query())
	limit, offset := parseLimitOffset(params)
	delete(params, "limit")
	delete(params, "offset")
	delete(params, "fuzzymatching")
	delete(params, "includefield")

	policy := translator.WildcardPolicy{MinChars: g.Config.QIDOMinChars, Append: g.Config.QIDOAppendWildcard}
	query, err := translator.BuildQueryDatasetWithPolicy(level, studyUID, seriesUID, params, policy)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	own := g.Config.DIMSEProxySettings.ProxyServer
	peer := g.Config.PrimaryPeer()

	if err := g.peerRateLimit(r.Context(), 0); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	results, err := findLevel(r.Context(), own, peer, level, query)
	if err != nil {
		writeError(w, statusForError(err), err.Error())
		return
	}

	results = applyLimitOffset(results, limit, offset)

	body, err := translator.DatasetsToJSONArray(results)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	w.Header().Set("Content-Type", "application/dicom+json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}

// parseLimitOffset reads the "limit"/"offset" QIDO response-control
// parameters, 0 meaning "unset" for both.
func parseLimitOffset(params map[string][]string) (limit, offset int) {
	if v, ok := params["limit"]; ok && len(v) > 0 {
		if n, err := strconv.Atoi(v[0]); err == nil && n > 0 {
			limit = n
		}
	}
	if v, ok := params["offset"]; ok && len(v) > 0 {
		if n, err := strconv.Atoi(v[0]); err == nil && n > 0 {
			offset = n
		}
	}
	return limit, offset
}

// applyLimitOffset slices results per QIDO's client-side limit/offset
// semantics.
func applyLimitOffset(results []*dicom.DataSet, limit, offset int) []*dicom.DataSet {
	if offset > 0 {
		if offset >= len(results) {
			return nil
		}
		results = results[offset:]
	}
	if limit > 0 && limit < len(results) {
		results = results[:limit]
	}
	return results
}
