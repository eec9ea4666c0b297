package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/codeninja55/dicom-gateway/dimse/dul"
	"github.com/codeninja55/dicom-gateway/internal/tracker"
)

// apiError is the single JSON error envelope every handler error funnels
// through: {error, statusCode, timestamp}.
type apiError struct {
	Error      string    `json:"error"`
	StatusCode int       `json:"statusCode"`
	Timestamp  time.Time `json:"timestamp"`
}

// writeError writes the JSON error envelope with status code and message.
func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(apiError{
		Error:      message,
		StatusCode: status,
		Timestamp:  time.Now(),
	})
}

// statusForError maps an upstream DIMSE failure to its HTTP status: an
// A-ASSOCIATE-RJ from the PACS is an upstream refusal (502), a tracker
// timeout waiting on the C-STORE stream is a gateway timeout (504), and
// everything else (network errors, terminal DIMSE failure statuses) is 500.
func statusForError(err error) int {
	var rejected *dul.AssociationRejectedError
	if errors.As(err, &rejected) {
		return http.StatusBadGateway
	}
	if errors.Is(err, tracker.ErrTimeout) {
		return http.StatusGatewayTimeout
	}
	return http.StatusInternalServerError
}

// writeJSON writes v as a JSON body with status and the application/json
// content type.
func writeJSON(w http.ResponseWriter, status int, v interface{}) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	return json.NewEncoder(w).Encode(v)
}
