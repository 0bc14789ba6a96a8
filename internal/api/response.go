package api

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/BTreeMap/StreakBot/internal/models"
)

// fallbackErrorResponse is pre-marshaled so encoding failures can still
// produce a well-formed body.
var fallbackErrorResponse []byte

func init() {
	var err error
	fallbackErrorResponse, err = json.Marshal(models.Error("internal server error"))
	if err != nil {
		panic("api: failed to marshal fallback error response: " + err.Error())
	}
}

// writeJSONResponse writes an APIResponse with the given status code.
func writeJSONResponse(w http.ResponseWriter, statusCode int, response models.APIResponse) {
	body, err := json.Marshal(response)
	if err != nil {
		slog.Error("writeJSONResponse failed to marshal response", "error", err)
		statusCode = http.StatusInternalServerError
		body = fallbackErrorResponse
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if _, err := w.Write(body); err != nil {
		slog.Error("writeJSONResponse failed to write body", "error", err)
	}
}
