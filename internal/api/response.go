package api

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/BTreeMap/LineConcierge/internal/models"
)

var fallbackErrorResponse []byte

func init() {
	var err error
	fallbackErrorResponse, err = json.Marshal(models.Error("Internal server error"))
	if err != nil {
		panic(fmt.Sprintf("Failed to marshal fallback error response at startup: %v", err))
	}
}

// writeJSONResponse marshals response before touching headers so an encoding
// failure still yields a well-formed error body.
func writeJSONResponse(w http.ResponseWriter, statusCode int, response interface{}) {
	jsonData, err := json.Marshal(response)
	if err != nil {
		slog.Error("Server.writeJSONResponse: failed to marshal JSON response", "error", err)
		jsonData = fallbackErrorResponse
		statusCode = http.StatusInternalServerError
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if _, writeErr := w.Write(jsonData); writeErr != nil {
		slog.Error("Server.writeJSONResponse: failed to write JSON response", "error", writeErr)
	}
}

// allowMethod writes 405 and returns false unless r uses method.
func allowMethod(w http.ResponseWriter, r *http.Request, method, handler string) bool {
	if r.Method == method {
		return true
	}
	w.Header().Set("Allow", method)
	slog.Warn(handler+": method not allowed", "method", r.Method, "path", r.URL.Path)
	w.WriteHeader(http.StatusMethodNotAllowed)
	return false
}
