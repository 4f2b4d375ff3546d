package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/m-mizutani/goerr/v2"
	"github.com/ppiankov/verity/internal/logging"
)

type errorResponse struct {
	Error string `json:"error"`
}

// writeError logs err and writes it as a JSON error body
func writeError(ctx context.Context, w http.ResponseWriter, err error, status int) {
	logger := logging.From(ctx)

	var ge *goerr.Error
	if errors.As(err, &ge) {
		attrs := []any{"status", status, "error", err.Error(), "values", ge.Values()}
		if status >= http.StatusInternalServerError {
			logger.Error("HTTP error", attrs...)
		} else {
			logger.Warn("HTTP error", attrs...)
		}
	} else {
		logger.Error("HTTP error", "status", status, "error", err.Error())
	}

	writeJSON(w, status, errorResponse{Error: err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
