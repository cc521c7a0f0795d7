package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/jakechorley/shift-selector/pkg/core/model"
)

// writeError answers with the domain error's status and message as plain text.
// Anything else is an internal error and its detail stays in the log.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var domainErr *model.Error
	if !errors.As(err, &domainErr) {
		s.logger.Error("Request failed", zap.String("path", r.URL.Path), zap.Error(err))
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	status := domainErr.StatusCode()
	if status >= http.StatusInternalServerError {
		s.logger.Error("Request failed", zap.String("path", r.URL.Path), zap.Error(err))
	} else {
		s.logger.Debug("Request rejected", zap.String("path", r.URL.Path), zap.Int("status", status), zap.Error(err))
	}
	http.Error(w, domainErr.Message, status)
}

func (s *Server) writeJSON(w http.ResponseWriter, v interface{}) {
	data, err := json.Marshal(v)
	if err != nil {
		s.logger.Error("Failed to marshal response", zap.Error(err))
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Write(data) //nolint:errcheck // header already committed
}
