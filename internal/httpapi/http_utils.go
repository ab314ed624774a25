package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/Tiliavir/showrun/internal/playback"
	"github.com/Tiliavir/showrun/internal/rundown"
)

const maxBodyBytes = 1 << 20

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"error": msg,
	})
}

// statusFor maps engine errors to HTTP status codes.
func statusFor(err error) int {
	var verr *rundown.ValidationError
	var ierr *rundown.DataIntegrityError
	switch {
	case errors.As(err, &verr):
		return http.StatusBadRequest
	case errors.Is(err, rundown.ErrNotFound):
		return http.StatusNotFound
	case errors.As(err, &ierr):
		return http.StatusConflict
	case errors.Is(err, playback.ErrInvalidTransition),
		errors.Is(err, playback.ErrNothingLoaded),
		errors.Is(err, playback.ErrScheduleEnded):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) writeEngineError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		s.log.Error("httpapi: %v", err)
	}
	writeError(w, status, err.Error())
}

// decode reads a JSON body into v, rejecting unknown fields.
func decode(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}
