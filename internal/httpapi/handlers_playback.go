package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/Tiliavir/showrun/internal/automation"
	"github.com/Tiliavir/showrun/internal/engine"
)

// GET /api/playback
func (s *Server) handleGetPlayback(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.engine.Snapshot())
}

// POST /api/playback/load/{id}
func (s *Server) handleLoad(w http.ResponseWriter, r *http.Request) {
	if err := s.engine.Load(chi.URLParam(r, "id")); err != nil {
		s.writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.engine.Snapshot())
}

// control wraps a parameterless playback action and answers with the
// resulting snapshot.
func (s *Server) control(action func() error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := action(); err != nil {
			s.writeEngineError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, s.engine.Snapshot())
	}
}

type addTimeRequest struct {
	// Time is milliseconds ("-30000") or a duration ("1m30s").
	Time string `json:"time"`
}

// POST /api/playback/addtime
func (s *Server) handleAddTime(w http.ResponseWriter, r *http.Request) {
	var req addTimeRequest
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	ms, err := engine.ParseAddTime(req.Time)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := s.engine.AddTime(ms); err != nil {
		s.writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.engine.Snapshot())
}

// GET /api/automation
func (s *Server) handleGetAutomation(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.engine.AutomationSettings())
}

// PUT /api/automation
func (s *Server) handlePutAutomation(w http.ResponseWriter, r *http.Request) {
	var settings automation.Settings
	if err := decode(r, &settings); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := s.engine.SetAutomationSettings(settings); err != nil {
		s.writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.engine.AutomationSettings())
}
