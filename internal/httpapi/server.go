// Package httpapi exposes the engine over HTTP.
package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/Tiliavir/showrun/internal/engine"
	"github.com/Tiliavir/showrun/internal/logger"
)

type Server struct {
	engine *engine.Engine
	log    logger.Logger
}

func NewServer(e *engine.Engine, log logger.Logger) *Server {
	if log == nil {
		log = logger.NewNopLogger()
	}
	return &Server{
		engine: e,
		log:    log,
	}
}

func (s *Server) Router(middlewares ...func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()

	for _, mw := range middlewares {
		r.Use(mw)
	}

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", s.handleHealth)

		r.Get("/rundown", s.handleGetRundown)
		r.Post("/rundown/entries", s.handleInsertEntry)
		r.Patch("/rundown/entries/{id}", s.handlePatchEntry)
		r.Delete("/rundown/entries", s.handleDeleteEntries)
		r.Post("/rundown/reorder", s.handleReorder)
		r.Post("/rundown/swap", s.handleSwap)
		r.Post("/rundown/delays/{id}/apply", s.handleApplyDelay)
		r.Post("/rundown/groups", s.handleGroup)
		r.Delete("/rundown/groups/{id}", s.handleUngroup)

		r.Get("/rundown/custom-fields", s.handleListCustomFields)
		r.Post("/rundown/custom-fields", s.handleAddCustomField)
		r.Put("/rundown/custom-fields/{label}", s.handleEditCustomField)
		r.Delete("/rundown/custom-fields/{label}", s.handleRemoveCustomField)

		// Playback
		r.Get("/playback", s.handleGetPlayback)
		r.Post("/playback/load/{id}", s.handleLoad)
		r.Post("/playback/start", s.control(s.engine.Start))
		r.Post("/playback/pause", s.control(s.engine.Pause))
		r.Post("/playback/stop", s.control(s.engine.Stop))
		r.Post("/playback/roll", s.control(s.engine.Roll))
		r.Post("/playback/addtime", s.handleAddTime)

		r.Get("/automation", s.handleGetAutomation)
		r.Put("/automation", s.handlePutAutomation)
	})

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"service": "showrun",
	})
}
