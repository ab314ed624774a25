package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/Tiliavir/showrun/internal/model"
	"github.com/Tiliavir/showrun/internal/rundown"
)

type rundownResponse struct {
	Rundown  model.Rundown  `json:"rundown"`
	Metadata model.Metadata `json:"metadata"`
	Created  string         `json:"created,omitempty"`
}

func fromResult(res rundown.Result) rundownResponse {
	return rundownResponse{Rundown: res.Rundown, Metadata: res.Metadata, Created: res.Created}
}

// handleGetRundown returns the generated rundown with its metadata.
// GET /api/rundown
func (s *Server) handleGetRundown(w http.ResponseWriter, r *http.Request) {
	rd, meta := s.engine.Rundown()
	writeJSON(w, http.StatusOK, rundownResponse{Rundown: rd, Metadata: meta})
}

type insertRequest struct {
	Entry  json.RawMessage `json:"entry"`
	After  string          `json:"after"`
	Before string          `json:"before"`
	Parent string          `json:"parent"`
}

// handleInsertEntry adds an event, delay, group or milestone.
// POST /api/rundown/entries
func (s *Server) handleInsertEntry(w http.ResponseWriter, r *http.Request) {
	var req insertRequest
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if len(req.Entry) == 0 {
		writeError(w, http.StatusBadRequest, "missing entry")
		return
	}
	entry, err := model.DecodeEntry(req.Entry)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	res, err := s.engine.Insert(entry, rundown.InsertOptions{After: req.After, Before: req.Before, Parent: req.Parent})
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, fromResult(res))
}

// handlePatchEntry updates fields of one entry.
// PATCH /api/rundown/entries/{id}
func (s *Server) handlePatchEntry(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var p rundown.Patch
	if err := decode(r, &p); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	res, err := s.engine.Patch(id, p)
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, fromResult(res))
}

type idsRequest struct {
	IDs []string `json:"ids"`
}

// handleDeleteEntries removes entries; groups take their children along.
// DELETE /api/rundown/entries
func (s *Server) handleDeleteEntries(w http.ResponseWriter, r *http.Request) {
	var req idsRequest
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if len(req.IDs) == 0 {
		writeError(w, http.StatusBadRequest, "missing ids")
		return
	}
	res, err := s.engine.Delete(req.IDs...)
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, fromResult(res))
}

type reorderRequest struct {
	ID     string              `json:"id"`
	DestID string              `json:"destId"`
	Mode   rundown.ReorderMode `json:"mode"`
}

// POST /api/rundown/reorder
func (s *Server) handleReorder(w http.ResponseWriter, r *http.Request) {
	var req reorderRequest
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	res, err := s.engine.Reorder(req.ID, req.DestID, req.Mode)
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, fromResult(res))
}

type swapRequest struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// POST /api/rundown/swap
func (s *Server) handleSwap(w http.ResponseWriter, r *http.Request) {
	var req swapRequest
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	res, err := s.engine.Swap(req.From, req.To)
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, fromResult(res))
}

// POST /api/rundown/delays/{id}/apply
func (s *Server) handleApplyDelay(w http.ResponseWriter, r *http.Request) {
	res, err := s.engine.ApplyDelay(chi.URLParam(r, "id"))
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, fromResult(res))
}

// POST /api/rundown/groups
func (s *Server) handleGroup(w http.ResponseWriter, r *http.Request) {
	var req idsRequest
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	res, err := s.engine.Group(req.IDs...)
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, fromResult(res))
}

// DELETE /api/rundown/groups/{id}
func (s *Server) handleUngroup(w http.ResponseWriter, r *http.Request) {
	res, err := s.engine.Ungroup(chi.URLParam(r, "id"))
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, fromResult(res))
}

// GET /api/rundown/custom-fields
func (s *Server) handleListCustomFields(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.engine.CustomFields())
}

// POST /api/rundown/custom-fields
func (s *Server) handleAddCustomField(w http.ResponseWriter, r *http.Request) {
	var f model.CustomField
	if err := decode(r, &f); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if _, err := s.engine.AddCustomField(f); err != nil {
		s.writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, s.engine.CustomFields())
}

// PUT /api/rundown/custom-fields/{label}
func (s *Server) handleEditCustomField(w http.ResponseWriter, r *http.Request) {
	var f model.CustomField
	if err := decode(r, &f); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if _, err := s.engine.EditCustomField(chi.URLParam(r, "label"), f); err != nil {
		s.writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.engine.CustomFields())
}

// DELETE /api/rundown/custom-fields/{label}
func (s *Server) handleRemoveCustomField(w http.ResponseWriter, r *http.Request) {
	if _, err := s.engine.RemoveCustomField(chi.URLParam(r, "label")); err != nil {
		s.writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.engine.CustomFields())
}
