package api

import (
	"net/http"

	"github.com/Kerhoff/carecircle/internal/models"
)

type locationRequest struct {
	Lat *float64 `json:"lat" validate:"required,gte=-90,lte=90"`
	Lon *float64 `json:"lon" validate:"required,gte=-180,lte=180"`
}

type vitalRequest struct {
	Kind     string           `json:"kind" validate:"required,max=32"`
	Value    *float64         `json:"value" validate:"required"`
	Audience *models.Audience `json:"audience" validate:"omitempty"`
}

func (s *Server) handleLocation(w http.ResponseWriter, r *http.Request) {
	var req locationRequest
	if !s.decodeJSON(w, r, &req, false) {
		return
	}

	if err := s.svc.RecordLocation(r.Context(), currentUser(r), *req.Lat, *req.Lon); err != nil {
		s.respondServiceError(w, err, "record location")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleHeartbeat(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.RecordHeartbeat(r.Context(), currentUser(r)); err != nil {
		s.respondServiceError(w, err, "record heartbeat")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleVital(w http.ResponseWriter, r *http.Request) {
	var req vitalRequest
	if !s.decodeJSON(w, r, &req, false) {
		return
	}

	reading, err := s.svc.RecordVital(r.Context(), currentUser(r), req.Kind, *req.Value, req.Audience)
	if err != nil {
		s.respondServiceError(w, err, "record vital")
		return
	}

	s.respondJSON(w, http.StatusCreated, reading)
}
