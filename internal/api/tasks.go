package api

import (
	"net/http"

	"github.com/Kerhoff/carecircle/internal/models"
)

type ackRequest struct {
	ProofRef string `json:"proof_ref" validate:"omitempty,max=512"`
}

type completeResponse struct {
	Task *models.Task `json:"task"`
	Next *models.Task `json:"next,omitempty"`
}

func (s *Server) handleListTasks(w http.ResponseWriter, r *http.Request) {
	circleID, err := pathID(r, "circleID")
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid circle id")
		return
	}

	tasks, err := s.svc.VisibleTasks(r.Context(), currentUser(r), circleID)
	if err != nil {
		s.respondServiceError(w, err, "list tasks")
		return
	}

	s.respondJSON(w, http.StatusOK, tasks)
}

func (s *Server) handleAckTask(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid task id")
		return
	}

	var req ackRequest
	if !s.decodeJSON(w, r, &req, true) {
		return
	}

	task, err := s.svc.AcknowledgeTask(r.Context(), id, currentUser(r), req.ProofRef)
	if err != nil {
		s.respondServiceError(w, err, "acknowledge task")
		return
	}

	s.respondJSON(w, http.StatusOK, task)
}

func (s *Server) handleCompleteTask(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid task id")
		return
	}

	task, next, err := s.svc.CompleteTask(r.Context(), id, currentUser(r))
	if err != nil {
		s.respondServiceError(w, err, "complete task")
		return
	}

	s.respondJSON(w, http.StatusOK, completeResponse{Task: task, Next: next})
}
