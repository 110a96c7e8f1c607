package server

import (
	"encoding/json"
	"errors"
	"net/http"
)

// createCommentRequest is the JSON body for POST /v1/comments.
type createCommentRequest struct {
	Name    string `json:"name"`
	Message string `json:"message"`
}

// handleListComments handles GET /v1/comments.
func (s *BoardServer) handleListComments(w http.ResponseWriter, r *http.Request) {
	comments, err := s.ListComments(r.Context())
	if err != nil {
		s.logger.Error("list comments failed", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list comments")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"comments": comments})
}

// handleCreateComment handles POST /v1/comments.
func (s *BoardServer) handleCreateComment(w http.ResponseWriter, r *http.Request) {
	var req createCommentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	c, err := s.CreateComment(r.Context(), req.Name, req.Message)
	if err != nil {
		var ie inputError
		if errors.As(err, &ie) {
			writeError(w, http.StatusBadRequest, ie.Error())
			return
		}
		s.logger.Error("create comment failed", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to create comment")
		return
	}
	writeJSON(w, http.StatusCreated, c)
}

// handleGetComment handles GET /v1/comments/{id}.
func (s *BoardServer) handleGetComment(w http.ResponseWriter, r *http.Request) {
	c, err := s.GetComment(r.Context(), r.PathValue("id"))
	switch {
	case isNotFound(err):
		writeError(w, http.StatusNotFound, "comment not found")
	case err != nil:
		writeError(w, http.StatusInternalServerError, "failed to get comment")
	default:
		writeJSON(w, http.StatusOK, c)
	}
}

// handleDeleteComment handles DELETE /v1/comments/{id}.
func (s *BoardServer) handleDeleteComment(w http.ResponseWriter, r *http.Request) {
	err := s.DeleteComment(r.Context(), r.PathValue("id"))
	switch {
	case isNotFound(err):
		writeError(w, http.StatusNotFound, "comment not found")
	case err != nil:
		s.logger.Error("delete comment failed", "comment_id", r.PathValue("id"), "error", err)
		writeError(w, http.StatusInternalServerError, "failed to delete comment")
	default:
		w.WriteHeader(http.StatusNoContent)
	}
}
