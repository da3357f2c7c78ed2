package httpapi

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/pitchroom/pitchroom/internal/catalog"
)

func (s *Server) handleListCourses(w http.ResponseWriter, r *http.Request) {
	if s.courses == nil {
		respondError(w, http.StatusNotImplemented, "unavailable", "course catalog not configured")
		return
	}
	courses, err := s.courses.List(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, "catalog_error", err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"courses": courses})
}

func (s *Server) handleGetCourse(w http.ResponseWriter, r *http.Request) {
	if s.courses == nil {
		respondError(w, http.StatusNotImplemented, "unavailable", "course catalog not configured")
		return
	}
	id := strings.TrimSpace(chi.URLParam(r, "id"))
	if id == "" {
		respondError(w, http.StatusBadRequest, "invalid_course_id", "missing course id")
		return
	}
	course, err := s.courses.Get(r.Context(), id)
	if errors.Is(err, catalog.ErrCourseNotFound) {
		respondError(w, http.StatusNotFound, "course_not_found", err.Error())
		return
	}
	if err != nil {
		respondError(w, http.StatusInternalServerError, "catalog_error", err.Error())
		return
	}
	respondJSON(w, http.StatusOK, course)
}
