package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/Sternrassler/restaurant-directory/pkg/directory"
	"github.com/Sternrassler/restaurant-directory/pkg/logging"
	"github.com/Sternrassler/restaurant-directory/pkg/restaurant"
	"github.com/Sternrassler/restaurant-directory/pkg/store"
)

// maxBodyBytes bounds JSON request bodies.
const maxBodyBytes = 1 << 20

// Response is the body of write operations and failures.
type Response struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}

// CreateRequest is the body of POST /restaurants.
type CreateRequest struct {
	Name    string `json:"name"`
	Cuisine string `json:"cuisine"`
	Region  string `json:"region"`
}

// RatingRequest is the body of POST /restaurants/rating.
type RatingRequest struct {
	Name   string   `json:"name"`
	Rating *float64 `json:"rating"`
}

func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req CreateRequest
	if !decode(w, r, &req) {
		return
	}
	if err := s.svc.Create(r.Context(), req.Name, req.Cuisine, req.Region); err != nil {
		s.fail(w, r, "Error creating restaurant", err)
		return
	}
	writeJSON(w, http.StatusOK, Response{Success: true})
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	v, err := s.svc.Get(r.Context(), r.PathValue("name"))
	if err != nil {
		s.fail(w, r, "Error getting restaurant", err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.Delete(r.Context(), r.PathValue("name")); err != nil {
		s.fail(w, r, "Error deleting restaurant", err)
		return
	}
	writeJSON(w, http.StatusOK, Response{Success: true})
}

func (s *Server) handleRate(w http.ResponseWriter, r *http.Request) {
	var req RatingRequest
	if !decode(w, r, &req) {
		return
	}
	if req.Rating == nil {
		s.fail(w, r, "Error updating rating", fmt.Errorf("%w: rating is required", restaurant.ErrInvalid))
		return
	}
	if err := s.svc.Rate(r.Context(), req.Name, *req.Rating); err != nil {
		s.fail(w, r, "Error updating rating", err)
		return
	}
	writeJSON(w, http.StatusOK, Response{Success: true})
}

// handleQuery serves all three filtered routes; absent path values leave
// the corresponding filter field empty.
func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	limit := parseLimit(r.URL.Query().Get("limit"))

	f := store.Filter{
		Cuisine: r.PathValue("cuisine"),
		Region:  r.PathValue("region"),
	}
	views, err := s.svc.Query(r.Context(), f, limit)
	if err != nil {
		s.fail(w, r, "Error getting restaurants", err)
		return
	}
	writeJSON(w, http.StatusOK, views)
}

// parseLimit reads the leading integer of raw, ignoring any trailing text.
// Empty or non-numeric input means no limit. A supplied number is clamped,
// so an explicit zero becomes the minimum.
func parseLimit(raw string) int {
	s := strings.TrimLeft(raw, " \t\n\r")
	end := 0
	if end < len(s) && (s[end] == '+' || s[end] == '-') {
		end++
	}
	digits := end
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	if end == digits {
		return 0
	}

	n, err := strconv.Atoi(s[:end])
	if err != nil {
		// Out of range: the sign decides which bound applies.
		if s[0] == '-' {
			return directory.MinLimit
		}
		return directory.MaxLimit
	}
	if n < directory.MinLimit {
		n = directory.MinLimit
	}
	return directory.ClampLimit(n)
}

// fail maps err to a status code and failure body. message describes
// the operation for 400-class backend failures.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, message string, err error) {
	logger := logging.FromContext(r.Context(), s.logger)

	switch {
	case errors.Is(err, restaurant.ErrDuplicate):
		writeJSON(w, http.StatusConflict, Response{Message: "Restaurant already exists"})
	case errors.Is(err, restaurant.ErrNotFound):
		writeJSON(w, http.StatusNotFound, Response{Message: "Restaurant not found"})
	case errors.Is(err, restaurant.ErrInvalid):
		writeJSON(w, http.StatusBadRequest, Response{Message: message, Error: err.Error()})
	default:
		logger.Error().Err(err).Msg(message)
		writeJSON(w, http.StatusBadRequest, Response{Message: message, Error: err.Error()})
	}
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, Response{Message: "Invalid request body", Error: err.Error()})
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
