package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/sekolah/school-api/internal/apperr"
	"github.com/sekolah/school-api/internal/model"
)

// Response is the JSON envelope used by every endpoint
type Response struct {
	Success    bool              `json:"success"`
	Message    string            `json:"message,omitempty"`
	Data       interface{}       `json:"data,omitempty"`
	Pagination *model.Pagination `json:"pagination,omitempty"`
	Errors     map[string]string `json:"errors,omitempty"`
}

func (h *Handler) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to encode response", "error", err)
	}
}

func (h *Handler) respondOK(w http.ResponseWriter, status int, message string, data interface{}) {
	h.respondJSON(w, status, Response{Success: true, Message: message, Data: data})
}

func (h *Handler) respondError(w http.ResponseWriter, status int, message string) {
	h.respondJSON(w, status, Response{Success: false, Message: message})
}

// respondErr maps a service error to its HTTP status. Unclassified errors are
// logged and reported as a generic 500.
func (h *Handler) respondErr(w http.ResponseWriter, r *http.Request, err error) {
	var e *apperr.Error
	if !errors.As(err, &e) {
		h.logger.Error("request failed",
			"method", r.Method,
			"path", r.URL.Path,
			"request_id", middleware.GetReqID(r.Context()),
			"error", err,
		)
		h.respondError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	status := e.Status()
	if status >= http.StatusInternalServerError {
		h.logger.Error("request failed",
			"method", r.Method,
			"path", r.URL.Path,
			"request_id", middleware.GetReqID(r.Context()),
			"error", err,
		)
	}
	h.respondJSON(w, status, Response{Success: false, Message: e.Message, Errors: e.Fields})
}

func (h *Handler) decodeJSON(r *http.Request, dst interface{}) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return apperr.Validation("request body too large", nil)
		}
		return apperr.Validation("invalid JSON body", nil)
	}
	return nil
}
