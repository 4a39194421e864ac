package httptransport

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"ppt2video/internal/entity"
)

type apiError struct {
	Message string `json:"message"`
	Limit   *int   `json:"limit,omitempty"`
	Count   *int   `json:"count,omitempty"`
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeErr(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, apiError{Message: msg})
}

// writeServiceErr maps domain errors onto HTTP statuses. Anything
// unrecognized is a 500 with the detail kept server-side.
func writeServiceErr(w http.ResponseWriter, err error) {
	var quotaErr *entity.QuotaError
	switch {
	case errors.As(err, &quotaErr):
		writeJSON(w, http.StatusTooManyRequests, apiError{
			Message: quotaErr.Error(),
			Limit:   &quotaErr.Limit,
			Count:   &quotaErr.Count,
		})
	case errors.Is(err, entity.ErrNotFound):
		writeErr(w, http.StatusNotFound, "task not found")
	case errors.Is(err, entity.ErrForbidden):
		writeErr(w, http.StatusForbidden, "task belongs to another user")
	case errors.Is(err, entity.ErrInvalid):
		writeErr(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, entity.ErrNoResult):
		writeErr(w, http.StatusConflict, "task has no result yet")
	case errors.Is(err, entity.ErrTerminal):
		writeErr(w, http.StatusConflict, "task already finished")
	default:
		log.Printf("[http] internal error=%v", err)
		writeErr(w, http.StatusInternalServerError, "internal error")
	}
}
