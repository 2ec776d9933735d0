package server

import (
	"encoding/json"
	"net/http"
)

// errorBody is the error payload shape: {"detail": "..."}. Clients of the
// previous service depend on this exact field name.
type errorBody struct {
	Detail string `json:"detail"`
}

// writeJSON writes v with the given status code.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"detail":"failed to encode response"}`, http.StatusInternalServerError)
	}
}

func writeError(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, errorBody{Detail: detail})
}

func badRequest(w http.ResponseWriter, detail string) {
	writeError(w, http.StatusBadRequest, detail)
}

func unauthorized(w http.ResponseWriter, detail string) {
	writeError(w, http.StatusUnauthorized, detail)
}

func forbidden(w http.ResponseWriter, detail string) {
	writeError(w, http.StatusForbidden, detail)
}

func notFound(w http.ResponseWriter, detail string) {
	writeError(w, http.StatusNotFound, detail)
}

func internalError(w http.ResponseWriter, detail string) {
	writeError(w, http.StatusInternalServerError, detail)
}
