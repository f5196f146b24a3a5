package httptransport

import (
	"encoding/json"
	"net/http"
)

// apiError is the error body for endpoints that do not return a full
// job result. It carries the same kind tag as result payloads so
// callers branch on one taxonomy everywhere.
type apiError struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeErr(w http.ResponseWriter, code int, kind, msg string) {
	writeJSON(w, code, apiError{Kind: kind, Message: msg})
}
