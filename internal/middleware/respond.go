package middleware

import (
	"encoding/json"
	"net/http"
)

type errorBody struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// respondWithError sends a JSON error response
func respondWithError(w http.ResponseWriter, statusCode int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(errorBody{Error: message, Code: code})
}

// Every authentication failure looks the same to the caller.
func unauthorized(w http.ResponseWriter) {
	respondWithError(w, http.StatusUnauthorized, "unauthorized", "unauthorized")
}

func tooManyRequests(w http.ResponseWriter) {
	respondWithError(w, http.StatusTooManyRequests, "rate_limited", "rate limit exceeded")
}
