package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
)

func respondWithError(w http.ResponseWriter, code int, message string) {
	respondWithJSON(w, code, map[string]string{"error": message})
}

func respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if payload != nil {
		err := json.NewEncoder(w).Encode(payload)
		if err != nil {
			_, _ = fmt.Fprintf(os.Stderr, "ERROR: Failed to encode JSON response: %v\n", err)
		}
	}
}

// decodeJSONBody decodes a size-limited JSON request body into dst. The
// returned status is the one to respond with when err is non-nil.
func decodeJSONBody(w http.ResponseWriter, r *http.Request, maxBytes int64, dst any) (int, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return http.StatusRequestEntityTooLarge, fmt.Errorf("request body exceeds %d bytes", maxBytes)
		}
		return http.StatusBadRequest, fmt.Errorf("invalid JSON request body")
	}
	return http.StatusOK, nil
}
