package controllers

import (
	"io"
	"net/http"

	"github.com/bytedance/sonic"
)

var jsonAPI = sonic.ConfigStd

// writeError writes an error response with the given status code and message.
func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = jsonAPI.NewEncoder(w).Encode(map[string]string{"error": message})
}

// writeJSON writes a JSON response with the given data.
func writeJSON(w http.ResponseWriter, data any) {
	writeJSONStatus(w, http.StatusOK, data)
}

func writeJSONStatus(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = jsonAPI.NewEncoder(w).Encode(data)
}

// decodeBody decodes a JSON request body into v.
func decodeBody(r io.Reader, v any) error {
	return jsonAPI.NewDecoder(r).Decode(v)
}
