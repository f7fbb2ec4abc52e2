package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/scheerer/homelights/internal/device"
)

type Error struct {
	Status  int    `json:"status"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

const (
	ErrCodeBadRequest     = "bad_request"
	ErrCodeNotFound       = "not_found"
	ErrCodeNotImplemented = "not_implemented"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		json.NewEncoder(w).Encode(v)
	}
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, Error{Status: status, Code: code, Message: message})
}

func writeBadRequest(w http.ResponseWriter, message string) {
	writeError(w, http.StatusBadRequest, ErrCodeBadRequest, message)
}

// writeResult maps a manager result to a status code: unknown names are
// 404, other rejections 400.
func writeResult[S any](w http.ResponseWriter, res device.Result[S]) {
	switch {
	case res.OK():
		writeJSON(w, http.StatusOK, res)
	case errors.Is(res.Err(), device.ErrUnknownDevice):
		writeJSON(w, http.StatusNotFound, res)
	default:
		writeJSON(w, http.StatusBadRequest, res)
	}
}
