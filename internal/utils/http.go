package utils

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog/log"
)

type ErrorMessage struct {
	Error string `json:"error"`
}

// LogAndHTTPError logs the error, then writes it to w as a JSON ErrorMessage with the given status code.
// debug describes what was being attempted.
func LogAndHTTPError(w http.ResponseWriter, err error, debug string, code int) {
	if shouldLog(err) {
		log.Error().Err(err).Msg(debug)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	msg := "unknown error"
	if err != nil {
		msg = err.Error()
	}
	_ = json.NewEncoder(w).Encode(&ErrorMessage{Error: msg})
}

func shouldLog(err error) bool {
	return !errors.Is(err, context.Canceled)
}

// WriteJSON encodes v as the response body.
func WriteJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	err := json.NewEncoder(w).Encode(v)
	if err != nil {
		log.Err(err).Msg("error encoding response")
	}
}
