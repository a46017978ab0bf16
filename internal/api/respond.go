package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"math"
	"net/http"

	"primetrade/internal/apperr"
	"primetrade/internal/otp"
)

type message struct {
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeMessage(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, message{Message: msg})
}

// writeJSONError writes an error body. The browser client reads
// "message" for failures as well as successes.
func writeJSONError(w http.ResponseWriter, status int, msg string) {
	writeMessage(w, status, msg)
}

// writeError maps a domain error to a status and client-safe message.
// Anything unrecognised is logged and reported as a generic 500.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var cd *otp.CooldownError
	switch {
	case errors.Is(err, apperr.ErrValidation), errors.Is(err, apperr.ErrConflict):
		writeJSONError(w, http.StatusBadRequest, apperr.Message(err))
	case errors.Is(err, apperr.ErrNotFound):
		writeJSONError(w, http.StatusNotFound, apperr.Message(err))
	case errors.Is(err, apperr.ErrUnauthorized):
		writeJSONError(w, http.StatusUnauthorized, apperr.Message(err))
	case errors.Is(err, otp.ErrNoPendingCode):
		writeJSONError(w, http.StatusBadRequest, "No OTP found. Please resend.")
	case errors.Is(err, otp.ErrExpired):
		writeJSONError(w, http.StatusBadRequest, "OTP expired. Please resend.")
	case errors.Is(err, otp.ErrMismatch):
		writeJSONError(w, http.StatusBadRequest, "Invalid OTP")
	case errors.As(err, &cd):
		writeJSON(w, http.StatusTooManyRequests, map[string]any{
			"message":     "Please wait before requesting another OTP",
			"retry_after": int(math.Ceil(cd.RetryAfter.Seconds())),
		})
	default:
		s.logger.Error("request failed",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.String("error", err.Error()),
		)
		writeJSONError(w, http.StatusInternalServerError, "Server error")
	}
}
