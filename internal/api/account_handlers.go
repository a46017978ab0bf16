package api

import (
	"encoding/json"
	"net/http"
	"strings"

	"primetrade/internal/auth"
	"primetrade/internal/otp"
)

const maxJSONBody = 1 << 20

// decodeJSON reads the request body into v, writing a 400 on failure.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBody)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeJSONError(w, http.StatusBadRequest, "Invalid request payload")
		return false
	}
	return true
}

func (s *Server) register(w http.ResponseWriter, r *http.Request) {
	var req auth.RegisterRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	res, err := s.accounts.Register(r.Context(), req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	msg := "User registered. OTP sent to email for verification"
	if !res.OTPSent {
		msg = "User registered, but the OTP email could not be sent. Please resend."
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"message": msg,
		"user":    res.User,
	})
}

func (s *Server) login(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	res, err := s.accounts.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"message": "Login successful",
		"token":   res.Token,
		"user":    res.User,
	})
}

func (s *Server) verifyOTP(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email string `json:"email"`
		OTP   string `json:"otp"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Email) == "" || strings.TrimSpace(req.OTP) == "" {
		writeJSONError(w, http.StatusBadRequest, "Email and OTP are required")
		return
	}
	// The code is compared exactly as submitted.
	outcome, err := s.codes.Verify(r.Context(), req.Email, req.OTP)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if outcome == otp.AlreadyVerified {
		writeMessage(w, http.StatusOK, "Already verified")
		return
	}
	writeMessage(w, http.StatusOK, "Email verified successfully")
}

type emailBody struct {
	Email string `json:"email"`
}

func (s *Server) resendOTP(w http.ResponseWriter, r *http.Request) {
	var req emailBody
	if !decodeJSON(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Email) == "" {
		writeJSONError(w, http.StatusBadRequest, "Email is required")
		return
	}
	outcome, err := s.codes.Resend(r.Context(), req.Email)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if outcome == otp.AlreadyVerified {
		writeMessage(w, http.StatusOK, "Already verified")
		return
	}
	writeMessage(w, http.StatusOK, "OTP resent to email")
}

func (s *Server) requestPasswordOTP(w http.ResponseWriter, r *http.Request) {
	var req emailBody
	if !decodeJSON(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Email) == "" {
		writeJSONError(w, http.StatusBadRequest, "Email is required")
		return
	}
	if err := s.codes.RequestPasswordChange(r.Context(), req.Email); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeMessage(w, http.StatusOK, "OTP sent to email")
}

func (s *Server) me(w http.ResponseWriter, r *http.Request) {
	profile, err := s.accounts.Me(r.Context(), userIDFrom(r.Context()))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"user": profile})
}

func (s *Server) updateProfile(w http.ResponseWriter, r *http.Request) {
	var req auth.ProfileRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	updated, err := s.accounts.UpdateProfile(r.Context(), req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"message": "Profile updated successfully",
		"user":    updated,
	})
}
