package api

import (
	"net/http"

	"github.com/tvmmachans/Customo/internal/auth"
)

type registerRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	auth.Profile
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type changePasswordRequest struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
}

// handleRegister creates a CUSTOMER account and signs it in.
func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	session, err := s.auth.Register(r.Context(), req.Email, req.Password, req.Profile)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeData(w, http.StatusCreated, "User registered successfully", session)
}

// handleLogin exchanges credentials for a bearer token.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	session, err := s.auth.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, "Login successful", session)
}

// handleMe returns the caller's account.
func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	writeData(w, http.StatusOK, "", map[string]any{"user": userFrom(r.Context())})
}

// handleUpdateProfile replaces the caller's personal fields.
func (s *Server) handleUpdateProfile(w http.ResponseWriter, r *http.Request) {
	var req auth.Profile
	if !decodeJSON(w, r, &req) {
		return
	}

	user, err := s.auth.UpdateProfile(r.Context(), userFrom(r.Context()).ID, req)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, "Profile updated successfully", map[string]any{"user": user})
}

// handleChangePassword verifies the current password and stores a new one.
func (s *Server) handleChangePassword(w http.ResponseWriter, r *http.Request) {
	var req changePasswordRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	if err := s.auth.ChangePassword(r.Context(), userFrom(r.Context()).ID, req.CurrentPassword, req.NewPassword); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, "Password updated successfully", nil)
}
