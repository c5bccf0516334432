package handler

import (
	"encoding/json"
	"net/http"

	"go-image-playground/internal/service"
)

type AuthHandler struct {
	auth *service.AuthService
}

func NewAuthHandler(auth *service.AuthService) *AuthHandler {
	return &AuthHandler{auth: auth}
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Login compares the submitted credentials against the configured pair and
// issues the session cookie on a match. The mismatch message stays generic
// on purpose.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()

	var payload loginRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	if !h.auth.ValidCredentials(payload.Username, payload.Password) {
		writeMessage(w, http.StatusUnauthorized, "Invalid username or password")
		return
	}

	http.SetCookie(w, h.auth.SessionCookie())
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

// Logout clears the session cookie unconditionally.
func (h *AuthHandler) Logout(w http.ResponseWriter, _ *http.Request) {
	http.SetCookie(w, h.auth.ExpiredCookie())
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}
