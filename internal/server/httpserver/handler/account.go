package handler

import (
	"net/http"
	"time"

	"github.com/yndnr/chathub-go/internal/core/service"
)

// handleRegister handles POST /api/register.
func (h *Handler) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req CredentialsRequest
	if err := decodeJSON(r, &req); err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	info, err := h.accounts.Register(r.Context(), &service.RegisterRequest{
		Username: req.Username,
		Password: req.Password,
	})
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	h.writeJSON(w, r, http.StatusCreated, RegisterResponse{
		Username:  info.Username,
		CreatedAt: info.CreatedAt,
	})
}

// handleLogin handles POST /api/login. The token is returned in the body
// and set as the session cookie.
func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req CredentialsRequest
	if err := decodeJSON(r, &req); err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	res, err := h.accounts.Login(r.Context(), &service.LoginRequest{
		Username:      req.Username,
		Password:      req.Password,
		SourceAddress: getClientIP(r),
	})
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    res.Token,
		Path:     "/",
		Expires:  res.ExpiresAt,
		HttpOnly: true,
		Secure:   h.secureCookie,
		SameSite: http.SameSiteLaxMode,
	})
	h.writeJSON(w, r, http.StatusOK, LoginResponse{
		Token:     res.Token,
		ExpiresAt: res.ExpiresAt,
		Username:  res.Account.Username,
	})
}

// handleLogout handles POST /api/logout. It always succeeds and clears
// the session cookie.
func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	if token := sessionToken(r); token != "" {
		if err := h.accounts.Logout(r.Context(), token); err != nil {
			h.handleServiceError(w, r, err)
			return
		}
	}

	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    "",
		Path:     "/",
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.secureCookie,
		SameSite: http.SameSiteLaxMode,
	})
	h.writeJSON(w, r, http.StatusOK, map[string]bool{"logged_out": true})
}

// handleMe handles GET /api/me.
func (h *Handler) handleMe(w http.ResponseWriter, r *http.Request) {
	info, err := h.accounts.Whoami(r.Context(), sessionToken(r))
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	h.writeJSON(w, r, http.StatusOK, info)
}
