package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"photomemo/internal/auth"
)

type AuthHandler struct {
	Svc          *auth.Service
	Log          logrus.FieldLogger
	CookieSecure bool
}

type loginReq struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type credentialsBody struct {
	Error             string `json:"error"`
	Message           string `json:"message"`
	RemainingAttempts int    `json:"remainingAttempts"`
}

func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req auth.RegisterInput
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, h.Log, err)
		return
	}

	u, err := h.Svc.Register(r.Context(), req)
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"user": toUser(u)})
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginReq
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, h.Log, err)
		return
	}

	u, token, err := h.Svc.Login(r.Context(), req.Email, req.Password)
	var cerr *auth.CredentialsError
	if errors.As(err, &cerr) {
		if cerr.Locked {
			writeJSON(w, http.StatusLocked, credentialsBody{
				Error:   "locked",
				Message: "account locked after too many failed logins",
			})
			return
		}
		writeJSON(w, http.StatusUnauthorized, credentialsBody{
			Error:             "invalid_credentials",
			Message:           "invalid credentials",
			RemainingAttempts: cerr.Remaining,
		})
		return
	}
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}

	http.SetCookie(w, h.cookie(token, auth.TokenTTL))
	writeJSON(w, http.StatusOK, map[string]any{"token": token, "user": toUser(u)})
}

func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	uid, _ := auth.UserIDFromContext(r.Context())

	u, err := h.Svc.Me(r.Context(), uid)
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"user": toUser(u)})
}

func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	uid, _ := auth.UserIDFromContext(r.Context())

	if err := h.Svc.Logout(r.Context(), uid); err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	http.SetCookie(w, h.cookie("", -1))
	writeJSON(w, http.StatusOK, map[string]any{"message": "logged out"})
}

func (h *AuthHandler) Users(w http.ResponseWriter, r *http.Request) {
	uid, _ := auth.UserIDFromContext(r.Context())

	users, err := h.Svc.ListUsers(r.Context(), uid)
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	out := make([]userDTO, 0, len(users))
	for i := range users {
		out = append(out, toUser(&users[i]))
	}
	writeJSON(w, http.StatusOK, map[string]any{"users": out})
}

// cookie builds the token cookie. A negative ttl deletes it.
func (h *AuthHandler) cookie(value string, ttl time.Duration) *http.Cookie {
	c := &http.Cookie{
		Name:     auth.CookieName,
		Value:    value,
		Path:     "/",
		HttpOnly: true,
		Secure:   h.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	}
	if ttl < 0 {
		c.MaxAge = -1
	} else {
		c.MaxAge = int(ttl.Seconds())
	}
	return c
}
