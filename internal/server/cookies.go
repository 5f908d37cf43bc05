package server

import (
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"

	"tcm-wellness-backend/internal/consult"
	"tcm-wellness-backend/internal/store"
)

const (
	// CookieName is the name of the session cookie
	CookieName = "tcm_session"
	// CookieMaxAge is how long the browser keeps the cookie
	CookieMaxAge = 24 * time.Hour
)

// SetSessionCookie sets an HTTP-only session cookie
func SetSessionCookie(w http.ResponseWriter, r *http.Request, sessionID string) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    sessionID,
		Path:     "/",
		MaxAge:   int(CookieMaxAge.Seconds()),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Secure:   r.TLS != nil,
	})
}

// GetSessionCookie reads the session ID from the cookie
func GetSessionCookie(r *http.Request) (string, error) {
	cookie, err := r.Cookie(CookieName)
	if err != nil {
		return "", err
	}
	return cookie.Value, nil
}

// getSessionID retrieves the session ID from cookie, header or query parameter
func getSessionID(r *http.Request) string {
	if sid, err := GetSessionCookie(r); err == nil && sid != "" {
		return sid
	}
	if sid := r.Header.Get("X-Session-Id"); sid != "" {
		return sid
	}
	return r.URL.Query().Get("sessionId")
}

// sessionID returns the caller's live session, starting a new one when the
// request carries no ID or an unknown one.
func (s *Server) sessionID(w http.ResponseWriter, r *http.Request) (string, error) {
	sid := getSessionID(r)
	if sid != "" {
		if _, err := s.store.Get(sid); err == nil {
			w.Header().Set("X-Session-Id", sid)
			return sid, nil
		} else if !errors.Is(err, store.ErrNotFound) {
			return "", err
		}
	}

	sid = uuid.NewString()
	if err := s.store.Create(consult.NewSession(sid, s.script, s.now())); err != nil {
		return "", err
	}
	s.log.Debug("[session] created", sid, "for", r.URL.Path)
	SetSessionCookie(w, r, sid)
	w.Header().Set("X-Session-Id", sid)
	return sid, nil
}
