package gateway

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"net/http"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/efebarandurmaz/minichat/internal/observability"
	"github.com/efebarandurmaz/minichat/internal/session"
)

// CookieName is the session cookie.
const CookieName = "minichat_session"

var (
	ErrNoSession       = errors.New("no session cookie")
	ErrInvalidCookie   = errors.New("invalid session cookie")
	ErrSessionNotFound = errors.New("session expired")
)

// HashPassword returns a bcrypt hash of password.
func HashPassword(password string) ([]byte, error) {
	return bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
}

func (s *Server) checkPassword(password string) bool {
	return bcrypt.CompareHashAndPassword(s.cfg.PasswordHash, []byte(password)) == nil
}

// sign returns "<id>.<base64url hmac-sha256(id)>".
func sign(secret []byte, id string) string {
	mac := hmac.New(sha256.New, secret)
	mac.Write([]byte(id))
	return id + "." + base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}

// verify returns the session id carried by a signed value.
func verify(secret []byte, value string) (string, error) {
	id, sig, ok := strings.Cut(value, ".")
	if !ok || id == "" {
		return "", ErrInvalidCookie
	}
	got, err := base64.RawURLEncoding.DecodeString(sig)
	if err != nil {
		return "", ErrInvalidCookie
	}
	mac := hmac.New(sha256.New, secret)
	mac.Write([]byte(id))
	if !hmac.Equal(got, mac.Sum(nil)) {
		return "", ErrInvalidCookie
	}
	return id, nil
}

func (s *Server) setSessionCookie(w http.ResponseWriter, id string) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    sign(s.cfg.SessionSecret, id),
		Path:     "/",
		HttpOnly: true,
		Secure:   s.cfg.SecureCookie,
		SameSite: http.SameSiteLaxMode,
	})
}

func (s *Server) clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   s.cfg.SecureCookie,
		SameSite: http.SameSiteLaxMode,
	})
}

// sessionFrom resolves the request's session cookie.
func (s *Server) sessionFrom(r *http.Request) (*session.Session, error) {
	c, err := r.Cookie(CookieName)
	if err != nil {
		return nil, ErrNoSession
	}
	id, err := verify(s.cfg.SessionSecret, c.Value)
	if err != nil {
		return nil, err
	}
	sess, ok := s.sessions.Get(id)
	if !ok {
		return nil, ErrSessionNotFound
	}
	return sess, nil
}

type sessionHandler func(w http.ResponseWriter, r *http.Request, sess *session.Session)

// authenticated rejects requests without a live session with 401.
func (s *Server) authenticated(h sessionHandler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess, err := s.sessionFrom(r)
		if err != nil {
			respondError(w, http.StatusUnauthorized, "Authentication required")
			return
		}
		ctx := observability.WithSessionID(r.Context(), sess.ID)
		h(w, r.WithContext(ctx), sess)
	})
}
