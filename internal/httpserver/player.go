// internal/httpserver/player.go
//
// Anonymous player identity.
// A player is a uuid carried in an HS256 JWT, sent back as an HttpOnly cookie (or as a
// bearer token by non-browser clients). Invalid or missing tokens get a fresh identity.

package httpserver

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

const (
	defaultCookieName = "omnimusle_player"
	devSecret         = "dev_secret_change_me"
	playerTTL         = 365 * 24 * time.Hour
)

type ctxPlayerKey struct{}

// withPlayer resolves the caller's player id and injects it into the request context.
func (s *Server) withPlayer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, ok := s.parsePlayer(bearerOrCookie(r, s.deps.CookieName))
		if !ok {
			id = uuid.NewString()
			token, exp, err := s.signPlayer(id)
			if err != nil {
				log.Error().Err(err).Msg("sign player token")
				http.Error(w, `{"error":"server_error"}`, http.StatusInternalServerError)
				return
			}
			s.setPlayerCookie(w, token, exp)
		}
		ctx := context.WithValue(r.Context(), ctxPlayerKey{}, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// playerID returns the id injected by withPlayer.
func playerID(r *http.Request) string {
	id, _ := r.Context().Value(ctxPlayerKey{}).(string)
	return id
}

// signPlayer creates an HS256 JWT for id.
func (s *Server) signPlayer(id string) (string, time.Time, error) {
	now := s.deps.Now()
	exp := now.Add(playerTTL)
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"id":  id,
		"exp": exp.Unix(),
		"iat": now.Unix(),
	})
	ss, err := t.SignedString([]byte(s.deps.JWTSecret))
	return ss, exp, err
}

// parsePlayer validates a token and returns its player id.
func (s *Server) parsePlayer(tokenStr string) (string, bool) {
	if tokenStr == "" {
		return "", false
	}
	claims := jwt.MapClaims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (interface{}, error) {
		return []byte(s.deps.JWTSecret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(s.deps.Now))
	if err != nil || !token.Valid {
		return "", false
	}
	id, _ := claims["id"].(string)
	if _, err := uuid.Parse(id); err != nil {
		return "", false
	}
	return id, true
}

// setPlayerCookie writes the player cookie with appropriate security attributes.
func (s *Server) setPlayerCookie(w http.ResponseWriter, token string, exp time.Time) {
	sameSite := http.SameSiteLaxMode
	if s.deps.SecureCookies {
		sameSite = http.SameSiteNoneMode // required for third-party contexts when Secure
	}
	http.SetCookie(w, &http.Cookie{
		Name:     s.deps.CookieName,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		Secure:   s.deps.SecureCookies,
		SameSite: sameSite,
		Expires:  exp,
	})
}

// bearerOrCookie extracts a bearer token from the Authorization header or the cookie.
func bearerOrCookie(r *http.Request, cookie string) string {
	if a := r.Header.Get("Authorization"); strings.HasPrefix(strings.ToLower(a), "bearer ") {
		return strings.TrimSpace(a[7:])
	}
	if c, err := r.Cookie(cookie); err == nil {
		return c.Value
	}
	return ""
}
