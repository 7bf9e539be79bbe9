package demosrv

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

type tokenResponse struct {
	TokenType   string `json:"token_type"`
	AccessToken string `json:"access_token"`
	ExpiresIn   int64  `json:"expires_in"`
}

// handleToken implements the client-credentials grant. The client
// secret is verified against its bcrypt hash; the issued token is an
// HS256 JWT signed with the server's JWT key.
func (s *Server) handleToken(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "unreadable form", http.StatusBadRequest)
		return
	}

	if r.Form.Get("grant_type") != "client_credentials" {
		http.Error(w, "unsupported grant type", http.StatusBadRequest)
		return
	}
	if r.Form.Get("client_id") != s.cfg.ClientID {
		http.Error(w, "unknown client", http.StatusUnauthorized)
		return
	}
	err := bcrypt.CompareHashAndPassword(
		[]byte(s.cfg.ClientSecretHash),
		[]byte(r.Form.Get("client_secret")))
	if err != nil {
		http.Error(w, "invalid client secret", http.StatusUnauthorized)
		return
	}

	ttl := s.cfg.tokenTTL()
	now := s.now()
	claims := jwt.RegisteredClaims{
		ID:        uuid.New().String(),
		Subject:   s.cfg.ClientID,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.cfg.JWTKey)
	if err != nil {
		http.Error(w, "could not issue token", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(tokenResponse{
		TokenType:   "Bearer",
		AccessToken: signed,
		ExpiresIn:   int64(ttl / time.Second),
	})
}
