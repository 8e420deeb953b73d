package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const DefaultSessionTTL = 24 * time.Hour

// Session is what the login callback keeps about the signed-in user.
type Session struct {
	User        map[string]any `json:"user"`
	AccessToken string         `json:"access_token,omitempty"`
	TokenType   string         `json:"token_type,omitempty"`
	Expiry      time.Time      `json:"expiry,omitempty"`
}

// UserID is the provider's subject claim, "" when absent.
func (s *Session) UserID() string {
	sub, _ := s.User["sub"].(string)
	return sub
}

type sessionClaims struct {
	Session
	jwt.RegisteredClaims
}

// Sessions signs and verifies session tokens with an HMAC secret.
type Sessions struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewSessions(secret string, ttl time.Duration) (*Sessions, error) {
	if secret == "" {
		return nil, errors.New("session secret is required")
	}
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	return &Sessions{secret: []byte(secret), ttl: ttl, now: time.Now}, nil
}

func (s *Sessions) Sign(sess Session) (string, error) {
	now := s.now()
	claims := sessionClaims{
		Session: sess,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   sess.UserID(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.secret)
}

func (s *Sessions) Parse(tokenString string) (*Session, error) {
	claims := &sessionClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.secret, nil
	}, jwt.WithTimeFunc(s.now))
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, fmt.Errorf("invalid token")
	}
	return &claims.Session, nil
}

func (s *Sessions) TTL() time.Duration { return s.ttl }
