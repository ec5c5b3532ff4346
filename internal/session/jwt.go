package session

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TokenTypeSession is the typ claim of session tokens.
const TokenTypeSession = "session"

// DefaultLeeway is the clock skew tolerated when validating tokens.
const DefaultLeeway = 30 * time.Second

// ErrInvalidToken is returned when token validation fails.
var ErrInvalidToken = errors.New("invalid token")

// ErrExpiredToken is returned when the token has expired.
var ErrExpiredToken = errors.New("token has expired")

// Claims are the session token claims.
type Claims struct {
	jwt.RegisteredClaims
	Type string `json:"typ"`
}

// TokenService validates HS256 session tokens minted by the login service.
// Tokens are accepted under either the current or the previous secret, so
// the secret can be rotated without logging everyone out.
type TokenService struct {
	currentSecret  []byte
	previousSecret []byte
	leeway         time.Duration
}

// NewTokenService creates a token service. previousSecret may be empty when
// no rotation is in progress.
func NewTokenService(currentSecret, previousSecret string) *TokenService {
	svc := &TokenService{
		currentSecret: []byte(currentSecret),
		leeway:        DefaultLeeway,
	}
	if previousSecret != "" {
		svc.previousSecret = []byte(previousSecret)
	}
	return svc
}

// Validate parses and validates a session token.
func (s *TokenService) Validate(tokenString string) (*Claims, error) {
	claims, err := s.parse(tokenString, s.currentSecret)
	if err == nil {
		return claims, nil
	}

	if s.previousSecret != nil {
		if prev, prevErr := s.parse(tokenString, s.previousSecret); prevErr == nil {
			return prev, nil
		}
	}

	if errors.Is(err, jwt.ErrTokenExpired) {
		return nil, ErrExpiredToken
	}
	return nil, ErrInvalidToken
}

func (s *TokenService) parse(tokenString string, secret []byte) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if token.Method.Alg() != jwt.SigningMethodHS256.Alg() {
			return nil, ErrInvalidToken
		}
		return secret, nil
	}, jwt.WithLeeway(s.leeway))
	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.Type != TokenTypeSession || claims.Subject == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// JWTStore resolves sessions from a signed token in the session cookie.
type JWTStore struct {
	tokens     *TokenService
	cookieName string
}

// NewJWTStore creates a store reading cookieName. An empty name uses
// DefaultCookieName.
func NewJWTStore(tokens *TokenService, cookieName string) *JWTStore {
	if cookieName == "" {
		cookieName = DefaultCookieName
	}
	return &JWTStore{tokens: tokens, cookieName: cookieName}
}

// Lookup implements Store.
func (s *JWTStore) Lookup(_ context.Context, cookies []*http.Cookie) (*Session, error) {
	raw := cookieValue(cookies, s.cookieName)
	if raw == "" {
		return nil, nil
	}

	claims, err := s.tokens.Validate(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidSession, err)
	}
	return &Session{UserID: claims.Subject}, nil
}
