package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/rohits-web03/dispatch/internal/repositories"
)

// SessionStore is the session registry: session id to user id.
type SessionStore interface {
	Set(ctx context.Context, sessionID string, userID uint, ttl time.Duration) error
	Get(ctx context.Context, sessionID string) (uint, error)
	Delete(ctx context.Context, sessionID string) error
}

// Session claims
type sessionClaims struct {
	UserID uint `json:"uid"`
	jwt.RegisteredClaims
}

// SessionService mints and resolves session tokens. A token is a signed JWT
// whose id names an entry in the registry; signing out deletes the entry, so
// a token is only as good as its registry entry.
type SessionService struct {
	store  SessionStore
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewSessionService(store SessionStore, secret string, ttl time.Duration) *SessionService {
	return &SessionService{store: store, secret: []byte(secret), ttl: ttl, now: time.Now}
}

func (s *SessionService) TTL() time.Duration { return s.ttl }

func (s *SessionService) Create(ctx context.Context, userID uint) (string, error) {
	now := s.now()
	claims := &sessionClaims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("sign session: %w", err)
	}
	if err := s.store.Set(ctx, claims.ID, userID, s.ttl); err != nil {
		return "", err
	}
	return token, nil
}

// Resolve returns the user id behind a live session token.
func (s *SessionService) Resolve(ctx context.Context, token string) (uint, error) {
	claims, err := s.parse(token, true)
	if err != nil {
		return 0, &Error{Kind: KindUnauthenticated, Message: "invalid session", Err: err}
	}
	userID, err := s.store.Get(ctx, claims.ID)
	if errors.Is(err, repositories.ErrSessionNotFound) {
		return 0, &Error{Kind: KindUnauthenticated, Message: "session expired or signed out"}
	}
	if err != nil {
		return 0, err
	}
	if userID != claims.UserID {
		return 0, &Error{Kind: KindUnauthenticated, Message: "invalid session"}
	}
	return userID, nil
}

// Revoke deletes the registry entry of token. Tokens that do not parse have
// nothing to revoke.
func (s *SessionService) Revoke(ctx context.Context, token string) error {
	claims, err := s.parse(token, false)
	if err != nil {
		return nil
	}
	return s.store.Delete(ctx, claims.ID)
}

func (s *SessionService) parse(token string, validate bool) (*sessionClaims, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(s.now),
	}
	if !validate {
		opts = append(opts, jwt.WithoutClaimsValidation())
	}
	claims := &sessionClaims{}
	_, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return s.secret, nil
	}, opts...)
	if err != nil {
		return nil, err
	}
	if claims.ID == "" {
		return nil, errors.New("session token has no id")
	}
	return claims, nil
}
