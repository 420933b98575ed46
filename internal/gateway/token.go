package gateway

import (
	"context"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/storyapp/storysync/internal/common"
)

// TokenSource supplies and persists the bearer token for authenticated calls.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
	SetToken(ctx context.Context, token string) error
	ClearToken(ctx context.Context) error
}

// MetadataKV is the slice of the local metadata store the token source needs.
type MetadataKV interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
}

// StoreTokenSource persists the session token in the local metadata store so
// a session survives restarts.
type StoreTokenSource struct {
	kv  MetadataKV
	key string
	now func() time.Time
}

func NewStoreTokenSource(kv MetadataKV, key string) *StoreTokenSource {
	return &StoreTokenSource{kv: kv, key: key, now: time.Now}
}

// Token returns the stored token. An expired token is treated the same as a
// missing one: it is cleared and "" is returned, so the caller re-auths
// instead of sending a request guaranteed to 401.
func (s *StoreTokenSource) Token(ctx context.Context) (string, error) {
	raw, err := s.kv.Get(ctx, s.key)
	if err != nil {
		return "", err
	}
	if raw == nil {
		return "", nil
	}

	token := string(raw)
	if tokenExpired(token, s.now()) {
		if err := s.kv.Delete(ctx, s.key); err != nil {
			return "", err
		}
		return "", nil
	}
	return token, nil
}

func (s *StoreTokenSource) SetToken(ctx context.Context, token string) error {
	if token == "" {
		return fmt.Errorf("%w: empty session token", common.ErrValidation)
	}
	return s.kv.Set(ctx, s.key, []byte(token))
}

func (s *StoreTokenSource) ClearToken(ctx context.Context) error {
	return s.kv.Delete(ctx, s.key)
}

// tokenExpired parses the JWT without verifying its signature (the backend
// is the authority; we only need the exp claim for a local freshness check).
// Tokens that do not parse or carry no exp claim are assumed valid and left
// for the backend to judge.
func tokenExpired(token string, now time.Time) bool {
	claims := jwt.MapClaims{}
	parser := jwt.NewParser()
	if _, _, err := parser.ParseUnverified(token, claims); err != nil {
		return false
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return false
	}
	return exp.Before(now)
}

// StaticTokenSource returns the same token forever. Intended for tests.
type StaticTokenSource string

func (s StaticTokenSource) Token(ctx context.Context) (string, error)        { return string(s), nil }
func (s StaticTokenSource) SetToken(ctx context.Context, token string) error { return nil }
func (s StaticTokenSource) ClearToken(ctx context.Context) error             { return nil }
