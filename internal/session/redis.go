package session

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// redisKeyPrefix namespaces session keys.
const redisKeyPrefix = "session:"

// RedisStore resolves sessions by looking an opaque cookie token up in
// Redis. The stored value is the user id.
type RedisStore struct {
	client     *redis.Client
	cookieName string
}

// NewRedisStore creates a store reading cookieName. An empty name uses
// DefaultCookieName.
func NewRedisStore(client *redis.Client, cookieName string) *RedisStore {
	if cookieName == "" {
		cookieName = DefaultCookieName
	}
	return &RedisStore{client: client, cookieName: cookieName}
}

// Lookup implements Store.
func (s *RedisStore) Lookup(ctx context.Context, cookies []*http.Cookie) (*Session, error) {
	token := cookieValue(cookies, s.cookieName)
	if token == "" {
		return nil, nil
	}
	if _, err := uuid.Parse(token); err != nil {
		return nil, fmt.Errorf("%w: malformed token", ErrInvalidSession)
	}

	userID, err := s.client.Get(ctx, redisKeyPrefix+token).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read session: %w", err)
	}

	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, fmt.Errorf("%w: empty user id", ErrInvalidSession)
	}
	return &Session{UserID: userID}, nil
}
