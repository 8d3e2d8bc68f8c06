package auth

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// TokenRegistry tracks live token ids in Redis so logout can revoke them.
type TokenRegistry struct {
	client *redis.Client
}

// NewTokenRegistry constructs the registry.
func NewTokenRegistry(client *redis.Client) *TokenRegistry {
	return &TokenRegistry{client: client}
}

func tokenKey(jti string) string {
	return "auth:token:" + jti
}

// Register records jti for userID until ttl elapses.
func (r *TokenRegistry) Register(ctx context.Context, jti string, userID int64, ttl time.Duration) error {
	return r.client.Set(ctx, tokenKey(jti), userID, ttl).Err()
}

// Active reports whether jti is still registered.
func (r *TokenRegistry) Active(ctx context.Context, jti string) (bool, error) {
	n, err := r.client.Exists(ctx, tokenKey(jti)).Result()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// Revoke forgets jti.
func (r *TokenRegistry) Revoke(ctx context.Context, jti string) error {
	return r.client.Del(ctx, tokenKey(jti)).Err()
}

// CodeStore keeps one-time second factor codes.
type CodeStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewCodeStore constructs the store; codes expire after ttl.
func NewCodeStore(client *redis.Client, ttl time.Duration) *CodeStore {
	return &CodeStore{client: client, ttl: ttl}
}

func codeKey(challenge string) string {
	return "auth:2fa:" + challenge
}

// Issue creates a challenge for userID and returns it with its six digit code.
func (s *CodeStore) Issue(ctx context.Context, userID int64) (string, string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1_000_000))
	if err != nil {
		return "", "", err
	}
	code := fmt.Sprintf("%06d", n.Int64())
	challenge := uuid.NewString()
	value := strconv.FormatInt(userID, 10) + ":" + code
	if err := s.client.Set(ctx, codeKey(challenge), value, s.ttl).Err(); err != nil {
		return "", "", err
	}
	return challenge, code, nil
}

// Consume checks code against challenge. The challenge is removed on the first
// attempt whatever its outcome.
func (s *CodeStore) Consume(ctx context.Context, challenge, code string) (int64, error) {
	value, err := s.client.GetDel(ctx, codeKey(challenge)).Result()
	if errors.Is(err, redis.Nil) {
		return 0, ErrInvalidCode
	}
	if err != nil {
		return 0, err
	}
	id, stored, ok := strings.Cut(value, ":")
	if !ok || stored != code {
		return 0, ErrInvalidCode
	}
	userID, err := strconv.ParseInt(id, 10, 64)
	if err != nil {
		return 0, ErrInvalidCode
	}
	return userID, nil
}
