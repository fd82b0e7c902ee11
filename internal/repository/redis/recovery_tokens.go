package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Skillial/CSSECDV-Case-Study/internal/core/port"
	"github.com/Skillial/CSSECDV-Case-Study/internal/repository"
)

// RecoveryTokenRepository keeps the short-lived tokens that bind the recovery
// verify step to the subsequent password reset. Keys hold only the hashed
// token and the account id it was issued for.
type RecoveryTokenRepository struct {
	client *redis.Client
	prefix string
}

// NewRecoveryTokenRepository constructs a Redis-backed recovery token store.
func NewRecoveryTokenRepository(client *redis.Client, prefix string) *RecoveryTokenRepository {
	if prefix == "" {
		prefix = "occasio:recovery"
	}
	return &RecoveryTokenRepository{client: client, prefix: prefix}
}

func (r *RecoveryTokenRepository) key(tokenHash string) string {
	return fmt.Sprintf("%s:%s", r.prefix, tokenHash)
}

// Save stores the hashed token for the account with the supplied TTL.
func (r *RecoveryTokenRepository) Save(ctx context.Context, tokenHash string, accountID int64, ttl time.Duration) error {
	if err := r.client.Set(ctx, r.key(tokenHash), accountID, ttl).Err(); err != nil {
		return fmt.Errorf("redis set recovery token: %w", err)
	}
	return nil
}

// Consume resolves the token to an account id and invalidates it in one step.
func (r *RecoveryTokenRepository) Consume(ctx context.Context, tokenHash string) (int64, error) {
	value, err := r.client.GetDel(ctx, r.key(tokenHash)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, repository.ErrNotFound
		}
		return 0, fmt.Errorf("redis getdel recovery token: %w", err)
	}

	accountID, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse recovery token account id: %w", err)
	}

	return accountID, nil
}

// Peek resolves the token without invalidating it.
func (r *RecoveryTokenRepository) Peek(ctx context.Context, tokenHash string) (int64, error) {
	value, err := r.client.Get(ctx, r.key(tokenHash)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, repository.ErrNotFound
		}
		return 0, fmt.Errorf("redis get recovery token: %w", err)
	}

	accountID, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse recovery token account id: %w", err)
	}

	return accountID, nil
}

var _ port.RecoveryTokenStore = (*RecoveryTokenRepository)(nil)
