package shared

import (
	"context"
	"errors"
	"time"

	"github.com/metalyard/metalyard/internal/platform/db"
)

// IdempotencyStore persists processed request keys per tenant and scope.
type IdempotencyStore struct {
	db db.DBTX
}

// NewIdempotencyStore constructs the store.
func NewIdempotencyStore(conn db.DBTX) *IdempotencyStore {
	return &IdempotencyStore{db: conn}
}

// ErrIdempotencyConflict indicates a duplicate key.
var ErrIdempotencyConflict = NewError(KindConflict, "idempotent request already processed")

// Claim records key for (tenant, scope) and fails with ErrIdempotencyConflict when it was seen before.
func (s *IdempotencyStore) Claim(ctx context.Context, tenant, scope, key string) error {
	if s == nil || s.db == nil {
		return errors.New("idempotency store not initialised")
	}
	if tenant == "" || scope == "" || key == "" {
		return errors.New("idempotency tenant, scope and key required")
	}
	_, err := s.db.Exec(ctx, `INSERT INTO idempotency_keys (user_id, scope, key, created_at) VALUES ($1, $2, $3, $4)`, tenant, scope, key, time.Now().UTC())
	if err != nil {
		if db.IsUniqueViolation(err) {
			return ErrIdempotencyConflict
		}
		return err
	}
	return nil
}

// Cleanup removes entries older than retention and returns how many were dropped.
func (s *IdempotencyStore) Cleanup(ctx context.Context, olderThan time.Duration) (int64, error) {
	if s == nil || s.db == nil {
		return 0, nil
	}
	cutoff := time.Now().UTC().Add(-olderThan)
	tag, err := s.db.Exec(ctx, `DELETE FROM idempotency_keys WHERE created_at < $1`, cutoff)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
