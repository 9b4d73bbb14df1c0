package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"scorepad/internal/constants"

	"github.com/rs/zerolog"
)

// KVRepository is the device-local key/value table backing the session store.
type KVRepository struct {
	db     *sql.DB
	logger zerolog.Logger
}

func NewKVRepository(sqlDB *sql.DB, logger zerolog.Logger) *KVRepository {
	return &KVRepository{
		db:     sqlDB,
		logger: logger,
	}
}

func (r *KVRepository) Get(ctx context.Context, key string) (string, bool, error) {
	ctx, cancel := context.WithTimeout(ctx, constants.DatabaseTimeout)
	defer cancel()

	var value string
	err := r.db.QueryRowContext(ctx, `SELECT value FROM kv WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to get key %s: %w", key, err)
	}
	return value, true, nil
}

func (r *KVRepository) Set(ctx context.Context, key, value string) error {
	ctx, cancel := context.WithTimeout(ctx, constants.DatabaseTimeout)
	defer cancel()

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO kv (key, value, updated_at) VALUES (?, ?, CURRENT_TIMESTAMP)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, value,
	)
	if err != nil {
		return fmt.Errorf("failed to set key %s: %w", key, err)
	}

	r.logger.Debug().Str("key", key).Int("bytes", len(value)).Msg("kv write")
	return nil
}

func (r *KVRepository) Remove(ctx context.Context, key string) error {
	ctx, cancel := context.WithTimeout(ctx, constants.DatabaseTimeout)
	defer cancel()

	if _, err := r.db.ExecContext(ctx, `DELETE FROM kv WHERE key = ?`, key); err != nil {
		return fmt.Errorf("failed to remove key %s: %w", key, err)
	}
	return nil
}
