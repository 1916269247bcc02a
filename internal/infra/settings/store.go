package settings

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"facestudio/internal/infra"
	"facestudio/internal/sqlinline"
)

// Store reads and writes operator managed key/value settings kept in the
// system_configs table.
type Store struct {
	sql infra.SQLExecutor
}

func NewStore(sql infra.SQLExecutor) *Store {
	return &Store{sql: sql}
}

// Value returns the trimmed value stored under key, or "" when unset.
func (s *Store) Value(ctx context.Context, key string) (string, error) {
	row := s.sql.QueryRow(ctx, sqlinline.QSelectSystemConfig, key)
	var value string
	if err := row.Scan(&value); err != nil {
		if infra.IsNoRows(err) {
			return "", nil
		}
		return "", fmt.Errorf("settings: read %s: %w", key, err)
	}
	return strings.TrimSpace(value), nil
}

// SetValue stores value under key, replacing any previous value.
func (s *Store) SetValue(ctx context.Context, key, value string) error {
	key = strings.TrimSpace(key)
	if key == "" {
		return errors.New("settings: key is required")
	}
	value = strings.TrimSpace(value)
	if value == "" {
		return fmt.Errorf("settings: value for %s is required", key)
	}
	if _, err := s.sql.Exec(ctx, sqlinline.QUpsertSystemConfig, key, value); err != nil {
		return fmt.Errorf("settings: write %s: %w", key, err)
	}
	return nil
}
