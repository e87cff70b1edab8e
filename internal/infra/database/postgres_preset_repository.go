package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"hifz_attendance_notifier/internal/domain/preset"
)

type PostgresPresetRepository struct {
	db *sql.DB
}

func NewPostgresPresetRepository(db *sql.DB) *PostgresPresetRepository {
	return &PostgresPresetRepository{db: db}
}

var _ preset.Repository = (*PostgresPresetRepository)(nil)

// FindFirst breaks ties between duplicate presets by lowest id.
func (r *PostgresPresetRepository) FindFirst(ctx context.Context, t preset.Type, level int, isAdult bool) (*preset.Preset, error) {
	query := `SELECT id, type, level, is_adult, message, updated_at
               FROM notification_presets
               WHERE type = $1 AND level = $2 AND is_adult = $3
               ORDER BY id ASC
               LIMIT 1`
	p := &preset.Preset{}
	err := r.db.QueryRowContext(ctx, query, t, level, isAdult).Scan(&p.ID, &p.Type, &p.Level, &p.IsAdult, &p.Message, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, preset.ErrNotFound
		}
		return nil, fmt.Errorf("error finding notification preset: %w", err)
	}
	return p, nil
}
