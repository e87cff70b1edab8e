package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"hifz_attendance_notifier/internal/domain/class"

	"github.com/google/uuid"
)

type PostgresClassRepository struct {
	db *sql.DB
}

func NewPostgresClassRepository(db *sql.DB) *PostgresClassRepository {
	return &PostgresClassRepository{db: db}
}

func (r *PostgresClassRepository) GetByID(ctx context.Context, id uuid.UUID) (*class.Class, error) {
	query := `SELECT id, name, created_at FROM classes WHERE id = $1`
	c := &class.Class{}
	err := r.db.QueryRowContext(ctx, query, id).Scan(&c.ID, &c.Name, &c.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, class.ErrNotFound
		}
		return nil, fmt.Errorf("error getting class by ID: %w", err)
	}
	return c, nil
}
