package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"hifz_attendance_notifier/internal/domain/student"

	"github.com/google/uuid"
	"github.com/lib/pq" // For pq.Array
)

type PostgresStudentRepository struct {
	db *sql.DB
}

func NewPostgresStudentRepository(db *sql.DB) *PostgresStudentRepository {
	return &PostgresStudentRepository{db: db}
}

var _ student.Repository = (*PostgresStudentRepository)(nil)

const studentColumns = `id, class_id, name, absence_level, consecutive_absences, is_adult, notification_phones, is_active, created_at, updated_at`

func (r *PostgresStudentRepository) GetByID(ctx context.Context, id uuid.UUID) (*student.Student, error) {
	query := `SELECT ` + studentColumns + ` FROM students WHERE id = $1`
	s, err := scanStudent(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, student.ErrNotFound
		}
		return nil, fmt.Errorf("error getting student by ID: %w", err)
	}
	return s, nil
}

func (r *PostgresStudentRepository) ListActiveByClass(ctx context.Context, classID uuid.UUID) ([]*student.Student, error) {
	query := `SELECT ` + studentColumns + ` FROM students
               WHERE class_id = $1 AND is_active = TRUE
               ORDER BY name ASC, id ASC`
	rows, err := r.db.QueryContext(ctx, query, classID)
	if err != nil {
		return nil, fmt.Errorf("error listing students by class: %w", err)
	}
	defer rows.Close()

	var students []*student.Student
	for rows.Next() {
		s, err := scanStudent(rows)
		if err != nil {
			return nil, fmt.Errorf("error scanning student: %w", err)
		}
		students = append(students, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating students: %w", err)
	}
	return students, nil
}

func scanStudent(row rowScanner) (*student.Student, error) {
	s := &student.Student{}
	var phones []string
	err := row.Scan(&s.ID, &s.ClassID, &s.Name, &s.AbsenceLevel, &s.ConsecutiveAbsences, &s.IsAdult,
		pq.Array(&phones), &s.IsActive, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		return nil, err
	}
	s.NotificationPhones = phones
	return s, nil
}
