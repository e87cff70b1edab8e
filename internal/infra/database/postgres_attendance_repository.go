// internal/infra/database/postgres_attendance_repository.go
package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"hifz_attendance_notifier/internal/domain/attendance"

	"github.com/google/uuid"
)

type PostgresAttendanceRepository struct {
	db *sql.DB
}

func NewPostgresAttendanceRepository(db *sql.DB) *PostgresAttendanceRepository {
	return &PostgresAttendanceRepository{db: db}
}

var _ attendance.Repository = (*PostgresAttendanceRepository)(nil)

// Upsert relies on attendance_student_class_date_unique; concurrent writers
// for the same key resolve as last write wins.
func (r *PostgresAttendanceRepository) Upsert(ctx context.Context, rec *attendance.Record) error {
	query := `INSERT INTO attendance_records (student_id, class_id, date, status, note, recorded_by)
               VALUES ($1, $2, $3, $4, $5, $6)
               ON CONFLICT ON CONSTRAINT attendance_student_class_date_unique
               DO UPDATE SET status = EXCLUDED.status,
                             note = EXCLUDED.note,
                             recorded_by = EXCLUDED.recorded_by,
                             updated_at = NOW()
               RETURNING created_at, updated_at`
	day := attendance.DayOf(rec.Date)
	err := r.db.QueryRowContext(ctx, query, rec.StudentID, rec.ClassID, day, rec.Status, rec.Note, rec.RecordedBy).
		Scan(&rec.CreatedAt, &rec.UpdatedAt)
	if err != nil {
		return wrapWriteError("error upserting attendance record", err)
	}
	rec.Date = day
	return nil
}

func (r *PostgresAttendanceRepository) Get(ctx context.Context, studentID, classID uuid.UUID, date time.Time) (*attendance.Record, error) {
	query := `SELECT student_id, class_id, date, status, note, recorded_by, created_at, updated_at
               FROM attendance_records
               WHERE student_id = $1 AND class_id = $2 AND date = $3`
	rec, err := scanRecord(r.db.QueryRowContext(ctx, query, studentID, classID, attendance.DayOf(date)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, attendance.ErrRecordNotFound
		}
		return nil, fmt.Errorf("error getting attendance record: %w", err)
	}
	return rec, nil
}

func (r *PostgresAttendanceRepository) ListByClassAndDate(ctx context.Context, classID uuid.UUID, date time.Time) ([]*attendance.Record, error) {
	query := `SELECT student_id, class_id, date, status, note, recorded_by, created_at, updated_at
               FROM attendance_records
               WHERE class_id = $1 AND date = $2`
	rows, err := r.db.QueryContext(ctx, query, classID, attendance.DayOf(date))
	if err != nil {
		return nil, fmt.Errorf("error listing attendance records: %w", err)
	}
	defer rows.Close()

	var records []*attendance.Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("error scanning attendance record: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating attendance records: %w", err)
	}
	return records, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (*attendance.Record, error) {
	rec := &attendance.Record{}
	err := row.Scan(&rec.StudentID, &rec.ClassID, &rec.Date, &rec.Status, &rec.Note, &rec.RecordedBy, &rec.CreatedAt, &rec.UpdatedAt)
	if err != nil {
		return nil, err
	}
	rec.Date = attendance.DayOf(rec.Date)
	return rec, nil
}
