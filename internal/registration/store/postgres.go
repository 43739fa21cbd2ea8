package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"

	"onboarding/internal/registration/models"
	"onboarding/pkg/platform/sentinel"
)

const uniqueViolation = "23505"

const selectColumns = `id, organisation_name, name, designation, email, infra_setup_done,
	trial_reminder_sent_marks, created_at, updated_at`

// PostgresStore persists registrations in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Create(ctx context.Context, r *models.Registration) error {
	query := `
		INSERT INTO registrations (id, organisation_name, name, designation, email,
			infra_setup_done, trial_reminder_sent_marks, created_at, updated_at)
		VALUES ($1, $2, $3, NULLIF($4, ''), $5, $6, $7, $8, $9)
	`
	_, err := s.db.ExecContext(ctx, query,
		r.ID, r.OrganisationName, r.Name, r.Designation, r.Email,
		r.InfraSetupDone, toInt64Array(r.TrialReminderSentMarks), r.CreatedAt, r.UpdatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return fmt.Errorf("create registration: %w", sentinel.ErrAlreadyUsed)
		}
		return fmt.Errorf("create registration: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, id uuid.UUID) (*models.Registration, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+selectColumns+` FROM registrations WHERE id = $1`, id)
	r, err := scanRegistration(row)
	if err != nil {
		return nil, fmt.Errorf("find registration by id: %w", err)
	}
	return r, nil
}

func (s *PostgresStore) FindByEmail(ctx context.Context, email string) (*models.Registration, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+selectColumns+` FROM registrations WHERE LOWER(email) = LOWER($1)`, strings.TrimSpace(email))
	r, err := scanRegistration(row)
	if err != nil {
		return nil, fmt.Errorf("find registration by email: %w", err)
	}
	return r, nil
}

// MarkInfraSetupDone flips the flag false->true. A second call reports
// ErrInvalidState.
func (s *PostgresStore) MarkInfraSetupDone(ctx context.Context, id uuid.UUID, now time.Time) error {
	var updated uuid.UUID
	err := s.db.QueryRowContext(ctx, `
		UPDATE registrations SET infra_setup_done = TRUE, updated_at = $2
		WHERE id = $1 AND infra_setup_done = FALSE
		RETURNING id
	`, id, now).Scan(&updated)
	if errors.Is(err, sql.ErrNoRows) {
		if _, findErr := s.FindByID(ctx, id); findErr != nil {
			return fmt.Errorf("mark infra setup done: %w", findErr)
		}
		return fmt.Errorf("mark infra setup done: %w", sentinel.ErrInvalidState)
	}
	if err != nil {
		return fmt.Errorf("mark infra setup done: %w", err)
	}
	return nil
}

// AppendReminderMark atomically appends day unless it is already present.
// It reports whether the mark was added by this call.
func (s *PostgresStore) AppendReminderMark(ctx context.Context, id uuid.UUID, day int, now time.Time) (bool, error) {
	var updated uuid.UUID
	err := s.db.QueryRowContext(ctx, `
		UPDATE registrations
		SET trial_reminder_sent_marks = array_append(trial_reminder_sent_marks, $2::integer),
			updated_at = $3
		WHERE id = $1 AND NOT ($2::integer = ANY(trial_reminder_sent_marks))
		RETURNING id
	`, id, day, now).Scan(&updated)
	if errors.Is(err, sql.ErrNoRows) {
		if _, findErr := s.FindByID(ctx, id); findErr != nil {
			return false, fmt.Errorf("append reminder mark: %w", findErr)
		}
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("append reminder mark: %w", err)
	}
	return true, nil
}

func (s *PostgresStore) ListInfraReady(ctx context.Context, createdBefore time.Time) ([]*models.Registration, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+selectColumns+` FROM registrations
		WHERE infra_setup_done = TRUE AND created_at < $1
		ORDER BY created_at
	`, createdBefore)
	if err != nil {
		return nil, fmt.Errorf("list infra ready registrations: %w", err)
	}
	return collect(rows)
}

func (s *PostgresStore) ListFailed(ctx context.Context) ([]*models.Registration, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+selectColumns+` FROM registrations
		WHERE infra_setup_done = FALSE
		ORDER BY created_at
	`)
	if err != nil {
		return nil, fmt.Errorf("list failed registrations: %w", err)
	}
	return collect(rows)
}

func (s *PostgresStore) DeleteByEmails(ctx context.Context, emails []string) (int, error) {
	lowered := make([]string, 0, len(emails))
	for _, e := range emails {
		lowered = append(lowered, strings.ToLower(strings.TrimSpace(e)))
	}
	res, err := s.db.ExecContext(ctx, `DELETE FROM registrations WHERE LOWER(email) = ANY($1)`, pq.Array(lowered))
	if err != nil {
		return 0, fmt.Errorf("delete registrations by email: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete registrations by email: %w", err)
	}
	return int(n), nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRegistration(row scanner) (*models.Registration, error) {
	var (
		r           models.Registration
		designation sql.NullString
		marks       pq.Int64Array
	)
	err := row.Scan(&r.ID, &r.OrganisationName, &r.Name, &designation, &r.Email,
		&r.InfraSetupDone, &marks, &r.CreatedAt, &r.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	r.Designation = designation.String
	r.TrialReminderSentMarks = make([]int, 0, len(marks))
	for _, m := range marks {
		r.TrialReminderSentMarks = append(r.TrialReminderSentMarks, int(m))
	}
	return &r, nil
}

func collect(rows *sql.Rows) ([]*models.Registration, error) {
	defer rows.Close()
	out := make([]*models.Registration, 0)
	for rows.Next() {
		r, err := scanRegistration(rows)
		if err != nil {
			return nil, fmt.Errorf("scan registration: %w", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate registrations: %w", err)
	}
	return out, nil
}

func toInt64Array(marks []int) pq.Int64Array {
	out := make(pq.Int64Array, 0, len(marks))
	for _, m := range marks {
		out = append(out, int64(m))
	}
	return out
}
