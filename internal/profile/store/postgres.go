package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"vitalrisk/internal/access"
	"vitalrisk/internal/profile/models"
	"vitalrisk/internal/risk"
	id "vitalrisk/pkg/domain"
	"vitalrisk/pkg/platform/sentinel"
)

const uniqueViolation = "23505"

const profileColumns = `id, email, role, first_name, last_name, gender, age, work_type, residence_type, ever_married,
	hypertension, heart_disease, avg_glucose_level, bmi, smoking_status, stroke, risk_score, created_at, updated_at`

// PostgresStore persists profiles in PostgreSQL. Execute locks the row with
// SELECT ... FOR UPDATE for the whole validate-mutate-write unit.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// CreateIfEmailAvailable relies on the unique index over LOWER(email).
func (s *PostgresStore) CreateIfEmailAvailable(ctx context.Context, p *models.Profile) error {
	query := `
		INSERT INTO patients (` + profileColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)
	`
	_, err := s.db.ExecContext(ctx, query,
		p.ID.String(),
		models.NormalizeEmail(p.Email),
		string(p.Role),
		p.Demographics.FirstName,
		p.Demographics.LastName,
		p.Demographics.Gender,
		p.Demographics.Age,
		p.Demographics.WorkType,
		p.Demographics.ResidenceType,
		p.Demographics.EverMarried,
		p.Clinical.Hypertension,
		p.Clinical.HeartDisease,
		p.Clinical.AvgGlucoseLevel,
		p.Clinical.BMI,
		string(p.Clinical.SmokingStatus),
		p.Clinical.Stroke,
		p.RiskScore,
		p.CreatedAt,
		p.UpdatedAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return fmt.Errorf("email %s: %w", p.Email, sentinel.ErrAlreadyUsed)
		}
		return fmt.Errorf("insert patient: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, pid id.PatientID) (*models.Profile, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+profileColumns+` FROM patients WHERE id = $1`, pid.String())
	p, err := scanProfile(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find patient by id: %w", err)
	}
	return p, nil
}

func (s *PostgresStore) FindByEmail(ctx context.Context, email string) (*models.Profile, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+profileColumns+` FROM patients WHERE LOWER(email) = $1`, models.NormalizeEmail(email))
	p, err := scanProfile(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find patient by email: %w", err)
	}
	return p, nil
}

func (s *PostgresStore) List(ctx context.Context) ([]*models.Profile, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+profileColumns+` FROM patients ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list patients: %w", err)
	}
	defer rows.Close()
	return scanProfiles(rows)
}

// Execute runs validate and mutate while holding the row lock, then writes
// every mutable column in one UPDATE. The role column is never written, and
// nothing is written when mutate leaves the profile as it was.
func (s *PostgresStore) Execute(ctx context.Context, pid id.PatientID, validate func(*models.Profile) error, mutate func(*models.Profile)) (*models.Profile, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin patient update: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	row := tx.QueryRowContext(ctx, `SELECT `+profileColumns+` FROM patients WHERE id = $1 FOR UPDATE`, pid.String())
	p, err := scanProfile(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("lock patient: %w", err)
	}

	if err := validate(p); err != nil {
		return nil, err
	}
	original := p.Clone()
	mutate(p)
	keepIdentity(p, original)
	if unchanged(original, p) {
		return p, nil
	}

	query := `
		UPDATE patients SET
			first_name = $2,
			last_name = $3,
			gender = $4,
			age = $5,
			work_type = $6,
			residence_type = $7,
			ever_married = $8,
			hypertension = $9,
			heart_disease = $10,
			avg_glucose_level = $11,
			bmi = $12,
			smoking_status = $13,
			stroke = $14,
			risk_score = $15,
			updated_at = $16
		WHERE id = $1
	`
	_, err = tx.ExecContext(ctx, query,
		pid.String(),
		p.Demographics.FirstName,
		p.Demographics.LastName,
		p.Demographics.Gender,
		p.Demographics.Age,
		p.Demographics.WorkType,
		p.Demographics.ResidenceType,
		p.Demographics.EverMarried,
		p.Clinical.Hypertension,
		p.Clinical.HeartDisease,
		p.Clinical.AvgGlucoseLevel,
		p.Clinical.BMI,
		string(p.Clinical.SmokingStatus),
		p.Clinical.Stroke,
		p.RiskScore,
		p.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("update patient: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit patient update: %w", err)
	}
	return p, nil
}

func (s *PostgresStore) Delete(ctx context.Context, pid id.PatientID) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM patients WHERE id = $1`, pid.String())
	if err != nil {
		return fmt.Errorf("delete patient: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete patient rows affected: %w", err)
	}
	if n == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *PostgresStore) Stats(ctx context.Context, since time.Time, recentLimit int) (*models.Stats, error) {
	stats := &models.Stats{}
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*),
		       COUNT(*) FILTER (WHERE risk_score >= $1),
		       COALESCE(AVG(risk_score), 0)
		FROM patients
	`, risk.HighThreshold).Scan(&stats.TotalPatients, &stats.HighRiskCount, &stats.AverageRisk)
	if err != nil {
		return nil, fmt.Errorf("patient stats: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT `+profileColumns+` FROM patients
		WHERE created_at >= $1
		ORDER BY created_at DESC
		LIMIT $2
	`, since, recentLimit)
	if err != nil {
		return nil, fmt.Errorf("recent patients: %w", err)
	}
	defer rows.Close()
	stats.Recent, err = scanProfiles(rows)
	if err != nil {
		return nil, err
	}
	return stats, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProfile(row rowScanner) (*models.Profile, error) {
	var (
		p             models.Profile
		pid           uuid.UUID
		role, smoking string
		age           sql.NullInt64
		everMarried   sql.NullBool
		hypertension  sql.NullBool
		heartDisease  sql.NullBool
		stroke        sql.NullBool
		glucose       sql.NullFloat64
		bmi           sql.NullFloat64
	)
	err := row.Scan(
		&pid,
		&p.Email,
		&role,
		&p.Demographics.FirstName,
		&p.Demographics.LastName,
		&p.Demographics.Gender,
		&age,
		&p.Demographics.WorkType,
		&p.Demographics.ResidenceType,
		&everMarried,
		&hypertension,
		&heartDisease,
		&glucose,
		&bmi,
		&smoking,
		&stroke,
		&p.RiskScore,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	p.ID = id.PatientID(pid)
	p.Role = access.Role(role)
	p.Clinical.SmokingStatus = risk.SmokingStatus(smoking)
	if age.Valid {
		v := int(age.Int64)
		p.Demographics.Age = &v
	}
	p.Demographics.EverMarried = nullBool(everMarried)
	p.Clinical.Hypertension = nullBool(hypertension)
	p.Clinical.HeartDisease = nullBool(heartDisease)
	p.Clinical.Stroke = nullBool(stroke)
	p.Clinical.AvgGlucoseLevel = nullFloat(glucose)
	p.Clinical.BMI = nullFloat(bmi)
	return &p, nil
}

func scanProfiles(rows *sql.Rows) ([]*models.Profile, error) {
	var out []*models.Profile
	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, fmt.Errorf("scan patient: %w", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate patients: %w", err)
	}
	return out, nil
}

func nullBool(v sql.NullBool) *bool {
	if !v.Valid {
		return nil
	}
	b := v.Bool
	return &b
}

func nullFloat(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float64
	return &f
}
