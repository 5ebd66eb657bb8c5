package store

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"sync"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"vitalrisk/internal/access"
	"vitalrisk/internal/profile/models"
	"vitalrisk/internal/risk"
	id "vitalrisk/pkg/domain"
	"vitalrisk/pkg/platform/sentinel"
)

// patientRow is the gorm mapping of the patients table.
type patientRow struct {
	ID              string `gorm:"primaryKey;type:text"`
	Email           string `gorm:"not null;uniqueIndex"`
	Role            string `gorm:"not null"`
	FirstName       string `gorm:"not null;default:''"`
	LastName        string `gorm:"not null;default:''"`
	Gender          string `gorm:"not null;default:''"`
	Age             *int
	WorkType        string `gorm:"not null;default:''"`
	ResidenceType   string `gorm:"not null;default:''"`
	EverMarried     *bool
	Hypertension    *bool
	HeartDisease    *bool
	AvgGlucoseLevel *float64
	BMI             *float64 `gorm:"column:bmi"`
	SmokingStatus   string   `gorm:"not null;default:''"`
	Stroke          *bool
	RiskScore       float64   `gorm:"not null;default:0"`
	CreatedAt       time.Time `gorm:"not null;index;autoCreateTime:false"`
	UpdatedAt       time.Time `gorm:"not null;autoUpdateTime:false"`
}

func (patientRow) TableName() string { return "patients" }

// mutableColumns are the only columns Execute writes. role and email are absent.
var mutableColumns = []string{
	"first_name", "last_name", "gender", "age", "work_type", "residence_type", "ever_married",
	"hypertension", "heart_disease", "avg_glucose_level", "bmi", "smoking_status", "stroke",
	"risk_score", "updated_at",
}

// GormStore persists profiles through gorm. It backs the single-node SQLite
// deployment. SQLite has no row locks, so Execute pairs a per-patient mutex
// with a gorm transaction.
type GormStore struct {
	db     *gorm.DB
	shards [numShards]sync.Mutex
}

func NewGorm(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

// AutoMigrate creates or updates the patients table.
func (s *GormStore) AutoMigrate() error {
	return s.db.AutoMigrate(&patientRow{})
}

func (s *GormStore) CreateIfEmailAvailable(ctx context.Context, p *models.Profile) error {
	row := toRow(p)
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return fmt.Errorf("email %s: %w", row.Email, sentinel.ErrAlreadyUsed)
		}
		return fmt.Errorf("insert patient: %w", err)
	}
	return nil
}

func (s *GormStore) FindByID(ctx context.Context, pid id.PatientID) (*models.Profile, error) {
	return s.first(s.db.WithContext(ctx).Where("id = ?", pid.String()))
}

func (s *GormStore) FindByEmail(ctx context.Context, email string) (*models.Profile, error) {
	return s.first(s.db.WithContext(ctx).Where("email = ?", models.NormalizeEmail(email)))
}

func (s *GormStore) List(ctx context.Context) ([]*models.Profile, error) {
	var rows []patientRow
	if err := s.db.WithContext(ctx).Order("created_at DESC").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list patients: %w", err)
	}
	return fromRows(rows)
}

func (s *GormStore) Execute(ctx context.Context, pid id.PatientID, validate func(*models.Profile) error, mutate func(*models.Profile)) (*models.Profile, error) {
	lock := s.lockFor(pid)
	lock.Lock()
	defer lock.Unlock()

	var out *models.Profile
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		p, err := s.first(tx.Where("id = ?", pid.String()))
		if err != nil {
			return err
		}
		if err := validate(p); err != nil {
			return err
		}
		original := p.Clone()
		mutate(p)
		keepIdentity(p, original)
		out = p
		if unchanged(original, p) {
			return nil
		}

		row := toRow(p)
		if err := tx.Model(&patientRow{}).Where("id = ?", row.ID).Select(mutableColumns).Updates(&row).Error; err != nil {
			return fmt.Errorf("update patient: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *GormStore) Delete(ctx context.Context, pid id.PatientID) error {
	lock := s.lockFor(pid)
	lock.Lock()
	defer lock.Unlock()

	res := s.db.WithContext(ctx).Where("id = ?", pid.String()).Delete(&patientRow{})
	if res.Error != nil {
		return fmt.Errorf("delete patient: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *GormStore) Stats(ctx context.Context, since time.Time, recentLimit int) (*models.Stats, error) {
	var agg struct {
		Total   int
		High    int
		Average float64
	}
	err := s.db.WithContext(ctx).Model(&patientRow{}).
		Select("COUNT(*) AS total, COALESCE(SUM(CASE WHEN risk_score >= ? THEN 1 ELSE 0 END), 0) AS high, COALESCE(AVG(risk_score), 0) AS average", risk.HighThreshold).
		Scan(&agg).Error
	if err != nil {
		return nil, fmt.Errorf("patient stats: %w", err)
	}

	var rows []patientRow
	err = s.db.WithContext(ctx).
		Where("created_at >= ?", since.UTC()).
		Order("created_at DESC").
		Limit(recentLimit).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("recent patients: %w", err)
	}
	recent, err := fromRows(rows)
	if err != nil {
		return nil, err
	}
	return &models.Stats{
		TotalPatients: agg.Total,
		HighRiskCount: agg.High,
		AverageRisk:   agg.Average,
		Recent:        recent,
	}, nil
}

func (s *GormStore) first(q *gorm.DB) (*models.Profile, error) {
	var row patientRow
	if err := q.Take(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find patient: %w", err)
	}
	return fromRow(row)
}

func (s *GormStore) lockFor(pid id.PatientID) *sync.Mutex {
	h := fnv.New32a()
	_, _ = h.Write(pid[:])
	return &s.shards[h.Sum32()%numShards]
}

func toRow(p *models.Profile) patientRow {
	return patientRow{
		ID:              p.ID.String(),
		Email:           models.NormalizeEmail(p.Email),
		Role:            string(p.Role),
		FirstName:       p.Demographics.FirstName,
		LastName:        p.Demographics.LastName,
		Gender:          p.Demographics.Gender,
		Age:             p.Demographics.Age,
		WorkType:        p.Demographics.WorkType,
		ResidenceType:   p.Demographics.ResidenceType,
		EverMarried:     p.Demographics.EverMarried,
		Hypertension:    p.Clinical.Hypertension,
		HeartDisease:    p.Clinical.HeartDisease,
		AvgGlucoseLevel: p.Clinical.AvgGlucoseLevel,
		BMI:             p.Clinical.BMI,
		SmokingStatus:   string(p.Clinical.SmokingStatus),
		Stroke:          p.Clinical.Stroke,
		RiskScore:       p.RiskScore,
		CreatedAt:       p.CreatedAt.UTC(),
		UpdatedAt:       p.UpdatedAt.UTC(),
	}
}

func fromRow(r patientRow) (*models.Profile, error) {
	pid, err := uuid.Parse(r.ID)
	if err != nil {
		return nil, fmt.Errorf("parse patient id %q: %w", r.ID, err)
	}
	return &models.Profile{
		ID:    id.PatientID(pid),
		Email: r.Email,
		Role:  access.Role(r.Role),
		Demographics: models.Demographics{
			FirstName:     r.FirstName,
			LastName:      r.LastName,
			Gender:        r.Gender,
			Age:           r.Age,
			WorkType:      r.WorkType,
			ResidenceType: r.ResidenceType,
			EverMarried:   r.EverMarried,
		},
		Clinical: models.Clinical{
			Hypertension:    r.Hypertension,
			HeartDisease:    r.HeartDisease,
			AvgGlucoseLevel: r.AvgGlucoseLevel,
			BMI:             r.BMI,
			SmokingStatus:   risk.SmokingStatus(r.SmokingStatus),
			Stroke:          r.Stroke,
		},
		RiskScore: r.RiskScore,
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}, nil
}

func fromRows(rows []patientRow) ([]*models.Profile, error) {
	out := make([]*models.Profile, 0, len(rows))
	for _, r := range rows {
		p, err := fromRow(r)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}
