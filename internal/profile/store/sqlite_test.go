//go:build cgo

package store

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"gorm.io/gorm"

	"vitalrisk/internal/access"
	"vitalrisk/internal/platform/sqlite"
	"vitalrisk/internal/profile/models"
	id "vitalrisk/pkg/domain"
)

type GormStoreSuite struct {
	contractSuite
}

func TestGormStoreSuite(t *testing.T) {
	newStore := func() profileStore {
		dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
		db, err := sqlite.Open(dsn, slog.New(slog.NewTextHandler(io.Discard, nil)))
		require.NoError(t, err)
		store := NewGorm(db)
		require.NoError(t, store.AutoMigrate())
		return store
	}
	suite.Run(t, &GormStoreSuite{contractSuite{newStore: newStore}})
}

func TestGormStore_ExecuteSkipsUnchangedWrites(t *testing.T) {
	ctx := context.Background()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := sqlite.Open(dsn, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	store := NewGorm(db)
	require.NoError(t, store.AutoMigrate())

	var updates atomic.Int32
	require.NoError(t, db.Callback().Update().After("gorm:update").Register("test:count_updates", func(*gorm.DB) {
		updates.Add(1)
	}))

	p, err := models.NewProfile(id.NewPatientID(), "idle@example.com", access.RoleUser,
		models.Demographics{FirstName: "Ida", Age: ptr(40)}, time.Now().UTC().Truncate(time.Microsecond))
	require.NoError(t, err)
	require.NoError(t, store.CreateIfEmailAvailable(ctx, p))

	repairIfStale := func(p *models.Profile) {
		if !p.ScoreIsCurrent() {
			p.Rescore()
		}
	}
	got, err := store.Execute(ctx, p.ID, func(*models.Profile) error { return nil }, repairIfStale)
	require.NoError(t, err)
	assert.Equal(t, p.RiskScore, got.RiskScore)
	assert.Zero(t, updates.Load(), "a current profile is not rewritten")

	_, err = store.Execute(ctx, p.ID,
		func(*models.Profile) error { return nil },
		func(p *models.Profile) {
			p.ApplyDemographics(models.DemographicsUpdate{FirstName: ptr("Ivy")}, time.Now())
		},
	)
	require.NoError(t, err)
	assert.Equal(t, int32(1), updates.Load())
}
