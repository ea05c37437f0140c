package sqlite_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fardannozami/amchegoa/internal/domain"
	"github.com/fardannozami/amchegoa/internal/infra/sqlite"
)

func TestLocationRepository_NoFix(t *testing.T) {
	db, _ := setupTestDB(t)
	repo := sqlite.NewLocationRepository(db)
	require.NoError(t, repo.InitTable(context.Background()))

	_, err := repo.CurrentLocation(context.Background(), "chat1")
	assert.ErrorIs(t, err, domain.ErrLocationUnavailable)
}

func TestLocationRepository_LatestFixWins(t *testing.T) {
	db, _ := setupTestDB(t)
	repo := sqlite.NewLocationRepository(db)
	ctx := context.Background()
	require.NoError(t, repo.InitTable(ctx))

	require.NoError(t, repo.SaveFix(ctx, "chat1", domain.Coordinate{Lat: 15.27, Lng: 73.95}, time.Now()))
	require.NoError(t, repo.SaveFix(ctx, "chat1", domain.Coordinate{Lat: 15.39, Lng: 73.81}, time.Now()))

	got, err := repo.CurrentLocation(ctx, "chat1")
	require.NoError(t, err)
	assert.Equal(t, domain.Coordinate{Lat: 15.39, Lng: 73.81}, got)

	_, err = repo.CurrentLocation(ctx, "chat2")
	assert.ErrorIs(t, err, domain.ErrLocationUnavailable)
}
