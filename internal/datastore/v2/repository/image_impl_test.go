package repository

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tphakala/trailcam-go/internal/datastore/v2/entities"
	"github.com/tphakala/trailcam-go/internal/errors"
)

func TestImageRepository_CreateAndGet(t *testing.T) {
	db := setupTestDB(t)
	repo := NewImageRepository(db)

	rec := createImage(t, repo, "bear.jpg")

	got, err := repo.GetByID(t.Context(), rec.ID)
	require.NoError(t, err)
	assert.Equal(t, "bear.jpg", got.Name)
	assert.Equal(t, "image/jpeg", got.ContentType)
	assert.Equal(t, rec.Data, got.Data)
	assert.Equal(t, rec.Size, got.Size)
	assert.False(t, got.CreatedAt.IsZero())
}

func TestImageRepository_CreateRejectsPresetID(t *testing.T) {
	repo := NewImageRepository(setupTestDB(t))

	err := repo.Create(t.Context(), &entities.ImageRecord{ID: 7, ContentType: "image/png"})
	require.Error(t, err)
}

func TestImageRepository_IDsAreUnique(t *testing.T) {
	repo := NewImageRepository(setupTestDB(t))

	seen := make(map[uint]bool)
	for range 5 {
		rec := createImage(t, repo, "same.jpg")
		assert.False(t, seen[rec.ID], "id %d assigned twice", rec.ID)
		seen[rec.ID] = true
	}
}

func TestImageRepository_GetByIDNotFound(t *testing.T) {
	repo := NewImageRepository(setupTestDB(t))

	_, err := repo.GetByID(t.Context(), 999)
	require.ErrorIs(t, err, ErrImageNotFound)
}

func TestImageRepository_ListOrderedWithoutBytes(t *testing.T) {
	repo := NewImageRepository(setupTestDB(t))

	first := createImage(t, repo, "a.jpg")
	second := createImage(t, repo, "b.jpg")

	metas, err := repo.List(t.Context())
	require.NoError(t, err)
	require.Len(t, metas, 2)
	assert.Equal(t, first.ID, metas[0].ID)
	assert.Equal(t, second.ID, metas[1].ID)
	assert.Equal(t, "b.jpg", metas[1].Name)
	assert.Equal(t, second.Size, metas[1].Size)
}

func TestImageRepository_ListEmpty(t *testing.T) {
	repo := NewImageRepository(setupTestDB(t))

	metas, err := repo.List(t.Context())
	require.NoError(t, err)
	assert.NotNil(t, metas)
	assert.Empty(t, metas)
}

func TestImageRepository_DeleteRemovesPrediction(t *testing.T) {
	db := setupTestDB(t)
	images := NewImageRepository(db)
	predictions := NewPredictionRepository(db)

	rec := createImage(t, images, "doe.jpg")
	require.NoError(t, predictions.Create(t.Context(), &entities.PredictionRecord{
		ImageID:  rec.ID,
		Species:  strPtr("virginianus"),
		Score:    0.7,
		Detected: true,
	}))

	deleted, err := images.Delete(t.Context(), rec.ID)
	require.NoError(t, err)
	assert.Equal(t, rec.ID, deleted.ID)

	_, err = images.GetByID(t.Context(), rec.ID)
	require.ErrorIs(t, err, ErrImageNotFound)
	_, err = predictions.GetByImageID(t.Context(), rec.ID)
	require.ErrorIs(t, err, ErrPredictionNotFound)
}

func TestImageRepository_DeleteNotFound(t *testing.T) {
	repo := NewImageRepository(setupTestDB(t))

	_, err := repo.Delete(t.Context(), 42)
	require.True(t, errors.Is(err, ErrImageNotFound))
}
