package repository

import (
	"context"

	"yardtrack/models"
)

type WeightRepository interface {
	CreateWeightRecord(ctx context.Context, rec *models.WeightRecord) error
	PatchWeightRecord(ctx context.Context, id string, expectedVersion int64, p Patch) error
	WeightRecordsForTruck(ctx context.Context, truckID string) ([]models.WeightRecord, error)
}

type WeightRepo struct {
	Store DocumentStore
}

func NewWeightRepo(store DocumentStore) *WeightRepo {
	return &WeightRepo{Store: store}
}

// CreateWeightRecord fails with ErrDuplicate when the truck already has a
// reading in the same slot.
func (r *WeightRepo) CreateWeightRecord(ctx context.Context, rec *models.WeightRecord) error {
	if err := r.Store.Create(ctx, CollectionWeightRecords, rec.ID, rec); err != nil {
		return err
	}
	rec.Version = 1
	return nil
}

func (r *WeightRepo) PatchWeightRecord(ctx context.Context, id string, expectedVersion int64, p Patch) error {
	return r.Store.Patch(ctx, CollectionWeightRecords, id, expectedVersion, p)
}

func (r *WeightRepo) WeightRecordsForTruck(ctx context.Context, truckID string) ([]models.WeightRecord, error) {
	var recs []models.WeightRecord
	err := r.Store.Query(ctx, CollectionWeightRecords,
		[]Filter{Eq("truckId", truckID)}, Asc("weightNumber"), &recs)
	if err != nil {
		return nil, err
	}
	return recs, nil
}
