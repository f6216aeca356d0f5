package repository

import (
	"context"

	"yardtrack/models"
)

type TruckRepository interface {
	GetTruck(ctx context.Context, id string) (*models.Truck, error)
	CreateTruck(ctx context.Context, truck *models.Truck) error
	PatchTruck(ctx context.Context, id string, expectedVersion int64, p Patch) error
	ListTrucks(ctx context.Context, filters []Filter, order *OrderBy) ([]models.Truck, error)
}

type TruckRepo struct {
	Store DocumentStore
}

func NewTruckRepo(store DocumentStore) *TruckRepo {
	return &TruckRepo{Store: store}
}

func (r *TruckRepo) GetTruck(ctx context.Context, id string) (*models.Truck, error) {
	truck := &models.Truck{}
	if err := r.Store.Get(ctx, CollectionTrucks, id, truck); err != nil {
		return nil, err
	}
	return truck, nil
}

func (r *TruckRepo) CreateTruck(ctx context.Context, truck *models.Truck) error {
	if err := r.Store.Create(ctx, CollectionTrucks, truck.ID, truck); err != nil {
		return err
	}
	truck.Version = 1
	return nil
}

func (r *TruckRepo) PatchTruck(ctx context.Context, id string, expectedVersion int64, p Patch) error {
	return r.Store.Patch(ctx, CollectionTrucks, id, expectedVersion, p)
}

func (r *TruckRepo) ListTrucks(ctx context.Context, filters []Filter, order *OrderBy) ([]models.Truck, error) {
	var trucks []models.Truck
	if err := r.Store.Query(ctx, CollectionTrucks, filters, order, &trucks); err != nil {
		return nil, err
	}
	return trucks, nil
}
