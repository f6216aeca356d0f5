package repository

import (
	"context"
	"errors"
)

type SettingsRepository interface {
	// GetSettings decodes the named settings document into out and reports
	// whether it exists.
	GetSettings(ctx context.Context, name string, out any) (bool, error)
	PatchSettings(ctx context.Context, name string, expectedVersion int64, p Patch) error
}

type SettingsRepo struct {
	Store DocumentStore
}

func NewSettingsRepo(store DocumentStore) *SettingsRepo {
	return &SettingsRepo{Store: store}
}

func (r *SettingsRepo) GetSettings(ctx context.Context, name string, out any) (bool, error) {
	if err := r.Store.Get(ctx, CollectionSettings, name, out); err != nil {
		if errors.Is(err, ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// PatchSettings merge-writes a settings document, creating it when absent.
func (r *SettingsRepo) PatchSettings(ctx context.Context, name string, expectedVersion int64, p Patch) error {
	p.Upsert = true
	return r.Store.Patch(ctx, CollectionSettings, name, expectedVersion, p)
}
