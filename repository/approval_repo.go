package repository

import (
	"context"

	"yardtrack/models"
)

type ApprovalRepository interface {
	GetApproval(ctx context.Context, id string) (*models.ApprovalRequest, error)
	CreateApproval(ctx context.Context, req *models.ApprovalRequest) error
	PatchApproval(ctx context.Context, id string, expectedVersion int64, p Patch) error
	ListApprovals(ctx context.Context, filters []Filter) ([]models.ApprovalRequest, error)
}

type ApprovalRepo struct {
	Store DocumentStore
}

func NewApprovalRepo(store DocumentStore) *ApprovalRepo {
	return &ApprovalRepo{Store: store}
}

func (r *ApprovalRepo) GetApproval(ctx context.Context, id string) (*models.ApprovalRequest, error) {
	req := &models.ApprovalRequest{}
	if err := r.Store.Get(ctx, CollectionApprovals, id, req); err != nil {
		return nil, err
	}
	return req, nil
}

func (r *ApprovalRepo) CreateApproval(ctx context.Context, req *models.ApprovalRequest) error {
	if err := r.Store.Create(ctx, CollectionApprovals, req.ID, req); err != nil {
		return err
	}
	req.Version = 1
	return nil
}

func (r *ApprovalRepo) PatchApproval(ctx context.Context, id string, expectedVersion int64, p Patch) error {
	return r.Store.Patch(ctx, CollectionApprovals, id, expectedVersion, p)
}

// ListApprovals returns matching requests, newest first.
func (r *ApprovalRepo) ListApprovals(ctx context.Context, filters []Filter) ([]models.ApprovalRequest, error) {
	var reqs []models.ApprovalRequest
	if err := r.Store.Query(ctx, CollectionApprovals, filters, Desc("requestedAt"), &reqs); err != nil {
		return nil, err
	}
	return reqs, nil
}
