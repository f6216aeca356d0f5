package services

import (
	"time"

	"yardtrack/repository"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Deps carries the collaborators shared by the services.
type Deps struct {
	Trucks    repository.TruckRepository
	Approvals repository.ApprovalRepository
	Weights   repository.WeightRepository
	Settings  repository.SettingsRepository
	Locker    Locker
	Logger    *zap.Logger
	Now       func() time.Time
	NewID     func() string
}

// NewDeps wires the repositories over one document store.
func NewDeps(store repository.DocumentStore, locker Locker, log *zap.Logger) Deps {
	return Deps{
		Trucks:    repository.NewTruckRepo(store),
		Approvals: repository.NewApprovalRepo(store),
		Weights:   repository.NewWeightRepo(store),
		Settings:  repository.NewSettingsRepo(store),
		Locker:    locker,
		Logger:    log,
	}.withDefaults()
}

func (d Deps) withDefaults() Deps {
	if d.Locker == nil {
		d.Locker = NewLocalLocker()
	}
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	if d.Now == nil {
		d.Now = func() time.Time { return time.Now().UTC() }
	}
	if d.NewID == nil {
		d.NewID = uuid.NewString
	}
	return d
}
