package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"yardtrack/models"
	"yardtrack/repository"

	"go.uber.org/zap"
)

// Lifecycle is the truck state machine. Every mutation runs under the truck
// lock against a fresh read and is written conditionally on that version.
type Lifecycle struct {
	deps      Deps
	settings  *Settings
	approvals *Approvals
}

func NewLifecycle(d Deps, settings *Settings, approvals *Approvals) *Lifecycle {
	d = d.withDefaults()
	if settings == nil {
		settings = NewSettings(d)
	}
	if approvals == nil {
		approvals = NewApprovals(d)
	}
	return &Lifecycle{deps: d, settings: settings, approvals: approvals}
}

func truckLockKey(id string) string { return "truck:" + id }

// change is what a transition wants written. An empty patch writes nothing.
type change struct {
	patch repository.Patch
	event string
	note  string
}

func historyPatch(actor models.Actor, at time.Time, event string, status models.TruckStatus, note string) repository.Patch {
	return repository.Patch{
		Set: map[string]any{
			"lastUpdatedAt": at,
			"lastUpdatedBy": actor.Label(),
		},
		Push: map[string]any{
			"history": models.TruckEvent{At: at, By: actor.Label(), Event: event, Status: status, Note: note},
		},
	}
}

func (l *Lifecycle) load(ctx context.Context, id string) (*models.Truck, error) {
	t, err := l.deps.Trucks.GetTruck(ctx, id)
	if err != nil {
		return nil, storeErr(err, "truck "+id)
	}
	return t, nil
}

func (l *Lifecycle) mutate(ctx context.Context, id string, actor models.Actor, fn func(t *models.Truck, at time.Time) (change, error)) (*models.Truck, error) {
	unlock, err := l.deps.Locker.Lock(ctx, truckLockKey(id))
	if err != nil {
		return nil, fmt.Errorf("lock truck %s: %w", id, err)
	}
	defer unlock()

	t, err := l.load(ctx, id)
	if err != nil {
		return nil, err
	}
	at := l.deps.Now()
	c, err := fn(t, at)
	if err != nil {
		return nil, err
	}
	if c.patch.IsEmpty() {
		return t, nil
	}

	p := c.patch
	if c.event != "" {
		status := t.Status
		if s, ok := p.Set["status"].(models.TruckStatus); ok {
			status = s
		}
		p = p.Merge(historyPatch(actor, at, c.event, status, c.note))
	} else {
		p = p.Merge(repository.Patch{Set: map[string]any{
			"lastUpdatedAt": at,
			"lastUpdatedBy": actor.Label(),
		}})
	}

	if err := l.deps.Trucks.PatchTruck(ctx, id, t.Version, p); err != nil {
		return nil, storeErr(err, "truck "+t.TruckNumber)
	}
	if c.event != "" {
		l.deps.Logger.Info("truck transition",
			zap.String("truck_id", id),
			zap.String("truck_number", t.TruckNumber),
			zap.String("event", c.event),
			zap.String("by", actor.ID),
		)
	}
	return l.load(ctx, id)
}

func (l *Lifecycle) Get(ctx context.Context, id string) (*models.Truck, error) {
	return l.load(ctx, id)
}

type RegisterTruckInput struct {
	TruckNumber   string              `json:"truckNumber"`
	DriverName    string              `json:"driverName"`
	DriverMobile  string              `json:"driverMobile"`
	DriverLicense string              `json:"driverLicense"`
	Transporter   string              `json:"transporter"`
	Depot         string              `json:"depot"`
	MaterialType  models.MaterialType `json:"materialType"`
	Supplier      string              `json:"supplier"`
	LRNumber      string              `json:"lrNumber"`
	CapacityKG    int64               `json:"capacityKg"`
	ChannelType   models.ChannelType  `json:"channelType"`
	// AtGate registers a truck that is already standing at the gate.
	AtGate bool `json:"atGate"`
}

func (in RegisterTruckInput) validate() error {
	if strings.TrimSpace(in.TruckNumber) == "" {
		return validationf("truck number is required")
	}
	if strings.TrimSpace(in.DriverName) == "" {
		return validationf("driver name is required")
	}
	if in.MaterialType != "" && !in.MaterialType.IsValid() {
		return validationf("unknown material type %q", in.MaterialType)
	}
	if in.ChannelType != "" && !in.ChannelType.IsValid() {
		return validationf("unknown channel type %q", in.ChannelType)
	}
	if in.CapacityKG < 0 {
		return validationf("capacity must not be negative")
	}
	return nil
}

func (l *Lifecycle) Register(ctx context.Context, actor models.Actor, in RegisterTruckInput) (*models.Truck, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	at := l.deps.Now()
	t := &models.Truck{
		ID:            l.deps.NewID(),
		TruckNumber:   strings.ToUpper(strings.TrimSpace(in.TruckNumber)),
		DriverName:    strings.TrimSpace(in.DriverName),
		DriverMobile:  strings.TrimSpace(in.DriverMobile),
		DriverLicense: strings.TrimSpace(in.DriverLicense),
		Transporter:   strings.TrimSpace(in.Transporter),
		Depot:         strings.TrimSpace(in.Depot),
		MaterialType:  in.MaterialType,
		Supplier:      strings.TrimSpace(in.Supplier),
		LRNumber:      strings.TrimSpace(in.LRNumber),
		CapacityKG:    in.CapacityKG,
		ChannelType:   in.ChannelType,
		Status:        models.StatusUpcoming,
		CreatedAt:     at,
		CreatedBy:     actor.Label(),
	}
	event := models.EventRegistered
	if in.AtGate {
		t.Status = models.StatusAtGate
		t.ArrivedAt = &at
		event = models.EventArrivedAtGate
	}
	t.History = []models.TruckEvent{{At: at, By: actor.Label(), Event: event, Status: t.Status}}

	if err := l.deps.Trucks.CreateTruck(ctx, t); err != nil {
		return nil, storeErr(err, "truck "+t.TruckNumber)
	}
	l.deps.Logger.Info("truck registered",
		zap.String("truck_id", t.ID),
		zap.String("truck_number", t.TruckNumber),
		zap.String("status", string(t.Status)),
	)
	return t, nil
}

// List returns trucks with the given status. The gate queue is FIFO by
// arrival; other lists are newest first. Deleted trucks only show when asked for.
func (l *Lifecycle) List(ctx context.Context, status models.TruckStatus) ([]models.Truck, error) {
	var filters []repository.Filter
	order := repository.Desc("createdAt")
	switch {
	case status == "":
		filters = append(filters, repository.Eq("isDeleted", false))
	case !status.IsValid():
		return nil, validationf("unknown status %q", status)
	case status == models.StatusDeleted:
		filters = append(filters, repository.Eq("status", status))
	default:
		filters = append(filters, repository.Eq("status", status), repository.Eq("isDeleted", false))
		if status == models.StatusAtGate {
			order = repository.Asc("arrivedAt")
		}
	}
	trucks, err := l.deps.Trucks.ListTrucks(ctx, filters, order)
	if err != nil {
		return nil, storeErr(err, "trucks")
	}
	return trucks, nil
}

func (l *Lifecycle) MoveToGate(ctx context.Context, actor models.Actor, id string) (*models.Truck, error) {
	return l.mutate(ctx, id, actor, func(t *models.Truck, at time.Time) (change, error) {
		if err := CanMoveToGate(t).Err(); err != nil {
			return change{}, err
		}
		return change{
			patch: repository.Patch{Set: map[string]any{
				"status":    models.StatusAtGate,
				"arrivedAt": at,
			}},
			event: models.EventArrivedAtGate,
		}, nil
	})
}

// MoveBackToUpcoming undoes the gate visit, clearing its decision and any draft.
func (l *Lifecycle) MoveBackToUpcoming(ctx context.Context, actor models.Actor, id string) (*models.Truck, error) {
	return l.mutate(ctx, id, actor, func(t *models.Truck, at time.Time) (change, error) {
		if err := CanMoveBackToUpcoming(t).Err(); err != nil {
			return change{}, err
		}
		return change{
			patch: repository.Patch{
				Set: map[string]any{"status": models.StatusUpcoming},
				Unset: []string{
					"arrivedAt", "entryStatus", "holdReason", "dockAssigned",
					"plannedDestination", "nextMilestone", "processingDraft",
				},
			},
			event: models.EventMovedBackToUpcoming,
		}, nil
	})
}

type EntryDecisionInput struct {
	Decision    models.EntryStatus `json:"decision"`
	Destination string             `json:"destination"`
	Reason      string             `json:"reason"`
}

// DecideEntry records the gate-keeper decision. Allowed needs a serviceable
// dock or internal parking; held needs a reason.
func (l *Lifecycle) DecideEntry(ctx context.Context, actor models.Actor, id string, in EntryDecisionInput) (*models.Truck, error) {
	if !in.Decision.IsValid() {
		return nil, validationf("unknown entry decision %q", in.Decision)
	}
	in.Destination = strings.TrimSpace(in.Destination)
	in.Reason = strings.TrimSpace(in.Reason)

	if in.Decision == models.EntryAllowed {
		if in.Destination == "" {
			return nil, validationf("a destination is required to allow entry")
		}
	}
	if in.Decision == models.EntryHeld && in.Reason == "" {
		return nil, validationf("a reason is required to hold a truck")
	}

	return l.mutate(ctx, id, actor, func(t *models.Truck, at time.Time) (change, error) {
		if err := CanDecideEntry(t).Err(); err != nil {
			return change{}, err
		}
		if in.Decision == models.EntryAllowed && in.Destination != models.DestinationInternalParking {
			if err := l.settings.serviceableDock(ctx, in.Destination); err != nil {
				return change{}, err
			}
		}
		p := repository.Patch{Set: map[string]any{"entryStatus": in.Decision}}
		note := string(in.Decision)
		switch in.Decision {
		case models.EntryAllowed:
			p.Set["plannedDestination"] = in.Destination
			p.Unset = []string{"holdReason"}
			if in.Destination == models.DestinationInternalParking {
				p.Set["nextMilestone"] = models.MilestoneInternalParking
				p.Unset = append(p.Unset, "dockAssigned")
			} else {
				p.Set["dockAssigned"] = in.Destination
			}
			note += " to " + in.Destination
		case models.EntryHeld:
			p.Set["holdReason"] = in.Reason
			p.Unset = []string{"plannedDestination", "dockAssigned", "nextMilestone"}
			note += ": " + in.Reason
		case models.EntryExternalParking:
			p.Unset = []string{"holdReason", "plannedDestination", "dockAssigned", "nextMilestone"}
		}
		return change{patch: p, event: models.EventEntryDecision, note: note}, nil
	})
}

func (l *Lifecycle) SetChannel(ctx context.Context, actor models.Actor, id string, channel models.ChannelType) (*models.Truck, error) {
	if !channel.IsValid() {
		return nil, validationf("unknown channel type %q", channel)
	}
	return l.mutate(ctx, id, actor, func(t *models.Truck, at time.Time) (change, error) {
		if err := CanSetChannel(t).Err(); err != nil {
			return change{}, err
		}
		if t.ChannelType == channel {
			return change{}, nil
		}
		return change{
			patch: repository.Patch{Set: map[string]any{"channelType": channel}},
			event: models.EventChannelSet,
			note:  string(channel),
		}, nil
	})
}

// DispatchToWeighbridge re-routes a truck parked internally to the weighbridge.
// Status does not change.
func (l *Lifecycle) DispatchToWeighbridge(ctx context.Context, actor models.Actor, id string) (*models.Truck, error) {
	return l.mutate(ctx, id, actor, func(t *models.Truck, at time.Time) (change, error) {
		if err := CanDispatchToWeighbridge(t).Err(); err != nil {
			return change{}, err
		}
		return change{
			patch: repository.Patch{Set: map[string]any{"nextMilestone": models.MilestoneWeighBridge}},
			event: models.EventDispatchedToWeigh,
		}, nil
	})
}

func (l *Lifecycle) AssignDock(ctx context.Context, actor models.Actor, id, dock string) (*models.Truck, error) {
	dock = strings.TrimSpace(dock)
	if dock == "" {
		return nil, validationf("dock is required")
	}
	return l.mutate(ctx, id, actor, func(t *models.Truck, at time.Time) (change, error) {
		if err := CanAssignDock(t).Err(); err != nil {
			return change{}, err
		}
		if err := l.settings.serviceableDock(ctx, dock); err != nil {
			return change{}, err
		}
		return change{
			patch: repository.Patch{
				Set:   map[string]any{"dockAssigned": dock},
				Unset: []string{"unloadingStartedAt", "unloadingCompletedAt"},
			},
			event: models.EventDockAssigned,
			note:  dock,
		}, nil
	})
}

func (l *Lifecycle) StartUnloading(ctx context.Context, actor models.Actor, id string) (*models.Truck, error) {
	return l.mutate(ctx, id, actor, func(t *models.Truck, at time.Time) (change, error) {
		if err := CanStartUnloading(t).Err(); err != nil {
			return change{}, err
		}
		return change{
			patch: repository.Patch{Set: map[string]any{"unloadingStartedAt": at}},
			event: models.EventUnloadingStarted,
			note:  t.DockAssigned,
		}, nil
	})
}

func (l *Lifecycle) CompleteUnloading(ctx context.Context, actor models.Actor, id string) (*models.Truck, error) {
	return l.mutate(ctx, id, actor, func(t *models.Truck, at time.Time) (change, error) {
		if err := CanCompleteUnloading(t).Err(); err != nil {
			return change{}, err
		}
		return change{
			patch: repository.Patch{Set: map[string]any{"unloadingCompletedAt": at}},
			event: models.EventUnloadingCompleted,
			note:  t.DockAssigned,
		}, nil
	})
}

func (l *Lifecycle) Exit(ctx context.Context, actor models.Actor, id string) (*models.Truck, error) {
	return l.mutate(ctx, id, actor, func(t *models.Truck, at time.Time) (change, error) {
		if err := CanExit(t).Err(); err != nil {
			return change{}, err
		}
		return change{
			patch: repository.Patch{Set: map[string]any{
				"status":   models.StatusExited,
				"exitedAt": at,
			}},
			event: models.EventExited,
		}, nil
	})
}

func (l *Lifecycle) SoftDelete(ctx context.Context, actor models.Actor, id string) (*models.Truck, error) {
	return l.mutate(ctx, id, actor, func(t *models.Truck, at time.Time) (change, error) {
		if err := CanSoftDelete(t).Err(); err != nil {
			return change{}, err
		}
		return change{
			patch: repository.Patch{Set: map[string]any{
				"status":    models.StatusDeleted,
				"isDeleted": true,
				"deletedAt": at,
				"deletedBy": actor.Label(),
			}},
			event: models.EventDeleted,
			note:  "from " + string(t.Status),
		}, nil
	})
}
