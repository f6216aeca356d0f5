package services

import (
	"context"
	"strconv"
	"strings"
	"time"

	"yardtrack/models"
	"yardtrack/repository"

	"go.uber.org/zap"
)

type IssueEquipmentInput struct {
	Kind     models.EquipmentKind `json:"kind"`
	Quantity int64                `json:"quantity"`
	Remarks  string               `json:"remarks"`
}

// IssueEquipment records the quantity of wheel chokes or safety shoes handed
// to a truck. Only the change against the previous issuance is taken from
// inventory, with an atomic increment after the truck write.
func (l *Lifecycle) IssueEquipment(ctx context.Context, actor models.Actor, id string, in IssueEquipmentInput) (*models.Truck, error) {
	if !in.Kind.IsValid() {
		return nil, validationf("unknown equipment kind %q", in.Kind)
	}
	if in.Quantity <= 0 {
		return nil, validationf("quantity must be positive")
	}

	var delta int64
	t, err := l.mutate(ctx, id, actor, func(t *models.Truck, at time.Time) (change, error) {
		if err := CanIssueEquipment(t).Err(); err != nil {
			return change{}, err
		}
		var previous int64
		if prev := issuedOf(t, in.Kind); prev != nil {
			previous = prev.Quantity
		}
		delta = in.Quantity - previous
		if delta > 0 {
			inv, err := l.settings.SafetyEquipment(ctx)
			if err != nil {
				return change{}, err
			}
			if avail := inv.Available(in.Kind); delta > avail {
				return change{}, validationf("only %d %s available, %d more requested", avail, in.Kind, delta)
			}
		}
		return change{
			patch: repository.Patch{Set: map[string]any{
				in.Kind.TruckField(): models.EquipmentIssue{
					Quantity: in.Quantity,
					Remarks:  strings.TrimSpace(in.Remarks),
					IssuedBy: actor.Label(),
					IssuedAt: at,
				},
			}},
			event: models.EventEquipmentIssued,
			note:  string(in.Kind) + " x" + strconv.FormatInt(in.Quantity, 10),
		}, nil
	})
	if err != nil {
		return nil, err
	}

	if err := l.settings.adjustInventory(ctx, in.Kind, -delta); err != nil {
		l.deps.Logger.Warn("inventory adjustment failed",
			zap.String("truck_id", id),
			zap.String("kind", string(in.Kind)),
			zap.Int64("delta", -delta),
			zap.Error(err),
		)
	}
	return t, nil
}

func issuedOf(t *models.Truck, kind models.EquipmentKind) *models.EquipmentIssue {
	if kind == models.EquipmentWheelChoke {
		return t.IssuedWheelChoke
	}
	return t.IssuedSafetyShoe
}
