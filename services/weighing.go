package services

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"yardtrack/models"
	"yardtrack/repository"

	"go.uber.org/zap"
)

// AvailableWeightSlots lists the weight numbers not yet recorded for a truck.
func (l *Lifecycle) AvailableWeightSlots(ctx context.Context, id string) ([]string, error) {
	t, err := l.load(ctx, id)
	if err != nil {
		return nil, err
	}
	return freeSlots(t.WeightData), nil
}

func freeSlots(wd *models.WeightData) []string {
	slots := []string{}
	for i := 1; i <= models.MaxWeightSlots; i++ {
		n := strconv.Itoa(i)
		if wd != nil {
			if _, taken := wd.Weights[models.WeightSlotKey(n)]; taken {
				continue
			}
		}
		slots = append(slots, n)
	}
	return slots
}

type RecordWeightInput struct {
	WeightNumber string              `json:"weightNumber"`
	Weight       int64               `json:"weight"`
	MaterialType models.MaterialType `json:"materialType"`
}

func (in RecordWeightInput) validate() error {
	if !models.ValidWeightNumber(in.WeightNumber) {
		return validationf("weight number must be one of 1..%d, got %q", models.MaxWeightSlots, in.WeightNumber)
	}
	if in.Weight <= 0 {
		return validationf("weight must be positive")
	}
	if !in.MaterialType.IsValid() {
		return validationf("unknown material type %q", in.MaterialType)
	}
	return nil
}

// RecordWeight stores one scale reading. The weight record is written first;
// its unique (truckId, weightNumber) index backs the slot check. A record
// without a matching truck entry is taken over by the retry.
func (l *Lifecycle) RecordWeight(ctx context.Context, actor models.Actor, id string, in RecordWeightInput) (*models.Truck, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	return l.mutate(ctx, id, actor, func(t *models.Truck, at time.Time) (change, error) {
		if err := CanRecordWeight(t).Err(); err != nil {
			return change{}, err
		}
		key := models.WeightSlotKey(in.WeightNumber)
		if t.WeightData != nil {
			if _, taken := t.WeightData.Weights[key]; taken {
				return change{}, conflictf("weight %s is already recorded for truck %s", in.WeightNumber, t.TruckNumber)
			}
		}

		rec := &models.WeightRecord{
			ID:           l.deps.NewID(),
			TruckID:      t.ID,
			WeightNumber: in.WeightNumber,
			MaterialType: in.MaterialType,
			Weight:       in.Weight,
			RecordedAt:   at,
			RecordedBy:   actor.Label(),
		}
		if err := l.deps.Weights.CreateWeightRecord(ctx, rec); err != nil {
			if !errors.Is(err, repository.ErrDuplicate) {
				return change{}, storeErr(err, "weight record")
			}
			// the truck has no entry for this slot, so the stored record is
			// left over from a request whose truck write failed
			if err := l.adoptWeightRecord(ctx, t, rec); err != nil {
				return change{}, err
			}
		}
		return change{
			patch: repository.Patch{Set: map[string]any{
				"weightData.weights." + key: models.WeightEntry{
					Weight:       in.Weight,
					MaterialType: in.MaterialType,
					RecordedAt:   at,
					RecordedBy:   actor.Label(),
				},
			}},
			event: models.EventWeightRecorded,
			note:  "weight" + in.WeightNumber + " " + strconv.FormatInt(in.Weight, 10) + "kg",
		}, nil
	})
}

// adoptWeightRecord overwrites the slot's stored record with rec's reading.
func (l *Lifecycle) adoptWeightRecord(ctx context.Context, t *models.Truck, rec *models.WeightRecord) error {
	recs, err := l.deps.Weights.WeightRecordsForTruck(ctx, t.ID)
	if err != nil {
		return storeErr(err, "weight records")
	}
	for _, old := range recs {
		if old.WeightNumber != rec.WeightNumber {
			continue
		}
		err := l.deps.Weights.PatchWeightRecord(ctx, old.ID, old.Version, repository.Patch{Set: map[string]any{
			"materialType": rec.MaterialType,
			"weight":       rec.Weight,
			"recordedAt":   rec.RecordedAt,
			"recordedBy":   rec.RecordedBy,
		}})
		if errors.Is(err, repository.ErrVersionConflict) {
			return conflictf("weight %s for truck %s is being recorded concurrently", rec.WeightNumber, t.TruckNumber)
		}
		if err != nil {
			return storeErr(err, "weight record "+old.ID)
		}
		l.deps.Logger.Info("reused weight record left by an interrupted request",
			zap.String("truck_id", t.ID),
			zap.String("weight_number", rec.WeightNumber),
			zap.String("record_id", old.ID),
		)
		return nil
	}
	return conflictf("weight %s is already recorded for truck %s", rec.WeightNumber, t.TruckNumber)
}

// WeighbridgeSummary evaluates the stored readings. An invoice weight given
// here overrides the stored one without writing it.
func (l *Lifecycle) WeighbridgeSummary(ctx context.Context, id string, invoiceWeight int64) (WeightSummary, error) {
	t, err := l.load(ctx, id)
	if err != nil {
		return WeightSummary{}, err
	}
	ws, err := l.settings.Weighbridge(ctx)
	if err != nil {
		return WeightSummary{}, err
	}
	wd := models.WeightData{}
	if t.WeightData != nil {
		wd = *t.WeightData
	}
	if invoiceWeight > 0 {
		wd.InvoiceWeight = invoiceWeight
	}
	return summarizeWeightData(&wd, ws.ThresholdPercent), nil
}

type CompleteWeighbridgeInput struct {
	InvoiceNumber string `json:"invoiceNumber"`
	InvoiceWeight int64  `json:"invoiceWeight"`
	// Reason is required when the discrepancy exceeds the threshold.
	Reason string `json:"reason"`
}

// WeighbridgeOutcome reports whether the stage completed or is waiting on approval.
type WeighbridgeOutcome struct {
	Truck    *models.Truck           `json:"truck"`
	Summary  WeightSummary           `json:"summary"`
	Complete bool                    `json:"complete"`
	Request  *models.ApprovalRequest `json:"request,omitempty"`
}

// CompleteWeighbridge confirms the weighbridge stage. Within the threshold, or
// without an invoice weight, it completes at once; otherwise a weight
// discrepancy request is raised and the stage stays open until it is approved.
func (l *Lifecycle) CompleteWeighbridge(ctx context.Context, actor models.Actor, id string, in CompleteWeighbridgeInput) (*WeighbridgeOutcome, error) {
	if in.InvoiceWeight < 0 {
		return nil, validationf("invoice weight must not be negative")
	}
	ws, err := l.settings.Weighbridge(ctx)
	if err != nil {
		return nil, err
	}

	out := &WeighbridgeOutcome{}
	t, err := l.mutate(ctx, id, actor, func(t *models.Truck, at time.Time) (change, error) {
		if err := CanCompleteWeighbridge(t).Err(); err != nil {
			return change{}, err
		}
		wd := *t.WeightData
		wd.InvoiceNumber = strings.TrimSpace(in.InvoiceNumber)
		wd.InvoiceWeight = in.InvoiceWeight
		sum := summarizeWeightData(&wd, ws.ThresholdPercent)
		out.Summary = sum

		set := map[string]any{
			"weightData.invoiceNumber":  wd.InvoiceNumber,
			"weightData.invoiceWeight":  sum.InvoiceWeight,
			"weightData.averageWeight":  sum.Average,
			"weightData.totalWeight":    sum.Total,
			"weightData.difference":     sum.Difference,
			"weightData.percentageDiff": sum.PercentageDiff,
			"weightData.threshold":      sum.Threshold,
		}

		if !sum.ExceedsThreshold {
			set["weightData.approvalStatus"] = models.WeightApprovalNotRequired
			set["weighbridgeProcessingComplete"] = true
			set["weighbridgeCompletedAt"] = at
			out.Complete = true
			return change{
				patch: repository.Patch{Set: set, Unset: []string{"weightData.approvalRequestId"}},
				event: models.EventWeighbridgeComplete,
				note:  weighNote(sum),
			}, nil
		}

		reason := strings.TrimSpace(in.Reason)
		if reason == "" {
			return change{}, validationf("difference of %.2f%% exceeds the %.2f%% threshold: a reason is required",
				sum.PercentageDiff, sum.Threshold)
		}
		req, err := l.approvals.create(ctx, t, actor, reason, models.ApprovalRequest{
			RequestType: models.ApprovalWeightDiscrepancy,
			Weight: &models.WeightDiscrepancyPayload{
				InvoiceNumber:  wd.InvoiceNumber,
				InvoiceWeight:  sum.InvoiceWeight,
				AverageWeight:  sum.Average,
				TotalWeight:    sum.Total,
				Difference:     sum.Difference,
				PercentageDiff: sum.PercentageDiff,
				Threshold:      sum.Threshold,
			},
		})
		if err != nil {
			return change{}, err
		}
		out.Request = req
		set["weightData.approvalStatus"] = models.WeightApprovalPending
		set["weightData.approvalRequestId"] = req.ID
		return change{
			patch: repository.Patch{Set: set},
			event: models.EventWeighbridgeBlocked,
			note:  weighNote(sum),
		}, nil
	})
	if err != nil {
		l.withdraw(ctx, out.Request, err)
		return nil, err
	}
	out.Truck = t
	return out, nil
}

func weighNote(s WeightSummary) string {
	note := "average " + strconv.FormatInt(s.Average, 10) + "kg"
	if s.Compared {
		note += ", " + strconv.FormatFloat(s.PercentageDiff, 'f', 2, 64) + "% off invoice"
	}
	return note
}
