package services

import (
	"context"
	"sort"
	"strings"
	"time"

	"yardtrack/models"
	"yardtrack/repository"
)

const slipTimeLayout = "02-Jan-2006 15:04"

// SlipData collects what the weighbridge slip prints. The truck needs at
// least one recorded weight.
func (l *Lifecycle) SlipData(ctx context.Context, id string) (*models.WeighbridgeSlipData, error) {
	t, err := l.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if t.WeightData == nil || len(t.WeightData.Weights) == 0 {
		return nil, preconditionf("truck %s has no recorded weights", t.TruckNumber)
	}
	ws, err := l.settings.Weighbridge(ctx)
	if err != nil {
		return nil, err
	}

	wd := t.WeightData
	data := &models.WeighbridgeSlipData{
		Truck:     t,
		Date:      l.deps.Now().Format(slipTimeLayout),
		ArrivedAt: "-",
		Approval:  wd.ApprovalStatus,
	}
	if t.ArrivedAt != nil {
		data.ArrivedAt = t.ArrivedAt.Format(slipTimeLayout)
	}

	slots := make([]string, 0, len(wd.Weights))
	for key := range wd.Weights {
		slots = append(slots, key)
	}
	sort.Strings(slots)
	for _, key := range slots {
		e := wd.Weights[key]
		data.Readings = append(data.Readings, models.SlipReading{
			Slot:         strings.TrimPrefix(key, "weight"),
			MaterialType: e.MaterialType,
			Weight:       e.Weight,
			RecordedAt:   e.RecordedAt.Format(slipTimeLayout),
			RecordedBy:   e.RecordedBy,
		})
	}

	s := summarizeWeightData(wd, ws.ThresholdPercent)
	data.Average, data.Total = s.Average, s.Total
	if wd.InvoiceWeight > 0 {
		// the stored comparison wins over a recomputation with a changed threshold
		data.Invoice = &models.WeightDiscrepancyPayload{
			InvoiceNumber:  wd.InvoiceNumber,
			InvoiceWeight:  wd.InvoiceWeight,
			AverageWeight:  s.Average,
			TotalWeight:    s.Total,
			Difference:     wd.Difference,
			PercentageDiff: wd.PercentageDiff,
			Threshold:      wd.Threshold,
		}
	}
	return data, nil
}

// RecordSlipURL remembers where the rendered slip was stored.
func (l *Lifecycle) RecordSlipURL(ctx context.Context, actor models.Actor, id, url string) (*models.Truck, error) {
	if strings.TrimSpace(url) == "" {
		return nil, validationf("slip url is required")
	}
	return l.mutate(ctx, id, actor, func(t *models.Truck, at time.Time) (change, error) {
		if t.WeightData == nil {
			return change{}, preconditionf("truck %s has no weighbridge data", t.TruckNumber)
		}
		if t.WeightData.SlipURL == url {
			return change{}, nil
		}
		return change{patch: repository.Patch{Set: map[string]any{"weightData.slipUrl": url}}}, nil
	})
}
