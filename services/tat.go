package services

import (
	"context"
	"time"

	"yardtrack/models"

	"github.com/shopspring/decimal"
)

type TATLevel string

const (
	TATOk       TATLevel = "ok"
	TATWarning  TATLevel = "warning"
	TATCritical TATLevel = "critical"
)

// TATReport is the turnaround time of one truck visit.
type TATReport struct {
	TruckID        string              `json:"truckId"`
	MaterialType   models.MaterialType `json:"materialType"`
	From           *time.Time          `json:"from,omitempty"`
	Until          time.Time           `json:"until"`
	Running        bool                `json:"running"`
	ElapsedMinutes int64               `json:"elapsedMinutes"`
	IdealMinutes   int                 `json:"idealMinutes"`
	PercentOfIdeal float64             `json:"percentOfIdeal"`
	Level          TATLevel            `json:"level"`
}

// ClassifyTAT compares elapsed with ideal minutes. At warning percent of the
// ideal the visit is a warning; at critical percent it is critical.
func ClassifyTAT(elapsed int64, ideal int, s models.TATSettings) (float64, TATLevel) {
	if ideal <= 0 {
		return 0, TATOk
	}
	pct := decimal.NewFromInt(elapsed).
		Div(decimal.NewFromInt(int64(ideal))).
		Mul(decimal.NewFromInt(100)).
		Round(2)
	switch {
	case pct.GreaterThanOrEqual(decimal.NewFromFloat(s.CriticalPercent)):
		return pct.InexactFloat64(), TATCritical
	case pct.GreaterThanOrEqual(decimal.NewFromFloat(s.WarningPercent)):
		return pct.InexactFloat64(), TATWarning
	default:
		return pct.InexactFloat64(), TATOk
	}
}

// TAT measures from arrival at the gate to exit, or to now while the truck is
// still in the yard. A truck that never arrived reports zero.
func (l *Lifecycle) TAT(ctx context.Context, id string) (TATReport, error) {
	t, err := l.load(ctx, id)
	if err != nil {
		return TATReport{}, err
	}
	s, err := l.settings.TAT(ctx)
	if err != nil {
		return TATReport{}, err
	}

	material := t.MaterialType
	if material == "" {
		material = models.MaterialOther
	}
	r := TATReport{
		TruckID:      t.ID,
		MaterialType: material,
		From:         t.ArrivedAt,
		Until:        l.deps.Now(),
		Running:      true,
		IdealMinutes: s.IdealMinutes[material],
		Level:        TATOk,
	}
	if t.ExitedAt != nil {
		r.Until = *t.ExitedAt
		r.Running = false
	}
	if t.ArrivedAt == nil {
		r.Running = false
		return r, nil
	}
	r.ElapsedMinutes = int64(r.Until.Sub(*t.ArrivedAt) / time.Minute)
	if r.ElapsedMinutes < 0 {
		r.ElapsedMinutes = 0
	}
	r.PercentOfIdeal, r.Level = ClassifyTAT(r.ElapsedMinutes, r.IdealMinutes, s)
	return r, nil
}
