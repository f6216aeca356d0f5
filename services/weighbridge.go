package services

import (
	"strconv"

	"yardtrack/models"

	"github.com/shopspring/decimal"
)

// WeightSummary is the weighbridge discrepancy evaluation.
type WeightSummary struct {
	Count   int   `json:"count"`
	Total   int64 `json:"totalWeight"`
	Average int64 `json:"averageWeight"`

	// Compared is false when no invoice weight was given.
	Compared         bool    `json:"compared"`
	InvoiceWeight    int64   `json:"invoiceWeight,omitempty"`
	Difference       int64   `json:"difference,omitempty"`
	PercentageDiff   float64 `json:"percentageDiff,omitempty"`
	Threshold        float64 `json:"threshold"`
	ExceedsThreshold bool    `json:"exceedsThreshold"`
}

// SummarizeWeights averages the readings (rounded to the nearest kg) and
// compares the average with the invoice weight. The percentage is relative to
// the invoice and rounded to two places.
func SummarizeWeights(weights []int64, invoiceWeight int64, threshold float64) WeightSummary {
	s := WeightSummary{Count: len(weights), Threshold: threshold}
	for _, w := range weights {
		s.Total += w
	}
	if s.Count > 0 {
		s.Average = decimal.NewFromInt(s.Total).
			Div(decimal.NewFromInt(int64(s.Count))).
			Round(0).
			IntPart()
	}
	if invoiceWeight <= 0 || s.Count == 0 {
		return s
	}

	s.Compared = true
	s.InvoiceWeight = invoiceWeight
	diff := invoiceWeight - s.Average
	if diff < 0 {
		diff = -diff
	}
	s.Difference = diff
	pct := decimal.NewFromInt(diff).
		Div(decimal.NewFromInt(invoiceWeight)).
		Mul(decimal.NewFromInt(100)).
		Round(2)
	s.PercentageDiff = pct.InexactFloat64()
	s.ExceedsThreshold = pct.GreaterThan(decimal.NewFromFloat(threshold))
	return s
}

// summarizeWeightData evaluates the readings stored on a truck.
func summarizeWeightData(wd *models.WeightData, threshold float64) WeightSummary {
	var weights []int64
	var invoice int64
	if wd != nil {
		for i := 1; i <= models.MaxWeightSlots; i++ {
			if e, ok := wd.Weights[models.WeightSlotKey(strconv.Itoa(i))]; ok {
				weights = append(weights, e.Weight)
			}
		}
		invoice = wd.InvoiceWeight
	}
	return SummarizeWeights(weights, invoice, threshold)
}
