package handlers

import (
	"context"
	"fmt"
	"net/http"

	"yardtrack/models"
	"yardtrack/services"

	"go.uber.org/zap"
)

// SlipRenderer prints a weighbridge slip as PDF.
type SlipRenderer interface {
	Render(ctx context.Context, data models.WeighbridgeSlipData) ([]byte, error)
}

type WeighbridgeHandler struct {
	Life  *services.Lifecycle
	Slips SlipRenderer
	// Blob is nil when slips are streamed back instead of stored.
	Blob BlobStore
	Log  *zap.Logger
}

type weighbridgeView struct {
	AvailableSlots []string               `json:"availableSlots"`
	Summary        services.WeightSummary `json:"summary"`
	WeightData     *models.WeightData     `json:"weightData,omitempty"`
	Complete       bool                   `json:"complete"`
}

// Get shows the readings, free slots and a summary against ?invoiceWeight=.
func (h *WeighbridgeHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := truckID(r)
	invoice, err := queryInt64(r, "invoiceWeight")
	if err != nil {
		fail(w, http.StatusBadRequest, err.Error())
		return
	}
	t, err := h.Life.Get(r.Context(), id)
	if err != nil {
		writeError(w, h.Log, r, err)
		return
	}
	slots, err := h.Life.AvailableWeightSlots(r.Context(), id)
	if err != nil {
		writeError(w, h.Log, r, err)
		return
	}
	summary, err := h.Life.WeighbridgeSummary(r.Context(), id, invoice)
	if err != nil {
		writeError(w, h.Log, r, err)
		return
	}
	ok(w, "", weighbridgeView{
		AvailableSlots: slots,
		Summary:        summary,
		WeightData:     t.WeightData,
		Complete:       t.WeighbridgeProcessingComplete,
	})
}

func (h *WeighbridgeHandler) RecordWeight(w http.ResponseWriter, r *http.Request) {
	var in services.RecordWeightInput
	if !decodeJSON(w, r, &in) {
		return
	}
	t, err := h.Life.RecordWeight(r.Context(), actorOf(r), truckID(r), in)
	if err != nil {
		writeError(w, h.Log, r, err)
		return
	}
	created(w, "Weight recorded", t)
}

func (h *WeighbridgeHandler) Complete(w http.ResponseWriter, r *http.Request) {
	var in services.CompleteWeighbridgeInput
	if !decodeJSON(w, r, &in) {
		return
	}
	out, err := h.Life.CompleteWeighbridge(r.Context(), actorOf(r), truckID(r), in)
	if err != nil {
		writeError(w, h.Log, r, err)
		return
	}
	if !out.Complete {
		writeJSON(w, http.StatusAccepted, ApiResponse{
			Success: true,
			Message: "Weight discrepancy exceeds threshold, approval requested",
			Data:    out,
		})
		return
	}
	ok(w, "Weighbridge completed", out)
}

// Slip renders the weighbridge slip. With blob storage it is stored and its
// URL returned; otherwise the PDF is the response body.
func (h *WeighbridgeHandler) Slip(w http.ResponseWriter, r *http.Request) {
	id := truckID(r)
	data, err := h.Life.SlipData(r.Context(), id)
	if err != nil {
		writeError(w, h.Log, r, err)
		return
	}
	pdf, err := h.Slips.Render(r.Context(), *data)
	if err != nil {
		writeError(w, h.Log, r, fmt.Errorf("render slip for truck %s: %w", id, err))
		return
	}
	filename := fmt.Sprintf("weighbridge_%s_%d.pdf", data.Truck.TruckNumber, data.Truck.Version)

	if h.Blob == nil {
		w.Header().Set("Content-Type", "application/pdf")
		w.Header().Set("Content-Disposition", fmt.Sprintf("inline; filename=%q", filename))
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(pdf)
		return
	}

	url, err := h.Blob.Upload(r.Context(), pdf, "trucks/"+id+"/slips/"+filename, "application/pdf")
	if err != nil {
		writeError(w, h.Log, r, err)
		return
	}
	if _, err := h.Life.RecordSlipURL(r.Context(), actorOf(r), id, url); err != nil {
		// the file is stored; only the link on the truck is missing
		h.Log.Warn("failed to record slip url", zap.String("truck_id", id), zap.Error(err))
	}
	ok(w, "Slip generated", map[string]string{"url": url})
}
