package handlers

import (
	"net/http"

	"yardtrack/models"
	"yardtrack/services"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

type SettingsHandler struct {
	Settings *services.Settings
	Log      *zap.Logger
}

func (h *SettingsHandler) reply(w http.ResponseWriter, r *http.Request, message string, v any, err error) {
	if err != nil {
		writeError(w, h.Log, r, err)
		return
	}
	ok(w, message, v)
}

func (h *SettingsHandler) GetWeighbridge(w http.ResponseWriter, r *http.Request) {
	v, err := h.Settings.Weighbridge(r.Context())
	h.reply(w, r, "", v, err)
}

func (h *SettingsHandler) PutWeighbridge(w http.ResponseWriter, r *http.Request) {
	var in struct {
		ThresholdPercent float64 `json:"thresholdPercent"`
	}
	if !decodeJSON(w, r, &in) {
		return
	}
	v, err := h.Settings.UpdateWeighbridge(r.Context(), actorOf(r), in.ThresholdPercent)
	h.reply(w, r, "Weighbridge settings saved", v, err)
}

func (h *SettingsHandler) GetTAT(w http.ResponseWriter, r *http.Request) {
	v, err := h.Settings.TAT(r.Context())
	h.reply(w, r, "", v, err)
}

func (h *SettingsHandler) PutTAT(w http.ResponseWriter, r *http.Request) {
	var in models.TATSettings
	if !decodeJSON(w, r, &in) {
		return
	}
	v, err := h.Settings.UpdateTAT(r.Context(), actorOf(r), in)
	h.reply(w, r, "TAT settings saved", v, err)
}

func (h *SettingsHandler) GetSafetyEquipment(w http.ResponseWriter, r *http.Request) {
	v, err := h.Settings.SafetyEquipment(r.Context())
	h.reply(w, r, "", v, err)
}

func (h *SettingsHandler) PutSafetyEquipment(w http.ResponseWriter, r *http.Request) {
	var in struct {
		WheelChokes int64 `json:"wheelChokes"`
		SafetyShoes int64 `json:"safetyShoes"`
	}
	if !decodeJSON(w, r, &in) {
		return
	}
	v, err := h.Settings.UpdateSafetyEquipment(r.Context(), actorOf(r), in.WheelChokes, in.SafetyShoes)
	h.reply(w, r, "Safety equipment inventory saved", v, err)
}

func (h *SettingsHandler) GetTransporters(w http.ResponseWriter, r *http.Request) {
	v, err := h.Settings.Transporters(r.Context())
	h.reply(w, r, "", v, err)
}

func (h *SettingsHandler) PutTransporters(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Names []string `json:"names"`
	}
	if !decodeJSON(w, r, &in) {
		return
	}
	v, err := h.Settings.UpdateTransporters(r.Context(), actorOf(r), in.Names)
	h.reply(w, r, "Transporters saved", v, err)
}

func (h *SettingsHandler) GetDocks(w http.ResponseWriter, r *http.Request) {
	v, err := h.Settings.Docks(r.Context())
	h.reply(w, r, "", v, err)
}

type dockRequest struct {
	Name          string `json:"name"`
	IsServiceable *bool  `json:"isServiceable"`
}

func (h *SettingsHandler) AddDock(w http.ResponseWriter, r *http.Request) {
	var in dockRequest
	if !decodeJSON(w, r, &in) {
		return
	}
	serviceable := in.IsServiceable == nil || *in.IsServiceable
	d, err := h.Settings.AddDock(r.Context(), actorOf(r), in.Name, serviceable)
	if err != nil {
		writeError(w, h.Log, r, err)
		return
	}
	created(w, "Dock added", d)
}

func (h *SettingsHandler) UpdateDock(w http.ResponseWriter, r *http.Request) {
	var in dockRequest
	if !decodeJSON(w, r, &in) {
		return
	}
	if in.IsServiceable == nil {
		fail(w, http.StatusBadRequest, "isServiceable is required")
		return
	}
	d, err := h.Settings.SetDockServiceable(r.Context(), actorOf(r), chi.URLParam(r, "id"), *in.IsServiceable)
	h.reply(w, r, "Dock updated", d, err)
}

func (h *SettingsHandler) RemoveDock(w http.ResponseWriter, r *http.Request) {
	err := h.Settings.RemoveDock(r.Context(), actorOf(r), chi.URLParam(r, "id"))
	h.reply(w, r, "Dock removed", nil, err)
}

func (h *SettingsHandler) Destinations(w http.ResponseWriter, r *http.Request) {
	v, err := h.Settings.ServiceableDestinations(r.Context())
	h.reply(w, r, "", v, err)
}
