package handlers

import (
	"net/http"

	"yardtrack/models"
	"yardtrack/services"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

type TruckHandler struct {
	Life *services.Lifecycle
	Log  *zap.Logger
}

func truckID(r *http.Request) string {
	return chi.URLParam(r, "id")
}

// respond writes the truck returned by a lifecycle operation.
func (h *TruckHandler) respond(w http.ResponseWriter, r *http.Request, message string, t *models.Truck, err error) {
	if err != nil {
		writeError(w, h.Log, r, err)
		return
	}
	ok(w, message, t)
}

func (h *TruckHandler) CreateTruck(w http.ResponseWriter, r *http.Request) {
	var in services.RegisterTruckInput
	if !decodeJSON(w, r, &in) {
		return
	}
	t, err := h.Life.Register(r.Context(), actorOf(r), in)
	if err != nil {
		writeError(w, h.Log, r, err)
		return
	}
	created(w, "Truck registered successfully", t)
}

func (h *TruckHandler) ListTrucks(w http.ResponseWriter, r *http.Request) {
	status := models.TruckStatus(r.URL.Query().Get("status"))
	trucks, err := h.Life.List(r.Context(), status)
	if err != nil {
		writeError(w, h.Log, r, err)
		return
	}
	if trucks == nil {
		trucks = []models.Truck{}
	}
	ok(w, "", trucks)
}

func (h *TruckHandler) GetTruck(w http.ResponseWriter, r *http.Request) {
	t, err := h.Life.Get(r.Context(), truckID(r))
	h.respond(w, r, "", t, err)
}

func (h *TruckHandler) MoveToGate(w http.ResponseWriter, r *http.Request) {
	t, err := h.Life.MoveToGate(r.Context(), actorOf(r), truckID(r))
	h.respond(w, r, "Truck moved to gate", t, err)
}

func (h *TruckHandler) MoveBackToUpcoming(w http.ResponseWriter, r *http.Request) {
	t, err := h.Life.MoveBackToUpcoming(r.Context(), actorOf(r), truckID(r))
	h.respond(w, r, "Truck moved back to upcoming", t, err)
}

func (h *TruckHandler) DecideEntry(w http.ResponseWriter, r *http.Request) {
	var in services.EntryDecisionInput
	if !decodeJSON(w, r, &in) {
		return
	}
	t, err := h.Life.DecideEntry(r.Context(), actorOf(r), truckID(r), in)
	h.respond(w, r, "Entry decision recorded", t, err)
}

func (h *TruckHandler) SetChannel(w http.ResponseWriter, r *http.Request) {
	var in struct {
		ChannelType models.ChannelType `json:"channelType"`
	}
	if !decodeJSON(w, r, &in) {
		return
	}
	t, err := h.Life.SetChannel(r.Context(), actorOf(r), truckID(r), in.ChannelType)
	h.respond(w, r, "Channel updated", t, err)
}

func (h *TruckHandler) DeleteTruck(w http.ResponseWriter, r *http.Request) {
	t, err := h.Life.SoftDelete(r.Context(), actorOf(r), truckID(r))
	h.respond(w, r, "Truck deleted", t, err)
}

func (h *TruckHandler) DispatchToWeighbridge(w http.ResponseWriter, r *http.Request) {
	t, err := h.Life.DispatchToWeighbridge(r.Context(), actorOf(r), truckID(r))
	h.respond(w, r, "Truck dispatched to weighbridge", t, err)
}

func (h *TruckHandler) AssignDock(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Dock string `json:"dock"`
	}
	if !decodeJSON(w, r, &in) {
		return
	}
	t, err := h.Life.AssignDock(r.Context(), actorOf(r), truckID(r), in.Dock)
	h.respond(w, r, "Dock assigned", t, err)
}

func (h *TruckHandler) StartUnloading(w http.ResponseWriter, r *http.Request) {
	t, err := h.Life.StartUnloading(r.Context(), actorOf(r), truckID(r))
	h.respond(w, r, "Unloading started", t, err)
}

func (h *TruckHandler) CompleteUnloading(w http.ResponseWriter, r *http.Request) {
	t, err := h.Life.CompleteUnloading(r.Context(), actorOf(r), truckID(r))
	h.respond(w, r, "Unloading completed", t, err)
}

func (h *TruckHandler) Exit(w http.ResponseWriter, r *http.Request) {
	t, err := h.Life.Exit(r.Context(), actorOf(r), truckID(r))
	h.respond(w, r, "Truck exited", t, err)
}

func (h *TruckHandler) IssueEquipment(w http.ResponseWriter, r *http.Request) {
	var in services.IssueEquipmentInput
	if !decodeJSON(w, r, &in) {
		return
	}
	t, err := h.Life.IssueEquipment(r.Context(), actorOf(r), truckID(r), in)
	h.respond(w, r, "Equipment issued", t, err)
}

func (h *TruckHandler) TAT(w http.ResponseWriter, r *http.Request) {
	rep, err := h.Life.TAT(r.Context(), truckID(r))
	if err != nil {
		writeError(w, h.Log, r, err)
		return
	}
	ok(w, "", rep)
}
