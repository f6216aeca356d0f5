package handlers

import (
	"net/http"

	"yardtrack/models"
	"yardtrack/services"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

type ApprovalHandler struct {
	Approvals *services.Approvals
	Log       *zap.Logger
}

func (h *ApprovalHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	reqs, err := h.Approvals.List(r.Context(), models.ApprovalStatus(q.Get("status")), q.Get("truckId"))
	if err != nil {
		writeError(w, h.Log, r, err)
		return
	}
	if reqs == nil {
		reqs = []models.ApprovalRequest{}
	}
	ok(w, "", reqs)
}

func (h *ApprovalHandler) Get(w http.ResponseWriter, r *http.Request) {
	req, err := h.Approvals.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, h.Log, r, err)
		return
	}
	ok(w, "", req)
}

func (h *ApprovalHandler) Decide(w http.ResponseWriter, r *http.Request) {
	var d services.Decision
	if !decodeJSON(w, r, &d) {
		return
	}
	res, err := h.Approvals.Decide(r.Context(), actorOf(r), chi.URLParam(r, "id"), d)
	if err != nil {
		writeError(w, h.Log, r, err)
		return
	}
	ok(w, "Decision recorded", res)
}
