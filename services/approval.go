package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"yardtrack/models"
	"yardtrack/repository"

	"go.uber.org/zap"
)

// approvalEffect is the truck-side behaviour of one approval request variant.
type approvalEffect interface {
	// stale explains why the truck no longer waits on request id, or returns "".
	stale(t *models.Truck, id string) string
	apply(t *models.Truck, approved bool, at time.Time) repository.Patch
}

type documentException struct{ p *models.DocumentExceptionPayload }
type safetyException struct{ p *models.SafetyExceptionPayload }
type weightDiscrepancy struct{ p *models.WeightDiscrepancyPayload }

func effectFor(req *models.ApprovalRequest) (approvalEffect, error) {
	switch req.RequestType {
	case models.ApprovalDocuments:
		if req.Documents == nil {
			return nil, fmt.Errorf("approval %s: missing documents payload", req.ID)
		}
		return documentException{req.Documents}, nil
	case models.ApprovalSafetyChecks:
		if req.Safety == nil {
			return nil, fmt.Errorf("approval %s: missing safety payload", req.ID)
		}
		return safetyException{req.Safety}, nil
	case models.ApprovalWeightDiscrepancy:
		if req.Weight == nil {
			return nil, fmt.Errorf("approval %s: missing weight payload", req.ID)
		}
		return weightDiscrepancy{req.Weight}, nil
	default:
		return nil, fmt.Errorf("approval %s: unknown request type %q", req.ID, req.RequestType)
	}
}

func (e documentException) stale(t *models.Truck, id string) string {
	d := t.ProcessingDraft
	if d == nil || t.IsProcessed() {
		return "truck is no longer in gate processing"
	}
	if d.DocumentApprovalRequestID != id || !d.PendingApproval {
		return "document check no longer waits on this request"
	}
	return ""
}

// apply marks the documents named in the request as exceptionally approved
// and recomputes the aggregates, so a document that became invalid after the
// request still blocks.
func (e documentException) apply(t *models.Truck, approved bool, at time.Time) repository.Patch {
	if !approved {
		return repository.Patch{Set: map[string]any{"processingDraft.pendingApproval": false}}
	}
	form := *t.ProcessingDraft
	form.Documents = make(map[models.DocumentType]models.DocumentCheck, len(t.ProcessingDraft.Documents))
	for dt, d := range t.ProcessingDraft.Documents {
		form.Documents[dt] = d
	}
	for _, dt := range e.p.Documents {
		d := form.Documents[dt]
		d.ExceptionallyApproved = true
		form.Documents[dt] = d
	}
	applyDocumentAggregates(&form, at)
	return repository.Patch{Set: map[string]any{
		"processingDraft.documents":             form.Documents,
		"processingDraft.documentsVerified":     form.DocumentsVerified,
		"processingDraft.allDocumentsAreValid":  form.AllDocumentsAreValid,
		"processingDraft.exceptionallyApproved": true,
		"processingDraft.pendingApproval":       false,
	}}
}

func (e safetyException) stale(t *models.Truck, id string) string {
	d := t.ProcessingDraft
	if d == nil || t.IsProcessed() {
		return "truck is no longer in gate processing"
	}
	if d.SafetyApprovalRequestID != id || !d.SafetyChecksPendingApproval {
		return "safety check no longer waits on this request"
	}
	return ""
}

func (e safetyException) apply(t *models.Truck, approved bool, at time.Time) repository.Patch {
	set := map[string]any{"processingDraft.safetyChecksPendingApproval": false}
	if approved {
		set["processingDraft.safetyChecksExceptionallyApproved"] = true
	}
	return repository.Patch{Set: set}
}

func (e weightDiscrepancy) stale(t *models.Truck, id string) string {
	wd := t.WeightData
	if wd == nil || wd.ApprovalRequestID != id || wd.ApprovalStatus != models.WeightApprovalPending {
		return "weighbridge no longer waits on this request"
	}
	return ""
}

// apply is the one path where an approval finalizes a stage.
func (e weightDiscrepancy) apply(t *models.Truck, approved bool, at time.Time) repository.Patch {
	if !approved {
		return repository.Patch{Set: map[string]any{
			"weightData.approvalStatus": models.WeightApprovalRejected,
		}}
	}
	return repository.Patch{Set: map[string]any{
		"weightData.approvalStatus":     models.WeightApprovalApproved,
		"weighbridgeProcessingComplete": true,
		"weighbridgeCompletedAt":        at,
	}}
}

// Approvals is the request/decide workflow.
type Approvals struct {
	deps Deps
}

func NewApprovals(d Deps) *Approvals {
	return &Approvals{deps: d.withDefaults()}
}

func (a *Approvals) Get(ctx context.Context, id string) (*models.ApprovalRequest, error) {
	req, err := a.deps.Approvals.GetApproval(ctx, id)
	if err != nil {
		return nil, storeErr(err, "approval request "+id)
	}
	return req, nil
}

// List returns requests newest first, optionally filtered by status and truck.
func (a *Approvals) List(ctx context.Context, status models.ApprovalStatus, truckID string) ([]models.ApprovalRequest, error) {
	var filters []repository.Filter
	if status != "" {
		if !status.IsValid() {
			return nil, validationf("unknown approval status %q", status)
		}
		filters = append(filters, repository.Eq("status", status))
	}
	if truckID != "" {
		filters = append(filters, repository.Eq("truckId", truckID))
	}
	reqs, err := a.deps.Approvals.ListApprovals(ctx, filters)
	if err != nil {
		return nil, storeErr(err, "approval requests")
	}
	return reqs, nil
}

// create stores a new pending request. Callers hold the truck lock.
func (a *Approvals) create(ctx context.Context, t *models.Truck, actor models.Actor, reason string, req models.ApprovalRequest) (*models.ApprovalRequest, error) {
	if _, err := effectFor(&req); err != nil {
		return nil, err
	}
	req.ID = a.deps.NewID()
	req.TruckID = t.ID
	req.TruckNumber = t.TruckNumber
	req.Status = models.ApprovalPending
	req.Reason = strings.TrimSpace(reason)
	req.RequestedBy = actor.Label()
	req.RequestedAt = a.deps.Now()
	if err := a.deps.Approvals.CreateApproval(ctx, &req); err != nil {
		return nil, storeErr(err, "approval request")
	}
	return &req, nil
}

// cancel withdraws a request whose truck update failed.
func (a *Approvals) cancel(ctx context.Context, req *models.ApprovalRequest, cause error) {
	err := a.deps.Approvals.PatchApproval(ctx, req.ID, req.Version, repository.Patch{Set: map[string]any{
		"status":        models.ApprovalRejected,
		"decidedBy":     "system",
		"decidedAt":     a.deps.Now(),
		"decisionNotes": "withdrawn: " + cause.Error(),
	}})
	if err != nil {
		a.deps.Logger.Warn("could not withdraw orphaned approval request",
			zap.String("approval_id", req.ID), zap.Error(err))
	}
}

// reopen reverts a decided request whose truck update failed.
func (a *Approvals) reopen(ctx context.Context, req *models.ApprovalRequest) {
	err := a.deps.Approvals.PatchApproval(ctx, req.ID, req.Version, repository.Patch{
		Set:   map[string]any{"status": models.ApprovalPending},
		Unset: []string{"decidedBy", "decidedAt", "decisionNotes"},
	})
	if err != nil {
		a.deps.Logger.Error("could not reopen approval request after a failed truck update",
			zap.String("approval_id", req.ID), zap.String("truck_id", req.TruckID), zap.Error(err))
		return
	}
	a.deps.Logger.Info("approval request reopened",
		zap.String("approval_id", req.ID), zap.String("truck_id", req.TruckID))
}

type Decision struct {
	Approve bool   `json:"approve"`
	Notes   string `json:"notes"`
}

type DecisionResult struct {
	Request *models.ApprovalRequest `json:"request"`
	Truck   *models.Truck           `json:"truck,omitempty"`
	// Applied is false when the truck had moved on and nothing was unblocked.
	Applied bool   `json:"applied"`
	Note    string `json:"note,omitempty"`
}

// Decide resolves a pending request exactly once. The request is marked
// decided before the truck is touched; a second decision fails with Conflict
// and applies nothing. When the truck write fails the request goes back to
// pending so the decision can be retried.
func (a *Approvals) Decide(ctx context.Context, actor models.Actor, id string, d Decision) (*DecisionResult, error) {
	if err := requireAdmin(actor, "decide approval requests"); err != nil {
		return nil, err
	}
	req, err := a.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	unlock, err := a.deps.Locker.Lock(ctx, truckLockKey(req.TruckID))
	if err != nil {
		return nil, fmt.Errorf("lock truck %s: %w", req.TruckID, err)
	}
	defer unlock()

	if req, err = a.Get(ctx, id); err != nil {
		return nil, err
	}
	if req.Status.IsTerminal() {
		return nil, conflictf("approval request %s is already %s", id, req.Status)
	}
	effect, err := effectFor(req)
	if err != nil {
		return nil, err
	}

	status := models.ApprovalRejected
	if d.Approve {
		status = models.ApprovalApproved
	}
	at := a.deps.Now()
	err = a.deps.Approvals.PatchApproval(ctx, id, req.Version, repository.Patch{Set: map[string]any{
		"status":        status,
		"decidedBy":     actor.Label(),
		"decidedAt":     at,
		"decisionNotes": strings.TrimSpace(d.Notes),
	}})
	if err != nil {
		if errors.Is(err, repository.ErrVersionConflict) {
			return nil, conflictf("approval request %s was decided concurrently", id)
		}
		return nil, storeErr(err, "approval request "+id)
	}
	req.Status = status
	req.DecidedBy = actor.Label()
	req.DecidedAt = &at
	req.DecisionNotes = strings.TrimSpace(d.Notes)
	req.Version++

	res := &DecisionResult{Request: req}
	truck, applied, note, err := a.applyToTruck(ctx, actor, req, effect, d.Approve, at)
	if err != nil {
		a.deps.Logger.Error("approval decided but truck update failed",
			zap.String("approval_id", id), zap.String("truck_id", req.TruckID), zap.Error(err))
		a.reopen(ctx, req)
		return nil, err
	}
	res.Truck, res.Applied, res.Note = truck, applied, note

	a.deps.Logger.Info("approval decided",
		zap.String("approval_id", id),
		zap.String("type", string(req.RequestType)),
		zap.String("status", string(status)),
		zap.Bool("applied", applied),
		zap.String("by", actor.ID),
	)
	return res, nil
}

// applyToTruck patches the truck for a decided request. The caller holds the
// truck lock; the loop only covers writers that skip it.
func (a *Approvals) applyToTruck(ctx context.Context, actor models.Actor, req *models.ApprovalRequest, effect approvalEffect, approved bool, at time.Time) (*models.Truck, bool, string, error) {
	for attempt := 0; attempt < 3; attempt++ {
		t, err := a.deps.Trucks.GetTruck(ctx, req.TruckID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return nil, false, "truck no longer exists", nil
			}
			return nil, false, "", storeErr(err, "truck "+req.TruckID)
		}
		if why := effect.stale(t, req.ID); why != "" {
			a.deps.Logger.Warn("approval decided for a truck that moved on",
				zap.String("approval_id", req.ID), zap.String("reason", why))
			return t, false, why, nil
		}

		p := effect.apply(t, approved, at)
		p = p.Merge(historyPatch(actor, at, models.EventApprovalDecided, t.Status,
			fmt.Sprintf("%s %s", req.RequestType, req.Status)))
		err = a.deps.Trucks.PatchTruck(ctx, t.ID, t.Version, p)
		if errors.Is(err, repository.ErrVersionConflict) {
			continue
		}
		if err != nil {
			return nil, false, "", storeErr(err, "truck "+t.ID)
		}
		// the write landed; a failed reload must not undo the decision
		fresh, err := a.deps.Trucks.GetTruck(ctx, t.ID)
		if err != nil {
			a.deps.Logger.Warn("could not reload truck after approval",
				zap.String("approval_id", req.ID), zap.String("truck_id", t.ID), zap.Error(err))
			return nil, true, "", nil
		}
		return fresh, true, "", nil
	}
	return nil, false, "", conflictf("truck %s kept changing while applying approval %s", req.TruckID, req.ID)
}
