package services

import (
	"context"
	"strings"
	"time"

	"yardtrack/models"
	"yardtrack/repository"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
)

// DraftEdit carries the operator-editable parts of the processing form. Nil
// fields are left alone. Aggregates and approval flags are always computed
// server-side.
type DraftEdit struct {
	DocumentDates           map[models.DocumentType]string `json:"documentDates,omitempty"`
	SafetyChecks            []models.SafetyCheckItem       `json:"safetyChecks,omitempty"`
	VehicleConditionChecked *bool                          `json:"vehicleConditionChecked,omitempty"`
	RiskLevel               *string                        `json:"riskLevel,omitempty"`
	TireCondition           *string                        `json:"tireCondition,omitempty"`
	VehicleRemarks          *string                        `json:"vehicleRemarks,omitempty"`
	NextMilestone           *models.Milestone              `json:"nextMilestone,omitempty"`
	ProcessingCompleted     *bool                          `json:"processingCompleted,omitempty"`
	FinalRemarks            *string                        `json:"finalRemarks,omitempty"`
}

var ignoreSaveStamp = cmpopts.IgnoreFields(models.ProcessingForm{}, "LastSavedAt", "LastSavedBy")

func cloneForm(f *models.ProcessingForm) models.ProcessingForm {
	out := *f
	out.Documents = make(map[models.DocumentType]models.DocumentCheck, len(f.Documents))
	for k, v := range f.Documents {
		out.Documents[k] = v
	}
	out.SafetyChecks = append([]models.SafetyCheckItem(nil), f.SafetyChecks...)
	out.Uploads = append([]models.UploadedDocument(nil), f.Uploads...)
	return out
}

// applyEdit folds edit into form and recomputes every aggregate.
func applyEdit(form *models.ProcessingForm, edit *DraftEdit, at time.Time) error {
	wantCompleted := false
	if edit != nil {
		for dt, date := range edit.DocumentDates {
			if !dt.IsValid() {
				return validationf("unknown document type %q", dt)
			}
			d := form.Documents[dt]
			d.ValidUntil = strings.TrimSpace(date)
			form.Documents[dt] = d
		}
		if edit.SafetyChecks != nil {
			items, err := NormalizeSafetyChecks(edit.SafetyChecks)
			if err != nil {
				return err
			}
			form.SafetyChecks = items
		}
		if edit.VehicleConditionChecked != nil {
			form.VehicleConditionChecked = *edit.VehicleConditionChecked
		}
		if edit.RiskLevel != nil {
			form.RiskLevel = strings.TrimSpace(*edit.RiskLevel)
		}
		if edit.TireCondition != nil {
			form.TireCondition = strings.TrimSpace(*edit.TireCondition)
		}
		if edit.VehicleRemarks != nil {
			form.VehicleRemarks = strings.TrimSpace(*edit.VehicleRemarks)
		}
		if edit.NextMilestone != nil {
			if *edit.NextMilestone != "" && !edit.NextMilestone.IsValid() {
				return validationf("unknown milestone %q", *edit.NextMilestone)
			}
			form.NextMilestone = *edit.NextMilestone
		}
		if edit.FinalRemarks != nil {
			form.FinalRemarks = strings.TrimSpace(*edit.FinalRemarks)
		}
		if edit.ProcessingCompleted != nil {
			wantCompleted = *edit.ProcessingCompleted
			form.ProcessingCompleted = wantCompleted
		}
	}

	applyDocumentAggregates(form, at)
	form.AllSafetyChecksPassed = AllSafetyChecksPassed(form.SafetyChecks)

	// the confirmation only stands while every gate holds
	if form.ProcessingCompleted {
		if g := completionReady(form); !g.Allowed {
			if wantCompleted {
				return g.Err()
			}
			form.ProcessingCompleted = false
		}
	}
	return nil
}

// StartProcessing opens the processing form. Starting again returns the
// existing draft untouched.
func (l *Lifecycle) StartProcessing(ctx context.Context, actor models.Actor, id string) (*models.Truck, error) {
	return l.mutate(ctx, id, actor, func(t *models.Truck, at time.Time) (change, error) {
		if err := CanStartProcessing(t).Err(); err != nil {
			return change{}, err
		}
		if t.ProcessingDraft != nil {
			return change{}, nil
		}
		form := models.ProcessingForm{
			CurrentStep:   models.StepDocumentCheck,
			Documents:     defaultDocuments(),
			SafetyChecks:  DefaultSafetyChecks(),
			NextMilestone: t.NextMilestone,
			LastSavedAt:   &at,
			LastSavedBy:   actor.Label(),
		}
		if err := applyEdit(&form, nil, at); err != nil {
			return change{}, err
		}
		return change{
			patch: repository.Patch{Set: map[string]any{"processingDraft": form}},
			event: models.EventProcessingStarted,
		}, nil
	})
}

// editDraft applies an edit plus an optional step move. Nothing is written
// when the form comes out unchanged.
func (l *Lifecycle) editDraft(ctx context.Context, actor models.Actor, id string, edit *DraftEdit, move func(form *models.ProcessingForm) error) (*models.Truck, error) {
	return l.mutate(ctx, id, actor, func(t *models.Truck, at time.Time) (change, error) {
		if err := CanEditDraft(t).Err(); err != nil {
			return change{}, err
		}
		form := cloneForm(t.ProcessingDraft)
		if err := applyEdit(&form, edit, at); err != nil {
			return change{}, err
		}
		if move != nil {
			if err := move(&form); err != nil {
				return change{}, err
			}
		}
		if cmp.Equal(*t.ProcessingDraft, form, ignoreSaveStamp, cmpopts.EquateEmpty()) {
			return change{}, nil
		}
		form.LastSavedAt = &at
		form.LastSavedBy = actor.Label()
		return change{patch: repository.Patch{Set: map[string]any{"processingDraft": form}}}, nil
	})
}

func (l *Lifecycle) SaveDraft(ctx context.Context, actor models.Actor, id string, edit DraftEdit) (*models.Truck, error) {
	return l.editDraft(ctx, actor, id, &edit, nil)
}

// AdvanceStep saves edit and moves to the next step if the current step's gate holds.
func (l *Lifecycle) AdvanceStep(ctx context.Context, actor models.Actor, id string, edit *DraftEdit) (*models.Truck, error) {
	return l.editDraft(ctx, actor, id, edit, func(form *models.ProcessingForm) error {
		if err := CanAdvanceStep(form).Err(); err != nil {
			return err
		}
		form.CurrentStep++
		return nil
	})
}

func (l *Lifecycle) StepBack(ctx context.Context, actor models.Actor, id string, edit *DraftEdit) (*models.Truck, error) {
	return l.editDraft(ctx, actor, id, edit, func(form *models.ProcessingForm) error {
		if form.CurrentStep <= models.StepDocumentCheck {
			return preconditionf("already on the first step")
		}
		form.CurrentStep--
		return nil
	})
}

// ApprovalRequested is returned by the send-for-approval operations.
type ApprovalRequested struct {
	Truck   *models.Truck           `json:"truck"`
	Request *models.ApprovalRequest `json:"request"`
}

// RequestDocumentApproval asks for an exceptional approval of the mandatory
// documents that currently block step 1.
func (l *Lifecycle) RequestDocumentApproval(ctx context.Context, actor models.Actor, id, reason string) (*ApprovalRequested, error) {
	var req *models.ApprovalRequest
	t, err := l.mutate(ctx, id, actor, func(t *models.Truck, at time.Time) (change, error) {
		if err := CanEditDraft(t).Err(); err != nil {
			return change{}, err
		}
		form := t.ProcessingDraft
		if form.PendingApproval {
			return change{}, conflictf("a document approval is already pending")
		}
		ev := EvaluateDocuments(form.Documents, at)
		if !ev.NeedsApproval {
			return change{}, preconditionf("every mandatory document is valid or already approved")
		}
		snapshot := make(map[models.DocumentType]models.DocumentCheck, len(form.Documents))
		for k, v := range form.Documents {
			snapshot[k] = v
		}
		if strings.TrimSpace(reason) == "" {
			reason = "documents invalid: " + joinDocs(ev.Blocking)
		}
		r, err := l.approvals.create(ctx, t, actor, reason, models.ApprovalRequest{
			RequestType: models.ApprovalDocuments,
			Documents:   &models.DocumentExceptionPayload{Documents: ev.Blocking, Snapshot: snapshot},
		})
		if err != nil {
			return change{}, err
		}
		req = r
		return change{
			patch: repository.Patch{Set: map[string]any{
				"processingDraft.pendingApproval":           true,
				"processingDraft.documentApprovalRequestId": r.ID,
			}},
			event: models.EventApprovalRequested,
			note:  string(models.ApprovalDocuments),
		}, nil
	})
	if err != nil {
		l.withdraw(ctx, req, err)
		return nil, err
	}
	return &ApprovalRequested{Truck: t, Request: req}, nil
}

// RequestSafetyApproval asks for one aggregate exception covering every failed item.
func (l *Lifecycle) RequestSafetyApproval(ctx context.Context, actor models.Actor, id, reason string) (*ApprovalRequested, error) {
	var req *models.ApprovalRequest
	t, err := l.mutate(ctx, id, actor, func(t *models.Truck, at time.Time) (change, error) {
		if err := CanEditDraft(t).Err(); err != nil {
			return change{}, err
		}
		form := t.ProcessingDraft
		if form.SafetyChecksPendingApproval {
			return change{}, conflictf("a safety approval is already pending")
		}
		if safetyCleared(form) {
			return change{}, preconditionf("safety checks already passed or approved")
		}
		failed := FailedSafetyItems(form.SafetyChecks)
		if strings.TrimSpace(reason) == "" {
			reason = "failed safety checks: " + strings.Join(failed, ", ")
		}
		r, err := l.approvals.create(ctx, t, actor, reason, models.ApprovalRequest{
			RequestType: models.ApprovalSafetyChecks,
			Safety: &models.SafetyExceptionPayload{
				Checklist:   append([]models.SafetyCheckItem(nil), form.SafetyChecks...),
				FailedItems: failed,
			},
		})
		if err != nil {
			return change{}, err
		}
		req = r
		return change{
			patch: repository.Patch{Set: map[string]any{
				"processingDraft.safetyChecksPendingApproval": true,
				"processingDraft.safetyApprovalRequestId":     r.ID,
			}},
			event: models.EventApprovalRequested,
			note:  string(models.ApprovalSafetyChecks),
		}, nil
	})
	if err != nil {
		l.withdraw(ctx, req, err)
		return nil, err
	}
	return &ApprovalRequested{Truck: t, Request: req}, nil
}

// withdraw cancels a request created inside a mutation whose truck write failed.
func (l *Lifecycle) withdraw(ctx context.Context, req *models.ApprovalRequest, cause error) {
	if req == nil {
		return
	}
	l.approvals.cancel(ctx, req, cause)
}

// AttachUpload records an uploaded document on the draft. Uploads never gate.
func (l *Lifecycle) AttachUpload(ctx context.Context, actor models.Actor, id, name, url string) (*models.Truck, error) {
	name = strings.TrimSpace(name)
	if name == "" || strings.TrimSpace(url) == "" {
		return nil, validationf("upload name and url are required")
	}
	return l.mutate(ctx, id, actor, func(t *models.Truck, at time.Time) (change, error) {
		if err := CanEditDraft(t).Err(); err != nil {
			return change{}, err
		}
		return change{patch: repository.Patch{Push: map[string]any{
			"processingDraft.uploads": models.UploadedDocument{
				Name: name, URL: url, UploadedAt: at, UploadedBy: actor.Label(),
			},
		}}}, nil
	})
}

// CompleteProcessing freezes the draft into processingData and moves the
// truck Inside. Every gate is re-checked against the stored draft.
func (l *Lifecycle) CompleteProcessing(ctx context.Context, actor models.Actor, id string) (*models.Truck, error) {
	return l.mutate(ctx, id, actor, func(t *models.Truck, at time.Time) (change, error) {
		if err := CanEditDraft(t).Err(); err != nil {
			return change{}, err
		}
		// re-evaluate rather than trust stored aggregates; validity is time dependent
		form := cloneForm(t.ProcessingDraft)
		if err := applyEdit(&form, nil, at); err != nil {
			return change{}, err
		}
		check := *t
		check.ProcessingDraft = &form
		if err := CanCompleteProcessing(&check).Err(); err != nil {
			return change{}, err
		}

		form.LastSavedAt = &at
		form.LastSavedBy = actor.Label()
		return change{
			patch: repository.Patch{
				Set: map[string]any{
					"status":         models.StatusInside,
					"processingData": form,
					"processedAt":    at,
					"processedBy":    actor.Label(),
					"nextMilestone":  form.NextMilestone,
					"insideAt":       at,
				},
				Unset: []string{"processingDraft"},
			},
			event: models.EventProcessingCompleted,
			note:  "next " + string(form.NextMilestone),
		}, nil
	})
}

func joinDocs(docs []models.DocumentType) string {
	parts := make([]string, len(docs))
	for i, d := range docs {
		parts[i] = string(d)
	}
	return strings.Join(parts, ", ")
}
