package services

import (
	"fmt"

	"yardtrack/models"
)

// GuardResult is the outcome of a transition precondition.
type GuardResult struct {
	Allowed bool
	Reason  string
}

// Err converts a refused guard into a precondition error.
func (r GuardResult) Err() error {
	if r.Allowed {
		return nil
	}
	return preconditionf("%s", r.Reason)
}

var allowed = GuardResult{Allowed: true}

func refuse(format string, args ...any) GuardResult {
	return GuardResult{Reason: fmt.Sprintf(format, args...)}
}

func requireStatus(t *models.Truck, want models.TruckStatus, action string) GuardResult {
	if t.Status != want {
		return refuse("cannot %s: truck %s is %s, not %s", action, t.TruckNumber, t.Status, want)
	}
	return allowed
}

func CanMoveToGate(t *models.Truck) GuardResult {
	return requireStatus(t, models.StatusUpcoming, "move to gate")
}

func CanMoveBackToUpcoming(t *models.Truck) GuardResult {
	if g := requireStatus(t, models.StatusAtGate, "move back to upcoming"); !g.Allowed {
		return g
	}
	if t.IsProcessed() {
		return refuse("cannot move back: truck %s is already processed", t.TruckNumber)
	}
	return allowed
}

func CanDecideEntry(t *models.Truck) GuardResult {
	if g := requireStatus(t, models.StatusAtGate, "decide entry"); !g.Allowed {
		return g
	}
	if t.EntryStatus == models.EntryAllowed {
		return refuse("entry for truck %s is already allowed", t.TruckNumber)
	}
	return allowed
}

func CanStartProcessing(t *models.Truck) GuardResult {
	if g := requireStatus(t, models.StatusAtGate, "process"); !g.Allowed {
		return g
	}
	if t.EntryStatus != models.EntryAllowed {
		return refuse("cannot process truck %s: entry not allowed", t.TruckNumber)
	}
	if t.IsProcessed() {
		return refuse("truck %s is already processed", t.TruckNumber)
	}
	return allowed
}

// CanEditDraft holds for any draft mutation: saves, step moves, approvals, uploads.
func CanEditDraft(t *models.Truck) GuardResult {
	if g := CanStartProcessing(t); !g.Allowed {
		return g
	}
	if t.ProcessingDraft == nil {
		return refuse("processing for truck %s has not started", t.TruckNumber)
	}
	return allowed
}

// CanAdvanceStep checks the gate of the step the form is currently on.
func CanAdvanceStep(form *models.ProcessingForm) GuardResult {
	switch form.CurrentStep {
	case models.StepDocumentCheck:
		if !form.DocumentsVerified {
			return refuse("documents are not verified: every mandatory document must be valid or exceptionally approved")
		}
	case models.StepVehicleRisk:
		if !form.VehicleConditionChecked {
			return refuse("vehicle condition has not been checked")
		}
		if !safetyCleared(form) {
			return refuse("safety checks have not all passed and are not exceptionally approved")
		}
	case models.StepUpload:
	case models.StepSummary:
		return refuse("summary is the last step, complete processing instead")
	default:
		return refuse("unknown processing step %d", form.CurrentStep)
	}
	return allowed
}

// completionReady is the precondition for ticking processingCompleted.
func completionReady(form *models.ProcessingForm) GuardResult {
	if !form.DocumentsVerified {
		return refuse("documents are not verified")
	}
	if !form.VehicleConditionChecked {
		return refuse("vehicle condition has not been checked")
	}
	if !safetyCleared(form) {
		return refuse("safety checks have not passed")
	}
	return allowed
}

func CanCompleteProcessing(t *models.Truck) GuardResult {
	if g := CanEditDraft(t); !g.Allowed {
		return g
	}
	form := t.ProcessingDraft
	if form.CurrentStep != models.StepSummary {
		return refuse("processing is on step %d, not the summary", form.CurrentStep)
	}
	if g := completionReady(form); !g.Allowed {
		return g
	}
	if !form.ProcessingCompleted {
		return refuse("processing has not been confirmed")
	}
	if !form.NextMilestone.IsValid() {
		return refuse("next milestone is not set")
	}
	return allowed
}

func CanDispatchToWeighbridge(t *models.Truck) GuardResult {
	if g := requireStatus(t, models.StatusInside, "dispatch to weighbridge"); !g.Allowed {
		return g
	}
	if t.NextMilestone != models.MilestoneInternalParking {
		return refuse("truck %s is routed to %q, not internal parking", t.TruckNumber, t.NextMilestone)
	}
	return allowed
}

func inWeighbridgeStage(t *models.Truck, action string) GuardResult {
	if g := requireStatus(t, models.StatusInside, action); !g.Allowed {
		return g
	}
	if t.NextMilestone != models.MilestoneWeighBridge {
		return refuse("cannot %s: truck %s is not routed to the weighbridge", action, t.TruckNumber)
	}
	if t.WeighbridgeProcessingComplete {
		return refuse("weighbridge stage for truck %s is already complete", t.TruckNumber)
	}
	if t.WeightData != nil && t.WeightData.ApprovalStatus == models.WeightApprovalPending {
		return refuse("weight discrepancy approval for truck %s is pending", t.TruckNumber)
	}
	return allowed
}

func CanRecordWeight(t *models.Truck) GuardResult {
	return inWeighbridgeStage(t, "record weight")
}

func CanCompleteWeighbridge(t *models.Truck) GuardResult {
	if g := inWeighbridgeStage(t, "complete weighbridge"); !g.Allowed {
		return g
	}
	if t.WeightData == nil || len(t.WeightData.Weights) == 0 {
		return refuse("no weights recorded for truck %s", t.TruckNumber)
	}
	return allowed
}

func CanAssignDock(t *models.Truck) GuardResult {
	if g := requireStatus(t, models.StatusInside, "assign dock"); !g.Allowed {
		return g
	}
	if t.UnloadingStartedAt != nil && t.UnloadingCompletedAt == nil {
		return refuse("truck %s is unloading", t.TruckNumber)
	}
	return allowed
}

func CanStartUnloading(t *models.Truck) GuardResult {
	if g := requireStatus(t, models.StatusInside, "start unloading"); !g.Allowed {
		return g
	}
	if t.DockAssigned == "" {
		return refuse("truck %s has no dock assigned", t.TruckNumber)
	}
	if t.UnloadingStartedAt != nil {
		return refuse("unloading for truck %s already started", t.TruckNumber)
	}
	return allowed
}

func CanCompleteUnloading(t *models.Truck) GuardResult {
	if g := requireStatus(t, models.StatusInside, "complete unloading"); !g.Allowed {
		return g
	}
	if t.UnloadingStartedAt == nil {
		return refuse("unloading for truck %s has not started", t.TruckNumber)
	}
	if t.UnloadingCompletedAt != nil {
		return refuse("unloading for truck %s already completed", t.TruckNumber)
	}
	return allowed
}

func CanExit(t *models.Truck) GuardResult {
	return requireStatus(t, models.StatusInside, "exit")
}

func CanIssueEquipment(t *models.Truck) GuardResult {
	if t.Status != models.StatusAtGate && t.Status != models.StatusInside {
		return refuse("cannot issue equipment: truck %s is %s", t.TruckNumber, t.Status)
	}
	return allowed
}

func CanSoftDelete(t *models.Truck) GuardResult {
	if t.IsDeleted || t.Status == models.StatusDeleted {
		return refuse("truck %s is already deleted", t.TruckNumber)
	}
	if t.Status == models.StatusExited {
		return refuse("truck %s has exited", t.TruckNumber)
	}
	return allowed
}

func CanSetChannel(t *models.Truck) GuardResult {
	if t.IsDeleted {
		return refuse("truck %s is deleted", t.TruckNumber)
	}
	return allowed
}
