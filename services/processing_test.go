package services

import (
	"testing"
	"time"

	"yardtrack/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func (f *fixture) startedTruck(number string) *models.Truck {
	f.t.Helper()
	tr := f.register(number, true)
	f.allow(tr.ID, models.DestinationInternalParking)
	started, err := f.life.StartProcessing(f.ctx, operator, tr.ID)
	require.NoError(f.t, err)
	return started
}

func TestStartProcessingDefaults(t *testing.T) {
	f := newFixture(t)
	tr := f.register("SP1", true)

	_, err := f.life.StartProcessing(f.ctx, operator, tr.ID)
	assert.Equal(t, KindPrecondition, KindOf(err), "entry not decided")

	f.allow(tr.ID, models.DestinationInternalParking)
	started, err := f.life.StartProcessing(f.ctx, operator, tr.ID)
	require.NoError(t, err)

	d := started.ProcessingDraft
	require.NotNil(t, d)
	assert.Equal(t, models.StepDocumentCheck, d.CurrentStep)
	assert.Len(t, d.Documents, 4)
	assert.False(t, d.DocumentsVerified)
	assert.Len(t, d.SafetyChecks, len(SafetyChecklist))
	assert.False(t, d.AllSafetyChecksPassed)
	assert.Equal(t, models.MilestoneInternalParking, d.NextMilestone)
	assert.Equal(t, 1, countEvent(started, models.EventProcessingStarted))

	again, err := f.life.StartProcessing(f.ctx, operator, tr.ID)
	require.NoError(t, err)
	assert.Equal(t, started.Version, again.Version)
}

func TestSaveDraftRecomputesAndSkipsNoop(t *testing.T) {
	f := newFixture(t)
	tr := f.startedTruck("SD1")

	saved, err := f.life.SaveDraft(f.ctx, operator, tr.ID, DraftEdit{DocumentDates: validDocs()})
	require.NoError(t, err)
	assert.True(t, saved.ProcessingDraft.DocumentsVerified)
	assert.True(t, saved.ProcessingDraft.AllDocumentsAreValid)
	assert.Equal(t, "Ravi", saved.ProcessingDraft.LastSavedBy)

	f.clock.advance(time.Second)
	same, err := f.life.SaveDraft(f.ctx, operator, tr.ID, DraftEdit{DocumentDates: validDocs()})
	require.NoError(t, err)
	assert.Equal(t, saved.Version, same.Version)

	expired, err := f.life.SaveDraft(f.ctx, operator, tr.ID, DraftEdit{
		DocumentDates: map[models.DocumentType]string{models.DocPermit: "31/31/2031"},
	})
	require.NoError(t, err)
	assert.False(t, expired.ProcessingDraft.DocumentsVerified)
	assert.False(t, expired.ProcessingDraft.Documents[models.DocPermit].Verified)

	_, err = f.life.SaveDraft(f.ctx, operator, tr.ID, DraftEdit{
		DocumentDates: map[models.DocumentType]string{"passport": futureDate},
	})
	assert.Equal(t, KindValidation, KindOf(err))

	bad := models.Milestone("Moon")
	_, err = f.life.SaveDraft(f.ctx, operator, tr.ID, DraftEdit{NextMilestone: &bad})
	assert.Equal(t, KindValidation, KindOf(err))
}

func TestStepNavigation(t *testing.T) {
	f := newFixture(t)
	tr := f.startedTruck("NAV1")

	_, err := f.life.StepBack(f.ctx, operator, tr.ID, nil)
	assert.Equal(t, KindPrecondition, KindOf(err))

	_, err = f.life.AdvanceStep(f.ctx, operator, tr.ID, nil)
	assert.Equal(t, KindPrecondition, KindOf(err))

	step2, err := f.life.AdvanceStep(f.ctx, operator, tr.ID, &DraftEdit{DocumentDates: validDocs()})
	require.NoError(t, err)
	assert.Equal(t, models.StepVehicleRisk, step2.ProcessingDraft.CurrentStep)

	_, err = f.life.AdvanceStep(f.ctx, operator, tr.ID, &DraftEdit{SafetyChecks: allYes()})
	assert.Equal(t, KindPrecondition, KindOf(err), "vehicle condition not checked")

	// a refused advance writes nothing, including its edit
	still, err := f.life.Get(f.ctx, tr.ID)
	require.NoError(t, err)
	assert.Equal(t, step2.Version, still.Version)
	assert.False(t, still.ProcessingDraft.AllSafetyChecksPassed)

	back, err := f.life.StepBack(f.ctx, operator, tr.ID, &DraftEdit{VehicleConditionChecked: boolPtr(true)})
	require.NoError(t, err)
	assert.Equal(t, models.StepDocumentCheck, back.ProcessingDraft.CurrentStep)
	assert.True(t, back.ProcessingDraft.VehicleConditionChecked)
}

func TestProcessingCannotCompleteWithUnverifiedDocuments(t *testing.T) {
	f := newFixture(t)
	tr := f.startedTruck("INV1")

	_, err := f.life.CompleteProcessing(f.ctx, operator, tr.ID)
	assert.Equal(t, KindPrecondition, KindOf(err))

	_, err = f.life.SaveDraft(f.ctx, operator, tr.ID, DraftEdit{ProcessingCompleted: boolPtr(true)})
	assert.Equal(t, KindPrecondition, KindOf(err))

	// walk to the summary, then let a document lapse before completing
	_, err = f.life.AdvanceStep(f.ctx, operator, tr.ID, &DraftEdit{DocumentDates: map[models.DocumentType]string{
		models.DocLicense:   futureDate,
		models.DocPermit:    futureDate,
		models.DocInsurance: "2026-10-17",
	}})
	require.NoError(t, err)
	_, err = f.life.AdvanceStep(f.ctx, operator, tr.ID, &DraftEdit{
		SafetyChecks: allYes(), VehicleConditionChecked: boolPtr(true),
	})
	require.NoError(t, err)
	_, err = f.life.AdvanceStep(f.ctx, operator, tr.ID, nil)
	require.NoError(t, err)
	ready, err := f.life.SaveDraft(f.ctx, operator, tr.ID, DraftEdit{ProcessingCompleted: boolPtr(true)})
	require.NoError(t, err)
	assert.True(t, ready.ProcessingDraft.ProcessingCompleted)

	f.clock.advance(48 * time.Hour)
	_, err = f.life.CompleteProcessing(f.ctx, operator, tr.ID)
	assert.Equal(t, KindPrecondition, KindOf(err))

	got, err := f.life.Get(f.ctx, tr.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusAtGate, got.Status)
	assert.Nil(t, got.ProcessingData)
}

func TestCompleteProcessingFreezesDraft(t *testing.T) {
	f := newFixture(t)
	tr := f.register("CP1", true)
	f.allow(tr.ID, models.DestinationInternalParking)

	inside := f.processToInside(tr.ID, models.MilestoneWeighBridge)
	assert.Equal(t, models.StatusInside, inside.Status)
	assert.Nil(t, inside.ProcessingDraft)
	require.NotNil(t, inside.ProcessingData)
	assert.True(t, inside.ProcessingData.DocumentsVerified)
	assert.True(t, inside.ProcessingData.ProcessingCompleted)
	assert.Equal(t, models.MilestoneWeighBridge, inside.NextMilestone)
	assert.Equal(t, "Ravi", inside.ProcessedBy)
	require.NotNil(t, inside.InsideAt)
	assert.Equal(t, models.StatusInside, inside.History[len(inside.History)-1].Status)

	_, err := f.life.StartProcessing(f.ctx, operator, tr.ID)
	assert.Equal(t, KindPrecondition, KindOf(err))
	_, err = f.life.MoveBackToUpcoming(f.ctx, operator, tr.ID)
	assert.Equal(t, KindPrecondition, KindOf(err))
}

func TestDocumentExceptionScenario(t *testing.T) {
	f := newFixture(t)
	tr := f.startedTruck("DOC1")

	saved, err := f.life.SaveDraft(f.ctx, operator, tr.ID, DraftEdit{DocumentDates: map[models.DocumentType]string{
		models.DocLicense:   futureDate,
		models.DocPermit:    futureDate,
		models.DocInsurance: pastDate,
	}})
	require.NoError(t, err)
	assert.False(t, saved.ProcessingDraft.DocumentsVerified)
	ev := EvaluateDocuments(saved.ProcessingDraft.Documents, f.clock.now())
	assert.True(t, ev.NeedsApproval)
	assert.Equal(t, []models.DocumentType{models.DocInsurance}, ev.Blocking)

	res, err := f.life.RequestDocumentApproval(f.ctx, operator, tr.ID, "")
	require.NoError(t, err)
	req := res.Request
	assert.Equal(t, models.ApprovalDocuments, req.RequestType)
	assert.Equal(t, models.ApprovalPending, req.Status)
	require.NotNil(t, req.Documents)
	assert.Equal(t, []models.DocumentType{models.DocInsurance}, req.Documents.Documents)
	assert.Equal(t, pastDate, req.Documents.Snapshot[models.DocInsurance].ValidUntil)
	assert.True(t, res.Truck.ProcessingDraft.PendingApproval)
	assert.Equal(t, req.ID, res.Truck.ProcessingDraft.DocumentApprovalRequestID)

	_, err = f.life.RequestDocumentApproval(f.ctx, operator, tr.ID, "again")
	assert.Equal(t, KindConflict, KindOf(err))

	_, err = f.approvals.Decide(f.ctx, operator, req.ID, Decision{Approve: true})
	assert.Equal(t, KindForbidden, KindOf(err))

	out, err := f.approvals.Decide(f.ctx, admin, req.ID, Decision{Approve: true, Notes: "renewal in progress"})
	require.NoError(t, err)
	assert.True(t, out.Applied)
	assert.Equal(t, models.ApprovalApproved, out.Request.Status)
	d := out.Truck.ProcessingDraft
	assert.True(t, d.DocumentsVerified)
	assert.True(t, d.ExceptionallyApproved)
	assert.False(t, d.PendingApproval)
	assert.False(t, d.AllDocumentsAreValid)
	assert.True(t, d.Documents[models.DocInsurance].ExceptionallyApproved)
	assert.False(t, d.Documents[models.DocLicense].ExceptionallyApproved)

	decidedOnce := out.Truck.Version
	_, err = f.approvals.Decide(f.ctx, admin, req.ID, Decision{Approve: false})
	assert.Equal(t, KindConflict, KindOf(err))
	after, err := f.life.Get(f.ctx, tr.ID)
	require.NoError(t, err)
	assert.Equal(t, decidedOnce, after.Version)
	assert.Equal(t, 1, countEvent(after, models.EventApprovalDecided))

	_, err = f.life.RequestDocumentApproval(f.ctx, operator, tr.ID, "")
	assert.Equal(t, KindPrecondition, KindOf(err), "nothing left to approve")

	step2, err := f.life.AdvanceStep(f.ctx, operator, tr.ID, nil)
	require.NoError(t, err)
	assert.Equal(t, models.StepVehicleRisk, step2.ProcessingDraft.CurrentStep)
}

func TestDocumentExceptionRejected(t *testing.T) {
	f := newFixture(t)
	tr := f.startedTruck("DOC2")
	_, err := f.life.SaveDraft(f.ctx, operator, tr.ID, DraftEdit{DocumentDates: map[models.DocumentType]string{
		models.DocLicense: futureDate,
	}})
	require.NoError(t, err)

	res, err := f.life.RequestDocumentApproval(f.ctx, operator, tr.ID, "permit and insurance at depot")
	require.NoError(t, err)
	assert.ElementsMatch(t, []models.DocumentType{models.DocPermit, models.DocInsurance}, res.Request.Documents.Documents)

	out, err := f.approvals.Decide(f.ctx, admin, res.Request.ID, Decision{Approve: false})
	require.NoError(t, err)
	assert.True(t, out.Applied)
	assert.False(t, out.Truck.ProcessingDraft.PendingApproval)
	assert.False(t, out.Truck.ProcessingDraft.DocumentsVerified)

	_, err = f.life.AdvanceStep(f.ctx, operator, tr.ID, nil)
	assert.Equal(t, KindPrecondition, KindOf(err))

	_, err = f.life.RequestDocumentApproval(f.ctx, operator, tr.ID, "second try")
	require.NoError(t, err)
}

func TestSafetyException(t *testing.T) {
	f := newFixture(t)
	tr := f.startedTruck("SAF1")
	_, err := f.life.AdvanceStep(f.ctx, operator, tr.ID, &DraftEdit{DocumentDates: validDocs()})
	require.NoError(t, err)

	checks := allYes()
	checks[4].Response = models.SafetyNo
	saved, err := f.life.SaveDraft(f.ctx, operator, tr.ID, DraftEdit{
		SafetyChecks: checks, VehicleConditionChecked: boolPtr(true),
	})
	require.NoError(t, err)
	assert.False(t, saved.ProcessingDraft.AllSafetyChecksPassed)

	_, err = f.life.AdvanceStep(f.ctx, operator, tr.ID, nil)
	assert.Equal(t, KindPrecondition, KindOf(err))

	res, err := f.life.RequestSafetyApproval(f.ctx, operator, tr.ID, "")
	require.NoError(t, err)
	require.NotNil(t, res.Request.Safety)
	assert.Equal(t, []string{"Overload Check"}, res.Request.Safety.FailedItems)
	assert.Len(t, res.Request.Safety.Checklist, len(SafetyChecklist))
	assert.Contains(t, res.Request.Reason, "Overload Check")
	assert.True(t, res.Truck.ProcessingDraft.SafetyChecksPendingApproval)

	_, err = f.life.RequestSafetyApproval(f.ctx, operator, tr.ID, "")
	assert.Equal(t, KindConflict, KindOf(err))

	out, err := f.approvals.Decide(f.ctx, admin, res.Request.ID, Decision{Approve: true})
	require.NoError(t, err)
	assert.True(t, out.Truck.ProcessingDraft.SafetyChecksExceptionallyApproved)
	assert.False(t, out.Truck.ProcessingDraft.SafetyChecksPendingApproval)

	step3, err := f.life.AdvanceStep(f.ctx, operator, tr.ID, nil)
	require.NoError(t, err)
	assert.Equal(t, models.StepUpload, step3.ProcessingDraft.CurrentStep)
}

func TestSafetyApprovalNotNeeded(t *testing.T) {
	f := newFixture(t)
	tr := f.startedTruck("SAF2")
	_, err := f.life.SaveDraft(f.ctx, operator, tr.ID, DraftEdit{SafetyChecks: allYes()})
	require.NoError(t, err)

	_, err = f.life.RequestSafetyApproval(f.ctx, operator, tr.ID, "")
	assert.Equal(t, KindPrecondition, KindOf(err))

	pending, err := f.approvals.List(f.ctx, models.ApprovalPending, tr.ID)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestApprovalForTruckThatMovedOn(t *testing.T) {
	f := newFixture(t)
	tr := f.startedTruck("STALE1")
	res, err := f.life.RequestDocumentApproval(f.ctx, operator, tr.ID, "all missing")
	require.NoError(t, err)

	_, err = f.life.MoveBackToUpcoming(f.ctx, operator, tr.ID)
	require.NoError(t, err)

	out, err := f.approvals.Decide(f.ctx, admin, res.Request.ID, Decision{Approve: true})
	require.NoError(t, err)
	assert.False(t, out.Applied)
	assert.NotEmpty(t, out.Note)
	assert.Equal(t, models.ApprovalApproved, out.Request.Status)
	assert.Nil(t, out.Truck.ProcessingDraft)
	assert.Equal(t, 0, countEvent(out.Truck, models.EventApprovalDecided))
}

func TestAttachUpload(t *testing.T) {
	f := newFixture(t)
	tr := f.startedTruck("UP1")

	_, err := f.life.AttachUpload(f.ctx, operator, tr.ID, "", "https://files.example/x.pdf")
	assert.Equal(t, KindValidation, KindOf(err))

	got, err := f.life.AttachUpload(f.ctx, operator, tr.ID, "invoice.pdf", "https://files.example/invoice.pdf")
	require.NoError(t, err)
	require.Len(t, got.ProcessingDraft.Uploads, 1)
	assert.Equal(t, "invoice.pdf", got.ProcessingDraft.Uploads[0].Name)
	assert.Equal(t, "Ravi", got.ProcessingDraft.Uploads[0].UploadedBy)

	got, err = f.life.AttachUpload(f.ctx, operator, tr.ID, "lr.jpg", "https://files.example/lr.jpg")
	require.NoError(t, err)
	assert.Len(t, got.ProcessingDraft.Uploads, 2)
}
