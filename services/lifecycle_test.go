package services

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"yardtrack/models"
	"yardtrack/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

var (
	operator = models.Actor{ID: "u-op", Name: "Ravi", Role: models.RoleOperator}
	admin    = models.Actor{ID: "u-admin", Name: "Meera", Role: models.RoleAdmin}
)

const (
	futureDate = "2027-12-31"
	pastDate   = "2026-01-01"
)

type testClock struct{ t time.Time }

func (c *testClock) now() time.Time          { return c.t }
func (c *testClock) advance(d time.Duration) { c.t = c.t.Add(d) }

// flakyStore fails the next Patch on a collection with a queued error.
type flakyStore struct {
	repository.DocumentStore

	mu    sync.Mutex
	fails map[string]error
}

func (s *flakyStore) failNextPatch(collection string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fails == nil {
		s.fails = map[string]error{}
	}
	s.fails[collection] = err
}

func (s *flakyStore) Patch(ctx context.Context, collection, id string, expectedVersion int64, p repository.Patch) error {
	s.mu.Lock()
	err, ok := s.fails[collection]
	delete(s.fails, collection)
	s.mu.Unlock()
	if ok {
		return err
	}
	return s.DocumentStore.Patch(ctx, collection, id, expectedVersion, p)
}

// hookLocker runs onLock once the lock is held.
type hookLocker struct {
	Locker
	onLock func(key string)
}

func (l *hookLocker) Lock(ctx context.Context, key string) (func(), error) {
	unlock, err := l.Locker.Lock(ctx, key)
	if err == nil && l.onLock != nil {
		l.onLock(key)
	}
	return unlock, err
}

type fixture struct {
	t         *testing.T
	ctx       context.Context
	clock     *testClock
	store     *repository.MemoryStore
	flaky     *flakyStore
	locker    *hookLocker
	deps      Deps
	settings  *Settings
	approvals *Approvals
	life      *Lifecycle
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	clock := &testClock{t: time.Date(2026, 10, 16, 8, 0, 0, 0, time.UTC)}
	store := repository.NewMemoryStore().WithClock(clock.now)

	flaky := &flakyStore{DocumentStore: store}
	locker := &hookLocker{Locker: NewLocalLocker()}

	var seq int64
	d := NewDeps(flaky, locker, zaptest.NewLogger(t))
	d.Now = clock.now
	d.NewID = func() string { return fmt.Sprintf("id-%04d", atomic.AddInt64(&seq, 1)) }

	settings := NewSettings(d)
	approvals := NewApprovals(d)
	return &fixture{
		t:         t,
		ctx:       context.Background(),
		clock:     clock,
		store:     store,
		flaky:     flaky,
		locker:    locker,
		deps:      d,
		settings:  settings,
		approvals: approvals,
		life:      NewLifecycle(d, settings, approvals),
	}
}

func (f *fixture) register(number string, atGate bool) *models.Truck {
	f.t.Helper()
	tr, err := f.life.Register(f.ctx, operator, RegisterTruckInput{
		TruckNumber:  number,
		DriverName:   "Driver " + number,
		MaterialType: models.MaterialFG,
		AtGate:       atGate,
	})
	require.NoError(f.t, err)
	return tr
}

func (f *fixture) addDock(name string, serviceable bool) models.Dock {
	f.t.Helper()
	d, err := f.settings.AddDock(f.ctx, admin, name, serviceable)
	require.NoError(f.t, err)
	return d
}

func (f *fixture) allow(id, destination string) *models.Truck {
	f.t.Helper()
	tr, err := f.life.DecideEntry(f.ctx, operator, id, EntryDecisionInput{
		Decision:    models.EntryAllowed,
		Destination: destination,
	})
	require.NoError(f.t, err)
	return tr
}

func allYes() []models.SafetyCheckItem {
	items := DefaultSafetyChecks()
	for i := range items {
		items[i].Response = models.SafetyYes
	}
	return items
}

func validDocs() map[models.DocumentType]string {
	return map[models.DocumentType]string{
		models.DocLicense:   futureDate,
		models.DocPermit:    futureDate,
		models.DocInsurance: futureDate,
	}
}

func boolPtr(b bool) *bool { return &b }

// processToInside runs the whole gate processing form with passing inputs.
func (f *fixture) processToInside(id string, next models.Milestone) *models.Truck {
	f.t.Helper()
	_, err := f.life.StartProcessing(f.ctx, operator, id)
	require.NoError(f.t, err)
	_, err = f.life.AdvanceStep(f.ctx, operator, id, &DraftEdit{DocumentDates: validDocs()})
	require.NoError(f.t, err)
	_, err = f.life.AdvanceStep(f.ctx, operator, id, &DraftEdit{
		SafetyChecks:            allYes(),
		VehicleConditionChecked: boolPtr(true),
	})
	require.NoError(f.t, err)
	_, err = f.life.AdvanceStep(f.ctx, operator, id, nil)
	require.NoError(f.t, err)
	_, err = f.life.SaveDraft(f.ctx, operator, id, DraftEdit{
		NextMilestone:       &next,
		ProcessingCompleted: boolPtr(true),
	})
	require.NoError(f.t, err)
	tr, err := f.life.CompleteProcessing(f.ctx, operator, id)
	require.NoError(f.t, err)
	return tr
}

func events(tr *models.Truck) []string {
	out := make([]string, len(tr.History))
	for i, e := range tr.History {
		out[i] = e.Event
	}
	return out
}

func countEvent(tr *models.Truck, event string) int {
	n := 0
	for _, e := range tr.History {
		if e.Event == event {
			n++
		}
	}
	return n
}

func TestRegisterValidation(t *testing.T) {
	f := newFixture(t)

	_, err := f.life.Register(f.ctx, operator, RegisterTruckInput{DriverName: "x"})
	assert.Equal(t, KindValidation, KindOf(err))
	_, err = f.life.Register(f.ctx, operator, RegisterTruckInput{TruckNumber: "MH12AB1234"})
	assert.Equal(t, KindValidation, KindOf(err))
	_, err = f.life.Register(f.ctx, operator, RegisterTruckInput{
		TruckNumber: "MH12AB1234", DriverName: "x", MaterialType: "coal",
	})
	assert.Equal(t, KindValidation, KindOf(err))

	tr := f.register(" mh12ab1234 ", false)
	assert.Equal(t, "MH12AB1234", tr.TruckNumber)
	assert.Equal(t, models.StatusUpcoming, tr.Status)
	assert.Nil(t, tr.ArrivedAt)
	assert.Equal(t, []string{models.EventRegistered}, events(tr))
	assert.Equal(t, int64(1), tr.Version)
}

func TestGateQueueIsFIFO(t *testing.T) {
	f := newFixture(t)

	late := f.register("LATE", false)
	first := f.register("FIRST", true)
	f.clock.advance(5 * time.Minute)
	second := f.register("SECOND", false)
	_, err := f.life.MoveToGate(f.ctx, operator, second.ID)
	require.NoError(t, err)
	f.clock.advance(5 * time.Minute)
	_, err = f.life.MoveToGate(f.ctx, operator, late.ID)
	require.NoError(t, err)

	atGate, err := f.life.List(f.ctx, models.StatusAtGate)
	require.NoError(t, err)
	var order []string
	for _, tr := range atGate {
		order = append(order, tr.TruckNumber)
	}
	assert.Equal(t, []string{"FIRST", "SECOND", "LATE"}, order)

	_, err = f.life.MoveToGate(f.ctx, operator, first.ID)
	assert.Equal(t, KindPrecondition, KindOf(err))

	_, err = f.life.List(f.ctx, "Parked")
	assert.Equal(t, KindValidation, KindOf(err))
}

func TestMoveBackToUpcomingClearsGateVisit(t *testing.T) {
	f := newFixture(t)
	tr := f.register("MB1", true)
	f.allow(tr.ID, models.DestinationInternalParking)
	_, err := f.life.StartProcessing(f.ctx, operator, tr.ID)
	require.NoError(t, err)

	got, err := f.life.MoveBackToUpcoming(f.ctx, operator, tr.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusUpcoming, got.Status)
	assert.Equal(t, models.EntryUndecided, got.EntryStatus)
	assert.Empty(t, got.PlannedDestination)
	assert.Empty(t, got.NextMilestone)
	assert.Nil(t, got.ArrivedAt)
	assert.Nil(t, got.ProcessingDraft)
	assert.Equal(t, models.EventMovedBackToUpcoming, got.History[len(got.History)-1].Event)
	assert.Equal(t, models.StatusUpcoming, got.History[len(got.History)-1].Status)
}

func TestDecideEntry(t *testing.T) {
	f := newFixture(t)
	f.addDock("Dock A", true)
	f.addDock("Dock B", false)
	tr := f.register("GATE1", true)

	dests, err := f.settings.ServiceableDestinations(f.ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"Dock A", models.DestinationInternalParking}, dests)

	cases := []struct {
		name string
		in   EntryDecisionInput
	}{
		{"unknown decision", EntryDecisionInput{Decision: "maybe"}},
		{"allowed without destination", EntryDecisionInput{Decision: models.EntryAllowed}},
		{"unserviceable dock", EntryDecisionInput{Decision: models.EntryAllowed, Destination: "Dock B"}},
		{"unknown dock", EntryDecisionInput{Decision: models.EntryAllowed, Destination: "Dock Z"}},
		{"held without reason", EntryDecisionInput{Decision: models.EntryHeld}},
	}
	for _, c := range cases {
		_, err := f.life.DecideEntry(f.ctx, operator, tr.ID, c.in)
		assert.Equal(t, KindValidation, KindOf(err), c.name)
	}
	unchanged, err := f.life.Get(f.ctx, tr.ID)
	require.NoError(t, err)
	assert.Equal(t, tr.Version, unchanged.Version)

	held, err := f.life.DecideEntry(f.ctx, operator, tr.ID, EntryDecisionInput{
		Decision: models.EntryHeld, Reason: "paperwork at office",
	})
	require.NoError(t, err)
	assert.Equal(t, models.EntryHeld, held.EntryStatus)
	assert.Equal(t, "paperwork at office", held.HoldReason)

	_, err = f.life.StartProcessing(f.ctx, operator, tr.ID)
	assert.Equal(t, KindPrecondition, KindOf(err))

	allowed := f.allow(tr.ID, "Dock A")
	assert.Equal(t, models.EntryAllowed, allowed.EntryStatus)
	assert.Equal(t, "Dock A", allowed.DockAssigned)
	assert.Empty(t, allowed.HoldReason)
	assert.Empty(t, allowed.NextMilestone)

	_, err = f.life.DecideEntry(f.ctx, operator, tr.ID, EntryDecisionInput{
		Decision: models.EntryExternalParking,
	})
	assert.Equal(t, KindPrecondition, KindOf(err))
}

func TestDockServiceabilityCheckedUnderTruckLock(t *testing.T) {
	f := newFixture(t)
	dockA := f.addDock("Dock A", true)
	dockC := f.addDock("Dock C", true)
	tr := f.register("LCK1", true)

	// an admin takes the dock out of service while the request waits for the truck
	f.locker.onLock = func(string) {
		f.locker.onLock = nil
		_, err := f.settings.SetDockServiceable(f.ctx, admin, dockA.ID, false)
		require.NoError(t, err)
	}
	_, err := f.life.DecideEntry(f.ctx, operator, tr.ID, EntryDecisionInput{
		Decision: models.EntryAllowed, Destination: "Dock A",
	})
	assert.Equal(t, KindValidation, KindOf(err))

	got, err := f.life.Get(f.ctx, tr.ID)
	require.NoError(t, err)
	assert.Empty(t, got.DockAssigned)
	assert.Equal(t, tr.Version, got.Version)

	f.allow(tr.ID, "Dock C")
	f.processToInside(tr.ID, models.MilestoneWeighBridge)

	f.locker.onLock = func(string) {
		f.locker.onLock = nil
		_, err := f.settings.SetDockServiceable(f.ctx, admin, dockA.ID, true)
		require.NoError(t, err)
	}
	moved, err := f.life.AssignDock(f.ctx, operator, tr.ID, "Dock A")
	require.NoError(t, err, "dock A was restored before the check")
	assert.Equal(t, "Dock A", moved.DockAssigned)

	f.locker.onLock = func(string) {
		f.locker.onLock = nil
		_, err := f.settings.SetDockServiceable(f.ctx, admin, dockC.ID, false)
		require.NoError(t, err)
	}
	_, err = f.life.AssignDock(f.ctx, operator, tr.ID, "Dock C")
	assert.Equal(t, KindValidation, KindOf(err))

	got, err = f.life.Get(f.ctx, tr.ID)
	require.NoError(t, err)
	assert.Equal(t, "Dock A", got.DockAssigned)
}

func TestInternalParkingThenWeighbridgeDispatch(t *testing.T) {
	f := newFixture(t)
	tr := f.register("IP1", true)

	allowed := f.allow(tr.ID, models.DestinationInternalParking)
	assert.Equal(t, models.MilestoneInternalParking, allowed.NextMilestone)
	assert.Empty(t, allowed.DockAssigned)

	_, err := f.life.DispatchToWeighbridge(f.ctx, operator, tr.ID)
	assert.Equal(t, KindPrecondition, KindOf(err), "not inside yet")

	inside := f.processToInside(tr.ID, models.MilestoneInternalParking)
	assert.Equal(t, models.StatusInside, inside.Status)
	assert.Equal(t, models.MilestoneInternalParking, inside.NextMilestone)

	dispatched, err := f.life.DispatchToWeighbridge(f.ctx, operator, tr.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusInside, dispatched.Status)
	assert.Equal(t, models.MilestoneWeighBridge, dispatched.NextMilestone)

	_, err = f.life.DispatchToWeighbridge(f.ctx, operator, tr.ID)
	assert.Equal(t, KindPrecondition, KindOf(err))
}

func TestDockUnloadingAndExit(t *testing.T) {
	f := newFixture(t)
	dock := f.addDock("Dock A", true)
	f.addDock("Dock C", true)
	tr := f.register("DK1", true)
	f.allow(tr.ID, "Dock A")

	require.Error(t, f.settings.RemoveDock(f.ctx, admin, dock.ID))

	inside := f.processToInside(tr.ID, models.MilestoneWeighBridge)
	assert.Equal(t, "Dock A", inside.DockAssigned)

	err := f.settings.RemoveDock(f.ctx, admin, dock.ID)
	assert.Equal(t, KindValidation, KindOf(err), "dock is in use by an inside truck")

	_, err = f.life.CompleteUnloading(f.ctx, operator, tr.ID)
	assert.Equal(t, KindPrecondition, KindOf(err))

	started, err := f.life.StartUnloading(f.ctx, operator, tr.ID)
	require.NoError(t, err)
	require.NotNil(t, started.UnloadingStartedAt)

	_, err = f.life.AssignDock(f.ctx, operator, tr.ID, "Dock C")
	assert.Equal(t, KindPrecondition, KindOf(err), "cannot move while unloading")

	done, err := f.life.CompleteUnloading(f.ctx, operator, tr.ID)
	require.NoError(t, err)
	require.NotNil(t, done.UnloadingCompletedAt)

	moved, err := f.life.AssignDock(f.ctx, operator, tr.ID, "Dock C")
	require.NoError(t, err)
	assert.Equal(t, "Dock C", moved.DockAssigned)
	assert.Nil(t, moved.UnloadingStartedAt)

	exited, err := f.life.Exit(f.ctx, operator, tr.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusExited, exited.Status)
	require.NotNil(t, exited.ExitedAt)

	_, err = f.life.Exit(f.ctx, operator, tr.ID)
	assert.Equal(t, KindPrecondition, KindOf(err))
	_, err = f.life.SoftDelete(f.ctx, operator, tr.ID)
	assert.Equal(t, KindPrecondition, KindOf(err))

	require.NoError(t, f.settings.RemoveDock(f.ctx, admin, dock.ID))
}

func TestSoftDeleteHidesTruck(t *testing.T) {
	f := newFixture(t)
	keep := f.register("KEEP", false)
	gone := f.register("GONE", true)

	deleted, err := f.life.SoftDelete(f.ctx, operator, gone.ID)
	require.NoError(t, err)
	assert.True(t, deleted.IsDeleted)
	assert.Equal(t, models.StatusDeleted, deleted.Status)
	assert.Equal(t, "Ravi", deleted.DeletedBy)

	all, err := f.life.List(f.ctx, "")
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, keep.ID, all[0].ID)

	atGate, err := f.life.List(f.ctx, models.StatusAtGate)
	require.NoError(t, err)
	assert.Empty(t, atGate)

	bin, err := f.life.List(f.ctx, models.StatusDeleted)
	require.NoError(t, err)
	require.Len(t, bin, 1)
	assert.Equal(t, gone.ID, bin[0].ID)

	_, err = f.life.SetChannel(f.ctx, operator, gone.ID, models.ChannelGreen)
	assert.Equal(t, KindPrecondition, KindOf(err))
}

func TestSetChannelSkipsNoop(t *testing.T) {
	f := newFixture(t)
	tr := f.register("CH1", false)

	_, err := f.life.SetChannel(f.ctx, operator, tr.ID, "blue")
	assert.Equal(t, KindValidation, KindOf(err))

	green, err := f.life.SetChannel(f.ctx, operator, tr.ID, models.ChannelGreen)
	require.NoError(t, err)
	assert.Equal(t, models.ChannelGreen, green.ChannelType)

	again, err := f.life.SetChannel(f.ctx, operator, tr.ID, models.ChannelGreen)
	require.NoError(t, err)
	assert.Equal(t, green.Version, again.Version)
	assert.Equal(t, 1, countEvent(again, models.EventChannelSet))
}

func TestMissingTruck(t *testing.T) {
	f := newFixture(t)
	_, err := f.life.MoveToGate(f.ctx, operator, "nope")
	assert.Equal(t, KindNotFound, KindOf(err))
	_, err = f.life.Get(f.ctx, "nope")
	assert.Equal(t, KindNotFound, KindOf(err))
}

func TestIssueEquipmentAdjustsInventoryByDelta(t *testing.T) {
	f := newFixture(t)
	_, err := f.settings.UpdateSafetyEquipment(f.ctx, admin, 10, 2)
	require.NoError(t, err)
	tr := f.register("EQ1", true)

	inventory := func() models.SafetyEquipmentInventory {
		inv, err := f.settings.SafetyEquipment(f.ctx)
		require.NoError(t, err)
		return inv
	}

	_, err = f.life.IssueEquipment(f.ctx, operator, tr.ID, IssueEquipmentInput{Kind: models.EquipmentWheelChoke})
	assert.Equal(t, KindValidation, KindOf(err))
	_, err = f.life.IssueEquipment(f.ctx, operator, tr.ID, IssueEquipmentInput{Kind: "helmet", Quantity: 1})
	assert.Equal(t, KindValidation, KindOf(err))

	got, err := f.life.IssueEquipment(f.ctx, operator, tr.ID, IssueEquipmentInput{
		Kind: models.EquipmentWheelChoke, Quantity: 4, Remarks: "rear axle",
	})
	require.NoError(t, err)
	require.NotNil(t, got.IssuedWheelChoke)
	assert.Equal(t, int64(4), got.IssuedWheelChoke.Quantity)
	assert.Equal(t, int64(6), inventory().WheelChokes)

	_, err = f.life.IssueEquipment(f.ctx, operator, tr.ID, IssueEquipmentInput{Kind: models.EquipmentWheelChoke, Quantity: 6})
	require.NoError(t, err)
	assert.Equal(t, int64(4), inventory().WheelChokes)

	_, err = f.life.IssueEquipment(f.ctx, operator, tr.ID, IssueEquipmentInput{Kind: models.EquipmentWheelChoke, Quantity: 1})
	require.NoError(t, err)
	assert.Equal(t, int64(9), inventory().WheelChokes)

	_, err = f.life.IssueEquipment(f.ctx, operator, tr.ID, IssueEquipmentInput{Kind: models.EquipmentSafetyShoe, Quantity: 3})
	assert.Equal(t, KindValidation, KindOf(err), "only 2 shoes in stock")
	assert.Equal(t, int64(2), inventory().SafetyShoes)

	upcoming := f.register("EQ2", false)
	_, err = f.life.IssueEquipment(f.ctx, operator, upcoming.ID, IssueEquipmentInput{Kind: models.EquipmentSafetyShoe, Quantity: 1})
	assert.Equal(t, KindPrecondition, KindOf(err))
}

func TestTAT(t *testing.T) {
	f := newFixture(t)
	upcoming := f.register("TAT0", false)
	rep, err := f.life.TAT(f.ctx, upcoming.ID)
	require.NoError(t, err)
	assert.False(t, rep.Running)
	assert.Equal(t, int64(0), rep.ElapsedMinutes)

	tr := f.register("TAT1", true)
	f.clock.advance(130 * time.Minute)

	rep, err = f.life.TAT(f.ctx, tr.ID)
	require.NoError(t, err)
	assert.True(t, rep.Running)
	assert.Equal(t, int64(130), rep.ElapsedMinutes)
	assert.Equal(t, 120, rep.IdealMinutes)
	assert.Equal(t, 108.33, rep.PercentOfIdeal)
	assert.Equal(t, TATWarning, rep.Level)

	_, err = f.settings.UpdateTAT(f.ctx, admin, models.TATSettings{
		IdealMinutes: map[models.MaterialType]int{models.MaterialFG: 60},
	})
	require.NoError(t, err)
	rep, err = f.life.TAT(f.ctx, tr.ID)
	require.NoError(t, err)
	assert.Equal(t, TATCritical, rep.Level)
}
