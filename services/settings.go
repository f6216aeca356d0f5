package services

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"yardtrack/models"
	"yardtrack/repository"

	"go.uber.org/zap"
)

// Settings is the configuration provider: organization settings documents
// read by the lifecycle and written by admins.
type Settings struct {
	deps Deps
}

func NewSettings(d Deps) *Settings {
	return &Settings{deps: d.withDefaults()}
}

func requireAdmin(actor models.Actor, action string) error {
	if !actor.IsAdmin() {
		return forbiddenf("only an admin may %s", action)
	}
	return nil
}

func (s *Settings) get(ctx context.Context, name string, out any) (bool, error) {
	ok, err := s.deps.Settings.GetSettings(ctx, name, out)
	if err != nil {
		return false, storeErr(err, name+" settings")
	}
	return ok, nil
}

func (s *Settings) write(ctx context.Context, actor models.Actor, name string, version int64, set map[string]any) error {
	set["updatedBy"] = actor.Label()
	err := s.deps.Settings.PatchSettings(ctx, name, version, repository.Patch{
		Set:         set,
		CurrentDate: []string{"updatedAt"},
	})
	if err != nil {
		return storeErr(err, name+" settings")
	}
	s.deps.Logger.Info("settings updated", zap.String("settings", name), zap.String("by", actor.ID))
	return nil
}

func (s *Settings) Docks(ctx context.Context) (models.DockSettings, error) {
	var ds models.DockSettings
	if _, err := s.get(ctx, models.SettingsDocks, &ds); err != nil {
		return ds, err
	}
	if ds.Docks == nil {
		ds.Docks = []models.Dock{}
	}
	return ds, nil
}

// ServiceableDestinations lists the destinations a gate-keeper may pick:
// serviceable docks by name, then internal parking.
func (s *Settings) ServiceableDestinations(ctx context.Context) ([]string, error) {
	ds, err := s.Docks(ctx)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, d := range ds.Docks {
		if d.IsServiceable {
			out = append(out, d.Name)
		}
	}
	sort.Strings(out)
	return append(out, models.DestinationInternalParking), nil
}

func (s *Settings) serviceableDock(ctx context.Context, name string) error {
	ds, err := s.Docks(ctx)
	if err != nil {
		return err
	}
	for _, d := range ds.Docks {
		if d.Name == name {
			if !d.IsServiceable {
				return validationf("dock %q is not serviceable", name)
			}
			return nil
		}
	}
	return validationf("dock %q does not exist", name)
}

func (s *Settings) AddDock(ctx context.Context, actor models.Actor, name string, serviceable bool) (models.Dock, error) {
	if err := requireAdmin(actor, "add docks"); err != nil {
		return models.Dock{}, err
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return models.Dock{}, validationf("dock name is required")
	}
	if name == models.DestinationInternalParking {
		return models.Dock{}, validationf("%q is reserved", name)
	}
	ds, err := s.Docks(ctx)
	if err != nil {
		return models.Dock{}, err
	}
	for _, d := range ds.Docks {
		if strings.EqualFold(d.Name, name) {
			return models.Dock{}, validationf("dock %q already exists", name)
		}
	}
	dock := models.Dock{ID: s.deps.NewID(), Name: name, IsServiceable: serviceable}
	docks := append(append([]models.Dock{}, ds.Docks...), dock)
	if err := s.write(ctx, actor, models.SettingsDocks, ds.Version, map[string]any{"docks": docks}); err != nil {
		return models.Dock{}, err
	}
	return dock, nil
}

func (s *Settings) SetDockServiceable(ctx context.Context, actor models.Actor, id string, serviceable bool) (models.Dock, error) {
	if err := requireAdmin(actor, "change docks"); err != nil {
		return models.Dock{}, err
	}
	ds, err := s.Docks(ctx)
	if err != nil {
		return models.Dock{}, err
	}
	docks := append([]models.Dock{}, ds.Docks...)
	for i := range docks {
		if docks[i].ID == id {
			docks[i].IsServiceable = serviceable
			if err := s.write(ctx, actor, models.SettingsDocks, ds.Version, map[string]any{"docks": docks}); err != nil {
				return models.Dock{}, err
			}
			return docks[i], nil
		}
	}
	return models.Dock{}, notFoundf("dock %s not found", id)
}

// RemoveDock refuses while any truck at the gate or inside is assigned to it.
func (s *Settings) RemoveDock(ctx context.Context, actor models.Actor, id string) error {
	if err := requireAdmin(actor, "remove docks"); err != nil {
		return err
	}
	ds, err := s.Docks(ctx)
	if err != nil {
		return err
	}
	idx := -1
	for i, d := range ds.Docks {
		if d.ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		return notFoundf("dock %s not found", id)
	}
	name := ds.Docks[idx].Name

	inUse, err := s.deps.Trucks.ListTrucks(ctx, []repository.Filter{
		repository.Eq("dockAssigned", name),
		repository.In("status", models.StatusAtGate, models.StatusInside),
		repository.Eq("isDeleted", false),
	}, nil)
	if err != nil {
		return storeErr(err, "trucks")
	}
	if len(inUse) > 0 {
		return validationf("dock %q is assigned to %d truck(s), e.g. %s", name, len(inUse), inUse[0].TruckNumber)
	}

	docks := append(append([]models.Dock{}, ds.Docks[:idx]...), ds.Docks[idx+1:]...)
	return s.write(ctx, actor, models.SettingsDocks, ds.Version, map[string]any{"docks": docks})
}

func (s *Settings) Weighbridge(ctx context.Context) (models.WeighbridgeSettings, error) {
	var ws models.WeighbridgeSettings
	ok, err := s.get(ctx, models.SettingsWeighbridge, &ws)
	if err != nil {
		return ws, err
	}
	if !ok || ws.ThresholdPercent <= 0 {
		ws.ThresholdPercent = models.DefaultWeightThresholdPercent
	}
	return ws, nil
}

func (s *Settings) UpdateWeighbridge(ctx context.Context, actor models.Actor, threshold float64) (models.WeighbridgeSettings, error) {
	if err := requireAdmin(actor, "change the weighbridge threshold"); err != nil {
		return models.WeighbridgeSettings{}, err
	}
	if threshold <= 0 || threshold > 100 {
		return models.WeighbridgeSettings{}, validationf("threshold must be within (0, 100], got %v", threshold)
	}
	if err := s.write(ctx, actor, models.SettingsWeighbridge, repository.AnyVersion,
		map[string]any{"thresholdPercent": threshold}); err != nil {
		return models.WeighbridgeSettings{}, err
	}
	return s.Weighbridge(ctx)
}

func (s *Settings) TAT(ctx context.Context) (models.TATSettings, error) {
	defaults := models.DefaultTATSettings()
	var ts models.TATSettings
	ok, err := s.get(ctx, models.SettingsTAT, &ts)
	if err != nil {
		return ts, err
	}
	if !ok {
		return defaults, nil
	}
	if ts.IdealMinutes == nil {
		ts.IdealMinutes = map[models.MaterialType]int{}
	}
	for m, v := range defaults.IdealMinutes {
		if ts.IdealMinutes[m] <= 0 {
			ts.IdealMinutes[m] = v
		}
	}
	if ts.WarningPercent <= 0 {
		ts.WarningPercent = defaults.WarningPercent
	}
	if ts.CriticalPercent <= 0 {
		ts.CriticalPercent = defaults.CriticalPercent
	}
	return ts, nil
}

func (s *Settings) UpdateTAT(ctx context.Context, actor models.Actor, in models.TATSettings) (models.TATSettings, error) {
	if err := requireAdmin(actor, "change TAT settings"); err != nil {
		return models.TATSettings{}, err
	}
	set := map[string]any{}
	for m, v := range in.IdealMinutes {
		if !m.IsValid() {
			return models.TATSettings{}, validationf("unknown material type %q", m)
		}
		if v <= 0 {
			return models.TATSettings{}, validationf("ideal minutes for %s must be positive", m)
		}
		set["idealMinutes."+string(m)] = v
	}
	if in.WarningPercent < 0 || in.CriticalPercent < 0 {
		return models.TATSettings{}, validationf("percentages must not be negative")
	}
	if in.WarningPercent > 0 {
		set["warningPercent"] = in.WarningPercent
	}
	if in.CriticalPercent > 0 {
		set["criticalPercent"] = in.CriticalPercent
	}
	current, err := s.TAT(ctx)
	if err != nil {
		return models.TATSettings{}, err
	}
	warn, crit := current.WarningPercent, current.CriticalPercent
	if in.WarningPercent > 0 {
		warn = in.WarningPercent
	}
	if in.CriticalPercent > 0 {
		crit = in.CriticalPercent
	}
	if crit < warn {
		return models.TATSettings{}, validationf("critical percent %v is below warning percent %v", crit, warn)
	}
	if err := s.write(ctx, actor, models.SettingsTAT, repository.AnyVersion, set); err != nil {
		return models.TATSettings{}, err
	}
	return s.TAT(ctx)
}

func (s *Settings) SafetyEquipment(ctx context.Context) (models.SafetyEquipmentInventory, error) {
	var inv models.SafetyEquipmentInventory
	_, err := s.get(ctx, models.SettingsSafetyEquipment, &inv)
	return inv, err
}

func (s *Settings) UpdateSafetyEquipment(ctx context.Context, actor models.Actor, wheelChokes, safetyShoes int64) (models.SafetyEquipmentInventory, error) {
	if err := requireAdmin(actor, "change safety equipment inventory"); err != nil {
		return models.SafetyEquipmentInventory{}, err
	}
	if wheelChokes < 0 || safetyShoes < 0 {
		return models.SafetyEquipmentInventory{}, validationf("inventory counts must not be negative")
	}
	err := s.write(ctx, actor, models.SettingsSafetyEquipment, repository.AnyVersion, map[string]any{
		"wheelChokes": wheelChokes,
		"safetyShoes": safetyShoes,
	})
	if err != nil {
		return models.SafetyEquipmentInventory{}, err
	}
	return s.SafetyEquipment(ctx)
}

// adjustInventory applies an atomic increment; negative delta issues stock.
func (s *Settings) adjustInventory(ctx context.Context, kind models.EquipmentKind, delta int64) error {
	if delta == 0 {
		return nil
	}
	err := s.deps.Settings.PatchSettings(ctx, models.SettingsSafetyEquipment, repository.AnyVersion, repository.Patch{
		Inc: map[string]int64{kind.InventoryField(): delta},
	})
	if err != nil {
		return fmt.Errorf("adjust %s inventory: %w", kind, err)
	}
	return nil
}

func (s *Settings) Transporters(ctx context.Context) (models.TransporterSettings, error) {
	var ts models.TransporterSettings
	if _, err := s.get(ctx, models.SettingsTransporters, &ts); err != nil {
		return ts, err
	}
	if ts.Names == nil {
		ts.Names = []string{}
	}
	return ts, nil
}

func (s *Settings) UpdateTransporters(ctx context.Context, actor models.Actor, names []string) (models.TransporterSettings, error) {
	if err := requireAdmin(actor, "change transporters"); err != nil {
		return models.TransporterSettings{}, err
	}
	seen := map[string]bool{}
	clean := []string{}
	for _, n := range names {
		n = strings.TrimSpace(n)
		if n == "" || seen[strings.ToLower(n)] {
			continue
		}
		seen[strings.ToLower(n)] = true
		clean = append(clean, n)
	}
	if err := s.write(ctx, actor, models.SettingsTransporters, repository.AnyVersion,
		map[string]any{"names": clean}); err != nil {
		return models.TransporterSettings{}, err
	}
	return s.Transporters(ctx)
}
