package services

import "yardtrack/models"

// SafetyChecklist is the fixed, ordered gate safety checklist.
var SafetyChecklist = []string{
	"Alcohol Check",
	"Flammable Items Removed",
	"Spark Arrestor Fitted",
	"Speed Limit Acknowledged",
	"Overload Check",
	"Lights and Indicators Working",
}

func SafetyStatusFor(r models.SafetyResponse) models.SafetyStatus {
	if r == models.SafetyYes {
		return models.SafetyPass
	}
	return models.SafetyFail
}

// DefaultSafetyChecks starts every item at No so each one is confirmed explicitly.
func DefaultSafetyChecks() []models.SafetyCheckItem {
	items := make([]models.SafetyCheckItem, len(SafetyChecklist))
	for i, name := range SafetyChecklist {
		items[i] = models.SafetyCheckItem{Name: name, Response: models.SafetyNo, Status: models.SafetyFail}
	}
	return items
}

// NormalizeSafetyChecks validates responses against the checklist and
// recomputes every item status. Items are matched by name; order follows the checklist.
func NormalizeSafetyChecks(items []models.SafetyCheckItem) ([]models.SafetyCheckItem, error) {
	if len(items) != len(SafetyChecklist) {
		return nil, validationf("safety checklist must have %d items, got %d", len(SafetyChecklist), len(items))
	}
	byName := make(map[string]models.SafetyResponse, len(items))
	for _, it := range items {
		if it.Response != models.SafetyYes && it.Response != models.SafetyNo {
			return nil, validationf("safety check %q: response must be Yes or No", it.Name)
		}
		byName[it.Name] = it.Response
	}
	out := make([]models.SafetyCheckItem, len(SafetyChecklist))
	for i, name := range SafetyChecklist {
		r, ok := byName[name]
		if !ok {
			return nil, validationf("safety check %q missing", name)
		}
		out[i] = models.SafetyCheckItem{Name: name, Response: r, Status: SafetyStatusFor(r)}
	}
	return out, nil
}

func AllSafetyChecksPassed(items []models.SafetyCheckItem) bool {
	if len(items) != len(SafetyChecklist) {
		return false
	}
	for _, it := range items {
		if it.Status != models.SafetyPass {
			return false
		}
	}
	return true
}

func FailedSafetyItems(items []models.SafetyCheckItem) []string {
	var failed []string
	for _, it := range items {
		if it.Status != models.SafetyPass {
			failed = append(failed, it.Name)
		}
	}
	return failed
}

// safetyCleared is the step-2 safety half of the gate.
func safetyCleared(form *models.ProcessingForm) bool {
	return form.AllSafetyChecksPassed || form.SafetyChecksExceptionallyApproved
}
