package services

import (
	"regexp"
	"strings"
	"time"

	"yardtrack/models"

	"github.com/jinzhu/now"
)

// a validity value must carry at least a calendar date
var datePrefix = regexp.MustCompile(`^\d{4}[-./]\d{1,2}[-./]\d{1,2}`)

// IsDocumentValid reports whether validUntil is a date strictly later than at.
// Empty and unparseable values are invalid. Date-only values mean midnight UTC.
func IsDocumentValid(validUntil string, at time.Time) bool {
	s := strings.TrimSpace(validUntil)
	if s == "" || !datePrefix.MatchString(s) {
		return false
	}
	t, err := now.New(at.UTC()).Parse(s)
	if err != nil {
		return false
	}
	return t.After(at)
}

type DocumentEvaluation struct {
	Valid         map[models.DocumentType]bool
	AllValid      bool
	Verified      bool
	NeedsApproval bool
	// Blocking lists mandatory documents that are invalid and not approved.
	Blocking []models.DocumentType
}

func EvaluateDocuments(docs map[models.DocumentType]models.DocumentCheck, at time.Time) DocumentEvaluation {
	ev := DocumentEvaluation{
		Valid:    map[models.DocumentType]bool{},
		AllValid: true,
		Verified: true,
	}
	for dt, d := range docs {
		ev.Valid[dt] = IsDocumentValid(d.ValidUntil, at)
	}
	for _, dt := range models.MandatoryDocuments {
		valid := ev.Valid[dt]
		if !valid {
			ev.AllValid = false
		}
		if !valid && !docs[dt].ExceptionallyApproved {
			ev.Verified = false
			ev.Blocking = append(ev.Blocking, dt)
		}
	}
	ev.NeedsApproval = len(ev.Blocking) > 0
	return ev
}

// applyDocumentAggregates recomputes the document aggregates on form.
func applyDocumentAggregates(form *models.ProcessingForm, at time.Time) DocumentEvaluation {
	ev := EvaluateDocuments(form.Documents, at)
	form.AllDocumentsAreValid = ev.AllValid
	form.DocumentsVerified = ev.Verified
	for dt, d := range form.Documents {
		d.Verified = ev.Valid[dt] || d.ExceptionallyApproved
		form.Documents[dt] = d
	}
	return ev
}

func defaultDocuments() map[models.DocumentType]models.DocumentCheck {
	return map[models.DocumentType]models.DocumentCheck{
		models.DocLicense:   {},
		models.DocPermit:    {},
		models.DocInsurance: {},
		models.DocPollution: {},
	}
}
