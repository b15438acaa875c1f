// Package calendar resolves calendar exceptions for candidate cooking
// dates: global holiday blocks, family-scoped blocks, alternate-date
// shifts, extra availability grants, and holiday-treat date ranges.
package calendar

import (
	"fmt"
	"time"

	"github.com/tovarim/mealrota/internal/model"
)

// Resolution is the outcome for one (family, candidate date) pair.
type Resolution struct {
	// Emit reports whether a demand slot should exist at all.
	Emit bool
	// Date is the slot's actual date; differs from the candidate when an
	// alternate-date exception shifted it.
	Date time.Time
	// Shifted reports whether an alternate date replaced the candidate.
	Shifted bool
}

// Day truncates a time to its calendar date at midnight UTC. All
// exception matching is done on Day-normalized values.
func Day(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// SameDay reports whether two times fall on the same calendar date.
func SameDay(a, b time.Time) bool {
	return Day(a).Equal(Day(b))
}

// mealRelevant keeps the exceptions that participate in meal-slot
// resolution. Treat ranges and extra grants are layered separately.
func mealRelevant(e model.Exception) bool {
	return e.Kind != model.KindHolidayTreatRange && !e.AddAvailability
}

// Resolve decides whether the family's recurring slot on the candidate
// date survives, and on which actual date. Precedence: a global block
// beats everything; a family block beats an alternate shift; an
// applicable alternate shifts the slot to its date.
func Resolve(candidate time.Time, familyID string, exceptions []model.Exception) Resolution {
	var onDate []model.Exception
	for _, e := range exceptions {
		if mealRelevant(e) && SameDay(e.Date, candidate) {
			onDate = append(onDate, e)
		}
	}

	for _, e := range onDate {
		if !e.Scoped() && e.AlternateDate == nil {
			// Unscoped, no alternate: the date is blocked for every family.
			return Resolution{}
		}
	}

	for _, e := range onDate {
		if e.FamilyID == familyID && e.AlternateDate == nil {
			return Resolution{}
		}
	}

	for _, e := range onDate {
		if e.AlternateDate != nil && e.AppliesTo(familyID) {
			return Resolution{Emit: true, Date: Day(*e.AlternateDate), Shifted: true}
		}
	}

	return Resolution{Emit: true, Date: Day(candidate)}
}

// ExtraGrants returns the dates on which the family was granted an extra
// cooking slot, independent of its recurring days.
func ExtraGrants(familyID string, exceptions []model.Exception) []time.Time {
	var dates []time.Time
	for _, e := range exceptions {
		if e.AddAvailability && e.FamilyID == familyID {
			dates = append(dates, Day(e.Date))
		}
	}
	return dates
}

// ExpandTreatRange expands a holiday-treat exception into every date of
// its inclusive range. A treat range without an end date is a data
// defect and aborts synthesis rather than guessing.
func ExpandTreatRange(e model.Exception) ([]time.Time, error) {
	if e.Kind != model.KindHolidayTreatRange {
		return nil, nil
	}
	if e.AlternateDate == nil {
		return nil, fmt.Errorf("holiday treat range %s: missing end date", e.ID)
	}

	start, end := Day(e.Date), Day(*e.AlternateDate)
	if end.Before(start) {
		return nil, fmt.Errorf("holiday treat range %s: end %s before start %s",
			e.ID, end.Format("2006-01-02"), start.Format("2006-01-02"))
	}

	var dates []time.Time
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		dates = append(dates, d)
	}
	return dates, nil
}
