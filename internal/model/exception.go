package model

import "time"

// ExceptionKind classifies a calendar exception entry.
type ExceptionKind string

const (
	// KindHoliday blocks a date for every family sharing its weekday
	// (or shifts it, when an alternate date is set).
	KindHoliday ExceptionKind = "holiday"
	// KindFamilyBlock blocks or shifts a single family's date.
	KindFamilyBlock ExceptionKind = "family_block"
	// KindFamilyAdd grants a family an extra cooking date.
	KindFamilyAdd ExceptionKind = "family_add"
	// KindHolidayTreatRange expands into one holiday-treat slot per day
	// between Date and AlternateDate, inclusive.
	KindHolidayTreatRange ExceptionKind = "holiday_treat_range"
)

// Exception is one calendar override: a holiday, a family-scoped block,
// an alternate-date shift, an extra grant, or a holiday-treat range.
// An empty FamilyID means the entry applies to all families whose
// recurring day matches Date.
type Exception struct {
	ID              string        `json:"id"`
	Date            time.Time     `json:"date"`
	Name            string        `json:"name"`
	FamilyID        string        `json:"family_id,omitempty"`
	AlternateDate   *time.Time    `json:"alternate_date,omitempty"`
	AddAvailability bool          `json:"add_availability"`
	Kind            ExceptionKind `json:"kind"`
}

// Scoped reports whether the exception targets a single family.
func (e Exception) Scoped() bool { return e.FamilyID != "" }

// AppliesTo reports whether the exception covers the given family: either
// unscoped, or scoped to exactly that family.
func (e Exception) AppliesTo(familyID string) bool {
	return e.FamilyID == "" || e.FamilyID == familyID
}
