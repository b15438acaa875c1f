package model

import "time"

// Family is one cooking-demand household as mirrored from the remote table.
// Snapshots are immutable; a cache refresh replaces the whole slice.
type Family struct {
	ID          string         `json:"id"`
	Name        string         `json:"name"`
	District    string         `json:"district"`
	CityID      string         `json:"city_id"`
	CookingDays []time.Weekday `json:"cooking_days"`
	Active      bool           `json:"active"`
}

// CooksOn reports whether the family has a recurring cooking day on the
// given weekday.
func (f Family) CooksOn(day time.Weekday) bool {
	for _, d := range f.CookingDays {
		if d == day {
			return true
		}
	}
	return false
}
