package model

import "time"

// SlotStatus is the lifecycle state of a demand slot.
type SlotStatus string

const (
	StatusAvailable SlotStatus = "available"
	StatusOccupied  SlotStatus = "occupied"
	StatusCancelled SlotStatus = "cancelled"
)

// SlotType distinguishes regular meal demand from holiday-treat demand.
type SlotType string

const (
	TypeMeal         SlotType = "meal"
	TypeHolidayTreat SlotType = "holiday_treat"
)

// DemandSlot is one family-date-city unit of cooking need. Occupied and
// cancelled slots carry the id of a real booking record; available slots
// carry a deterministic synthetic id derived from family, date and city.
type DemandSlot struct {
	ID                      string     `json:"id"`
	Date                    time.Time  `json:"date"`
	FamilyID                string     `json:"family_id"`
	FamilyName              string     `json:"family_name,omitempty"`
	CityID                  string     `json:"city_id"`
	District                string     `json:"district"`
	Status                  SlotStatus `json:"status"`
	VolunteerID             string     `json:"volunteer_id,omitempty"`
	TransportingVolunteerID string     `json:"transporting_volunteer_id,omitempty"`
	Type                    SlotType   `json:"type"`
}
