// Package demand reconciles recurring cooking days, calendar exceptions
// and real bookings into the demand set for a date range.
package demand

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/tovarim/mealrota/internal/cache"
	"github.com/tovarim/mealrota/internal/calendar"
	"github.com/tovarim/mealrota/internal/model"
	"github.com/tovarim/mealrota/internal/remote"
)

// Query selects the demand set to synthesize. An empty Statuses list
// means available and occupied; cancelled slots appear only when asked
// for explicitly.
type Query struct {
	Districts   []string
	Statuses    []model.SlotStatus
	From        time.Time
	To          time.Time
	VolunteerID string
}

func (q Query) wants(s model.SlotStatus) bool {
	if len(q.Statuses) == 0 {
		return s != model.StatusCancelled
	}
	for _, want := range q.Statuses {
		if want == s {
			return true
		}
	}
	return false
}

// Synthesizer produces the reconciled demand set. It reads reference
// data through the cache registry and bookings live from the remote
// store; it never writes.
type Synthesizer struct {
	registry *cache.Registry
	tables   remote.Client
	logger   *slog.Logger
}

func NewSynthesizer(registry *cache.Registry, tables remote.Client, logger *slog.Logger) *Synthesizer {
	return &Synthesizer{registry: registry, tables: tables, logger: logger}
}

// weekStart returns the Sunday starting the calendar week containing d.
// Weekly slot uniqueness uses this one convention everywhere.
func weekStart(d time.Time) time.Time {
	d = calendar.Day(d)
	return d.AddDate(0, 0, -int(d.Weekday()))
}

func weekKey(familyID string, d time.Time) string {
	return familyID + "|" + weekStart(d).Format("2006-01-02")
}

func dayKey(familyID string, d time.Time) string {
	return familyID + "|" + calendar.Day(d).Format("2006-01-02")
}

// Synthesize merges synthetic available slots with booked records for
// the query range.
func (s *Synthesizer) Synthesize(ctx context.Context, q Query) ([]model.DemandSlot, error) {
	from, to := calendar.Day(q.From), calendar.Day(q.To)
	if to.Before(from) {
		return nil, fmt.Errorf("invalid range: %s after %s", from.Format("2006-01-02"), to.Format("2006-01-02"))
	}

	booked, err := s.loadBookings(ctx, q.Districts, from, to)
	if err != nil {
		return nil, err
	}

	result := make([]model.DemandSlot, 0, len(booked))
	for _, b := range booked {
		if !q.wants(b.Status) {
			continue
		}
		if q.VolunteerID != "" && b.VolunteerID != q.VolunteerID && b.TransportingVolunteerID != q.VolunteerID {
			continue
		}
		result = append(result, b)
	}

	// Occupied/cancelled-only queries need no synthesis.
	if !q.wants(model.StatusAvailable) {
		return result, nil
	}

	families, err := s.registry.Families.Get(ctx, func(f model.Family) bool {
		return f.Active && inDistricts(f.District, q.Districts)
	})
	if err != nil {
		return nil, err
	}

	exceptions, err := s.registry.Exceptions.Get(ctx, nil)
	if err != nil {
		return nil, err
	}

	// Uniqueness indexes over non-cancelled bookings. Weekly for
	// recurring slots, daily for explicit grants and treats.
	occupiedWeek := make(map[string]bool)
	occupiedDay := make(map[string]bool)
	for _, b := range booked {
		if b.Status == model.StatusCancelled {
			continue
		}
		occupiedWeek[weekKey(b.FamilyID, b.Date)] = true
		occupiedDay[dayKey(b.FamilyID, b.Date)] = true
	}

	emitted := make(map[string]bool)
	synthesized := make([]model.DemandSlot, 0)

	emit := func(f model.Family, date time.Time, typ model.SlotType) error {
		id, err := MakeSyntheticID(f.ID, date, f.CityID)
		if err != nil {
			return err
		}
		if emitted[id] {
			return nil
		}
		emitted[id] = true
		synthesized = append(synthesized, model.DemandSlot{
			ID:         id,
			Date:       date,
			FamilyID:   f.ID,
			FamilyName: f.Name,
			CityID:     f.CityID,
			District:   f.District,
			Status:     model.StatusAvailable,
			Type:       typ,
		})
		return nil
	}

	// Recurring days, resolved through the exception calendar. A booking
	// anywhere in the same week suppresses the synthetic slot, so a
	// shifted cooking day cannot open a duplicate next to an existing
	// booking.
	for d := from; !d.After(to); d = d.AddDate(0, 0, 1) {
		for _, f := range families {
			if !f.CooksOn(d.Weekday()) {
				continue
			}
			res := calendar.Resolve(d, f.ID, exceptions)
			if !res.Emit {
				continue
			}
			if res.Date.Before(from) || res.Date.After(to) {
				continue
			}
			if occupiedWeek[weekKey(f.ID, res.Date)] {
				continue
			}
			if err := emit(f, res.Date, model.TypeMeal); err != nil {
				return nil, err
			}
		}
	}

	// Extra grants are explicit one-off additions, so uniqueness is
	// per day, not per week.
	for _, f := range families {
		for _, d := range calendar.ExtraGrants(f.ID, exceptions) {
			if d.Before(from) || d.After(to) {
				continue
			}
			if occupiedDay[dayKey(f.ID, d)] {
				continue
			}
			if err := emit(f, d, model.TypeMeal); err != nil {
				return nil, err
			}
		}
	}

	// Holiday treat ranges: one candidate per day per family in scope,
	// layered independently of the meal logic.
	for _, e := range exceptions {
		if e.Kind != model.KindHolidayTreatRange {
			continue
		}
		dates, err := calendar.ExpandTreatRange(e)
		if err != nil {
			return nil, err
		}
		for _, d := range dates {
			if d.Before(from) || d.After(to) {
				continue
			}
			for _, f := range families {
				if !e.AppliesTo(f.ID) {
					continue
				}
				if occupiedDay[dayKey(f.ID, d)] {
					continue
				}
				if err := emit(f, d, model.TypeHolidayTreat); err != nil {
					return nil, err
				}
			}
		}
	}

	// Available-only queries return just the synthesized set.
	if len(q.Statuses) > 0 && !q.wants(model.StatusOccupied) && !q.wants(model.StatusCancelled) {
		return synthesized, nil
	}
	return append(result, synthesized...), nil
}

// OccupiedOn looks up a live booking for the exact family and date.
// Used by the registration coordinator to re-validate a synthetic slot
// under its lease.
func (s *Synthesizer) OccupiedOn(ctx context.Context, familyID string, date time.Time) (*model.DemandSlot, error) {
	day := calendar.Day(date)
	booked, err := s.loadBookings(ctx, nil, day, day)
	if err != nil {
		return nil, err
	}
	for _, b := range booked {
		if b.FamilyID == familyID && b.Status != model.StatusCancelled && calendar.SameDay(b.Date, day) {
			slot := b
			return &slot, nil
		}
	}
	return nil, nil
}

func (s *Synthesizer) loadBookings(ctx context.Context, districts []string, from, to time.Time) ([]model.DemandSlot, error) {
	formula := remote.And(
		remote.OnOrAfter("date", from),
		remote.OnOrBefore("date", to),
		remote.In("district", districts),
	)
	if len(districts) == 0 {
		formula = remote.And(remote.OnOrAfter("date", from), remote.OnOrBefore("date", to))
	}

	records, err := remote.QueryAll(ctx, s.tables, cache.TableBookings, formula)
	if err != nil {
		return nil, fmt.Errorf("load bookings: %w", err)
	}

	var booked []model.DemandSlot
	for _, rec := range records {
		slot, err := MapBooking(rec)
		if err != nil {
			return nil, err
		}
		// Guard the range locally as well; the remote formula is
		// advisory for stores with weaker filter support.
		if slot.Date.Before(from) || slot.Date.After(to) {
			continue
		}
		if len(districts) > 0 && !inDistricts(slot.District, districts) {
			continue
		}
		booked = append(booked, slot)
	}
	return booked, nil
}

// MapBooking converts a bookings-table record into an occupied or
// cancelled demand slot.
func MapBooking(rec remote.Record) (model.DemandSlot, error) {
	date, ok := rec.Date("date")
	if !ok {
		return model.DemandSlot{}, fmt.Errorf("booking %s: missing or invalid date", rec.ID)
	}

	status := model.StatusOccupied
	if rec.Bool("cancelled") {
		status = model.StatusCancelled
	}
	typ := model.SlotType(rec.String("type"))
	if typ == "" {
		typ = model.TypeMeal
	}

	return model.DemandSlot{
		ID:                      rec.ID,
		Date:                    date,
		FamilyID:                rec.String("family_id"),
		FamilyName:              rec.String("family_name"),
		CityID:                  rec.String("city_id"),
		District:                rec.String("district"),
		Status:                  status,
		VolunteerID:             rec.String("volunteer_id"),
		TransportingVolunteerID: rec.String("transporting_volunteer_id"),
		Type:                    typ,
	}, nil
}

func inDistricts(district string, districts []string) bool {
	if len(districts) == 0 {
		return true
	}
	for _, d := range districts {
		if d == district {
			return true
		}
	}
	return false
}
