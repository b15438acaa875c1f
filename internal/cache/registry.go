package cache

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/tovarim/mealrota/internal/mirror"
	"github.com/tovarim/mealrota/internal/model"
	"github.com/tovarim/mealrota/internal/remote"
)

// Table names in the remote store.
const (
	TableFamilies   = "families"
	TableExceptions = "exceptions"
	TableBookings   = "bookings"
)

// Registry owns the per-table caches for the reference tables. It is
// created once at startup and passed to the synthesizer and coordinator;
// there is no ambient global cache.
type Registry struct {
	Families   *TableCache[model.Family]
	Exceptions *TableCache[model.Exception]
}

// NewRegistry builds caches for the families and exceptions tables.
// Bookings are never cached: they change on every registration.
func NewRegistry(tables remote.Client, mirrors mirror.Store, ttl time.Duration, logger *slog.Logger) *Registry {
	return &Registry{
		Families: New(Source[model.Family]{
			Table:   TableFamilies,
			Formula: remote.EqBool("active", true),
			Map:     MapFamily,
		}, tables, mirrors, ttl, logger.With("table", TableFamilies)),
		Exceptions: New(Source[model.Exception]{
			Table: TableExceptions,
			Map:   MapException,
		}, tables, mirrors, ttl, logger.With("table", TableExceptions)),
	}
}

var weekdayNames = map[string]time.Weekday{
	"sunday":    time.Sunday,
	"monday":    time.Monday,
	"tuesday":   time.Tuesday,
	"wednesday": time.Wednesday,
	"thursday":  time.Thursday,
	"friday":    time.Friday,
	"saturday":  time.Saturday,
}

// MapFamily converts a families-table record into a Family.
func MapFamily(rec remote.Record) (model.Family, error) {
	f := model.Family{
		ID:       rec.ID,
		Name:     rec.String("name"),
		District: rec.String("district"),
		CityID:   rec.String("city_id"),
		Active:   rec.Bool("active"),
	}

	days, _ := rec.Fields["cooking_days"].([]any)
	for _, d := range days {
		name, _ := d.(string)
		wd, ok := weekdayNames[strings.ToLower(name)]
		if !ok {
			return model.Family{}, fmt.Errorf("family %s: unknown cooking day %q", rec.ID, name)
		}
		f.CookingDays = append(f.CookingDays, wd)
	}
	return f, nil
}

// MapException converts an exceptions-table record into an Exception.
// A missing date is an invariant violation: synthesis must not proceed
// on a partially-loaded exception set.
func MapException(rec remote.Record) (model.Exception, error) {
	date, ok := rec.Date("date")
	if !ok {
		return model.Exception{}, fmt.Errorf("exception %s: missing or invalid date", rec.ID)
	}

	e := model.Exception{
		ID:              rec.ID,
		Date:            date,
		Name:            rec.String("name"),
		FamilyID:        rec.String("family_id"),
		AddAvailability: rec.Bool("add_availability"),
		Kind:            model.ExceptionKind(rec.String("kind")),
	}
	if alt, ok := rec.Date("alternate_date"); ok {
		e.AlternateDate = &alt
	}
	if e.Kind == "" {
		e.Kind = classify(e)
	}
	return e, nil
}

// classify derives the kind for legacy records that predate the kind field.
func classify(e model.Exception) model.ExceptionKind {
	switch {
	case e.AddAvailability:
		return model.KindFamilyAdd
	case e.Scoped():
		return model.KindFamilyBlock
	default:
		return model.KindHoliday
	}
}
