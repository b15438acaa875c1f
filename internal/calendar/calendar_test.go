package calendar

import (
	"testing"
	"time"

	"github.com/tovarim/mealrota/internal/model"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func datePtr(y int, m time.Month, d int) *time.Time {
	t := date(y, m, d)
	return &t
}

func TestNoExceptionsEmitsCandidate(t *testing.T) {
	res := Resolve(date(2025, 1, 5), "F1", nil)
	if !res.Emit {
		t.Fatal("expected slot with no exceptions")
	}
	if !res.Date.Equal(date(2025, 1, 5)) {
		t.Errorf("date = %v, want candidate date", res.Date)
	}
	if res.Shifted {
		t.Error("unexpected shift")
	}
}

func TestGlobalBlockRemovesDateForEveryFamily(t *testing.T) {
	exceptions := []model.Exception{
		{ID: "H1", Date: date(2025, 1, 5), Name: "Holiday", Kind: model.KindHoliday},
	}

	for _, family := range []string{"F1", "F2", "F3"} {
		if res := Resolve(date(2025, 1, 5), family, exceptions); res.Emit {
			t.Errorf("family %s: expected block on holiday", family)
		}
	}

	// Other dates are untouched.
	if res := Resolve(date(2025, 1, 6), "F1", exceptions); !res.Emit {
		t.Error("adjacent date should not be blocked")
	}
}

func TestGlobalBlockBeatsFamilyAlternate(t *testing.T) {
	exceptions := []model.Exception{
		{ID: "H1", Date: date(2025, 1, 5), Kind: model.KindHoliday},
		{ID: "E1", Date: date(2025, 1, 5), FamilyID: "F1", AlternateDate: datePtr(2025, 1, 7), Kind: model.KindFamilyBlock},
	}
	if res := Resolve(date(2025, 1, 5), "F1", exceptions); res.Emit {
		t.Error("global block must win over a family alternate on the same date")
	}
}

func TestFamilyBlockOnlyBlocksThatFamily(t *testing.T) {
	exceptions := []model.Exception{
		{ID: "E1", Date: date(2025, 1, 5), FamilyID: "F1", Kind: model.KindFamilyBlock},
	}

	if res := Resolve(date(2025, 1, 5), "F1", exceptions); res.Emit {
		t.Error("F1 should be blocked")
	}
	if res := Resolve(date(2025, 1, 5), "F2", exceptions); !res.Emit {
		t.Error("F2 should be unaffected by F1's block")
	}
}

func TestAlternateShiftsTheDate(t *testing.T) {
	exceptions := []model.Exception{
		{ID: "E1", Date: date(2025, 1, 5), FamilyID: "F1", AlternateDate: datePtr(2025, 1, 7), Kind: model.KindFamilyBlock},
	}

	res := Resolve(date(2025, 1, 5), "F1", exceptions)
	if !res.Emit {
		t.Fatal("expected shifted slot, got block")
	}
	if !res.Shifted {
		t.Error("expected Shifted to be set")
	}
	if !res.Date.Equal(date(2025, 1, 7)) {
		t.Errorf("date = %v, want alternate 2025-01-07", res.Date)
	}

	// The shift is scoped: other families keep the original date.
	other := Resolve(date(2025, 1, 5), "F2", exceptions)
	if !other.Emit || other.Shifted {
		t.Errorf("F2 resolution = %+v, want unshifted emit", other)
	}
}

func TestUnscopedAlternateShiftsEveryFamily(t *testing.T) {
	exceptions := []model.Exception{
		{ID: "H1", Date: date(2025, 1, 5), AlternateDate: datePtr(2025, 1, 6), Kind: model.KindHoliday},
	}

	for _, family := range []string{"F1", "F2"} {
		res := Resolve(date(2025, 1, 5), family, exceptions)
		if !res.Emit || !res.Date.Equal(date(2025, 1, 6)) {
			t.Errorf("family %s: resolution = %+v, want shift to 2025-01-06", family, res)
		}
	}
}

func TestAddAvailabilityDoesNotBlockOrShift(t *testing.T) {
	exceptions := []model.Exception{
		{ID: "E1", Date: date(2025, 1, 5), FamilyID: "F1", AddAvailability: true, Kind: model.KindFamilyAdd},
	}

	// The grant must not suppress the recurring slot on its date.
	if res := Resolve(date(2025, 1, 5), "F1", exceptions); !res.Emit || res.Shifted {
		t.Errorf("resolution = %+v, want plain emit alongside a grant", Resolve(date(2025, 1, 5), "F1", exceptions))
	}

	grants := ExtraGrants("F1", exceptions)
	if len(grants) != 1 || !grants[0].Equal(date(2025, 1, 5)) {
		t.Errorf("grants = %v, want [2025-01-05]", grants)
	}
	if got := ExtraGrants("F2", exceptions); len(got) != 0 {
		t.Errorf("F2 grants = %v, want none", got)
	}
}

func TestTreatRangeIgnoredByMealResolution(t *testing.T) {
	exceptions := []model.Exception{
		{ID: "T1", Date: date(2025, 1, 5), AlternateDate: datePtr(2025, 1, 8), Kind: model.KindHolidayTreatRange},
	}
	res := Resolve(date(2025, 1, 5), "F1", exceptions)
	if !res.Emit || res.Shifted {
		t.Errorf("resolution = %+v, treat range must not block or shift meals", res)
	}
}

func TestExpandTreatRange(t *testing.T) {
	e := model.Exception{ID: "T1", Date: date(2025, 1, 5), AlternateDate: datePtr(2025, 1, 8), Kind: model.KindHolidayTreatRange}
	dates, err := ExpandTreatRange(e)
	if err != nil {
		t.Fatalf("expand: %v", err)
	}
	if len(dates) != 4 {
		t.Fatalf("got %d dates, want 4 (inclusive range)", len(dates))
	}
	if !dates[0].Equal(date(2025, 1, 5)) || !dates[3].Equal(date(2025, 1, 8)) {
		t.Errorf("range = %v..%v, want 2025-01-05..2025-01-08", dates[0], dates[3])
	}
}

func TestExpandTreatRangeMissingEnd(t *testing.T) {
	e := model.Exception{ID: "T1", Date: date(2025, 1, 5), Kind: model.KindHolidayTreatRange}
	if _, err := ExpandTreatRange(e); err == nil {
		t.Fatal("expected error for treat range without end date")
	}
}

func TestExpandTreatRangeInvertedRange(t *testing.T) {
	e := model.Exception{ID: "T1", Date: date(2025, 1, 8), AlternateDate: datePtr(2025, 1, 5), Kind: model.KindHolidayTreatRange}
	if _, err := ExpandTreatRange(e); err == nil {
		t.Fatal("expected error for inverted treat range")
	}
}
