package remote

import (
	"testing"
	"time"
)

func TestEq(t *testing.T) {
	got := Eq("district", "north")
	want := "{district} = 'north'"
	if got != want {
		t.Errorf("Eq() = %q, want %q", got, want)
	}
}

func TestEqEscapesQuotes(t *testing.T) {
	got := Eq("name", "O'Brien")
	want := `{name} = 'O\'Brien'`
	if got != want {
		t.Errorf("Eq() = %q, want %q", got, want)
	}
}

func TestEqBool(t *testing.T) {
	if got, want := EqBool("active", true), "{active} = TRUE()"; got != want {
		t.Errorf("EqBool(true) = %q, want %q", got, want)
	}
	if got, want := EqBool("active", false), "{active} = FALSE()"; got != want {
		t.Errorf("EqBool(false) = %q, want %q", got, want)
	}
}

func TestDateBounds(t *testing.T) {
	day := time.Date(2025, 3, 9, 0, 0, 0, 0, time.UTC)
	if got, want := OnOrAfter("date", day), "NOT(IS_BEFORE({date}, '2025-03-09'))"; got != want {
		t.Errorf("OnOrAfter() = %q, want %q", got, want)
	}
	if got, want := OnOrBefore("date", day), "NOT(IS_AFTER({date}, '2025-03-09'))"; got != want {
		t.Errorf("OnOrBefore() = %q, want %q", got, want)
	}
}

func TestIn(t *testing.T) {
	got := In("district", []string{"north", "south"})
	want := "OR({district} = 'north', {district} = 'south')"
	if got != want {
		t.Errorf("In() = %q, want %q", got, want)
	}
}

func TestInSingleValue(t *testing.T) {
	got := In("district", []string{"north"})
	want := "{district} = 'north'"
	if got != want {
		t.Errorf("In() = %q, want %q", got, want)
	}
}

func TestInEmptyMatchesNothing(t *testing.T) {
	if got := In("district", nil); got != "FALSE()" {
		t.Errorf("In(nil) = %q, want FALSE()", got)
	}
}

func TestAndDropsEmptyClauses(t *testing.T) {
	got := And("", Eq("a", "1"), "", Eq("b", "2"))
	want := "AND({a} = '1', {b} = '2')"
	if got != want {
		t.Errorf("And() = %q, want %q", got, want)
	}
}

func TestAndCollapses(t *testing.T) {
	if got := And("", Eq("a", "1"), ""); got != "{a} = '1'" {
		t.Errorf("And with one clause = %q, want bare clause", got)
	}
	if got := And("", ""); got != "" {
		t.Errorf("And with no clauses = %q, want empty", got)
	}
}
