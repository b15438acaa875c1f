package remote

import (
	"fmt"
	"strings"
	"time"
)

// Formula builders for the remote store's filter language. Values are
// single-quoted with embedded quotes escaped, so user-supplied ids cannot
// break out of the expression.

func quote(v string) string {
	return "'" + strings.ReplaceAll(v, "'", "\\'") + "'"
}

// Eq matches records whose field equals the value.
func Eq(field, value string) string {
	return fmt.Sprintf("{%s} = %s", field, quote(value))
}

// EqBool matches a checkbox/boolean field.
func EqBool(field string, value bool) string {
	if value {
		return fmt.Sprintf("{%s} = TRUE()", field)
	}
	return fmt.Sprintf("{%s} = FALSE()", field)
}

// OnOrAfter matches date fields on or after the given day.
func OnOrAfter(field string, day time.Time) string {
	return fmt.Sprintf("NOT(IS_BEFORE({%s}, %s))", field, quote(day.Format("2006-01-02")))
}

// OnOrBefore matches date fields on or before the given day.
func OnOrBefore(field string, day time.Time) string {
	return fmt.Sprintf("NOT(IS_AFTER({%s}, %s))", field, quote(day.Format("2006-01-02")))
}

// In matches records whose field equals any of the values. An empty value
// list matches nothing.
func In(field string, values []string) string {
	if len(values) == 0 {
		return "FALSE()"
	}
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = Eq(field, v)
	}
	return Or(parts...)
}

// And joins clauses conjunctively, dropping empty ones.
func And(clauses ...string) string {
	return join("AND", clauses)
}

// Or joins clauses disjunctively, dropping empty ones.
func Or(clauses ...string) string {
	return join("OR", clauses)
}

func join(op string, clauses []string) string {
	kept := clauses[:0:0]
	for _, c := range clauses {
		if c != "" {
			kept = append(kept, c)
		}
	}
	switch len(kept) {
	case 0:
		return ""
	case 1:
		return kept[0]
	}
	return op + "(" + strings.Join(kept, ", ") + ")"
}
