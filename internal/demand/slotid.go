package demand

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/tovarim/mealrota/internal/calendar"
)

// slotIDSep separates the three parts of a synthetic slot id. The id is
// recomputed identically by server and client, so the format is fixed:
// familyID $$ date $$ cityID.
const slotIDSep = "$$"

const slotIDDateFormat = "2006-01-02"

// ErrBadSlotID marks a synthetic id that does not round-trip. Treated as
// a programming-level defect by callers.
var ErrBadSlotID = errors.New("malformed synthetic slot id")

// SyntheticID is the decoded form of an unbooked slot's id.
type SyntheticID struct {
	FamilyID string
	Date     time.Time
	CityID   string
}

// MakeSyntheticID builds the deterministic id for an unbooked slot.
// Components containing the separator would make the id ambiguous, so
// they are rejected outright.
func MakeSyntheticID(familyID string, date time.Time, cityID string) (string, error) {
	if familyID == "" || cityID == "" {
		return "", fmt.Errorf("%w: empty component", ErrBadSlotID)
	}
	if strings.Contains(familyID, slotIDSep) || strings.Contains(cityID, slotIDSep) {
		return "", fmt.Errorf("%w: component contains separator", ErrBadSlotID)
	}
	return familyID + slotIDSep + calendar.Day(date).Format(slotIDDateFormat) + slotIDSep + cityID, nil
}

// ParseSyntheticID decodes a synthetic id back into its three parts.
func ParseSyntheticID(id string) (SyntheticID, error) {
	parts := strings.Split(id, slotIDSep)
	if len(parts) != 3 || parts[0] == "" || parts[2] == "" {
		return SyntheticID{}, fmt.Errorf("%w: %q", ErrBadSlotID, id)
	}
	date, err := time.Parse(slotIDDateFormat, parts[1])
	if err != nil {
		return SyntheticID{}, fmt.Errorf("%w: bad date in %q", ErrBadSlotID, id)
	}
	return SyntheticID{FamilyID: parts[0], Date: date, CityID: parts[2]}, nil
}

// IsSynthetic reports whether a slot id is synthetic rather than the id
// of a real booking record.
func IsSynthetic(id string) bool {
	return strings.Contains(id, slotIDSep)
}
