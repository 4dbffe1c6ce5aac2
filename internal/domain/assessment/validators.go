package assessment

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Field validators are total predicates: they never error and never panic,
// whatever string the UI hands them. Range checks only run after the numeric
// format gate passed, so locale-formatted input ("40,7128") is rejected
// before any parsing is attempted.

var numericPattern = regexp.MustCompile(`^-?\d+(\.\d+)?$`)

// IsNumeric reports whether the value is a decimal-dot number. This gate is
// the shared precondition of every numeric validator.
func IsNumeric(value string) bool {
	return numericPattern.MatchString(value)
}

func numericInRange(value string, min, max float64) bool {
	if !IsNumeric(value) {
		return false
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return false
	}
	return parsed >= min && parsed <= max
}

// IsValidLatitude accepts decimal degrees in [-90, 90].
func IsValidLatitude(value string) bool {
	return numericInRange(value, -90, 90)
}

// IsValidLongitude accepts decimal degrees in [-180, 180].
func IsValidLongitude(value string) bool {
	return numericInRange(value, -180, 180)
}

// IsValidElevation accepts meters above sea level up to the height of Everest.
func IsValidElevation(value string) bool {
	return numericInRange(value, 0, 8849)
}

// IsValidTilt accepts panel tilt in [0, 90] degrees.
func IsValidTilt(value string) bool {
	return numericInRange(value, 0, 90)
}

// IsValidAzimuth accepts panel azimuth in [0, 360] degrees.
func IsValidAzimuth(value string) bool {
	return numericInRange(value, 0, 360)
}

// IsValidHubHeight accepts turbine hub heights in [40, 300] meters.
func IsValidHubHeight(value string) bool {
	return numericInRange(value, 40, 300)
}

// IsPositiveNumber accepts any numeric value strictly above zero.
func IsPositiveNumber(value string) bool {
	if !IsNumeric(value) {
		return false
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return false
	}
	return parsed > 0
}

const isoDateLayout = "2006-01-02"

// displayDateLayout is the dd-mm-yyyy form the dashboard renders.
const displayDateLayout = "02-01-2006"

// Earliest usable observation per energy type, exclusive. The wind reanalysis
// archive starts in 1940, the solar satellite record in 2004.
var (
	windEpoch  = time.Date(1939, time.December, 31, 0, 0, 0, 0, time.UTC)
	solarEpoch = time.Date(2003, time.December, 31, 0, 0, 0, 0, time.UTC)
)

// ParseISODate parses a strict 4-digit-year calendar date.
func ParseISODate(value string) (time.Time, bool) {
	trimmed := strings.TrimSpace(value)
	if len(trimmed) != len(isoDateLayout) {
		return time.Time{}, false
	}
	parsed, err := time.Parse(isoDateLayout, trimmed)
	if err != nil {
		return time.Time{}, false
	}
	return parsed, true
}

// IsValidISODate reports whether the value is a well-formed ISO calendar date.
func IsValidISODate(value string) bool {
	_, ok := ParseISODate(value)
	return ok
}

// epochFor returns the exclusive lower bound for the energy type.
func epochFor(energy EnergyType) time.Time {
	if energy == EnergySolar {
		return solarEpoch
	}
	return windEpoch
}

// IsValidObservationDate checks that the date parses and lies strictly
// between the energy-type epoch and seven days before now, both exclusive.
func IsValidObservationDate(value string, energy EnergyType, now time.Time) bool {
	parsed, ok := ParseISODate(value)
	if !ok {
		return false
	}
	if !parsed.After(epochFor(energy)) {
		return false
	}
	latest := now.UTC().AddDate(0, 0, -7).Truncate(24 * time.Hour)
	return parsed.Before(latest)
}

// IsValidEndDate requires the end date itself to be a valid observation date
// and, when a well-formed start date is present, to not precede it.
func IsValidEndDate(end, start string, energy EnergyType, now time.Time) bool {
	if !IsValidObservationDate(end, energy, now) {
		return false
	}
	startParsed, ok := ParseISODate(start)
	if !ok {
		// A malformed start is group 1's problem, not the end date's.
		return true
	}
	endParsed, _ := ParseISODate(end)
	return !endParsed.Before(startParsed)
}

// FormatDisplayDate converts an ISO date to the dashboard's dd-mm-yyyy form.
// Invalid input is returned unchanged so broken values stay visible.
func FormatDisplayDate(iso string) string {
	parsed, ok := ParseISODate(iso)
	if !ok {
		return iso
	}
	return parsed.Format(displayDateLayout)
}

// FormatISODate converts a dd-mm-yyyy display date back to ISO form.
func FormatISODate(display string) string {
	parsed, err := time.Parse(displayDateLayout, strings.TrimSpace(display))
	if err != nil {
		return display
	}
	return parsed.Format(isoDateLayout)
}
