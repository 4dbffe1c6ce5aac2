package util

import "time"

// NowUTC is the clock injected into the validation rule engine so date-window
// checks can be pinned in tests.
func NowUTC() time.Time {
	return time.Now().UTC()
}
