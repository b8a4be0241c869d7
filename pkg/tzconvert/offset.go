package tzconvert

import "fmt"

// OffsetHours converts an offset in seconds to signed fractional hours.
// Example: 19800 (India) returns 5.5, -10800 (Argentina) returns -3.
func OffsetHours(seconds int) float64 {
	return float64(seconds) / 3600
}

// FormatOffset renders an offset in seconds as "UTC+05:30" / "UTC-03:00".
func FormatOffset(seconds int) string {
	sign := '+'
	if seconds < 0 {
		sign = '-'
		seconds = -seconds
	}
	return fmt.Sprintf("UTC%c%02d:%02d", sign, seconds/3600, (seconds%3600)/60)
}
