package tzconvert

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"cloud.google.com/go/civil"
)

// LocalTimeKind tells a DST overlap from a DST gap.
type LocalTimeKind int

const (
	// Ambiguous local times occur twice, when clocks fall back.
	Ambiguous LocalTimeKind = iota + 1
	// Nonexistent local times are skipped, when clocks spring forward.
	Nonexistent
)

func (k LocalTimeKind) String() string {
	switch k {
	case Ambiguous:
		return "ambiguous"
	case Nonexistent:
		return "nonexistent"
	default:
		return "unknown"
	}
}

// LocalTimeError reports a wall-clock time that does not map to exactly one instant.
// It matches ErrAmbiguousOrNonexistentLocalTime with errors.Is.
type LocalTimeError struct {
	Zone  string
	Local civil.DateTime
	Kind  LocalTimeKind
	// Candidates holds both instants of an ambiguous time, earliest first.
	// It is empty for nonexistent times.
	Candidates []time.Time
	// Default is the conversion under the earlier-occurrence rule: the first
	// candidate for overlaps, the pre-transition offset for gaps.
	Default ConversionResult

	fallback time.Time
}

func (e *LocalTimeError) Error() string {
	return fmt.Sprintf("%s local time %s in %s", e.Kind, e.Local, e.Zone)
}

// Is makes errors.Is(err, ErrAmbiguousOrNonexistentLocalTime) succeed.
func (e *LocalTimeError) Is(target error) bool {
	return target == ErrAmbiguousOrNonexistentLocalTime
}

// sampleSpan covers any transition that can affect a wall time: offsets stay within
// ±14h and transitions are never closer together than a day.
const (
	sampleSpan = 30 * time.Hour
	sampleStep = 3 * time.Hour
)

// localize finds the instants whose wall clock in loc reads wall. Exactly one
// instant returns it; otherwise the error describes the gap or overlap.
func localize(wall civil.DateTime, zone string, loc *time.Location) (time.Time, *LocalTimeError) {
	// The wall clock read as if it were UTC; subtracting an offset yields an instant.
	base := wall.In(time.UTC)

	var offsets []int
	for d := -sampleSpan; d <= sampleSpan; d += sampleStep {
		_, off := base.Add(d).In(loc).Zone()
		if !slices.Contains(offsets, off) {
			offsets = append(offsets, off)
		}
	}

	var candidates []time.Time
	maxOffset := offsets[0]
	for _, off := range offsets {
		maxOffset = max(maxOffset, off)
		u := base.Add(-time.Duration(off) * time.Second)
		if _, actual := u.In(loc).Zone(); actual == off {
			if !slices.ContainsFunc(candidates, u.Equal) {
				candidates = append(candidates, u)
			}
		}
	}
	slices.SortFunc(candidates, func(a, b time.Time) int { return a.Compare(b) })

	switch len(candidates) {
	case 1:
		return candidates[0], nil
	case 0:
		// In a gap the largest offset is the one after the transition, so stepping
		// back by it lands before the transition, where the old offset applies.
		_, before := base.Add(-time.Duration(maxOffset) * time.Second).In(loc).Zone()
		return time.Time{}, &LocalTimeError{
			Zone:     zone,
			Local:    wall,
			Kind:     Nonexistent,
			fallback: base.Add(-time.Duration(before) * time.Second),
		}
	default:
		return time.Time{}, &LocalTimeError{
			Zone:       zone,
			Local:      wall,
			Kind:       Ambiguous,
			Candidates: candidates,
			fallback:   candidates[0],
		}
	}
}

// ParseTimeOfDay accepts "15:04" or "15:04:05".
func ParseTimeOfDay(s string) (civil.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range []string{"15:04:05", "15:04"} {
		if t, err := time.Parse(layout, s); err == nil {
			return civil.TimeOf(t), nil
		}
	}
	return civil.Time{}, &InputError{Field: "time of day", Value: s, Want: "HH:MM or HH:MM:SS"}
}
