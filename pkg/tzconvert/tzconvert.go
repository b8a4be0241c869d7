// Package tzconvert resolves countries to IANA timezones, reports the current time
// in a zone and converts a time-of-day between zones.
//
// Offsets are never cached: every call derives them from the timezone rules for the
// instant in question, so DST transitions are always honoured. Only parsed
// *time.Location values, which hold rules rather than offsets, are cached.
package tzconvert

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"cloud.google.com/go/civil"
	"github.com/maypok86/otter/v2"
)

var (
	// ErrNotFound is returned when a country has no registered timezone.
	ErrNotFound = errors.New("no timezone registered for country")
	// ErrInvalidTimezone is returned for names the timezone database does not know.
	ErrInvalidTimezone = errors.New("invalid timezone")
	// ErrAmbiguousOrNonexistentLocalTime is matched by *LocalTimeError.
	ErrAmbiguousOrNonexistentLocalTime = errors.New("ambiguous or nonexistent local time")
	// ErrInvalidInput is returned for out-of-range times of day or dates.
	ErrInvalidInput = errors.New("invalid input")
)

// NotFoundError reports a country without a registered timezone. It matches
// ErrNotFound with errors.Is.
type NotFoundError struct {
	Country string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%v: %q", ErrNotFound, e.Country)
}

// Is makes errors.Is(err, ErrNotFound) succeed.
func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

// InputError reports a malformed time of day or date. It matches ErrInvalidInput
// with errors.Is.
type InputError struct {
	Field string // "time of day" or "date"
	Value string // as supplied
	Want  string // accepted forms, if any
}

func (e *InputError) Error() string {
	msg := fmt.Sprintf("%v: %s %q", ErrInvalidInput, e.Field, e.Value)
	if e.Want != "" {
		msg += ", want " + e.Want
	}
	return msg
}

// Is makes errors.Is(err, ErrInvalidInput) succeed.
func (e *InputError) Is(target error) bool {
	return target == ErrInvalidInput
}

// ZoneProvider supplies the country to timezone mapping.
type ZoneProvider interface {
	// Zones returns the candidate zones of a country in canonical order.
	Zones(countryCode string) []string
	// Countries returns every country code that has at least one zone.
	Countries() []string
}

// Clock abstracts time.Now for deterministic tests.
type Clock interface {
	Now() time.Time
}

// ClockFunc adapts a function to Clock.
type ClockFunc func() time.Time

// Now calls f.
func (f ClockFunc) Now() time.Time { return f() }

// ZonedMoment is an instant expressed in a zone, with the offset in effect at that instant.
type ZonedMoment struct {
	Time          time.Time `json:"time"`
	Zone          string    `json:"zone"`
	OffsetSeconds int       `json:"offset_seconds"`
}

// OffsetHours returns the UTC offset in signed fractional hours.
func (m ZonedMoment) OffsetHours() float64 {
	return OffsetHours(m.OffsetSeconds)
}

// ConversionResult is a time-of-day converted into a target zone.
type ConversionResult struct {
	Instant       time.Time  `json:"instant"`
	Zone          string     `json:"zone"`
	Time          civil.Time `json:"time"`
	Date          civil.Date `json:"date"`
	DayShift      int        `json:"day_shift"` // Date minus the reference date, in days
	OffsetSeconds int        `json:"offset_seconds"`
}

// Comparison is the current state of two countries' representative zones.
type Comparison struct {
	A               ZonedMoment `json:"a"`
	B               ZonedMoment `json:"b"`
	OffsetDiffHours float64     `json:"offset_diff_hours"`
}

// Option configures a Converter.
type Option func(*OptionHolder)

// OptionHolder holds configuration options.
type OptionHolder struct {
	clock             Clock
	logger            *slog.Logger
	locationCacheSize int
}

// WithClock sets the clock used for "now".
func WithClock(clock Clock) Option {
	return func(o *OptionHolder) {
		o.clock = clock
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *OptionHolder) {
		o.logger = logger
	}
}

// WithLocationCacheSize bounds the number of parsed locations kept in memory.
// Non-positive sizes keep the default.
func WithLocationCacheSize(size int) Option {
	return func(o *OptionHolder) {
		if size > 0 {
			o.locationCacheSize = size
		}
	}
}

// Converter implements the timezone operations. It holds no mutable state apart
// from a concurrency-safe location cache.
type Converter struct {
	provider  ZoneProvider
	clock     Clock
	logger    *slog.Logger
	locations *otter.Cache[string, *time.Location]
}

// New creates a Converter backed by the given provider.
func New(provider ZoneProvider, opts ...Option) *Converter {
	o := &OptionHolder{
		clock:             ClockFunc(time.Now),
		logger:            slog.Default(),
		locationCacheSize: 1024,
	}
	for _, opt := range opts {
		opt(o)
	}

	return &Converter{
		provider: provider,
		clock:    o.clock,
		logger:   o.logger,
		locations: otter.Must(&otter.Options[string, *time.Location]{
			MaximumSize: o.locationCacheSize,
		}),
	}
}

// ResolveTimezone returns the representative zone of a country: the first zone the
// provider lists for it. Countries spanning several zones are deliberately reduced
// to that first entry.
func (c *Converter) ResolveTimezone(country string) (string, error) {
	code := strings.ToUpper(strings.TrimSpace(country))
	zones := c.provider.Zones(code)
	if len(zones) == 0 {
		return "", &NotFoundError{Country: code}
	}
	return zones[0], nil
}

// LoadLocation returns the location for an IANA zone name.
func (c *Converter) LoadLocation(name string) (*time.Location, error) {
	if loc, ok := c.locations.GetIfPresent(name); ok {
		return loc, nil
	}

	if name == "" || name == "Local" {
		return nil, fmt.Errorf("%w: %q", ErrInvalidTimezone, name)
	}

	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %v", ErrInvalidTimezone, name, err)
	}

	c.locations.Set(name, loc)
	return loc, nil
}

// CurrentTime returns the current instant in the given zone.
func (c *Converter) CurrentTime(zone string) (ZonedMoment, error) {
	loc, err := c.LoadLocation(zone)
	if err != nil {
		return ZonedMoment{}, err
	}
	return momentAt(c.clock.Now().UTC(), zone, loc), nil
}

func momentAt(instant time.Time, zone string, loc *time.Location) ZonedMoment {
	t := instant.In(loc)
	_, offset := t.Zone()
	return ZonedMoment{Time: t, Zone: zone, OffsetSeconds: offset}
}

// OffsetDifference returns offset(b) - offset(a) in hours. It is exactly
// antisymmetric and zero whenever both offsets match.
func OffsetDifference(a, b ZonedMoment) float64 {
	return OffsetHours(b.OffsetSeconds - a.OffsetSeconds)
}

// Compare resolves two countries and reports their current times and offset difference.
func (c *Converter) Compare(countryA, countryB string) (Comparison, error) {
	zoneA, err := c.ResolveTimezone(countryA)
	if err != nil {
		return Comparison{}, err
	}
	zoneB, err := c.ResolveTimezone(countryB)
	if err != nil {
		return Comparison{}, err
	}

	locA, err := c.LoadLocation(zoneA)
	if err != nil {
		return Comparison{}, err
	}
	locB, err := c.LoadLocation(zoneB)
	if err != nil {
		return Comparison{}, err
	}

	// Both moments share one instant so the two clocks never disagree by a tick.
	now := c.clock.Now().UTC()
	a := momentAt(now, zoneA, locA)
	b := momentAt(now, zoneB, locB)
	return Comparison{A: a, B: b, OffsetDiffHours: OffsetDifference(a, b)}, nil
}

// Convert interprets tod on the reference date in the source zone and re-expresses
// that instant in the target zone. The source offset is taken from the rules for
// the reference date, not from the current instant.
//
// Local times inside a DST gap or overlap produce a *LocalTimeError whose Default
// field holds the result under the documented disambiguation (earlier occurrence,
// or pre-transition offset for gaps). Source equal to target is the identity.
func (c *Converter) Convert(source string, tod civil.Time, ref civil.Date, target string) (ConversionResult, error) {
	if !tod.IsValid() {
		return ConversionResult{}, &InputError{Field: "time of day", Value: tod.String()}
	}
	if !ref.IsValid() {
		return ConversionResult{}, &InputError{Field: "date", Value: ref.String()}
	}

	srcLoc, err := c.LoadLocation(source)
	if err != nil {
		return ConversionResult{}, err
	}
	dstLoc, err := c.LoadLocation(target)
	if err != nil {
		return ConversionResult{}, err
	}

	wall := civil.DateTime{Date: ref, Time: tod}
	instant, lterr := localize(wall, source, srcLoc)

	if source == target {
		if lterr != nil {
			instant = lterr.fallback
		}
		_, offset := instant.In(dstLoc).Zone()
		return ConversionResult{
			Instant:       instant.In(dstLoc),
			Zone:          target,
			Time:          tod,
			Date:          ref,
			OffsetSeconds: offset,
		}, nil
	}

	if lterr != nil {
		lterr.Default = express(lterr.fallback, ref, target, dstLoc)
		c.logger.Debug("local time needs disambiguation",
			"zone", source, "local", wall.String(), "kind", lterr.Kind.String())
		return ConversionResult{}, lterr
	}
	return express(instant, ref, target, dstLoc), nil
}

func express(instant time.Time, ref civil.Date, zone string, loc *time.Location) ConversionResult {
	t := instant.In(loc)
	_, offset := t.Zone()
	date := civil.DateOf(t)
	return ConversionResult{
		Instant:       t,
		Zone:          zone,
		Time:          civil.TimeOf(t),
		Date:          date,
		DayShift:      date.DaysSince(ref),
		OffsetSeconds: offset,
	}
}
