// Package dashboard assembles everything one page of the world clock shows: the two
// local times, their offset difference, an optional conversion, the world offset
// map and the session history.
package dashboard

import (
	"context"
	"encoding/base64"
	"errors"
	"html/template"
	"log/slog"
	"math"
	"strconv"
	"strings"
	"time"

	"cloud.google.com/go/civil"
	"github.com/codeGROOVE-dev/worldtz/pkg/country"
	"github.com/codeGROOVE-dev/worldtz/pkg/histogram"
	"github.com/codeGROOVE-dev/worldtz/pkg/history"
	"github.com/codeGROOVE-dev/worldtz/pkg/httpcache"
	"github.com/codeGROOVE-dev/worldtz/pkg/locale"
	"github.com/codeGROOVE-dev/worldtz/pkg/metrics"
	"github.com/codeGROOVE-dev/worldtz/pkg/tzconvert"
	"golang.org/x/sync/errgroup"
	"golang.org/x/text/language"
)

// HeroPath is where the server publishes the cached header image.
const HeroPath = "/static/hero"

// defaultAssetTimeout bounds the wait for decorative images on one page.
const defaultAssetTimeout = 2 * time.Second

// Request is one dashboard query.
type Request struct {
	CountryA  string
	CountryB  string
	Time      string // HH:MM in country A; empty means the current time there
	SessionID string // empty disables history
	Language  language.Tag
	Full      bool // also compute the world table and fetch the images
}

// Side is one of the two compared countries.
type Side struct {
	Moment  tzconvert.ZonedMoment `json:"moment"`
	Country country.Country       `json:"country"`
	Name    string                `json:"name"`
	Clock   string                `json:"clock"`  // 15:04
	Offset  string                `json:"offset"` // UTC-03:00
}

// Conversion is the time-of-day conversion shown under the clocks.
type Conversion struct {
	Result  tzconvert.ConversionResult `json:"result"`
	Input   string                     `json:"input"`
	Output  string                     `json:"output"`
	Text    string                     `json:"text"`
	DayNote string                     `json:"day_note,omitempty"`
}

// MapRow is a world table row with the presentation fields the map needs.
type MapRow struct {
	tzconvert.OffsetRow
	Name   string `json:"name"`
	Alpha3 string `json:"alpha3"`
	Color  string `json:"color"`
	Offset string `json:"offset"`
}

// Labels are the translated static strings of the page.
type Labels struct {
	Title         string
	Subtitle      string
	CountryA      string
	CountryB      string
	TimeToConvert string
	Compare       string
	LocalTimeA    string
	LocalTimeB    string
	History       string
	HistoryEmpty  string
	WorldMap      string
	CountryCount  string
}

// HistoryEntry is a history pair with display names.
type HistoryEntry struct {
	Pair  history.Pair `json:"pair"`
	NameA string       `json:"name_a"`
	NameB string       `json:"name_b"`
}

// View is the rendered state of one dashboard request.
type View struct {
	Conversion      *Conversion       `json:"conversion,omitempty"`
	Names           map[string]string `json:"-"`
	Avatar          template.URL      `json:"-"`
	Lang            string            `json:"lang"`
	Summary         string            `json:"summary,omitempty"`
	Warning         string            `json:"warning,omitempty"`
	Error           string            `json:"error,omitempty"`
	HeroImage       string            `json:"-"`
	A               Side              `json:"a"`
	B               Side              `json:"b"`
	World           []MapRow          `json:"world,omitempty"`
	History         []HistoryEntry    `json:"history,omitempty"`
	Countries       []country.Country `json:"-"`
	Labels          Labels            `json:"-"`
	OffsetDiffHours float64           `json:"offset_diff_hours"`
	Compared        bool              `json:"compared"`
}

// Option configures a Service.
type Option func(*OptionHolder)

// OptionHolder holds configuration options.
type OptionHolder struct {
	histories *history.Store
	assets    *httpcache.Fetcher
	metrics   *metrics.Metrics
	logger    *slog.Logger
	today     func() civil.Date
	heroURL   string
	avatarURL string
	assetWait time.Duration
}

// WithHistory records successful comparisons in the session's history.
func WithHistory(store *history.Store) Option {
	return func(o *OptionHolder) {
		o.histories = store
	}
}

// WithAssets enables the decorative images. Either URL may be empty.
func WithAssets(fetcher *httpcache.Fetcher, heroURL, avatarURL string) Option {
	return func(o *OptionHolder) {
		o.assets = fetcher
		o.heroURL = heroURL
		o.avatarURL = avatarURL
	}
}

// WithAssetTimeout bounds how long a page waits for its images. Slower images
// are left out of that page.
func WithAssetTimeout(d time.Duration) Option {
	return func(o *OptionHolder) {
		if d > 0 {
			o.assetWait = d
		}
	}
}

// WithMetrics records outcomes.
func WithMetrics(m *metrics.Metrics) Option {
	return func(o *OptionHolder) {
		o.metrics = m
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *OptionHolder) {
		o.logger = logger
	}
}

// WithToday overrides the reference date of conversions.
func WithToday(today func() civil.Date) Option {
	return func(o *OptionHolder) {
		o.today = today
	}
}

// Service builds views. It is safe for concurrent use.
type Service struct {
	converter *tzconvert.Converter
	registry  *country.Registry
	locales   *locale.Bundle
	opts      OptionHolder
}

// New creates a Service.
func New(converter *tzconvert.Converter, registry *country.Registry, locales *locale.Bundle, opts ...Option) *Service {
	o := OptionHolder{
		logger:    slog.Default(),
		assetWait: defaultAssetTimeout,
		// Conversions use the host's calendar date, not the date in either zone.
		// Near midnight this can differ from "today" in country A.
		today: func() civil.Date { return civil.DateOf(time.Now()) },
	}
	for _, opt := range opts {
		opt(&o)
	}
	return &Service{converter: converter, registry: registry, locales: locales, opts: o}
}

// Build computes the view for req. A non-nil error means the comparison failed;
// the returned view is still complete enough to render, with Error holding the
// translated message.
func (s *Service) Build(ctx context.Context, req Request) (*View, error) {
	l := s.locales.Localizer(req.Language)
	v := &View{
		Lang:   l.Tag().String(),
		Labels: s.labels(l),
		Names:  make(map[string]string),
	}
	v.Countries = s.registry.Sorted(req.Language)
	for _, c := range v.Countries {
		v.Names[c.Code] = c.DisplayName(req.Language)
	}

	if req.Full {
		v.World = s.world(req.Language)
		v.Labels.CountryCount = l.Plural("countries", len(v.World))
		s.decorate(ctx, v)
	}

	err := s.compare(v, l, req)
	if err != nil {
		v.Error = s.message(l, v, err)
	}

	if s.opts.histories != nil && req.SessionID != "" {
		h := s.opts.histories.Get(req.SessionID)
		if v.Compared {
			h.Add(history.Pair{A: v.A.Country.Code, B: v.B.Country.Code})
		}
		for _, p := range h.Recent() {
			v.History = append(v.History, HistoryEntry{Pair: p, NameA: v.Names[p.A], NameB: v.Names[p.B]})
		}
		s.opts.metrics.SetSessions(s.opts.histories.Sessions())
	}
	return v, err
}

func (s *Service) compare(v *View, l *locale.Localizer, req Request) error {
	a, err := s.registry.Lookup(req.CountryA)
	if err != nil {
		s.opts.metrics.IncrementComparison("unknown_country")
		return err
	}
	b, err := s.registry.Lookup(req.CountryB)
	if err != nil {
		s.opts.metrics.IncrementComparison("unknown_country")
		return err
	}

	cmp, err := s.converter.Compare(a.Code, b.Code)
	if err != nil {
		if errors.Is(err, tzconvert.ErrNotFound) {
			s.opts.metrics.IncrementComparison("not_found")
		} else {
			s.opts.metrics.IncrementComparison("error")
		}
		return err
	}
	s.opts.metrics.IncrementComparison("ok")

	v.Compared = true
	v.A = s.side(a, cmp.A, req.Language)
	v.B = s.side(b, cmp.B, req.Language)
	v.OffsetDiffHours = cmp.OffsetDiffHours
	v.Labels.LocalTimeA = l.T("local_time_in", map[string]any{"Country": v.A.Name})
	v.Labels.LocalTimeB = l.T("local_time_in", map[string]any{"Country": v.B.Name})
	v.Summary = summary(l, v.A.Name, v.B.Name, cmp.OffsetDiffHours)

	return s.convert(v, l, req.Time, cmp)
}

func (s *Service) convert(v *View, l *locale.Localizer, input string, cmp tzconvert.Comparison) error {
	var tod civil.Time
	if strings.TrimSpace(input) == "" {
		now := civil.TimeOf(cmp.A.Time)
		tod = civil.Time{Hour: now.Hour, Minute: now.Minute}
	} else {
		var err error
		tod, err = tzconvert.ParseTimeOfDay(input)
		if err != nil {
			s.opts.metrics.IncrementConversion("invalid")
			return err
		}
	}
	ref := s.opts.today()

	result, err := s.converter.Convert(cmp.A.Zone, tod, ref, cmp.B.Zone)
	var lterr *tzconvert.LocalTimeError
	switch {
	case errors.As(err, &lterr):
		s.opts.metrics.IncrementConversion(lterr.Kind.String())
		result = lterr.Default
		v.Warning = l.T("warn_"+lterr.Kind.String(), map[string]any{
			"Time": clock(tod),
			"Zone": lterr.Zone,
			"Date": ref.String(),
		})
	case err != nil:
		s.opts.metrics.IncrementConversion("invalid")
		return err
	case cmp.A.Zone == cmp.B.Zone:
		s.opts.metrics.IncrementConversion("identity")
	default:
		s.opts.metrics.IncrementConversion("ok")
	}

	c := &Conversion{
		Result: result,
		Input:  clock(tod),
		Output: clock(result.Time),
	}
	c.Text = l.T("converted", map[string]any{
		"Time":      c.Input,
		"A":         v.A.Name,
		"Converted": c.Output,
		"B":         v.B.Name,
	})
	switch {
	case result.DayShift > 0:
		c.DayNote = l.T("next_day", nil)
	case result.DayShift < 0:
		c.DayNote = l.T("previous_day", nil)
	}
	v.Conversion = c
	return nil
}

func (s *Service) side(c country.Country, m tzconvert.ZonedMoment, tag language.Tag) Side {
	return Side{
		Country: c,
		Name:    c.DisplayName(tag),
		Moment:  m,
		Clock:   m.Time.Format("15:04"),
		Offset:  tzconvert.FormatOffset(m.OffsetSeconds),
	}
}

func (s *Service) world(tag language.Tag) []MapRow {
	var rows []MapRow
	for row := range s.converter.WorldOffsetTable() {
		r := MapRow{
			OffsetRow: row,
			Name:      row.Country,
			Color:     histogram.Color(row.UTCOffsetHours),
			Offset:    tzconvert.FormatOffset(int(math.Round(row.UTCOffsetHours * 3600))),
		}
		if c, err := s.registry.Lookup(row.Country); err == nil {
			r.Name = c.DisplayName(tag)
			r.Alpha3 = c.Alpha3
		}
		rows = append(rows, r)
	}
	s.opts.metrics.SetWorldRows(len(rows))
	return rows
}

// decorate attaches the optional images. Failures only cost the picture.
func (s *Service) decorate(ctx context.Context, v *View) {
	if s.opts.assets == nil {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, s.opts.assetWait)
	defer cancel()

	var g errgroup.Group
	g.Go(func() error {
		if _, ok := s.opts.assets.Optional(ctx, s.opts.heroURL); ok {
			v.HeroImage = HeroPath
		}
		return nil
	})
	g.Go(func() error {
		if asset, ok := s.opts.assets.Optional(ctx, s.opts.avatarURL); ok && strings.HasPrefix(asset.ContentType, "image/") {
			v.Avatar = template.URL("data:" + asset.ContentType + ";base64," + base64.StdEncoding.EncodeToString(asset.Data)) //nolint:gosec // bytes are encoded, content type checked
		}
		return nil
	})
	_ = g.Wait()
}

// Hero returns the cached header image.
func (s *Service) Hero(ctx context.Context) (httpcache.Asset, bool) {
	if s.opts.assets == nil {
		return httpcache.Asset{}, false
	}
	ctx, cancel := context.WithTimeout(ctx, s.opts.assetWait)
	defer cancel()
	return s.opts.assets.Optional(ctx, s.opts.heroURL)
}

// message maps an error onto the single line the user sees.
func (s *Service) message(l *locale.Localizer, v *View, err error) string {
	var (
		unknown  *country.UnknownError
		notFound *tzconvert.NotFoundError
		input    *tzconvert.InputError
	)
	switch {
	case errors.As(err, &unknown):
		return l.T("err_unknown_country", map[string]any{"Country": unknown.Identifier})
	case errors.As(err, &notFound):
		name, ok := v.Names[notFound.Country]
		if !ok {
			name = notFound.Country
		}
		return l.T("err_not_found", map[string]any{"Country": name})
	case errors.As(err, &input):
		return l.T("err_bad_time", map[string]any{"Time": input.Value})
	default:
		s.opts.logger.Error("comparison failed", "error", err)
		return l.T("err_generic", nil)
	}
}

func (s *Service) labels(l *locale.Localizer) Labels {
	return Labels{
		Title:         l.T("title", nil),
		Subtitle:      l.T("subtitle", nil),
		CountryA:      l.T("country_a", nil),
		CountryB:      l.T("country_b", nil),
		TimeToConvert: l.T("time_to_convert", nil),
		Compare:       l.T("compare", nil),
		History:       l.T("history", nil),
		HistoryEmpty:  l.T("history_empty", nil),
		WorldMap:      l.T("world_map", nil),
	}
}

func summary(l *locale.Localizer, nameA, nameB string, diff float64) string {
	data := map[string]any{
		"A":     nameA,
		"B":     nameB,
		"Hours": strconv.FormatFloat(math.Abs(diff), 'f', -1, 64),
	}
	switch {
	case diff > 0:
		return l.T("offset_ahead", data)
	case diff < 0:
		return l.T("offset_behind", data)
	default:
		return l.T("offset_same", data)
	}
}

func clock(t civil.Time) string {
	return civil.Time{Hour: t.Hour, Minute: t.Minute}.String()[:5]
}
