package main

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/codeGROOVE-dev/worldtz/pkg/config"
	"github.com/codeGROOVE-dev/worldtz/pkg/country"
	"github.com/codeGROOVE-dev/worldtz/pkg/dashboard"
	"github.com/codeGROOVE-dev/worldtz/pkg/histogram"
	"github.com/codeGROOVE-dev/worldtz/pkg/history"
	"github.com/codeGROOVE-dev/worldtz/pkg/locale"
	"github.com/codeGROOVE-dev/worldtz/pkg/metrics"
	"github.com/codeGROOVE-dev/worldtz/pkg/tzconvert"
	"github.com/codeGROOVE-dev/worldtz/pkg/zonetab"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/text/language"
)

const sessionCookie = "worldtz_session"

type server struct {
	gatherer  prometheus.Gatherer
	dashboard *dashboard.Service
	converter *tzconvert.Converter
	registry  *country.Registry
	zones     *zonetab.Table
	histories *history.Store
	locales   *locale.Bundle
	metrics   *metrics.Metrics
	limiter   *rateLimiter
	logger    *slog.Logger
	cfg       config.Config
}

type errorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
	Code    string `json:"code"`
}

type compareResponse struct {
	CountryA        string  `json:"country_a"`
	CountryB        string  `json:"country_b"`
	NameA           string  `json:"name_a"`
	NameB           string  `json:"name_b"`
	ZoneA           string  `json:"zone_a"`
	ZoneB           string  `json:"zone_b"`
	LocalTimeA      string  `json:"local_time_a"`
	LocalTimeB      string  `json:"local_time_b"`
	ConvertedTime   string  `json:"converted_time"`
	ConvertedDate   string  `json:"converted_date"`
	Warning         string  `json:"warning,omitempty"`
	OffsetDiffHours float64 `json:"offset_diff_hours"`
	DayShift        int     `json:"day_shift"`
}

type worldRow struct {
	Country        string  `json:"country"`
	Alpha3         string  `json:"alpha3,omitempty"`
	Name           string  `json:"name"`
	Zone           string  `json:"zone"`
	LocalTime      string  `json:"local_time"`
	Offset         string  `json:"offset"`
	Color          string  `json:"color"`
	UTCOffsetHours float64 `json:"utc_offset_hours"`
}

type countryEntry struct {
	Code   string   `json:"code"`
	Alpha3 string   `json:"alpha3,omitempty"`
	Name   string   `json:"name"`
	Zones  []string `json:"zones"`
}

func (s *server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(s.wrap)
	if origins := s.cfg.Origins(); len(origins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: origins,
			AllowedMethods: []string{http.MethodGet, http.MethodOptions},
			ExposedHeaders: []string{"X-Request-ID"},
			MaxAge:         300,
		}))
	}
	r.Use(s.instrument)

	r.Get("/healthz", s.handleHealth)
	r.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	r.Get(dashboard.HeroPath, s.handleHero)

	r.Group(func(r chi.Router) {
		r.Use(s.rateLimit)
		r.Get("/", s.handleHome)
		r.Get("/compare", s.handleCompare)
		r.Route("/api/v1", func(r chi.Router) {
			r.Get("/world", s.handleWorld)
			r.Get("/countries", s.handleCountries)
			r.Get("/history", s.handleHistory)
		})
	})
	return r
}

func (s *server) wrap(handler http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := uuid.NewString()
		w.Header().Set("X-Request-ID", requestID)

		defer func() {
			if err := recover(); err != nil {
				// Get stack trace
				const size = 64 << 10
				buf := make([]byte, size)
				buf = buf[:runtime.Stack(buf, false)]

				s.logger.Error("PANIC: Request handler crashed",
					"error", err,
					"path", r.URL.Path,
					"method", r.Method,
					"request_id", requestID,
					"client_ip", clientIP(r),
					"user_agent", r.Header.Get("User-Agent"),
					"stack", string(buf))
				http.Error(w, "Internal server error", http.StatusInternalServerError)
			}
		}()

		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		w.Header().Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		w.Header().Set("Permissions-Policy", "geolocation=(), microphone=(), camera=(), payment=(), usb=(), bluetooth=()")

		w.Header().Set("Content-Security-Policy",
			"default-src 'self'; "+
				"script-src 'self' 'unsafe-inline' 'unsafe-eval' https://cdn.jsdelivr.net; "+
				"style-src 'self' 'unsafe-inline'; "+
				"img-src 'self' data: https:; "+
				"connect-src 'self'")

		if strings.HasPrefix(r.URL.Path, "/api/") || r.URL.Path == "/compare" {
			w.Header().Set("Cache-Control", "no-store, no-cache, must-revalidate, private")
			w.Header().Set("Pragma", "no-cache")
			w.Header().Set("Expires", "0")
		} else if strings.HasPrefix(r.URL.Path, "/static/") {
			w.Header().Set("Cache-Control", "public, max-age=3600")
		}

		handler.ServeHTTP(w, r)
	})
}

// instrument records request latency by route pattern.
func (s *server) instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		s.metrics.ObserveRequest(route, strconv.Itoa(status/100)+"xx", time.Since(start))
	})
}

func (s *server) rateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.limiter != nil && !s.limiter.allow(clientIP(r)) {
			s.logger.Warn("Rate limit exceeded",
				"request_id", w.Header().Get("X-Request-ID"),
				"client_ip", clientIP(r),
				"path", r.URL.Path)
			s.writeJSON(w, r, http.StatusTooManyRequests, errorResponse{
				Error: "Rate limit exceeded",
				Code:  "RATE_LIMITED",
			})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// session returns the caller's session ID, issuing a cookie on first contact.
func (s *server) session(w http.ResponseWriter, r *http.Request) string {
	if c, err := r.Cookie(sessionCookie); err == nil {
		if _, err := uuid.Parse(c.Value); err == nil {
			return c.Value
		}
	}
	id := uuid.NewString()
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    id,
		Path:     "/",
		MaxAge:   int(s.cfg.SessionTTL.Seconds()),
		HttpOnly: true,
		Secure:   r.TLS != nil,
		SameSite: http.SameSiteLaxMode,
	})
	return id
}

// language picks the response language: ?lang=, then Accept-Language, then the default.
func (s *server) language(r *http.Request) language.Tag {
	return s.locales.Match(r.URL.Query().Get("lang"), r.Header.Get("Accept-Language"), s.cfg.Language)
}

func (s *server) writeJSON(w http.ResponseWriter, r *http.Request, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.logger.Error("Failed to encode response",
			"request_id", w.Header().Get("X-Request-ID"),
			"path", r.URL.Path,
			"error", err)
	}
}

// classify maps a comparison error onto an HTTP status and an error code.
func classify(err error) (status int, code string) {
	switch {
	case errors.Is(err, country.ErrUnknownCountry):
		return http.StatusNotFound, "UNKNOWN_COUNTRY"
	case errors.Is(err, tzconvert.ErrNotFound):
		return http.StatusNotFound, "NO_TIMEZONE"
	case errors.Is(err, tzconvert.ErrInvalidInput):
		return http.StatusBadRequest, "INVALID_TIME"
	default:
		return http.StatusInternalServerError, "INTERNAL_ERROR"
	}
}

func (s *server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, r, http.StatusOK, map[string]any{
		"status":   "ok",
		"sessions": s.histories.Sessions(),
	})
}

func (s *server) handleHome(w http.ResponseWriter, r *http.Request) {
	requestID := w.Header().Get("X-Request-ID")
	q := r.URL.Query()

	req := dashboard.Request{
		CountryA:  q.Get("a"),
		CountryB:  q.Get("b"),
		Time:      q.Get("time"),
		SessionID: s.session(w, r),
		Language:  s.language(r),
		Full:      true,
	}
	if req.CountryA == "" {
		req.CountryA = s.cfg.CountryA
	}
	if req.CountryB == "" {
		req.CountryB = s.cfg.CountryB
	}

	status := http.StatusOK
	view, err := s.dashboard.Build(r.Context(), req)
	if err != nil {
		status, _ = classify(err)
		s.logger.Info("Comparison failed",
			"request_id", requestID,
			"country_a", req.CountryA,
			"country_b", req.CountryB,
			"error", err)
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := dashboard.Render(w, view); err != nil {
		s.logger.Error("Template execution failed",
			"request_id", requestID,
			"error", err)
	}
}

func (s *server) handleCompare(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	requestID := w.Header().Get("X-Request-ID")
	q := r.URL.Query()

	req := dashboard.Request{
		CountryA:  strings.TrimSpace(q.Get("country_a")),
		CountryB:  strings.TrimSpace(q.Get("country_b")),
		Time:      q.Get("time"),
		SessionID: s.session(w, r),
		Language:  s.language(r),
	}
	if req.CountryA == "" || req.CountryB == "" {
		s.writeJSON(w, r, http.StatusBadRequest, errorResponse{
			Error:   "Missing parameters",
			Details: "country_a and country_b are required",
			Code:    "MISSING_PARAMETER",
		})
		return
	}

	view, err := s.dashboard.Build(r.Context(), req)
	if err != nil {
		status, code := classify(err)
		level := slog.LevelInfo
		if status >= http.StatusInternalServerError {
			level = slog.LevelError
		}
		s.logger.Log(r.Context(), level, "Comparison failed",
			"request_id", requestID,
			"country_a", req.CountryA,
			"country_b", req.CountryB,
			"error", err,
			"duration_ms", time.Since(start).Milliseconds())
		s.writeJSON(w, r, status, errorResponse{
			Error:   http.StatusText(status),
			Details: view.Error,
			Code:    code,
		})
		return
	}

	resp := compareResponse{
		CountryA:        view.A.Country.Code,
		CountryB:        view.B.Country.Code,
		NameA:           view.A.Name,
		NameB:           view.B.Name,
		ZoneA:           view.A.Moment.Zone,
		ZoneB:           view.B.Moment.Zone,
		LocalTimeA:      view.A.Moment.Time.Format(time.RFC3339),
		LocalTimeB:      view.B.Moment.Time.Format(time.RFC3339),
		OffsetDiffHours: view.OffsetDiffHours,
		Warning:         view.Warning,
	}
	if c := view.Conversion; c != nil {
		resp.ConvertedTime = c.Output
		resp.ConvertedDate = c.Result.Date.String()
		resp.DayShift = c.Result.DayShift
	}

	s.logger.Debug("Comparison completed",
		"request_id", requestID,
		"country_a", resp.CountryA,
		"country_b", resp.CountryB,
		"offset_diff_hours", resp.OffsetDiffHours,
		"duration_ms", time.Since(start).Milliseconds())
	s.writeJSON(w, r, http.StatusOK, resp)
}

func (s *server) handleWorld(w http.ResponseWriter, r *http.Request) {
	tag := s.language(r)
	rows := []worldRow{}
	for row := range s.converter.WorldOffsetTable() {
		out := worldRow{
			Country:        row.Country,
			Name:           row.Country,
			Zone:           row.Zone,
			LocalTime:      row.LocalTime.Format(time.RFC3339),
			UTCOffsetHours: row.UTCOffsetHours,
			Offset:         tzconvert.FormatOffset(offsetSeconds(row)),
			Color:          histogram.Color(row.UTCOffsetHours),
		}
		if c, err := s.registry.Lookup(row.Country); err == nil {
			out.Name = c.DisplayName(tag)
			out.Alpha3 = c.Alpha3
		}
		rows = append(rows, out)
	}
	s.metrics.SetWorldRows(len(rows))
	s.writeJSON(w, r, http.StatusOK, rows)
}

func offsetSeconds(row tzconvert.OffsetRow) int {
	_, offset := row.LocalTime.Zone()
	return offset
}

func (s *server) handleCountries(w http.ResponseWriter, r *http.Request) {
	tag := s.language(r)
	entries := []countryEntry{}
	for _, c := range s.registry.Sorted(tag) {
		zones := s.zones.Zones(c.Code)
		if zones == nil {
			zones = []string{}
		}
		entries = append(entries, countryEntry{
			Code:   c.Code,
			Alpha3: c.Alpha3,
			Name:   c.DisplayName(tag),
			Zones:  zones,
		})
	}
	s.writeJSON(w, r, http.StatusOK, entries)
}

func (s *server) handleHistory(w http.ResponseWriter, r *http.Request) {
	pairs := s.histories.Get(s.session(w, r)).Recent()
	if pairs == nil {
		pairs = []history.Pair{}
	}
	s.writeJSON(w, r, http.StatusOK, map[string]any{
		"limit": history.Limit,
		"pairs": pairs,
	})
}

func (s *server) handleHero(w http.ResponseWriter, r *http.Request) {
	asset, ok := s.dashboard.Hero(r.Context())
	if !ok {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", asset.ContentType)
	if asset.ETag != "" {
		w.Header().Set("ETag", asset.ETag)
		if r.Header.Get("If-None-Match") == asset.ETag {
			w.WriteHeader(http.StatusNotModified)
			return
		}
	}
	w.Header().Set("Content-Length", strconv.Itoa(len(asset.Data)))
	if _, err := w.Write(asset.Data); err != nil {
		s.logger.Debug("Failed to write hero image", "error", err)
	}
}

