// Package main implements the worldtz CLI: the local time in two countries, their
// UTC offset difference and a time-of-day converted between them.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/codeGROOVE-dev/worldtz/pkg/config"
	"github.com/codeGROOVE-dev/worldtz/pkg/country"
	"github.com/codeGROOVE-dev/worldtz/pkg/dashboard"
	"github.com/codeGROOVE-dev/worldtz/pkg/histogram"
	"github.com/codeGROOVE-dev/worldtz/pkg/locale"
	"github.com/codeGROOVE-dev/worldtz/pkg/tzconvert"
	"github.com/codeGROOVE-dev/worldtz/pkg/zonetab"
	"github.com/fatih/color"
)

const version = "worldtz CLI v1.0.0"

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	cfg := config.Default()
	fs := flag.NewFlagSet("worldtz", flag.ContinueOnError)
	fs.SetOutput(stderr)
	cfg.RegisterCommon(fs)
	showMap := fs.Bool("map", false, "Show countries per UTC offset")
	format := fs.String("format", "text", "Output format: text or markdown")
	showVersion := fs.Bool("version", false, "Show version")
	fs.Usage = func() {
		fmt.Fprintf(stderr, "Usage: worldtz [flags] <country-a> <country-b> [HH:MM]\n")
		fs.PrintDefaults()
	}

	if err := config.Parse(fs, args, ".env", os.LookupEnv); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		fmt.Fprintln(stderr, err)
		return 2
	}

	if *showVersion {
		fmt.Fprintln(stdout, version)
		return 0
	}

	req := dashboard.Request{CountryA: cfg.CountryA, CountryB: cfg.CountryB}
	switch rest := fs.Args(); len(rest) {
	case 0:
	case 2, 3:
		req.CountryA, req.CountryB = rest[0], rest[1]
		if len(rest) == 3 {
			req.Time = rest[2]
		}
	default:
		fs.Usage()
		return 2
	}
	if *format != "text" && *format != "markdown" {
		fmt.Fprintf(stderr, "unknown format %q\n", *format)
		return 2
	}

	// Configure logging
	level := slog.LevelError
	if cfg.Verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level}))

	provider := zonetab.Bundled()
	if cfg.ZoneTab != "" {
		var err error
		provider, err = zonetab.LoadFile(cfg.ZoneTab)
		if err != nil {
			logger.Error("Failed to load zone table", "path", cfg.ZoneTab, "error", err)
			fmt.Fprintln(stderr, err)
			return 1
		}
		logger.Debug("Loaded zone table", "path", cfg.ZoneTab, "countries", provider.Len())
	}

	locales, err := locale.New(logger)
	if err != nil {
		logger.Error("Failed to load translations", "error", err)
		return 1
	}
	req.Language = locales.Match(cfg.Language)

	converter := tzconvert.New(provider,
		tzconvert.WithLogger(logger),
		tzconvert.WithLocationCacheSize(cfg.LocationCache),
	)
	svc := dashboard.New(converter, country.NewRegistry(), locales,
		dashboard.WithLogger(logger),
	)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	view, err := svc.Build(ctx, req)
	if err != nil {
		logger.Debug("Comparison failed", "error", err)
	}

	if *format == "markdown" {
		out, mdErr := dashboard.RenderMarkdown(view)
		if mdErr != nil {
			logger.Error("Failed to render markdown", "error", mdErr)
			return 1
		}
		fmt.Fprint(stdout, out)
	} else {
		printView(stdout, view)
	}

	if *showMap && view.Compared {
		fmt.Fprintln(stdout)
		var rows []tzconvert.OffsetRow
		for row := range converter.WorldOffsetTable() {
			rows = append(rows, row)
		}
		fmt.Fprint(stdout, histogram.Render(rows, view.A.Moment.OffsetSeconds, view.B.Moment.OffsetSeconds))
	}

	if err != nil {
		return 1
	}
	return 0
}

func printView(w io.Writer, v *dashboard.View) {
	fmt.Fprintf(w, "\n🌍 %s\n", v.Labels.Title)
	fmt.Fprintln(w, strings.Repeat("─", 50))

	if v.Compared {
		printSide(w, v.A)
		printSide(w, v.B)
		fmt.Fprintf(w, "↔️  %s\n", diffColor(v.OffsetDiffHours).Sprint(v.Summary))
	}

	if c := v.Conversion; c != nil {
		line := c.Text
		if c.DayNote != "" {
			line += color.New(color.FgYellow).Sprintf(" (%s)", c.DayNote)
		}
		fmt.Fprintf(w, "🔁 %s\n", line)
	}
	if v.Warning != "" {
		fmt.Fprintf(w, "%s\n", color.New(color.FgYellow).Sprint("⚠️  "+v.Warning))
	}
	if v.Error != "" {
		fmt.Fprintf(w, "%s\n", color.New(color.FgRed).Sprint("❌ "+v.Error))
	}
}

func printSide(w io.Writer, s dashboard.Side) {
	fmt.Fprintf(w, "🕐 %-20s %s  %s, %s\n",
		s.Name,
		color.New(color.Bold).Sprint(s.Clock),
		s.Moment.Zone,
		s.Offset)
}

// diffColor shades the summary by how far apart the two clocks are.
func diffColor(hours float64) *color.Color {
	switch abs := math.Abs(hours); {
	case abs == 0:
		return color.New(color.FgGreen)
	case abs <= 3:
		return color.New(color.FgCyan)
	default:
		return color.New(color.FgMagenta)
	}
}
