// Package histogram visualises the world offset table: a terminal bar chart of
// countries per UTC offset, and the colour scale shared with the web map.
package histogram

import (
	"fmt"
	"math"
	"slices"
	"strconv"
	"strings"

	"github.com/codeGROOVE-dev/worldtz/pkg/tzconvert"
	"github.com/fatih/color"
)

// Palette is the "earth and time" scale, from the westernmost offset to the easternmost.
var Palette = []string{"#3B1F2B", "#8C593B", "#D9A066", "#F2E394", "#A1C181", "#6A994E"}

// Domain of the colour scale, in hours.
const (
	MinOffset = -12.0
	MaxOffset = 14.0
)

// Bucket groups the countries sharing one UTC offset.
type Bucket struct {
	Countries     []string
	OffsetSeconds int
}

// OffsetHours returns the bucket offset in hours.
func (b Bucket) OffsetHours() float64 {
	return tzconvert.OffsetHours(b.OffsetSeconds)
}

// Group buckets rows by offset, ordered west to east.
func Group(rows []tzconvert.OffsetRow) []Bucket {
	byOffset := make(map[int][]string)
	for _, row := range rows {
		seconds := int(math.Round(row.UTCOffsetHours * 3600))
		byOffset[seconds] = append(byOffset[seconds], row.Country)
	}

	buckets := make([]Bucket, 0, len(byOffset))
	for seconds, countries := range byOffset {
		slices.Sort(countries)
		buckets = append(buckets, Bucket{OffsetSeconds: seconds, Countries: countries})
	}
	slices.SortFunc(buckets, func(a, b Bucket) int { return a.OffsetSeconds - b.OffsetSeconds })
	return buckets
}

// Color returns the hex colour for an offset, interpolated along Palette.
func Color(offsetHours float64) string {
	pos := (offsetHours - MinOffset) / (MaxOffset - MinOffset)
	pos = math.Max(0, math.Min(1, pos))

	scaled := pos * float64(len(Palette)-1)
	lo := int(math.Floor(scaled))
	if lo >= len(Palette)-1 {
		return Palette[len(Palette)-1]
	}
	frac := scaled - float64(lo)

	r1, g1, b1 := parseHex(Palette[lo])
	r2, g2, b2 := parseHex(Palette[lo+1])
	mix := func(a, b int) int { return int(math.Round(float64(a) + (float64(b-a) * frac))) }
	return fmt.Sprintf("#%02X%02X%02X", mix(r1, r2), mix(g1, g2), mix(b1, b2))
}

// Scale returns Palette as a Plotly colorscale: evenly spaced [position, colour] stops.
func Scale() [][2]any {
	scale := make([][2]any, len(Palette))
	for i, c := range Palette {
		scale[i] = [2]any{float64(i) / float64(len(Palette)-1), c}
	}
	return scale
}

func parseHex(hex string) (r, g, b int) {
	v, err := strconv.ParseUint(strings.TrimPrefix(hex, "#"), 16, 32)
	if err != nil {
		return 0, 0, 0
	}
	return int(v >> 16 & 0xFF), int(v >> 8 & 0xFF), int(v & 0xFF)
}

// offsetColor picks the terminal colour for a bucket.
func offsetColor(seconds int) *color.Color {
	switch {
	case seconds < 0:
		return color.New(color.FgBlue)
	case seconds == 0:
		return color.New(color.FgYellow)
	case seconds%3600 != 0:
		return color.New(color.FgMagenta) // half and quarter hour zones
	default:
		return color.New(color.FgGreen)
	}
}

// Render draws one line per offset: the offset, the country count and a bar.
// Offsets listed in highlight are marked with an arrow.
func Render(rows []tzconvert.OffsetRow, highlight ...int) string {
	var output strings.Builder

	output.WriteString("🌐 Countries per UTC offset\n")
	output.WriteString(strings.Repeat("─", 50) + "\n")

	buckets := Group(rows)
	if len(buckets) == 0 {
		return output.String() + "No offset data available\n"
	}

	for _, b := range buckets {
		marker := "  "
		if slices.Contains(highlight, b.OffsetSeconds) {
			marker = color.New(color.FgRed, color.Bold).Sprint("→ ")
		}

		line := fmt.Sprintf("%s%s (%3d) ", marker, tzconvert.FormatOffset(b.OffsetSeconds), len(b.Countries))
		if len(b.Countries) == 1 {
			line += color.New(color.FgHiBlack).Sprint("·")
		} else {
			line += offsetColor(b.OffsetSeconds).Sprint(strings.Repeat("█", len(b.Countries)))
		}
		output.WriteString(line + "\n")
	}
	return output.String()
}
