package dashboard

import (
	"bytes"
	_ "embed"
	"fmt"
	"html/template"
	"io"
	"strings"

	md "github.com/JohannesKaufmann/html-to-markdown/v2"
	"github.com/codeGROOVE-dev/worldtz/pkg/histogram"
)

//go:embed templates/dashboard.html
var dashboardTemplate string

var templates = template.Must(template.New("dashboard").Parse(dashboardTemplate))

// Choropleth is a Plotly choropleth trace of the world offset table.
type Choropleth struct {
	ColorBar     colorBar  `json:"colorbar"`
	Type         string    `json:"type"`
	LocationMode string    `json:"locationmode"`
	HoverInfo    string    `json:"hoverinfo"`
	Locations    []string  `json:"locations"`
	Text         []string  `json:"text"`
	Z            []float64 `json:"z"`
	ColorScale   [][2]any  `json:"colorscale"`
	ZMin         float64   `json:"zmin"`
	ZMax         float64   `json:"zmax"`
}

type colorBar struct {
	Title struct {
		Text string `json:"text"`
	} `json:"title"`
}

// Map returns the choropleth of v.World. Countries without an alpha-3 code
// cannot be placed on the map and are left out.
func (v *View) Map() Choropleth {
	c := Choropleth{
		Type:         "choropleth",
		LocationMode: "ISO-3",
		HoverInfo:    "text",
		ColorScale:   histogram.Scale(),
		ZMin:         histogram.MinOffset,
		ZMax:         histogram.MaxOffset,
	}
	c.ColorBar.Title.Text = "UTC"
	for _, row := range v.World {
		if row.Alpha3 == "" {
			continue
		}
		c.Locations = append(c.Locations, row.Alpha3)
		c.Z = append(c.Z, row.UTCOffsetHours)
		c.Text = append(c.Text, fmt.Sprintf("%s: %s (%s)", row.Name, row.LocalTime.Format("15:04"), row.Offset))
	}
	return c
}

// Render writes the full HTML page.
func Render(w io.Writer, v *View) error {
	return templates.ExecuteTemplate(w, "page", v)
}

// RenderMarkdown returns the textual part of the page as Markdown: clocks,
// conversion, warnings and history, without the form and the map.
func RenderMarkdown(v *View) (string, error) {
	var buf bytes.Buffer
	if err := templates.ExecuteTemplate(&buf, "report", v); err != nil {
		return "", fmt.Errorf("rendering report: %w", err)
	}
	markdown, err := md.ConvertString(buf.String())
	if err != nil {
		return "", fmt.Errorf("converting report to markdown: %w", err)
	}
	return strings.TrimSpace(markdown) + "\n", nil
}
