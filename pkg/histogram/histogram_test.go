package histogram

import (
	"strings"
	"testing"

	"github.com/codeGROOVE-dev/worldtz/pkg/tzconvert"
	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	color.NoColor = true
}

var sampleRows = []tzconvert.OffsetRow{
	{Country: "ES", UTCOffsetHours: 1},
	{Country: "AR", UTCOffsetHours: -3},
	{Country: "FR", UTCOffsetHours: 1},
	{Country: "IN", UTCOffsetHours: 5.5},
	{Country: "BR", UTCOffsetHours: -3},
	{Country: "NP", UTCOffsetHours: 5.75},
	{Country: "DE", UTCOffsetHours: 1},
}

func TestGroup(t *testing.T) {
	buckets := Group(sampleRows)
	require.Len(t, buckets, 4)

	assert.Equal(t, -3*3600, buckets[0].OffsetSeconds)
	assert.Equal(t, []string{"AR", "BR"}, buckets[0].Countries)
	assert.Equal(t, 3600, buckets[1].OffsetSeconds)
	assert.Equal(t, []string{"DE", "ES", "FR"}, buckets[1].Countries)
	assert.InDelta(t, 5.5, buckets[2].OffsetHours(), 1e-9)
	assert.Equal(t, 20700, buckets[3].OffsetSeconds)
}

func TestColor(t *testing.T) {
	assert.Equal(t, Palette[0], Color(MinOffset))
	assert.Equal(t, Palette[len(Palette)-1], Color(MaxOffset))
	assert.Equal(t, Palette[0], Color(-20), "clamped below")
	assert.Equal(t, Palette[len(Palette)-1], Color(20), "clamped above")

	// UTC+1 sits halfway between the third and fourth stops.
	assert.Equal(t, "#E6C27D", Color(1))
}

func TestScale(t *testing.T) {
	scale := Scale()
	require.Len(t, scale, len(Palette))
	assert.Equal(t, 0.0, scale[0][0])
	assert.Equal(t, 1.0, scale[len(scale)-1][0])
	assert.Equal(t, Palette[2], scale[2][1])
}

func TestRender(t *testing.T) {
	out := Render(sampleRows, 3600)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 6)

	assert.Contains(t, lines[2], "UTC-03:00 (  2) ██")
	assert.Contains(t, lines[3], "→ UTC+01:00 (  3) ███")
	assert.Contains(t, lines[5], "UTC+05:45 (  1) ·")
}

func TestRenderEmpty(t *testing.T) {
	assert.Contains(t, Render(nil), "No offset data available")
}
