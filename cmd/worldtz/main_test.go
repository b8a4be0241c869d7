package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	color.NoColor = true
}

func runCLI(t *testing.T, args ...string) (code int, stdout, stderr string) {
	t.Helper()
	var out, errOut bytes.Buffer
	code = run(args, &out, &errOut)
	return code, out.String(), errOut.String()
}

func TestVersion(t *testing.T) {
	code, out, _ := runCLI(t, "-version")
	assert.Equal(t, 0, code)
	assert.Equal(t, version+"\n", out)
}

func TestCompare(t *testing.T) {
	code, out, _ := runCLI(t, "-lang", "en", "AR", "ES", "09:00")
	require.Equal(t, 0, code)

	assert.Contains(t, out, "World clock")
	assert.Contains(t, out, "America/Argentina/Buenos_Aires")
	assert.Contains(t, out, "Europe/Madrid")
	// Spain is four hours ahead in winter and five in summer.
	assert.True(t,
		strings.Contains(out, "09:00 in Argentina is 13:00 in Spain") ||
			strings.Contains(out, "09:00 in Argentina is 14:00 in Spain"),
		out)
}

func TestCompareSpanish(t *testing.T) {
	code, out, _ := runCLI(t, "-lang", "es", "ARG", "ESP")
	require.Equal(t, 0, code)
	assert.Contains(t, out, "Reloj mundial")
	assert.Contains(t, out, "España")
}

func TestDefaultsToConfiguredCountries(t *testing.T) {
	code, out, _ := runCLI(t, "-country-a", "JP", "-country-b", "IN")
	require.Equal(t, 0, code)
	assert.Contains(t, out, "Asia/Tokyo")
	assert.Contains(t, out, "Asia/Kolkata")
	assert.Contains(t, out, "3.5 h behind")
}

func TestUnknownCountry(t *testing.T) {
	code, out, _ := runCLI(t, "-lang", "en", "Atlantis", "ES")
	assert.Equal(t, 1, code)
	assert.Contains(t, out, "Unknown country: Atlantis")
}

func TestBadTime(t *testing.T) {
	code, out, _ := runCLI(t, "-lang", "en", "AR", "ES", "9am")
	assert.Equal(t, 1, code)
	assert.Contains(t, out, "Invalid time 9am")
}

func TestUsage(t *testing.T) {
	code, _, errOut := runCLI(t, "AR")
	assert.Equal(t, 2, code)
	assert.Contains(t, errOut, "Usage: worldtz")

	code, _, errOut = runCLI(t, "-format", "yaml", "AR", "ES")
	assert.Equal(t, 2, code)
	assert.Contains(t, errOut, `unknown format "yaml"`)
}

func TestMarkdown(t *testing.T) {
	code, out, _ := runCLI(t, "-lang", "en", "-format", "markdown", "AR", "ES", "09:00")
	require.Equal(t, 0, code)
	assert.True(t, strings.HasPrefix(out, "# World clock"), out)
	assert.Contains(t, out, "## Local time in Argentina")
}

func TestMap(t *testing.T) {
	code, out, _ := runCLI(t, "-map", "AR", "ES")
	require.Equal(t, 0, code)
	assert.Contains(t, out, "Countries per UTC offset")
	assert.Contains(t, out, "→ UTC-03:00")
}

func TestZoneTabOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "zone.tab")
	data := "# test table\nAR\t-3436-05827\tAmerica/Argentina/Cordoba\nES\t+4024-00341\tEurope/Madrid\n"
	require.NoError(t, os.WriteFile(path, []byte(data), 0o600))

	code, out, _ := runCLI(t, "-zonetab", path, "AR", "ES")
	require.Equal(t, 0, code)
	assert.Contains(t, out, "America/Argentina/Cordoba")

	code, out, _ = runCLI(t, "-lang", "en", "-zonetab", path, "JP", "ES")
	assert.Equal(t, 1, code)
	assert.Contains(t, out, "No timezone is registered for JP")
}

func TestZoneTabMissing(t *testing.T) {
	code, _, errOut := runCLI(t, "-zonetab", filepath.Join(t.TempDir(), "absent.tab"), "AR", "ES")
	assert.Equal(t, 1, code)
	assert.NotEmpty(t, errOut)
}
