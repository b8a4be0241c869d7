package zonetab

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBundled(t *testing.T) {
	tab := Bundled()

	tests := []struct {
		code      string
		wantFirst string
	}{
		{"AR", "America/Argentina/Buenos_Aires"},
		{"ES", "Europe/Madrid"},
		{"US", "America/New_York"},
		{"IN", "Asia/Kolkata"},
		{"NP", "Asia/Kathmandu"},
		{"au", "Australia/Lord_Howe"},
	}
	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			zones := tab.Zones(tt.code)
			require.NotEmpty(t, zones)
			assert.Equal(t, tt.wantFirst, zones[0])
		})
	}

	assert.Nil(t, tab.Zones("BV"), "Bouvet Island has no zone of its own")
	assert.Greater(t, tab.Len(), 200)
}

func TestCountriesSortedAndUnique(t *testing.T) {
	countries := Bundled().Countries()
	seen := make(map[string]bool, len(countries))
	for i, c := range countries {
		assert.False(t, seen[c], "duplicate country %s", c)
		seen[c] = true
		if i > 0 {
			assert.Less(t, countries[i-1], c)
		}
	}
}

func TestZonesReturnsCopy(t *testing.T) {
	tab := Bundled()
	zones := tab.Zones("ES")
	zones[0] = "Mars/Olympus_Mons"
	assert.Equal(t, "Europe/Madrid", tab.Zones("ES")[0])
}

func TestLoad(t *testing.T) {
	input := strings.Join([]string{
		"# comment",
		"",
		"AR\t-3436-05827\tAmerica/Argentina/Buenos_Aires\tBuenos Aires",
		"AR\t-3124-06411\tAmerica/Argentina/Cordoba",
		"AR\t-3124-06411\tAmerica/Argentina/Cordoba",
		"es\t+4024-00341\tEurope/Madrid\r",
	}, "\n")

	tab, err := Load(strings.NewReader(input))
	require.NoError(t, err)
	assert.Equal(t, []string{"AR", "ES"}, tab.Countries())
	assert.Equal(t, []string{"America/Argentina/Buenos_Aires", "America/Argentina/Cordoba"}, tab.Zones("AR"))
	assert.Equal(t, []string{"Europe/Madrid"}, tab.Zones("ES"))
}

func TestLoadReportsEveryBadLine(t *testing.T) {
	input := strings.Join([]string{
		"AR\t-3436-05827",
		"ARG\t-3436-05827\tAmerica/Argentina/Buenos_Aires",
		"ES\t+4024-00341\t ",
		"FR\t+4852+00220\tEurope/Paris",
	}, "\n")

	_, err := Load(strings.NewReader(input))
	require.Error(t, err)
	msg := err.Error()
	assert.Contains(t, msg, "line 1")
	assert.Contains(t, msg, "line 2")
	assert.Contains(t, msg, "line 3")
	assert.NotContains(t, msg, "line 4")
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "zone.tab")
	require.NoError(t, os.WriteFile(path, []byte("JP\t+353916+1394441\tAsia/Tokyo\n"), 0o600))

	tab, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"Asia/Tokyo"}, tab.Zones("JP"))

	_, err = LoadFile(filepath.Join(t.TempDir(), "missing.tab"))
	assert.Error(t, err)
}
