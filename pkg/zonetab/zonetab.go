// Package zonetab reads the tzdata zone.tab file, which maps ISO 3166 country codes
// to the IANA timezones used in each country.
//
// The bundled copy is the one shipped with the tz database. Rows keep their file
// order, so the first zone listed for a country is its representative zone.
package zonetab

import (
	"bufio"
	_ "embed"
	"fmt"
	"io"
	"os"
	"slices"
	"strings"

	"github.com/hashicorp/go-multierror"
)

//go:embed zone.tab
var bundled string

// Table maps upper-case alpha-2 country codes to their zones in canonical order.
// A Table is read-only after construction and safe for concurrent use.
type Table struct {
	zones     map[string][]string
	countries []string
}

// Bundled returns the table embedded in the binary.
func Bundled() *Table {
	t, err := Load(strings.NewReader(bundled))
	if err != nil {
		// The embedded file is part of the build; a parse failure is a build defect.
		panic(fmt.Sprintf("zonetab: bundled zone.tab is invalid: %v", err))
	}
	return t
}

// LoadFile parses a zone.tab file from disk, for example /usr/share/zoneinfo/zone.tab.
func LoadFile(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening zone table: %w", err)
	}
	defer f.Close() //nolint:errcheck // read-only file

	t, err := Load(f)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return t, nil
}

// Load parses zone.tab formatted data. Every malformed line is reported.
func Load(r io.Reader) (*Table, error) {
	t := &Table{zones: make(map[string][]string)}

	var errs *multierror.Error
	scanner := bufio.NewScanner(r)
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimRight(scanner.Text(), "\r")
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}

		fields := strings.Split(text, "\t")
		if len(fields) < 3 {
			errs = multierror.Append(errs, fmt.Errorf("line %d: expected at least 3 tab-separated fields, got %d", line, len(fields)))
			continue
		}

		code := strings.ToUpper(strings.TrimSpace(fields[0]))
		zone := strings.TrimSpace(fields[2])
		if len(code) != 2 {
			errs = multierror.Append(errs, fmt.Errorf("line %d: invalid country code %q", line, fields[0]))
			continue
		}
		if zone == "" {
			errs = multierror.Append(errs, fmt.Errorf("line %d: empty zone name", line))
			continue
		}

		if _, seen := t.zones[code]; !seen {
			t.countries = append(t.countries, code)
		}
		if !slices.Contains(t.zones[code], zone) {
			t.zones[code] = append(t.zones[code], zone)
		}
	}
	if err := scanner.Err(); err != nil {
		errs = multierror.Append(errs, fmt.Errorf("reading zone table: %w", err))
	}
	if err := errs.ErrorOrNil(); err != nil {
		return nil, err
	}

	slices.Sort(t.countries)
	return t, nil
}

// Zones returns the zones for a country in canonical order, or nil if the country
// has none. The returned slice is a copy.
func (t *Table) Zones(code string) []string {
	return slices.Clone(t.zones[strings.ToUpper(code)])
}

// Countries returns every country code with at least one zone, sorted.
func (t *Table) Countries() []string {
	return slices.Clone(t.countries)
}

// Len returns the number of countries in the table.
func (t *Table) Len() int {
	return len(t.countries)
}
