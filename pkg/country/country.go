// Package country is a registry of ISO 3166 countries. It maps alpha-2 codes,
// alpha-3 codes and English names onto a single Country value and provides
// localised display names.
package country

import (
	"bufio"
	_ "embed"
	"errors"
	"fmt"
	"slices"
	"strings"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"
	"golang.org/x/text/language/display"
)

//go:embed iso3166.tab
var iso3166 string

// ErrUnknownCountry is returned when an identifier matches no country.
var ErrUnknownCountry = errors.New("unknown country")

// UnknownError reports the identifier that matched no country. It matches
// ErrUnknownCountry with errors.Is.
type UnknownError struct {
	Identifier string
}

func (e *UnknownError) Error() string {
	if e.Identifier == "" {
		return "unknown country: empty identifier"
	}
	return fmt.Sprintf("unknown country: %q", e.Identifier)
}

// Is makes errors.Is(err, ErrUnknownCountry) succeed.
func (e *UnknownError) Is(target error) bool {
	return target == ErrUnknownCountry
}

// Country identifies one ISO 3166-1 entry.
type Country struct {
	Code   string `json:"code"`   // alpha-2
	Alpha3 string `json:"alpha3"` // empty when x/text does not know the region
	Name   string `json:"name"`   // tzdata English name
}

// DisplayName returns the name of c in the given language, falling back to the
// tzdata English name.
func (c Country) DisplayName(tag language.Tag) string {
	region, err := language.ParseRegion(c.Code)
	if err != nil {
		return c.Name
	}
	if name := display.Regions(tag).Name(region); name != "" {
		return name
	}
	return c.Name
}

// Registry is read-only after construction and safe for concurrent use.
type Registry struct {
	byCode    map[string]Country
	byName    map[string]string
	countries []Country
}

// NewRegistry builds the registry from the bundled iso3166.tab.
func NewRegistry() *Registry {
	r := &Registry{
		byCode: make(map[string]Country),
		byName: make(map[string]string),
	}

	scanner := bufio.NewScanner(strings.NewReader(iso3166))
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		code, name, ok := strings.Cut(line, "\t")
		if !ok {
			continue
		}
		r.add(strings.TrimSpace(code), strings.TrimSpace(name))
	}
	return r
}

func (r *Registry) add(code, name string) {
	c := Country{Code: code, Name: name}
	if region, err := language.ParseRegion(code); err == nil {
		if iso3 := region.ISO3(); iso3 != "ZZZ" {
			c.Alpha3 = iso3
		}
		if english := display.English.Regions().Name(region); english != "" {
			r.byName[normalize(english)] = code
		}
	}
	r.byCode[code] = c
	r.byName[normalize(name)] = code
	r.countries = append(r.countries, c)
}

// Lookup resolves an alpha-2 code, an alpha-3 code or an English country name.
func (r *Registry) Lookup(identifier string) (Country, error) {
	id := strings.TrimSpace(identifier)
	if id == "" {
		return Country{}, &UnknownError{}
	}

	upper := strings.ToUpper(id)
	if c, ok := r.byCode[upper]; ok {
		return c, nil
	}
	if len(upper) == 3 {
		if region, err := language.ParseRegion(upper); err == nil {
			if c, ok := r.byCode[region.String()]; ok {
				return c, nil
			}
		}
	}
	if code, ok := r.byName[normalize(id)]; ok {
		return r.byCode[code], nil
	}
	return Country{}, &UnknownError{Identifier: id}
}

// All returns every country in code order.
func (r *Registry) All() []Country {
	return slices.Clone(r.countries)
}

// Sorted returns every country ordered by its display name in the given language.
func (r *Registry) Sorted(tag language.Tag) []Country {
	out := slices.Clone(r.countries)
	names := make(map[string]string, len(out))
	for _, c := range out {
		names[c.Code] = c.DisplayName(tag)
	}
	col := collate.New(tag, collate.Loose)
	slices.SortStableFunc(out, func(a, b Country) int {
		return col.CompareString(names[a.Code], names[b.Code])
	})
	return out
}

func normalize(name string) string {
	return strings.Join(strings.Fields(strings.ToLower(name)), " ")
}
