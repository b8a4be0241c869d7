package locale

import (
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/language"
)

func newBundle(t *testing.T) *Bundle {
	t.Helper()
	b, err := New(slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	return b
}

func TestLanguages(t *testing.T) {
	b := newBundle(t)
	langs := b.Languages()
	require.NotEmpty(t, langs)
	assert.Equal(t, language.English, langs[0])
	assert.Contains(t, langs, language.Spanish)
}

func TestMatch(t *testing.T) {
	b := newBundle(t)

	tests := []struct {
		name  string
		prefs []string
		want  language.Tag
	}{
		{"plain spanish", []string{"es"}, language.Spanish},
		{"accept header", []string{"es-AR,es;q=0.9,en;q=0.5"}, language.Spanish},
		{"english", []string{"en-GB"}, language.English},
		{"unsupported falls back", []string{"ja"}, language.English},
		{"nothing", nil, language.English},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, b.Match(tt.prefs...))
		})
	}
}

func TestTranslate(t *testing.T) {
	b := newBundle(t)

	en := b.Localizer(language.English)
	es := b.Localizer(language.Spanish)

	assert.Equal(t, language.English, en.Tag())
	assert.Equal(t, language.Spanish, es.Tag())
	assert.Equal(t, "World clock", en.T("title", nil))
	assert.Equal(t, "Reloj mundial", es.T("title", nil))
	assert.Equal(t, "Hora local en España", es.T("local_time_in", map[string]any{"Country": "España"}))
	assert.Equal(t, "missing_id", en.T("missing_id", nil))
}

func TestPlural(t *testing.T) {
	b := newBundle(t)

	assert.Equal(t, "1 country", b.Localizer(language.English).Plural("countries", 1))
	assert.Equal(t, "3 países", b.Localizer(language.Spanish).Plural("countries", 3))
}

func TestEveryCatalogHasEveryMessage(t *testing.T) {
	b := newBundle(t)
	en := b.Localizer(language.English)

	ids := []string{
		"title", "subtitle", "compare", "local_time_in", "offset_ahead", "offset_behind",
		"offset_same", "converted", "next_day", "previous_day", "history", "history_empty",
		"world_map", "err_unknown_country", "err_not_found", "err_bad_time", "err_generic",
		"warn_ambiguous", "warn_nonexistent",
	}
	for _, tag := range b.Languages() {
		l := b.Localizer(tag)
		for _, id := range ids {
			got := l.T(id, nil)
			assert.NotEqual(t, id, got, "%s missing in %s", id, tag)
			if tag != language.English {
				assert.NotEqual(t, en.T(id, nil), got, "%s untranslated in %s", id, tag)
			}
		}
	}
}
