// Package locale translates user-facing messages. Catalogs are embedded JSON files
// named active.<lang>.json; English is the fallback language.
package locale

import (
	"embed"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/nicksnyder/go-i18n/v2/i18n"
	"golang.org/x/text/language"
)

//go:embed locales/*.json
var localeFS embed.FS

// Default is the language used when nothing better matches.
var Default = language.English

// Bundle holds every loaded catalog. It is read-only after New.
type Bundle struct {
	bundle  *i18n.Bundle
	matcher language.Matcher
	logger  *slog.Logger
	tags    []language.Tag
}

// New loads the embedded catalogs.
func New(logger *slog.Logger) (*Bundle, error) {
	bundle := i18n.NewBundle(Default)
	bundle.RegisterUnmarshalFunc("json", json.Unmarshal)

	entries, err := localeFS.ReadDir("locales")
	if err != nil {
		return nil, fmt.Errorf("reading locales: %w", err)
	}
	for _, entry := range entries {
		name := entry.Name()
		if !strings.HasPrefix(name, "active.") || !strings.HasSuffix(name, ".json") {
			logger.Debug("skipping locale file", "file", name)
			continue
		}
		if _, err := bundle.LoadMessageFileFS(localeFS, "locales/"+name); err != nil {
			return nil, fmt.Errorf("loading %s: %w", name, err)
		}
		logger.Debug("locale loaded", "file", name)
	}

	tags := bundle.LanguageTags()
	return &Bundle{
		bundle:  bundle,
		matcher: language.NewMatcher(tags),
		logger:  logger,
		tags:    tags,
	}, nil
}

// Languages returns the available languages, the default first.
func (b *Bundle) Languages() []language.Tag {
	out := make([]language.Tag, len(b.tags))
	copy(out, b.tags)
	return out
}

// Match picks the best available language for the given preferences, which may
// be plain tags ("es") or Accept-Language header values ("es-AR,es;q=0.9").
func (b *Bundle) Match(preferences ...string) language.Tag {
	_, index := language.MatchStrings(b.matcher, preferences...)
	return b.tags[index]
}

// Localizer returns a translator for tag.
func (b *Bundle) Localizer(tag language.Tag) *Localizer {
	return &Localizer{
		localizer: i18n.NewLocalizer(b.bundle, tag.String()),
		logger:    b.logger,
		tag:       tag,
	}
}

// Localizer translates messages into one language.
type Localizer struct {
	localizer *i18n.Localizer
	logger    *slog.Logger
	tag       language.Tag
}

// Tag returns the language of l.
func (l *Localizer) Tag() language.Tag {
	return l.tag
}

// T translates a message. Missing messages are logged and rendered as their ID.
func (l *Localizer) T(id string, data map[string]any) string {
	msg, err := l.localizer.Localize(&i18n.LocalizeConfig{MessageID: id, TemplateData: data})
	if err != nil {
		l.logger.Debug("missing translation", "id", id, "lang", l.tag.String(), "error", err)
		return id
	}
	return msg
}

// Plural translates a message with plural forms; data gets a Count entry.
func (l *Localizer) Plural(id string, count int) string {
	msg, err := l.localizer.Localize(&i18n.LocalizeConfig{
		MessageID:    id,
		PluralCount:  count,
		TemplateData: map[string]any{"Count": count},
	})
	if err != nil {
		l.logger.Debug("missing translation", "id", id, "lang", l.tag.String(), "error", err)
		return id
	}
	return msg
}
