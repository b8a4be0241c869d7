// Package config holds the settings shared by the worldtz binaries.
//
// Every flag has an environment fallback named WORLDTZ_<FLAG>, with dashes turned
// into underscores. Precedence is command line, then environment, then the
// built-in default. A .env file, when present, seeds the environment without
// overriding variables that are already set.
package config

import (
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"net/url"
	"slices"
	"strings"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/joho/godotenv"
)

// EnvPrefix prefixes every environment fallback.
const EnvPrefix = "WORLDTZ_"

// Config is the runtime configuration.
type Config struct {
	Port          string
	LogFormat     string
	CountryA      string
	CountryB      string
	Language      string
	ZoneTab       string
	HeroImageURL  string
	AvatarURL     string
	CORSOrigins   string
	SessionTTL    time.Duration
	AssetTTL      time.Duration
	AssetTimeout  time.Duration
	MaxSessions   int
	LocationCache int
	RateLimit     int
	Verbose       bool
}

// Default returns the built-in configuration: Argentina against Spain, as the
// dashboard opens on first visit.
func Default() Config {
	return Config{
		Port:          "8080",
		LogFormat:     "text",
		CountryA:      "AR",
		CountryB:      "ES",
		Language:      "en",
		HeroImageURL:  "https://images.unsplash.com/photo-1501139083538-0139583c060f?w=1200",
		SessionTTL:    24 * time.Hour,
		AssetTTL:      12 * time.Hour,
		AssetTimeout:  2 * time.Second,
		MaxSessions:   10_000,
		LocationCache: 1024,
		RateLimit:     60,
	}
}

// RegisterCommon defines the flags every binary understands.
func (c *Config) RegisterCommon(flags *flag.FlagSet) {
	flags.StringVar(&c.CountryA, "country-a", c.CountryA, "Default first country (alpha-2, alpha-3 or name)")
	flags.StringVar(&c.CountryB, "country-b", c.CountryB, "Default second country (alpha-2, alpha-3 or name)")
	flags.StringVar(&c.Language, "lang", c.Language, "Interface language (en, es)")
	flags.StringVar(&c.ZoneTab, "zonetab", c.ZoneTab, "Path to a zone.tab file overriding the bundled copy")
	flags.IntVar(&c.LocationCache, "location-cache", c.LocationCache, "Number of parsed timezones kept in memory")
	flags.BoolVar(&c.Verbose, "verbose", c.Verbose, "Enable verbose logging")
}

// RegisterServer defines the flags only the HTTP server understands.
func (c *Config) RegisterServer(flags *flag.FlagSet) {
	flags.StringVar(&c.Port, "port", c.Port, "Port for web server (or set PORT)")
	flags.StringVar(&c.LogFormat, "log-format", c.LogFormat, "Log format: text or json")
	flags.StringVar(&c.HeroImageURL, "hero-image", c.HeroImageURL, "Decorative header image URL, empty to disable")
	flags.StringVar(&c.AvatarURL, "avatar", c.AvatarURL, "Author avatar URL, empty to disable")
	flags.StringVar(&c.CORSOrigins, "cors-origins", c.CORSOrigins, "Comma-separated origins allowed to call the API")
	flags.DurationVar(&c.SessionTTL, "session-ttl", c.SessionTTL, "Idle time after which a session history is dropped")
	flags.DurationVar(&c.AssetTTL, "asset-ttl", c.AssetTTL, "How long fetched images stay cached")
	flags.DurationVar(&c.AssetTimeout, "asset-timeout", c.AssetTimeout, "Time a page waits for its images before rendering without them")
	flags.IntVar(&c.MaxSessions, "max-sessions", c.MaxSessions, "Maximum number of session histories kept in memory")
	flags.IntVar(&c.RateLimit, "rate-limit", c.RateLimit, "Requests per minute per client IP, 0 to disable")
}

// EnvName returns the environment fallback for a flag.
func EnvName(flagName string) string {
	return EnvPrefix + strings.ToUpper(strings.ReplaceAll(flagName, "-", "_"))
}

// Parse loads envFile (ignored when missing), parses args into flags and then fills
// every flag not given on the command line from its environment fallback.
// lookup is usually os.LookupEnv.
func Parse(flags *flag.FlagSet, args []string, envFile string, lookup func(string) (string, bool)) error {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("loading %s: %w", envFile, err)
		}
	}

	if err := flags.Parse(args); err != nil {
		return err
	}

	explicit := make(map[string]bool)
	flags.Visit(func(f *flag.Flag) { explicit[f.Name] = true })

	var result *multierror.Error
	flags.VisitAll(func(f *flag.Flag) {
		if explicit[f.Name] {
			return
		}
		value, ok := lookup(EnvName(f.Name))
		if !ok && f.Name == "port" {
			value, ok = lookup("PORT")
		}
		if !ok || value == "" {
			return
		}
		if err := flags.Set(f.Name, value); err != nil {
			result = multierror.Append(result, fmt.Errorf("%s: %w", EnvName(f.Name), err))
		}
	})
	return result.ErrorOrNil()
}

// Origins splits CORSOrigins.
func (c Config) Origins() []string {
	var out []string
	for o := range strings.SplitSeq(c.CORSOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			out = append(out, o)
		}
	}
	return out
}

// Validate reports every invalid setting at once.
func (c Config) Validate() error {
	var result *multierror.Error

	if c.CountryA == "" || c.CountryB == "" {
		result = multierror.Append(result, errors.New("default countries must not be empty"))
	}
	if !slices.Contains([]string{"text", "json"}, c.LogFormat) {
		result = multierror.Append(result, fmt.Errorf("log format %q: want text or json", c.LogFormat))
	}
	if c.Port == "" {
		result = multierror.Append(result, errors.New("port must not be empty"))
	}
	if c.SessionTTL <= 0 {
		result = multierror.Append(result, fmt.Errorf("session ttl %v must be positive", c.SessionTTL))
	}
	if c.AssetTTL <= 0 {
		result = multierror.Append(result, fmt.Errorf("asset ttl %v must be positive", c.AssetTTL))
	}
	if c.AssetTimeout <= 0 {
		result = multierror.Append(result, fmt.Errorf("asset timeout %v must be positive", c.AssetTimeout))
	}
	if c.LocationCache <= 0 {
		result = multierror.Append(result, fmt.Errorf("location cache %d must be positive", c.LocationCache))
	}
	if c.MaxSessions <= 0 {
		result = multierror.Append(result, fmt.Errorf("max sessions %d must be positive", c.MaxSessions))
	}
	if c.RateLimit < 0 {
		result = multierror.Append(result, fmt.Errorf("rate limit %d must not be negative", c.RateLimit))
	}
	for _, asset := range []struct{ name, raw string }{
		{"hero image", c.HeroImageURL},
		{"avatar", c.AvatarURL},
	} {
		if asset.raw == "" {
			continue
		}
		u, err := url.Parse(asset.raw)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			result = multierror.Append(result, fmt.Errorf("%s url %q must be absolute http(s)", asset.name, asset.raw))
		}
	}

	return result.ErrorOrNil()
}
