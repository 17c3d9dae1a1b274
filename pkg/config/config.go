package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/go-pkgz/lgr"
	ini "github.com/vaughan0/go-ini"
	"gopkg.in/yaml.v3"

	"github.com/umputun/xpath2rss/pkg/domain"
)

//go:generate go run ../../cmd/schema/main.go schema.json

// GUIDVar is the var every config must define, it identifies the scraped item
const GUIDVar = "guid"

// Config holds the settings of a single page-to-feed conversion
type Config struct {
	File        string            `yaml:"file" json:"file" jsonschema:"description=Feed file keeping the history of emitted items"`
	URL         string            `yaml:"url" json:"url" jsonschema:"description=Page to scrape as http(s) or file URL"`
	Feed        string            `yaml:"feed" json:"feed" jsonschema:"description=Feed title"`
	Title       string            `yaml:"title" json:"title,omitempty" jsonschema:"description=Item title template with %var% placeholders"`
	Description string            `yaml:"description" json:"description,omitempty" jsonschema:"description=Item description template with %var% placeholders"`
	Link        string            `yaml:"link" json:"link,omitempty" jsonschema:"description=Item link template or the page URL if empty"`
	Context     string            `yaml:"context" json:"context,omitempty" jsonschema:"description=XPath of the node all vars are evaluated against"`
	Vars        map[string]string `yaml:"vars" json:"vars" jsonschema:"description=XPath expression per var with guid mandatory"`
	HTTP        HTTPConfig        `yaml:"http" json:"http,omitempty" jsonschema:"description=Page fetching settings"`
}

// HTTPConfig holds page fetching settings
type HTTPConfig struct {
	ConnectTimeout  time.Duration `yaml:"connect_timeout" json:"connect_timeout,omitempty" jsonschema:"default=60s,description=Connect timeout"`
	Timeout         time.Duration `yaml:"timeout" json:"timeout,omitempty" jsonschema:"default=120s,description=Overall request timeout"`
	UserAgent       string        `yaml:"user_agent" json:"user_agent,omitempty" jsonschema:"description=User-Agent header with a desktop browser default"`
	FollowRedirects bool          `yaml:"follow_redirects" json:"follow_redirects,omitempty" jsonschema:"default=false,description=Follow HTTP redirects"`
}

// default fetch timeouts
const (
	defaultConnectTimeout = 60 * time.Second
	defaultTimeout        = 120 * time.Second
)

// Load reads configuration from an INI (.ini, .conf) or YAML file.
// All failures are fatal, nothing is discovered lazily during the run.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path) //nolint:gosec // file path comes from CLI argument
	if err != nil {
		return nil, domain.WrapError(domain.ErrConfig, err, "read config file")
	}

	var cfg *Config
	switch strings.ToLower(filepath.Ext(path)) {
	case ".ini", ".conf":
		cfg, err = parseINI(string(data))
	default:
		cfg, err = parseYAML(data)
	}
	if err != nil {
		return nil, domain.WrapError(domain.ErrConfig, err, "parse config %s", path)
	}

	cfg.setDefaults()

	// validate configuration
	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("validate config %s: %w", path, err)
	}

	// verify against embedded schema
	if err := VerifyAgainstEmbeddedSchema(cfg); err != nil {
		// log warning but don't fail - schema validation is supplementary
		lgr.Printf("[WARN] schema validation failed: %v", err)
	}

	return cfg, nil
}

func parseYAML(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal([]byte(expandEnv(string(data))), &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// parseINI reads the classic layout: top-level keys, [vars] and optional [http] sections
func parseINI(data string) (*Config, error) {
	file, err := ini.Load(strings.NewReader(data))
	if err != nil {
		return nil, err
	}

	get := func(section, key string) string {
		v, _ := file.Get(section, key)
		return unquote(v)
	}

	cfg := Config{
		File:        get("", "file"),
		URL:         get("", "url"),
		Feed:        get("", "feed"),
		Title:       get("", "title"),
		Description: get("", "description"),
		Link:        get("", "link"),
		Context:     get("", "context"),
		Vars:        map[string]string{},
	}
	for name, expr := range file.Section("vars") {
		cfg.Vars[name] = unquote(expr)
	}

	if cfg.HTTP.ConnectTimeout, err = parseSeconds(get("http", "connect_timeout")); err != nil {
		return nil, fmt.Errorf("http.connect_timeout: %w", err)
	}
	if cfg.HTTP.Timeout, err = parseSeconds(get("http", "timeout")); err != nil {
		return nil, fmt.Errorf("http.timeout: %w", err)
	}
	cfg.HTTP.UserAgent = get("http", "user_agent")
	if v := get("http", "follow_redirects"); v != "" {
		if cfg.HTTP.FollowRedirects, err = strconv.ParseBool(v); err != nil {
			return nil, fmt.Errorf("http.follow_redirects: %w", err)
		}
	}
	return &cfg, nil
}

// parseSeconds accepts Go durations and plain numbers of seconds
func parseSeconds(v string) (time.Duration, error) {
	if v == "" {
		return 0, nil
	}
	if secs, err := strconv.Atoi(v); err == nil {
		return time.Duration(secs) * time.Second, nil
	}
	return time.ParseDuration(v)
}

func unquote(v string) string {
	v = strings.TrimSpace(v)
	if len(v) >= 2 && (v[0] == '"' || v[0] == '\'') && v[len(v)-1] == v[0] {
		return v[1 : len(v)-1]
	}
	return v
}

// expandEnv replaces $VAR and ${VAR} with set environment variables only,
// other dollar signs are kept as is since templates may contain them
func expandEnv(s string) string {
	return os.Expand(s, func(name string) string {
		if v, ok := os.LookupEnv(name); ok {
			return v
		}
		return "$" + name
	})
}

func (c *Config) setDefaults() {
	if c.HTTP.ConnectTimeout == 0 {
		c.HTTP.ConnectTimeout = defaultConnectTimeout
	}
	if c.HTTP.Timeout == 0 {
		c.HTTP.Timeout = defaultTimeout
	}
	if c.Vars == nil {
		c.Vars = map[string]string{}
	}
}

// validate checks configuration for correctness
func validate(cfg *Config) error {
	required := []struct{ name, value string }{
		{"file", cfg.File},
		{"url", cfg.URL},
		{"feed", cfg.Feed},
	}
	for _, r := range required {
		if strings.TrimSpace(r.value) == "" {
			return domain.NewError(domain.ErrConfig, "%s is required", r.name)
		}
	}

	u, err := url.Parse(cfg.URL)
	if err != nil {
		return domain.WrapError(domain.ErrConfig, err, "invalid url")
	}
	switch u.Scheme {
	case "http", "https", "file":
	default:
		return domain.NewError(domain.ErrConfig, "url must be http, https or file, got %q", cfg.URL)
	}

	if _, ok := cfg.Vars[GUIDVar]; !ok {
		return domain.NewError(domain.ErrMissingGUIDVar, "a var called %q must always be defined", GUIDVar)
	}
	for name, expr := range cfg.Vars {
		if strings.TrimSpace(expr) == "" {
			return domain.NewError(domain.ErrConfig, "vars.%s has an empty expression", name)
		}
	}

	if cfg.HTTP.ConnectTimeout < 0 || cfg.HTTP.Timeout < 0 {
		return domain.NewError(domain.ErrConfig, "http timeouts must be positive")
	}
	return nil
}
