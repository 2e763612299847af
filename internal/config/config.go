package config

import (
	"encoding/json"
	"io"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/hashicorp/go-multierror"

	"github.com/vango-dev/pathway/internal/errors"
	"github.com/vango-dev/pathway/pkg/urlparam"
)

const (
	// ConfigFileName is the name of the configuration file.
	ConfigFileName = "pathway.json"

	// DefaultManifest is the default route manifest location.
	DefaultManifest = "routes.json"

	// DefaultHost is the default inspection server host.
	DefaultHost = "localhost"

	// DefaultPort is the default inspection server port.
	DefaultPort = 7070

	// DefaultNamespace is the default Prometheus namespace.
	DefaultNamespace = "pathway"

	// DefaultMaxRedirects bounds redirect chains.
	DefaultMaxRedirects = 20
)

// Config represents the complete pathway.json configuration.
type Config struct {
	// Manifest locates the route manifest.
	Manifest ManifestConfig `json:"manifest,omitempty"`

	// Router contains router settings.
	Router RouterConfig `json:"router,omitempty"`

	// Inspect contains inspection server settings.
	Inspect InspectConfig `json:"inspect,omitempty"`

	// Metrics contains Prometheus settings.
	Metrics MetricsConfig `json:"metrics,omitempty"`

	// Log contains logging settings.
	Log LogConfig `json:"log,omitempty"`

	// configPath stores the path where the config was loaded from.
	configPath string
}

// ManifestConfig locates the route manifest.
type ManifestConfig struct {
	// Location is a file path, relative to the config file, or an
	// s3://bucket/key URL.
	Location string `json:"location,omitempty"`

	// Region is the AWS region for s3 locations.
	Region string `json:"region,omitempty"`

	// Endpoint overrides the S3 endpoint, for S3-compatible stores.
	Endpoint string `json:"endpoint,omitempty"`

	// PathStyle addresses buckets by path instead of by host.
	PathStyle bool `json:"pathStyle,omitempty"`
}

// RouterConfig contains router settings.
type RouterConfig struct {
	// Basepath is prepended to every href.
	Basepath string `json:"basepath,omitempty"`

	// Search is the search encoding: "flat" or "comma".
	Search string `json:"search,omitempty"`

	// LoaderConcurrency limits loaders running at once. Zero means no
	// limit.
	LoaderConcurrency int `json:"loaderConcurrency,omitempty"`

	// MaxRedirects bounds redirect chains.
	MaxRedirects int `json:"maxRedirects,omitempty"`
}

// InspectConfig contains inspection server settings.
type InspectConfig struct {
	// Host is the host to bind to.
	Host string `json:"host,omitempty"`

	// Port is the port to listen on.
	Port int `json:"port,omitempty"`

	// Stream enables the websocket state stream.
	Stream *bool `json:"stream,omitempty"`
}

// MetricsConfig contains Prometheus settings.
type MetricsConfig struct {
	// Enabled exposes /metrics on the inspection server.
	Enabled *bool `json:"enabled,omitempty"`

	// Namespace is the metrics namespace.
	Namespace string `json:"namespace,omitempty"`
}

// LogConfig contains logging settings.
type LogConfig struct {
	// Level is one of debug, info, warn, error.
	Level string `json:"level,omitempty"`

	// Format is "text" or "json".
	Format string `json:"format,omitempty"`
}

// New creates a new Config with default values.
func New() *Config {
	c := &Config{}
	c.applyDefaults()
	return c
}

// Load reads configuration from the specified directory.
// It looks for pathway.json in the directory.
func Load(dir string) (*Config, error) {
	configPath := filepath.Join(dir, ConfigFileName)
	return LoadFile(configPath)
}

// LoadFile reads configuration from the specified file path.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.New(errors.EConfig).
				WithDetail("No pathway.json found in " + filepath.Dir(path)).
				WithSuggestion("Run 'pathway init' or create pathway.json manually")
		}
		return nil, errors.New(errors.EConfig).Wrap(err)
	}

	cfg := &Config{}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, errors.New(errors.EConfig).
			WithDetail("Failed to parse pathway.json: " + err.Error()).
			WithSuggestion("Check that pathway.json is valid JSON")
	}

	cfg.configPath = path
	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes the configuration to the file it was loaded from.
func (c *Config) Save() error {
	if c.configPath == "" {
		return errors.Newf(errors.CategoryConfig, "no config path set")
	}
	return c.SaveTo(c.configPath)
}

// SaveTo writes the configuration to the specified path.
func (c *Config) SaveTo(path string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return errors.New(errors.EConfig).Wrap(err)
	}
	data = append(data, '\n')

	if err := os.WriteFile(path, data, 0644); err != nil {
		return errors.New(errors.EConfig).Wrap(err)
	}

	c.configPath = path
	return nil
}

// Path returns the path where the config was loaded from.
func (c *Config) Path() string {
	return c.configPath
}

// Dir returns the directory containing the config file.
func (c *Config) Dir() string {
	if c.configPath == "" {
		return ""
	}
	return filepath.Dir(c.configPath)
}

// applyDefaults fills in default values for empty fields.
func (c *Config) applyDefaults() {
	if c.Manifest.Location == "" {
		c.Manifest.Location = DefaultManifest
	}

	if c.Router.Search == "" {
		c.Router.Search = urlparam.EncodingFlat.String()
	}
	if c.Router.MaxRedirects == 0 {
		c.Router.MaxRedirects = DefaultMaxRedirects
	}

	if c.Inspect.Host == "" {
		c.Inspect.Host = DefaultHost
	}
	if c.Inspect.Port == 0 {
		c.Inspect.Port = DefaultPort
	}
	if c.Inspect.Stream == nil {
		c.Inspect.Stream = boolPtr(true)
	}

	if c.Metrics.Enabled == nil {
		c.Metrics.Enabled = boolPtr(true)
	}
	if c.Metrics.Namespace == "" {
		c.Metrics.Namespace = DefaultNamespace
	}

	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "text"
	}
}

func boolPtr(b bool) *bool { return &b }

// Validate checks the configuration and reports every problem at once.
func (c *Config) Validate() error {
	var result *multierror.Error
	invalid := func(detail string) {
		result = multierror.Append(result, errors.New(errors.EConfig).WithDetail(detail))
	}

	if c.Inspect.Port < 0 || c.Inspect.Port > 65535 {
		invalid("inspect.port must be between 0 and 65535")
	}
	if c.Router.LoaderConcurrency < 0 {
		invalid("router.loaderConcurrency must not be negative")
	}
	if c.Router.MaxRedirects < 0 {
		invalid("router.maxRedirects must not be negative")
	}
	if _, err := urlparam.ParseEncoding(c.Router.Search); err != nil {
		invalid("router.search: " + err.Error())
	}
	if _, err := parseLevel(c.Log.Level); err != nil {
		invalid("log.level: " + err.Error())
	}
	switch c.Log.Format {
	case "", "text", "json":
	default:
		invalid("log.format must be text or json")
	}
	if strings.HasPrefix(c.Manifest.Location, "s3://") {
		rest := strings.TrimPrefix(c.Manifest.Location, "s3://")
		if bucket, key, _ := strings.Cut(rest, "/"); bucket == "" || key == "" {
			invalid("manifest.location must be s3://bucket/key")
		}
	}

	return result.ErrorOrNil()
}

// InspectAddress returns the listen address of the inspection server.
func (c *Config) InspectAddress() string {
	return net.JoinHostPort(c.Inspect.Host, strconv.Itoa(c.Inspect.Port))
}

// StreamEnabled reports whether the websocket stream is served.
func (c *Config) StreamEnabled() bool {
	return c.Inspect.Stream == nil || *c.Inspect.Stream
}

// MetricsEnabled reports whether /metrics is served.
func (c *Config) MetricsEnabled() bool {
	return c.Metrics.Enabled == nil || *c.Metrics.Enabled
}

// ManifestLocation returns the manifest location, with relative file paths
// resolved against the config file's directory.
func (c *Config) ManifestLocation() string {
	loc := c.Manifest.Location
	if strings.HasPrefix(loc, "s3://") || filepath.IsAbs(loc) {
		return loc
	}
	return filepath.Join(c.Dir(), loc)
}

// SearchParser returns the configured search parser.
func (c *Config) SearchParser() urlparam.SearchParser {
	enc, err := urlparam.ParseEncoding(c.Router.Search)
	if err != nil {
		return urlparam.Flat
	}
	return urlparam.ForEncoding(enc)
}

// Logger builds the configured logger writing to w.
func (c *Config) Logger(w io.Writer) *slog.Logger {
	level, err := parseLevel(c.Log.Level)
	if err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if c.Log.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

func parseLevel(s string) (slog.Level, error) {
	var level slog.Level
	err := level.UnmarshalText([]byte(s))
	return level, err
}

// Exists checks if a config file exists in the given directory.
func Exists(dir string) bool {
	path := filepath.Join(dir, ConfigFileName)
	_, err := os.Stat(path)
	return err == nil
}

// FindProjectRoot walks up directories to find the project root.
// Returns the directory containing pathway.json, or an error if not found.
func FindProjectRoot(startDir string) (string, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return "", err
	}

	for {
		if Exists(dir) {
			return dir, nil
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return "", errors.New(errors.EConfig).
				WithDetail("No pathway.json found in " + startDir + " or any parent directory").
				WithSuggestion("Run 'pathway init' to create one")
		}
		dir = parent
	}
}
