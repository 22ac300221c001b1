package config

import (
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"

	"github.com/vango-dev/alpml/internal/errors"
)

const (
	// ConfigFileName is the name of the default configuration file.
	ConfigFileName = "alpml.json"

	// DefaultPort is the default development server port.
	DefaultPort = 3000

	// DefaultHost is the default development server host.
	DefaultHost = "localhost"

	// DefaultSelector selects component declarations in a page.
	DefaultSelector = "object[type='text/x-alpml']"

	// DefaultScriptURL is the reactivity library mounted into every page.
	DefaultScriptURL = "https://cdn.jsdelivr.net/npm/alpinejs@3.x.x/dist/cdn.min.js"

	// DefaultHTTPTimeout bounds fetching a remote component document.
	DefaultHTTPTimeout = "10s"
)

// configFileNames are tried in order by Load.
var configFileNames = []string{ConfigFileName, "alpml.jsonc", "alpml.yaml", "alpml.yml"}

// Config represents the complete project configuration.
type Config struct {
	// Name is the project name.
	Name string `json:"name,omitempty" yaml:"name,omitempty"`

	// Pages is the directory holding pages and component documents.
	Pages string `json:"pages,omitempty" yaml:"pages,omitempty"`

	// Dev contains development server configuration.
	Dev DevConfig `json:"dev,omitempty" yaml:"dev,omitempty"`

	// Components controls how component declarations are found.
	Components ComponentsConfig `json:"components,omitempty" yaml:"components,omitempty"`

	// Reactivity controls the reactivity script mounted into pages.
	Reactivity ReactivityConfig `json:"reactivity,omitempty" yaml:"reactivity,omitempty"`

	// Loader configures how component documents are fetched.
	Loader LoaderConfig `json:"loader,omitempty" yaml:"loader,omitempty"`

	// Log configures structured logging.
	Log LogConfig `json:"log,omitempty" yaml:"log,omitempty"`

	// configPath stores the path where the config was loaded from.
	configPath string
}

// DevConfig contains development server settings.
type DevConfig struct {
	// Port is the port to run the dev server on.
	Port int `json:"port,omitempty" yaml:"port,omitempty"`

	// Host is the host to bind to.
	Host string `json:"host,omitempty" yaml:"host,omitempty"`

	// HotReload reloads connected browsers when a watched file changes.
	HotReload bool `json:"hotReload,omitempty" yaml:"hotReload,omitempty"`

	// Watch contains paths to watch for changes.
	Watch []string `json:"watch,omitempty" yaml:"watch,omitempty"`

	// Ignore contains patterns to ignore during watch.
	Ignore []string `json:"ignore,omitempty" yaml:"ignore,omitempty"`
}

// ComponentsConfig controls declaration discovery.
type ComponentsConfig struct {
	// Selector is the CSS selector matching component declarations.
	Selector string `json:"selector,omitempty" yaml:"selector,omitempty"`
}

// ReactivityConfig controls the reactivity library script tag.
type ReactivityConfig struct {
	// Disabled skips mounting the script; components load without waiting for it.
	Disabled bool `json:"disabled,omitempty" yaml:"disabled,omitempty"`

	// ScriptURL is the src of the mounted script.
	ScriptURL string `json:"scriptURL,omitempty" yaml:"scriptURL,omitempty"`
}

// LoaderConfig configures component document fetching.
type LoaderConfig struct {
	// HTTPTimeout is the per-request timeout for http(s) documents (e.g. "10s").
	HTTPTimeout string `json:"httpTimeout,omitempty" yaml:"httpTimeout,omitempty"`

	// BaseURL resolves relative references against a remote site instead of Pages.
	BaseURL string `json:"baseURL,omitempty" yaml:"baseURL,omitempty"`

	// Concurrency bounds simultaneous document fetches per page. Zero uses
	// the bootstrap default.
	Concurrency int `json:"concurrency,omitempty" yaml:"concurrency,omitempty"`

	// S3 configures s3:// references.
	S3 S3Config `json:"s3,omitempty" yaml:"s3,omitempty"`
}

// S3Config configures the S3 loader.
type S3Config struct {
	Region    string `json:"region,omitempty" yaml:"region,omitempty"`
	Endpoint  string `json:"endpoint,omitempty" yaml:"endpoint,omitempty"`
	PathStyle bool   `json:"pathStyle,omitempty" yaml:"pathStyle,omitempty"`
}

// LogConfig configures the slog handler built by the CLI.
type LogConfig struct {
	// Level is one of debug, info, warn, error.
	Level string `json:"level,omitempty" yaml:"level,omitempty"`

	// Format is "text" or "json".
	Format string `json:"format,omitempty" yaml:"format,omitempty"`
}

// New creates a new Config with default values.
func New() *Config {
	return &Config{
		Pages: ".",
		Dev: DevConfig{
			Port:      DefaultPort,
			Host:      DefaultHost,
			HotReload: true,
		},
		Components: ComponentsConfig{
			Selector: DefaultSelector,
		},
		Reactivity: ReactivityConfig{
			ScriptURL: DefaultScriptURL,
		},
		Loader: LoaderConfig{
			HTTPTimeout: DefaultHTTPTimeout,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load reads configuration from the specified directory.
// It looks for alpml.json, alpml.jsonc, alpml.yaml and alpml.yml in that order.
func Load(dir string) (*Config, error) {
	for _, name := range configFileNames {
		path := filepath.Join(dir, name)
		if _, err := os.Stat(path); err == nil {
			return LoadFile(path)
		}
	}
	return nil, errors.New("A040").
		WithDetail("No alpml.json or alpml.yaml found in " + dir)
}

// LoadFile reads configuration from the specified file path.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.New("A040").
				WithDetail("No configuration found at " + path)
		}
		return nil, errors.New("A041").Wrap(err)
	}

	cfg, err := Parse(data, filepath.Ext(path))
	if err != nil {
		return nil, err
	}
	cfg.configPath = path
	return cfg, nil
}

// Parse decodes configuration data. ext selects the format: ".yaml" and
// ".yml" are YAML, anything else is JSON with comments allowed.
func Parse(data []byte, ext string) (*Config, error) {
	cfg := New()
	switch strings.ToLower(ext) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, errors.New("A041").
				WithDetail("Failed to parse YAML configuration: " + err.Error())
		}
	default:
		if err := json.Unmarshal(jsonc.ToJSON(data), cfg); err != nil {
			return nil, errors.New("A041").
				WithDetail("Failed to parse JSON configuration: " + err.Error()).
				WithSuggestion("Check that alpml.json is valid JSON")
		}
	}
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

// SaveTo writes the configuration to the specified path, as YAML when the
// extension asks for it and as indented JSON otherwise.
func (c *Config) SaveTo(path string) error {
	var (
		data []byte
		err  error
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		data, err = yaml.Marshal(c)
	default:
		data, err = json.MarshalIndent(c, "", "  ")
		data = append(data, '\n')
	}
	if err != nil {
		return errors.New("A041").Wrap(err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return errors.New("A041").Wrap(err)
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
	if c.Pages == "" {
		c.Pages = "."
	}
	if c.Dev.Port == 0 {
		c.Dev.Port = DefaultPort
	}
	if c.Dev.Host == "" {
		c.Dev.Host = DefaultHost
	}
	if c.Components.Selector == "" {
		c.Components.Selector = DefaultSelector
	}
	if c.Reactivity.ScriptURL == "" {
		c.Reactivity.ScriptURL = DefaultScriptURL
	}
	if c.Loader.HTTPTimeout == "" {
		c.Loader.HTTPTimeout = DefaultHTTPTimeout
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "text"
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Dev.Port < 0 || c.Dev.Port > 65535 {
		return errors.New("A041").
			WithDetail("Port must be between 0 and 65535")
	}
	if _, err := time.ParseDuration(c.Loader.HTTPTimeout); err != nil {
		return errors.New("A041").
			WithDetailf("loader.httpTimeout %q is not a duration", c.Loader.HTTPTimeout)
	}
	if c.Loader.Concurrency < 0 {
		return errors.New("A041").
			WithDetailf("loader.concurrency %d must not be negative", c.Loader.Concurrency)
	}
	if _, ok := parseLevel(c.Log.Level); !ok {
		return errors.New("A041").
			WithDetailf("log.level %q must be one of debug, info, warn, error", c.Log.Level)
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		return errors.New("A041").
			WithDetailf("log.format %q must be text or json", c.Log.Format)
	}
	return nil
}

// DevAddress returns the address string for the dev server.
func (c *Config) DevAddress() string {
	return c.Dev.Host + ":" + strconv.Itoa(c.Dev.Port)
}

// DevURL returns the full URL for the dev server.
func (c *Config) DevURL() string {
	return "http://" + c.DevAddress()
}

// PagesPath returns the absolute path to the pages directory.
func (c *Config) PagesPath() string {
	if filepath.IsAbs(c.Pages) {
		return c.Pages
	}
	return filepath.Join(c.Dir(), c.Pages)
}

// WatchPaths returns the absolute paths the dev server watches. The pages
// directory is watched when nothing else is configured.
func (c *Config) WatchPaths() []string {
	if len(c.Dev.Watch) == 0 {
		return []string{c.PagesPath()}
	}
	paths := make([]string, 0, len(c.Dev.Watch))
	for _, p := range c.Dev.Watch {
		if !filepath.IsAbs(p) {
			p = filepath.Join(c.Dir(), p)
		}
		paths = append(paths, p)
	}
	return paths
}

// HTTPTimeout returns the parsed loader timeout.
func (c *Config) HTTPTimeout() time.Duration {
	d, err := time.ParseDuration(c.Loader.HTTPTimeout)
	if err != nil {
		return 10 * time.Second
	}
	return d
}

// LogLevel returns the slog level for Log.Level.
func (c *Config) LogLevel() slog.Level {
	level, _ := parseLevel(c.Log.Level)
	return level
}

func parseLevel(s string) (slog.Level, bool) {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug, true
	case "info", "":
		return slog.LevelInfo, true
	case "warn", "warning":
		return slog.LevelWarn, true
	case "error":
		return slog.LevelError, true
	}
	return slog.LevelInfo, false
}

// Exists checks if a config file exists in the given directory.
func Exists(dir string) bool {
	for _, name := range configFileNames {
		if _, err := os.Stat(filepath.Join(dir, name)); err == nil {
			return true
		}
	}
	return false
}

// FindProjectRoot walks up directories to find the project root.
// Returns the directory containing a config file, or an error if not found.
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
			return "", errors.New("A040").
				WithDetail("No alpml.json found in " + startDir + " or any parent directory")
		}
		dir = parent
	}
}

// LoadOrDefault loads the project configuration found from dir upwards,
// falling back to defaults rooted at dir when there is none.
func LoadOrDefault(dir string) (*Config, error) {
	root, err := FindProjectRoot(dir)
	if err != nil {
		if errors.HasCode(err, "A040") {
			cfg := New()
			abs, absErr := filepath.Abs(dir)
			if absErr != nil {
				return nil, absErr
			}
			cfg.configPath = filepath.Join(abs, ConfigFileName)
			return cfg, nil
		}
		return nil, err
	}
	return Load(root)
}
