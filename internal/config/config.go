package config

import (
	"net/url"
	"path/filepath"
	"time"

	"github.com/adrg/xdg"
)

// Default configuration values. They target English Wikipedia.
const (
	// AppName is the application name used for XDG directory paths.
	AppName = "sitegraph"

	// DefaultWorkers of 0 selects the sequential breadth-first scheduler.
	DefaultWorkers = 0

	// DefaultBasePath restricts the crawl to Wikipedia article paths.
	DefaultBasePath = "/wiki"

	// DefaultOutput is the crawl log file name.
	DefaultOutput = "crawl_log.txt"

	// DefaultTimeout of 0 means requests never time out. A stuck fetch
	// stalls one worker.
	DefaultTimeout = time.Duration(0)

	// DefaultUserAgent identifies sitegraph in HTTP requests.
	DefaultUserAgent = "sitegraph/1.0 (+https://github.com/nao1215/sitegraph)"

	// DefaultMaxBodySize limits how much of each page is read.
	DefaultMaxBodySize = 10 * 1024 * 1024 // 10MB

	// DefaultTorStartupTimeout bounds embedded Tor bootstrap.
	DefaultTorStartupTimeout = 3 * time.Minute

	// DefaultSummaryFormat prints a short text summary to stderr.
	DefaultSummaryFormat = SummaryText
)

// Summary formats.
const (
	SummaryText     = "text"
	SummaryJSON     = "json"
	SummaryMarkdown = "markdown"
	SummaryNone     = "none"
)

// StdoutOutput as Output writes the crawl log to standard output.
const StdoutOutput = "-"

// Config holds all options of one crawl run.
// It is populated from CLI flags and the optional site file and passed
// down explicitly; there is no global configuration.
type Config struct {
	// Seed is the URL the crawl starts from.
	Seed string

	// Workers is the worker pool size. 0 runs the sequential scheduler.
	Workers int

	// BasePath is the path prefix links must start with to be followed.
	BasePath string

	// Output is the crawl log path, or "-" for stdout.
	Output string

	// Timeout is the per-request timeout. 0 disables it.
	Timeout time.Duration

	// UserAgent is the User-Agent header sent with every request.
	UserAgent string

	// MaxBodySize is the maximum number of body bytes read per page.
	MaxBodySize int64

	// Cookie is sent with every request when set.
	Cookie string

	// Headers are added to every request.
	Headers map[string]string

	// ProxyAddress is a SOCKS5 proxy in host:port form. Empty means direct.
	ProxyAddress string

	// UseTor starts an embedded Tor daemon and crawls through it.
	UseTor bool

	// TorStartupTimeout bounds embedded Tor bootstrap.
	TorStartupTimeout time.Duration

	// SaveToDB stores the run in the SQLite database under DBDir.
	SaveToDB bool

	// DBDir is the SQLite database directory.
	// Defaults to the XDG data directory (~/.local/share/sitegraph on Linux).
	DBDir string

	// SummaryFormat is one of text, json, markdown or none.
	SummaryFormat string

	// SummaryFile receives the summary instead of stderr when set.
	SummaryFile string

	// Verbose enables debug logging.
	Verbose bool

	// ConfigFilePath is an explicit site file path.
	ConfigFilePath string

	// SiteConfigs holds the parsed site file, if any.
	SiteConfigs *File
}

// NewConfig creates a Config with default values.
func NewConfig() *Config {
	return &Config{
		Workers:           DefaultWorkers,
		BasePath:          DefaultBasePath,
		Output:            DefaultOutput,
		Timeout:           DefaultTimeout,
		UserAgent:         DefaultUserAgent,
		MaxBodySize:       DefaultMaxBodySize,
		TorStartupTimeout: DefaultTorStartupTimeout,
		DBDir:             XDGDataDir(),
		SummaryFormat:     DefaultSummaryFormat,
	}
}

// XDGDataDir returns the XDG data directory for sitegraph.
// On Linux: ~/.local/share/sitegraph
func XDGDataDir() string {
	return filepath.Join(xdg.DataHome, AppName)
}

// XDGConfigDir returns the XDG config directory for sitegraph.
// On Linux: ~/.config/sitegraph
func XDGConfigDir() string {
	return filepath.Join(xdg.ConfigHome, AppName)
}

// Validate checks the configuration and returns the first problem found.
func (c *Config) Validate() error {
	if c.Seed == "" {
		return ErrNoSeed
	}
	if _, err := parseSeed(c.Seed); err != nil {
		return err
	}
	if c.Workers < 0 {
		return ErrInvalidWorkers
	}
	if c.Timeout < 0 {
		return ErrInvalidTimeout
	}
	if c.MaxBodySize < 0 {
		return ErrInvalidMaxBodySize
	}
	if c.Output == "" {
		return ErrEmptyOutput
	}
	if c.UseTor && c.ProxyAddress != "" {
		return ErrConflictingTransports
	}
	switch c.SummaryFormat {
	case SummaryText, SummaryJSON, SummaryMarkdown, SummaryNone:
	default:
		return ErrInvalidSummaryFormat
	}
	return nil
}

// Origin returns scheme://host of the seed, or "" if the seed is invalid.
func (c *Config) Origin() string {
	u, err := parseSeed(c.Seed)
	if err != nil {
		return ""
	}
	return u.Scheme + "://" + u.Host
}

// Host returns the seed's host, used as the site file key.
func (c *Config) Host() string {
	u, err := parseSeed(c.Seed)
	if err != nil {
		return ""
	}
	return u.Host
}

// ApplySite copies the site settings that are set in sc and not yet
// explicitly chosen. explicit reports whether a setting was chosen on the
// command line; it receives the setting name (basePath, workers, userAgent,
// cookie, headers).
func (c *Config) ApplySite(sc SiteConfig, explicit func(name string) bool) {
	if explicit == nil {
		explicit = func(string) bool { return false }
	}
	if sc.BasePath != "" && !explicit("basePath") {
		c.BasePath = sc.BasePath
	}
	if sc.Workers != nil && !explicit("workers") {
		c.Workers = *sc.Workers
	}
	if sc.UserAgent != "" && !explicit("userAgent") {
		c.UserAgent = sc.UserAgent
	}
	if sc.Cookie != "" && !explicit("cookie") {
		c.Cookie = sc.Cookie
	}
	if len(sc.Headers) > 0 && !explicit("headers") {
		c.Headers = make(map[string]string, len(sc.Headers))
		for k, v := range sc.Headers {
			c.Headers[k] = v
		}
	}
}

func parseSeed(seed string) (*url.URL, error) {
	u, err := url.Parse(seed)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, ErrInvalidSeed
	}
	return u, nil
}
