package config

import (
	"encoding/json"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/yllibed/httpserver/internal/errors"
	"github.com/yllibed/httpserver/pkg/handlers"
	"github.com/yllibed/httpserver/pkg/server"
)

const (
	// ConfigFileName is the name of the configuration file.
	ConfigFileName = "yhttpd.json"

	// DefaultPort is the default listening port.
	DefaultPort = 8080

	// DefaultAdminPrefix is the default mount point of the admin router.
	DefaultAdminPrefix = "/admin"

	// DefaultHeartbeat is the default SSE heartbeat interval.
	DefaultHeartbeat = "45s"
)

// Config represents the complete yhttpd.json configuration.
type Config struct {
	// Server contains listener and connection settings.
	Server ServerConfig `json:"server"`

	// Guard contains request limits.
	Guard GuardConfig `json:"guard"`

	// Static lists fixed in-memory resources.
	Static []StaticConfig `json:"static,omitempty"`

	// Folders lists directories served from disk.
	Folders []FolderConfig `json:"folders,omitempty"`

	// SSE configures the server-sent events clock endpoint.
	SSE SSEConfig `json:"sse"`

	// Notify configures the POST notification endpoint.
	Notify NotifyConfig `json:"notify"`

	// Bucket configures serving from an S3 bucket.
	Bucket BucketConfig `json:"bucket"`

	// Admin configures the metrics and health endpoints.
	Admin AdminConfig `json:"admin"`

	// configPath stores the path where the config was loaded from.
	configPath string
}

// ServerConfig contains listener and connection settings.
type ServerConfig struct {
	// Port is the listening port. 0 picks a free port.
	Port int `json:"port"`

	// BindAddress4 is the IPv4 address to bind to (default: all interfaces).
	BindAddress4 string `json:"bindAddress4,omitempty"`

	// BindAddress6 is the IPv6 address to bind to (default: all interfaces).
	BindAddress6 string `json:"bindAddress6,omitempty"`

	// Hostname4 is the host name advertised for IPv4 (default: "127.0.0.1").
	Hostname4 string `json:"hostname4,omitempty"`

	// Hostname6 is the host name advertised for IPv6 (default: "::1").
	Hostname6 string `json:"hostname6,omitempty"`

	// RequireIPv6 makes an IPv6 bind failure fatal.
	RequireIPv6 bool `json:"requireIPv6,omitempty"`

	// ReadTimeout bounds reading one request (e.g., "30s").
	ReadTimeout string `json:"readTimeout,omitempty"`

	// LogRequests logs every request at Info level.
	LogRequests bool `json:"logRequests,omitempty"`

	// TrustedProxies lists proxy IPs or CIDRs whose forwarding headers are
	// honoured when resolving the client address.
	TrustedProxies []string `json:"trustedProxies,omitempty"`
}

// GuardConfig contains request limits. Unset limits keep the engine
// defaults; -1 disables a limit and 0 enforces it.
type GuardConfig struct {
	// Enabled registers the guard first in the pipeline.
	Enabled bool `json:"enabled"`

	MaxURLLength   *int     `json:"maxUrlLength,omitempty"`
	MaxHeaderCount *int     `json:"maxHeaderCount,omitempty"`
	MaxHeaderBytes *int     `json:"maxHeaderBytes,omitempty"`
	MaxBodyBytes   *int64   `json:"maxBodyBytes,omitempty"`
	AllowedMethods []string `json:"allowedMethods,omitempty"`
	AllowedHosts   []string `json:"allowedHosts,omitempty"`

	// AllowMissingHost accepts requests without a Host header.
	AllowMissingHost bool `json:"allowMissingHost,omitempty"`
}

// StaticConfig is a fixed resource. Exactly one of Body and File is set.
type StaticConfig struct {
	Path        string `json:"path"`
	ContentType string `json:"contentType,omitempty"`
	Body        string `json:"body,omitempty"`
	File        string `json:"file,omitempty"`
}

// FolderConfig is a directory served under a URL prefix.
type FolderConfig struct {
	// Prefix is the URL prefix (default: "/").
	Prefix string `json:"prefix,omitempty"`

	// Dir is the directory, relative to the config file.
	Dir string `json:"dir"`

	// Cache is "", "none" or "production".
	Cache string `json:"cache,omitempty"`

	// FallThrough leaves missing files to later handlers instead of 404.
	FallThrough bool `json:"fallThrough,omitempty"`
}

// SSEConfig configures the clock endpoint, which sends the time every
// Interval.
type SSEConfig struct {
	// Path of the endpoint. Empty disables it.
	Path string `json:"path,omitempty"`

	// Interval between events (default: "1s").
	Interval string `json:"interval,omitempty"`

	// Heartbeat interval (default: "45s").
	Heartbeat string `json:"heartbeat,omitempty"`
}

// NotifyConfig configures the notification endpoint.
type NotifyConfig struct {
	// Path of the endpoint. Empty disables it.
	Path string `json:"path,omitempty"`

	// EventsPath relays notifications to SSE clients. Empty disables it.
	EventsPath string `json:"eventsPath,omitempty"`

	// Log logs every notification body at Info level.
	Log bool `json:"log,omitempty"`
}

// BucketConfig configures the S3 handler.
type BucketConfig struct {
	// Name of the bucket. Empty disables the handler.
	Name string `json:"name,omitempty"`

	// Prefix is the URL prefix (default: "/").
	Prefix string `json:"prefix,omitempty"`

	// KeyPrefix is prepended to object keys.
	KeyPrefix string `json:"keyPrefix,omitempty"`

	// Region overrides the region from the environment.
	Region string `json:"region,omitempty"`

	// Endpoint overrides the S3 endpoint, for S3-compatible stores.
	Endpoint string `json:"endpoint,omitempty"`

	// PathStyle forces path-style addressing.
	PathStyle bool `json:"pathStyle,omitempty"`
}

// AdminConfig configures the admin router.
type AdminConfig struct {
	// Disabled turns the admin router off.
	Disabled bool `json:"disabled,omitempty"`

	// Prefix is the mount point (default: "/admin").
	Prefix string `json:"prefix,omitempty"`
}

// New creates a new Config with default values.
func New() *Config {
	cfg := &Config{
		Server: ServerConfig{Port: DefaultPort},
		Guard:  GuardConfig{Enabled: true},
	}
	cfg.applyDefaults()
	return cfg
}

// Load reads configuration from the specified directory.
// It looks for yhttpd.json in the directory.
func Load(dir string) (*Config, error) {
	return LoadFile(filepath.Join(dir, ConfigFileName))
}

// LoadPath reads configuration from a directory or a file path.
func LoadPath(path string) (*Config, error) {
	info, err := os.Stat(path)
	if err == nil && info.IsDir() {
		return Load(path)
	}
	return LoadFile(path)
}

// LoadFile reads configuration from the specified file path.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.New(errors.CodeConfigNotFound).
				WithDetail("No " + filepath.Base(path) + " found in " + filepath.Dir(path))
		}
		return nil, errors.New(errors.CodeConfigParse).Wrap(err)
	}

	cfg := New()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, errors.New(errors.CodeConfigParse).
			WithDetail("Failed to parse " + filepath.Base(path) + ": " + err.Error())
	}

	cfg.configPath = path
	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// SaveTo writes the configuration to the specified path.
func (c *Config) SaveTo(path string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return errors.New(errors.CodeConfigParse).Wrap(err)
	}
	data = append(data, '\n')

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("config: write %s: %w", path, err)
	}
	c.configPath = path
	return nil
}

// Path returns the path where the config was loaded from.
func (c *Config) Path() string {
	return c.configPath
}

// Dir returns the directory containing the config file, or "." for a config
// that was not loaded from disk.
func (c *Config) Dir() string {
	if c.configPath == "" {
		return "."
	}
	return filepath.Dir(c.configPath)
}

// applyDefaults fills in default values for empty fields.
func (c *Config) applyDefaults() {
	for i := range c.Folders {
		if c.Folders[i].Prefix == "" {
			c.Folders[i].Prefix = "/"
		}
	}
	for i := range c.Static {
		if c.Static[i].ContentType == "" {
			c.Static[i].ContentType = "text/plain"
		}
	}
	if c.SSE.Path != "" && c.SSE.Interval == "" {
		c.SSE.Interval = "1s"
	}
	if c.SSE.Heartbeat == "" {
		c.SSE.Heartbeat = DefaultHeartbeat
	}
	if c.Bucket.Prefix == "" {
		c.Bucket.Prefix = "/"
	}
	if c.Admin.Prefix == "" {
		c.Admin.Prefix = DefaultAdminPrefix
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	invalid := func(field, format string, args ...any) error {
		return errors.New(errors.CodeConfigInvalid).WithField(field).WithDetailf(format, args...)
	}

	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return invalid("server.port", "port must be between 0 and 65535, got %d", c.Server.Port)
	}
	if ip := c.Server.BindAddress4; ip != "" {
		if parsed := net.ParseIP(ip); parsed == nil || parsed.To4() == nil {
			return invalid("server.bindAddress4", "%q is not an IPv4 address", ip)
		}
	}
	if ip := c.Server.BindAddress6; ip != "" {
		if parsed := net.ParseIP(ip); parsed == nil || parsed.To4() != nil {
			return invalid("server.bindAddress6", "%q is not an IPv6 address", ip)
		}
	}
	if _, err := parseDuration(c.Server.ReadTimeout); err != nil {
		return invalid("server.readTimeout", "%v", err)
	}

	limits := []struct {
		field string
		value *int64
	}{
		{"guard.maxUrlLength", intLimit(c.Guard.MaxURLLength)},
		{"guard.maxHeaderCount", intLimit(c.Guard.MaxHeaderCount)},
		{"guard.maxHeaderBytes", intLimit(c.Guard.MaxHeaderBytes)},
		{"guard.maxBodyBytes", c.Guard.MaxBodyBytes},
	}
	for _, l := range limits {
		if l.value != nil && *l.value < -1 {
			return invalid(l.field, "limit must be -1 (no limit) or >= 0, got %d", *l.value)
		}
	}

	for i, s := range c.Static {
		field := fmt.Sprintf("static[%d]", i)
		if !strings.HasPrefix(s.Path, "/") {
			return invalid(field+".path", "path must start with /, got %q", s.Path)
		}
		if s.Body != "" && s.File != "" {
			return invalid(field, "set either body or file, not both")
		}
	}

	for i, f := range c.Folders {
		field := fmt.Sprintf("folders[%d]", i)
		if f.Dir == "" {
			return invalid(field+".dir", "directory is required")
		}
		switch f.Cache {
		case "", "none", "production":
		default:
			return invalid(field+".cache", "cache must be \"\", \"none\" or \"production\", got %q", f.Cache)
		}
	}

	if c.Notify.EventsPath != "" && c.Notify.Path == "" {
		return invalid("notify.eventsPath", "events need notify.path to be set")
	}

	if c.SSE.Path != "" {
		if d, err := parseDuration(c.SSE.Interval); err != nil || d <= 0 {
			return invalid("sse.interval", "interval must be a positive duration, got %q", c.SSE.Interval)
		}
	}
	if d, err := parseDuration(c.SSE.Heartbeat); err != nil || d < 0 {
		return invalid("sse.heartbeat", "heartbeat must be a duration, got %q", c.SSE.Heartbeat)
	}
	return nil
}

// parseDuration parses d, treating "" as zero.
func parseDuration(d string) (time.Duration, error) {
	if d == "" {
		return 0, nil
	}
	return time.ParseDuration(d)
}

// EngineConfig converts the server section to an engine config. The logger is
// left unset.
func (c *Config) EngineConfig() *server.Config {
	cfg := server.DefaultConfig().WithPort(c.Server.Port).WithLogRequests(c.Server.LogRequests)
	if ip := net.ParseIP(c.Server.BindAddress4); ip != nil {
		cfg.BindAddress4 = ip
	}
	if ip := net.ParseIP(c.Server.BindAddress6); ip != nil {
		cfg.BindAddress6 = ip
	}
	if c.Server.Hostname4 != "" {
		cfg.Hostname4 = c.Server.Hostname4
	}
	if c.Server.Hostname6 != "" {
		cfg.Hostname6 = c.Server.Hostname6
	}
	cfg.RequireIPv6 = c.Server.RequireIPv6
	cfg.TrustedProxies = append([]string(nil), c.Server.TrustedProxies...)
	if d, _ := parseDuration(c.Server.ReadTimeout); d > 0 {
		cfg.ReadTimeout = d
	}
	return cfg
}

// GuardLimits converts the guard section, keeping the defaults for unset
// limits.
func (c *Config) GuardLimits() *handlers.GuardConfig {
	g := handlers.DefaultGuardConfig()
	if v := c.Guard.MaxURLLength; v != nil {
		g.MaxURLLength = *v
	}
	if v := c.Guard.MaxHeaderCount; v != nil {
		g.MaxHeaderCount = *v
	}
	if v := c.Guard.MaxHeaderBytes; v != nil {
		g.MaxHeaderBytes = *v
	}
	if v := c.Guard.MaxBodyBytes; v != nil {
		g.MaxBodyBytes = *v
	}
	if len(c.Guard.AllowedMethods) > 0 {
		g.AllowedMethods = c.Guard.AllowedMethods
	}
	g.AllowedHosts = c.Guard.AllowedHosts
	g.RequireHost = !c.Guard.AllowMissingHost
	return g
}

func intLimit(v *int) *int64 {
	if v == nil {
		return nil
	}
	n := int64(*v)
	return &n
}

// CacheControl returns the folder cache mode.
func (f FolderConfig) CacheControl() handlers.CacheControl {
	switch f.Cache {
	case "none":
		return handlers.CacheNone
	case "production":
		return handlers.CacheProduction
	default:
		return handlers.CacheDefault
	}
}

// IntervalDuration returns the clock interval.
func (s SSEConfig) IntervalDuration() time.Duration {
	d, _ := parseDuration(s.Interval)
	return d
}

// HeartbeatDuration returns the heartbeat interval.
func (s SSEConfig) HeartbeatDuration() time.Duration {
	d, _ := parseDuration(s.Heartbeat)
	return d
}

// ResolvePath returns p relative to the config directory unless absolute.
func (c *Config) ResolvePath(p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(c.Dir(), p)
}

// Exists checks if a config file exists in the given directory.
func Exists(dir string) bool {
	_, err := os.Stat(filepath.Join(dir, ConfigFileName))
	return err == nil
}
