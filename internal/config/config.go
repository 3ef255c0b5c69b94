package config

import (
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/goccy/go-yaml"
)

// Duration is a time.Duration that unmarshals from YAML strings like "15s".
type Duration time.Duration

func (d *Duration) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

// Std returns the value as a time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

type APIConfig struct {
	BaseURL   string   `yaml:"baseUrl"`
	Username  string   `yaml:"username"`
	Password  string   `yaml:"password"`
	Timeout   Duration `yaml:"timeout"`
	UserAgent string   `yaml:"userAgent"`
}

type BreakerConfig struct {
	MaxRequests  uint32   `yaml:"maxRequests"`  // probes allowed while half-open
	Interval     Duration `yaml:"interval"`     // closed-state count reset
	Timeout      Duration `yaml:"timeout"`      // open -> half-open
	FailureRatio float64  `yaml:"failureRatio"` // trip when failures/requests reaches this
	MinRequests  uint32   `yaml:"minRequests"`
}

type DevicesConfig struct {
	NamePolicy    string            `yaml:"namePolicy"` // first | latest
	FriendlyNames map[string]string `yaml:"friendlyNames"`
}

type FetchConfig struct {
	ProtocolWorkers int `yaml:"protocolWorkers"`
	DefaultDays     int `yaml:"defaultDays"`
}

type ServerConfig struct {
	ListenAddr string `yaml:"listenAddr"`
}

type NATSConfig struct {
	URL     string `yaml:"url"`
	Subject string `yaml:"subject"`
}

type ExportConfig struct {
	Dir    string     `yaml:"dir"`
	Format string     `yaml:"format"` // json | yaml
	NATS   NATSConfig `yaml:"nats"`
}

type LoggingConfig struct {
	Level       string `yaml:"level"`
	Development bool   `yaml:"development"`
}

type Config struct {
	API     APIConfig     `yaml:"api"`
	Breaker BreakerConfig `yaml:"breaker"`
	Devices DevicesConfig `yaml:"devices"`
	Fetch   FetchConfig   `yaml:"fetch"`
	Server  ServerConfig  `yaml:"server"`
	Export  ExportConfig  `yaml:"export"`
	Logging LoggingConfig `yaml:"logging"`
	Debug   bool          `yaml:"-"`
}

const (
	NamePolicyFirst  = "first"
	NamePolicyLatest = "latest"
)

func Load(filename string) (*Config, error) {
	buf, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	return Parse(buf)
}

// Parse decodes a YAML document, applies defaults and validates the result.
func Parse(buf []byte) (*Config, error) {
	c := &Config{}
	if err := yaml.Unmarshal(buf, c); err != nil {
		return nil, fmt.Errorf("parsing yaml: %w", err)
	}

	c.applyDefaults()
	if err := c.validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	c.normalizeMACAddresses()

	return c, nil
}

func (c *Config) applyDefaults() {
	c.API.BaseURL = strings.TrimRight(c.API.BaseURL, "/")
	if c.API.Timeout == 0 {
		c.API.Timeout = Duration(15 * time.Second)
	}
	if c.API.UserAgent == "" {
		c.API.UserAgent = "nlbwdash/1.0"
	}

	if c.Breaker.MaxRequests == 0 {
		c.Breaker.MaxRequests = 3
	}
	if c.Breaker.Interval == 0 {
		c.Breaker.Interval = Duration(time.Minute)
	}
	if c.Breaker.Timeout == 0 {
		c.Breaker.Timeout = Duration(30 * time.Second)
	}
	if c.Breaker.FailureRatio == 0 {
		c.Breaker.FailureRatio = 0.6
	}
	if c.Breaker.MinRequests == 0 {
		c.Breaker.MinRequests = 3
	}

	if c.Devices.NamePolicy == "" {
		c.Devices.NamePolicy = NamePolicyFirst
	}

	if c.Fetch.ProtocolWorkers == 0 {
		c.Fetch.ProtocolWorkers = 4
	}
	if c.Fetch.DefaultDays == 0 {
		c.Fetch.DefaultDays = 30
	}

	if c.Server.ListenAddr == "" {
		c.Server.ListenAddr = "127.0.0.1:8090"
	}

	if c.Export.Dir == "" {
		c.Export.Dir = "./digests"
	}
	if c.Export.Format == "" {
		c.Export.Format = "json"
	}
	if c.Export.NATS.Subject == "" {
		c.Export.NATS.Subject = "nlbwdash.digest"
	}

	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
}

func (c *Config) validate() error {
	if c.API.BaseURL == "" {
		return fmt.Errorf("api.baseUrl cannot be empty")
	}
	u, err := url.Parse(c.API.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("api.baseUrl %q is not an absolute URL", c.API.BaseURL)
	}

	switch c.Devices.NamePolicy {
	case NamePolicyFirst, NamePolicyLatest:
	default:
		return fmt.Errorf("devices.namePolicy must be %q or %q, got %q",
			NamePolicyFirst, NamePolicyLatest, c.Devices.NamePolicy)
	}

	if c.Fetch.ProtocolWorkers < 1 {
		return fmt.Errorf("fetch.protocolWorkers must be at least 1")
	}
	if c.Fetch.DefaultDays < 1 {
		return fmt.Errorf("fetch.defaultDays must be at least 1")
	}

	if c.Breaker.FailureRatio <= 0 || c.Breaker.FailureRatio > 1 {
		return fmt.Errorf("breaker.failureRatio must be in (0, 1]")
	}

	switch c.Export.Format {
	case "json", "yaml":
	default:
		return fmt.Errorf("export.format must be json or yaml, got %q", c.Export.Format)
	}

	return nil
}

// normalizeMACAddresses lower-cases the keys of Devices.FriendlyNames
func (c *Config) normalizeMACAddresses() {
	if c.Devices.FriendlyNames == nil {
		return
	}

	normalized := make(map[string]string, len(c.Devices.FriendlyNames))
	for mac, name := range c.Devices.FriendlyNames {
		normalized[strings.ToLower(mac)] = name
	}
	c.Devices.FriendlyNames = normalized
}
