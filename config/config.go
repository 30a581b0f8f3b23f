package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"

	"github.com/AlephTX/aleph-tx/threecol/shm"
)

// Environment variables read by FromEnv.
const (
	EnvConfig     = "THREECOL_CONFIG"
	EnvNamespace  = "THREECOL_NAMESPACE"
	EnvReportAddr = "THREECOL_REPORT_ADDR"
)

type Config struct {
	// Namespace names the shared region and prefixes the semaphores.
	Namespace    string   `toml:"namespace"`
	PollInterval Duration `toml:"poll_interval"`

	Supervisor SupervisorConfig `toml:"supervisor"`
	Generator  GeneratorConfig  `toml:"generator"`
}

type SupervisorConfig struct {
	// Limit stops the supervisor after that many records; 0 means never.
	Limit uint64   `toml:"limit"`
	Delay Duration `toml:"delay"`
	// ReportAddr enables the websocket report endpoint, e.g. ":8090".
	ReportAddr string `toml:"report_addr"`
}

type GeneratorConfig struct {
	Verbose bool  `toml:"verbose"`
	Seed    int64 `toml:"seed"`
}

// Duration decodes TOML strings such as "50ms".
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(b []byte) error {
	v, err := time.ParseDuration(string(b))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// Default returns the configuration used when nothing is set.
func Default() *Config {
	return &Config{
		Namespace:    shm.DefaultNamespace,
		PollInterval: Duration{shm.DefaultPollInterval},
	}
}

// Load reads a TOML file on top of the defaults.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	c := Default()
	if err := toml.Unmarshal(b, c); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return c, nil
}

// FromEnv loads an optional .env file, then the TOML file named by
// THREECOL_CONFIG if set, then applies the remaining THREECOL_*
// overrides.
func FromEnv() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	c := Default()
	if path := os.Getenv(EnvConfig); path != "" {
		var err error
		if c, err = Load(path); err != nil {
			return nil, err
		}
	}
	if ns := os.Getenv(EnvNamespace); ns != "" {
		c.Namespace = ns
	}
	if addr := os.Getenv(EnvReportAddr); addr != "" {
		c.Supervisor.ReportAddr = addr
	}
	return c, c.Validate()
}

// Validate checks values that would break the shared naming scheme.
func (c *Config) Validate() error {
	if c.Namespace == "" {
		return errors.New("namespace must not be empty")
	}
	for _, r := range c.Namespace {
		if r == '/' || r == 0 {
			return fmt.Errorf("namespace %q contains %q", c.Namespace, r)
		}
	}
	if c.PollInterval.Duration <= 0 {
		return fmt.Errorf("poll_interval must be positive, got %s", c.PollInterval)
	}
	if c.Supervisor.Delay.Duration < 0 {
		return fmt.Errorf("supervisor.delay must not be negative, got %s", c.Supervisor.Delay)
	}
	return nil
}
