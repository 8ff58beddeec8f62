package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	defaultIntervalMinutes = 5
	defaultJournalPath     = "dyndnssync.db"
	defaultMetricsAddr     = ":9090"
	defaultLogLevel        = "info"
	defaultLogEnv          = "prod"
)

// UpdateMode governs whether a record's value is static or tracks
// the host's public IP.
type UpdateMode string

const (
	ModeEnsureExists UpdateMode = "EnsureExists"
	ModePublicIP     UpdateMode = "PublicIp"
)

type Config struct {
	UpdateIntervalMinutes int      `yaml:"updateIntervalMinutes"`
	APIKey                string   `yaml:"apiKey"`
	APIURL                string   `yaml:"apiUrl"`
	JournalPath           string   `yaml:"journalPath"`
	MetricsAddr           string   `yaml:"metricsAddr"`
	Log                   Log      `yaml:"log"`
	PublicIP              PublicIP `yaml:"publicIp"`
	Zones                 []Zone   `yaml:"zones"`
}

type Log struct {
	Level string `yaml:"level"`
	Env   string `yaml:"env"`
}

type PublicIP struct {
	Endpoints []string `yaml:"endpoints"`
}

type Zone struct {
	Name       string   `yaml:"name"`
	DNSRecords []Record `yaml:"dnsRecords"`
}

// Record is a desired-state record as declared in configuration.
// Name is relative to the zone; "@" or empty means the zone apex.
// Value is only meaningful for EnsureExists records.
type Record struct {
	UpdateMode UpdateMode `yaml:"updateMode"`
	Type       string     `yaml:"type"`
	Name       string     `yaml:"name"`
	Value      string     `yaml:"value"`
}

func Load(path string) (*Config, error) {
	configFile := true
	_, err := os.Stat(path)
	if errors.Is(err, fs.ErrNotExist) {
		slog.Default().Warn("fail find config file, proceeding", "path", path)
		configFile = false
	}

	var cfg Config
	if configFile {
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}

		decoder := yaml.NewDecoder(f)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, err
		}
		if err := f.Close(); err != nil {
			slog.Default().Warn("fail close config file", "path", path, "error", err)
		}
	}

	if cfg.UpdateIntervalMinutes == 0 {
		cfg.UpdateIntervalMinutes = defaultIntervalMinutes
	}
	if cfg.JournalPath == "" {
		cfg.JournalPath = defaultJournalPath
	}
	if cfg.MetricsAddr == "" {
		cfg.MetricsAddr = defaultMetricsAddr
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = defaultLogLevel
	}
	if cfg.Log.Env == "" {
		cfg.Log.Env = defaultLogEnv
	}

	// Override from environment if set
	if apiKey := os.Getenv("DYNDNS_SYNC_API_KEY"); apiKey != "" {
		cfg.APIKey = apiKey
	}
	if apiURL := os.Getenv("DYNDNS_SYNC_API_URL"); apiURL != "" {
		cfg.APIURL = apiURL
	}
	if interval := os.Getenv("DYNDNS_SYNC_INTERVAL_MINUTES"); interval != "" {
		if minutes, err := strconv.Atoi(interval); err == nil {
			cfg.UpdateIntervalMinutes = minutes
		} else {
			slog.Default().Warn("fail parse interval minutes from string", "interval", interval, "error", err)
		}
	}
	if journalPath := os.Getenv("DYNDNS_SYNC_JOURNAL_PATH"); journalPath != "" {
		cfg.JournalPath = journalPath
	}
	if metricsAddr := os.Getenv("DYNDNS_SYNC_METRICS_ADDR"); metricsAddr != "" {
		cfg.MetricsAddr = metricsAddr
	}
	if endpoints := os.Getenv("DYNDNS_SYNC_IP_ENDPOINTS"); endpoints != "" {
		cfg.PublicIP.Endpoints = strings.Split(endpoints, ",")
	}
	if loglevel := os.Getenv("DYNDNS_SYNC_LOG_LEVEL"); loglevel != "" {
		cfg.Log.Level = loglevel
	}
	if logenv := os.Getenv("DYNDNS_SYNC_LOG_ENV"); logenv != "" {
		cfg.Log.Env = logenv
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	if c.UpdateIntervalMinutes <= 0 {
		return fmt.Errorf("updateIntervalMinutes must be positive, got %d", c.UpdateIntervalMinutes)
	}
	if c.APIKey == "" {
		return errors.New("apiKey must not be empty")
	}
	for _, zone := range c.Zones {
		if zone.Name == "" {
			return errors.New("zone name must not be empty")
		}
		for _, rec := range zone.DNSRecords {
			switch rec.UpdateMode {
			case ModeEnsureExists:
				if rec.Value == "" {
					return fmt.Errorf("record %q in zone %q: EnsureExists requires a value", rec.Name, zone.Name)
				}
			case ModePublicIP:
			default:
				return fmt.Errorf("record %q in zone %q: unknown update mode %q", rec.Name, zone.Name, rec.UpdateMode)
			}
			if rec.Type == "" {
				return fmt.Errorf("record %q in zone %q: type must not be empty", rec.Name, zone.Name)
			}
		}
	}
	return nil
}
