// Package config loads and persists the campaign configuration file.
package config

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/LukeyBoyy/MedusaGuard/internal/guarderr"
)

// Config represents the complete campaign configuration.
type Config struct {
	Connection ConnectionConfig `yaml:"connection"`
	Target     TargetConfig     `yaml:"target"`
	Task       TaskConfig       `yaml:"task"`
	Report     ReportConfig     `yaml:"report"`
	Runner     RunnerConfig     `yaml:"runner"`
}

// ConnectionConfig identifies the GVM endpoint and credentials. Exactly one
// of SocketPath or Addr is used; SocketPath wins when both are set.
type ConnectionConfig struct {
	SocketPath string `yaml:"socket_path,omitempty"`
	Addr       string `yaml:"addr,omitempty"`
	Username   string `yaml:"username"`
	Password   string `yaml:"password"`
}

type TargetConfig struct {
	Name       string `yaml:"name"`
	HostsFile  string `yaml:"hosts_file"`
	PortListID string `yaml:"port_list_id"`
}

type TaskConfig struct {
	Name         string `yaml:"name"`
	ScanConfigID string `yaml:"scan_config_id"`
	ScannerID    string `yaml:"scanner_id"`
}

type ReportConfig struct {
	ReportsDir          string `yaml:"reports_dir"`
	CountsFile          string `yaml:"counts_file"`
	HistoryFile         string `yaml:"history_file"`
	VulnMappingFile     string `yaml:"vuln_mapping_file"`
	FindingMappingFile  string `yaml:"finding_mapping_file"`
	PollIntervalSeconds int    `yaml:"poll_interval_seconds"`
}

// RunnerConfig enables the auxiliary scanner stages.
type RunnerConfig struct {
	NiktoEnabled  bool   `yaml:"nikto_enabled"`
	NiktoDir      string `yaml:"nikto_dir"`
	NucleiEnabled bool   `yaml:"nuclei_enabled"`
	NucleiDir     string `yaml:"nuclei_dir"`
}

// Overrides carries optional command-line values. Non-empty fields replace
// the corresponding config values and are written back to the file, so the
// next run picks them up without repeating the flags.
type Overrides struct {
	Username     string
	Password     string
	SocketPath   string
	PortListID   string
	ScanConfigID string
	ScannerID    string
	TargetName   string
	HostsFile    string
	TaskName     string
}

// Load reads a YAML config file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, guarderr.E("config.Load", guarderr.KindConfig, "read config file "+path, err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, guarderr.E("config.Load", guarderr.KindConfig, "parse config file "+path, err)
	}
	return cfg, nil
}

// Save writes the config back to disk.
func Save(cfg *Config, path string) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return guarderr.E("config.Save", guarderr.KindConfig, "marshal config", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return guarderr.E("config.Save", guarderr.KindConfig, "write config file "+path, err)
	}
	return nil
}

// Default returns a config with the usual file layout filled in.
func Default() *Config {
	return &Config{
		Report: ReportConfig{
			ReportsDir:          "openvas_reports",
			CountsFile:          "counts.json",
			HistoryFile:         "historical_results.json",
			VulnMappingFile:     "vuln_mapping.json",
			FindingMappingFile:  "finding_mapping.json",
			PollIntervalSeconds: 30,
		},
		Runner: RunnerConfig{
			NiktoDir:  "nikto_results",
			NucleiDir: "nuclei_results",
		},
	}
}

// Apply merges non-empty override values into the config.
func (c *Config) Apply(o Overrides) {
	if o.Username != "" {
		c.Connection.Username = o.Username
	}
	if o.Password != "" {
		c.Connection.Password = o.Password
	}
	if o.SocketPath != "" {
		c.Connection.SocketPath = o.SocketPath
	}
	if o.PortListID != "" {
		c.Target.PortListID = o.PortListID
	}
	if o.ScanConfigID != "" {
		c.Task.ScanConfigID = o.ScanConfigID
	}
	if o.ScannerID != "" {
		c.Task.ScannerID = o.ScannerID
	}
	if o.TargetName != "" {
		c.Target.Name = o.TargetName
	}
	if o.HostsFile != "" {
		c.Target.HostsFile = o.HostsFile
	}
	if o.TaskName != "" {
		c.Task.Name = o.TaskName
	}
}

// Validate checks the values a campaign cannot start without.
func (c *Config) Validate() error {
	if c.Connection.SocketPath == "" && c.Connection.Addr == "" {
		return guarderr.E("config.Validate", guarderr.KindConfig, "connection: socket_path or addr is required", nil)
	}
	if c.Connection.Username == "" {
		return guarderr.E("config.Validate", guarderr.KindConfig, "connection: username is required", nil)
	}
	if c.Target.Name == "" {
		return guarderr.E("config.Validate", guarderr.KindConfig, "target: name is required", nil)
	}
	if c.Target.HostsFile == "" {
		return guarderr.E("config.Validate", guarderr.KindConfig, "target: hosts_file is required", nil)
	}
	if c.Task.Name == "" {
		return guarderr.E("config.Validate", guarderr.KindConfig, "task: name is required", nil)
	}
	if c.Report.PollIntervalSeconds <= 0 {
		c.Report.PollIntervalSeconds = 30
	}
	return nil
}

// PollInterval returns the task status poll interval.
func (c *Config) PollInterval() time.Duration {
	if c.Report.PollIntervalSeconds <= 0 {
		return 30 * time.Second
	}
	return time.Duration(c.Report.PollIntervalSeconds) * time.Second
}
