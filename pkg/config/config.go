package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/cuemby/replicad/pkg/resource"
	"github.com/cuemby/replicad/pkg/types"
)

// Defaults
const (
	DefaultControlSocket = "/var/run/replicad/control.sock"
	DefaultStateDir      = "/var/lib/replicad"
	DefaultExtentSize    = 2 * 1024 * 1024
	DefaultKeepDirty     = 64
)

// Config is the daemon configuration file
type Config struct {
	ControlSocket string        `yaml:"control_socket"`
	MetricsAddr   string        `yaml:"metrics_addr"`
	StateDir      string        `yaml:"state_dir"`
	RestoreRoles  bool          `yaml:"restore_roles"`
	WorkerTimeout time.Duration `yaml:"worker_timeout"`
	StopTimeout   time.Duration `yaml:"stop_timeout"`
	RestartDelay  time.Duration `yaml:"restart_delay"`
	HookTimeout   time.Duration `yaml:"hook_timeout"`
	LogLevel      string        `yaml:"log_level"`
	LogJSON       bool          `yaml:"log_json"`

	Resources []Resource `yaml:"resources"`
}

// Resource is the configuration of one replicated resource
type Resource struct {
	Name          string `yaml:"name"`
	Provider      string `yaml:"provider,omitempty"`
	LocalPath     string `yaml:"local_path"`
	RemoteAddress string `yaml:"remote_address"`
	SourceAddress string `yaml:"source_address,omitempty"`
	Replication   string `yaml:"replication"`
	ExtentSize    uint32 `yaml:"extent_size,omitempty"`
	KeepDirty     uint32 `yaml:"keep_dirty,omitempty"`
	Exec          string `yaml:"exec,omitempty"`
}

// Default returns a configuration without resources
func Default() *Config {
	return &Config{
		ControlSocket: DefaultControlSocket,
		StateDir:      DefaultStateDir,
		WorkerTimeout: 5 * time.Second,
		StopTimeout:   30 * time.Second,
		RestartDelay:  time.Second,
		HookTimeout:   30 * time.Second,
		LogLevel:      "info",
	}
}

// Load reads, completes and validates a configuration file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	return Parse(data)
}

// Parse decodes, completes and validates a configuration document
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyDefaults() {
	for i := range c.Resources {
		res := &c.Resources[i]
		if res.Provider == "" {
			res.Provider = res.Name
		}
		if res.Replication == "" {
			res.Replication = types.ReplicationFullSync.String()
		}
		if res.ExtentSize == 0 {
			res.ExtentSize = DefaultExtentSize
		}
		if res.KeepDirty == 0 {
			res.KeepDirty = DefaultKeepDirty
		}
	}
}

// Validate checks the configuration for errors
func (c *Config) Validate() error {
	if c.ControlSocket == "" {
		return fmt.Errorf("control_socket is required")
	}
	if c.StateDir == "" {
		return fmt.Errorf("state_dir is required")
	}

	durations := map[string]time.Duration{
		"worker_timeout": c.WorkerTimeout,
		"stop_timeout":   c.StopTimeout,
		"restart_delay":  c.RestartDelay,
		"hook_timeout":   c.HookTimeout,
	}
	for name, d := range durations {
		if d <= 0 {
			return fmt.Errorf("%s must be positive", name)
		}
	}

	seen := make(map[string]bool)
	for i, res := range c.Resources {
		if res.Name == "" {
			return fmt.Errorf("resource %d: name is required", i)
		}
		if res.Name == "all" {
			return fmt.Errorf("resource %d: name %q is reserved", i, res.Name)
		}
		if seen[res.Name] {
			return fmt.Errorf("resource %s: duplicate name", res.Name)
		}
		seen[res.Name] = true

		if res.LocalPath == "" {
			return fmt.Errorf("resource %s: local_path is required", res.Name)
		}
		if _, err := types.ParseReplicationMode(res.Replication); err != nil {
			return fmt.Errorf("resource %s: %w", res.Name, err)
		}
	}
	return nil
}

// Find returns the configuration of the named resource
func (c *Config) Find(name string) (types.ResourceConfig, bool) {
	for _, res := range c.Resources {
		if res.Name == name {
			return res.ResourceConfig(), true
		}
	}
	return types.ResourceConfig{}, false
}

// ResourceConfig converts the file representation of a resource
func (r Resource) ResourceConfig() types.ResourceConfig {
	mode, _ := types.ParseReplicationMode(r.Replication)
	return types.ResourceConfig{
		Name:          r.Name,
		Provider:      r.Provider,
		LocalPath:     r.LocalPath,
		RemoteAddress: r.RemoteAddress,
		SourceAddress: r.SourceAddress,
		Replication:   mode,
		ExtentSize:    r.ExtentSize,
		KeepDirty:     r.KeepDirty,
		HookPath:      r.Exec,
	}
}

// Table builds the daemon's resource table
func (c *Config) Table() (*resource.Table, error) {
	configs := make([]types.ResourceConfig, 0, len(c.Resources))
	for _, res := range c.Resources {
		configs = append(configs, res.ResourceConfig())
	}
	return resource.NewTable(configs)
}
