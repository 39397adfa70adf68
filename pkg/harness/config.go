package harness

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"digital.vasic.cctests/pkg/env"
)

// Config is the on-disk harness configuration.
//
//	timeout: 30s
//	parallel: 4
//	report_dir: reports
//	selection:
//	  group: "^parser"
//	env:
//	  LANG: C
//	programs:
//	  - path: ./bin/test-parser
//	  - name: io
//	    path: ./bin/test-io
//	    args: ["--fast"]
//	    timeout: 2m
type Config struct {
	Timeout   time.Duration     `yaml:"timeout"`
	Parallel  int               `yaml:"parallel"`
	ReportDir string            `yaml:"report_dir"`
	Selection env.Selection     `yaml:"selection"`
	Env       map[string]string `yaml:"env"`
	Programs  []Program         `yaml:"programs"`
}

// Program is one test program to run.
type Program struct {
	// Name identifies the program in results. Defaults to the
	// base name of Path.
	Name string `yaml:"name"`

	// Path is the executable to run.
	Path string `yaml:"path"`

	Args []string `yaml:"args"`

	// Timeout overrides the harness timeout for this program.
	Timeout time.Duration `yaml:"timeout"`

	// Env adds variables on top of the harness environment.
	Env map[string]string `yaml:"env"`
}

// DisplayName returns Name or the base name of Path.
func (p Program) DisplayName() string {
	if p.Name != "" {
		return p.Name
	}
	return filepath.Base(p.Path)
}

// ErrNoPrograms is returned for a configuration without
// programs.
var ErrNoPrograms = errors.New("no test programs configured")

// LoadConfig reads and validates a YAML configuration file.
// Relative program paths are resolved against the directory of
// the file.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf(
			"failed to read config %s: %w", path, err,
		)
	}
	cfg, err := ParseConfig(data)
	if err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}

	base := filepath.Dir(path)
	for i := range cfg.Programs {
		p := &cfg.Programs[i]
		if !filepath.IsAbs(p.Path) {
			p.Path = filepath.Join(base, p.Path)
		}
	}
	if cfg.ReportDir != "" && !filepath.IsAbs(cfg.ReportDir) {
		cfg.ReportDir = filepath.Join(base, cfg.ReportDir)
	}
	return cfg, nil
}

// ParseConfig decodes and validates a YAML configuration.
func ParseConfig(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the configuration for missing or invalid
// values.
func (c *Config) Validate() error {
	if len(c.Programs) == 0 {
		return ErrNoPrograms
	}
	if c.Timeout < 0 {
		return fmt.Errorf("negative timeout %s", c.Timeout)
	}
	if c.Parallel < 0 {
		return fmt.Errorf("negative parallelism %d", c.Parallel)
	}
	for i, p := range c.Programs {
		if p.Path == "" {
			return fmt.Errorf("program %d: path is required", i)
		}
		if p.Timeout < 0 {
			return fmt.Errorf(
				"program %s: negative timeout %s",
				p.DisplayName(), p.Timeout,
			)
		}
	}
	return nil
}

// Options returns the harness options the configuration
// describes.
func (c *Config) Options() []Option {
	opts := []Option{
		WithSelection(c.Selection),
		WithEnv(c.Env),
	}
	if c.Timeout > 0 {
		opts = append(opts, WithTimeout(c.Timeout))
	}
	if c.Parallel > 0 {
		opts = append(opts, WithParallel(c.Parallel))
	}
	if c.ReportDir != "" {
		opts = append(opts, WithReportDir(c.ReportDir))
	}
	return opts
}
