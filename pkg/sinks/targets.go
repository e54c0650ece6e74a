package sinks

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	// Supported sink types.
	TypeSQL  = "sql"
	TypeHTTP = "http"
	TypeSQS  = "sqs"

	// Supported SQL drivers.
	DriverMySQL    = "mysql"
	DriverPostgres = "postgres"

	defaultTable              = "news_articles"
	httpDefaultMethod         = "POST"
	httpDefaultTimeoutSeconds = 10
)

var identifierRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// configFile represents the structure of the sinks configuration file.
type configFile struct {
	Sinks []TargetConfig `json:"sinks" yaml:"sinks"`
}

// TargetConfig represents a single sink entry.
type TargetConfig struct {
	ID      string            `json:"id" yaml:"id"`
	Type    string            `json:"type" yaml:"type"`
	Enabled *bool             `json:"enabled" yaml:"enabled"`
	SQL     *SQLTargetConfig  `json:"sql" yaml:"sql"`
	HTTP    *HTTPTargetConfig `json:"http" yaml:"http"`
	SQS     *SQSTargetConfig  `json:"sqs" yaml:"sqs"`
}

// SQLTargetConfig holds relational connection settings. Connection fields are
// not validated up front; a missing value fails the save for that target only.
type SQLTargetConfig struct {
	Driver   string            `json:"driver" yaml:"driver"`
	Host     string            `json:"host" yaml:"host"`
	Port     string            `json:"port" yaml:"port"`
	User     string            `json:"user" yaml:"user"`
	Password string            `json:"password" yaml:"password"`
	Database string            `json:"database" yaml:"database"`
	Table    string            `json:"table" yaml:"table"`
	Params   map[string]string `json:"params" yaml:"params"`
}

// HTTPTargetConfig holds webhook sink settings.
type HTTPTargetConfig struct {
	URL            string            `json:"url" yaml:"url"`
	Method         string            `json:"method" yaml:"method"`
	Headers        map[string]string `json:"headers" yaml:"headers"`
	TimeoutSeconds int               `json:"timeout_seconds" yaml:"timeout_seconds"`
}

// SQSTargetConfig holds AWS SQS specific settings.
type SQSTargetConfig struct {
	QueueURL string `json:"uri" yaml:"uri"`
	Region   string `json:"region" yaml:"region"`
}

// ConfigRegistry holds validated sink definitions in declaration order.
type ConfigRegistry struct {
	targets []TargetConfig
	idx     map[string]TargetConfig
}

// LoadRegistry loads sink definitions from a YAML/JSON file.
func LoadRegistry(path string) (*ConfigRegistry, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, errors.New("sinks file path is empty")
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open sinks file: %w", err)
	}
	defer file.Close()

	raw, err := io.ReadAll(file)
	if err != nil {
		return nil, fmt.Errorf("read sinks file: %w", err)
	}

	parsed, err := parseSinksFile(raw, filepath.Ext(path))
	if err != nil {
		return nil, err
	}
	if len(parsed.Sinks) == 0 {
		return nil, errors.New("sinks file contains no sinks entries")
	}
	return NewConfigRegistry(parsed.Sinks)
}

// NewConfigRegistry sanitizes and validates cfgs.
func NewConfigRegistry(cfgs []TargetConfig) (*ConfigRegistry, error) {
	reg := &ConfigRegistry{
		targets: make([]TargetConfig, 0, len(cfgs)),
		idx:     make(map[string]TargetConfig, len(cfgs)),
	}
	for i := range cfgs {
		cfg := sanitizeTargetConfig(cfgs[i])
		if err := validateTargetConfig(cfg); err != nil {
			return nil, fmt.Errorf("sinks[%d]: %w", i, err)
		}
		if _, exists := reg.idx[cfg.ID]; exists {
			return nil, fmt.Errorf("duplicate sink id %q", cfg.ID)
		}
		reg.targets = append(reg.targets, cfg)
		reg.idx[cfg.ID] = cfg
	}
	return reg, nil
}

func parseSinksFile(data []byte, ext string) (configFile, error) {
	ext = strings.ToLower(strings.TrimSpace(ext))
	decoders := []struct {
		name string
		ext  string
		fn   func([]byte, any) error
	}{
		{name: "yaml", ext: ".yaml", fn: yaml.Unmarshal},
		{name: "yaml", ext: ".yml", fn: yaml.Unmarshal},
		{name: "json", ext: ".json", fn: json.Unmarshal},
	}

	var errs []error
	for _, d := range decoders {
		if ext != "" && ext != d.ext {
			continue
		}
		var out configFile
		if err := d.fn(data, &out); err != nil {
			errs = append(errs, fmt.Errorf("decode %s sinks: %w", d.name, err))
			continue
		}
		return out, nil
	}
	if len(errs) == 0 {
		return configFile{}, fmt.Errorf("sinks file extension %q not recognized (expected YAML or JSON)", ext)
	}
	return configFile{}, errors.Join(errs...)
}

func sanitizeTargetConfig(cfg TargetConfig) TargetConfig {
	cfg.ID = strings.TrimSpace(cfg.ID)
	cfg.Type = strings.ToLower(strings.TrimSpace(cfg.Type))

	if cfg.Enabled == nil {
		def := true
		cfg.Enabled = &def
	}
	if cfg.SQL != nil {
		c := *cfg.SQL
		c.Driver = strings.ToLower(strings.TrimSpace(c.Driver))
		if c.Driver == "" {
			c.Driver = DriverMySQL
		}
		c.Host = strings.TrimSpace(c.Host)
		c.Port = strings.TrimSpace(c.Port)
		c.Database = strings.TrimSpace(c.Database)
		c.Table = strings.TrimSpace(c.Table)
		if c.Table == "" {
			c.Table = defaultTable
		}
		cfg.SQL = &c
	}
	if cfg.HTTP != nil {
		c := *cfg.HTTP
		c.URL = strings.TrimSpace(c.URL)
		c.Method = strings.ToUpper(strings.TrimSpace(c.Method))
		if c.Method == "" {
			c.Method = httpDefaultMethod
		}
		c.Headers = sanitizeHeaders(c.Headers)
		if c.TimeoutSeconds <= 0 {
			c.TimeoutSeconds = httpDefaultTimeoutSeconds
		}
		cfg.HTTP = &c
	}
	if cfg.SQS != nil {
		c := *cfg.SQS
		c.QueueURL = strings.TrimSpace(c.QueueURL)
		c.Region = strings.TrimSpace(c.Region)
		cfg.SQS = &c
	}
	return cfg
}

func sanitizeHeaders(headers map[string]string) map[string]string {
	if len(headers) == 0 {
		return nil
	}
	out := make(map[string]string, len(headers))
	for k, v := range headers {
		key := strings.TrimSpace(k)
		val := strings.TrimSpace(v)
		if key == "" || val == "" {
			continue
		}
		out[key] = val
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func validateTargetConfig(cfg TargetConfig) error {
	if cfg.ID == "" {
		return errors.New("id is required")
	}
	switch cfg.Type {
	case "":
		return fmt.Errorf("type is required for sink %q", cfg.ID)
	case TypeSQL:
		if cfg.SQL == nil {
			return fmt.Errorf("sql config required for sink %q", cfg.ID)
		}
		if _, ok := dialects[cfg.SQL.Driver]; !ok {
			return fmt.Errorf("unsupported sql.driver %q for sink %q", cfg.SQL.Driver, cfg.ID)
		}
		if !identifierRe.MatchString(cfg.SQL.Table) {
			return fmt.Errorf("invalid sql.table %q for sink %q", cfg.SQL.Table, cfg.ID)
		}
	case TypeHTTP:
		if cfg.HTTP == nil {
			return fmt.Errorf("http config required for sink %q", cfg.ID)
		}
		if cfg.HTTP.URL == "" {
			return fmt.Errorf("http.url is required for sink %q", cfg.ID)
		}
	case TypeSQS:
		if cfg.SQS == nil {
			return fmt.Errorf("sqs config required for sink %q", cfg.ID)
		}
		if cfg.SQS.QueueURL == "" {
			return fmt.Errorf("sqs.uri is required for sink %q", cfg.ID)
		}
		if cfg.SQS.Region == "" {
			return fmt.Errorf("sqs.region is required for sink %q", cfg.ID)
		}
	}
	return nil
}

// ByID returns the sink config by id.
func (r *ConfigRegistry) ByID(id string) (TargetConfig, bool) {
	if r == nil {
		return TargetConfig{}, false
	}
	cfg, ok := r.idx[strings.TrimSpace(id)]
	return cfg, ok
}

// All returns every configured sink in declaration order.
func (r *ConfigRegistry) All() []TargetConfig {
	if r == nil {
		return nil
	}
	out := make([]TargetConfig, len(r.targets))
	copy(out, r.targets)
	return out
}

// Enabled returns sinks that are enabled, in declaration order.
func (r *ConfigRegistry) Enabled() []TargetConfig {
	all := r.All()
	out := make([]TargetConfig, 0, len(all))
	for _, cfg := range all {
		if cfg.EnabledValue() {
			out = append(out, cfg)
		}
	}
	return out
}

// EnabledValue returns enabled flag defaulting to true.
func (cfg TargetConfig) EnabledValue() bool {
	if cfg.Enabled == nil {
		return true
	}
	return *cfg.Enabled
}
