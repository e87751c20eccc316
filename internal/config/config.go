package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"planboard/internal/domain"
)

const FileName = "planboard.yml"

// Config models planboard.yml.
type Config struct {
	Project struct {
		ID            string `yaml:"id"`
		Name          string `yaml:"name"`
		Currency      string `yaml:"currency"`
		PlannedBudget int64  `yaml:"planned_budget"`
	} `yaml:"project"`
	Organizations []domain.Organization `yaml:"organizations"`
	// AssigneeRoles maps an assignee type to the organisation roles it may be
	// filled by. Types absent from the map are unrestricted.
	AssigneeRoles map[string][]string `yaml:"assignee_roles"`
	EventLog      EventLogConfig      `yaml:"event_log"`
	Webhooks      []WebhookConfig     `yaml:"webhooks"`
	Logging       LoggingConfig       `yaml:"logging"`
}

type EventLogConfig struct {
	Backend string `yaml:"backend"`
	Scope   string `yaml:"scope"`
	Redis   struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
	} `yaml:"redis"`
}

const (
	BackendSQLite = "sqlite"
	BackendRedis  = "redis"
	BackendMemory = "memory"
)

type WebhookConfig struct {
	URL            string   `yaml:"url"`
	Events         []string `yaml:"events"`
	Secret         string   `yaml:"secret"`
	TimeoutSeconds int      `yaml:"timeout_seconds"`
	Enabled        *bool    `yaml:"enabled"`
}

// Active reports whether deliveries should be attempted.
func (w WebhookConfig) Active() bool {
	if w.Enabled != nil && !*w.Enabled {
		return false
	}
	return strings.TrimSpace(w.URL) != ""
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// Load reads and validates config from workspace.
func Load(workspace string) (*Config, error) {
	path := Path(workspace)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config %s not found; create one with pb project create", path)
		}
		return nil, err
	}
	return FromYAML(data)
}

// Validate ensures the config meets required structure.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Project.ID) == "" {
		return fmt.Errorf("config.project.id is required")
	}
	if c.Project.PlannedBudget < 0 {
		return fmt.Errorf("config.project.planned_budget must not be negative")
	}
	seen := map[string]bool{}
	for i, org := range c.Organizations {
		if strings.TrimSpace(org.Name) == "" {
			return fmt.Errorf("config.organizations[%d].name is required", i)
		}
		key := strings.ToLower(org.Name)
		if seen[key] {
			return fmt.Errorf("config.organizations has duplicate name %s", org.Name)
		}
		seen[key] = true
		for _, role := range org.Roles {
			if strings.TrimSpace(role) == "" {
				return fmt.Errorf("organization %s has empty role", org.Name)
			}
		}
	}
	for assigneeType, roles := range c.AssigneeRoles {
		if !domain.AssigneeType(assigneeType).Valid() {
			return fmt.Errorf("config.assignee_roles has unknown assignee type %s", assigneeType)
		}
		if len(roles) == 0 {
			return fmt.Errorf("config.assignee_roles.%s must list at least one role", assigneeType)
		}
	}
	switch c.EventLog.Backend {
	case "", BackendSQLite, BackendMemory:
	case BackendRedis:
		if strings.TrimSpace(c.EventLog.Redis.Addr) == "" {
			return fmt.Errorf("config.event_log.redis.addr is required for the redis backend")
		}
	default:
		return fmt.Errorf("config.event_log.backend must be one of sqlite, redis, memory")
	}
	for i, hook := range c.Webhooks {
		if strings.TrimSpace(hook.URL) == "" {
			return fmt.Errorf("config.webhooks[%d].url is required", i)
		}
		if hook.TimeoutSeconds < 0 {
			return fmt.Errorf("config.webhooks[%d].timeout_seconds must not be negative", i)
		}
		for _, evt := range hook.Events {
			if !domain.EventType(strings.TrimSpace(evt)).Valid() {
				return fmt.Errorf("config.webhooks[%d] filters unknown event %s", i, evt)
			}
		}
	}
	switch c.Logging.Format {
	case "", "console", "json":
	default:
		return fmt.Errorf("config.logging.format must be console or json")
	}
	return nil
}

// Path returns the config file path for a workspace.
func Path(workspace string) string {
	if workspace == "" {
		workspace = "."
	}
	return filepath.Join(workspace, FileName)
}

// GenerateDefault returns default config YAML.
func GenerateDefault(projectID string) string {
	return fmt.Sprintf(defaultTemplate, projectID)
}

// LoadOptional returns nil,nil if the config file does not exist.
func LoadOptional(workspace string) (*Config, error) {
	data, err := os.ReadFile(Path(workspace))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	return FromYAML(data)
}

// Default returns the default Config struct for a project.
func Default(projectID string) *Config {
	var cfg Config
	_ = yaml.NewDecoder(bytes.NewBufferString(GenerateDefault(projectID))).Decode(&cfg)
	cfg.Project.ID = projectID
	return &cfg
}

// FromYAML parses and validates config from raw YAML bytes.
func FromYAML(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("invalid config yaml: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// FromFile reads YAML config from the given path.
func FromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return FromYAML(data)
}

// Write stores the config in the workspace, refusing to clobber an existing file.
func Write(workspace string, cfg *Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	path := Path(workspace)
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config %s already exists", path)
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

const defaultTemplate = `project:
  id: %s
  name: ""
  currency: XOF
  planned_budget: 0

organizations:
  - id: org-coop-nord
    name: Coopérative du Nord
    roles: [production, distribution]
  - id: org-agri-supply
    name: AgriSupply SARL
    roles: [supply, purchase]
  - id: org-formation
    name: Centre de Formation Rurale
    roles: [training]
  - id: org-labo
    name: Laboratoire Semences
    roles: [research]
  - id: org-union
    name: Union des Groupements
    roles: [hybrid]

assignee_roles:
  distributor: [distribution, hybrid]
  producer: [production, hybrid]
  supplier: [supply, hybrid]
  purchaser: [purchase, hybrid]
  trainer: [training, hybrid]
  r&d: [research, hybrid]

event_log:
  backend: sqlite
  scope: default

logging:
  level: info
  format: console
  output: stderr
`
