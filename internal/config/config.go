package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	charmLog "github.com/charmbracelet/log"
	toml "github.com/pelletier/go-toml/v2"
)

// NotificationSender selects where rendered notification e-mails go.
type NotificationSender string

const (
	// SenderOutbox queues messages in the sqlite outbox table.
	SenderOutbox NotificationSender = "outbox"
	// SenderLog writes messages to the runtime log only.
	SenderLog NotificationSender = "log"
)

// Config is the TOML-backed runtime configuration.
type Config struct {
	Database      DatabaseConfig      `toml:"database"`
	Logging       LoggingConfig       `toml:"logging"`
	Workflow      WorkflowConfig      `toml:"workflow"`
	Notifications NotificationsConfig `toml:"notifications"`
	Events        EventsConfig        `toml:"events"`
	Metrics       MetricsConfig       `toml:"metrics"`
}

type DatabaseConfig struct {
	Path string `toml:"path"`
}

type LoggingConfig struct {
	Level   string        `toml:"level"`
	DevFile DevFileConfig `toml:"dev_file"`
}

// DevFileConfig controls the logfmt file sink used in dev mode. An empty Dir selects the
// platform log directory.
type DevFileConfig struct {
	Enabled bool   `toml:"enabled"`
	Dir     string `toml:"dir"`
}

type WorkflowConfig struct {
	// MapDeadlineDays is the stage-2 window granted when a cadastro is homologated.
	MapDeadlineDays int `toml:"map_deadline_days"`
}

type NotificationsConfig struct {
	Enabled       bool               `toml:"enabled"`
	Sender        NotificationSender `toml:"sender"`
	SubjectPrefix string             `toml:"subject_prefix"`
}

// EventsConfig enables NATS publishing when NATSURL is set.
type EventsConfig struct {
	NATSURL       string `toml:"nats_url"`
	SubjectPrefix string `toml:"subject_prefix"`
}

type MetricsConfig struct {
	// Textfile, when set, receives the counters after every command.
	Textfile string `toml:"textfile"`
}

// Default returns the configuration used when no file overrides it.
func Default(dbPath string) Config {
	return Config{
		Database: DatabaseConfig{
			Path: dbPath,
		},
		Logging: LoggingConfig{
			Level: "info",
			DevFile: DevFileConfig{
				Enabled: true,
			},
		},
		Workflow: WorkflowConfig{
			MapDeadlineDays: 15,
		},
		Notifications: NotificationsConfig{
			Enabled:       true,
			Sender:        SenderOutbox,
			SubjectPrefix: "SGC:",
		},
		Events: EventsConfig{
			SubjectPrefix: "sgc.events",
		},
	}
}

// Load overlays the TOML file at path on defaults. A missing or empty file yields defaults.
func Load(path string, defaults Config) (Config, error) {
	cfg := defaults
	if strings.TrimSpace(path) == "" {
		return cfg, nil
	}

	content, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	if len(content) == 0 {
		return cfg, nil
	}

	if err := toml.Unmarshal(content, &cfg); err != nil {
		return Config{}, fmt.Errorf("decode toml: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// Validate reports the first invalid setting.
func (c Config) Validate() error {
	if strings.TrimSpace(c.Database.Path) == "" {
		return errors.New("database path is required")
	}
	if _, err := charmLog.ParseLevel(strings.TrimSpace(c.Logging.Level)); err != nil {
		return fmt.Errorf("invalid logging.level: %q", c.Logging.Level)
	}
	if c.Workflow.MapDeadlineDays <= 0 {
		return fmt.Errorf("workflow.map_deadline_days must be > 0, got %d", c.Workflow.MapDeadlineDays)
	}
	switch c.Notifications.Sender {
	case SenderOutbox, SenderLog:
	default:
		return fmt.Errorf("invalid notifications.sender: %q", c.Notifications.Sender)
	}
	url := strings.TrimSpace(c.Events.NATSURL)
	if url != "" && !strings.Contains(url, "://") {
		return fmt.Errorf("events.nats_url must include a scheme, got %q", c.Events.NATSURL)
	}
	if strings.ContainsAny(c.Events.SubjectPrefix, " *>") {
		return fmt.Errorf("events.subject_prefix contains wildcard or space: %q", c.Events.SubjectPrefix)
	}
	return nil
}

// EnsureConfigDir creates the directory that will hold path.
func EnsureConfigDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}
