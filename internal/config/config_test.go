package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDefaultConfig(t *testing.T) {
	cfg := Default("/tmp/sgc.db")
	if cfg.Database.Path != "/tmp/sgc.db" {
		t.Fatalf("unexpected db path %q", cfg.Database.Path)
	}
	if cfg.Logging.Level != "info" {
		t.Fatalf("unexpected log level %q", cfg.Logging.Level)
	}
	if cfg.Workflow.MapDeadlineDays != 15 {
		t.Fatalf("unexpected map deadline %d", cfg.Workflow.MapDeadlineDays)
	}
	if !cfg.Notifications.Enabled || cfg.Notifications.Sender != SenderOutbox {
		t.Fatalf("expected outbox notifications by default, got %#v", cfg.Notifications)
	}
	if cfg.Events.NATSURL != "" {
		t.Fatalf("expected NATS disabled by default, got %q", cfg.Events.NATSURL)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	defaults := Default("/tmp/sgc.db")
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.toml"), defaults)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Database.Path != defaults.Database.Path {
		t.Fatalf("expected default db path, got %q", cfg.Database.Path)
	}
}

func TestLoadFileOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	content := `
[database]
path = "/custom/sgc.db"

[logging]
level = "debug"

[logging.dev_file]
enabled = false

[workflow]
map_deadline_days = 30

[notifications]
sender = "log"
subject_prefix = "[SGC]"

[events]
nats_url = "nats://localhost:4222"
subject_prefix = "org.sgc"

[metrics]
textfile = "/var/lib/node_exporter/sgc.prom"
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	cfg, err := Load(path, Default("/tmp/default.db"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Database.Path != "/custom/sgc.db" {
		t.Fatalf("unexpected db path %q", cfg.Database.Path)
	}
	if cfg.Logging.Level != "debug" || cfg.Logging.DevFile.Enabled {
		t.Fatalf("unexpected logging config %#v", cfg.Logging)
	}
	if cfg.Logging.DevFile.Dir != "" {
		t.Fatalf("expected platform log dir default, got %q", cfg.Logging.DevFile.Dir)
	}
	if cfg.Workflow.MapDeadlineDays != 30 {
		t.Fatalf("unexpected map deadline %d", cfg.Workflow.MapDeadlineDays)
	}
	if cfg.Notifications.Sender != SenderLog || cfg.Notifications.SubjectPrefix != "[SGC]" {
		t.Fatalf("unexpected notifications config %#v", cfg.Notifications)
	}
	if !cfg.Notifications.Enabled {
		t.Fatal("expected notifications to stay enabled")
	}
	if cfg.Events.NATSURL != "nats://localhost:4222" || cfg.Events.SubjectPrefix != "org.sgc" {
		t.Fatalf("unexpected events config %#v", cfg.Events)
	}
	if cfg.Metrics.Textfile != "/var/lib/node_exporter/sgc.prom" {
		t.Fatalf("unexpected metrics textfile %q", cfg.Metrics.Textfile)
	}
}

func TestLoadRejectsInvalidSettings(t *testing.T) {
	cases := []struct {
		name    string
		content string
		want    string
	}{
		{name: "sender", content: "[notifications]\nsender = \"pigeon\"\n", want: "notifications.sender"},
		{name: "deadline", content: "[workflow]\nmap_deadline_days = 0\n", want: "map_deadline_days"},
		{name: "level", content: "[logging]\nlevel = \"loud\"\n", want: "logging.level"},
		{name: "nats url", content: "[events]\nnats_url = \"localhost:4222\"\n", want: "nats_url"},
		{name: "subject", content: "[events]\nsubject_prefix = \"sgc.>\"\n", want: "subject_prefix"},
		{name: "toml", content: "[database\n", want: "decode toml"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.toml")
			if err := os.WriteFile(path, []byte(tc.content), 0o644); err != nil {
				t.Fatalf("WriteFile() error = %v", err)
			}
			_, err := Load(path, Default("/tmp/default.db"))
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("expected %q in error, got %v", tc.want, err)
			}
		})
	}
}

func TestEnsureConfigDir(t *testing.T) {
	target := filepath.Join(t.TempDir(), "a", "b", "config.toml")
	if err := EnsureConfigDir(target); err != nil {
		t.Fatalf("EnsureConfigDir() error = %v", err)
	}
	if _, err := os.Stat(filepath.Dir(target)); err != nil {
		t.Fatalf("expected dir to exist, stat error %v", err)
	}
}
