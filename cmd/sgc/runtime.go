package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hylla/sgc/internal/adapters/events"
	"github.com/hylla/sgc/internal/adapters/metrics"
	"github.com/hylla/sgc/internal/adapters/storage/sqlite"
	"github.com/hylla/sgc/internal/app"
	"github.com/hylla/sgc/internal/config"
	"github.com/hylla/sgc/internal/notify"
	"github.com/hylla/sgc/internal/platform"
)

// globalOptions are the persistent flags shared by every command.
type globalOptions struct {
	configPath string
	dbPath     string
	appName    string
	devMode    bool
}

// runtime holds the wired adapters for one command invocation.
type runtime struct {
	cfg     config.Config
	paths   platform.Paths
	logger  *runtimeLogger
	repo    *sqlite.Repository
	bus     *events.Bus
	nats    *events.NATSPublisher
	metrics *metrics.Recorder
	svc     *app.Service
}

// resolvePaths applies dev mode and the app name to the platform paths.
func resolvePaths(opts *globalOptions) (platform.Paths, error) {
	return platform.DefaultPathsWithOptions(platform.Options{
		AppName: opts.appName,
		DevMode: opts.devMode,
	})
}

// loadConfig resolves config and database paths from flags, env and platform defaults.
func loadConfig(opts *globalOptions, paths platform.Paths) (config.Config, string, error) {
	configPath := strings.TrimSpace(opts.configPath)
	if configPath == "" {
		if envPath := strings.TrimSpace(os.Getenv("SGC_CONFIG")); envPath != "" {
			configPath = envPath
		} else {
			configPath = paths.ConfigPath
		}
	}
	dbPath := strings.TrimSpace(opts.dbPath)
	dbOverridden := dbPath != ""
	if !dbOverridden {
		if envPath := strings.TrimSpace(os.Getenv("SGC_DB_PATH")); envPath != "" {
			dbPath = envPath
			dbOverridden = true
		} else {
			dbPath = paths.DBPath
		}
	}

	cfg, err := config.Load(configPath, config.Default(dbPath))
	if err != nil {
		return config.Config{}, configPath, fmt.Errorf("load config %q: %w", configPath, err)
	}
	if dbOverridden {
		cfg.Database.Path = dbPath
	}
	return cfg, configPath, nil
}

// openRuntime loads configuration and wires storage, events, notifications and metrics.
func openRuntime(opts *globalOptions, stderr io.Writer) (*runtime, error) {
	paths, err := resolvePaths(opts)
	if err != nil {
		return nil, err
	}
	cfg, configPath, err := loadConfig(opts, paths)
	if err != nil {
		return nil, err
	}

	logger, err := newRuntimeLogger(stderr, opts.appName, opts.devMode, cfg.Logging, paths.LogDir, time.Now)
	if err != nil {
		return nil, fmt.Errorf("configure runtime logger: %w", err)
	}
	logger.Debug("configuration loaded", "config_path", configPath, "db_path", cfg.Database.Path, "log_level", cfg.Logging.Level)
	if devPath := logger.DevLogPath(); devPath != "" {
		logger.Debug("dev file logging enabled", "path", devPath)
	}

	rt := &runtime{cfg: cfg, paths: paths, logger: logger, bus: events.NewBus()}
	rt.metrics, err = metrics.New()
	if err != nil {
		_ = logger.Close()
		return nil, err
	}

	rt.repo, err = sqlite.Open(cfg.Database.Path)
	if err != nil {
		logger.Error("sqlite open failed", "db_path", cfg.Database.Path, "err", err)
		_ = logger.Close()
		return nil, fmt.Errorf("open sqlite repository: %w", err)
	}

	if cfg.Notifications.Enabled {
		var sender notify.EmailSender = rt.repo
		if cfg.Notifications.Sender == config.SenderLog {
			sender = notify.LogSender{Logger: logger}
		}
		rt.bus.Subscribe("notifications", notify.NewDispatcher(rt.repo, sender, notify.Config{
			SubjectPrefix: cfg.Notifications.SubjectPrefix,
			Metrics:       rt.metrics,
			Logger:        logger,
		}))
		logger.Debug("notifications enabled", "sender", cfg.Notifications.Sender)
	}
	if url := strings.TrimSpace(cfg.Events.NATSURL); url != "" {
		rt.nats, err = events.ConnectNATS(url, cfg.Events.SubjectPrefix)
		if err != nil {
			rt.Close()
			return nil, err
		}
		rt.bus.Subscribe("nats", rt.nats)
		logger.Debug("nats event publishing enabled", "url", url)
	}

	rt.svc = app.NewService(rt.repo, rt.repo, uuid.NewString, nil, app.ServiceConfig{
		MapDeadlineDays: cfg.Workflow.MapDeadlineDays,
		Events:          rt.bus,
		Metrics:         rt.metrics,
		Logger:          logger,
	})
	return rt, nil
}

// Close flushes metrics and releases every adapter.
func (rt *runtime) Close() {
	if rt == nil {
		return
	}
	if path := strings.TrimSpace(rt.cfg.Metrics.Textfile); path != "" && rt.metrics != nil {
		if err := rt.metrics.WriteTextfile(path); err != nil {
			rt.logger.Warn("metrics textfile write failed", "path", path, "err", err)
		}
	}
	if rt.nats != nil {
		if err := rt.nats.Close(); err != nil {
			rt.logger.Warn("nats drain failed", "err", err)
		}
	}
	if rt.repo != nil {
		if err := rt.repo.Close(); err != nil {
			rt.logger.Warn("sqlite close failed", "db_path", rt.cfg.Database.Path, "err", err)
		}
	}
	_ = rt.logger.Close()
}

// withRuntime runs fn against a freshly wired runtime and closes it afterwards.
func withRuntime(ctx context.Context, opts *globalOptions, stderr io.Writer, command string, fn func(context.Context, *runtime) error) error {
	rt, err := openRuntime(opts, stderr)
	if err != nil {
		return err
	}
	defer rt.Close()

	rt.logger.Debug("command flow start", "command", command)
	if err := fn(ctx, rt); err != nil {
		rt.logger.Debug("command flow failed", "command", command, "class", app.ErrorClass(err), "err", err)
		return err
	}
	rt.logger.Debug("command flow complete", "command", command)
	return nil
}

// parseBoolEnv reads a boolean environment variable; ok is false when unset or invalid.
func parseBoolEnv(name string) (bool, bool) {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return false, false
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, false
	}
	return v, true
}
