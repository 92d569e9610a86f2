package app

import (
	"context"
	"errors"
	"fmt"
	"os"

	"go.uber.org/zap"

	"raceline/internal/broadcast"
	"raceline/internal/config"
	"raceline/internal/db"
	"raceline/internal/engine"
	"raceline/internal/logging"
	"raceline/internal/migrate"
)

// Overrides are settings given on the command line or in the environment.
// Empty values leave the workspace config alone.
type Overrides struct {
	Driver   string
	DSN      string
	LogLevel string
	LogJSON  bool
	// Live attaches a websocket hub to the engine. Only a running server
	// drains it.
	Live bool
}

// App is an opened workspace: config, logger, migrated database and the
// engine over it. Hub, when opened live, receives every committed change.
type App struct {
	Workspace string
	Config    *config.Config
	Log       *zap.SugaredLogger
	DB        db.Handle
	Hub       *broadcast.Hub
	Engine    engine.Engine
}

// Open loads the workspace config, applies overrides, opens and migrates the
// database and builds the engine. The caller must Close the App.
func Open(ctx context.Context, workspace string, o Overrides) (*App, error) {
	cfg, err := ResolveConfig(workspace, o)
	if err != nil {
		return nil, err
	}
	log, err := logging.New(cfg.Log.Level, cfg.Log.JSON)
	if err != nil {
		return nil, err
	}
	h, err := db.Open(cfg.DB(workspace))
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := migrate.Migrate(h); err != nil {
		_ = h.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	var hub *broadcast.Hub
	var b broadcast.Broadcaster = broadcast.Nop{}
	if o.Live {
		hub = broadcast.NewHub(log.Named("hub"))
		b = hub
	}
	e, err := engine.New(h, cfg, engine.Options{Log: log.Named("engine"), Broadcast: b})
	if err != nil {
		_ = h.Close()
		return nil, err
	}
	log.Debugw("workspace opened", "workspace", workspace, "driver", h.Dialect)
	return &App{Workspace: workspace, Config: cfg, Log: log, DB: h, Hub: hub, Engine: e}, nil
}

// ResolveConfig reads raceline.yml when present, falling back to defaults,
// then applies overrides and validates the result.
func ResolveConfig(workspace string, o Overrides) (*config.Config, error) {
	cfg, err := config.LoadOptional(workspace)
	if err != nil {
		return nil, err
	}
	if o.Driver != "" {
		cfg.Database.Driver = o.Driver
	}
	if o.DSN != "" {
		cfg.Database.DSN = o.DSN
	}
	if o.LogLevel != "" {
		cfg.Log.Level = o.LogLevel
	}
	if o.LogJSON {
		cfg.Log.JSON = true
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Init writes a default raceline.yml into workspace unless one exists, and
// reports whether it wrote the file.
func Init(workspace string) (bool, error) {
	if _, err := db.EnsureWorkspace(workspace); err != nil {
		return false, err
	}
	path := config.Path(workspace)
	if _, err := os.Stat(path); err == nil {
		return false, nil
	} else if !errors.Is(err, os.ErrNotExist) {
		return false, err
	}
	if err := os.WriteFile(path, []byte(config.GenerateDefault()), 0o644); err != nil {
		return false, fmt.Errorf("write %s: %w", path, err)
	}
	return true, nil
}

func (a *App) Close() error {
	if a.Hub != nil {
		a.Hub.Close()
	}
	_ = a.Log.Sync()
	return a.DB.Close()
}
