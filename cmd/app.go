package cmd

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"github.com/Tiliavir/showrun/internal/automation"
	"github.com/Tiliavir/showrun/internal/config"
	"github.com/Tiliavir/showrun/internal/engine"
	"github.com/Tiliavir/showrun/internal/logger"
	"github.com/Tiliavir/showrun/internal/restore"
	"github.com/Tiliavir/showrun/internal/storage"
)

// app bundles what every command needs: configuration, the data directory
// and a running engine.
type app struct {
	cfg    config.Config
	base   string
	loc    *time.Location
	log    logger.Logger
	engine *engine.Engine
}

// loadConfig reads --config or the default config file.
func loadConfig() (config.Config, error) {
	if configPath != "" {
		return config.LoadFile(configPath)
	}
	return config.Load()
}

// loadProject reads the project from the configured data directory.
func loadProject() (config.Config, storage.Project, error) {
	cfg, err := loadConfig()
	if err != nil {
		return cfg, storage.Project{}, err
	}
	p, err := storage.LoadProject(cfg.DataDir)
	return cfg, p, err
}

// openApp loads configuration and project and builds an engine that
// resumes from the restore point. Warnings go to stderr and, when logFile is
// set, to the log file in the data directory.
func openApp(ctx context.Context, console io.Writer, logFile bool) (*app, error) {
	cfg, project, err := loadProject()
	if err != nil {
		return nil, err
	}
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}

	loggers := []logger.Logger{logger.NewStandardLogger(log.New(console, "", log.LstdFlags))}
	if logFile {
		fl, err := logger.OpenFile(storage.LogPath(cfg.DataDir))
		if err != nil {
			return nil, err
		}
		loggers = append(loggers, fl)
	}
	lg := logger.NewMultiLogger(loggers...)

	timeout := cfg.AutomationTimeout()
	httpSender := automation.NewHTTPSender(nil, timeout)
	if oc := cfg.Automation.OAuth2; oc.Enabled() {
		httpSender = automation.NewOAuth2HTTPSender(ctx, automation.OAuth2{
			TokenURL:     oc.TokenURL,
			ClientID:     oc.ClientID,
			ClientSecret: oc.ClientSecret,
			Scopes:       oc.Scopes,
		}, timeout)
	}
	eval := automation.NewEvaluator(project.Automation, lg,
		automation.WithTimeout(timeout),
		automation.WithSender(automation.OutputHTTP, httpSender),
		automation.WithSender(automation.OutputOSC, automation.NewOSCSender()),
	)

	base := cfg.DataDir
	e, err := engine.New(project, engine.Options{
		Location:  loc,
		Log:       lg,
		Restore:   restore.NewStore(storage.RestorePath(base), cfg.Playback.RestoreMaxFailures, lg),
		Evaluator: eval,
		Save:      func(p storage.Project) error { return storage.SaveProject(base, p) },
	})
	if err != nil {
		_ = lg.Close()
		return nil, err
	}
	return &app{cfg: cfg, base: base, loc: loc, log: lg, engine: e}, nil
}

// Close waits for automation outputs and closes the log.
func (a *app) Close() {
	a.engine.Close()
	if err := a.log.Close(); err != nil {
		fmt.Fprintln(os.Stderr, err)
	}
}

// mustOpenApp opens the app or exits with status 2 like every storage
// failure.
func mustOpenApp(ctx context.Context) *app {
	a, err := openApp(ctx, os.Stderr, false)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	return a
}
