package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync/atomic"

	"github.com/gofrs/flock"
	"github.com/rs/zerolog/log"

	"valeads-engine/internal/config"
	"valeads-engine/internal/events"
	"valeads-engine/internal/pipeline"
	"valeads-engine/internal/secrets"
	"valeads-engine/internal/sheets"
	"valeads-engine/internal/store"
)

// app is everything a command needs once the data dir is open.
type app struct {
	dataDir     string
	userCfgPath string
	cfgVal      *atomic.Value // stores config.Config
	loadCfg     func() (config.Config, error)

	tree   store.Tree
	closer io.Closer
	lock   *flock.Flock

	hub *events.Hub
	svc *pipeline.Service
}

func resolveDataDir(flagVal string) string {
	if v := strings.TrimSpace(flagVal); v != "" {
		return v
	}
	if v := strings.TrimSpace(os.Getenv(config.EnvDataDir)); v != "" {
		return v
	}
	return "."
}

// loadConfig bootstraps config.yml in dataDir and returns a loader that
// reads, overlays the environment and validates it.
func loadConfig(dataDir string) (string, func() (config.Config, error), error) {
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return "", nil, err
	}
	userCfgPath, err := config.EnsureUserConfig(dataDir, config.DefaultYAML)
	if err != nil {
		return "", nil, fmt.Errorf("config bootstrap failed: %w", err)
	}

	load := func() (config.Config, error) {
		cfg, err := config.Load(userCfgPath)
		if err != nil {
			return cfg, fmt.Errorf("config load failed (%s): %w", userCfgPath, err)
		}
		config.OverlayEnv(&cfg)
		cfg.App.DataDir = dataDir

		out, vr := config.NormalizeAndValidate(cfg)
		for _, w := range vr.Warnings {
			log.Warn().Str("config", userCfgPath).Msg(w)
		}
		if !vr.OK() {
			return out, fmt.Errorf("config %s is invalid:\n- %s", userCfgPath, strings.Join(vr.Errors, "\n- "))
		}
		return out, nil
	}
	return userCfgPath, load, nil
}

func openApp(ctx context.Context, dataDirFlag string) (*app, error) {
	dataDir := resolveDataDir(dataDirFlag)
	userCfgPath, load, err := loadConfig(dataDir)
	if err != nil {
		return nil, err
	}
	cfg, err := load()
	if err != nil {
		return nil, err
	}

	a := &app{
		dataDir:     dataDir,
		userCfgPath: userCfgPath,
		cfgVal:      &atomic.Value{},
		loadCfg:     load,
		hub:         events.NewHub(),
	}
	a.cfgVal.Store(cfg)

	if cfg.Storage.Backend != "postgres" {
		fl, err := store.AcquireDirLock(dataDir)
		if err != nil {
			return nil, err
		}
		a.lock = fl
	}

	password := ""
	if cfg.Storage.Backend == "postgres" {
		password, err = secrets.GetStoragePassword(secrets.StorageKeyringAccount(cfg))
		switch {
		case errors.Is(err, secrets.ErrNotFound):
			log.Warn().Msg("no storage password in keychain; connecting without one")
		case err != nil:
			a.close()
			return nil, err
		}
	}

	tree, closer, err := store.OpenTree(store.Options{
		Backend:  cfg.Storage.Backend,
		DataDir:  dataDir,
		Path:     cfg.Storage.Path,
		DSN:      cfg.Storage.DSN,
		Password: password,
	})
	if err != nil {
		a.close()
		return nil, err
	}
	a.tree, a.closer = tree, closer

	a.svc = pipeline.New(tree, func() config.Config { return a.cfgVal.Load().(config.Config) }, a.hub)
	if cfg.Sheets.Enabled {
		client, err := sheets.NewClient(ctx, cfg.Sheets.CredentialsFile, cfg.Sheets.MaxRetries)
		if err != nil {
			a.close()
			return nil, err
		}
		a.svc.Sheets = client
	}

	log.Info().
		Str("data_dir", dataDir).
		Str("config", userCfgPath).
		Str("backend", cfg.Storage.Backend).
		Msg("engine opened")
	return a, nil
}

func (a *app) config() config.Config {
	return a.cfgVal.Load().(config.Config)
}

func (a *app) close() {
	if a.closer != nil {
		if err := a.closer.Close(); err != nil {
			log.Error().Err(err).Msg("close store")
		}
	}
	if a.lock != nil {
		_ = a.lock.Unlock()
	}
}
