package main

import (
	"fmt"

	"github.com/d2verb/katago-sgf/internal/client"
	"github.com/d2verb/katago-sgf/internal/config"
	"github.com/d2verb/katago-sgf/internal/daemon"
	"github.com/d2verb/katago-sgf/internal/katago"
)

func getPaths() (*config.Paths, error) {
	paths, err := config.GetPaths()
	if err != nil {
		return nil, fmt.Errorf("get paths: %w", err)
	}
	return paths, nil
}

// configPath returns the config file selected by --config, or the default.
func (g *Globals) configPath(paths *config.Paths) string {
	if g.ConfigFile != "" {
		return g.ConfigFile
	}
	return paths.Config
}

// load returns the paths and the effective configuration.
func (g *Globals) load() (*config.Paths, *config.Config, error) {
	paths, err := getPaths()
	if err != nil {
		return nil, nil, err
	}
	cfg, err := config.Load(g.configPath(paths), paths)
	if err != nil {
		return nil, nil, err
	}
	return paths, cfg, nil
}

func newClient(cfg *config.Config) (*client.Client, error) {
	network, address, err := config.ParseListen(cfg.Listen)
	if err != nil {
		return nil, err
	}
	return client.New(network, address), nil
}

func engineConfig(cfg *config.Config) katago.Config {
	return katago.Config{
		Path:           cfg.KataGoPath,
		AnalysisConfig: cfg.AnalysisConfig,
		ExtraArgs:      cfg.ExtraArgs,
		BufferLimit:    cfg.BufferLimit,
	}
}

func jobConfig(cfg *config.Config) daemon.Config {
	return daemon.Config{
		SourceDir:      cfg.SourceDir,
		DestinationDir: cfg.DestinationDir,
		MaxVariations:  cfg.MaxVariations,
		MaxVisits:      cfg.MaxVisits,
		JobTimeout:     cfg.JobTimeout,
	}
}
