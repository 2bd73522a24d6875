package main

import (
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/d2verb/katago-sgf/internal/config"
	"github.com/d2verb/katago-sgf/internal/editor"
	"github.com/d2verb/katago-sgf/internal/ui"
)

type ConfigCmd struct {
	Show ConfigShowCmd `cmd:"" default:"1" help:"Print the effective configuration"`
	Edit ConfigEditCmd `cmd:"" help:"Open the config file in $EDITOR"`
}

type ConfigShowCmd struct{}

func (c *ConfigShowCmd) Run(g *Globals) error {
	paths, cfg, err := g.load()
	if err != nil {
		return err
	}
	return writeConfig(os.Stdout, g.configPath(paths), cfg)
}

func writeConfig(w io.Writer, path string, cfg *config.Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	if _, err := fmt.Fprintf(w, "# %s\n%s", path, data); err != nil {
		return err
	}
	return nil
}

type ConfigEditCmd struct{}

func (c *ConfigEditCmd) Run(g *Globals) error {
	paths, err := getPaths()
	if err != nil {
		return err
	}
	path := g.configPath(paths)

	err = editor.EditFile(path, func() error {
		return config.Default(paths).Save(path)
	})
	if err != nil {
		return err
	}

	if _, err := config.Load(path, paths); err != nil {
		ui.PrintWarning(err.Error())
		return nil
	}
	ui.PrintSuccess(fmt.Sprintf("Saved %s", path))
	return nil
}
