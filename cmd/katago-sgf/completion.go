package main

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/posener/complete"

	"github.com/d2verb/katago-sgf/internal/config"
)

// sourceFilePredictor completes submit arguments. With source_dir set, the
// daemon resolves names under it, so names are completed from there;
// otherwise from the working directory.
type sourceFilePredictor struct{}

// Predict implements complete.Predictor interface.
func (sourceFilePredictor) Predict(args complete.Args) []string {
	paths, err := getPaths()
	if err != nil {
		return nil
	}
	path := os.Getenv("KATAGO_SGF_CONFIG")
	if path == "" {
		path = paths.Config
	}
	cfg, err := config.Load(path, paths)
	if err != nil || cfg.SourceDir == "" {
		return complete.PredictFiles("*.sgf").Predict(args)
	}
	return completeSourceFiles(cfg.SourceDir, args.Last)
}

// completeSourceFiles lists .sgf files and directories under sourceDir that
// match partial, relative to sourceDir.
func completeSourceFiles(sourceDir, partial string) []string {
	dir, prefix := filepath.Split(partial)
	entries, err := os.ReadDir(filepath.Join(sourceDir, dir))
	if err != nil {
		return nil
	}

	var results []string
	for _, e := range entries {
		name := e.Name()
		if !strings.HasPrefix(name, prefix) || strings.HasPrefix(name, ".") {
			continue
		}
		switch {
		case e.IsDir():
			results = append(results, dir+name+"/")
		case strings.EqualFold(filepath.Ext(name), ".sgf"):
			results = append(results, dir+name)
		}
	}
	return results
}
