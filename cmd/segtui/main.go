// Command segtui reviews segmentations in the terminal.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"seg-viewer/internal/app"
	"seg-viewer/internal/caseio"
	"seg-viewer/internal/comments"
	"seg-viewer/internal/config"
	"seg-viewer/internal/logging"
	"seg-viewer/internal/tui"

	"go.uber.org/zap"
)

func main() {
	configPath := flag.String("config", "", "config file (default: segviewer.yaml in . or ./data)")
	root := flag.String("root", "", "data root, overrides data.root")
	logPath := flag.String("log", "segtui.log", "log file; the terminal is busy with the viewer")
	flag.Parse()

	cfg, err := config.LoadWithRoot(*configPath, *root)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	logger, err := logging.NewWithOutput(cfg.Logging.Level, cfg.Logging.Format, *logPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	cases, err := caseio.LoadCaseList(cfg.Data.PatientsPath())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	ctx := context.Background()
	session := app.NewSession(cases,
		caseio.NewLoader(cfg.Data.Layout(), logger),
		comments.NewLog(cfg.Data.CommentsPath()),
		app.Options{DefaultOpacity: cfg.Viewer.Opacity, KeepOpacity: cfg.Viewer.KeepOpacity},
		logger,
	)
	if err := session.Open(ctx, 0); err != nil {
		// The viewer still starts; the reviewer can move to another case.
		logger.Warn("first case failed to load", zap.Error(err))
	}

	if err := tui.Run(ctx, session, cfg.TUI.PaneWidth); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
