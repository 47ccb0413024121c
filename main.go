// Package main provides the entry point for the segmentation review viewer.
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
	"seg-viewer/internal/version"
	"seg-viewer/ui/mainwindow"
	"seg-viewer/ui/prefs"
	"seg-viewer/ui/theme"

	fyneapp "fyne.io/fyne/v2/app"
	"go.uber.org/zap"
)

const appID = "io.github.seg-viewer"

func main() {
	configPath := flag.String("config", "", "config file (default: segviewer.yaml in . or ./data)")
	root := flag.String("root", "", "data root, overrides data.root")
	writeConfig := flag.String("write-config", "", "write the default config to this path and exit")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println(version.String("seg-viewer"))
		return
	}

	if *writeConfig != "" {
		if err := config.WriteDefault(*writeConfig); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Wrote default config to %s\n", *writeConfig)
		return
	}

	cfg, err := config.LoadWithRoot(*configPath, *root)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	logger, err := logging.New(cfg.Logging.Level, cfg.Logging.Format)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	cases, err := caseio.LoadCaseList(cfg.Data.PatientsPath())
	if err != nil {
		logger.Fatal("failed to read case list", zap.Error(err))
	}

	appPrefs := prefs.Load()
	opts := app.Options{
		DefaultOpacity: cfg.Viewer.Opacity,
		KeepOpacity:    cfg.Viewer.KeepOpacity,
	}
	start := 0
	if cfg.Viewer.Resume {
		start = appPrefs.ResumeIndex(cases)
		cfg.Viewer.Opacity = appPrefs.FloatWithFallback(prefs.KeyOpacity, cfg.Viewer.Opacity)
		opts.DefaultOpacity = cfg.Viewer.Opacity
	}

	loader := caseio.NewLoader(cfg.Data.Layout(), logger)
	session := app.NewSession(cases, loader, comments.NewLog(cfg.Data.CommentsPath()), opts, logger)

	fyneApp := fyneapp.NewWithID(appID)
	fyneApp.Settings().SetTheme(&theme.ViewerTheme{})

	win := mainwindow.New(context.Background(), fyneApp, session, appPrefs, cfg.Viewer, logger)
	win.Start(start)
	win.ShowAndRun()
}
