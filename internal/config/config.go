// Package config loads viewer configuration from defaults, an optional
// segviewer.yaml file and SEGVIEWER_* environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"seg-viewer/internal/caseio"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// FileName is the config file name searched for when no path is given.
const FileName = "segviewer"

// EnvPrefix prefixes environment overrides, e.g. SEGVIEWER_DATA_ROOT.
const EnvPrefix = "SEGVIEWER"

// Config holds all viewer configuration.
type Config struct {
	Data    DataConfig    `mapstructure:"data" yaml:"data"`
	Viewer  ViewerConfig  `mapstructure:"viewer" yaml:"viewer"`
	TUI     TUIConfig     `mapstructure:"tui" yaml:"tui"`
	Logging LoggingConfig `mapstructure:"logging" yaml:"logging"`
}

// DataConfig describes the on-disk layout of the review data.
type DataConfig struct {
	// Root contains the case list, the image and mask folders and the comment log
	Root      string `mapstructure:"root" yaml:"root"`
	Patients  string `mapstructure:"patients" yaml:"patients"`
	ImageDir  string `mapstructure:"imagedir" yaml:"imageDir"`
	MaskDir   string `mapstructure:"maskdir" yaml:"maskDir"`
	Extension string `mapstructure:"extension" yaml:"extension"`
	Comments  string `mapstructure:"comments" yaml:"comments"`
}

// ViewerConfig controls the review session.
type ViewerConfig struct {
	// Opacity is the mask overlay opacity every case starts with
	Opacity float64 `mapstructure:"opacity" yaml:"opacity"`

	// KeepOpacity carries the current opacity over to the next case
	KeepOpacity bool `mapstructure:"keepopacity" yaml:"keepOpacity"`

	// Resume starts at the case viewed last instead of the first one
	Resume bool `mapstructure:"resume" yaml:"resume"`

	FullScreen bool `mapstructure:"fullscreen" yaml:"fullScreen"`

	// PaneSize is the minimum edge length of each slice pane in pixels
	PaneSize int `mapstructure:"panesize" yaml:"paneSize"`
}

// TUIConfig controls the terminal viewer.
type TUIConfig struct {
	// PaneWidth is the width of each slice pane in terminal cells
	PaneWidth int `mapstructure:"panewidth" yaml:"paneWidth"`
}

// LoggingConfig selects log level and encoding.
type LoggingConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
}

// PatientsPath returns the case list path.
func (d DataConfig) PatientsPath() string {
	return filepath.Join(d.Root, d.Patients)
}

// CommentsPath returns the comment log path.
func (d DataConfig) CommentsPath() string {
	return filepath.Join(d.Root, d.Comments)
}

// Layout returns the case file layout under Root.
func (d DataConfig) Layout() caseio.Layout {
	return caseio.Layout{
		Root:      d.Root,
		ImageDir:  d.ImageDir,
		MaskDir:   d.MaskDir,
		Extension: d.Extension,
	}
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Data: DataConfig{
			Root:      "data",
			Patients:  "patients.txt",
			ImageDir:  "img",
			MaskDir:   "mask",
			Extension: ".nii.gz",
			Comments:  "failed_segmentations.txt",
		},
		Viewer: ViewerConfig{
			Opacity:    0.3,
			FullScreen: true,
			PaneSize:   256,
		},
		TUI: TUIConfig{
			PaneWidth: 40,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

func setDefaults(v *viper.Viper) {
	d := Default()
	v.SetDefault("data.root", d.Data.Root)
	v.SetDefault("data.patients", d.Data.Patients)
	v.SetDefault("data.imagedir", d.Data.ImageDir)
	v.SetDefault("data.maskdir", d.Data.MaskDir)
	v.SetDefault("data.extension", d.Data.Extension)
	v.SetDefault("data.comments", d.Data.Comments)
	v.SetDefault("viewer.opacity", d.Viewer.Opacity)
	v.SetDefault("viewer.keepopacity", d.Viewer.KeepOpacity)
	v.SetDefault("viewer.resume", d.Viewer.Resume)
	v.SetDefault("viewer.fullscreen", d.Viewer.FullScreen)
	v.SetDefault("viewer.panesize", d.Viewer.PaneSize)
	v.SetDefault("tui.panewidth", d.TUI.PaneWidth)
	v.SetDefault("logging.level", d.Logging.Level)
	v.SetDefault("logging.format", d.Logging.Format)
}

// Load reads configuration. An explicit path must exist; otherwise
// segviewer.yaml is looked up in the working directory and in ./data.
// Environment variables override both.
func Load(path string) (*Config, error) {
	return LoadWithRoot(path, "")
}

// LoadWithRoot is Load with a data root chosen on the command line. When
// root is set, segviewer.yaml is looked up there instead of in ./data and
// data.root is forced to root regardless of file or environment.
func LoadWithRoot(path, root string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		searchRoot := root
		if searchRoot == "" {
			searchRoot = Default().Data.Root
		}
		v.SetConfigName(FileName)
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath(searchRoot)
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if root != "" {
		v.Set("data.root", root)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks value ranges.
func (c *Config) Validate() error {
	if c.Viewer.Opacity < 0 || c.Viewer.Opacity > 1 {
		return fmt.Errorf("viewer.opacity must be within [0,1], got %g", c.Viewer.Opacity)
	}
	if c.Data.Root == "" {
		return errors.New("data.root must not be empty")
	}
	if c.Viewer.PaneSize <= 0 {
		return fmt.Errorf("viewer.paneSize must be positive, got %d", c.Viewer.PaneSize)
	}
	if c.TUI.PaneWidth < 8 {
		return fmt.Errorf("tui.paneWidth must be at least 8, got %d", c.TUI.PaneWidth)
	}
	return nil
}

// Save writes cfg to path as YAML.
func Save(cfg *Config, path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("error creating config directory: %w", err)
		}
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("error marshaling config: %w", err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("error writing config file: %w", err)
	}
	return nil
}

// WriteDefault writes the built-in configuration to path.
func WriteDefault(path string) error {
	return Save(Default(), path)
}
