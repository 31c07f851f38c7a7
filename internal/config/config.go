package config

import (
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/MrWalshy/emdd"
	"github.com/MrWalshy/emdd/plugins"
	"github.com/spf13/viper"
)

// DefaultConfigName is the file looked up in the working directory when no
// config path is given.
const DefaultConfigName = "emdd"

var ErrInvalidConfig = errors.New("invalid configuration")

type Config struct {
	Output         OutputConfig `mapstructure:"output"`
	Src            SrcConfig    `mapstructure:"src"`
	ContentPlugins []string     `mapstructure:"contentPlugins"`
	HTML           HTMLConfig   `mapstructure:"html"`
	Build          BuildConfig  `mapstructure:"build"`
	Highlight      string       `mapstructure:"highlight"`

	// Root is the directory holding the config file. Relative paths in the
	// config resolve against it.
	Root string `mapstructure:"-"`
}

type OutputConfig struct {
	// Type is the document processor, html5 or raw.
	Type      string `mapstructure:"type"`
	Directory string `mapstructure:"directory"`
}

type SrcConfig struct {
	Directory string `mapstructure:"directory"`
	Extension string `mapstructure:"extension"`
	// CopyFilesOfType lists extensions copied to the output untouched.
	CopyFilesOfType []string `mapstructure:"copyFilesOfType"`
	// Templates are directories whose documents pre-seed the template store.
	Templates []string `mapstructure:"templates"`
}

type HTMLConfig struct {
	Preamble  string `mapstructure:"preamble"`
	Postamble string `mapstructure:"postamble"`
}

type BuildConfig struct {
	Workers int `mapstructure:"workers"`
	// Cache is the sqlite file used to skip unchanged sources. Empty disables it.
	Cache  string `mapstructure:"cache"`
	Backup bool   `mapstructure:"backup"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("output.type", "html5")
	v.SetDefault("output.directory", "out")
	v.SetDefault("src.directory", "src")
	v.SetDefault("src.extension", emdd.SourceExtension)
	v.SetDefault("src.copyFilesOfType", []string{".css", ".js", ".png", ".jpg", ".svg"})
	v.SetDefault("src.templates", []string{})
	v.SetDefault("contentPlugins", plugins.DefaultPlugins)
	v.SetDefault("html.preamble", "")
	v.SetDefault("html.postamble", "")
	v.SetDefault("build.workers", 4)
	v.SetDefault("build.cache", "")
	v.SetDefault("build.backup", true)
	v.SetDefault("highlight", "github")
}

// Load reads the site configuration at path. With an empty path emdd.yaml (or
// .json/.toml) is looked up in the working directory and defaults are used if
// it does not exist. EMDD_* environment variables override file values, e.g.
// EMDD_OUTPUT_TYPE=raw.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("EMDD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName(DefaultConfigName)
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		slog.Debug("no config file found, using defaults")
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	root := "."
	if used := v.ConfigFileUsed(); used != "" {
		root = filepath.Dir(used)
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve config root: %w", err)
	}
	cfg.Root = abs

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	slog.Debug("loaded config", "file", v.ConfigFileUsed(), "output", cfg.Output.Type, "plugins", cfg.ContentPlugins)
	return &cfg, nil
}

// Validate rejects unknown output types and content plugins.
func (c *Config) Validate() error {
	if !plugins.KnownDocumentType(c.Output.Type) {
		return fmt.Errorf("%w: unknown output type %q", ErrInvalidConfig, c.Output.Type)
	}
	for _, name := range c.ContentPlugins {
		if !plugins.KnownPlugin(name) {
			return fmt.Errorf("%w: unknown content plugin %q", ErrInvalidConfig, name)
		}
	}
	if !strings.HasPrefix(c.Src.Extension, ".") {
		return fmt.Errorf("%w: source extension %q must start with '.'", ErrInvalidConfig, c.Src.Extension)
	}
	if c.Build.Workers < 1 {
		return fmt.Errorf("%w: build.workers must be at least 1, got %d", ErrInvalidConfig, c.Build.Workers)
	}
	return nil
}

func (c *Config) SourceDir() string {
	return c.resolve(c.Src.Directory)
}

func (c *Config) OutputDir() string {
	return c.resolve(c.Output.Directory)
}

func (c *Config) TemplateDirs() []string {
	dirs := make([]string, 0, len(c.Src.Templates))
	for _, d := range c.Src.Templates {
		dirs = append(dirs, c.resolve(d))
	}
	return dirs
}

// CachePath returns the build cache location, or "" when caching is off.
func (c *Config) CachePath() string {
	if c.Build.Cache == "" {
		return ""
	}
	return c.resolve(c.Build.Cache)
}

func (c *Config) resolve(p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(c.Root, p)
}
