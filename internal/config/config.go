package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gookit/validate"
	"github.com/spf13/viper"
)

const appDirName = "flowbank"

// maxLoadDelay caps the decorative startup delay.
const maxLoadDelay = 2 * time.Second

type CliFlags struct {
	ConfigPath string
	DebugMode  bool
}

type DatabaseConfig struct {
	Path string `mapstructure:"path" yaml:"path" validate:"required"`
}

type LoggerConfig struct {
	Level string `mapstructure:"level" yaml:"level" validate:"required|in:trace,debug,info,warn,error,fatal,panic"`
	Dir   string `mapstructure:"dir" yaml:"dir" validate:"required"`
	Mode  uint32 `mapstructure:"mode" yaml:"mode"`
}

// GeneratorConfig controls the staged reveal of reward rolls.
type GeneratorConfig struct {
	SlowCadence   time.Duration `mapstructure:"slowCadence" yaml:"slowCadence" validate:"required|min:1"`
	FastCadence   time.Duration `mapstructure:"fastCadence" yaml:"fastCadence" validate:"required|min:1"`
	FastThreshold int           `mapstructure:"fastThreshold" yaml:"fastThreshold" validate:"required|min:1"`
}

type ArchiveConfig struct {
	MaxAgeDays int `mapstructure:"maxAgeDays" yaml:"maxAgeDays" validate:"required|min:1"`
}

type StartupConfig struct {
	LoadDelay time.Duration `mapstructure:"loadDelay" yaml:"loadDelay"`
}

type AppConfig struct {
	Path  string `mapstructure:"-" yaml:"-"`
	Debug bool   `mapstructure:"-" yaml:"-"`

	Database  DatabaseConfig  `mapstructure:"database" yaml:"database"`
	Logger    LoggerConfig    `mapstructure:"logger" yaml:"logger"`
	Generator GeneratorConfig `mapstructure:"generator" yaml:"generator"`
	Archive   ArchiveConfig   `mapstructure:"archive" yaml:"archive"`
	Startup   StartupConfig   `mapstructure:"startup" yaml:"startup"`
}

// DefaultDir returns ~/.config/flowbank (or the platform equivalent).
func DefaultDir() string {
	cfg, err := os.UserConfigDir()
	if err != nil {
		return filepath.Join(".", appDirName)
	}
	return filepath.Join(cfg, appDirName)
}

// DefaultConfigPath returns <DefaultDir>/config.yaml.
func DefaultConfigPath() string {
	return filepath.Join(DefaultDir(), "config.yaml")
}

func setDefaults(v *viper.Viper) {
	dir := DefaultDir()
	v.SetDefault("database.path", filepath.Join(dir, "flowbank.db"))
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.dir", filepath.Join(dir, "logs"))
	v.SetDefault("logger.mode", 0o644)
	v.SetDefault("generator.slowCadence", 500*time.Millisecond)
	v.SetDefault("generator.fastCadence", 100*time.Millisecond)
	v.SetDefault("generator.fastThreshold", 10)
	v.SetDefault("archive.maxAgeDays", 90)
	v.SetDefault("startup.loadDelay", time.Duration(0))
}

// Load reads the YAML config at flags.ConfigPath. A missing file is not an
// error; defaults and FLOWBANK_* environment overrides still apply.
func Load(flags *CliFlags) (*AppConfig, error) {
	path := flags.ConfigPath
	if path == "" {
		path = DefaultConfigPath()
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	setDefaults(v)

	v.BindEnv("database.path", "FLOWBANK_DB_PATH")
	v.BindEnv("logger.level", "FLOWBANK_LOG_LEVEL")
	v.BindEnv("logger.dir", "FLOWBANK_LOG_DIR")

	if err := v.ReadInConfig(); err != nil {
		var pathErr *os.PathError
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &pathErr) && !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
	}

	var conf AppConfig
	if err := v.Unmarshal(&conf); err != nil {
		return nil, fmt.Errorf("unable to decode into config struct: %w", err)
	}

	conf.Path = path
	conf.Debug = flags.DebugMode
	if conf.Debug {
		conf.Logger.Level = "debug"
	}
	if conf.Startup.LoadDelay < 0 {
		conf.Startup.LoadDelay = 0
	}
	if conf.Startup.LoadDelay > maxLoadDelay {
		conf.Startup.LoadDelay = maxLoadDelay
	}

	if err := Validate(&conf); err != nil {
		return nil, err
	}
	return &conf, nil
}

// Validate checks the struct tags of every section.
func Validate(conf *AppConfig) error {
	v := validate.Struct(conf)
	if !v.Validate() {
		return fmt.Errorf("invalid config: %w", v.Errors)
	}
	return nil
}

// Save writes conf to path as YAML, creating parent directories if needed.
func Save(path string, conf *AppConfig) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating config directory %s: %w", dir, err)
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	v.Set("database", map[string]any{"path": conf.Database.Path})
	v.Set("logger", map[string]any{
		"level": conf.Logger.Level,
		"dir":   conf.Logger.Dir,
		"mode":  conf.Logger.Mode,
	})
	v.Set("generator", map[string]any{
		"slowCadence":   conf.Generator.SlowCadence.String(),
		"fastCadence":   conf.Generator.FastCadence.String(),
		"fastThreshold": conf.Generator.FastThreshold,
	})
	v.Set("archive", map[string]any{"maxAgeDays": conf.Archive.MaxAgeDays})
	v.Set("startup", map[string]any{"loadDelay": conf.Startup.LoadDelay.String()})

	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}
	return nil
}
