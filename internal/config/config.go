package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/marek/docmill/internal/domain"
)

type Config struct {
	Service ServiceConfig `mapstructure:"service"`
	Output  OutputConfig  `mapstructure:"output"`
	History HistoryConfig `mapstructure:"history"`
	Stub    StubConfig    `mapstructure:"stub"`
}

// ServiceConfig points the client at a conversion service.
type ServiceConfig struct {
	BaseURL string        `mapstructure:"base_url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// OutputConfig controls where downloaded artifacts are written.
type OutputConfig struct {
	Dir string `mapstructure:"dir"`
}

// HistoryConfig controls the local submission ledger.
type HistoryConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

// StubConfig configures the bundled stand-in server used for local
// development and integration testing.
type StubConfig struct {
	Port      int           `mapstructure:"port"`
	Mode      string        `mapstructure:"mode"`
	CORS      CORSConfig    `mapstructure:"cors"`
	WorkDir   string        `mapstructure:"work_dir"`
	StepDelay time.Duration `mapstructure:"step_delay"`
}

type CORSConfig struct {
	AllowedOrigins  []string `mapstructure:"allowed_origins"`
	AllowAllOrigins bool     `mapstructure:"allow_all_origins"`
}

func Load(configPath string) (*Config, error) {
	// Load .env file if exists
	_ = godotenv.Load()

	v := viper.New()

	// Set config file path
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./configs")
		v.AddConfigPath(".")
	}

	// Enable environment variable override
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Set defaults
	v.SetDefault("service.base_url", "http://localhost:8000")
	v.SetDefault("service.timeout", domain.RequestTimeout.String())
	v.SetDefault("output.dir", ".")
	v.SetDefault("history.enabled", true)
	v.SetDefault("history.path", "./data/docmill.db")
	v.SetDefault("stub.port", 8000)
	v.SetDefault("stub.mode", "debug")
	v.SetDefault("stub.cors.allow_all_origins", true)
	v.SetDefault("stub.cors.allowed_origins", []string{})
	v.SetDefault("stub.work_dir", "./data/stub")
	v.SetDefault("stub.step_delay", "750ms")

	// Read config file
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// Bind environment variables explicitly for overrides that matter
	// outside the config file
	v.BindEnv("service.base_url", "DOCMILL_SERVICE_URL")
	v.BindEnv("service.timeout", "DOCMILL_SERVICE_TIMEOUT")
	v.BindEnv("output.dir", "DOCMILL_OUTPUT_DIR")
	v.BindEnv("history.enabled", "DOCMILL_HISTORY_ENABLED")
	v.BindEnv("history.path", "DOCMILL_HISTORY_PATH")
	v.BindEnv("stub.port", "STUB_PORT")
	v.BindEnv("stub.work_dir", "STUB_WORK_DIR")
	v.BindEnv("stub.step_delay", "STUB_STEP_DELAY")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}
