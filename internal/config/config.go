package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/teambition/rrule-go"
	"gopkg.in/yaml.v3"

	"github.com/jakechorley/shift-selector/pkg/core/model"
)

const (
	defaultListenAddr      = ":3000"
	defaultUpstreamTimeout = 10 * time.Second
	defaultDirectoryRange  = "A1:AZ500"
	defaultScheduleTab     = "schedule"
	defaultJournalTab      = "claim_event"
	defaultRecountWorkers  = 2
	defaultRecountQueue    = 64
	defaultRecountAttempts = 3
)

// DirectoryConfig locates the sheet of registered users and their credentials
type DirectoryConfig struct {
	SheetID  string        `yaml:"sheetID" validate:"required"`
	Tab      string        `yaml:"tab" validate:"required"`
	Range    string        `yaml:"range,omitempty"`
	CacheTTL time.Duration `yaml:"cacheTTL,omitempty" validate:"min=0"`
}

// ScheduleConfig locates the sheet of claimable shifts
type ScheduleConfig struct {
	SheetID         string   `yaml:"sheetID" validate:"required"`
	Tab             string   `yaml:"tab,omitempty"`
	Name            string   `yaml:"name,omitempty"`
	OffsetLeft      int      `yaml:"offsetLeft,omitempty" validate:"min=0"`
	OffsetTop       int      `yaml:"offsetTop,omitempty" validate:"min=0"`
	ClaimableColors []string `yaml:"claimableColors" validate:"required,min=1,dive,hexcolor"`
}

// RecountConfig tunes the background shift count queue
type RecountConfig struct {
	Workers     int `yaml:"workers,omitempty" validate:"min=0,max=16"`
	QueueSize   int `yaml:"queueSize,omitempty" validate:"min=0"`
	MaxAttempts int `yaml:"maxAttempts,omitempty" validate:"min=0,max=10"`
}

// ReconcileConfig schedules the periodic full recount. An empty rrule disables it.
type ReconcileConfig struct {
	RRule string `yaml:"rrule,omitempty"`
}

// JournalConfig selects where claim events are recorded
type JournalConfig struct {
	Backend     string `yaml:"backend,omitempty" validate:"omitempty,oneof=none sheets postgres"`
	Tab         string `yaml:"tab,omitempty"`
	DatabaseURL string `yaml:"databaseURL,omitempty" validate:"required_if=Backend postgres"`
}

// CredentialsConfig selects how the server authenticates to the Sheets API
type CredentialsConfig struct {
	ServiceAccountFile string `yaml:"serviceAccountFile,omitempty" validate:"required_without=OAuthClientFile,excluded_with=OAuthClientFile"`
	OAuthClientFile    string `yaml:"oauthClientFile,omitempty" validate:"required_without=ServiceAccountFile"`
}

// Config represents the application configuration
type Config struct {
	ListenAddr      string            `yaml:"listenAddr,omitempty"`
	UpstreamTimeout time.Duration     `yaml:"upstreamTimeout,omitempty" validate:"min=0"`
	Directory       DirectoryConfig   `yaml:"directory"`
	Schedule        ScheduleConfig    `yaml:"schedule"`
	Recount         RecountConfig     `yaml:"recount,omitempty"`
	Reconcile       ReconcileConfig   `yaml:"reconcile,omitempty"`
	Journal         JournalConfig     `yaml:"journal,omitempty"`
	Credentials     CredentialsConfig `yaml:"credentials"`
}

var validate *validator.Validate

func init() {
	validate = validator.New()
}

// Validator returns the shared validator so request bodies are checked the same way as config
func Validator() *validator.Validate {
	return validate
}

// LoadWithEnv loads and validates shift_selector_config.<env>.yaml
// It looks for the config file in the current directory first, then in the user's home directory
func LoadWithEnv(env string) (*Config, error) {
	configPath, err := findConfigFile(env)
	if err != nil {
		return nil, fmt.Errorf("failed to find config file: %w", err)
	}

	return LoadFromPath(configPath)
}

// LoadFromPath loads, defaults and validates the configuration from a specific path
func LoadFromPath(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	ApplyDefaults(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// ApplyDefaults fills in every optional field left empty
func ApplyDefaults(cfg *Config) {
	if cfg.ListenAddr == "" {
		if port := os.Getenv("PORT"); port != "" {
			cfg.ListenAddr = ":" + port
		} else {
			cfg.ListenAddr = defaultListenAddr
		}
	}
	if cfg.UpstreamTimeout == 0 {
		cfg.UpstreamTimeout = defaultUpstreamTimeout
	}
	if cfg.Directory.Range == "" {
		cfg.Directory.Range = defaultDirectoryRange
	}
	if cfg.Schedule.Tab == "" {
		cfg.Schedule.Tab = defaultScheduleTab
	}
	if cfg.Schedule.Name == "" {
		cfg.Schedule.Name = cfg.Schedule.Tab
	}
	if cfg.Recount.Workers == 0 {
		cfg.Recount.Workers = defaultRecountWorkers
	}
	if cfg.Recount.QueueSize == 0 {
		cfg.Recount.QueueSize = defaultRecountQueue
	}
	if cfg.Recount.MaxAttempts == 0 {
		cfg.Recount.MaxAttempts = defaultRecountAttempts
	}
	if cfg.Journal.Backend == "" {
		cfg.Journal.Backend = "none"
	}
	if cfg.Journal.Tab == "" {
		cfg.Journal.Tab = defaultJournalTab
	}
}

// Validate validates the configuration struct and checks rrule syntax
func Validate(cfg *Config) error {
	if err := validate.Struct(cfg); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}

	if _, err := model.NewPalette(cfg.Schedule.ClaimableColors); err != nil {
		return fmt.Errorf("invalid schedule.claimableColors: %w", err)
	}

	// Row and column positions in the directory are written back as absolute addresses
	if start, _, _ := strings.Cut(cfg.Directory.Range, ":"); !strings.EqualFold(strings.TrimSpace(start), "A1") {
		return fmt.Errorf("invalid directory.range %q: must start at A1", cfg.Directory.Range)
	}

	if cfg.Reconcile.RRule != "" {
		if _, err := rrule.StrToRRule(cfg.Reconcile.RRule); err != nil {
			return fmt.Errorf("invalid rrule in reconcile: %w", err)
		}
	}

	return nil
}

// findConfigFile searches for the config file in the current directory and home directory
func findConfigFile(env string) (string, error) {
	configFileName := "shift_selector_config.yaml"
	if env != "" {
		configFileName = "shift_selector_config." + env + ".yaml"
	}

	if _, err := os.Stat(configFileName); err == nil {
		return configFileName, nil
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}

	homeConfigPath := filepath.Join(homeDir, configFileName)
	if _, err := os.Stat(homeConfigPath); err == nil {
		return homeConfigPath, nil
	}

	return "", fmt.Errorf("config file %s not found in current directory or home directory", configFileName)
}
