package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// SettingsDir holds the per-environment settings files.
const SettingsDir = "settings"

// LoadConfig loads configuration using viper.
// CLI flags > environment > config file > defaults precedence; flags are
// applied by the caller. Without configPath, settings/<environment>.toml is
// read when it exists.
func LoadConfig(configPath string) (*Settings, error) {
	env, err := ParseEnvironment(os.Getenv("APP_ENVIRONMENT"))
	if err != nil {
		return nil, err
	}

	v := viper.New()
	setDefaults(v, DefaultSettings())

	// APP_IMAP__SERVER -> imap.server
	v.SetEnvPrefix("APP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "__"))
	v.AutomaticEnv()

	path := configPath
	if path == "" {
		candidate := filepath.Join(SettingsDir, string(env)+".toml")
		if _, err := os.Stat(candidate); err == nil {
			path = candidate
		} else if !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("failed to stat config file: %w", err)
		}
	}
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// Secrets must be environment-only per 12-factor principles
	if err := validateNoSecretsInConfig(v); err != nil {
		return nil, err
	}

	cfg := &Settings{
		Environment: env,
		StoreKind:   strings.ToLower(v.GetString("store.kind")),
		IMAP: IMAPSettings{
			Server:             v.GetString("imap.server"),
			Port:               v.GetInt("imap.port"),
			Login:              v.GetString("imap.login"),
			Inbox:              v.GetString("imap.inbox"),
			StorageMailbox:     v.GetString("imap.storage_mailbox"),
			InsecureSkipVerify: env == EnvTest && v.GetBool("imap.insecure_skip_verify"),
		},
		SQLURL:          v.GetString("sql.url"),
		RulesFile:       v.GetString("rules_file"),
		DaysBack:        v.GetInt("move.days_back"),
		MaxMessages:     v.GetInt("check.max_messages"),
		MaxAlertDetails: v.GetInt("report.max_alert_details"),
		LogLevel:        v.GetString("log.level"),
		LogFormat:       v.GetString("log.format"),
	}

	if err := validateConfig(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// setDefaults registers every key; AutomaticEnv only resolves keys viper
// already knows about.
func setDefaults(v *viper.Viper, d *Settings) {
	v.SetDefault("store.kind", d.StoreKind)
	v.SetDefault("imap.server", "")
	v.SetDefault("imap.port", d.IMAP.Port)
	v.SetDefault("imap.login", "")
	v.SetDefault("imap.inbox", d.IMAP.Inbox)
	v.SetDefault("imap.storage_mailbox", d.IMAP.StorageMailbox)
	v.SetDefault("imap.insecure_skip_verify", false)
	v.SetDefault("sql.url", "")
	v.SetDefault("rules_file", d.RulesFile)
	v.SetDefault("move.days_back", d.DaysBack)
	v.SetDefault("check.max_messages", d.MaxMessages)
	v.SetDefault("report.max_alert_details", d.MaxAlertDetails)
	v.SetDefault("log.level", d.LogLevel)
	v.SetDefault("log.format", d.LogFormat)
}

// validateConfig checks store selection, port range and positive limits.
func validateConfig(cfg *Settings) error {
	switch cfg.StoreKind {
	case StoreIMAP:
		if cfg.IMAP.Port <= 0 || cfg.IMAP.Port > 65535 {
			return fmt.Errorf("imap.port must be between 1 and 65535, got %d", cfg.IMAP.Port)
		}
		if cfg.IMAP.Server == "" {
			return fmt.Errorf("imap.server is required for the imap store")
		}
		if cfg.IMAP.Login == "" {
			return fmt.Errorf("imap.login is required for the imap store")
		}
	case StoreSQL:
		if cfg.SQLURL == "" {
			return fmt.Errorf("sql.url is required for the sql store")
		}
	default:
		return fmt.Errorf("store.kind must be %q or %q, got %q", StoreIMAP, StoreSQL, cfg.StoreKind)
	}
	if cfg.IMAP.Inbox == "" || cfg.IMAP.StorageMailbox == "" {
		return fmt.Errorf("imap.inbox and imap.storage_mailbox cannot be empty")
	}
	if cfg.IMAP.Inbox == cfg.IMAP.StorageMailbox {
		return fmt.Errorf("imap.storage_mailbox must differ from imap.inbox, both are %q", cfg.IMAP.Inbox)
	}
	if cfg.RulesFile == "" {
		return fmt.Errorf("rules_file cannot be empty")
	}
	if cfg.DaysBack <= 0 {
		return fmt.Errorf("move.days_back must be positive, got %d", cfg.DaysBack)
	}
	if cfg.MaxMessages <= 0 {
		return fmt.Errorf("check.max_messages must be positive, got %d", cfg.MaxMessages)
	}
	if cfg.MaxAlertDetails < 0 {
		return fmt.Errorf("report.max_alert_details cannot be negative, got %d", cfg.MaxAlertDetails)
	}
	return nil
}

// validateNoSecretsInConfig enforces environment-only secrets (12-factor principle).
func validateNoSecretsInConfig(v *viper.Viper) error {
	if v.InConfig("imap.password") || v.InConfig("password") {
		return fmt.Errorf("IMAP password not allowed in config files (use %s environment variable)", PasswordEnv)
	}
	return nil
}
