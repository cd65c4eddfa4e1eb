// Package config provides configuration management for amcheck runs.
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/solatis/amcheck/internal/types"
)

// Environment selects the settings file and a few test-only behaviours.
type Environment string

const (
	EnvTest       Environment = "test"
	EnvProduction Environment = "prod"
)

// Store backends.
const (
	StoreIMAP = "imap"
	StoreSQL  = "sql"
)

// PasswordEnv is the only place the IMAP password is read from.
const PasswordEnv = "APP_IMAP__PASSWORD"

// ParseEnvironment maps APP_ENVIRONMENT values. "production" is an alias of
// "prod"; the empty string selects prod.
func ParseEnvironment(s string) (Environment, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "prod", "production":
		return EnvProduction, nil
	case "test":
		return EnvTest, nil
	default:
		return "", fmt.Errorf("%s is not a supported environment. Use either `test` or `prod`", s)
	}
}

// IMAPSettings holds connection and mailbox names for the IMAP backend.
type IMAPSettings struct {
	Server             string
	Port               int
	Login              string
	Inbox              string
	StorageMailbox     string
	InsecureSkipVerify bool
}

// Settings is the resolved configuration of one run.
type Settings struct {
	Environment     Environment
	StoreKind       string
	IMAP            IMAPSettings
	SQLURL          string
	RulesFile       string
	DaysBack        int
	MaxMessages     int
	MaxAlertDetails int
	LogLevel        string
	LogFormat       string
}

// DefaultSettings returns configuration with default values.
func DefaultSettings() *Settings {
	return &Settings{
		Environment: EnvProduction,
		StoreKind:   StoreIMAP,
		IMAP: IMAPSettings{
			Port:           993,
			Inbox:          "INBOX",
			StorageMailbox: "amcheck_storage",
		},
		RulesFile:       "settings/rules.yaml",
		DaysBack:        types.DefaultMoveDaysBack,
		MaxMessages:     types.DefaultMaxCheckMessages,
		MaxAlertDetails: types.DefaultMaxAlertDetails,
		LogLevel:        "info",
		LogFormat:       "json",
	}
}

// IsTest reports whether the run uses the test environment.
func (s *Settings) IsTest() bool {
	return s.Environment == EnvTest
}

// IMAPPassword reads the IMAP password from the environment.
func IMAPPassword() (string, error) {
	val, ok := os.LookupEnv(PasswordEnv)
	if !ok || val == "" {
		return "", fmt.Errorf("no IMAP password configured (set %s environment variable)", PasswordEnv)
	}
	return val, nil
}
