package config

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	KeyOwner          = "owner"
	KeyRepo           = "repo"
	KeyAPIBaseURL     = "api-base-url"
	KeyAppName        = "app-name"
	KeyInstallDir     = "install-dir"
	KeyDownloadDir    = "download-dir"
	KeyLogFile        = "log.file"
	KeyLogLevel       = "log.level"
	KeyCurrentVersion = "current-version"
	KeyStepTimeout    = "timeouts.step"
	KeyHTTPTimeout    = "timeouts.http"
	KeyRelaunchDelay  = "relaunch-delay"

	envPrefix      = "CRYPTOBAR"
	configFileName = "config.yaml"
)

// Config holds user/system configuration for the updater.
type Config struct {
	HomeDir        string
	Owner          string // release repository owner
	Repo           string
	APIBaseURL     string
	AppName        string // bundle name, e.g. CryptoBar.app
	InstallDir     string
	DownloadDir    string
	LogFile        string
	LogLevel       string
	CurrentVersion string // used when the installed bundle has no readable version
	StepTimeout    time.Duration
	HTTPTimeout    time.Duration
	RelaunchDelay  time.Duration
}

// Defaults returns the built-in configuration.
func Defaults() Config {
	home, _ := os.UserHomeDir()
	return defaultsFor(filepath.Join(home, ".cryptobar"))
}

func defaultsFor(homeDir string) Config {
	return Config{
		HomeDir:       homeDir,
		Owner:         "cmalf",
		Repo:          "CryptoBar",
		APIBaseURL:    "https://api.github.com",
		AppName:       "CryptoBar.app",
		InstallDir:    "/Applications",
		DownloadDir:   filepath.Join(os.TempDir(), "cryptobar"),
		LogFile:       filepath.Join(homeDir, "logs", "updater.log"),
		LogLevel:      "info",
		StepTimeout:   5 * time.Minute,
		HTTPTimeout:   30 * time.Second,
		RelaunchDelay: 600 * time.Millisecond,
	}
}

// Load resolves the home directory from CRYPTOBAR_HOME (or HOME_DIR) and
// loads configuration from it.
func Load() (Config, error) {
	home := Defaults().HomeDir
	if v := os.Getenv(envPrefix + "_HOME"); v != "" {
		home = v
	} else if v := os.Getenv("HOME_DIR"); v != "" {
		home = v
	}
	return LoadFrom(home)
}

// LoadFrom loads configuration using the precedence:
// defaults < <homeDir>/config.yaml < CRYPTOBAR_* environment variables.
// Flags are applied by the caller.
func LoadFrom(homeDir string) (Config, error) {
	def := defaultsFor(homeDir)

	v := viper.New()
	v.SetConfigType("yaml")
	setDefaults(v, def)
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if err := mergeConfigFile(v, filepath.Join(homeDir, configFileName)); err != nil {
		return def, fmt.Errorf("load config: %w", err)
	}

	cfg := Config{
		HomeDir:        homeDir,
		Owner:          strings.TrimSpace(v.GetString(KeyOwner)),
		Repo:           strings.TrimSpace(v.GetString(KeyRepo)),
		APIBaseURL:     strings.TrimRight(v.GetString(KeyAPIBaseURL), "/"),
		AppName:        v.GetString(KeyAppName),
		InstallDir:     v.GetString(KeyInstallDir),
		DownloadDir:    v.GetString(KeyDownloadDir),
		LogFile:        v.GetString(KeyLogFile),
		LogLevel:       v.GetString(KeyLogLevel),
		CurrentVersion: v.GetString(KeyCurrentVersion),
		StepTimeout:    v.GetDuration(KeyStepTimeout),
		HTTPTimeout:    v.GetDuration(KeyHTTPTimeout),
		RelaunchDelay:  v.GetDuration(KeyRelaunchDelay),
	}
	if err := cfg.Validate(); err != nil {
		return def, err
	}
	return cfg, nil
}

// Validate checks the fields the updater cannot run without.
func (c Config) Validate() error {
	var missing []string
	if c.Owner == "" {
		missing = append(missing, KeyOwner)
	}
	if c.Repo == "" {
		missing = append(missing, KeyRepo)
	}
	if c.AppName == "" {
		missing = append(missing, KeyAppName)
	}
	if c.InstallDir == "" {
		missing = append(missing, KeyInstallDir)
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required config: %s", strings.Join(missing, ", "))
	}
	if !strings.HasSuffix(c.AppName, ".app") {
		return fmt.Errorf("%s must name an .app bundle, got %q", KeyAppName, c.AppName)
	}
	if c.StepTimeout < 0 || c.HTTPTimeout < 0 || c.RelaunchDelay < 0 {
		return errors.New("timeouts must not be negative")
	}
	return nil
}

// AppPath is the installed bundle path.
func (c Config) AppPath() string { return filepath.Join(c.InstallDir, c.AppName) }

// ConfigPath is the optional config file in the home directory.
func (c Config) ConfigPath() string { return filepath.Join(c.HomeDir, configFileName) }

// SettingsPath is the persisted user settings file.
func (c Config) SettingsPath() string { return filepath.Join(c.HomeDir, "settings.yaml") }

// LockPath is the single-instance lock file.
func (c Config) LockPath() string { return filepath.Join(c.HomeDir, "update.pid") }

func setDefaults(v *viper.Viper, def Config) {
	v.SetDefault(KeyOwner, def.Owner)
	v.SetDefault(KeyRepo, def.Repo)
	v.SetDefault(KeyAPIBaseURL, def.APIBaseURL)
	v.SetDefault(KeyAppName, def.AppName)
	v.SetDefault(KeyInstallDir, def.InstallDir)
	v.SetDefault(KeyDownloadDir, def.DownloadDir)
	v.SetDefault(KeyLogFile, def.LogFile)
	v.SetDefault(KeyLogLevel, def.LogLevel)
	v.SetDefault(KeyCurrentVersion, "")
	v.SetDefault(KeyStepTimeout, def.StepTimeout)
	v.SetDefault(KeyHTTPTimeout, def.HTTPTimeout)
	v.SetDefault(KeyRelaunchDelay, def.RelaunchDelay)
}

func mergeConfigFile(v *viper.Viper, path string) error {
	info, err := os.Stat(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("stat %s: %w", path, err)
	}
	if info.IsDir() {
		return fmt.Errorf("config path %s is a directory", path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := v.MergeConfig(bytes.NewReader(data)); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	return nil
}
