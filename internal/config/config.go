package config

import (
	"errors"
	"io/fs"
	"net"
	"os/user"
	"path/filepath"
	"time"

	"github.com/eagraf/kitsune-hub/internal/constants"
	"github.com/eagraf/kitsune-hub/internal/logstore"
	"github.com/eagraf/kitsune-hub/internal/script"
	"github.com/joho/godotenv"
	"github.com/mitchellh/mapstructure"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	viper "github.com/spf13/viper"
)

func loadEnv(v *viper.Viper) error {
	bindings := []struct {
		key, env string
		def      any
	}{
		{"environment", "ENVIRONMENT", constants.EnvironmentProd},
		{"debug", "HUB_DEBUG", false},
		{"hub_path", "HUB_PATH", nil},
		{"host", "HUB_HOST", constants.DefaultHost},
		{"port", "HUB_PORT", constants.DefaultPort},
		{"installers_path", "HUB_INSTALLERS_PATH", nil},
		{"logs_path", "HUB_LOGS_PATH", nil},
		{"poll_interval", "HUB_POLL_INTERVAL", constants.DefaultPollInterval},
		{"log_backend", "HUB_LOG_BACKEND", logstore.BackendFile},
		{"log_dsn", "HUB_LOG_DSN", nil},
		{"tls_cert_file", "HUB_TLS_CERT_FILE", nil},
		{"tls_key_file", "HUB_TLS_KEY_FILE", nil},
		{"otel", "HUB_OTEL", false},
	}
	for _, b := range bindings {
		err := v.BindEnv(b.key, b.env)
		if err != nil {
			return err
		}
		if b.def != nil {
			v.SetDefault(b.key, b.def)
		}
	}

	homedir, err := homedir()
	if err != nil {
		return err
	}
	v.SetDefault("hub_path", filepath.Join(homedir, constants.DefaultHubDirName))
	return nil
}

// loadDotEnv loads .env from the working directory when there is one. Variables that are already
// set win.
func loadDotEnv() error {
	err := godotenv.Load()
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}

func loadViperConfig(overrides map[string]any) (*viper.Viper, error) {
	err := loadDotEnv()
	if err != nil {
		return nil, err
	}

	v := viper.New()
	err = loadEnv(v)
	if err != nil {
		return nil, err
	}
	for key, value := range overrides {
		v.Set(key, value)
	}

	v.AddConfigPath(v.GetString("hub_path"))
	v.SetConfigType("yml")
	v.SetConfigName(constants.ConfigName)

	err = v.ReadInConfig()
	var notFound viper.ConfigFileNotFoundError
	if errors.As(err, &notFound) {
		log.Debug().Msgf("no %s.yml found in %s, using defaults", constants.ConfigName, v.GetString("hub_path"))
	} else if err != nil {
		return nil, err
	}
	return v, nil
}

// ScriptConfig is the optional `script` block of hub.yml.
type ScriptConfig struct {
	Interpreter   string `yaml:"interpreter"`
	MaxConcurrent int64  `yaml:"max_concurrent"`
}

type HubConfig struct {
	viper *viper.Viper
}

// NewHubConfig loads config from the environment, .env and <hub_path>/hub.yml. overrides, keyed by
// config key, take precedence over all of them.
func NewHubConfig(overrides map[string]any) (*HubConfig, error) {
	v, err := loadViperConfig(overrides)
	if err != nil {
		return nil, err
	}
	return NewHubConfigFromViper(v)
}

func NewHubConfigFromViper(v *viper.Viper) (*HubConfig, error) {
	err := loadEnv(v)
	if err != nil {
		return nil, err
	}
	return &HubConfig{
		viper: v,
	}, nil
}

func (c *HubConfig) Environment() string {
	return c.viper.GetString("environment")
}

func (c *HubConfig) LogLevel() zerolog.Level {
	if c.viper.GetBool("debug") {
		return zerolog.DebugLevel
	}
	return zerolog.InfoLevel
}

func (c *HubConfig) HubPath() string {
	return c.viper.GetString("hub_path")
}

// Addr is the host:port the API listens on.
func (c *HubConfig) Addr() string {
	return net.JoinHostPort(c.viper.GetString("host"), c.viper.GetString("port"))
}

func (c *HubConfig) InstallersPath() string {
	path := c.viper.GetString("installers_path")
	if path == "" {
		return filepath.Join(c.HubPath(), constants.InstallersDirName)
	}
	return path
}

func (c *HubConfig) LogsPath() string {
	path := c.viper.GetString("logs_path")
	if path == "" {
		return filepath.Join(c.HubPath(), constants.LogsDirName)
	}
	return path
}

func (c *HubConfig) PollInterval() time.Duration {
	d := c.viper.GetDuration("poll_interval")
	if d <= 0 {
		return constants.DefaultPollInterval
	}
	return d
}

func (c *HubConfig) LogBackend() string {
	return c.viper.GetString("log_backend")
}

func (c *HubConfig) LogDSN() string {
	return c.viper.GetString("log_dsn")
}

// TLSFiles returns the certificate and key paths. Both are empty when TLS is off.
func (c *HubConfig) TLSFiles() (string, string) {
	return c.viper.GetString("tls_cert_file"), c.viper.GetString("tls_key_file")
}

func (c *HubConfig) OpenTelemetryEnabled() bool {
	return c.viper.GetBool("otel")
}

func (c *HubConfig) Script() (*ScriptConfig, error) {
	cfg := &ScriptConfig{}
	err := c.viper.UnmarshalKey("script", cfg, viper.DecoderConfigOption(
		func(decoderConfig *mapstructure.DecoderConfig) {
			decoderConfig.TagName = "yaml"
		},
	))
	if err != nil {
		log.Error().Err(err).Msg("Failed to unmarshal script config")
		return nil, err
	}
	if cfg.Interpreter == "" {
		cfg.Interpreter = scriptDefaults.Interpreter
	}
	if cfg.MaxConcurrent < 0 {
		cfg.MaxConcurrent = scriptDefaults.MaxConcurrent
	}
	return cfg, nil
}

var scriptDefaults = ScriptConfig{
	Interpreter:   script.DefaultInterpreter,
	MaxConcurrent: script.DefaultMaxConcurrent,
}

// Helper functions

func homedir() (string, error) {
	usr, err := user.Current()
	if err != nil {
		return "", err
	}
	return usr.HomeDir, nil
}
