package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"regexp"

	"gopkg.in/yaml.v3"
)

// Config is the configuration shared by the web and terminal views.
type Config struct {
	// Endpoint is the URL of the backend stream endpoint. The request text is sent in its "message"
	// query field.
	Endpoint     string        `yaml:"endpoint"`
	// MaxEventSize is the largest single stream event accepted, in bytes. Events carry the whole answer
	// so far, so it also bounds the answer length.
	MaxEventSize int           `yaml:"maxEventSize"`
	Port         string        `yaml:"port"`
	Logging      LoggingConfig `yaml:"logging"`
}

// LoggingConfig holds logging configuration. An empty File means standard error.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	File   string `yaml:"file"`
}

const (
	// DefaultEndpoint is where the backend listens unless configured otherwise.
	DefaultEndpoint = "http://127.0.0.1:3000/chat"
	// DefaultPort is the port of the web view.
	DefaultPort = "8080"
	// DefaultMaxEventSize is 8MB.
	DefaultMaxEventSize = 8 << 20

	// EndpointEnv overrides the configured endpoint when set.
	EndpointEnv = "STREAMCHAT_ENDPOINT"

	appDir = "streamchat"
)

var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// Default returns the configuration used when no file exists.
func Default() Config {
	return Config{
		Endpoint:     DefaultEndpoint,
		MaxEventSize: DefaultMaxEventSize,
		Port:         DefaultPort,
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// DefaultPath returns the path of the configuration file in the user's config directory.
func DefaultPath() (string, error) {
	cfgDir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("error getting user config dir: %w", err)
	}
	return filepath.Join(cfgDir, appDir, "config.yaml"), nil
}

// Load reads the configuration at path on top of the defaults. A missing file is not an error.
// ${VAR_NAME} patterns in the file are replaced with environment variables.
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return Config{}, fmt.Errorf("error reading config file: %w", err)
	default:
		if err := yaml.Unmarshal([]byte(expandEnvVars(string(data))), &cfg); err != nil {
			return Config{}, fmt.Errorf("error decoding config file: %w", err)
		}
	}

	if endpoint := os.Getenv(EndpointEnv); endpoint != "" {
		cfg.Endpoint = endpoint
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// Validate checks that the endpoint is an absolute http(s) URL, that the event size limit is positive and
// that a port is set.
func (c Config) Validate() error {
	if c.Endpoint == "" {
		return errors.New("endpoint is required")
	}
	u, err := url.Parse(c.Endpoint)
	if err != nil {
		return fmt.Errorf("endpoint %q is not a valid URL: %w", c.Endpoint, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("endpoint %q must use http or https", c.Endpoint)
	}
	if u.Host == "" {
		return fmt.Errorf("endpoint %q has no host", c.Endpoint)
	}
	if c.MaxEventSize <= 0 {
		return fmt.Errorf("maxEventSize must be positive, got %d", c.MaxEventSize)
	}
	if c.Port == "" {
		return errors.New("port is required")
	}
	return nil
}

func expandEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		return os.Getenv(envVarPattern.FindStringSubmatch(match)[1])
	})
}
