package cli

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/Masterminds/semver/v3"
	"github.com/go-playground/validator/v10"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// DefaultConfigFile is the default name of the config file
const DefaultConfigFile = "config.yaml"

// ConfigFormatVersion is written to new config files.
const ConfigFormatVersion = "0.1.0"

// configVersionConstraint accepts any 0.1.x config file.
const configVersionConstraint = "~0.1"

// DefaultServerURL is the TMDB v3 API root.
const DefaultServerURL = "https://api.themoviedb.org/3"

// Environment variables that override the config file.
const (
	EnvAPIKey    = "TMDB_API_KEY"
	EnvServerURL = "TMDB_SERVER_URL"
	EnvUsername  = "TMDB_USERNAME"
)

// Config represents the configuration for the tmdbauth CLI
type Config struct {
	// Version of the configuration file format
	Version string `yaml:"version" toml:"version" json:"version" validate:"required"`
	// ServerURL is the TMDB API root, including the /3 version segment
	ServerURL string `yaml:"server_url" toml:"server_url" json:"server_url" validate:"required,url"`
	// APIKey is the TMDB v3 API key sent with every request
	APIKey string `yaml:"api_key" toml:"api_key" json:"api_key" validate:"required"`
	// Username is used when login is run without --username
	Username string `yaml:"username,omitempty" toml:"username,omitempty" json:"username,omitempty"`
	// Timeout bounds each request, e.g. "10s"
	Timeout string `yaml:"timeout,omitempty" toml:"timeout,omitempty" json:"timeout,omitempty"`
	// LogLevel is the default log level
	LogLevel string `yaml:"log_level,omitempty" toml:"log_level,omitempty" json:"log_level,omitempty" validate:"omitempty,oneof=trace debug info warn error disabled"`
	// ValidateMethod is the HTTP method of the credential validation call
	ValidateMethod string `yaml:"validate_method,omitempty" toml:"validate_method,omitempty" json:"validate_method,omitempty" validate:"omitempty,oneof=GET POST"`
}

var config *Config

var configValidator = newConfigValidator()

// newConfigValidator reports fields by their config file names.
func newConfigValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("yaml"), ",")
		return name
	})
	return v
}

// GetDefaultConfigPath returns the default path for the config file
// It uses the OS-specific config directory (e.g., ~/.config/tmdbauth on Linux)
func GetDefaultConfigPath() (string, error) {
	configDir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user config directory: %w", err)
	}
	return filepath.Join(configDir, "tmdbauth", DefaultConfigFile), nil
}

func isTOML(file string) bool {
	return strings.EqualFold(filepath.Ext(file), ".toml")
}

// ParseConfig decodes a config file body. TOML is used when file ends in .toml,
// YAML otherwise.
func ParseConfig(file string, data []byte) (*Config, error) {
	data, err := PreprocessConfig(data)
	if err != nil {
		return nil, err
	}

	var c Config
	if isTOML(file) {
		if _, err := toml.Decode(string(data), &c); err != nil {
			return nil, fmt.Errorf("unable to parse config file: %w", err)
		}
	} else if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("unable to parse config file: %w", err)
	}
	return &c, nil
}

// LoadConfig loads the configuration from the specified file
// If no file is specified, it uses the default config location
func LoadConfig(file string) error {
	if file == "" {
		var err error
		file, err = GetDefaultConfigPath()
		if err != nil {
			return fmt.Errorf("failed to get default config path: %w", err)
		}
	}

	loadDotEnv(filepath.Dir(file))

	raw, err := os.ReadFile(file)
	if err != nil {
		return fmt.Errorf("unable to read config file: %w", err)
	}

	c, err := ParseConfig(file, raw)
	if err != nil {
		return err
	}
	c.applyEnv()
	c.applyDefaults()

	if err := c.ValidateConfig(); err != nil {
		return err
	}

	config = c
	return nil
}

// GetConfig returns the current configuration
func GetConfig() *Config {
	return config
}

func (cfg *Config) applyEnv() {
	if v := os.Getenv(EnvAPIKey); v != "" {
		cfg.APIKey = v
	}
	if v := os.Getenv(EnvServerURL); v != "" {
		cfg.ServerURL = v
	}
	if v := os.Getenv(EnvUsername); v != "" {
		cfg.Username = v
	}
}

func (cfg *Config) applyDefaults() {
	if cfg.Version == "" {
		cfg.Version = ConfigFormatVersion
	}
	if cfg.ServerURL == "" {
		cfg.ServerURL = DefaultServerURL
	}
	cfg.ServerURL = MorphServer(cfg.ServerURL)
	cfg.ValidateMethod = strings.ToUpper(cfg.ValidateMethod)
}

// WriteConfig writes the configuration to the specified file, as TOML when the file
// ends in .toml
func (cfg *Config) WriteConfig(file string) error {
	if file == "" {
		return errors.New("file path cannot be empty")
	}

	err := os.MkdirAll(filepath.Dir(file), 0700)
	if err != nil {
		return fmt.Errorf("unable to create config directory: %w", err)
	}

	var data []byte
	if isTOML(file) {
		var buf bytes.Buffer
		if err := toml.NewEncoder(&buf).Encode(cfg); err != nil {
			return fmt.Errorf("unable to generate configuration: %w", err)
		}
		data = buf.Bytes()
	} else {
		data, err = yaml.Marshal(cfg)
		if err != nil {
			return fmt.Errorf("unable to generate configuration: %w", err)
		}
	}

	err = os.WriteFile(file, data, os.FileMode(0600))
	if err != nil {
		return fmt.Errorf("unable to write config file: %w", err)
	}

	return nil
}

// ValidateConfig validates the configuration
// Checks for required fields, the file format version and the timeout
func (cfg *Config) ValidateConfig() error {
	if err := configValidator.Struct(cfg); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return fmt.Errorf("invalid config: %s failed %q validation", fe.Field(), fe.Tag())
		}
		return fmt.Errorf("invalid config: %w", err)
	}
	if !strings.HasPrefix(cfg.ServerURL, "http://") && !strings.HasPrefix(cfg.ServerURL, "https://") {
		return errors.New("server url must start with http:// or https://")
	}
	if !IsConfigVersionCompatible(cfg.Version) {
		return fmt.Errorf("unsupported config file format version: %s", cfg.Version)
	}
	if cfg.Timeout != "" {
		if d, err := time.ParseDuration(cfg.Timeout); err != nil || d <= 0 {
			return fmt.Errorf("invalid timeout: %s", cfg.Timeout)
		}
	}
	return nil
}

// IsConfigVersionCompatible reports whether a config file written in format version
// can be read.
func IsConfigVersionCompatible(version string) bool {
	v, err := semver.NewVersion(version)
	if err != nil {
		return false
	}
	c, err := semver.NewConstraint(configVersionConstraint)
	if err != nil {
		return false
	}
	return c.Check(v)
}

// Print prints the configuration in a human-readable format, with the API key redacted
func (cfg *Config) Print() {
	fmt.Printf("Server:   %s\n", cfg.ServerURL)
	fmt.Printf("API key:  %s\n", redact(cfg.APIKey))
	if cfg.Username != "" {
		fmt.Printf("Username: %s\n", cfg.Username)
	}
	fmt.Printf("Timeout:  %s\n", cfg.GetTimeout())
	fmt.Printf("Validate: %s\n", cfg.GetValidateMethod())
}

// Redacted returns a copy that is safe to print.
func (cfg *Config) Redacted() Config {
	c := *cfg
	c.APIKey = redact(c.APIKey)
	return c
}

func redact(s string) string {
	if len(s) <= 4 {
		return strings.Repeat("*", len(s))
	}
	return strings.Repeat("*", len(s)-4) + s[len(s)-4:]
}

// MorphServer ensures the server URL is properly formatted
// Adds https:// prefix if missing and removes trailing slashes
func MorphServer(server string) string {
	if server == "" {
		return server
	}

	// Remove any trailing slashes
	server = strings.TrimRight(server, "/")

	// Add https:// if no protocol is specified
	if !strings.HasPrefix(server, "http://") && !strings.HasPrefix(server, "https://") {
		server = "https://" + server
	}

	return server
}

// GetServerURL returns the properly formatted server URL
func (cfg *Config) GetServerURL() string {
	return MorphServer(cfg.ServerURL)
}

// GetAPIKey returns the API key from the configuration
func (cfg *Config) GetAPIKey() string {
	return cfg.APIKey
}

// GetTimeout returns the request timeout, 0 when unset so the client default applies
func (cfg *Config) GetTimeout() time.Duration {
	d, err := time.ParseDuration(cfg.Timeout)
	if err != nil {
		return 0
	}
	return d
}

// GetValidateMethod returns GET or POST
func (cfg *Config) GetValidateMethod() string {
	if cfg.ValidateMethod == http.MethodPost {
		return http.MethodPost
	}
	return http.MethodGet
}

// configCmd represents the config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage CLI configuration",
	Long: `Manage CLI configuration settings like the server URL and API key.

Examples:
  tmdbauth config --api-key 0123456789abcdef
  tmdbauth config --server http://localhost:8089/3 --username alice
  tmdbauth config show`,
	RunE: func(cmd *cobra.Command, args []string) error {
		server, _ := cmd.Flags().GetString("server")
		apiKey, _ := cmd.Flags().GetString("api-key")
		username, _ := cmd.Flags().GetString("username")
		if server == "" && apiKey == "" && username == "" {
			// If no specific flag is provided, show help
			cmd.Help()
			return nil
		}
		return setConfig(configFile, server, apiKey, username)
	},
}

// configShowCmd represents the config show command
var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the current configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := LoadConfig(configFile); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return errors.New("tmdbauth config file not found")
			}
			return err
		}
		cfg := GetConfig()
		if jsonOutput {
			printJSON(map[string]any{
				"config_file": configFile,
				"config":      cfg.Redacted(),
			})
		} else {
			fmt.Printf("Config file: %s\n", configFile)
			cfg.Print()
		}
		return nil
	},
}

func init() {
	// Add flags to config command
	configCmd.Flags().String("server", "", "Set the TMDB API URL (default "+DefaultServerURL+")")
	configCmd.Flags().String("api-key", "", "Set the TMDB API key")
	configCmd.Flags().String("username", "", "Set the default username")

	configCmd.AddCommand(configShowCmd)
	rootCmd.AddCommand(configCmd)
}

// setConfig updates the config file, creating it if needed. Empty values leave the
// existing setting in place.
func setConfig(configPath, server, apiKey, username string) error {
	if configPath == "" {
		var err error
		configPath, err = GetDefaultConfigPath()
		if err != nil {
			return fmt.Errorf("failed to get default config path: %w", err)
		}
	}

	cfg := &Config{Version: ConfigFormatVersion}
	if raw, err := os.ReadFile(configPath); err == nil {
		existing, err := ParseConfig(configPath, raw)
		if err != nil {
			return err
		}
		cfg = existing
	} else if !os.IsNotExist(err) {
		return fmt.Errorf("unable to read config file: %w", err)
	}

	if server != "" {
		cfg.ServerURL = server
	}
	if apiKey != "" {
		cfg.APIKey = apiKey
	}
	if username != "" {
		cfg.Username = username
	}
	cfg.applyDefaults()

	if err := cfg.ValidateConfig(); err != nil {
		return err
	}
	if err := cfg.WriteConfig(configPath); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	if jsonOutput {
		printJSON(map[string]string{
			"server":      cfg.ServerURL,
			"config_file": configPath,
		})
	} else {
		okLabel.Printf("Server configured: %s\n", cfg.ServerURL)
		fmt.Printf("Config file: %s\n", configPath)
	}

	return nil
}
