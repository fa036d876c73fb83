// Package config loads the library vendor executable configuration.
//
// Values are layered: built-in defaults, then an optional YAML file, then
// environment variables with the MLLE_ prefix (for example
// MLLE_LISTEN_ADDR or MLLE_LIBRARY_SECRET). The result is validated before
// it is returned.
package config

import (
	"encoding/hex"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/backkem/mlle/pkg/auth"
	"github.com/backkem/mlle/pkg/keymask"
	"github.com/backkem/mlle/pkg/license"
	"github.com/go-playground/validator/v10"
	"github.com/kelseyhightower/envconfig"
	"github.com/pion/logging"
	"gopkg.in/yaml.v2"
)

// EnvPrefix prefixes every environment variable.
const EnvPrefix = "MLLE"

// Config is the complete configuration.
type Config struct {
	Listen    ListenConfig    `yaml:"listen" envconfig:"LISTEN"`
	Library   LibraryConfig   `yaml:"library" envconfig:"LIBRARY"`
	Auth      AuthConfig      `yaml:"auth" envconfig:"AUTH"`
	License   LicenseConfig   `yaml:"license" envconfig:"LICENSE"`
	Admin     AdminConfig     `yaml:"admin" envconfig:"ADMIN"`
	Discovery DiscoveryConfig `yaml:"discovery" envconfig:"DISCOVERY"`
	Log       LogConfig       `yaml:"log" envconfig:"LOG"`
}

// ListenConfig configures the protocol listener.
type ListenConfig struct {
	Addr             string        `yaml:"addr" envconfig:"ADDR" validate:"required,hostname_port"`
	CertFile         string        `yaml:"cert_file" envconfig:"CERT_FILE" validate:"required_with=KeyFile"`
	KeyFile          string        `yaml:"key_file" envconfig:"KEY_FILE" validate:"required_with=CertFile"`
	HandshakeTimeout time.Duration `yaml:"handshake_timeout" envconfig:"HANDSHAKE_TIMEOUT" validate:"gte=0"`
	AcceptRate       float64       `yaml:"accept_rate" envconfig:"ACCEPT_RATE" validate:"gte=0"`
	AcceptBurst      int           `yaml:"accept_burst" envconfig:"ACCEPT_BURST" validate:"gte=0"`
	MaxPayload       int64         `yaml:"max_payload" envconfig:"MAX_PAYLOAD" validate:"gte=0"`
}

// LibraryConfig configures where libraries live and how their key is obtained.
type LibraryConfig struct {
	// BaseDir confines LIB paths when set.
	BaseDir string `yaml:"base_dir" envconfig:"BASE_DIR"`

	// Exactly one key source is used: Secret, SecretFile or Passphrase.
	Secret     string `yaml:"secret" envconfig:"SECRET" validate:"omitempty,len=64,hexadecimal"`
	SecretFile string `yaml:"secret_file" envconfig:"SECRET_FILE" validate:"omitempty,file"`
	Passphrase string `yaml:"passphrase" envconfig:"PASSPHRASE"`
	Salt       string `yaml:"salt" envconfig:"SALT" validate:"omitempty,hexadecimal"`
	Iterations int    `yaml:"iterations" envconfig:"ITERATIONS" validate:"gte=0"`
}

// AuthConfig configures which tools may connect.
type AuthConfig struct {
	AllowAny      bool     `yaml:"allow_any" envconfig:"ALLOW_ANY"`
	AllowListFile string   `yaml:"allow_list_file" envconfig:"ALLOW_LIST_FILE" validate:"omitempty,file"`
	Fingerprints  []string `yaml:"fingerprints" envconfig:"FINGERPRINTS" validate:"dive,required"`
}

// LicenseConfig configures the license backend.
type LicenseConfig struct {
	Backend       string         `yaml:"backend" envconfig:"BACKEND" validate:"omitempty,oneof=dummy static"`
	Features      map[string]int `yaml:"features" envconfig:"FEATURES" validate:"dive,keys,required,endkeys,gte=0"`
	GlobalFeature string         `yaml:"global_feature" envconfig:"GLOBAL_FEATURE"`
}

// AdminConfig configures the admin HTTP endpoint. Empty Addr disables it.
type AdminConfig struct {
	Addr string `yaml:"addr" envconfig:"ADDR" validate:"omitempty,hostname_port"`
}

// DiscoveryConfig configures DNS-SD advertisement.
type DiscoveryConfig struct {
	Enabled  bool   `yaml:"enabled" envconfig:"ENABLED"`
	Instance string `yaml:"instance" envconfig:"INSTANCE" validate:"max=63"`
	Vendor   string `yaml:"vendor" envconfig:"VENDOR"`

	// Libraries names the libraries announced in the LIB TXT key.
	Libraries []string `yaml:"libraries" envconfig:"LIBRARIES"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level string `yaml:"level" envconfig:"LEVEL" validate:"oneof=disable error warn info debug trace"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Listen: ListenConfig{
			Addr:             ":7340",
			HandshakeTimeout: 10 * time.Second,
			AcceptRate:       50,
			AcceptBurst:      10,
		},
		License: LicenseConfig{
			Backend: "dummy",
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load returns Default overlaid with the YAML file at path (if path is not
// empty) and then with the environment.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config: %w", err)
		}
		if err := yaml.UnmarshalStrict(data, &cfg); err != nil {
			return nil, fmt.Errorf("config: %s: %w", path, err)
		}
	}

	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("config: environment: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

var validate = validator.New()

// Validate checks field constraints and the rules that span fields.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("%w: %s", ErrInvalid, describe(err))
	}

	sources := 0
	for _, s := range []string{c.Library.Secret, c.Library.SecretFile, c.Library.Passphrase} {
		if s != "" {
			sources++
		}
	}
	if sources > 1 {
		return fmt.Errorf("%w: library.secret, library.secret_file and library.passphrase are exclusive", ErrInvalid)
	}
	if c.Library.Passphrase != "" && c.Library.Salt == "" {
		return fmt.Errorf("%w: library.passphrase requires library.salt", ErrInvalid)
	}
	if c.Auth.AllowAny && (c.Auth.AllowListFile != "" || len(c.Auth.Fingerprints) > 0) {
		return fmt.Errorf("%w: auth.allow_any excludes an allow list", ErrInvalid)
	}
	for _, fp := range c.Auth.Fingerprints {
		if _, err := auth.NormalizeFingerprint(fp); err != nil {
			return fmt.Errorf("%w: auth.fingerprints: %v", ErrInvalid, err)
		}
	}
	return nil
}

// describe flattens validation errors into one line.
func describe(err error) string {
	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return err.Error()
	}
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		field := strings.TrimPrefix(fe.Namespace(), "Config.")
		if fe.Param() != "" {
			parts = append(parts, fmt.Sprintf("%s failed %s=%s", field, fe.Tag(), fe.Param()))
		} else {
			parts = append(parts, fmt.Sprintf("%s failed %s", field, fe.Tag()))
		}
	}
	return strings.Join(parts, "; ")
}

// HasSecret reports whether a library key source is configured.
func (c *Config) HasSecret() bool {
	l := c.Library
	return l.Secret != "" || l.SecretFile != "" || l.Passphrase != ""
}

// SecretProvider builds the library key source.
func (c *Config) SecretProvider() (keymask.SecretProvider, error) {
	l := c.Library
	switch {
	case l.Secret != "":
		return keymask.ParseStaticSecret(l.Secret)
	case l.SecretFile != "":
		data, err := os.ReadFile(l.SecretFile)
		if err != nil {
			return nil, fmt.Errorf("config: %w", err)
		}
		return keymask.ParseStaticSecret(strings.TrimSpace(string(data)))
	case l.Passphrase != "":
		salt, err := hex.DecodeString(l.Salt)
		if err != nil {
			return nil, fmt.Errorf("config: library.salt: %w", err)
		}
		return keymask.PassphraseSecret{Passphrase: l.Passphrase, Salt: salt, Iterations: l.Iterations}, nil
	default:
		return nil, ErrNoSecret
	}
}

// Authorizer builds the tool allow list. With no list configured and
// AllowAny unset, every tool is rejected.
func (c *Config) Authorizer() (*auth.AllowList, error) {
	if c.Auth.AllowAny {
		return auth.AllowAny(), nil
	}

	list, err := auth.NewAllowList(c.Auth.Fingerprints...)
	if err != nil {
		return nil, err
	}
	if c.Auth.AllowListFile != "" {
		file, err := auth.LoadAllowList(c.Auth.AllowListFile)
		if err != nil {
			return nil, err
		}
		list, err = auth.NewAllowList(append(list.Fingerprints(), file.Fingerprints()...)...)
		if err != nil {
			return nil, err
		}
	}
	return list, nil
}

// LicenseFactory builds the license backend factory.
func (c *Config) LicenseFactory() (license.Factory, error) {
	kind, err := license.ParseKind(c.License.Backend)
	if err != nil {
		return nil, err
	}
	return license.NewFactory(kind, c.License.Features)
}

// LoggerFactory builds a pion logger factory at the configured level.
func (c *Config) LoggerFactory() *logging.DefaultLoggerFactory {
	lf := logging.NewDefaultLoggerFactory()
	lf.DefaultLogLevel = ParseLevel(c.Log.Level)
	return lf
}

// ParseLevel maps a level name to a pion log level. Unknown names map to info.
func ParseLevel(s string) logging.LogLevel {
	switch strings.ToLower(s) {
	case "disable":
		return logging.LogLevelDisabled
	case "error":
		return logging.LogLevelError
	case "warn":
		return logging.LogLevelWarn
	case "debug":
		return logging.LogLevelDebug
	case "trace":
		return logging.LogLevelTrace
	default:
		return logging.LogLevelInfo
	}
}
