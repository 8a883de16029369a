// Package config loads Reddit API credentials and client settings.
//
// Values are layered, later sources overriding earlier ones:
//  1. built-in defaults
//  2. an optional YAML file
//  3. an optional .env file
//  4. the process environment
//
// Every key is also addressable as an environment variable: client_id is read
// from REDDIT_CLIENT_ID, requests_per_minute from REDDIT_REQUESTS_PER_MINUTE.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	pkgerrs "github.com/jamesprial/redditlatest/pkg/errors"
)

// DefaultEnvPrefix is the prefix shared by every environment variable.
const DefaultEnvPrefix = "REDDIT_"

// DefaultEnvFile is read when present; a missing file is not an error.
const DefaultEnvFile = ".env"

// Defaults for the optional settings.
const (
	DefaultBaseURL           = "https://oauth.reddit.com/"
	DefaultAuthURL           = "https://www.reddit.com/"
	DefaultTimeout           = 30 * time.Second
	DefaultRequestsPerMinute = 60
	DefaultBurst             = 10
	DefaultSubreddit         = "Python"
	DefaultLimit             = 5
)

// Keys of the required credentials, in reporting order.
var requiredKeys = []string{"client_id", "client_secret", "username", "password", "user_agent"}

// Credentials are the five secrets needed to act as a Reddit script app.
type Credentials struct {
	ClientID     string `koanf:"client_id"`
	ClientSecret string `koanf:"client_secret"`
	Username     string `koanf:"username"`
	Password     string `koanf:"password"`
	UserAgent    string `koanf:"user_agent"`
}

// NewCredentials builds a credential set, failing if any value is empty.
func NewCredentials(clientID, clientSecret, username, password, userAgent string) (Credentials, error) {
	c := Credentials{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		Username:     username,
		Password:     password,
		UserAgent:    userAgent,
	}
	if err := c.Validate(); err != nil {
		return Credentials{}, err
	}
	return c, nil
}

// Validate reports every empty field at once, by its environment variable name.
func (c Credentials) Validate() error {
	return c.validate(DefaultEnvPrefix)
}

func (c Credentials) validate(prefix string) error {
	values := []string{c.ClientID, c.ClientSecret, c.Username, c.Password, c.UserAgent}

	var missing []string
	for i, v := range values {
		if v == "" {
			missing = append(missing, envName(prefix, requiredKeys[i]))
		}
	}
	if len(missing) > 0 {
		return &pkgerrs.ConfigError{Missing: missing}
	}
	return nil
}

// Settings are the optional knobs; all have defaults.
type Settings struct {
	BaseURL           string        `koanf:"base_url"`
	AuthURL           string        `koanf:"auth_url"`
	Timeout           time.Duration `koanf:"timeout"`
	RequestsPerMinute float64       `koanf:"requests_per_minute"`
	Burst             int           `koanf:"burst"`
	Subreddit         string        `koanf:"subreddit"`
	Limit             int           `koanf:"limit"`
}

// Config is the fully resolved configuration.
type Config struct {
	Credentials `koanf:",squash"`
	Settings    `koanf:",squash"`
}

// Store resolves configuration from its layered sources.
type Store struct {
	envPrefix  string
	envFile    string
	configFile string
	logger     *slog.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithEnvPrefix sets the environment variable prefix.
func WithEnvPrefix(prefix string) Option {
	return func(s *Store) {
		s.envPrefix = prefix
	}
}

// WithEnvFile sets the .env file path. An empty path disables the layer.
func WithEnvFile(path string) Option {
	return func(s *Store) {
		s.envFile = path
	}
}

// WithConfigFile sets the YAML configuration file path. Unlike the .env file it
// must exist when given.
func WithConfigFile(path string) Option {
	return func(s *Store) {
		s.configFile = path
	}
}

// WithLogger sets the logger used to report configuration problems.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		s.logger = logger
	}
}

// NewStore creates a Store. By default it reads DefaultEnvFile and the
// REDDIT_ environment.
func NewStore(opts ...Option) *Store {
	s := &Store{
		envPrefix: DefaultEnvPrefix,
		envFile:   DefaultEnvFile,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = slog.New(slog.DiscardHandler)
	}
	return s
}

// Load resolves the configuration. If any credential is missing it logs one
// error line and returns a *errors.ConfigError naming all of them.
func (s *Store) Load() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(mapProvider(defaults()), nil); err != nil {
		return nil, fmt.Errorf("load defaults: %w", err)
	}

	if s.configFile != "" {
		if err := k.Load(file.Provider(s.configFile), yaml.Parser()); err != nil {
			return nil, &pkgerrs.ConfigError{Field: "config", Message: fmt.Sprintf("load %s: %v", s.configFile, err)}
		}
	}

	if s.envFile != "" {
		values, err := s.readEnvFile()
		if err != nil {
			return nil, &pkgerrs.ConfigError{Field: "env_file", Message: fmt.Sprintf("load %s: %v", s.envFile, err)}
		}
		if len(values) > 0 {
			if err := k.Load(mapProvider(values), nil); err != nil {
				return nil, fmt.Errorf("load env file: %w", err)
			}
		}
	}

	if err := k.Load(env.Provider(s.envPrefix, ".", s.keyFor), nil); err != nil {
		return nil, fmt.Errorf("load env: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, &pkgerrs.ConfigError{Message: fmt.Sprintf("decode configuration: %v", err)}
	}

	if err := cfg.Credentials.validate(s.envPrefix); err != nil {
		var cfgErr *pkgerrs.ConfigError
		if errors.As(err, &cfgErr) {
			s.logger.Error("missing required API credentials", "missing", strings.Join(cfgErr.Missing, ", "))
		}
		return nil, err
	}

	cfg.Settings.normalize()
	return &cfg, nil
}

// readEnvFile returns the prefixed entries of the .env file as koanf keys. The
// process environment is left untouched.
func (s *Store) readEnvFile() (map[string]any, error) {
	raw, err := godotenv.Read(s.envFile)
	if errors.Is(err, fs.ErrNotExist) {
		s.logger.Debug("no env file", "path", s.envFile)
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	values := make(map[string]any, len(raw))
	for name, v := range raw {
		if key := s.keyFor(name); key != "" {
			values[key] = v
		}
	}
	return values, nil
}

// keyFor maps REDDIT_CLIENT_ID to client_id. Names without the prefix map to "".
func (s *Store) keyFor(name string) string {
	if !strings.HasPrefix(name, s.envPrefix) {
		return ""
	}
	return strings.ToLower(strings.TrimPrefix(name, s.envPrefix))
}

func (st *Settings) normalize() {
	if st.BaseURL == "" {
		st.BaseURL = DefaultBaseURL
	}
	if st.AuthURL == "" {
		st.AuthURL = DefaultAuthURL
	}
	if st.Timeout <= 0 {
		st.Timeout = DefaultTimeout
	}
	if st.RequestsPerMinute <= 0 {
		st.RequestsPerMinute = DefaultRequestsPerMinute
	}
	if st.Burst <= 0 {
		st.Burst = DefaultBurst
	}
	if st.Subreddit == "" {
		st.Subreddit = DefaultSubreddit
	}
}

func defaults() map[string]any {
	return map[string]any{
		"base_url":            DefaultBaseURL,
		"auth_url":            DefaultAuthURL,
		"timeout":             DefaultTimeout.String(),
		"requests_per_minute": DefaultRequestsPerMinute,
		"burst":               DefaultBurst,
		"subreddit":           DefaultSubreddit,
		"limit":               DefaultLimit,
	}
}

func envName(prefix, key string) string {
	return prefix + strings.ToUpper(key)
}
