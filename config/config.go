// Package config loads server settings from a YAML file, a .env file and the
// process environment, in increasing order of precedence.
package config

import (
	"fmt"
	"slices"
	"strings"
	"time"
)

// DefaultEnvironment is selected when neither the config file nor ORACLE_ENV
// names an environment.
const DefaultEnvironment = "DEV1"

// Config is the fully resolved server configuration.
type Config struct {
	Environment  string                 `yaml:"environment"`
	Environments map[string]Environment `yaml:"environments"`
	Timeouts     Timeouts               `yaml:"timeouts"`
	Retry        Retry                  `yaml:"retry"`
	Auth         Auth                   `yaml:"auth"`
	Reports      Reports                `yaml:"reports"`
	OutputDir    string                 `yaml:"output_dir"`
	Store        Store                  `yaml:"store"`
	Logging      Logging                `yaml:"logging"`
	Telemetry    Telemetry              `yaml:"telemetry"`

	// Source is the config file that was loaded, empty when none was found.
	Source string `yaml:"-"`
}

// Environment holds the Oracle Fusion endpoints and OAuth client of one pod.
type Environment struct {
	BaseURL string `yaml:"base_url"`
	// IdentityDomain is the IDCS tenant host prefix (idcs-...). When set it
	// fills AuthURL and TokenURL if they are blank.
	IdentityDomain string `yaml:"identity_domain"`
	AuthURL        string `yaml:"auth_url"`
	TokenURL       string `yaml:"token_url"`
	ClientID       string `yaml:"client_id"`
	Scope          string `yaml:"scope"`
}

// Timeouts bound tool calls and individual Oracle HTTP requests.
type Timeouts struct {
	Tool    time.Duration `yaml:"tool"`
	Request time.Duration `yaml:"request"`
	Connect time.Duration `yaml:"connect"`
}

// Retry configures retries of transient Oracle failures.
type Retry struct {
	MaxAttempts int           `yaml:"max_attempts"`
	Backoff     time.Duration `yaml:"backoff"`
}

// Auth configures the OAuth authorization code flow.
type Auth struct {
	RedirectURL  string        `yaml:"redirect_url"`
	LoginTimeout time.Duration `yaml:"login_timeout"`
	ExpiryBuffer time.Duration `yaml:"expiry_buffer"`
	// Interactive enables opening a browser from inside a tool call when no
	// usable token exists. Pointer so an explicit false survives defaults.
	Interactive *bool `yaml:"interactive"`
}

// InteractiveEnabled reports whether browser login may start during a tool call.
func (a Auth) InteractiveEnabled() bool {
	return a.Interactive == nil || *a.Interactive
}

// Reports configures BI Publisher report downloads.
type Reports struct {
	DownloadsDir string `yaml:"downloads_dir"`
	ChunkSize    int    `yaml:"chunk_size"`
	// Retention removes downloaded report files older than this. Zero keeps
	// them forever.
	Retention         time.Duration `yaml:"retention"`
	RetentionSchedule string        `yaml:"retention_schedule"`
}

// Store configures the SQLite state database.
type Store struct {
	Path string `yaml:"path"`
	// SecretKey seeds the key that encrypts stored tokens. When empty the key
	// is derived from the local user, host and database path.
	SecretKey string `yaml:"secret_key"`
}

// Logging mirrors the MCP_DEBUG_* environment variables.
type Logging struct {
	Enabled  bool   `yaml:"enabled"`
	Level    string `yaml:"level"`
	Location string `yaml:"location"`
}

// Telemetry configures OpenTelemetry export.
type Telemetry struct {
	OTLPEndpoint string `yaml:"otlp_endpoint"`
	ServiceName  string `yaml:"service_name"`
}

// Default returns the built-in configuration before file and env overrides.
func Default() Config {
	return Config{
		Environment:  DefaultEnvironment,
		Environments: map[string]Environment{},
		Timeouts: Timeouts{
			Tool:    180 * time.Second,
			Request: 180 * time.Second,
			Connect: 60 * time.Second,
		},
		Retry: Retry{MaxAttempts: 3, Backoff: 500 * time.Millisecond},
		Auth: Auth{
			RedirectURL:  "http://127.0.0.1:3009/callback",
			LoginTimeout: 5 * time.Minute,
			ExpiryBuffer: 5 * time.Minute,
		},
		Reports: Reports{
			DownloadsDir:      "~/Downloads",
			ChunkSize:         5000,
			RetentionSchedule: "0 * * * *",
		},
		OutputDir: "output",
		Store:     Store{Path: "~/.mcp-oracle-scm/state.db"},
		Logging:   Logging{Level: "ERROR", Location: "~/mcp_logs"},
		Telemetry: Telemetry{ServiceName: "mcp-oracle-scm"},
	}
}

// EnvironmentNames returns the configured environment names, sorted.
func (c Config) EnvironmentNames() []string {
	names := make([]string, 0, len(c.Environments))
	for name := range c.Environments {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// ActiveEnvironment returns the selected environment and checks it carries
// everything the Oracle clients need.
func (c Config) ActiveEnvironment() (Environment, error) {
	env, ok := c.Environments[c.Environment]
	if !ok {
		return Environment{}, fmt.Errorf("oracle environment %q is not configured", c.Environment)
	}
	var missing []string
	if env.BaseURL == "" {
		missing = append(missing, "base_url")
	}
	if env.AuthURL == "" {
		missing = append(missing, "auth_url")
	}
	if env.TokenURL == "" {
		missing = append(missing, "token_url")
	}
	if env.ClientID == "" {
		missing = append(missing, "client_id")
	}
	if len(missing) > 0 {
		return Environment{}, fmt.Errorf("oracle environment %q is missing %s", c.Environment, strings.Join(missing, ", "))
	}
	return env, nil
}

func (e Environment) withDerivedURLs() Environment {
	e.BaseURL = strings.TrimRight(e.BaseURL, "/")
	if domain := strings.TrimSpace(e.IdentityDomain); domain != "" {
		base := fmt.Sprintf("https://%s.identity.oraclecloud.com/oauth2/v1", domain)
		if e.AuthURL == "" {
			e.AuthURL = base + "/authorize"
		}
		if e.TokenURL == "" {
			e.TokenURL = base + "/token"
		}
	}
	return e
}
