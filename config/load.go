package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	projectConfigName = "mcp-oracle-scm.yaml"
	homeConfigDir     = ".mcp-oracle-scm"
	homeConfigName    = "config.yaml"
)

// LoadOptions controls where Load looks for settings.
type LoadOptions struct {
	// ConfigPath is an explicit config file; it must exist when set.
	ConfigPath string
	// LookupEnv defaults to os.LookupEnv.
	LookupEnv func(string) (string, bool)
	// WorkDir and HomeDir default to the process working and home directories.
	WorkDir string
	HomeDir string
}

// DiscoverConfigPath resolves the config location with first-match semantics:
// explicit path, ./mcp-oracle-scm.yaml, ~/.mcp-oracle-scm/config.yaml.
func DiscoverConfigPath(explicitPath string) (string, bool, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return "", false, fmt.Errorf("resolve working directory: %w", err)
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", false, fmt.Errorf("resolve user home: %w", err)
	}
	return DiscoverConfigPathFrom(explicitPath, cwd, homeDir)
}

// DiscoverConfigPathFrom is a testable variant of DiscoverConfigPath.
func DiscoverConfigPathFrom(explicitPath, cwd, homeDir string) (string, bool, error) {
	explicit := strings.TrimSpace(explicitPath)
	candidates := make([]string, 0, 2)
	if explicit != "" {
		candidates = append(candidates, filepath.Clean(explicit))
	} else {
		candidates = append(candidates,
			filepath.Join(cwd, projectConfigName),
			filepath.Join(homeDir, homeConfigDir, homeConfigName),
		)
	}

	for _, candidate := range candidates {
		info, err := os.Stat(candidate)
		if err == nil && !info.IsDir() {
			return candidate, true, nil
		}
		if errors.Is(err, os.ErrNotExist) {
			if explicit != "" {
				return "", false, fmt.Errorf("config file %q not found", candidate)
			}
			continue
		}
		if err != nil {
			return "", false, fmt.Errorf("checking config path %q: %w", candidate, err)
		}
	}
	return "", false, nil
}

// Load resolves the configuration: defaults, then the discovered YAML file,
// then environment variables.
func Load(opts LoadOptions) (Config, error) {
	lookup := opts.LookupEnv
	if lookup == nil {
		lookup = os.LookupEnv
	}
	homeDir := opts.HomeDir
	if homeDir == "" {
		if dir, err := os.UserHomeDir(); err == nil {
			homeDir = dir
		}
	}
	workDir := opts.WorkDir
	if workDir == "" {
		if dir, err := os.Getwd(); err == nil {
			workDir = dir
		}
	}

	cfg := Default()
	path, found, err := DiscoverConfigPathFrom(opts.ConfigPath, workDir, homeDir)
	if err != nil {
		return Config{}, err
	}
	if found {
		if err := loadFile(path, &cfg); err != nil {
			return Config{}, err
		}
		cfg.Source = path
	}

	cfg.Environments = upperKeys(cfg.Environments)
	applyEnv(&cfg, lookup)
	if err := normalize(&cfg, homeDir, lookup); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func loadFile(path string, cfg *Config) error {
	// #nosec G304 -- path resolved from explicit local config discovery.
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading config %q: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parsing config %q: %w", path, err)
	}
	return nil
}

func applyEnv(cfg *Config, lookup func(string) (string, bool)) {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
			*dst = strings.TrimSpace(v)
		}
	}

	str("ORACLE_ENV", &cfg.Environment)
	cfg.Environment = strings.ToUpper(strings.TrimSpace(cfg.Environment))

	env := cfg.Environments[cfg.Environment]
	before := env
	str("ORACLE_BASE_URL", &env.BaseURL)
	str("ORACLE_IDENTITY_DOMAIN", &env.IdentityDomain)
	str("ORACLE_AUTH_URL", &env.AuthURL)
	str("ORACLE_TOKEN_URL", &env.TokenURL)
	str("ORACLE_CLIENT_ID", &env.ClientID)
	str("ORACLE_SCOPE", &env.Scope)
	if env != before {
		if cfg.Environments == nil {
			cfg.Environments = map[string]Environment{}
		}
		cfg.Environments[cfg.Environment] = env
	}

	var enabled string
	str("MCP_DEBUG_ENABLED", &enabled)
	if enabled != "" {
		cfg.Logging.Enabled = strings.EqualFold(enabled, "yes")
	}
	str("MCP_DEBUG_LEVEL", &cfg.Logging.Level)
	str("MCP_DEBUG_LOCATION", &cfg.Logging.Location)

	str("MCP_ORACLE_SCM_STORE", &cfg.Store.Path)
	str("MCP_ORACLE_SCM_SECRET_KEY", &cfg.Store.SecretKey)
	str("MCP_ORACLE_SCM_DOWNLOADS", &cfg.Reports.DownloadsDir)
	str("OTEL_EXPORTER_OTLP_ENDPOINT", &cfg.Telemetry.OTLPEndpoint)

	var toolTimeout string
	str("MCP_TOOL_TIMEOUT", &toolTimeout)
	if d, err := time.ParseDuration(toolTimeout); err == nil && d > 0 {
		cfg.Timeouts.Tool = d
	}
}

func normalize(cfg *Config, homeDir string, lookup func(string) (string, bool)) error {
	expand := func(value string) string {
		return expandHome(expandEnvValue(value, lookup), homeDir)
	}

	envs := make(map[string]Environment, len(cfg.Environments))
	for name, env := range cfg.Environments {
		for _, field := range []*string{&env.BaseURL, &env.IdentityDomain, &env.AuthURL, &env.TokenURL, &env.ClientID, &env.Scope} {
			*field = expandEnvValue(*field, lookup)
		}
		envs[name] = env.withDerivedURLs()
	}
	cfg.Environments = envs

	if cfg.Environment == "" {
		cfg.Environment = DefaultEnvironment
	}
	if len(cfg.Environments) > 0 {
		if _, ok := cfg.Environments[cfg.Environment]; !ok {
			return fmt.Errorf("invalid Oracle environment: %s. Valid values are: %s",
				cfg.Environment, strings.Join(cfg.EnvironmentNames(), ", "))
		}
	}

	cfg.Reports.DownloadsDir = expand(cfg.Reports.DownloadsDir)
	cfg.OutputDir = expand(cfg.OutputDir)
	cfg.Store.Path = expand(cfg.Store.Path)
	cfg.Logging.Location = expand(cfg.Logging.Location)
	for _, field := range []*string{
		&cfg.Auth.RedirectURL,
		&cfg.Reports.RetentionSchedule,
		&cfg.Store.SecretKey,
		&cfg.Logging.Level,
		&cfg.Telemetry.OTLPEndpoint,
		&cfg.Telemetry.ServiceName,
	} {
		*field = expandEnvValue(*field, lookup)
	}

	if cfg.Reports.ChunkSize <= 0 {
		cfg.Reports.ChunkSize = Default().Reports.ChunkSize
	}
	if cfg.Retry.MaxAttempts <= 0 {
		cfg.Retry.MaxAttempts = 1
	}
	if cfg.Timeouts.Tool < 0 || cfg.Timeouts.Request < 0 {
		return errors.New("timeouts must not be negative")
	}
	return nil
}

func upperKeys(envs map[string]Environment) map[string]Environment {
	out := make(map[string]Environment, len(envs))
	for name, env := range envs {
		out[strings.ToUpper(strings.TrimSpace(name))] = env
	}
	return out
}

func expandEnvValue(value string, lookup func(string) (string, bool)) string {
	return os.Expand(value, func(key string) string {
		v, _ := lookup(key)
		return v
	})
}

func expandHome(p, homeDir string) string {
	if p == "~" {
		return homeDir
	}
	if strings.HasPrefix(p, "~/") {
		return filepath.Join(homeDir, p[2:])
	}
	return p
}
