package scm

import (
	"context"
	_ "embed"

	"github.com/petal-labs/mcp-oracle-scm/tool/mcp"
)

//go:embed instructions.md
var instructions string

// Instructions returns the routing guidance sent in the initialize result.
func Instructions() string {
	return instructions
}

// AppConfigURI is the URI of the server description resource.
const AppConfigURI = "config://app"

// Module status values reported by config://app.
const (
	ModuleActive  = "active"
	ModulePlanned = "planned"
)

// ToolInfo describes one tool in config://app.
type ToolInfo struct {
	Description string   `json:"description"`
	Features    []string `json:"features"`
}

// ModuleInfo describes one functional module in config://app.
type ModuleInfo struct {
	Status string              `json:"status"`
	Tools  map[string]ToolInfo `json:"tools"`
}

// AppConfig is the config://app payload.
type AppConfig struct {
	Name        string `json:"name"`
	Version     string `json:"version"`
	Description string `json:"description"`
	Environment struct {
		Current   string   `json:"current"`
		Available []string `json:"available"`
	} `json:"environment"`
	Modules map[string]ModuleInfo `json:"modules"`
}

// AppConfig describes the server, its environment and every tool by module.
func (s *Service) AppConfig() AppConfig {
	cfg := AppConfig{
		Name:        "Oracle SCM MCP Server",
		Version:     s.version,
		Description: "MCP server for Oracle SCM integration",
		Modules:     map[string]ModuleInfo{},
	}
	cfg.Environment.Current = s.environment
	cfg.Environment.Available = append([]string{}, s.environments...)
	for _, module := range moduleOrder {
		cfg.Modules[module] = ModuleInfo{Status: ModuleActive, Tools: map[string]ToolInfo{}}
	}
	for _, t := range s.catalog() {
		cfg.Modules[t.module].Tools[t.descriptor.Name] = ToolInfo{
			Description: t.descriptor.Description,
			Features:    t.features,
		}
	}
	cfg.Modules["supply_chain_planning"] = ModuleInfo{Status: ModulePlanned, Tools: map[string]ToolInfo{}}
	return cfg
}

// Resources returns the MCP resources served next to the tools.
func (s *Service) Resources() []mcp.Resource {
	return []mcp.Resource{{
		URI:         AppConfigURI,
		Name:        "app",
		Description: "Server configuration, environment and available tools",
		MimeType:    "application/json",
		Read: func(context.Context) (any, error) {
			return s.AppConfig(), nil
		},
	}}
}
