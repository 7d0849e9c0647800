// Package config resolves the directory configuration: where the canonical
// repository lives, which agents are enabled, and the absolute global and
// workspace skill directory for each agent.
package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/mitchellh/mapstructure"
	"github.com/pkg/errors"
	"github.com/spf13/viper"

	skilltypes "github.com/jingkaihe/skillctl/pkg/types/skills"
)

// BasePathEnv overrides the base directory holding the repository, cache and journal
const BasePathEnv = "SKILLCTL_BASE_PATH"

// AgentConfig holds per-agent directory settings
type AgentConfig struct {
	Enabled       bool   `mapstructure:"enabled" json:"enabled" yaml:"enabled"`
	GlobalPath    string `mapstructure:"global_path" json:"global_path" yaml:"global_path"`
	WorkspacePath string `mapstructure:"workspace_path" json:"workspace_path" yaml:"workspace_path"`
}

// CacheConfig controls the scan cache
type CacheConfig struct {
	Enabled bool   `mapstructure:"enabled" json:"enabled" yaml:"enabled"`
	Path    string `mapstructure:"path" json:"path" yaml:"path"`
}

// JournalConfig controls the operation journal
type JournalConfig struct {
	Enabled bool   `mapstructure:"enabled" json:"enabled" yaml:"enabled"`
	Path    string `mapstructure:"path" json:"path" yaml:"path"`
}

// TracingConfig controls OpenTelemetry tracing
type TracingConfig struct {
	Enabled bool    `mapstructure:"enabled" json:"enabled" yaml:"enabled"`
	Sampler string  `mapstructure:"sampler" json:"sampler" yaml:"sampler"`
	Ratio   float64 `mapstructure:"ratio" json:"ratio" yaml:"ratio"`
}

// Config is the fully resolved configuration. All paths are absolute after Load.
type Config struct {
	RepositoryPath string                 `mapstructure:"repository_path" json:"repository_path" yaml:"repository_path"`
	Workspace      string                 `mapstructure:"workspace" json:"workspace" yaml:"workspace"`
	Cache          CacheConfig            `mapstructure:"cache" json:"cache" yaml:"cache"`
	Journal        JournalConfig          `mapstructure:"journal" json:"journal" yaml:"journal"`
	CopyExcludes   []string               `mapstructure:"copy_excludes" json:"copy_excludes" yaml:"copy_excludes"`
	Agents         map[string]AgentConfig `mapstructure:"agents" json:"agents" yaml:"agents"`
	Tracing        TracingConfig          `mapstructure:"tracing" json:"tracing" yaml:"tracing"`
	LogLevel       string                 `mapstructure:"log_level" json:"log_level" yaml:"log_level"`
	LogFormat      string                 `mapstructure:"log_format" json:"log_format" yaml:"log_format"`
}

// BasePath returns ~/.skillctl unless SKILLCTL_BASE_PATH is set
func BasePath() (string, error) {
	if base := os.Getenv(BasePathEnv); base != "" {
		return filepath.Abs(expandPath(base))
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", errors.Wrap(err, "failed to get user home directory")
	}
	return filepath.Join(home, ".skillctl"), nil
}

// DefaultAgentConfig returns the directories an agent uses out of the box
func DefaultAgentConfig(agent skilltypes.Agent) AgentConfig {
	switch agent {
	case skilltypes.AgentClaudeCode:
		return AgentConfig{Enabled: true, GlobalPath: "~/.claude/skills", WorkspacePath: ".claude/skills"}
	case skilltypes.AgentCodex:
		return AgentConfig{Enabled: true, GlobalPath: "~/.codex/skills", WorkspacePath: ".codex/skills"}
	case skilltypes.AgentCursor:
		return AgentConfig{Enabled: true, GlobalPath: "~/.cursor/skills", WorkspacePath: ".cursor/skills"}
	case skilltypes.AgentGemini:
		return AgentConfig{Enabled: true, GlobalPath: "~/.gemini/skills", WorkspacePath: ".gemini/skills"}
	case skilltypes.AgentOpenCode:
		return AgentConfig{Enabled: true, GlobalPath: "~/.config/opencode/skill", WorkspacePath: ".opencode/skill"}
	case skilltypes.AgentCopilot:
		return AgentConfig{Enabled: true, GlobalPath: "~/.copilot/skills", WorkspacePath: ".github/skills"}
	case skilltypes.AgentKodelet:
		return AgentConfig{Enabled: true, GlobalPath: "~/.kodelet/skills", WorkspacePath: ".kodelet/skills"}
	default:
		return AgentConfig{}
	}
}

// SetDefaults registers default values on v
func SetDefaults(v *viper.Viper) {
	v.SetDefault("cache.enabled", true)
	v.SetDefault("journal.enabled", true)
	v.SetDefault("copy_excludes", []string{})
	v.SetDefault("tracing.enabled", false)
	v.SetDefault("tracing.sampler", "ratio")
	v.SetDefault("tracing.ratio", 1.0)
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "text")
}

// Load reads the configuration from the global viper instance
func Load() (Config, error) {
	return LoadFrom(viper.GetViper())
}

// LoadFrom decodes v and resolves every path to an absolute one
func LoadFrom(v *viper.Viper) (Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return cfg, errors.Wrap(err, "failed to unmarshal configuration")
	}

	// Agent entries are decoded onto their defaults so partial overrides keep the rest.
	cfg.Agents = make(map[string]AgentConfig)
	for _, agent := range skilltypes.AllAgents() {
		cfg.Agents[agent.String()] = DefaultAgentConfig(agent)
	}
	if agents, ok := v.AllSettings()["agents"].(map[string]any); ok {
		for name, raw := range agents {
			agent, err := skilltypes.ParseAgent(name)
			if err != nil {
				return cfg, errors.Errorf("unknown agent %q in configuration", name)
			}
			ac := cfg.Agents[agent.String()]
			decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
				Result:           &ac,
				WeaklyTypedInput: true,
				ZeroFields:       false,
			})
			if err != nil {
				return cfg, errors.Wrap(err, "failed to create agent config decoder")
			}
			if err := decoder.Decode(raw); err != nil {
				return cfg, errors.Wrapf(err, "invalid configuration for agent %s", agent)
			}
			cfg.Agents[agent.String()] = ac
		}
	}

	if err := cfg.resolve(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func (c *Config) resolve() error {
	base, err := BasePath()
	if err != nil {
		return err
	}

	if c.Workspace == "" {
		wd, err := os.Getwd()
		if err != nil {
			return errors.Wrap(err, "failed to get working directory")
		}
		c.Workspace = wd
	}
	if c.Workspace, err = filepath.Abs(expandPath(c.Workspace)); err != nil {
		return errors.Wrap(err, "failed to resolve workspace")
	}

	if c.RepositoryPath == "" {
		c.RepositoryPath = filepath.Join(base, "repository")
	}
	if c.RepositoryPath, err = filepath.Abs(expandPath(c.RepositoryPath)); err != nil {
		return errors.Wrap(err, "failed to resolve repository path")
	}

	if c.Cache.Path == "" {
		c.Cache.Path = filepath.Join(base, "cache", "scan-cache.json")
	}
	if c.Cache.Path, err = filepath.Abs(expandPath(c.Cache.Path)); err != nil {
		return errors.Wrap(err, "failed to resolve cache path")
	}

	if c.Journal.Path == "" {
		c.Journal.Path = filepath.Join(base, "journal.db")
	}
	if c.Journal.Path, err = filepath.Abs(expandPath(c.Journal.Path)); err != nil {
		return errors.Wrap(err, "failed to resolve journal path")
	}

	for name, ac := range c.Agents {
		ac.GlobalPath = c.absolute(ac.GlobalPath, "")
		ac.WorkspacePath = c.absolute(ac.WorkspacePath, c.Workspace)
		c.Agents[name] = ac
	}
	return nil
}

// absolute expands path and joins it onto root when it is relative. An empty
// root resolves against the current directory.
func (c *Config) absolute(path, root string) string {
	if path == "" {
		return ""
	}
	path = expandPath(path)
	if filepath.IsAbs(path) {
		return filepath.Clean(path)
	}
	if root != "" {
		return filepath.Join(root, path)
	}
	if abs, err := filepath.Abs(path); err == nil {
		return abs
	}
	return path
}

// Agent returns the resolved settings for agent
func (c Config) Agent(agent skilltypes.Agent) AgentConfig {
	if ac, ok := c.Agents[agent.String()]; ok {
		return ac
	}
	return AgentConfig{}
}

// EnabledAgents returns the enabled agents in enumeration order
func (c Config) EnabledAgents() []skilltypes.Agent {
	var agents []skilltypes.Agent
	for _, agent := range skilltypes.AllAgents() {
		if c.Agent(agent).Enabled {
			agents = append(agents, agent)
		}
	}
	return agents
}

// AgentPath returns the skill directory of agent in scope
func (c Config) AgentPath(agent skilltypes.Agent, scope skilltypes.Scope) string {
	ac := c.Agent(agent)
	if scope == skilltypes.ScopeWorkspace {
		return ac.WorkspacePath
	}
	return ac.GlobalPath
}

// AgentDirectories lists the global then workspace directory of every agent,
// in enumeration order. Disabled agents are included with Enabled false.
func (c Config) AgentDirectories() []skilltypes.AgentDirectory {
	var dirs []skilltypes.AgentDirectory
	for _, agent := range skilltypes.AllAgents() {
		ac := c.Agent(agent)
		for _, scope := range []skilltypes.Scope{skilltypes.ScopeGlobal, skilltypes.ScopeWorkspace} {
			path := c.AgentPath(agent, scope)
			if path == "" {
				continue
			}
			dirs = append(dirs, skilltypes.AgentDirectory{
				Agent:   agent,
				Scope:   scope,
				Path:    path,
				Enabled: ac.Enabled,
			})
		}
	}
	return dirs
}

// expandPath expands environment variables and a leading ~
func expandPath(path string) string {
	path = os.ExpandEnv(path)
	if path == "~" || strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[1:])
	}
	return path
}
