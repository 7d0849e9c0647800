package skills

import (
	"strings"

	"github.com/pkg/errors"
)

// Agent identifies a coding agent whose skill directories are kept in sync.
// The set is closed: adding an agent means adding a constant here and a case
// to every switch over Agent.
type Agent int

// Known agents, in configuration order.
const (
	AgentClaudeCode Agent = iota
	AgentCodex
	AgentCursor
	AgentGemini
	AgentOpenCode
	AgentCopilot
	AgentKodelet
)

var agentNames = [...]string{
	AgentClaudeCode: "claude-code",
	AgentCodex:      "codex",
	AgentCursor:     "cursor",
	AgentGemini:     "gemini",
	AgentOpenCode:   "opencode",
	AgentCopilot:    "copilot",
	AgentKodelet:    "kodelet",
}

// AllAgents returns every agent in configuration order.
func AllAgents() []Agent {
	agents := make([]Agent, len(agentNames))
	for i := range agentNames {
		agents[i] = Agent(i)
	}
	return agents
}

// String returns the configuration name of the agent
func (a Agent) String() string {
	if a < 0 || int(a) >= len(agentNames) {
		return "unknown"
	}
	return agentNames[a]
}

// Valid reports whether a is one of the known agents
func (a Agent) Valid() bool {
	return a >= 0 && int(a) < len(agentNames)
}

// ParseAgent converts a configuration name back into an Agent.
// Matching is case-insensitive and accepts underscores in place of hyphens.
func ParseAgent(name string) (Agent, error) {
	normalized := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(name)), "_", "-")
	for i, n := range agentNames {
		if n == normalized {
			return Agent(i), nil
		}
	}
	return 0, errors.Errorf("unknown agent %q", name)
}

// MarshalText implements encoding.TextMarshaler
func (a Agent) MarshalText() ([]byte, error) {
	if !a.Valid() {
		return nil, errors.Errorf("invalid agent value %d", int(a))
	}
	return []byte(a.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler
func (a *Agent) UnmarshalText(text []byte) error {
	parsed, err := ParseAgent(string(text))
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}

// Scope says whether an installation applies to every project or only the current workspace
type Scope int

const (
	ScopeGlobal Scope = iota
	ScopeWorkspace
)

// String returns the lowercase scope name
func (s Scope) String() string {
	switch s {
	case ScopeGlobal:
		return "global"
	case ScopeWorkspace:
		return "workspace"
	default:
		return "unknown"
	}
}

// ParseScope parses "global" or "workspace"
func ParseScope(name string) (Scope, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "global", "g":
		return ScopeGlobal, nil
	case "workspace", "local", "w":
		return ScopeWorkspace, nil
	default:
		return 0, errors.Errorf("unknown scope %q (expected global or workspace)", name)
	}
}

// MarshalText implements encoding.TextMarshaler
func (s Scope) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler
func (s *Scope) UnmarshalText(text []byte) error {
	parsed, err := ParseScope(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}
