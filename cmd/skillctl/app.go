package main

import (
	"context"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/viper"

	"github.com/jingkaihe/skillctl/pkg/config"
	"github.com/jingkaihe/skillctl/pkg/journal"
	"github.com/jingkaihe/skillctl/pkg/logger"
	"github.com/jingkaihe/skillctl/pkg/manager"
	"github.com/jingkaihe/skillctl/pkg/skills"
	skilltypes "github.com/jingkaihe/skillctl/pkg/types/skills"
)

// app bundles what a command needs: the resolved configuration, a scanner
// and, for mutating commands, a manager with its journal.
type app struct {
	cfg     config.Config
	scanner *skills.Scanner
	manager *manager.Manager
	journal *journal.Store
}

func newApp(ctx context.Context) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	scanner, err := skills.Initialize(ctx, cfg, viper.GetBool("no_cache"))
	if err != nil {
		return nil, err
	}
	return &app{cfg: cfg, scanner: scanner}, nil
}

// newManagerApp also opens the journal. A journal that cannot be opened is
// logged and replaced by a no-op so that mutations still work.
func newManagerApp(ctx context.Context) (*app, error) {
	a, err := newApp(ctx)
	if err != nil {
		return nil, err
	}

	opts := []manager.Option{manager.WithCache(a.scanner.Cache())}
	if a.cfg.Journal.Enabled {
		store, err := journal.Open(ctx, a.cfg.Journal.Path)
		if err != nil {
			logger.G(ctx).WithError(err).Warn("operation journal unavailable")
		} else {
			a.journal = store
			opts = append(opts, manager.WithJournal(store))
		}
	}

	a.manager = manager.New(a.cfg, a.scanner, opts...)
	return a, nil
}

func (a *app) Close() {
	if a.journal != nil {
		if err := a.journal.Close(); err != nil {
			logger.L.WithError(err).Debug("failed to close journal")
		}
	}
}

func (a *app) scan(ctx context.Context) *skilltypes.ScanResult {
	return a.scanner.ScanAll(ctx, a.cfg.AgentDirectories())
}

// parseAgents parses agent names given as repeated or comma separated flags
func parseAgents(values []string) ([]skilltypes.Agent, error) {
	var agents []skilltypes.Agent
	seen := make(map[skilltypes.Agent]bool)
	for _, value := range values {
		for _, name := range strings.Split(value, ",") {
			name = strings.TrimSpace(name)
			if name == "" {
				continue
			}
			agent, err := skilltypes.ParseAgent(name)
			if err != nil {
				return nil, errors.Wrapf(err, "invalid --agent %q", name)
			}
			if !seen[agent] {
				seen[agent] = true
				agents = append(agents, agent)
			}
		}
	}
	return agents, nil
}

// filterByAgents keeps skills with at least one installation for one of agents
func filterByAgents(result *skilltypes.ScanResult, agents []skilltypes.Agent) []*skilltypes.Skill {
	if len(agents) == 0 {
		return result.Ordered()
	}
	wanted := make(map[skilltypes.Agent]bool)
	for _, agent := range agents {
		wanted[agent] = true
	}

	var out []*skilltypes.Skill
	for _, skill := range result.Ordered() {
		for _, inst := range skill.Installations {
			if wanted[inst.Agent] {
				out = append(out, skill)
				break
			}
		}
	}
	return out
}
