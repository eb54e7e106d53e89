// Package config loads the project-local configuration file
// (.mao/config.yaml) and model pricing table (.mao/pricing.toml),
// following a typed-struct-with-defaults pattern.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"github.com/mao-project/mao/internal/roles"
)

// Config is the top-level shape of.mao/config.yaml.
type Config struct {
	CostTier CostTier `yaml:"cost_tier"`
	RoleModelTiers map[string]string `yaml:"role_model_tiers,omitempty"`
	PollIntervalMS int `yaml:"poll_interval_ms"`
	ReconcileMS int `yaml:"reconcile_interval_ms"`
	StartupWaitSecs int `yaml:"startup_wait_seconds"`
	Notify bool `yaml:"notify"`
	MaxPanes int `yaml:"max_panes"`
	// StatsDB enables the optional SQLite mirror of per-agent token/cost
	// accounting at .mao/agent_states.db. The JSON-backed approval queue
	// remains authoritative either way.
	StatsDB bool `yaml:"stats_db"`
}

// defaults mirrors the observed tmux executor timings: a 3s startup wait
// and a sub-second poll interval.
func defaults() Config {
	return Config{
		CostTier: TierStandard,
		PollIntervalMS: 750,
		ReconcileMS: 1000,
		StartupWaitSecs: 3,
		Notify: true,
		MaxPanes: 6,
	}
}

// Load reads <projectDir>/.mao/config.yaml, applying defaults for any
// zero-valued field left unset. A missing file is not an error: the
// caller gets pure defaults.
func Load(projectDir string) (Config, error) {
	cfg := defaults()

	path := filepath.Join(projectDir, ".mao", "config.yaml")
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return Config{}, fmt.Errorf("reading config: %w", err)
	}

	var onDisk Config
	if err := yaml.Unmarshal(data, &onDisk); err != nil {
		return Config{}, fmt.Errorf("parsing config: %w", err)
	}
	mergeDefaults(&onDisk)
	return onDisk, nil
}

func mergeDefaults(c *Config) {
	d := defaults()
	if c.CostTier == "" {
		c.CostTier = d.CostTier
	}
	if c.PollIntervalMS == 0 {
		c.PollIntervalMS = d.PollIntervalMS
	}
	if c.ReconcileMS == 0 {
		c.ReconcileMS = d.ReconcileMS
	}
	if c.StartupWaitSecs == 0 {
		c.StartupWaitSecs = d.StartupWaitSecs
	}
	if c.MaxPanes == 0 {
		c.MaxPanes = d.MaxPanes
	}
}

// Save writes cfg to <projectDir>/.mao/config.yaml, creating the
// directory if needed. Used by `mao init` and `mao config`.
func Save(projectDir string, cfg Config) error {
	dir := filepath.Join(projectDir, ".mao")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating config dir: %w", err)
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "config.yaml"), data, 0o644); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	return nil
}

// ResolveModelTier returns the effective model tier for a role: an
// explicit per-role override in config.yaml wins, then the cost tier's
// mapping for that role, then the role catalogue's own default.
func ResolveModelTier(cfg Config, role roles.Role) roles.ModelTier {
	if override, ok := cfg.RoleModelTiers[role.Name]; ok && override != "" {
		return roles.ModelTier(override)
	}
	if tier, ok := CostTierRoleOverride(cfg.CostTier, role.Name); ok {
		return tier
	}
	return role.DefaultModelTier
}

// PricingTable is the parsed form of.mao/pricing.toml: cost per 1k
// tokens for each model tier, used by the supervisor to compute
// AgentCostRecord.cost from raw token counts.
type PricingTable struct {
	Models map[string]ModelPricing `toml:"models"`
}

// ModelPricing holds per-1k-token input/output pricing for one tier.
type ModelPricing struct {
	InputPer1K float64 `toml:"input_per_1k"`
	OutputPer1K float64 `toml:"output_per_1k"`
}

// DefaultPricing provides a conservative fallback table when
// .mao/pricing.toml is absent, so cost accounting never errors out for
// lack of configuration.
func DefaultPricing() PricingTable {
	return PricingTable{
		Models: map[string]ModelPricing{
			"opus": {InputPer1K: 0.015, OutputPer1K: 0.075},
			"sonnet": {InputPer1K: 0.003, OutputPer1K: 0.015},
			"haiku": {InputPer1K: 0.0008, OutputPer1K: 0.004},
		},
	}
}

// LoadPricing reads <projectDir>/.mao/pricing.toml. A missing file
// yields DefaultPricing, not an error.
func LoadPricing(projectDir string) (PricingTable, error) {
	path := filepath.Join(projectDir, ".mao", "pricing.toml")
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return DefaultPricing(), nil
		}
		return PricingTable{}, fmt.Errorf("statting pricing table: %w", err)
	}

	var table PricingTable
	if _, err := toml.DecodeFile(path, &table); err != nil {
		return PricingTable{}, fmt.Errorf("parsing pricing table: %w", err)
	}
	if table.Models == nil {
		table.Models = DefaultPricing().Models
	}
	return table, nil
}

// Cost computes the dollar cost of a completion given raw token counts
// and a model tier, looking up rates in the pricing table. Unknown
// tiers fall back to the "sonnet" rate rather than erroring, since a
// cost estimate is advisory.
func (p PricingTable) Cost(tier roles.ModelTier, inputTokens, outputTokens int) float64 {
	rate, ok := p.Models[string(tier)]
	if !ok {
		rate = p.Models["sonnet"]
	}
	return float64(inputTokens)/1000*rate.InputPer1K + float64(outputTokens)/1000*rate.OutputPer1K
}
