package config

import (
	"fmt"
	"strings"

	"github.com/mao-project/mao/internal/roles"
	"github.com/mao-project/mao/internal/style"
)

// CostTier represents a predefined cost optimization tier for model
// selection: standard keeps every role at its catalogue default,
// economy and budget progressively downgrade lower-stakes roles to
// cheaper model tiers.
type CostTier string

const (
	// TierStandard uses each role's own catalogue default (highest quality).
	TierStandard CostTier = "standard"
	// TierEconomy downgrades patrol-style roles (reviewer, docs, tester) while
	// keeping coder roles at their default tier.
	TierEconomy CostTier = "economy"
	// TierBudget downgrades most roles to sonnet/haiku, keeping only
	// backend coding at its default tier.
	TierBudget CostTier = "budget"
)

// ValidCostTiers returns all valid tier names.
func ValidCostTiers() []string {
	return []string{string(TierStandard), string(TierEconomy), string(TierBudget)}
}

// IsValidTier checks if a string is a valid cost tier name.
func IsValidTier(tier string) bool {
	switch CostTier(tier) {
	case TierStandard, TierEconomy, TierBudget:
		return true
	default:
		return false
	}
}

// tierOverrides maps tier -> role name -> model tier override. A role
// absent from a tier's map keeps its catalogue default.
var tierOverrides = map[CostTier]map[string]roles.ModelTier{
	TierStandard: {},
	TierEconomy: {
		"reviewer": roles.TierSonnet,
		"docs": roles.TierHaiku,
		"tester": roles.TierSonnet,
	},
	TierBudget: {
		"reviewer": roles.TierHaiku,
		"docs": roles.TierHaiku,
		"tester": roles.TierSonnet,
		"general": roles.TierSonnet,
		"coder_frontend": roles.TierSonnet,
	},
}

// CostTierRoleOverride returns the tier's override for a role, if any.
func CostTierRoleOverride(tier CostTier, role string) (roles.ModelTier, bool) {
	overrides, ok := tierOverrides[tier]
	if !ok {
		return "", false
	}
	t, ok := overrides[role]
	return t, ok
}

// TierDescription returns a human-readable description of the tier's
// model assignments, used by `mao config` and `mao roles`.
func TierDescription(tier CostTier) string {
	switch tier {
	case TierStandard:
		return "All roles use their catalogue default model tier"
	case TierEconomy:
		return "Reviewer, docs, and tester roles downgrade to sonnet/haiku; coders keep their default"
	case TierBudget:
		return "Only backend coding keeps its default tier; everything else runs sonnet/haiku"
	default:
		return "Unknown tier"
	}
}

// FormatTierRoleTable returns a formatted string showing the effective
// model tier for every role in cat under the given cost tier.
func FormatTierRoleTable(tier CostTier, cat *roles.Catalogue) (string, error) {
	if !IsValidTier(string(tier)) {
		return "", fmt.Errorf("invalid cost tier: %q (valid: %s)", tier, strings.Join(ValidCostTiers(), ", "))
	}
	t := style.NewTable(
		style.Column{Name: "ROLE", Width: 18},
		style.Column{Name: "MODEL TIER", Width: 10},
	)
	for _, r := range cat.All() {
		effective := r.DefaultModelTier
		if override, ok := CostTierRoleOverride(tier, r.Name); ok {
			effective = override
		}
		t.AddRow(r.Name, string(effective))
	}
	return t.Render(), nil
}
