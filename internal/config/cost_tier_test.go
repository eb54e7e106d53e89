package config

import (
	"strings"
	"testing"

	"github.com/mao-project/mao/internal/roles"
)

func TestValidCostTiers(t *testing.T) {
	t.Parallel()
	tiers := ValidCostTiers()
	if len(tiers) != 3 {
		t.Fatalf("ValidCostTiers() returned %d tiers, want 3", len(tiers))
	}
	expected := map[string]bool{"standard": true, "economy": true, "budget": true}
	for _, tier := range tiers {
		if !expected[tier] {
			t.Errorf("unexpected tier %q", tier)
		}
	}
}

func TestIsValidTier(t *testing.T) {
	t.Parallel()
	tests := []struct {
		tier string
		want bool
	}{
		{"standard", true},
		{"economy", true},
		{"budget", true},
		{"premium", false},
		{"", false},
		{"Standard", false},
	}
	for _, tt := range tests {
		t.Run(tt.tier, func(t *testing.T) {
			t.Parallel()
			if got := IsValidTier(tt.tier); got != tt.want {
				t.Errorf("IsValidTier(%q) = %v, want %v", tt.tier, got, tt.want)
			}
		})
	}
}

func TestCostTierRoleOverride(t *testing.T) {
	t.Parallel()

	t.Run("standard has no overrides", func(t *testing.T) {
		t.Parallel()
		if _, ok := CostTierRoleOverride(TierStandard, "reviewer"); ok {
			t.Error("standard tier should not override reviewer")
		}
	})

	t.Run("economy downgrades reviewer to sonnet", func(t *testing.T) {
		t.Parallel()
		tier, ok := CostTierRoleOverride(TierEconomy, "reviewer")
		if !ok {
			t.Fatal("expected economy tier to override reviewer")
		}
		if tier != roles.TierSonnet {
			t.Errorf("got %q, want %q", tier, roles.TierSonnet)
		}
	})

	t.Run("budget downgrades docs to haiku", func(t *testing.T) {
		t.Parallel()
		tier, ok := CostTierRoleOverride(TierBudget, "docs")
		if !ok {
			t.Fatal("expected budget tier to override docs")
		}
		if tier != roles.TierHaiku {
			t.Errorf("got %q, want %q", tier, roles.TierHaiku)
		}
	})

	t.Run("unknown role has no override in any tier", func(t *testing.T) {
		t.Parallel()
		for _, tier := range []CostTier{TierStandard, TierEconomy, TierBudget} {
			if _, ok := CostTierRoleOverride(tier, "nonexistent"); ok {
				t.Errorf("tier %q should not override unknown role", tier)
			}
		}
	})

	t.Run("invalid tier returns not-ok", func(t *testing.T) {
		t.Parallel()
		if _, ok := CostTierRoleOverride(CostTier("bogus"), "reviewer"); ok {
			t.Error("invalid tier should not report an override")
		}
	})
}

func TestFormatTierRoleTable(t *testing.T) {
	t.Parallel()
	cat, err := roles.Load("")
	if err != nil {
		t.Fatalf("roles.Load: %v", err)
	}

	t.Run("valid tier includes a row for every role", func(t *testing.T) {
		t.Parallel()
		out, err := FormatTierRoleTable(TierBudget, cat)
		if err != nil {
			t.Fatalf("FormatTierRoleTable: %v", err)
		}
		if !strings.Contains(out, "ROLE") || !strings.Contains(out, "MODEL TIER") {
			t.Errorf("expected a header row, got:\n%s", out)
		}
		for _, r := range cat.All() {
			if !strings.Contains(out, r.Name) {
				t.Errorf("output missing role %q:\n%s", r.Name, out)
			}
		}
	})

	t.Run("invalid tier errors", func(t *testing.T) {
		t.Parallel()
		if _, err := FormatTierRoleTable(CostTier("bogus"), cat); err == nil {
			t.Error("expected error for invalid tier")
		}
	})
}

func TestTierDescription(t *testing.T) {
	t.Parallel()
	for _, tier := range []CostTier{TierStandard, TierEconomy, TierBudget} {
		if desc := TierDescription(tier); desc == "" || desc == "Unknown tier" {
			t.Errorf("TierDescription(%q) = %q, want a real description", tier, desc)
		}
	}
	if got := TierDescription(CostTier("bogus")); got != "Unknown tier" {
		t.Errorf("TierDescription(bogus) = %q, want %q", got, "Unknown tier")
	}
}
