// Package roles implements the read-only role catalogue: a map loaded
// once at startup, closed over the built-in set plus whatever a project
// adds under .mao/roles/. Every agent runs inside a single multiplexer
// session; see internal/tmux.
package roles

import (
	"embed"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"gopkg.in/yaml.v3"
)

// ModelTier is one of the three supported LLM model tiers.
type ModelTier string

const (
	TierOpus ModelTier = "opus"
	TierSonnet ModelTier = "sonnet"
	TierHaiku ModelTier = "haiku"
)

// IsValid reports whether t is one of the three closed variants.
func (t ModelTier) IsValid() bool {
	switch t {
	case TierOpus, TierSonnet, TierHaiku:
		return true
	default:
		return false
	}
}

// Role describes one entry in the catalogue.
type Role struct {
	Name string `yaml:"name"`
	DisplayName string `yaml:"display_name"`
	DefaultModelTier ModelTier `yaml:"default_model_tier"`
	Responsibilities []string `yaml:"responsibilities"`
	PromptFile string `yaml:"prompt_file,omitempty"`
	CodingStandards []string `yaml:"coding_standards,omitempty"`
	AdditionalContext []string `yaml:"additional_context,omitempty"`
}

//go:embed builtin/*.yaml
var builtinFS embed.FS

// Catalogue is the read-only, closed map of roles available to the
// orchestrator. It never mutates after Load returns.
type Catalogue struct {
	roles map[string]Role
}

// Load builds the catalogue from the embedded built-in roles, then overlays
// (or adds) roles found under <projectDir>/.mao/roles/*.yaml. projectDir may
// be empty to load only built-ins.
func Load(projectDir string) (*Catalogue, error) {
	c := &Catalogue{roles: make(map[string]Role)}

	entries, err := builtinFS.ReadDir("builtin")
	if err != nil {
		return nil, fmt.Errorf("reading builtin roles: %w", err)
	}
	for _, e := range entries {
		data, err := builtinFS.ReadFile(filepath.Join("builtin", e.Name()))
		if err != nil {
			return nil, fmt.Errorf("reading builtin role %s: %w", e.Name(), err)
		}
		var r Role
		if err := yaml.Unmarshal(data, &r); err != nil {
			return nil, fmt.Errorf("parsing builtin role %s: %w", e.Name(), err)
		}
		if err := validate(r); err != nil {
			return nil, fmt.Errorf("builtin role %s: %w", e.Name(), err)
		}
		c.roles[r.Name] = r
	}

	if projectDir == "" {
		return c, nil
	}

	projectRolesDir := filepath.Join(projectDir, ".mao", "roles")
	projEntries, err := os.ReadDir(projectRolesDir)
	if err != nil {
		if os.IsNotExist(err) {
			return c, nil
		}
		return nil, fmt.Errorf("reading project roles: %w", err)
	}
	for _, e := range projEntries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".yaml" {
			continue
		}
		data, err := os.ReadFile(filepath.Join(projectRolesDir, e.Name()))
		if err != nil {
			return nil, fmt.Errorf("reading project role %s: %w", e.Name, err)
		}
		var r Role
		if err := yaml.Unmarshal(data, &r); err != nil {
			return nil, fmt.Errorf("parsing project role %s: %w", e.Name, err)
		}
		if err := validate(r); err != nil {
			return nil, fmt.Errorf("project role %s: %w", e.Name, err)
		}
		c.roles[r.Name] = r
	}

	return c, nil
}

func validate(r Role) error {
	if r.Name == "" {
		return fmt.Errorf("role name is required")
	}
	if r.DefaultModelTier == "" {
		r.DefaultModelTier = TierSonnet
	}
	if !r.DefaultModelTier.IsValid() {
		return fmt.Errorf("role %s: invalid default_model_tier %q", r.Name, r.DefaultModelTier)
	}
	return nil
}

// Resolve looks up a role by stable name. Returns an error of kind
// validation (via the caller wrapping with errs.Validation) if the role is
// unknown — catalogue resolution failure is always a caller/input error,
// never a transient one.
func (c *Catalogue) Resolve(name string) (Role, error) {
	r, ok := c.roles[name]
	if !ok {
		return Role{}, fmt.Errorf("unknown role %q", name)
	}
	return r, nil
}

// Names returns all role names in the catalogue, sorted for deterministic
// output (CLI `mao roles` listing).
func (c *Catalogue) Names() []string {
	names := make([]string, 0, len(c.roles))
	for n := range c.roles {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// All returns every Role in the catalogue, sorted by name.
func (c *Catalogue) All() []Role {
	names := c.Names()
	out := make([]Role, 0, len(names))
	for _, n := range names {
		out = append(out, c.roles[n])
	}
	return out
}
