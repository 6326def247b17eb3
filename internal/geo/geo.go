// Package geo resolves the ancestor chain of a geographic unit so coverage
// checks can match a municipality against district or province coverage.
package geo

import (
	"context"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"event-request-backend/internal/coverage"
	"event-request-backend/internal/domain"
)

type Provider interface {
	// Ancestors returns the ids above id, nearest first. Unknown ids have no
	// ancestors.
	Ancestors(ctx context.Context, id string) ([]string, error)
}

type Unit struct {
	ID     string             `yaml:"id"`
	Name   string             `yaml:"name"`
	Kind   domain.GeoUnitKind `yaml:"kind"`
	Parent string             `yaml:"parent"`
}

type hierarchyFile struct {
	Units []Unit `yaml:"units"`
}

// Hierarchy is a static parent table loaded once.
type Hierarchy struct {
	parents map[string]string
	units   map[string]Unit
}

func NewHierarchy(units []Unit) (*Hierarchy, error) {
	h := &Hierarchy{parents: make(map[string]string, len(units)), units: make(map[string]Unit, len(units))}
	for _, u := range units {
		id := coverage.NormalizeID(u.ID)
		if id == "" {
			return nil, fmt.Errorf("geo unit with empty id")
		}
		if _, dup := h.units[id]; dup {
			return nil, fmt.Errorf("duplicate geo unit %q", u.ID)
		}
		h.units[id] = u
		if u.Parent != "" {
			h.parents[id] = coverage.NormalizeID(u.Parent)
		}
	}
	for id := range h.parents {
		if _, err := h.chain(id); err != nil {
			return nil, err
		}
	}
	return h, nil
}

// LoadHierarchy reads a YAML file of the form `units: [{id, kind, parent}]`.
func LoadHierarchy(path string) (*Hierarchy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read geo hierarchy: %w", err)
	}
	var f hierarchyFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse geo hierarchy: %w", err)
	}
	return NewHierarchy(f.Units)
}

func (h *Hierarchy) Ancestors(_ context.Context, id string) ([]string, error) {
	return h.chain(coverage.NormalizeID(id))
}

func (h *Hierarchy) Unit(id string) (Unit, bool) {
	u, ok := h.units[coverage.NormalizeID(id)]
	return u, ok
}

func (h *Hierarchy) chain(id string) ([]string, error) {
	var out []string
	seen := map[string]bool{id: true}
	for {
		parent, ok := h.parents[id]
		if !ok {
			return out, nil
		}
		if seen[parent] {
			return nil, fmt.Errorf("geo hierarchy cycle at %q", parent)
		}
		seen[parent] = true
		out = append(out, parent)
		id = parent
	}
}

// Flat knows no hierarchy; matching falls back to the explicit
// municipality and district of the stakeholder.
type Flat struct{}

func (Flat) Ancestors(context.Context, string) ([]string, error) {
	return nil, nil
}
