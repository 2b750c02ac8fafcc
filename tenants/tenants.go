// Package tenants loads the seller accounts the service reports on.
package tenants

import (
	"errors"
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"

	"wb-seller-stats/models"
)

// ErrUnknownTenant is returned for a name missing from the tenants file
var ErrUnknownTenant = errors.New("unknown tenant")

// Tenant is one seller account with its API token and tracked articles
type Tenant struct {
	Name     string                  `yaml:"name"`
	Token    string                  `yaml:"token"`
	Sheet    string                  `yaml:"sheet"`
	Articles []models.TrackedArticle `yaml:"articles"`
}

type file struct {
	Tenants []Tenant `yaml:"tenants"`
}

// Registry is an immutable tenant lookup built from a YAML file
type Registry struct {
	byName map[string]Tenant
}

// Load reads the tenants file. Tokens may reference environment variables
// as ${VAR}.
func Load(path string) (*Registry, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read tenants file: %w", err)
	}
	return Parse(raw)
}

// Parse builds a registry from YAML bytes
func Parse(raw []byte) (*Registry, error) {
	var f file
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("parse tenants file: %w", err)
	}

	r := &Registry{byName: make(map[string]Tenant, len(f.Tenants))}
	for i, t := range f.Tenants {
		if t.Name == "" {
			return nil, fmt.Errorf("tenant #%d has no name", i+1)
		}
		if _, dup := r.byName[t.Name]; dup {
			return nil, fmt.Errorf("duplicate tenant %q", t.Name)
		}
		t.Token = os.ExpandEnv(t.Token)
		if t.Sheet == "" {
			t.Sheet = t.Name
		}
		seen := make(map[int64]bool, len(t.Articles))
		for j, a := range t.Articles {
			if a.Article <= 0 {
				return nil, fmt.Errorf("tenant %q: article #%d has no valid id", t.Name, j+1)
			}
			if seen[a.Article] {
				return nil, fmt.Errorf("tenant %q: duplicate article %d", t.Name, a.Article)
			}
			seen[a.Article] = true
		}
		r.byName[t.Name] = t
	}
	return r, nil
}

// Get returns a tenant by name
func (r *Registry) Get(name string) (Tenant, bool) {
	t, ok := r.byName[name]
	return t, ok
}

// Names returns tenant names in sorted order
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.byName))
	for n := range r.byName {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Articles returns the tracked articles of a tenant, in file order
func (r *Registry) Articles(name string) ([]models.TrackedArticle, error) {
	t, ok := r.byName[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownTenant, name)
	}
	out := make([]models.TrackedArticle, len(t.Articles))
	copy(out, t.Articles)
	return out, nil
}

// Sheet returns the output target of a tenant
func (r *Registry) Sheet(name string) (string, error) {
	t, ok := r.byName[name]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownTenant, name)
	}
	return t.Sheet, nil
}

// Token returns the API token of a tenant
func (r *Registry) Token(name string) (string, error) {
	t, ok := r.byName[name]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownTenant, name)
	}
	return t.Token, nil
}
