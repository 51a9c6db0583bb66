// Package meter gates enrichment on each account's monthly quota and
// prepaid credit balance, and records every decrement in an audit log.
package meter

import (
	"os"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

// Plan defines a subscription tier's monthly enrichment allowance.
type Plan struct {
	ID           string `yaml:"id"`
	Name         string `yaml:"name"`
	MonthlyQuota int    `yaml:"monthly_quota"`
}

// Catalog holds the known plans keyed by ID.
type Catalog struct {
	plans map[string]Plan
}

type catalogFile struct {
	Plans []Plan `yaml:"plans"`
}

// LoadCatalog reads a plan catalog from a YAML file.
func LoadCatalog(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "meter: read plan catalog %s", path)
	}

	var f catalogFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, eris.Wrapf(err, "meter: parse plan catalog %s", path)
	}
	if len(f.Plans) == 0 {
		return nil, eris.Errorf("meter: plan catalog %s is empty", path)
	}

	c := &Catalog{plans: make(map[string]Plan, len(f.Plans))}
	for _, p := range f.Plans {
		if p.ID == "" {
			return nil, eris.Errorf("meter: plan catalog %s has a plan without an id", path)
		}
		c.plans[p.ID] = p
	}
	return c, nil
}

// DefaultCatalog returns the built-in plan tiers.
func DefaultCatalog() *Catalog {
	return &Catalog{plans: map[string]Plan{
		"free": {ID: "free", Name: "Free", MonthlyQuota: 10},
		"pro":  {ID: "pro", Name: "Pro", MonthlyQuota: 100},
		"team": {ID: "team", Name: "Team", MonthlyQuota: 500},
	}}
}

// Get looks up a plan by ID.
func (c *Catalog) Get(id string) (Plan, bool) {
	p, ok := c.plans[id]
	return p, ok
}
