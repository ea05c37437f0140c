// Package rewards holds the catalog of items civic points can be redeemed for.
package rewards

import (
	_ "embed"
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"
)

//go:embed catalog.yaml
var defaultCatalog []byte

type Reward struct {
	ID    int    `yaml:"id"`
	Title string `yaml:"title"`
	Cost  int    `yaml:"cost"`
	Type  string `yaml:"type"`
}

type Catalog struct {
	Rewards []Reward `yaml:"rewards"`
}

// Default returns the built-in catalog.
func Default() (*Catalog, error) {
	return Parse(defaultCatalog)
}

// Load reads a catalog file, falling back to the built-in one when path is empty.
func Load(path string) (*Catalog, error) {
	if path == "" {
		return Default()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read rewards catalog: %w", err)
	}
	return Parse(data)
}

func Parse(data []byte) (*Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("parse rewards catalog: %w", err)
	}
	for _, r := range c.Rewards {
		if r.Title == "" || r.Cost <= 0 {
			return nil, fmt.Errorf("reward %d: title and a positive cost are required", r.ID)
		}
	}
	sort.SliceStable(c.Rewards, func(i, j int) bool {
		return c.Rewards[i].Cost < c.Rewards[j].Cost
	})
	return &c, nil
}
