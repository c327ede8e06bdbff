// Package card provides YAML-defined card definitions for the Hour-Glass
// encounter: each card names a sand cost, a moral alignment, and an optional
// Lua effect hook.
package card

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/Noquela/Sands-of-Duat-sub008/internal/game/hourglass"
)

// Card is the static definition of one playable card, loaded from YAML.
type Card struct {
	ID          string `yaml:"id"`
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
	// SandCost is the grains required to play the card, before momentum.
	SandCost int `yaml:"sand_cost"`
	// Alignment is "order", "chaos", or "balance"; empty means balance.
	Alignment string `yaml:"alignment"`
	// LuaOnPlay names the Lua hook dispatched when the card resolves.
	LuaOnPlay string `yaml:"lua_on_play"`
}

// Validate checks the card's invariants.
//
// Postcondition: Returns nil iff ID is non-empty, SandCost is within
// [0, hourglass.AbsoluteCap], and Alignment parses.
func (c *Card) Validate() error {
	var errs []string
	if c.ID == "" {
		errs = append(errs, "id must not be empty")
	}
	if c.SandCost < 0 || c.SandCost > hourglass.AbsoluteCap {
		errs = append(errs, fmt.Sprintf("sand_cost must be 0-%d, got %d", hourglass.AbsoluteCap, c.SandCost))
	}
	if _, err := hourglass.ParseAlignment(c.Alignment); err != nil {
		errs = append(errs, err.Error())
	}
	if len(errs) > 0 {
		return fmt.Errorf("card %q: %s", c.ID, strings.Join(errs, "; "))
	}
	return nil
}

// ParsedAlignment returns the card's alignment as a typed value.
//
// Precondition: Validate must have returned nil.
func (c *Card) ParsedAlignment() hourglass.Alignment {
	a, err := hourglass.ParseAlignment(c.Alignment)
	if err != nil {
		// Validate is a construction invariant; a bad alignment here is a
		// programmer error.
		panic("card: ParsedAlignment on unvalidated card: " + err.Error())
	}
	return a
}

// Registry holds all known Cards keyed by ID.
type Registry struct {
	cards map[string]*Card
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{cards: make(map[string]*Card)}
}

// Register adds c to the registry, overwriting any existing entry with the same ID.
//
// Precondition: c must not be nil and c.ID must not be empty.
func (r *Registry) Register(c *Card) {
	r.cards[c.ID] = c
}

// Get returns the Card for id, or (nil, false) if not found.
func (r *Registry) Get(id string) (*Card, bool) {
	c, ok := r.cards[id]
	return c, ok
}

// Len returns the number of registered cards.
func (r *Registry) Len() int {
	return len(r.cards)
}

// All returns a snapshot slice of all registered Cards.
func (r *Registry) All() []*Card {
	out := make([]*Card, 0, len(r.cards))
	for _, c := range r.cards {
		out = append(out, c)
	}
	return out
}

// LoadDirectory reads every *.yaml file in dir, parses and validates each as
// a Card, and returns a populated Registry.
//
// Precondition: dir must be a readable directory.
// Postcondition: Returns a non-nil Registry, or an error if any file fails
// to parse or validate.
func LoadDirectory(dir string) (*Registry, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading card dir %q: %w", dir, err)
	}
	reg := NewRegistry()
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".yaml") {
			continue
		}
		path := filepath.Join(dir, e.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading %q: %w", path, err)
		}
		var c Card
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&c); err != nil {
			return nil, fmt.Errorf("parsing %q: %w", path, err)
		}
		if err := c.Validate(); err != nil {
			return nil, fmt.Errorf("validating %q: %w", path, err)
		}
		reg.Register(&c)
	}
	return reg, nil
}
