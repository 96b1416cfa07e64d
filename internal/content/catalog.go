// Package content serves the static reference texts the bot answers with.
// The texts themselves live outside the code in a JSON catalog.
package content

import (
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"os"
	"slices"
	"strings"
)

// Categories used by the command handlers.
const (
	CategoryDose   = "dose"
	CategoryPoison = "poison"
	CategoryFire   = "fire"
	CategoryLaw    = "law"
	CategoryAdmin  = "admin"
	CategoryMenu   = "menu"
)

// Provider looks up a reference text by category and key.
type Provider interface {
	Lookup(category, key string) (string, bool)
	// Keys lists the normalized keys of a category in sorted order.
	Keys(category string) []string
}

// Catalog is an in-memory Provider. It is immutable after loading and safe for
// concurrent use.
type Catalog struct {
	entries map[string]map[string]string
}

// NewCatalog builds a catalog from nested category -> key -> text maps.
// Category and key matching is case-insensitive.
func NewCatalog(data map[string]map[string]string) *Catalog {
	entries := make(map[string]map[string]string, len(data))
	for category, texts := range data {
		normalized := make(map[string]string, len(texts))
		for key, text := range texts {
			normalized[normalize(key)] = text
		}
		entries[normalize(category)] = normalized
	}
	return &Catalog{entries: entries}
}

// LoadCatalog reads a JSON catalog of the form {"category": {"key": "text"}}.
// An empty path yields an empty catalog.
func LoadCatalog(path string) (*Catalog, error) {
	if path == "" {
		return NewCatalog(nil), nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("content file %s does not exist", path)
		}
		return nil, fmt.Errorf("failed to read content file %s: %w", path, err)
	}
	var data map[string]map[string]string
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, fmt.Errorf("failed to decode content file %s: %w", path, err)
	}
	catalog := NewCatalog(data)
	for key, text := range catalog.entries[CategoryDose] {
		if _, err := parseDose(text, 1); err != nil {
			return nil, fmt.Errorf("content file %s: dose %q: %w", path, key, err)
		}
	}
	return catalog, nil
}

// Lookup implements Provider.
func (c *Catalog) Lookup(category, key string) (string, bool) {
	texts, ok := c.entries[normalize(category)]
	if !ok {
		return "", false
	}
	text, ok := texts[normalize(key)]
	return text, ok
}

// Keys implements Provider.
func (c *Catalog) Keys(category string) []string {
	return slices.Sorted(maps.Keys(c.entries[normalize(category)]))
}

// Size returns the total number of texts in the catalog.
func (c *Catalog) Size() int {
	n := 0
	for _, texts := range c.entries {
		n += len(texts)
	}
	return n
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
