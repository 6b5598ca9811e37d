// Package similarity provides embedding-based semantic similarity between tools.
package similarity

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// ToolSpec is one entry of the tool description catalog.
type ToolSpec struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
}

type catalogFile struct {
	Tools []ToolSpec `yaml:"tools"`
}

// Catalog maps tool ids to their natural-language descriptions.
type Catalog struct {
	desc map[string]string
}

// NewCatalog builds a catalog from a map of descriptions.
func NewCatalog(desc map[string]string) *Catalog {
	c := &Catalog{desc: make(map[string]string, len(desc))}
	for name, d := range desc {
		c.desc[name] = d
	}
	return c
}

// ParseCatalog decodes a YAML catalog of the form `tools: [{name, description}]`.
func ParseCatalog(data []byte) (*Catalog, error) {
	var f catalogFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parsing tool catalog: %w", err)
	}
	c := &Catalog{desc: make(map[string]string, len(f.Tools))}
	for _, t := range f.Tools {
		if t.Name == "" {
			continue
		}
		c.desc[t.Name] = strings.TrimSpace(t.Description)
	}
	return c, nil
}

// LoadCatalog reads a YAML catalog file.
func LoadCatalog(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading tool catalog: %w", err)
	}
	return ParseCatalog(data)
}

// Description returns the description of tool, if any.
func (c *Catalog) Description(tool string) (string, bool) {
	if c == nil {
		return "", false
	}
	d, ok := c.desc[tool]
	if !ok || d == "" {
		return "", false
	}
	return d, true
}

// Len returns the number of described tools.
func (c *Catalog) Len() int {
	if c == nil {
		return 0
	}
	return len(c.desc)
}

// Names returns every tool id in lexicographic order.
func (c *Catalog) Names() []string {
	if c == nil {
		return nil
	}
	names := make([]string, 0, len(c.desc))
	for n := range c.desc {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// EmbeddingText returns the text embedded for tool: its readable name
// followed by its description.
func (c *Catalog) EmbeddingText(tool string) (string, bool) {
	d, ok := c.Description(tool)
	if !ok {
		return "", false
	}
	return CleanName(tool) + " " + d, true
}

// CleanName turns a tool id into readable text: underscores become spaces,
// a lowercase letter followed by an uppercase one is split, and the result is
// lowercased. Runs of capitals stay together, so "NDVIIndex" is "ndviindex".
func CleanName(name string) string {
	var b strings.Builder
	var prev rune
	for _, r := range strings.ReplaceAll(name, "_", " ") {
		if prev >= 'a' && prev <= 'z' && r >= 'A' && r <= 'Z' {
			b.WriteByte(' ')
		}
		b.WriteRune(r)
		prev = r
	}
	return strings.ToLower(b.String())
}
