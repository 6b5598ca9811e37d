package importance

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/zeebo/blake3"

	"github.com/geoplan-bench/trajeval/internal/graph"
)

// Source names where a table's transition graph came from.
type Source string

const (
	// SourceTasks builds the graph from ground-truth flows of task records.
	SourceTasks Source = "tasks"
	// SourceTemplates merges DAG templates, which may declare isolated tools.
	SourceTemplates Source = "dag_templates"
)

// ParseSource converts a string to a Source. "templates" is accepted for
// SourceTemplates.
func ParseSource(s string) (Source, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "tasks":
		return SourceTasks, nil
	case "templates", "dag_templates":
		return SourceTemplates, nil
	default:
		return "", fmt.Errorf("unknown importance source: %s (valid: tasks, templates)", s)
	}
}

// Template is a DAG template: declared tools and directed dependencies.
// Each edge lists [from, to]; extra elements are ignored.
type Template struct {
	Nodes []string   `json:"nodes"`
	Edges [][]string `json:"edges"`
}

// LoadTemplates reads every *.json template in dir, sorted by file name.
// Files that cannot be parsed or lack nodes and edges are skipped with a warning.
func LoadTemplates(dir string, logger *slog.Logger) ([]Template, error) {
	if logger == nil {
		logger = slog.Default()
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading templates: %w", err)
	}

	var templates []Template
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".json" {
			continue
		}
		path := filepath.Join(dir, e.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			logger.Warn("skipping unreadable template", "file", path, "error", err)
			continue
		}
		var raw struct {
			Nodes *[]string   `json:"nodes"`
			Edges *[][]string `json:"edges"`
		}
		if err := json.Unmarshal(data, &raw); err != nil {
			logger.Warn("skipping invalid template", "file", path, "error", err)
			continue
		}
		if raw.Nodes == nil || raw.Edges == nil {
			logger.Warn("skipping template without nodes and edges", "file", path)
			continue
		}
		templates = append(templates, Template{Nodes: *raw.Nodes, Edges: *raw.Edges})
	}
	return templates, nil
}

// TemplateGraph merges templates into one graph. Every declared tool becomes
// a node, and each occurrence of an edge adds 1 to its weight. Edges with a
// null endpoint are skipped.
func TemplateGraph(templates []Template) *graph.TransitionGraph {
	var nodes []string
	var edges []graph.Edge
	for _, t := range templates {
		nodes = append(nodes, t.Nodes...)
		for _, e := range t.Edges {
			if len(e) < 2 || e[0] == "" || e[1] == "" {
				continue
			}
			edges = append(edges, graph.Edge{From: e[0], To: e[1], Weight: 1})
		}
	}
	return graph.FromEdges(nodes, edges)
}

// HashTemplates returns a BLAKE3 digest of the templates that does not depend
// on their order.
func HashTemplates(templates []Template) string {
	encoded := make([]string, 0, len(templates))
	for _, t := range templates {
		b, _ := json.Marshal(t)
		encoded = append(encoded, string(b))
	}
	sort.Strings(encoded)

	h := blake3.New()
	_, _ = h.Write([]byte(SourceTemplates))
	for _, e := range encoded {
		_, _ = h.Write([]byte{'\n'})
		_, _ = h.Write([]byte(e))
	}
	return "blake3:" + hex.EncodeToString(h.Sum(nil))
}
