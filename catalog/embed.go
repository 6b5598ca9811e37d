// Package catalog provides the embedded default tool catalog.
package catalog

import _ "embed"

// DefaultYAML is the built-in tool catalog used when no catalog file is configured.
//
//go:embed tools.yaml
var DefaultYAML []byte
