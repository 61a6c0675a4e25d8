// Package output provides formatters for displaying kiln data
// in various formats (table, YAML, JSON).
package output

import (
	"fmt"

	"github.com/jbweber/kiln/internal/catalog"
	"github.com/jbweber/kiln/internal/pve"
	"github.com/jbweber/kiln/internal/status"
)

// Format represents an output format type.
type Format string

const (
	// FormatTable is a human-readable table format.
	FormatTable Format = "table"
	// FormatYAML is a YAML format.
	FormatYAML Format = "yaml"
	// FormatJSON is a JSON format for machine consumption.
	FormatJSON Format = "json"
)

// Formatter formats kiln data for output.
type Formatter interface {
	// FormatEntries formats catalog entries.
	FormatEntries(entries []catalog.Entry) (string, error)

	// FormatChecks formats catalog URL check results.
	FormatChecks(results []catalog.CheckResult) (string, error)

	// FormatResults formats the per-template results of a batch.
	FormatResults(results []*status.Result) (string, error)

	// FormatStorages formats image storages.
	FormatStorages(storages []pve.Storage) (string, error)

	// FormatSnippets formats cloud-init snippets.
	FormatSnippets(snippets []pve.Snippet) (string, error)
}

// Options contains options for formatting output.
type Options struct {
	// Format specifies the output format.
	Format Format
	// NoHeaders omits headers in table format.
	NoHeaders bool
}

// NewFormatter creates a new Formatter based on the specified format.
func NewFormatter(opts Options) (Formatter, error) {
	switch opts.Format {
	case FormatTable:
		return &TableFormatter{NoHeaders: opts.NoHeaders}, nil
	case FormatYAML:
		return &YAMLFormatter{}, nil
	case FormatJSON:
		return &JSONFormatter{}, nil
	default:
		return nil, fmt.Errorf("unsupported output format: %s (supported: table, yaml, json)", opts.Format)
	}
}

// ValidateFormat checks if a format string is valid.
func ValidateFormat(format string) error {
	f := Format(format)
	switch f {
	case FormatTable, FormatYAML, FormatJSON:
		return nil
	default:
		return fmt.Errorf("invalid format: %s (valid formats: table, yaml, json)", format)
	}
}

// checkRow is the serializable form of a catalog.CheckResult.
type checkRow struct {
	Distribution string `json:"distribution" yaml:"distribution"`
	Version      string `json:"version" yaml:"version"`
	URL          string `json:"url" yaml:"url"`
	OK           bool   `json:"ok" yaml:"ok"`
	StatusCode   int    `json:"statusCode,omitempty" yaml:"statusCode,omitempty"`
	Error        string `json:"error,omitempty" yaml:"error,omitempty"`
}

func checkRows(results []catalog.CheckResult) []checkRow {
	rows := make([]checkRow, 0, len(results))
	for _, r := range results {
		rows = append(rows, checkRow{
			Distribution: r.Entry.Distribution,
			Version:      r.Entry.Version,
			URL:          r.Entry.URL,
			OK:           r.OK(),
			StatusCode:   r.StatusCode,
			Error:        r.Reason(),
		})
	}
	return rows
}
