package output

import (
	"bytes"
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/jbweber/kiln/internal/catalog"
	"github.com/jbweber/kiln/internal/pve"
	"github.com/jbweber/kiln/internal/status"
)

// YAMLFormatter formats data as YAML.
type YAMLFormatter struct{}

// marshalYAMLStream outputs one YAML document per item, separated by ---.
func marshalYAMLStream[T any](items []T, what string) (string, error) {
	if len(items) == 0 {
		return "", nil
	}

	var buf bytes.Buffer

	for i, item := range items {
		data, err := yaml.Marshal(item)
		if err != nil {
			return "", fmt.Errorf("failed to marshal %s to YAML: %w", what, err)
		}

		// Add document separator between items (but not before the first one)
		if i > 0 {
			buf.WriteString("---\n")
		}

		buf.Write(data)
	}

	return buf.String(), nil
}

// FormatEntries formats catalog entries as a YAML stream.
func (f *YAMLFormatter) FormatEntries(entries []catalog.Entry) (string, error) {
	return marshalYAMLStream(entries, "catalog entry")
}

// FormatChecks formats URL check results as a YAML stream.
func (f *YAMLFormatter) FormatChecks(results []catalog.CheckResult) (string, error) {
	return marshalYAMLStream(checkRows(results), "check result")
}

// FormatResults formats batch results as a YAML stream.
func (f *YAMLFormatter) FormatResults(results []*status.Result) (string, error) {
	return marshalYAMLStream(results, "result")
}

// FormatStorages formats storages as a YAML stream.
func (f *YAMLFormatter) FormatStorages(storages []pve.Storage) (string, error) {
	return marshalYAMLStream(storages, "storage")
}

// FormatSnippets formats snippets as a YAML stream.
func (f *YAMLFormatter) FormatSnippets(snippets []pve.Snippet) (string, error) {
	return marshalYAMLStream(snippets, "snippet")
}
