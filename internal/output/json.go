package output

import (
	"encoding/json"
	"fmt"

	"github.com/jbweber/kiln/internal/catalog"
	"github.com/jbweber/kiln/internal/pve"
	"github.com/jbweber/kiln/internal/status"
)

// JSONFormatter formats data as JSON arrays.
type JSONFormatter struct{}

func marshalJSONList[T any](items []T, what string) (string, error) {
	if len(items) == 0 {
		return "[]\n", nil
	}

	data, err := json.MarshalIndent(items, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal %s to JSON: %w", what, err)
	}

	return string(data) + "\n", nil
}

// FormatEntries formats catalog entries as JSON.
func (f *JSONFormatter) FormatEntries(entries []catalog.Entry) (string, error) {
	return marshalJSONList(entries, "catalog entries")
}

// FormatChecks formats URL check results as JSON.
func (f *JSONFormatter) FormatChecks(results []catalog.CheckResult) (string, error) {
	return marshalJSONList(checkRows(results), "check results")
}

// FormatResults formats batch results as JSON.
func (f *JSONFormatter) FormatResults(results []*status.Result) (string, error) {
	return marshalJSONList(results, "results")
}

// FormatStorages formats storages as JSON.
func (f *JSONFormatter) FormatStorages(storages []pve.Storage) (string, error) {
	return marshalJSONList(storages, "storages")
}

// FormatSnippets formats snippets as JSON.
func (f *JSONFormatter) FormatSnippets(snippets []pve.Snippet) (string, error) {
	return marshalJSONList(snippets, "snippets")
}
