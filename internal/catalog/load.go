package catalog

import (
	"context"
	_ "embed"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed images.json
var embeddedCatalog []byte

// maxCatalogSize caps remote catalog documents.
const maxCatalogSize = 4 << 20

// Default returns the catalog compiled into the binary.
func Default() (*Catalog, error) {
	return Parse(embeddedCatalog)
}

// Load resolves a catalog source:
//   - "" → the embedded catalog
//   - http:// or https:// URL → fetched with client (http.DefaultClient if nil)
//   - anything else → a local file path
func Load(ctx context.Context, source string, client *http.Client) (*Catalog, error) {
	source = strings.TrimSpace(source)
	switch {
	case source == "":
		return Default()
	case strings.HasPrefix(source, "http://") || strings.HasPrefix(source, "https://"):
		return fetchRemote(ctx, source, client)
	default:
		return LoadFromFile(source)
	}
}

// LoadFromFile loads a catalog from a JSON or YAML file.
func LoadFromFile(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog file: %w", err)
	}
	return Parse(data)
}

func fetchRemote(ctx context.Context, url string, client *http.Client) (*Catalog, error) {
	if client == nil {
		client = http.DefaultClient
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch catalog: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to fetch catalog: HTTP %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxCatalogSize))
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog: %w", err)
	}
	return Parse(data)
}

// Parse decodes a catalog document of the shape
//
//	{ "<distribution>": { "tag": "...", "versions": [ {"name", "url", "deprecated"} ] } }
//
// JSON is accepted as YAML. Distribution order is taken from the document,
// which is why the mapping is walked as a yaml.Node instead of decoded into a
// Go map.
func Parse(data []byte) (*Catalog, error) {
	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return nil, fmt.Errorf("failed to parse catalog: %w", err)
	}

	if root.Kind != yaml.DocumentNode || len(root.Content) == 0 {
		return nil, fmt.Errorf("catalog is empty")
	}

	doc := root.Content[0]
	if doc.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("catalog must be a mapping of distribution names, got line %d", doc.Line)
	}

	cat := &Catalog{}
	for i := 0; i+1 < len(doc.Content); i += 2 {
		key, value := doc.Content[i], doc.Content[i+1]

		var d Distribution
		if err := value.Decode(&d); err != nil {
			return nil, fmt.Errorf("failed to parse distribution %q: %w", key.Value, err)
		}
		d.Name = key.Value
		cat.Distributions = append(cat.Distributions, d)
	}

	if err := cat.Validate(); err != nil {
		return nil, fmt.Errorf("invalid catalog: %w", err)
	}
	return cat, nil
}
