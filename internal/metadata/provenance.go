// Package metadata records where a template came from. The record is stored
// in the template's Proxmox notes field (qm set --description) so it travels
// with the template and every VM cloned from it.
package metadata

import (
	"fmt"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Header is the first line of every provenance note.
const Header = "Built by kiln"

// Provenance describes how a template was built.
type Provenance struct {
	Tool         string    `yaml:"tool"`
	Version      string    `yaml:"version"`
	RunID        string    `yaml:"run_id"`
	Distribution string    `yaml:"distribution"`
	Release      string    `yaml:"release"`
	SourceURL    string    `yaml:"source_url"`
	Image        string    `yaml:"image"`
	Format       string    `yaml:"format,omitempty"`
	Created      time.Time `yaml:"created"`
}

// Render formats p as a Markdown note: a header line followed by a fenced
// YAML block, which the Proxmox UI displays verbatim.
func Render(p Provenance) (string, error) {
	if p.Tool == "" {
		p.Tool = "kiln"
	}
	p.Created = p.Created.UTC().Truncate(time.Second)

	data, err := yaml.Marshal(p)
	if err != nil {
		return "", fmt.Errorf("failed to marshal provenance to YAML: %w", err)
	}

	var b strings.Builder
	b.WriteString(Header)
	b.WriteString("\n\n```yaml\n")
	b.Write(data)
	b.WriteString("```\n")
	return b.String(), nil
}

// Parse extracts the provenance record from a note produced by Render.
func Parse(note string) (*Provenance, error) {
	start := strings.Index(note, "```yaml\n")
	if start < 0 {
		return nil, fmt.Errorf("note does not contain a provenance block")
	}
	body := note[start+len("```yaml\n"):]
	end := strings.Index(body, "```")
	if end < 0 {
		return nil, fmt.Errorf("provenance block is not terminated")
	}

	var p Provenance
	if err := yaml.Unmarshal([]byte(body[:end]), &p); err != nil {
		return nil, fmt.Errorf("failed to unmarshal provenance from YAML: %w", err)
	}
	return &p, nil
}
