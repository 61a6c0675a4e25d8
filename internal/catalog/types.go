// Package catalog holds the image catalog: which distributions kiln knows
// about, their versions, and where each cloud image is downloaded from.
//
// A catalog is immutable reference data. It is loaded once per run (from the
// embedded document, a local file, or a remote URL) and passed explicitly to
// whoever needs it.
package catalog

import (
	"fmt"
)

// Catalog is an ordered list of distributions. Order follows the source
// document and determines menu order.
type Catalog struct {
	Distributions []Distribution `yaml:"distributions" json:"distributions"`
}

// Distribution is one operating system and its downloadable versions.
type Distribution struct {
	Name     string    `yaml:"-" json:"name,omitempty"`
	Tag      string    `yaml:"tag,omitempty" json:"tag,omitempty"`
	Versions []Version `yaml:"versions" json:"versions"`
}

// Version is a single downloadable image.
type Version struct {
	Name       string `yaml:"name" json:"name"`
	URL        string `yaml:"url" json:"url"`
	Deprecated bool   `yaml:"deprecated,omitempty" json:"deprecated,omitempty"`
}

// Entry is a flattened (distribution, version) pair.
type Entry struct {
	Distribution string `yaml:"distribution" json:"distribution"`
	Tag          string `yaml:"tag,omitempty" json:"tag,omitempty"`
	Version      string `yaml:"version" json:"version"`
	URL          string `yaml:"url" json:"url"`
	Deprecated   bool   `yaml:"deprecated,omitempty" json:"deprecated,omitempty"`
}

// Selection identifies a version chosen by the operator.
type Selection struct {
	Distribution string
	VersionIndex int
}

// Label is the human-readable form used in menus and checklists.
func (e Entry) Label() string {
	label := fmt.Sprintf("%s %s", e.Distribution, e.Version)
	if e.Deprecated {
		label += " (deprecated)"
	}
	return label
}

// Names returns the distribution names in catalog order.
func (c *Catalog) Names() []string {
	names := make([]string, 0, len(c.Distributions))
	for _, d := range c.Distributions {
		names = append(names, d.Name)
	}
	return names
}

// Find looks up a distribution by exact name.
func (c *Catalog) Find(name string) (*Distribution, bool) {
	for i := range c.Distributions {
		if c.Distributions[i].Name == name {
			return &c.Distributions[i], true
		}
	}
	return nil, false
}

// Entries flattens the catalog into (distribution × version) pairs in
// catalog order. Deprecated versions are included only when
// includeDeprecated is true.
func (c *Catalog) Entries(includeDeprecated bool) []Entry {
	var entries []Entry
	for _, d := range c.Distributions {
		for _, v := range d.Versions {
			if v.Deprecated && !includeDeprecated {
				continue
			}
			entries = append(entries, d.entry(v))
		}
	}
	return entries
}

// Resolve turns a selection into its catalog entry.
func (c *Catalog) Resolve(sel Selection) (Entry, error) {
	d, ok := c.Find(sel.Distribution)
	if !ok {
		return Entry{}, fmt.Errorf("distribution %q not found in catalog", sel.Distribution)
	}
	if sel.VersionIndex < 0 || sel.VersionIndex >= len(d.Versions) {
		return Entry{}, fmt.Errorf("version index %d out of range for %s (has %d versions)",
			sel.VersionIndex, d.Name, len(d.Versions))
	}
	return d.entry(d.Versions[sel.VersionIndex]), nil
}

// Selections returns the selection for every entry Entries would return,
// in the same order.
func (c *Catalog) Selections(includeDeprecated bool) []Selection {
	var sels []Selection
	for _, d := range c.Distributions {
		for i, v := range d.Versions {
			if v.Deprecated && !includeDeprecated {
				continue
			}
			sels = append(sels, Selection{Distribution: d.Name, VersionIndex: i})
		}
	}
	return sels
}

func (d *Distribution) entry(v Version) Entry {
	return Entry{
		Distribution: d.Name,
		Tag:          d.Tag,
		Version:      v.Name,
		URL:          v.URL,
		Deprecated:   v.Deprecated,
	}
}

// Validate checks the catalog for structural errors.
func (c *Catalog) Validate() error {
	if len(c.Distributions) == 0 {
		return fmt.Errorf("catalog has no distributions")
	}

	seen := make(map[string]bool)
	for i, d := range c.Distributions {
		if d.Name == "" {
			return fmt.Errorf("distributions[%d]: name is required", i)
		}
		if seen[d.Name] {
			return fmt.Errorf("distributions[%d]: duplicate distribution %q", i, d.Name)
		}
		seen[d.Name] = true

		if len(d.Versions) == 0 {
			return fmt.Errorf("%s: at least one version is required", d.Name)
		}
		versions := make(map[string]bool)
		for j, v := range d.Versions {
			if v.Name == "" {
				return fmt.Errorf("%s: versions[%d]: name is required", d.Name, j)
			}
			if versions[v.Name] {
				return fmt.Errorf("%s: versions[%d]: duplicate version %q", d.Name, j, v.Name)
			}
			versions[v.Name] = true
			if v.URL == "" {
				return fmt.Errorf("%s: versions[%d]: url is required", d.Name, j)
			}
		}
	}
	return nil
}
