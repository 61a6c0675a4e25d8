// Package naming provides the naming conventions kiln applies to templates:
// template names, Proxmox tags, and transient file names.
//
// These rules are pure string functions so they can be shared by the
// builder, the batch runner, and the seed generator.
package naming

import (
	"fmt"
	"regexp"
	"strings"
)

// DefaultPrefix is used when no template name prefix is configured.
const DefaultPrefix = "template"

var nonSlug = regexp.MustCompile(`[^a-z0-9]+`)

// Slug lowercases s and replaces every run of whitespace, dots, or other
// non-alphanumeric characters with a single hyphen.
//
// Example: "Gentoo Linux" → "gentoo-linux", "3.20" → "3-20"
func Slug(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = nonSlug.ReplaceAllString(s, "-")
	return strings.Trim(s, "-")
}

// TemplateName builds the template display name from a prefix, a
// distribution, and a version. The result is deterministic.
//
// Format: {prefix}-{distribution}-{version}
//
// Example: ("template", "Rocky", "9") → "template-rocky-9"
func TemplateName(prefix, distribution, version string) string {
	prefix = Slug(prefix)
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return fmt.Sprintf("%s-%s-%s", prefix, Slug(distribution), Slug(version))
}

// Tag returns the Proxmox tag applied to a template. An explicit catalog tag
// wins; otherwise the distribution name is slugged.
//
// Proxmox tags only allow [a-z0-9_+.-], which Slug output satisfies.
func Tag(catalogTag, distribution string) string {
	if t := Slug(catalogTag); t != "" {
		return t
	}
	return Slug(distribution)
}

// SSHKeyFileName returns the name of the transient file the SSH public key
// is written to for a template. The file only exists while the builder runs.
func SSHKeyFileName(id int, token string) string {
	return fmt.Sprintf(".kiln-%d-%s.pub", id, token)
}
