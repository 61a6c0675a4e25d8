package prompt

import (
	"context"
	"fmt"

	"github.com/jbweber/kiln/internal/config"
	"github.com/jbweber/kiln/internal/pve"
	"github.com/jbweber/kiln/internal/template"
)

// Storage returns the configured storage when the host has it, otherwise
// asks the operator to pick one.
func (p *Prompter) Storage(ctx context.Context, inv pve.Inventory, configured string) (pve.Storage, error) {
	storages, err := inv.Storages(ctx)
	if err != nil {
		return pve.Storage{}, err
	}

	if configured != "" {
		for _, s := range storages {
			if s.Name == configured {
				return s, nil
			}
		}
		_, _ = fmt.Fprintf(p.Out, "Configured storage %q is not available\n\n", configured)
	}

	labels := make([]string, len(storages))
	for i, s := range storages {
		labels[i] = fmt.Sprintf("%s (%s)", s.Name, s.Type)
	}
	idx, err := p.Choose("Select storage", labels)
	if err != nil {
		return pve.Storage{}, err
	}
	return storages[idx], nil
}

// Snippet asks the operator to pick a cloud-init snippet. When storage is
// set only snippets on that storage are offered.
func (p *Prompter) Snippet(ctx context.Context, inv pve.Inventory, storage string) (pve.Snippet, error) {
	snippets, err := inv.Snippets(ctx)
	if err != nil {
		return pve.Snippet{}, err
	}

	if storage != "" {
		var filtered []pve.Snippet
		for _, s := range snippets {
			if s.Storage == storage {
				filtered = append(filtered, s)
			}
		}
		if len(filtered) == 0 {
			return pve.Snippet{}, fmt.Errorf("%w on storage %s", pve.ErrNoSnippets, storage)
		}
		snippets = filtered
	}

	labels := make([]string, len(snippets))
	for i, s := range snippets {
		labels[i] = s.Ref()
	}
	idx, err := p.Choose("Select cloud-init snippet", labels)
	if err != nil {
		return pve.Snippet{}, err
	}
	return snippets[idx], nil
}

// Credentials asks how the default user is provisioned and collects the
// chosen variant only.
func (p *Prompter) Credentials(ctx context.Context, inv pve.Inventory, snippetStorage string) (template.Credentials, error) {
	idx, err := p.Choose("Select credential method", []string{
		"Enter username, password and SSH key",
		"Use an existing cloud-init snippet",
	})
	if err != nil {
		return template.Credentials{}, err
	}

	if idx == 1 {
		snippet, err := p.Snippet(ctx, inv, snippetStorage)
		if err != nil {
			return template.Credentials{}, err
		}
		return template.Credentials{Snippet: &snippet}, nil
	}
	return p.ExplicitCredentials()
}

// ExplicitCredentials collects a username, an optional password and an SSH
// public key.
func (p *Prompter) ExplicitCredentials() (template.Credentials, error) {
	username, err := p.Ask("username", config.ValidateUsername)
	if err != nil {
		return template.Credentials{}, err
	}
	password, err := p.Password("password (empty to skip)")
	if err != nil {
		return template.Credentials{}, err
	}
	key, err := p.Ask("SSH public key", config.ValidateSSHKey)
	if err != nil {
		return template.Credentials{}, err
	}
	return template.Credentials{Username: username, Password: password, SSHKey: key}, nil
}

// SeedCredentials collects credentials for a NoCloud seed. The SSH key may be
// skipped when a password was given, but a seed needs at least one of them.
func (p *Prompter) SeedCredentials() (template.Credentials, error) {
	username, err := p.Ask("username", config.ValidateUsername)
	if err != nil {
		return template.Credentials{}, err
	}
	password, err := p.Password("password (empty to skip)")
	if err != nil {
		return template.Credentials{}, err
	}

	label := "SSH public key"
	if password != "" {
		label += " (empty to skip)"
	}
	key, err := p.Ask(label, func(s string) error {
		if s == "" && password != "" {
			return nil
		}
		return config.ValidateSSHKey(s)
	})
	if err != nil {
		return template.Credentials{}, err
	}
	return template.Credentials{Username: username, Password: password, SSHKey: key}, nil
}
