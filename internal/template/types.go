package template

import (
	"fmt"
	"strings"

	"github.com/jbweber/kiln/internal/catalog"
	"github.com/jbweber/kiln/internal/config"
	"github.com/jbweber/kiln/internal/pve"
)

// Descriptor describes one template to build. It is built per selection and
// consumed once by the Builder.
type Descriptor struct {
	ID          int
	Name        string
	Storage     pve.Storage
	Hardware    config.Hardware
	Network     config.Network
	Credentials Credentials
	DiskSize    string
	Tag         string
	Entry       catalog.Entry

	// ImagePath is the decompressed disk image to import.
	ImagePath string
	// Format is the image format passed to the import on file-based storages.
	Format string
	// Description is stored as the VM notes; empty skips the step.
	Description string
}

// Credentials provisions the template's default user. Exactly one variant is
// used: a cloud-init snippet reference, or an explicit username with a
// password and/or SSH key.
type Credentials struct {
	Username string
	Password string
	SSHKey   string

	Snippet *pve.Snippet
}

// UsesSnippet reports whether the snippet variant is selected.
func (c Credentials) UsesSnippet() bool {
	return c.Snippet != nil
}

// Validate checks that exactly one variant is populated.
func (c Credentials) Validate() error {
	explicit := c.Username != "" || c.Password != "" || c.SSHKey != ""
	switch {
	case c.UsesSnippet() && explicit:
		return fmt.Errorf("credentials cannot use both a snippet and explicit fields")
	case c.UsesSnippet():
		if c.Snippet.Storage == "" || c.Snippet.File == "" {
			return fmt.Errorf("snippet reference is incomplete")
		}
		return nil
	case c.Username == "":
		return fmt.Errorf("username is required")
	default:
		return nil
	}
}

// Validate checks the descriptor before any qm command runs.
func (d *Descriptor) Validate() error {
	if d.ID < 100 {
		return fmt.Errorf("invalid VM ID %d", d.ID)
	}
	if d.Name == "" {
		return fmt.Errorf("name is required")
	}
	if d.Storage.Name == "" {
		return fmt.Errorf("storage is required")
	}
	if d.ImagePath == "" {
		return fmt.Errorf("image path is required")
	}
	if err := d.Credentials.Validate(); err != nil {
		return fmt.Errorf("invalid credentials: %w", err)
	}
	return nil
}

// Step is one qm invocation.
type Step struct {
	Name string
	Args []string
}

func (s Step) String() string {
	return "qm " + strings.Join(pve.RedactArgs(s.Args), " ")
}

// StepError reports a qm step that exited non-zero in fail-fast mode.
type StepError struct {
	Step     string
	Args     []string // redacted
	ExitCode int
	Output   string
	Err      error
}

func (e *StepError) Error() string {
	msg := fmt.Sprintf("step %s failed (exit %d)", e.Step, e.ExitCode)
	switch {
	case e.Output != "":
		msg += ": " + e.Output
	case e.Err != nil:
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *StepError) Unwrap() error {
	return e.Err
}
