package template

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/jbweber/kiln/internal/config"
	"github.com/jbweber/kiln/internal/fetch"
	"github.com/jbweber/kiln/internal/naming"
	"github.com/jbweber/kiln/internal/pve"
	"github.com/jbweber/kiln/internal/status"
)

// Builder runs the qm steps for one template at a time.
type Builder struct {
	Runner    pve.Runner
	Workspace *fetch.Workspace
	Policy    config.Policy
	Logger    *zap.Logger
}

// NewBuilder creates a builder. A nil logger discards output.
func NewBuilder(runner pve.Runner, ws *fetch.Workspace, policy config.Policy, logger *zap.Logger) *Builder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Builder{Runner: runner, Workspace: ws, Policy: policy, Logger: logger}
}

// Plan returns the ordered qm steps for d. keyFile is the SSH public key file
// referenced by the sshkeys step and must be set when d carries an SSH key.
func Plan(d *Descriptor, keyFile string) ([]Step, error) {
	image, err := filepath.Abs(d.ImagePath)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve image path: %w", err)
	}

	id := strconv.Itoa(d.ID)
	set := func(name string, args ...string) Step {
		return Step{Name: name, Args: append([]string{"set", id}, args...)}
	}

	disk := fmt.Sprintf("%s:0,import-from=%s", d.Storage.Name, image)
	if d.Format != "" && d.Storage.FileBased() {
		disk += ",format=" + d.Format
	}
	disk += ",discard=on"

	steps := []Step{
		{Name: "create", Args: []string{"create", id, "--name", d.Name, "--ostype", "l26"}},
		set("network", "--net0", "virtio,bridge="+d.Network.Bridge),
		set("hardware",
			"--memory", strconv.Itoa(d.Hardware.Memory),
			"--cores", strconv.Itoa(d.Hardware.Cores),
			"--sockets", strconv.Itoa(d.Hardware.Sockets),
			"--cpu", d.Hardware.CPU),
		set("console", "--serial0", "socket", "--vga", "serial0"),
		set("disk", "--scsi0", disk),
		set("boot", "--boot", "order=scsi0", "--scsihw", "virtio-scsi-single"),
		set("cloudinit-drive", "--ide2", d.Storage.Name+":cloudinit"),
		set("ipconfig", "--ipconfig0", d.Network.IPConfig()),
	}

	creds := d.Credentials
	if creds.UsesSnippet() {
		steps = append(steps, set("cicustom", "--cicustom", "user="+creds.Snippet.Ref()))
	} else {
		steps = append(steps, set("ciuser", "--ciuser", creds.Username))
		if creds.Password != "" {
			steps = append(steps, set("cipassword", "--cipassword", creds.Password))
		}
		if creds.SSHKey != "" {
			if keyFile == "" {
				return nil, errors.New("SSH key file path is required")
			}
			steps = append(steps, set("sshkeys", "--sshkeys", keyFile))
		}
	}

	if d.DiskSize != "" {
		steps = append(steps, Step{Name: "resize", Args: []string{"resize", id, "scsi0", d.DiskSize}})
	}
	steps = append(steps, set("agent", "--agent", "enabled=1,fstrim_cloned_disks=1"))
	if d.Tag != "" {
		steps = append(steps, set("tags", "--tags", d.Tag))
	}
	if d.Description != "" {
		steps = append(steps, set("description", "--description", d.Description))
	}
	steps = append(steps, Step{Name: "template", Args: []string{"template", id}})

	return steps, nil
}

// Build creates the template described by d. Step failures are recorded on
// result (which may be nil) in best-effort mode and returned as *StepError in
// fail-fast mode. Cancellation of ctx always aborts.
func (b *Builder) Build(ctx context.Context, d *Descriptor, result *status.Result) error {
	if b.Workspace == nil {
		return errors.New("builder has no workspace")
	}
	if d == nil {
		return errors.New("template descriptor cannot be nil")
	}

	logger := b.logger().With(zap.Int("vmid", d.ID), zap.String("name", d.Name))

	// The image is removed on every path, including a rejected descriptor.
	var keyFile string
	defer func() {
		b.cleanup(logger, d.ImagePath, keyFile)
	}()

	if err := d.Validate(); err != nil {
		return fmt.Errorf("invalid template descriptor: %w", err)
	}

	if !d.Credentials.UsesSnippet() && d.Credentials.SSHKey != "" {
		keyFile = b.Workspace.Path(naming.SSHKeyFileName(d.ID, uuid.NewString()[:8]))
		key := strings.TrimSpace(d.Credentials.SSHKey) + "\n"
		if err := os.WriteFile(keyFile, []byte(key), 0o600); err != nil {
			return fmt.Errorf("failed to write SSH key file: %w", err)
		}
	}

	steps, err := Plan(d, keyFile)
	if err != nil {
		return fmt.Errorf("failed to plan template steps: %w", err)
	}

	for i, step := range steps {
		logger.Info("running step",
			zap.String("step", step.Name),
			zap.Int("index", i+1),
			zap.Int("total", len(steps)))

		res, err := b.Runner.Run(ctx, "qm", step.Args...)
		if err == nil {
			continue
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return fmt.Errorf("template %s interrupted at step %s: %w", d.Name, step.Name, ctxErr)
		}

		stepErr := &StepError{
			Step:     step.Name,
			Args:     pve.RedactArgs(step.Args),
			ExitCode: res.ExitCode,
			Output:   res.Output(),
			Err:      err,
		}
		if b.Policy == config.PolicyFailFast {
			return stepErr
		}

		logger.Warn("step failed, continuing",
			zap.String("step", step.Name),
			zap.Int("exit_code", res.ExitCode),
			zap.String("output", stepErr.Output),
			zap.Error(err))
		if result != nil {
			status.MarkStepFailed(result, step.Name)
		}
	}

	logger.Info("template created")
	return nil
}

// cleanup removes the image and key file. Failures are logged, never
// returned.
func (b *Builder) cleanup(logger *zap.Logger, paths ...string) {
	if err := b.Workspace.Remove(paths...); err != nil {
		logger.Warn("cleanup failed", zap.Error(err))
		return
	}
	logger.Debug("cleaned up build artifacts", zap.Strings("paths", paths))
}

func (b *Builder) logger() *zap.Logger {
	if b.Logger == nil {
		return zap.NewNop()
	}
	return b.Logger
}
