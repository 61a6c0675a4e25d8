package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/jbweber/kiln/internal/batch"
	"github.com/jbweber/kiln/internal/catalog"
	"github.com/jbweber/kiln/internal/fetch"
	"github.com/jbweber/kiln/internal/output"
	"github.com/jbweber/kiln/internal/prompt"
	"github.com/jbweber/kiln/internal/pve"
	"github.com/jbweber/kiln/internal/status"
	"github.com/jbweber/kiln/internal/template"
	"github.com/jbweber/kiln/internal/vmid"
)

var buildCmd = &cobra.Command{
	Use:   "build",
	Short: "Interactively build VM templates",
	Long: `Select images from the catalog and build a Proxmox VM template from each.

For every selected image kiln:
- allocates the next free VM ID at or above the start ID
- downloads and, if needed, decompresses the image
- creates and configures the VM with qm
- converts it into a template

With policy best-effort a failing qm step is logged and the build continues;
with fail-fast the template is abandoned at the first failure.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runBuild(cmd.Context())
	},
}

func init() {
	addBuildFlags(buildCmd.Flags())
}

func addBuildFlags(flags *pflag.FlagSet) {
	flags.String("storage", "", "Storage for template disks (prompted when unset)")
	flags.String("snippet-storage", "", "Only offer cloud-init snippets from this storage")
	flags.String("policy", "best-effort", "Failure policy for qm steps (best-effort, fail-fast)")
	flags.String("prefix", "template", "Template name prefix")
	flags.Int("start-id", 900, "Lowest VM ID to allocate")
	flags.String("disk-size", "10G", "Boot disk size passed to qm resize")
	flags.String("bridge", "vmbr0", "Network bridge for net0")
	flags.String("ipv4", "dhcp", "IPv4 config (dhcp or address/prefix)")
	flags.String("ipv6", "auto", "IPv6 config (auto, dhcp or address/prefix)")
	flags.Bool("checklist", true, "Select several images with a checklist")
}

func runBuild(ctx context.Context) error {
	cat, err := catalog.Load(ctx, cfg.Catalog, nil)
	if err != nil {
		return fmt.Errorf("failed to load catalog: %w", err)
	}

	runner := pve.NewExecRunner(logger)
	inv := pve.NewClient(runner)

	ws, err := fetch.NewWorkspace(cfg.Workdir)
	if err != nil {
		return err
	}

	p := prompt.NewTerminal()

	var selections []catalog.Selection
	if cfg.Checklist {
		selections, err = p.Checklist(cat)
	} else {
		var sel catalog.Selection
		sel, err = p.SelectSingle(cat)
		selections = []catalog.Selection{sel}
	}
	if errors.Is(err, prompt.ErrCancelled) {
		fmt.Println("Cancelled, nothing built")
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to select images: %w", err)
	}

	storage, err := p.Storage(ctx, inv, cfg.Storage.Name)
	if err != nil {
		return fmt.Errorf("failed to select storage: %w", err)
	}

	creds, err := p.Credentials(ctx, inv, cfg.Storage.Snippets)
	if err != nil {
		return fmt.Errorf("failed to collect credentials: %w", err)
	}

	logger.Info("starting build",
		zap.Int("templates", len(selections)),
		zap.String("storage", storage.Name),
		zap.String("policy", string(cfg.Policy)))

	b := &batch.Runner{
		Catalog:   cat,
		Config:    cfg,
		Allocator: vmid.NewAllocator(inv, cfg.Naming.StartID),
		Downloader: &fetch.Downloader{
			Progress: os.Stdout,
			Space:    ws,
			Logger:   logger,
		},
		Builder:   template.NewBuilder(runner, ws, cfg.Policy, logger),
		Workspace: ws,
		Version:   version,
		Logger:    logger,
		Out:       os.Stdout,
	}

	results, runErr := b.Run(ctx, selections, batch.Options{Storage: storage, Credentials: creds})
	printResults(results)
	return runErr
}

func printResults(results []*status.Result) {
	if len(results) == 0 {
		return
	}
	table, err := (&output.TableFormatter{}).FormatResults(results)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to format results: %v\n", err)
		return
	}
	fmt.Println()
	fmt.Print(table)
	fmt.Printf("\n%s\n", status.Summarize(results))
}
