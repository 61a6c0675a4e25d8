package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/jbweber/kiln/internal/metadata"
	"github.com/jbweber/kiln/internal/pve"
)

var describeCmd = &cobra.Command{
	Use:   "describe <vmid>",
	Short: "Show how a template was built",
	Long: `Read the provenance kiln stored in a template's notes: the source image
URL, distribution and version, kiln version, run ID and build time.

Example:
  kiln describe 900`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("invalid VM ID %q", args[0])
		}

		inv := pve.NewClient(pve.NewExecRunner(logger))
		vm, err := inv.VMConfig(cmd.Context(), id)
		if err != nil {
			return err
		}

		p, err := metadata.Parse(vm.Description)
		if err != nil {
			return fmt.Errorf("VM %d was not built by kiln: %w", id, err)
		}

		fmt.Printf("VM: %d (%s)\n", id, vm.Name)
		fmt.Printf("Template: %t\n", vm.IsTemplate())
		fmt.Printf("Tags: %s\n", vm.Tags)
		fmt.Printf("Distribution: %s %s\n", p.Distribution, p.Release)
		fmt.Printf("Source: %s\n", p.SourceURL)
		fmt.Printf("Image: %s (%s)\n", p.Image, p.Format)
		fmt.Printf("Built by: %s %s\n", p.Tool, p.Version)
		fmt.Printf("Run ID: %s\n", p.RunID)
		fmt.Printf("Created: %s\n", p.Created.Format("2006-01-02 15:04:05 MST"))
		return nil
	},
}
