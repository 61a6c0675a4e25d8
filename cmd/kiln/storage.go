package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jbweber/kiln/internal/output"
	"github.com/jbweber/kiln/internal/pve"
)

var storageCmd = &cobra.Command{
	Use:   "storage",
	Short: "Inspect Proxmox storages",
	Long:  `Show the storages and cloud-init snippets kiln can use on this host.`,
}

func init() {
	storageCmd.AddCommand(storageListCmd)
	storageCmd.AddCommand(storageSnippetsCmd)

	addOutputFlags(storageListCmd)
	addOutputFlags(storageSnippetsCmd)
}

func newFormatter() (output.Formatter, error) {
	if err := output.ValidateFormat(outputFormat); err != nil {
		return nil, err
	}
	return output.NewFormatter(output.Options{
		Format:    output.Format(outputFormat),
		NoHeaders: noHeaders,
	})
}

var storageListCmd = &cobra.Command{
	Use:   "list",
	Short: "List storages that accept VM disk images",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		formatter, err := newFormatter()
		if err != nil {
			return err
		}

		inv := pve.NewClient(pve.NewExecRunner(logger))
		storages, err := inv.Storages(cmd.Context())
		if err != nil {
			return err
		}

		result, err := formatter.FormatStorages(storages)
		if err != nil {
			return fmt.Errorf("failed to format output: %w", err)
		}
		fmt.Print(result)
		return nil
	},
}

var storageSnippetsCmd = &cobra.Command{
	Use:   "snippets",
	Short: "List cloud-init snippet files",
	Long: `List the snippet files on storages with the snippets content type.

The REFERENCE column is the value kiln passes to qm set --cicustom user=.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		formatter, err := newFormatter()
		if err != nil {
			return err
		}

		inv := pve.NewClient(pve.NewExecRunner(logger))
		snippets, err := inv.Snippets(cmd.Context())
		if err != nil {
			return err
		}

		result, err := formatter.FormatSnippets(snippets)
		if err != nil {
			return fmt.Errorf("failed to format output: %w", err)
		}
		fmt.Print(result)
		return nil
	},
}
