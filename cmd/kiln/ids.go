package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jbweber/kiln/internal/pve"
	"github.com/jbweber/kiln/internal/vmid"
)

var idsCmd = &cobra.Command{
	Use:   "ids",
	Short: "Inspect VM ID allocation",
}

var idsStart int

func init() {
	idsCmd.AddCommand(idsNextCmd)
	idsNextCmd.Flags().IntVar(&idsStart, "start", 0, "Lowest ID to consider (default: naming.start_id)")
}

var idsNextCmd = &cobra.Command{
	Use:   "next",
	Short: "Print the next free VM ID",
	Long: `Print the smallest VM ID at or above the start value that no VM or
container on this host uses. This is the ID the next build would receive.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		start := cfg.Naming.StartID
		if cmd.Flags().Changed("start") {
			start = idsStart
		}

		alloc := vmid.NewAllocator(pve.NewClient(pve.NewExecRunner(logger)), start)
		id, err := alloc.Next(cmd.Context())
		if err != nil {
			return err
		}

		fmt.Println(id)
		return nil
	},
}
