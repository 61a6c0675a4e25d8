package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/jbweber/kiln/internal/cloudinit"
	"github.com/jbweber/kiln/internal/prompt"
)

var (
	seedOut      string
	seedHostname string
)

func init() {
	seedCmd.Flags().StringVar(&seedOut, "out", "seed.iso", "Path of the ISO to write")
	seedCmd.Flags().StringVar(&seedHostname, "hostname", "kiln", "Hostname written to the seed")
	seedCmd.Flags().String("bridge", "vmbr0", "Network bridge (recorded in the config only)")
	seedCmd.Flags().String("ipv4", "dhcp", "IPv4 config (dhcp or address/prefix)")
	seedCmd.Flags().String("ipv6", "auto", "IPv6 config (auto, dhcp or address/prefix)")
}

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Write a NoCloud seed ISO",
	Long: `Collect a username and a password, an SSH key or both, and write a cloud-init NoCloud
seed ISO (volume label CIDATA) with matching user-data, meta-data and
network-config.

Attach the ISO to a VM booted from a cloud image to get the same default
user a kiln template provisions.

Example:
  kiln seed --hostname test --ipv4 192.168.1.10/24 --out test-seed.iso`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		creds, err := prompt.NewTerminal().SeedCredentials()
		if err != nil {
			return fmt.Errorf("failed to collect credentials: %w", err)
		}

		seed := &cloudinit.Seed{
			Hostname: seedHostname,
			Username: creds.Username,
			Password: creds.Password,
			Network:  cfg.Network,
		}
		if creds.SSHKey != "" {
			seed.SSHKeys = []string{creds.SSHKey}
		}

		iso, err := cloudinit.GenerateISO(seed)
		if err != nil {
			return fmt.Errorf("failed to generate seed ISO: %w", err)
		}

		if err := os.WriteFile(seedOut, iso, 0644); err != nil {
			return fmt.Errorf("failed to write %s: %w", seedOut, err)
		}

		fmt.Printf("✓ Seed ISO written to %s (%d bytes)\n", seedOut, len(iso))
		return nil
	},
}
