package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/jbweber/kiln/internal/config"
	"github.com/jbweber/kiln/internal/logging"
)

var (
	version = "dev"
	commit  = "unknown"
)

// Set by the root command before any subcommand runs.
var (
	cfg    *config.Config
	logger *zap.Logger
)

var (
	configFile   string
	outputFormat string
	noHeaders    bool
)

// flagBindings maps config keys to the flag that overrides them. Only flags
// defined on the running command are bound.
var flagBindings = map[string]string{
	"log.level":        "log-level",
	"log.format":       "log-format",
	"workdir":          "workdir",
	"catalog":          "catalog",
	"policy":           "policy",
	"storage.name":     "storage",
	"storage.snippets": "snippet-storage",
	"naming.prefix":    "prefix",
	"naming.start_id":  "start-id",
	"disk.size":        "disk-size",
	"checklist":        "checklist",
	"network.bridge":   "bridge",
	"network.ipv4":     "ipv4",
	"network.ipv6":     "ipv6",
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "kiln",
	Short: "Kiln - Proxmox VM template builder",
	Long: `Kiln builds Proxmox VE VM templates from distribution cloud images.

Pick one or more images from the catalog; kiln downloads each one, unpacks
it when needed, and drives qm to create, configure and convert a VM into a
template. Running kiln without a subcommand starts an interactive build.`,
	Version:       fmt.Sprintf("%s (commit: %s)", version, commit),
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return setup(cmd)
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		return runBuild(cmd.Context())
	},
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&configFile, "config", "", "Config file (default: ./kiln.yaml or /etc/kiln/kiln.yaml)")
	flags.String("log-level", "info", "Log level (debug, info, warn, error)")
	flags.String("log-format", "console", "Log format (console, json)")
	flags.String("workdir", ".", "Directory for downloads and transient files")
	flags.String("catalog", "", "Catalog file path or URL (default: embedded catalog)")

	addBuildFlags(rootCmd.Flags())

	rootCmd.AddCommand(buildCmd)
	rootCmd.AddCommand(catalogCmd)
	rootCmd.AddCommand(storageCmd)
	rootCmd.AddCommand(idsCmd)
	rootCmd.AddCommand(seedCmd)
	rootCmd.AddCommand(describeCmd)
}

// setup loads the configuration and builds the logger.
func setup(cmd *cobra.Command) error {
	v := config.NewViper(configFile)
	if err := bindFlags(v, cmd.Flags()); err != nil {
		return err
	}

	c, err := config.Load(v)
	if err != nil {
		return err
	}

	l, err := logging.New(c.Log.Level, c.Log.Format)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}

	cfg, logger = c, l
	return nil
}

type flagBinder interface {
	BindPFlag(key string, flag *pflag.Flag) error
}

func bindFlags(v flagBinder, flags *pflag.FlagSet) error {
	for key, name := range flagBindings {
		f := flags.Lookup(name)
		if f == nil {
			continue
		}
		if err := v.BindPFlag(key, f); err != nil {
			return fmt.Errorf("failed to bind flag --%s: %w", name, err)
		}
	}
	return nil
}

// addOutputFlags registers -o and --no-headers on a listing command.
func addOutputFlags(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&outputFormat, "output", "o", "table", "Output format (table, yaml, json)")
	cmd.Flags().BoolVar(&noHeaders, "no-headers", false, "Omit table headers")
}
