package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jbweber/kiln/internal/catalog"
	"github.com/jbweber/kiln/internal/output"
)

var catalogCmd = &cobra.Command{
	Use:   "catalog",
	Short: "Inspect the image catalog",
	Long: `Inspect the image catalog kiln builds templates from.

The catalog is embedded in kiln; --catalog points at a file or URL with the
same layout instead.`,
}

var showAll bool

func init() {
	catalogCmd.AddCommand(catalogListCmd)
	catalogCmd.AddCommand(catalogCheckCmd)
	catalogCmd.AddCommand(catalogFindGentooCmd)

	addOutputFlags(catalogListCmd)
	catalogListCmd.Flags().BoolVar(&showAll, "all", false, "Include deprecated versions")
}

var catalogListCmd = &cobra.Command{
	Use:   "list",
	Short: "List catalog images",
	Long: `List every distribution and version in the catalog.

Output formats:
  -o table  Human-readable table (default)
  -o yaml   YAML stream, one document per image
  -o json   JSON array`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := output.ValidateFormat(outputFormat); err != nil {
			return err
		}

		cat, err := catalog.Load(cmd.Context(), cfg.Catalog, nil)
		if err != nil {
			return fmt.Errorf("failed to load catalog: %w", err)
		}

		formatter, err := output.NewFormatter(output.Options{
			Format:    output.Format(outputFormat),
			NoHeaders: noHeaders,
		})
		if err != nil {
			return err
		}

		result, err := formatter.FormatEntries(cat.Entries(showAll))
		if err != nil {
			return fmt.Errorf("failed to format output: %w", err)
		}

		fmt.Print(result)
		return nil
	},
}

var catalogCheckCmd = &cobra.Command{
	Use:   "check",
	Short: "Check that every catalog URL is reachable",
	Long: `Request every catalog URL, deprecated ones included, and report which do
not answer HTTP 200. Exits non-zero when any URL fails.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		cat, err := catalog.Load(ctx, cfg.Catalog, nil)
		if err != nil {
			return fmt.Errorf("failed to load catalog: %w", err)
		}

		entries := cat.Entries(true)
		fmt.Printf("Checking %d URLs...\n\n", len(entries))

		results := catalog.NewChecker().Check(ctx, entries)
		table := &output.TableFormatter{}
		report, err := table.FormatChecks(results)
		if err != nil {
			return fmt.Errorf("failed to format output: %w", err)
		}
		fmt.Print(report)

		failed := catalog.Failed(results)
		if len(failed) == 0 {
			fmt.Printf("\n✓ All %d URLs are reachable\n", len(results))
			return nil
		}

		summary, err := table.FormatChecks(failed)
		if err != nil {
			return fmt.Errorf("failed to format output: %w", err)
		}
		fmt.Printf("\nFailed URLs:\n%s", summary)
		return fmt.Errorf("%d of %d URLs failed", len(failed), len(results))
	},
}

var catalogFindGentooCmd = &cobra.Command{
	Use:   "find-gentoo",
	Short: "Find the current Gentoo cloud-init image URL",
	Long: `Gentoo publishes its cloud-init image under a new timestamped name with
every autobuild. This probes the known symlink names and then the dated
builds of the last two weeks, and prints a catalog entry for the first URL
that answers.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		checker := catalog.NewChecker()
		finder := &catalog.GentooFinder{
			Probe: checker.Reachable,
			OnTry: func(url string) {
				logger.Debug("trying Gentoo URL", zap.String("url", url))
			},
		}

		fmt.Println("Searching for Gentoo cloud-init image...")
		url, err := finder.Find(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Printf("✓ Found: %s\n", url)

		date, err := catalog.GentooDate(url)
		if err != nil {
			fmt.Println("\nThe URL is a symlink; pick a dated build for a stable catalog entry.")
			return nil
		}

		entry, err := catalog.GentooEntry(url, date)
		if err != nil {
			return err
		}
		fmt.Printf("\nCatalog entry:\n%s\n", strings.TrimSpace(entry))
		return nil
	},
}
