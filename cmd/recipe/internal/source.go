package internal

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/goplus/theora-recipe/internal/fetch"
)

var sourceBuild buildFlags

var sourceCmd = &cobra.Command{
	Use:   "source",
	Short: "Fetch and patch the theora sources",
	Long:  `Source downloads, verifies and extracts the source archive and applies the patches for the target toolchain. It prints the source directory and its tree hash.`,
	Args:  cobra.NoArgs,
	RunE:  runSource,
}

func init() {
	sourceBuild.register(sourceCmd)
	rootCmd.AddCommand(sourceCmd)
}

func runSource(cmd *cobra.Command, args []string) error {
	p, err := newPipeline(cmd, &sourceBuild)
	if err != nil {
		return err
	}
	defer writeMetrics(p.Metrics)

	p.Fetcher = fetch.New(p.Workspace, fetch.WithProgress(cmd.ErrOrStderr()))
	src, err := p.Source(cmd.Context())
	if err != nil {
		return fmt.Errorf("failed to fetch %s/%s: %w", p.Spec.Name, p.Spec.Version, err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), src.Dir)
	fmt.Fprintln(cmd.OutOrStdout(), src.Hash)
	return nil
}
