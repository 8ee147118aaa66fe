package internal

import (
	"archive/zip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/goplus/theora-recipe/internal/fetch"
	"github.com/goplus/theora-recipe/pkgs/buildsys"
)

var (
	createBuild     buildFlags
	createDeps      depFlags
	createJobs      int
	createNoUpgrade bool
	createForce     bool
	createOutput    string
)

var createCmd = &cobra.Command{
	Use:   "create",
	Short: "Fetch, patch, build and package theora",
	Long: `Create runs the whole recipe: it downloads and verifies the source archive,
applies the toolchain patches, builds with the strategy selected by the compiler
setting and installs the result into the workspace package directory. The
library names consumers link against are printed one per line.`,
	Args: cobra.NoArgs,
	RunE: runCreate,
}

func init() {
	createBuild.register(createCmd)
	createDeps.register(createCmd)
	createCmd.Flags().IntVarP(&createJobs, "jobs", "j", 0, "Parallel build jobs (0 lets the build tool decide)")
	createCmd.Flags().BoolVar(&createNoUpgrade, "no-upgrade", false, "Do not upgrade legacy Visual Studio solutions with devenv")
	createCmd.Flags().BoolVar(&createForce, "force", false, "Rebuild even if the package is up to date")
	createCmd.Flags().StringVarP(&createOutput, "output", "o", "", "Also copy the package to this path (directory or .zip file)")
	rootCmd.AddCommand(createCmd)
}

func runCreate(cmd *cobra.Command, args []string) error {
	p, err := newPipeline(cmd, &createBuild)
	if err != nil {
		return err
	}
	defer writeMetrics(p.Metrics)

	if p.Deps, err = createDeps.resolve(p.Spec); err != nil {
		return err
	}
	if createOutput != "" {
		if createOutput, err = filepath.Abs(createOutput); err != nil {
			return fmt.Errorf("failed to resolve output path: %w", err)
		}
	}

	p.Fetcher = fetch.New(p.Workspace, fetch.WithProgress(cmd.ErrOrStderr()))
	p.Runner = &buildsys.Runner{}
	if verbose {
		p.Runner.Stdout = cmd.OutOrStdout()
		p.Runner.Stderr = cmd.ErrOrStderr()
	}
	p.Jobs = createJobs
	p.Upgrade = !createNoUpgrade
	p.Force = createForce

	set, err := p.Run(cmd.Context())
	if err != nil {
		return fmt.Errorf("failed to create %s/%s: %w", p.Spec.Name, p.Spec.Version, err)
	}

	for _, lib := range set.Libs {
		fmt.Fprintln(cmd.OutOrStdout(), lib)
	}
	if createOutput != "" {
		if err := outputResult(p.Workspace.PackageDir(set.PackageID), createOutput); err != nil {
			return fmt.Errorf("failed to write output: %w", err)
		}
	}
	return nil
}

// outputResult writes the package to dest.
// If dest ends with ".zip", creates a zip archive; otherwise copies the directory.
func outputResult(srcDir, dest string) error {
	if strings.HasSuffix(dest, ".zip") {
		return zipDir(srcDir, dest)
	}
	return os.CopyFS(dest, os.DirFS(srcDir))
}

// zipDir creates a zip archive at dest from the contents of srcDir.
func zipDir(srcDir, dest string) error {
	f, err := os.Create(dest)
	if err != nil {
		return err
	}
	defer f.Close()

	w := zip.NewWriter(f)
	err = filepath.Walk(srcDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(srcDir, path)
		if err != nil {
			return err
		}
		header, err := zip.FileInfoHeader(info)
		if err != nil {
			return err
		}
		header.Name = filepath.ToSlash(rel)
		header.Method = zip.Deflate

		writer, err := w.CreateHeader(header)
		if err != nil {
			return err
		}
		file, err := os.Open(path)
		if err != nil {
			return err
		}
		defer file.Close()
		_, err = io.Copy(writer, file)
		return err
	})
	if err != nil {
		w.Close()
		return err
	}
	return w.Close()
}
