package internal

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/goplus/theora-recipe/internal/deps"
	"github.com/goplus/theora-recipe/internal/env"
	"github.com/goplus/theora-recipe/internal/metrics"
	"github.com/goplus/theora-recipe/internal/pipeline"
	"github.com/goplus/theora-recipe/recipe"
)

// buildFlags are the options shared by the commands that act on a
// package configuration.
type buildFlags struct {
	shared   bool
	fpic     bool
	settings []string
}

func (f *buildFlags) register(cmd *cobra.Command) {
	cmd.Flags().BoolVar(&f.shared, "shared", false, "Build shared libraries instead of static ones")
	cmd.Flags().BoolVar(&f.fpic, "fpic", true, "Build position-independent code (ignored on Windows)")
	cmd.Flags().StringArrayVarP(&f.settings, "setting", "s", nil, "Target setting as key=value (os, arch, compiler, compiler.version, compiler.runtime, build_type)")
}

// depFlags name the built dependencies.
type depFlags struct {
	dirs []string
	libs []string
}

func (f *depFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringArrayVar(&f.dirs, "dep", nil, "Dependency package directory as name=dir")
	cmd.Flags().StringArrayVar(&f.libs, "dep-libs", nil, "Dependency libraries as name=lib1,lib2")
}

func (f *depFlags) resolve(spec *recipe.PackageSpec) ([]deps.Resolved, error) {
	var src deps.Source
	for _, d := range f.dirs {
		if err := src.AddDir(d); err != nil {
			return nil, err
		}
	}
	for _, l := range f.libs {
		if err := src.AddLibs(l); err != nil {
			return nil, err
		}
	}
	return deps.Resolve(spec.Requires, src)
}

// loadRecipe returns the spec and options for cmd: the built-in recipe,
// then --config, then the command line flags.
func loadRecipe(cmd *cobra.Command, f *buildFlags) (*recipe.PackageSpec, recipe.BuildOptions, error) {
	spec := recipe.Theora()
	opts := recipe.Defaults()
	if configFile != "" {
		cfg, err := recipe.Load(configFile)
		if err != nil {
			return nil, opts, err
		}
		spec = cfg.Apply(spec)
		cfg.ApplyOptions(&opts)
	}
	if cmd.Flags().Changed("shared") {
		opts.Shared = f.shared
	}
	if cmd.Flags().Changed("fpic") {
		opts.FPIC = f.fpic
	}
	for _, s := range f.settings {
		key, value, ok := strings.Cut(s, "=")
		if !ok {
			return nil, opts, fmt.Errorf("invalid setting %q, want key=value", s)
		}
		if err := opts.Set(key, value); err != nil {
			return nil, opts, err
		}
	}
	if err := spec.Validate(); err != nil {
		return nil, opts, err
	}
	if err := opts.Validate(); err != nil {
		return nil, opts, err
	}
	return spec, opts, nil
}

func openWorkspace() (*env.Workspace, error) {
	dir := workspaceDir
	if dir == "" {
		var err error
		if dir, err = env.WorkDir(); err != nil {
			return nil, fmt.Errorf("failed to get workspace dir: %w", err)
		}
	}
	return env.NewWorkspace(dir)
}

// newPipeline assembles a pipeline for cmd without dependencies.
func newPipeline(cmd *cobra.Command, f *buildFlags) (*pipeline.Pipeline, error) {
	spec, opts, err := loadRecipe(cmd, f)
	if err != nil {
		return nil, err
	}
	ws, err := openWorkspace()
	if err != nil {
		return nil, err
	}
	return &pipeline.Pipeline{
		Spec:      spec,
		Options:   opts,
		Workspace: ws,
		Metrics:   metrics.NewRecorder(),
	}, nil
}
