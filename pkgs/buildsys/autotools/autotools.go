// Package autotools builds a source tree with configure, make and
// make install.
package autotools

import (
	"context"
	"os"
	"path/filepath"
	"strconv"

	"github.com/goplus/theora-recipe/pkgs/buildsys"
	"github.com/goplus/theora-recipe/recipe"
)

// AutoTools is the configure/make build strategy.
type AutoTools struct {
	env *buildsys.Env
	// Make is the make program, "make" by default.
	Make string
}

var _ buildsys.BuildStrategy = (*AutoTools)(nil)

// New returns the Autotools strategy for env.
func New(env *buildsys.Env) *AutoTools {
	return &AutoTools{env: env, Make: "make"}
}

func (a *AutoTools) Name() string { return "autotools" }

// ConfigureArgs returns the arguments passed to ./configure.
func (a *AutoTools) ConfigureArgs() []string {
	opts := a.env.Options
	args := []string{"--prefix=" + a.env.Prefix}
	if opts.Shared {
		args = append(args, "--disable-static", "--enable-shared")
	} else {
		args = append(args, "--disable-shared", "--enable-static")
	}
	if opts.PIC() {
		args = append(args, "--with-pic")
	}
	return args
}

// Configure makes configure executable and runs it from the build
// directory.
func (a *AutoTools) Configure(ctx context.Context) error {
	script := filepath.Join(a.env.SourceDir, "configure")
	info, err := os.Stat(script)
	if err != nil {
		return &recipe.FilesystemError{Op: "stat", Path: script, Err: err}
	}
	if err := os.Chmod(script, info.Mode()|0o111); err != nil {
		return &recipe.FilesystemError{Op: "chmod", Path: script, Err: err}
	}
	if err := os.MkdirAll(a.env.BuildDir, 0o755); err != nil {
		return &recipe.FilesystemError{Op: "mkdir", Path: a.env.BuildDir, Err: err}
	}
	return a.env.Run(ctx, a.env.BuildDir, script, a.ConfigureArgs()...)
}

// Build runs make in the build directory.
func (a *AutoTools) Build(ctx context.Context) error {
	var args []string
	if a.env.Jobs > 0 {
		args = append(args, "-j"+strconv.Itoa(a.env.Jobs))
	}
	return a.env.Run(ctx, a.env.BuildDir, a.Make, args...)
}

// Install runs make install. When pkgDir differs from the configured
// prefix, the prefix is overridden on the make command line.
func (a *AutoTools) Install(ctx context.Context, pkgDir string) ([]string, error) {
	args := []string{"install"}
	if pkgDir != a.env.Prefix {
		args = append(args, "prefix="+pkgDir)
	}
	if err := a.env.Run(ctx, a.env.BuildDir, a.Make, args...); err != nil {
		return nil, err
	}
	return buildsys.ListFiles(pkgDir)
}
