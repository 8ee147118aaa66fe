// Package buildsys defines the build strategies shared by the recipe and
// the environment they run in.
package buildsys

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"slices"
	"strings"

	"github.com/goplus/theora-recipe/recipe"
)

// BuildStrategy compiles an extracted, patched source tree. It is either
// Autotools or the legacy Visual Studio project path, chosen once from
// the compiler setting.
type BuildStrategy interface {
	Name() string

	Configure(ctx context.Context) error
	Build(ctx context.Context) error

	// Install places the artifacts under pkgDir and returns the files
	// present there afterwards, slash-separated and relative to pkgDir.
	Install(ctx context.Context, pkgDir string) ([]string, error)
}

// Dependency is a built requirement the compiler and linker must see.
type Dependency struct {
	Name string
	// Root is the dependency's package directory (include/, lib/).
	Root string
	Libs []string
}

// Env is the build environment of one invocation. It is derived once from
// the options and dependencies and never changes afterwards.
type Env struct {
	SourceDir string
	BuildDir  string
	// Prefix is the install prefix given to configure.
	Prefix string

	Options recipe.BuildOptions
	Deps    []Dependency
	Jobs    int

	Runner *Runner

	vars map[string]string
}

// NewEnv derives the compiler and linker environment for opts and deps.
func NewEnv(opts recipe.BuildOptions, sourceDir, buildDir, prefix string, deps []Dependency, runner *Runner) *Env {
	e := &Env{
		SourceDir: sourceDir,
		BuildDir:  buildDir,
		Prefix:    prefix,
		Options:   opts,
		Deps:      deps,
		Runner:    runner,
		vars:      map[string]string{},
	}
	if e.Runner == nil {
		e.Runner = &Runner{}
	}
	if !opts.IsVisualStudio() {
		for _, flag := range compileFlags(opts) {
			e.appendFlag("CFLAGS", flag)
			e.appendFlag("CXXFLAGS", flag)
		}
	}
	for _, dep := range deps {
		e.use(dep)
	}
	return e
}

func compileFlags(opts recipe.BuildOptions) []string {
	var flags []string
	switch opts.Settings.BuildType {
	case "Debug":
		flags = append(flags, "-g")
	default:
		flags = append(flags, "-O3", "-DNDEBUG")
	}
	switch opts.Settings.Arch {
	case "x86":
		flags = append(flags, "-m32")
	case "x86_64":
		flags = append(flags, "-m64")
	}
	if opts.PIC() {
		flags = append(flags, "-fPIC")
	}
	return flags
}

// use makes dep's headers, libraries and pkg-config files visible.
func (e *Env) use(dep Dependency) {
	if dep.Root == "" {
		return
	}
	includeDir := filepath.Join(dep.Root, "include")
	libDir := filepath.Join(dep.Root, "lib")
	pkgconfigDir := filepath.Join(libDir, "pkgconfig")

	if isDir(pkgconfigDir) {
		e.prependPath("PKG_CONFIG_PATH", pkgconfigDir)
	}
	if e.Options.IsVisualStudio() {
		if isDir(includeDir) {
			e.prependPath("INCLUDE", includeDir)
		}
		if isDir(libDir) {
			e.prependPath("LIB", libDir)
		}
		return
	}
	if isDir(includeDir) {
		e.appendFlag("CPPFLAGS", "-I"+includeDir)
	}
	if isDir(libDir) {
		e.appendFlag("LDFLAGS", "-L"+libDir)
	}
}

// Dep returns the dependency named name.
func (e *Env) Dep(name string) (Dependency, bool) {
	for _, d := range e.Deps {
		if d.Name == name {
			return d, true
		}
	}
	return Dependency{}, false
}

// Get returns the value of key as the build tools will see it.
func (e *Env) Get(key string) string {
	if v, ok := e.vars[key]; ok {
		return v
	}
	return os.Getenv(key)
}

// Set overrides key for the build tools.
func (e *Env) Set(key, value string) {
	e.vars[key] = value
}

// Environ returns the process environment merged with the build variables.
func (e *Env) Environ() []string {
	return mergeEnv(os.Environ(), e.vars)
}

// Run executes name in dir with the build environment.
func (e *Env) Run(ctx context.Context, dir, name string, args ...string) error {
	return e.Runner.Run(ctx, dir, e.Environ(), name, args...)
}

func (e *Env) prependPath(key, value string) {
	current := e.Get(key)
	if current == "" {
		e.vars[key] = value
		return
	}
	e.vars[key] = value + pathListSeparator() + current
}

func (e *Env) appendFlag(key, flag string) {
	current := e.Get(key)
	if current == "" {
		e.vars[key] = flag
		return
	}
	e.vars[key] = strings.TrimSpace(current + " " + flag)
}

func pathListSeparator() string {
	if runtime.GOOS == "windows" {
		return ";"
	}
	return ":"
}

func mergeEnv(base []string, override map[string]string) []string {
	envMap := make(map[string]string, len(base))
	for _, kv := range base {
		if k, v, ok := strings.Cut(kv, "="); ok {
			envMap[k] = v
		}
	}
	for k, v := range override {
		envMap[k] = v
	}
	keys := make([]string, 0, len(envMap))
	for k := range envMap {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		out = append(out, k+"="+envMap[k])
	}
	return out
}

func isDir(name string) bool {
	info, err := os.Stat(name)
	return err == nil && info.IsDir()
}

// ListFiles returns the regular files under root, slash-separated,
// relative to root and sorted.
func ListFiles(root string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		files = append(files, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return nil, &recipe.FilesystemError{Op: "walk", Path: root, Err: err}
	}
	slices.Sort(files)
	return files, nil
}
