// Copyright (c) 2026 The XGo Authors (xgo.dev). All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package pipeline drives a package spec through fetch, patch, build and
// package.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	elog "github.com/eluv-io/log-go"

	"github.com/goplus/theora-recipe/internal/deps"
	"github.com/goplus/theora-recipe/internal/env"
	"github.com/goplus/theora-recipe/internal/fetch"
	"github.com/goplus/theora-recipe/internal/lockedfile"
	"github.com/goplus/theora-recipe/internal/metrics"
	"github.com/goplus/theora-recipe/internal/packager"
	"github.com/goplus/theora-recipe/pkgs/buildsys"
	"github.com/goplus/theora-recipe/pkgs/buildsys/autotools"
	"github.com/goplus/theora-recipe/pkgs/buildsys/msbuild"
	"github.com/goplus/theora-recipe/pkgs/textpatch"
	"github.com/goplus/theora-recipe/recipe"
)

var log = elog.Get("/theora-recipe/pipeline")

// Pipeline runs one package spec with one set of options. A Pipeline is
// used once.
type Pipeline struct {
	Spec      *recipe.PackageSpec
	Options   recipe.BuildOptions
	Workspace *env.Workspace
	Deps      []deps.Resolved

	// Fetcher defaults to fetch.New(Workspace).
	Fetcher *fetch.Fetcher
	// Runner runs the build tools. The zero Runner discards their output
	// except for error reports.
	Runner *buildsys.Runner
	// Metrics is optional.
	Metrics *metrics.Recorder

	Jobs int
	// Upgrade upgrades legacy solutions with devenv before building.
	Upgrade bool
	// Force rebuilds a package the cache reports as up to date.
	Force bool

	// NewStrategy overrides the strategy chosen from the compiler.
	NewStrategy func(*buildsys.Env) buildsys.BuildStrategy

	state State
}

// State returns how far the pipeline got.
func (p *Pipeline) State() State {
	return p.state
}

func (p *Pipeline) advance(to State) error {
	if err := p.state.next(to); err != nil {
		return err
	}
	p.state = to
	return nil
}

// Source is a fetched and patched source tree.
type Source struct {
	Dir         string
	ArchivePath string
	// Hash is the tree hash after patching.
	Hash    string
	Patches *textpatch.Report
}

// Info describes what a run would produce.
type Info struct {
	Spec      *recipe.PackageSpec `json:"spec"`
	Options   recipe.BuildOptions `json:"options"`
	PackageID string              `json:"package_id"`
	Strategy  string              `json:"strategy"`
	Libs      []string            `json:"libs"`
	SourceDir string              `json:"source_dir,omitempty"`
	PkgDir    string              `json:"package_dir,omitempty"`
}

// Info reports the package ID, strategy and declared libraries for the
// options without running anything.
func (p *Pipeline) Info() (*Info, error) {
	if err := p.validate(); err != nil {
		return nil, err
	}
	info := &Info{
		Spec:      p.Spec,
		Options:   p.Options,
		PackageID: p.Options.PackageID(),
		Strategy:  StrategyName(p.Options),
		Libs:      recipe.DeclaredLibs(p.Spec, p.Options),
	}
	if p.Workspace != nil {
		info.SourceDir = p.Workspace.SourceDir(p.Spec.SourceDirName())
		info.PkgDir = p.Workspace.PackageDir(info.PackageID)
	}
	return info, nil
}

// StrategyName returns the name of the build strategy opts select.
func StrategyName(opts recipe.BuildOptions) string {
	if opts.IsVisualStudio() {
		return "msbuild"
	}
	return "autotools"
}

func (p *Pipeline) validate() error {
	if err := p.Spec.Validate(); err != nil {
		return err
	}
	return p.Options.Validate()
}

func (p *Pipeline) lock() (func(), error) {
	if p.Workspace == nil {
		return nil, fmt.Errorf("pipeline: no workspace")
	}
	mu := lockedfile.MutexAt(p.Workspace.LockFile())
	unlock, err := mu.TryLock()
	if errors.Is(err, lockedfile.ErrLocked) {
		log.Info("waiting for workspace lock", "lock", mu)
		return mu.Lock()
	}
	return unlock, err
}

// Source fetches and patches the sources.
func (p *Pipeline) Source(ctx context.Context) (*Source, error) {
	if err := p.validate(); err != nil {
		return nil, err
	}
	unlock, err := p.lock()
	if err != nil {
		return nil, err
	}
	defer unlock()

	return p.source(ctx)
}

// Run fetches, patches, builds and packages. Any failing stage ends the
// run; later stages are not attempted.
func (p *Pipeline) Run(ctx context.Context) (*recipe.ArtifactSet, error) {
	if err := p.validate(); err != nil {
		return nil, err
	}
	unlock, err := p.lock()
	if err != nil {
		return nil, err
	}
	defer unlock()

	src, err := p.source(ctx)
	if err != nil {
		return nil, err
	}

	id := p.Options.PackageID()
	pkgDir := p.Workspace.PackageDir(id)
	key := cacheKey(p.Spec.Name, p.Spec.Version, id)
	cache, err := loadCache(p.Workspace.CacheFile())
	if err != nil {
		log.Warn("ignoring unreadable build cache", "error", err)
		cache = &buildCache{}
	}
	depsHash := deps.Digest(p.Deps)
	if set, ok := p.upToDate(cache, key, src.Hash, depsHash, pkgDir); ok {
		log.Info("package is up to date", "package_id", id, "dir", pkgDir)
		if err := p.advance(Built); err != nil {
			return nil, err
		}
		return set, p.advance(Packaged)
	}

	buildDir := p.Workspace.BuildDir(id)
	for _, dir := range []string{buildDir, pkgDir} {
		if err := os.RemoveAll(dir); err != nil {
			return nil, &recipe.FilesystemError{Op: "remove", Path: dir, Err: err}
		}
	}
	benv := buildsys.NewEnv(p.Options, src.Dir, buildDir, pkgDir, deps.Dependencies(p.Deps), p.Runner)
	benv.Jobs = p.Jobs
	strategy := p.strategy(benv)
	log.Info("building", "package", p.Spec.Name, "package_id", id, "strategy", strategy.Name())

	err = p.stage("build", Built, func() error {
		if err := strategy.Configure(ctx); err != nil {
			return err
		}
		return strategy.Build(ctx)
	})
	if err != nil {
		return nil, err
	}

	var set *recipe.ArtifactSet
	err = p.stage("package", Packaged, func() error {
		var err error
		set, err = packager.Package(ctx, &packager.Input{
			Spec:       p.Spec,
			Options:    p.Options,
			SourceDir:  src.Dir,
			SourceHash: src.Hash,
			PkgDir:     pkgDir,
			Strategy:   strategy,
		})
		return err
	})
	if err != nil {
		return nil, err
	}
	if p.Metrics != nil {
		p.Metrics.RecordPackage(len(set.Libs))
	}

	cache.set(key, &buildEntry{SourceHash: src.Hash, DepsHash: depsHash, Strategy: strategy.Name(), BuildTime: time.Now()})
	if err := saveCache(p.Workspace.CacheFile(), cache); err != nil {
		log.Warn("failed to save build cache", "error", err)
	}
	return set, nil
}

func (p *Pipeline) upToDate(cache *buildCache, key, hash, depsHash, pkgDir string) (*recipe.ArtifactSet, bool) {
	if p.Force {
		return nil, false
	}
	entry, ok := cache.get(key)
	if !ok || entry.SourceHash != hash {
		return nil, false
	}
	if entry.DepsHash != depsHash {
		log.Info("dependencies changed, rebuilding", "key", key)
		return nil, false
	}
	set, err := recipe.ReadArtifacts(pkgDir)
	if err != nil || set.SourceHash != hash {
		return nil, false
	}
	return set, true
}

func (p *Pipeline) strategy(e *buildsys.Env) buildsys.BuildStrategy {
	if p.NewStrategy != nil {
		return p.NewStrategy(e)
	}
	if p.Options.IsVisualStudio() {
		m := msbuild.New(e)
		if !p.Upgrade {
			m.Devenv = ""
		}
		return m
	}
	return autotools.New(e)
}

func (p *Pipeline) source(ctx context.Context) (*Source, error) {
	f := p.Fetcher
	if f == nil {
		f = fetch.New(p.Workspace)
	}

	var res *fetch.Result
	err := p.stage("fetch", Fetched, func() error {
		var err error
		res, err = f.Fetch(ctx, p.Spec.ForOptions(p.Options))
		return err
	})
	if err != nil {
		return nil, err
	}
	if p.Metrics != nil {
		if info, err := os.Stat(res.ArchivePath); err == nil {
			p.Metrics.RecordDownload(info.Size())
		}
	}

	src := &Source{Dir: res.SourceDir, ArchivePath: res.ArchivePath}
	err = p.stage("patch", Patched, func() error {
		patches := append(append([]recipe.Patch(nil), p.Spec.Patches...), recipe.CompilerPatches(p.Options)...)
		report, err := textpatch.Apply(res.SourceDir, textpatch.FromPatches(patches))
		if err != nil {
			return err
		}
		src.Patches = report
		src.Hash, err = fetch.TreeHash(res.SourceDir)
		return err
	})
	if err != nil {
		return nil, err
	}
	return src, nil
}

// stage runs fn and moves to next when it succeeds.
func (p *Pipeline) stage(name string, next State, fn func() error) error {
	start := time.Now()
	err := fn()
	elapsed := time.Since(start)
	if p.Metrics != nil {
		p.Metrics.RecordStage(p.Spec.Name, name, err == nil, elapsed)
	}
	if err != nil {
		log.Error("stage failed", "stage", name, "package", p.Spec.Name, "duration", elapsed, "error", err)
		return err
	}
	log.Info("stage done", "stage", name, "package", p.Spec.Name, "duration", elapsed)
	return p.advance(next)
}
