// Copyright (c) 2026 The XGo Authors (xgo.dev). All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package msbuild builds the legacy Visual Studio 2008 solutions shipped
// in the libtheora source tree.
package msbuild

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"os/exec"
	"path"
	"path/filepath"
	"strings"

	elog "github.com/eluv-io/log-go"

	"github.com/goplus/theora-recipe/internal/xos"
	"github.com/goplus/theora-recipe/pkgs/buildsys"
	"github.com/goplus/theora-recipe/pkgs/textpatch"
	"github.com/goplus/theora-recipe/recipe"
)

var log = elog.Get("/theora-recipe/msbuild")

// ProjectDir is where the solutions and projects live in the source tree.
const ProjectDir = "win32/VS2008"

var (
	projects = []string{"encoder_example", "libtheora", "dump_video"}
	configs  = []string{"dynamic", "static"}
)

// MSBuild is the legacy project build strategy.
type MSBuild struct {
	env *buildsys.Env

	// Tool is the msbuild program.
	Tool string
	// Devenv upgrades the solution before building. Upgrading is skipped
	// when Devenv is empty or not found.
	Devenv string
}

var _ buildsys.BuildStrategy = (*MSBuild)(nil)

// New returns the legacy project strategy for env.
func New(env *buildsys.Env) *MSBuild {
	return &MSBuild{env: env, Tool: "msbuild", Devenv: "devenv"}
}

func (m *MSBuild) Name() string { return "msbuild" }

// Solution returns the solution file, relative to the source tree.
func (m *MSBuild) Solution() string {
	name := "libtheora_static.sln"
	if m.env.Options.Shared {
		name = "libtheora_dynamic.sln"
	}
	return path.Join(ProjectDir, name)
}

// Platform maps the arch setting to a solution platform.
func Platform(arch string) (string, error) {
	switch arch {
	case "x86":
		return "Win32", nil
	case "x86_64":
		return "x64", nil
	}
	return "", fmt.Errorf("msbuild: unsupported arch %q", arch)
}

// ProjectFiles returns every project file the substitutions apply to.
func ProjectFiles() []string {
	var files []string
	for _, proj := range projects {
		for _, cfg := range configs {
			files = append(files, path.Join(ProjectDir, proj, proj+"_"+cfg+".vcproj"))
		}
	}
	return files
}

// Rules returns the project file substitutions: the ogg and vorbis
// import libraries are replaced by the ones the dependencies provide,
// and the runtime library is switched to the static one when requested.
func (m *MSBuild) Rules() ([]textpatch.Rule, error) {
	libs := map[string][]string{
		"ogg":    {"libogg.lib", "libogg_static.lib"},
		"vorbis": {"libvorbis.lib", "libvorbis_static.lib"},
	}
	var rules []textpatch.Rule
	for _, file := range ProjectFiles() {
		for _, name := range []string{"ogg", "vorbis"} {
			dep, ok := m.env.Dep(name)
			if !ok {
				return nil, fmt.Errorf("msbuild: dependency %s not resolved", name)
			}
			for _, old := range libs[name] {
				rules = append(rules, textpatch.Rule{File: file, Old: old, New: libList(dep.Libs)})
			}
		}
		if m.env.Options.StaticRuntime() {
			rules = append(rules,
				textpatch.Rule{File: file, Old: `RuntimeLibrary="2"`, New: `RuntimeLibrary="0"`},
				textpatch.Rule{File: file, Old: `RuntimeLibrary="3"`, New: `RuntimeLibrary="1"`},
			)
		}
	}
	return rules, nil
}

func libList(libs []string) string {
	names := make([]string, len(libs))
	for i, l := range libs {
		names[i] = l + ".lib"
	}
	return strings.Join(names, " ")
}

// Configure patches the project files and upgrades the solution.
func (m *MSBuild) Configure(ctx context.Context) error {
	rules, err := m.Rules()
	if err != nil {
		return err
	}
	report, err := textpatch.Apply(m.env.SourceDir, rules)
	if err != nil {
		return err
	}
	log.Debug("project files patched", "applied", len(report.Applied), "skipped", len(report.Skipped))

	if m.Devenv == "" {
		return nil
	}
	devenv, err := exec.LookPath(m.Devenv)
	if err != nil {
		log.Info("devenv not found, solution not upgraded", "devenv", m.Devenv)
		return nil
	}
	sln := filepath.Join(m.env.SourceDir, filepath.FromSlash(m.Solution()))
	return m.env.Run(ctx, m.env.SourceDir, devenv, sln, "/upgrade")
}

// Build runs msbuild on the solution.
func (m *MSBuild) Build(ctx context.Context) error {
	platform, err := Platform(m.env.Options.Settings.Arch)
	if err != nil {
		return err
	}
	sln := filepath.Join(m.env.SourceDir, filepath.FromSlash(m.Solution()))
	args := []string{
		sln,
		"/p:Configuration=" + m.env.Options.Settings.BuildType,
		"/p:Platform=" + platform,
		"/m",
	}
	if m.env.Jobs > 0 {
		args[len(args)-1] = fmt.Sprintf("/m:%d", m.env.Jobs)
	}
	return m.env.Run(ctx, m.env.SourceDir, m.Tool, args...)
}

// Install copies the public headers into include/, keeping their paths,
// and every .dll and .lib produced in the tree into bin/ and lib/.
func (m *MSBuild) Install(ctx context.Context, pkgDir string) ([]string, error) {
	src := m.env.SourceDir
	includeDir := filepath.Join(src, "include")
	err := filepath.WalkDir(src, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		var dst string
		switch strings.ToLower(filepath.Ext(p)) {
		case ".h":
			rel, err := filepath.Rel(includeDir, p)
			if err != nil || !filepath.IsLocal(rel) {
				return nil
			}
			dst = filepath.Join(pkgDir, "include", rel)
		case ".dll":
			dst = filepath.Join(pkgDir, "bin", d.Name())
		case ".lib":
			dst = filepath.Join(pkgDir, "lib", d.Name())
		default:
			return nil
		}
		return copyFile(p, dst)
	})
	if err != nil {
		if recipe.IsFilesystem(err) {
			return nil, err
		}
		return nil, &recipe.FilesystemError{Op: "copy", Path: src, Err: err}
	}
	return buildsys.ListFiles(pkgDir)
}

func copyFile(src, dst string) error {
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return &recipe.FilesystemError{Op: "mkdir", Path: filepath.Dir(dst), Err: err}
	}
	if err := xos.CopyFile(src, dst, 0o644); err != nil {
		return &recipe.FilesystemError{Op: "copy", Path: dst, Err: err}
	}
	return nil
}
