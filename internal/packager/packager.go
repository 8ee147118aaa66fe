// Copyright (c) 2026 The XGo Authors (xgo.dev). All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package packager assembles the package directory from a finished build.
package packager

import (
	"context"
	"os"
	"path"
	"path/filepath"
	"slices"
	"strings"

	elog "github.com/eluv-io/log-go"

	"github.com/goplus/theora-recipe/internal/xos"
	"github.com/goplus/theora-recipe/pkgs/buildsys"
	"github.com/goplus/theora-recipe/recipe"
)

var log = elog.Get("/theora-recipe/packager")

// LicenseFiles are copied from the source root when present.
var LicenseFiles = []string{"LICENSE", "COPYING"}

// Input is what the packager needs from the earlier stages.
type Input struct {
	Spec      *recipe.PackageSpec
	Options   recipe.BuildOptions
	SourceDir string
	// SourceHash is the tree hash of the patched sources.
	SourceHash string
	PkgDir     string
	Strategy   buildsys.BuildStrategy
}

// Package copies the license texts, installs the build outputs, derives
// the library names and writes the artifacts manifest.
func Package(ctx context.Context, in *Input) (*recipe.ArtifactSet, error) {
	if err := os.MkdirAll(in.PkgDir, 0o755); err != nil {
		return nil, &recipe.FilesystemError{Op: "mkdir", Path: in.PkgDir, Err: err}
	}
	licenses, err := CopyLicenses(in.SourceDir, in.PkgDir)
	if err != nil {
		return nil, err
	}
	files, err := in.Strategy.Install(ctx, in.PkgDir)
	if err != nil {
		return nil, err
	}
	files = slices.DeleteFunc(files, func(f string) bool { return f == recipe.ArtifactsFile })

	set := &recipe.ArtifactSet{
		Name:       in.Spec.Name,
		Version:    in.Spec.Version,
		PackageID:  in.Options.PackageID(),
		Strategy:   in.Strategy.Name(),
		SourceHash: in.SourceHash,
		Libs:       Libs(recipe.DeclaredLibs(in.Spec, in.Options), files),
		Licenses:   licenses,
		Files:      files,
	}
	if err := recipe.WriteArtifacts(in.PkgDir, set); err != nil {
		return nil, &recipe.FilesystemError{Op: "write", Path: filepath.Join(in.PkgDir, recipe.ArtifactsFile), Err: err}
	}
	log.Info("packaged", "dir", in.PkgDir, "libs", set.Libs, "files", len(files))
	return set, nil
}

// CopyLicenses copies LICENSE and COPYING from srcDir into
// pkgDir/licenses. At least one of them must exist.
func CopyLicenses(srcDir, pkgDir string) ([]string, error) {
	dstDir := filepath.Join(pkgDir, "licenses")
	var copied []string
	for _, name := range LicenseFiles {
		src := filepath.Join(srcDir, name)
		info, err := os.Stat(src)
		if os.IsNotExist(err) {
			continue
		}
		if err != nil {
			return nil, &recipe.FilesystemError{Op: "stat", Path: src, Err: err}
		}
		if err := os.MkdirAll(dstDir, 0o755); err != nil {
			return nil, &recipe.FilesystemError{Op: "mkdir", Path: dstDir, Err: err}
		}
		dst := filepath.Join(dstDir, name)
		if err := xos.CopyFile(src, dst, info.Mode().Perm()|0o444); err != nil {
			return nil, &recipe.FilesystemError{Op: "copy", Path: dst, Err: err}
		}
		copied = append(copied, path.Join("licenses", name))
	}
	if len(copied) == 0 {
		return nil, &recipe.FilesystemError{Op: "copy", Path: filepath.Join(srcDir, "LICENSE"), Err: os.ErrNotExist}
	}
	return copied, nil
}

var libSuffixes = []string{".a", ".so", ".dylib", ".lib", ".dll"}

// LibName returns the link name of a library file, or "" if file is not
// a library. Unix archives lose their "lib" prefix; MSVC names are kept.
func LibName(file string) string {
	base := path.Base(file)
	dir := path.Dir(file)
	if dir != "lib" && dir != "bin" {
		return ""
	}
	name, ext := base, ""
	if i := strings.Index(base, ".so."); i > 0 {
		name, ext = base[:i], ".so"
	} else {
		ext = path.Ext(base)
		name = strings.TrimSuffix(base, ext)
	}
	if !slices.Contains(libSuffixes, ext) {
		return ""
	}
	switch ext {
	case ".lib", ".dll":
		return name
	case ".dylib":
		// libtheora.0.dylib
		name = trimVersion(name)
	}
	return strings.TrimPrefix(name, "lib")
}

// trimVersion removes trailing ".<digits>" components from name.
func trimVersion(name string) string {
	for {
		i := strings.LastIndexByte(name, '.')
		if i <= 0 || !isDigits(name[i+1:]) {
			return name
		}
		name = name[:i]
	}
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}

// Libs orders the library names: declared names first, then every other
// library found in files, sorted. Names appear once.
func Libs(declared, files []string) []string {
	var found []string
	for _, f := range files {
		if name := LibName(f); name != "" {
			found = append(found, name)
		}
	}
	slices.Sort(found)

	seen := map[string]bool{}
	var libs []string
	for _, name := range slices.Concat(declared, found) {
		if seen[name] {
			continue
		}
		seen[name] = true
		libs = append(libs, name)
	}
	return libs
}
