// Package deps resolves the requirements of a package spec to built
// dependencies supplied by the invoker.
package deps

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	elog "github.com/eluv-io/log-go"

	"github.com/goplus/theora-recipe/internal/packager"
	"github.com/goplus/theora-recipe/pkgs/buildsys"
	"github.com/goplus/theora-recipe/recipe"
)

var log = elog.Get("/theora-recipe/deps")

// Resolved is a requirement matched to a built package.
type Resolved struct {
	Name string
	// Version is empty when the package directory carries no manifest.
	Version string
	// Root is the package directory, empty when only libs were given.
	Root string
	Libs []string
}

// Source holds what the invoker supplied: package directories and
// explicit library lists, keyed by requirement name.
type Source struct {
	Dirs map[string]string
	Libs map[string][]string
}

// AddDir parses "name=dir".
func (s *Source) AddDir(arg string) error {
	name, dir, ok := strings.Cut(arg, "=")
	if !ok || name == "" || dir == "" {
		return fmt.Errorf("invalid dependency %q, want name=dir", arg)
	}
	if s.Dirs == nil {
		s.Dirs = map[string]string{}
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return err
	}
	s.Dirs[name] = abs
	return nil
}

// AddLibs parses "name=lib1,lib2".
func (s *Source) AddLibs(arg string) error {
	name, list, ok := strings.Cut(arg, "=")
	if !ok || name == "" {
		return fmt.Errorf("invalid dependency libs %q, want name=lib1,lib2", arg)
	}
	var libs []string
	for _, l := range strings.Split(list, ",") {
		if l = strings.TrimSpace(l); l != "" {
			libs = append(libs, l)
		}
	}
	if len(libs) == 0 {
		return fmt.Errorf("invalid dependency libs %q: no libraries", arg)
	}
	if s.Libs == nil {
		s.Libs = map[string][]string{}
	}
	s.Libs[name] = libs
	return nil
}

// Resolve matches every requirement, in order, against src. Explicit
// library lists take precedence over those found in a package directory.
func Resolve(reqs []recipe.Requirement, src Source) ([]Resolved, error) {
	for name := range src.Dirs {
		if !declared(reqs, name) {
			return nil, fmt.Errorf("%s is not a requirement", name)
		}
	}
	for name := range src.Libs {
		if !declared(reqs, name) {
			return nil, fmt.Errorf("%s is not a requirement", name)
		}
	}

	out := make([]Resolved, 0, len(reqs))
	for _, req := range reqs {
		r := Resolved{Name: req.Name}
		if dir, ok := src.Dirs[req.Name]; ok {
			version, libs, err := inspect(dir)
			if err != nil {
				return nil, fmt.Errorf("dependency %s: %w", req.Name, err)
			}
			if version != "" && !req.Allows(version) {
				return nil, fmt.Errorf("dependency %s %s does not satisfy %s", req.Name, version, req.Constraint)
			}
			r.Root, r.Version, r.Libs = dir, version, libs
		}
		if libs, ok := src.Libs[req.Name]; ok {
			r.Libs = libs
		}
		if len(r.Libs) == 0 {
			if r.Root == "" {
				return nil, fmt.Errorf("requirement %s is not satisfied", req)
			}
			return nil, fmt.Errorf("dependency %s: no libraries in %s", req.Name, r.Root)
		}
		log.Debug("resolved", "name", r.Name, "version", r.Version, "root", r.Root, "libs", r.Libs)
		out = append(out, r)
	}
	return out, nil
}

func declared(reqs []recipe.Requirement, name string) bool {
	return slices.ContainsFunc(reqs, func(r recipe.Requirement) bool { return r.Name == name })
}

// inspect reads a package directory's manifest, or lists its lib/
// directory when there is none.
func inspect(dir string) (string, []string, error) {
	set, err := recipe.ReadArtifacts(dir)
	if err == nil {
		return set.Version, set.Libs, nil
	}
	if !os.IsNotExist(err) {
		return "", nil, err
	}
	entries, err := os.ReadDir(filepath.Join(dir, "lib"))
	if err != nil {
		return "", nil, &recipe.FilesystemError{Op: "readdir", Path: filepath.Join(dir, "lib"), Err: err}
	}
	var files []string
	for _, e := range entries {
		if !e.IsDir() {
			files = append(files, "lib/"+e.Name())
		}
	}
	return "", packager.Libs(nil, files), nil
}

// Dependencies converts resolved requirements for the build environment.
func Dependencies(resolved []Resolved) []buildsys.Dependency {
	out := make([]buildsys.Dependency, len(resolved))
	for i, r := range resolved {
		out[i] = buildsys.Dependency{Name: r.Name, Root: r.Root, Libs: r.Libs}
	}
	return out
}

// Digest identifies the resolved dependencies: their names, versions,
// roots and libraries, in order. A build made against different
// dependencies has a different digest.
func Digest(resolved []Resolved) string {
	if resolved == nil {
		resolved = []Resolved{}
	}
	data, err := json.Marshal(resolved)
	if err != nil {
		panic(err)
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
