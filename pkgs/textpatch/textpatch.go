// Package textpatch applies declarative text substitutions to source files.
package textpatch

import (
	"bytes"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/goplus/theora-recipe/internal/xos"
	"github.com/goplus/theora-recipe/recipe"
)

// Rule replaces every occurrence of Old with New in File. File is a
// slash-separated path relative to the tree the rules are applied to.
// A Strict rule fails when Old is absent; otherwise it is a no-op.
type Rule struct {
	File   string
	Old    string
	New    string
	Strict bool
}

// FromPatches converts recipe patches into rules.
func FromPatches(patches []recipe.Patch) []Rule {
	rules := make([]Rule, len(patches))
	for i, p := range patches {
		rules[i] = Rule{File: p.File, Old: p.Old, New: p.New, Strict: p.Strict}
	}
	return rules
}

// Report lists which rules changed a file and which found nothing to do.
type Report struct {
	Applied []Rule
	Skipped []Rule
}

// protected files are legal texts that are never patched.
var protected = []string{"LICENSE", "COPYING"}

func isProtected(file string) bool {
	base := path.Base(filepath.ToSlash(file))
	for _, p := range protected {
		if strings.EqualFold(base, p) || strings.HasPrefix(strings.ToUpper(base), p+".") {
			return true
		}
	}
	return false
}

// Replace applies rules to content regardless of their File. It returns
// the new content and, for each rule, whether it matched. A strict rule
// that does not match yields a PatchError.
func Replace(content []byte, rules []Rule) ([]byte, []bool, error) {
	matched := make([]bool, len(rules))
	for i, r := range rules {
		old := []byte(r.Old)
		if len(old) == 0 || !bytes.Contains(content, old) {
			if r.Strict {
				return nil, nil, &recipe.PatchError{File: r.File, Fragment: r.Old}
			}
			continue
		}
		content = bytes.ReplaceAll(content, old, []byte(r.New))
		matched[i] = true
	}
	return content, matched, nil
}

// Apply applies rules to the files under root. Rules for the same file
// run in order against the result of the previous one, and each file is
// written once, atomically, keeping its mode.
func Apply(root string, rules []Rule) (*Report, error) {
	var order []string
	byFile := make(map[string][]Rule)
	for _, r := range rules {
		if isProtected(r.File) {
			return nil, &recipe.PatchError{File: r.File, Reason: "license files are never patched"}
		}
		if _, ok := byFile[r.File]; !ok {
			order = append(order, r.File)
		}
		byFile[r.File] = append(byFile[r.File], r)
	}

	report := &Report{}
	for _, file := range order {
		fileRules := byFile[file]
		name := filepath.Join(root, filepath.FromSlash(file))
		info, err := os.Stat(name)
		if os.IsNotExist(err) {
			if anyStrict(fileRules) {
				return nil, &recipe.PatchError{File: file, Reason: "file not found"}
			}
			report.Skipped = append(report.Skipped, fileRules...)
			continue
		}
		if err != nil {
			return nil, &recipe.FilesystemError{Op: "stat", Path: name, Err: err}
		}
		content, err := os.ReadFile(name)
		if err != nil {
			return nil, &recipe.FilesystemError{Op: "read", Path: name, Err: err}
		}
		out, matched, err := Replace(content, fileRules)
		if err != nil {
			return nil, err
		}
		changed := false
		for i, ok := range matched {
			if ok {
				report.Applied = append(report.Applied, fileRules[i])
				changed = true
			} else {
				report.Skipped = append(report.Skipped, fileRules[i])
			}
		}
		if !changed || bytes.Equal(out, content) {
			continue
		}
		if err := xos.WriteFile(name, out, info.Mode().Perm()); err != nil {
			return nil, &recipe.FilesystemError{Op: "write", Path: name, Err: err}
		}
	}
	return report, nil
}

func anyStrict(rules []Rule) bool {
	for _, r := range rules {
		if r.Strict {
			return true
		}
	}
	return false
}
