// Package recipe describes what the pipeline fetches and builds: the
// package descriptor, the user build options and the produced artifacts.
package recipe

import (
	"errors"
	"fmt"
	"strings"

	"golang.org/x/mod/semver"
)

const versionPlaceholder = "{version}"

// AuxFile is an extra file fetched into the source tree after extraction,
// for files upstream forgot to ship in the release archive.
type AuxFile struct {
	URL    string `yaml:"url" json:"url"`
	SHA256 string `yaml:"sha256" json:"sha256"`
	// Dest is the slash-separated path relative to the source tree root.
	Dest string `yaml:"dest" json:"dest"`
	// Compiler restricts the file to builds with that compiler.
	Compiler string `yaml:"compiler,omitempty" json:"compiler,omitempty"`
}

// Patch is a textual substitution applied to the extracted sources
// before the build.
type Patch struct {
	File   string `yaml:"file" json:"file"`
	Old    string `yaml:"old" json:"old"`
	New    string `yaml:"new" json:"new"`
	Strict bool   `yaml:"strict" json:"strict"`
}

// PackageSpec is the immutable description of what to fetch and build.
// Callers must treat a PackageSpec as read-only once constructed.
type PackageSpec struct {
	Name        string `json:"name"`
	Version     string `json:"version"`
	Description string `json:"description,omitempty"`
	Homepage    string `json:"homepage,omitempty"`
	License     string `json:"license,omitempty"`

	// SourceURL may contain {version}, replaced by URL.
	SourceURL    string `json:"url"`
	SourceSHA256 string `json:"sha256"`
	// ArchiveDir is the top-level directory of the archive, may contain {version}.
	ArchiveDir string `json:"archive_dir,omitempty"`

	Requires []Requirement `json:"requires,omitempty"`
	AuxFiles []AuxFile     `json:"aux_files,omitempty"`
	Patches  []Patch       `json:"patches,omitempty"`
}

// URL returns the download URL with the version substituted.
func (p *PackageSpec) URL() string {
	return strings.ReplaceAll(p.SourceURL, versionPlaceholder, p.Version)
}

// ArchiveDirName returns the name of the directory the archive unpacks to.
func (p *PackageSpec) ArchiveDirName() string {
	if p.ArchiveDir == "" {
		return p.SourceDirName()
	}
	return strings.ReplaceAll(p.ArchiveDir, versionPlaceholder, p.Version)
}

// SourceDirName returns the canonical extracted directory name. It only
// depends on name and version, so refetching an unchanged spec lands in
// the same place.
func (p *PackageSpec) SourceDirName() string {
	return p.Name + "-" + p.Version
}

// ForOptions returns a copy of p holding only the aux files needed for
// opts.
func (p *PackageSpec) ForOptions(opts BuildOptions) *PackageSpec {
	spec := *p
	spec.AuxFiles = nil
	for _, f := range p.AuxFiles {
		if f.Compiler == "" || f.Compiler == opts.Settings.Compiler {
			spec.AuxFiles = append(spec.AuxFiles, f)
		}
	}
	return &spec
}

// Requirement returns the declared requirement named name.
func (p *PackageSpec) Requirement(name string) (Requirement, bool) {
	for _, r := range p.Requires {
		if r.Name == name {
			return r, true
		}
	}
	return Requirement{}, false
}

// Validate reports the first structural problem of the spec.
func (p *PackageSpec) Validate() error {
	switch {
	case p.Name == "":
		return errors.New("package name is empty")
	case strings.ContainsAny(p.Name, `/\ `):
		return fmt.Errorf("invalid package name %q", p.Name)
	case p.Version == "":
		return fmt.Errorf("package %s: version is empty", p.Name)
	case p.SourceURL == "":
		return fmt.Errorf("package %s: source url is empty", p.Name)
	}
	if err := checkDigest(p.SourceSHA256); err != nil {
		return fmt.Errorf("package %s: source sha256: %w", p.Name, err)
	}
	for _, f := range p.AuxFiles {
		if f.URL == "" || f.Dest == "" {
			return fmt.Errorf("package %s: aux file needs url and dest", p.Name)
		}
		if err := checkDigest(f.SHA256); err != nil {
			return fmt.Errorf("package %s: aux file %s: %w", p.Name, f.Dest, err)
		}
	}
	for _, r := range p.Requires {
		if err := r.validate(); err != nil {
			return fmt.Errorf("package %s: %w", p.Name, err)
		}
	}
	for _, pt := range p.Patches {
		if pt.File == "" || pt.Old == "" {
			return fmt.Errorf("package %s: patch needs file and old text", p.Name)
		}
	}
	return nil
}

func checkDigest(s string) error {
	if len(s) != 64 {
		return fmt.Errorf("digest %q is not 64 hex characters", s)
	}
	for _, c := range strings.ToLower(s) {
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return fmt.Errorf("digest %q is not hex", s)
		}
	}
	return nil
}

// -----------------------------------------------------------------------------

// Requirement is an upstream dependency: a package name and a version
// constraint such as "1.3.3", ">=1.3.3" or ">=1.3.3 <2.0.0".
type Requirement struct {
	Name       string `yaml:"name" json:"name"`
	Constraint string `yaml:"version" json:"version"`
}

func (r Requirement) String() string {
	return r.Name + "/" + r.Constraint
}

type bound struct {
	op  string
	ver string
}

func (r Requirement) bounds() ([]bound, error) {
	fields := strings.FieldsFunc(r.Constraint, func(c rune) bool {
		return c == ',' || c == ' '
	})
	if len(fields) == 0 {
		return nil, fmt.Errorf("requirement %s: empty version constraint", r.Name)
	}
	out := make([]bound, 0, len(fields))
	for _, f := range fields {
		op := "="
		for _, candidate := range []string{">=", "<=", "==", ">", "<", "="} {
			if strings.HasPrefix(f, candidate) {
				op = candidate
				f = f[len(candidate):]
				break
			}
		}
		v := canonical(f)
		if v == "" {
			return nil, fmt.Errorf("requirement %s: invalid version %q", r.Name, f)
		}
		out = append(out, bound{op: op, ver: v})
	}
	return out, nil
}

func (r Requirement) validate() error {
	if r.Name == "" {
		return errors.New("requirement without name")
	}
	_, err := r.bounds()
	return err
}

// Allows reports whether version satisfies the constraint. Invalid
// versions or constraints never match.
func (r Requirement) Allows(version string) bool {
	v := canonical(version)
	if v == "" {
		return false
	}
	bs, err := r.bounds()
	if err != nil {
		return false
	}
	for _, b := range bs {
		c := semver.Compare(v, b.ver)
		var ok bool
		switch b.op {
		case ">=":
			ok = c >= 0
		case "<=":
			ok = c <= 0
		case ">":
			ok = c > 0
		case "<":
			ok = c < 0
		default:
			ok = c == 0
		}
		if !ok {
			return false
		}
	}
	return true
}

// canonical turns "1.3" or "v1.3.3" into a semver string, or "" if invalid.
func canonical(v string) string {
	v = strings.TrimSpace(v)
	if v == "" {
		return ""
	}
	if !strings.HasPrefix(v, "v") {
		v = "v" + v
	}
	if !semver.IsValid(v) {
		return ""
	}
	return semver.Canonical(v)
}
