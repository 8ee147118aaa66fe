package recipe

import (
	"strings"
	"testing"
)

func TestTheoraSpec(t *testing.T) {
	spec := Theora()
	if err := spec.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if got, want := spec.URL(), "http://downloads.xiph.org/releases/theora/libtheora-1.1.1.tar.bz2"; got != want {
		t.Errorf("URL() = %q, want %q", got, want)
	}
	if got, want := spec.ArchiveDirName(), "libtheora-1.1.1"; got != want {
		t.Errorf("ArchiveDirName() = %q, want %q", got, want)
	}
	if got, want := spec.SourceDirName(), "theora-1.1.1"; got != want {
		t.Errorf("SourceDirName() = %q, want %q", got, want)
	}
	for _, name := range []string{"ogg", "vorbis"} {
		if _, ok := spec.Requirement(name); !ok {
			t.Errorf("missing requirement %s", name)
		}
	}
}

func TestSourceDirNameDeterministic(t *testing.T) {
	a := &PackageSpec{Name: "x", Version: "2.0", SourceURL: "http://a/{version}.zip"}
	b := &PackageSpec{Name: "x", Version: "2.0", SourceURL: "http://b/other-{version}.tgz", ArchiveDir: "y-{version}"}
	if a.SourceDirName() != b.SourceDirName() {
		t.Errorf("SourceDirName differs: %q vs %q", a.SourceDirName(), b.SourceDirName())
	}
	if got := a.ArchiveDirName(); got != "x-2.0" {
		t.Errorf("ArchiveDirName() without template = %q", got)
	}
}

func TestSpecValidate(t *testing.T) {
	digest := strings.Repeat("a", 64)
	tests := []struct {
		name string
		spec PackageSpec
		want string
	}{
		{"no name", PackageSpec{Version: "1", SourceURL: "u", SourceSHA256: digest}, "name is empty"},
		{"slash in name", PackageSpec{Name: "a/b", Version: "1", SourceURL: "u", SourceSHA256: digest}, "invalid package name"},
		{"no version", PackageSpec{Name: "a", SourceURL: "u", SourceSHA256: digest}, "version is empty"},
		{"no url", PackageSpec{Name: "a", Version: "1", SourceSHA256: digest}, "source url is empty"},
		{"short digest", PackageSpec{Name: "a", Version: "1", SourceURL: "u", SourceSHA256: "abc"}, "not 64 hex"},
		{"non hex digest", PackageSpec{Name: "a", Version: "1", SourceURL: "u", SourceSHA256: strings.Repeat("z", 64)}, "not hex"},
		{
			"aux without dest",
			PackageSpec{Name: "a", Version: "1", SourceURL: "u", SourceSHA256: digest, AuxFiles: []AuxFile{{URL: "u", SHA256: digest}}},
			"needs url and dest",
		},
		{
			"bad requirement",
			PackageSpec{Name: "a", Version: "1", SourceURL: "u", SourceSHA256: digest, Requires: []Requirement{{Name: "ogg", Constraint: ">=banana"}}},
			"invalid version",
		},
		{
			"empty patch",
			PackageSpec{Name: "a", Version: "1", SourceURL: "u", SourceSHA256: digest, Patches: []Patch{{File: "f"}}},
			"patch needs",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.spec.Validate()
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("Validate() = %v, want error containing %q", err, tt.want)
			}
		})
	}
}

func TestRequirementAllows(t *testing.T) {
	tests := []struct {
		constraint string
		version    string
		want       bool
	}{
		{"1.3.3", "1.3.3", true},
		{"1.3.3", "1.3.4", false},
		{"==1.3.3", "v1.3.3", true},
		{">=1.3.3", "1.3.5", true},
		{">=1.3.3", "1.3.2", false},
		{">=1.3.3 <2.0.0", "1.9.0", true},
		{">=1.3.3 <2.0.0", "2.0.0", false},
		{">=1.3.3, <2", "1.4", true},
		{">1.3", "1.3.0", false},
		{"<=1.3", "1.3.0", true},
		{">=1.3.3", "not-a-version", false},
		{">=bogus", "1.3.3", false},
	}
	for _, tt := range tests {
		r := Requirement{Name: "ogg", Constraint: tt.constraint}
		if got := r.Allows(tt.version); got != tt.want {
			t.Errorf("%s Allows(%q) = %v, want %v", r, tt.version, got, tt.want)
		}
	}
}

func TestDeclaredLibs(t *testing.T) {
	spec := Theora()
	o := linuxOptions()
	if got := DeclaredLibs(spec, o); len(got) != 1 || got[0] != "theora" {
		t.Errorf("autotools libs = %v", got)
	}
	o.Settings.OS = "Windows"
	o.Settings.Compiler = CompilerVisualStudio
	if got := DeclaredLibs(spec, o); len(got) != 1 || got[0] != "libtheora_static" {
		t.Errorf("msvc static libs = %v", got)
	}
	o.Shared = true
	if got := DeclaredLibs(spec, o); len(got) != 1 || got[0] != "libtheora" {
		t.Errorf("msvc shared libs = %v", got)
	}
}

func TestCompilerPatches(t *testing.T) {
	o := linuxOptions()
	if got := CompilerPatches(o); len(got) != 0 {
		t.Errorf("gcc patches = %v, want none", got)
	}
	o.Settings.Compiler = CompilerVisualStudio
	got := CompilerPatches(o)
	if len(got) != 1 || !got[0].Strict || got[0].File != "examples/encoder_example.c" {
		t.Errorf("msvc patches = %+v", got)
	}
}

func TestForOptions(t *testing.T) {
	spec := Theora()
	o := linuxOptions()
	if got := spec.ForOptions(o); len(got.AuxFiles) != 0 {
		t.Errorf("gcc aux files = %+v, want none", got.AuxFiles)
	}
	if len(spec.AuxFiles) != 1 {
		t.Fatalf("ForOptions modified the receiver: %+v", spec.AuxFiles)
	}

	o.Settings.OS = "Windows"
	o.Settings.Compiler = CompilerVisualStudio
	got := spec.ForOptions(o)
	if len(got.AuxFiles) != 1 || got.AuxFiles[0].Dest != "lib/theora.def" {
		t.Errorf("msvc aux files = %+v", got.AuxFiles)
	}

	spec.AuxFiles = append(spec.AuxFiles, AuxFile{URL: "u", Dest: "extra.h"})
	if got := spec.ForOptions(linuxOptions()); len(got.AuxFiles) != 1 || got.AuxFiles[0].Dest != "extra.h" {
		t.Errorf("unrestricted aux files = %+v", got.AuxFiles)
	}
}
