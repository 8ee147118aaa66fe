package packager

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/goplus/theora-recipe/recipe"
)

// fakeStrategy installs a fixed set of files.
type fakeStrategy struct {
	name  string
	files []string
	err   error
}

func (f *fakeStrategy) Name() string                        { return f.name }
func (f *fakeStrategy) Configure(ctx context.Context) error { return nil }
func (f *fakeStrategy) Build(ctx context.Context) error     { return nil }

func (f *fakeStrategy) Install(ctx context.Context, pkgDir string) ([]string, error) {
	if f.err != nil {
		return nil, f.err
	}
	for _, name := range f.files {
		p := filepath.Join(pkgDir, filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			return nil, err
		}
		if err := os.WriteFile(p, []byte(name), 0o644); err != nil {
			return nil, err
		}
	}
	return append([]string{"licenses/COPYING"}, f.files...), nil
}

func sourceWith(t *testing.T, names ...string) string {
	t.Helper()
	dir := t.TempDir()
	for _, n := range names {
		require.NoError(t, os.WriteFile(filepath.Join(dir, n), []byte(n+" text"), 0o644))
	}
	return dir
}

func vsOptions(shared bool) recipe.BuildOptions {
	return recipe.BuildOptions{
		Shared: shared,
		Settings: recipe.Settings{
			OS:              "Windows",
			Arch:            "x86_64",
			Compiler:        recipe.CompilerVisualStudio,
			CompilerVersion: "15",
			CompilerRuntime: "MD",
			BuildType:       "Release",
		},
	}
}

func TestPackageLegacy(t *testing.T) {
	pkg := filepath.Join(t.TempDir(), "pkg")
	in := &Input{
		Spec:       recipe.Theora(),
		Options:    vsOptions(true),
		SourceDir:  sourceWith(t, "COPYING"),
		SourceHash: "h1:abc",
		PkgDir:     pkg,
		Strategy: &fakeStrategy{name: "msbuild", files: []string{
			"bin/libtheora.dll",
			"include/theora/theora.h",
			"lib/libtheora.lib",
		}},
	}
	set, err := Package(context.Background(), in)
	require.NoError(t, err)

	entries, err := os.ReadDir(filepath.Join(pkg, "licenses"))
	require.NoError(t, err)
	require.NotEmpty(t, entries)
	require.Equal(t, []string{"licenses/COPYING"}, set.Licenses)

	require.Equal(t, []string{"libtheora"}, set.Libs)
	require.Equal(t, "msbuild", set.Strategy)
	require.Equal(t, "h1:abc", set.SourceHash)
	require.Equal(t, in.Options.PackageID(), set.PackageID)

	got, err := recipe.ReadArtifacts(pkg)
	require.NoError(t, err)
	require.Equal(t, set, got)
}

func TestPackageNoLicense(t *testing.T) {
	strategy := &fakeStrategy{name: "autotools"}
	_, err := Package(context.Background(), &Input{
		Spec:      recipe.Theora(),
		Options:   vsOptions(false),
		SourceDir: t.TempDir(),
		PkgDir:    filepath.Join(t.TempDir(), "pkg"),
		Strategy:  strategy,
	})
	require.True(t, recipe.IsFilesystem(err), "err = %v", err)
}

func TestPackageInstallFailure(t *testing.T) {
	boom := &recipe.BuildError{Tool: "make", Args: []string{"install"}, ExitCode: 2}
	pkg := filepath.Join(t.TempDir(), "pkg")
	_, err := Package(context.Background(), &Input{
		Spec:      recipe.Theora(),
		Options:   vsOptions(false),
		SourceDir: sourceWith(t, "LICENSE"),
		PkgDir:    pkg,
		Strategy:  &fakeStrategy{err: boom},
	})
	require.True(t, errors.Is(err, boom))
	require.NoFileExists(t, filepath.Join(pkg, recipe.ArtifactsFile))
}

func TestCopyLicenses(t *testing.T) {
	pkg := t.TempDir()
	got, err := CopyLicenses(sourceWith(t, "LICENSE", "COPYING", "README"), pkg)
	require.NoError(t, err)
	require.Equal(t, []string{"licenses/LICENSE", "licenses/COPYING"}, got)

	data, err := os.ReadFile(filepath.Join(pkg, "licenses", "COPYING"))
	require.NoError(t, err)
	require.Equal(t, "COPYING text", string(data))
	require.NoFileExists(t, filepath.Join(pkg, "licenses", "README"))
}

func TestLibName(t *testing.T) {
	tests := map[string]string{
		"lib/libtheora.a":              "theora",
		"lib/libtheoraenc.so":          "theoraenc",
		"lib/libtheoradec.so.1.1.4":    "theoradec",
		"lib/libtheora.dylib":          "theora",
		"lib/libtheora.0.dylib":        "theora",
		"lib/libtheoradec.1.dylib":     "theoradec",
		"lib/libtheoraenc.1.1.2.dylib": "theoraenc",
		"lib/libtheora_static.lib":     "libtheora_static",
		"bin/libtheora.dll":            "libtheora",
		"lib/libtheora.la":             "",
		"lib/pkgconfig/theora.pc":      "",
		"include/theora/theora.h":      "",
		"share/doc/libtheora.a":        "",
	}
	for file, want := range tests {
		require.Equal(t, want, LibName(file), file)
	}
}

func TestLibs(t *testing.T) {
	files := []string{
		"lib/libtheoraenc.a",
		"lib/libtheora.a",
		"lib/libtheoradec.a",
		"lib/libtheora.so.0",
		"include/theora/theora.h",
	}
	require.Equal(t, []string{"theora", "theoradec", "theoraenc"}, Libs([]string{"theora"}, files))
	require.Equal(t, []string{"theoraenc", "theora", "theoradec"}, Libs([]string{"theoraenc"}, files))
	require.Equal(t, []string{"libtheora"}, Libs([]string{"libtheora"}, nil))

	dylibs := []string{
		"lib/libtheora.0.dylib",
		"lib/libtheora.dylib",
		"lib/libtheoradec.1.dylib",
		"lib/libtheoradec.dylib",
	}
	require.Equal(t, []string{"theora", "theoradec"}, Libs([]string{"theora"}, dylibs))
}
