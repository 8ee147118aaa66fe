package pipeline

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/goplus/theora-recipe/internal/deps"
	"github.com/goplus/theora-recipe/internal/env"
	"github.com/goplus/theora-recipe/internal/metrics"
	"github.com/goplus/theora-recipe/pkgs/buildsys"
	"github.com/goplus/theora-recipe/recipe"
)

// fakeStrategy records which steps ran and installs a static library.
type fakeStrategy struct {
	env      *buildsys.Env
	buildErr error
	calls    []string
}

func (f *fakeStrategy) Name() string { return "fake" }

func (f *fakeStrategy) Configure(ctx context.Context) error {
	f.calls = append(f.calls, "configure")
	return nil
}

func (f *fakeStrategy) Build(ctx context.Context) error {
	f.calls = append(f.calls, "build")
	return f.buildErr
}

func (f *fakeStrategy) Install(ctx context.Context, pkgDir string) ([]string, error) {
	f.calls = append(f.calls, "install")
	lib := filepath.Join(pkgDir, "lib")
	if err := os.MkdirAll(lib, 0o755); err != nil {
		return nil, err
	}
	for _, name := range []string{"libtheora.a", "libtheoraenc.a", "libtheoradec.a"} {
		if err := os.WriteFile(filepath.Join(lib, name), []byte(name), 0o644); err != nil {
			return nil, err
		}
	}
	return buildsys.ListFiles(pkgDir)
}

func archive(t *testing.T) []byte {
	t.Helper()
	files := map[string]string{
		"libtheora-1.1.1/configure":                  "#!/bin/sh\n",
		"libtheora-1.1.1/COPYING":                    "Copyright (C) Xiph.Org Foundation\n",
		"libtheora-1.1.1/examples/encoder_example.c": "static double rint(double x)\n{\n}\n",
	}
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	tw := tar.NewWriter(gz)
	for name, content := range files {
		require.NoError(t, tw.WriteHeader(&tar.Header{Name: name, Typeflag: tar.TypeReg, Mode: 0o644, Size: int64(len(content))}))
		_, err := tw.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, tw.Close())
	require.NoError(t, gz.Close())
	return buf.Bytes()
}

func newPipeline(t *testing.T, opts recipe.BuildOptions, strategy *fakeStrategy) *Pipeline {
	t.Helper()
	data := archive(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(data)
	}))
	t.Cleanup(srv.Close)

	sum := sha256.Sum256(data)
	spec := &recipe.PackageSpec{
		Name:         "theora",
		Version:      "1.1.1",
		SourceURL:    srv.URL + "/libtheora-{version}.tar.gz",
		SourceSHA256: hex.EncodeToString(sum[:]),
		ArchiveDir:   "libtheora-{version}",
	}
	ws, err := env.NewWorkspace(t.TempDir())
	require.NoError(t, err)
	return &Pipeline{
		Spec:      spec,
		Options:   opts,
		Workspace: ws,
		Metrics:   metrics.NewRecorder(),
		NewStrategy: func(e *buildsys.Env) buildsys.BuildStrategy {
			strategy.env = e
			return strategy
		},
	}
}

func linuxOptions() recipe.BuildOptions {
	return recipe.BuildOptions{
		FPIC: true,
		Settings: recipe.Settings{
			OS:        "Linux",
			Arch:      "x86_64",
			Compiler:  recipe.CompilerGCC,
			BuildType: "Release",
		},
	}
}

func TestRun(t *testing.T) {
	strategy := &fakeStrategy{}
	p := newPipeline(t, linuxOptions(), strategy)

	set, err := p.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, Packaged, p.State())
	require.Equal(t, []string{"configure", "build", "install"}, strategy.calls)

	id := p.Options.PackageID()
	require.Equal(t, id, set.PackageID)
	require.Equal(t, []string{"theora", "theoradec", "theoraenc"}, set.Libs)
	require.Equal(t, []string{"licenses/COPYING"}, set.Licenses)
	require.NotEmpty(t, set.SourceHash)

	require.Equal(t, p.Workspace.BuildDir(id), strategy.env.BuildDir)
	require.Equal(t, p.Workspace.PackageDir(id), strategy.env.Prefix)
	require.FileExists(t, filepath.Join(p.Workspace.PackageDir(id), recipe.ArtifactsFile))
}

func TestRunBuildFailureSkipsPackaging(t *testing.T) {
	boom := &recipe.BuildError{Tool: "make", ExitCode: 2, Output: "error: boom"}
	strategy := &fakeStrategy{buildErr: boom}
	p := newPipeline(t, linuxOptions(), strategy)

	set, err := p.Run(context.Background())
	require.Nil(t, set)
	require.ErrorIs(t, err, boom)
	require.True(t, recipe.IsBuild(err))
	require.Equal(t, Patched, p.State())
	require.Equal(t, []string{"configure", "build"}, strategy.calls)

	pkgDir := p.Workspace.PackageDir(p.Options.PackageID())
	require.NoDirExists(t, filepath.Join(pkgDir, "licenses"))
	require.NoFileExists(t, filepath.Join(pkgDir, recipe.ArtifactsFile))
}

func TestRunIntegrityFailure(t *testing.T) {
	strategy := &fakeStrategy{}
	p := newPipeline(t, linuxOptions(), strategy)
	p.Spec.SourceSHA256 = hex.EncodeToString(make([]byte, 32))

	_, err := p.Run(context.Background())
	require.True(t, recipe.IsIntegrity(err), "err = %v", err)
	require.Equal(t, Init, p.State())
	require.Empty(t, strategy.calls)
}

func TestRunUpToDate(t *testing.T) {
	first := &fakeStrategy{}
	p := newPipeline(t, linuxOptions(), first)
	want, err := p.Run(context.Background())
	require.NoError(t, err)

	second := &fakeStrategy{}
	again := *p
	again.state = Init
	again.NewStrategy = func(e *buildsys.Env) buildsys.BuildStrategy { return second }
	got, err := again.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, want, got)
	require.Equal(t, Packaged, again.State())
	require.Empty(t, second.calls)

	forced := *p
	forced.state = Init
	forced.Force = true
	forced.NewStrategy = func(e *buildsys.Env) buildsys.BuildStrategy { return second }
	_, err = forced.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, []string{"configure", "build", "install"}, second.calls)
}

func TestRunRebuildsWhenDependenciesChange(t *testing.T) {
	first := &fakeStrategy{}
	p := newPipeline(t, linuxOptions(), first)
	p.Deps = []deps.Resolved{
		{Name: "ogg", Version: "1.3.5", Libs: []string{"ogg"}},
		{Name: "vorbis", Version: "1.3.7", Libs: []string{"vorbis"}},
	}
	_, err := p.Run(context.Background())
	require.NoError(t, err)

	same := &fakeStrategy{}
	again := *p
	again.state = Init
	again.NewStrategy = func(e *buildsys.Env) buildsys.BuildStrategy { return same }
	_, err = again.Run(context.Background())
	require.NoError(t, err)
	require.Empty(t, same.calls)

	changed := &fakeStrategy{}
	next := *p
	next.state = Init
	next.Deps = []deps.Resolved{
		{Name: "ogg", Version: "1.3.5", Libs: []string{"ogg_new"}},
		{Name: "vorbis", Version: "1.3.7", Libs: []string{"vorbis_new", "vorbisfile"}},
	}
	next.NewStrategy = func(e *buildsys.Env) buildsys.BuildStrategy {
		changed.env = e
		return changed
	}
	_, err = next.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, []string{"configure", "build", "install"}, changed.calls)
	vorbis, ok := changed.env.Dep("vorbis")
	require.True(t, ok)
	require.Equal(t, []string{"vorbis_new", "vorbisfile"}, vorbis.Libs)
}

func TestRunOnce(t *testing.T) {
	p := newPipeline(t, linuxOptions(), &fakeStrategy{})
	_, err := p.Run(context.Background())
	require.NoError(t, err)
	_, err = p.Run(context.Background())
	require.Error(t, err)
}

func TestSourceAppliesCompilerPatches(t *testing.T) {
	opts := recipe.BuildOptions{Settings: recipe.Settings{
		OS: "Windows", Arch: "x86_64", Compiler: recipe.CompilerVisualStudio, BuildType: "Release",
	}}
	p := newPipeline(t, opts, &fakeStrategy{})
	src, err := p.Source(context.Background())
	require.NoError(t, err)
	require.Equal(t, Patched, p.State())
	require.Len(t, src.Patches.Applied, 1)

	data, err := os.ReadFile(filepath.Join(src.Dir, "examples", "encoder_example.c"))
	require.NoError(t, err)
	require.Contains(t, string(data), "static double rint_(double x)")

	// the gcc tree is left untouched and hashes differently
	plain := newPipeline(t, linuxOptions(), &fakeStrategy{})
	plainSrc, err := plain.Source(context.Background())
	require.NoError(t, err)
	require.NotEqual(t, src.Hash, plainSrc.Hash)
}

func TestInfo(t *testing.T) {
	p := newPipeline(t, linuxOptions(), &fakeStrategy{})
	info, err := p.Info()
	require.NoError(t, err)
	require.Equal(t, "autotools", info.Strategy)
	require.Equal(t, []string{"theora"}, info.Libs)
	require.Equal(t, p.Workspace.PackageDir(info.PackageID), info.PkgDir)

	p.Options.Settings.OS = "Plan9"
	_, err = p.Info()
	require.Error(t, err)
}

func TestStrategySelection(t *testing.T) {
	require.Equal(t, "autotools", StrategyName(linuxOptions()))
	vs := linuxOptions()
	vs.Settings.Compiler = recipe.CompilerVisualStudio
	require.Equal(t, "msbuild", StrategyName(vs))

	p := &Pipeline{Options: vs}
	s := p.strategy(buildsys.NewEnv(vs, "src", "build", "pkg", nil, nil))
	require.Equal(t, "msbuild", s.Name())
	p.Options = linuxOptions()
	s = p.strategy(buildsys.NewEnv(p.Options, "src", "build", "pkg", nil, nil))
	require.Equal(t, "autotools", s.Name())
}

func TestStateTransitions(t *testing.T) {
	var p Pipeline
	require.Error(t, p.advance(Patched))
	for _, s := range []State{Fetched, Patched, Built, Packaged} {
		require.NoError(t, p.advance(s))
		require.Equal(t, s, p.State())
	}
	require.Error(t, p.advance(Packaged))
	require.Error(t, p.advance(Packaged+1))
	require.Equal(t, "packaged", Packaged.String())
	require.Equal(t, "State(9)", State(9).String())
}

func TestCache(t *testing.T) {
	name := filepath.Join(t.TempDir(), ".cache.json")
	c, err := loadCache(name)
	require.NoError(t, err)
	_, ok := c.get("k")
	require.False(t, ok)

	c.set("k", &buildEntry{SourceHash: "h1:x", Strategy: "autotools"})
	require.NoError(t, saveCache(name, c))
	c, err = loadCache(name)
	require.NoError(t, err)
	entry, ok := c.get("k")
	require.True(t, ok)
	require.Equal(t, "h1:x", entry.SourceHash)

	require.NoError(t, os.WriteFile(name, []byte("invalid json"), 0o644))
	_, err = loadCache(name)
	require.Error(t, err)
}
