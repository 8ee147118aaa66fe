// Copyright (c) 2026 The XGo Authors (xgo.dev). All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package fetch downloads a source archive, verifies its SHA-256 digest
// and extracts it into the workspace under a deterministic name.
package fetch

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	elog "github.com/eluv-io/log-go"
	"github.com/schollz/progressbar/v3"
	"golang.org/x/mod/sumdb/dirhash"

	"github.com/goplus/theora-recipe/internal/env"
	"github.com/goplus/theora-recipe/internal/xos"
	"github.com/goplus/theora-recipe/recipe"
)

var log = elog.Get("/theora-recipe/fetch")

// Result describes a fetched source tree.
type Result struct {
	SourceDir   string
	ArchivePath string
	// TreeHash is the dirhash ("h1:...") of SourceDir after aux files
	// were added.
	TreeHash string
}

// Fetcher retrieves and unpacks sources into a workspace.
type Fetcher struct {
	ws       *env.Workspace
	client   *http.Client
	progress io.Writer
}

// Option configures a Fetcher.
type Option func(*Fetcher)

// WithHTTPClient sets the client used for downloads.
func WithHTTPClient(c *http.Client) Option {
	return func(f *Fetcher) {
		f.client = c
	}
}

// WithProgress draws a progress bar on w while downloading.
func WithProgress(w io.Writer) Option {
	return func(f *Fetcher) {
		f.progress = w
	}
}

// New returns a Fetcher writing into ws.
func New(ws *env.Workspace, opts ...Option) *Fetcher {
	f := &Fetcher{
		ws: ws,
		client: &http.Client{
			Timeout: 10 * time.Minute,
		},
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Fetch downloads spec's archive, verifies it, and extracts it to
// <workspace>/src/<name>-<version>, replacing any previous tree there.
// Nothing is extracted unless the digest matches.
func (f *Fetcher) Fetch(ctx context.Context, spec *recipe.PackageSpec) (*Result, error) {
	srcURL := spec.URL()
	if err := os.MkdirAll(f.ws.DownloadDir(), 0o755); err != nil {
		return nil, &recipe.FilesystemError{Op: "mkdir", Path: f.ws.DownloadDir(), Err: err}
	}
	name, err := archiveName(srcURL)
	if err != nil {
		return nil, err
	}
	archive := filepath.Join(f.ws.DownloadDir(), name)

	if sum, err := fileSHA256(archive); err == nil && strings.EqualFold(sum, spec.SourceSHA256) {
		log.Info("using downloaded archive", "path", archive)
	} else {
		log.Info("downloading", "url", srcURL)
		if err := f.download(ctx, srcURL, spec.SourceSHA256, archive); err != nil {
			return nil, err
		}
	}

	dest := f.ws.SourceDir(spec.SourceDirName())
	err = f.unpack(archive, spec.ArchiveDirName(), dest, func(dir string) error {
		return f.fetchAux(ctx, spec.AuxFiles, dir)
	})
	if err != nil {
		return nil, err
	}

	hash, err := TreeHash(dest)
	if err != nil {
		return nil, err
	}
	log.Debug("source tree ready", "dir", dest, "hash", hash)
	return &Result{SourceDir: dest, ArchivePath: archive, TreeHash: hash}, nil
}

// TreeHash returns the dirhash of the tree rooted at dir.
func TreeHash(dir string) (string, error) {
	h, err := dirhash.HashDir(dir, filepath.Base(dir), dirhash.Hash1)
	if err != nil {
		return "", &recipe.FilesystemError{Op: "hash", Path: dir, Err: err}
	}
	return h, nil
}

// download streams rawURL into dest, which only appears once the digest
// matches want.
func (f *Fetcher) download(ctx context.Context, rawURL, want, dest string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return &recipe.TransportError{URL: rawURL, Err: err}
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return &recipe.TransportError{URL: rawURL, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &recipe.TransportError{URL: rawURL, Status: resp.StatusCode}
	}

	pending, err := xos.NewPendingFile(dest)
	if err != nil {
		return &recipe.FilesystemError{Op: "create", Path: dest, Err: err}
	}
	defer pending.Cleanup()

	h := sha256.New()
	w := io.MultiWriter(pending, h)
	var bar *progressbar.ProgressBar
	if f.progress != nil {
		bar = progressbar.NewOptions64(resp.ContentLength,
			progressbar.OptionSetDescription(path.Base(req.URL.Path)),
			progressbar.OptionSetWriter(f.progress),
			progressbar.OptionShowBytes(true),
			progressbar.OptionSetWidth(40),
			progressbar.OptionThrottle(65*time.Millisecond),
			progressbar.OptionOnCompletion(func() {
				fmt.Fprint(f.progress, "\n")
			}),
		)
		w = io.MultiWriter(w, bar)
	}

	if _, err := io.Copy(w, resp.Body); err != nil {
		if bar != nil {
			bar.Exit()
		}
		return &recipe.TransportError{URL: rawURL, Err: err}
	}
	if bar != nil {
		bar.Finish()
	}

	got := hex.EncodeToString(h.Sum(nil))
	if !strings.EqualFold(got, want) {
		log.Warn("digest mismatch", "url", rawURL, "got", got, "want", want)
		return &recipe.IntegrityError{URL: rawURL, Want: strings.ToLower(want), Got: got}
	}
	if err := pending.Chmod(0o644); err != nil {
		return &recipe.FilesystemError{Op: "chmod", Path: dest, Err: err}
	}
	if err := pending.CloseAtomically(); err != nil {
		return &recipe.FilesystemError{Op: "rename", Path: dest, Err: err}
	}
	return nil
}

// fetchAux downloads files into the tree rooted at dir.
func (f *Fetcher) fetchAux(ctx context.Context, files []recipe.AuxFile, dir string) error {
	for _, aux := range files {
		rel := filepath.FromSlash(aux.Dest)
		if !filepath.IsLocal(rel) {
			return fmt.Errorf("aux file %s escapes the source tree", aux.Dest)
		}
		target := filepath.Join(dir, rel)
		if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			return &recipe.FilesystemError{Op: "mkdir", Path: filepath.Dir(target), Err: err}
		}
		log.Info("downloading aux file", "url", aux.URL, "dest", aux.Dest)
		if err := f.download(ctx, aux.URL, aux.SHA256, target); err != nil {
			return err
		}
	}
	return nil
}

// unpack extracts archive into a scratch directory next to dest, runs
// prepare on the archive's top-level directory, then moves that
// directory into place. dest is untouched when any step fails.
func (f *Fetcher) unpack(archive, topDir, dest string, prepare func(dir string) error) error {
	parent := filepath.Dir(dest)
	if err := os.MkdirAll(parent, 0o755); err != nil {
		return &recipe.FilesystemError{Op: "mkdir", Path: parent, Err: err}
	}
	scratch, err := os.MkdirTemp(parent, ".extract-")
	if err != nil {
		return &recipe.FilesystemError{Op: "mkdir", Path: parent, Err: err}
	}
	defer os.RemoveAll(scratch)

	if err := Extract(archive, scratch); err != nil {
		return err
	}

	top, err := findTop(scratch, topDir)
	if err != nil {
		return err
	}
	if err := prepare(top); err != nil {
		return err
	}
	if err := os.RemoveAll(dest); err != nil {
		return &recipe.FilesystemError{Op: "remove", Path: dest, Err: err}
	}
	if err := os.Rename(top, dest); err != nil {
		return &recipe.FilesystemError{Op: "rename", Path: dest, Err: err}
	}
	return nil
}

// findTop returns scratch/topDir, or the only directory in scratch when
// the archive uses a different top-level name.
func findTop(scratch, topDir string) (string, error) {
	want := filepath.Join(scratch, topDir)
	if info, err := os.Stat(want); err == nil && info.IsDir() {
		return want, nil
	}
	entries, err := os.ReadDir(scratch)
	if err != nil {
		return "", &recipe.FilesystemError{Op: "readdir", Path: scratch, Err: err}
	}
	if len(entries) == 1 && entries[0].IsDir() {
		log.Warn("unexpected archive layout", "want", topDir, "got", entries[0].Name())
		return filepath.Join(scratch, entries[0].Name()), nil
	}
	return "", fmt.Errorf("archive has no top-level directory %s", topDir)
}

func archiveName(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", &recipe.TransportError{URL: rawURL, Err: err}
	}
	name := path.Base(u.Path)
	if name == "." || name == "/" || name == "" {
		return "", &recipe.TransportError{URL: rawURL, Err: fmt.Errorf("no file name in url")}
	}
	return name, nil
}

func fileSHA256(name string) (string, error) {
	file, err := os.Open(name)
	if err != nil {
		return "", err
	}
	defer file.Close()
	h := sha256.New()
	if _, err := io.Copy(h, file); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
