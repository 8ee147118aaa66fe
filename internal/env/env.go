// Copyright (c) 2026 The XGo Authors (xgo.dev). All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package env

import (
	"os"
	"path/filepath"
)

// HomeEnv overrides the default workspace location.
const HomeEnv = "THEORA_RECIPE_HOME"

// WorkDir returns the default workspace root, creating it with 0700
// permissions. It is $THEORA_RECIPE_HOME when set, otherwise
// <UserCacheDir>/.theora-recipe.
func WorkDir() (string, error) {
	dir := os.Getenv(HomeEnv)
	if dir == "" {
		userCacheDir, err := os.UserCacheDir()
		if err != nil {
			return "", err
		}
		dir = filepath.Join(userCacheDir, ".theora-recipe")
	}
	if err := os.MkdirAll(dir, 0700); err != nil {
		return "", err
	}
	return dir, nil
}

// Workspace directory layout:
//
//	root/
//	  .lock                 # held for the whole invocation
//	  .cache.json           # packages built so far, by package ID
//	  downloads/            # verified archives
//	  src/<name>-<version>/ # extracted, patched sources
//	  build/<packageID>/    # out-of-tree build directory
//	  package/<packageID>/  # installed artifacts
type Workspace struct {
	Root string
}

// NewWorkspace returns the workspace rooted at dir.
func NewWorkspace(dir string) (*Workspace, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(abs, 0700); err != nil {
		return nil, err
	}
	return &Workspace{Root: abs}, nil
}

func (w *Workspace) LockFile() string { return filepath.Join(w.Root, ".lock") }

func (w *Workspace) CacheFile() string { return filepath.Join(w.Root, ".cache.json") }

func (w *Workspace) DownloadDir() string { return filepath.Join(w.Root, "downloads") }

func (w *Workspace) SourceRoot() string { return filepath.Join(w.Root, "src") }

// SourceDir returns the extracted source tree for dirName.
func (w *Workspace) SourceDir(dirName string) string {
	return filepath.Join(w.SourceRoot(), dirName)
}

// BuildDir returns the build directory for a package ID.
func (w *Workspace) BuildDir(packageID string) string {
	return filepath.Join(w.Root, "build", packageID)
}

// PackageDir returns the install directory for a package ID.
func (w *Workspace) PackageDir(packageID string) string {
	return filepath.Join(w.Root, "package", packageID)
}
