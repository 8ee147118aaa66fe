// Copyright (c) 2026 The XGo Authors (xgo.dev). All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package lockedfile provides an inter-process mutex backed by an
// advisory lock on a file.
package lockedfile

import (
	"fmt"
	"os"
	"path/filepath"
)

// A Mutex provides mutual exclusion within and across processes by
// locking a well-known file. The zero Mutex is not valid.
type Mutex struct {
	path string
}

// MutexAt returns a new Mutex with file as the underlying file.
func MutexAt(path string) *Mutex {
	if path == "" {
		panic("lockedfile.MutexAt: path must be non-empty")
	}
	return &Mutex{path: path}
}

func (mu *Mutex) String() string {
	return fmt.Sprintf("lockedfile.Mutex(%s)", mu.path)
}

// Lock attempts to lock the Mutex, blocking until it is available. On
// success it returns a function that releases the lock.
func (mu *Mutex) Lock() (unlock func(), err error) {
	return mu.lock(true)
}

// TryLock is like Lock but fails with ErrLocked instead of waiting.
func (mu *Mutex) TryLock() (unlock func(), err error) {
	return mu.lock(false)
}

func (mu *Mutex) lock(wait bool) (func(), error) {
	if err := os.MkdirAll(filepath.Dir(mu.path), 0o755); err != nil {
		return nil, err
	}
	f, err := os.OpenFile(mu.path, os.O_RDWR|os.O_CREATE, 0o666)
	if err != nil {
		return nil, err
	}
	if err := lockFile(f, wait); err != nil {
		f.Close()
		return nil, &os.PathError{Op: "lock", Path: mu.path, Err: err}
	}
	return func() {
		unlockFile(f)
		f.Close()
	}, nil
}
