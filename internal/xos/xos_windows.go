//go:build windows

// Package xos provides atomic file writes.
// On Windows the target is removed before the rename, so the replacement
// is not atomic with respect to concurrent readers.
package xos

import (
	"io"
	"os"
	"path/filepath"
)

// WriteFile writes data to a temp file in the target directory and renames it.
func WriteFile(filename string, data []byte, perm os.FileMode) error {
	p, err := NewPendingFile(filename)
	if err != nil {
		return err
	}
	defer p.Cleanup()

	if _, err := p.Write(data); err != nil {
		return err
	}
	if err := p.Chmod(perm); err != nil {
		return err
	}
	return p.CloseAtomically()
}

// PendingFile is a file that becomes visible under its final name only
// when CloseAtomically succeeds.
type PendingFile struct {
	tempFile *os.File
	tempName string
	path     string
	perm     os.FileMode
	done     bool
}

// NewPendingFile creates a pending file for filename.
func NewPendingFile(filename string) (*PendingFile, error) {
	tempFile, err := os.CreateTemp(filepath.Dir(filename), ".tmp-*")
	if err != nil {
		return nil, err
	}
	return &PendingFile{
		tempFile: tempFile,
		tempName: tempFile.Name(),
		path:     filename,
		perm:     0o644,
	}, nil
}

func (p *PendingFile) Write(data []byte) (int, error) {
	return p.tempFile.Write(data)
}

// Chmod changes the mode the file will have once renamed.
func (p *PendingFile) Chmod(perm os.FileMode) error {
	p.perm = perm
	return nil
}

// CloseAtomically renames the temporary file into place.
func (p *PendingFile) CloseAtomically() error {
	if err := p.tempFile.Sync(); err != nil {
		return err
	}
	if err := p.tempFile.Close(); err != nil {
		return err
	}
	if err := os.Chmod(p.tempName, p.perm); err != nil {
		return err
	}
	if _, err := os.Stat(p.path); err == nil {
		if err := os.Remove(p.path); err != nil {
			return err
		}
	}
	if err := os.Rename(p.tempName, p.path); err != nil {
		return err
	}
	p.done = true
	return nil
}

// Cleanup discards the pending file. It is a no-op after CloseAtomically.
func (p *PendingFile) Cleanup() {
	if p.done {
		return
	}
	p.tempFile.Close()
	os.Remove(p.tempName)
}

// Path returns the final path.
func (p *PendingFile) Path() string {
	return p.path
}

// CopyFile copies src to dst with mode perm.
func CopyFile(src, dst string, perm os.FileMode) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	p, err := NewPendingFile(dst)
	if err != nil {
		return err
	}
	defer p.Cleanup()

	if _, err := io.Copy(p, in); err != nil {
		return err
	}
	if err := p.Chmod(perm); err != nil {
		return err
	}
	return p.CloseAtomically()
}
