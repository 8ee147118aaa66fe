//go:build !windows

// Package xos provides atomic file writes. Readers never observe a
// partially written file.
package xos

import (
	"io"
	"os"

	"github.com/google/renameio/v2"
)

// WriteFile writes data to the named file atomically using rename.
func WriteFile(filename string, data []byte, perm os.FileMode) error {
	return renameio.WriteFile(filename, data, perm)
}

// PendingFile is a file that becomes visible under its final name only
// when CloseAtomically succeeds.
type PendingFile struct {
	t    *renameio.PendingFile
	path string
}

// NewPendingFile creates a pending file for filename. The temporary file
// lives in the same directory.
func NewPendingFile(filename string) (*PendingFile, error) {
	t, err := renameio.TempFile("", filename)
	if err != nil {
		return nil, err
	}
	return &PendingFile{t: t, path: filename}, nil
}

func (p *PendingFile) Write(data []byte) (int, error) {
	return p.t.Write(data)
}

// Chmod changes the mode the file will have once renamed.
func (p *PendingFile) Chmod(perm os.FileMode) error {
	return p.t.Chmod(perm)
}

// CloseAtomically renames the temporary file into place.
func (p *PendingFile) CloseAtomically() error {
	return p.t.CloseAtomicallyReplace()
}

// Cleanup discards the pending file. It is a no-op after CloseAtomically.
func (p *PendingFile) Cleanup() {
	p.t.Cleanup()
}

// Path returns the final path.
func (p *PendingFile) Path() string {
	return p.path
}

// CopyFile copies src to dst atomically with mode perm.
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
