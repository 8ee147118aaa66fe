package fetch

import (
	"archive/tar"
	"archive/zip"
	"compress/bzip2"
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/goplus/theora-recipe/recipe"
)

// Extract unpacks archive into dir. The format is chosen by file name:
// .zip, .tar.gz/.tgz or .tar.bz2/.tbz2. Entries that would land outside
// dir are rejected.
func Extract(archive, dir string) error {
	name := strings.ToLower(filepath.Base(archive))
	switch {
	case strings.HasSuffix(name, ".zip"):
		return extractZip(archive, dir)
	case strings.HasSuffix(name, ".tar.gz"), strings.HasSuffix(name, ".tgz"):
		return extractTar(archive, dir, func(r io.Reader) (io.Reader, error) {
			return gzip.NewReader(r)
		})
	case strings.HasSuffix(name, ".tar.bz2"), strings.HasSuffix(name, ".tbz2"):
		return extractTar(archive, dir, func(r io.Reader) (io.Reader, error) {
			return bzip2.NewReader(r), nil
		})
	}
	return fmt.Errorf("unsupported archive format: %s", filepath.Base(archive))
}

// target returns the destination of entry under dir. No existing
// component of the destination may be a symlink, so nothing is ever
// written through a link placed by an earlier entry.
func target(dir, entry string) (string, error) {
	rel := filepath.FromSlash(strings.TrimPrefix(entry, "./"))
	if rel == "" || !filepath.IsLocal(rel) {
		return "", fmt.Errorf("archive entry %q escapes destination", entry)
	}
	cur := dir
	for _, elem := range strings.Split(filepath.Clean(rel), string(filepath.Separator)) {
		cur = filepath.Join(cur, elem)
		info, err := os.Lstat(cur)
		if os.IsNotExist(err) {
			break
		}
		if err != nil {
			return "", &recipe.FilesystemError{Op: "lstat", Path: cur, Err: err}
		}
		if info.Mode()&os.ModeSymlink != 0 {
			return "", fmt.Errorf("archive entry %q passes through symlink %s", entry, cur)
		}
	}
	return filepath.Join(dir, rel), nil
}

func extractZip(archive, dir string) error {
	zr, err := zip.OpenReader(archive)
	if err != nil {
		return fmt.Errorf("open zip %s: %w", archive, err)
	}
	defer zr.Close()

	for _, f := range zr.File {
		dst, err := target(dir, f.Name)
		if err != nil {
			return err
		}
		if f.FileInfo().IsDir() {
			if err := os.MkdirAll(dst, 0o755); err != nil {
				return &recipe.FilesystemError{Op: "mkdir", Path: dst, Err: err}
			}
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return fmt.Errorf("read %s: %w", f.Name, err)
		}
		err = writeEntry(dst, rc, f.Mode().Perm())
		rc.Close()
		if err != nil {
			return err
		}
	}
	return nil
}

func extractTar(archive, dir string, decompress func(io.Reader) (io.Reader, error)) error {
	file, err := os.Open(archive)
	if err != nil {
		return &recipe.FilesystemError{Op: "open", Path: archive, Err: err}
	}
	defer file.Close()

	r, err := decompress(file)
	if err != nil {
		return fmt.Errorf("decompress %s: %w", archive, err)
	}
	tr := tar.NewReader(r)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("read %s: %w", archive, err)
		}
		dst, err := target(dir, hdr.Name)
		if err != nil {
			return err
		}
		switch hdr.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(dst, 0o755); err != nil {
				return &recipe.FilesystemError{Op: "mkdir", Path: dst, Err: err}
			}
		case tar.TypeReg:
			if err := writeEntry(dst, tr, hdr.FileInfo().Mode().Perm()); err != nil {
				return err
			}
		case tar.TypeSymlink:
			linkname := filepath.FromSlash(hdr.Linkname)
			if linkname == "" {
				return fmt.Errorf("archive symlink %q has no target", hdr.Name)
			}
			if filepath.IsAbs(linkname) || strings.HasPrefix(hdr.Linkname, "/") {
				return fmt.Errorf("archive symlink %q has absolute target %q", hdr.Name, hdr.Linkname)
			}
			link := filepath.Join(filepath.Dir(dst), linkname)
			if rel, err := filepath.Rel(dir, link); err != nil || !filepath.IsLocal(rel) {
				return fmt.Errorf("archive symlink %q escapes destination", hdr.Name)
			}
			if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
				return &recipe.FilesystemError{Op: "mkdir", Path: dst, Err: err}
			}
			if err := os.Symlink(hdr.Linkname, dst); err != nil {
				return &recipe.FilesystemError{Op: "symlink", Path: dst, Err: err}
			}
		default:
			log.Debug("skipping archive entry", "name", hdr.Name, "type", hdr.Typeflag)
		}
	}
}

func writeEntry(dst string, r io.Reader, perm os.FileMode) error {
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return &recipe.FilesystemError{Op: "mkdir", Path: filepath.Dir(dst), Err: err}
	}
	if perm&0o600 != 0o600 {
		perm |= 0o600
	}
	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, perm)
	if err != nil {
		return &recipe.FilesystemError{Op: "create", Path: dst, Err: err}
	}
	if _, err := io.Copy(out, r); err != nil {
		out.Close()
		return &recipe.FilesystemError{Op: "write", Path: dst, Err: err}
	}
	if err := out.Close(); err != nil {
		return &recipe.FilesystemError{Op: "write", Path: dst, Err: err}
	}
	return nil
}
