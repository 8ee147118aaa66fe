package recipe

import (
	"errors"
	"fmt"
	"strings"
)

// IntegrityError reports a downloaded artifact whose SHA-256 digest does
// not match the pinned one.
type IntegrityError struct {
	URL  string
	Want string
	Got  string
}

func (e *IntegrityError) Error() string {
	return fmt.Sprintf("integrity check failed for %s: sha256 %s, want %s", e.URL, e.Got, e.Want)
}

// TransportError reports a failed download. Status is 0 when no HTTP
// response was received.
type TransportError struct {
	URL    string
	Status int
	Err    error
}

func (e *TransportError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("download %s: unexpected status %d", e.URL, e.Status)
	}
	return fmt.Sprintf("download %s: %v", e.URL, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// PatchError reports a strict substitution whose target text is absent,
// or a patch aimed at a file that must not be patched.
type PatchError struct {
	File     string
	Fragment string
	Reason   string
}

func (e *PatchError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("patch %s: %s", e.File, e.Reason)
	}
	return fmt.Sprintf("patch %s: fragment %q not found", e.File, e.Fragment)
}

// BuildError reports a non-zero exit of an external build tool. Output
// holds the tail of what the tool printed.
type BuildError struct {
	Tool     string
	Args     []string
	ExitCode int
	Output   string
	Err      error
}

func (e *BuildError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s: ", e.Tool, strings.Join(e.Args, " "))
	if e.ExitCode >= 0 {
		fmt.Fprintf(&b, "exit status %d", e.ExitCode)
	} else {
		fmt.Fprintf(&b, "%v", e.Err)
	}
	if out := strings.TrimSpace(e.Output); out != "" {
		b.WriteString("\n")
		b.WriteString(out)
	}
	return b.String()
}

func (e *BuildError) Unwrap() error { return e.Err }

// FilesystemError reports a copy, rename or permission failure.
type FilesystemError struct {
	Op   string
	Path string
	Err  error
}

func (e *FilesystemError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *FilesystemError) Unwrap() error { return e.Err }

// IsIntegrity reports whether err is or wraps an IntegrityError.
func IsIntegrity(err error) bool {
	var e *IntegrityError
	return errors.As(err, &e)
}

// IsTransport reports whether err is or wraps a TransportError.
func IsTransport(err error) bool {
	var e *TransportError
	return errors.As(err, &e)
}

// IsPatch reports whether err is or wraps a PatchError.
func IsPatch(err error) bool {
	var e *PatchError
	return errors.As(err, &e)
}

// IsBuild reports whether err is or wraps a BuildError.
func IsBuild(err error) bool {
	var e *BuildError
	return errors.As(err, &e)
}

// IsFilesystem reports whether err is or wraps a FilesystemError.
func IsFilesystem(err error) bool {
	var e *FilesystemError
	return errors.As(err, &e)
}
