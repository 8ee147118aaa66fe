package recipe

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"testing"
)

func TestErrorClassification(t *testing.T) {
	integrity := &IntegrityError{URL: "http://x", Want: "aa", Got: "bb"}
	transport := &TransportError{URL: "http://x", Status: 404}
	patch := &PatchError{File: "a.c", Fragment: "foo"}
	build := &BuildError{Tool: "make", Args: []string{"install"}, ExitCode: 2, Output: "boom\n"}
	filesystem := &FilesystemError{Op: "copy", Path: "/x", Err: fs.ErrPermission}

	checks := []struct {
		err  error
		is   func(error) bool
		name string
	}{
		{integrity, IsIntegrity, "integrity"},
		{transport, IsTransport, "transport"},
		{patch, IsPatch, "patch"},
		{build, IsBuild, "build"},
		{filesystem, IsFilesystem, "filesystem"},
	}
	for _, c := range checks {
		wrapped := fmt.Errorf("stage: %w", c.err)
		if !c.is(wrapped) {
			t.Errorf("%s: classifier does not see wrapped error", c.name)
		}
		for _, other := range checks {
			if other.name != c.name && other.is(c.err) {
				t.Errorf("%s misclassified as %s", c.name, other.name)
			}
		}
	}

	if !errors.Is(filesystem, fs.ErrPermission) {
		t.Error("FilesystemError does not unwrap")
	}
}

func TestErrorMessages(t *testing.T) {
	tests := []struct {
		err  error
		want []string
	}{
		{&IntegrityError{URL: "http://x/a.zip", Want: "aa", Got: "bb"}, []string{"http://x/a.zip", "bb", "want aa"}},
		{&TransportError{URL: "http://x", Status: 500}, []string{"status 500"}},
		{&TransportError{URL: "http://x", Err: errors.New("refused")}, []string{"refused"}},
		{&PatchError{File: "a.c", Fragment: "foo"}, []string{"a.c", `"foo" not found`}},
		{&PatchError{File: "LICENSE", Reason: "license files are never patched"}, []string{"never patched"}},
		{&BuildError{Tool: "make", Args: []string{"all"}, ExitCode: 2, Output: "error: x\n"}, []string{"make all", "exit status 2", "error: x"}},
		{&BuildError{Tool: "msbuild", ExitCode: -1, Err: errors.New("not found")}, []string{"not found"}},
	}
	for _, tt := range tests {
		msg := tt.err.Error()
		for _, w := range tt.want {
			if !strings.Contains(msg, w) {
				t.Errorf("%q does not contain %q", msg, w)
			}
		}
	}
}
