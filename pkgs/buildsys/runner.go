package buildsys

import (
	"context"
	"errors"
	"io"
	"os/exec"
	"sync"

	elog "github.com/eluv-io/log-go"

	"github.com/goplus/theora-recipe/recipe"
)

var log = elog.Get("/theora-recipe/buildsys")

// OutputTail is how much tool output a BuildError keeps.
const OutputTail = 64 << 10

// Runner executes external build tools. Output always goes to an
// in-memory tail and, when set, to Stdout and Stderr as well.
type Runner struct {
	Stdout io.Writer
	Stderr io.Writer
}

// Run executes name with args in dir. env replaces the process
// environment when non-nil. A tool that cannot be started or exits
// non-zero yields a *recipe.BuildError.
func (r *Runner) Run(ctx context.Context, dir string, env []string, name string, args ...string) error {
	log.Debug("run", "tool", name, "args", args, "dir", dir)

	tail := &tailBuffer{max: OutputTail}
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir
	cmd.Env = env
	cmd.Stdout = tee(tail, r.Stdout)
	cmd.Stderr = tee(tail, r.Stderr)

	err := cmd.Run()
	if err == nil {
		return nil
	}
	berr := &recipe.BuildError{
		Tool:     name,
		Args:     args,
		ExitCode: -1,
		Output:   tail.String(),
		Err:      err,
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) && exitErr.ExitCode() >= 0 {
		berr.ExitCode = exitErr.ExitCode()
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		berr.ExitCode = -1
		berr.Err = ctxErr
	}
	log.Warn("tool failed", "tool", name, "exit", berr.ExitCode)
	return berr
}

func tee(tail *tailBuffer, w io.Writer) io.Writer {
	if w == nil {
		return tail
	}
	return io.MultiWriter(tail, w)
}

// tailBuffer keeps the last max bytes written to it. Stdout and stderr
// share one buffer, so writes are serialized.
type tailBuffer struct {
	mu  sync.Mutex
	buf []byte
	max int
}

func (t *tailBuffer) Write(p []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.buf = append(t.buf, p...)
	if over := len(t.buf) - t.max; over > 0 {
		t.buf = append(t.buf[:0], t.buf[over:]...)
	}
	return len(p), nil
}

func (t *tailBuffer) String() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return string(t.buf)
}
