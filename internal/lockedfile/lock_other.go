//go:build !unix && !windows

package lockedfile

import (
	"errors"
	"os"
)

// ErrLocked is returned by TryLock when another holder owns the lock.
var ErrLocked = errors.New("file is locked by another process")

var errUnsupported = errors.New("file locking is not supported on this platform")

func lockFile(f *os.File, wait bool) error { return errUnsupported }

func unlockFile(f *os.File) error { return errUnsupported }
