package watcher

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/gofrs/flock"
)

const LockName = ".avpt.lock"

var ErrLocked = errors.New("another watcher holds the drop box lock")

// Lock takes the drop box lock so only one watcher processes dir. Release
// it with Unlock.
func Lock(dir string) (*flock.Flock, error) {
	lock := flock.New(filepath.Join(dir, LockName))
	ok, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("%s: %w", dir, ErrLocked)
	}
	return lock, nil
}
