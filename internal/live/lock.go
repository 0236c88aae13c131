package live

import (
	"errors"
	"os"
	"strconv"

	"github.com/rotisserie/eris"
	"golang.org/x/sys/unix"
)

// ErrLocked means another daemon instance holds the lock file.
var ErrLocked = errors.New("live: another instance is running")

// Lock is an advisory flock on a file holding the owner's PID. The kernel
// releases it if the process dies, so a stale file never blocks a restart.
type Lock struct {
	path string
	file *os.File
}

// Acquire takes the exclusive lock or fails with ErrLocked.
func Acquire(path string) (*Lock, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return nil, eris.Wrapf(err, "live: open lock file %s", path)
	}

	if err := unix.Flock(int(f.Fd()), unix.LOCK_EX|unix.LOCK_NB); err != nil {
		f.Close()
		if errors.Is(err, unix.EWOULDBLOCK) {
			return nil, ErrLocked
		}
		return nil, eris.Wrapf(err, "live: flock %s", path)
	}

	if err := f.Truncate(0); err != nil {
		f.Close()
		return nil, eris.Wrap(err, "live: truncate lock file")
	}
	if _, err := f.WriteAt([]byte(strconv.Itoa(os.Getpid())), 0); err != nil {
		f.Close()
		return nil, eris.Wrap(err, "live: write pid")
	}
	return &Lock{path: path, file: f}, nil
}

// Release drops the lock and removes the file.
func (l *Lock) Release() error {
	if l == nil || l.file == nil {
		return nil
	}
	err := unix.Flock(int(l.file.Fd()), unix.LOCK_UN)
	if cerr := l.file.Close(); err == nil {
		err = cerr
	}
	os.Remove(l.path)
	l.file = nil
	return eris.Wrap(err, "live: release lock")
}
