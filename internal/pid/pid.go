package pid

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"

	"codeberg.org/mutker/envsim/internal/errors"
)

const (
	pidFile = "envsimd.pid"
)

// File guards against two daemons sharing one database.
type File struct {
	path string
}

// New returns a PID file in dir, or in the temp directory when dir is empty.
func New(dir string) *File {
	if dir == "" {
		dir = os.TempDir()
	}
	return &File{path: filepath.Join(dir, pidFile)}
}

// Path returns the PID file location.
func (f *File) Path() string {
	return f.path
}

// Write writes the current process ID to the PID file. It fails with
// ErrAlreadyRunning when the file names another live process.
func (f *File) Write() error {
	errFactory := errors.New()
	self := os.Getpid()

	if bytes, err := os.ReadFile(f.path); err == nil {
		// PID file exists, check if the process is running
		if pid, err := strconv.Atoi(strings.TrimSpace(string(bytes))); err == nil && pid != self && alive(pid) {
			return errFactory.WithData(errors.ErrAlreadyRunning, pid)
		}
	} else if !os.IsNotExist(err) {
		return errFactory.Wrap(errors.ErrInternal, err)
	}

	if err := os.WriteFile(f.path, []byte(strconv.Itoa(self)), 0o600); err != nil {
		return errFactory.Wrap(errors.ErrInternal, err)
	}

	return nil
}

// Remove removes the PID file.
func (f *File) Remove() error {
	if err := os.Remove(f.path); err != nil && !os.IsNotExist(err) {
		return errors.New().Wrap(errors.ErrInternal, err)
	}

	return nil
}

func alive(pid int) bool {
	if pid <= 0 {
		return false
	}
	process, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	return process.Signal(syscall.Signal(0)) == nil
}
