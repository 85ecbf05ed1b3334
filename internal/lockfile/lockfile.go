// Package lockfile keeps two LineConcierge processes from sharing one state
// directory. The lock is an flock on a file in that directory, so the kernel
// drops it when the process exits, however it exits.
package lockfile

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"
)

// LockFileName is the name of the lock file created in the state directory
const LockFileName = "lineconcierge.lock"

// Lock represents an active directory lock
type Lock struct {
	file *os.File
	path string
}

// Info is what a lock holder writes into the lock file.
type Info struct {
	PID       int
	Host      string
	StartedAt time.Time
}

func (i Info) encode() string {
	return fmt.Sprintf("pid=%d\nhost=%s\nstarted_at=%s\n", i.PID, i.Host, i.StartedAt.UTC().Format(time.RFC3339))
}

// parseInfo reads the key=value lines written by encode. Unknown keys and
// malformed lines are ignored.
func parseInfo(content string) Info {
	var info Info
	for _, line := range strings.Split(content, "\n") {
		key, value, ok := strings.Cut(strings.TrimSpace(line), "=")
		if !ok {
			continue
		}
		switch key {
		case "pid":
			info.PID, _ = strconv.Atoi(value)
		case "host":
			info.Host = value
		case "started_at":
			info.StartedAt, _ = time.Parse(time.RFC3339, value)
		}
	}
	return info
}

// AcquireLock takes the lock for stateDir, creating the directory if needed.
// It fails with a *LockError when another process holds it.
func AcquireLock(stateDir string) (*Lock, error) {
	lockPath := filepath.Join(stateDir, LockFileName)
	if err := os.MkdirAll(stateDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create state directory %s: %w", stateDir, err)
	}

	// O_TRUNC would wipe the holder's info before we know we own the lock.
	file, err := os.OpenFile(lockPath, os.O_CREATE|os.O_RDWR, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open lock file %s: %w", lockPath, err)
	}

	if err := syscall.Flock(int(file.Fd()), syscall.LOCK_EX|syscall.LOCK_NB); err != nil {
		file.Close()
		holder := readHolder(lockPath)
		slog.Error("lockfile.AcquireLock: state directory is locked by another instance",
			"lock_path", lockPath, "holder_pid", holder.PID, "holder_host", holder.Host)
		return nil, &LockError{LockPath: lockPath, Holder: holder, Cause: err}
	}

	host, _ := os.Hostname()
	info := Info{PID: os.Getpid(), Host: host, StartedAt: time.Now()}
	if err := file.Truncate(0); err == nil {
		_, err = file.WriteAt([]byte(info.encode()), 0)
		if err != nil {
			slog.Warn("lockfile.AcquireLock: failed to write holder info", "error", err, "lock_path", lockPath)
		}
	}
	if err := file.Sync(); err != nil {
		slog.Warn("lockfile.AcquireLock: failed to sync lock file", "error", err, "lock_path", lockPath)
	}

	slog.Info("lockfile.AcquireLock: acquired state directory lock", "lock_path", lockPath, "pid", info.PID)
	return &Lock{file: file, path: lockPath}, nil
}

// Path returns the lock file path.
func (l *Lock) Path() string { return l.path }

// Release drops the lock and removes the lock file. Safe to call more than once.
func (l *Lock) Release() error {
	if l == nil || l.file == nil {
		return nil
	}
	// Remove before unlocking so a new holder never loses its file to us.
	if err := os.Remove(l.path); err != nil {
		slog.Warn("lockfile.Release: failed to remove lock file", "error", err, "lock_path", l.path)
	}
	if err := syscall.Flock(int(l.file.Fd()), syscall.LOCK_UN); err != nil {
		slog.Error("lockfile.Release: failed to release flock", "error", err, "lock_path", l.path)
	}
	err := l.file.Close()
	l.file = nil
	slog.Info("lockfile.Release: released state directory lock", "lock_path", l.path)
	return err
}

// LockError is returned when another process holds the lock.
type LockError struct {
	LockPath string
	Holder   Info
	Cause    error
}

func (e *LockError) Error() string {
	msg := fmt.Sprintf("another LineConcierge instance is using this state directory (lock file %s)", e.LockPath)
	if e.Holder.PID > 0 {
		state := "running"
		if !isProcessRunning(e.Holder.PID) {
			state = "not running, the lock may be stale"
		}
		msg += fmt.Sprintf("; held by pid %d on %q since %s (%s)",
			e.Holder.PID, e.Holder.Host, e.Holder.StartedAt.Format(time.RFC3339), state)
	}
	return msg
}

func (e *LockError) Unwrap() error {
	return e.Cause
}

func readHolder(lockPath string) Info {
	data, err := os.ReadFile(lockPath)
	if err != nil {
		return Info{}
	}
	return parseInfo(string(data))
}

// isProcessRunning sends signal 0, which only checks that the process exists.
func isProcessRunning(pid int) bool {
	process, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	return process.Signal(syscall.Signal(0)) == nil
}
