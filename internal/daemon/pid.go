package daemon

import (
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"syscall"
	"time"
)

var (
	// ErrPIDFileNotFound is returned when the PID file does not exist.
	ErrPIDFileNotFound = errors.New("PID file not found")
	// ErrInvalidPIDFile is returned when the PID file contains invalid data.
	ErrInvalidPIDFile = errors.New("invalid PID file")
)

// dialTimeout bounds the liveness probe of the daemon's listener.
const dialTimeout = 500 * time.Millisecond

// ProcessStatus is what the PID file and listener say about the daemon.
type ProcessStatus struct {
	Running   bool
	PID       int
	Listening bool
}

// WritePIDFile writes the current process ID to path.
func WritePIDFile(path string) error {
	data := []byte(strconv.Itoa(os.Getpid()))
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write PID file: %w", err)
	}
	return nil
}

// ReadPIDFile reads the process ID stored at path.
// Returns ErrPIDFileNotFound if the file doesn't exist.
// Returns ErrInvalidPIDFile if the file contains invalid data.
func ReadPIDFile(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, ErrPIDFileNotFound
		}
		return 0, fmt.Errorf("read PID file: %w", err)
	}

	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrInvalidPIDFile, err)
	}
	if pid <= 0 {
		return 0, fmt.Errorf("%w: invalid PID %d", ErrInvalidPIDFile, pid)
	}
	return pid, nil
}

// RemovePIDFile removes the PID file. A missing file is not an error.
func RemovePIDFile(path string) error {
	err := os.Remove(path)
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove PID file: %w", err)
	}
	return nil
}

// IsProcessRunning checks if a process with the given PID is running by
// sending it signal 0.
func IsProcessRunning(pid int) (bool, error) {
	if pid <= 0 {
		return false, fmt.Errorf("invalid PID: %d", pid)
	}

	process, err := os.FindProcess(pid)
	if err != nil {
		return false, fmt.Errorf("find process: %w", err)
	}

	err = process.Signal(syscall.Signal(0))
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, syscall.ESRCH), errors.Is(err, os.ErrProcessDone):
		return false, nil
	case errors.Is(err, syscall.EPERM):
		// exists, owned by someone else
		return true, nil
	}
	return false, fmt.Errorf("check process: %w", err)
}

// IsListening reports whether something accepts connections at the daemon
// address.
func IsListening(network, address string) bool {
	conn, err := net.DialTimeout(network, address, dialTimeout)
	if err != nil {
		return false
	}
	conn.Close()
	return true
}

// GetProcessStatus combines the PID file with a probe of the listener.
func GetProcessStatus(pidPath, network, address string) (*ProcessStatus, error) {
	status := &ProcessStatus{
		Listening: IsListening(network, address),
	}

	pid, err := ReadPIDFile(pidPath)
	if err != nil {
		if errors.Is(err, ErrPIDFileNotFound) {
			return status, nil
		}
		return status, fmt.Errorf("read PID: %w", err)
	}
	status.PID = pid

	running, err := IsProcessRunning(pid)
	if err != nil {
		return status, fmt.Errorf("check process %d: %w", pid, err)
	}
	status.Running = running

	if status.Listening && !status.Running {
		return status, fmt.Errorf("%s %s is answering but process %d is not running", network, address, pid)
	}
	return status, nil
}

// StopProcess sends SIGTERM to pid and waits up to timeout for it to exit,
// then kills it. It reports whether the kill was needed.
func StopProcess(pid int, timeout time.Duration) (bool, error) {
	process, err := os.FindProcess(pid)
	if err != nil {
		return false, fmt.Errorf("find process: %w", err)
	}
	if err := process.Signal(syscall.SIGTERM); err != nil {
		if errors.Is(err, os.ErrProcessDone) {
			return false, nil
		}
		return false, fmt.Errorf("send SIGTERM: %w", err)
	}

	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		time.Sleep(100 * time.Millisecond)
		running, err := IsProcessRunning(pid)
		if err != nil {
			return false, err
		}
		if !running {
			return false, nil
		}
	}

	if err := process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
		return true, fmt.Errorf("kill daemon: %w", err)
	}
	return true, nil
}
