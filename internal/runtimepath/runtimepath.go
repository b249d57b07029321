// Package runtimepath locates the per-user runtime files of the daemon.
package runtimepath

import (
	"fmt"
	"os"
	"path/filepath"
)

const (
	socketName = "outputctl.sock"
	pidName    = "outputctl.pid"
	tuiLogName = "outputctl-tui.log"
)

// Dir returns the runtime directory. Priority:
// 1) XDG_RUNTIME_DIR (if set)
// 2) /run/user/<uid> (if present)
// 3) /tmp/outputctl-<uid> (created)
func Dir() (string, error) {
	if runtimeDir := os.Getenv("XDG_RUNTIME_DIR"); runtimeDir != "" {
		return runtimeDir, nil
	}

	uid := os.Getuid()
	runUserDir := fmt.Sprintf("/run/user/%d", uid)
	if info, err := os.Stat(runUserDir); err == nil && info.IsDir() {
		return runUserDir, nil
	}

	tmpDir := fmt.Sprintf("/tmp/outputctl-%d", uid)
	if err := os.MkdirAll(tmpDir, 0700); err != nil {
		return "", fmt.Errorf("failed to create runtime dir: %w", err)
	}
	return tmpDir, nil
}

// SocketPath returns the daemon IPC socket path.
func SocketPath() (string, error) {
	return inDir(socketName)
}

// PidPath returns the file the daemon records its process ID in.
func PidPath() (string, error) {
	return inDir(pidName)
}

// TUILogPath returns the log file used while the TUI owns the terminal.
func TUILogPath() (string, error) {
	return inDir(tuiLogName)
}

func inDir(name string) (string, error) {
	runtimeDir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(runtimeDir, name), nil
}
