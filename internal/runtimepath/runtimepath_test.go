package runtimepath

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"
)

func TestDir_UsesXDGRuntimeDirWhenSet(t *testing.T) {
	td := t.TempDir()
	t.Setenv("XDG_RUNTIME_DIR", td)

	got, err := Dir()
	if err != nil {
		t.Fatalf("Dir() error: %v", err)
	}
	if got != td {
		t.Fatalf("Dir() = %q, want %q", got, td)
	}
}

func TestDir_FallbacksWhenXDGRuntimeDirMissing(t *testing.T) {
	t.Setenv("XDG_RUNTIME_DIR", "")

	got, err := Dir()
	if err != nil {
		t.Fatalf("Dir() error: %v", err)
	}
	wantRun := fmt.Sprintf("/run/user/%d", os.Getuid())
	wantTmp := fmt.Sprintf("/tmp/outputctl-%d", os.Getuid())
	if got != wantRun && got != wantTmp {
		t.Fatalf("Dir() = %q, want %q or %q", got, wantRun, wantTmp)
	}
}

func TestSocketAndPidPath(t *testing.T) {
	td := t.TempDir()
	t.Setenv("XDG_RUNTIME_DIR", td)

	socket, err := SocketPath()
	if err != nil {
		t.Fatalf("SocketPath() error: %v", err)
	}
	if socket != filepath.Join(td, "outputctl.sock") {
		t.Fatalf("SocketPath() = %q", socket)
	}

	pid, err := PidPath()
	if err != nil {
		t.Fatalf("PidPath() error: %v", err)
	}
	if pid != filepath.Join(td, "outputctl.pid") {
		t.Fatalf("PidPath() = %q", pid)
	}

	logPath, err := TUILogPath()
	if err != nil {
		t.Fatalf("TUILogPath() error: %v", err)
	}
	if logPath != filepath.Join(td, "outputctl-tui.log") {
		t.Fatalf("TUILogPath() = %q", logPath)
	}
}
