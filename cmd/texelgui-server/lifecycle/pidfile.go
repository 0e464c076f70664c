// Copyright © 2025 Texelation contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
//
// File: cmd/texelgui-server/lifecycle/pidfile.go
// Summary: PID file guarding a socket against a second server.

package lifecycle

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
)

// ErrRunning reports a live process already holding the PID file.
var ErrRunning = errors.New("lifecycle: server already running")

// PIDFile records the server process next to its socket.
type PIDFile struct {
	path string
}

// PIDFileFor returns the PID file used for socketPath.
func PIDFileFor(socketPath string) *PIDFile {
	return &PIDFile{path: socketPath + ".pid"}
}

func (p *PIDFile) Path() string { return p.path }

// Read returns the recorded PID.
func (p *PIDFile) Read() (int, error) {
	data, err := os.ReadFile(p.path)
	if err != nil {
		return 0, err
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0, fmt.Errorf("lifecycle: invalid PID in %s: %w", p.path, err)
	}
	if pid <= 0 {
		return 0, fmt.Errorf("lifecycle: invalid PID %d in %s", pid, p.path)
	}
	return pid, nil
}

// Running reports whether the recorded process is alive.
func (p *PIDFile) Running() bool {
	pid, err := p.Read()
	if err != nil {
		return false
	}
	proc, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	return proc.Signal(syscall.Signal(0)) == nil
}

// Acquire writes pid unless another live process holds the file. Stale
// files are replaced.
func (p *PIDFile) Acquire(pid int) error {
	if held, err := p.Read(); err == nil && held != pid && p.Running() {
		return fmt.Errorf("%w (pid %d)", ErrRunning, held)
	}
	if err := os.MkdirAll(filepath.Dir(p.path), 0o755); err != nil {
		return fmt.Errorf("lifecycle: create PID directory: %w", err)
	}
	if err := os.WriteFile(p.path, []byte(strconv.Itoa(pid)+"\n"), 0o600); err != nil {
		return fmt.Errorf("lifecycle: write PID file: %w", err)
	}
	return nil
}

// Release removes the file if it still names pid.
func (p *PIDFile) Release(pid int) error {
	if held, err := p.Read(); err != nil || held != pid {
		return nil
	}
	if err := os.Remove(p.path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}
