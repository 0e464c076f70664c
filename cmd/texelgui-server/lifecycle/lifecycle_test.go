// Copyright © 2025 Texelation contributors
// SPDX-License-Identifier: AGPL-3.0-or-later

package lifecycle

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/framegrace/texelgui/server"
)

func TestPIDFileAcquireAndRelease(t *testing.T) {
	p := PIDFileFor(filepath.Join(t.TempDir(), "run", "gui.sock"))
	pid := os.Getpid()
	if err := p.Acquire(pid); err != nil {
		t.Fatalf("acquire: %v", err)
	}
	if got, err := p.Read(); err != nil || got != pid {
		t.Fatalf("read = %d, %v", got, err)
	}
	if !p.Running() {
		t.Fatalf("own process not reported running")
	}
	if err := p.Acquire(pid + 1); !errors.Is(err, ErrRunning) {
		t.Fatalf("second acquire = %v, want ErrRunning", err)
	}
	if err := p.Release(pid + 1); err != nil {
		t.Fatalf("foreign release: %v", err)
	}
	if _, err := os.Stat(p.Path()); err != nil {
		t.Fatalf("foreign release removed the file")
	}
	if err := p.Release(pid); err != nil {
		t.Fatalf("release: %v", err)
	}
	if _, err := os.Stat(p.Path()); !os.IsNotExist(err) {
		t.Fatalf("PID file still present: %v", err)
	}
}

func TestPIDFileReplacesGarbage(t *testing.T) {
	p := PIDFileFor(filepath.Join(t.TempDir(), "gui.sock"))
	if err := os.WriteFile(p.Path(), []byte("not a pid\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := p.Read(); err == nil {
		t.Fatalf("garbage PID accepted")
	}
	if err := p.Acquire(os.Getpid()); err != nil {
		t.Fatalf("acquire over garbage: %v", err)
	}
}

func TestProbe(t *testing.T) {
	sock := filepath.Join(t.TempDir(), "gui.sock")
	ctx := context.Background()
	if _, err := Probe(ctx, sock, 200*time.Millisecond); err == nil {
		t.Fatalf("probe succeeded without a server")
	}

	srv := server.NewServer(sock, nil, nil)
	if err := srv.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer func() {
		stopCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		defer cancel()
		srv.Stop(stopCtx)
	}()

	welcome, err := Probe(ctx, sock, time.Second)
	if err != nil {
		t.Fatalf("probe: %v", err)
	}
	if welcome.ServerName != server.ServerName {
		t.Fatalf("server name = %q", welcome.ServerName)
	}
	if n := srv.Manager().ActiveSessions(); n != 0 {
		t.Fatalf("probe left %d sessions", n)
	}
}
