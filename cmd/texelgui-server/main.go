// Copyright © 2025 Texelation contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
//
// File: cmd/texelgui-server/main.go
// Summary: Terminal display server hosting texelgui client windows.
// Usage: texelgui-server -socket /tmp/texelgui.sock
// Notes: The quit key (Ctrl-Q by default) stops the server. SIGHUP reloads
//        the theme.

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"image"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"runtime/pprof"
	"syscall"
	"time"

	"github.com/framegrace/texelgui/cmd/texelgui-server/lifecycle"
	"github.com/framegrace/texelgui/config"
	"github.com/framegrace/texelgui/server"
	"github.com/gdamore/tcell/v2"
	"golang.org/x/term"
)

const defaultSocket = "/tmp/texelgui.sock"

func main() {
	tcell.SetEncodingFallback(tcell.EncodingFallbackASCII)

	cfg := config.System()
	socketPath := flag.String("socket", cfg.GetString("display", "socket", ""), "Unix socket path")
	placementDB := flag.String("placements", cfg.GetString("server", "placement_db", ""), "Placement database path")
	cpuProfile := flag.String("pprof-cpu", "", "Write CPU profile to file")
	verboseLogs := flag.Bool("verbose-logs", cfg.GetBool("display", "verbose", false), "Enable verbose server logging")
	logFile := flag.String("log", "", "Write logs to file instead of stderr")
	flag.Parse()

	if *socketPath == "" {
		*socketPath = defaultSocket
	}
	if *logFile != "" {
		f, err := os.OpenFile(*logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to open log file: %v\n", err)
			os.Exit(1)
		}
		defer f.Close()
		log.SetOutput(f)
	}
	server.SetVerboseLogging(*verboseLogs)
	config.SetVerboseLogging(*verboseLogs)
	if err := config.Err(); err != nil {
		log.Printf("server: config: %v", err)
	}

	if !term.IsTerminal(int(os.Stdout.Fd())) {
		fmt.Fprintln(os.Stderr, "texelgui-server needs a terminal on stdout")
		os.Exit(1)
	}

	if *cpuProfile != "" {
		f, err := os.Create(*cpuProfile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to create CPU profile: %v\n", err)
			os.Exit(1)
		}
		if err := pprof.StartCPUProfile(f); err != nil {
			fmt.Fprintf(os.Stderr, "failed to start CPU profile: %v\n", err)
			os.Exit(1)
		}
		defer func() {
			pprof.StopCPUProfile()
			_ = f.Close()
		}()
	}

	if err := run(cfg, *socketPath, *placementDB); err != nil {
		fmt.Fprintf(os.Stderr, "server error: %v\n", err)
		os.Exit(1)
	}
	fmt.Println("Server stopped")
}

func run(cfg config.Config, socketPath, placementDB string) error {
	if welcome, err := lifecycle.Probe(context.Background(), socketPath, time.Second); err == nil {
		return fmt.Errorf("%s already serves %s", welcome.ServerName, socketPath)
	}
	pidFile := lifecycle.PIDFileFor(socketPath)
	if err := pidFile.Acquire(os.Getpid()); err != nil {
		return err
	}
	defer pidFile.Release(os.Getpid())

	var store *server.PlacementStore
	if cfg.GetBool("window", "remember_placement", true) {
		path, err := placementPath(placementDB)
		if err == nil {
			store, err = server.OpenPlacementStore(path)
		}
		if err != nil {
			log.Printf("server: placements disabled: %v", err)
		} else {
			defer store.Close()
		}
	}

	screen, err := tcell.NewScreen()
	if err != nil {
		return fmt.Errorf("create screen: %w", err)
	}
	driver := server.NewTcellScreenDriver(screen)
	if err := driver.Start(); err != nil {
		return fmt.Errorf("init screen: %w", err)
	}
	defer driver.Stop()

	comp := server.NewCompositor(driver, store)
	applyTheme(comp, cfg)

	manager := server.NewManager()
	manager.SetMaxQueue(cfg.GetInt("server", "max_queue", 1024))

	srv := server.NewServer(socketPath, manager, comp)
	srv.SetStatsObserver(server.NewSessionStatsLogger(log.Default()))
	if err := srv.Start(); err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	quitKey := cfg.GetKey("server", "quit_key", tcell.KeyCtrlQ)
	events := driver.Events(ctx, func(ev tcell.Event) bool {
		key, ok := ev.(*tcell.EventKey)
		return ok && key.Key() == quitKey
	})

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
	defer signal.Stop(sigCh)
	go func() {
		for {
			select {
			case sig := <-sigCh:
				if sig != syscall.SIGHUP {
					cancel()
					return
				}
				log.Println("server: reloading configuration")
				if err := config.ReloadSystem(); err != nil {
					log.Printf("server: reload: %v", err)
					continue
				}
				applyTheme(comp, config.System())
				comp.Render()
			case <-ctx.Done():
				return
			}
		}
	}()

	runErr := srv.Run(ctx, events)

	stopCtx, stopCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer stopCancel()
	if err := srv.Stop(stopCtx); err != nil {
		log.Printf("server: stop: %v", err)
	}
	c := srv.Counters()
	log.Printf("server: %d sessions, %d requests (%d rejected), %d draws, %d cells",
		c.Sessions, c.Requests, c.Rejected, c.Draws, c.Cells)
	if errors.Is(runErr, context.Canceled) {
		return nil
	}
	return runErr
}

func applyTheme(comp *server.Compositor, cfg config.Config) {
	comp.Apply(server.Settings{
		Background: tcell.StyleDefault.Background(cfg.GetColor("theme", "background", tcell.ColorDefault)),
		DefaultSize: image.Pt(
			cfg.GetInt("window", "default_width", 40),
			cfg.GetInt("window", "default_height", 12),
		),
		CloseKey: cfg.GetKey("server", "close_key", tcell.KeyCtrlW),
	})
}

func placementPath(override string) (string, error) {
	if override != "" {
		return override, nil
	}
	root, err := config.Root()
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return "", err
	}
	return filepath.Join(root, "placements.db"), nil
}
