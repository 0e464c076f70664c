// Copyright © 2025 Texelation contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
//
// File: cmd/texelgui-demo/main.go
// Summary: Demo client that builds a window from a design file.
// Usage: texelgui-demo [-socket path | -x11] [-design file.yaml]
// Notes: The built-in design has a counter button (id 21) updating label 22
//        and a quit button (id 32).

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/framegrace/texelgui/client"
	"github.com/framegrace/texelgui/config"
	"github.com/framegrace/texelgui/defaults"
	"github.com/framegrace/texelgui/design"
	"github.com/framegrace/texelgui/widget"
	"github.com/framegrace/texelgui/x11"
	"github.com/gdamore/tcell/v2"
)

const (
	appName       = "texelgui-demo"
	defaultSocket = "/tmp/texelgui.sock"

	countButtonID = 21
	countLabelID  = 22
	quitButtonID  = 32
)

type options struct {
	socket  string
	design  string
	x11     bool
	display string
	verbose bool
}

func main() {
	sys := config.System()
	appCfg := config.App(appName)

	var opts options
	flag.StringVar(&opts.socket, "socket", sys.GetString("display", "socket", ""), "Server socket path")
	flag.StringVar(&opts.design, "design", appCfg.GetString("demo", "design", ""), "Design file (defaults to the built-in demo)")
	flag.BoolVar(&opts.x11, "x11", false, "Open windows on an X server instead of texelgui-server")
	flag.StringVar(&opts.display, "display", "", "X display name (defaults to $DISPLAY)")
	flag.BoolVar(&opts.verbose, "verbose-logs", sys.GetBool("display", "verbose", false), "Enable verbose logging")
	flag.Parse()

	if opts.socket == "" {
		opts.socket = defaultSocket
	}
	client.SetVerboseLogging(opts.verbose)
	x11.SetVerboseLogging(opts.verbose)
	config.SetVerboseLogging(opts.verbose)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, opts, sys, appCfg); err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", appName, err)
		os.Exit(1)
	}
}

type display interface {
	widget.Display
	Close() error
}

func openDisplay(ctx context.Context, opts options) (display, error) {
	if opts.x11 {
		d, err := x11.Open(opts.display)
		if err != nil {
			return nil, err
		}
		return d, nil
	}
	dialCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	d, err := client.Dial(dialCtx, opts.socket, appName)
	if err != nil {
		return nil, err
	}
	return d, nil
}

func loadDocument(path string) (*design.Document, error) {
	if path == "" {
		data, err := defaults.DemoDesign()
		if err != nil {
			return nil, err
		}
		return design.Parse(data)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read design: %w", err)
	}
	doc, err := design.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return doc, nil
}

func run(ctx context.Context, opts options, sys, appCfg config.Config) error {
	doc, err := loadDocument(opts.design)
	if err != nil {
		return err
	}
	if doc.Window.Title == "" {
		doc.Window.Title = appCfg.GetString("demo", "title", "texelgui demo")
	}

	d, err := openDisplay(ctx, opts)
	if err != nil {
		return err
	}
	defer d.Close()

	app := widget.NewApp(d, nil)
	app.RequestTimeout = sys.GetMillis("display", "request_timeout_ms", widget.DefaultRequestTimeout)
	if cd, ok := d.(*client.Display); ok {
		if every := sys.GetMillis("display", "keepalive_ms", 10*time.Second); every > 0 {
			kctx, stopPings := context.WithCancel(ctx)
			defer stopPings()
			go keepAlive(kctx, cd, app, every)
		}
	}

	win, err := doc.Build(app)
	if err != nil {
		return err
	}
	win.SetTitleStyle(sys.GetStyle("theme", "title_style", tcell.StyleDefault.Reverse(true)))
	wire(app, win)

	if err := win.Show(ctx); err != nil {
		return fmt.Errorf("show window: %w", err)
	}
	log.Printf("%s: window %q shown", appName, win.Title())

	err = app.Run(ctx)
	closeCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if cerr := app.Close(closeCtx); cerr != nil {
		log.Printf("%s: %v", appName, cerr)
	}
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// keepAlive quits the app once the server stops answering pings.
func keepAlive(ctx context.Context, d *client.Display, app *widget.App, every time.Duration) {
	err := d.KeepAlive(ctx, every, every)
	if err == nil || errors.Is(err, context.Canceled) {
		return
	}
	log.Printf("%s: server stopped answering: %v", appName, err)
	app.Quit()
}

// wire attaches behaviour to the widgets the built-in design names. Custom
// designs without them still run.
func wire(app *widget.App, win *widget.Window) {
	count := 0
	label, _ := win.GetObject(countLabelID).(*widget.Label)
	if btn, ok := win.GetObject(countButtonID).(*widget.Button); ok && label != nil {
		btn.OnClick = func() {
			count++
			label.SetText(strconv.Itoa(count))
			if c := label.Parent(); c != nil && c.Box() != nil {
				c.Box().Layout()
			}
		}
	}
	if btn, ok := win.GetObject(quitButtonID).(*widget.Button); ok {
		btn.OnClick = app.Quit
	}
}
