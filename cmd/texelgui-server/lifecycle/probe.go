// Copyright © 2025 Texelation contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
//
// File: cmd/texelgui-server/lifecycle/probe.go
// Summary: Checks whether a display server answers on a socket.
// Notes: Only the Hello/Welcome half of the handshake is run, so no session
//        is created on the probed server.

package lifecycle

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/framegrace/texelgui/protocol"
)

// Probe dials socketPath and returns the server's Welcome.
func Probe(ctx context.Context, socketPath string, timeout time.Duration) (protocol.Welcome, error) {
	var welcome protocol.Welcome
	deadline := time.Now().Add(timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}

	dialer := net.Dialer{Deadline: deadline}
	conn, err := dialer.DialContext(ctx, "unix", socketPath)
	if err != nil {
		return welcome, fmt.Errorf("lifecycle: connect: %w", err)
	}
	defer conn.Close()
	if err := conn.SetDeadline(deadline); err != nil {
		return welcome, fmt.Errorf("lifecycle: set deadline: %w", err)
	}

	hello, err := protocol.EncodeHello(protocol.Hello{ClientName: "probe"})
	if err != nil {
		return welcome, err
	}
	hdr := protocol.Header{Version: protocol.Version, Type: protocol.MsgHello, Flags: protocol.FlagChecksum}
	if err := protocol.WriteMessage(conn, hdr, hello); err != nil {
		return welcome, fmt.Errorf("lifecycle: send hello: %w", err)
	}
	resp, payload, err := protocol.ReadMessage(conn)
	if err != nil {
		return welcome, fmt.Errorf("lifecycle: read welcome: %w", err)
	}
	if resp.Type != protocol.MsgWelcome {
		return welcome, fmt.Errorf("lifecycle: unexpected response %v", resp.Type)
	}
	return protocol.DecodeWelcome(payload)
}
