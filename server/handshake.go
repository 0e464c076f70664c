// Copyright © 2025 Texelation contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
//
// File: server/handshake.go
// Summary: Hello/Welcome then ConnectRequest/ConnectAccept negotiation.
// Notes: A zero session id in the connect request attaches a new session;
//        any other id resumes it.

package server

import (
	"errors"
	"fmt"
	"image"
	"io"

	"github.com/framegrace/texelgui/protocol"
)

var errUnexpectedMessage = errors.New("server: unexpected message type")

// ServerName is announced in Welcome frames.
const ServerName = "texelgui-server"

// expect reads one frame and checks its type.
func expect(r io.Reader, want protocol.MessageType) ([]byte, error) {
	hdr, payload, err := protocol.ReadMessage(r)
	if err != nil {
		return nil, err
	}
	if hdr.Type != want {
		return nil, fmt.Errorf("%w: got %v, want %v", errUnexpectedMessage, hdr.Type, want)
	}
	return payload, nil
}

func sendFrame(w io.Writer, typ protocol.MessageType, session [16]byte, payload []byte, encErr error) error {
	if encErr != nil {
		return encErr
	}
	return protocol.WriteMessage(w, protocol.Header{
		Version:   protocol.Version,
		Type:      typ,
		Flags:     protocol.FlagChecksum,
		SessionID: session,
	}, payload)
}

// handleHandshake negotiates with a new connection and attaches its session.
func handleHandshake(rw io.ReadWriter, mgr *Manager, screen image.Point) (*Session, error) {
	payload, err := expect(rw, protocol.MsgHello)
	if err != nil {
		return nil, err
	}
	hello, err := protocol.DecodeHello(payload)
	if err != nil {
		return nil, fmt.Errorf("server: hello: %w", err)
	}

	welcome, encErr := protocol.EncodeWelcome(protocol.Welcome{
		ServerName: ServerName,
		Width:      uint16(screen.X),
		Height:     uint16(screen.Y),
	})
	if err := sendFrame(rw, protocol.MsgWelcome, [16]byte{}, welcome, encErr); err != nil {
		return nil, err
	}

	if payload, err = expect(rw, protocol.MsgConnectRequest); err != nil {
		return nil, err
	}
	req, err := protocol.DecodeConnectRequest(payload)
	if err != nil {
		return nil, fmt.Errorf("server: connect request: %w", err)
	}
	session, err := mgr.Attach(req.SessionID, hello.ClientName)
	if err != nil {
		return nil, err
	}

	accept, encErr := protocol.EncodeConnectAccept(protocol.ConnectAccept{SessionID: session.ID()})
	if err := sendFrame(rw, protocol.MsgConnectAccept, session.ID(), accept, encErr); err != nil {
		if req.SessionID == ([16]byte{}) {
			mgr.Detach(session.ID())
		}
		return nil, err
	}
	return session, nil
}
