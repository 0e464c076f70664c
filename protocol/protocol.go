// Copyright © 2025 Texelation contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
//
// File: protocol/protocol.go
// Summary: Frame layout shared by the display server and its clients.
// Usage: WriteMessage/ReadMessage wrap every payload produced by messages.go.
// Notes: Little endian throughout. Responses echo the request sequence in the
//        payload so a client can match them against pending requests.

package protocol

import (
	"encoding/binary"
	"errors"
	"hash/crc32"
	"io"
)

const (
	magic      uint32 = 0x54584701 // "TXG\x01"
	headerSize        = 40

	// MaxPayload bounds a single frame. A full 512x256 DrawCells frame fits.
	MaxPayload = 8 << 20
)

// Flag bits for the header Flags byte.
const (
	FlagChecksum uint8 = 0x01
)

// Version is the protocol version implemented by this package.
const Version uint8 = 1

// MessageType enumerates the frames exchanged between a client and the
// display server.
type MessageType uint8

const (
	MsgHello MessageType = iota
	MsgWelcome
	MsgConnectRequest
	MsgConnectAccept
	MsgDisconnectNotice
	MsgPing
	MsgPong
	MsgError
	MsgAck

	// Requests from the client. Each is answered by MsgAck or MsgError.
	MsgWindowCreate
	MsgWindowShow
	MsgWindowHide
	MsgWindowMove
	MsgWindowDestroy
	MsgWindowRaise
	MsgDrawCells

	// Pushed by the server.
	MsgClipUpdate
	MsgKeyEvent
	MsgMouseEvent
	MsgCloseRequest
)

var messageNames = [...]string{
	MsgHello:            "hello",
	MsgWelcome:          "welcome",
	MsgConnectRequest:   "connect-request",
	MsgConnectAccept:    "connect-accept",
	MsgDisconnectNotice: "disconnect",
	MsgPing:             "ping",
	MsgPong:             "pong",
	MsgError:            "error",
	MsgAck:              "ack",
	MsgWindowCreate:     "window-create",
	MsgWindowShow:       "window-show",
	MsgWindowHide:       "window-hide",
	MsgWindowMove:       "window-move",
	MsgWindowDestroy:    "window-destroy",
	MsgWindowRaise:      "window-raise",
	MsgDrawCells:        "draw-cells",
	MsgClipUpdate:       "clip-update",
	MsgKeyEvent:         "key",
	MsgMouseEvent:       "mouse",
	MsgCloseRequest:     "close-request",
}

func (t MessageType) String() string {
	if int(t) < len(messageNames) && messageNames[t] != "" {
		return messageNames[t]
	}
	return "unknown"
}

// IsRequest reports whether the server must answer t with an Ack or an
// ErrorFrame.
func (t MessageType) IsRequest() bool {
	return t >= MsgWindowCreate && t <= MsgDrawCells
}

// Header describes the fixed portion of every frame exchanged over the wire.
type Header struct {
	Version    uint8
	Type       MessageType
	Flags      uint8
	Reserved   uint8
	SessionID  [16]byte
	Sequence   uint64
	PayloadLen uint32
	Checksum   uint32
}

var (
	ErrInvalidMagic     = errors.New("protocol: invalid magic")
	ErrUnsupportedVer   = errors.New("protocol: unsupported version")
	ErrShortPayload     = errors.New("protocol: payload shorter than declared length")
	ErrChecksumMismatch = errors.New("protocol: checksum mismatch")
	ErrPayloadTooLarge  = errors.New("protocol: payload exceeds frame limit")
)

func checksum(head, payload []byte) uint32 {
	crc := crc32.NewIEEE()
	_, _ = crc.Write(head[4:36])
	if len(payload) > 0 {
		_, _ = crc.Write(payload)
	}
	return crc.Sum32()
}

// WriteMessage serialises the header and payload to w in a single write so
// concurrent writers sharing a mutex never interleave partial frames. The
// payload slice is not retained.
func WriteMessage(w io.Writer, hdr Header, payload []byte) error {
	if len(payload) > MaxPayload {
		return ErrPayloadTooLarge
	}
	hdr.PayloadLen = uint32(len(payload))

	buf := make([]byte, headerSize, headerSize+len(payload))
	binary.LittleEndian.PutUint32(buf[0:], magic)
	buf[4] = hdr.Version
	buf[5] = byte(hdr.Type)
	buf[6] = hdr.Flags
	buf[7] = hdr.Reserved
	copy(buf[8:24], hdr.SessionID[:])
	binary.LittleEndian.PutUint64(buf[24:32], hdr.Sequence)
	binary.LittleEndian.PutUint32(buf[32:36], hdr.PayloadLen)

	sum := hdr.Checksum
	if hdr.Flags&FlagChecksum != 0 {
		sum = checksum(buf, payload)
	}
	binary.LittleEndian.PutUint32(buf[36:40], sum)

	buf = append(buf, payload...)
	_, err := w.Write(buf)
	return err
}

// ReadMessage reads a header and payload from r. The returned payload is a
// fresh slice owned by the caller.
func ReadMessage(r io.Reader) (Header, []byte, error) {
	var hdr Header
	buf := make([]byte, headerSize)
	if _, err := io.ReadFull(r, buf); err != nil {
		return hdr, nil, err
	}

	if binary.LittleEndian.Uint32(buf[0:4]) != magic {
		return hdr, nil, ErrInvalidMagic
	}

	hdr.Version = buf[4]
	hdr.Type = MessageType(buf[5])
	hdr.Flags = buf[6]
	hdr.Reserved = buf[7]
	copy(hdr.SessionID[:], buf[8:24])
	hdr.Sequence = binary.LittleEndian.Uint64(buf[24:32])
	hdr.PayloadLen = binary.LittleEndian.Uint32(buf[32:36])
	hdr.Checksum = binary.LittleEndian.Uint32(buf[36:40])

	if hdr.Version != Version {
		return hdr, nil, ErrUnsupportedVer
	}
	if hdr.PayloadLen > MaxPayload {
		return hdr, nil, ErrPayloadTooLarge
	}

	payload := make([]byte, hdr.PayloadLen)
	if hdr.PayloadLen > 0 {
		if _, err := io.ReadFull(r, payload); err != nil {
			if errors.Is(err, io.ErrUnexpectedEOF) {
				return hdr, nil, ErrShortPayload
			}
			return hdr, nil, err
		}
	}

	if hdr.Flags&FlagChecksum != 0 && checksum(buf, payload) != hdr.Checksum {
		return hdr, nil, ErrChecksumMismatch
	}

	return hdr, payload, nil
}
