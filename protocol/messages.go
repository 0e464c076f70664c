// Copyright © 2025 Texelation contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
//
// File: protocol/messages.go
// Summary: Payload types and their binary codecs.
// Usage: Encode* before WriteMessage, Decode* after ReadMessage.
// Notes: Strings are length-prefixed with a uint16. Rectangles are four
//        int32 values (min x, min y, max x, max y).

package protocol

import (
	"bytes"
	"encoding/binary"
	"errors"
	"image"
)

var (
	errStringTooLong = errors.New("protocol: string exceeds 64KB limit")
	errPayloadShort  = errors.New("protocol: payload too short")
	errExtraBytes    = errors.New("protocol: payload has trailing data")
	errTooMany       = errors.New("protocol: list exceeds 65535 entries")
)

// Error codes carried by ErrorFrame.
const (
	ErrCodeBadRequest uint16 = iota + 1
	ErrCodeUnknownWindow
	ErrCodeRejected
	ErrCodeInternal
)

// Disconnect reasons carried by DisconnectNotice.
const (
	DisconnectNormal uint16 = iota
	DisconnectShutdown
	DisconnectProtocol
)

// Hello initiates the handshake from client to server.
type Hello struct {
	ClientID     [16]byte
	ClientName   string
	Capabilities uint32
}

// Welcome acknowledges the handshake and reports the screen size.
type Welcome struct {
	SessionID  [16]byte
	ServerName string
	Width      uint16
	Height     uint16
}

// ConnectRequest attaches the connection to a session.
type ConnectRequest struct {
	SessionID [16]byte
}

// ConnectAccept is returned once the session is ready.
type ConnectAccept struct {
	SessionID [16]byte
}

// DisconnectNotice informs the peer that the session is closing.
type DisconnectNotice struct {
	ReasonCode uint16
	Message    string
}

// Ping/Pong keep the connection alive.
type Ping struct {
	Timestamp int64
}

type Pong struct {
	Timestamp int64
}

// ErrorFrame rejects the request whose sequence it echoes.
type ErrorFrame struct {
	Sequence uint64
	Code     uint16
	Message  string
}

// Ack confirms the request whose sequence it echoes. WindowID names the
// window the request created or touched.
type Ack struct {
	Sequence uint64
	WindowID uint32
}

// WindowCreate asks for a new hidden window. An empty Rect lets the server
// restore or pick a placement.
type WindowCreate struct {
	Title string
	Rect  image.Rectangle
	Style uint8
}

// WindowRef is the payload of show, hide, destroy, raise and close requests.
type WindowRef struct {
	WindowID uint32
}

// WindowMove changes a window's outer rectangle.
type WindowMove struct {
	WindowID uint32
	Rect     image.Rectangle
}

// ClipUpdate grants a window its outer extent and the visible part of it.
type ClipUpdate struct {
	WindowID uint32
	Outer    image.Rectangle
	Rects    []image.Rectangle
}

// KeyEvent carries keyboard input routed to a window.
type KeyEvent struct {
	WindowID  uint32
	KeyCode   uint32
	RuneValue rune
	Modifiers uint16
}

// MouseEvent carries pointer input in screen coordinates.
type MouseEvent struct {
	WindowID   uint32
	X          int16
	Y          int16
	ButtonMask uint32
	Modifiers  uint16
}

func encodeString(buf *bytes.Buffer, value string) error {
	if len(value) > 0xFFFF {
		return errStringTooLong
	}
	if err := binary.Write(buf, binary.LittleEndian, uint16(len(value))); err != nil {
		return err
	}
	if len(value) > 0 {
		if _, err := buf.WriteString(value); err != nil {
			return err
		}
	}
	return nil
}

func decodeString(b []byte) (string, []byte, error) {
	if len(b) < 2 {
		return "", nil, errPayloadShort
	}
	length := binary.LittleEndian.Uint16(b[:2])
	b = b[2:]
	if len(b) < int(length) {
		return "", nil, errPayloadShort
	}
	return string(b[:length]), b[length:], nil
}

func encodeRect(buf *bytes.Buffer, r image.Rectangle) error {
	return binary.Write(buf, binary.LittleEndian, [4]int32{
		int32(r.Min.X), int32(r.Min.Y), int32(r.Max.X), int32(r.Max.Y),
	})
}

func decodeRect(b []byte) (image.Rectangle, []byte, error) {
	if len(b) < 16 {
		return image.Rectangle{}, nil, errPayloadShort
	}
	v := func(i int) int { return int(int32(binary.LittleEndian.Uint32(b[i*4:]))) }
	return image.Rect(v(0), v(1), v(2), v(3)), b[16:], nil
}

func done(rest []byte) error {
	if len(rest) != 0 {
		return errExtraBytes
	}
	return nil
}

func EncodeHello(h Hello) ([]byte, error) {
	buf := bytes.NewBuffer(make([]byte, 0, 32+len(h.ClientName)))
	buf.Write(h.ClientID[:])
	if err := encodeString(buf, h.ClientName); err != nil {
		return nil, err
	}
	if err := binary.Write(buf, binary.LittleEndian, h.Capabilities); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func DecodeHello(b []byte) (Hello, error) {
	var h Hello
	if len(b) < 16 {
		return h, errPayloadShort
	}
	copy(h.ClientID[:], b[:16])
	name, rest, err := decodeString(b[16:])
	if err != nil {
		return h, err
	}
	h.ClientName = name
	if len(rest) < 4 {
		return h, errPayloadShort
	}
	h.Capabilities = binary.LittleEndian.Uint32(rest[:4])
	return h, done(rest[4:])
}

func EncodeWelcome(w Welcome) ([]byte, error) {
	buf := bytes.NewBuffer(make([]byte, 0, 24+len(w.ServerName)))
	buf.Write(w.SessionID[:])
	if err := encodeString(buf, w.ServerName); err != nil {
		return nil, err
	}
	if err := binary.Write(buf, binary.LittleEndian, [2]uint16{w.Width, w.Height}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func DecodeWelcome(b []byte) (Welcome, error) {
	var w Welcome
	if len(b) < 16 {
		return w, errPayloadShort
	}
	copy(w.SessionID[:], b[:16])
	name, rest, err := decodeString(b[16:])
	if err != nil {
		return w, err
	}
	w.ServerName = name
	if len(rest) < 4 {
		return w, errPayloadShort
	}
	w.Width = binary.LittleEndian.Uint16(rest[0:2])
	w.Height = binary.LittleEndian.Uint16(rest[2:4])
	return w, done(rest[4:])
}

func EncodeConnectRequest(c ConnectRequest) ([]byte, error) {
	out := make([]byte, 16)
	copy(out, c.SessionID[:])
	return out, nil
}

func DecodeConnectRequest(b []byte) (ConnectRequest, error) {
	var c ConnectRequest
	if len(b) < 16 {
		return c, errPayloadShort
	}
	copy(c.SessionID[:], b[:16])
	return c, done(b[16:])
}

func EncodeConnectAccept(c ConnectAccept) ([]byte, error) {
	return EncodeConnectRequest(ConnectRequest{SessionID: c.SessionID})
}

func DecodeConnectAccept(b []byte) (ConnectAccept, error) {
	req, err := DecodeConnectRequest(b)
	return ConnectAccept{SessionID: req.SessionID}, err
}

func EncodeDisconnectNotice(d DisconnectNotice) ([]byte, error) {
	buf := bytes.NewBuffer(make([]byte, 0, 4+len(d.Message)))
	if err := binary.Write(buf, binary.LittleEndian, d.ReasonCode); err != nil {
		return nil, err
	}
	if err := encodeString(buf, d.Message); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func DecodeDisconnectNotice(b []byte) (DisconnectNotice, error) {
	var d DisconnectNotice
	if len(b) < 2 {
		return d, errPayloadShort
	}
	d.ReasonCode = binary.LittleEndian.Uint16(b[:2])
	msg, rest, err := decodeString(b[2:])
	if err != nil {
		return d, err
	}
	d.Message = msg
	return d, done(rest)
}

func EncodePing(p Ping) ([]byte, error) {
	return binary.LittleEndian.AppendUint64(nil, uint64(p.Timestamp)), nil
}

func DecodePing(b []byte) (Ping, error) {
	var p Ping
	if len(b) < 8 {
		return p, errPayloadShort
	}
	p.Timestamp = int64(binary.LittleEndian.Uint64(b[:8]))
	return p, done(b[8:])
}

func EncodePong(p Pong) ([]byte, error) {
	return EncodePing(Ping{Timestamp: p.Timestamp})
}

func DecodePong(b []byte) (Pong, error) {
	ping, err := DecodePing(b)
	if err != nil {
		return Pong{}, err
	}
	return Pong{Timestamp: ping.Timestamp}, nil
}

func EncodeErrorFrame(e ErrorFrame) ([]byte, error) {
	buf := bytes.NewBuffer(make([]byte, 0, 12+len(e.Message)))
	if err := binary.Write(buf, binary.LittleEndian, e.Sequence); err != nil {
		return nil, err
	}
	if err := binary.Write(buf, binary.LittleEndian, e.Code); err != nil {
		return nil, err
	}
	if err := encodeString(buf, e.Message); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func DecodeErrorFrame(b []byte) (ErrorFrame, error) {
	var e ErrorFrame
	if len(b) < 10 {
		return e, errPayloadShort
	}
	e.Sequence = binary.LittleEndian.Uint64(b[:8])
	e.Code = binary.LittleEndian.Uint16(b[8:10])
	msg, rest, err := decodeString(b[10:])
	if err != nil {
		return e, err
	}
	e.Message = msg
	return e, done(rest)
}

func EncodeAck(a Ack) ([]byte, error) {
	out := binary.LittleEndian.AppendUint64(make([]byte, 0, 12), a.Sequence)
	return binary.LittleEndian.AppendUint32(out, a.WindowID), nil
}

func DecodeAck(b []byte) (Ack, error) {
	var a Ack
	if len(b) < 12 {
		return a, errPayloadShort
	}
	a.Sequence = binary.LittleEndian.Uint64(b[:8])
	a.WindowID = binary.LittleEndian.Uint32(b[8:12])
	return a, done(b[12:])
}

func EncodeWindowCreate(c WindowCreate) ([]byte, error) {
	buf := bytes.NewBuffer(make([]byte, 0, 20+len(c.Title)))
	if err := encodeString(buf, c.Title); err != nil {
		return nil, err
	}
	if err := encodeRect(buf, c.Rect); err != nil {
		return nil, err
	}
	buf.WriteByte(c.Style)
	return buf.Bytes(), nil
}

func DecodeWindowCreate(b []byte) (WindowCreate, error) {
	var c WindowCreate
	title, rest, err := decodeString(b)
	if err != nil {
		return c, err
	}
	c.Title = title
	if c.Rect, rest, err = decodeRect(rest); err != nil {
		return c, err
	}
	if len(rest) < 1 {
		return c, errPayloadShort
	}
	c.Style = rest[0]
	return c, done(rest[1:])
}

func EncodeWindowRef(r WindowRef) ([]byte, error) {
	return binary.LittleEndian.AppendUint32(nil, r.WindowID), nil
}

func DecodeWindowRef(b []byte) (WindowRef, error) {
	var r WindowRef
	if len(b) < 4 {
		return r, errPayloadShort
	}
	r.WindowID = binary.LittleEndian.Uint32(b[:4])
	return r, done(b[4:])
}

func EncodeWindowMove(m WindowMove) ([]byte, error) {
	buf := bytes.NewBuffer(make([]byte, 0, 20))
	if err := binary.Write(buf, binary.LittleEndian, m.WindowID); err != nil {
		return nil, err
	}
	if err := encodeRect(buf, m.Rect); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func DecodeWindowMove(b []byte) (WindowMove, error) {
	var m WindowMove
	if len(b) < 4 {
		return m, errPayloadShort
	}
	m.WindowID = binary.LittleEndian.Uint32(b[:4])
	var (
		rest []byte
		err  error
	)
	if m.Rect, rest, err = decodeRect(b[4:]); err != nil {
		return m, err
	}
	return m, done(rest)
}

func EncodeClipUpdate(u ClipUpdate) ([]byte, error) {
	if len(u.Rects) > 0xFFFF {
		return nil, errTooMany
	}
	buf := bytes.NewBuffer(make([]byte, 0, 22+16*len(u.Rects)))
	if err := binary.Write(buf, binary.LittleEndian, u.WindowID); err != nil {
		return nil, err
	}
	if err := encodeRect(buf, u.Outer); err != nil {
		return nil, err
	}
	if err := binary.Write(buf, binary.LittleEndian, uint16(len(u.Rects))); err != nil {
		return nil, err
	}
	for _, r := range u.Rects {
		if err := encodeRect(buf, r); err != nil {
			return nil, err
		}
	}
	return buf.Bytes(), nil
}

func DecodeClipUpdate(b []byte) (ClipUpdate, error) {
	var u ClipUpdate
	if len(b) < 4 {
		return u, errPayloadShort
	}
	u.WindowID = binary.LittleEndian.Uint32(b[:4])
	outer, rest, err := decodeRect(b[4:])
	if err != nil {
		return u, err
	}
	u.Outer = outer
	if len(rest) < 2 {
		return u, errPayloadShort
	}
	count := int(binary.LittleEndian.Uint16(rest[:2]))
	rest = rest[2:]
	u.Rects = make([]image.Rectangle, 0, count)
	for i := 0; i < count; i++ {
		var r image.Rectangle
		if r, rest, err = decodeRect(rest); err != nil {
			return u, err
		}
		u.Rects = append(u.Rects, r)
	}
	return u, done(rest)
}

func EncodeKeyEvent(ev KeyEvent) ([]byte, error) {
	buf := bytes.NewBuffer(make([]byte, 0, 14))
	if err := binary.Write(buf, binary.LittleEndian, ev.WindowID); err != nil {
		return nil, err
	}
	if err := binary.Write(buf, binary.LittleEndian, ev.KeyCode); err != nil {
		return nil, err
	}
	if err := binary.Write(buf, binary.LittleEndian, uint32(ev.RuneValue)); err != nil {
		return nil, err
	}
	if err := binary.Write(buf, binary.LittleEndian, ev.Modifiers); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func DecodeKeyEvent(b []byte) (KeyEvent, error) {
	var ev KeyEvent
	if len(b) < 14 {
		return ev, errPayloadShort
	}
	ev.WindowID = binary.LittleEndian.Uint32(b[:4])
	ev.KeyCode = binary.LittleEndian.Uint32(b[4:8])
	ev.RuneValue = rune(binary.LittleEndian.Uint32(b[8:12]))
	ev.Modifiers = binary.LittleEndian.Uint16(b[12:14])
	return ev, done(b[14:])
}

func EncodeMouseEvent(ev MouseEvent) ([]byte, error) {
	buf := bytes.NewBuffer(make([]byte, 0, 14))
	if err := binary.Write(buf, binary.LittleEndian, ev.WindowID); err != nil {
		return nil, err
	}
	if err := binary.Write(buf, binary.LittleEndian, [2]int16{ev.X, ev.Y}); err != nil {
		return nil, err
	}
	if err := binary.Write(buf, binary.LittleEndian, ev.ButtonMask); err != nil {
		return nil, err
	}
	if err := binary.Write(buf, binary.LittleEndian, ev.Modifiers); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func DecodeMouseEvent(b []byte) (MouseEvent, error) {
	var ev MouseEvent
	if len(b) < 14 {
		return ev, errPayloadShort
	}
	ev.WindowID = binary.LittleEndian.Uint32(b[0:4])
	ev.X = int16(binary.LittleEndian.Uint16(b[4:6]))
	ev.Y = int16(binary.LittleEndian.Uint16(b[6:8]))
	ev.ButtonMask = binary.LittleEndian.Uint32(b[8:12])
	ev.Modifiers = binary.LittleEndian.Uint16(b[12:14])
	return ev, done(b[14:])
}
