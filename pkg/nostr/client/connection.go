package client

import (
	"compress/flate"
	"context"
	"fmt"
	"io"
	"net"
	"net/http"

	"github.com/Hubmakerlabs/mockrelay/pkg/units"
	"github.com/gobwas/httphead"
	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsflate"
	"github.com/gobwas/ws/wsutil"
)

// WriteBufferSize is how much of an outbound message is buffered before a
// frame is flushed; larger messages go out fragmented.
const WriteBufferSize = 512 * units.Kb

// flateLevel trades ratio for speed on outbound messages.
const flateLevel = 4

// connection is the client side of a websocket. When the relay accepts
// permessage-deflate every outbound message is compressed, and inbound
// messages are inflated when their first frame says so.
type connection struct {
	Conn    net.Conn
	deflate bool

	in      *wsutil.Reader
	inState wsflate.MessageState
	control wsutil.FrameHandlerFunc
	inflate *wsflate.Reader

	out      *wsutil.Writer
	outState wsflate.MessageState
	compress *wsflate.Writer
}

func newConnection(c context.Context, url string,
	header http.Header) (conn *connection, err error) {

	dialer := ws.Dialer{
		Header:     ws.HandshakeHeaderHTTP(header),
		Extensions: []httphead.Option{wsflate.DefaultParameters.Option()},
	}
	conn = &connection{}
	var hs ws.Handshake
	if conn.Conn, _, hs, err = dialer.Dial(c, url); chk.D(err) {
		return nil, fmt.Errorf("failed to dial: %w", err)
	}
	for _, ext := range hs.Extensions {
		if string(ext.Name) == wsflate.ExtensionName {
			conn.deflate = true
			break
		}
	}
	state := ws.StateClientSide
	if conn.deflate {
		state |= ws.StateExtended
		conn.outState.SetCompressed(true)
		conn.inflate = wsflate.NewReader(nil,
			func(r io.Reader) wsflate.Decompressor { return flate.NewReader(r) })
		conn.compress = wsflate.NewWriter(nil,
			func(w io.Writer) wsflate.Compressor {
				fw, _ := flate.NewWriter(w, flateLevel)
				return fw
			})
	}
	conn.control = wsutil.ControlFrameHandler(conn.Conn, ws.StateClientSide)
	conn.in = &wsutil.Reader{
		Source:         conn.Conn,
		State:          state,
		OnIntermediate: conn.control,
		Extensions:     []wsutil.RecvExtension{&conn.inState},
	}
	conn.out = wsutil.NewWriterSize(conn.Conn, state, ws.OpText,
		WriteBufferSize)
	conn.out.SetExtensions(&conn.outState)
	return
}

// WriteMessage sends data as one text message.
func (c *connection) WriteMessage(data []byte) (err error) {
	var w io.Writer = c.out
	if c.deflate {
		c.compress.Reset(c.out)
		w = c.compress
	}
	if _, err = w.Write(data); chk.D(err) {
		return fmt.Errorf("failed to write message: %w", err)
	}
	if c.deflate {
		if err = c.compress.Close(); chk.D(err) {
			return fmt.Errorf("failed to finish compressed message: %w", err)
		}
	}
	if err = c.out.Flush(); chk.D(err) {
		return fmt.Errorf("failed to flush message: %w", err)
	}
	return
}

// Ping sends a ping control frame.
func (c *connection) Ping() error {
	return wsutil.WriteClientMessage(c.Conn, ws.OpPing, nil)
}

// ReadMessage copies the next text or binary message into buf, answering
// control frames on the way.
func (c *connection) ReadMessage(cx context.Context, buf io.Writer) (err error) {
	if err = c.nextDataFrame(cx); err != nil {
		return
	}
	var r io.Reader = c.in
	if c.deflate && c.inState.IsCompressed() {
		c.inflate.Reset(c.in)
		r = c.inflate
	}
	if _, err = io.Copy(buf, r); chk.D(err) {
		return fmt.Errorf("failed to read message: %w", err)
	}
	return
}

func (c *connection) nextDataFrame(cx context.Context) (err error) {
	for {
		if err = cx.Err(); err != nil {
			return
		}
		var h ws.Header
		if h, err = c.in.NextFrame(); chk.D(err) {
			chk.D(c.Conn.Close())
			return fmt.Errorf("failed to advance frame: %w", err)
		}
		switch {
		case h.OpCode == ws.OpText || h.OpCode == ws.OpBinary:
			return nil
		case h.OpCode.IsControl():
			if err = c.control(h, c.in); err != nil {
				return fmt.Errorf("failed to handle control frame: %w", err)
			}
		}
		if err = c.in.Discard(); chk.D(err) {
			return fmt.Errorf("failed to discard frame: %w", err)
		}
	}
}

func (c *connection) Close() (err error) { return c.Conn.Close() }
