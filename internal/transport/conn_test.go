package transport

import (
	"encoding/binary"
	"io"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rconsole-project/rconsole/internal/protocol"
)

// startTestServer runs a loopback TCP server that passes each accepted
// connection to handle on its own goroutine.
func startTestServer(t *testing.T, handle func(conn net.Conn)) string {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { ln.Close() })

	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			go handle(conn)
		}
	}()

	return ln.Addr().String()
}

func TestConn_sendAndReceiveFrame(t *testing.T) {
	reply, err := protocol.Encode(protocol.Packet{
		Type: protocol.TypeResponseValue,
		ID:   7,
		Body: "pong",
	}, protocol.EncodingASCII)
	require.NoError(t, err)

	addr := startTestServer(t, func(conn net.Conn) {
		defer conn.Close()
		// Consume the request frame, then echo the canned reply.
		header := make([]byte, protocol.SizeFieldLen)
		if _, err := io.ReadFull(conn, header); err != nil {
			return
		}
		size := binary.LittleEndian.Uint32(header)
		payload := make([]byte, size)
		if _, err := io.ReadFull(conn, payload); err != nil {
			return
		}
		conn.Write(reply)
	})

	c := New(DefaultConfig(addr))
	frames := make(chan []byte, 1)
	c.OnFrame(func(frame []byte) { frames <- frame })

	require.NoError(t, c.Connect())
	defer c.Close()
	assert.True(t, c.Ready())

	request, err := protocol.Encode(protocol.Packet{
		Type: protocol.TypeExecCommand,
		ID:   7,
		Body: "ping",
	}, protocol.EncodingASCII)
	require.NoError(t, err)
	require.NoError(t, c.Send(request))

	select {
	case frame := <-frames:
		got, err := protocol.Decode(frame, protocol.EncodingASCII)
		require.NoError(t, err)
		assert.Equal(t, int32(7), got.ID)
		assert.Equal(t, "pong", got.Body)
	case <-time.After(2 * time.Second):
		t.Fatal("no frame delivered")
	}
}

func TestConn_closeNotification(t *testing.T) {
	addr := startTestServer(t, func(conn net.Conn) {
		// Server hangs up immediately.
		conn.Close()
	})

	c := New(DefaultConfig(addr))
	closed := make(chan struct{})
	c.OnClose(func() { close(closed) })

	require.NoError(t, c.Connect())

	select {
	case <-closed:
	case <-time.After(2 * time.Second):
		t.Fatal("close notification never fired")
	}
	assert.False(t, c.Ready())
	assert.ErrorIs(t, c.Send([]byte("x")), ErrNotConnected)
}

func TestConn_oversizeFrameAbortsConnection(t *testing.T) {
	addr := startTestServer(t, func(conn net.Conn) {
		defer conn.Close()
		// Announce an absurd frame size and keep the socket open.
		header := make([]byte, protocol.SizeFieldLen)
		binary.LittleEndian.PutUint32(header, uint32(protocol.MaxFrameSize*2))
		conn.Write(header)
		time.Sleep(time.Second)
	})

	c := New(DefaultConfig(addr))
	errs := make(chan error, 1)
	closed := make(chan struct{})
	c.OnError(func(err error) { errs <- err })
	c.OnClose(func() { close(closed) })

	require.NoError(t, c.Connect())
	defer c.Close()

	select {
	case err := <-errs:
		assert.Contains(t, err.Error(), "exceeds limit")
	case <-time.After(2 * time.Second):
		t.Fatal("no transport error reported")
	}
	select {
	case <-closed:
	case <-time.After(2 * time.Second):
		t.Fatal("close notification never fired")
	}
}

func TestConn_sendBeforeConnect(t *testing.T) {
	c := New(DefaultConfig("127.0.0.1:1"))
	assert.False(t, c.Ready())
	assert.ErrorIs(t, c.Send([]byte("x")), ErrNotConnected)
}

func TestConn_reconnectAfterClose(t *testing.T) {
	addr := startTestServer(t, func(conn net.Conn) {
		io.Copy(io.Discard, conn)
		conn.Close()
	})

	c := New(DefaultConfig(addr))
	closed := make(chan struct{}, 2)
	c.OnClose(func() { closed <- struct{}{} })

	require.NoError(t, c.Connect())
	require.NoError(t, c.Close())

	select {
	case <-closed:
	case <-time.After(2 * time.Second):
		t.Fatal("close notification never fired")
	}

	require.NoError(t, c.Connect())
	defer c.Close()
	assert.True(t, c.Ready())

	frame, err := protocol.Encode(protocol.Packet{Type: protocol.TypeExecCommand, ID: 1, Body: "ping"}, protocol.EncodingASCII)
	require.NoError(t, err)
	assert.NoError(t, c.Send(frame))
}

func TestConn_closeIsIdempotent(t *testing.T) {
	addr := startTestServer(t, func(conn net.Conn) {
		io.Copy(io.Discard, conn)
		conn.Close()
	})

	c := New(DefaultConfig(addr))
	var notifications int
	done := make(chan struct{})
	c.OnClose(func() {
		notifications++
		close(done)
	})

	require.NoError(t, c.Connect())
	require.NoError(t, c.Close())
	require.NoError(t, c.Close())

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("close notification never fired")
	}
	assert.Equal(t, 1, notifications)
}
