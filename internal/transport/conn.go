// Package transport implements the duplex TCP transport for RCON
// sessions. A Conn frames incoming data by the protocol's 4-byte
// little-endian size prefix and delivers complete frames, errors, and
// the close notification through registered handlers, in arrival order.
package transport

import (
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/rconsole-project/rconsole/internal/protocol"
)

// ErrNotConnected is returned by Send when no connection is open.
var ErrNotConnected = errors.New("transport is not connected")

// Config holds transport settings.
type Config struct {
	// Address is the "host:port" of the remote server.
	Address string
	// ConnectTimeout bounds the dial; 0 means no timeout.
	ConnectTimeout time.Duration
	// WriteTimeout bounds a single send; 0 means no timeout.
	WriteTimeout time.Duration
	// MaxFrameSize caps a single incoming frame. 0 uses the protocol limit.
	MaxFrameSize int
}

// DefaultConfig returns transport settings for the given address.
func DefaultConfig(address string) Config {
	return Config{
		Address:        address,
		ConnectTimeout: 10 * time.Second,
		WriteTimeout:   10 * time.Second,
		MaxFrameSize:   protocol.MaxFrameSize,
	}
}

// FrameHandler receives one complete wire frame, size prefix included.
type FrameHandler = func(frame []byte)

// ErrorHandler receives transport-level failures.
type ErrorHandler = func(err error)

// CloseHandler is invoked exactly once when the connection is gone.
type CloseHandler = func()

// Conn is a message-oriented TCP connection bound to one remote
// endpoint. One frame/error/close handler each is active at a time;
// registering a new one replaces the previous. Handlers run on the read
// goroutine, so frames are delivered in the order the peer sent them.
type Conn struct {
	mu     sync.Mutex
	cfg    Config
	conn   net.Conn
	logger zerolog.Logger

	onFrame FrameHandler
	onError ErrorHandler
	onClose CloseHandler

	closed bool
}

// New creates an unconnected transport. Register handlers, then call
// Connect.
func New(cfg Config) *Conn {
	if cfg.MaxFrameSize <= 0 {
		cfg.MaxFrameSize = protocol.MaxFrameSize
	}
	return &Conn{
		cfg:    cfg,
		logger: log.With().Str("component", "transport").Str("addr", cfg.Address).Logger(),
	}
}

// OnFrame registers the handler for complete incoming frames.
func (c *Conn) OnFrame(h FrameHandler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onFrame = h
}

// OnError registers the handler for transport failures.
func (c *Conn) OnError(h ErrorHandler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onError = h
}

// OnClose registers the handler for the close notification.
func (c *Conn) OnClose(h CloseHandler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onClose = h
}

// Connect dials the remote endpoint and starts the read loop. A closed
// transport can be connected again.
func (c *Conn) Connect() error {
	c.mu.Lock()
	if c.conn != nil {
		if !c.closed {
			c.mu.Unlock()
			return fmt.Errorf("already connected to %s", c.cfg.Address)
		}
		// Previous connection is shut down but its read loop has not
		// finished yet; detach it so its close is treated as stale.
		c.conn = nil
	}
	c.mu.Unlock()

	dialer := net.Dialer{Timeout: c.cfg.ConnectTimeout}
	conn, err := dialer.Dial("tcp", c.cfg.Address)
	if err != nil {
		return fmt.Errorf("failed to connect to %s: %w", c.cfg.Address, err)
	}

	c.mu.Lock()
	c.conn = conn
	c.closed = false
	c.mu.Unlock()
	c.logger.Debug().Msg("transport connected")

	go c.readLoop(conn)
	return nil
}

// Ready reports whether the transport can currently accept a send.
func (c *Conn) Ready() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn != nil && !c.closed
}

// Send writes one encoded frame to the connection.
func (c *Conn) Send(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil || c.closed {
		return ErrNotConnected
	}

	if c.cfg.WriteTimeout > 0 {
		c.conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteTimeout))
	}
	if _, err := c.conn.Write(data); err != nil {
		return fmt.Errorf("failed to write frame: %w", err)
	}
	return nil
}

// Close shuts the connection down. The close notification fires once
// the read loop observes the closed socket. Idempotent.
func (c *Conn) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	conn := c.conn
	c.mu.Unlock()

	if conn != nil {
		// The read loop observes the closed socket and fires the close
		// notification.
		return conn.Close()
	}
	c.fireClose(nil)
	return nil
}

// readLoop frames the byte stream and dispatches complete frames until
// the connection drops.
func (c *Conn) readLoop(conn net.Conn) {
	defer c.fireClose(conn)

	header := make([]byte, protocol.SizeFieldLen)
	for {
		if _, err := io.ReadFull(conn, header); err != nil {
			c.handleReadError(err)
			return
		}

		size := int(int32(uint32(header[0]) | uint32(header[1])<<8 | uint32(header[2])<<16 | uint32(header[3])<<24))
		if size < protocol.HeaderLen+protocol.TerminatorLen {
			c.handleReadError(fmt.Errorf("invalid frame size %d", size))
			conn.Close()
			return
		}
		if protocol.SizeFieldLen+size > c.cfg.MaxFrameSize {
			c.handleReadError(fmt.Errorf("frame size %d exceeds limit %d", size, c.cfg.MaxFrameSize))
			conn.Close()
			return
		}

		frame := make([]byte, protocol.SizeFieldLen+size)
		copy(frame, header)
		if _, err := io.ReadFull(conn, frame[protocol.SizeFieldLen:]); err != nil {
			c.handleReadError(err)
			return
		}

		c.mu.Lock()
		handler := c.onFrame
		c.mu.Unlock()
		if handler != nil {
			handler(frame)
		}
	}
}

// handleReadError reports a read failure unless the transport was
// deliberately closed.
func (c *Conn) handleReadError(err error) {
	c.mu.Lock()
	closed := c.closed
	handler := c.onError
	c.mu.Unlock()

	if closed {
		return
	}
	if errors.Is(err, io.EOF) {
		c.logger.Debug().Msg("server closed connection")
		return
	}

	c.logger.Warn().Err(err).Msg("transport read failed")
	if handler != nil {
		handler(err)
	}
}

// fireClose marks the transport closed and fires the close handler. A
// read loop whose connection was already replaced by a reconnect stays
// silent, so each connection produces at most one notification.
func (c *Conn) fireClose(conn net.Conn) {
	c.mu.Lock()
	if conn != nil && c.conn != conn {
		c.mu.Unlock()
		return
	}
	alreadyClosed := c.closed && c.conn == nil
	c.closed = true
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
	handler := c.onClose
	c.mu.Unlock()

	if alreadyClosed {
		return
	}
	c.logger.Debug().Msg("transport closed")
	if handler != nil {
		handler()
	}
}
