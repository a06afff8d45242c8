// Package rcon implements the RCON session core: connection lifecycle,
// the one-time authentication handshake, and strictly one-in-flight
// command dispatch with reply correlation by request id.
package rcon

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/rconsole-project/rconsole/internal/events"
	"github.com/rconsole-project/rconsole/internal/protocol"
	"github.com/rconsole-project/rconsole/internal/transport"
)

// Command request ids rotate through [1,255]. The auth sentinel lies
// outside this range, so an auth reply can never alias a command reply.
const (
	minCommandID = 1
	maxCommandID = 255
)

// Transport is the duplex message connection the session drives. One
// handler of each kind is active at a time; registering a new one
// replaces the previous.
type Transport interface {
	Connect() error
	Send(data []byte) error
	Ready() bool
	Close() error
	OnFrame(func(frame []byte))
	OnError(func(err error))
	OnClose(func())
}

// result completes a pending request.
type result struct {
	body string
	err  error
}

// pendingRequest is the single outstanding request awaiting its reply.
type pendingRequest struct {
	kind protocol.PacketType // TypeAuth or TypeExecCommand
	id   int32
	body bytes.Buffer
	done chan result
}

// Client is one RCON session bound to one remote endpoint. It owns its
// transport handle and its single pending-request slot exclusively; all
// methods are safe for concurrent use, but only one request can be in
// flight at a time.
type Client struct {
	mu        sync.Mutex
	opts      Options
	transport Transport
	bus       *events.Bus
	logger    zerolog.Logger

	connected     bool
	authenticated bool
	pending       *pendingRequest
	lastID        int32
}

// NewClient wires a session onto an existing transport. The bus may be
// nil when no observers are interested. If the transport is already
// open, the session starts connected.
func NewClient(opts Options, t Transport, bus *events.Bus) *Client {
	opts = opts.withDefaults()
	c := &Client{
		opts:      opts,
		transport: t,
		bus:       bus,
		logger:    log.With().Str("component", "rcon").Str("server", opts.Address()).Logger(),
	}

	t.OnFrame(c.handleFrame)
	t.OnError(c.handleError)
	t.OnClose(c.handleClose)

	c.connected = t.Ready()
	return c
}

// Dial constructs a session and eagerly opens its TCP transport.
func Dial(opts Options, bus *events.Bus) (*Client, error) {
	opts = opts.withDefaults()

	cfg := transport.DefaultConfig(opts.Address())
	cfg.ConnectTimeout = opts.ConnectTimeout

	c := NewClient(opts, transport.New(cfg), bus)
	if err := c.Connect(); err != nil {
		return nil, err
	}
	return c, nil
}

// Connect opens the transport. The session counts as connected from
// the moment the dial succeeds.
func (c *Client) Connect() error {
	c.mu.Lock()
	if c.connected {
		c.mu.Unlock()
		return nil
	}
	c.mu.Unlock()

	if err := c.transport.Connect(); err != nil {
		return &TransportError{Cause: err}
	}

	c.mu.Lock()
	c.connected = true
	c.mu.Unlock()

	c.logger.Info().Msg("connected")
	c.emit(events.EventConnected, events.SessionPayload{Address: c.opts.Address()})
	return nil
}

// Authenticate performs the one-time credential exchange. An empty
// password falls back to the configured one. The server answers an AUTH
// request with two packets; the first is not an AUTH_RESPONSE and is
// ignored, the second carries the verdict: the auth sentinel id on
// success, any other id (canonically -1) on rejection. Rejection forces
// the session closed.
func (c *Client) Authenticate(ctx context.Context, password string) error {
	c.mu.Lock()
	if c.authenticated {
		c.mu.Unlock()
		return ErrAlreadyAuthenticated
	}
	if !c.connected {
		c.mu.Unlock()
		return ErrNotConnected
	}
	if !c.transport.Ready() {
		c.mu.Unlock()
		return ErrSendUnavailable
	}
	if password == "" {
		password = c.opts.Password
	}

	pr, err := c.writeLocked(protocol.TypeAuth, protocol.AuthRequestID, password)
	c.mu.Unlock()
	if err != nil {
		return err
	}

	c.logger.Debug().Msg("auth request sent")

	if _, err := c.await(ctx, pr); err != nil {
		if errors.Is(err, ErrAuthenticationFailed) {
			c.logger.Warn().Msg("authentication rejected, disconnecting")
			c.emit(events.EventAuthFailed, events.SessionPayload{
				Address: c.opts.Address(),
				Reason:  err.Error(),
			})
			c.Disconnect()
		}
		return err
	}

	c.logger.Info().Msg("authenticated")
	c.emit(events.EventAuthenticated, events.SessionPayload{Address: c.opts.Address()})
	return nil
}

// Execute sends one command and returns its textual reply. Exactly one
// request may be outstanding; a concurrent call fails fast with
// ErrRequestPending instead of clobbering the first one's listener.
func (c *Client) Execute(ctx context.Context, command string) (string, error) {
	c.mu.Lock()
	if !c.connected {
		c.mu.Unlock()
		return "", ErrNotConnected
	}
	if !c.transport.Ready() {
		c.mu.Unlock()
		return "", ErrSendUnavailable
	}
	if !c.authenticated {
		c.mu.Unlock()
		return "", ErrNotAuthorized
	}

	id := c.nextCommandID()
	pr, err := c.writeLocked(protocol.TypeExecCommand, id, command)
	c.mu.Unlock()
	if err != nil {
		return "", err
	}

	c.logger.Debug().Int32("id", id).Str("command", command).Msg("command sent")

	start := time.Now()
	reply, err := c.await(ctx, pr)
	duration := time.Since(start)

	if err != nil {
		c.emit(events.EventCommandFailed, events.CommandPayload{
			Address:  c.opts.Address(),
			Command:  command,
			Error:    err.Error(),
			Duration: duration,
		})
		return "", err
	}

	c.emit(events.EventCommandExecuted, events.CommandPayload{
		Address:  c.opts.Address(),
		Command:  command,
		Reply:    reply,
		Duration: duration,
	})
	return reply, nil
}

// Disconnect tears the session down: both flags reset, any pending
// request is aborted, and the transport is closed.
func (c *Client) Disconnect() error {
	c.mu.Lock()
	wasConnected := c.connected
	c.connected = false
	c.authenticated = false
	pr := c.pending
	c.pending = nil
	c.mu.Unlock()

	if pr != nil {
		pr.done <- result{err: ErrConnectionClosed}
	}

	err := c.transport.Close()

	if wasConnected {
		c.logger.Info().Msg("disconnected")
		c.emit(events.EventDisconnected, events.SessionPayload{Address: c.opts.Address()})
	}
	if err != nil {
		return &TransportError{Cause: err}
	}
	return nil
}

// IsConnected reports whether the transport is open.
func (c *Client) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

// IsAuthenticated reports whether the handshake completed successfully.
func (c *Client) IsAuthenticated() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.authenticated
}

// Address returns the remote endpoint this session is bound to.
func (c *Client) Address() string {
	return c.opts.Address()
}

// writeLocked is the shared write path for auth and commands: encode,
// enforce the size limit before anything is sent, claim the single
// pending slot, send. Callers must hold mu.
func (c *Client) writeLocked(kind protocol.PacketType, id int32, body string) (*pendingRequest, error) {
	frame, err := protocol.Encode(protocol.Packet{Type: kind, ID: id, Body: body}, c.opts.Encoding)
	if err != nil {
		return nil, err
	}
	if c.opts.MaxPacketSize > 0 && len(frame) > c.opts.MaxPacketSize {
		return nil, ErrPacketTooLarge
	}
	if c.pending != nil {
		return nil, ErrRequestPending
	}

	pr := &pendingRequest{
		kind: kind,
		id:   id,
		done: make(chan result, 1),
	}
	c.pending = pr

	if err := c.transport.Send(frame); err != nil {
		c.pending = nil
		if errors.Is(err, transport.ErrNotConnected) {
			return nil, ErrSendUnavailable
		}
		return nil, &TransportError{Cause: err}
	}
	return pr, nil
}

// await suspends the caller until the pending request resolves, the
// response timeout fires, or ctx is cancelled.
func (c *Client) await(ctx context.Context, pr *pendingRequest) (string, error) {
	var timeoutCh <-chan time.Time
	if c.opts.ResponseTimeout > 0 {
		timer := time.NewTimer(c.opts.ResponseTimeout)
		defer timer.Stop()
		timeoutCh = timer.C
	}

	select {
	case res := <-pr.done:
		return res.body, res.err
	case <-timeoutCh:
		if c.takePending(pr) {
			return "", ErrTimeout
		}
		// Resolved just as the timer fired; prefer the real result.
		res := <-pr.done
		return res.body, res.err
	case <-ctx.Done():
		if c.takePending(pr) {
			return "", ctx.Err()
		}
		res := <-pr.done
		return res.body, res.err
	}
}

// takePending clears the pending slot if it still holds pr. Returns
// false when the request was already resolved by the frame handler.
func (c *Client) takePending(pr *pendingRequest) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.pending == pr {
		c.pending = nil
		return true
	}
	return false
}

// nextCommandID returns the next request id, wrapping within [1,255].
// With the one-in-flight invariant enforced, a fresh id can never
// collide with an outstanding one. Callers must hold mu.
func (c *Client) nextCommandID() int32 {
	c.lastID++
	if c.lastID > maxCommandID {
		c.lastID = minCommandID
	}
	return c.lastID
}

// handleFrame correlates one incoming packet with the outstanding
// request. It runs on the transport's read goroutine.
func (c *Client) handleFrame(frame []byte) {
	pkt, err := protocol.Decode(frame, c.opts.Encoding)
	if err != nil {
		c.logger.Warn().Err(err).Msg("dropping malformed packet")
		return
	}

	c.mu.Lock()
	pr := c.pending
	if pr == nil {
		c.mu.Unlock()
		c.logger.Debug().
			Int32("id", pkt.ID).
			Str("type", pkt.Type.String()).
			Msg("dropping unsolicited packet")
		return
	}

	if pr.kind == protocol.TypeAuth {
		c.handleAuthReplyLocked(pr, pkt)
		return
	}
	c.handleCommandReplyLocked(pr, pkt)
}

// handleAuthReplyLocked applies the handshake decision rule. The mutex
// is held on entry and released before the caller is resumed.
func (c *Client) handleAuthReplyLocked(pr *pendingRequest, pkt protocol.Packet) {
	// The server emits a stray non-AUTH_RESPONSE packet ahead of the
	// actual verdict; only the AUTH_RESPONSE is authoritative.
	if pkt.Type != protocol.TypeAuthResponse {
		c.mu.Unlock()
		c.logger.Debug().Str("type", pkt.Type.String()).Msg("ignoring pre-auth packet")
		return
	}

	c.pending = nil
	if pkt.ID == protocol.AuthRequestID {
		c.authenticated = true
		c.mu.Unlock()
		pr.done <- result{}
		return
	}

	c.mu.Unlock()
	c.logger.Debug().Int32("id", pkt.ID).Msg("auth verdict carries failure id")
	pr.done <- result{err: ErrAuthenticationFailed}
}

// handleCommandReplyLocked accumulates a matching reply fragment and
// resolves the caller. The mutex is held on entry and released before
// the caller is resumed.
func (c *Client) handleCommandReplyLocked(pr *pendingRequest, pkt protocol.Packet) {
	if pkt.ID != pr.id {
		c.mu.Unlock()
		c.logger.Debug().
			Int32("got", pkt.ID).
			Int32("want", pr.id).
			Msg("ignoring reply for unrelated id")
		return
	}

	pr.body.WriteString(pkt.Body)
	reply := normalizeReply(pr.body.String())
	c.pending = nil
	c.mu.Unlock()

	pr.done <- result{body: reply}
}

// handleError aborts the pending request. Session flags are left
// untouched: a transport hiccup mid-exchange is surfaced to the caller,
// who decides whether to disconnect.
func (c *Client) handleError(err error) {
	c.mu.Lock()
	pr := c.pending
	c.pending = nil
	c.mu.Unlock()

	c.logger.Warn().Err(err).Msg("transport error")
	if pr != nil {
		pr.done <- result{err: &TransportError{Cause: err}}
	}
}

// handleClose resets the session when the connection disappears
// underneath it.
func (c *Client) handleClose() {
	c.mu.Lock()
	wasConnected := c.connected
	c.connected = false
	c.authenticated = false
	pr := c.pending
	c.pending = nil
	c.mu.Unlock()

	if pr != nil {
		pr.done <- result{err: ErrConnectionClosed}
	}
	if wasConnected {
		c.logger.Info().Msg("connection closed by peer")
		c.emit(events.EventDisconnected, events.SessionPayload{
			Address: c.opts.Address(),
			Reason:  "connection closed",
		})
	}
}

// normalizeReply collapses trailing newlines down to a single one.
// Interior content is never touched.
func normalizeReply(s string) string {
	if !strings.HasSuffix(s, "\n") {
		return s
	}
	return strings.TrimRight(s, "\n") + "\n"
}

// emit publishes a session event when a bus is attached.
func (c *Client) emit(t events.EventType, payload interface{}) {
	if c.bus == nil {
		return
	}
	c.bus.Emit(context.Background(), events.Event{
		Type:    t,
		Source:  "rcon",
		Payload: payload,
	})
}
