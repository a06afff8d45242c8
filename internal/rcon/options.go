package rcon

import (
	"fmt"
	"time"

	"github.com/rconsole-project/rconsole/internal/protocol"
)

// Defaults applied by Options.withDefaults.
const (
	DefaultHost            = "127.0.0.1"
	DefaultPort            = 27015
	DefaultMaxPacketSize   = 4096
	DefaultResponseTimeout = 1000 * time.Millisecond
	DefaultConnectTimeout  = 10 * time.Second
)

// Options configures one session. The zero value is usable: every zero
// field falls back to its default, except MaxPacketSize where a
// negative value (or NoPacketSizeLimit) disables the size check.
type Options struct {
	Host     string
	Port     int
	Password string

	// MaxPacketSize rejects requests whose encoded frame exceeds this
	// many bytes, before anything is sent. Negative disables the check.
	MaxPacketSize int

	// Encoding converts command and reply bodies to and from wire bytes.
	Encoding protocol.Encoding

	// ResponseTimeout bounds the wait for a matching reply. Negative
	// disables the timer.
	ResponseTimeout time.Duration

	// ConnectTimeout bounds the initial dial.
	ConnectTimeout time.Duration
}

// NoPacketSizeLimit disables the outgoing size check.
const NoPacketSizeLimit = -1

// NoResponseTimeout disables the reply timer.
const NoResponseTimeout = time.Duration(-1)

// withDefaults fills zero-valued fields.
func (o Options) withDefaults() Options {
	if o.Host == "" {
		o.Host = DefaultHost
	}
	if o.Port == 0 {
		o.Port = DefaultPort
	}
	if o.MaxPacketSize == 0 {
		o.MaxPacketSize = DefaultMaxPacketSize
	}
	if o.Encoding == "" {
		o.Encoding = protocol.DefaultEncoding
	}
	if o.ResponseTimeout == 0 {
		o.ResponseTimeout = DefaultResponseTimeout
	}
	if o.ConnectTimeout == 0 {
		o.ConnectTimeout = DefaultConnectTimeout
	}
	return o
}

// Address returns the "host:port" endpoint string.
func (o Options) Address() string {
	return fmt.Sprintf("%s:%d", o.Host, o.Port)
}
