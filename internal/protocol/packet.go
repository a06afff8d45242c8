// Package protocol implements the RCON packet codec: the wire framing,
// the packet type constants, and the body text encodings shared by the
// session core and the transport. All frames use little-endian byte
// order with a 4-byte size prefix.
package protocol

// PacketType identifies the role of a packet in the exchange.
type PacketType int32

const (
	// TypeResponseValue is a reply fragment to an EXECCOMMAND request.
	TypeResponseValue PacketType = 0
	// TypeExecCommand is a client-to-server command request.
	TypeExecCommand PacketType = 2
	// TypeAuthResponse is the server's auth verdict. It shares the wire
	// value with TypeExecCommand; direction disambiguates.
	TypeAuthResponse PacketType = 2
	// TypeAuth carries the password to the server.
	TypeAuth PacketType = 3
)

// String returns a human-readable name for the packet type.
func (t PacketType) String() string {
	switch t {
	case TypeResponseValue:
		return "RESPONSE_VALUE"
	case TypeAuthResponse:
		return "AUTH_RESPONSE"
	case TypeAuth:
		return "AUTH"
	default:
		return "UNKNOWN"
	}
}

// Request id sentinels. Command ids stay within [1,255], so the auth
// sentinel can never alias a command reply, and -1 is the server's
// rejection marker on an AUTH_RESPONSE.
const (
	AuthRequestID int32 = 999
	AuthFailureID int32 = -1
)

// Frame layout constants.
// Frame format: [size:4][id:4][type:4][body...][0x00][0x00], where size
// counts everything after the size field itself.
const (
	SizeFieldLen  = 4
	HeaderLen     = 8 // id + type
	TerminatorLen = 2 // body null + packet null

	// MinFrameSize is the smallest valid frame (empty body).
	MinFrameSize = SizeFieldLen + HeaderLen + TerminatorLen

	// MaxFrameSize caps what the transport will buffer for one frame.
	MaxFrameSize = 65536
)

// Packet is the logical unit exchanged with the server: one transient
// value per message event.
type Packet struct {
	Type PacketType
	ID   int32
	Body string
}
