package protocol

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

// Codec errors.
var (
	ErrFrameTooShort = fmt.Errorf("frame shorter than %d bytes", MinFrameSize)
	ErrFrameTooLarge = fmt.Errorf("frame exceeds %d bytes", MaxFrameSize)
	ErrSizeMismatch  = fmt.Errorf("size field does not match frame length")
	ErrBadTerminator = fmt.Errorf("frame is not double-null terminated")
)

// Encode serializes p into a complete wire frame, including the size
// prefix. The body is converted to bytes according to enc. Encoding is
// deterministic: the same packet always produces the same bytes.
func Encode(p Packet, enc Encoding) ([]byte, error) {
	body, err := enc.EncodeBody(p.Body)
	if err != nil {
		return nil, fmt.Errorf("encode body: %w", err)
	}

	size := HeaderLen + len(body) + TerminatorLen
	if SizeFieldLen+size > MaxFrameSize {
		return nil, ErrFrameTooLarge
	}

	buf := bytes.NewBuffer(make([]byte, 0, SizeFieldLen+size))
	binary.Write(buf, binary.LittleEndian, int32(size))
	binary.Write(buf, binary.LittleEndian, p.ID)
	binary.Write(buf, binary.LittleEndian, int32(p.Type))
	buf.Write(body)
	buf.WriteByte(0)
	buf.WriteByte(0)

	return buf.Bytes(), nil
}

// Decode parses a complete wire frame (size prefix included) back into
// a Packet. The size field and the double-null terminator are validated
// before the body is decoded with enc.
func Decode(frame []byte, enc Encoding) (Packet, error) {
	if len(frame) < MinFrameSize {
		return Packet{}, ErrFrameTooShort
	}
	if len(frame) > MaxFrameSize {
		return Packet{}, ErrFrameTooLarge
	}

	size := int32(binary.LittleEndian.Uint32(frame[0:4]))
	if int(size) != len(frame)-SizeFieldLen {
		return Packet{}, ErrSizeMismatch
	}
	if frame[len(frame)-2] != 0 || frame[len(frame)-1] != 0 {
		return Packet{}, ErrBadTerminator
	}

	id := int32(binary.LittleEndian.Uint32(frame[4:8]))
	ptype := int32(binary.LittleEndian.Uint32(frame[8:12]))

	body, err := enc.DecodeBody(frame[SizeFieldLen+HeaderLen : len(frame)-TerminatorLen])
	if err != nil {
		return Packet{}, fmt.Errorf("decode body: %w", err)
	}

	return Packet{
		Type: PacketType(ptype),
		ID:   id,
		Body: body,
	}, nil
}
