package protocol

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncode_frameLayout(t *testing.T) {
	frame, err := Encode(Packet{Type: TypeExecCommand, ID: 42, Body: "status"}, EncodingASCII)
	require.NoError(t, err)

	// size = id(4) + type(4) + body(6) + terminators(2)
	require.Len(t, frame, 4+16)
	assert.Equal(t, int32(16), int32(binary.LittleEndian.Uint32(frame[0:4])))
	assert.Equal(t, int32(42), int32(binary.LittleEndian.Uint32(frame[4:8])))
	assert.Equal(t, int32(TypeExecCommand), int32(binary.LittleEndian.Uint32(frame[8:12])))
	assert.Equal(t, []byte("status"), frame[12:18])
	assert.Equal(t, byte(0), frame[18])
	assert.Equal(t, byte(0), frame[19])
}

func TestCodec_roundTrip(t *testing.T) {
	encodings := []Encoding{EncodingASCII, EncodingUTF8, EncodingLatin1}

	packets := []Packet{
		{Type: TypeAuth, ID: AuthRequestID, Body: "secret"},
		{Type: TypeExecCommand, ID: 1, Body: "say hello world"},
		{Type: TypeExecCommand, ID: 255, Body: ""},
		{Type: TypeResponseValue, ID: 17, Body: "ok\n"},
		{Type: TypeAuthResponse, ID: AuthFailureID, Body: ""},
	}

	for _, enc := range encodings {
		for _, want := range packets {
			frame, err := Encode(want, enc)
			require.NoError(t, err, "encode %+v with %s", want, enc)

			got, err := Decode(frame, enc)
			require.NoError(t, err, "decode %+v with %s", want, enc)
			assert.Equal(t, want.ID, got.ID)
			assert.Equal(t, int32(want.Type), int32(got.Type))
			assert.Equal(t, want.Body, got.Body)
		}
	}
}

func TestCodec_roundTripNonASCII(t *testing.T) {
	t.Run("utf8 preserves multibyte bodies", func(t *testing.T) {
		want := Packet{Type: TypeExecCommand, ID: 9, Body: "café ☕"}
		frame, err := Encode(want, EncodingUTF8)
		require.NoError(t, err)
		got, err := Decode(frame, EncodingUTF8)
		require.NoError(t, err)
		assert.Equal(t, want.Body, got.Body)
	})

	t.Run("latin1 preserves 8-bit bodies", func(t *testing.T) {
		want := Packet{Type: TypeExecCommand, ID: 9, Body: "café"}
		frame, err := Encode(want, EncodingLatin1)
		require.NoError(t, err)
		// body is a single byte per rune on the wire
		assert.Len(t, frame, 4+8+4+2)
		got, err := Decode(frame, EncodingLatin1)
		require.NoError(t, err)
		assert.Equal(t, want.Body, got.Body)
	})

	t.Run("ascii replaces unmappable runes", func(t *testing.T) {
		frame, err := Encode(Packet{Type: TypeExecCommand, ID: 9, Body: "café"}, EncodingASCII)
		require.NoError(t, err)
		got, err := Decode(frame, EncodingASCII)
		require.NoError(t, err)
		assert.Equal(t, "caf?", got.Body)
	})
}

func TestDecode_malformedFrames(t *testing.T) {
	valid, err := Encode(Packet{Type: TypeExecCommand, ID: 3, Body: "x"}, EncodingASCII)
	require.NoError(t, err)

	t.Run("too short", func(t *testing.T) {
		_, err := Decode(valid[:MinFrameSize-1], EncodingASCII)
		assert.ErrorIs(t, err, ErrFrameTooShort)
	})

	t.Run("size mismatch", func(t *testing.T) {
		frame := append([]byte(nil), valid...)
		binary.LittleEndian.PutUint32(frame[0:4], uint32(len(frame))) // off by SizeFieldLen
		_, err := Decode(frame, EncodingASCII)
		assert.ErrorIs(t, err, ErrSizeMismatch)
	})

	t.Run("missing terminator", func(t *testing.T) {
		frame := append([]byte(nil), valid...)
		frame[len(frame)-1] = 'x'
		_, err := Decode(frame, EncodingASCII)
		assert.ErrorIs(t, err, ErrBadTerminator)
	})
}

func TestEncode_rejectsOversizeBody(t *testing.T) {
	body := make([]byte, MaxFrameSize)
	for i := range body {
		body[i] = 'a'
	}
	_, err := Encode(Packet{Type: TypeExecCommand, ID: 1, Body: string(body)}, EncodingASCII)
	assert.ErrorIs(t, err, ErrFrameTooLarge)
}

func TestPacketType_String(t *testing.T) {
	assert.Equal(t, "RESPONSE_VALUE", TypeResponseValue.String())
	assert.Equal(t, "AUTH_RESPONSE", TypeAuthResponse.String())
	assert.Equal(t, "AUTH", TypeAuth.String())
	assert.Equal(t, "UNKNOWN", PacketType(99).String())
}
