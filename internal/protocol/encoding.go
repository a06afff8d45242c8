package protocol

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
)

// Encoding selects how packet bodies are converted between Go strings
// and wire bytes. The zero value is not valid; use DefaultEncoding or
// ParseEncoding.
type Encoding string

const (
	// EncodingASCII replaces any byte outside 0x00-0x7F with '?'.
	EncodingASCII Encoding = "ascii"
	// EncodingUTF8 passes bodies through unmodified.
	EncodingUTF8 Encoding = "utf8"
	// EncodingLatin1 maps bodies through ISO 8859-1.
	EncodingLatin1 Encoding = "latin1"

	// DefaultEncoding is what sessions use when nothing is configured.
	DefaultEncoding = EncodingASCII
)

// ParseEncoding validates a configuration string and returns the
// corresponding Encoding.
func ParseEncoding(s string) (Encoding, error) {
	switch Encoding(strings.ToLower(strings.TrimSpace(s))) {
	case EncodingASCII:
		return EncodingASCII, nil
	case EncodingUTF8, "utf-8":
		return EncodingUTF8, nil
	case EncodingLatin1, "iso-8859-1":
		return EncodingLatin1, nil
	default:
		return "", fmt.Errorf("unsupported encoding %q", s)
	}
}

// EncodeBody converts a body string into wire bytes.
func (e Encoding) EncodeBody(s string) ([]byte, error) {
	switch e {
	case EncodingUTF8:
		return []byte(s), nil
	case EncodingLatin1:
		enc := encoding.ReplaceUnsupported(charmap.ISO8859_1.NewEncoder())
		out, err := enc.Bytes([]byte(s))
		if err != nil {
			return nil, fmt.Errorf("latin1 encode: %w", err)
		}
		return out, nil
	case EncodingASCII, "":
		out := make([]byte, 0, len(s))
		for _, r := range s {
			if r < utf8.RuneSelf {
				out = append(out, byte(r))
			} else {
				out = append(out, '?')
			}
		}
		return out, nil
	default:
		return nil, fmt.Errorf("unsupported encoding %q", string(e))
	}
}

// DecodeBody converts wire bytes back into a body string.
func (e Encoding) DecodeBody(b []byte) (string, error) {
	switch e {
	case EncodingUTF8:
		return strings.ToValidUTF8(string(b), string(utf8.RuneError)), nil
	case EncodingLatin1:
		out, err := charmap.ISO8859_1.NewDecoder().Bytes(b)
		if err != nil {
			return "", fmt.Errorf("latin1 decode: %w", err)
		}
		return string(out), nil
	case EncodingASCII, "":
		out := make([]byte, len(b))
		for i, c := range b {
			if c < utf8.RuneSelf {
				out[i] = c
			} else {
				out[i] = '?'
			}
		}
		return string(out), nil
	default:
		return "", fmt.Errorf("unsupported encoding %q", string(e))
	}
}
