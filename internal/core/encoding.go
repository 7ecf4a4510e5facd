package core

import (
	"bytes"
	"fmt"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// decoders maps supported single-byte encodings to their decoder.
var decoders = map[string]*charmap.Charmap{
	EncodingWindows1252: charmap.Windows1252,
	EncodingISO88591:    charmap.ISO8859_1,
	EncodingWindows1251: charmap.Windows1251,
}

// Encodings lists the CSV encodings offered to users.
func Encodings() []string {
	return []string{EncodingUTF8, EncodingWindows1252, EncodingISO88591, EncodingWindows1251}
}

func normalizeEncoding(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	switch name {
	case "", "utf8":
		return EncodingUTF8
	case "cp1252":
		return EncodingWindows1252
	case "latin1", "latin-1":
		return EncodingISO88591
	case "cp1251":
		return EncodingWindows1251
	}
	return name
}

// decodeText converts raw CSV bytes to UTF-8 text.
func decodeText(data []byte, enc string) (string, error) {
	enc = normalizeEncoding(enc)
	if enc == EncodingUTF8 {
		return string(sanitizeUTF8(bytes.TrimPrefix(data, utf8BOM))), nil
	}

	cm, ok := decoders[enc]
	if !ok {
		return "", fmt.Errorf("unknown encoding %q", enc)
	}
	out, err := decode(cm, data)
	if err != nil {
		return "", fmt.Errorf("encoding error: %w", err)
	}
	return string(out), nil
}

func decode(enc encoding.Encoding, data []byte) ([]byte, error) {
	return enc.NewDecoder().Bytes(data)
}

// sanitizeUTF8 replaces invalid UTF-8 bytes with U+FFFD.
func sanitizeUTF8(data []byte) []byte {
	if utf8.Valid(data) {
		return data
	}

	var buf bytes.Buffer
	buf.Grow(len(data))

	for len(data) > 0 {
		r, size := utf8.DecodeRune(data)
		if r == utf8.RuneError && size == 1 {
			buf.WriteRune(utf8.RuneError)
			data = data[1:]
		} else {
			buf.WriteRune(r)
			data = data[size:]
		}
	}

	return buf.Bytes()
}
