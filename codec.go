package secredit

import (
	"encoding/base64"
	"strings"
	"unicode/utf8"
)

// PlaintextPrefix marks a token as compressed, unencrypted text.
const PlaintextPrefix = "p:"

var stdToURLAlphabet = strings.NewReplacer("+", "-", "/", "_")

// Utf8Encode returns the UTF-8 bytes of text.
func Utf8Encode(text string) []byte {
	return []byte(text)
}

// Utf8Decode converts bytes to text. Each maximal invalid subsequence becomes
// one U+FFFD, which is what a browser TextDecoder produces.
func Utf8Decode(b []byte) string {
	if utf8.Valid(b) {
		return string(b)
	}
	var sb strings.Builder
	sb.Grow(len(b) + 8)
	for len(b) > 0 {
		r, size := utf8.DecodeRune(b)
		if r == utf8.RuneError && size == 1 {
			size = invalidPrefixLen(b)
		}
		sb.WriteRune(r)
		b = b[size:]
	}
	return sb.String()
}

// invalidPrefixLen returns the length of the maximal subpart at the start of b:
// a lead byte followed by the continuation bytes that were still acceptable
// before the sequence broke off.
func invalidPrefixLen(b []byte) int {
	lo, hi := byte(0x80), byte(0xBF)
	var need int
	switch c := b[0]; {
	case c >= 0xC2 && c <= 0xDF:
		need = 1
	case c == 0xE0:
		need, lo = 2, 0xA0
	case c == 0xED:
		need, hi = 2, 0x9F
	case c >= 0xE1 && c <= 0xEF:
		need = 2
	case c == 0xF0:
		need, lo = 3, 0x90
	case c == 0xF4:
		need, hi = 3, 0x8F
	case c >= 0xF1 && c <= 0xF3:
		need = 3
	default:
		return 1
	}
	n := 1
	for n <= need && n < len(b) && b[n] >= lo && b[n] <= hi {
		n++
		lo, hi = 0x80, 0xBF
	}
	return n
}

// EncodeBase64URL encodes bytes as URL-safe base64 without padding.
func EncodeBase64URL(data []byte) string {
	return base64.RawURLEncoding.EncodeToString(data)
}

// DecodeBase64URL decodes URL-safe base64. Trailing padding and the standard
// alphabet's '+' and '/' are tolerated, matching what browsers' atob accepted
// for older links.
func DecodeBase64URL(s string) ([]byte, error) {
	s = stdToURLAlphabet.Replace(strings.TrimRight(s, "="))
	data, err := base64.RawURLEncoding.DecodeString(s)
	if err != nil {
		return nil, ErrDecode
	}
	return data, nil
}

// IsPlaintext reports whether token carries the plaintext prefix.
func IsPlaintext(token string) bool {
	return strings.HasPrefix(token, PlaintextPrefix)
}

// EncodePlaintext produces a "p:" token: base64url(gzip(utf8(text))).
func EncodePlaintext(text string) (string, error) {
	compressed, err := Compress(Utf8Encode(text))
	if err != nil {
		return "", err
	}
	return PlaintextPrefix + EncodeBase64URL(compressed), nil
}

// DecodePlaintext reverses EncodePlaintext. The "p:" prefix is optional.
func DecodePlaintext(payload string, limit int) (string, error) {
	raw, err := DecodeBase64URL(strings.TrimPrefix(payload, PlaintextPrefix))
	if err != nil {
		return "", err
	}
	inflated, err := Decompress(raw, limit)
	if err != nil {
		return "", err
	}
	return Utf8Decode(inflated), nil
}
