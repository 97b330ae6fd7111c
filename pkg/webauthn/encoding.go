package webauthn

import (
	"encoding/base64"
	"strings"
)

// EncodeBytes renders binary credential material for the wire: base64 with
// the URL-safe alphabet and no padding. EncodeBytes(DecodeBytes(s)) returns
// s unchanged for any value this package produced.
func EncodeBytes(b []byte) string {
	return base64.RawURLEncoding.EncodeToString(b)
}

// DecodeBytes parses binary credential material off the wire. Servers differ
// on alphabet and padding, so the standard alphabet and trailing "=" are
// accepted and normalized before decoding.
func DecodeBytes(s string) ([]byte, error) {
	s = strings.TrimRight(s, "=")
	s = strings.ReplaceAll(s, "+", "-")
	s = strings.ReplaceAll(s, "/", "_")
	return base64.RawURLEncoding.DecodeString(s)
}
