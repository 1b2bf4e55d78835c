package passkey

import "encoding/base64"

// Wire payloads are URL-safe unpadded base64, the encoding WebAuthn itself
// uses for challenges inside client data JSON.

// Encode returns the base64url form of raw without padding.
func Encode(raw []byte) string {
	return base64.RawURLEncoding.EncodeToString(raw)
}

// Decode reverses Encode. It rejects padded or non-URL-safe input.
func Decode(encoded string) ([]byte, error) {
	return base64.RawURLEncoding.DecodeString(encoded)
}
