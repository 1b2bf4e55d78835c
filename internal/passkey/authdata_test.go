package passkey

import (
	"bytes"
	"crypto/sha256"
	"encoding/binary"
	"testing"
)

const (
	flagUserPresent  = 1 << 0
	flagUserVerified = 1 << 2
	flagAttestedData = 1 << 6
)

func buildAuthData(t *testing.T, rpID string, flags byte, counter uint32, credID, coseKey []byte) []byte {
	t.Helper()
	rpIDHash := sha256.Sum256([]byte(rpID))
	b := append([]byte{}, rpIDHash[:]...)
	b = append(b, flags)
	b = binary.BigEndian.AppendUint32(b, counter)
	if flags&flagAttestedData != 0 {
		aaguid := make([]byte, 16)
		copy(aaguid, "test-authn")
		b = append(b, aaguid...)
		b = binary.BigEndian.AppendUint16(b, uint16(len(credID)))
		b = append(b, credID...)
		b = append(b, coseKey...)
	}
	return b
}

func TestParseAuthenticatorDataWithoutAttestedData(t *testing.T) {
	raw := buildAuthData(t, "auth.example.com", flagUserPresent|flagUserVerified, 42, nil, nil)

	ad, err := ParseAuthenticatorData(raw)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	wantHash := sha256.Sum256([]byte("auth.example.com"))
	if ad.RPIDHash != wantHash {
		t.Fatal("unexpected rpid hash")
	}
	if !ad.Flags.UserPresent() || !ad.Flags.UserVerified() {
		t.Fatalf("unexpected flags %08b", ad.Flags)
	}
	if ad.Flags.AttestedCredentialData() {
		t.Fatal("expected no attested credential data flag")
	}
	if ad.Counter != 42 {
		t.Fatalf("expected counter 42, got %d", ad.Counter)
	}
	if ad.CredentialID != nil {
		t.Fatal("expected no credential id")
	}
}

func TestParseAuthenticatorDataWithAttestedData(t *testing.T) {
	credID := []byte("credential-0001")
	coseKey := []byte{0xa5, 0x01, 0x02}
	raw := buildAuthData(t, "auth.example.com", flagUserPresent|flagAttestedData, 7, credID, coseKey)

	ad, err := ParseAuthenticatorData(raw)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if !ad.Flags.AttestedCredentialData() {
		t.Fatal("expected attested credential data flag")
	}
	if !bytes.Equal(ad.CredentialID, credID) {
		t.Fatalf("unexpected credential id %q", ad.CredentialID)
	}
	if !bytes.Equal(ad.CredentialPublicKey, coseKey) {
		t.Fatal("unexpected credential public key bytes")
	}
	if !bytes.Equal(ad.AAGUID[:10], []byte("test-authn")) {
		t.Fatal("unexpected aaguid")
	}
}

func TestParseAuthenticatorDataCounterIsBigEndian(t *testing.T) {
	raw := buildAuthData(t, "rp", flagUserPresent, 0x01020304, nil, nil)
	ad, err := ParseAuthenticatorData(raw)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if ad.Counter != 0x01020304 {
		t.Fatalf("expected big-endian counter, got 0x%08x", ad.Counter)
	}
}

func TestParseAuthenticatorDataTruncated(t *testing.T) {
	full := buildAuthData(t, "rp", flagUserPresent|flagAttestedData, 1, []byte("cred"), []byte{0xa5})
	for _, size := range []int{0, 16, 31, 32, 36, 40, 52, 54, 56} {
		if _, err := ParseAuthenticatorData(full[:size]); err == nil {
			t.Fatalf("expected error for %d-byte input", size)
		}
	}
}

func TestParseAuthenticatorDataCredentialIDLengthOverrun(t *testing.T) {
	raw := buildAuthData(t, "rp", flagUserPresent|flagAttestedData, 1, []byte("cred"), []byte{0xa5})
	// Inflate the declared credential id length past the available bytes.
	raw[32+1+4+16] = 0xff
	if _, err := ParseAuthenticatorData(raw); err == nil {
		t.Fatal("expected error for overlong credential id length")
	}
}
