package passkey

import (
	"encoding/binary"
	"fmt"
)

// Flags holds the authenticator data flag byte.
type Flags byte

// UserPresent reports a successful user presence test.
func (f Flags) UserPresent() bool {
	return (byte(f) & 1) != 0
}

// UserVerified reports additional user authorization, such as a biometric check.
func (f Flags) UserVerified() bool {
	return (byte(f) & (1 << 2)) != 0
}

// BackupEligible reports whether the credential can sync to external storage.
func (f Flags) BackupEligible() bool {
	return (byte(f) & (1 << 3)) != 0
}

// BackedUp reports whether the credential has synced to external storage.
func (f Flags) BackedUp() bool {
	return (byte(f) & (1 << 4)) != 0
}

// AttestedCredentialData reports whether attested credential data follows the counter.
func (f Flags) AttestedCredentialData() bool {
	return (byte(f) & (1 << 6)) != 0
}

// Extensions reports whether extension data follows the fixed fields.
func (f Flags) Extensions() bool {
	return (byte(f) & (1 << 7)) != 0
}

// AuthenticatorData is the parsed binary structure produced by an
// authenticator: rpIdHash (32) || flags (1) || counter (4, big endian),
// followed by attested credential data when the AT flag is set:
// aaguid (16) || credential id length (2, big endian) || credential id ||
// COSE public key.
type AuthenticatorData struct {
	RPIDHash [32]byte
	Flags    Flags
	Counter  uint32

	// Populated only when Flags.AttestedCredentialData() is true.
	AAGUID              [16]byte
	CredentialID        []byte
	CredentialPublicKey []byte
}

// ParseAuthenticatorData parses raw authenticator data bytes.
func ParseAuthenticatorData(b []byte) (AuthenticatorData, error) {
	var ad AuthenticatorData
	if len(b) < 32 {
		return ad, fmt.Errorf("not enough bytes for rpid hash")
	}
	copy(ad.RPIDHash[:], b[:32])
	b = b[32:]

	if len(b) < 1 {
		return ad, fmt.Errorf("not enough bytes for flags")
	}
	ad.Flags = Flags(b[0])
	b = b[1:]

	if len(b) < 4 {
		return ad, fmt.Errorf("not enough bytes for counter")
	}
	ad.Counter = binary.BigEndian.Uint32(b[:4])
	b = b[4:]

	if !ad.Flags.AttestedCredentialData() {
		return ad, nil
	}

	if len(b) < 16 {
		return ad, fmt.Errorf("not enough bytes for aaguid")
	}
	copy(ad.AAGUID[:], b[:16])
	b = b[16:]

	if len(b) < 2 {
		return ad, fmt.Errorf("not enough bytes for credential id length")
	}
	credIDLen := int(binary.BigEndian.Uint16(b[:2]))
	b = b[2:]

	if len(b) < credIDLen {
		return ad, fmt.Errorf("not enough bytes for credential id")
	}
	ad.CredentialID = b[:credIDLen]
	b = b[credIDLen:]

	if len(b) == 0 {
		return ad, fmt.Errorf("missing credential public key")
	}
	ad.CredentialPublicKey = b
	return ad, nil
}
