package passkey

import (
	"bytes"
	"crypto"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"fmt"
	"math/big"

	apperrors "github.com/keystrand/keystrand/internal/platform/errors"
)

// ErrSignatureInvalid indicates an assertion whose signature did not verify
// against the registered public key.
var ErrSignatureInvalid = apperrors.New(apperrors.CodeSignatureInvalid, "assertion signature is invalid")

// AssertionInput carries a login response in wire form together with the
// registered credential material to verify it against.
type AssertionInput struct {
	EncodedClientData        string
	EncodedAuthenticatorData string
	EncodedSignature         string

	// Challenge is the server-issued nonce this response must be bound to.
	Challenge []byte

	// PublicKey is the SPKI-encoded key stored at registration.
	PublicKey []byte
	Algorithm Algorithm
}

// Assertion is the validated outcome of a login response.
type Assertion struct {
	Flags   Flags
	Counter uint32
}

// VerifyAssertion validates a login response: client data checks for the get
// ceremony, relying-party binding, and signature verification over
// authenticatorData || SHA-256(clientDataJSON).
func (rp *RelyingParty) VerifyAssertion(in AssertionInput) (Assertion, error) {
	clientDataJSON, err := Decode(in.EncodedClientData)
	if err != nil {
		return Assertion{}, apperrors.Wrap(apperrors.CodeMalformedClientData, "decode client data", err)
	}
	authData, err := Decode(in.EncodedAuthenticatorData)
	if err != nil {
		return Assertion{}, apperrors.Wrap(apperrors.CodeSignatureInvalid, "decode authenticator data", err)
	}
	signature, err := Decode(in.EncodedSignature)
	if err != nil {
		return Assertion{}, apperrors.Wrap(apperrors.CodeSignatureInvalid, "decode signature", err)
	}

	if err := ValidateClientData(clientDataJSON, CeremonyGet, in.Challenge, rp.Origin); err != nil {
		return Assertion{}, err
	}

	parsed, err := ParseAuthenticatorData(authData)
	if err != nil {
		return Assertion{}, apperrors.Wrap(apperrors.CodeSignatureInvalid, "parse authenticator data", err)
	}

	rpIDHash := sha256.Sum256([]byte(rp.ID))
	if !bytes.Equal(rpIDHash[:], parsed.RPIDHash[:]) {
		return Assertion{}, apperrors.Wrap(apperrors.CodeSignatureInvalid, "assertion bound to a different relying party", ErrSignatureInvalid)
	}

	// The authenticator signs the raw authenticator data concatenated with
	// the SHA-256 of the client data JSON, not a re-encoded form.
	clientDataHash := sha256.Sum256(clientDataJSON)
	payload := make([]byte, 0, len(authData)+len(clientDataHash))
	payload = append(payload, authData...)
	payload = append(payload, clientDataHash[:]...)

	if err := verifySignature(in.Algorithm, in.PublicKey, payload, signature); err != nil {
		return Assertion{}, apperrors.Wrap(apperrors.CodeSignatureInvalid, err.Error(), ErrSignatureInvalid)
	}

	return Assertion{Flags: parsed.Flags, Counter: parsed.Counter}, nil
}

// ValidatePublicKey checks that stored key material parses as SPKI and
// matches the declared algorithm, so a credential that could never verify a
// login is rejected at registration time.
func ValidatePublicKey(algorithm Algorithm, spki []byte) error {
	_, err := parsePublicKey(algorithm, spki)
	return err
}

func parsePublicKey(algorithm Algorithm, spki []byte) (crypto.PublicKey, error) {
	pub, err := x509.ParsePKIXPublicKey(spki)
	if err != nil {
		return nil, fmt.Errorf("parse public key: %w", err)
	}
	switch algorithm {
	case AlgorithmES256:
		ecdsaPub, ok := pub.(*ecdsa.PublicKey)
		if !ok {
			return nil, fmt.Errorf("public key type %T does not match ES256", pub)
		}
		if ecdsaPub.Curve != elliptic.P256() {
			return nil, fmt.Errorf("ES256 requires the P-256 curve")
		}
		return ecdsaPub, nil
	case AlgorithmRS256:
		rsaPub, ok := pub.(*rsa.PublicKey)
		if !ok {
			return nil, fmt.Errorf("public key type %T does not match RS256", pub)
		}
		return rsaPub, nil
	default:
		return nil, fmt.Errorf("unsupported algorithm %q", algorithm)
	}
}

func verifySignature(algorithm Algorithm, spki, payload, sig []byte) error {
	pub, err := parsePublicKey(algorithm, spki)
	if err != nil {
		return err
	}
	digest := sha256.Sum256(payload)

	switch algorithm {
	case AlgorithmES256:
		ecdsaPub := pub.(*ecdsa.PublicKey)
		// Exactly 64 bytes is treated as a raw r||s pair; anything else
		// must parse as DER. Both fail closed.
		if len(sig) == 64 {
			r := new(big.Int).SetBytes(sig[:32])
			s := new(big.Int).SetBytes(sig[32:])
			if !ecdsa.Verify(ecdsaPub, digest[:], r, s) {
				return fmt.Errorf("invalid ES256 signature")
			}
			return nil
		}
		if !ecdsa.VerifyASN1(ecdsaPub, digest[:], sig) {
			return fmt.Errorf("invalid ES256 signature")
		}
		return nil
	case AlgorithmRS256:
		rsaPub := pub.(*rsa.PublicKey)
		if err := rsa.VerifyPKCS1v15(rsaPub, crypto.SHA256, digest[:], sig); err != nil {
			return fmt.Errorf("invalid RS256 signature: %w", err)
		}
		return nil
	default:
		return fmt.Errorf("unsupported algorithm %q", algorithm)
	}
}
