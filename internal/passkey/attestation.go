package passkey

import (
	"bytes"
	"crypto/sha256"
	"fmt"

	"github.com/go-webauthn/webauthn/protocol/webauthncose"
	apperrors "github.com/keystrand/keystrand/internal/platform/errors"
)

// RelyingParty verifies credential responses for a single deployment.
type RelyingParty struct {
	// ID is the relying party identifier, normally the effective domain of
	// the origin, e.g. "login.example.com".
	ID string

	// Origin is the full web origin the client runtime reports, e.g.
	// "https://login.example.com".
	Origin string
}

// ErrAttestationInvalid indicates a registration response that failed
// verification. The specific sub-reason is preserved in the error chain for
// logging but callers must not persist any credential state.
var ErrAttestationInvalid = apperrors.New(apperrors.CodeAttestationInvalid, "attestation could not be validated")

// AttestationInput carries a registration response in wire form.
type AttestationInput struct {
	EncodedClientData        string
	EncodedAuthenticatorData string

	// Challenge is the server-issued nonce this response must be bound to.
	Challenge []byte

	// CredentialID is the authenticator-supplied identifier from the request.
	CredentialID string

	// Algorithm is the COSE identifier the registration requested.
	Algorithm int64
}

// Attestation is the validated outcome of a registration response.
type Attestation struct {
	CredentialID string
	Algorithm    Algorithm
	Flags        Flags
	Counter      uint32
	AAGUID       [16]byte
}

// VerifyAttestation validates a registration response: client data checks for
// the create ceremony, authenticator data parsing, relying-party binding, and
// consistency between the request's credential ID and the attested one. The
// requested algorithm is mapped to a supported Algorithm.
func (rp *RelyingParty) VerifyAttestation(in AttestationInput) (Attestation, error) {
	algorithm, err := AlgorithmFromCOSE(in.Algorithm)
	if err != nil {
		return Attestation{}, err
	}

	clientDataJSON, err := Decode(in.EncodedClientData)
	if err != nil {
		return Attestation{}, apperrors.Wrap(apperrors.CodeAttestationInvalid, "decode client data", err)
	}
	authData, err := Decode(in.EncodedAuthenticatorData)
	if err != nil {
		return Attestation{}, apperrors.Wrap(apperrors.CodeAttestationInvalid, "decode authenticator data", err)
	}

	if err := ValidateClientData(clientDataJSON, CeremonyCreate, in.Challenge, rp.Origin); err != nil {
		return Attestation{}, apperrors.Wrap(apperrors.CodeAttestationInvalid, "validate client data", err)
	}

	parsed, err := ParseAuthenticatorData(authData)
	if err != nil {
		return Attestation{}, apperrors.Wrap(apperrors.CodeAttestationInvalid, "parse authenticator data", err)
	}

	rpIDHash := sha256.Sum256([]byte(rp.ID))
	if !bytes.Equal(rpIDHash[:], parsed.RPIDHash[:]) {
		return Attestation{}, apperrors.Wrap(apperrors.CodeAttestationInvalid, "authenticator data bound to a different relying party", ErrAttestationInvalid)
	}

	credentialID := in.CredentialID
	if parsed.Flags.AttestedCredentialData() {
		attestedID := Encode(parsed.CredentialID)
		if credentialID != "" && credentialID != attestedID {
			return Attestation{}, apperrors.Wrap(apperrors.CodeAttestationInvalid, "request credential id does not match attested credential id", ErrAttestationInvalid)
		}
		credentialID = attestedID

		if _, err := webauthncose.ParsePublicKey(parsed.CredentialPublicKey); err != nil {
			return Attestation{}, apperrors.Wrap(apperrors.CodeAttestationInvalid, fmt.Sprintf("parse attested public key: %v", err), ErrAttestationInvalid)
		}
	}
	if credentialID == "" {
		return Attestation{}, apperrors.Wrap(apperrors.CodeAttestationInvalid, "credential id is missing", ErrAttestationInvalid)
	}

	return Attestation{
		CredentialID: credentialID,
		Algorithm:    algorithm,
		Flags:        parsed.Flags,
		Counter:      parsed.Counter,
		AAGUID:       parsed.AAGUID,
	}, nil
}
