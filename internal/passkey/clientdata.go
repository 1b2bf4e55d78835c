package passkey

import (
	"crypto/subtle"
	"encoding/json"

	apperrors "github.com/keystrand/keystrand/internal/platform/errors"
)

// Ceremony is the client data type for a WebAuthn operation.
type Ceremony string

const (
	// CeremonyCreate is the client data type for registration responses.
	CeremonyCreate Ceremony = "webauthn.create"
	// CeremonyGet is the client data type for authentication responses.
	CeremonyGet Ceremony = "webauthn.get"
)

var (
	// ErrMalformedClientData indicates client data that does not parse.
	ErrMalformedClientData = apperrors.New(apperrors.CodeMalformedClientData, "client data could not be parsed")
	// ErrTypeMismatch indicates client data produced for a different ceremony.
	ErrTypeMismatch = apperrors.New(apperrors.CodeTypeMismatch, "client data type does not match ceremony")
	// ErrChallengeMismatch indicates client data bound to a different challenge.
	ErrChallengeMismatch = apperrors.New(apperrors.CodeChallengeMismatch, "client data challenge does not match issued challenge")
	// ErrOriginMismatch indicates client data produced for a different origin.
	ErrOriginMismatch = apperrors.New(apperrors.CodeOriginMismatch, "client data origin does not match relying party origin")
)

// clientDataChallenge carries the challenge embedded in client data JSON,
// which the client runtime encodes as unpadded base64url.
type clientDataChallenge []byte

func (c *clientDataChallenge) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	raw, err := Decode(s)
	if err != nil {
		return err
	}
	*c = clientDataChallenge(raw)
	return nil
}

// Equal compares the embedded challenge against the issued bytes without
// leaking the position of the first differing byte.
func (c clientDataChallenge) Equal(b []byte) bool {
	return subtle.ConstantTimeCompare([]byte(c), b) == 1
}

// clientData is the structure the client runtime records for both ceremonies.
type clientData struct {
	Type        string              `json:"type"`
	Challenge   clientDataChallenge `json:"challenge"`
	Origin      string              `json:"origin"`
	CrossOrigin bool                `json:"crossOrigin"`
}

// ValidateClientData parses raw client data JSON and checks the ceremony
// type, the embedded challenge, and the origin. A nil return means every
// check passed; failures carry one of the exported client data errors.
func ValidateClientData(raw []byte, ceremony Ceremony, challenge []byte, origin string) error {
	var data clientData
	if err := json.Unmarshal(raw, &data); err != nil {
		return apperrors.Wrap(apperrors.CodeMalformedClientData, "parse client data", err)
	}
	if data.Type != string(ceremony) {
		return ErrTypeMismatch
	}
	if !data.Challenge.Equal(challenge) {
		return ErrChallengeMismatch
	}
	if data.Origin != origin {
		return ErrOriginMismatch
	}
	return nil
}
