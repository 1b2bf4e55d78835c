package passkey

import (
	"fmt"

	"github.com/go-webauthn/webauthn/protocol/webauthncose"
	apperrors "github.com/keystrand/keystrand/internal/platform/errors"
)

// Algorithm identifies a supported credential signature scheme.
type Algorithm string

const (
	// AlgorithmES256 is ECDSA over P-256 with SHA-256 (COSE -7).
	AlgorithmES256 Algorithm = "ES256"
	// AlgorithmRS256 is RSASSA-PKCS1-v1_5 with SHA-256 (COSE -257).
	AlgorithmRS256 Algorithm = "RS256"
)

// ErrUnsupportedAlgorithm indicates a COSE algorithm outside the supported set.
var ErrUnsupportedAlgorithm = apperrors.New(apperrors.CodeUnsupportedAlgorithm, "unsupported credential algorithm")

// AlgorithmFromCOSE maps a COSE algorithm identifier from a registration
// request to a supported Algorithm.
func AlgorithmFromCOSE(alg int64) (Algorithm, error) {
	switch webauthncose.COSEAlgorithmIdentifier(alg) {
	case webauthncose.AlgES256:
		return AlgorithmES256, nil
	case webauthncose.AlgRS256:
		return AlgorithmRS256, nil
	default:
		return "", apperrors.Wrap(apperrors.CodeUnsupportedAlgorithm, fmt.Sprintf("unsupported credential algorithm %d", alg), ErrUnsupportedAlgorithm)
	}
}

// ParseAlgorithm restores an Algorithm from its stored string form.
func ParseAlgorithm(s string) (Algorithm, error) {
	switch Algorithm(s) {
	case AlgorithmES256, AlgorithmRS256:
		return Algorithm(s), nil
	default:
		return "", apperrors.Wrap(apperrors.CodeUnsupportedAlgorithm, fmt.Sprintf("unknown stored algorithm %q", s), ErrUnsupportedAlgorithm)
	}
}

// COSE returns the COSE identifier for the algorithm.
func (a Algorithm) COSE() webauthncose.COSEAlgorithmIdentifier {
	switch a {
	case AlgorithmES256:
		return webauthncose.AlgES256
	case AlgorithmRS256:
		return webauthncose.AlgRS256
	}
	return 0
}
