// Package errors provides structured error handling with machine-readable codes.
package errors

import "net/http"

// Code is a machine-readable error code.
type Code string

const (
	// CodeUnknown represents an unknown error.
	CodeUnknown Code = "UNKNOWN"

	// Challenge errors
	CodeRandomnessFailure Code = "RANDOMNESS_FAILURE"
	CodeChallengeNotFound Code = "CHALLENGE_NOT_FOUND"

	// Client data errors
	CodeMalformedClientData Code = "MALFORMED_CLIENT_DATA"
	CodeTypeMismatch        Code = "TYPE_MISMATCH"
	CodeChallengeMismatch   Code = "CHALLENGE_MISMATCH"
	CodeOriginMismatch      Code = "ORIGIN_MISMATCH"

	// Verifier errors
	CodeUnsupportedAlgorithm Code = "UNSUPPORTED_ALGORITHM"
	CodeAttestationInvalid   Code = "ATTESTATION_INVALID"
	CodeSignatureInvalid     Code = "SIGNATURE_INVALID"

	// User errors
	CodeInvalidEmail   Code = "INVALID_EMAIL"
	CodeDuplicateEmail Code = "DUPLICATE_EMAIL"

	// Credential errors
	CodeCredentialNotFound  Code = "CREDENTIAL_NOT_FOUND"
	CodeDuplicateCredential Code = "DUPLICATE_CREDENTIAL"

	// Session errors
	CodeNotAuthenticated Code = "NOT_AUTHENTICATED"

	// Storage errors
	CodeNotFound Code = "NOT_FOUND"
)

// HTTPStatus maps domain codes to HTTP status codes.
func (c Code) HTTPStatus() int {
	switch c {
	// Bad request - validation and verification failures
	case CodeMalformedClientData,
		CodeTypeMismatch,
		CodeChallengeMismatch,
		CodeOriginMismatch,
		CodeUnsupportedAlgorithm,
		CodeAttestationInvalid,
		CodeSignatureInvalid,
		CodeInvalidEmail:
		return http.StatusBadRequest

	// Not found - missing or already-consumed records
	case CodeChallengeNotFound,
		CodeCredentialNotFound,
		CodeNotFound:
		return http.StatusNotFound

	// Conflict - uniqueness violations
	case CodeDuplicateEmail,
		CodeDuplicateCredential:
		return http.StatusConflict

	case CodeNotAuthenticated:
		return http.StatusUnauthorized

	default:
		return http.StatusInternalServerError
	}
}

// Sensitive reports whether distinguishing this code externally would give an
// attacker an oracle for probing credential validity. Sensitive codes are
// collapsed to a single generic message at the boundary.
func (c Code) Sensitive() bool {
	switch c {
	case CodeMalformedClientData,
		CodeTypeMismatch,
		CodeChallengeMismatch,
		CodeOriginMismatch,
		CodeAttestationInvalid,
		CodeSignatureInvalid,
		CodeCredentialNotFound:
		return true
	}
	return false
}
