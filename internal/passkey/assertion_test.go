package passkey

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"errors"
	"testing"
)

type assertionFixture struct {
	in       AssertionInput
	key      *ecdsa.PrivateKey
	authData []byte
	payload  []byte
}

func newAssertionFixture(t *testing.T, challenge []byte) assertionFixture {
	t.Helper()
	key := newES256Key(t)
	spki, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	if err != nil {
		t.Fatalf("marshal public key: %v", err)
	}

	authData := buildAuthData(t, "auth.example.com", flagUserPresent|flagUserVerified, 12, nil, nil)
	clientDataJSON := buildClientData(t, CeremonyGet, challenge, testOrigin)
	payload := signedPayload(authData, clientDataJSON)

	sig, err := ecdsa.SignASN1(rand.Reader, key, payload)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	return assertionFixture{
		in: AssertionInput{
			EncodedClientData:        Encode(clientDataJSON),
			EncodedAuthenticatorData: Encode(authData),
			EncodedSignature:         Encode(sig),
			Challenge:                challenge,
			PublicKey:                spki,
			Algorithm:                AlgorithmES256,
		},
		key:      key,
		authData: authData,
		payload:  payload,
	}
}

func signedPayload(authData, clientDataJSON []byte) []byte {
	clientDataHash := sha256.Sum256(clientDataJSON)
	payload := append([]byte{}, authData...)
	payload = append(payload, clientDataHash[:]...)
	digest := sha256.Sum256(payload)
	return digest[:]
}

func TestVerifyAssertionES256DER(t *testing.T) {
	challenge := []byte("fedcba9876543210fedcba9876543210")
	fix := newAssertionFixture(t, challenge)

	assertion, err := testRelyingParty().VerifyAssertion(fix.in)
	if err != nil {
		t.Fatalf("verify assertion: %v", err)
	}
	if assertion.Counter != 12 {
		t.Fatalf("expected counter 12, got %d", assertion.Counter)
	}
	if !assertion.Flags.UserVerified() {
		t.Fatal("expected user verified flag")
	}
}

func TestVerifyAssertionES256RawSignature(t *testing.T) {
	challenge := []byte("fedcba9876543210fedcba9876543210")
	fix := newAssertionFixture(t, challenge)

	r, s, err := ecdsa.Sign(rand.Reader, fix.key, fix.payload)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	raw := append(r.FillBytes(make([]byte, 32)), s.FillBytes(make([]byte, 32))...)
	fix.in.EncodedSignature = Encode(raw)

	if _, err := testRelyingParty().VerifyAssertion(fix.in); err != nil {
		t.Fatalf("verify raw signature: %v", err)
	}
}

func TestVerifyAssertionRS256(t *testing.T) {
	challenge := []byte("fedcba9876543210fedcba9876543210")
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generate rsa key: %v", err)
	}
	spki, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	if err != nil {
		t.Fatalf("marshal public key: %v", err)
	}

	authData := buildAuthData(t, "auth.example.com", flagUserPresent, 3, nil, nil)
	clientDataJSON := buildClientData(t, CeremonyGet, challenge, testOrigin)
	sig, err := rsa.SignPKCS1v15(rand.Reader, key, crypto.SHA256, signedPayload(authData, clientDataJSON))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	in := AssertionInput{
		EncodedClientData:        Encode(clientDataJSON),
		EncodedAuthenticatorData: Encode(authData),
		EncodedSignature:         Encode(sig),
		Challenge:                challenge,
		PublicKey:                spki,
		Algorithm:                AlgorithmRS256,
	}
	if _, err := testRelyingParty().VerifyAssertion(in); err != nil {
		t.Fatalf("verify RS256 assertion: %v", err)
	}
}

func TestVerifyAssertionTamperedSignature(t *testing.T) {
	challenge := []byte("fedcba9876543210fedcba9876543210")
	fix := newAssertionFixture(t, challenge)

	sig, err := Decode(fix.in.EncodedSignature)
	if err != nil {
		t.Fatalf("decode signature: %v", err)
	}
	sig[len(sig)-1] ^= 0x01
	fix.in.EncodedSignature = Encode(sig)

	_, err = testRelyingParty().VerifyAssertion(fix.in)
	if !errors.Is(err, ErrSignatureInvalid) {
		t.Fatalf("expected SignatureInvalid, got %v", err)
	}
}

func TestVerifyAssertionWrongKey(t *testing.T) {
	challenge := []byte("fedcba9876543210fedcba9876543210")
	fix := newAssertionFixture(t, challenge)

	other := newES256Key(t)
	spki, err := x509.MarshalPKIXPublicKey(&other.PublicKey)
	if err != nil {
		t.Fatalf("marshal public key: %v", err)
	}
	fix.in.PublicKey = spki

	if _, err := testRelyingParty().VerifyAssertion(fix.in); !errors.Is(err, ErrSignatureInvalid) {
		t.Fatalf("expected SignatureInvalid, got %v", err)
	}
}

func TestVerifyAssertionChallengeMismatch(t *testing.T) {
	challenge := []byte("fedcba9876543210fedcba9876543210")
	fix := newAssertionFixture(t, challenge)
	fix.in.Challenge = []byte("this is not the issued challenge")

	if _, err := testRelyingParty().VerifyAssertion(fix.in); !errors.Is(err, ErrChallengeMismatch) {
		t.Fatalf("expected ChallengeMismatch, got %v", err)
	}
}

func TestVerifyAssertionWrongCeremony(t *testing.T) {
	challenge := []byte("fedcba9876543210fedcba9876543210")
	fix := newAssertionFixture(t, challenge)

	// Re-sign a create-type client data so only the ceremony check can fail.
	clientDataJSON := buildClientData(t, CeremonyCreate, challenge, testOrigin)
	sig, err := ecdsa.SignASN1(rand.Reader, fix.key, signedPayload(fix.authData, clientDataJSON))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	fix.in.EncodedClientData = Encode(clientDataJSON)
	fix.in.EncodedSignature = Encode(sig)

	if _, err := testRelyingParty().VerifyAssertion(fix.in); !errors.Is(err, ErrTypeMismatch) {
		t.Fatalf("expected TypeMismatch, got %v", err)
	}
}

func TestVerifyAssertionOriginMismatch(t *testing.T) {
	challenge := []byte("fedcba9876543210fedcba9876543210")
	fix := newAssertionFixture(t, challenge)

	clientDataJSON := buildClientData(t, CeremonyGet, challenge, "https://evil.example.com")
	sig, err := ecdsa.SignASN1(rand.Reader, fix.key, signedPayload(fix.authData, clientDataJSON))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	fix.in.EncodedClientData = Encode(clientDataJSON)
	fix.in.EncodedSignature = Encode(sig)

	if _, err := testRelyingParty().VerifyAssertion(fix.in); !errors.Is(err, ErrOriginMismatch) {
		t.Fatalf("expected OriginMismatch, got %v", err)
	}
}

func TestVerifyAssertionDifferentRelyingParty(t *testing.T) {
	challenge := []byte("fedcba9876543210fedcba9876543210")
	fix := newAssertionFixture(t, challenge)

	rp := &RelyingParty{ID: "other.example.com", Origin: testOrigin}
	if _, err := rp.VerifyAssertion(fix.in); !errors.Is(err, ErrSignatureInvalid) {
		t.Fatalf("expected SignatureInvalid, got %v", err)
	}
}

func TestVerifyAssertionMalformedClientData(t *testing.T) {
	challenge := []byte("fedcba9876543210fedcba9876543210")
	fix := newAssertionFixture(t, challenge)
	fix.in.EncodedClientData = Encode([]byte("{truncated"))

	if _, err := testRelyingParty().VerifyAssertion(fix.in); !errors.Is(err, ErrMalformedClientData) {
		t.Fatalf("expected MalformedClientData, got %v", err)
	}
}

func TestValidatePublicKey(t *testing.T) {
	ecKey := newES256Key(t)
	ecSPKI, err := x509.MarshalPKIXPublicKey(&ecKey.PublicKey)
	if err != nil {
		t.Fatalf("marshal ec key: %v", err)
	}
	rsaKey, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generate rsa key: %v", err)
	}
	rsaSPKI, err := x509.MarshalPKIXPublicKey(&rsaKey.PublicKey)
	if err != nil {
		t.Fatalf("marshal rsa key: %v", err)
	}

	if err := ValidatePublicKey(AlgorithmES256, ecSPKI); err != nil {
		t.Fatalf("ES256 key rejected: %v", err)
	}
	if err := ValidatePublicKey(AlgorithmRS256, rsaSPKI); err != nil {
		t.Fatalf("RS256 key rejected: %v", err)
	}
	if err := ValidatePublicKey(AlgorithmES256, rsaSPKI); err == nil {
		t.Fatal("expected rejection of RSA key declared as ES256")
	}
	if err := ValidatePublicKey(AlgorithmRS256, ecSPKI); err == nil {
		t.Fatal("expected rejection of EC key declared as RS256")
	}
	if err := ValidatePublicKey(AlgorithmES256, []byte("not a key")); err == nil {
		t.Fatal("expected rejection of malformed key bytes")
	}
}
