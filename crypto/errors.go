package crypto

import "errors"

var (
	// ErrInvalidInput indicates empty plaintext or a missing participant ID.
	ErrInvalidInput = errors.New("invalid input")
	// ErrUnsupportedVersion indicates an envelope produced by an unknown scheme.
	ErrUnsupportedVersion = errors.New("unsupported envelope version")
	// ErrMalformedEnvelope indicates an envelope that cannot be parsed or is
	// missing required fields.
	ErrMalformedEnvelope = errors.New("malformed envelope")
	// ErrIntegrityFailure indicates the integrity check failed: the envelope
	// was tampered with or decrypted under the wrong conversation key.
	ErrIntegrityFailure = errors.New("integrity verification failed")
)
