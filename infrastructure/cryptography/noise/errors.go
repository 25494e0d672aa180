package noise

import "errors"

// Handshake errors are internal only. DecodeMessage reports every failure
// as a plain false so that a remote party learns nothing about the cause.
var (
	// ErrInvalidMAC indicates the network MAC did not verify.
	ErrInvalidMAC = errors.New("network MAC verification failed")

	// ErrMsgTooShort indicates the message is too short.
	ErrMsgTooShort = errors.New("message too short")

	// ErrUnexpectedMessage indicates a message that does not fit the session state.
	ErrUnexpectedMessage = errors.New("unexpected handshake message")

	// ErrSenderMismatch indicates a message from a different remote slot.
	ErrSenderMismatch = errors.New("handshake sender mismatch")

	// ErrInvalidPrivateKey indicates a malformed X25519 private key.
	ErrInvalidPrivateKey = errors.New("invalid X25519 private key")

	// ErrPublicKeyMismatch indicates a configured public key that does not
	// belong to the configured private key.
	ErrPublicKeyMismatch = errors.New("public key does not match private key")

	// ErrEmptyNetworkName indicates a missing network name.
	ErrEmptyNetworkName = errors.New("network name is empty")
)
