package chacha20

import (
	"errors"
)

var (
	ErrNonUniqueNonce  = errors.New("critical decryption error: nonce was not unique")
	ErrPacketTooShort  = errors.New("data packet too short")
	ErrInvalidKeyBytes = errors.New("invalid data channel key")
)
