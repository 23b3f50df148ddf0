package models

import (
	"encoding/hex"

	"github.com/pkg/errors"
)

// HashSize is the length in bytes of a block or transaction hash.
const HashSize = 32

// Hash is a 256-bit block or transaction identifier. It is rendered as
// lowercase hex in JSON and in leveldb keys.
type Hash [HashSize]byte

// ErrInvalidHash is returned when a string is not a 64 character hex hash.
var ErrInvalidHash = errors.New("invalid hash")

// NewHashFromString parses a 64 character hex string.
func NewHashFromString(s string) (Hash, error) {
	var h Hash
	if len(s) != 2*HashSize {
		return h, errors.Wrapf(ErrInvalidHash, "expected %d hex chars, got %d", 2*HashSize, len(s))
	}
	if _, err := hex.Decode(h[:], []byte(s)); err != nil {
		return h, errors.Wrapf(ErrInvalidHash, "%s: %v", s, err)
	}
	return h, nil
}

func (h Hash) String() string {
	return hex.EncodeToString(h[:])
}

// IsZero reports whether h is the all-zero hash.
func (h Hash) IsZero() bool {
	return h == Hash{}
}

// MarshalText implements encoding.TextMarshaler, which also covers JSON.
func (h Hash) MarshalText() ([]byte, error) {
	return []byte(h.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler. An empty string
// decodes to the zero hash.
func (h *Hash) UnmarshalText(text []byte) error {
	if len(text) == 0 {
		*h = Hash{}
		return nil
	}
	parsed, err := NewHashFromString(string(text))
	if err != nil {
		return err
	}
	*h = parsed
	return nil
}
