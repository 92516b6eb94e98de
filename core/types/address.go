package types

import (
	"encoding/hex"
	"fmt"
	"strings"
)

// Address is the fixed-width external identity of a caller. The zero value is
// the "none" sentinel used for unset buyer fields.
type Address [20]byte

// ZeroAddress is the reserved sentinel meaning "unset".
var ZeroAddress Address

// ParseAddress decodes a 0x-prefixed (or bare) 40-character hex string.
func ParseAddress(s string) (Address, error) {
	trimmed := strings.TrimSpace(s)
	trimmed = strings.TrimPrefix(trimmed, "0x")
	trimmed = strings.TrimPrefix(trimmed, "0X")
	raw, err := hex.DecodeString(trimmed)
	if err != nil {
		return Address{}, fmt.Errorf("invalid address %q: %w", s, err)
	}
	if len(raw) != len(Address{}) {
		return Address{}, fmt.Errorf("invalid address %q: expected %d bytes, got %d", s, len(Address{}), len(raw))
	}
	var addr Address
	copy(addr[:], raw)
	return addr, nil
}

// Hex renders the address as a 0x-prefixed lowercase hex string.
func (a Address) Hex() string {
	return "0x" + hex.EncodeToString(a[:])
}

// IsZero reports whether the address is the unset sentinel.
func (a Address) IsZero() bool {
	return a == ZeroAddress
}

// Bytes returns a copy of the raw address bytes.
func (a Address) Bytes() []byte {
	return append([]byte(nil), a[:]...)
}
