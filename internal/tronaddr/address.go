// Package tronaddr converts Tron addresses between their hexadecimal,
// base58check and binary forms. The binary form is the 21-byte encoding
// used by indexed event tables (0x41 prefix byte + 20-byte body).
package tronaddr

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/mr-tron/base58"
)

// Size is the length of a binary Tron address in bytes.
const Size = 21

// Prefix is the network prefix byte of a mainnet Tron address.
const Prefix = 0x41

// checksumSize is the number of trailing checksum bytes in base58check form.
const checksumSize = 4

// ErrInvalidAddress is wrapped by all parse failures. Malformed input fails
// here instead of silently matching zero rows downstream.
var ErrInvalidAddress = errors.New("invalid tron address")

// Address is a binary Tron address.
type Address [Size]byte

// Zero reports whether the address is the zero value.
func (a Address) Zero() bool {
	return a == Address{}
}

// Bytes returns the address as a byte slice.
func (a Address) Bytes() []byte {
	return a[:]
}

// Hex returns the 42-character lowercase hex form, e.g. "41a614f8…".
func (a Address) Hex() string {
	return hex.EncodeToString(a[:])
}

// Base58 returns the base58check T-form of the address.
func (a Address) Base58() string {
	sum := checksum(a[:])
	payload := make([]byte, 0, Size+checksumSize)
	payload = append(payload, a[:]...)
	payload = append(payload, sum...)
	return base58.Encode(payload)
}

// String returns the base58check form.
func (a Address) String() string {
	return a.Base58()
}

// FromHex parses a hex-encoded address. Both the full 42-character "41…"
// form and the bare 40-character body (with or without "0x") are accepted.
func FromHex(s string) (Address, error) {
	var a Address

	h := strings.TrimPrefix(strings.TrimSpace(s), "0x")
	raw, err := hex.DecodeString(h)
	if err != nil {
		return a, fmt.Errorf("%w: decode hex %q: %v", ErrInvalidAddress, s, err)
	}

	switch len(raw) {
	case Size:
		if raw[0] != Prefix {
			return a, fmt.Errorf("%w: unexpected prefix byte 0x%02x", ErrInvalidAddress, raw[0])
		}
		copy(a[:], raw)
	case Size - 1:
		a[0] = Prefix
		copy(a[1:], raw)
	default:
		return a, fmt.Errorf("%w: hex form must decode to %d or %d bytes, got %d", ErrInvalidAddress, Size, Size-1, len(raw))
	}

	return a, nil
}

// FromBase58 parses a base58check T-form address and verifies its checksum.
func FromBase58(s string) (Address, error) {
	var a Address

	raw, err := base58.Decode(strings.TrimSpace(s))
	if err != nil {
		return a, fmt.Errorf("%w: decode base58 %q: %v", ErrInvalidAddress, s, err)
	}
	if len(raw) != Size+checksumSize {
		return a, fmt.Errorf("%w: base58 form must decode to %d bytes, got %d", ErrInvalidAddress, Size+checksumSize, len(raw))
	}

	body, sum := raw[:Size], raw[Size:]
	if body[0] != Prefix {
		return a, fmt.Errorf("%w: unexpected prefix byte 0x%02x", ErrInvalidAddress, body[0])
	}
	want := checksum(body)
	for i := range sum {
		if sum[i] != want[i] {
			return a, fmt.Errorf("%w: checksum mismatch", ErrInvalidAddress)
		}
	}

	copy(a[:], body)
	return a, nil
}

// Parse accepts either the hex or the base58check form.
func Parse(s string) (Address, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Address{}, fmt.Errorf("%w: empty input", ErrInvalidAddress)
	}
	if strings.HasPrefix(s, "T") && !strings.HasPrefix(s, "0x") {
		return FromBase58(s)
	}
	return FromHex(s)
}

// checksum computes the first 4 bytes of double-SHA256 over the binary address.
func checksum(body []byte) []byte {
	first := sha256.Sum256(body)
	second := sha256.Sum256(first[:])
	return second[:checksumSize]
}
