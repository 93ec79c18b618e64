// Package id implements 128-bit sortable identifiers for users and clients.
//
// Bit layout, most significant first:
//
//	| timestamp ms (64) | sequence (12) | service (16) | worker (16) | random (20) |
//
// Identifiers generated by one Generator sort by creation time.
package id

import (
	"encoding/base64"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"
)

const (
	sequenceBits = 12
	serviceBits  = 16
	workerBits   = 16
	randomBits   = 20

	workerOffset   = randomBits
	serviceOffset  = workerOffset + workerBits
	sequenceOffset = serviceOffset + serviceBits

	sequenceMask = 1<<sequenceBits - 1
	serviceMask  = 1<<serviceBits - 1
	workerMask   = 1<<workerBits - 1
	randomMask   = 1<<randomBits - 1

	// Size is the binary length of an Identifier.
	Size = 16
)

// ErrInvalidIdentifier indicates an undecodable identifier.
var ErrInvalidIdentifier = errors.New("id: invalid identifier")

// Identifier is a 128-bit value. The high word is the millisecond timestamp;
// the low word packs sequence, service, worker and random bits.
type Identifier struct {
	hi, lo uint64
}

// Nil is the zero identifier.
var Nil Identifier

// Pack assembles an identifier from its fields. Fields wider than their
// slot are truncated.
func Pack(ts time.Time, sequence, service, worker uint16, random uint32) Identifier {
	return Identifier{
		hi: uint64(ts.UnixMilli()),
		lo: uint64(sequence&sequenceMask)<<sequenceOffset |
			uint64(service)<<serviceOffset |
			uint64(worker)<<workerOffset |
			uint64(random&randomMask),
	}
}

// FromUint128 builds an identifier from its high and low 64-bit words.
func FromUint128(hi, lo uint64) Identifier {
	return Identifier{hi: hi, lo: lo}
}

// Uint128 returns the high and low 64-bit words.
func (id Identifier) Uint128() (hi, lo uint64) {
	return id.hi, id.lo
}

// Timestamp returns the creation time at millisecond precision.
func (id Identifier) Timestamp() time.Time {
	return time.UnixMilli(int64(id.hi)).UTC()
}

// Sequence returns the per-millisecond sequence number.
func (id Identifier) Sequence() uint16 {
	return uint16(id.lo >> sequenceOffset & sequenceMask)
}

// Service returns the service id.
func (id Identifier) Service() uint16 {
	return uint16(id.lo >> serviceOffset & serviceMask)
}

// Worker returns the worker id.
func (id Identifier) Worker() uint16 {
	return uint16(id.lo >> workerOffset & workerMask)
}

// Random returns the 20 random bits.
func (id Identifier) Random() uint32 {
	return uint32(id.lo & randomMask)
}

// IsZero reports whether id is Nil.
func (id Identifier) IsZero() bool {
	return id == Nil
}

// Bytes returns the 16-byte big-endian encoding.
func (id Identifier) Bytes() []byte {
	b := make([]byte, Size)
	binary.BigEndian.PutUint64(b, id.hi)
	binary.BigEndian.PutUint64(b[8:], id.lo)
	return b
}

// LittleEndian returns the 16-byte little-endian encoding of the 128-bit
// value. Login payloads bind the client id in this form.
func (id Identifier) LittleEndian() []byte {
	b := make([]byte, Size)
	binary.LittleEndian.PutUint64(b, id.lo)
	binary.LittleEndian.PutUint64(b[8:], id.hi)
	return b
}

// FromBytes decodes a 16-byte big-endian identifier.
func FromBytes(b []byte) (Identifier, error) {
	if len(b) != Size {
		return Nil, fmt.Errorf("%w: expected %d bytes, got %d", ErrInvalidIdentifier, Size, len(b))
	}
	return Identifier{
		hi: binary.BigEndian.Uint64(b),
		lo: binary.BigEndian.Uint64(b[8:]),
	}, nil
}

// Hex returns 32 lowercase hex digits.
func (id Identifier) Hex() string {
	return hex.EncodeToString(id.Bytes())
}

// ParseHex decodes up to 32 hex digits. Shorter inputs are zero-extended on
// the left.
func ParseHex(s string) (Identifier, error) {
	if len(s) == 0 || len(s) > 2*Size {
		return Nil, fmt.Errorf("%w: hex length %d", ErrInvalidIdentifier, len(s))
	}
	padded := strings.Repeat("0", 2*Size-len(s)) + s
	b, err := hex.DecodeString(padded)
	if err != nil {
		return Nil, fmt.Errorf("%w: %v", ErrInvalidIdentifier, err)
	}
	return FromBytes(b)
}

// Base64 returns the URL-safe base64 encoding of Bytes.
func (id Identifier) Base64() string {
	return base64.URLEncoding.EncodeToString(id.Bytes())
}

// ParseBase64 decodes the output of Base64.
func ParseBase64(s string) (Identifier, error) {
	b, err := base64.URLEncoding.DecodeString(s)
	if err != nil {
		return Nil, fmt.Errorf("%w: %v", ErrInvalidIdentifier, err)
	}
	return FromBytes(b)
}

func (id Identifier) String() string {
	return id.Hex()
}

// MarshalText encodes id as hex.
func (id Identifier) MarshalText() ([]byte, error) {
	return []byte(id.Hex()), nil
}

// UnmarshalText decodes hex.
func (id *Identifier) UnmarshalText(text []byte) error {
	v, err := ParseHex(string(text))
	if err != nil {
		return err
	}
	*id = v
	return nil
}

// MarshalBinary encodes id as 16 big-endian bytes.
func (id Identifier) MarshalBinary() ([]byte, error) {
	return id.Bytes(), nil
}

// UnmarshalBinary decodes 16 big-endian bytes.
func (id *Identifier) UnmarshalBinary(data []byte) error {
	v, err := FromBytes(data)
	if err != nil {
		return err
	}
	*id = v
	return nil
}

// Compare orders identifiers by their 128-bit value.
func (id Identifier) Compare(other Identifier) int {
	switch {
	case id.hi < other.hi:
		return -1
	case id.hi > other.hi:
		return 1
	case id.lo < other.lo:
		return -1
	case id.lo > other.lo:
		return 1
	}
	return 0
}
