// Package slotaddr derives stable slot addresses from a namespace, an owner
// identity and a 64-bit seed.
//
// Derivation is a pure function: the same inputs always produce the same
// [Address], and addresses are never stored, only recomputed.
//
//	addr := slotaddr.Derive("echo", ownerKey, 1)
//	fmt.Println(addr) // base58 text form
package slotaddr

import (
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/mr-tron/base58"
	"golang.org/x/crypto/sha3"
)

// Size is the length of an [Address] in bytes.
const Size = 32

// domainTag separates slot addresses from any other SHA3-256 use of the
// same inputs.
const domainTag = "echobuf/slot/v1"

// ErrInvalid indicates a string could not be parsed as an [Address].
var ErrInvalid = errors.New("slotaddr: invalid address")

// Address identifies one storage slot.
type Address [Size]byte

// Derive computes the address of the slot owned by owner under namespace.
//
// Namespace and owner are length-prefixed before hashing, so no two
// distinct (namespace, owner, seed) triples share a preimage.
func Derive(namespace string, owner []byte, seed uint64) Address {
	buf := make([]byte, 0, len(domainTag)+2*binary.MaxVarintLen64+len(namespace)+len(owner)+8)
	buf = append(buf, domainTag...)
	buf = binary.AppendUvarint(buf, uint64(len(namespace)))
	buf = append(buf, namespace...)
	buf = binary.AppendUvarint(buf, uint64(len(owner)))
	buf = append(buf, owner...)
	buf = binary.LittleEndian.AppendUint64(buf, seed)

	h := sha3.New256()
	_, _ = h.Write(buf)

	var addr Address

	h.Sum(addr[:0])

	return addr
}

// String returns the base58 form of the address.
func (a Address) String() string {
	return base58.Encode(a[:])
}

// Hex returns the lowercase hex form of the address.
func (a Address) Hex() string {
	return hex.EncodeToString(a[:])
}

// IsZero reports whether a is the zero address.
func (a Address) IsZero() bool {
	return a == Address{}
}

// MarshalText implements [encoding.TextMarshaler] using the base58 form.
func (a Address) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

// UnmarshalText implements [encoding.TextUnmarshaler]. See [Parse].
func (a *Address) UnmarshalText(text []byte) error {
	parsed, err := Parse(string(text))
	if err != nil {
		return err
	}

	*a = parsed

	return nil
}

// Parse accepts either the base58 form or a 64 character hex string.
func Parse(s string) (Address, error) {
	var addr Address

	if len(s) == 2*Size {
		raw, err := hex.DecodeString(s)
		if err == nil {
			copy(addr[:], raw)

			return addr, nil
		}
	}

	raw, err := base58.Decode(s)
	if err != nil {
		return Address{}, fmt.Errorf("%w %q: %w", ErrInvalid, s, err)
	}

	if len(raw) != Size {
		return Address{}, fmt.Errorf("%w %q: decoded %d bytes, want %d", ErrInvalid, s, len(raw), Size)
	}

	copy(addr[:], raw)

	return addr, nil
}
