// Package authority proves control of a slot owner identity.
//
// An identity is a 33-byte compressed secp256k1 public key. Its holder
// signs (address, payload) with the matching private key, and the dispatch
// layer verifies the signature before calling
// [echobuf.Store.AuthorizedWrite] with the identity as caller.
//
// The store itself only compares identity bytes; this package is what makes
// that comparison meaningful.
package authority

import (
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/ecdsa"
	"github.com/btcsuite/btcd/chaincfg/chainhash"

	"github.com/calvinalkan/echobuf/pkg/slotaddr"
)

// IdentitySize is the length of a compressed public key identity.
const IdentitySize = btcec.PubKeyBytesLenCompressed

// writeDomain separates write signatures from any other use of the key.
const writeDomain = "echobuf/write/v1"

var (
	// ErrInvalidKey is returned when a private key cannot be parsed.
	ErrInvalidKey = errors.New("authority: invalid private key")

	// ErrInvalidIdentity is returned when identity bytes are not a valid
	// compressed public key.
	ErrInvalidIdentity = errors.New("authority: invalid identity")

	// ErrBadSignature is returned when a signature is malformed or does not
	// verify against the identity.
	ErrBadSignature = errors.New("authority: bad signature")
)

// Key is a secp256k1 signing key.
type Key struct {
	priv *btcec.PrivateKey
}

// GenerateKey returns a fresh random key.
func GenerateKey() (*Key, error) {
	priv, err := btcec.NewPrivateKey()
	if err != nil {
		return nil, fmt.Errorf("authority: generate key: %w", err)
	}

	return &Key{priv: priv}, nil
}

// ParseKey decodes a 32-byte hex private key.
func ParseKey(s string) (*Key, error) {
	raw, err := hex.DecodeString(s)
	if err != nil || len(raw) != btcec.PrivKeyBytesLen {
		return nil, ErrInvalidKey
	}

	priv, _ := btcec.PrivKeyFromBytes(raw)
	if priv.Key.IsZero() {
		return nil, ErrInvalidKey
	}

	return &Key{priv: priv}, nil
}

// Hex returns the private key as hex, the inverse of [ParseKey].
func (k *Key) Hex() string {
	return hex.EncodeToString(k.priv.Serialize())
}

// Identity returns the compressed public key bytes used as slot owner.
func (k *Key) Identity() []byte {
	return k.priv.PubKey().SerializeCompressed()
}

// SignWrite returns a DER signature authorizing payload to be written at addr.
func (k *Key) SignWrite(addr slotaddr.Address, payload []byte) []byte {
	return ecdsa.Sign(k.priv, writeDigest(addr, payload)).Serialize()
}

// VerifyWrite checks that sig authorizes payload at addr for identity.
//
// Possible errors: [ErrInvalidIdentity], [ErrBadSignature].
func VerifyWrite(identity []byte, addr slotaddr.Address, payload, sig []byte) error {
	pub, err := ParseIdentity(identity)
	if err != nil {
		return err
	}

	parsed, err := ecdsa.ParseDERSignature(sig)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrBadSignature, err)
	}

	if !parsed.Verify(writeDigest(addr, payload), pub) {
		return ErrBadSignature
	}

	return nil
}

// ParseIdentity validates identity as a compressed public key.
func ParseIdentity(identity []byte) (*btcec.PublicKey, error) {
	if len(identity) != IdentitySize {
		return nil, fmt.Errorf("%d bytes: %w", len(identity), ErrInvalidIdentity)
	}

	pub, err := btcec.ParsePubKey(identity)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidIdentity, err)
	}

	return pub, nil
}

func writeDigest(addr slotaddr.Address, payload []byte) []byte {
	msg := make([]byte, 0, len(writeDomain)+slotaddr.Size+len(payload))
	msg = append(msg, writeDomain...)
	msg = append(msg, addr[:]...)
	msg = append(msg, payload...)

	return chainhash.DoubleHashB(msg)
}
