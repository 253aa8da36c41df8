package authority_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/calvinalkan/echobuf/pkg/authority"
	"github.com/calvinalkan/echobuf/pkg/slotaddr"
)

func mustKey(t *testing.T) *authority.Key {
	t.Helper()

	key, err := authority.GenerateKey()
	require.NoError(t, err, "GenerateKey should succeed")

	return key
}

func Test_VerifyWrite_Accepts_Signature_When_Signed_By_Identity(t *testing.T) {
	t.Parallel()

	key := mustKey(t)
	addr := slotaddr.Derive("authority", key.Identity(), 1)
	payload := []byte("hello")

	sig := key.SignWrite(addr, payload)

	require.NoError(t, authority.VerifyWrite(key.Identity(), addr, payload, sig))
	assert.Len(t, key.Identity(), authority.IdentitySize)
}

func Test_VerifyWrite_Returns_ErrBadSignature_When_Message_Or_Signer_Differs(t *testing.T) {
	t.Parallel()

	key, other := mustKey(t), mustKey(t)
	addr := slotaddr.Derive("authority", key.Identity(), 1)
	sig := key.SignWrite(addr, []byte("hello"))

	testCases := []struct {
		name     string
		identity []byte
		addr     slotaddr.Address
		payload  []byte
		sig      []byte
	}{
		{name: "OtherPayload", identity: key.Identity(), addr: addr, payload: []byte("hellO"), sig: sig},
		{name: "OtherAddress", identity: key.Identity(), addr: slotaddr.Derive("authority", key.Identity(), 2), payload: []byte("hello"), sig: sig},
		{name: "OtherIdentity", identity: other.Identity(), addr: addr, payload: []byte("hello"), sig: sig},
		{name: "Garbage", identity: key.Identity(), addr: addr, payload: []byte("hello"), sig: []byte{0x30, 0x01}},
		{name: "Empty", identity: key.Identity(), addr: addr, payload: []byte("hello"), sig: nil},
	}

	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			t.Parallel()

			err := authority.VerifyWrite(testCase.identity, testCase.addr, testCase.payload, testCase.sig)
			require.ErrorIs(t, err, authority.ErrBadSignature)
		})
	}
}

func Test_VerifyWrite_Returns_ErrInvalidIdentity_When_Identity_Malformed(t *testing.T) {
	t.Parallel()

	key := mustKey(t)
	addr := slotaddr.Derive("authority", key.Identity(), 1)
	sig := key.SignWrite(addr, nil)

	for _, identity := range [][]byte{nil, []byte("A"), make([]byte, authority.IdentitySize)} {
		err := authority.VerifyWrite(identity, addr, nil, sig)
		require.ErrorIs(t, err, authority.ErrInvalidIdentity, "identity %x", identity)
	}
}

func Test_ParseKey_Roundtrips_When_Hex_Valid(t *testing.T) {
	t.Parallel()

	key := mustKey(t)

	parsed, err := authority.ParseKey(key.Hex())
	require.NoError(t, err)
	assert.Equal(t, key.Identity(), parsed.Identity(), "parsed key should have the same identity")
}

func Test_ParseKey_Returns_ErrInvalidKey_When_Input_Bad(t *testing.T) {
	t.Parallel()

	for _, input := range []string{"", "zz", "abcd", strings.Repeat("00", 32), strings.Repeat("ab", 33)} {
		_, err := authority.ParseKey(input)
		require.ErrorIs(t, err, authority.ErrInvalidKey, "input %q", input)
	}
}
