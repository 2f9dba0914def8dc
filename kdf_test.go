package secredit

import (
	"bytes"
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDefaultRegistry(t *testing.T) {
	r := DefaultRegistry()
	require.Equal(t, DefaultKDF, r.Default())
	require.Equal(t, []KDFID{1, 4, 3, 2}, r.Candidates())

	// Trial order matches the iteration counts older links were written with.
	var iterations []int
	for _, id := range r.Candidates() {
		p, err := r.Lookup(id)
		require.NoError(t, err)
		require.Equal(t, HashSHA256, p.Hash)
		iterations = append(iterations, p.Iterations)
	}
	require.Equal(t, []int{600000, 100000, 300000, 1000000}, iterations)
}

func TestNewRegistry_Invalid(t *testing.T) {
	tests := []struct {
		name      string
		defaultID KDFID
		profiles  []KDFProfile
	}{
		{"no profiles", 1, nil},
		{"duplicate id", 1, []KDFProfile{
			{ID: 1, Iterations: 10, Hash: HashSHA256},
			{ID: 1, Iterations: 20, Hash: HashSHA256},
		}},
		{"zero iterations", 1, []KDFProfile{{ID: 1, Iterations: 0, Hash: HashSHA256}}},
		{"negative iterations", 1, []KDFProfile{{ID: 1, Iterations: -5, Hash: HashSHA256}}},
		{"unknown hash", 1, []KDFProfile{{ID: 1, Iterations: 10, Hash: "MD5"}}},
		{"missing default", 2, []KDFProfile{{ID: 1, Iterations: 10, Hash: HashSHA256}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewRegistry(tt.defaultID, tt.profiles...)
			require.ErrorIs(t, err, ErrInvalidRegistry)
		})
	}
}

func TestRegistry_CandidateOrder(t *testing.T) {
	r, err := NewRegistry(5,
		KDFProfile{ID: 2, Iterations: 1, Hash: HashSHA256},
		KDFProfile{ID: 9, Iterations: 1, Hash: HashSHA512},
		KDFProfile{ID: 5, Iterations: 1, Hash: HashSHA256},
		KDFProfile{ID: 1, Iterations: 1, Hash: HashSHA256},
	)
	require.NoError(t, err)
	require.Equal(t, []KDFID{5, 9, 2, 1}, r.Candidates())
}

func TestRegistry_CandidatesIsCopy(t *testing.T) {
	r := testRegistry()
	c := r.Candidates()
	c[0] = 99
	require.Equal(t, KDFID(1), r.Candidates()[0])
}

func TestRegistry_Lookup(t *testing.T) {
	r := testRegistry()

	p, err := r.Lookup(3)
	require.NoError(t, err)
	require.Equal(t, 30, p.Iterations)

	_, err = r.Lookup(0)
	require.ErrorIs(t, err, ErrInvalidKDF)
}

func TestRegistry_LookupIterations(t *testing.T) {
	id, err := DefaultRegistry().LookupIterations(300000)
	require.NoError(t, err)
	require.Equal(t, KDFID(3), id)

	id, err = DefaultRegistry().LookupIterations(600000)
	require.NoError(t, err)
	require.Equal(t, DefaultKDF, id)

	_, err = DefaultRegistry().LookupIterations(12345)
	require.ErrorIs(t, err, ErrInvalidKDF)
}

func TestDeriveKey_KnownVector(t *testing.T) {
	r, err := NewRegistry(1, KDFProfile{ID: 1, Iterations: 1, Hash: HashSHA256})
	require.NoError(t, err)

	key, err := r.DeriveKey("password", []byte("salt"), 1)
	require.NoError(t, err)
	require.Equal(t, "120fb6cffcf8b32c43e7225256c4f837a86548c92ccc35480805987cb70be17b", hex.EncodeToString(key))
}

func TestDeriveKey_Properties(t *testing.T) {
	r := testRegistry()
	salt := bytes.Repeat([]byte{9}, saltSize)

	a, err := r.DeriveKey(testPassword, salt, 1)
	require.NoError(t, err)
	require.Len(t, a, keySize)

	b, err := r.DeriveKey(testPassword, salt, 1)
	require.NoError(t, err)
	require.Equal(t, a, b, "derivation is deterministic")

	c, err := r.DeriveKey(testPassword, salt, 2)
	require.NoError(t, err)
	require.NotEqual(t, a, c, "profiles yield different keys")

	d, err := r.DeriveKey(testPassword, bytes.Repeat([]byte{8}, saltSize), 1)
	require.NoError(t, err)
	require.NotEqual(t, a, d, "salts yield different keys")

	_, err = r.DeriveKey(testPassword, salt, 77)
	require.ErrorIs(t, err, ErrInvalidKDF)
}

func TestDeriveVaultKeys(t *testing.T) {
	masterKey := []byte("01234567890123456789012345678901")

	keys1, err := deriveVaultKeys(masterKey)
	require.NoError(t, err)
	keys2, err := deriveVaultKeys(masterKey)
	require.NoError(t, err)
	require.Equal(t, keys1.check, keys2.check)
	require.Equal(t, keys1.entry, keys2.entry)
	require.False(t, bytes.Equal(keys1.check[:], keys1.entry[:]),
		"check and entry keys should be different")

	other, err := deriveVaultKeys([]byte("01234567890123456789012345678902"))
	require.NoError(t, err)
	require.NotEqual(t, keys1.check, other.check)
	require.NotEqual(t, keys1.entry, other.entry)
}

func TestDeriveVaultKeys_InvalidKeySize(t *testing.T) {
	for _, n := range []int{0, 16, 31, 33, 64} {
		_, err := deriveVaultKeys(make([]byte, n))
		require.Error(t, err, "size %d", n)
	}
}

func TestVaultKeys_Zero(t *testing.T) {
	keys, err := deriveVaultKeys(bytes.Repeat([]byte{1}, keySize))
	require.NoError(t, err)
	keys.zero()
	require.Equal(t, [32]byte{}, keys.check)
	require.Equal(t, [32]byte{}, keys.entry)
}
