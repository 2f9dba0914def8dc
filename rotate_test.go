package secredit

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRotate(t *testing.T) {
	engine := newTestEngine(t)

	old, err := engine.EncryptWithKDF("secret data", testPassword, 2)
	require.NoError(t, err)

	rotated, err := engine.Rotate(old, testPassword, "brand-new-key")
	require.NoError(t, err)
	require.NotEqual(t, old, rotated)

	id, ok, err := engine.ExtractKDF(rotated)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, engine.Registry().Default(), id)

	text, err := engine.Decrypt(rotated, "brand-new-key")
	require.NoError(t, err)
	require.Equal(t, "secret data", text)

	_, err = engine.Decrypt(rotated, testPassword)
	require.ErrorIs(t, err, ErrWrongKey)
}

func TestRotate_Legacy(t *testing.T) {
	engine := newTestEngine(t)
	token, err := engine.EncryptWithKDF("legacy data", testPassword, 4)
	require.NoError(t, err)

	rotated, err := engine.Rotate(legacyToken(t, token), testPassword, testPassword)
	require.NoError(t, err)
	require.False(t, engine.NeedsRotation(rotated))

	text, err := engine.Decrypt(rotated, testPassword)
	require.NoError(t, err)
	require.Equal(t, "legacy data", text)
}

func TestRotate_Plaintext(t *testing.T) {
	engine := newTestEngine(t)
	plain, err := engine.EncodePlaintext("open data")
	require.NoError(t, err)

	same, err := engine.Rotate(plain, "", "")
	require.NoError(t, err)
	require.Equal(t, plain, same)

	encrypted, err := engine.Rotate(plain, "", testPassword)
	require.NoError(t, err)
	text, err := engine.Decrypt(encrypted, testPassword)
	require.NoError(t, err)
	require.Equal(t, "open data", text)

	// An empty new key turns an encrypted token back into plaintext.
	back, err := engine.Rotate(encrypted, testPassword, "")
	require.NoError(t, err)
	require.True(t, IsPlaintext(back))
	text, err = engine.DecodePlaintext(back)
	require.NoError(t, err)
	require.Equal(t, "open data", text)
}

func TestRotate_Errors(t *testing.T) {
	engine := newTestEngine(t)
	token, err := engine.Encrypt("secret data", testPassword)
	require.NoError(t, err)

	_, err = engine.Rotate(token, "wrongpassword1", "brand-new-key")
	require.ErrorIs(t, err, ErrWrongKey)

	_, err = engine.Rotate(token, testPassword, "short")
	require.ErrorIs(t, err, ErrWeakKey)

	_, err = engine.Rotate("1.!!!!", testPassword, "brand-new-key")
	require.ErrorIs(t, err, ErrDecode)
}

func TestNeedsRotation(t *testing.T) {
	engine := newTestEngine(t)
	current, err := engine.Encrypt("x", testPassword)
	require.NoError(t, err)
	older, err := engine.EncryptWithKDF("x", testPassword, 3)
	require.NoError(t, err)
	plain, err := EncodePlaintext("x")
	require.NoError(t, err)

	require.False(t, engine.NeedsRotation(current))
	require.True(t, engine.NeedsRotation(older))
	require.True(t, engine.NeedsRotation(legacyToken(t, older)))
	require.False(t, engine.NeedsRotation(plain))
	require.False(t, engine.NeedsRotation(""))
	require.False(t, engine.NeedsRotation("1.!!!!"))
}

func TestExtractKDF(t *testing.T) {
	engine := newTestEngine(t)
	token, err := engine.EncryptWithKDF("x", testPassword, 4)
	require.NoError(t, err)

	id, ok, err := engine.ExtractKDF(token)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, KDFID(4), id)

	_, ok, err = engine.ExtractKDF(legacyToken(t, token))
	require.NoError(t, err)
	require.False(t, ok)

	_, _, err = engine.ExtractKDF("")
	require.ErrorIs(t, err, ErrDecode)
}
