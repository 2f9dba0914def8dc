package secredit

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestInspect(t *testing.T) {
	engine := newTestEngine(t)
	encrypted, err := engine.EncryptWithKDF("inspect me", testPassword, 3)
	require.NoError(t, err)
	plaintext, err := EncodePlaintext("inspect me")
	require.NoError(t, err)
	body := legacyToken(t, encrypted)
	wrapped := Fragment{Profile: "work", Token: encrypted}.String()

	tests := []struct {
		name     string
		fragment string
		want     TokenInfo
	}{
		{"encrypted", encrypted, TokenInfo{Mode: ModeEncrypted, KDF: 3}},
		{"legacy", body, TokenInfo{Mode: ModeLegacy}},
		{"plaintext", plaintext, TokenInfo{Mode: ModePlaintext}},
		{"with hash", "#" + encrypted, TokenInfo{Mode: ModeEncrypted, KDF: 3}},
		{"profile", wrapped, TokenInfo{Mode: ModeEncrypted, KDF: 3, Profile: "work"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			info, err := Inspect(tt.fragment)
			require.NoError(t, err)
			require.Equal(t, tt.want.Mode, info.Mode)
			require.Equal(t, tt.want.KDF, info.KDF)
			require.Equal(t, tt.want.Profile, info.Profile)
			require.Positive(t, info.Size)
		})
	}
}

func TestInspect_Size(t *testing.T) {
	engine := newTestEngine(t)
	token, err := engine.Encrypt("x", testPassword)
	require.NoError(t, err)

	raw, err := DecodeBase64URL(legacyToken(t, token))
	require.NoError(t, err)

	info, err := Inspect(token)
	require.NoError(t, err)
	require.Equal(t, len(raw), info.Size)
	require.GreaterOrEqual(t, info.Size, headerSize+tagSize)
}

func TestInspect_Invalid(t *testing.T) {
	tests := []struct {
		name     string
		fragment string
	}{
		{"empty", ""},
		{"hash only", "#"},
		{"bad base64", "1.!!!!"},
		{"bad plaintext", "p:***"},
		{"short body", EncodeBase64URL(make([]byte, headerSize-1))},
		{"profile without token", "pr:d29yaw:"},
		{"profile bad name", "pr:***:1.abc"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Inspect(tt.fragment)
			require.ErrorIs(t, err, ErrDecode)
		})
	}
}
