package secredit

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestStaticKeyProvider(t *testing.T) {
	provider := NewStaticKeyProvider(map[string]string{
		"Work":       "work-secret-1",
		" home  lab": "home-secret-1",
		"no secrets": "ignored-secret",
		"  ":         "ignored-secret",
	})

	key, err := provider.GetEntry("work")
	require.NoError(t, err)
	require.Equal(t, "work-secret-1", key)

	key, err = provider.GetEntry("HOME LAB")
	require.NoError(t, err)
	require.Equal(t, "home-secret-1", key)

	// The reserved profile always resolves to the empty key.
	key, err = provider.GetEntry("No Secrets")
	require.NoError(t, err)
	require.Empty(t, key)

	_, err = provider.GetEntry("nonexistent")
	require.ErrorIs(t, err, ErrProfileNotFound)

	// Blank names are skipped.
	_, err = provider.GetEntry("  ")
	require.ErrorIs(t, err, ErrProfileNotFound)
}

func TestStaticKeyProvider_Close(t *testing.T) {
	provider := NewStaticKeyProvider(map[string]string{"work": "work-secret-1"})
	provider.Close()

	_, err := provider.GetEntry("work")
	require.ErrorIs(t, err, ErrProfileNotFound)

	key, err := provider.GetEntry("no secrets")
	require.NoError(t, err)
	require.Empty(t, key)
}

func TestKeyProvider_Implementations(t *testing.T) {
	var _ KeyProvider = (*StaticKeyProvider)(nil)
	var _ KeyProvider = (*Vault)(nil)
}
