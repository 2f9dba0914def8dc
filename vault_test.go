package secredit

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

const testMaster = "master-password-1"

func newTestVault(t *testing.T, store Store) *Vault {
	t.Helper()
	if store == nil {
		store = NewMemoryStore()
	}
	v, err := NewVault(store, WithVaultRegistry(testRegistry()))
	require.NoError(t, err)
	return v
}

func requireVaultState(t *testing.T, v *Vault, want VaultState) {
	t.Helper()
	state, err := v.State()
	require.NoError(t, err)
	require.Equal(t, want, state)
}

func TestVault_Lifecycle(t *testing.T) {
	v := newTestVault(t, nil)

	state, err := v.State()
	require.NoError(t, err)
	require.Equal(t, VaultNoMasterPassword, state)
	exists, err := v.Exists()
	require.NoError(t, err)
	require.False(t, exists)

	require.ErrorIs(t, v.Unlock(testMaster), ErrNoMasterPassword)

	require.NoError(t, v.Setup(testMaster))
	state, err = v.State()
	require.NoError(t, err)
	require.Equal(t, VaultUnlocked, state)
	requireVaultState(t, v, VaultUnlocked)

	v.Lock()
	state, err = v.State()
	require.NoError(t, err)
	require.Equal(t, VaultLocked, state)

	require.NoError(t, v.Unlock(testMaster))
	requireVaultState(t, v, VaultUnlocked)
	require.NoError(t, v.Close())
	requireVaultState(t, v, VaultLocked)
}

func TestVault_SetupRejections(t *testing.T) {
	v := newTestVault(t, nil)
	require.ErrorIs(t, v.Setup("short"), ErrWeakMasterPassword)

	exists, err := v.Exists()
	require.NoError(t, err)
	require.False(t, exists, "a rejected setup persists nothing")

	require.NoError(t, v.Setup(testMaster))
	require.ErrorIs(t, v.Setup("another-password"), ErrMasterPasswordAlreadySet)
}

func TestVault_WrongMasterPasswordKeepsState(t *testing.T) {
	store := NewMemoryStore()
	v := newTestVault(t, store)
	require.NoError(t, v.Setup(testMaster))
	v.Lock()

	before, err := store.Get(VaultMasterKey)
	require.NoError(t, err)

	for _, wrong := range []string{"", "master-password-2", "MASTER-PASSWORD-1"} {
		require.ErrorIs(t, v.Unlock(wrong), ErrWrongMasterPassword)
		requireVaultState(t, v, VaultLocked)
	}

	after, err := store.Get(VaultMasterKey)
	require.NoError(t, err)
	require.Equal(t, before, after)

	require.NoError(t, v.Unlock(testMaster))
}

func TestVault_NothingSecretPersisted(t *testing.T) {
	store := NewMemoryStore()
	v := newTestVault(t, store)
	require.NoError(t, v.Setup(testMaster))
	require.NoError(t, v.SaveEntry("Work", "work-secret-123", "#ff0000"))

	for _, key := range []string{VaultMasterKey, VaultProfilesKey} {
		raw, err := store.Get(key)
		require.NoError(t, err)
		require.NotContains(t, raw, testMaster)
		require.NotContains(t, raw, "work-secret-123")
	}

	var master vaultMaster
	raw, err := store.Get(VaultMasterKey)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal([]byte(raw), &master))
	salt, err := DecodeBase64URL(master.Salt)
	require.NoError(t, err)
	require.Len(t, salt, saltSize)
	require.Equal(t, KDFID(1), master.KDF)
}

func TestVault_Entries(t *testing.T) {
	v := newTestVault(t, nil)
	require.NoError(t, v.Setup(testMaster))

	require.NoError(t, v.SaveEntry("Work", "work-secret-1", "red"))
	require.NoError(t, v.SaveEntry("home", "home-secret-1", "blue"))

	secret, err := v.GetEntry("  WORK ")
	require.NoError(t, err)
	require.Equal(t, "work-secret-1", secret)

	_, err = v.GetEntry("missing")
	require.ErrorIs(t, err, ErrProfileNotFound)

	entries, err := v.ListEntries()
	require.NoError(t, err)
	require.Equal(t, []VaultEntry{
		{Name: NoSecretsProfile},
		{Name: "home", Color: "blue"},
		{Name: "work", Color: "red"},
	}, entries)
}

func TestVault_Upsert(t *testing.T) {
	v := newTestVault(t, nil)
	require.NoError(t, v.Setup(testMaster))

	require.NoError(t, v.SaveEntry("Work", "first-secret", "red"))
	require.NoError(t, v.SaveEntry("work", "second-secret", "green"))

	entries, err := v.ListEntries()
	require.NoError(t, err)
	require.Equal(t, []VaultEntry{{Name: NoSecretsProfile}, {Name: "work", Color: "green"}}, entries)

	secret, err := v.GetEntry("Work")
	require.NoError(t, err)
	require.Equal(t, "second-secret", secret)
}

func TestVault_EntryRejections(t *testing.T) {
	v := newTestVault(t, nil)
	require.NoError(t, v.Setup(testMaster))

	require.ErrorIs(t, v.SaveEntry("   ", "long-enough-secret", ""), ErrNameRequired)
	require.ErrorIs(t, v.SaveEntry("No  Secrets", "long-enough-secret", ""), ErrReservedName)
	require.ErrorIs(t, v.SaveEntry("work", "short", ""), ErrWeakKey)
	require.Error(t, v.SaveEntry(string(bytes.Repeat([]byte{'n'}, maxProfileNameBytes+1)), "long-enough-secret", ""))

	_, err := v.GetEntry("")
	require.ErrorIs(t, err, ErrNameRequired)
}

func TestVault_Locked(t *testing.T) {
	v := newTestVault(t, nil)
	require.NoError(t, v.Setup(testMaster))
	require.NoError(t, v.SaveEntry("work", "work-secret-1", ""))
	v.Lock()

	_, err := v.GetEntry("work")
	require.ErrorIs(t, err, ErrVaultLocked)
	require.ErrorIs(t, v.SaveEntry("work", "work-secret-2", ""), ErrVaultLocked)
	require.ErrorIs(t, v.DeleteEntry("work"), ErrVaultLocked)
	require.ErrorIs(t, v.ChangeMasterPassword("new-master-pass"), ErrVaultLocked)

	// Listing needs no key.
	entries, err := v.ListEntries()
	require.NoError(t, err)
	require.Len(t, entries, 2)
}

func TestVault_NoSecretsSentinel(t *testing.T) {
	v := newTestVault(t, nil)

	// Resolves without a master password or unlock.
	secret, err := v.GetEntry("No Secrets")
	require.NoError(t, err)
	require.Empty(t, secret)

	entries, err := v.ListEntries()
	require.NoError(t, err)
	require.Equal(t, []VaultEntry{{Name: NoSecretsProfile}}, entries)

	require.NoError(t, v.Setup(testMaster))
	require.ErrorIs(t, v.DeleteEntry(NoSecretsProfile), ErrReservedName)
}

func TestVault_Delete(t *testing.T) {
	v := newTestVault(t, nil)
	require.NoError(t, v.Setup(testMaster))
	require.NoError(t, v.SaveEntry("work", "work-secret-1", ""))

	require.NoError(t, v.DeleteEntry("WORK"))
	require.ErrorIs(t, v.DeleteEntry("work"), ErrProfileNotFound)
	_, err := v.GetEntry("work")
	require.ErrorIs(t, err, ErrProfileNotFound)
}

func TestVault_PersistsAcrossInstances(t *testing.T) {
	store := NewMemoryStore()
	v := newTestVault(t, store)
	require.NoError(t, v.Setup(testMaster))
	require.NoError(t, v.SaveEntry("work", "work-secret-1", ""))

	reopened := newTestVault(t, store)
	state, err := reopened.State()
	require.NoError(t, err)
	require.Equal(t, VaultLocked, state)

	require.NoError(t, reopened.Unlock(testMaster))
	secret, err := reopened.GetEntry("work")
	require.NoError(t, err)
	require.Equal(t, "work-secret-1", secret)
}

func TestVault_EntryBoundToName(t *testing.T) {
	store := NewMemoryStore()
	v := newTestVault(t, store)
	require.NoError(t, v.Setup(testMaster))
	require.NoError(t, v.SaveEntry("alpha", "alpha-secret-1", ""))
	require.NoError(t, v.SaveEntry("beta", "beta-secret-12", ""))

	// Swap the sealed secrets between the two names.
	raw, err := store.Get(VaultProfilesKey)
	require.NoError(t, err)
	var entries []storedEntry
	require.NoError(t, json.Unmarshal([]byte(raw), &entries))
	require.Len(t, entries, 2)
	entries[0].Secret, entries[1].Secret = entries[1].Secret, entries[0].Secret
	swapped, err := json.Marshal(entries)
	require.NoError(t, err)
	require.NoError(t, store.Set(VaultProfilesKey, string(swapped)))

	_, err = v.GetEntry("alpha")
	require.ErrorIs(t, err, ErrWrongKey)
}

func TestVault_ChangeMasterPassword(t *testing.T) {
	store := NewMemoryStore()
	v := newTestVault(t, store)
	require.NoError(t, v.Setup(testMaster))
	require.NoError(t, v.SaveEntry("work", "work-secret-1", "red"))
	require.NoError(t, v.SaveEntry("home", "home-secret-1", ""))

	require.ErrorIs(t, v.ChangeMasterPassword("short"), ErrWeakMasterPassword)
	require.NoError(t, v.ChangeMasterPassword("brand-new-master"))

	secret, err := v.GetEntry("work")
	require.NoError(t, err)
	require.Equal(t, "work-secret-1", secret)

	v.Lock()
	require.ErrorIs(t, v.Unlock(testMaster), ErrWrongMasterPassword)
	require.NoError(t, v.Unlock("brand-new-master"))

	secret, err = v.GetEntry("home")
	require.NoError(t, err)
	require.Equal(t, "home-secret-1", secret)

	entries, err := v.ListEntries()
	require.NoError(t, err)
	require.Equal(t, "red", entries[2].Color)
}

// failOnKeyStore fails every Set of key once armed.
type failOnKeyStore struct {
	*MemoryStore
	key   string
	armed bool
}

func (f *failOnKeyStore) Set(key, value string) error {
	if f.armed && key == f.key {
		return errors.New("disk full")
	}
	return f.MemoryStore.Set(key, value)
}

func TestVault_ChangeMasterPassword_MasterWriteFails(t *testing.T) {
	store := &failOnKeyStore{MemoryStore: NewMemoryStore(), key: VaultMasterKey}
	v := newTestVault(t, store)
	require.NoError(t, v.Setup(testMaster))
	require.NoError(t, v.SaveEntry("work", "work-secret-1", "red"))

	store.armed = true
	err := v.ChangeMasterPassword("brand-new-master")
	require.ErrorContains(t, err, "disk full")

	// The session keeps working with the old keys.
	secret, err := v.GetEntry("work")
	require.NoError(t, err)
	require.Equal(t, "work-secret-1", secret)

	// So does a fresh vault unlocked with the old password.
	store.armed = false
	reopened := newTestVault(t, store)
	require.ErrorIs(t, reopened.Unlock("brand-new-master"), ErrWrongMasterPassword)
	require.NoError(t, reopened.Unlock(testMaster))
	secret, err = reopened.GetEntry("work")
	require.NoError(t, err)
	require.Equal(t, "work-secret-1", secret)
}

func TestVault_CorruptMaster(t *testing.T) {
	store := NewMemoryStore()
	require.NoError(t, store.Set(VaultMasterKey, "{broken"))
	v := newTestVault(t, store)

	_, err := v.State()
	require.ErrorIs(t, err, ErrDecode)
	require.ErrorIs(t, v.Unlock(testMaster), ErrDecode)
	require.ErrorIs(t, v.Setup(testMaster), ErrDecode)
}

func TestNewVault_NilStore(t *testing.T) {
	_, err := NewVault(nil)
	require.Error(t, err)
}

func TestVaultState_String(t *testing.T) {
	require.Equal(t, "no_master_password", VaultNoMasterPassword.String())
	require.Equal(t, "locked", VaultLocked.String())
	require.Equal(t, "unlocked", VaultUnlocked.String())
	require.Equal(t, "VaultState(9)", VaultState(9).String())
}
