package secredit

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"sync"

	"golang.org/x/crypto/nacl/secretbox"
)

const (
	vaultNonceSize = 24
	vaultCheckText = "ok"

	// maxProfileNameBytes bounds a normalized name so its length fits the
	// two-byte prefix of the sealed entry.
	maxProfileNameBytes = 1024
)

// VaultState is the lifecycle state of a Vault.
type VaultState int

const (
	VaultNoMasterPassword VaultState = iota
	VaultLocked
	VaultUnlocked
)

func (s VaultState) String() string {
	switch s {
	case VaultNoMasterPassword:
		return "no_master_password"
	case VaultLocked:
		return "locked"
	case VaultUnlocked:
		return "unlocked"
	default:
		return fmt.Sprintf("VaultState(%d)", int(s))
	}
}

// VaultEntry is the public view of a stored profile. It never carries the
// secret in any form.
type VaultEntry struct {
	Name  string
	Color string
}

// vaultMaster is the persisted verifier for the master password.
type vaultMaster struct {
	Salt  string `json:"salt"`
	Check string `json:"check"`
	KDF   KDFID  `json:"kdf"`
}

// storedEntry is one persisted profile.
type storedEntry struct {
	Name   string `json:"name"`
	Color  string `json:"color,omitempty"`
	Secret string `json:"secret"`
}

// vaultConfig holds vault configuration options.
type vaultConfig struct {
	registry *Registry
	random   io.Reader
	logger   Logger
}

// Vault stores named profile secrets encrypted under one master password.
//
// The master password is run through the registry's default PBKDF2 profile;
// HKDF splits the result into a check key, which seals a known value used to
// verify the password, and an entry key, which seals profile secrets. Only the
// derived sub-keys are held in memory while unlocked. Neither the password nor
// any key is written to the store.
//
// A Vault is safe for concurrent use.
type Vault struct {
	store    Store
	registry *Registry
	random   io.Reader
	logger   Logger

	mu   sync.Mutex
	keys *vaultKeys // nil while locked
}

// NewVault opens the vault persisted in store. The vault starts locked.
func NewVault(store Store, opts ...VaultOption) (*Vault, error) {
	if store == nil {
		return nil, errors.New("secredit: vault store is nil")
	}
	cfg := &vaultConfig{
		registry: DefaultRegistry(),
		random:   rand.Reader,
		logger:   nopLogger{},
	}
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.registry == nil {
		return nil, fmt.Errorf("%w: nil registry", ErrInvalidRegistry)
	}
	if cfg.random == nil {
		cfg.random = rand.Reader
	}
	if cfg.logger == nil {
		cfg.logger = nopLogger{}
	}
	return &Vault{
		store:    store,
		registry: cfg.registry,
		random:   cfg.random,
		logger:   cfg.logger,
	}, nil
}

// Exists reports whether a master password has been set up.
func (v *Vault) Exists() (bool, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	_, err := v.loadMaster()
	if errors.Is(err, ErrNoMasterPassword) {
		return false, nil
	}
	return err == nil, err
}

// State returns the current lifecycle state.
func (v *Vault) State() (VaultState, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.keys != nil {
		return VaultUnlocked, nil
	}
	_, err := v.loadMaster()
	switch {
	case errors.Is(err, ErrNoMasterPassword):
		return VaultNoMasterPassword, nil
	case err != nil:
		return VaultNoMasterPassword, err
	default:
		return VaultLocked, nil
	}
}

// Setup sets the master password and leaves the vault unlocked.
//
// Returns ErrMasterPasswordAlreadySet if one exists and ErrWeakMasterPassword if
// password is shorter than MinKeyLength.
func (v *Vault) Setup(password string) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	if _, err := v.loadMaster(); err == nil {
		return ErrMasterPasswordAlreadySet
	} else if !errors.Is(err, ErrNoMasterPassword) {
		return err
	}
	if !IsStrongEnough(password) {
		return ErrWeakMasterPassword
	}

	master, keys, err := v.newMaster(password)
	if err != nil {
		return err
	}
	if err := v.saveMaster(master); err != nil {
		keys.zero()
		return err
	}
	v.setKeys(keys)
	v.logger.Infof("vault master password set (kdf %d)", master.KDF)
	return nil
}

// Unlock verifies password against the stored check value and keeps the derived
// keys for the rest of the session. A wrong password returns
// ErrWrongMasterPassword and leaves the stored state untouched.
func (v *Vault) Unlock(password string) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	master, err := v.loadMaster()
	if err != nil {
		return err
	}
	keys, err := v.verify(master, password)
	if err != nil {
		return err
	}
	v.setKeys(keys)
	v.logger.Debugf("vault unlocked")
	return nil
}

// Lock drops the in-memory keys.
func (v *Vault) Lock() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.setKeys(nil)
}

// Close locks the vault.
func (v *Vault) Close() error {
	v.Lock()
	return nil
}

// SaveEntry stores secret under name, replacing any entry with the same
// normalized name.
func (v *Vault) SaveEntry(name, secret, color string) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.keys == nil {
		return ErrVaultLocked
	}
	normalized, err := checkProfileName(name)
	if err != nil {
		return err
	}
	if !IsStrongEnough(secret) {
		return ErrWeakKey
	}

	entries, err := v.loadEntries()
	if err != nil {
		return err
	}
	sealed, err := v.sealEntry(v.keys, normalized, secret)
	if err != nil {
		return err
	}

	entry := storedEntry{Name: normalized, Color: color, Secret: sealed}
	replaced := false
	for i := range entries {
		if entries[i].Name == normalized {
			entries[i] = entry
			replaced = true
			break
		}
	}
	if !replaced {
		entries = append(entries, entry)
	}
	if err := v.saveEntries(entries); err != nil {
		return err
	}
	v.logger.Debugf("vault entry saved (%d entries)", len(entries))
	return nil
}

// GetEntry returns the secret stored under name. The reserved NoSecretsProfile
// always resolves to the empty key.
func (v *Vault) GetEntry(name string) (string, error) {
	if IsNoSecrets(name) {
		return "", nil
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	if v.keys == nil {
		return "", ErrVaultLocked
	}
	normalized := NormalizeProfileName(name)
	if normalized == "" {
		return "", ErrNameRequired
	}
	entries, err := v.loadEntries()
	if err != nil {
		return "", err
	}
	for _, e := range entries {
		if e.Name == normalized {
			return v.openEntry(v.keys, normalized, e.Secret)
		}
	}
	return "", ErrProfileNotFound
}

// DeleteEntry removes the entry stored under name.
func (v *Vault) DeleteEntry(name string) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.keys == nil {
		return ErrVaultLocked
	}
	normalized, err := checkProfileName(name)
	if err != nil {
		return err
	}
	entries, err := v.loadEntries()
	if err != nil {
		return err
	}
	for i, e := range entries {
		if e.Name == normalized {
			entries = append(entries[:i], entries[i+1:]...)
			return v.saveEntries(entries)
		}
	}
	return ErrProfileNotFound
}

// ListEntries returns the reserved NoSecretsProfile followed by every stored
// entry sorted by name. It works while locked.
func (v *Vault) ListEntries() ([]VaultEntry, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	entries, err := v.loadEntries()
	if err != nil {
		return nil, err
	}
	out := make([]VaultEntry, 0, len(entries)+1)
	out = append(out, VaultEntry{Name: NoSecretsProfile})
	for _, e := range entries {
		out = append(out, VaultEntry{Name: e.Name, Color: e.Color})
	}
	return out, nil
}

// ChangeMasterPassword re-wraps every entry under newPassword with a fresh salt.
// The vault must be unlocked and stays unlocked with the new keys.
func (v *Vault) ChangeMasterPassword(newPassword string) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.keys == nil {
		return ErrVaultLocked
	}
	if !IsStrongEnough(newPassword) {
		return ErrWeakMasterPassword
	}

	entries, err := v.loadEntries()
	if err != nil {
		return err
	}
	secrets := make([]string, len(entries))
	for i, e := range entries {
		if secrets[i], err = v.openEntry(v.keys, e.Name, e.Secret); err != nil {
			return fmt.Errorf("open entry %q: %w", e.Name, err)
		}
	}

	original := append([]storedEntry(nil), entries...)
	master, keys, err := v.newMaster(newPassword)
	if err != nil {
		return err
	}
	for i := range entries {
		if entries[i].Secret, err = v.sealEntry(keys, entries[i].Name, secrets[i]); err != nil {
			keys.zero()
			return err
		}
	}

	// Entries go first. If the master record cannot follow, the old entries are
	// written back so the stored check value still matches them.
	if err := v.saveEntries(entries); err != nil {
		keys.zero()
		return err
	}
	if err := v.saveMaster(master); err != nil {
		keys.zero()
		if rerr := v.saveEntries(original); rerr != nil {
			return errors.Join(err, fmt.Errorf("restore vault entries: %w", rerr))
		}
		return err
	}
	v.setKeys(keys)
	v.logger.Infof("vault master password changed (%d entries rewrapped)", len(entries))
	return nil
}

// setKeys replaces the in-memory keys, zeroing the previous ones.
func (v *Vault) setKeys(keys *vaultKeys) {
	if v.keys != nil && v.keys != keys {
		v.keys.zero()
	}
	v.keys = keys
}

func (v *Vault) newMaster(password string) (vaultMaster, *vaultKeys, error) {
	salt := make([]byte, saltSize)
	if _, err := io.ReadFull(v.random, salt); err != nil {
		return vaultMaster{}, nil, fmt.Errorf("generate salt: %w", err)
	}
	id := v.registry.Default()
	keys, err := v.deriveKeys(password, salt, id)
	if err != nil {
		return vaultMaster{}, nil, err
	}
	check, err := v.seal(&keys.check, []byte(vaultCheckText))
	if err != nil {
		keys.zero()
		return vaultMaster{}, nil, err
	}
	return vaultMaster{Salt: EncodeBase64URL(salt), Check: check, KDF: id}, keys, nil
}

func (v *Vault) verify(master vaultMaster, password string) (*vaultKeys, error) {
	salt, err := DecodeBase64URL(master.Salt)
	if err != nil {
		return nil, fmt.Errorf("vault salt: %w", err)
	}
	keys, err := v.deriveKeys(password, salt, master.KDF)
	if err != nil {
		return nil, err
	}
	check, err := v.open(&keys.check, master.Check)
	if err != nil || subtle.ConstantTimeCompare(check, []byte(vaultCheckText)) != 1 {
		keys.zero()
		return nil, ErrWrongMasterPassword
	}
	return keys, nil
}

func (v *Vault) deriveKeys(password string, salt []byte, id KDFID) (*vaultKeys, error) {
	masterKey, err := v.registry.DeriveKey(password, salt, id)
	if err != nil {
		return nil, err
	}
	defer wipe(masterKey)
	return deriveVaultKeys(masterKey)
}

// sealEntry binds the secret to its name:
// [nameLen:2][name:n][secret]
func (v *Vault) sealEntry(keys *vaultKeys, name, secret string) (string, error) {
	inner := make([]byte, 2+len(name)+len(secret))
	binary.BigEndian.PutUint16(inner, uint16(len(name)))
	copy(inner[2:], name)
	copy(inner[2+len(name):], secret)
	defer wipe(inner)
	return v.seal(&keys.entry, inner)
}

func (v *Vault) openEntry(keys *vaultKeys, name, sealed string) (string, error) {
	inner, err := v.open(&keys.entry, sealed)
	if err != nil {
		return "", err
	}
	defer wipe(inner)
	if len(inner) < 2 {
		return "", ErrDecode
	}
	n := int(binary.BigEndian.Uint16(inner))
	if len(inner) < 2+n {
		return "", ErrDecode
	}
	if subtle.ConstantTimeCompare(inner[2:2+n], []byte(name)) != 1 {
		return "", ErrWrongKey
	}
	return string(inner[2+n:]), nil
}

// seal returns base64url(nonce || secretbox(plaintext)).
func (v *Vault) seal(key *[32]byte, plaintext []byte) (string, error) {
	var nonce [vaultNonceSize]byte
	if _, err := io.ReadFull(v.random, nonce[:]); err != nil {
		return "", fmt.Errorf("generate nonce: %w", err)
	}
	out := secretbox.Seal(nonce[:], plaintext, &nonce, key)
	return EncodeBase64URL(out), nil
}

func (v *Vault) open(key *[32]byte, sealed string) ([]byte, error) {
	raw, err := DecodeBase64URL(sealed)
	if err != nil {
		return nil, err
	}
	if len(raw) < vaultNonceSize+secretbox.Overhead {
		return nil, ErrDecode
	}
	var nonce [vaultNonceSize]byte
	copy(nonce[:], raw[:vaultNonceSize])
	plaintext, ok := secretbox.Open(nil, raw[vaultNonceSize:], &nonce, key)
	if !ok {
		return nil, ErrWrongKey
	}
	return plaintext, nil
}

func (v *Vault) loadMaster() (vaultMaster, error) {
	raw, err := v.store.Get(VaultMasterKey)
	if errors.Is(err, ErrNotStored) {
		return vaultMaster{}, ErrNoMasterPassword
	}
	if err != nil {
		return vaultMaster{}, fmt.Errorf("load vault master: %w", err)
	}
	var m vaultMaster
	if err := json.Unmarshal([]byte(raw), &m); err != nil || m.Salt == "" || m.Check == "" {
		return vaultMaster{}, fmt.Errorf("%w: vault master record", ErrDecode)
	}
	return m, nil
}

func (v *Vault) saveMaster(m vaultMaster) error {
	data, err := json.Marshal(m)
	if err != nil {
		return err
	}
	if err := v.store.Set(VaultMasterKey, string(data)); err != nil {
		return fmt.Errorf("save vault master: %w", err)
	}
	return nil
}

func (v *Vault) loadEntries() ([]storedEntry, error) {
	raw, err := v.store.Get(VaultProfilesKey)
	if errors.Is(err, ErrNotStored) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load vault entries: %w", err)
	}
	var entries []storedEntry
	if err := json.Unmarshal([]byte(raw), &entries); err != nil {
		return nil, fmt.Errorf("%w: vault entries", ErrDecode)
	}
	return entries, nil
}

func (v *Vault) saveEntries(entries []storedEntry) error {
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name < entries[j].Name })
	data, err := json.Marshal(entries)
	if err != nil {
		return err
	}
	if err := v.store.Set(VaultProfilesKey, string(data)); err != nil {
		return fmt.Errorf("save vault entries: %w", err)
	}
	return nil
}

// checkProfileName normalizes name and rejects empty and reserved names.
func checkProfileName(name string) (string, error) {
	normalized := NormalizeProfileName(name)
	switch {
	case normalized == "":
		return "", ErrNameRequired
	case normalized == NoSecretsProfile:
		return "", ErrReservedName
	case len(normalized) > maxProfileNameBytes:
		return "", fmt.Errorf("secredit: profile name longer than %d bytes", maxProfileNameBytes)
	}
	return normalized, nil
}
