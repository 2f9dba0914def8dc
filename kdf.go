package secredit

import (
	"crypto/sha256"
	"crypto/sha512"
	"fmt"
	"hash"
	"io"
	"sort"

	"golang.org/x/crypto/hkdf"
	"golang.org/x/crypto/pbkdf2"
)

// KDFID selects a key-derivation profile. Ids are written into tokens, so a
// shipped id must never be removed or redefined.
type KDFID int

// Hash names accepted in a KDFProfile.
const (
	HashSHA256 = "SHA-256"
	HashSHA512 = "SHA-512"
)

// keySize is the AES-256 key length used for every profile.
const keySize = 32

// DefaultKDF is the profile new tokens are encrypted with.
const DefaultKDF KDFID = 1

// KDFProfile is one PBKDF2 parameter set.
type KDFProfile struct {
	ID         KDFID
	Iterations int
	Hash       string
}

func (p KDFProfile) hashFunc() (func() hash.Hash, error) {
	switch p.Hash {
	case HashSHA256:
		return sha256.New, nil
	case HashSHA512:
		return sha512.New, nil
	default:
		return nil, fmt.Errorf("%w: unsupported hash %q", ErrInvalidRegistry, p.Hash)
	}
}

// Registry maps KDF ids to PBKDF2 profiles. It is immutable and safe for
// concurrent use.
type Registry struct {
	profiles   map[KDFID]KDFProfile
	defaultID  KDFID
	candidates []KDFID
}

// NewRegistry builds a registry from profiles. defaultID must be one of them.
func NewRegistry(defaultID KDFID, profiles ...KDFProfile) (*Registry, error) {
	if len(profiles) == 0 {
		return nil, fmt.Errorf("%w: no profiles", ErrInvalidRegistry)
	}

	r := &Registry{
		profiles:  make(map[KDFID]KDFProfile, len(profiles)),
		defaultID: defaultID,
	}
	for _, p := range profiles {
		if _, dup := r.profiles[p.ID]; dup {
			return nil, fmt.Errorf("%w: duplicate id %d", ErrInvalidRegistry, p.ID)
		}
		if p.Iterations <= 0 {
			return nil, fmt.Errorf("%w: id %d has no iterations", ErrInvalidRegistry, p.ID)
		}
		if _, err := p.hashFunc(); err != nil {
			return nil, err
		}
		r.profiles[p.ID] = p
	}
	if _, ok := r.profiles[defaultID]; !ok {
		return nil, fmt.Errorf("%w: default id %d not registered", ErrInvalidRegistry, defaultID)
	}

	// Default first, then the rest most recent (highest id) first.
	r.candidates = append(r.candidates, defaultID)
	rest := make([]KDFID, 0, len(r.profiles)-1)
	for id := range r.profiles {
		if id != defaultID {
			rest = append(rest, id)
		}
	}
	sort.Slice(rest, func(i, j int) bool { return rest[i] > rest[j] })
	r.candidates = append(r.candidates, rest...)

	return r, nil
}

var defaultRegistry = mustRegistry(NewRegistry(DefaultKDF,
	KDFProfile{ID: 1, Iterations: 600000, Hash: HashSHA256},
	// Iteration counts used before tokens carried a KDF id. Ids are assigned so
	// the descending-id trial order after the default is 100k, 300k, 1M.
	KDFProfile{ID: 2, Iterations: 1000000, Hash: HashSHA256},
	KDFProfile{ID: 3, Iterations: 300000, Hash: HashSHA256},
	KDFProfile{ID: 4, Iterations: 100000, Hash: HashSHA256},
))

func mustRegistry(r *Registry, err error) *Registry {
	if err != nil {
		panic(err)
	}
	return r
}

// DefaultRegistry returns the production registry.
func DefaultRegistry() *Registry {
	return defaultRegistry
}

// Default returns the id new tokens are encrypted with.
func (r *Registry) Default() KDFID {
	return r.defaultID
}

// Lookup returns the profile registered under id.
func (r *Registry) Lookup(id KDFID) (KDFProfile, error) {
	p, ok := r.profiles[id]
	if !ok {
		return KDFProfile{}, ErrInvalidKDF
	}
	return p, nil
}

// LookupIterations finds the SHA-256 profile with the given iteration count.
// Export files written before KDF ids existed recorded only the count.
func (r *Registry) LookupIterations(iterations int) (KDFID, error) {
	for _, id := range r.candidates {
		p := r.profiles[id]
		if p.Iterations == iterations && p.Hash == HashSHA256 {
			return id, nil
		}
	}
	return 0, ErrInvalidKDF
}

// Candidates returns every id in trial order: the default first, then the
// remaining ids from most to least recent.
func (r *Registry) Candidates() []KDFID {
	out := make([]KDFID, len(r.candidates))
	copy(out, r.candidates)
	return out
}

// DeriveKey derives the 32-byte AES key for password and salt under profile id.
func (r *Registry) DeriveKey(password string, salt []byte, id KDFID) ([]byte, error) {
	p, err := r.Lookup(id)
	if err != nil {
		return nil, err
	}
	h, err := p.hashFunc()
	if err != nil {
		return nil, err
	}
	return pbkdf2.Key(Utf8Encode(password), salt, p.Iterations, keySize, h), nil
}

// Info strings for HKDF derivation of vault sub-keys - distinct strings ensure separate keys.
const (
	infoVaultCheck = "secredit-vault-check"
	infoVaultEntry = "secredit-vault-entry"
)

// vaultKeys holds the sub-keys derived from a vault master key.
type vaultKeys struct {
	check [32]byte // seals the "ok" check value
	entry [32]byte // seals profile secrets
}

// deriveVaultKeys splits a master key into check and entry keys using HKDF-SHA256.
func deriveVaultKeys(masterKey []byte) (*vaultKeys, error) {
	if len(masterKey) != keySize {
		return nil, fmt.Errorf("secredit: vault master key must be %d bytes, got %d", keySize, len(masterKey))
	}

	keys := &vaultKeys{}
	if err := hkdfDerive(masterKey, infoVaultCheck, keys.check[:]); err != nil {
		return nil, err
	}
	if err := hkdfDerive(masterKey, infoVaultEntry, keys.entry[:]); err != nil {
		return nil, err
	}
	return keys, nil
}

// hkdfDerive performs HKDF-SHA256 key derivation with the given info string.
func hkdfDerive(masterKey []byte, info string, out []byte) error {
	reader := hkdf.New(sha256.New, masterKey, nil, []byte(info))
	_, err := io.ReadFull(reader, out)
	return err
}

// zero overwrites key material.
func (k *vaultKeys) zero() {
	for i := range k.check {
		k.check[i] = 0
	}
	for i := range k.entry {
		k.entry[i] = 0
	}
}
