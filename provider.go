package secredit

// KeyProvider resolves a profile name to its document key. The reserved
// NoSecretsProfile must resolve to the empty key.
//
// *Vault implements KeyProvider. Implement it to source keys from an external
// secrets manager instead.
type KeyProvider interface {
	// GetEntry returns the key stored under name, or ErrProfileNotFound.
	GetEntry(name string) (string, error)
}

// StaticKeyProvider is a simple in-memory implementation of KeyProvider.
// Useful for testing or for keys supplied on the command line.
type StaticKeyProvider struct {
	keys map[string]string
}

// NewStaticKeyProvider creates a StaticKeyProvider. Names are normalized with
// NormalizeProfileName; a reserved or empty name is ignored.
func NewStaticKeyProvider(keys map[string]string) *StaticKeyProvider {
	p := &StaticKeyProvider{keys: make(map[string]string, len(keys))}
	for name, key := range keys {
		normalized, err := checkProfileName(name)
		if err != nil {
			continue
		}
		p.keys[normalized] = key
	}
	return p
}

// GetEntry implements KeyProvider.
func (p *StaticKeyProvider) GetEntry(name string) (string, error) {
	if IsNoSecrets(name) {
		return "", nil
	}
	key, ok := p.keys[NormalizeProfileName(name)]
	if !ok {
		return "", ErrProfileNotFound
	}
	return key, nil
}

// Close drops all keys. After calling Close, every lookup fails.
func (p *StaticKeyProvider) Close() {
	p.keys = map[string]string{}
}
