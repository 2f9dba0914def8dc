package secredit

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"fmt"
	"io"
)

// Engine encrypts text into URL-safe tokens and back. It is stateless apart
// from its configuration and safe for concurrent use.
type Engine struct {
	config   *config
	resolver *Resolver
}

// config holds engine configuration options.
type config struct {
	registry        *Registry
	maxDecompressed int
	random          io.Reader
}

// defaultConfig returns the default configuration.
func defaultConfig() *config {
	return &config{
		registry:        DefaultRegistry(),
		maxDecompressed: MaxDecompressedSize,
		random:          rand.Reader,
	}
}

// New creates an Engine with the given options.
//
// Example:
//
//	engine, err := secredit.New()
//	token, err := engine.Encrypt("hello world", "correcthorsebattery")
//	text, err := engine.Decrypt(token, "correcthorsebattery")
func New(opts ...Option) (*Engine, error) {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.registry == nil {
		return nil, fmt.Errorf("%w: nil registry", ErrInvalidRegistry)
	}
	if cfg.maxDecompressed <= 0 {
		cfg.maxDecompressed = MaxDecompressedSize
	}
	if cfg.random == nil {
		cfg.random = rand.Reader
	}
	return &Engine{config: cfg, resolver: NewResolver(cfg.registry)}, nil
}

// Registry returns the engine's KDF registry.
func (e *Engine) Registry() *Registry {
	return e.config.registry
}

// MaxDecompressedSize returns the inflate ceiling in bytes.
func (e *Engine) MaxDecompressedSize() int {
	return e.config.maxDecompressed
}

// Encrypt encrypts text under password with the registry's default profile.
func (e *Engine) Encrypt(text, password string) (string, error) {
	return e.EncryptWithKDF(text, password, e.config.registry.Default())
}

// EncryptWithKDF compresses text, encrypts it with AES-256-GCM under a key derived
// with profile id, and frames the result. Every call draws a fresh salt and IV, so
// identical inputs never produce the same token.
func (e *Engine) EncryptWithKDF(text, password string, id KDFID) (string, error) {
	if _, err := e.config.registry.Lookup(id); err != nil {
		return "", err
	}

	salt := make([]byte, saltSize)
	iv := make([]byte, ivSize)
	if _, err := io.ReadFull(e.config.random, salt); err != nil {
		return "", fmt.Errorf("generate salt: %w", err)
	}
	if _, err := io.ReadFull(e.config.random, iv); err != nil {
		return "", fmt.Errorf("generate iv: %w", err)
	}

	key, err := e.config.registry.DeriveKey(password, salt, id)
	if err != nil {
		return "", err
	}
	defer wipe(key)

	compressed, err := Compress(Utf8Encode(text))
	if err != nil {
		return "", err
	}

	gcm, err := newGCM(key)
	if err != nil {
		return "", err
	}
	return Frame(id, salt, iv, gcm.Seal(nil, iv, compressed, nil)), nil
}

// Decrypt recovers the text of token. A token that names its KDF id is tried
// with that profile only; a legacy token is tried against every registry
// candidate in order.
func (e *Engine) Decrypt(token, password string) (string, error) {
	return e.resolver.Resolve(context.Background(), token, nil, func(_ context.Context, id KDFID) (string, error) {
		return e.DecryptWithKDF(token, password, id)
	})
}

// Resolver returns the resolver ordering this engine's decrypt candidates.
func (e *Engine) Resolver() *Resolver {
	return e.resolver
}

// DecryptWithKDF decrypts token with profile id regardless of any id prefix the
// token carries.
//
// Returns ErrDecode for malformed or truncated tokens, ErrInvalidKDF for an
// unknown id, and ErrWrongKey when authentication fails.
func (e *Engine) DecryptWithKDF(token, password string, id KDFID) (string, error) {
	env, err := Unframe(token)
	if err != nil {
		return "", err
	}
	body, err := DecodeBase64URL(env.Body)
	if err != nil {
		return "", err
	}
	return e.version(id).Open(body, password)
}

// open derives the key for id and authenticates, decrypts and inflates ciphertext.
func (e *Engine) open(salt, iv, ciphertext []byte, password string, id KDFID) (string, error) {
	key, err := e.config.registry.DeriveKey(password, salt, id)
	if err != nil {
		return "", err
	}
	defer wipe(key)

	gcm, err := newGCM(key)
	if err != nil {
		return "", err
	}
	compressed, err := gcm.Open(nil, iv, ciphertext, nil)
	if err != nil {
		return "", ErrWrongKey
	}

	inflated, err := Decompress(compressed, e.config.maxDecompressed)
	if err != nil {
		return "", err
	}
	return Utf8Decode(inflated), nil
}

// EncodePlaintext produces a "p:" token for text.
func (e *Engine) EncodePlaintext(text string) (string, error) {
	return EncodePlaintext(text)
}

// DecodePlaintext decodes a "p:" token using the engine's inflate ceiling.
func (e *Engine) DecodePlaintext(payload string) (string, error) {
	return DecodePlaintext(payload, e.config.maxDecompressed)
}

func newGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}
	return gcm, nil
}

// wipe zeros key material once it is no longer needed.
func wipe(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
