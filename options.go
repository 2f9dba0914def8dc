package secredit

import (
	"io"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Option is a functional option for configuring an Engine.
type Option func(*config)

// WithRegistry replaces the production KDF registry. Tokens produced under a
// custom registry are only readable by engines sharing it.
func WithRegistry(r *Registry) Option {
	return func(c *config) {
		c.registry = r
	}
}

// WithMaxDecompressedSize sets the inflate ceiling in bytes.
// Default is MaxDecompressedSize (10 MiB).
func WithMaxDecompressedSize(n int) Option {
	return func(c *config) {
		c.maxDecompressed = n
	}
}

// WithRandom sets the source of salts and IVs. Default is crypto/rand.Reader.
// Only tests should override this.
func WithRandom(r io.Reader) Option {
	return func(c *config) {
		c.random = r
	}
}

// SessionOption configures a CryptoSession.
type SessionOption func(*sessionConfig)

// WithTimeout sets the per-request worker timeout. Default is 10 seconds.
func WithTimeout(d time.Duration) SessionOption {
	return func(c *sessionConfig) {
		c.timeout = d
	}
}

// WithCrypter sets the implementation that runs inside the worker.
// Default is an Engine built from WithEngineOptions.
func WithCrypter(cr Crypter) SessionOption {
	return func(c *sessionConfig) {
		c.crypter = cr
	}
}

// WithEngineOptions configures the Engine built when no Crypter is supplied.
func WithEngineOptions(opts ...Option) SessionOption {
	return func(c *sessionConfig) {
		c.engineOpts = append(c.engineOpts, opts...)
	}
}

// WithMetrics registers worker metrics with reg.
func WithMetrics(reg prometheus.Registerer) SessionOption {
	return func(c *sessionConfig) {
		c.registerer = reg
	}
}

// WithSessionLogger sets the session logger.
func WithSessionLogger(l Logger) SessionOption {
	return func(c *sessionConfig) {
		c.logger = l
	}
}

// SyncOption configures a Synchronizer.
type SyncOption func(*syncConfig)

// WithDebounce sets the quiet period before a scheduled sync runs. Default is 500ms.
func WithDebounce(d time.Duration) SyncOption {
	return func(c *syncConfig) {
		c.debounce = d
	}
}

// WithObserver receives every status change.
func WithObserver(fn Observer) SyncOption {
	return func(c *syncConfig) {
		c.observer = fn
	}
}

// WithCache sets the store used for the unencrypted-mode cache.
// Default is a MemoryStore.
func WithCache(s Store) SyncOption {
	return func(c *syncConfig) {
		c.store = s
	}
}

// WithSyncRegistry sets the KDF registry used to order decrypt candidates.
// It must match the registry the Cryptor encrypts with.
func WithSyncRegistry(r *Registry) SyncOption {
	return func(c *syncConfig) {
		c.registry = r
	}
}

// WithSyncLogger sets the synchronizer logger.
func WithSyncLogger(l Logger) SyncOption {
	return func(c *syncConfig) {
		c.logger = l
	}
}

// WithSyncTimeout bounds each debounced sync run. Default is 30 seconds.
func WithSyncTimeout(d time.Duration) SyncOption {
	return func(c *syncConfig) {
		c.syncTimeout = d
	}
}

// WithSyncMaxDecompressedSize sets the inflate ceiling for plaintext tokens.
// It should match the Cryptor's engine ceiling. Default is MaxDecompressedSize.
func WithSyncMaxDecompressedSize(n int) SyncOption {
	return func(c *syncConfig) {
		c.maxDecompressed = n
	}
}

// VaultOption configures a Vault.
type VaultOption func(*vaultConfig)

// WithVaultRegistry sets the registry the master key is derived with.
func WithVaultRegistry(r *Registry) VaultOption {
	return func(c *vaultConfig) {
		c.registry = r
	}
}

// WithVaultRandom sets the source of salts and nonces. Default is crypto/rand.Reader.
func WithVaultRandom(r io.Reader) VaultOption {
	return func(c *vaultConfig) {
		c.random = r
	}
}

// WithVaultLogger sets the vault logger.
func WithVaultLogger(l Logger) VaultOption {
	return func(c *vaultConfig) {
		c.logger = l
	}
}
