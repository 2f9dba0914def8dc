package secredit

import "errors"

// Payload and crypto errors.
var (
	// ErrDecode indicates malformed base64, a corrupt compressed stream, or a truncated frame.
	ErrDecode = errors.New("secredit: invalid data")

	// ErrDecompressionLimit indicates a compressed payload expanded past the configured ceiling.
	ErrDecompressionLimit = errors.New("secredit: decompression limit exceeded")

	// ErrWrongKey indicates authentication failed (wrong key or corrupted data) or that
	// every KDF candidate was tried without success. The two cases are deliberately
	// indistinguishable.
	ErrWrongKey = errors.New("secredit: wrong key")

	// ErrInvalidKDF indicates the KDF profile id is not in the registry.
	ErrInvalidKDF = errors.New("secredit: unknown kdf profile")

	// ErrInvalidRegistry indicates a KDF registry was constructed with bad profiles.
	ErrInvalidRegistry = errors.New("secredit: invalid kdf registry")

	// ErrWeakKey indicates a document or profile key is below the minimum strength.
	ErrWeakKey = errors.New("secredit: key is too weak")

	// ErrKeyRequired indicates an encrypted payload was loaded without any key.
	ErrKeyRequired = errors.New("secredit: secret key required")

	// ErrEmptyDocument indicates there is no text to seal or export.
	ErrEmptyDocument = errors.New("secredit: document is empty")
)

// Vault errors.
var (
	// ErrWeakMasterPassword indicates the master password is below the minimum strength.
	ErrWeakMasterPassword = errors.New("secredit: master password is too weak")

	// ErrVaultLocked indicates the vault must be unlocked first.
	ErrVaultLocked = errors.New("secredit: vault is locked")

	// ErrWrongMasterPassword indicates the supplied master password did not open the check value.
	ErrWrongMasterPassword = errors.New("secredit: wrong master password")

	// ErrNoMasterPassword indicates no master password has been set up yet.
	ErrNoMasterPassword = errors.New("secredit: no master password set")

	// ErrMasterPasswordAlreadySet indicates setup was called on an initialized vault.
	ErrMasterPasswordAlreadySet = errors.New("secredit: master password already set")

	// ErrNameRequired indicates a profile name was empty after normalization.
	ErrNameRequired = errors.New("secredit: profile name required")

	// ErrReservedName indicates the reserved "no secrets" profile name was used.
	ErrReservedName = errors.New("secredit: profile name is reserved")

	// ErrProfileNotFound indicates no vault entry exists under the normalized name.
	ErrProfileNotFound = errors.New("secredit: profile not found")
)

// Worker, storage and file errors.
var (
	// ErrTimeout indicates the crypto worker did not answer within the request timeout.
	ErrTimeout = errors.New("secredit: worker timeout")

	// ErrWorkerFailed indicates the worker crashed or reported an unclassified failure.
	ErrWorkerFailed = errors.New("secredit: operation failed")

	// ErrSessionClosed indicates the crypto session was used after Close.
	ErrSessionClosed = errors.New("secredit: session is closed")

	// ErrInvalidFile indicates an exported file is malformed or has an unknown format version.
	ErrInvalidFile = errors.New("secredit: invalid file")

	// ErrNotStored indicates a store has no value under the requested key.
	ErrNotStored = errors.New("secredit: no value stored")

	// ErrSuperseded is returned internally when a newer decrypt attempt replaced this one.
	// It never reaches a status observer.
	ErrSuperseded = errors.New("secredit: superseded")
)
