package secredit

import (
	"context"
	"errors"
	"sync"
	"time"
)

// DefaultDebounce is the quiet period after the last edit before a sync runs.
const DefaultDebounce = 500 * time.Millisecond

// DefaultSyncTimeout bounds a debounced sync run.
const DefaultSyncTimeout = 30 * time.Second

// Status is a user-facing state of the document session. Values are stable
// message keys.
type Status string

const (
	StatusReady              Status = "status_ready"
	StatusUnencrypted        Status = "unencrypted"
	StatusSyncingUnencrypted Status = "syncing_unencrypted"
	StatusSyncedUnencrypted  Status = "synced_unencrypted"
	StatusEncrypting         Status = "encrypting"
	StatusSyncedEncrypted    Status = "synced_encrypted"
	StatusSyncError          Status = "sync_error"
	StatusWeakKey            Status = "weak_key"
	StatusLoadingUnencrypted Status = "loading_unencrypted"
	StatusLoadedUnencrypted  Status = "loaded_unencrypted"
	StatusInvalidData        Status = "invalid_data"
	StatusSecretKeyRequired  Status = "secret_key_required"
	StatusDecrypting         Status = "decrypting"
	StatusDecrypted          Status = "decrypted"
	StatusWrongKey           Status = "wrong_key"
	StatusInvalidFile        Status = "invalid_file"
	StatusLoadFromCache      Status = "load_from_cache"
	StatusDecompressionLimit Status = "decompression_limit"
	StatusTimeout            Status = "timeout"
	StatusVaultLocked        Status = "vault_locked"
	StatusProfileNotFound    Status = "profile_not_found"
)

// Observer receives every status change. It is called without internal locks
// held and must not block for long.
type Observer func(Status)

// Cryptor performs the encryption work for a Synchronizer. *CryptoSession
// implements it.
type Cryptor interface {
	Encrypt(ctx context.Context, text, password string) (string, error)
	Decrypt(ctx context.Context, token, password string, kdf *KDFID) (string, error)
}

// syncConfig holds Synchronizer configuration.
type syncConfig struct {
	debounce    time.Duration
	observer    Observer
	store       Store
	registry    *Registry
	logger      Logger
	syncTimeout time.Duration

	maxDecompressed int
}

// Synchronizer keeps the document text and key consistent with the URL
// fragment and the unencrypted-mode cache.
//
// Edits re-arm a debounce timer and only the last scheduled sync runs. Every
// decrypt attempt takes a new generation number and applies its result only if
// that number is still current when it completes; superseded attempts finish
// silently. Failures never escape as panics: each is reported as a Status.
type Synchronizer struct {
	cryptor     Cryptor
	location    Location
	store       Store
	resolver    *Resolver
	registry    *Registry
	observer    Observer
	logger      Logger
	debounce    time.Duration
	syncTimeout time.Duration
	maxInflate  int

	mu             sync.Mutex
	text           string
	key            string
	profile        string
	pendingProfile string
	status         Status
	generation     uint64 // bumped by every decrypt attempt and Clear
	syncSeq        uint64 // bumped by every sync run and Clear
	scheduled      uint64 // bumped by every scheduleSync
	timer          *time.Timer
	closed         bool

	ctx    context.Context
	cancel context.CancelFunc
}

// NewSynchronizer creates a Synchronizer over cryptor and location.
func NewSynchronizer(cryptor Cryptor, location Location, opts ...SyncOption) *Synchronizer {
	cfg := &syncConfig{
		debounce:    DefaultDebounce,
		syncTimeout: DefaultSyncTimeout,
	}
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.store == nil {
		cfg.store = NewMemoryStore()
	}
	if cfg.registry == nil {
		cfg.registry = DefaultRegistry()
	}
	if cfg.logger == nil {
		cfg.logger = nopLogger{}
	}
	if cfg.debounce <= 0 {
		cfg.debounce = DefaultDebounce
	}
	if cfg.syncTimeout <= 0 {
		cfg.syncTimeout = DefaultSyncTimeout
	}
	if cfg.maxDecompressed <= 0 {
		cfg.maxDecompressed = MaxDecompressedSize
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Synchronizer{
		cryptor:     cryptor,
		location:    location,
		store:       cfg.store,
		resolver:    NewResolver(cfg.registry),
		registry:    cfg.registry,
		observer:    cfg.observer,
		logger:      cfg.logger,
		debounce:    cfg.debounce,
		syncTimeout: cfg.syncTimeout,
		maxInflate:  cfg.maxDecompressed,
		status:      StatusReady,
		ctx:         ctx,
		cancel:      cancel,
	}
}

// Text returns the document text.
func (s *Synchronizer) Text() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.text
}

// Key returns the current key material.
func (s *Synchronizer) Key() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.key
}

// Profile returns the active profile name, or "" when none is selected.
func (s *Synchronizer) Profile() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.profile
}

// PendingProfile returns the profile named by the last loaded fragment or file
// when it differs from the active one. Callers use it to prompt for selecting
// or creating that profile.
func (s *Synchronizer) PendingProfile() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pendingProfile
}

// Status returns the last reported status.
func (s *Synchronizer) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// Generation returns the current decrypt generation.
func (s *Synchronizer) Generation() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.generation
}

// SetText replaces the document text and schedules a sync.
func (s *Synchronizer) SetText(text string) {
	s.mu.Lock()
	s.text = text
	s.mu.Unlock()
	s.scheduleSync()
}

// SetKey replaces the key material. When the editor is empty and the fragment
// holds a token, the token is decrypted with the new key right away; otherwise
// a sync is scheduled.
func (s *Synchronizer) SetKey(ctx context.Context, key string) {
	s.mu.Lock()
	s.key = key
	empty := s.text == ""
	s.mu.Unlock()

	if empty {
		if frag := s.location.Fragment(); frag != "" {
			_, _ = s.loadFragment(ctx, frag)
			return
		}
		switch {
		case key == "":
			s.setStatus(StatusUnencrypted)
		case !IsStrongEnough(key):
			s.setStatus(StatusWeakKey)
		default:
			s.setStatus(StatusReady)
		}
		return
	}
	s.scheduleSync()
}

// SelectProfile looks name up in keys and uses its secret as the key. The
// reserved NoSecretsProfile selects the empty key.
func (s *Synchronizer) SelectProfile(ctx context.Context, keys KeyProvider, name string) error {
	key, err := keys.GetEntry(name)
	if err != nil {
		s.setStatus(statusFor(err))
		return err
	}

	profile := NormalizeProfileName(name)
	if profile == NoSecretsProfile {
		profile = ""
	}
	s.mu.Lock()
	s.profile = profile
	if NormalizeProfileName(s.pendingProfile) == profile {
		s.pendingProfile = ""
	}
	s.mu.Unlock()

	s.SetKey(ctx, key)
	return nil
}

// Sync writes the current document to the fragment now, cancelling any
// scheduled sync. An empty document is never synced.
//
// Without a key the document is stored as a plaintext token in the fragment
// and the cache. With a key shorter than MinKeyLength nothing is written and
// ErrWeakKey is returned. Otherwise the document is encrypted into the
// fragment and any cached copy is removed.
func (s *Synchronizer) Sync(ctx context.Context) error {
	s.mu.Lock()
	s.stopTimerLocked()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.syncSeq++
	seq := s.syncSeq
	text, key, profile := s.text, s.key, s.profile
	s.mu.Unlock()

	if text == "" {
		return nil
	}

	if key == "" {
		s.setStatus(StatusSyncingUnencrypted)
		token, err := EncodePlaintext(text)
		if err != nil {
			s.setStatus(StatusSyncError)
			return err
		}
		if !s.commit(seq, token) {
			return nil
		}
		s.writeCache(token)
		s.setStatus(StatusSyncedUnencrypted)
		return nil
	}

	if !IsStrongEnough(key) {
		s.setStatus(StatusWeakKey)
		return ErrWeakKey
	}

	s.setStatus(StatusEncrypting)
	token, err := s.cryptor.Encrypt(ctx, text, key)
	if err != nil {
		s.setStatus(syncStatusFor(err))
		return err
	}
	if !s.commit(seq, Fragment{Profile: profile, Token: token}.String()) {
		return nil
	}
	s.removeCache()
	s.setStatus(StatusSyncedEncrypted)
	return nil
}

// Flush runs a scheduled sync immediately. It does nothing when no sync is
// scheduled.
func (s *Synchronizer) Flush(ctx context.Context) error {
	s.mu.Lock()
	pending := s.timer != nil
	s.mu.Unlock()
	if !pending {
		return nil
	}
	return s.Sync(ctx)
}

// Load restores the document from the fragment. With an empty fragment a
// cached document, if any, is announced with StatusLoadFromCache and can be
// restored with LoadCache. It reports whether a document was applied.
func (s *Synchronizer) Load(ctx context.Context) (bool, error) {
	if frag := s.location.Fragment(); frag != "" {
		return s.loadFragment(ctx, frag)
	}
	if _, ok := s.readCache(); ok {
		s.setStatus(StatusLoadFromCache)
	}
	return false, nil
}

// LoadCache restores the cached document.
func (s *Synchronizer) LoadCache(ctx context.Context) (bool, error) {
	f, ok := s.readCache()
	if !ok {
		return false, ErrNotStored
	}
	return s.Decrypt(ctx, f.Data, s.Key(), f.KDF)
}

// Decrypt applies the document held in data. A plaintext token is decoded
// without a key; an encrypted token requires password and is resolved against
// kdf or the registry candidates. On success the document text, and for
// encrypted data the key, are replaced and a sync is scheduled.
//
// Decrypt reports whether its result was applied. A call superseded by a later
// Decrypt or Clear returns false and a nil error and changes nothing.
func (s *Synchronizer) Decrypt(ctx context.Context, data, password string, kdf *KDFID) (bool, error) {
	if data == "" {
		return false, nil
	}

	s.mu.Lock()
	s.generation++
	gen := s.generation
	s.mu.Unlock()

	if IsPlaintext(data) {
		s.setStatusIf(gen, StatusLoadingUnencrypted)
		text, err := DecodePlaintext(data, s.maxInflate)
		if err != nil {
			s.setStatusIf(gen, statusFor(err))
			if !s.current(gen) {
				return false, nil
			}
			return false, err
		}
		if !s.apply(gen, text, nil) {
			return false, nil
		}
		s.setStatusIf(gen, StatusLoadedUnencrypted)
		s.scheduleSync()
		return true, nil
	}

	if password == "" {
		s.setStatusIf(gen, StatusSecretKeyRequired)
		return false, ErrKeyRequired
	}

	s.setStatusIf(gen, StatusDecrypting)
	text, err := s.resolver.Resolve(ctx, data, kdf, func(ctx context.Context, id KDFID) (string, error) {
		if !s.current(gen) {
			return "", ErrSuperseded
		}
		text, err := s.cryptor.Decrypt(ctx, data, password, &id)
		if !s.current(gen) {
			return "", ErrSuperseded
		}
		return text, err
	})
	if errors.Is(err, ErrSuperseded) {
		s.logger.Debugf("decrypt generation %d superseded", gen)
		return false, nil
	}
	if err != nil {
		s.setStatusIf(gen, statusFor(err))
		return false, err
	}
	if !s.apply(gen, text, &password) {
		return false, nil
	}
	s.setStatusIf(gen, StatusDecrypted)
	s.scheduleSync()
	return true, nil
}

// Export encodes the current document as an export file: a plaintext token
// without a key, otherwise a token encrypted with the current key.
func (s *Synchronizer) Export(ctx context.Context) ([]byte, error) {
	s.mu.Lock()
	text, key, profile := s.text, s.key, s.profile
	s.mu.Unlock()

	if text == "" {
		return nil, ErrEmptyDocument
	}
	if key == "" {
		token, err := EncodePlaintext(text)
		if err != nil {
			return nil, err
		}
		return NewExportFile(token, "", nil).Marshal()
	}
	if !IsStrongEnough(key) {
		return nil, ErrWeakKey
	}
	token, err := s.cryptor.Encrypt(ctx, text, key)
	if err != nil {
		return nil, err
	}
	id := s.registry.Default()
	return NewExportFile(token, profile, &id).Marshal()
}

// Import decrypts an export file with the current key.
func (s *Synchronizer) Import(ctx context.Context, raw []byte) (bool, error) {
	f, err := ParseExportFile(raw, s.registry)
	if err != nil {
		s.setStatus(StatusInvalidFile)
		return false, err
	}
	name, err := f.ProfileName()
	if err != nil {
		s.setStatus(StatusInvalidFile)
		return false, err
	}
	s.notePendingProfile(name)
	return s.Decrypt(ctx, f.Data, s.Key(), f.KDF)
}

// Clear empties the document, the fragment and the cache. In-flight decrypts
// and syncs are superseded.
func (s *Synchronizer) Clear() {
	s.mu.Lock()
	s.stopTimerLocked()
	s.text = ""
	s.pendingProfile = ""
	s.generation++
	s.syncSeq++
	s.mu.Unlock()

	s.location.ReplaceFragment("")
	s.removeCache()
	s.setStatus(StatusReady)
}

// Close cancels any scheduled sync. In-flight operations finish but their
// results are not applied.
func (s *Synchronizer) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	s.stopTimerLocked()
	s.generation++
	s.syncSeq++
	s.cancel()
	return nil
}

func (s *Synchronizer) loadFragment(ctx context.Context, frag string) (bool, error) {
	f, err := ParseFragment(frag)
	if err != nil {
		s.setStatus(StatusInvalidData)
		return false, err
	}
	s.notePendingProfile(f.Profile)
	return s.Decrypt(ctx, f.Token, s.Key(), nil)
}

func (s *Synchronizer) notePendingProfile(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if name != "" && NormalizeProfileName(name) != s.profile {
		s.pendingProfile = name
	}
}

// scheduleSync re-arms the debounce timer.
func (s *Synchronizer) scheduleSync() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.stopTimerLocked()
	s.scheduled++
	seq := s.scheduled
	s.timer = time.AfterFunc(s.debounce, func() { s.fire(seq) })
}

func (s *Synchronizer) fire(seq uint64) {
	s.mu.Lock()
	if s.closed || seq != s.scheduled || s.timer == nil {
		s.mu.Unlock()
		return
	}
	s.mu.Unlock()

	ctx, cancel := context.WithTimeout(s.ctx, s.syncTimeout)
	defer cancel()
	if err := s.Sync(ctx); err != nil {
		s.logger.Debugf("scheduled sync failed: %v", err)
	}
}

func (s *Synchronizer) stopTimerLocked() {
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}

// commit writes fragment if no newer sync or Clear has started since seq.
func (s *Synchronizer) commit(seq uint64, fragment string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if seq != s.syncSeq {
		return false
	}
	s.location.ReplaceFragment(fragment)
	return true
}

func (s *Synchronizer) current(gen uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return gen == s.generation
}

// apply installs a decrypted document if gen is still current.
func (s *Synchronizer) apply(gen uint64, text string, key *string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.generation {
		return false
	}
	s.text = text
	if key != nil {
		s.key = *key
	}
	return true
}

func (s *Synchronizer) readCache() (ExportFile, bool) {
	raw, err := s.store.Get(CacheKey)
	if err != nil {
		return ExportFile{}, false
	}
	f, err := ParseExportFile([]byte(raw), s.registry)
	if err != nil {
		s.logger.Warnf("discarding unreadable cache: %v", err)
		s.removeCache()
		return ExportFile{}, false
	}
	return f, true
}

func (s *Synchronizer) writeCache(token string) {
	data, err := NewExportFile(token, "", nil).Marshal()
	if err == nil {
		err = s.store.Set(CacheKey, string(data))
	}
	if err != nil {
		s.logger.Warnf("cache write failed: %v", err)
	}
}

func (s *Synchronizer) removeCache() {
	if err := s.store.Remove(CacheKey); err != nil {
		s.logger.Warnf("cache remove failed: %v", err)
	}
}

func (s *Synchronizer) setStatus(st Status) {
	s.mu.Lock()
	s.status = st
	observer := s.observer
	s.mu.Unlock()
	if observer != nil {
		observer(st)
	}
}

// setStatusIf reports st only while gen is the current generation.
func (s *Synchronizer) setStatusIf(gen uint64, st Status) {
	s.mu.Lock()
	if gen != s.generation {
		s.mu.Unlock()
		return
	}
	s.status = st
	observer := s.observer
	s.mu.Unlock()
	if observer != nil {
		observer(st)
	}
}

// statusFor maps a load failure to its status.
func statusFor(err error) Status {
	switch {
	case errors.Is(err, ErrWrongKey):
		return StatusWrongKey
	case errors.Is(err, ErrDecompressionLimit):
		return StatusDecompressionLimit
	case errors.Is(err, ErrDecode), errors.Is(err, ErrInvalidKDF):
		return StatusInvalidData
	case errors.Is(err, ErrKeyRequired):
		return StatusSecretKeyRequired
	case errors.Is(err, ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		return StatusTimeout
	case errors.Is(err, ErrInvalidFile):
		return StatusInvalidFile
	case errors.Is(err, ErrVaultLocked):
		return StatusVaultLocked
	case errors.Is(err, ErrProfileNotFound):
		return StatusProfileNotFound
	case errors.Is(err, ErrWeakKey):
		return StatusWeakKey
	default:
		return StatusSyncError
	}
}

// syncStatusFor maps an encryption failure to its status.
func syncStatusFor(err error) Status {
	if errors.Is(err, ErrTimeout) || errors.Is(err, context.DeadlineExceeded) {
		return StatusTimeout
	}
	return StatusSyncError
}
