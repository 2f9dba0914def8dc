package secredit

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
)

// DefaultWorkerTimeout bounds every worker request.
const DefaultWorkerTimeout = 10 * time.Second

// requestQueueSize is the number of requests a worker buffers before callers block.
const requestQueueSize = 16

// Crypter is the CPU-heavy work a CryptoSession offloads to its worker.
// *Engine implements it.
type Crypter interface {
	Encrypt(text, password string) (string, error)
	Decrypt(token, password string) (string, error)
	DecryptWithKDF(token, password string, id KDFID) (string, error)
}

type requestType string

const (
	requestEncrypt requestType = "encrypt"
	requestDecrypt requestType = "decrypt"
)

// request is one message to the worker.
type request struct {
	id       uint64
	typ      requestType
	text     string
	payload  string
	password string
	kdf      *KDFID
}

// response answers the request with the same id.
type response struct {
	id     uint64
	result string
	err    error
}

// sessionConfig holds CryptoSession configuration.
type sessionConfig struct {
	timeout    time.Duration
	crypter    Crypter
	engineOpts []Option
	registerer prometheus.Registerer
	logger     Logger
}

// worker is one incarnation of the background goroutine.
type worker struct {
	id       string
	requests chan request
	quit     chan struct{}
}

// CryptoSession runs key derivation and AEAD work on a background worker and
// exchanges request/response messages with it. A request that gets no answer
// within the timeout tears the worker down, respawns it, and fails every
// pending request. Results from a torn-down worker are dropped. Nothing is
// retried automatically.
//
// A CryptoSession is safe for concurrent use.
type CryptoSession struct {
	crypter Crypter
	timeout time.Duration
	logger  Logger
	metrics *sessionMetrics

	mu      sync.Mutex
	nextID  uint64
	pending map[uint64]chan response
	worker  *worker
	closed  bool
}

// NewCryptoSession starts a session with one worker.
func NewCryptoSession(opts ...SessionOption) (*CryptoSession, error) {
	cfg := &sessionConfig{timeout: DefaultWorkerTimeout}
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.timeout <= 0 {
		cfg.timeout = DefaultWorkerTimeout
	}
	if cfg.logger == nil {
		cfg.logger = nopLogger{}
	}
	if cfg.crypter == nil {
		engine, err := New(cfg.engineOpts...)
		if err != nil {
			return nil, err
		}
		cfg.crypter = engine
	}

	s := &CryptoSession{
		crypter: cfg.crypter,
		timeout: cfg.timeout,
		logger:  cfg.logger,
		metrics: newSessionMetrics(cfg.registerer),
		pending: make(map[uint64]chan response),
	}
	s.mu.Lock()
	s.spawnLocked()
	s.mu.Unlock()
	return s, nil
}

// Encrypt encrypts text under password with the default KDF profile.
func (s *CryptoSession) Encrypt(ctx context.Context, text, password string) (string, error) {
	return s.call(ctx, request{typ: requestEncrypt, text: text, password: password})
}

// Decrypt decrypts token with password. A non-nil kdf pins the profile;
// otherwise the worker resolves it from the token or the candidate list.
func (s *CryptoSession) Decrypt(ctx context.Context, token, password string, kdf *KDFID) (string, error) {
	return s.call(ctx, request{typ: requestDecrypt, payload: token, password: password, kdf: kdf})
}

// Close stops the worker. Pending and later requests fail with ErrSessionClosed.
func (s *CryptoSession) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	s.failPendingLocked(ErrSessionClosed)
	close(s.worker.quit)
	s.logger.Debugf("crypto worker %s stopped", s.worker.id)
	return nil
}

func (s *CryptoSession) call(ctx context.Context, req request) (string, error) {
	start := time.Now()
	ch := make(chan response, 1)

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return "", ErrSessionClosed
	}
	s.nextID++
	req.id = s.nextID
	s.pending[req.id] = ch
	s.metrics.setPending(len(s.pending))
	w := s.worker
	s.mu.Unlock()

	timer := time.NewTimer(s.timeout)
	defer timer.Stop()

	result, err := s.await(ctx, w, req, ch, timer.C)
	s.metrics.observe(req.typ, err, time.Since(start))
	return result, err
}

func (s *CryptoSession) await(ctx context.Context, w *worker, req request, ch chan response, timeout <-chan time.Time) (string, error) {
	select {
	case w.requests <- req:
	case resp := <-ch:
		return resp.result, resp.err
	case <-timeout:
		return s.expire(req.id, ch)
	case <-ctx.Done():
		s.abandon(req.id)
		return "", ctx.Err()
	}

	select {
	case resp := <-ch:
		return resp.result, resp.err
	case <-timeout:
		return s.expire(req.id, ch)
	case <-ctx.Done():
		s.abandon(req.id)
		return "", ctx.Err()
	}
}

// expire handles a request that ran out of time. If the answer raced in first
// it is returned; otherwise the worker is respawned.
func (s *CryptoSession) expire(id uint64, ch chan response) (string, error) {
	s.mu.Lock()
	if _, ok := s.pending[id]; !ok {
		s.mu.Unlock()
		resp := <-ch
		return resp.result, resp.err
	}
	s.logger.Warnf("crypto worker %s timed out on request %d", s.worker.id, id)
	s.failPendingLocked(ErrTimeout)
	s.respawnLocked("timeout")
	s.mu.Unlock()
	return "", ErrTimeout
}

// abandon forgets a request whose caller gave up. The worker keeps running and
// its eventual answer is discarded.
func (s *CryptoSession) abandon(id uint64) {
	s.mu.Lock()
	delete(s.pending, id)
	s.metrics.setPending(len(s.pending))
	s.mu.Unlock()
}

func (s *CryptoSession) spawnLocked() {
	w := &worker{
		id:       uuid.NewString(),
		requests: make(chan request, requestQueueSize),
		quit:     make(chan struct{}),
	}
	s.worker = w
	go s.run(w)
	s.logger.Debugf("crypto worker %s started", w.id)
}

func (s *CryptoSession) respawnLocked(reason string) {
	close(s.worker.quit)
	s.metrics.respawn(reason)
	s.spawnLocked()
}

func (s *CryptoSession) failPendingLocked(err error) {
	for id, ch := range s.pending {
		ch <- response{id: id, err: err}
		delete(s.pending, id)
	}
	s.metrics.setPending(0)
}

func (s *CryptoSession) run(w *worker) {
	for {
		select {
		case <-w.quit:
			return
		case req := <-w.requests:
			resp, crashed := s.handle(req)
			if crashed {
				s.crash(w, resp)
				return
			}
			s.deliver(w, resp)
		}
	}
}

// handle executes one request, converting a panic into a crash report.
func (s *CryptoSession) handle(req request) (resp response, crashed bool) {
	resp.id = req.id
	defer func() {
		if r := recover(); r != nil {
			resp.err = fmt.Errorf("%w: %v", ErrWorkerFailed, r)
			crashed = true
		}
	}()

	switch req.typ {
	case requestEncrypt:
		resp.result, resp.err = s.crypter.Encrypt(req.text, req.password)
	case requestDecrypt:
		if req.kdf != nil {
			resp.result, resp.err = s.crypter.DecryptWithKDF(req.payload, req.password, *req.kdf)
		} else {
			resp.result, resp.err = s.crypter.Decrypt(req.payload, req.password)
		}
	default:
		resp.err = fmt.Errorf("%w: unknown request type %q", ErrWorkerFailed, req.typ)
	}
	resp.err = workerError(resp.err)
	return resp, false
}

func (s *CryptoSession) deliver(w *worker, resp response) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.worker != w {
		return
	}
	ch, ok := s.pending[resp.id]
	if !ok {
		return
	}
	delete(s.pending, resp.id)
	s.metrics.setPending(len(s.pending))
	ch <- resp
}

func (s *CryptoSession) crash(w *worker, resp response) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.worker != w || s.closed {
		return
	}
	s.logger.Warnf("crypto worker %s crashed on request %d: %v", w.id, resp.id, resp.err)
	s.failPendingLocked(ErrWorkerFailed)
	s.respawnLocked("crash")
}

// workerError reduces err to the errors allowed across the worker boundary.
func workerError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrDecode),
		errors.Is(err, ErrDecompressionLimit),
		errors.Is(err, ErrInvalidKDF),
		errors.Is(err, ErrWrongKey):
		return err
	default:
		return fmt.Errorf("%w: %v", ErrWorkerFailed, err)
	}
}
