package secredit

import (
	"context"
	"errors"
)

// CodecVersion is one way of opening an encrypted token body: a fixed KDF
// profile applied to salt || iv || ciphertext.
type CodecVersion struct {
	KDF  KDFID
	Open func(body []byte, password string) (string, error)
}

// Versions lists the engine's codec versions in trial order.
func (e *Engine) Versions() []CodecVersion {
	ids := e.config.registry.Candidates()
	out := make([]CodecVersion, 0, len(ids))
	for _, id := range ids {
		out = append(out, e.version(id))
	}
	return out
}

func (e *Engine) version(id KDFID) CodecVersion {
	return CodecVersion{
		KDF: id,
		Open: func(body []byte, password string) (string, error) {
			if len(body) < headerSize {
				return "", ErrDecode
			}
			return e.open(body[:saltSize], body[saltSize:headerSize], body[headerSize:], password, id)
		},
	}
}

// Resolver decides which KDF profiles to try for a token and drives the trials.
// The search is bounded by the registry size; AEAD authentication makes a false
// positive negligible, so the first success is the answer.
type Resolver struct {
	registry *Registry
}

// NewResolver creates a Resolver over registry.
func NewResolver(registry *Registry) *Resolver {
	return &Resolver{registry: registry}
}

// Candidates returns the ids to try for env. An explicit id wins, then the id
// recorded in the token; a legacy token gets the full registry order.
func (r *Resolver) Candidates(env Envelope, explicit *KDFID) []KDFID {
	switch {
	case explicit != nil:
		return []KDFID{*explicit}
	case env.Known:
		return []KDFID{env.KDF}
	default:
		return r.registry.Candidates()
	}
}

// TryFunc attempts one decryption of the token under profile id.
type TryFunc func(ctx context.Context, id KDFID) (string, error)

// Resolve validates token framing and then calls try for each candidate until
// one succeeds.
//
// Framing errors are reported as ErrDecode before any key is derived. A single
// candidate (explicit or recorded id) propagates its own error. A candidate
// search stops early on ErrSuperseded, ErrDecompressionLimit, ErrTimeout or a
// cancelled context, and otherwise reports ErrWrongKey once every candidate has failed.
func (r *Resolver) Resolve(ctx context.Context, token string, explicit *KDFID, try TryFunc) (string, error) {
	env, err := Unframe(token)
	if err != nil {
		return "", err
	}
	if _, _, _, err := env.Parts(); err != nil {
		return "", err
	}

	ids := r.Candidates(env, explicit)
	if len(ids) == 1 {
		return try(ctx, ids[0])
	}

	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		text, err := try(ctx, id)
		if err == nil {
			return text, nil
		}
		if errors.Is(err, ErrSuperseded) || errors.Is(err, ErrDecompressionLimit) ||
			errors.Is(err, ErrTimeout) || errors.Is(err, context.Canceled) ||
			errors.Is(err, context.DeadlineExceeded) {
			return "", err
		}
	}
	return "", ErrWrongKey
}
