package secredit

import (
	"fmt"
	"net/url"
	"strings"
	"sync"
)

// Location holds the current URL fragment. The Synchronizer reads the fragment
// on load and replaces it after every sync, without adding history entries.
type Location interface {
	Fragment() string
	ReplaceFragment(fragment string)
}

// ShareURL is a Location backed by a page URL. The fragment never leaves the
// client, so the whole document travels in it.
type ShareURL struct {
	mu   sync.RWMutex
	base *url.URL
	frag string
}

// ParseShareURL parses raw, keeping any fragment it carries.
func ParseShareURL(raw string) (*ShareURL, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("parse share url: %w", err)
	}
	frag := u.EscapedFragment()
	if f, err := url.PathUnescape(frag); err == nil {
		frag = f
	}
	u.Fragment, u.RawFragment = "", ""
	return &ShareURL{base: u, frag: frag}, nil
}

// Fragment returns the fragment without its leading '#'.
func (s *ShareURL) Fragment() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.frag
}

// ReplaceFragment sets the fragment. A leading '#' is ignored.
func (s *ShareURL) ReplaceFragment(fragment string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.frag = strings.TrimPrefix(fragment, "#")
}

// String returns the full URL including the fragment.
func (s *ShareURL) String() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return withFragment(s.base.String(), s.frag)
}

// Canonical rebases the current fragment onto canonicalBase. The base is reduced
// to its directory with query and fragment removed, so a link copied from a
// mirror or a page with tracking parameters points at the official location.
func (s *ShareURL) Canonical(canonicalBase string) (string, error) {
	base, err := url.Parse(canonicalBase)
	if err != nil {
		return "", fmt.Errorf("parse canonical base: %w", err)
	}
	dir := base.ResolveReference(&url.URL{Path: "."})
	if base.Path == "" {
		dir.Path = "/"
	}
	dir.RawQuery, dir.Fragment, dir.RawFragment = "", "", ""
	return withFragment(dir.String(), s.Fragment()), nil
}

func withFragment(base, frag string) string {
	if frag == "" {
		return base
	}
	return base + "#" + frag
}
