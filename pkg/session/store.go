/*
Copyright 2026 The KServe Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Package session keeps per-caller state across otherwise stateless calls.
//
// A Store maps a caller identity to a Session created on first sight of that
// identity. By default the store is unbounded and never expires entries;
// Options.MaxSessions and Options.IdleTimeout turn on LRU capacity eviction
// and idle expiry.
package session

import (
	"context"
	"sync"
	"time"

	"github.com/go-logr/logr"
	"github.com/hashicorp/golang-lru/simplelru"
	"github.com/pkg/errors"

	"github.com/kserve/tensorwire/pkg/metrics"
)

// Options tunes eviction. The zero value keeps every session forever.
type Options struct {
	// MaxSessions bounds the number of live sessions, evicting the least
	// recently used one when exceeded. Zero means unbounded.
	MaxSessions int
	// IdleTimeout expires sessions not seen for this long. Zero means never.
	IdleTimeout time.Duration
}

// Store maps caller identities to sessions. It is safe for concurrent use.
type Store struct {
	log  logr.Logger
	opts Options
	now  func() time.Time

	mu       sync.Mutex
	sessions map[string]*Session
	lru      *simplelru.LRU
	// evictReason labels removals made through lru.Remove; empty means
	// the cache evicted on its own for capacity.
	evictReason string
}

// NewStore returns an empty store, rejecting negative options.
func NewStore(opts Options, log logr.Logger) (*Store, error) {
	if opts.MaxSessions < 0 {
		return nil, errors.Errorf("max sessions must not be negative, got %d", opts.MaxSessions)
	}
	if opts.IdleTimeout < 0 {
		return nil, errors.Errorf("idle timeout must not be negative, got %s", opts.IdleTimeout)
	}
	s := &Store{
		log:  log,
		opts: opts,
		now:  time.Now,
	}
	if opts.MaxSessions > 0 {
		cache, err := simplelru.NewLRU(opts.MaxSessions, s.onEvict)
		if err != nil {
			return nil, errors.Wrap(err, "failed to create session cache")
		}
		s.lru = cache
	} else {
		s.sessions = map[string]*Session{}
	}
	return s, nil
}

// onEvict runs under s.mu, from inside simplelru.
func (s *Store) onEvict(key interface{}, _ interface{}) {
	reason := s.evictReason
	if reason == "" {
		reason = metrics.EvictCapacity
	}
	s.log.V(1).Info("evicted session", "id", key, "reason", reason)
	metrics.RecordSessionEvicted(reason)
}

// GetOrCreate returns the session for identity, creating it if absent or
// expired. Concurrent callers with the same identity receive the same
// *Session.
func (s *Store) GetOrCreate(identity string) *Session {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if sess, ok := s.lookup(identity); ok {
		if !s.expired(sess, now) {
			sess.touch(now)
			return sess
		}
		s.evict(identity, metrics.EvictExpired)
	}

	sess := newSession(identity, now)
	s.insert(identity, sess)
	metrics.RecordSessionCreated()
	s.log.V(1).Info("created session", "id", identity)
	return sess
}

// Get returns the live session for identity without creating one.
func (s *Store) Get(identity string) (*Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.lookup(identity)
	if !ok || s.expired(sess, s.now()) {
		return nil, false
	}
	return sess, true
}

// Len returns the number of held sessions, expired ones included until swept.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.lru != nil {
		return s.lru.Len()
	}
	return len(s.sessions)
}

// Sweep drops every expired session and reports how many were dropped.
func (s *Store) Sweep() int {
	if s.opts.IdleTimeout <= 0 {
		return 0
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	var stale []string
	s.each(func(id string, sess *Session) {
		if s.expired(sess, now) {
			stale = append(stale, id)
		}
	})
	for _, id := range stale {
		s.evict(id, metrics.EvictExpired)
	}
	if len(stale) > 0 {
		s.log.Info("swept expired sessions", "count", len(stale))
	}
	return len(stale)
}

// Run sweeps every interval until ctx is done.
func (s *Store) Run(ctx context.Context, interval time.Duration) {
	if s.opts.IdleTimeout <= 0 || interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Sweep()
		}
	}
}

func (s *Store) expired(sess *Session, now time.Time) bool {
	return s.opts.IdleTimeout > 0 && now.Sub(sess.LastSeen()) > s.opts.IdleTimeout
}

func (s *Store) lookup(id string) (*Session, bool) {
	if s.lru != nil {
		v, ok := s.lru.Get(id)
		if !ok {
			return nil, false
		}
		return v.(*Session), true
	}
	sess, ok := s.sessions[id]
	return sess, ok
}

func (s *Store) insert(id string, sess *Session) {
	if s.lru != nil {
		s.lru.Add(id, sess)
		return
	}
	s.sessions[id] = sess
}

func (s *Store) evict(id string, reason string) {
	if s.lru != nil {
		s.evictReason = reason
		s.lru.Remove(id)
		s.evictReason = ""
		return
	}
	delete(s.sessions, id)
	s.log.V(1).Info("evicted session", "id", id, "reason", reason)
	metrics.RecordSessionEvicted(reason)
}

func (s *Store) each(fn func(id string, sess *Session)) {
	if s.lru != nil {
		for _, k := range s.lru.Keys() {
			if v, ok := s.lru.Peek(k); ok {
				fn(k.(string), v.(*Session))
			}
		}
		return
	}
	for id, sess := range s.sessions {
		fn(id, sess)
	}
}
