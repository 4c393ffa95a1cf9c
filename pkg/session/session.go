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


package session

import (
	"sync"
	"sync/atomic"
	"time"
)

// Session is the per-caller record handed to handlers. Its identity is fixed;
// its data map is free for handlers to use. Get, Set and Delete are each
// atomic; use Update for read-modify-write sequences.
type Session struct {
	id       string
	lastSeen atomic.Int64

	mu   sync.Mutex
	data map[string]interface{}
}

func newSession(id string, now time.Time) *Session {
	s := &Session{
		id:   id,
		data: map[string]interface{}{},
	}
	s.touch(now)
	return s
}

func (s *Session) ID() string {
	return s.id
}

// LastSeen is the time of the most recent GetOrCreate for this identity.
func (s *Session) LastSeen() time.Time {
	return time.Unix(0, s.lastSeen.Load())
}

func (s *Session) touch(now time.Time) {
	s.lastSeen.Store(now.UnixNano())
}

func (s *Session) Get(key string) (interface{}, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.data[key]
	return v, ok
}

func (s *Session) Set(key string, value interface{}) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[key] = value
}

func (s *Session) Delete(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, key)
}

// Update runs fn with exclusive access to the session data.
func (s *Session) Update(fn func(data map[string]interface{})) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(s.data)
}

// Snapshot returns a shallow copy of the session data.
func (s *Session) Snapshot() map[string]interface{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]interface{}, len(s.data))
	for k, v := range s.data {
		out[k] = v
	}
	return out
}
