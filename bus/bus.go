/* Copyright 2023 The SLID Authors
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 * http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// Package bus talks to sister plugins over the host's message bus.
//
// The engine only ever asks sister plugins one question: "what
// containers do you expose?".  Responses are cached for the session and
// invalidated on new-game and post-load events.
package bus

import (
	"sync"

	"github.com/slid-mod/slid/host"
)

// ListContainersRequest is the wire tag for the container-list query.
const ListContainersRequest = "ListContainersRequest"

// RemoteContainer mirrors one tuple of a sister plugin's response.
type RemoteContainer struct {
	FormID      host.FormID
	DisplayName string
	Location    string
}

// Client requests container lists from one sister plugin.  A nil
// payload (ok=false) means the plugin is absent or declined.
type Client interface {
	Request(tag string) ([]RemoteContainer, bool)
}

// ClientFunc adapts a function to Client.
type ClientFunc func(tag string) ([]RemoteContainer, bool)

func (f ClientFunc) Request(tag string) ([]RemoteContainer, bool) {
	return f(tag)
}

// SessionCache memoises one response per tag until Invalidate.
type SessionCache struct {
	mu sync.Mutex

	client Client
	cached map[string][]RemoteContainer
	known  map[string]bool
}

// NewSessionCache wraps a client with session caching.
func NewSessionCache(c Client) *SessionCache {
	return &SessionCache{
		client: c,
		cached: make(map[string][]RemoteContainer, 2),
		known:  make(map[string]bool, 2),
	}
}

// Request answers from the cache when possible.  A negative response is
// cached too: an absent plugin stays absent for the session.
func (s *SessionCache) Request(tag string) ([]RemoteContainer, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.known[tag] {
		cs, have := s.cached[tag]
		return cs, have
	}
	cs, ok := s.client.Request(tag)
	s.known[tag] = true
	if ok {
		s.cached[tag] = cs
	}
	return cs, ok
}

// Invalidate drops the cache.  Call on kNewGame and kPostLoadGame.
func (s *SessionCache) Invalidate() {
	s.mu.Lock()
	s.cached = make(map[string][]RemoteContainer, 2)
	s.known = make(map[string]bool, 2)
	s.mu.Unlock()
}
