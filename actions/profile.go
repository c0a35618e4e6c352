package actions

import "sync"

// DefaultMaxKeysPerUser bounds each user's profile. Profile facts are
// explicit user state rather than a cache, so there is no TTL; the bound
// exists only to stop a misbehaving analysis model from growing a profile
// without limit. When the bound is hit, the oldest-written key is evicted.
const DefaultMaxKeysPerUser = 512

// ProfileStore holds per-user key/value facts. Records are created lazily
// on the first FETCH/STORE/DELETE naming a user and live for the process
// lifetime. Safe for concurrent use.
type ProfileStore struct {
	mu       sync.Mutex
	profiles map[string]*profile
	maxKeys  int
}

type profile struct {
	values map[string]string
	order  []string // insertion order, for bounded eviction
}

// NewProfileStore creates an empty store with the default per-user bound.
func NewProfileStore() *ProfileStore {
	return &ProfileStore{
		profiles: make(map[string]*profile),
		maxKeys:  DefaultMaxKeysPerUser,
	}
}

// Get returns the value stored under user/key.
func (s *ProfileStore) Get(user, key string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.profiles[user]
	if !ok {
		return "", false
	}
	value, ok := p.values[key]
	return value, ok
}

// Set upserts key=value for user, evicting the user's oldest-written key
// when the per-user bound is exceeded.
func (s *ProfileStore) Set(user, key, value string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.profiles[user]
	if !ok {
		p = &profile{values: make(map[string]string)}
		s.profiles[user] = p
	}

	if _, exists := p.values[key]; !exists {
		p.order = append(p.order, key)
		if len(p.order) > s.maxKeys {
			oldest := p.order[0]
			p.order = p.order[1:]
			delete(p.values, oldest)
		}
	}
	p.values[key] = value
}

// Delete removes key from user's profile if present.
func (s *ProfileStore) Delete(user, key string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.profiles[user]
	if !ok {
		return
	}
	if _, exists := p.values[key]; !exists {
		return
	}
	delete(p.values, key)
	for i, k := range p.order {
		if k == key {
			p.order = append(p.order[:i], p.order[i+1:]...)
			break
		}
	}
}

// Len returns the number of keys stored for user.
func (s *ProfileStore) Len(user string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.profiles[user]
	if !ok {
		return 0
	}
	return len(p.values)
}
