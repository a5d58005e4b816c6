package oracle

import (
	"context"
	"sync"

	"golang.org/x/oauth2"
)

type staticTokens struct {
	mu            sync.Mutex
	token         string
	invalidations int
}

func (s *staticTokens) AccessToken(context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.token, nil
}

func (s *staticTokens) Invalidate(context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.invalidations++
	s.token = "refreshed"
}

type memoryTokenStore struct {
	mu      sync.Mutex
	tokens  map[string]*oauth2.Token
	deletes int
}

func newMemoryTokenStore() *memoryTokenStore {
	return &memoryTokenStore{tokens: map[string]*oauth2.Token{}}
}

func (m *memoryTokenStore) LoadToken(_ context.Context, env string) (*oauth2.Token, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	tok, ok := m.tokens[env]
	if !ok {
		return nil, false, nil
	}
	copied := *tok
	return &copied, true, nil
}

func (m *memoryTokenStore) SaveToken(_ context.Context, env string, tok *oauth2.Token) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	copied := *tok
	m.tokens[env] = &copied
	return nil
}

func (m *memoryTokenStore) DeleteToken(_ context.Context, env string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.tokens, env)
	m.deletes++
	return nil
}

type recordingRuns struct {
	mu   sync.Mutex
	runs []RunRecord
}

func (r *recordingRuns) RecordRun(_ context.Context, run RunRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.runs = append(r.runs, run)
	return nil
}
