package service

import (
	"context"
	"sync"
	"time"

	"docshare/internal/server/database"
)

// In-memory store fakes backing the service tests.

type fakeUserStore struct {
	mu    sync.Mutex
	users map[string]*database.User
}

func newFakeUserStore() *fakeUserStore {
	return &fakeUserStore{users: make(map[string]*database.User)}
}

func (f *fakeUserStore) Create(_ context.Context, user *database.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, exists := f.users[user.Username]; exists {
		return database.ErrUserExists
	}
	u := *user
	f.users[user.Username] = &u
	return nil
}

func (f *fakeUserStore) GetByUsername(_ context.Context, username string) (*database.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[username]
	if !ok {
		return nil, database.ErrUserNotFound
	}
	cp := *u
	return &cp, nil
}

type fakeSessionStore struct {
	mu       sync.Mutex
	sessions map[string]*database.Session
}

func newFakeSessionStore() *fakeSessionStore {
	return &fakeSessionStore{sessions: make(map[string]*database.Session)}
}

func (f *fakeSessionStore) Create(_ context.Context, session *database.Session) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	s := *session
	f.sessions[session.Token] = &s
	return nil
}

func (f *fakeSessionStore) GetByToken(_ context.Context, token string) (*database.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.sessions[token]
	if !ok {
		return nil, database.ErrSessionNotFound
	}
	cp := *s
	return &cp, nil
}

func (f *fakeSessionStore) DeleteExpired(_ context.Context) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var removed int64
	now := time.Now()
	for token, s := range f.sessions {
		if s.ExpiresAt.Before(now) {
			delete(f.sessions, token)
			removed++
		}
	}
	return removed, nil
}

type fakeDocumentStore struct {
	mu   sync.Mutex
	docs map[string]*database.Document
}

func newFakeDocumentStore() *fakeDocumentStore {
	return &fakeDocumentStore{docs: make(map[string]*database.Document)}
}

func (f *fakeDocumentStore) Create(_ context.Context, doc *database.Document) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	d := *doc
	f.docs[doc.ID] = &d
	return nil
}

func (f *fakeDocumentStore) GetByID(_ context.Context, id string) (*database.Document, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	d, ok := f.docs[id]
	if !ok {
		return nil, database.ErrDocumentNotFound
	}
	cp := *d
	return &cp, nil
}

func (f *fakeDocumentStore) Rename(_ context.Context, id, newName string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	d, ok := f.docs[id]
	if !ok {
		return database.ErrDocumentNotFound
	}
	d.DisplayName = newName
	return nil
}

func (f *fakeDocumentStore) Delete(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.docs[id]; !ok {
		return database.ErrDocumentNotFound
	}
	delete(f.docs, id)
	return nil
}

func (f *fakeDocumentStore) List(_ context.Context) ([]*database.Document, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*database.Document
	for _, d := range f.docs {
		cp := *d
		out = append(out, &cp)
	}
	return out, nil
}

type fakeIndexStore struct {
	mu     sync.Mutex
	index  *database.SharedIndex
	stores int
}

func newFakeIndexStore() *fakeIndexStore {
	return &fakeIndexStore{index: &database.SharedIndex{Files: []database.SharedIndexEntry{}}}
}

func (f *fakeIndexStore) Store(_ context.Context, index *database.SharedIndex) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	files := make([]database.SharedIndexEntry, len(index.Files))
	copy(files, index.Files)
	f.index = &database.SharedIndex{Files: files}
	f.stores++
	return nil
}

func (f *fakeIndexStore) Get(_ context.Context) (*database.SharedIndex, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	files := make([]database.SharedIndexEntry, len(f.index.Files))
	copy(files, f.index.Files)
	return &database.SharedIndex{Files: files}, nil
}
