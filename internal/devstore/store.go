// Package devstore is a standalone, in-memory stand-in for the
// collaborators the realtime server normally receives from its host
// application: session lookup, user lookup, note resolution, note
// storage, and the read permission check. A production deployment
// wires pkg/admit.Admitter to its own implementations of the
// pkg/domain service interfaces instead of this package.
package devstore

import (
	"sync"

	"github.com/noteboard/realtime/pkg/domain"
)

// Store holds every note and session known to a single server process.
// It exists so cmd/server has something real to boot against; none of
// it is meant to survive a restart.
type Store struct {
	mu       sync.RWMutex
	sessions map[string]string // sessionId -> username
	users    map[string]*domain.User
	notes    map[string]*domain.Note // keyed by id or alias
	content  map[domain.NoteId]string
}

// New returns an empty store.
func New() *Store {
	return &Store{
		sessions: make(map[string]string),
		users:    make(map[string]*domain.User),
		notes:    make(map[string]*domain.Note),
		content:  make(map[domain.NoteId]string),
	}
}

// Seed registers a session, its user, and a note with initial content,
// the minimum needed for a client to open a connection to that note.
func (s *Store) Seed(sessionId string, user *domain.User, note *domain.Note, initialContent string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[sessionId] = user.Username
	s.users[user.Username] = user
	s.notes[string(note.ID)] = note
	if note.Alias != "" {
		s.notes[note.Alias] = note
	}
	s.content[note.ID] = initialContent
}

// UsernameFromSessionId implements domain.SessionService.
func (s *Store) UsernameFromSessionId(sessionId string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	username, ok := s.sessions[sessionId]
	if !ok {
		return "", domain.ErrUnknownSession
	}
	return username, nil
}

// ByUsername implements domain.UsersService.
func (s *Store) ByUsername(username string) (*domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	user, ok := s.users[username]
	if !ok {
		return nil, domain.ErrUnknownSession
	}
	return user, nil
}

// ByIdOrAlias implements domain.NotesService.
func (s *Store) ByIdOrAlias(idOrAlias string) (*domain.Note, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	note, ok := s.notes[idOrAlias]
	if !ok {
		return nil, domain.ErrNoteNotFound
	}
	return note, nil
}

// GetLatestRevision implements domain.NotesStorage.
func (s *Store) GetLatestRevision(note *domain.Note) (*domain.Revision, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	content, ok := s.content[note.ID]
	if !ok {
		return nil, domain.ErrNoteNotFound
	}
	return &domain.Revision{Content: content}, nil
}

// MayRead implements domain.PermissionsService. Every resolved user may
// read every resolved note; a real deployment plugs in its own ACL here.
func (s *Store) MayRead(*domain.User, *domain.Note) (bool, error) {
	return true, nil
}
