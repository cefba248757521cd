package core

import (
	"sync"
	"time"
)

// Session is the in-memory record of the context currently being managed.
// There is at most one; a new start replaces it wholesale.
type Session struct {
	mu sync.RWMutex

	active             bool
	contextID          string
	tracks             []Track
	shadowPlaylistID   string
	initialTrackID     string
	lastManagedTrackID string
	startedAt          time.Time
}

func NewSession() *Session {
	return &Session{}
}

// Begin replaces the session state with a freshly started session.
func (s *Session) Begin(contextID string, tracks []Track, shadowPlaylistID, initialTrackID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.active = true
	s.contextID = contextID
	s.tracks = tracks
	s.shadowPlaylistID = shadowPlaylistID
	s.initialTrackID = initialTrackID
	s.lastManagedTrackID = ""
	s.startedAt = time.Now()
}

// Deactivate flips the session inactive. Captured state is kept so an
// in-flight tick can finish its current step and observe the flag next tick.
func (s *Session) Deactivate() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.active = false
}

func (s *Session) Active() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.active
}

// Manages reports whether the session is actively managing the given context.
func (s *Session) Manages(contextID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.active && s.contextID == contextID
}

func (s *Session) ContextID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.contextID
}

func (s *Session) TrackCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.tracks)
}

func (s *Session) ShadowPlaylistID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.shadowPlaylistID
}

func (s *Session) InitialTrackID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.initialTrackID
}

func (s *Session) LastManagedTrackID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastManagedTrackID
}

func (s *Session) SetLastManagedTrack(trackID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastManagedTrackID = trackID
}

func (s *Session) StartedAt() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.startedAt
}
