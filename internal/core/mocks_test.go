package core

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
)

// mockSpotify implements SpotifyClient with canned responses and call
// recording. A zero value behaves like an authenticated client with no
// playback and empty library.
type mockSpotify struct {
	authenticated bool
	hasDevice     bool

	playback    *Playback
	playbackErr error

	contextTracks    map[string][]Track
	contextTracksErr error

	queueIDs    []string
	queueErr    error
	addedQueue  []string
	addQueueErr error
	// addQueueFailOn fails the Nth AddToQueue call (1-based). Zero never fails.
	addQueueFailOn int
	addQueueCalls  int

	userPlaylists    []PlaylistInfo
	createdPlaylists []string
	unfollowed       []string
	playlistTracks   map[string][]string
	playContexts     []string
}

func newMockSpotify() *mockSpotify {
	return &mockSpotify{
		authenticated:  true,
		hasDevice:      true,
		contextTracks:  make(map[string][]Track),
		playlistTracks: make(map[string][]string),
	}
}

func (m *mockSpotify) Authenticated() bool {
	return m.authenticated
}

func (m *mockSpotify) ContextTracks(_ context.Context, contextID string) ([]Track, error) {
	if m.contextTracksErr != nil {
		return nil, m.contextTracksErr
	}
	return m.contextTracks[contextID], nil
}

func (m *mockSpotify) CurrentPlayback(_ context.Context) (*Playback, error) {
	if m.playbackErr != nil {
		return nil, m.playbackErr
	}
	if m.playback == nil {
		return &Playback{}, nil
	}
	return m.playback, nil
}

func (m *mockSpotify) QueueTrackIDs(_ context.Context) ([]string, error) {
	if m.queueErr != nil {
		return nil, m.queueErr
	}
	return m.queueIDs, nil
}

func (m *mockSpotify) AddToQueue(_ context.Context, trackID string) error {
	m.addQueueCalls++
	if m.addQueueFailOn > 0 && m.addQueueCalls == m.addQueueFailOn {
		return fmt.Errorf("add to queue failed on call %d", m.addQueueCalls)
	}
	if m.addQueueErr != nil {
		return m.addQueueErr
	}
	m.addedQueue = append(m.addedQueue, trackID)
	return nil
}

func (m *mockSpotify) HasActiveDevice(_ context.Context) (bool, error) {
	return m.hasDevice, nil
}

func (m *mockSpotify) PlayContext(_ context.Context, playlistID string) error {
	m.playContexts = append(m.playContexts, playlistID)
	return nil
}

func (m *mockSpotify) CreatePlaylist(_ context.Context, name string) (string, error) {
	playlistID := fmt.Sprintf("shadow%d", len(m.createdPlaylists)+1)
	m.createdPlaylists = append(m.createdPlaylists, name)
	m.userPlaylists = append(m.userPlaylists, PlaylistInfo{ID: playlistID, Name: name})
	return playlistID, nil
}

func (m *mockSpotify) UserPlaylists(_ context.Context) ([]PlaylistInfo, error) {
	return m.userPlaylists, nil
}

func (m *mockSpotify) UnfollowPlaylist(_ context.Context, playlistID string) error {
	m.unfollowed = append(m.unfollowed, playlistID)
	kept := m.userPlaylists[:0]
	for _, playlist := range m.userPlaylists {
		if playlist.ID != playlistID {
			kept = append(kept, playlist)
		}
	}
	m.userPlaylists = kept
	return nil
}

func (m *mockSpotify) PlaylistTrackIDs(_ context.Context, playlistID string) ([]string, error) {
	return m.playlistTracks[playlistID], nil
}

func (m *mockSpotify) AddToPlaylist(_ context.Context, playlistID string, trackIDs ...string) error {
	m.playlistTracks[playlistID] = append(m.playlistTracks[playlistID], trackIDs...)
	return nil
}

func (m *mockSpotify) RemoveFromPlaylist(_ context.Context, playlistID string, trackIDs ...string) error {
	remove := make(map[string]struct{}, len(trackIDs))
	for _, trackID := range trackIDs {
		remove[trackID] = struct{}{}
	}
	kept := m.playlistTracks[playlistID][:0]
	for _, trackID := range m.playlistTracks[playlistID] {
		if _, drop := remove[trackID]; !drop {
			kept = append(kept, trackID)
		}
	}
	m.playlistTracks[playlistID] = kept
	return nil
}

// mockStore implements PlayCountStore in memory with the same ordering
// semantics as the SQLite implementation.
type mockStore struct {
	mu      sync.Mutex
	records map[string]map[string]*PlayCountRecord

	incrementCalls int
	// incrementFailOn fails the Nth Increment call (1-based). Zero never fails.
	incrementFailOn int
	leastPlayedErr  error
}

func newMockStore() *mockStore {
	return &mockStore{records: make(map[string]map[string]*PlayCountRecord)}
}

func (m *mockStore) seed(contextID string, trackIDs ...string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, trackID := range trackIDs {
		m.insertLocked(contextID, trackID)
	}
}

func (m *mockStore) insertLocked(contextID, trackID string) bool {
	byTrack, ok := m.records[contextID]
	if !ok {
		byTrack = make(map[string]*PlayCountRecord)
		m.records[contextID] = byTrack
	}
	if _, exists := byTrack[trackID]; exists {
		return false
	}
	byTrack[trackID] = &PlayCountRecord{ContextID: contextID, TrackID: trackID}
	return true
}

func (m *mockStore) Get(_ context.Context, contextID, trackID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if rec, ok := m.records[contextID][trackID]; ok {
		return rec.PlayCount, nil
	}
	return 0, nil
}

func (m *mockStore) Increment(_ context.Context, contextID, trackID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.incrementCalls++
	if m.incrementFailOn > 0 && m.incrementCalls == m.incrementFailOn {
		return 0, &StoreError{Op: "increment", Err: fmt.Errorf("injected failure on call %d", m.incrementCalls)}
	}

	m.insertLocked(contextID, trackID)
	rec := m.records[contextID][trackID]
	rec.PlayCount++
	now := time.Now()
	rec.LastPlayed = &now
	return rec.PlayCount, nil
}

func (m *mockStore) ListByContext(_ context.Context, contextID string) ([]PlayCountRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sortedLocked(contextID), nil
}

func (m *mockStore) LeastPlayed(_ context.Context, contextID string) ([]PlayCountRecord, error) {
	if m.leastPlayedErr != nil {
		return nil, m.leastPlayedErr
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	records := m.sortedLocked(contextID)
	if len(records) == 0 {
		return nil, nil
	}
	min := records[0].PlayCount
	least := make([]PlayCountRecord, 0, len(records))
	for _, rec := range records {
		if rec.PlayCount == min {
			least = append(least, rec)
		}
	}
	return least, nil
}

func (m *mockStore) RecentlyTouched(_ context.Context, contextID string, limit int) ([]PlayCountRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	touched := make([]PlayCountRecord, 0)
	for _, rec := range m.records[contextID] {
		if rec.LastPlayed != nil {
			touched = append(touched, *rec)
		}
	}
	sort.Slice(touched, func(i, j int) bool {
		return touched[i].LastPlayed.After(*touched[j].LastPlayed)
	})
	if len(touched) > limit {
		touched = touched[:limit]
	}
	return touched, nil
}

func (m *mockStore) ResetAll(_ context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var affected int64
	for _, byTrack := range m.records {
		for _, rec := range byTrack {
			rec.PlayCount = 0
			rec.LastPlayed = nil
			affected++
		}
	}
	return affected, nil
}

func (m *mockStore) Sync(_ context.Context, contextID string, trackIDs []string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	inserted := 0
	for _, trackID := range trackIDs {
		if trackID == "" {
			continue
		}
		if m.insertLocked(contextID, trackID) {
			inserted++
		}
	}
	return inserted, nil
}

func (m *mockStore) sortedLocked(contextID string) []PlayCountRecord {
	records := make([]PlayCountRecord, 0, len(m.records[contextID]))
	for _, rec := range m.records[contextID] {
		records = append(records, *rec)
	}
	sort.Slice(records, func(i, j int) bool {
		a, b := records[i], records[j]
		if a.PlayCount != b.PlayCount {
			return a.PlayCount < b.PlayCount
		}
		if (a.LastPlayed == nil) != (b.LastPlayed == nil) {
			return a.LastPlayed == nil
		}
		if a.LastPlayed != nil && !a.LastPlayed.Equal(*b.LastPlayed) {
			return a.LastPlayed.Before(*b.LastPlayed)
		}
		return a.TrackID < b.TrackID
	})
	return records
}

// mockManaged implements ManagedSet with a plain map.
type mockManaged struct {
	mu       sync.Mutex
	trackIDs map[string]struct{}
}

func newMockManaged() *mockManaged {
	return &mockManaged{trackIDs: make(map[string]struct{})}
}

func (m *mockManaged) Has(trackID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.trackIDs[trackID]
	return ok
}

func (m *mockManaged) Add(trackID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.trackIDs[trackID] = struct{}{}
}

func (m *mockManaged) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.trackIDs = make(map[string]struct{})
}

func (m *mockManaged) Size() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.trackIDs)
}

// recordingMetrics counts Metrics callbacks for assertions.
type recordingMetrics struct {
	mu          sync.Mutex
	ticks       map[string]int
	tracksAdded int
	errors      map[string]int
	queueDepth  int
}

func newRecordingMetrics() *recordingMetrics {
	return &recordingMetrics{
		ticks:  make(map[string]int),
		errors: make(map[string]int),
	}
}

func (m *recordingMetrics) RecordTick(status string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ticks[status]++
}

func (m *recordingMetrics) RecordTrackAdded() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tracksAdded++
}

func (m *recordingMetrics) RecordError(component string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errors[component]++
}

func (m *recordingMetrics) SetQueueDepth(depth int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.queueDepth = depth
}
