package core

import (
	"context"
	"time"
)

// Track describes a playable track as reported by Spotify.
// Read-only input to the selector and the reconciler.
type Track struct {
	ID       string
	URI      string
	Title    string
	Artists  []string
	Duration time.Duration
}

// PlayCountRecord is one (context, track) row of the play-count store.
type PlayCountRecord struct {
	ContextID  string
	TrackID    string
	PlayCount  int
	LastPlayed *time.Time
}

// Playback is a snapshot of the remote player state.
type Playback struct {
	Playing    bool
	ContextURI string
	TrackID    string
}

// PlaylistInfo identifies one of the user's playlists.
type PlaylistInfo struct {
	ID   string
	Name string
}

type SpotifyClient interface {
	Authenticated() bool
	ContextTracks(ctx context.Context, contextID string) ([]Track, error)
	CurrentPlayback(ctx context.Context) (*Playback, error)
	QueueTrackIDs(ctx context.Context) ([]string, error)
	AddToQueue(ctx context.Context, trackID string) error
	HasActiveDevice(ctx context.Context) (bool, error)
	PlayContext(ctx context.Context, playlistID string) error

	CreatePlaylist(ctx context.Context, name string) (string, error)
	UserPlaylists(ctx context.Context) ([]PlaylistInfo, error)
	UnfollowPlaylist(ctx context.Context, playlistID string) error
	PlaylistTrackIDs(ctx context.Context, playlistID string) ([]string, error)
	AddToPlaylist(ctx context.Context, playlistID string, trackIDs ...string) error
	RemoveFromPlaylist(ctx context.Context, playlistID string, trackIDs ...string) error
}

type PlayCountStore interface {
	Get(ctx context.Context, contextID, trackID string) (int, error)
	Increment(ctx context.Context, contextID, trackID string) (int, error)
	ListByContext(ctx context.Context, contextID string) ([]PlayCountRecord, error)
	LeastPlayed(ctx context.Context, contextID string) ([]PlayCountRecord, error)
	RecentlyTouched(ctx context.Context, contextID string, limit int) ([]PlayCountRecord, error)
	ResetAll(ctx context.Context) (int64, error)
	Sync(ctx context.Context, contextID string, trackIDs []string) (int, error)
}

// ManagedSet tracks which queue entries were placed by this daemon
// during the current session.
type ManagedSet interface {
	Has(trackID string) bool
	Add(trackID string)
	Clear()
	Size() int
}
