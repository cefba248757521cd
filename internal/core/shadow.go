package core

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"
)

// ShadowManager maintains the daemon-owned playlist used as the actual
// playback vehicle, decoupled from the user's original context. Playlists
// owned by the daemon are identified by a reserved name prefix.
type ShadowManager struct {
	spotify SpotifyClient
	prefix  string
	logger  *zap.Logger
}

func NewShadowManager(spotify SpotifyClient, prefix string, logger *zap.Logger) *ShadowManager {
	return &ShadowManager{
		spotify: spotify,
		prefix:  prefix,
		logger:  logger,
	}
}

// CreateFresh removes every pre-existing daemon-owned playlist, then creates
// a new one named prefix+label. Guarantees at most one shadow playlist exists
// at a time, so repeated session starts cannot accumulate orphans.
func (m *ShadowManager) CreateFresh(ctx context.Context, label string) (string, error) {
	playlists, err := m.spotify.UserPlaylists(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to list playlists: %w", err)
	}

	for _, playlist := range playlists {
		if !strings.HasPrefix(playlist.Name, m.prefix) {
			continue
		}
		if err := m.spotify.UnfollowPlaylist(ctx, playlist.ID); err != nil {
			return "", fmt.Errorf("failed to remove stale shadow playlist %s: %w", playlist.ID, err)
		}
		m.logger.Info("Removed stale shadow playlist",
			zap.String("playlistID", playlist.ID),
			zap.String("name", playlist.Name))
	}

	playlistID, err := m.spotify.CreatePlaylist(ctx, m.prefix+label)
	if err != nil {
		return "", fmt.Errorf("failed to create shadow playlist: %w", err)
	}

	return playlistID, nil
}

// Clear removes every track from the shadow playlist.
func (m *ShadowManager) Clear(ctx context.Context, playlistID string) error {
	trackIDs, err := m.spotify.PlaylistTrackIDs(ctx, playlistID)
	if err != nil {
		return err
	}
	if len(trackIDs) == 0 {
		return nil
	}
	return m.spotify.RemoveFromPlaylist(ctx, playlistID, trackIDs...)
}

func (m *ShadowManager) Add(ctx context.Context, playlistID string, trackIDs ...string) error {
	return m.spotify.AddToPlaylist(ctx, playlistID, trackIDs...)
}

func (m *ShadowManager) Remove(ctx context.Context, playlistID string, trackIDs ...string) error {
	return m.spotify.RemoveFromPlaylist(ctx, playlistID, trackIDs...)
}

func (m *ShadowManager) List(ctx context.Context, playlistID string) ([]string, error) {
	return m.spotify.PlaylistTrackIDs(ctx, playlistID)
}
