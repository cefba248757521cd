package core

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// Syncer reconciles the play-count store with the current track list of a
// context: unseen tracks are inserted at count 0, existing counts are kept.
type Syncer struct {
	spotify SpotifyClient
	store   PlayCountStore
	logger  *zap.Logger
}

func NewSyncer(spotify SpotifyClient, store PlayCountStore, logger *zap.Logger) *Syncer {
	return &Syncer{
		spotify: spotify,
		store:   store,
		logger:  logger,
	}
}

// Sync enumerates the context's tracks upstream and records any unseen ones.
// Returns the full track list and the number of newly inserted records.
// Enumeration failures for generated/restricted contexts pass through as
// ContextUnavailableError so callers can report an actionable message.
func (s *Syncer) Sync(ctx context.Context, contextID string) ([]Track, int, error) {
	tracks, err := s.spotify.ContextTracks(ctx, contextID)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to enumerate context tracks: %w", err)
	}

	trackIDs := make([]string, 0, len(tracks))
	for _, track := range tracks {
		trackIDs = append(trackIDs, track.ID)
	}

	inserted, err := s.store.Sync(ctx, contextID, trackIDs)
	if err != nil {
		return nil, 0, err
	}

	s.logger.Info("Context synchronized",
		zap.String("contextID", contextID),
		zap.Int("tracks", len(tracks)),
		zap.Int("newRecords", inserted))

	return tracks, inserted, nil
}
