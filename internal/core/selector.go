package core

import (
	"context"
	"math/rand"

	"go.uber.org/zap"
)

// Selector picks the next track to play for a context: one of the records
// sharing the minimum play count, chosen uniformly at random. The random
// source is injected so tests can seed it.
type Selector struct {
	store  PlayCountStore
	rng    *rand.Rand
	logger *zap.Logger
}

func NewSelector(store PlayCountStore, rng *rand.Rand, logger *zap.Logger) *Selector {
	return &Selector{
		store:  store,
		rng:    rng,
		logger: logger,
	}
}

// SelectOne returns one least-played record for the context. It is called
// once per track needed, never batched: each caller-side increment shifts the
// least-played set, so a batch drawn up front would go stale mid-way.
func (s *Selector) SelectOne(ctx context.Context, contextID string) (PlayCountRecord, error) {
	candidates, err := s.store.LeastPlayed(ctx, contextID)
	if err != nil {
		return PlayCountRecord{}, err
	}

	if len(candidates) == 0 {
		return PlayCountRecord{}, ErrNoCandidates
	}

	picked := candidates[s.rng.Intn(len(candidates))]

	s.logger.Debug("Selected least-played track",
		zap.String("contextID", contextID),
		zap.String("trackID", picked.TrackID),
		zap.Int("playCount", picked.PlayCount),
		zap.Int("candidates", len(candidates)))

	return picked, nil
}
