package core

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Controller implements the control surface: start, stop, status, and the
// administrative play-count reset. Collaborators are injected explicitly;
// there is no package-level state.
type Controller struct {
	config     *ShuffleConfig
	spotify    SpotifyClient
	store      PlayCountStore
	syncer     *Syncer
	selector   *Selector
	shadow     *ShadowManager
	reconciler *Reconciler
	session    *Session
	managed    ManagedSet
	logger     *zap.Logger
}

// Status is the control surface's view of the daemon.
type Status struct {
	Authenticated      bool       `json:"authenticated"`
	Active             bool       `json:"active"`
	ContextID          string     `json:"context_id,omitempty"`
	TrackCount         int        `json:"track_count,omitempty"`
	ShadowPlaylistID   string     `json:"shadow_playlist_id,omitempty"`
	LastManagedTrackID string     `json:"last_managed_track_id,omitempty"`
	StartedAt          *time.Time `json:"started_at,omitempty"`
}

func NewController(
	config *ShuffleConfig,
	spotify SpotifyClient,
	store PlayCountStore,
	syncer *Syncer,
	selector *Selector,
	shadow *ShadowManager,
	reconciler *Reconciler,
	session *Session,
	managed ManagedSet,
	logger *zap.Logger,
) *Controller {
	return &Controller{
		config:     config,
		spotify:    spotify,
		store:      store,
		syncer:     syncer,
		selector:   selector,
		shadow:     shadow,
		reconciler: reconciler,
		session:    session,
		managed:    managed,
		logger:     logger,
	}
}

// StartShuffle begins managing a context. With an empty contextID the context
// is resolved from current playback. Idempotent: starting a context that is
// already managed reports ErrAlreadyActive without touching session state or
// creating another shadow playlist.
func (c *Controller) StartShuffle(ctx context.Context, contextID string) (*Status, error) {
	if !c.spotify.Authenticated() {
		return nil, ErrAuthRequired
	}

	contextID, err := c.resolveContext(ctx, contextID)
	if err != nil {
		return nil, err
	}
	contextID = CanonicalContextID(contextID)

	hasDevice, err := c.spotify.HasActiveDevice(ctx)
	if err != nil {
		return nil, err
	}
	if !hasDevice {
		return nil, ErrNoActiveDevice
	}

	if c.session.Manages(contextID) {
		c.logger.Info("Shuffle already active for context",
			zap.String("contextID", contextID))
		return c.Status(), ErrAlreadyActive
	}

	// A bare start during an active session resolves the context from
	// playback, which is the shadow playlist itself. That is the running
	// session, not a new context to manage.
	if c.session.Active() && contextID == CanonicalContextID(c.session.ShadowPlaylistID()) {
		c.logger.Info("Resolved context is the active shadow playlist",
			zap.String("contextID", contextID))
		return c.Status(), ErrAlreadyActive
	}

	tracks, _, err := c.syncer.Sync(ctx, contextID)
	if err != nil {
		return nil, err
	}
	if len(tracks) == 0 {
		return nil, &ContextUnavailableError{
			ContextID: contextID,
			Reason:    "context has no playable tracks",
		}
	}

	shadowPlaylistID, err := c.shadow.CreateFresh(ctx, shadowLabel(contextID))
	if err != nil {
		return nil, err
	}

	c.managed.Clear()

	// Seed the shadow playlist with one least-played track. Its increment
	// follows the confirmed remote add, same as every later top-up.
	seed, err := c.selector.SelectOne(ctx, contextID)
	if err != nil {
		return nil, err
	}
	if err := c.shadow.Add(ctx, shadowPlaylistID, seed.TrackID); err != nil {
		return nil, fmt.Errorf("failed to seed shadow playlist: %w", err)
	}
	if _, err := c.store.Increment(ctx, contextID, seed.TrackID); err != nil {
		return nil, err
	}
	c.managed.Add(seed.TrackID)

	c.session.Begin(contextID, tracks, shadowPlaylistID, seed.TrackID)
	c.session.SetLastManagedTrack(seed.TrackID)

	if err := c.spotify.PlayContext(ctx, shadowPlaylistID); err != nil {
		return nil, fmt.Errorf("failed to start shadow playback: %w", err)
	}

	// Top up the queue right away so the first tracks are already lined up
	// by the time the first reconciliation tick fires.
	if added, err := c.reconciler.TopUp(ctx, c.config.QueueDepth); err != nil {
		c.logger.Warn("Initial queue top-up incomplete, reconciler will retry",
			zap.Int("added", added),
			zap.Error(err))
	}

	c.logger.Info("Shuffle session started",
		zap.String("contextID", contextID),
		zap.String("shadowPlaylistID", shadowPlaylistID),
		zap.Int("tracks", len(tracks)))

	return c.Status(), nil
}

// StopShuffle deactivates the session. In-flight reconciler work finishes its
// current step; the next tick observes the inactive flag and becomes a no-op.
func (c *Controller) StopShuffle() *Status {
	c.session.Deactivate()
	c.logger.Info("Shuffle session stopped")
	return c.Status()
}

func (c *Controller) Status() *Status {
	var startedAt *time.Time
	if t := c.session.StartedAt(); !t.IsZero() {
		startedAt = &t
	}

	return &Status{
		Authenticated:      c.spotify.Authenticated(),
		Active:             c.session.Active(),
		ContextID:          c.session.ContextID(),
		TrackCount:         c.session.TrackCount(),
		ShadowPlaylistID:   c.session.ShadowPlaylistID(),
		LastManagedTrackID: c.session.LastManagedTrackID(),
		StartedAt:          startedAt,
	}
}

// ResetPlayCounts zeroes every play count across all contexts.
func (c *Controller) ResetPlayCounts(ctx context.Context) (int64, error) {
	affected, err := c.store.ResetAll(ctx)
	if err != nil {
		return 0, err
	}

	c.logger.Info("Play counts reset", zap.Int64("records", affected))
	return affected, nil
}

func (c *Controller) resolveContext(ctx context.Context, contextID string) (string, error) {
	if contextID != "" {
		return contextID, nil
	}

	playback, err := c.spotify.CurrentPlayback(ctx)
	if err != nil {
		return "", err
	}
	if !playback.Playing || playback.ContextURI == "" {
		return "", ErrNoPlayback
	}

	c.logger.Debug("Resolved context from current playback",
		zap.String("contextURI", playback.ContextURI))

	return playback.ContextURI, nil
}

// shadowLabel derives a human-readable shadow playlist label from a context
// reference, keeping only the bare ID of URI-style references.
func shadowLabel(contextID string) string {
	if idx := strings.LastIndex(contextID, ":"); idx >= 0 {
		return contextID[idx+1:]
	}
	if idx := strings.LastIndex(contextID, "/"); idx >= 0 {
		return contextID[idx+1:]
	}
	return contextID
}
