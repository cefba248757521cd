package core

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// errReconcilerBusy indicates a reconciliation tick already holds the tick
// guard; the queued work happens on that tick instead.
var errReconcilerBusy = errors.New("reconciliation already in flight")

// Reconciler is the periodic loop that keeps the device queue topped up with
// least-played tracks while the shadow playlist is the active playback
// context. One tick: read playback, read queue, compute the deficit against
// the target depth, then select/enqueue/increment per missing track.
type Reconciler struct {
	config   *ShuffleConfig
	spotify  SpotifyClient
	store    PlayCountStore
	selector *Selector
	session  *Session
	managed  ManagedSet
	limiter  *rate.Limiter
	metrics  Metrics
	logger   *zap.Logger

	// tickActive guards against overlapping ticks: a tick that is still
	// running when the next fires makes the next a no-op.
	tickMutex  sync.Mutex
	tickActive bool
}

// Metrics receives reconciler observations. The HTTP server provides the
// Prometheus-backed implementation.
type Metrics interface {
	RecordTick(status string)
	RecordTrackAdded()
	RecordError(component string)
	SetQueueDepth(depth int)
}

type nopMetrics struct{}

func (nopMetrics) RecordTick(string)  {}
func (nopMetrics) RecordTrackAdded()  {}
func (nopMetrics) RecordError(string) {}
func (nopMetrics) SetQueueDepth(int)  {}

func NewReconciler(
	config *ShuffleConfig,
	spotify SpotifyClient,
	store PlayCountStore,
	selector *Selector,
	session *Session,
	managed ManagedSet,
	logger *zap.Logger,
) *Reconciler {
	return &Reconciler{
		config:   config,
		spotify:  spotify,
		store:    store,
		selector: selector,
		session:  session,
		managed:  managed,
		limiter:  rate.NewLimiter(rate.Every(config.AddDelay), 1),
		metrics:  nopMetrics{},
		logger:   logger,
	}
}

// SetMetrics installs a metrics sink. Must be called before Run.
func (r *Reconciler) SetMetrics(m Metrics) {
	if m != nil {
		r.metrics = m
	}
}

// Run drives the reconciliation loop until ctx is done. Tick errors are
// logged and counted, never propagated: one bad tick must not kill the timer.
func (r *Reconciler) Run(ctx context.Context) error {
	r.logger.Info("Starting reconciliation loop",
		zap.Duration("interval", r.config.TickInterval),
		zap.Int("queueDepth", r.config.QueueDepth))

	ticker := time.NewTicker(r.config.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("Reconciliation loop stopped")
			return nil
		case <-ticker.C:
			r.tick(ctx)
		}
	}
}

func (r *Reconciler) tick(ctx context.Context) {
	if !r.acquireTickLock() {
		r.logger.Debug("Previous tick still running, skipping")
		r.metrics.RecordTick("skipped")
		return
	}
	defer r.releaseTickLock()

	if err := r.reconcile(ctx); err != nil {
		r.logger.Warn("Reconciliation tick failed", zap.Error(err))
		r.metrics.RecordError("reconciler")
		r.metrics.RecordTick("error")
		return
	}
	r.metrics.RecordTick("ok")
}

func (r *Reconciler) reconcile(ctx context.Context) error {
	if !r.session.Active() {
		return nil
	}
	if !r.spotify.Authenticated() {
		r.logger.Debug("Not authenticated, skipping tick")
		return nil
	}

	playback, err := r.spotify.CurrentPlayback(ctx)
	if err != nil {
		return err
	}

	// The loop only acts while its own shadow playlist is the active
	// context. Anything else means the user took over; disengage until
	// they come back.
	shadowURI := "spotify:playlist:" + r.session.ShadowPlaylistID()
	if !playback.Playing || playback.ContextURI != shadowURI {
		r.logger.Debug("Not playing from shadow playlist, disengaging",
			zap.Bool("playing", playback.Playing),
			zap.String("contextURI", playback.ContextURI))
		return nil
	}

	queueIDs, err := r.spotify.QueueTrackIDs(ctx)
	if err != nil {
		return err
	}

	recognized := r.countRecognized(ctx, queueIDs)
	r.metrics.SetQueueDepth(recognized)

	deficit := r.config.QueueDepth - recognized
	if deficit <= 0 {
		r.logger.Debug("Queue depth sufficient",
			zap.Int("recognized", recognized),
			zap.Int("target", r.config.QueueDepth))
		return nil
	}

	r.logger.Info("Topping up queue",
		zap.Int("recognized", recognized),
		zap.Int("deficit", deficit))

	added, err := r.topUp(ctx, deficit)
	if err != nil {
		// Remaining additions are abandoned for this tick; completed
		// increments stand because their remote adds succeeded. The
		// next tick retries from current state.
		r.logger.Warn("Top-up aborted",
			zap.Int("added", added),
			zap.Int("wanted", deficit),
			zap.Error(err))
		r.metrics.RecordError("topup")
	}

	return nil
}

// countRecognized counts queue entries this daemon is responsible for.
// Entries matching the session's initial track are filtered out first:
// Spotify reports the seeded track both as currently playing and as a queue
// entry, which would otherwise inflate the depth by one.
func (r *Reconciler) countRecognized(ctx context.Context, queueIDs []string) int {
	initialTrackID := r.session.InitialTrackID()

	recent := make(map[string]struct{})
	records, err := r.store.RecentlyTouched(ctx, r.session.ContextID(), r.config.QueueDepth*2)
	if err != nil {
		// The in-memory managed set still recognizes this session's adds.
		r.logger.Warn("Failed to load recently touched records", zap.Error(err))
	} else {
		for _, rec := range records {
			recent[rec.TrackID] = struct{}{}
		}
	}

	recognized := 0
	for _, trackID := range queueIDs {
		if trackID == initialTrackID {
			continue
		}
		if r.managed.Has(trackID) {
			recognized++
			continue
		}
		if _, ok := recent[trackID]; ok {
			recognized++
		}
	}

	return recognized
}

// TopUp selects and enqueues up to needed tracks under the tick guard, so a
// start-time top-up cannot run in parallel with a reconciliation tick and
// overshoot the target depth. When a tick is already in flight the work is
// left to it.
func (r *Reconciler) TopUp(ctx context.Context, needed int) (int, error) {
	if !r.acquireTickLock() {
		return 0, errReconcilerBusy
	}
	defer r.releaseTickLock()

	return r.topUp(ctx, needed)
}

// topUp adds up to needed tracks, one at a time. Callers hold the tick lock.
// Each addition waits on the rate limiter first, and the local increment is
// applied only after the remote add confirmed: never increment speculatively.
// Aborts on the first remote failure, returning how many tracks made it.
func (r *Reconciler) topUp(ctx context.Context, needed int) (int, error) {
	contextID := r.session.ContextID()
	added := 0

	for i := 0; i < needed; i++ {
		if err := r.limiter.Wait(ctx); err != nil {
			return added, err
		}

		record, err := r.selector.SelectOne(ctx, contextID)
		if err != nil {
			return added, err
		}

		if err := r.spotify.AddToQueue(ctx, record.TrackID); err != nil {
			return added, err
		}

		if _, err := r.store.Increment(ctx, contextID, record.TrackID); err != nil {
			// The remote add went through; surface the store fault
			// rather than pretend the count is right.
			return added, err
		}

		r.managed.Add(record.TrackID)
		r.session.SetLastManagedTrack(record.TrackID)
		r.metrics.RecordTrackAdded()
		added++

		r.logger.Debug("Enqueued least-played track",
			zap.String("trackID", record.TrackID),
			zap.Int("playCount", record.PlayCount+1))
	}

	return added, nil
}

func (r *Reconciler) acquireTickLock() bool {
	r.tickMutex.Lock()
	defer r.tickMutex.Unlock()

	if r.tickActive {
		return false
	}
	r.tickActive = true
	return true
}

func (r *Reconciler) releaseTickLock() {
	r.tickMutex.Lock()
	r.tickActive = false
	r.tickMutex.Unlock()
}
