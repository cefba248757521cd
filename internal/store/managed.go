package store

import (
	"sync"

	"github.com/bits-and-blooms/bloom/v3"
	lru "github.com/hashicorp/golang-lru/v2"
)

// ManagedSet is a thread-safe set of track IDs the daemon has placed into the
// device queue during the current session. The reconciler uses it to decide
// which queue entries are its own when computing the top-up deficit. A Bloom
// filter front-ends the map so the common miss (a user-queued track) is cheap.
type ManagedSet struct {
	trackIDs          map[string]struct{}
	bloom             *bloom.BloomFilter
	lru               *lru.Cache[string, struct{}]
	mutex             sync.RWMutex
	maxTracks         int
	falsePositiveRate float64
}

// NewManagedSet creates a managed-track set bounded to maxTracks entries.
func NewManagedSet(maxTracks int, falsePositiveRate float64) *ManagedSet {
	lruCache, _ := lru.New[string, struct{}](maxTracks)

	return &ManagedSet{
		trackIDs:          make(map[string]struct{}),
		bloom:             bloom.NewWithEstimates(uint(maxTracks), falsePositiveRate),
		lru:               lruCache,
		maxTracks:         maxTracks,
		falsePositiveRate: falsePositiveRate,
	}
}

// Has checks whether a track ID was placed by this daemon.
func (ms *ManagedSet) Has(trackID string) bool {
	ms.mutex.RLock()
	defer ms.mutex.RUnlock()

	if !ms.bloom.TestString(trackID) {
		return false
	}

	_, exists := ms.trackIDs[trackID]
	return exists
}

// Add records a track ID as daemon-managed.
func (ms *ManagedSet) Add(trackID string) {
	ms.mutex.Lock()
	defer ms.mutex.Unlock()

	if _, exists := ms.trackIDs[trackID]; exists {
		return
	}

	ms.trackIDs[trackID] = struct{}{}
	ms.bloom.AddString(trackID)
	ms.lru.Add(trackID, struct{}{})

	if len(ms.trackIDs) > ms.maxTracks {
		ms.evictOldest()
	}
}

// Clear empties the set. Called on each session start.
func (ms *ManagedSet) Clear() {
	ms.mutex.Lock()
	defer ms.mutex.Unlock()

	ms.trackIDs = make(map[string]struct{})
	ms.bloom = bloom.NewWithEstimates(uint(ms.maxTracks), ms.falsePositiveRate)
	ms.lru.Purge()
}

// Size returns the number of track IDs currently tracked.
func (ms *ManagedSet) Size() int {
	ms.mutex.RLock()
	defer ms.mutex.RUnlock()
	return len(ms.trackIDs)
}

func (ms *ManagedSet) evictOldest() {
	if ms.lru.Len() == 0 {
		return
	}

	oldestKey, _, ok := ms.lru.GetOldest()
	if !ok {
		return
	}

	delete(ms.trackIDs, oldestKey)
	ms.lru.Remove(oldestKey)
	// The bloom filter cannot forget the evicted key; the resulting false
	// positive only makes the reconciler count one extra managed track.
}
