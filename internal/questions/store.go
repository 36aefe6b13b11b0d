package questions

import (
	"log/slog"
	"math/rand"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Store is a concurrent cache of generated question sets. It is owned by
// the composition root and injected into consumers; all synchronization is
// internal, callers never coordinate.
//
// The injected *rand.Rand drives GetRandom's shuffle; tests fix the seed to
// assert exact ordering.
type Store struct {
	mu     sync.Mutex
	sets   map[string]*Set
	rng    *rand.Rand
	now    func() time.Time
	logger *slog.Logger
}

// NewStore creates an empty question store. A nil rng gets a time-seeded
// generator; a nil logger gets slog.Default().
func NewStore(rng *rand.Rand, logger *slog.Logger) *Store {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		sets:   make(map[string]*Set),
		rng:    rng,
		now:    time.Now,
		logger: logger.With("component", "question-store"),
	}
}

// Save inserts the set, assigning a fresh ID if absent, and returns the ID.
// Insert-if-absent: an existing ID leaves the stored set untouched.
func (s *Store) Save(set *Set) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	if set.ID == "" {
		set.ID = uuid.New().String()
	}
	if set.GeneratedAt.IsZero() {
		set.GeneratedAt = s.now().UTC()
	}
	if _, exists := s.sets[set.ID]; exists {
		return set.ID
	}
	s.sets[set.ID] = set.clone()
	return set.ID
}

// GetRandom returns up to count sets, optionally restricted to those whose
// topic list contains topic. Candidates are ordered by a random key first,
// then by ascending TimesShown, then by oldest (nil first) LastShownAt:
// variety wins, underexposure breaks ties. Returned sets are copies; call
// MarkShown to record display.
func (s *Store) GetRandom(count int, topic string) []*Set {
	s.mu.Lock()
	defer s.mu.Unlock()

	type candidate struct {
		set *Set
		key int
	}

	var pool []candidate
	for _, id := range s.sortedIDs() {
		set := s.sets[id]
		if topic != "" && !set.hasTopic(topic) {
			continue
		}
		pool = append(pool, candidate{set: set, key: s.rng.Int()})
	}

	sort.SliceStable(pool, func(i, j int) bool {
		if pool[i].key != pool[j].key {
			return pool[i].key < pool[j].key
		}
		if pool[i].set.TimesShown != pool[j].set.TimesShown {
			return pool[i].set.TimesShown < pool[j].set.TimesShown
		}
		return lastShownOrZero(pool[i].set).Before(lastShownOrZero(pool[j].set))
	})

	if count < 0 {
		count = 0
	}
	if len(pool) > count {
		pool = pool[:count]
	}

	out := make([]*Set, 0, len(pool))
	for _, c := range pool {
		out = append(out, c.set.clone())
	}
	return out
}

// MarkShown increments the set's TimesShown and stamps LastShownAt.
// A missing ID is a no-op.
func (s *Store) MarkShown(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	set, ok := s.sets[id]
	if !ok {
		return
	}
	set.TimesShown++
	t := s.now().UTC()
	set.LastShownAt = &t
}

// ByEpisode returns all sets generated for the episode, newest first.
// A miss returns an empty slice, not an error.
func (s *Store) ByEpisode(episodeNumber string) []*Set {
	return s.collect(func(set *Set) bool {
		return set.SourceEpisodeNumber == episodeNumber
	})
}

// ByTopic returns all sets whose topic list contains topic, newest first.
func (s *Store) ByTopic(topic string) []*Set {
	return s.collect(func(set *Set) bool {
		return set.hasTopic(topic)
	})
}

// GeneratedSince returns all sets generated at or after cutoff, newest first.
func (s *Store) GeneratedSince(cutoff time.Time) []*Set {
	return s.collect(func(set *Set) bool {
		return !set.GeneratedAt.Before(cutoff)
	})
}

// DeleteOlderThan purges sets generated before cutoff and returns how many
// were removed.
func (s *Store) DeleteOlderThan(cutoff time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for id, set := range s.sets {
		if set.GeneratedAt.Before(cutoff) {
			delete(s.sets, id)
			removed++
		}
	}
	if removed > 0 {
		s.logger.Info("purged question sets", "removed", removed)
	}
	return removed
}

// Delete removes the set with the given ID. A missing ID is a no-op.
func (s *Store) Delete(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sets, id)
}

// Len returns the number of cached sets.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sets)
}

func (s *Store) collect(match func(*Set) bool) []*Set {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]*Set, 0)
	for _, set := range s.sets {
		if match(set) {
			out = append(out, set.clone())
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].GeneratedAt.After(out[j].GeneratedAt)
	})
	return out
}

// sortedIDs gives deterministic iteration order so a fixed rng seed
// produces a reproducible GetRandom ordering.
func (s *Store) sortedIDs() []string {
	ids := make([]string, 0, len(s.sets))
	for id := range s.sets {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func lastShownOrZero(set *Set) time.Time {
	if set.LastShownAt == nil {
		return time.Time{}
	}
	return *set.LastShownAt
}
