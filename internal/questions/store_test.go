package questions

import (
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// constSource makes every rng.Int() identical so GetRandom's ordering falls
// through to the exposure tie-breakers.
type constSource struct{}

func (constSource) Int63() int64 { return 42 }
func (constSource) Seed(int64) {}

func newSet(id, episode string, topics ...string) *Set {
	return &Set{
		ID:                  id,
		SourceEpisodeNumber: episode,
		Topics:              topics,
		Questions:           []string{"What happened?", "Who said it?"},
	}
}

func TestStore_Save(t *testing.T) {
	store := NewStore(nil, nil)

	set := &Set{SourceEpisodeNumber: "510", Questions: []string{"Q?"}}
	id := store.Save(set)

	assert.NotEmpty(t, id)
	assert.Equal(t, id, set.ID)
	assert.False(t, set.GeneratedAt.IsZero())
	assert.Equal(t, 1, store.Len())

	// Insert-if-absent: saving the same ID again leaves the original alone
	dup := &Set{ID: id, SourceEpisodeNumber: "999", Questions: []string{"Other?"}}
	assert.Equal(t, id, store.Save(dup))
	assert.Equal(t, 1, store.Len())
	got := store.ByEpisode("510")
	require.Len(t, got, 1)
	assert.Empty(t, store.ByEpisode("999"))
}

func TestStore_SaveReturnsCopies(t *testing.T) {
	store := NewStore(nil, nil)
	set := newSet("", "510", "Music")
	store.Save(set)

	got := store.GetRandom(1, "")
	require.Len(t, got, 1)
	got[0].Questions[0] = "mutated"
	got[0].TimesShown = 99

	again := store.GetRandom(1, "")
	require.Len(t, again, 1)
	assert.Equal(t, "What happened?", again[0].Questions[0])
	assert.Equal(t, 0, again[0].TimesShown)
}

func TestStore_GetRandomBounds(t *testing.T) {
	store := NewStore(rand.New(rand.NewSource(1)), nil)
	for i := 0; i < 3; i++ {
		store.Save(newSet("", "510"))
	}

	assert.Len(t, store.GetRandom(2, ""), 2)
	assert.Len(t, store.GetRandom(3, ""), 3)
	assert.Len(t, store.GetRandom(10, ""), 3, "asking for more than exists returns everything")
	assert.Empty(t, store.GetRandom(0, ""))
	assert.Empty(t, store.GetRandom(-1, ""))
}

func TestStore_GetRandomTopicFilter(t *testing.T) {
	store := NewStore(rand.New(rand.NewSource(1)), nil)
	store.Save(newSet("a", "510", "Music", "Albums"))
	store.Save(newSet("b", "510", "Movies"))
	store.Save(newSet("c", "201", "Music"))

	got := store.GetRandom(10, "Music")
	require.Len(t, got, 2)
	for _, set := range got {
		assert.Contains(t, set.Topics, "Music")
	}

	assert.Empty(t, store.GetRandom(10, "Politics"))
}

func TestStore_GetRandomDeterministicWithSeed(t *testing.T) {
	build := func() *Store {
		store := NewStore(rand.New(rand.NewSource(7)), nil)
		store.Save(newSet("a", "510"))
		store.Save(newSet("b", "201"))
		store.Save(newSet("c", "606"))
		store.Save(newSet("d", "101"))
		return store
	}

	first := build().GetRandom(4, "")
	second := build().GetRandom(4, "")
	require.Len(t, first, 4)
	for i := range first {
		assert.Equal(t, first[i].ID, second[i].ID, "same seed, same order")
	}
}

func TestStore_GetRandomPrefersUnderexposed(t *testing.T) {
	store := NewStore(rand.New(constSource{}), nil)
	store.Save(newSet("a", "510"))
	store.Save(newSet("b", "510"))
	store.Save(newSet("c", "510"))

	// Show "a" twice and "b" once; "c" stays fresh
	store.MarkShown("a")
	store.MarkShown("a")
	store.MarkShown("b")

	got := store.GetRandom(3, "")
	require.Len(t, got, 3)
	assert.Equal(t, "c", got[0].ID)
	assert.Equal(t, "b", got[1].ID)
	assert.Equal(t, "a", got[2].ID)
}

func TestStore_GetRandomNilLastShownFirst(t *testing.T) {
	store := NewStore(rand.New(constSource{}), nil)

	shown := time.Date(2022, 6, 1, 0, 0, 0, 0, time.UTC)
	a := newSet("a", "510")
	a.TimesShown = 1
	a.LastShownAt = &shown
	b := newSet("b", "510")
	b.TimesShown = 1 // equally exposed, but never stamped
	store.Save(a)
	store.Save(b)

	got := store.GetRandom(2, "")
	require.Len(t, got, 2)
	assert.Equal(t, "b", got[0].ID, "nil LastShownAt sorts before any timestamp")
	assert.Equal(t, "a", got[1].ID)
}

func TestStore_MarkShown(t *testing.T) {
	store := NewStore(nil, nil)
	store.Save(newSet("a", "510"))

	store.MarkShown("a")
	store.MarkShown("a")

	got := store.GetRandom(1, "")
	require.Len(t, got, 1)
	assert.Equal(t, 2, got[0].TimesShown)
	require.NotNil(t, got[0].LastShownAt)
	assert.WithinDuration(t, time.Now().UTC(), *got[0].LastShownAt, time.Minute)

	// Missing ID is a no-op, not a panic
	store.MarkShown("missing")
}

func TestStore_ByEpisodeNewestFirst(t *testing.T) {
	store := NewStore(nil, nil)
	old := newSet("old", "510")
	old.GeneratedAt = time.Date(2022, 1, 1, 0, 0, 0, 0, time.UTC)
	recent := newSet("recent", "510")
	recent.GeneratedAt = time.Date(2022, 6, 1, 0, 0, 0, 0, time.UTC)
	store.Save(old)
	store.Save(recent)
	store.Save(newSet("other", "201"))

	got := store.ByEpisode("510")
	require.Len(t, got, 2)
	assert.Equal(t, "recent", got[0].ID)
	assert.Equal(t, "old", got[1].ID)

	assert.Empty(t, store.ByEpisode("999"))
}

func TestStore_ByTopicAndGeneratedSince(t *testing.T) {
	store := NewStore(nil, nil)
	old := newSet("old", "510", "Music")
	old.GeneratedAt = time.Date(2022, 1, 1, 0, 0, 0, 0, time.UTC)
	recent := newSet("recent", "201", "Movies")
	recent.GeneratedAt = time.Date(2022, 6, 1, 0, 0, 0, 0, time.UTC)
	store.Save(old)
	store.Save(recent)

	byTopic := store.ByTopic("Music")
	require.Len(t, byTopic, 1)
	assert.Equal(t, "old", byTopic[0].ID)

	since := store.GeneratedSince(time.Date(2022, 3, 1, 0, 0, 0, 0, time.UTC))
	require.Len(t, since, 1)
	assert.Equal(t, "recent", since[0].ID)
}

func TestStore_DeleteOlderThan(t *testing.T) {
	store := NewStore(nil, nil)
	old := newSet("old", "510")
	old.GeneratedAt = time.Date(2022, 1, 1, 0, 0, 0, 0, time.UTC)
	recent := newSet("recent", "510")
	recent.GeneratedAt = time.Date(2022, 6, 1, 0, 0, 0, 0, time.UTC)
	store.Save(old)
	store.Save(recent)

	removed := store.DeleteOlderThan(time.Date(2022, 3, 1, 0, 0, 0, 0, time.UTC))
	assert.Equal(t, 1, removed)
	assert.Equal(t, 1, store.Len())
	remaining := store.ByEpisode("510")
	require.Len(t, remaining, 1)
	assert.Equal(t, "recent", remaining[0].ID)

	store.Delete("recent")
	assert.Equal(t, 0, store.Len())
	store.Delete("recent") // no-op
}
