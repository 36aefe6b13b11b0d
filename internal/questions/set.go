// Package questions caches generated question sets and drives the periodic
// generation loop that fills the cache from retrieved transcript chunks.
package questions

import "time"

// Set is a cached bundle of generated candidate questions tied to a source
// episode. TimesShown never decreases; LastShownAt is nil until the set is
// shown for the first time.
type Set struct {
	ID                  string     `json:"id"`
	SourceEpisodeNumber string     `json:"sourceEpisodeNumber"`
	Topics              []string   `json:"topics"`
	Questions           []string   `json:"questions"`
	GeneratedAt         time.Time  `json:"generatedAt"`
	LastShownAt         *time.Time `json:"lastShownAt,omitempty"`
	TimesShown          int        `json:"timesShown"`
}

// clone returns a deep copy so callers cannot mutate cached state; the
// store's MarkShown is the only mutation path.
func (s *Set) clone() *Set {
	c := *s
	c.Topics = append([]string(nil), s.Topics...)
	c.Questions = append([]string(nil), s.Questions...)
	if s.LastShownAt != nil {
		t := *s.LastShownAt
		c.LastShownAt = &t
	}
	return &c
}

// hasTopic reports whether topic appears in the set's topic list.
func (s *Set) hasTopic(topic string) bool {
	for _, t := range s.Topics {
		if t == topic {
			return true
		}
	}
	return false
}
