// Package prompt turns a raw user prompt into the token ids that steer the
// first generation steps.
package prompt

import (
	"strings"

	"github.com/samcharles93/wordgen/internal/logger"
)

// Lookup resolves a word to its vocabulary id.
type Lookup interface {
	Lookup(word string) (int, bool)
}

// Sanitized is the in-vocabulary part of a prompt, in prompt order.
// It is immutable once returned by Sanitize.
type Sanitized struct {
	ids     []int
	dropped []string
}

// Sanitize splits raw on whitespace and keeps the ids of words found in
// vocab. Every dropped word is reported through log; a miss never fails the
// whole prompt.
func Sanitize(raw string, vocab Lookup, log logger.Logger) Sanitized {
	words := strings.Fields(raw)
	if len(words) == 0 {
		return Sanitized{}
	}
	s := Sanitized{ids: make([]int, 0, len(words))}
	for _, w := range words {
		id, ok := vocab.Lookup(w)
		if !ok {
			s.dropped = append(s.dropped, w)
			if log != nil {
				log.Warn("word is not part of the vocabulary and will be removed from the prompt", "word", w)
			}
			continue
		}
		s.ids = append(s.ids, id)
	}
	return s
}

// FromIDs builds a Sanitized directly from already-valid ids.
func FromIDs(ids []int) Sanitized {
	return Sanitized{ids: append([]int(nil), ids...)}
}

// Len returns the number of valid prompt tokens.
func (s Sanitized) Len() int { return len(s.ids) }

// Empty reports whether no prompt word survived.
func (s Sanitized) Empty() bool { return len(s.ids) == 0 }

// At returns the i-th valid token id.
func (s Sanitized) At(i int) int { return s.ids[i] }

// IDs returns a copy of the valid token ids.
func (s Sanitized) IDs() []int { return append([]int(nil), s.ids...) }

// Dropped returns the out-of-vocabulary words in prompt order.
func (s Sanitized) Dropped() []string { return append([]string(nil), s.dropped...) }
