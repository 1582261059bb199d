// Package vocab maps surface words to contiguous integer ids and back.
package vocab

import (
	"errors"
	"fmt"
)

// EOS is appended after every corpus line.
const EOS = "<eos>"

var (
	// ErrNotFound is returned when a word or id is not part of the vocabulary.
	ErrNotFound = errors.New("vocab: not found")
	// ErrDuplicate is returned when an ordered word list repeats a word.
	ErrDuplicate = errors.New("vocab: duplicate word")
)

// Vocabulary is a bijection between words and ids in [0, Len()).
// It is built once and read-only afterwards.
type Vocabulary struct {
	wordToID map[string]int
	idToWord []string
}

// New returns an empty vocabulary.
func New() *Vocabulary {
	return &Vocabulary{wordToID: make(map[string]int)}
}

// FromWords builds a vocabulary where words[i] has id i.
func FromWords(words []string) (*Vocabulary, error) {
	v := &Vocabulary{
		wordToID: make(map[string]int, len(words)),
		idToWord: make([]string, 0, len(words)),
	}
	for _, w := range words {
		if _, ok := v.wordToID[w]; ok {
			return nil, fmt.Errorf("%w: %q", ErrDuplicate, w)
		}
		v.Add(w)
	}
	return v, nil
}

// Add inserts word if it is new and returns its id.
func (v *Vocabulary) Add(word string) int {
	if id, ok := v.wordToID[word]; ok {
		return id
	}
	id := len(v.idToWord)
	v.idToWord = append(v.idToWord, word)
	v.wordToID[word] = id
	return id
}

// Lookup returns the id of word.
func (v *Vocabulary) Lookup(word string) (int, bool) {
	id, ok := v.wordToID[word]
	return id, ok
}

// Word returns the surface form of id.
func (v *Vocabulary) Word(id int) (string, bool) {
	if id < 0 || id >= len(v.idToWord) {
		return "", false
	}
	return v.idToWord[id], true
}

// Len returns the number of words.
func (v *Vocabulary) Len() int {
	return len(v.idToWord)
}

// Words returns a copy of the id-ordered word list.
func (v *Vocabulary) Words() []string {
	return append([]string(nil), v.idToWord...)
}
