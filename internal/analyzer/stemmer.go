package analyzer

import "github.com/surgebase/porter2"

// Stemmer wraps the Porter2 stemmer behind the analyzer's enable_stemming
// flag, the same on/off wrapping standardbeagle-lci's semantic.Stemmer
// applies around the same library.
type Stemmer struct {
	enabled bool
}

// NewStemmer returns a Stemmer that is a no-op when enabled is false.
func NewStemmer(enabled bool) *Stemmer {
	return &Stemmer{enabled: enabled}
}

// Stem returns the Porter2 stem of word, or word unchanged if stemming is
// disabled for this profile.
func (s *Stemmer) Stem(word string) string {
	if !s.enabled {
		return word
	}
	return porter2.Stem(word)
}
