// Package phonetic repairs misheard command words using Double Metaphone
// phonetic encoding combined with Jaro-Winkler string similarity.
//
// Speech-to-text output at a noisy front door regularly mangles short command
// words ("lok", "gerage", "nite"). The repair proceeds in two stages:
//
//  1. Phonetic candidate filtering: Double Metaphone codes are computed for
//     the input word and for each vocabulary word. A vocabulary word whose
//     code set overlaps the input's becomes a candidate.
//
//  2. Jaro-Winkler ranking: among phonetic candidates, the vocabulary word
//     with the highest Jaro-Winkler similarity is selected, provided its
//     score clears the phonetic threshold. When no phonetic candidate
//     exists, a secondary pass tests pure Jaro-Winkler similarity against
//     the whole vocabulary with a stricter fuzzy threshold.
package phonetic

import (
	"strings"

	"github.com/antzucaro/matchr"
)

const (
	defaultPhoneticThreshold = 0.70
	defaultFuzzyThreshold    = 0.85
)

// Option is a functional option for configuring a [Matcher].
type Option func(*Matcher)

// WithPhoneticThreshold sets the minimum Jaro-Winkler score required for a
// phonetically-matched word to be accepted. Default: 0.70.
func WithPhoneticThreshold(threshold float64) Option {
	return func(m *Matcher) {
		m.phoneticThreshold = threshold
	}
}

// WithFuzzyThreshold sets the minimum Jaro-Winkler score required when no
// phonetic match is found and the matcher falls back to pure string
// similarity. Default: 0.85.
func WithFuzzyThreshold(threshold float64) Option {
	return func(m *Matcher) {
		m.fuzzyThreshold = threshold
	}
}

// Matcher repairs words against a fixed command vocabulary. All methods are
// safe for concurrent use; the Matcher is read-only after construction.
type Matcher struct {
	phoneticThreshold float64
	fuzzyThreshold    float64

	vocabulary []string
	codes      []map[string]struct{}
}

// New returns a [Matcher] over the given vocabulary with the supplied
// options. Double Metaphone codes for the vocabulary are precomputed once.
func New(vocabulary []string, opts ...Option) *Matcher {
	m := &Matcher{
		phoneticThreshold: defaultPhoneticThreshold,
		fuzzyThreshold:    defaultFuzzyThreshold,
	}
	for _, o := range opts {
		o(m)
	}
	for _, v := range vocabulary {
		v = strings.ToLower(strings.TrimSpace(v))
		if v == "" {
			continue
		}
		m.vocabulary = append(m.vocabulary, v)
		m.codes = append(m.codes, codesFor(v))
	}
	return m
}

// Match attempts to repair word against the vocabulary.
//
// When matched is false, corrected equals word unchanged and confidence is 0.
// An exact vocabulary hit returns immediately with confidence 1.
func (m *Matcher) Match(word string) (corrected string, confidence float64, matched bool) {
	w := strings.ToLower(strings.TrimSpace(word))
	if w == "" {
		return word, 0, false
	}

	inputCodes := codesFor(w)

	type candidate struct {
		word     string
		score    float64
		phonetic bool
	}
	var best candidate

	for i, v := range m.vocabulary {
		if v == w {
			return v, 1, true
		}

		jw := matchr.JaroWinkler(w, v, false)
		if codesOverlap(inputCodes, m.codes[i]) {
			if jw >= m.phoneticThreshold && (!best.phonetic || jw > best.score) {
				best = candidate{word: v, score: jw, phonetic: true}
			}
		} else if !best.phonetic {
			if jw >= m.fuzzyThreshold && jw > best.score {
				best = candidate{word: v, score: jw, phonetic: false}
			}
		}
	}

	if best.word != "" {
		return best.word, best.score, true
	}
	return word, 0, false
}

// codesFor returns the set of Double Metaphone codes for the word. Empty
// codes (very short or consonant-free words) are excluded.
func codesFor(word string) map[string]struct{} {
	codes := make(map[string]struct{}, 2)
	p, s := matchr.DoubleMetaphone(word)
	if p != "" {
		codes[p] = struct{}{}
	}
	if s != "" {
		codes[s] = struct{}{}
	}
	return codes
}

// codesOverlap reports whether the two code sets share at least one code.
func codesOverlap(a, b map[string]struct{}) bool {
	if len(a) > len(b) {
		a, b = b, a
	}
	for code := range a {
		if _, ok := b[code]; ok {
			return true
		}
	}
	return false
}
