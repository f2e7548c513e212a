// Package similarity scores how relevant one free-text field (a market name or
// address) is to another.
//
// Scores are unbounded sums of per-token weights, so thresholds are absolute
// rather than fractions. Each distinct query token contributes its weight when
// the text holds the same token, or its weight scaled by the Jaro-Winkler
// similarity when the text holds a close misspelling:
//
//   - numeric tokens (house and box numbers) weigh twice their length
//   - street types, directions and stopwords weigh nothing
//   - generic market words ("livestock", "auction", ...) weigh one
//   - every other token weighs its length in runes
//
// Numbers only count when some word matched as well, so a shared house number
// on a different street scores nothing. With these weights "123 Main St"
// against "123 Main Street" scores 10, "456 Main Street" against
// "123 Main Street" scores exactly 4 and "123 Main St" against "123 Oak Ave"
// scores 0.
package similarity

import (
	"strings"
	"unicode"

	"github.com/antzucaro/matchr"
)

const (
	defaultTypoThreshold = 0.92
	defaultMinTypoLength = 4
)

// Scorer computes a relevance score of text for query. Higher is more similar.
type Scorer interface {
	Score(query, text string) float64
}

// canonical folds abbreviations so both spellings land on the same token.
var canonical = map[string]string{
	"st": "street", "str": "street",
	"ave": "avenue", "av": "avenue",
	"rd":  "road",
	"hwy": "highway", "hw": "highway",
	"dr":   "drive",
	"ln":   "lane",
	"blvd": "boulevard",
	"pkwy": "parkway",
	"ct":   "court",
	"n":    "north", "s": "south", "e": "east", "w": "west",
	"ne": "northeast", "nw": "northwest", "se": "southeast", "sw": "southwest",
	"rr":   "rural route",
	"co":   "company",
	"assn": "association",
	"intl": "international",
}

var zeroWeight = map[string]bool{
	"the": true, "of": true, "and": true, "at": true, "a": true, "in": true,
	"street": true, "avenue": true, "road": true, "highway": true, "drive": true,
	"lane": true, "boulevard": true, "parkway": true, "court": true, "route": true,
	"north": true, "south": true, "east": true, "west": true,
	"northeast": true, "northwest": true, "southeast": true, "southwest": true,
}

var lowWeight = map[string]bool{
	"livestock": true, "auction": true, "auctions": true, "market": true,
	"markets": true, "sale": true, "sales": true, "barn": true, "commission": true,
	"company": true, "inc": true, "llc": true, "stockyards": true, "yards": true,
	"cattle": true, "association": true, "exchange": true,
}

// Option configures a TokenScorer.
type Option func(*TokenScorer)

// WithTypoThreshold sets the minimum Jaro-Winkler similarity for two different
// tokens to count as the same word. Default: 0.92.
func WithTypoThreshold(threshold float64) Option {
	return func(s *TokenScorer) {
		s.typoThreshold = threshold
	}
}

// WithMinTypoLength sets the shortest token eligible for typo matching. Default: 4.
func WithMinTypoLength(n int) Option {
	return func(s *TokenScorer) {
		s.minTypoLength = n
	}
}

// TokenScorer is the default Scorer. It is read-only after construction.
type TokenScorer struct {
	typoThreshold float64
	minTypoLength int
}

// NewTokenScorer returns a TokenScorer configured with opts.
func NewTokenScorer(opts ...Option) *TokenScorer {
	s := &TokenScorer{
		typoThreshold: defaultTypoThreshold,
		minTypoLength: defaultMinTypoLength,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Score implements Scorer.
func (s *TokenScorer) Score(query, text string) float64 {
	queryTokens := Tokenize(query)
	textTokens := Tokenize(text)
	if len(queryTokens) == 0 || len(textTokens) == 0 {
		return 0
	}

	present := make(map[string]bool, len(textTokens))
	for _, t := range textTokens {
		present[t] = true
	}

	var words, numbers float64
	seen := make(map[string]bool, len(queryTokens))
	for _, q := range queryTokens {
		if seen[q] {
			continue
		}
		seen[q] = true

		w := weight(q)
		if w == 0 {
			continue
		}
		if present[q] {
			if isNumeric(q) {
				numbers += w
			} else {
				words += w
			}
			continue
		}
		if sim := s.bestTypo(q, textTokens); sim > 0 {
			words += w * sim
		}
	}
	if words == 0 {
		return 0
	}
	return words + numbers
}

func (s *TokenScorer) bestTypo(q string, tokens []string) float64 {
	if len([]rune(q)) < s.minTypoLength || isNumeric(q) {
		return 0
	}
	var best float64
	for _, t := range tokens {
		if len([]rune(t)) < s.minTypoLength || isNumeric(t) {
			continue
		}
		if sim := matchr.JaroWinkler(q, t, false); sim >= s.typoThreshold && sim > best {
			best = sim
		}
	}
	return best
}

// Tokenize lowercases text, splits it on anything that is not a letter or
// digit and folds known abbreviations.
func Tokenize(text string) []string {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	tokens := make([]string, 0, len(fields))
	for _, f := range fields {
		if c, ok := canonical[f]; ok {
			tokens = append(tokens, strings.Fields(c)...)
			continue
		}
		tokens = append(tokens, f)
	}
	return tokens
}

func weight(token string) float64 {
	switch {
	case zeroWeight[token]:
		return 0
	case lowWeight[token]:
		return 1
	case isNumeric(token):
		return 2 * float64(len(token))
	default:
		return float64(len([]rune(token)))
	}
}

func isNumeric(token string) bool {
	for _, r := range token {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return token != ""
}
