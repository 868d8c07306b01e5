package cluster

import (
	"strings"
	"unicode"

	"github.com/ikawaha/kagome-dict/ipa"
	"github.com/ikawaha/kagome/v2/tokenizer"
)

// Tokenizer turns article text into comparable terms. Implementations are
// locale-aware; the historical English-only stopword handling is exactly the
// defect this indirection removes.
type Tokenizer interface {
	Tokens(text string) []string
}

var englishStopwords = []string{
	"a", "an", "and", "are", "as", "at", "be", "but", "by", "for", "from",
	"had", "has", "have", "he", "her", "his", "in", "is", "it", "its", "of",
	"on", "or", "she", "that", "the", "their", "they", "this", "to", "was",
	"were", "will", "with", "after", "over", "under", "into", "about", "more",
	"not", "no", "than", "then", "them", "there", "been", "being", "we",
	"you", "your", "our", "who", "what", "when", "where", "which", "while",
	"said", "says", "new", "also", "would", "could", "should",
}

// Single-character function words filtered before Han bigram formation.
var hanStopchars = "的了在是和与或有被将把从到对为也就都而及等者之其"

// UnicodeTokenizer handles mixed-script corpora: Latin-script runs become
// lowercased word tokens, Han runs become character bigrams. Works for any
// space-delimited language plus Chinese without a segmentation dictionary.
type UnicodeTokenizer struct {
	stopwords map[string]struct{}
}

var _ Tokenizer = (*UnicodeTokenizer)(nil)

// NewUnicodeTokenizer builds the tokenizer with the English stopword set plus
// any extra per-locale stopwords from configuration.
func NewUnicodeTokenizer(extra ...string) *UnicodeTokenizer {
	stop := make(map[string]struct{}, len(englishStopwords)+len(extra))
	for _, w := range englishStopwords {
		stop[w] = struct{}{}
	}
	for _, w := range extra {
		stop[strings.ToLower(w)] = struct{}{}
	}
	return &UnicodeTokenizer{stopwords: stop}
}

// Tokens extracts terms in document order.
func (u *UnicodeTokenizer) Tokens(text string) []string {
	var (
		tokens []string
		word   []rune
		han    []rune
	)

	flushWord := func() {
		if len(word) >= 2 {
			tok := strings.ToLower(string(word))
			if _, stop := u.stopwords[tok]; !stop {
				tokens = append(tokens, tok)
			}
		}
		word = word[:0]
	}
	flushHan := func() {
		if len(han) == 1 {
			tokens = append(tokens, string(han))
		}
		for i := 0; i+1 < len(han); i++ {
			tokens = append(tokens, string(han[i:i+2]))
		}
		han = han[:0]
	}

	for _, r := range text {
		switch {
		case unicode.Is(unicode.Han, r):
			flushWord()
			if !strings.ContainsRune(hanStopchars, r) {
				han = append(han, r)
			}
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			flushHan()
			word = append(word, r)
		default:
			flushWord()
			flushHan()
		}
	}
	flushWord()
	flushHan()

	return tokens
}

// KagomeTokenizer segments Japanese text morphologically with the IPA
// dictionary, keeping content words (nouns, verbs, adjectives).
type KagomeTokenizer struct {
	t         *tokenizer.Tokenizer
	stopwords map[string]struct{}
}

var _ Tokenizer = (*KagomeTokenizer)(nil)

// NewKagomeTokenizer loads the embedded IPA dictionary.
func NewKagomeTokenizer(extra ...string) (*KagomeTokenizer, error) {
	t, err := tokenizer.New(ipa.Dict(), tokenizer.OmitBosEos())
	if err != nil {
		return nil, err
	}
	stop := make(map[string]struct{}, len(extra))
	for _, w := range extra {
		stop[w] = struct{}{}
	}
	return &KagomeTokenizer{t: t, stopwords: stop}, nil
}

// Tokens keeps content-word surfaces longer than one rune.
func (k *KagomeTokenizer) Tokens(text string) []string {
	var tokens []string
	for _, tok := range k.t.Tokenize(text) {
		features := tok.Features()
		if len(features) == 0 {
			continue
		}
		switch features[0] {
		case "名詞", "動詞", "形容詞":
		default:
			continue
		}
		surface := tok.Surface
		if len([]rune(surface)) < 2 {
			continue
		}
		if _, stop := k.stopwords[surface]; stop {
			continue
		}
		tokens = append(tokens, surface)
	}
	return tokens
}

// ForLocale picks a tokenizer for the configured corpus locale. Japanese gets
// the morphological tokenizer; everything else the Unicode one. Extra
// stopwords for the locale are merged in either way.
func ForLocale(locale string, stopwords map[string][]string) Tokenizer {
	extra := stopwords[locale]
	if locale == "ja" {
		if kt, err := NewKagomeTokenizer(extra...); err == nil {
			return kt
		}
	}
	return NewUnicodeTokenizer(extra...)
}
