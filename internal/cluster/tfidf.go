package cluster

import (
	"math"
	"sort"
)

// Vector is a sparse TF-IDF feature vector over the fitted vocabulary.
type Vector map[int]float64

// Vectorizer turns a corpus into L2-normalized TF-IDF vectors over a bounded
// vocabulary, so memory and CPU stay capped on large windows.
type Vectorizer struct {
	MaxFeatures int
	tok         Tokenizer
}

// NewVectorizer bounds the vocabulary to maxFeatures terms; <= 0 means 5000.
func NewVectorizer(tok Tokenizer, maxFeatures int) *Vectorizer {
	if maxFeatures <= 0 {
		maxFeatures = 5000
	}
	return &Vectorizer{MaxFeatures: maxFeatures, tok: tok}
}

// FitTransform builds the vocabulary from the corpus and vectorizes it in one
// pass. The vocabulary keeps the most document-frequent terms with a
// lexicographic tie-break, so identical corpora always vectorize identically.
func (v *Vectorizer) FitTransform(docs []string) []Vector {
	tokenized := make([][]string, len(docs))
	df := map[string]int{}
	for i, doc := range docs {
		tokenized[i] = v.tok.Tokens(doc)
		seen := map[string]struct{}{}
		for _, term := range tokenized[i] {
			if _, ok := seen[term]; ok {
				continue
			}
			seen[term] = struct{}{}
			df[term]++
		}
	}

	terms := make([]string, 0, len(df))
	for term := range df {
		terms = append(terms, term)
	}
	sort.Slice(terms, func(i, j int) bool {
		if df[terms[i]] != df[terms[j]] {
			return df[terms[i]] > df[terms[j]]
		}
		return terms[i] < terms[j]
	})
	if len(terms) > v.MaxFeatures {
		terms = terms[:v.MaxFeatures]
	}

	vocab := make(map[string]int, len(terms))
	for i, term := range terms {
		vocab[term] = i
	}

	n := float64(len(docs))
	idf := make([]float64, len(terms))
	for i, term := range terms {
		// Smooth IDF; never zero, so every vocabulary term contributes.
		idf[i] = math.Log((1+n)/(1+float64(df[term]))) + 1
	}

	vectors := make([]Vector, len(docs))
	for i, tokens := range tokenized {
		vec := Vector{}
		for _, term := range tokens {
			if j, ok := vocab[term]; ok {
				vec[j] += idf[j]
			}
		}
		normalize(vec)
		vectors[i] = vec
	}
	return vectors
}

func normalize(vec Vector) {
	var sum float64
	for _, w := range vec {
		sum += w * w
	}
	if sum == 0 {
		return
	}
	norm := math.Sqrt(sum)
	for i, w := range vec {
		vec[i] = w / norm
	}
}

// CosineDistance is 1 - cosine similarity over normalized vectors. The range
// is [0,2]; epsilon values must be tuned against that scale, not Euclidean
// intuition. Two empty vectors are maximally distant, not identical.
func CosineDistance(a, b Vector) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 1
	}
	if len(b) < len(a) {
		a, b = b, a
	}
	var dot float64
	for i, w := range a {
		dot += w * b[i]
	}
	return 1 - dot
}
