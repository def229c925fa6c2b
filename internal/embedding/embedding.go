// Package embedding turns ticket text into fixed-length vectors for the
// storm detector.
package embedding

import (
	"fmt"
	"hash/fnv"
	"math"
	"strings"
	"unicode"
)

// DefaultDimensions is the vector length used when none is configured
const DefaultDimensions = 256

// HashingEmbedder maps unigrams and bigrams into a fixed number of buckets
// (the hashing trick) and L2-normalizes the result. Identical texts always
// produce identical vectors; text without any letter or digit produces the
// zero vector.
type HashingEmbedder struct {
	dims int
}

// NewHashingEmbedder creates an embedder producing vectors of length dims
func NewHashingEmbedder(dims int) (*HashingEmbedder, error) {
	if dims < 1 {
		return nil, fmt.Errorf("embedding dimensions must be positive, got %d", dims)
	}
	return &HashingEmbedder{dims: dims}, nil
}

// Dimensions returns the vector length
func (e *HashingEmbedder) Dimensions() int {
	return e.dims
}

// Embed returns the vector for text
func (e *HashingEmbedder) Embed(text string) []float64 {
	vec := make([]float64, e.dims)
	tokens := Tokenize(text)
	for i, tok := range tokens {
		e.add(vec, tok, 1)
		if i > 0 {
			e.add(vec, tokens[i-1]+" "+tok, 0.5)
		}
	}

	var norm float64
	for _, v := range vec {
		norm += v * v
	}
	if norm == 0 {
		return vec
	}
	norm = math.Sqrt(norm)
	for i := range vec {
		vec[i] /= norm
	}
	return vec
}

// add hashes feature into a bucket. A second hash bit picks the sign so
// colliding features tend to cancel rather than pile up.
func (e *HashingEmbedder) add(vec []float64, feature string, weight float64) {
	h := fnv.New64a()
	h.Write([]byte(feature))
	sum := h.Sum64()
	idx := int(sum % uint64(e.dims))
	if (sum>>63)&1 == 1 {
		weight = -weight
	}
	vec[idx] += weight
}

// Tokenize lowercases s and splits it on anything that is not a letter or digit
func Tokenize(s string) []string {
	s = strings.ToLower(s)
	var tokens []string
	var cur strings.Builder
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			cur.WriteRune(r)
			continue
		}
		if cur.Len() > 0 {
			tokens = append(tokens, cur.String())
			cur.Reset()
		}
	}
	if cur.Len() > 0 {
		tokens = append(tokens, cur.String())
	}
	return tokens
}

// CosineSimilarity returns the cosine of the angle between a and b.
// Zero vectors and vectors of different lengths have similarity 0.
func CosineSimilarity(a, b []float64) float64 {
	if len(a) != len(b) {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
