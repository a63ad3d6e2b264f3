package rag

import (
	"context"
	"fmt"
	"strings"
	"unicode"

	"github.com/cespare/xxhash/v2"
)

const (
	DefaultDimension     = 256
	DefaultBigramBuckets = 64

	unigramWeight = 1.0
	bigramWeight  = 0.5
)

// pinnedTerms get fixed low buckets so that known clinical vocabulary never
// collides with hashed tokens.
var pinnedTerms = map[string]int{
	"arthritis": 0, "rheumatoid": 1, "autoimmune": 2, "pain": 3,
	"inflammation": 4, "joint": 5, "swelling": 6, "stiffness": 7,
	"lupus": 8, "scleroderma": 9, "vasculitis": 10, "gout": 11,
	"fibromyalgia": 12, "osteoarthritis": 13, "ankylosing": 14, "spondylitis": 15,
	"psoriatic": 16, "methotrexate": 17, "prednisone": 18, "biologics": 19,
	"ild": 20, "interstitial": 21, "lung": 22, "disease": 23,
	"fibrosis": 24, "pulmonary": 25, "respiratory": 26, "dyspnea": 27,
	"cough": 28, "hrct": 29, "pft": 30, "fvc": 31,
	"dlco": 32, "screening": 33, "diagnosis": 34, "treatment": 35,
	"subclinical": 36, "clinical": 37, "progressive": 38, "severe": 39,
}

const pinnedBuckets = 40

var stopwords = map[string]struct{}{
	"a": {}, "an": {}, "the": {}, "and": {}, "or": {}, "but": {}, "if": {}, "because": {},
	"as": {}, "what": {}, "when": {}, "where": {}, "how": {}, "who": {}, "which": {},
	"this": {}, "that": {}, "these": {}, "those": {}, "to": {}, "of": {}, "in": {},
	"for": {}, "on": {}, "by": {}, "with": {}, "at": {}, "from": {}, "is": {}, "are": {},
	"was": {}, "were": {}, "be": {}, "been": {}, "being": {}, "have": {}, "has": {},
	"had": {}, "having": {}, "do": {}, "does": {}, "did": {}, "doing": {},
}

// HashEmbedder is a deterministic bag-of-words feature hash.
//
// Layout of the vector:
//
//	[0, 40)                     pinned vocabulary
//	[40, dim-bigramBuckets)     hashed unigrams
//	[dim-bigramBuckets, dim)    hashed bigrams of adjacent tokens
type HashEmbedder struct {
	dim           int
	bigramBuckets int
}

// NewHashEmbedder validates the bucket layout. Zero values select the defaults.
func NewHashEmbedder(dim, bigramBuckets int) (*HashEmbedder, error) {
	if dim == 0 {
		dim = DefaultDimension
	}
	if bigramBuckets == 0 {
		bigramBuckets = DefaultBigramBuckets
	}
	if bigramBuckets < 1 || dim-bigramBuckets-pinnedBuckets < 1 {
		return nil, fmt.Errorf("hash embedder: dimension %d too small for %d pinned and %d bigram buckets",
			dim, pinnedBuckets, bigramBuckets)
	}
	return &HashEmbedder{dim: dim, bigramBuckets: bigramBuckets}, nil
}

func (e *HashEmbedder) Name() string { return fmt.Sprintf("hash-v1-%d-%d", e.dim, e.bigramBuckets) }

func (e *HashEmbedder) Dimension() int { return e.dim }

// Embed never fails; the error is part of the Embedder contract only.
func (e *HashEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	return e.Vector(text), nil
}

// Vector computes the embedding of text. Stopword-only or empty text yields
// the zero vector.
func (e *HashEmbedder) Vector(text string) []float32 {
	vec := make([]float32, e.dim)
	tokens := Tokenize(text)

	for _, tok := range tokens {
		vec[e.unigramBucket(tok)] += unigramWeight
	}
	for i := 0; i+1 < len(tokens); i++ {
		vec[e.bigramBucket(tokens[i], tokens[i+1])] += bigramWeight
	}
	return Normalize(vec)
}

func (e *HashEmbedder) unigramBucket(tok string) int {
	if pos, ok := pinnedTerms[tok]; ok {
		return pos
	}
	span := uint64(e.dim - e.bigramBuckets - pinnedBuckets)
	return pinnedBuckets + int(xxhash.Sum64String(tok)%span)
}

func (e *HashEmbedder) bigramBucket(a, b string) int {
	base := e.dim - e.bigramBuckets
	return base + int(xxhash.Sum64String(a+"_"+b)%uint64(e.bigramBuckets))
}

// Tokenize lowercases, splits on whitespace, trims surrounding punctuation
// and drops stopwords.
func Tokenize(text string) []string {
	fields := strings.Fields(strings.ToLower(text))
	tokens := fields[:0]
	for _, f := range fields {
		f = strings.TrimFunc(f, func(r rune) bool {
			return unicode.IsPunct(r) || unicode.IsSymbol(r)
		})
		if f == "" {
			continue
		}
		if _, stop := stopwords[f]; stop {
			continue
		}
		tokens = append(tokens, f)
	}
	return tokens
}
