package testutil

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"docrag/internal/model"
)

// FakeExtractor serves canned text per source. Sources listed in Errs fail.
type FakeExtractor struct {
	mu    sync.Mutex
	Texts map[model.SourceRef]string
	Errs  map[model.SourceRef]error
	Calls []model.SourceRef
}

func NewFakeExtractor() *FakeExtractor {
	return &FakeExtractor{
		Texts: make(map[model.SourceRef]string),
		Errs:  make(map[model.SourceRef]error),
	}
}

func (f *FakeExtractor) Set(ref model.SourceRef, text string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Texts[ref] = text
}

func (f *FakeExtractor) Fail(ref model.SourceRef, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Errs[ref] = err
}

func (f *FakeExtractor) ExtractText(_ context.Context, kind model.SourceKind, id uint) (string, error) {
	ref := model.SourceRef{Kind: kind, ID: id}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Calls = append(f.Calls, ref)
	if err, ok := f.Errs[ref]; ok {
		return "", err
	}
	text, ok := f.Texts[ref]
	if !ok {
		return "", fmt.Errorf("no text for %s", ref)
	}
	return text, nil
}

// Seen returns the sources extracted so far, in call order.
func (f *FakeExtractor) Seen() []model.SourceRef {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]model.SourceRef(nil), f.Calls...)
}

// ShortSentences builds exactly n characters of short capitalized sentences.
func ShortSentences(n int) string {
	var b strings.Builder
	for i := 0; b.Len() < n; i++ {
		fmt.Fprintf(&b, "Sentence %03d is here. ", i)
	}
	s := b.String()[:n]
	if strings.HasSuffix(s, " ") {
		s = s[:n-1] + "x"
	}
	return s
}
