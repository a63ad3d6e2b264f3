package model

import "fmt"

// SourceKind identifies which table a source item lives in.
type SourceKind string

const (
	SourceDocument SourceKind = "document"
	SourceWebpage  SourceKind = "webpage"
)

func (k SourceKind) Valid() bool {
	return k == SourceDocument || k == SourceWebpage
}

func ParseSourceKind(s string) (SourceKind, error) {
	k := SourceKind(s)
	if !k.Valid() {
		return "", fmt.Errorf("unknown source kind %q", s)
	}
	return k, nil
}

// SourceRef points at exactly one document or webpage.
type SourceRef struct {
	Kind SourceKind `json:"kind"`
	ID   uint       `json:"id"`
}

func (r SourceRef) String() string {
	return fmt.Sprintf("%s:%d", r.Kind, r.ID)
}
