package app

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"unicode/utf8"

	"docrag/internal/model"
	"docrag/internal/repository"
)

const maxCollectionName = 100

type CollectionService struct {
	repo *repository.CollectionRepository
}

// CollectionView is a collection with its path from the root, for example
// "Rheumatology / Gout".
type CollectionView struct {
	model.Collection
	FullPath string `json:"full_path"`
}

type CreateCollectionInput struct {
	Name        string
	Description string
	ParentID    uint
}

func NewCollectionService(repo *repository.CollectionRepository) *CollectionService {
	return &CollectionService{repo: repo}
}

func (s *CollectionService) Create(ctx context.Context, input CreateCollectionInput) (*model.Collection, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" || utf8.RuneCountInString(name) > maxCollectionName {
		return nil, fmt.Errorf("%w: collection name must be 1 to %d characters", ErrInvalidInput, maxCollectionName)
	}
	c := &model.Collection{Name: name, Description: strings.TrimSpace(input.Description)}
	if input.ParentID != 0 {
		parent, err := s.repo.GetByID(ctx, input.ParentID)
		if err != nil {
			return nil, err
		}
		if parent == nil {
			return nil, fmt.Errorf("%w: parent collection %d", ErrNotFound, input.ParentID)
		}
		c.ParentID = &parent.ID
	}
	if err := s.repo.Create(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

// List returns every collection with its full path, ordered by path.
func (s *CollectionService) List(ctx context.Context) ([]CollectionView, error) {
	list, err := s.repo.List(ctx)
	if err != nil {
		return nil, err
	}
	byID := make(map[uint]*model.Collection, len(list))
	for i := range list {
		byID[list[i].ID] = &list[i]
	}
	out := make([]CollectionView, 0, len(list))
	for i := range list {
		out = append(out, CollectionView{Collection: list[i], FullPath: fullPath(&list[i], byID)})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].FullPath < out[j].FullPath })
	return out, nil
}

func fullPath(c *model.Collection, byID map[uint]*model.Collection) string {
	names := []string{c.Name}
	seen := map[uint]bool{c.ID: true}
	for cur := c; cur.ParentID != nil; {
		parent, ok := byID[*cur.ParentID]
		if !ok || seen[parent.ID] {
			break
		}
		seen[parent.ID] = true
		names = append(names, parent.Name)
		cur = parent
	}
	for i, j := 0, len(names)-1; i < j; i, j = i+1, j-1 {
		names[i], names[j] = names[j], names[i]
	}
	return strings.Join(names, " / ")
}
