package catalog

import (
	"context"
	"strconv"
)

// RepositoryPort abstracts catalog persistence.
type RepositoryPort interface {
	ListMaterials(ctx context.Context) ([]Material, error)
	ListGrades(ctx context.Context, materialID int64) ([]Grade, error)
	GetGrade(ctx context.Context, id int64) (Grade, error)
}

// Service exposes cached catalog reads.
type Service struct {
	repo  RepositoryPort
	cache *Cache
}

// NewService builds Service. cache may be nil.
func NewService(repo RepositoryPort, cache *Cache) *Service {
	return &Service{repo: repo, cache: cache}
}

// ListMaterials returns every material.
func (s *Service) ListMaterials(ctx context.Context) ([]Material, error) {
	var out []Material
	err := s.cache.FetchJSON(ctx, s.cache.Key(ctx, "materials"), &out, func(ctx context.Context) (any, error) {
		return s.repo.ListMaterials(ctx)
	})
	return nonNil(out), err
}

// ListGrades returns every grade ordered by label.
func (s *Service) ListGrades(ctx context.Context) ([]Grade, error) {
	return s.ListGradesByMaterial(ctx, 0)
}

// ListGradesByMaterial returns the grades of one material ordered by label; zero means all.
func (s *Service) ListGradesByMaterial(ctx context.Context, materialID int64) ([]Grade, error) {
	var out []Grade
	key := s.cache.Key(ctx, "grades", strconv.FormatInt(materialID, 10))
	err := s.cache.FetchJSON(ctx, key, &out, func(ctx context.Context) (any, error) {
		return s.repo.ListGrades(ctx, materialID)
	})
	return nonNil(out), err
}

// GetGrade loads a grade by id without caching.
func (s *Service) GetGrade(ctx context.Context, id int64) (Grade, error) {
	return s.repo.GetGrade(ctx, id)
}

func nonNil[T any](in []T) []T {
	if in == nil {
		return []T{}
	}
	return in
}
