package service

import (
	"context"
	"fmt"
	"reflect"
	"time"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"modelnormalizer/internal/cache"
	apperrors "modelnormalizer/internal/errors"
	"modelnormalizer/internal/metrics"
	"modelnormalizer/internal/model"
	"modelnormalizer/internal/ordered"
	"modelnormalizer/internal/repository"
	"modelnormalizer/internal/serializer"
)

// Chain is the serializer the record service normalizes through.
type Chain interface {
	serializer.Normalizer
	serializer.Denormalizer
}

// RepresentationCache stores normalized records.
type RepresentationCache interface {
	GetRepresentation(ctx context.Context, key string) (*ordered.Map[any], bool)
	SetRepresentation(ctx context.Context, key string, rep any, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
}

// RecordService reads and writes records of registered resources as
// normalized representations.
type RecordService interface {
	Get(ctx context.Context, resource, id string, with []string) (*ordered.Map[any], error)
	List(ctx context.Context, resource string, limit int) ([]any, error)
	Create(ctx context.Context, resource string, data any) (*ordered.Map[any], error)
	// Import creates every item in one transaction and returns how many were stored.
	Import(ctx context.Context, resource string, items []any) (int, error)
}

type recordService struct {
	registry *model.Registry
	repo     repository.RecordRepository
	chain    Chain
	cache    RepresentationCache
	ttl      time.Duration
	logger   *zap.Logger
}

// NewRecordService creates a new record service. reps may be nil.
func NewRecordService(registry *model.Registry, repo repository.RecordRepository, chain Chain, reps RepresentationCache, ttl time.Duration, logger *zap.Logger) RecordService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &recordService{
		registry: registry,
		repo:     repo,
		chain:    chain,
		cache:    reps,
		ttl:      ttl,
		logger:   logger,
	}
}

// Get returns the representation of one record with the requested relations.
func (s *recordService) Get(ctx context.Context, resource, id string, with []string) (rep *ordered.Map[any], err error) {
	start := time.Now()
	defer func() { metrics.ObserveRecordOperation(resource, "get", start, err) }()

	typ, err := s.registry.Type(resource)
	if err != nil {
		return nil, err
	}

	key := cache.RecordKey(resource, id, with)
	if s.cache != nil {
		cached, hit := s.cache.GetRepresentation(ctx, key)
		metrics.ObserveCacheLookup(resource, hit)
		if hit {
			return cached, nil
		}
	}

	m, err := s.repo.Find(ctx, typ, id, with...)
	if err != nil {
		return nil, mapRepositoryError(err)
	}

	rep, err = s.normalize(m)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if err := s.cache.SetRepresentation(ctx, key, rep, s.ttl); err != nil {
			s.logger.Warn("cache representation failed", zap.String("key", key), zap.Error(err))
		}
	}
	return rep, nil
}

// List returns up to limit records of resource, ordered by key.
func (s *recordService) List(ctx context.Context, resource string, limit int) (out []any, err error) {
	start := time.Now()
	defer func() { metrics.ObserveRecordOperation(resource, "list", start, err) }()

	typ, err := s.registry.Type(resource)
	if err != nil {
		return nil, err
	}
	records, err := s.repo.List(ctx, typ, limit)
	if err != nil {
		return nil, mapRepositoryError(err)
	}

	out = make([]any, 0, len(records))
	for _, m := range records {
		rep, err := s.normalize(m)
		if err != nil {
			return nil, err
		}
		out = append(out, rep)
	}
	return out, nil
}

// Create builds a record from its representation, stores it and returns
// the stored representation.
func (s *recordService) Create(ctx context.Context, resource string, data any) (rep *ordered.Map[any], err error) {
	start := time.Now()
	defer func() { metrics.ObserveRecordOperation(resource, "create", start, err) }()

	typ, err := s.registry.Type(resource)
	if err != nil {
		return nil, err
	}
	m, err := s.denormalize(data, typ)
	if err != nil {
		return nil, err
	}
	if err := s.repo.Create(ctx, m); err != nil {
		return nil, mapRepositoryError(err)
	}

	rep, err = s.normalize(m)
	if err != nil {
		return nil, err
	}
	s.invalidate(ctx, resource, m)
	return rep, nil
}

// Import stores items atomically. Nothing is stored when any item fails.
func (s *recordService) Import(ctx context.Context, resource string, items []any) (n int, err error) {
	start := time.Now()
	defer func() { metrics.ObserveRecordOperation(resource, "import", start, err) }()

	typ, err := s.registry.Type(resource)
	if err != nil {
		return 0, err
	}

	models := make([]model.Model, 0, len(items))
	for i, item := range items {
		m, err := s.denormalize(item, typ)
		if err != nil {
			return 0, errors.Wrapf(err, "item %d", i)
		}
		models = append(models, m)
	}

	err = s.repo.WithTransaction(ctx, func(ctx context.Context, repo repository.RecordRepository) error {
		for i, m := range models {
			if err := repo.Create(ctx, m); err != nil {
				return errors.Wrapf(mapRepositoryError(err), "item %d", i)
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	for _, m := range models {
		s.invalidate(ctx, resource, m)
	}
	s.logger.Info("records imported", zap.String("resource", resource), zap.Int("count", len(models)))
	return len(models), nil
}

func (s *recordService) denormalize(data any, typ reflect.Type) (model.Model, error) {
	built, err := s.chain.Denormalize(data, typ, serializer.FormatJSON, serializer.Context{})
	if err != nil {
		return nil, err
	}
	m, ok := built.(model.Model)
	if !ok {
		return nil, apperrors.NewUsageError("chain built %T instead of a model", built)
	}
	return m, nil
}

func (s *recordService) normalize(m model.Model) (*ordered.Map[any], error) {
	s.registry.Apply(m)
	normalized, err := s.chain.Normalize(m, serializer.FormatJSON, serializer.Context{})
	if err != nil {
		return nil, err
	}
	rep, ok := normalized.(*ordered.Map[any])
	if !ok {
		return nil, apperrors.NewUsageError("chain normalized a model into %T", normalized)
	}
	return rep, nil
}

// invalidate drops the plain cached representation of m. Entries cached with
// eager-loaded relations expire through their TTL.
func (s *recordService) invalidate(ctx context.Context, resource string, m model.Model) {
	if s.cache == nil || m.Key() == nil {
		return
	}
	key := cache.RecordKey(resource, fmt.Sprint(m.Key()), nil)
	if err := s.cache.Delete(ctx, key); err != nil {
		s.logger.Warn("cache invalidation failed", zap.String("key", key), zap.Error(err))
	}
}

func mapRepositoryError(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return errors.Mark(err, apperrors.ErrRecordNotFound)
	}
	return err
}
