package service

import (
	"context"
	"reflect"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	apperrors "modelnormalizer/internal/errors"
	"modelnormalizer/internal/model"
	"modelnormalizer/internal/normalizer"
	"modelnormalizer/internal/ordered"
	"modelnormalizer/internal/repository"
	"modelnormalizer/internal/serializer"
)

// MockRecordRepository is a mock implementation of RecordRepository.
type MockRecordRepository struct {
	mock.Mock
}

func (m *MockRecordRepository) Find(ctx context.Context, typ reflect.Type, id any, with ...string) (model.Model, error) {
	args := m.Called(ctx, typ, id, with)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(model.Model), args.Error(1)
}

func (m *MockRecordRepository) List(ctx context.Context, typ reflect.Type, limit int) ([]model.Model, error) {
	args := m.Called(ctx, typ, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Model), args.Error(1)
}

func (m *MockRecordRepository) Create(ctx context.Context, record model.Model) error {
	args := m.Called(ctx, record)
	return args.Error(0)
}

func (m *MockRecordRepository) WithTransaction(ctx context.Context, fn func(ctx context.Context, repo repository.RecordRepository) error) error {
	args := m.Called(ctx, fn)
	if err := args.Error(0); err != nil {
		return err
	}
	return fn(ctx, m)
}

// MockCache is a mock implementation of RepresentationCache.
type MockCache struct {
	mock.Mock
}

func (m *MockCache) GetRepresentation(ctx context.Context, key string) (*ordered.Map[any], bool) {
	args := m.Called(ctx, key)
	if args.Get(0) == nil {
		return nil, args.Bool(1)
	}
	return args.Get(0).(*ordered.Map[any]), args.Bool(1)
}

func (m *MockCache) SetRepresentation(ctx context.Context, key string, rep any, ttl time.Duration) error {
	args := m.Called(ctx, key, rep, ttl)
	return args.Error(0)
}

func (m *MockCache) Delete(ctx context.Context, keys ...string) error {
	args := m.Called(ctx, keys)
	return args.Error(0)
}

func newRecordService(t *testing.T, repo *MockRecordRepository, cache RepresentationCache) (RecordService, *model.Registry) {
	t.Helper()
	chain, err := normalizer.NewSerializer()
	require.NoError(t, err)
	registry := model.NewDefaultRegistry()
	return NewRecordService(registry, repo, chain, cache, time.Minute, nil), registry
}

func loadedCard() *model.Card {
	account := model.NewAccount()
	account.SetRawAttribute("id", "acc-1")
	account.SetRawAttribute("name", "Ada")
	account.SetRawAttribute("email", "ada@example.com")
	account.SetRawAttribute("password_hash", "secret")

	card := model.NewCard()
	card.SetRawAttribute("id", "card-1")
	card.SetRawAttribute("account_id", "acc-1")
	card.SetRawAttribute("card_number", "****4242")
	card.SetRawAttribute("card_expiry", "12/99")
	card.SetRelation("account", account)
	return card
}

func TestRecordService_Get(t *testing.T) {
	repo := new(MockRecordRepository)
	cache := new(MockCache)
	svc, _ := newRecordService(t, repo, cache)

	cache.On("GetRepresentation", mock.Anything, "record:cards:card-1:account").Return(nil, false)
	repo.On("Find", mock.Anything, reflect.TypeFor[*model.Card](), "card-1", []string{"account"}).Return(loadedCard(), nil)
	cache.On("SetRepresentation", mock.Anything, "record:cards:card-1:account", mock.Anything, time.Minute).Return(nil)

	rep, err := svc.Get(context.Background(), "cards", "card-1", []string{"account"})
	require.NoError(t, err)

	assert.Equal(t, []string{"id", "card_number", "card_expiry", "expired", "account"}, rep.Keys())
	nested, _ := rep.Get("account")
	account := nested.(*ordered.Map[any])
	assert.Equal(t, []string{"id", "name", "email", "display_name"}, account.Keys())
	display, _ := account.Get("display_name")
	assert.Equal(t, "Ada <ada@example.com>", display)

	repo.AssertExpectations(t)
	cache.AssertExpectations(t)
}

func TestRecordService_GetFromCache(t *testing.T) {
	repo := new(MockRecordRepository)
	cache := new(MockCache)
	svc, _ := newRecordService(t, repo, cache)

	cached := ordered.New[any]()
	cached.Set("id", "card-1")
	cache.On("GetRepresentation", mock.Anything, "record:cards:card-1").Return(cached, true)

	rep, err := svc.Get(context.Background(), "cards", "card-1", nil)
	require.NoError(t, err)
	assert.Same(t, cached, rep)
	repo.AssertNotCalled(t, "Find", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestRecordService_GetAppliesVisibility(t *testing.T) {
	repo := new(MockRecordRepository)
	svc, registry := newRecordService(t, repo, nil)
	require.NoError(t, registry.SetVisibility("accounts", model.Visibility{Hidden: []string{"email", "display_name"}}))

	repo.On("Find", mock.Anything, reflect.TypeFor[*model.Card](), "card-1", []string{"account"}).Return(loadedCard(), nil)

	rep, err := svc.Get(context.Background(), "cards", "card-1", []string{"account"})
	require.NoError(t, err)
	nested, _ := rep.Get("account")
	assert.Equal(t, []string{"id", "name", "password_hash"}, nested.(*ordered.Map[any]).Keys())
}

func TestRecordService_GetErrors(t *testing.T) {
	repo := new(MockRecordRepository)
	svc, _ := newRecordService(t, repo, nil)

	_, err := svc.Get(context.Background(), "users", "1", nil)
	assert.ErrorIs(t, err, apperrors.ErrUnknownResource)

	repo.On("Find", mock.Anything, mock.Anything, "missing", []string(nil)).
		Return(nil, errors.Wrap(apperrors.ErrRecordNotFound, "cards missing"))
	_, err = svc.Get(context.Background(), "cards", "missing", nil)
	assert.ErrorIs(t, err, apperrors.ErrRecordNotFound)
}

func TestRecordService_List(t *testing.T) {
	repo := new(MockRecordRepository)
	svc, _ := newRecordService(t, repo, nil)

	first := model.NewAccount()
	first.SetRawAttribute("id", "a")
	second := model.NewAccount()
	second.SetRawAttribute("id", "b")
	repo.On("List", mock.Anything, reflect.TypeFor[*model.Account](), 2).Return([]model.Model{first, second}, nil)

	out, err := svc.List(context.Background(), "accounts", 2)
	require.NoError(t, err)
	require.Len(t, out, 2)
	id, _ := out[1].(*ordered.Map[any]).Get("id")
	assert.Equal(t, "b", id)
}

func TestRecordService_Create(t *testing.T) {
	repo := new(MockRecordRepository)
	cache := new(MockCache)
	svc, _ := newRecordService(t, repo, cache)

	data := ordered.New[any]()
	data.Set("id", "card-9")
	data.Set("card_number", "4111 1111 1111 1111")
	data.Set("card_expiry", "01/20")
	account := ordered.New[any]()
	account.Set("id", "acc-1")
	data.Set("account", account)

	repo.On("Create", mock.Anything, mock.MatchedBy(func(m model.Model) bool {
		card, ok := m.(*model.Card)
		return ok && card.CardNumber() == "****1111" && card.Account() != nil
	})).Return(nil)
	cache.On("Delete", mock.Anything, []string{"record:cards:card-9"}).Return(nil)

	rep, err := svc.Create(context.Background(), "cards", data)
	require.NoError(t, err)
	assert.Equal(t, []string{"id", "card_number", "card_expiry", "expired", "account"}, rep.Keys())
	expired, _ := rep.Get("expired")
	assert.Equal(t, true, expired)

	repo.AssertExpectations(t)
	cache.AssertExpectations(t)
}

func TestRecordService_CreateInvalid(t *testing.T) {
	repo := new(MockRecordRepository)
	svc, _ := newRecordService(t, repo, nil)

	_, err := svc.Create(context.Background(), "payments", map[string]any{"created_at": "not a date"})
	assert.ErrorIs(t, err, apperrors.ErrInvalidFormat)
	repo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestRecordService_Import(t *testing.T) {
	repo := new(MockRecordRepository)
	svc, _ := newRecordService(t, repo, nil)

	repo.On("WithTransaction", mock.Anything, mock.Anything).Return(nil)
	repo.On("Create", mock.Anything, mock.AnythingOfType("*model.Account")).Return(nil).Twice()

	n, err := svc.Import(context.Background(), "accounts", []any{
		map[string]any{"id": "a", "email": "A@Example.com"},
		map[string]any{"id": "b"},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	repo.AssertExpectations(t)
}

func TestRecordService_ImportStopsOnInvalidItem(t *testing.T) {
	repo := new(MockRecordRepository)
	svc, _ := newRecordService(t, repo, nil)

	_, err := svc.Import(context.Background(), "accounts", []any{
		map[string]any{"id": "a"},
		"not a representation",
	})
	assert.ErrorIs(t, err, apperrors.ErrUnsupportedType)
	repo.AssertNotCalled(t, "WithTransaction", mock.Anything, mock.Anything)
}

type scalarChain struct{}

func (scalarChain) SupportsNormalization(any, string) bool { return true }
func (scalarChain) Normalize(any, string, serializer.Context) (any, error) {
	return "flat", nil
}
func (scalarChain) SupportsDenormalization(any, reflect.Type, string) bool { return true }
func (scalarChain) Denormalize(any, reflect.Type, string, serializer.Context) (any, error) {
	return "flat", nil
}

func TestRecordService_ChainMisuse(t *testing.T) {
	repo := new(MockRecordRepository)
	svc := NewRecordService(model.NewDefaultRegistry(), repo, scalarChain{}, nil, 0, nil)

	_, err := svc.Create(context.Background(), "accounts", map[string]any{})
	assert.True(t, apperrors.IsUsageError(err))

	repo.On("Find", mock.Anything, mock.Anything, "a", []string(nil)).Return(model.NewAccount(), nil)
	_, err = svc.Get(context.Background(), "accounts", "a", nil)
	assert.True(t, apperrors.IsUsageError(err))
}
