package service

import (
	"context"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"modelnormalizer/internal/auth"
	apperrors "modelnormalizer/internal/errors"
)

// MockTokenStore is a mock implementation of TokenStoreInterface.
type MockTokenStore struct {
	mock.Mock
}

func (m *MockTokenStore) StoreRefreshToken(ctx context.Context, tokenID, clientID string, ttl time.Duration) error {
	args := m.Called(ctx, tokenID, clientID, ttl)
	return args.Error(0)
}

func (m *MockTokenStore) GetRefreshToken(ctx context.Context, tokenID string) (string, error) {
	args := m.Called(ctx, tokenID)
	return args.String(0), args.Error(1)
}

func (m *MockTokenStore) DeleteRefreshToken(ctx context.Context, tokenID string) error {
	args := m.Called(ctx, tokenID)
	return args.Error(0)
}

func (m *MockTokenStore) BlacklistAccessToken(ctx context.Context, tokenID string, ttl time.Duration) error {
	args := m.Called(ctx, tokenID, ttl)
	return args.Error(0)
}

func (m *MockTokenStore) IsAccessTokenBlacklisted(ctx context.Context, tokenID string) (bool, error) {
	args := m.Called(ctx, tokenID)
	return args.Bool(0), args.Error(1)
}

func newClients(t *testing.T) *auth.Clients {
	t.Helper()
	clients := auth.NewClients()
	require.NoError(t, clients.Add("seeder", "s3cret"))
	return clients
}

func TestAuthService_IssueToken(t *testing.T) {
	tests := []struct {
		name          string
		clientID      string
		secret        string
		setupMock     func(*MockTokenStore)
		expectedError error
	}{
		{
			name:     "valid credentials",
			clientID: "seeder",
			secret:   "s3cret",
			setupMock: func(m *MockTokenStore) {
				m.On("StoreRefreshToken", mock.Anything, mock.AnythingOfType("string"), "seeder", auth.RefreshTokenExpiry).Return(nil)
			},
		},
		{
			name:          "wrong secret",
			clientID:      "seeder",
			secret:        "nope",
			setupMock:     func(*MockTokenStore) {},
			expectedError: apperrors.ErrInvalidCredentials,
		},
		{
			name:          "unknown client",
			clientID:      "other",
			secret:        "s3cret",
			setupMock:     func(*MockTokenStore) {},
			expectedError: apperrors.ErrInvalidCredentials,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := new(MockTokenStore)
			tt.setupMock(store)
			jwtService := auth.NewJWTService("test-secret")

			svc := NewAuthService(newClients(t), jwtService, store)
			pair, err := svc.IssueToken(context.Background(), tt.clientID, tt.secret)

			if tt.expectedError != nil {
				assert.ErrorIs(t, err, tt.expectedError)
				assert.Empty(t, pair.AccessToken)
			} else {
				require.NoError(t, err)
				claims, err := jwtService.ValidateToken(pair.AccessToken)
				require.NoError(t, err)
				assert.Equal(t, "seeder", claims.ClientID)
				assert.NotEmpty(t, pair.RefreshToken)
				assert.Equal(t, int64(900), pair.ExpiresIn)
			}
			store.AssertExpectations(t)
		})
	}
}

func TestAuthService_RefreshToken(t *testing.T) {
	jwtService := auth.NewJWTService("test-secret")
	tokenID, refreshToken, err := jwtService.GenerateRefreshToken("seeder")
	require.NoError(t, err)

	tests := []struct {
		name          string
		token         string
		setupMock     func(*MockTokenStore)
		expectedError error
	}{
		{
			name:  "stored token",
			token: refreshToken,
			setupMock: func(m *MockTokenStore) {
				m.On("GetRefreshToken", mock.Anything, tokenID).Return("seeder", nil)
			},
		},
		{
			name:  "logged out token",
			token: refreshToken,
			setupMock: func(m *MockTokenStore) {
				m.On("GetRefreshToken", mock.Anything, tokenID).Return("", apperrors.ErrInvalidToken)
			},
			expectedError: apperrors.ErrInvalidToken,
		},
		{
			name:  "token of another client",
			token: refreshToken,
			setupMock: func(m *MockTokenStore) {
				m.On("GetRefreshToken", mock.Anything, tokenID).Return("other", nil)
			},
			expectedError: apperrors.ErrInvalidToken,
		},
		{
			name:          "garbage",
			token:         "not-a-token",
			setupMock:     func(*MockTokenStore) {},
			expectedError: apperrors.ErrInvalidToken,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := new(MockTokenStore)
			tt.setupMock(store)

			svc := NewAuthService(newClients(t), jwtService, store)
			accessToken, err := svc.RefreshToken(context.Background(), tt.token)

			if tt.expectedError != nil {
				assert.ErrorIs(t, err, tt.expectedError)
				assert.Empty(t, accessToken)
			} else {
				require.NoError(t, err)
				assert.NotEmpty(t, accessToken)
			}
			store.AssertExpectations(t)
		})
	}
}

func TestAuthService_Revoke(t *testing.T) {
	jwtService := auth.NewJWTService("test-secret")
	tokenID, accessToken, err := jwtService.GenerateAccessToken("seeder")
	require.NoError(t, err)

	store := new(MockTokenStore)
	store.On("BlacklistAccessToken", mock.Anything, tokenID, mock.MatchedBy(func(ttl time.Duration) bool {
		return ttl > 0 && ttl <= auth.AccessTokenExpiry
	})).Return(nil)
	store.On("IsAccessTokenBlacklisted", mock.Anything, tokenID).Return(true, nil)

	svc := NewAuthService(newClients(t), jwtService, store)
	require.NoError(t, svc.Revoke(context.Background(), accessToken))

	revoked, err := svc.IsRevoked(context.Background(), tokenID)
	require.NoError(t, err)
	assert.True(t, revoked)

	assert.ErrorIs(t, svc.Revoke(context.Background(), "garbage"), apperrors.ErrInvalidToken)
	store.AssertExpectations(t)
}

func TestAuthService_Logout(t *testing.T) {
	jwtService := auth.NewJWTService("test-secret")
	tokenID, refreshToken, err := jwtService.GenerateRefreshToken("seeder")
	require.NoError(t, err)

	store := new(MockTokenStore)
	store.On("DeleteRefreshToken", mock.Anything, tokenID).Return(errors.New("redis down")).Once()

	svc := NewAuthService(newClients(t), jwtService, store)
	assert.EqualError(t, svc.Logout(context.Background(), refreshToken), "redis down")
	assert.ErrorIs(t, svc.Logout(context.Background(), "garbage"), apperrors.ErrInvalidToken)
	store.AssertExpectations(t)
}
