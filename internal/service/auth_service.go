package service

import (
	"context"

	"github.com/cockroachdb/errors"

	"modelnormalizer/internal/auth"
	apperrors "modelnormalizer/internal/errors"
)

// TokenPair is what a client receives after authenticating.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
	ExpiresIn    int64
}

// ClientVerifier checks API client credentials.
type ClientVerifier interface {
	Verify(clientID, secret string) error
}

// AuthService handles authentication of API clients.
type AuthService interface {
	IssueToken(ctx context.Context, clientID, secret string) (TokenPair, error)
	RefreshToken(ctx context.Context, refreshToken string) (accessToken string, err error)
	Revoke(ctx context.Context, accessToken string) error
	Logout(ctx context.Context, refreshToken string) error
	IsRevoked(ctx context.Context, tokenID string) (bool, error)
}

type authService struct {
	clients    ClientVerifier
	jwtService *auth.JWTService
	tokenStore auth.TokenStoreInterface
}

// NewAuthService creates a new authentication service.
func NewAuthService(clients ClientVerifier, jwtService *auth.JWTService, tokenStore auth.TokenStoreInterface) AuthService {
	return &authService{
		clients:    clients,
		jwtService: jwtService,
		tokenStore: tokenStore,
	}
}

// IssueToken verifies client credentials and returns access and refresh tokens.
func (s *authService) IssueToken(ctx context.Context, clientID, secret string) (TokenPair, error) {
	if err := s.clients.Verify(clientID, secret); err != nil {
		return TokenPair{}, apperrors.ErrInvalidCredentials
	}

	_, accessToken, err := s.jwtService.GenerateAccessToken(clientID)
	if err != nil {
		return TokenPair{}, errors.Wrap(err, "generate access token")
	}

	tokenID, refreshToken, err := s.jwtService.GenerateRefreshToken(clientID)
	if err != nil {
		return TokenPair{}, errors.Wrap(err, "generate refresh token")
	}

	// Store refresh token in Redis
	if err := s.tokenStore.StoreRefreshToken(ctx, tokenID, clientID, auth.RefreshTokenExpiry); err != nil {
		return TokenPair{}, errors.Wrap(err, "store refresh token")
	}

	return TokenPair{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresIn:    int64(auth.AccessTokenExpiry.Seconds()),
	}, nil
}

// RefreshToken validates a refresh token and returns a new access token.
func (s *authService) RefreshToken(ctx context.Context, refreshToken string) (string, error) {
	claims, err := s.jwtService.ValidateToken(refreshToken)
	if err != nil {
		return "", apperrors.ErrInvalidToken
	}

	storedClientID, err := s.tokenStore.GetRefreshToken(ctx, claims.ID)
	if err != nil || storedClientID != claims.ClientID {
		return "", apperrors.ErrInvalidToken
	}

	_, accessToken, err := s.jwtService.GenerateAccessToken(claims.ClientID)
	if err != nil {
		return "", errors.Wrap(err, "generate access token")
	}
	return accessToken, nil
}

// Revoke blacklists an access token until it would have expired.
func (s *authService) Revoke(ctx context.Context, accessToken string) error {
	claims, err := s.jwtService.ValidateToken(accessToken)
	if err != nil {
		return apperrors.ErrInvalidToken
	}
	if claims.ID == "" {
		return apperrors.ErrInvalidToken
	}
	ttl := s.jwtService.Remaining(claims)
	if ttl <= 0 {
		return nil
	}
	return s.tokenStore.BlacklistAccessToken(ctx, claims.ID, ttl)
}

// Logout invalidates a refresh token.
func (s *authService) Logout(ctx context.Context, refreshToken string) error {
	tokenID, err := s.jwtService.ExtractTokenID(refreshToken)
	if err != nil {
		return apperrors.ErrInvalidToken
	}
	return s.tokenStore.DeleteRefreshToken(ctx, tokenID)
}

// IsRevoked reports whether an access token ID was revoked.
func (s *authService) IsRevoked(ctx context.Context, tokenID string) (bool, error) {
	return s.tokenStore.IsAccessTokenBlacklisted(ctx, tokenID)
}
