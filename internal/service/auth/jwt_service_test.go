package auth

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uibattles/uibattles-api/internal/config"
)

const (
	testSecret  = "test-secret-that-is-long-enough-for-testing"
	wrongSecret = "wrong-secret-that-is-long-enough-for-testing"
)

func newTestService(t *testing.T, secret string, now time.Time) JWTService {
	t.Helper()

	svc, err := NewJWTService(
		config.AuthConfig{JWTSecret: secret, TokenLifetimeMinutes: 60},
		WithClock(func() time.Time { return now }),
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	)
	require.NoError(t, err)
	return svc
}

func TestNewJWTService(t *testing.T) {
	t.Parallel()

	_, err := NewJWTService(config.AuthConfig{JWTSecret: "short"})
	assert.ErrorIs(t, err, ErrInvalidSecret)

	svc, err := NewJWTService(config.AuthConfig{JWTSecret: testSecret})
	require.NoError(t, err)
	assert.NotNil(t, svc)
}

func TestGenerateToken(t *testing.T) {
	t.Parallel()

	fixedTime := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	userID := uuid.New()
	svc := newTestService(t, testSecret, fixedTime)

	token, err := svc.GenerateToken(context.Background(), userID)
	require.NoError(t, err)
	require.NotEmpty(t, token)

	claims, err := svc.ValidateToken(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, userID, claims.UserID)
	assert.Equal(t, userID.String(), claims.Subject)
	assert.Equal(t, TokenTypeAccess, claims.TokenType)
	assert.Equal(t, fixedTime.Unix(), claims.IssuedAt.Unix())
	assert.Equal(t, fixedTime.Add(time.Hour).Unix(), claims.ExpiresAt.Unix())
	assert.NotEmpty(t, claims.ID)
}

func TestValidateToken(t *testing.T) {
	t.Parallel()

	fixedTime := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	userID := uuid.New()

	issue := func(t *testing.T, secret string, at time.Time) string {
		token, err := newTestService(t, secret, at).GenerateToken(context.Background(), userID)
		require.NoError(t, err)
		return token
	}

	sign := func(t *testing.T, claims jwtCustomClaims) string {
		token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
		require.NoError(t, err)
		return token
	}

	tests := []struct {
		name    string
		token   func(t *testing.T) string
		wantErr error
	}{
		{
			name:  "valid token",
			token: func(t *testing.T) string { return issue(t, testSecret, fixedTime) },
		},
		{
			name:  "within clock skew",
			token: func(t *testing.T) string { return issue(t, testSecret, fixedTime.Add(-time.Hour-time.Minute)) },
		},
		{
			name:    "expired token",
			token:   func(t *testing.T) string { return issue(t, testSecret, fixedTime.Add(-2*time.Hour)) },
			wantErr: ErrExpiredToken,
		},
		{
			name:    "invalid signature",
			token:   func(t *testing.T) string { return issue(t, wrongSecret, fixedTime) },
			wantErr: ErrInvalidToken,
		},
		{
			name:    "malformed token",
			token:   func(t *testing.T) string { return "this.is.not.a.valid.jwt.token" },
			wantErr: ErrInvalidToken,
		},
		{
			name: "wrong token type",
			token: func(t *testing.T) string {
				return sign(t, jwtCustomClaims{
					UserID:    userID,
					TokenType: "refresh",
					RegisteredClaims: jwt.RegisteredClaims{
						ExpiresAt: jwt.NewNumericDate(fixedTime.Add(time.Hour)),
					},
				})
			},
			wantErr: ErrWrongTokenType,
		},
		{
			name: "not yet valid",
			token: func(t *testing.T) string {
				return sign(t, jwtCustomClaims{
					UserID:    userID,
					TokenType: TokenTypeAccess,
					RegisteredClaims: jwt.RegisteredClaims{
						NotBefore: jwt.NewNumericDate(fixedTime.Add(time.Hour)),
						ExpiresAt: jwt.NewNumericDate(fixedTime.Add(2 * time.Hour)),
					},
				})
			},
			wantErr: ErrTokenNotYetValid,
		},
		{
			name: "missing user id",
			token: func(t *testing.T) string {
				return sign(t, jwtCustomClaims{
					TokenType: TokenTypeAccess,
					RegisteredClaims: jwt.RegisteredClaims{
						ExpiresAt: jwt.NewNumericDate(fixedTime.Add(time.Hour)),
					},
				})
			},
			wantErr: ErrInvalidToken,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			svc := newTestService(t, testSecret, fixedTime)
			claims, err := svc.ValidateToken(context.Background(), tt.token(t))

			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Nil(t, claims)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, userID, claims.UserID)
		})
	}
}
