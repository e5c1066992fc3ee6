package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

func generateTokenPair(subject string, config *Config, now time.Time) (accessToken string, refreshToken string, err error) {
	accessToken, err = newToken(subject, config.TokenIssuer, config.AccessTokenSecret, config.AccessTokenExpiry, AccessToken, now)
	if err != nil {
		return "", "", fmt.Errorf("failed to generate access token: %w", err)
	}

	refreshToken, err = newToken(subject, config.TokenIssuer, config.RefreshTokenSecret, config.RefreshTokenExpiry, RefreshToken, now)
	if err != nil {
		return "", "", fmt.Errorf("failed to generate refresh token: %w", err)
	}

	return accessToken, refreshToken, nil
}

func newToken(subject, issuer, jwtSecret string, expiry time.Duration, tokenType AuthTokenType, now time.Time) (string, error) {
	var expiryTime *jwt.NumericDate
	if expiry > 0 {
		expiryTime = jwt.NewNumericDate(now.Add(expiry))
	}

	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.New().String(),
			Subject:   subject,
			Issuer:    issuer,
			ExpiresAt: expiryTime,
			IssuedAt:  jwt.NewNumericDate(now),
		},
		Type: tokenType,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(jwtSecret))
}
