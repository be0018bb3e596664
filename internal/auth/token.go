package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// MinSecretLength はHS256の署名鍵に要求する最小バイト数。
const MinSecretLength = 32

// tokenIssuer はJWTのissクレーム。
const tokenIssuer = "localbite"

// ErrInvalidToken はトークンの署名・形式・有効期限のいずれかが不正な場合に返す。
var ErrInvalidToken = errors.New("invalid token")

// TokenManager はユーザーIDを含むJWTの発行と検証を行う。
type TokenManager struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewTokenManager はTokenManagerを生成する。secretがMinSecretLength未満の場合はエラーを返す。
func NewTokenManager(secret string, ttl time.Duration) (*TokenManager, error) {
	if len(secret) < MinSecretLength {
		return nil, fmt.Errorf("JWT署名鍵は%dバイト以上必要です", MinSecretLength)
	}
	if ttl <= 0 {
		return nil, fmt.Errorf("トークンの有効期間が不正です: %s", ttl)
	}
	return &TokenManager{
		secret: []byte(secret),
		ttl:    ttl,
		now:    time.Now,
	}, nil
}

// TTL はトークンの有効期間を返す。Cookieの有効期限に使う。
func (m *TokenManager) TTL() time.Duration {
	return m.ttl
}

// Issue はユーザーIDをsubクレームに持つHS256署名のトークンを発行する。
func (m *TokenManager) Issue(userID string) (string, error) {
	now := m.now()
	claims := jwt.RegisteredClaims{
		Subject:   userID,
		Issuer:    tokenIssuer,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(m.ttl)),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return "", fmt.Errorf("トークンの署名に失敗しました: %w", err)
	}
	return signed, nil
}

// Verify はトークンを検証してユーザーIDを返す。
// HS256以外の署名方式、期限切れ、発行者の不一致はErrInvalidTokenとする。
func (m *TokenManager) Verify(token string) (string, error) {
	if token == "" {
		return "", ErrInvalidToken
	}

	claims := &jwt.RegisteredClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		return m.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(tokenIssuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(m.now),
	)
	if err != nil || !parsed.Valid {
		return "", fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if claims.Subject == "" {
		return "", ErrInvalidToken
	}
	return claims.Subject, nil
}
