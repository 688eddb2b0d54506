// Package auth はトークンの発行・検証とパスワードハッシュを提供する。
package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrTokenMalformed はトークンが空、または構造的に解釈できない場合に返される。
	ErrTokenMalformed = errors.New("token is malformed")
	// ErrTokenInvalid は署名不一致、アルゴリズム不一致、期限切れ、subject欠落の場合に返される。
	ErrTokenInvalid = errors.New("token is invalid")
)

// DefaultTokenTTL はトークンの既定の有効期間（30日）。
const DefaultTokenTTL = 30 * 24 * time.Hour

// Claims はトークンに格納するクレーム。テナントIDはsubjectに格納する。
type Claims struct {
	jwt.RegisteredClaims
}

// TokenConfig はTokenServiceの設定。
type TokenConfig struct {
	Secret []byte
	TTL    time.Duration
	Now    func() time.Time // テスト用に差し替え可能な時計
}

// TokenService はHS256署名のステートレスなベアラートークンを発行・検証する。
// 失効リストは持たないため、発行済みトークンは期限まで有効。
type TokenService struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewTokenService はTokenServiceを生成する。
// 署名鍵が空の場合はエラーを返す。
func NewTokenService(cfg TokenConfig) (*TokenService, error) {
	if len(cfg.Secret) == 0 {
		return nil, errors.New("token secret must not be empty")
	}
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultTokenTTL
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &TokenService{secret: cfg.Secret, ttl: cfg.TTL, now: cfg.Now}, nil
}

// Issue はテナントIDを主体とするトークンを発行する。
func (s *TokenService) Issue(tenantID string) (string, error) {
	if tenantID == "" {
		return "", errors.New("tenant id must not be empty")
	}

	now := s.now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   tenantID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
	})

	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// Verify はトークンを検証し、テナントIDを返す。
// 構造的に不正な場合はErrTokenMalformed、それ以外の検証失敗はErrTokenInvalidを返す。
func (s *TokenService) Verify(tokenString string) (string, error) {
	if strings.TrimSpace(tokenString) == "" {
		return "", ErrTokenMalformed
	}

	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims,
		func(t *jwt.Token) (any, error) {
			return s.secret, nil
		},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenMalformed) {
			return "", ErrTokenMalformed
		}
		return "", ErrTokenInvalid
	}
	if !token.Valid || claims.Subject == "" {
		return "", ErrTokenInvalid
	}

	return claims.Subject, nil
}
