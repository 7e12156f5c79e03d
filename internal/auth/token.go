package auth

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"myblog/internal/cache"
	"myblog/internal/middleware"
	"myblog/internal/models"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	TokenIssuer   = "myblog-api"
	TokenAudience = "myblog-client"
)

var (
	ErrTokenRevoked          = errors.New("token has been revoked")
	ErrRevocationUnavailable = errors.New("token revocation requires redis")
	ErrRevocationCheck       = errors.New("token revocation status unknown")
)

// Claims is the payload of an API access token. The subject is the user id.
type Claims struct {
	Username string      `json:"username,omitempty"`
	Role     models.Role `json:"role,omitempty"`
	jwt.RegisteredClaims
}

// UserID parses the subject claim.
func (c *Claims) UserID() (uint, error) {
	id, err := strconv.ParseUint(c.Subject, 10, 32)
	if err != nil || id == 0 {
		return 0, fmt.Errorf("invalid subject %q", c.Subject)
	}
	return uint(id), nil
}

// Tokens issues and validates HS256 access tokens. Revoked token ids are kept
// in Redis until the token would have expired anyway.
type Tokens struct {
	secret []byte
	ttl    time.Duration
	rdb    *redis.Client
	now    func() time.Time
}

// NewTokens returns a token service. rdb may be nil, which disables revocation.
func NewTokens(secret string, ttl time.Duration, rdb *redis.Client) *Tokens {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Tokens{
		secret: []byte(secret),
		ttl:    ttl,
		rdb:    rdb,
		now:    time.Now,
	}
}

// Issue signs a token for user.
func (t *Tokens) Issue(user *models.User) (string, *Claims, error) {
	if len(t.secret) == 0 {
		return "", nil, errors.New("JWT secret not configured")
	}

	now := t.now()
	claims := &Claims{
		Username: user.Username,
		Role:     user.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatUint(uint64(user.ID), 10),
			Issuer:    TokenIssuer,
			Audience:  jwt.ClaimStrings{TokenAudience},
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(t.ttl)),
			ID:        uuid.NewString(),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
	if err != nil {
		return "", nil, fmt.Errorf("signing token: %w", err)
	}
	return signed, claims, nil
}

// Parse validates signature, issuer, audience, expiry and revocation. A token
// whose revocation status cannot be read is rejected.
func (t *Tokens) Parse(ctx context.Context, tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(tok *jwt.Token) (any, error) {
		if _, ok := tok.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", tok.Header["alg"])
		}
		return t.secret, nil
	},
		jwt.WithIssuer(TokenIssuer),
		jwt.WithAudience(TokenAudience),
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(t.now),
	)
	if err != nil {
		return nil, fmt.Errorf("parsing token: %w", err)
	}
	if !token.Valid {
		return nil, errors.New("invalid token")
	}

	if claims.ID != "" && t.rdb != nil {
		n, err := t.rdb.Exists(ctx, cache.TokenBlacklistKey(claims.ID)).Result()
		if err != nil {
			middleware.Logger.ErrorContext(ctx, "token revocation check failed",
				"jti", claims.ID, "error", err)
			return nil, fmt.Errorf("%w: %w", ErrRevocationCheck, err)
		}
		if n > 0 {
			return nil, ErrTokenRevoked
		}
	}
	return claims, nil
}

// Revoke blacklists the token id for the rest of its lifetime.
func (t *Tokens) Revoke(ctx context.Context, claims *Claims) error {
	if t.rdb == nil {
		return ErrRevocationUnavailable
	}
	if claims.ID == "" {
		return errors.New("token has no id")
	}
	ttl := time.Minute
	if claims.ExpiresAt != nil {
		if remaining := claims.ExpiresAt.Sub(t.now()); remaining > 0 {
			ttl = remaining
		}
	}
	return t.rdb.Set(ctx, cache.TokenBlacklistKey(claims.ID), "1", ttl).Err()
}
