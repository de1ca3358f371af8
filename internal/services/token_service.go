package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"

	"akimat/internal/logger"
	"akimat/internal/models"
	"akimat/internal/repositories"
)

// Claims of a session token. The token carries identity (IIN), not a DB key.
type Claims struct {
	IIN string `json:"iin"`
	// Error is never set by Issue; tokens that carry it are always rejected.
	Error string `json:"error,omitempty"`
	jwt.RegisteredClaims
}

type TokenConfig struct {
	Secret    string
	Algorithm string // HS256 | HS384 | HS512
	TTL       time.Duration
}

type TokenService interface {
	// Issue signs a token for iin; ttl <= 0 means the configured default.
	Issue(iin string, ttl time.Duration) (string, error)
	// Parse checks signature and expiry only.
	Parse(token string) (*Claims, error)
	// Validate parses the token and re-resolves the user by IIN on every call.
	Validate(ctx context.Context, token string) (*models.User, error)
	TTL() time.Duration
}

type userByIIN interface {
	GetByIIN(ctx context.Context, iin string) (*models.User, error)
}

type tokenService struct {
	secret []byte
	method jwt.SigningMethod
	ttl    time.Duration
	users  userByIIN
	log    zerolog.Logger

	now  func() time.Time
	sign func(t *jwt.Token, key any) (string, error)
}

func NewTokenService(cfg TokenConfig, users userByIIN) (TokenService, error) {
	if strings.TrimSpace(cfg.Secret) == "" {
		return nil, errors.New("token secret is empty")
	}
	alg := strings.ToUpper(cfg.Algorithm)
	if alg == "" {
		alg = jwt.SigningMethodHS256.Alg()
	}
	method, ok := jwt.GetSigningMethod(alg).(*jwt.SigningMethodHMAC)
	if !ok {
		return nil, fmt.Errorf("unsupported token algorithm %q", cfg.Algorithm)
	}
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	return &tokenService{
		secret: []byte(cfg.Secret),
		method: method,
		ttl:    ttl,
		users:  users,
		log:    logger.Component("token"),
		now:    time.Now,
		sign: func(t *jwt.Token, key any) (string, error) {
			return t.SignedString(key)
		},
	}, nil
}

func (s *tokenService) TTL() time.Duration { return s.ttl }

// Issue fails hard on any signing fault: there is no degraded or unsigned
// fallback token.
func (s *tokenService) Issue(iin string, ttl time.Duration) (string, error) {
	iin = strings.TrimSpace(iin)
	if iin == "" {
		s.log.Warn().Msg("no IIN provided for token creation")
		return "", fmt.Errorf("%w: empty iin", ErrTokenIssue)
	}
	if ttl <= 0 {
		ttl = s.ttl
	}
	now := s.now()
	claims := &Claims{
		IIN: iin,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	signed, err := s.sign(jwt.NewWithClaims(s.method, claims), s.secret)
	if err != nil || signed == "" {
		s.log.Error().Err(err).Msg("error creating access token")
		return "", fmt.Errorf("%w: %v", ErrTokenIssue, err)
	}
	s.log.Debug().Dur("ttl", ttl).Msg("token created")
	return signed, nil
}

func (s *tokenService) Parse(token string) (*Claims, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, fmt.Errorf("%w: missing token", ErrTokenInvalid)
	}
	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		// только наш HMAC-алгоритм, никакого alg confusion
		if t.Method.Alg() != s.method.Alg() {
			return nil, jwt.ErrTokenSignatureInvalid
		}
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{s.method.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil || !parsed.Valid {
		return nil, fmt.Errorf("%w: %v", ErrTokenInvalid, err)
	}
	if claims.Error != "" {
		return nil, fmt.Errorf("%w: error token", ErrTokenInvalid)
	}
	if strings.TrimSpace(claims.IIN) == "" {
		s.log.Error().Msg("token missing required 'iin' claim")
		return nil, fmt.Errorf("%w: missing iin claim", ErrTokenInvalid)
	}
	return claims, nil
}

func (s *tokenService) Validate(ctx context.Context, token string) (*models.User, error) {
	claims, err := s.Parse(token)
	if err != nil {
		return nil, err
	}
	user, err := s.users.GetByIIN(ctx, claims.IIN)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			s.log.Warn().Msg("no user found for token iin")
			return nil, ErrUserNotFound
		}
		s.log.Error().Err(err).Msg("user lookup failed during token validation")
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	return user, nil
}
