package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	pkgerrors "judgegate/pkg/errors"
	"judgegate/pkg/utils/logger"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
)

// Identity is the caller resolved from a bearer token.
type Identity struct {
	ID    string `json:"id"`
	Email string `json:"email,omitempty"`
}

// IsAnonymous reports whether no authenticated user is attached.
func (i Identity) IsAnonymous() bool {
	return i.ID == ""
}

// IdentityResolver turns an Authorization header into an Identity.
// ok is false for missing or unusable tokens; callers then treat the request as anonymous.
type IdentityResolver interface {
	Resolve(ctx context.Context, authorization string) (Identity, bool)
}

// AuthService verifies HS256 access tokens issued by the external identity provider.
type AuthService struct {
	jwtSecret []byte
	jwtIssuer string
}

var _ IdentityResolver = (*AuthService)(nil)

func NewAuthService(jwtSecret, jwtIssuer string) *AuthService {
	return &AuthService{
		jwtSecret: []byte(jwtSecret),
		jwtIssuer: jwtIssuer,
	}
}

type tokenClaims struct {
	Email string `json:"email"`
	jwt.RegisteredClaims
}

func (s *AuthService) Authenticate(_ context.Context, raw string) (Identity, error) {
	if raw == "" {
		return Identity{}, pkgerrors.New(pkgerrors.TokenInvalid)
	}
	claims, err := s.parseToken(raw)
	if err != nil {
		return Identity{}, err
	}
	return Identity{ID: claims.Subject, Email: claims.Email}, nil
}

// Resolve implements IdentityResolver.
func (s *AuthService) Resolve(ctx context.Context, authorization string) (Identity, bool) {
	raw := ExtractBearerToken(authorization)
	if raw == "" {
		return Identity{}, false
	}
	identity, err := s.Authenticate(ctx, raw)
	if err != nil {
		logger.Debug(ctx, "bearer token ignored", zap.Int("code", int(pkgerrors.GetCode(err))))
		return Identity{}, false
	}
	return identity, true
}

func (s *AuthService) parseToken(raw string) (*tokenClaims, error) {
	if len(s.jwtSecret) == 0 {
		return nil, pkgerrors.New(pkgerrors.TokenInvalid)
	}
	parsed, err := jwt.ParseWithClaims(raw, &tokenClaims{}, func(token *jwt.Token) (interface{}, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.jwtSecret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, pkgerrors.New(pkgerrors.TokenExpired)
		}
		return nil, pkgerrors.New(pkgerrors.TokenInvalid)
	}
	if !parsed.Valid {
		return nil, pkgerrors.New(pkgerrors.TokenInvalid)
	}
	claims, ok := parsed.Claims.(*tokenClaims)
	if !ok {
		return nil, pkgerrors.New(pkgerrors.TokenInvalid)
	}
	if s.jwtIssuer != "" && claims.Issuer != s.jwtIssuer {
		return nil, pkgerrors.New(pkgerrors.TokenInvalid)
	}
	if claims.Subject == "" {
		return nil, pkgerrors.New(pkgerrors.TokenInvalid)
	}
	return claims, nil
}

// ExtractBearerToken returns the token part of an "Authorization: Bearer <token>" header.
func ExtractBearerToken(header string) string {
	header = strings.TrimSpace(header)
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
