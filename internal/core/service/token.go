package service

import (
	"encoding/json"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/clinicflow/rdv-api/internal/core/domain"
)

// DefaultTokenTTL is the lifetime of an issued bearer token.
const DefaultTokenTTL = time.Hour

// roleClaim accepts the role either as a plain name or as an object carrying
// a name, and always holds the plain name.
type roleClaim string

func (r *roleClaim) UnmarshalJSON(b []byte) error {
	var name string
	if err := json.Unmarshal(b, &name); err == nil {
		*r = roleClaim(name)
		return nil
	}
	var obj struct {
		Name string `json:"name"`
	}
	if err := json.Unmarshal(b, &obj); err != nil {
		return err
	}
	*r = roleClaim(obj.Name)
	return nil
}

type tokenClaims struct {
	UserID string    `json:"id"`
	Role   roleClaim `json:"role"`
	jwt.RegisteredClaims
}

// TokenService issues and verifies HS256 bearer tokens.
type TokenService struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewTokenService(secret string, ttl time.Duration) *TokenService {
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	return &TokenService{secret: []byte(secret), ttl: ttl, now: time.Now}
}

func (s *TokenService) Issue(subjectID string, role domain.Role) (string, error) {
	now := s.now()
	claims := tokenClaims{
		UserID: subjectID,
		Role:   roleClaim(role),
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
}

// Verify returns the identity carried by token, or domain.ErrInvalidToken if
// the token is malformed, expired or not signed with the service secret.
func (s *TokenService) Verify(token string) (domain.Identity, error) {
	var claims tokenClaims
	parsed, err := jwt.ParseWithClaims(token, &claims, func(*jwt.Token) (any, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil || !parsed.Valid || claims.UserID == "" {
		return domain.Identity{}, domain.ErrInvalidToken
	}
	return domain.Identity{SubjectID: claims.UserID, Role: domain.Role(claims.Role)}, nil
}
