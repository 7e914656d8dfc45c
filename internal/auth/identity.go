package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"classchat-service/internal/models"
)

var ErrInvalidToken = errors.New("invalid token")

// Identity is the resolved view of a bearer credential: who is on the other
// end of a request or socket. ChildIDs is populated for parents only and is
// used purely for privacy filtering, never for room scoping.
type Identity struct {
	Kind     models.MemberType `json:"kind"`
	ID       string            `json:"id"`
	Role     models.Role       `json:"role"`
	Name     string            `json:"name"`
	Avatar   string            `json:"avatar,omitempty"`
	SchoolID string            `json:"school_id"`
	ChildIDs []string          `json:"child_ids,omitempty"`
}

// MemberKey returns the (member type, member id) pair used for membership
// checks and sender matching.
func (i Identity) MemberKey() models.MemberKey {
	return models.MemberKey{MemberType: i.Kind, MemberID: i.ID}
}

// HasChild reports whether the given student id is in the identity's linked
// child set.
func (i Identity) HasChild(studentID string) bool {
	for _, id := range i.ChildIDs {
		if id == studentID {
			return true
		}
	}
	return false
}

type identityClaims struct {
	Kind     string   `json:"kind"`
	Role     string   `json:"role"`
	Name     string   `json:"name"`
	Avatar   string   `json:"avatar,omitempty"`
	SchoolID string   `json:"school_id"`
	ChildIDs []string `json:"child_ids,omitempty"`
	jwt.RegisteredClaims
}

// Resolver verifies HMAC-signed bearer tokens issued by the identity service
// and resolves them into Identities.
type Resolver struct {
	secret []byte
}

// NewResolver constructs a Resolver with the shared signing secret.
func NewResolver(secret string) *Resolver {
	return &Resolver{secret: []byte(secret)}
}

// Resolve parses and verifies a raw token string.
func (r *Resolver) Resolve(token string) (Identity, error) {
	if token == "" {
		return Identity{}, ErrInvalidToken
	}

	var claims identityClaims
	parsed, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return r.secret, nil
	})
	if err != nil || !parsed.Valid {
		return Identity{}, ErrInvalidToken
	}

	identity := Identity{
		Kind:     models.MemberType(claims.Kind),
		ID:       claims.Subject,
		Role:     models.Role(claims.Role),
		Name:     claims.Name,
		Avatar:   claims.Avatar,
		SchoolID: claims.SchoolID,
		ChildIDs: claims.ChildIDs,
	}
	if identity.ID == "" || !identity.Kind.Valid() || !identity.Role.Valid() {
		return Identity{}, ErrInvalidToken
	}
	return identity, nil
}

// SignIdentity issues a token for the identity, signed with the resolver's
// secret. Token issuance lives in the identity service; this helper exists
// for local development and tests.
func (r *Resolver) SignIdentity(identity Identity, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := identityClaims{
		Kind:     string(identity.Kind),
		Role:     string(identity.Role),
		Name:     identity.Name,
		Avatar:   identity.Avatar,
		SchoolID: identity.SchoolID,
		ChildIDs: identity.ChildIDs,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   identity.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(r.secret)
}
