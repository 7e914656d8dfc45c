package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"classchat-service/internal/models"
)

func TestResolveRoundtrip(t *testing.T) {
	resolver := NewResolver("test-secret")
	identity := Identity{
		Kind:     models.MemberTypeParent,
		ID:       "parent-1",
		Role:     models.RoleParent,
		Name:     "A Parent",
		SchoolID: "school-1",
		ChildIDs: []string{"student-1", "student-2"},
	}

	token, err := resolver.SignIdentity(identity, time.Minute)
	require.NoError(t, err)

	resolved, err := resolver.Resolve(token)
	require.NoError(t, err)
	assert.Equal(t, identity, resolved)
	assert.True(t, resolved.HasChild("student-2"))
	assert.False(t, resolved.HasChild("student-9"))
}

func TestResolveRejectsEmptyToken(t *testing.T) {
	resolver := NewResolver("test-secret")
	_, err := resolver.Resolve("")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestResolveRejectsWrongSecret(t *testing.T) {
	identity := Identity{Kind: models.MemberTypeStudent, ID: "student-1", Role: models.RoleStudent}
	token, err := NewResolver("secret-a").SignIdentity(identity, time.Minute)
	require.NoError(t, err)

	_, err = NewResolver("secret-b").Resolve(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestResolveRejectsExpiredToken(t *testing.T) {
	resolver := NewResolver("test-secret")
	identity := Identity{Kind: models.MemberTypeStudent, ID: "student-1", Role: models.RoleStudent}
	token, err := resolver.SignIdentity(identity, -time.Minute)
	require.NoError(t, err)

	_, err = resolver.Resolve(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestResolveRejectsUnknownKindOrRole(t *testing.T) {
	resolver := NewResolver("test-secret")

	token, err := resolver.SignIdentity(Identity{Kind: "robot", ID: "r2", Role: models.RoleStudent}, time.Minute)
	require.NoError(t, err)
	_, err = resolver.Resolve(token)
	assert.ErrorIs(t, err, ErrInvalidToken)

	token, err = resolver.SignIdentity(Identity{Kind: models.MemberTypeUser, ID: "u1", Role: "janitor"}, time.Minute)
	require.NoError(t, err)
	_, err = resolver.Resolve(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}
