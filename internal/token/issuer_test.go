package token

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/farmdirect/marketplace/internal/identity"
)

func testUser() *identity.User {
	return &identity.User{
		ID:    uuid.New(),
		Email: "ana@example.com",
		Role:  identity.RoleCustomer,
	}
}

func TestIssueAndVerify(t *testing.T) {
	iss := NewIssuer("access-secret", "refresh-secret", 15*time.Minute, 7*24*time.Hour)
	u := testUser()

	pair, err := iss.Issue(u)
	require.NoError(t, err)
	require.NotEmpty(t, pair.AccessToken)
	require.NotEmpty(t, pair.RefreshToken)

	claims, err := iss.Verify(pair.AccessToken, KindAccess)
	require.NoError(t, err)
	assert.Equal(t, u.ID, claims.UserID())
	assert.Equal(t, "customer", claims.Role)
	assert.Equal(t, u.Email, claims.Email)

	_, err = iss.Verify(pair.RefreshToken, KindRefresh)
	require.NoError(t, err)
}

func TestKindsAreNotInterchangeable(t *testing.T) {
	iss := NewIssuer("access-secret", "refresh-secret", 15*time.Minute, 7*24*time.Hour)
	pair, err := iss.Issue(testUser())
	require.NoError(t, err)

	_, err = iss.Verify(pair.RefreshToken, KindAccess)
	assert.ErrorIs(t, err, ErrInvalidOrExpired)

	_, err = iss.Verify(pair.AccessToken, KindRefresh)
	assert.ErrorIs(t, err, ErrInvalidOrExpired)
}

func TestExpiredTokenRejected(t *testing.T) {
	iss := NewIssuer("access-secret", "refresh-secret", time.Minute, time.Hour)
	pair, err := iss.Issue(testUser())
	require.NoError(t, err)

	iss.now = func() time.Time { return time.Now().Add(2 * time.Minute) }
	_, err = iss.Verify(pair.AccessToken, KindAccess)
	assert.ErrorIs(t, err, ErrInvalidOrExpired)
}

func TestGarbageTokenRejected(t *testing.T) {
	iss := NewIssuer("access-secret", "refresh-secret", time.Minute, time.Hour)

	_, err := iss.Verify("not-a-jwt", KindAccess)
	assert.ErrorIs(t, err, ErrInvalidOrExpired)

	otherIss := NewIssuer("other-secret", "other-refresh", time.Minute, time.Hour)
	pair, err := otherIss.Issue(testUser())
	require.NoError(t, err)
	_, err = iss.Verify(pair.AccessToken, KindAccess)
	assert.ErrorIs(t, err, ErrInvalidOrExpired)
}
