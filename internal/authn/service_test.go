package authn

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/farmdirect/marketplace/internal/identity"
	"github.com/farmdirect/marketplace/internal/token"
)

type memStore struct {
	byUser map[uuid.UUID][]*Challenge
}

func newMemStore() *memStore { return &memStore{byUser: map[uuid.UUID][]*Challenge{}} }

func (m *memStore) Create(_ context.Context, c *Challenge) error {
	cp := *c
	cp.CreatedAt = time.Now()
	m.byUser[c.UserID] = append(m.byUser[c.UserID], &cp)
	return nil
}

func (m *memStore) LatestForUser(_ context.Context, userID uuid.UUID) (*Challenge, error) {
	chs := m.byUser[userID]
	if len(chs) == 0 {
		return nil, ErrChallengeNotFound
	}
	cp := *chs[len(chs)-1]
	return &cp, nil
}

func (m *memStore) SetAttempts(_ context.Context, id uuid.UUID, attempts int) error {
	for _, chs := range m.byUser {
		for _, c := range chs {
			if c.ID == id {
				c.Attempts = attempts
				return nil
			}
		}
	}
	return ErrChallengeNotFound
}

func (m *memStore) DeleteAllForUser(_ context.Context, userID uuid.UUID) error {
	delete(m.byUser, userID)
	return nil
}

type captureNotifier struct {
	codes []string
	fail  error
}

func (n *captureNotifier) SendCode(_ context.Context, _, code string) error {
	if n.fail != nil {
		return n.fail
	}
	n.codes = append(n.codes, code)
	return nil
}

func (n *captureNotifier) last() string { return n.codes[len(n.codes)-1] }

func testLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func setup(t *testing.T) (*Service, *memStore, *captureNotifier, *identity.User) {
	t.Helper()
	store := newMemStore()
	notifier := &captureNotifier{}
	issuer := token.NewIssuer("acc", "ref", 15*time.Minute, time.Hour)
	svc := NewService(store, notifier, issuer, testLogger(), 10*time.Minute, 3)
	user := &identity.User{ID: uuid.New(), Email: "ana@example.com", Role: identity.RoleCustomer}
	return svc, store, notifier, user
}

func TestStartThenVerifySucceeds(t *testing.T) {
	svc, store, notifier, user := setup(t)
	ctx := context.Background()

	require.NoError(t, svc.Start(ctx, user))
	require.Len(t, notifier.codes, 1)
	assert.Len(t, notifier.last(), 6)

	pair, err := svc.Verify(ctx, user, notifier.last())
	require.NoError(t, err)
	assert.NotEmpty(t, pair.AccessToken)
	assert.NotEmpty(t, pair.RefreshToken)

	// Challenge is single use.
	_, err = svc.Verify(ctx, user, notifier.last())
	assert.ErrorIs(t, err, ErrNoChallenge)
	assert.Empty(t, store.byUser[user.ID])
}

func TestVerifyWithoutChallenge(t *testing.T) {
	svc, _, _, user := setup(t)

	_, err := svc.Verify(context.Background(), user, "123456")
	assert.ErrorIs(t, err, ErrNoChallenge)
}

func TestWrongCodeCountsAttempts(t *testing.T) {
	svc, _, notifier, user := setup(t)
	ctx := context.Background()

	require.NoError(t, svc.Start(ctx, user))

	_, err := svc.Verify(ctx, user, "000000")
	var invalid *InvalidCodeError
	require.ErrorAs(t, err, &invalid)
	assert.Equal(t, 2, invalid.Remaining)

	_, err = svc.Verify(ctx, user, "000000")
	require.ErrorAs(t, err, &invalid)
	assert.Equal(t, 1, invalid.Remaining)

	// Third wrong code exhausts and deletes the challenge.
	_, err = svc.Verify(ctx, user, "000000")
	assert.ErrorIs(t, err, ErrAttemptsExhausted)

	// Even the right code is useless now.
	_, err = svc.Verify(ctx, user, notifier.last())
	assert.ErrorIs(t, err, ErrNoChallenge)
}

func TestExpiredCodeRejected(t *testing.T) {
	svc, _, notifier, user := setup(t)
	ctx := context.Background()

	require.NoError(t, svc.Start(ctx, user))

	svc.now = func() time.Time { return time.Now().Add(11 * time.Minute) }
	_, err := svc.Verify(ctx, user, notifier.last())
	assert.ErrorIs(t, err, ErrCodeExpired)

	// Terminal: deleted, so the next verify sees nothing.
	_, err = svc.Verify(ctx, user, notifier.last())
	assert.ErrorIs(t, err, ErrNoChallenge)
}

func TestStartInvalidatesPreviousChallenge(t *testing.T) {
	svc, _, notifier, user := setup(t)
	ctx := context.Background()

	require.NoError(t, svc.Start(ctx, user))
	first := notifier.last()
	require.NoError(t, svc.Start(ctx, user))
	second := notifier.last()

	if first != second {
		_, err := svc.Verify(ctx, user, first)
		var invalid *InvalidCodeError
		assert.ErrorAs(t, err, &invalid)
	}

	pair, err := svc.Verify(ctx, user, second)
	require.NoError(t, err)
	assert.NotEmpty(t, pair.AccessToken)
}

func TestResendResetsAttemptBudget(t *testing.T) {
	svc, store, notifier, user := setup(t)
	ctx := context.Background()

	require.NoError(t, svc.Start(ctx, user))
	_, err := svc.Verify(ctx, user, "000000")
	var invalid *InvalidCodeError
	require.ErrorAs(t, err, &invalid)

	require.NoError(t, svc.Resend(ctx, user))
	ch, err := store.LatestForUser(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, ch.Attempts)

	pair, err := svc.Verify(ctx, user, notifier.last())
	require.NoError(t, err)
	assert.NotEmpty(t, pair.AccessToken)
}

func TestDeliveryFailureDiscardsChallenge(t *testing.T) {
	svc, store, notifier, user := setup(t)
	ctx := context.Background()

	notifier.fail = errors.New("smtp down")
	err := svc.Start(ctx, user)
	assert.ErrorIs(t, err, ErrDeliveryFailed)
	assert.Empty(t, store.byUser[user.ID])

	_, err = svc.Verify(ctx, user, "123456")
	assert.ErrorIs(t, err, ErrNoChallenge)
}
