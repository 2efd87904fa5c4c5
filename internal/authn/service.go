package authn

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/farmdirect/marketplace/internal/identity"
	"github.com/farmdirect/marketplace/internal/token"
)

const (
	DefaultExpiry      = 600 * time.Second
	DefaultMaxAttempts = 3
)

var (
	// ErrNoChallenge: verification was attempted with no live challenge.
	ErrNoChallenge = errors.New("no active challenge")

	// ErrCodeExpired: the challenge outlived its expiry and was discarded.
	ErrCodeExpired = errors.New("code expired")

	// ErrAttemptsExhausted: too many wrong codes; the challenge is gone and
	// the user has to request a new one.
	ErrAttemptsExhausted = errors.New("too many attempts")

	// ErrDeliveryFailed: the code never reached the user, so no challenge
	// is live.
	ErrDeliveryFailed = errors.New("code delivery failed")
)

// InvalidCodeError reports a wrong code while attempts remain.
type InvalidCodeError struct {
	Remaining int
}

func (e *InvalidCodeError) Error() string {
	return fmt.Sprintf("invalid code, %d attempts remaining", e.Remaining)
}

// Notifier delivers the plaintext code to the user's contact channel.
type Notifier interface {
	SendCode(ctx context.Context, destination, code string) error
}

// TokenIssuer mints the credential pair handed out once a challenge passes.
type TokenIssuer interface {
	Issue(u *identity.User) (token.Pair, error)
}

type Service struct {
	store       Store
	notifier    Notifier
	issuer      TokenIssuer
	log         *logrus.Logger
	expiry      time.Duration
	maxAttempts int
	now         func() time.Time
}

func NewService(store Store, notifier Notifier, issuer TokenIssuer, log *logrus.Logger, expiry time.Duration, maxAttempts int) *Service {
	if expiry <= 0 {
		expiry = DefaultExpiry
	}
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	return &Service{
		store:       store,
		notifier:    notifier,
		issuer:      issuer,
		log:         log,
		expiry:      expiry,
		maxAttempts: maxAttempts,
		now:         time.Now,
	}
}

// Start issues a fresh challenge for the user, invalidating any earlier one.
// The challenge only becomes live once the notifier confirms delivery; on
// delivery failure the record is discarded again.
func (s *Service) Start(ctx context.Context, u *identity.User) error {
	code, err := generateCode()
	if err != nil {
		return err
	}

	if err := s.store.DeleteAllForUser(ctx, u.ID); err != nil {
		return err
	}
	ch := &Challenge{
		ID:        uuid.New(),
		UserID:    u.ID,
		CodeHash:  hashCode(code),
		ExpiresAt: s.now().Add(s.expiry),
	}
	if err := s.store.Create(ctx, ch); err != nil {
		return err
	}

	if err := s.notifier.SendCode(ctx, u.Email, code); err != nil {
		s.log.WithError(err).WithField("user_id", u.ID).Warn("code delivery failed, discarding challenge")
		if delErr := s.store.DeleteAllForUser(ctx, u.ID); delErr != nil {
			return delErr
		}
		return fmt.Errorf("%w: %v", ErrDeliveryFailed, err)
	}
	return nil
}

// Resend discards the current challenge and starts over. The attempt budget
// is not additive across resends.
func (s *Service) Resend(ctx context.Context, u *identity.User) error {
	return s.Start(ctx, u)
}

// Verify checks the submitted code against the user's live challenge and, on
// success, returns a fresh token pair. Every terminal outcome (success,
// expiry, exhaustion) deletes the challenge.
func (s *Service) Verify(ctx context.Context, u *identity.User, submitted string) (token.Pair, error) {
	ch, err := s.store.LatestForUser(ctx, u.ID)
	if errors.Is(err, ErrChallengeNotFound) {
		return token.Pair{}, ErrNoChallenge
	}
	if err != nil {
		return token.Pair{}, err
	}

	if ch.Expired(s.now()) {
		if err := s.store.DeleteAllForUser(ctx, u.ID); err != nil {
			return token.Pair{}, err
		}
		return token.Pair{}, ErrCodeExpired
	}

	if ch.Attempts >= s.maxAttempts {
		if err := s.store.DeleteAllForUser(ctx, u.ID); err != nil {
			return token.Pair{}, err
		}
		return token.Pair{}, ErrAttemptsExhausted
	}

	if !codeMatches(ch.CodeHash, submitted) {
		ch.Attempts++
		if ch.Attempts >= s.maxAttempts {
			if err := s.store.DeleteAllForUser(ctx, u.ID); err != nil {
				return token.Pair{}, err
			}
			return token.Pair{}, ErrAttemptsExhausted
		}
		if err := s.store.SetAttempts(ctx, ch.ID, ch.Attempts); err != nil {
			return token.Pair{}, err
		}
		return token.Pair{}, &InvalidCodeError{Remaining: s.maxAttempts - ch.Attempts}
	}

	if err := s.store.DeleteAllForUser(ctx, u.ID); err != nil {
		return token.Pair{}, err
	}
	return s.issuer.Issue(u)
}
