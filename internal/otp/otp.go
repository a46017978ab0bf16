// Package otp issues, delivers and checks the six digit codes that gate
// email verification and password changes.
//
// Each user carries at most one code. Issuing a new code overwrites the
// previous one, so a superseded code fails with ErrMismatch.
package otp

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"primetrade/internal/metrics"
	"primetrade/internal/models"
	"primetrade/internal/util"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// DefaultTTL is how long an issued code stays valid.
const DefaultTTL = 10 * time.Minute

var (
	ErrNoPendingCode = errors.New("no pending code")
	ErrExpired       = errors.New("code expired")
	ErrMismatch      = errors.New("code mismatch")
	// ErrDelivery wraps a notification failure after the code was persisted.
	ErrDelivery = errors.New("code delivery failed")
	ErrCooldown = errors.New("code requested too soon")
)

// CooldownError reports how long the caller must wait before asking again.
type CooldownError struct {
	RetryAfter time.Duration
}

func (e *CooldownError) Error() string {
	return fmt.Sprintf("code requested too soon, retry after %s", e.RetryAfter.Round(time.Second))
}

func (e *CooldownError) Is(target error) bool { return target == ErrCooldown }

// Issue reasons, used for metrics and logs.
const (
	ReasonRegister = "register"
	ReasonResend   = "resend"
	ReasonPassword = "password"
)

// Outcome distinguishes a state change from an idempotent no-op.
type Outcome int

const (
	Verified Outcome = iota + 1
	AlreadyVerified
	Issued
)

// UserStore is the slice of the credential store the workflow needs.
type UserStore interface {
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	SetOTP(ctx context.Context, id primitive.ObjectID, code string, expiresAt time.Time) error
	MarkVerified(ctx context.Context, id primitive.ObjectID) error
}

// Sender delivers a code to an email address.
type Sender interface {
	SendOTP(ctx context.Context, toEmail, code string, ttl time.Duration) error
}

type Service struct {
	users    UserStore
	sender   Sender
	cooldown *Cooldown
	codes    CodeSource
	ttl      time.Duration
	now      func() time.Time
	logger   *slog.Logger
}

func NewService(users UserStore, sender Sender, cooldown *Cooldown, ttl time.Duration, logger *slog.Logger) *Service {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Service{
		users:    users,
		sender:   sender,
		cooldown: cooldown,
		codes:    HOTPCodes,
		ttl:      ttl,
		now:      time.Now,
		logger:   logger,
	}
}

// Issue stores a new code and expiry on user, then mails the code.
// The code is persisted before sending and is kept if sending fails;
// in that case the returned error wraps ErrDelivery.
func (s *Service) Issue(ctx context.Context, user *models.User, reason string) error {
	code, err := s.codes()
	if err != nil {
		return fmt.Errorf("draw code: %w", err)
	}
	expiresAt := s.now().Add(s.ttl)
	if err := s.users.SetOTP(ctx, user.ID, code, expiresAt); err != nil {
		return fmt.Errorf("store code: %w", err)
	}
	user.OTPCode = &code
	user.OTPExpiresAt = &expiresAt
	metrics.OTPIssuedTotal.WithLabelValues(reason).Inc()

	if err := s.sender.SendOTP(ctx, user.Email, code, s.ttl); err != nil {
		metrics.OTPDeliveryFailuresTotal.Inc()
		s.logger.Warn("send otp failed",
			slog.String("email", user.Email),
			slog.String("reason", reason),
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("%w: %v", ErrDelivery, err)
	}
	// Armed only after delivery so a failed send can be retried at once.
	if err := s.cooldown.Arm(ctx, user.Email); err != nil {
		s.logger.Warn("arm otp cooldown failed", slog.String("email", user.Email), slog.String("error", err.Error()))
	}
	s.logger.Info("otp issued", slog.String("email", user.Email), slog.String("reason", reason))
	return nil
}

// Verify consumes code for the account registered under email and marks
// it verified. An already verified account is reported as AlreadyVerified
// without looking at code.
func (s *Service) Verify(ctx context.Context, email, code string) (Outcome, error) {
	user, err := s.users.FindByEmail(ctx, util.NormalizeEmail(email))
	if err != nil {
		return 0, err
	}
	if user.IsVerified {
		metrics.OTPChecksTotal.WithLabelValues("already_verified").Inc()
		return AlreadyVerified, nil
	}
	if err := s.Consume(user, code); err != nil {
		return 0, err
	}
	if err := s.users.MarkVerified(ctx, user.ID); err != nil {
		return 0, fmt.Errorf("mark verified: %w", err)
	}
	user.IsVerified = true
	s.logger.Info("email verified", slog.String("email", user.Email))
	return Verified, nil
}

// Resend issues a fresh code to an unverified account, invalidating the
// previous one. Verified accounts are left untouched.
func (s *Service) Resend(ctx context.Context, email string) (Outcome, error) {
	user, err := s.users.FindByEmail(ctx, util.NormalizeEmail(email))
	if err != nil {
		return 0, err
	}
	if user.IsVerified {
		return AlreadyVerified, nil
	}
	if err := s.checkCooldown(ctx, user.Email); err != nil {
		return 0, err
	}
	if err := s.Issue(ctx, user, ReasonResend); err != nil {
		return 0, err
	}
	return Issued, nil
}

// RequestPasswordChange issues a code to any existing account, verified or
// not, so it can authorise a password change.
func (s *Service) RequestPasswordChange(ctx context.Context, email string) error {
	user, err := s.users.FindByEmail(ctx, util.NormalizeEmail(email))
	if err != nil {
		return err
	}
	if err := s.checkCooldown(ctx, user.Email); err != nil {
		return err
	}
	return s.Issue(ctx, user, ReasonPassword)
}

// Consume checks code against the one stored on user and, on success,
// clears it from user. It does not persist; callers write the cleared
// fields together with whatever change the code authorised.
func (s *Service) Consume(user *models.User, code string) error {
	if err := s.check(user, code); err != nil {
		return err
	}
	metrics.OTPChecksTotal.WithLabelValues("accepted").Inc()
	user.OTPCode = nil
	user.OTPExpiresAt = nil
	return nil
}

func (s *Service) check(user *models.User, code string) error {
	if !user.HasPendingOTP() {
		metrics.OTPChecksTotal.WithLabelValues("no_pending").Inc()
		return ErrNoPendingCode
	}
	if s.now().After(*user.OTPExpiresAt) {
		metrics.OTPChecksTotal.WithLabelValues("expired").Inc()
		return ErrExpired
	}
	if !ValidFormat(code) || subtle.ConstantTimeCompare([]byte(code), []byte(*user.OTPCode)) != 1 {
		metrics.OTPChecksTotal.WithLabelValues("mismatch").Inc()
		return ErrMismatch
	}
	return nil
}

func (s *Service) checkCooldown(ctx context.Context, email string) error {
	left, err := s.cooldown.Remaining(ctx, email)
	if err != nil {
		// Throttling is best effort; a Redis outage must not block codes.
		s.logger.Warn("read otp cooldown failed", slog.String("email", email), slog.String("error", err.Error()))
		return nil
	}
	if left > 0 {
		return &CooldownError{RetryAfter: left}
	}
	return nil
}
