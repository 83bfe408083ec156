package auth

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/redmonkez12/otp-auth-api/internal/challenge"
	"github.com/redmonkez12/otp-auth-api/internal/logging"
	"github.com/redmonkez12/otp-auth-api/internal/user"
)

// UserRepository is the permanent credential store
type UserRepository interface {
	Create(ctx context.Context, name, email, passwordHash string) (*user.User, error)
	GetByEmail(ctx context.Context, email string) (*user.User, error)
}

// ChallengeStore holds outstanding OTP challenges, at most one live per email
type ChallengeStore interface {
	Replace(ctx context.Context, email, code string) (*challenge.Challenge, error)
	Find(ctx context.Context, email, code string) (*challenge.Challenge, error)
	Consume(ctx context.Context, email string) error
}

// Notifier delivers an OTP out of band
type Notifier interface {
	SendOTP(ctx context.Context, toEmail, code string, ttl time.Duration) error
}

// SendOTPInput is the body of an OTP request. Password is only checked for
// presence here; it is hashed when registration completes.
type SendOTPInput struct {
	Name     string
	Email    string
	Password string
}

func (in *SendOTPInput) Validate() error {
	if strings.TrimSpace(in.Name) == "" {
		return ErrNameRequired
	}
	if err := validateEmail(in.Email); err != nil {
		return err
	}
	if in.Password == "" {
		return ErrPasswordRequired
	}
	return nil
}

// RegisterInput is the body of a registration attempt
type RegisterInput struct {
	Name     string
	Email    string
	Password string
	Code     string
}

func (in *RegisterInput) Validate() error {
	if strings.TrimSpace(in.Name) == "" {
		return ErrNameRequired
	}
	if err := validateEmail(in.Email); err != nil {
		return err
	}
	if in.Password == "" {
		return ErrPasswordRequired
	}
	if strings.TrimSpace(in.Code) == "" {
		return ErrCodeRequired
	}
	return nil
}

// LoginInput is the body of a login attempt
type LoginInput struct {
	Email    string
	Password string
}

func (in *LoginInput) Validate() error {
	if strings.TrimSpace(in.Email) == "" {
		return ErrEmailRequired
	}
	if in.Password == "" {
		return ErrPasswordRequired
	}
	return nil
}

func validateEmail(email string) error {
	email = strings.TrimSpace(email)
	if email == "" {
		return ErrEmailRequired
	}
	if len(email) > 254 {
		return ErrInvalidEmailFormat
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return ErrInvalidEmailFormat
	}
	return nil
}

// Service runs OTP-gated registration and password login.
// It keeps no state of its own; atomicity lives in the stores.
type Service struct {
	userRepo    UserRepository
	challenges  ChallengeStore
	notifier    Notifier
	hasher      *PasswordHasher
	logger      *logging.Logger
	otpTTL      time.Duration
	sendTimeout time.Duration

	generateCode func() (string, error)
}

func NewService(
	userRepo UserRepository,
	challenges ChallengeStore,
	notifier Notifier,
	hasher *PasswordHasher,
	logger *logging.Logger,
	otpTTL time.Duration,
	sendTimeout time.Duration,
) *Service {
	return &Service{
		userRepo:     userRepo,
		challenges:   challenges,
		notifier:     notifier,
		hasher:       hasher,
		logger:       logger,
		otpTTL:       otpTTL,
		sendTimeout:  sendTimeout,
		generateCode: challenge.GenerateCode,
	}
}

// SendOTP issues a fresh challenge for an unregistered email and mails the code.
// The code is never returned. When delivery fails the challenge is left in
// place; a retry replaces it.
func (s *Service) SendOTP(ctx context.Context, in SendOTPInput) error {
	if err := in.Validate(); err != nil {
		return err
	}
	email := user.NormalizeEmail(in.Email)

	_, err := s.userRepo.GetByEmail(ctx, email)
	switch {
	case err == nil:
		return ErrUserExists
	case !errors.Is(err, user.ErrNotFound):
		return unavailable("find user", err)
	}

	code, err := s.generateCode()
	if err != nil {
		return fmt.Errorf("failed to generate otp: %w", err)
	}

	if _, err := s.challenges.Replace(ctx, email, code); err != nil {
		return unavailable("store challenge", err)
	}

	// No store work is outstanding while the relay is slow
	sendCtx, cancel := context.WithTimeout(ctx, s.sendTimeout)
	defer cancel()

	if err := s.notifier.SendOTP(sendCtx, email, code, s.otpTTL); err != nil {
		return fmt.Errorf("%w: %w", ErrNotificationFailed, err)
	}

	return nil
}

// Register promotes a valid challenge into a user. Once the challenge is
// found it is consumed no matter how account creation ends, so a code can
// never be replayed.
func (s *Service) Register(ctx context.Context, in RegisterInput) (*user.Public, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}
	email := user.NormalizeEmail(in.Email)
	code := strings.TrimSpace(in.Code)

	if !challenge.ValidCode(code) {
		return nil, ErrInvalidOTP
	}

	if _, err := s.challenges.Find(ctx, email, code); err != nil {
		if errors.Is(err, challenge.ErrNotFound) {
			return nil, ErrInvalidOTP
		}
		return nil, unavailable("find challenge", err)
	}

	defer func() {
		if err := s.challenges.Consume(context.WithoutCancel(ctx), email); err != nil {
			s.logger.Warn("failed to consume challenge", "email", email, "error", err)
		}
	}()

	passwordHash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	newUser, err := s.userRepo.Create(ctx, strings.TrimSpace(in.Name), email, passwordHash)
	if err != nil {
		if errors.Is(err, user.ErrDuplicateEmail) {
			return nil, ErrUserExists
		}
		return nil, unavailable("create user", err)
	}

	pub := newUser.Public()
	return &pub, nil
}

// Login checks a password against the stored hash. No session is created.
func (s *Service) Login(ctx context.Context, in LoginInput) (*user.Public, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}

	existingUser, err := s.userRepo.GetByEmail(ctx, user.NormalizeEmail(in.Email))
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, unavailable("find user", err)
	}

	if !s.hasher.Verify(existingUser.PasswordHash, in.Password) {
		return nil, ErrInvalidCredentials
	}

	pub := existingUser.Public()
	return &pub, nil
}
