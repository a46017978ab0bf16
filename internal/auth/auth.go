package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"primetrade/internal/apperr"
	"primetrade/internal/models"
	"primetrade/internal/otp"
	"primetrade/internal/util"
)

// UserStore is the credential store used by the account operations.
type UserStore interface {
	Insert(ctx context.Context, u *models.User) error
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	FindByID(ctx context.Context, id string) (*models.User, error)
	UpdateProfile(ctx context.Context, u *models.User) error
}

// CodeIssuer issues and consumes one-time codes.
type CodeIssuer interface {
	Issue(ctx context.Context, user *models.User, reason string) error
	Consume(user *models.User, code string) error
}

// Service implements registration, login and profile management.
type Service struct {
	users  UserStore
	codes  CodeIssuer
	tokens *Tokens
	logger *slog.Logger
}

func NewService(users UserStore, codes CodeIssuer, tokens *Tokens, logger *slog.Logger) *Service {
	return &Service{users: users, codes: codes, tokens: tokens, logger: logger}
}

type RegisterRequest struct {
	Name     string `json:"name" validate:"required"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
	Mobile   string `json:"mobile" validate:"required,len=10,number"`
	DOB      string `json:"dob" validate:"required"`
	Gender   string `json:"gender" validate:"required"`
}

type RegisterResult struct {
	User models.UserSummary
	// OTPSent is false when the code was stored but the email failed;
	// the user can ask for a resend.
	OTPSent bool
}

// Register creates an unverified account and issues its first code.
func (s *Service) Register(ctx context.Context, req RegisterRequest) (*RegisterResult, error) {
	if err := util.Check(req, "All fields are required"); err != nil {
		return nil, err
	}
	if !models.Gender(req.Gender).Valid() {
		return nil, apperr.Validation("Invalid gender")
	}
	dob, err := util.ParseDate(req.DOB)
	if err != nil {
		return nil, apperr.Validation("Invalid dob")
	}
	email := util.NormalizeEmail(req.Email)

	_, err = s.users.FindByEmail(ctx, email)
	if err == nil {
		return nil, apperr.Conflict("Email already registered")
	}
	if !errors.Is(err, apperr.ErrNotFound) {
		return nil, fmt.Errorf("check existing user: %w", err)
	}

	hash, err := HashPassword(req.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	user := &models.User{
		Name:         req.Name,
		Email:        email,
		PasswordHash: hash,
		Mobile:       req.Mobile,
		DOB:          dob,
		Gender:       models.Gender(req.Gender),
	}
	if err := s.users.Insert(ctx, user); err != nil {
		return nil, err
	}
	s.logger.Info("user registered", slog.String("email", email))

	res := &RegisterResult{User: user.Summary(), OTPSent: true}
	if err := s.codes.Issue(ctx, user, otp.ReasonRegister); err != nil {
		if !errors.Is(err, otp.ErrDelivery) {
			return nil, fmt.Errorf("issue code: %w", err)
		}
		res.OTPSent = false
	}
	return res, nil
}

type LoginResult struct {
	Token string
	User  models.UserSummary
}

// Login checks credentials and returns a signed bearer token.
func (s *Service) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	if email == "" || password == "" {
		return nil, apperr.Validation("Email and password required")
	}
	user, err := s.users.FindByEmail(ctx, util.NormalizeEmail(email))
	if err != nil {
		return nil, err
	}
	if !CheckPassword(password, user.PasswordHash) {
		return nil, apperr.Validation("Invalid credentials")
	}
	token, err := s.tokens.Issue(user.ID.Hex())
	if err != nil {
		return nil, fmt.Errorf("sign token: %w", err)
	}
	s.logger.Info("user logged in", slog.String("email", user.Email))
	return &LoginResult{Token: token, User: user.Summary()}, nil
}

// Me returns the sanitized profile of the token's subject.
func (s *Service) Me(ctx context.Context, userID string) (*models.Profile, error) {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	p := user.Profile()
	return &p, nil
}

// ProfileRequest updates profile fields by email. Setting either password
// field starts a password change, which needs all of OldPassword,
// NewPassword and OTP.
type ProfileRequest struct {
	Email       string `json:"email" validate:"required,email"`
	Name        string `json:"name"`
	Mobile      string `json:"mobile" validate:"omitempty,len=10,number"`
	DOB         string `json:"dob"`
	Gender      string `json:"gender"`
	OldPassword string `json:"oldPassword"`
	NewPassword string `json:"newPassword"`
	OTP         string `json:"otp"`
}

func (r ProfileRequest) changesPassword() bool {
	return r.OldPassword != "" || r.NewPassword != ""
}

// UpdateProfile applies the non-empty fields of req. A password change is
// applied only when the old password matches and the code is valid; the
// code is consumed and the account marked verified in the same write.
func (s *Service) UpdateProfile(ctx context.Context, req ProfileRequest) (*models.ProfileUpdate, error) {
	if err := util.Check(req, "Email is required"); err != nil {
		return nil, err
	}
	user, err := s.users.FindByEmail(ctx, util.NormalizeEmail(req.Email))
	if err != nil {
		return nil, err
	}

	if req.Name != "" {
		user.Name = req.Name
	}
	if req.Mobile != "" {
		user.Mobile = req.Mobile
	}
	if req.DOB != "" {
		dob, err := util.ParseDate(req.DOB)
		if err != nil {
			return nil, apperr.Validation("Invalid dob")
		}
		user.DOB = dob
	}
	if req.Gender != "" {
		gender := models.Gender(req.Gender)
		if !gender.Valid() {
			return nil, apperr.Validation("Invalid gender")
		}
		user.Gender = gender
	}

	if req.changesPassword() {
		if req.OldPassword == "" || req.NewPassword == "" || req.OTP == "" {
			return nil, apperr.Validation("Old password, new password, and OTP are required")
		}
		if !CheckPassword(req.OldPassword, user.PasswordHash) {
			return nil, apperr.Validation("Old password is incorrect")
		}
		if err := s.codes.Consume(user, req.OTP); err != nil {
			return nil, err
		}
		hash, err := HashPassword(req.NewPassword)
		if err != nil {
			return nil, fmt.Errorf("hash password: %w", err)
		}
		user.PasswordHash = hash
		user.IsVerified = true
	}

	if err := s.users.UpdateProfile(ctx, user); err != nil {
		return nil, err
	}
	if req.changesPassword() {
		s.logger.Info("password changed", slog.String("email", user.Email))
	}
	out := user.ProfileUpdate()
	return &out, nil
}
