package auth

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"primetrade/internal/apperr"
	"primetrade/internal/logger"
	"primetrade/internal/models"
	"primetrade/internal/otp"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type memStore struct {
	mu    sync.Mutex
	users map[primitive.ObjectID]*models.User
}

func newMemStore() *memStore {
	return &memStore{users: map[primitive.ObjectID]*models.User{}}
}

func (m *memStore) Insert(ctx context.Context, u *models.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.users {
		if existing.Email == u.Email {
			return apperr.Conflict("Email already registered")
		}
	}
	u.ID = primitive.NewObjectID()
	cp := *u
	m.users[u.ID] = &cp
	return nil
}

func (m *memStore) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, apperr.NotFound("User not found")
}

func (m *memStore) FindByID(ctx context.Context, id string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, apperr.NotFound("User not found")
	}
	u, ok := m.users[oid]
	if !ok {
		return nil, apperr.NotFound("User not found")
	}
	cp := *u
	return &cp, nil
}

func (m *memStore) UpdateProfile(ctx context.Context, u *models.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[u.ID]; !ok {
		return apperr.NotFound("User not found")
	}
	cp := *u
	m.users[u.ID] = &cp
	return nil
}

func (m *memStore) SetOTP(ctx context.Context, id primitive.ObjectID, code string, expiresAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return apperr.NotFound("User not found")
	}
	u.OTPCode = &code
	u.OTPExpiresAt = &expiresAt
	return nil
}

func (m *memStore) MarkVerified(ctx context.Context, id primitive.ObjectID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return apperr.NotFound("User not found")
	}
	u.IsVerified = true
	u.OTPCode, u.OTPExpiresAt = nil, nil
	return nil
}

type captureSender struct {
	last map[string]string
	err  error
}

func (c *captureSender) SendOTP(ctx context.Context, toEmail, code string, ttl time.Duration) error {
	if c.err != nil {
		return c.err
	}
	if c.last == nil {
		c.last = map[string]string{}
	}
	c.last[toEmail] = code
	return nil
}

type fixture struct {
	store  *memStore
	sender *captureSender
	codes  *otp.Service
	svc    *Service
}

func newFixture() *fixture {
	store := newMemStore()
	sender := &captureSender{}
	codes := otp.NewService(store, sender, nil, otp.DefaultTTL, logger.Discard())
	return &fixture{
		store:  store,
		sender: sender,
		codes:  codes,
		svc:    NewService(store, codes, NewTokens("test-secret", time.Hour), logger.Discard()),
	}
}

func validRegistration() RegisterRequest {
	return RegisterRequest{
		Name:     "Ann",
		Email:    "A@X.com",
		Password: "old-pass",
		Mobile:   "0123456789",
		DOB:      "1990-04-01",
		Gender:   "Female",
	}
}

func TestRegister_CreatesUnverifiedUserAndIssuesCode(t *testing.T) {
	f := newFixture()

	res, err := f.svc.Register(context.Background(), validRegistration())
	require.NoError(t, err)
	assert.True(t, res.OTPSent)
	assert.Equal(t, "a@x.com", res.User.Email)
	assert.False(t, res.User.IsVerified)

	stored, err := f.store.FindByEmail(context.Background(), "a@x.com")
	require.NoError(t, err)
	assert.NotEqual(t, "old-pass", stored.PasswordHash)
	require.True(t, stored.HasPendingOTP())
	assert.Equal(t, f.sender.last["a@x.com"], *stored.OTPCode)
}

func TestRegister_MissingFields(t *testing.T) {
	f := newFixture()
	req := validRegistration()
	req.Gender = ""

	_, err := f.svc.Register(context.Background(), req)
	assert.ErrorIs(t, err, apperr.ErrValidation)
	assert.Equal(t, "All fields are required", apperr.Message(err))
}

func TestRegister_InvalidGender(t *testing.T) {
	f := newFixture()
	req := validRegistration()
	req.Gender = "unknown"

	_, err := f.svc.Register(context.Background(), req)
	assert.ErrorIs(t, err, apperr.ErrValidation)
}

func TestRegister_MobileMustBeTenDigits(t *testing.T) {
	f := newFixture()
	for _, mobile := range []string{"-123456789", "1234.56789", "12345678901"} {
		req := validRegistration()
		req.Mobile = mobile

		_, err := f.svc.Register(context.Background(), req)
		assert.ErrorIs(t, err, apperr.ErrValidation, mobile)
	}
}

func TestRegister_PasswordTooLong(t *testing.T) {
	f := newFixture()
	req := validRegistration()
	req.Password = strings.Repeat("p", 80)

	_, err := f.svc.Register(context.Background(), req)
	assert.ErrorIs(t, err, apperr.ErrValidation)
	assert.Equal(t, "Password must be at most 72 bytes", apperr.Message(err))

	_, err = f.store.FindByEmail(context.Background(), "a@x.com")
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestRegister_DuplicateEmailIsCaseInsensitive(t *testing.T) {
	f := newFixture()
	_, err := f.svc.Register(context.Background(), validRegistration())
	require.NoError(t, err)

	req := validRegistration()
	req.Email = "a@X.COM"
	_, err = f.svc.Register(context.Background(), req)
	assert.ErrorIs(t, err, apperr.ErrConflict)
}

func TestRegister_DeliveryFailureStillRegisters(t *testing.T) {
	f := newFixture()
	f.sender.err = errors.New("smtp down")

	res, err := f.svc.Register(context.Background(), validRegistration())
	require.NoError(t, err)
	assert.False(t, res.OTPSent)

	stored, err := f.store.FindByEmail(context.Background(), "a@x.com")
	require.NoError(t, err)
	assert.True(t, stored.HasPendingOTP())
}

func TestLogin(t *testing.T) {
	f := newFixture()
	reg, err := f.svc.Register(context.Background(), validRegistration())
	require.NoError(t, err)

	res, err := f.svc.Login(context.Background(), "a@x.com", "old-pass")
	require.NoError(t, err)
	sub, err := f.svc.tokens.Subject(res.Token)
	require.NoError(t, err)
	assert.Equal(t, reg.User.ID, sub)

	_, err = f.svc.Login(context.Background(), "a@x.com", "wrong")
	assert.ErrorIs(t, err, apperr.ErrValidation)

	_, err = f.svc.Login(context.Background(), "ghost@x.com", "old-pass")
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	_, err = f.svc.Login(context.Background(), "", "")
	assert.ErrorIs(t, err, apperr.ErrValidation)
}

func TestMe(t *testing.T) {
	f := newFixture()
	reg, err := f.svc.Register(context.Background(), validRegistration())
	require.NoError(t, err)

	p, err := f.svc.Me(context.Background(), reg.User.ID)
	require.NoError(t, err)
	assert.Equal(t, "Ann", p.Name)
	assert.Equal(t, models.GenderFemale, p.Gender)

	_, err = f.svc.Me(context.Background(), primitive.NewObjectID().Hex())
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestUpdateProfile_FieldsOnly(t *testing.T) {
	f := newFixture()
	_, err := f.svc.Register(context.Background(), validRegistration())
	require.NoError(t, err)

	out, err := f.svc.UpdateProfile(context.Background(), ProfileRequest{Email: "a@x.com", Name: "Annie", Mobile: "9876543210"})
	require.NoError(t, err)
	assert.Equal(t, "Annie", out.Name)
	assert.Equal(t, "9876543210", out.Mobile)

	stored, _ := f.store.FindByEmail(context.Background(), "a@x.com")
	assert.True(t, stored.HasPendingOTP(), "a plain profile edit must not touch the pending code")
	assert.False(t, stored.IsVerified)
}

func TestUpdateProfile_PasswordChange(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	_, err := f.svc.Register(ctx, validRegistration())
	require.NoError(t, err)
	require.NoError(t, f.codes.RequestPasswordChange(ctx, "a@x.com"))
	code := f.sender.last["a@x.com"]

	_, err = f.svc.UpdateProfile(ctx, ProfileRequest{
		Email:       "a@x.com",
		OldPassword: "old-pass",
		NewPassword: "new-pass",
		OTP:         code,
	})
	require.NoError(t, err)

	stored, _ := f.store.FindByEmail(ctx, "a@x.com")
	assert.False(t, stored.HasPendingOTP())
	assert.True(t, stored.IsVerified)

	_, err = f.svc.Login(ctx, "a@x.com", "new-pass")
	assert.NoError(t, err)
	_, err = f.svc.Login(ctx, "a@x.com", "old-pass")
	assert.ErrorIs(t, err, apperr.ErrValidation)
}

func TestUpdateProfile_PasswordChangeRejections(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	_, err := f.svc.Register(ctx, validRegistration())
	require.NoError(t, err)
	code := f.sender.last["a@x.com"]

	_, err = f.svc.UpdateProfile(ctx, ProfileRequest{Email: "a@x.com", NewPassword: "new-pass"})
	assert.Equal(t, "Old password, new password, and OTP are required", apperr.Message(err))

	_, err = f.svc.UpdateProfile(ctx, ProfileRequest{Email: "a@x.com", OldPassword: "nope", NewPassword: "new-pass", OTP: code})
	assert.Equal(t, "Old password is incorrect", apperr.Message(err))

	_, err = f.svc.UpdateProfile(ctx, ProfileRequest{Email: "a@x.com", OldPassword: "old-pass", NewPassword: "new-pass", OTP: "000000"})
	assert.ErrorIs(t, err, otp.ErrMismatch)

	_, err = f.svc.Login(ctx, "a@x.com", "old-pass")
	assert.NoError(t, err, "rejected changes must keep the old password")
}

func TestUpdateProfile_NewPasswordTooLong(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	_, err := f.svc.Register(ctx, validRegistration())
	require.NoError(t, err)
	code := f.sender.last["a@x.com"]

	_, err = f.svc.UpdateProfile(ctx, ProfileRequest{
		Email:       "a@x.com",
		OldPassword: "old-pass",
		NewPassword: strings.Repeat("n", 80),
		OTP:         code,
	})
	assert.ErrorIs(t, err, apperr.ErrValidation)
	assert.Equal(t, "Password must be at most 72 bytes", apperr.Message(err))

	stored, _ := f.store.FindByEmail(ctx, "a@x.com")
	assert.True(t, stored.HasPendingOTP(), "a rejected change must not consume the code")
}

func TestUpdateProfile_InvalidGender(t *testing.T) {
	f := newFixture()
	_, err := f.svc.Register(context.Background(), validRegistration())
	require.NoError(t, err)

	_, err = f.svc.UpdateProfile(context.Background(), ProfileRequest{Email: "a@x.com", Gender: "male"})
	assert.ErrorIs(t, err, apperr.ErrValidation)
	assert.Equal(t, "Invalid gender", apperr.Message(err))
}

func TestUpdateProfile_UnknownUser(t *testing.T) {
	f := newFixture()

	_, err := f.svc.UpdateProfile(context.Background(), ProfileRequest{Email: "ghost@x.com", Name: "x"})
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}
