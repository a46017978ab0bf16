package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestProfile_ExcludesSecrets(t *testing.T) {
	code := "123456"
	exp := time.Now().Add(time.Minute)
	u := &User{
		ID:           primitive.NewObjectID(),
		Name:         "Ann",
		Email:        "a@x.com",
		PasswordHash: "$2a$10$hash",
		OTPCode:      &code,
		OTPExpiresAt: &exp,
	}

	data, err := json.Marshal(u.Profile())
	require.NoError(t, err)

	body := string(data)
	assert.NotContains(t, body, "hash")
	assert.NotContains(t, body, code)
	assert.NotContains(t, body, "otp")
	assert.Contains(t, body, `"_id":"`+u.ID.Hex()+`"`)
}

func TestHasPendingOTP(t *testing.T) {
	code := "123456"
	exp := time.Now()

	assert.False(t, (&User{}).HasPendingOTP())
	assert.False(t, (&User{OTPCode: &code}).HasPendingOTP())
	assert.True(t, (&User{OTPCode: &code, OTPExpiresAt: &exp}).HasPendingOTP())
}

func TestEnums(t *testing.T) {
	assert.True(t, StatusInProgress.Valid())
	assert.False(t, TaskStatus("Done").Valid())
	assert.True(t, GenderOther.Valid())
	assert.False(t, Gender("male").Valid())
}
