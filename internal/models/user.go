package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Gender is the self-reported gender on a profile.
type Gender string

const (
	GenderMale   Gender = "Male"
	GenderFemale Gender = "Female"
	GenderOther  Gender = "Other"
)

// Valid reports whether g is one of the accepted values.
func (g Gender) Valid() bool {
	switch g {
	case GenderMale, GenderFemale, GenderOther:
		return true
	}
	return false
}

// User represents a registered account.
// OTPCode and OTPExpiresAt are either both set or both nil.
type User struct {
	ID           primitive.ObjectID `bson:"_id,omitempty"`
	Name         string             `bson:"name"`
	Email        string             `bson:"email"`
	PasswordHash string             `bson:"password"`
	Mobile       string             `bson:"mobile"`
	DOB          time.Time          `bson:"dob"`
	Gender       Gender             `bson:"gender"`
	IsVerified   bool               `bson:"isVerified"`
	OTPCode      *string            `bson:"otpCode,omitempty"`
	OTPExpiresAt *time.Time         `bson:"otpExpiresAt,omitempty"`
	CreatedAt    time.Time          `bson:"createdAt"`
	UpdatedAt    time.Time          `bson:"updatedAt"`
}

// HasPendingOTP reports whether a code is stored on the record.
func (u *User) HasPendingOTP() bool {
	return u.OTPCode != nil && u.OTPExpiresAt != nil
}

// UserSummary is returned by register and login.
type UserSummary struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Email      string `json:"email"`
	IsVerified bool   `json:"isVerified"`
}

// Summary projects u for register/login responses.
func (u *User) Summary() UserSummary {
	return UserSummary{
		ID:         u.ID.Hex(),
		Name:       u.Name,
		Email:      u.Email,
		IsVerified: u.IsVerified,
	}
}

// Profile is the sanitized view of a user: no password or OTP fields.
type Profile struct {
	ID         string    `json:"_id"`
	Name       string    `json:"name"`
	Email      string    `json:"email"`
	Mobile     string    `json:"mobile"`
	DOB        time.Time `json:"dob"`
	Gender     Gender    `json:"gender"`
	IsVerified bool      `json:"isVerified"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

func (u *User) Profile() Profile {
	return Profile{
		ID:         u.ID.Hex(),
		Name:       u.Name,
		Email:      u.Email,
		Mobile:     u.Mobile,
		DOB:        u.DOB,
		Gender:     u.Gender,
		IsVerified: u.IsVerified,
		CreatedAt:  u.CreatedAt,
		UpdatedAt:  u.UpdatedAt,
	}
}

// ProfileUpdate is the subset echoed back after a profile update.
type ProfileUpdate struct {
	Name   string    `json:"name"`
	Email  string    `json:"email"`
	Mobile string    `json:"mobile"`
	DOB    time.Time `json:"dob"`
	Gender Gender    `json:"gender"`
}

func (u *User) ProfileUpdate() ProfileUpdate {
	return ProfileUpdate{
		Name:   u.Name,
		Email:  u.Email,
		Mobile: u.Mobile,
		DOB:    u.DOB,
		Gender: u.Gender,
	}
}
