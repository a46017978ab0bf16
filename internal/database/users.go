package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"primetrade/internal/apperr"
	"primetrade/internal/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

var errUserNotFound = apperr.NotFound("User not found")

// UserStore persists user records in MongoDB.
type UserStore struct {
	col *mongo.Collection
	now func() time.Time
}

func NewUserStore(col *mongo.Collection) *UserStore {
	return &UserStore{col: col, now: func() time.Time { return time.Now().UTC() }}
}

// Insert stores a new user and fills in its ID and timestamps.
func (s *UserStore) Insert(ctx context.Context, u *models.User) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	now := s.now()
	u.CreatedAt, u.UpdatedAt = now, now
	res, err := s.col.InsertOne(ctx, u)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return apperr.Conflict("Email already registered")
		}
		return fmt.Errorf("insert user: %w", err)
	}
	if id, ok := res.InsertedID.(primitive.ObjectID); ok {
		u.ID = id
	}
	return nil
}

// FindByEmail looks up a user by normalised email.
func (s *UserStore) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	return s.findOne(ctx, bson.M{"email": email})
}

// FindByID looks up a user by hex object id.
func (s *UserStore) FindByID(ctx context.Context, id string) (*models.User, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, errUserNotFound
	}
	return s.findOne(ctx, bson.M{"_id": oid})
}

func (s *UserStore) findOne(ctx context.Context, filter bson.M) (*models.User, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	var user models.User
	err := s.col.FindOne(ctx, filter).Decode(&user)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, errUserNotFound
		}
		return nil, fmt.Errorf("find user: %w", err)
	}
	return &user, nil
}

// SetOTP stores a freshly issued code, overwriting any previous one.
func (s *UserStore) SetOTP(ctx context.Context, id primitive.ObjectID, code string, expiresAt time.Time) error {
	return s.updateByID(ctx, id, bson.M{
		"$set": bson.M{
			"otpCode":      code,
			"otpExpiresAt": expiresAt,
			"updatedAt":    s.now(),
		},
	})
}

// MarkVerified flags the account verified and consumes the stored code.
func (s *UserStore) MarkVerified(ctx context.Context, id primitive.ObjectID) error {
	return s.updateByID(ctx, id, bson.M{
		"$set": bson.M{
			"isVerified": true,
			"updatedAt":  s.now(),
		},
		"$unset": bson.M{
			"otpCode":      "",
			"otpExpiresAt": "",
		},
	})
}

// UpdateProfile writes the mutable profile fields of u. OTP fields are
// written as a pair: both set, or both removed.
func (s *UserStore) UpdateProfile(ctx context.Context, u *models.User) error {
	u.UpdatedAt = s.now()
	set := bson.M{
		"name":       u.Name,
		"mobile":     u.Mobile,
		"dob":        u.DOB,
		"gender":     u.Gender,
		"password":   u.PasswordHash,
		"isVerified": u.IsVerified,
		"updatedAt":  u.UpdatedAt,
	}
	update := bson.M{"$set": set}
	if u.HasPendingOTP() {
		set["otpCode"] = *u.OTPCode
		set["otpExpiresAt"] = *u.OTPExpiresAt
	} else {
		update["$unset"] = bson.M{"otpCode": "", "otpExpiresAt": ""}
	}
	return s.updateByID(ctx, u.ID, update)
}

func (s *UserStore) updateByID(ctx context.Context, id primitive.ObjectID, update bson.M) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	res, err := s.col.UpdateOne(ctx, bson.M{"_id": id}, update)
	if err != nil {
		return fmt.Errorf("update user: %w", err)
	}
	if res.MatchedCount == 0 {
		return errUserNotFound
	}
	return nil
}
