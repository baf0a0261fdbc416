package model

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Roles accepted on a user record. The role is stored for clients; the API
// itself does not enforce it.
const (
	RoleAdmin = "admin"
	RoleUser  = "user"
	RoleGuest = "guest"
)

// User is a document in the `users` collection. Salt and Hash hold the
// PBKDF2 credential and never leave the server: they are hidden from JSON
// and projected out of every read.
//
// Fields:
//
//	ID        – document id.
//	Username  – unique, lowercased, alphanumeric.
//	Email     – unique, lowercased.
//	Role      – admin, user or guest.
//	Salt/Hash – encoded PBKDF2 salt and derived key.
type User struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"_id"`
	Username  string             `bson:"username" json:"username"`
	Email     string             `bson:"email" json:"email"`
	Role      string             `bson:"role" json:"role"`
	FirstName string             `bson:"firstname,omitempty" json:"firstname,omitempty"`
	LastName  string             `bson:"lastname,omitempty" json:"lastname,omitempty"`
	Salt      string             `bson:"salt" json:"-"`
	Hash      string             `bson:"hash" json:"-"`
	CreatedAt time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt time.Time          `bson:"updatedAt" json:"updatedAt"`
}

// RefreshToken is a document in the `refreshtokens` collection. There is at
// most one per username.
type RefreshToken struct {
	ID           primitive.ObjectID `bson:"_id,omitempty" json:"_id"`
	Username     string             `bson:"username" json:"username"`
	RefreshToken string             `bson:"refreshToken" json:"refreshToken"`
	CreatedAt    time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt    time.Time          `bson:"updatedAt" json:"updatedAt"`
}

// UserSelector picks a single user by exactly one of its unique keys.
type UserSelector struct {
	ID       primitive.ObjectID
	Username string
	Email    string
}

// IsZero reports whether no key is set.
func (s UserSelector) IsZero() bool {
	return s.ID.IsZero() && s.Username == "" && s.Email == ""
}

// UserFilter lists users by exact match on the non-empty fields.
type UserFilter struct {
	Role      string
	FirstName string
	LastName  string
}
