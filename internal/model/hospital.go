package model

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Location is the geocoded address of a hospital.
type Location struct {
	HumanAddress  string  `bson:"humanAddress,omitempty" json:"humanAddress,omitempty"`
	Latitude      float64 `bson:"latitude,omitempty" json:"latitude,omitempty"`
	Longitude     float64 `bson:"longitude,omitempty" json:"longitude,omitempty"`
	NeedsRecoding bool    `bson:"needsRecoding" json:"needsRecoding"`
}

// Hospital is a document in the `hospitals` collection. ProviderID is the
// only required field.
type Hospital struct {
	ID                primitive.ObjectID `bson:"_id,omitempty" json:"_id"`
	ProviderID        string             `bson:"providerId" json:"providerId"`
	Name              string             `bson:"name,omitempty" json:"name,omitempty"`
	Address           string             `bson:"address,omitempty" json:"address,omitempty"`
	City              string             `bson:"city,omitempty" json:"city,omitempty"`
	State             string             `bson:"state,omitempty" json:"state,omitempty"`
	ZipCode           string             `bson:"zipCode,omitempty" json:"zipCode,omitempty"`
	County            string             `bson:"county,omitempty" json:"county,omitempty"`
	PhoneNumber       string             `bson:"phoneNumber,omitempty" json:"phoneNumber,omitempty"`
	Type              string             `bson:"type,omitempty" json:"type,omitempty"`
	Ownership         string             `bson:"ownership,omitempty" json:"ownership,omitempty"`
	EmergencyServices bool               `bson:"emergencyServices" json:"emergencyServices"`
	Location          *Location          `bson:"location,omitempty" json:"location,omitempty"`
	CreatedAt         time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt         time.Time          `bson:"updatedAt" json:"updatedAt"`
}

// HospitalFilter selects hospitals by exact match on the non-empty fields.
type HospitalFilter struct {
	ProviderID string
	Name       string
	City       string
	State      string
	ZipCode    string
	County     string
}
