// ABOUTME: Record types and errors for the table-store adapters
// ABOUTME: Defines Profile, Asset and Liability rows plus common sentinel errors

package store

import (
	"errors"
	"time"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("store: not found")

// ErrNotOwner is returned when a record exists but belongs to another user.
// The table store's own access policy is the real enforcement; this check
// keeps cross-user probing from leaking record contents.
var ErrNotOwner = errors.New("store: record owned by another user")

// Profile is a user's profile row, keyed by username.
type Profile struct {
	UserName      string `dynamodbav:"userName" json:"username"`
	Sub           string `dynamodbav:"sub" json:"sub"`
	Name          string `dynamodbav:"name" json:"name"`
	HeightCM      int    `dynamodbav:"height_cm" json:"height_cm"`
	Gender        string `dynamodbav:"gender" json:"gender"`
	DateOfBirth   string `dynamodbav:"dob" json:"dob"`
	ProfilePicKey string `dynamodbav:"profile_pic_key" json:"profile_pic_key,omitempty"`
	ProfilePicURL string `dynamodbav:"profile_pic_url" json:"profile_pic_url,omitempty"`
	IdentityID    string `dynamodbav:"identity_id" json:"-"`
}

// Asset is one asset row. Monetary values are integer cents; the original
// float representation invited rounding drift.
type Asset struct {
	AssetID    string    `dynamodbav:"asset_id" json:"asset_id"`
	Username   string    `dynamodbav:"username" json:"-"`
	Category   string    `dynamodbav:"category" json:"category"`
	Title      string    `dynamodbav:"title" json:"title"`
	ValueCents int64     `dynamodbav:"value_cents" json:"value_cents"`
	CreatedAt  time.Time `dynamodbav:"created_at" json:"created_at"`
	DocPaths   []string  `dynamodbav:"doc_paths,omitempty" json:"doc_paths,omitempty"`
}

// Liability is one liability row.
type Liability struct {
	LiabilityID string    `dynamodbav:"liability_id" json:"liability_id"`
	Username    string    `dynamodbav:"username" json:"-"`
	Category    string    `dynamodbav:"category" json:"category"`
	Title       string    `dynamodbav:"title" json:"title"`
	ValueCents  int64     `dynamodbav:"value_cents" json:"value_cents"`
	CreatedAt   time.Time `dynamodbav:"created_at" json:"created_at"`
}

// Tables names the three table-store tables.
type Tables struct {
	Profiles    string
	Assets      string
	Liabilities string
}
