package models

import "time"

// FavoriteKey is one entry in a user's favorites list: a reference to a
// secret key record plus the time it was added.
type FavoriteKey struct {
	SkID    string `json:"skId"`
	AddedAt string `json:"addedAt"`
}

// User represents a registered user of the API.
// The favorites list is stored as a JSON column on the user row so it keeps
// its append order; entries are deduplicated by SkID on insert.
type User struct {
	ID        string        `json:"id" gorm:"primaryKey;type:varchar(36)" validate:"omitempty,uuid"`
	Name      string        `json:"name" gorm:"type:varchar(100)" validate:"required,max=100"`
	Surname   string        `json:"surname" gorm:"type:varchar(100)" validate:"omitempty,max=100"`
	Username  string        `json:"username" gorm:"uniqueIndex;type:varchar(100)" validate:"required,max=100"`
	Password  string        `json:"-" gorm:"type:varchar(255)"` // bcrypt hash, never serialized
	IsAdmin   bool          `json:"isAdmin"`
	CreatedAt string        `json:"createdAt" gorm:"type:varchar(35)"`
	FavSK     []FavoriteKey `json:"favSK" gorm:"serializer:json"`
}

// HasFavorite reports whether the given secret key id is already present in
// the user's favorites list.
func (u *User) HasFavorite(skID string) bool {
	for _, fav := range u.FavSK {
		if fav.SkID == skID {
			return true
		}
	}
	return false
}

// Timestamp returns the current time in the string format stored on records.
// RFC3339 sorts lexically, which the ordered user listing relies on.
func Timestamp() string {
	return time.Now().UTC().Format(time.RFC3339)
}
