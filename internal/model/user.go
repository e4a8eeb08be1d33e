// Package model defines the data structures used throughout the application.
package model

import "time"

// User is a profile record. Email is the join key for external identity
// providers and is unique across users.
//
// PasswordHash is empty for accounts that only ever signed in through an
// identity provider. It is never serialized to clients.
type User struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	ProfilePic   string    `json:"profilePic"`
	Followers    []string  `json:"followers"`
	Following    []string  `json:"following"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// HasPassword reports whether the user can sign in with email/password.
func (u *User) HasPassword() bool {
	return u.PasswordHash != ""
}

// IsFollowing reports whether targetID is in u's following set.
func (u *User) IsFollowing(targetID string) bool {
	return containsID(u.Following, targetID)
}

func containsID(ids []string, id string) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

// removeID returns ids without any occurrence of id. The input slice is not modified.
func removeID(ids []string, id string) []string {
	out := make([]string, 0, len(ids))
	for _, v := range ids {
		if v != id {
			out = append(out, v)
		}
	}
	return out
}

// AddFollowing and the three helpers below keep both sides of the follow
// graph as sets: adding is idempotent and removal drops every occurrence.
func (u *User) AddFollowing(id string) {
	if !containsID(u.Following, id) {
		u.Following = append(u.Following, id)
	}
}

func (u *User) RemoveFollowing(id string) {
	u.Following = removeID(u.Following, id)
}

func (u *User) AddFollower(id string) {
	if !containsID(u.Followers, id) {
		u.Followers = append(u.Followers, id)
	}
}

func (u *User) RemoveFollower(id string) {
	u.Followers = removeID(u.Followers, id)
}
