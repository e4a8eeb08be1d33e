package model

import "time"

// GuestUserID is the author ID the frontend sends for signed-out commenters.
const GuestUserID = "guest"

// Comment is a reply on a post. UserName is captured when the comment is
// created.
type Comment struct {
	ID        string    `json:"id"`
	PostID    string    `json:"postId"`
	UserID    string    `json:"userId"`
	UserName  string    `json:"userName"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}
