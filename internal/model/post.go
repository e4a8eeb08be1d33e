package model

import "time"

// MaxPostMedia is the most media entries a post may carry.
const MaxPostMedia = 3

// MediaType tags an attached file as an image or a video.
type MediaType string

const (
	MediaImage MediaType = "image"
	MediaVideo MediaType = "video"
)

// Media is one file attached to a post.
type Media struct {
	URL  string    `json:"url"`
	Type MediaType `json:"type"`
}

// Post is a blog/social post. UserName and UserProfilePic are copied from the
// author at creation time and are not refreshed on later profile edits.
// Comments holds the IDs of the post's comments, maintained by the comment
// service.
type Post struct {
	ID             string    `json:"id"`
	UserID         string    `json:"userId"`
	UserName       string    `json:"userName"`
	UserProfilePic string    `json:"userProfilePic"`
	Description    string    `json:"description"`
	Media          []Media   `json:"media"`
	Comments       []string  `json:"comments"`
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

// AddComment appends a comment ID if it is not already listed.
func (p *Post) AddComment(commentID string) {
	if !containsID(p.Comments, commentID) {
		p.Comments = append(p.Comments, commentID)
	}
}

// RemoveComment drops a comment ID from the post's list.
func (p *Post) RemoveComment(commentID string) {
	p.Comments = removeID(p.Comments, commentID)
}

// HasComment reports whether commentID is listed on the post.
func (p *Post) HasComment(commentID string) bool {
	return containsID(p.Comments, commentID)
}
