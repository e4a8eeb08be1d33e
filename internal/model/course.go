package model

import "time"

// Course is a standalone catalog entry with no relation to users or posts.
type Course struct {
	ID               string    `json:"id"`
	Title            string    `json:"title"`
	Description      string    `json:"description"`
	VideoURL         string    `json:"videoUrl"`
	Modules          []string  `json:"modules"`
	InstructorName   string    `json:"instructorName"`
	InstructorBio    string    `json:"instructorBio"`
	Resources        []string  `json:"resources"`
	Tags             []string  `json:"tags"`
	Duration         string    `json:"duration"`
	LearningOutcomes []string  `json:"learningOutcomes"`
	CreatedAt        time.Time `json:"createdAt"`
	UpdatedAt        time.Time `json:"updatedAt"`
}
