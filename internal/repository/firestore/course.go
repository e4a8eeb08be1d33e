package firestore

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/rs/xid"

	"github.com/sakif/techblogs/internal/apperror"
	"github.com/sakif/techblogs/internal/model"
)

type courseDoc struct {
	ID               string    `firestore:"id"`
	Title            string    `firestore:"title"`
	Description      string    `firestore:"description"`
	VideoURL         string    `firestore:"videoUrl"`
	Modules          []string  `firestore:"modules"`
	InstructorName   string    `firestore:"instructorName"`
	InstructorBio    string    `firestore:"instructorBio"`
	Resources        []string  `firestore:"resources"`
	Tags             []string  `firestore:"tags"`
	Duration         string    `firestore:"duration"`
	LearningOutcomes []string  `firestore:"learningOutcomes"`
	CreatedAt        time.Time `firestore:"createdAt"`
	UpdatedAt        time.Time `firestore:"updatedAt"`
}

func toCourseDoc(c *model.Course) courseDoc {
	d := courseDoc(*c)
	d.Modules = orEmpty(d.Modules)
	d.Resources = orEmpty(d.Resources)
	d.Tags = orEmpty(d.Tags)
	d.LearningOutcomes = orEmpty(d.LearningOutcomes)
	return d
}

func (d courseDoc) model() model.Course {
	c := model.Course(d)
	c.Modules = orEmpty(c.Modules)
	c.Resources = orEmpty(c.Resources)
	c.Tags = orEmpty(c.Tags)
	c.LearningOutcomes = orEmpty(c.LearningOutcomes)
	return c
}

func (s *Store) CreateCourse(ctx context.Context, c *model.Course) error {
	c.ID = xid.New().String()
	now := time.Now().UTC()
	c.CreatedAt = now
	c.UpdatedAt = now

	if _, err := s.col(coursesCollection).Doc(c.ID).Create(ctx, toCourseDoc(c)); err != nil {
		return fmt.Errorf("firestore: creating course: %w", err)
	}
	return nil
}

func (s *Store) GetCourseByID(ctx context.Context, id string) (*model.Course, error) {
	snap, err := s.col(coursesCollection).Doc(id).Get(ctx)
	if err != nil {
		if isNotFound(err) {
			return nil, apperror.NotFound("course", id)
		}
		return nil, fmt.Errorf("firestore: getting course %s: %w", id, err)
	}

	var d courseDoc
	if err := snap.DataTo(&d); err != nil {
		return nil, fmt.Errorf("firestore: decoding course %s: %w", id, err)
	}
	c := d.model()
	return &c, nil
}

func (s *Store) ListCourses(ctx context.Context) ([]model.Course, error) {
	docs, err := collect[courseDoc](s.col(coursesCollection).OrderBy("createdAt", firestore.Asc).Documents(ctx))
	if err != nil {
		return nil, fmt.Errorf("firestore: listing courses: %w", err)
	}
	courses := make([]model.Course, 0, len(docs))
	for _, d := range docs {
		courses = append(courses, d.model())
	}
	return courses, nil
}

// UpdateCourse replaces the whole document except createdAt. A missing
// course reports NotFound.
func (s *Store) UpdateCourse(ctx context.Context, c *model.Course) error {
	c.UpdatedAt = time.Now().UTC()

	ref := s.col(coursesCollection).Doc(c.ID)
	err := s.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		snap, err := tx.Get(ref)
		if err != nil {
			return err
		}
		var existing courseDoc
		if err := snap.DataTo(&existing); err != nil {
			return err
		}
		c.CreatedAt = existing.CreatedAt
		return tx.Set(ref, toCourseDoc(c))
	})
	if err != nil {
		if isNotFound(err) {
			return apperror.NotFound("course", c.ID)
		}
		return fmt.Errorf("firestore: updating course %s: %w", c.ID, err)
	}
	return nil
}

func (s *Store) DeleteCourse(ctx context.Context, id string) error {
	return s.deleteDoc(ctx, coursesCollection, "course", id)
}
