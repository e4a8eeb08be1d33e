package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/sakif/techblogs/internal/apperror"
	"github.com/sakif/techblogs/internal/media"
	"github.com/sakif/techblogs/internal/model"
	"github.com/sakif/techblogs/internal/repository"
)

// CourseService is the course catalog. Courses are independent of users and
// posts.
type CourseService struct {
	courses repository.CourseRepository
	videos  media.Sink
	logger  *slog.Logger
}

func NewCourseService(courses repository.CourseRepository, videos media.Sink, logger *slog.Logger) *CourseService {
	return &CourseService{courses: courses, videos: videos, logger: logger}
}

func (s *CourseService) Create(ctx context.Context, course *model.Course) (*model.Course, error) {
	if err := validateCourse(course); err != nil {
		return nil, err
	}
	course.ID = ""
	normalizeCourse(course)

	if err := s.courses.CreateCourse(ctx, course); err != nil {
		return nil, fmt.Errorf("service/course: creating course: %w", err)
	}

	s.logger.Info("course created", slog.String("courseID", course.ID), slog.String("title", course.Title))
	return course, nil
}

func (s *CourseService) List(ctx context.Context) ([]model.Course, error) {
	courses, err := s.courses.ListCourses(ctx)
	if err != nil {
		return nil, fmt.Errorf("service/course: listing courses: %w", err)
	}
	return courses, nil
}

func (s *CourseService) Get(ctx context.Context, id string) (*model.Course, error) {
	return s.courses.GetCourseByID(ctx, id)
}

// Update overwrites every field of an existing course.
func (s *CourseService) Update(ctx context.Context, id string, course *model.Course) (*model.Course, error) {
	if err := validateCourse(course); err != nil {
		return nil, err
	}
	course.ID = id
	normalizeCourse(course)

	if err := s.courses.UpdateCourse(ctx, course); err != nil {
		return nil, err
	}

	s.logger.Info("course updated", slog.String("courseID", id))
	return s.courses.GetCourseByID(ctx, id)
}

func (s *CourseService) Delete(ctx context.Context, id string) error {
	if err := s.courses.DeleteCourse(ctx, id); err != nil {
		return err
	}
	s.logger.Info("course deleted", slog.String("courseID", id))
	return nil
}

// UploadVideo stores a course video and returns its stored file name. The
// caller copies the name into a course's VideoURL itself.
func (s *CourseService) UploadVideo(ctx context.Context, f Upload) (string, error) {
	if f.empty() {
		return "", apperror.ValidationFailed("file", "File is empty")
	}

	name, err := saveUpload(ctx, s.videos, f)
	if err != nil {
		return "", err
	}

	s.logger.Info("course video uploaded", slog.String("name", name), slog.Int64("size", f.Size))
	return name, nil
}

func validateCourse(c *model.Course) error {
	if c == nil {
		return apperror.ValidationFailed("body", "course is required")
	}
	if strings.TrimSpace(c.Title) == "" {
		return apperror.ValidationFailed("title", "title is required")
	}
	return nil
}

func normalizeCourse(c *model.Course) {
	c.Title = strings.TrimSpace(c.Title)
	if c.Modules == nil {
		c.Modules = []string{}
	}
	if c.Resources == nil {
		c.Resources = []string{}
	}
	if c.Tags == nil {
		c.Tags = []string{}
	}
	if c.LearningOutcomes == nil {
		c.LearningOutcomes = []string{}
	}
}
