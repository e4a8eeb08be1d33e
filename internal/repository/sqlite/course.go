package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/rs/xid"
	"github.com/sakif/techblogs/internal/apperror"
	"github.com/sakif/techblogs/internal/model"
	"github.com/sakif/techblogs/internal/repository"
)

var _ repository.CourseRepository = (*DB)(nil)

const courseColumns = `id, title, description, video_url, modules, instructor_name, instructor_bio,
	resources, tags, duration, learning_outcomes, created_at, updated_at`

// courseLists holds the JSON-encoded list columns of a course row.
type courseLists struct {
	modules, resources, tags, outcomes string
}

func encodeCourseLists(c *model.Course) (courseLists, error) {
	var (
		l   courseLists
		err error
	)
	if l.modules, err = encodeJSON(c.Modules); err != nil {
		return l, fmt.Errorf("sqlite: encoding modules: %w", err)
	}
	if l.resources, err = encodeJSON(c.Resources); err != nil {
		return l, fmt.Errorf("sqlite: encoding resources: %w", err)
	}
	if l.tags, err = encodeJSON(c.Tags); err != nil {
		return l, fmt.Errorf("sqlite: encoding tags: %w", err)
	}
	if l.outcomes, err = encodeJSON(c.LearningOutcomes); err != nil {
		return l, fmt.Errorf("sqlite: encoding learning outcomes: %w", err)
	}
	return l, nil
}

func (db *DB) CreateCourse(ctx context.Context, c *model.Course) error {
	c.ID = xid.New().String()
	now := time.Now().UTC()
	c.CreatedAt = now
	c.UpdatedAt = now

	l, err := encodeCourseLists(c)
	if err != nil {
		return err
	}

	_, err = db.conn.ExecContext(ctx,
		`INSERT INTO courses (`+courseColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.Title, c.Description, c.VideoURL, l.modules, c.InstructorName, c.InstructorBio,
		l.resources, l.tags, c.Duration, l.outcomes, c.CreatedAt, c.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("sqlite: creating course: %w", err)
	}
	return nil
}

func (db *DB) GetCourseByID(ctx context.Context, id string) (*model.Course, error) {
	row := db.conn.QueryRowContext(ctx, `SELECT `+courseColumns+` FROM courses WHERE id = ?`, id)
	c, err := scanCourse(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("course", id)
		}
		return nil, fmt.Errorf("sqlite: getting course %s: %w", id, err)
	}
	return c, nil
}

func (db *DB) ListCourses(ctx context.Context) ([]model.Course, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT `+courseColumns+` FROM courses ORDER BY created_at ASC, rowid ASC`)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing courses: %w", err)
	}
	defer rows.Close()

	courses := []model.Course{}
	for rows.Next() {
		c, err := scanCourse(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlite: scanning course row: %w", err)
		}
		courses = append(courses, *c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating courses: %w", err)
	}
	return courses, nil
}

// UpdateCourse replaces the whole record. created_at is kept.
func (db *DB) UpdateCourse(ctx context.Context, c *model.Course) error {
	c.UpdatedAt = time.Now().UTC()

	l, err := encodeCourseLists(c)
	if err != nil {
		return err
	}

	result, err := db.conn.ExecContext(ctx,
		`UPDATE courses
		 SET title = ?, description = ?, video_url = ?, modules = ?, instructor_name = ?,
		     instructor_bio = ?, resources = ?, tags = ?, duration = ?, learning_outcomes = ?,
		     updated_at = ?
		 WHERE id = ?`,
		c.Title, c.Description, c.VideoURL, l.modules, c.InstructorName,
		c.InstructorBio, l.resources, l.tags, c.Duration, l.outcomes,
		c.UpdatedAt, c.ID,
	)
	if err != nil {
		return fmt.Errorf("sqlite: updating course %s: %w", c.ID, err)
	}

	n, err := rowsAffected(result)
	if err != nil {
		return err
	}
	if n == 0 {
		return apperror.NotFound("course", c.ID)
	}
	return nil
}

func (db *DB) DeleteCourse(ctx context.Context, id string) error {
	result, err := db.conn.ExecContext(ctx, `DELETE FROM courses WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("sqlite: deleting course %s: %w", id, err)
	}

	n, err := rowsAffected(result)
	if err != nil {
		return err
	}
	if n == 0 {
		return apperror.NotFound("course", id)
	}
	return nil
}

func scanCourse(s scanner) (*model.Course, error) {
	var (
		out model.Course
		l   courseLists
	)
	if err := s.Scan(
		&out.ID, &out.Title, &out.Description, &out.VideoURL, &l.modules,
		&out.InstructorName, &out.InstructorBio, &l.resources, &l.tags,
		&out.Duration, &l.outcomes, &out.CreatedAt, &out.UpdatedAt,
	); err != nil {
		return nil, err
	}

	var err error
	if out.Modules, err = decodeJSON[string](l.modules); err != nil {
		return nil, fmt.Errorf("decoding modules: %w", err)
	}
	if out.Resources, err = decodeJSON[string](l.resources); err != nil {
		return nil, fmt.Errorf("decoding resources: %w", err)
	}
	if out.Tags, err = decodeJSON[string](l.tags); err != nil {
		return nil, fmt.Errorf("decoding tags: %w", err)
	}
	if out.LearningOutcomes, err = decodeJSON[string](l.outcomes); err != nil {
		return nil, fmt.Errorf("decoding learning outcomes: %w", err)
	}
	return &out, nil
}
