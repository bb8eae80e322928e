package app

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"academy-platform/internal/core/domain"
	"academy-platform/internal/notification"
)

func TestCourseService_AddLessonRejectsActiveDuplicate(t *testing.T) {
	// --- Arrange ---
	a := newAcademy()
	ctx := context.Background()
	courseID, lessonIDs := a.courseWithLessons(t, "intro")

	// --- Act ---
	rctx, collector := notification.WithCollector(ctx)
	_, ok, err := a.courses.AddLesson(rctx, AddLessonCommand{CourseID: courseID, Name: "intro", Subject: "go", TotalHours: 2})

	// --- Assert ---
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, []string{MsgDuplicateLesson}, collector.Messages())

	ok, err = a.courses.DeleteLesson(ctx, courseID, lessonIDs[0])
	require.NoError(t, err)
	require.True(t, ok)

	_, ok, err = a.courses.AddLesson(ctx, AddLessonCommand{CourseID: courseID, Name: "intro", Subject: "go", TotalHours: 2})
	require.NoError(t, err)
	assert.True(t, ok)

	course, err := a.courses.GetCourse(ctx, courseID)
	require.NoError(t, err)
	assert.Len(t, course.ActiveLessons(), 1)
	assert.Len(t, course.Lessons(), 2)
}

func TestCourseService_AddCourseValidation(t *testing.T) {
	a := newAcademy()
	rctx, collector := notification.WithCollector(context.Background())

	id, ok, err := a.courses.AddCourse(rctx, AddCourseCommand{Price: 10})

	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, uuid.Nil, id)
	assert.Equal(t, []string{"Name is required"}, collector.Messages())

	courses, err := a.courses.ListCourses(context.Background())
	require.NoError(t, err)
	assert.Empty(t, courses)
}

func TestCourseService_AddLessonToUnknownCourse(t *testing.T) {
	a := newAcademy()
	rctx, collector := notification.WithCollector(context.Background())

	_, ok, err := a.courses.AddLesson(rctx, AddLessonCommand{CourseID: uuid.New(), Name: "intro", Subject: "go", TotalHours: 1})

	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, []string{MsgCourseNotFound}, collector.Messages())
}

func TestCourseService_DeleteUnknownLesson(t *testing.T) {
	a := newAcademy()
	courseID, _ := a.courseWithLessons(t, "intro")
	rctx, collector := notification.WithCollector(context.Background())

	ok, err := a.courses.DeleteLesson(rctx, courseID, uuid.New())

	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, []string{MsgLessonNotFound}, collector.Messages())
}

func TestCourseService_UpdateCourse(t *testing.T) {
	a := newAcademy()
	ctx := context.Background()
	courseID, _ := a.courseWithLessons(t, "intro")

	ok, err := a.courses.UpdateCourse(ctx, UpdateCourseCommand{CourseID: courseID, Name: "Advanced Go", Description: "Runtime", Price: 150})
	require.NoError(t, err)
	require.True(t, ok)

	course, err := a.courses.GetCourse(ctx, courseID)
	require.NoError(t, err)
	assert.Equal(t, "Advanced Go", course.Name)
	assert.Equal(t, "Runtime", course.Description)
	assert.Equal(t, 150.0, course.Price)
	assert.Len(t, course.ActiveLessons(), 1)

	rctx, collector := notification.WithCollector(ctx)
	ok, err = a.courses.UpdateCourse(rctx, UpdateCourseCommand{CourseID: courseID, Price: -1})
	require.NoError(t, err)
	assert.False(t, ok)
	assert.ElementsMatch(t, []string{"Name is required", "Price cannot be negative"}, collector.Messages())

	rctx, collector = notification.WithCollector(ctx)
	ok, err = a.courses.UpdateCourse(rctx, UpdateCourseCommand{CourseID: uuid.New(), Name: "Go"})
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, []string{MsgCourseNotFound}, collector.Messages())
}

func TestCourseService_RemoveCourse(t *testing.T) {
	a := newAcademy()
	ctx := context.Background()
	courseID, lessonIDs := a.courseWithLessons(t, "intro", "maps")
	studentID := uuid.New()
	_, err := a.registrations.Register(ctx, studentID, courseID)
	require.NoError(t, err)

	ok, err := a.courses.RemoveCourse(ctx, courseID)
	require.NoError(t, err)
	require.True(t, ok)

	_, err = a.courses.GetCourse(ctx, courseID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
	courses, err := a.courses.ListCourses(ctx)
	require.NoError(t, err)
	assert.Empty(t, courses)

	// Lessons of a removed course can no longer be started.
	rctx, collector := notification.WithCollector(ctx)
	ok, err = a.lessons.StartLesson(rctx, lessonIDs[0], studentID)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, []string{MsgLessonNotFound}, collector.Messages())

	// Enrollment history is kept.
	regs, err := a.registrations.Registrations(ctx, studentID)
	require.NoError(t, err)
	assert.Len(t, regs, 1)

	rctx, collector = notification.WithCollector(ctx)
	ok, err = a.courses.RemoveCourse(rctx, courseID)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, []string{MsgCourseNotFound}, collector.Messages())
}
