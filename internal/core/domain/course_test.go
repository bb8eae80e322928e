package domain

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCourse_AddLesson(t *testing.T) {
	course := NewCourse(uuid.New(), "Go", "", 10, nil)

	assert.ErrorIs(t, course.AddLesson(nil), ErrNilLesson)

	intro := &Lesson{ID: uuid.New(), Name: "intro"}
	require.NoError(t, course.AddLesson(intro))
	assert.Equal(t, course.ID, intro.CourseID)

	assert.ErrorIs(t, course.AddLesson(&Lesson{ID: uuid.New(), Name: "intro"}), ErrDuplicateLesson)
	// Names are compared exactly.
	assert.NoError(t, course.AddLesson(&Lesson{ID: uuid.New(), Name: "Intro"}))
}

func TestCourse_AddLessonAfterSoftDelete(t *testing.T) {
	course := NewCourse(uuid.New(), "Go", "", 10, nil)
	intro := &Lesson{ID: uuid.New(), Name: "intro"}
	require.NoError(t, course.AddLesson(intro))

	removed, err := course.RemoveLesson(intro.ID)
	require.NoError(t, err)
	assert.True(t, removed.Deleted)

	require.NoError(t, course.AddLesson(&Lesson{ID: uuid.New(), Name: "intro"}))
	assert.Len(t, course.Lessons(), 2)
	assert.Len(t, course.ActiveLessons(), 1)

	_, err = course.RemoveLesson(intro.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCourse_LessonsIsACopy(t *testing.T) {
	course := NewCourse(uuid.New(), "Go", "", 10, []Lesson{{ID: uuid.New(), Name: "intro"}})

	lessons := course.Lessons()
	lessons[0].Name = "changed"

	assert.Equal(t, "intro", course.Lessons()[0].Name)
}

func TestCourse_RemoveHidesLessons(t *testing.T) {
	course := NewCourse(uuid.New(), "Go", "", 10, nil)
	require.NoError(t, course.AddLesson(&Lesson{ID: uuid.New(), Name: "intro"}))
	require.NoError(t, course.AddLesson(&Lesson{ID: uuid.New(), Name: "maps"}))

	course.Remove()

	assert.True(t, course.Deleted)
	assert.Empty(t, course.ActiveLessons())
	assert.Len(t, course.Lessons(), 2)
}

func TestProgressLesson_TransitionsOnlyMoveForward(t *testing.T) {
	now := time.Now()
	p := NewProgressLesson(uuid.New(), uuid.New(), now)

	assert.False(t, p.Finish(now), "cannot finish before starting")
	assert.Equal(t, NotStarted, p.Status)

	assert.True(t, p.Start(now))
	assert.False(t, p.Start(now))
	assert.Equal(t, InProgress, p.Status)

	assert.True(t, p.Finish(now))
	assert.False(t, p.Finish(now))
	assert.False(t, p.Start(now))
	assert.Equal(t, Completed, p.Status)
}

func TestCertificationCode(t *testing.T) {
	courseID := uuid.MustParse("11111111-2222-3333-4444-555555555555")
	studentID := uuid.MustParse("aaaaaaaa-bbbb-cccc-dddd-eeeeeeeeeeee")
	at := time.Unix(0, 1700000000000000000)

	code := CertificationCode(courseID, studentID, at)

	assert.Equal(t, "CERT-aaaaaaaabbbbccccddddeeeeeeeeeeee-11111111222233334444555555555555-1700000000000000000", code)
}
