package app

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"academy-platform/internal/adapters/storage/memory"
	"academy-platform/internal/core/domain"
	"academy-platform/internal/notification"
)

type academy struct {
	store         *memory.Store
	bus           *recordingBus
	courses       *CourseService
	lessons       *LessonService
	registrations *RegistrationService
}

func newAcademy() *academy {
	store := memory.NewStore()
	bus := &recordingBus{}
	sink := notification.NewSink(discardLogger())
	return &academy{
		store:         store,
		bus:           bus,
		courses:       NewCourseService(store, sink, discardLogger()),
		lessons:       NewLessonService(store, bus, sink, discardLogger()),
		registrations: NewRegistrationService(store, bus, sink, discardLogger()),
	}
}

// courseWithLessons creates a course and returns its id and lesson ids in creation order.
func (a *academy) courseWithLessons(t *testing.T, names ...string) (uuid.UUID, []uuid.UUID) {
	t.Helper()
	ctx := context.Background()
	courseID, ok, err := a.courses.AddCourse(ctx, AddCourseCommand{Name: "Go", Description: "Idiomatic Go", Price: 100})
	require.NoError(t, err)
	require.True(t, ok)

	var ids []uuid.UUID
	for _, name := range names {
		id, ok, err := a.courses.AddLesson(ctx, AddLessonCommand{CourseID: courseID, Name: name, Subject: "go", TotalHours: 1})
		require.NoError(t, err)
		require.True(t, ok)
		ids = append(ids, id)
	}
	return courseID, ids
}

func (a *academy) status(t *testing.T, courseID, lessonID, studentID uuid.UUID) domain.ProgressStatus {
	t.Helper()
	progress, err := a.lessons.LessonProgress(context.Background(), courseID, studentID)
	require.NoError(t, err)
	for _, p := range progress {
		if p.LessonID == lessonID {
			return p.Status
		}
	}
	t.Fatalf("no progress for lesson %s", lessonID)
	return 0
}

func TestLessonService_ProgressScenario(t *testing.T) {
	// --- Arrange ---
	a := newAcademy()
	ctx := context.Background()
	studentID := uuid.New()
	courseID, lessonIDs := a.courseWithLessons(t, "intro", "concurrency")
	l1 := lessonIDs[0]

	// --- Act & Assert ---
	ok, err := a.registrations.Register(ctx, studentID, courseID)
	require.NoError(t, err)
	require.True(t, ok)

	created, err := a.lessons.CreateProgressByCourse(ctx, courseID, studentID)
	require.NoError(t, err)
	assert.Equal(t, 0, created, "enrollment already created the records")

	progress, err := a.lessons.LessonProgress(ctx, courseID, studentID)
	require.NoError(t, err)
	require.Len(t, progress, 2)
	for _, p := range progress {
		assert.Equal(t, domain.NotStarted, p.Status)
	}

	ok, err = a.lessons.StartLesson(ctx, l1, studentID)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, domain.InProgress, a.status(t, courseID, l1, studentID))

	ok, err = a.lessons.FinishLesson(ctx, l1, studentID)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, domain.Completed, a.status(t, courseID, l1, studentID))

	rctx, collector := notification.WithCollector(ctx)
	ok, err = a.lessons.FinishLesson(rctx, l1, studentID)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, []string{MsgLessonNotInProgress}, collector.Messages())
	assert.Equal(t, domain.Completed, a.status(t, courseID, l1, studentID))

	assert.Equal(t, []string{domain.TopicLessonStarted, domain.TopicLessonFinished}, a.bus.Topics())
}

func TestLessonService_CreateProgressByCourseIsIdempotent(t *testing.T) {
	a := newAcademy()
	ctx := context.Background()
	studentID := uuid.New()
	courseID, _ := a.courseWithLessons(t, "intro", "concurrency")
	_, err := a.registrations.Register(ctx, studentID, courseID)
	require.NoError(t, err)

	// A lesson added after enrollment has no record yet.
	_, ok, err := a.courses.AddLesson(ctx, AddLessonCommand{CourseID: courseID, Name: "generics", Subject: "go", TotalHours: 1})
	require.NoError(t, err)
	require.True(t, ok)

	created, err := a.lessons.CreateProgressByCourse(ctx, courseID, studentID)
	require.NoError(t, err)
	assert.Equal(t, 1, created)

	created, err = a.lessons.CreateProgressByCourse(ctx, courseID, studentID)
	require.NoError(t, err)
	assert.Equal(t, 0, created)

	progress, err := a.lessons.LessonProgress(ctx, courseID, studentID)
	require.NoError(t, err)
	assert.Len(t, progress, 3)
}

func TestLessonService_CreateProgressByCourseRequiresRegistration(t *testing.T) {
	a := newAcademy()
	ctx := context.Background()
	studentID := uuid.New()
	courseID, lessonIDs := a.courseWithLessons(t, "intro")

	rctx, collector := notification.WithCollector(ctx)
	created, err := a.lessons.CreateProgressByCourse(rctx, courseID, studentID)

	require.NoError(t, err)
	assert.Zero(t, created)
	assert.Equal(t, []string{MsgNotRegisteredInCourse}, collector.Messages())
	progress, err := a.lessons.LessonProgress(ctx, courseID, studentID)
	require.NoError(t, err)
	assert.Empty(t, progress)

	ok, err := a.lessons.StartLesson(ctx, lessonIDs[0], studentID)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestLessonService_FinishWhileNotStartedIsRejected(t *testing.T) {
	a := newAcademy()
	ctx := context.Background()
	studentID := uuid.New()
	courseID, lessonIDs := a.courseWithLessons(t, "intro")
	_, err := a.registrations.Register(ctx, studentID, courseID)
	require.NoError(t, err)

	rctx, collector := notification.WithCollector(ctx)
	ok, err := a.lessons.FinishLesson(rctx, lessonIDs[0], studentID)

	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, []string{MsgLessonNotInProgress}, collector.Messages())
	assert.Equal(t, domain.NotStarted, a.status(t, courseID, lessonIDs[0], studentID))
	assert.Empty(t, a.bus.Topics())
}

func TestLessonService_StartWithoutEnrollmentHasNoEffect(t *testing.T) {
	a := newAcademy()
	ctx := context.Background()
	courseID, lessonIDs := a.courseWithLessons(t, "intro")
	studentID := uuid.New()

	rctx, collector := notification.WithCollector(ctx)
	ok, err := a.lessons.StartLesson(rctx, lessonIDs[0], studentID)

	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, []string{MsgNotEnrolledInLesson}, collector.Messages())
	progress, err := a.lessons.LessonProgress(ctx, courseID, studentID)
	require.NoError(t, err)
	assert.Empty(t, progress)
	assert.Empty(t, a.bus.Topics())
}

func TestLessonService_StartTwiceIsRejected(t *testing.T) {
	a := newAcademy()
	ctx := context.Background()
	studentID := uuid.New()
	courseID, lessonIDs := a.courseWithLessons(t, "intro")
	_, err := a.registrations.Register(ctx, studentID, courseID)
	require.NoError(t, err)

	ok, err := a.lessons.StartLesson(ctx, lessonIDs[0], studentID)
	require.NoError(t, err)
	require.True(t, ok)

	rctx, collector := notification.WithCollector(ctx)
	ok, err = a.lessons.StartLesson(rctx, lessonIDs[0], studentID)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, []string{MsgLessonAlreadyStarted}, collector.Messages())
}

func TestLessonService_FinishRequiresRegistration(t *testing.T) {
	a := newAcademy()
	ctx := context.Background()
	studentID := uuid.New()
	courseID, lessonIDs := a.courseWithLessons(t, "intro")

	// Progress left without a registration.
	uow := a.store.Begin()
	uow.Progress().Add(domain.NewProgressLesson(lessonIDs[0], studentID, time.Now()))
	require.NoError(t, uow.Commit(ctx))
	ok, err := a.lessons.StartLesson(ctx, lessonIDs[0], studentID)
	require.NoError(t, err)
	require.True(t, ok)

	rctx, collector := notification.WithCollector(ctx)
	ok, err = a.lessons.FinishLesson(rctx, lessonIDs[0], studentID)

	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, []string{MsgNotRegisteredInCourse}, collector.Messages())
	assert.Equal(t, domain.InProgress, a.status(t, courseID, lessonIDs[0], studentID))
}

func TestLessonService_StorageFailureIsReturned(t *testing.T) {
	a := newAcademy()
	ctx := context.Background()
	studentID := uuid.New()
	courseID, lessonIDs := a.courseWithLessons(t, "intro")
	_, err := a.registrations.Register(ctx, studentID, courseID)
	require.NoError(t, err)

	a.store.FailCommits(assert.AnError)
	ok, err := a.lessons.StartLesson(ctx, lessonIDs[0], studentID)

	assert.False(t, ok)
	assert.ErrorIs(t, err, domain.ErrStorageUnavailable)
	a.store.FailCommits(nil)
	assert.Equal(t, domain.NotStarted, a.status(t, courseID, lessonIDs[0], studentID))
}

func TestLessonService_ClockStampsTransitions(t *testing.T) {
	a := newAcademy()
	ctx := context.Background()
	at := time.Date(2026, time.October, 15, 9, 30, 0, 0, time.UTC)
	a.lessons.now = func() time.Time { return at }
	studentID := uuid.New()
	courseID, lessonIDs := a.courseWithLessons(t, "intro")
	_, err := a.registrations.Register(ctx, studentID, courseID)
	require.NoError(t, err)

	_, err = a.lessons.StartLesson(ctx, lessonIDs[0], studentID)
	require.NoError(t, err)

	progress, err := a.lessons.LessonProgress(ctx, courseID, studentID)
	require.NoError(t, err)
	require.Len(t, progress, 1)
	assert.Equal(t, at, progress[0].UpdatedAt)
}
