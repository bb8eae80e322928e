package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"academy-platform/internal/core/domain"
	"academy-platform/internal/core/ports"
	"academy-platform/internal/observability"
)

const (
	MsgLessonNotFound        = "Lesson not found"
	MsgCourseNotFound        = "Course not found"
	MsgNotEnrolledInLesson   = "Student is not enrolled in this lesson"
	MsgNotRegisteredInCourse = "Student is not registered in this course"
	MsgLessonAlreadyStarted  = "Lesson has already been started"
	MsgLessonNotInProgress   = "Lesson must be in progress to be finished"
)

// LessonService drives the per (lesson, student) progress state machine.
type LessonService struct {
	store    ports.Store
	events   ports.EventBus
	notifier ports.NotificationSink
	logger   *slog.Logger
	now      func() time.Time
}

func NewLessonService(store ports.Store, events ports.EventBus, notifier ports.NotificationSink, logger *slog.Logger) *LessonService {
	return &LessonService{
		store:    store,
		events:   events,
		notifier: notifier,
		logger:   logger,
		now:      time.Now,
	}
}

// StartLesson moves an enrolled student's lesson from NotStarted to InProgress.
func (s *LessonService) StartLesson(ctx context.Context, lessonID, studentID uuid.UUID) (bool, error) {
	if !s.valid(ctx, StartLessonCommand{LessonID: lessonID, StudentID: studentID}.Validate()) {
		return false, nil
	}

	uow := s.store.Begin()
	lesson, ok, err := s.lesson(ctx, uow, lessonID)
	if err != nil || !ok {
		return false, err
	}

	progress, err := uow.Progress().Get(ctx, lessonID, studentID)
	if errors.Is(err, domain.ErrNotFound) {
		return s.reject(ctx, "start", MsgNotEnrolledInLesson), nil
	}
	if err != nil {
		return false, fmt.Errorf("load progress: %w", err)
	}

	now := s.now().UTC()
	from := progress.Status
	if !progress.Start(now) {
		return s.reject(ctx, "start", MsgLessonAlreadyStarted), nil
	}

	uow.Progress().Update(*progress, from)
	if err := uow.Commit(ctx); err != nil {
		return false, err
	}

	observability.LessonTransitionsTotal.WithLabelValues("start", "ok").Inc()
	s.publish(ctx, domain.LessonStarted{LessonID: lessonID, CourseID: lesson.CourseID, StudentID: studentID, OccurredAt: now})
	return true, nil
}

// FinishLesson moves an InProgress lesson to Completed. The student must still be registered in the course.
func (s *LessonService) FinishLesson(ctx context.Context, lessonID, studentID uuid.UUID) (bool, error) {
	if !s.valid(ctx, FinishLessonCommand{LessonID: lessonID, StudentID: studentID}.Validate()) {
		return false, nil
	}

	uow := s.store.Begin()
	lesson, ok, err := s.lesson(ctx, uow, lessonID)
	if err != nil || !ok {
		return false, err
	}

	progress, err := uow.Progress().Get(ctx, lessonID, studentID)
	if errors.Is(err, domain.ErrNotFound) {
		return s.reject(ctx, "finish", MsgNotEnrolledInLesson), nil
	}
	if err != nil {
		return false, fmt.Errorf("load progress: %w", err)
	}

	if _, err := uow.Registrations().Get(ctx, studentID, lesson.CourseID); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return s.reject(ctx, "finish", MsgNotRegisteredInCourse), nil
		}
		return false, fmt.Errorf("load registration: %w", err)
	}

	now := s.now().UTC()
	from := progress.Status
	if !progress.Finish(now) {
		return s.reject(ctx, "finish", MsgLessonNotInProgress), nil
	}

	uow.Progress().Update(*progress, from)
	if err := uow.Commit(ctx); err != nil {
		return false, err
	}

	observability.LessonTransitionsTotal.WithLabelValues("finish", "ok").Inc()
	s.publish(ctx, domain.LessonFinished{LessonID: lessonID, CourseID: lesson.CourseID, StudentID: studentID, OccurredAt: now})
	return true, nil
}

// CreateProgressByCourse creates the missing NotStarted records of every active lesson
// for a student registered in the course. Running it twice creates nothing the second time.
func (s *LessonService) CreateProgressByCourse(ctx context.Context, courseID, studentID uuid.UUID) (int, error) {
	uow := s.store.Begin()
	if _, err := uow.Courses().GetByID(ctx, courseID); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			s.notifier.Publish(ctx, domain.Notification{Key: "course", Message: MsgCourseNotFound})
			return 0, nil
		}
		return 0, fmt.Errorf("load course: %w", err)
	}
	if _, err := uow.Registrations().Get(ctx, studentID, courseID); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			s.notifier.Publish(ctx, domain.Notification{Key: "registration", Message: MsgNotRegisteredInCourse})
			return 0, nil
		}
		return 0, fmt.Errorf("load registration: %w", err)
	}

	created, err := stageProgress(ctx, uow, courseID, studentID, s.now().UTC())
	if err != nil {
		return 0, err
	}
	if created == 0 {
		return 0, nil
	}
	if err := uow.Commit(ctx); err != nil {
		return 0, err
	}
	return created, nil
}

// LessonProgress lists the student's progress on every lesson of the course.
func (s *LessonService) LessonProgress(ctx context.Context, courseID, studentID uuid.UUID) ([]domain.ProgressLesson, error) {
	return s.store.Begin().Progress().ListByCourse(ctx, courseID, studentID)
}

// stageProgress adds a NotStarted record to uow for each active lesson the student has none for.
func stageProgress(ctx context.Context, uow ports.UnitOfWork, courseID, studentID uuid.UUID, now time.Time) (int, error) {
	lessons, err := uow.Courses().ListLessons(ctx, courseID)
	if err != nil {
		return 0, fmt.Errorf("list lessons: %w", err)
	}

	created := 0
	for _, lesson := range lessons {
		_, err := uow.Progress().Get(ctx, lesson.ID, studentID)
		if err == nil {
			continue
		}
		if !errors.Is(err, domain.ErrNotFound) {
			return 0, fmt.Errorf("load progress: %w", err)
		}
		uow.Progress().Add(domain.NewProgressLesson(lesson.ID, studentID, now))
		created++
	}
	return created, nil
}

func (s *LessonService) lesson(ctx context.Context, uow ports.UnitOfWork, lessonID uuid.UUID) (*domain.Lesson, bool, error) {
	lesson, err := uow.Courses().GetLesson(ctx, lessonID)
	if errors.Is(err, domain.ErrNotFound) {
		s.notifier.Publish(ctx, domain.Notification{Key: "lesson", Message: MsgLessonNotFound})
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("load lesson: %w", err)
	}
	return lesson, true, nil
}

func (s *LessonService) valid(ctx context.Context, errs []domain.ValidationError) bool {
	for _, e := range errs {
		s.notifier.Publish(ctx, domain.Notification{Key: e.Field, Message: e.Message})
	}
	return len(errs) == 0
}

func (s *LessonService) reject(ctx context.Context, transition, msg string) bool {
	observability.LessonTransitionsTotal.WithLabelValues(transition, "rejected").Inc()
	s.notifier.Publish(ctx, domain.Notification{Key: "lesson", Message: msg})
	return false
}

func (s *LessonService) publish(ctx context.Context, event domain.Event) {
	if err := s.events.Publish(ctx, event); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish event", "topic", event.Topic(), "error", err)
	}
}
