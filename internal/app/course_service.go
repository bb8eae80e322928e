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
)

const (
	MsgDuplicateLesson = "A lesson with this name already exists in the course"
)

// CourseService manages the course catalogue. Lessons change only through the Course aggregate.
type CourseService struct {
	store    ports.Store
	notifier ports.NotificationSink
	logger   *slog.Logger
	now      func() time.Time
}

func NewCourseService(store ports.Store, notifier ports.NotificationSink, logger *slog.Logger) *CourseService {
	return &CourseService{store: store, notifier: notifier, logger: logger, now: time.Now}
}

func (s *CourseService) AddCourse(ctx context.Context, cmd AddCourseCommand) (uuid.UUID, bool, error) {
	if !s.valid(ctx, cmd.Validate()) {
		return uuid.Nil, false, nil
	}

	course := domain.NewCourse(uuid.New(), cmd.Name, cmd.Description, cmd.Price, nil)
	course.CreatedAt = s.now().UTC()

	uow := s.store.Begin()
	uow.Courses().Add(*course)
	if err := uow.Commit(ctx); err != nil {
		return uuid.Nil, false, err
	}

	s.logger.InfoContext(ctx, "course created", "course_id", course.ID)
	return course.ID, true, nil
}

func (s *CourseService) GetCourse(ctx context.Context, id uuid.UUID) (*domain.Course, error) {
	return s.store.Begin().Courses().GetByID(ctx, id)
}

func (s *CourseService) ListCourses(ctx context.Context) ([]domain.Course, error) {
	return s.store.Begin().Courses().List(ctx)
}

// UpdateCourse changes the catalogue fields of an active course.
func (s *CourseService) UpdateCourse(ctx context.Context, cmd UpdateCourseCommand) (bool, error) {
	if !s.valid(ctx, cmd.Validate()) {
		return false, nil
	}

	uow := s.store.Begin()
	course, ok, err := s.course(ctx, uow, cmd.CourseID)
	if err != nil || !ok {
		return false, err
	}

	course.Update(cmd.Name, cmd.Description, cmd.Price)
	uow.Courses().Update(*course)
	if err := uow.Commit(ctx); err != nil {
		return false, err
	}
	return true, nil
}

// RemoveCourse soft-deletes the course and its lessons. Registrations, progress and
// certifications already recorded are kept.
func (s *CourseService) RemoveCourse(ctx context.Context, courseID uuid.UUID) (bool, error) {
	uow := s.store.Begin()
	course, ok, err := s.course(ctx, uow, courseID)
	if err != nil || !ok {
		return false, err
	}

	course.Remove()
	uow.Courses().Update(*course)
	if err := uow.Commit(ctx); err != nil {
		return false, err
	}

	s.logger.InfoContext(ctx, "course removed", "course_id", courseID)
	return true, nil
}

// AddLesson appends a lesson to an existing course. Active lesson names are unique per course.
func (s *CourseService) AddLesson(ctx context.Context, cmd AddLessonCommand) (uuid.UUID, bool, error) {
	if !s.valid(ctx, cmd.Validate()) {
		return uuid.Nil, false, nil
	}

	uow := s.store.Begin()
	course, ok, err := s.course(ctx, uow, cmd.CourseID)
	if err != nil || !ok {
		return uuid.Nil, false, err
	}

	lesson := &domain.Lesson{
		ID:         uuid.New(),
		Name:       cmd.Name,
		Subject:    cmd.Subject,
		TotalHours: cmd.TotalHours,
		CreatedAt:  s.now().UTC(),
	}
	if err := course.AddLesson(lesson); err != nil {
		if errors.Is(err, domain.ErrDuplicateLesson) {
			s.notifier.Publish(ctx, domain.Notification{Key: "lesson", Message: MsgDuplicateLesson})
			return uuid.Nil, false, nil
		}
		return uuid.Nil, false, err
	}

	uow.Courses().AddLesson(*lesson)
	if err := uow.Commit(ctx); err != nil {
		return uuid.Nil, false, err
	}
	return lesson.ID, true, nil
}

// DeleteLesson soft-deletes the lesson. Progress already recorded on it is kept.
func (s *CourseService) DeleteLesson(ctx context.Context, courseID, lessonID uuid.UUID) (bool, error) {
	uow := s.store.Begin()
	course, ok, err := s.course(ctx, uow, courseID)
	if err != nil || !ok {
		return false, err
	}

	removed, err := course.RemoveLesson(lessonID)
	if errors.Is(err, domain.ErrNotFound) {
		s.notifier.Publish(ctx, domain.Notification{Key: "lesson", Message: MsgLessonNotFound})
		return false, nil
	}
	if err != nil {
		return false, err
	}

	uow.Courses().UpdateLesson(removed)
	if err := uow.Commit(ctx); err != nil {
		return false, err
	}
	return true, nil
}

func (s *CourseService) course(ctx context.Context, uow ports.UnitOfWork, id uuid.UUID) (*domain.Course, bool, error) {
	course, err := uow.Courses().GetByID(ctx, id)
	if errors.Is(err, domain.ErrNotFound) {
		s.notifier.Publish(ctx, domain.Notification{Key: "course", Message: MsgCourseNotFound})
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("load course: %w", err)
	}
	return course, true, nil
}

func (s *CourseService) valid(ctx context.Context, errs []domain.ValidationError) bool {
	for _, e := range errs {
		s.notifier.Publish(ctx, domain.Notification{Key: e.Field, Message: e.Message})
	}
	return len(errs) == 0
}
