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
	MsgAlreadyRegistered    = "Student is already registered in this course"
	MsgRegistrationNotFound = "Registration not found"
	MsgAlreadyCertified     = "Course has already been completed"
	MsgLessonsPending       = "All lessons must be completed to finish the course"
	MsgCourseWithoutLessons = "Course has no lessons to complete"
	MsgInvalidIDs           = "Student id and course id are required"
)

// RegistrationService enrolls students and certifies them once every lesson is completed.
type RegistrationService struct {
	store    ports.Store
	events   ports.EventBus
	notifier ports.NotificationSink
	logger   *slog.Logger
	now      func() time.Time
}

func NewRegistrationService(store ports.Store, events ports.EventBus, notifier ports.NotificationSink, logger *slog.Logger) *RegistrationService {
	return &RegistrationService{
		store:    store,
		events:   events,
		notifier: notifier,
		logger:   logger,
		now:      time.Now,
	}
}

// Register enrolls the student and creates the lesson progress records in the same commit.
// A concurrent enrollment of the same pair fails with domain.ErrConflict.
func (s *RegistrationService) Register(ctx context.Context, studentID, courseID uuid.UUID) (bool, error) {
	if studentID == uuid.Nil || courseID == uuid.Nil {
		return s.reject(ctx, MsgInvalidIDs), nil
	}

	uow := s.store.Begin()
	if _, err := uow.Courses().GetByID(ctx, courseID); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return s.reject(ctx, MsgCourseNotFound), nil
		}
		return false, fmt.Errorf("load course: %w", err)
	}

	_, err := uow.Registrations().Get(ctx, studentID, courseID)
	if err == nil {
		return s.reject(ctx, MsgAlreadyRegistered), nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return false, fmt.Errorf("load registration: %w", err)
	}

	now := s.now().UTC()
	uow.Registrations().Add(domain.NewRegistration(studentID, courseID, now))
	created, err := stageProgress(ctx, uow, courseID, studentID, now)
	if err != nil {
		return false, err
	}
	if err := uow.Commit(ctx); err != nil {
		return false, err
	}

	s.logger.InfoContext(ctx, "student registered", "student_id", studentID, "course_id", courseID, "lessons", created)
	return true, nil
}

// FinishCourse completes the registration and issues the certification in one commit.
func (s *RegistrationService) FinishCourse(ctx context.Context, studentID, courseID uuid.UUID) (bool, error) {
	uow := s.store.Begin()

	registration, err := uow.Registrations().Get(ctx, studentID, courseID)
	if errors.Is(err, domain.ErrNotFound) {
		return s.reject(ctx, MsgRegistrationNotFound), nil
	}
	if err != nil {
		return false, fmt.Errorf("load registration: %w", err)
	}
	if registration.Status == domain.Completed {
		return s.reject(ctx, MsgAlreadyCertified), nil
	}
	if _, err := uow.Registrations().GetCertification(ctx, studentID, courseID); err == nil {
		return s.reject(ctx, MsgAlreadyCertified), nil
	} else if !errors.Is(err, domain.ErrNotFound) {
		return false, fmt.Errorf("load certification: %w", err)
	}

	done, err := s.allLessonsCompleted(ctx, uow, studentID, courseID)
	if err != nil || !done {
		return false, err
	}

	now := s.now().UTC()
	registration.Status = domain.Completed
	certification := domain.NewCertification(courseID, studentID, now)
	uow.Registrations().Update(*registration)
	uow.Registrations().AddCertification(certification)
	if err := uow.Commit(ctx); err != nil {
		return false, err
	}

	observability.CertificationsIssuedTotal.Inc()
	s.logger.InfoContext(ctx, "course finished", "student_id", studentID, "course_id", courseID)

	event := domain.CourseFinished{
		CourseID:          courseID,
		StudentID:         studentID,
		CertificationCode: certification.CertificationCode,
		OccurredAt:        now,
	}
	if err := s.events.Publish(ctx, event); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish event", "topic", event.Topic(), "error", err)
	}
	return true, nil
}

// CertifyCompleted tries to finish every in-progress registration and returns how many were certified.
// It recovers completions whose LessonFinished event was lost.
func (s *RegistrationService) CertifyCompleted(ctx context.Context) (int, error) {
	registrations, err := s.store.Begin().Registrations().ListInProgress(ctx)
	if err != nil {
		return 0, err
	}

	certified := 0
	for _, r := range registrations {
		if err := ctx.Err(); err != nil {
			return certified, err
		}
		ok, err := s.FinishCourse(ctx, r.StudentID, r.CourseID)
		if err != nil {
			s.logger.WarnContext(ctx, "certification attempt failed", "student_id", r.StudentID, "course_id", r.CourseID, "error", err)
			continue
		}
		if ok {
			certified++
		}
	}
	return certified, nil
}

func (s *RegistrationService) Registrations(ctx context.Context, studentID uuid.UUID) ([]domain.Registration, error) {
	return s.store.Begin().Registrations().ListByStudent(ctx, studentID)
}

func (s *RegistrationService) AllRegistrations(ctx context.Context) ([]domain.Registration, error) {
	return s.store.Begin().Registrations().ListAll(ctx)
}

func (s *RegistrationService) Certification(ctx context.Context, studentID, courseID uuid.UUID) (*domain.Certification, error) {
	return s.store.Begin().Registrations().GetCertification(ctx, studentID, courseID)
}

func (s *RegistrationService) allLessonsCompleted(ctx context.Context, uow ports.UnitOfWork, studentID, courseID uuid.UUID) (bool, error) {
	lessons, err := uow.Courses().ListLessons(ctx, courseID)
	if err != nil {
		return false, fmt.Errorf("list lessons: %w", err)
	}
	if len(lessons) == 0 {
		return s.reject(ctx, MsgCourseWithoutLessons), nil
	}

	progress, err := uow.Progress().ListByCourse(ctx, courseID, studentID)
	if err != nil {
		return false, fmt.Errorf("list progress: %w", err)
	}
	status := make(map[uuid.UUID]domain.ProgressStatus, len(progress))
	for _, p := range progress {
		status[p.LessonID] = p.Status
	}

	for _, lesson := range lessons {
		if status[lesson.ID] != domain.Completed {
			return s.reject(ctx, MsgLessonsPending), nil
		}
	}
	return true, nil
}

func (s *RegistrationService) reject(ctx context.Context, msg string) bool {
	s.notifier.Publish(ctx, domain.Notification{Key: "registration", Message: msg})
	return false
}
