package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ProgressStatus is the state of a student on a lesson, or on a whole course.
type ProgressStatus int

const (
	NotStarted ProgressStatus = iota
	InProgress
	Completed
)

func (s ProgressStatus) String() string {
	switch s {
	case NotStarted:
		return "NOT_STARTED"
	case InProgress:
		return "IN_PROGRESS"
	case Completed:
		return "COMPLETED"
	default:
		return fmt.Sprintf("ProgressStatus(%d)", int(s))
	}
}

// ProgressLesson is unique per (lesson, student) and is never deleted.
type ProgressLesson struct {
	ID        uuid.UUID
	LessonID  uuid.UUID
	StudentID uuid.UUID
	Status    ProgressStatus
	UpdatedAt time.Time
}

// NewProgressLesson creates the NotStarted record written on enrollment.
func NewProgressLesson(lessonID, studentID uuid.UUID, now time.Time) ProgressLesson {
	return ProgressLesson{
		ID:        uuid.New(),
		LessonID:  lessonID,
		StudentID: studentID,
		Status:    NotStarted,
		UpdatedAt: now,
	}
}

// Start moves NotStarted to InProgress.
func (p *ProgressLesson) Start(now time.Time) bool {
	if p.Status != NotStarted {
		return false
	}
	p.Status = InProgress
	p.UpdatedAt = now
	return true
}

// Finish moves InProgress to Completed.
func (p *ProgressLesson) Finish(now time.Time) bool {
	if p.Status != InProgress {
		return false
	}
	p.Status = Completed
	p.UpdatedAt = now
	return true
}

// Registration is the enrollment of a student in a course.
type Registration struct {
	ID               uuid.UUID
	StudentID        uuid.UUID
	CourseID         uuid.UUID
	RegistrationTime time.Time
	Status           ProgressStatus
}

// NewRegistration enrolls a student; the course starts InProgress.
func NewRegistration(studentID, courseID uuid.UUID, now time.Time) Registration {
	return Registration{
		ID:               uuid.New(),
		StudentID:        studentID,
		CourseID:         courseID,
		RegistrationTime: now,
		Status:           InProgress,
	}
}

// Certification is issued once per (course, student).
type Certification struct {
	ID                uuid.UUID
	CourseID          uuid.UUID
	StudentID         uuid.UUID
	CertificationDate time.Time
	CertificationCode string
}

// NewCertification derives the code from both ids and the issue time.
func NewCertification(courseID, studentID uuid.UUID, now time.Time) Certification {
	return Certification{
		ID:                uuid.New(),
		CourseID:          courseID,
		StudentID:         studentID,
		CertificationDate: now,
		CertificationCode: CertificationCode(courseID, studentID, now),
	}
}

// CertificationCode is CERT-<student>-<course>-<unix nanos>, ids without dashes.
func CertificationCode(courseID, studentID uuid.UUID, at time.Time) string {
	return fmt.Sprintf("CERT-%s-%s-%d", compact(studentID), compact(courseID), at.UTC().UnixNano())
}

func compact(id uuid.UUID) string {
	return strings.ReplaceAll(id.String(), "-", "")
}
