package domain

import (
	"time"

	"github.com/google/uuid"
)

// Topics of the integration events and bus requests.
const (
	TopicPaymentApproved  = "academy.payments.approved"
	TopicPaymentRequested = "academy.payments.requested"
	TopicLessonStarted    = "academy.lessons.started"
	TopicLessonFinished   = "academy.lessons.finished"
	TopicCourseFinished   = "academy.courses.finished"
)

// Event is an integration event published after a successful commit.
type Event interface {
	Topic() string
	// Key orders events of the same aggregate on a partitioned bus.
	Key() string
}

type PaymentApproved struct {
	PaymentID  uuid.UUID `json:"payment_id"`
	CourseID   uuid.UUID `json:"course_id"`
	StudentID  uuid.UUID `json:"student_id"`
	Amount     float64   `json:"amount"`
	OccurredAt time.Time `json:"occurred_at"`
}

func (e PaymentApproved) Topic() string { return TopicPaymentApproved }
func (e PaymentApproved) Key() string   { return e.StudentID.String() }

type LessonStarted struct {
	LessonID   uuid.UUID `json:"lesson_id"`
	CourseID   uuid.UUID `json:"course_id"`
	StudentID  uuid.UUID `json:"student_id"`
	OccurredAt time.Time `json:"occurred_at"`
}

func (e LessonStarted) Topic() string { return TopicLessonStarted }
func (e LessonStarted) Key() string   { return e.StudentID.String() }

type LessonFinished struct {
	LessonID   uuid.UUID `json:"lesson_id"`
	CourseID   uuid.UUID `json:"course_id"`
	StudentID  uuid.UUID `json:"student_id"`
	OccurredAt time.Time `json:"occurred_at"`
}

func (e LessonFinished) Topic() string { return TopicLessonFinished }
func (e LessonFinished) Key() string   { return e.StudentID.String() }

type CourseFinished struct {
	CourseID          uuid.UUID `json:"course_id"`
	StudentID         uuid.UUID `json:"student_id"`
	CertificationCode string    `json:"certification_code"`
	OccurredAt        time.Time `json:"occurred_at"`
}

func (e CourseFinished) Topic() string { return TopicCourseFinished }
func (e CourseFinished) Key() string   { return e.StudentID.String() }

// PaymentRequested travels from the API to the payments worker over the bus.
type PaymentRequested struct {
	CourseID           uuid.UUID `json:"course_id"`
	StudentID          uuid.UUID `json:"student_id"`
	CardName           string    `json:"card_name"`
	CardNumber         string    `json:"card_number"`
	CardExpirationDate string    `json:"card_expiration_date"`
	CardCVV            string    `json:"card_cvv"`
	Total              float64   `json:"total"`
}

// ResponseMessage is the answer to a bus request.
type ResponseMessage struct {
	Success bool     `json:"success"`
	Errors  []string `json:"errors,omitempty"`
}
