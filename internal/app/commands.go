package app

import (
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"academy-platform/internal/core/domain"
)

// uuid.UUID is an array, so "required" rejects uuid.Nil.
var validate = validator.New(validator.WithRequiredStructEnabled())

// Field messages, keyed by struct field name. Fields without an entry fall back to a generic message.
var commandMessages = map[string]string{
	"Name":               "Name is required",
	"Subject":            "Subject is required",
	"TotalHours":         "Total hours must be greater than zero",
	"Price":              "Price cannot be negative",
	"CourseID":           "Course id is required",
	"LessonID":           "Lesson id is required",
	"StudentID":          "Student id is required",
	"CardName":           "Card name is required",
	"CardNumber":         "Credit card number is invalid",
	"CardExpirationDate": "Expiration date is required",
	"CardCVV":            "CVV must have 3 or 4 digits",
	"Total":              "Amount must be greater than zero",
}

type AddCourseCommand struct {
	Name        string  `validate:"required,max=200"`
	Description string  `validate:"max=2000"`
	Price       float64 `validate:"gte=0"`
}

type UpdateCourseCommand struct {
	CourseID    uuid.UUID `validate:"required"`
	Name        string    `validate:"required,max=200"`
	Description string    `validate:"max=2000"`
	Price       float64   `validate:"gte=0"`
}

type AddLessonCommand struct {
	CourseID   uuid.UUID `validate:"required"`
	Name       string    `validate:"required,max=200"`
	Subject    string    `validate:"required,max=200"`
	TotalHours float64   `validate:"gt=0"`
}

type StartLessonCommand struct {
	LessonID  uuid.UUID `validate:"required"`
	StudentID uuid.UUID `validate:"required"`
}

type FinishLessonCommand struct {
	LessonID  uuid.UUID `validate:"required"`
	StudentID uuid.UUID `validate:"required"`
}

type ValidatePaymentCourseCommand struct {
	CourseID           uuid.UUID `validate:"required"`
	StudentID          uuid.UUID `validate:"required"`
	CardName           string    `validate:"required"`
	CardNumber         string    `validate:"required"`
	CardExpirationDate string    `validate:"required"`
	CardCVV            string    `validate:"min=3,max=4"`
	Total              float64   `validate:"gt=0"`
}

func (c AddCourseCommand) Validate() []domain.ValidationError    { return validateStruct(c) }
func (c UpdateCourseCommand) Validate() []domain.ValidationError { return validateStruct(c) }
func (c AddLessonCommand) Validate() []domain.ValidationError    { return validateStruct(c) }
func (c StartLessonCommand) Validate() []domain.ValidationError  { return validateStruct(c) }
func (c FinishLessonCommand) Validate() []domain.ValidationError { return validateStruct(c) }
func (c ValidatePaymentCourseCommand) Validate() []domain.ValidationError {
	return validateStruct(c)
}

// PaymentCourse converts the command into the workflow input.
func (c ValidatePaymentCourseCommand) PaymentCourse() domain.PaymentCourse {
	return domain.PaymentCourse{
		CourseID:           c.CourseID,
		StudentID:          c.StudentID,
		CardName:           c.CardName,
		CardNumber:         c.CardNumber,
		CardExpirationDate: c.CardExpirationDate,
		CardCVV:            c.CardCVV,
		Total:              c.Total,
	}
}

// validateStruct checks cmd against its struct tags. It returns nil when the command is valid.
func validateStruct(cmd any) []domain.ValidationError {
	err := validate.Struct(cmd)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return []domain.ValidationError{{Field: "command", Message: err.Error()}}
	}

	out := make([]domain.ValidationError, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		msg, ok := commandMessages[fe.Field()]
		if !ok {
			msg = fmt.Sprintf("%s failed the %q rule", fe.Field(), fe.Tag())
		}
		out = append(out, domain.ValidationError{Field: fe.Field(), Message: msg})
	}
	return out
}
