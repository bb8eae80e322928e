package app

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"academy-platform/internal/core/domain"
)

func fieldNames(errs []domain.ValidationError) []string {
	names := make([]string, 0, len(errs))
	for _, e := range errs {
		names = append(names, e.Field)
	}
	return names
}

func TestAddCourseCommand_Validate(t *testing.T) {
	errs := AddCourseCommand{Name: "", Price: -1}.Validate()
	assert.ElementsMatch(t, []string{"Name", "Price"}, fieldNames(errs))

	assert.Empty(t, AddCourseCommand{Name: "Go", Description: "Desc", Price: 10}.Validate())
}

func TestAddLessonCommand_Validate(t *testing.T) {
	errs := AddLessonCommand{}.Validate()
	assert.ElementsMatch(t, []string{"CourseID", "Name", "Subject", "TotalHours"}, fieldNames(errs))

	assert.Empty(t, AddLessonCommand{CourseID: uuid.New(), Name: "Intro", Subject: "Basics", TotalHours: 1.5}.Validate())
}

func TestLessonCommands_RequireIDs(t *testing.T) {
	assert.ElementsMatch(t, []string{"LessonID", "StudentID"}, fieldNames(StartLessonCommand{}.Validate()))
	assert.ElementsMatch(t, []string{"LessonID", "StudentID"}, fieldNames(FinishLessonCommand{}.Validate()))

	assert.Empty(t, StartLessonCommand{LessonID: uuid.New(), StudentID: uuid.New()}.Validate())
	assert.Empty(t, FinishLessonCommand{LessonID: uuid.New(), StudentID: uuid.New()}.Validate())
}

func TestValidatePaymentCourseCommand_Validate(t *testing.T) {
	errs := ValidatePaymentCourseCommand{CardCVV: "12345"}.Validate()
	assert.ElementsMatch(t,
		[]string{"CourseID", "StudentID", "CardName", "CardNumber", "CardExpirationDate", "CardCVV", "Total"},
		fieldNames(errs))

	for _, e := range errs {
		if e.Field == "CardCVV" {
			assert.Equal(t, "CVV must have 3 or 4 digits", e.Message)
		}
	}
}
