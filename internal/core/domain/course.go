package domain

import (
	"time"

	"github.com/google/uuid"
)

// Lesson belongs to exactly one course. Deleted lessons are kept as history.
type Lesson struct {
	ID         uuid.UUID
	CourseID   uuid.UUID
	Name       string
	Subject    string
	TotalHours float64
	Deleted    bool
	CreatedAt  time.Time
}

// Course owns its lessons. Lesson names are unique among the active ones.
type Course struct {
	ID          uuid.UUID
	Name        string
	Description string
	Price       float64
	Deleted     bool
	CreatedAt   time.Time

	lessons []Lesson
}

// NewCourse builds a course from persisted state.
func NewCourse(id uuid.UUID, name, description string, price float64, lessons []Lesson) *Course {
	c := &Course{ID: id, Name: name, Description: description, Price: price}
	c.lessons = append(c.lessons, lessons...)
	return c
}

// Lessons returns a copy of every lesson, deleted ones included.
func (c *Course) Lessons() []Lesson {
	out := make([]Lesson, len(c.lessons))
	copy(out, c.lessons)
	return out
}

// ActiveLessons returns the lessons that are not soft-deleted.
func (c *Course) ActiveLessons() []Lesson {
	out := make([]Lesson, 0, len(c.lessons))
	for _, l := range c.lessons {
		if !l.Deleted {
			out = append(out, l)
		}
	}
	return out
}

// AddLesson appends the lesson and stamps its course reference.
func (c *Course) AddLesson(lesson *Lesson) error {
	if lesson == nil {
		return ErrNilLesson
	}
	if c.hasActiveLesson(lesson.Name) {
		return ErrDuplicateLesson
	}
	lesson.CourseID = c.ID
	c.lessons = append(c.lessons, *lesson)
	return nil
}

// RemoveLesson soft-deletes the lesson and returns its new state.
func (c *Course) RemoveLesson(id uuid.UUID) (Lesson, error) {
	for i := range c.lessons {
		if c.lessons[i].ID == id && !c.lessons[i].Deleted {
			c.lessons[i].Deleted = true
			return c.lessons[i], nil
		}
	}
	return Lesson{}, ErrNotFound
}

// Update replaces the catalogue fields.
func (c *Course) Update(name, description string, price float64) {
	c.Name = name
	c.Description = description
	c.Price = price
}

// Remove soft-deletes the course together with its lessons.
func (c *Course) Remove() {
	c.Deleted = true
	for i := range c.lessons {
		c.lessons[i].Deleted = true
	}
}

func (c *Course) hasActiveLesson(name string) bool {
	for _, l := range c.lessons {
		if !l.Deleted && l.Name == name {
			return true
		}
	}
	return false
}
