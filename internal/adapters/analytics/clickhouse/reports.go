package clickhouse

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Selecter is the read side of driver.Conn.
type Selecter interface {
	Select(ctx context.Context, dest any, query string, args ...any) error
}

type CourseRevenue struct {
	CourseID uuid.UUID `ch:"course_id"`
	Payments uint64    `ch:"payments"`
	Revenue  float64   `ch:"revenue"`
}

type IssuedCertification struct {
	CourseID          uuid.UUID `ch:"course_id"`
	StudentID         uuid.UUID `ch:"student_id"`
	CertificationCode string    `ch:"certification_code"`
	OccurredAt        time.Time `ch:"occurred_at"`
}

type LessonActivity struct {
	CourseID uuid.UUID `ch:"course_id"`
	Started  uint64    `ch:"started"`
	Finished uint64    `ch:"finished"`
}

// Reports runs the analytical queries over academy_events.
type Reports struct {
	conn Selecter
}

func NewReports(conn Selecter) *Reports {
	return &Reports{conn: conn}
}

// RevenueByCourse sums the approved payments of each course, highest revenue first.
func (r *Reports) RevenueByCourse(ctx context.Context, limit int) ([]CourseRevenue, error) {
	var out []CourseRevenue
	err := r.conn.Select(ctx, &out, `
		SELECT course_id, count() AS payments, sum(amount) AS revenue
		FROM academy_events
		WHERE event_type = ?
		GROUP BY course_id
		ORDER BY revenue DESC
		LIMIT ?`, EventPaymentApproved, limit)
	if err != nil {
		return nil, fmt.Errorf("revenue by course: %w", err)
	}
	return out, nil
}

// RecentCertifications lists the latest course completions.
func (r *Reports) RecentCertifications(ctx context.Context, limit int) ([]IssuedCertification, error) {
	var out []IssuedCertification
	err := r.conn.Select(ctx, &out, `
		SELECT course_id, student_id, certification_code, occurred_at
		FROM academy_events
		WHERE event_type = ?
		ORDER BY occurred_at DESC
		LIMIT ?`, EventCourseFinished, limit)
	if err != nil {
		return nil, fmt.Errorf("recent certifications: %w", err)
	}
	return out, nil
}

// LessonActivitySince counts lesson starts and finishes per course after since.
func (r *Reports) LessonActivitySince(ctx context.Context, since time.Time) ([]LessonActivity, error) {
	var out []LessonActivity
	err := r.conn.Select(ctx, &out, `
		SELECT course_id,
			countIf(event_type = ?) AS started,
			countIf(event_type = ?) AS finished
		FROM academy_events
		WHERE occurred_at >= ? AND event_type IN (?, ?)
		GROUP BY course_id
		ORDER BY finished DESC`,
		EventLessonStarted, EventLessonFinished, since.UTC(), EventLessonStarted, EventLessonFinished)
	if err != nil {
		return nil, fmt.Errorf("lesson activity: %w", err)
	}
	return out, nil
}
