// Package clickhouse stores integration events in ClickHouse and reads the reports built on them.
package clickhouse

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	"github.com/google/uuid"

	"academy-platform/internal/config"
	"academy-platform/internal/core/domain"
)

const createEventsTable = `
CREATE TABLE IF NOT EXISTS academy_events (
	event_type         LowCardinality(String),
	student_id         UUID,
	course_id          UUID,
	lesson_id          UUID,
	payment_id         UUID,
	amount             Float64,
	certification_code String,
	occurred_at        DateTime64(3, 'UTC'),
	ingested_at        DateTime64(3, 'UTC')
) ENGINE = MergeTree
ORDER BY (event_type, occurred_at)`

const insertEvent = `
INSERT INTO academy_events (event_type, student_id, course_id, lesson_id, payment_id, amount, certification_code, occurred_at, ingested_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`

// Event type values stored in academy_events.
const (
	EventPaymentApproved = "payment_approved"
	EventLessonStarted   = "lesson_started"
	EventLessonFinished  = "lesson_finished"
	EventCourseFinished  = "course_finished"
)

// Open connects to ClickHouse and pings it.
func Open(ctx context.Context, cfg config.ClickHouseConfig) (driver.Conn, error) {
	if cfg.Addr == "" {
		return nil, fmt.Errorf("clickhouse address is not configured")
	}

	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: []string{cfg.Addr},
		Auth: clickhouse.Auth{
			Database: cfg.Database,
			Username: cfg.User,
			Password: cfg.Password,
		},
		DialTimeout: 5 * time.Second,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open clickhouse connection: %w", err)
	}
	if err := conn.Ping(ctx); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to ping clickhouse: %w", err)
	}
	return conn, nil
}

// Execer is the write side of driver.Conn.
type Execer interface {
	Exec(ctx context.Context, query string, args ...any) error
}

// Row is one stored event. Ids that do not apply to the event type are uuid.Nil.
type Row struct {
	EventType         string
	StudentID         uuid.UUID
	CourseID          uuid.UUID
	LessonID          uuid.UUID
	PaymentID         uuid.UUID
	Amount            float64
	CertificationCode string
	OccurredAt        time.Time
}

// Sink writes integration events to academy_events.
type Sink struct {
	conn   Execer
	logger *slog.Logger
	now    func() time.Time
}

func NewSink(conn Execer, logger *slog.Logger) *Sink {
	return &Sink{conn: conn, logger: logger, now: time.Now}
}

// Migrate creates the events table.
func (s *Sink) Migrate(ctx context.Context) error {
	if err := s.conn.Exec(ctx, createEventsTable); err != nil {
		return fmt.Errorf("failed to create academy_events: %w", err)
	}
	return nil
}

func (s *Sink) Insert(ctx context.Context, row Row) error {
	err := s.conn.Exec(ctx, insertEvent,
		row.EventType,
		row.StudentID,
		row.CourseID,
		row.LessonID,
		row.PaymentID,
		row.Amount,
		row.CertificationCode,
		row.OccurredAt.UTC(),
		s.now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert %s event: %w", row.EventType, err)
	}
	s.logger.DebugContext(ctx, "event stored", "event_type", row.EventType, "student_id", row.StudentID, "course_id", row.CourseID)
	return nil
}

func (s *Sink) HandlePaymentApproved(ctx context.Context, e domain.PaymentApproved) error {
	return s.Insert(ctx, Row{
		EventType:  EventPaymentApproved,
		StudentID:  e.StudentID,
		CourseID:   e.CourseID,
		PaymentID:  e.PaymentID,
		Amount:     e.Amount,
		OccurredAt: e.OccurredAt,
	})
}

func (s *Sink) HandleLessonStarted(ctx context.Context, e domain.LessonStarted) error {
	return s.Insert(ctx, Row{
		EventType:  EventLessonStarted,
		StudentID:  e.StudentID,
		CourseID:   e.CourseID,
		LessonID:   e.LessonID,
		OccurredAt: e.OccurredAt,
	})
}

func (s *Sink) HandleLessonFinished(ctx context.Context, e domain.LessonFinished) error {
	return s.Insert(ctx, Row{
		EventType:  EventLessonFinished,
		StudentID:  e.StudentID,
		CourseID:   e.CourseID,
		LessonID:   e.LessonID,
		OccurredAt: e.OccurredAt,
	})
}

func (s *Sink) HandleCourseFinished(ctx context.Context, e domain.CourseFinished) error {
	return s.Insert(ctx, Row{
		EventType:         EventCourseFinished,
		StudentID:         e.StudentID,
		CourseID:          e.CourseID,
		CertificationCode: e.CertificationCode,
		OccurredAt:        e.OccurredAt,
	})
}
