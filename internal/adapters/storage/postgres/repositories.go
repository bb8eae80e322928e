package postgres

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"academy-platform/internal/core/domain"
)

type courseRepo struct{ u *unitOfWork }

func (r courseRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Course, error) {
	var c domain.Course
	err := r.u.pool.QueryRow(ctx,
		`SELECT id, name, description, price, created_at FROM courses WHERE id = $1 AND NOT deleted`, id,
	).Scan(&c.ID, &c.Name, &c.Description, &c.Price, &c.CreatedAt)
	if err != nil {
		return nil, mapError(err)
	}

	lessons, err := r.lessons(ctx, `SELECT `+lessonColumns+` FROM lessons WHERE course_id = $1 ORDER BY created_at, name`, id)
	if err != nil {
		return nil, err
	}

	course := domain.NewCourse(c.ID, c.Name, c.Description, c.Price, lessons)
	course.CreatedAt = c.CreatedAt
	return course, nil
}

func (r courseRepo) List(ctx context.Context) ([]domain.Course, error) {
	rows, err := r.u.pool.Query(ctx, `SELECT id, name, description, price, created_at FROM courses WHERE NOT deleted ORDER BY created_at`)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	var courses []domain.Course
	for rows.Next() {
		var c domain.Course
		if err := rows.Scan(&c.ID, &c.Name, &c.Description, &c.Price, &c.CreatedAt); err != nil {
			return nil, mapError(err)
		}
		courses = append(courses, c)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError(err)
	}

	out := make([]domain.Course, 0, len(courses))
	for _, c := range courses {
		lessons, err := r.lessons(ctx, `SELECT `+lessonColumns+` FROM lessons WHERE course_id = $1 ORDER BY created_at, name`, c.ID)
		if err != nil {
			return nil, err
		}
		course := domain.NewCourse(c.ID, c.Name, c.Description, c.Price, lessons)
		course.CreatedAt = c.CreatedAt
		out = append(out, *course)
	}
	return out, nil
}

func (r courseRepo) GetLesson(ctx context.Context, id uuid.UUID) (*domain.Lesson, error) {
	lessons, err := r.lessons(ctx, `SELECT `+lessonColumns+` FROM lessons WHERE id = $1 AND NOT deleted`, id)
	if err != nil {
		return nil, err
	}
	if len(lessons) == 0 {
		return nil, domain.ErrNotFound
	}
	return &lessons[0], nil
}

func (r courseRepo) ListLessons(ctx context.Context, courseID uuid.UUID) ([]domain.Lesson, error) {
	return r.lessons(ctx, `SELECT `+lessonColumns+` FROM lessons WHERE course_id = $1 AND NOT deleted ORDER BY created_at, name`, courseID)
}

const lessonColumns = `id, course_id, name, subject, total_hours, deleted, created_at`

func (r courseRepo) lessons(ctx context.Context, sql string, args ...any) ([]domain.Lesson, error) {
	rows, err := r.u.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, mapError(err)
	}
	lessons, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.Lesson, error) {
		var l domain.Lesson
		err := row.Scan(&l.ID, &l.CourseID, &l.Name, &l.Subject, &l.TotalHours, &l.Deleted, &l.CreatedAt)
		return l, err
	})
	if err != nil {
		return nil, mapError(err)
	}
	return lessons, nil
}

func (r courseRepo) Add(course domain.Course) {
	r.u.exec(`INSERT INTO courses (id, name, description, price, created_at) VALUES ($1, $2, $3, $4, $5)`,
		course.ID, course.Name, course.Description, course.Price, course.CreatedAt)
	for _, l := range course.Lessons() {
		r.AddLesson(l)
	}
}

func (r courseRepo) Update(course domain.Course) {
	r.u.execOne(`UPDATE courses SET name = $2, description = $3, price = $4, deleted = $5 WHERE id = $1`,
		course.ID, course.Name, course.Description, course.Price, course.Deleted)
	for _, l := range course.Lessons() {
		r.u.exec(`UPDATE lessons SET deleted = $2 WHERE id = $1`, l.ID, l.Deleted)
	}
}

func (r courseRepo) AddLesson(l domain.Lesson) {
	r.u.exec(`INSERT INTO lessons (`+lessonColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		l.ID, l.CourseID, l.Name, l.Subject, l.TotalHours, l.Deleted, l.CreatedAt)
}

func (r courseRepo) UpdateLesson(l domain.Lesson) {
	r.u.exec(`UPDATE lessons SET name = $2, subject = $3, total_hours = $4, deleted = $5 WHERE id = $1`,
		l.ID, l.Name, l.Subject, l.TotalHours, l.Deleted)
}

type progressRepo struct{ u *unitOfWork }

const progressColumns = `p.id, p.lesson_id, p.student_id, p.status, p.updated_at`

func scanProgress(row pgx.CollectableRow) (domain.ProgressLesson, error) {
	var p domain.ProgressLesson
	var status int16
	err := row.Scan(&p.ID, &p.LessonID, &p.StudentID, &status, &p.UpdatedAt)
	p.Status = domain.ProgressStatus(status)
	return p, err
}

func (r progressRepo) Get(ctx context.Context, lessonID, studentID uuid.UUID) (*domain.ProgressLesson, error) {
	rows, err := r.u.pool.Query(ctx,
		`SELECT `+progressColumns+` FROM progress_lessons p WHERE p.lesson_id = $1 AND p.student_id = $2`, lessonID, studentID)
	if err != nil {
		return nil, mapError(err)
	}
	p, err := pgx.CollectExactlyOneRow(rows, scanProgress)
	if err != nil {
		return nil, mapError(err)
	}
	return &p, nil
}

func (r progressRepo) ListByCourse(ctx context.Context, courseID, studentID uuid.UUID) ([]domain.ProgressLesson, error) {
	rows, err := r.u.pool.Query(ctx, `
		SELECT `+progressColumns+`
		FROM progress_lessons p
		JOIN lessons l ON l.id = p.lesson_id
		WHERE l.course_id = $1 AND p.student_id = $2
		ORDER BY l.created_at, l.name`, courseID, studentID)
	if err != nil {
		return nil, mapError(err)
	}
	progress, err := pgx.CollectRows(rows, scanProgress)
	if err != nil {
		return nil, mapError(err)
	}
	return progress, nil
}

func (r progressRepo) Add(p domain.ProgressLesson) {
	r.u.exec(`INSERT INTO progress_lessons (id, lesson_id, student_id, status, updated_at) VALUES ($1, $2, $3, $4, $5)`,
		p.ID, p.LessonID, p.StudentID, int16(p.Status), p.UpdatedAt)
}

func (r progressRepo) Update(p domain.ProgressLesson, from domain.ProgressStatus) {
	r.u.execOne(`UPDATE progress_lessons SET status = $2, updated_at = $3 WHERE id = $1 AND status = $4`,
		p.ID, int16(p.Status), p.UpdatedAt, int16(from))
}

type registrationRepo struct{ u *unitOfWork }

const registrationColumns = `id, student_id, course_id, registration_time, status`

func scanRegistration(row pgx.CollectableRow) (domain.Registration, error) {
	var reg domain.Registration
	var status int16
	err := row.Scan(&reg.ID, &reg.StudentID, &reg.CourseID, &reg.RegistrationTime, &status)
	reg.Status = domain.ProgressStatus(status)
	return reg, err
}

func (r registrationRepo) Get(ctx context.Context, studentID, courseID uuid.UUID) (*domain.Registration, error) {
	rows, err := r.u.pool.Query(ctx,
		`SELECT `+registrationColumns+` FROM registrations WHERE student_id = $1 AND course_id = $2`, studentID, courseID)
	if err != nil {
		return nil, mapError(err)
	}
	reg, err := pgx.CollectExactlyOneRow(rows, scanRegistration)
	if err != nil {
		return nil, mapError(err)
	}
	return &reg, nil
}

func (r registrationRepo) ListByStudent(ctx context.Context, studentID uuid.UUID) ([]domain.Registration, error) {
	return r.list(ctx, `SELECT `+registrationColumns+` FROM registrations WHERE student_id = $1 ORDER BY registration_time`, studentID)
}

func (r registrationRepo) ListAll(ctx context.Context) ([]domain.Registration, error) {
	return r.list(ctx, `SELECT `+registrationColumns+` FROM registrations ORDER BY registration_time`)
}

func (r registrationRepo) ListInProgress(ctx context.Context) ([]domain.Registration, error) {
	return r.list(ctx, `SELECT `+registrationColumns+` FROM registrations WHERE status = $1 ORDER BY registration_time`, int16(domain.InProgress))
}

func (r registrationRepo) list(ctx context.Context, sql string, args ...any) ([]domain.Registration, error) {
	rows, err := r.u.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, mapError(err)
	}
	regs, err := pgx.CollectRows(rows, scanRegistration)
	if err != nil {
		return nil, mapError(err)
	}
	return regs, nil
}

func (r registrationRepo) GetCertification(ctx context.Context, studentID, courseID uuid.UUID) (*domain.Certification, error) {
	var c domain.Certification
	err := r.u.pool.QueryRow(ctx, `
		SELECT id, course_id, student_id, certification_date, certification_code
		FROM certifications WHERE student_id = $1 AND course_id = $2`, studentID, courseID,
	).Scan(&c.ID, &c.CourseID, &c.StudentID, &c.CertificationDate, &c.CertificationCode)
	if err != nil {
		return nil, mapError(err)
	}
	return &c, nil
}

func (r registrationRepo) Add(reg domain.Registration) {
	r.u.exec(`INSERT INTO registrations (`+registrationColumns+`) VALUES ($1, $2, $3, $4, $5)`,
		reg.ID, reg.StudentID, reg.CourseID, reg.RegistrationTime, int16(reg.Status))
}

func (r registrationRepo) Update(reg domain.Registration) {
	r.u.exec(`UPDATE registrations SET status = $2 WHERE id = $1`, reg.ID, int16(reg.Status))
}

func (r registrationRepo) AddCertification(c domain.Certification) {
	r.u.exec(`
		INSERT INTO certifications (id, course_id, student_id, certification_date, certification_code)
		VALUES ($1, $2, $3, $4, $5)`,
		c.ID, c.CourseID, c.StudentID, c.CertificationDate, c.CertificationCode)
}

type paymentRepo struct{ u *unitOfWork }

func (r paymentRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Payment, error) {
	var p domain.Payment
	err := r.u.pool.QueryRow(ctx, `
		SELECT id, course_id, student_id, value, card_name, encrypted_card_number,
		       encrypted_card_expiration, encrypted_card_cvv, card_number_last4, created_at
		FROM payments WHERE id = $1`, id,
	).Scan(&p.ID, &p.CourseID, &p.StudentID, &p.Value, &p.CardName, &p.EncryptedCardNumber,
		&p.EncryptedCardExpirationDate, &p.EncryptedCardCVV, &p.CardNumberLast4, &p.CreatedAt)
	if err != nil {
		return nil, mapError(err)
	}

	var tx domain.Transaction
	var status string
	err = r.u.pool.QueryRow(ctx, `SELECT id, payment_id, status, total FROM transactions WHERE payment_id = $1`, id).
		Scan(&tx.ID, &tx.PaymentID, &status, &tx.Total)
	switch {
	case err == nil:
		tx.Status = domain.TransactionStatus(status)
		p.Transaction = &tx
	case !errors.Is(err, pgx.ErrNoRows):
		return nil, mapError(err)
	}
	return &p, nil
}

func (r paymentRepo) Exists(ctx context.Context, studentID, courseID uuid.UUID) (bool, error) {
	var exists bool
	err := r.u.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM payments WHERE student_id = $1 AND course_id = $2)`, studentID, courseID,
	).Scan(&exists)
	if err != nil {
		return false, mapError(err)
	}
	return exists, nil
}

func (r paymentRepo) Add(p domain.Payment) {
	r.u.exec(`
		INSERT INTO payments (id, course_id, student_id, value, card_name, encrypted_card_number,
		                      encrypted_card_expiration, encrypted_card_cvv, card_number_last4, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		p.ID, p.CourseID, p.StudentID, p.Value, p.CardName, p.EncryptedCardNumber,
		p.EncryptedCardExpirationDate, p.EncryptedCardCVV, p.CardNumberLast4, p.CreatedAt)
}

func (r paymentRepo) AddTransaction(tx domain.Transaction) {
	r.u.exec(`INSERT INTO transactions (id, payment_id, status, total) VALUES ($1, $2, $3, $4)`,
		tx.ID, tx.PaymentID, string(tx.Status), tx.Total)
}
