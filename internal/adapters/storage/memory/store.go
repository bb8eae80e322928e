// Package memory is an in-process ports.Store with the same unique constraints as the Postgres schema.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"

	"academy-platform/internal/core/domain"
	"academy-platform/internal/core/ports"
)

type state struct {
	courses        map[uuid.UUID]domain.Course
	lessons        map[uuid.UUID]domain.Lesson
	progress       map[uuid.UUID]domain.ProgressLesson
	registrations  map[uuid.UUID]domain.Registration
	certifications map[uuid.UUID]domain.Certification
	payments       map[uuid.UUID]domain.Payment
	transactions   map[uuid.UUID]domain.Transaction
}

func newState() *state {
	return &state{
		courses:        make(map[uuid.UUID]domain.Course),
		lessons:        make(map[uuid.UUID]domain.Lesson),
		progress:       make(map[uuid.UUID]domain.ProgressLesson),
		registrations:  make(map[uuid.UUID]domain.Registration),
		certifications: make(map[uuid.UUID]domain.Certification),
		payments:       make(map[uuid.UUID]domain.Payment),
		transactions:   make(map[uuid.UUID]domain.Transaction),
	}
}

func (s *state) clone() *state {
	c := newState()
	for k, v := range s.courses {
		c.courses[k] = v
	}
	for k, v := range s.lessons {
		c.lessons[k] = v
	}
	for k, v := range s.progress {
		c.progress[k] = v
	}
	for k, v := range s.registrations {
		c.registrations[k] = v
	}
	for k, v := range s.certifications {
		c.certifications[k] = v
	}
	for k, v := range s.payments {
		c.payments[k] = v
	}
	for k, v := range s.transactions {
		c.transactions[k] = v
	}
	return c
}

type op func(*state) error

// Store keeps every aggregate in maps guarded by one lock.
type Store struct {
	mu        sync.RWMutex
	data      *state
	commitErr error
}

func NewStore() *Store {
	return &Store{data: newState()}
}

// FailCommits makes every following Commit return err. Pass nil to restore normal behaviour.
func (s *Store) FailCommits(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.commitErr = err
}

func (s *Store) Begin() ports.UnitOfWork {
	return &unitOfWork{store: s}
}

func (s *Store) read(fn func(*state)) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	fn(s.data)
}

type unitOfWork struct {
	store *Store
	ops   []op
}

func (u *unitOfWork) Courses() ports.CourseRepository             { return courseRepo{u} }
func (u *unitOfWork) Progress() ports.ProgressRepository          { return progressRepo{u} }
func (u *unitOfWork) Registrations() ports.RegistrationRepository { return registrationRepo{u} }
func (u *unitOfWork) Payments() ports.PaymentRepository           { return paymentRepo{u} }

func (u *unitOfWork) stage(o op) {
	u.ops = append(u.ops, o)
}

// Commit applies the staged writes to a copy of the data and swaps it in only if all of them succeed.
func (u *unitOfWork) Commit(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if len(u.ops) == 0 {
		return nil
	}

	u.store.mu.Lock()
	defer u.store.mu.Unlock()

	if u.store.commitErr != nil {
		return fmt.Errorf("%w: %v", domain.ErrStorageUnavailable, u.store.commitErr)
	}

	next := u.store.data.clone()
	for _, o := range u.ops {
		if err := o(next); err != nil {
			return err
		}
	}
	u.store.data = next
	u.ops = nil
	return nil
}

func conflict(format string, args ...any) error {
	return fmt.Errorf("%w: %s", domain.ErrConflict, fmt.Sprintf(format, args...))
}

type courseRepo struct{ u *unitOfWork }

func (r courseRepo) GetByID(_ context.Context, id uuid.UUID) (*domain.Course, error) {
	var course *domain.Course
	r.u.store.read(func(s *state) {
		c, ok := s.courses[id]
		if !ok || c.Deleted {
			return
		}
		course = domain.NewCourse(c.ID, c.Name, c.Description, c.Price, lessonsOf(s, id, true))
		course.CreatedAt = c.CreatedAt
	})
	if course == nil {
		return nil, domain.ErrNotFound
	}
	return course, nil
}

func (r courseRepo) List(_ context.Context) ([]domain.Course, error) {
	var out []domain.Course
	r.u.store.read(func(s *state) {
		for _, c := range s.courses {
			if c.Deleted {
				continue
			}
			course := domain.NewCourse(c.ID, c.Name, c.Description, c.Price, lessonsOf(s, c.ID, true))
			course.CreatedAt = c.CreatedAt
			out = append(out, *course)
		}
	})
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (r courseRepo) GetLesson(_ context.Context, id uuid.UUID) (*domain.Lesson, error) {
	var lesson *domain.Lesson
	r.u.store.read(func(s *state) {
		if l, ok := s.lessons[id]; ok && !l.Deleted {
			lesson = &l
		}
	})
	if lesson == nil {
		return nil, domain.ErrNotFound
	}
	return lesson, nil
}

func (r courseRepo) ListLessons(_ context.Context, courseID uuid.UUID) ([]domain.Lesson, error) {
	var out []domain.Lesson
	r.u.store.read(func(s *state) { out = lessonsOf(s, courseID, false) })
	return out, nil
}

func (r courseRepo) Add(course domain.Course) {
	lessons := course.Lessons()
	r.u.stage(func(s *state) error {
		if _, ok := s.courses[course.ID]; ok {
			return conflict("course %s", course.ID)
		}
		stored := *domain.NewCourse(course.ID, course.Name, course.Description, course.Price, nil)
		stored.CreatedAt = course.CreatedAt
		s.courses[course.ID] = stored
		for _, l := range lessons {
			if err := insertLesson(s, l); err != nil {
				return err
			}
		}
		return nil
	})
}

func (r courseRepo) Update(course domain.Course) {
	lessons := course.Lessons()
	r.u.stage(func(s *state) error {
		stored, ok := s.courses[course.ID]
		if !ok {
			return domain.ErrNotFound
		}
		stored.Update(course.Name, course.Description, course.Price)
		stored.Deleted = course.Deleted
		s.courses[course.ID] = stored
		for _, l := range lessons {
			if existing, ok := s.lessons[l.ID]; ok {
				existing.Deleted = l.Deleted
				s.lessons[l.ID] = existing
			}
		}
		return nil
	})
}

func (r courseRepo) AddLesson(lesson domain.Lesson) {
	r.u.stage(func(s *state) error { return insertLesson(s, lesson) })
}

func (r courseRepo) UpdateLesson(lesson domain.Lesson) {
	r.u.stage(func(s *state) error {
		if _, ok := s.lessons[lesson.ID]; !ok {
			return domain.ErrNotFound
		}
		s.lessons[lesson.ID] = lesson
		return nil
	})
}

func insertLesson(s *state, lesson domain.Lesson) error {
	if _, ok := s.courses[lesson.CourseID]; !ok {
		return conflict("lesson %s references unknown course %s", lesson.ID, lesson.CourseID)
	}
	if _, ok := s.lessons[lesson.ID]; ok {
		return conflict("lesson %s", lesson.ID)
	}
	for _, l := range s.lessons {
		if l.CourseID == lesson.CourseID && !l.Deleted && !lesson.Deleted && l.Name == lesson.Name {
			return conflict("active lesson named %q", lesson.Name)
		}
	}
	s.lessons[lesson.ID] = lesson
	return nil
}

func lessonsOf(s *state, courseID uuid.UUID, includeDeleted bool) []domain.Lesson {
	var out []domain.Lesson
	for _, l := range s.lessons {
		if l.CourseID == courseID && (includeDeleted || !l.Deleted) {
			out = append(out, l)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].Name < out[j].Name
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

type progressRepo struct{ u *unitOfWork }

func (r progressRepo) Get(_ context.Context, lessonID, studentID uuid.UUID) (*domain.ProgressLesson, error) {
	var found *domain.ProgressLesson
	r.u.store.read(func(s *state) {
		for _, p := range s.progress {
			if p.LessonID == lessonID && p.StudentID == studentID {
				found = &p
				return
			}
		}
	})
	if found == nil {
		return nil, domain.ErrNotFound
	}
	return found, nil
}

func (r progressRepo) ListByCourse(_ context.Context, courseID, studentID uuid.UUID) ([]domain.ProgressLesson, error) {
	var out []domain.ProgressLesson
	r.u.store.read(func(s *state) {
		for _, l := range lessonsOf(s, courseID, true) {
			for _, p := range s.progress {
				if p.LessonID == l.ID && p.StudentID == studentID {
					out = append(out, p)
				}
			}
		}
	})
	return out, nil
}

func (r progressRepo) Add(progress domain.ProgressLesson) {
	r.u.stage(func(s *state) error {
		for _, p := range s.progress {
			if p.ID == progress.ID || (p.LessonID == progress.LessonID && p.StudentID == progress.StudentID) {
				return conflict("progress for lesson %s", progress.LessonID)
			}
		}
		s.progress[progress.ID] = progress
		return nil
	})
}

func (r progressRepo) Update(progress domain.ProgressLesson, from domain.ProgressStatus) {
	r.u.stage(func(s *state) error {
		stored, ok := s.progress[progress.ID]
		if !ok {
			return domain.ErrNotFound
		}
		if stored.Status != from {
			return conflict("progress %s is %s, expected %s", progress.ID, stored.Status, from)
		}
		s.progress[progress.ID] = progress
		return nil
	})
}

type registrationRepo struct{ u *unitOfWork }

func (r registrationRepo) Get(_ context.Context, studentID, courseID uuid.UUID) (*domain.Registration, error) {
	var found *domain.Registration
	r.u.store.read(func(s *state) {
		for _, reg := range s.registrations {
			if reg.StudentID == studentID && reg.CourseID == courseID {
				found = &reg
				return
			}
		}
	})
	if found == nil {
		return nil, domain.ErrNotFound
	}
	return found, nil
}

func (r registrationRepo) ListByStudent(_ context.Context, studentID uuid.UUID) ([]domain.Registration, error) {
	return r.filter(func(reg domain.Registration) bool { return reg.StudentID == studentID }), nil
}

func (r registrationRepo) ListAll(_ context.Context) ([]domain.Registration, error) {
	return r.filter(func(domain.Registration) bool { return true }), nil
}

func (r registrationRepo) ListInProgress(_ context.Context) ([]domain.Registration, error) {
	return r.filter(func(reg domain.Registration) bool { return reg.Status == domain.InProgress }), nil
}

func (r registrationRepo) filter(keep func(domain.Registration) bool) []domain.Registration {
	var out []domain.Registration
	r.u.store.read(func(s *state) {
		for _, reg := range s.registrations {
			if keep(reg) {
				out = append(out, reg)
			}
		}
	})
	sort.Slice(out, func(i, j int) bool { return out[i].RegistrationTime.Before(out[j].RegistrationTime) })
	return out
}

func (r registrationRepo) GetCertification(_ context.Context, studentID, courseID uuid.UUID) (*domain.Certification, error) {
	var found *domain.Certification
	r.u.store.read(func(s *state) {
		for _, c := range s.certifications {
			if c.StudentID == studentID && c.CourseID == courseID {
				found = &c
				return
			}
		}
	})
	if found == nil {
		return nil, domain.ErrNotFound
	}
	return found, nil
}

func (r registrationRepo) Add(registration domain.Registration) {
	r.u.stage(func(s *state) error {
		for _, reg := range s.registrations {
			if reg.ID == registration.ID || (reg.StudentID == registration.StudentID && reg.CourseID == registration.CourseID) {
				return conflict("registration of student %s in course %s", registration.StudentID, registration.CourseID)
			}
		}
		s.registrations[registration.ID] = registration
		return nil
	})
}

func (r registrationRepo) Update(registration domain.Registration) {
	r.u.stage(func(s *state) error {
		if _, ok := s.registrations[registration.ID]; !ok {
			return domain.ErrNotFound
		}
		s.registrations[registration.ID] = registration
		return nil
	})
}

func (r registrationRepo) AddCertification(certification domain.Certification) {
	r.u.stage(func(s *state) error {
		for _, c := range s.certifications {
			if c.StudentID == certification.StudentID && c.CourseID == certification.CourseID {
				return conflict("certification of student %s in course %s", certification.StudentID, certification.CourseID)
			}
		}
		s.certifications[certification.ID] = certification
		return nil
	})
}

type paymentRepo struct{ u *unitOfWork }

func (r paymentRepo) GetByID(_ context.Context, id uuid.UUID) (*domain.Payment, error) {
	var found *domain.Payment
	r.u.store.read(func(s *state) {
		p, ok := s.payments[id]
		if !ok {
			return
		}
		for _, tx := range s.transactions {
			if tx.PaymentID == id {
				p.Transaction = &tx
			}
		}
		found = &p
	})
	if found == nil {
		return nil, domain.ErrNotFound
	}
	return found, nil
}

func (r paymentRepo) Exists(_ context.Context, studentID, courseID uuid.UUID) (bool, error) {
	exists := false
	r.u.store.read(func(s *state) {
		for _, p := range s.payments {
			if p.StudentID == studentID && p.CourseID == courseID {
				exists = true
				return
			}
		}
	})
	return exists, nil
}

func (r paymentRepo) Add(payment domain.Payment) {
	payment.Transaction = nil
	r.u.stage(func(s *state) error {
		if _, ok := s.payments[payment.ID]; ok {
			return conflict("payment %s", payment.ID)
		}
		s.payments[payment.ID] = payment
		return nil
	})
}

func (r paymentRepo) AddTransaction(tx domain.Transaction) {
	r.u.stage(func(s *state) error {
		if _, ok := s.payments[tx.PaymentID]; !ok {
			return conflict("transaction %s references unknown payment %s", tx.ID, tx.PaymentID)
		}
		if _, ok := s.transactions[tx.ID]; ok {
			return conflict("transaction %s", tx.ID)
		}
		s.transactions[tx.ID] = tx
		return nil
	})
}
