package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"academy-platform/internal/adapters/messaging"
	"academy-platform/internal/app"
	"academy-platform/internal/core/domain"
	"academy-platform/internal/core/ports"
	"academy-platform/internal/notification"
	"academy-platform/internal/observability"
)

const (
	MsgPaymentNotFound = "No approved payment found for this course"
	msgRequestFailed   = "The request could not be completed"
)

type CourseService interface {
	AddCourse(ctx context.Context, cmd app.AddCourseCommand) (uuid.UUID, bool, error)
	GetCourse(ctx context.Context, id uuid.UUID) (*domain.Course, error)
	ListCourses(ctx context.Context) ([]domain.Course, error)
	UpdateCourse(ctx context.Context, cmd app.UpdateCourseCommand) (bool, error)
	RemoveCourse(ctx context.Context, courseID uuid.UUID) (bool, error)
	AddLesson(ctx context.Context, cmd app.AddLessonCommand) (uuid.UUID, bool, error)
	DeleteLesson(ctx context.Context, courseID, lessonID uuid.UUID) (bool, error)
}

type LessonService interface {
	StartLesson(ctx context.Context, lessonID, studentID uuid.UUID) (bool, error)
	FinishLesson(ctx context.Context, lessonID, studentID uuid.UUID) (bool, error)
	CreateProgressByCourse(ctx context.Context, courseID, studentID uuid.UUID) (int, error)
	LessonProgress(ctx context.Context, courseID, studentID uuid.UUID) ([]domain.ProgressLesson, error)
}

type RegistrationService interface {
	Register(ctx context.Context, studentID, courseID uuid.UUID) (bool, error)
	FinishCourse(ctx context.Context, studentID, courseID uuid.UUID) (bool, error)
	Registrations(ctx context.Context, studentID uuid.UUID) ([]domain.Registration, error)
	AllRegistrations(ctx context.Context) ([]domain.Registration, error)
	Certification(ctx context.Context, studentID, courseID uuid.UUID) (*domain.Certification, error)
}

type PaymentChecker interface {
	PaymentExists(ctx context.Context, studentID, courseID uuid.UUID) (bool, error)
}

// Handler is the student and admin facing HTTP API.
type Handler struct {
	courses       CourseService
	lessons       LessonService
	registrations RegistrationService
	payments      PaymentChecker
	bus           ports.MessageBus
	logger        *slog.Logger
}

func NewHandler(
	courses CourseService,
	lessons LessonService,
	registrations RegistrationService,
	payments PaymentChecker,
	bus ports.MessageBus,
	logger *slog.Logger,
) *Handler {
	return &Handler{
		courses:       courses,
		lessons:       lessons,
		registrations: registrations,
		payments:      payments,
		bus:           bus,
		logger:        logger,
	}
}

// RegisterRoutes mounts the API under r. authn must store Claims in the request context.
func (h *Handler) RegisterRoutes(r chi.Router, authn func(http.Handler) http.Handler) {
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"}, h.logger)
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(authn)
		r.Use(WithNotifications)

		r.Get("/courses", h.listCourses)
		r.Get("/courses/{courseID}", h.getCourse)

		r.Group(func(r chi.Router) {
			r.Use(RequireRole("admin", h.logger))
			r.Post("/courses", h.addCourse)
			r.Put("/courses/{courseID}", h.updateCourse)
			r.Delete("/courses/{courseID}", h.removeCourse)
			r.Post("/courses/{courseID}/lessons", h.addLesson)
			r.Delete("/courses/{courseID}/lessons/{lessonID}", h.deleteLesson)
			r.Get("/admin/registrations", h.allRegistrations)
		})

		r.Post("/courses/{courseID}/payments", h.payCourse)
		r.Post("/courses/{courseID}/registrations", h.registerToCourse)
		r.Post("/courses/{courseID}/progress", h.createProgress)
		r.Get("/courses/{courseID}/progress", h.courseProgress)
		r.Post("/courses/{courseID}/finish", h.finishCourse)
		r.Get("/courses/{courseID}/certification", h.certification)
		r.Post("/lessons/{lessonID}/start", h.startLesson)
		r.Post("/lessons/{lessonID}/finish", h.finishLesson)
		r.Get("/registrations", h.myRegistrations)
	})
}

// WithNotifications gives every request its own notification collector.
func WithNotifications(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx, _ := notification.WithCollector(r.Context())
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

type courseRequest struct {
	Name        string  `json:"name"`
	Description string  `json:"description"`
	Price       float64 `json:"price"`
}

type lessonRequest struct {
	Name       string  `json:"name"`
	Subject    string  `json:"subject"`
	TotalHours float64 `json:"total_hours"`
}

type paymentRequest struct {
	CardName           string `json:"card_name"`
	CardNumber         string `json:"card_number"`
	CardExpirationDate string `json:"card_expiration_date"`
	CardCVV            string `json:"card_cvv"`
}

type lessonResponse struct {
	ID         uuid.UUID `json:"id"`
	Name       string    `json:"name"`
	Subject    string    `json:"subject"`
	TotalHours float64   `json:"total_hours"`
}

type courseResponse struct {
	ID          uuid.UUID        `json:"id"`
	Name        string           `json:"name"`
	Description string           `json:"description"`
	Price       float64          `json:"price"`
	Lessons     []lessonResponse `json:"lessons"`
}

type progressResponse struct {
	LessonID  uuid.UUID `json:"lesson_id"`
	Status    string    `json:"status"`
	UpdatedAt time.Time `json:"updated_at"`
}

type registrationResponse struct {
	ID               uuid.UUID `json:"id"`
	StudentID        uuid.UUID `json:"student_id"`
	CourseID         uuid.UUID `json:"course_id"`
	RegistrationTime time.Time `json:"registration_time"`
	Status           string    `json:"status"`
}

type certificationResponse struct {
	CourseID          uuid.UUID `json:"course_id"`
	StudentID         uuid.UUID `json:"student_id"`
	CertificationDate time.Time `json:"certification_date"`
	CertificationCode string    `json:"certification_code"`
}

// ErrorsResponse carries the notifications raised by a rejected command.
type ErrorsResponse struct {
	Errors []string `json:"errors"`
}

func (h *Handler) listCourses(w http.ResponseWriter, r *http.Request) {
	courses, err := h.courses.ListCourses(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	out := make([]courseResponse, 0, len(courses))
	for i := range courses {
		out = append(out, toCourseResponse(&courses[i]))
	}
	writeJSON(w, http.StatusOK, out, h.logger)
}

func (h *Handler) getCourse(w http.ResponseWriter, r *http.Request) {
	courseID, ok := h.pathID(w, r, "courseID")
	if !ok {
		return
	}
	course, err := h.courses.GetCourse(r.Context(), courseID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toCourseResponse(course), h.logger)
}

func (h *Handler) addCourse(w http.ResponseWriter, r *http.Request) {
	var req courseRequest
	if !h.decode(w, r, &req) {
		return
	}
	id, ok, err := h.courses.AddCourse(r.Context(), app.AddCourseCommand{
		Name:        req.Name,
		Description: req.Description,
		Price:       req.Price,
	})
	h.created(w, r, id, ok, err)
}

func (h *Handler) updateCourse(w http.ResponseWriter, r *http.Request) {
	courseID, ok := h.pathID(w, r, "courseID")
	if !ok {
		return
	}
	var req courseRequest
	if !h.decode(w, r, &req) {
		return
	}
	ok, err := h.courses.UpdateCourse(r.Context(), app.UpdateCourseCommand{
		CourseID:    courseID,
		Name:        req.Name,
		Description: req.Description,
		Price:       req.Price,
	})
	h.done(w, r, ok, err, http.StatusNoContent)
}

func (h *Handler) removeCourse(w http.ResponseWriter, r *http.Request) {
	courseID, ok := h.pathID(w, r, "courseID")
	if !ok {
		return
	}
	ok, err := h.courses.RemoveCourse(r.Context(), courseID)
	h.done(w, r, ok, err, http.StatusNoContent)
}

func (h *Handler) addLesson(w http.ResponseWriter, r *http.Request) {
	courseID, ok := h.pathID(w, r, "courseID")
	if !ok {
		return
	}
	var req lessonRequest
	if !h.decode(w, r, &req) {
		return
	}
	id, ok, err := h.courses.AddLesson(r.Context(), app.AddLessonCommand{
		CourseID:   courseID,
		Name:       req.Name,
		Subject:    req.Subject,
		TotalHours: req.TotalHours,
	})
	h.created(w, r, id, ok, err)
}

func (h *Handler) deleteLesson(w http.ResponseWriter, r *http.Request) {
	courseID, ok := h.pathID(w, r, "courseID")
	if !ok {
		return
	}
	lessonID, ok := h.pathID(w, r, "lessonID")
	if !ok {
		return
	}
	ok, err := h.courses.DeleteLesson(r.Context(), courseID, lessonID)
	h.done(w, r, ok, err, http.StatusNoContent)
}

// payCourse asks the payments worker to settle the course price and waits for its answer.
func (h *Handler) payCourse(w http.ResponseWriter, r *http.Request) {
	studentID, ok := h.student(w, r)
	if !ok {
		return
	}
	courseID, ok := h.pathID(w, r, "courseID")
	if !ok {
		return
	}
	var req paymentRequest
	if !h.decode(w, r, &req) {
		return
	}

	course, err := h.courses.GetCourse(r.Context(), courseID)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	resp, err := messaging.Request[domain.PaymentRequested, domain.ResponseMessage](r.Context(), h.bus, domain.TopicPaymentRequested, domain.PaymentRequested{
		CourseID:           course.ID,
		StudentID:          studentID,
		CardName:           req.CardName,
		CardNumber:         req.CardNumber,
		CardExpirationDate: req.CardExpirationDate,
		CardCVV:            req.CardCVV,
		Total:              course.Price,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if !resp.Success {
		writeJSON(w, http.StatusUnprocessableEntity, ErrorsResponse{Errors: resp.Errors}, h.logger)
		return
	}
	writeJSON(w, http.StatusOK, resp, h.logger)
}

// registerToCourse enrolls the caller once the course exists and is paid for.
func (h *Handler) registerToCourse(w http.ResponseWriter, r *http.Request) {
	studentID, ok := h.student(w, r)
	if !ok {
		return
	}
	courseID, ok := h.pathID(w, r, "courseID")
	if !ok {
		return
	}

	if _, err := h.courses.GetCourse(r.Context(), courseID); err != nil {
		h.fail(w, r, err)
		return
	}
	paid, err := h.payments.PaymentExists(r.Context(), studentID, courseID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if !paid {
		writeJSON(w, http.StatusBadRequest, ErrorsResponse{Errors: []string{MsgPaymentNotFound}}, h.logger)
		return
	}

	ok, err = h.registrations.Register(r.Context(), studentID, courseID)
	h.done(w, r, ok, err, http.StatusCreated)
}

func (h *Handler) createProgress(w http.ResponseWriter, r *http.Request) {
	studentID, ok := h.student(w, r)
	if !ok {
		return
	}
	courseID, ok := h.pathID(w, r, "courseID")
	if !ok {
		return
	}
	created, err := h.lessons.CreateProgressByCourse(r.Context(), courseID, studentID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if h.rejected(w, r) {
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"created": created}, h.logger)
}

func (h *Handler) courseProgress(w http.ResponseWriter, r *http.Request) {
	studentID, ok := h.student(w, r)
	if !ok {
		return
	}
	courseID, ok := h.pathID(w, r, "courseID")
	if !ok {
		return
	}
	progress, err := h.lessons.LessonProgress(r.Context(), courseID, studentID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	out := make([]progressResponse, 0, len(progress))
	for _, p := range progress {
		out = append(out, progressResponse{LessonID: p.LessonID, Status: p.Status.String(), UpdatedAt: p.UpdatedAt})
	}
	writeJSON(w, http.StatusOK, out, h.logger)
}

func (h *Handler) startLesson(w http.ResponseWriter, r *http.Request) {
	studentID, ok := h.student(w, r)
	if !ok {
		return
	}
	lessonID, ok := h.pathID(w, r, "lessonID")
	if !ok {
		return
	}
	ok, err := h.lessons.StartLesson(r.Context(), lessonID, studentID)
	h.done(w, r, ok, err, http.StatusNoContent)
}

func (h *Handler) finishLesson(w http.ResponseWriter, r *http.Request) {
	studentID, ok := h.student(w, r)
	if !ok {
		return
	}
	lessonID, ok := h.pathID(w, r, "lessonID")
	if !ok {
		return
	}
	ok, err := h.lessons.FinishLesson(r.Context(), lessonID, studentID)
	h.done(w, r, ok, err, http.StatusNoContent)
}

func (h *Handler) finishCourse(w http.ResponseWriter, r *http.Request) {
	studentID, ok := h.student(w, r)
	if !ok {
		return
	}
	courseID, ok := h.pathID(w, r, "courseID")
	if !ok {
		return
	}
	ok, err := h.registrations.FinishCourse(r.Context(), studentID, courseID)
	h.done(w, r, ok, err, http.StatusNoContent)
}

func (h *Handler) certification(w http.ResponseWriter, r *http.Request) {
	studentID, ok := h.student(w, r)
	if !ok {
		return
	}
	courseID, ok := h.pathID(w, r, "courseID")
	if !ok {
		return
	}
	cert, err := h.registrations.Certification(r.Context(), studentID, courseID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, certificationResponse{
		CourseID:          cert.CourseID,
		StudentID:         cert.StudentID,
		CertificationDate: cert.CertificationDate,
		CertificationCode: cert.CertificationCode,
	}, h.logger)
}

func (h *Handler) myRegistrations(w http.ResponseWriter, r *http.Request) {
	studentID, ok := h.student(w, r)
	if !ok {
		return
	}
	regs, err := h.registrations.Registrations(r.Context(), studentID)
	h.writeRegistrations(w, r, regs, err)
}

func (h *Handler) allRegistrations(w http.ResponseWriter, r *http.Request) {
	regs, err := h.registrations.AllRegistrations(r.Context())
	h.writeRegistrations(w, r, regs, err)
}

func (h *Handler) writeRegistrations(w http.ResponseWriter, r *http.Request, regs []domain.Registration, err error) {
	if err != nil {
		h.fail(w, r, err)
		return
	}
	out := make([]registrationResponse, 0, len(regs))
	for _, reg := range regs {
		out = append(out, registrationResponse{
			ID:               reg.ID,
			StudentID:        reg.StudentID,
			CourseID:         reg.CourseID,
			RegistrationTime: reg.RegistrationTime,
			Status:           reg.Status.String(),
		})
	}
	writeJSON(w, http.StatusOK, out, h.logger)
}

func toCourseResponse(c *domain.Course) courseResponse {
	active := c.ActiveLessons()
	lessons := make([]lessonResponse, 0, len(active))
	for _, l := range active {
		lessons = append(lessons, lessonResponse{ID: l.ID, Name: l.Name, Subject: l.Subject, TotalHours: l.TotalHours})
	}
	return courseResponse{
		ID:          c.ID,
		Name:        c.Name,
		Description: c.Description,
		Price:       c.Price,
		Lessons:     lessons,
	}
}

// created answers 201 with the new id, or the rejection.
func (h *Handler) created(w http.ResponseWriter, r *http.Request, id uuid.UUID, ok bool, err error) {
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if !ok {
		h.writeRejection(w, r)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]uuid.UUID{"id": id}, h.logger)
}

func (h *Handler) done(w http.ResponseWriter, r *http.Request, ok bool, err error, status int) {
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if !ok {
		h.writeRejection(w, r)
		return
	}
	writeJSON(w, status, nil, h.logger)
}

// rejected writes the collected notifications, if any.
func (h *Handler) rejected(w http.ResponseWriter, r *http.Request) bool {
	c, ok := notification.FromContext(r.Context())
	if !ok || !c.HasNotifications() {
		return false
	}
	writeJSON(w, http.StatusBadRequest, ErrorsResponse{Errors: c.Messages()}, h.logger)
	return true
}

func (h *Handler) writeRejection(w http.ResponseWriter, r *http.Request) {
	if !h.rejected(w, r) {
		writeJSON(w, http.StatusBadRequest, ErrorsResponse{Errors: []string{msgRequestFailed}}, h.logger)
	}
}

// fail maps infrastructure errors to status codes.
func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	logger := observability.LoggerFromContext(r.Context(), h.logger)

	switch {
	case errors.Is(err, domain.ErrNotFound):
		writeJSONError(w, "Not found", http.StatusNotFound, logger)
	case errors.Is(err, domain.ErrConflict):
		writeJSONError(w, "Conflict", http.StatusConflict, logger)
	case errors.Is(err, domain.ErrStorageUnavailable),
		errors.Is(err, domain.ErrBrokerUnavailable),
		errors.Is(err, domain.ErrGatewayUnavailable),
		errors.Is(err, domain.ErrNoResponder),
		errors.Is(err, context.DeadlineExceeded):
		logger.Error("dependency unavailable", "error", err)
		writeJSONError(w, "Service temporarily unavailable", http.StatusServiceUnavailable, logger)
	default:
		logger.Error("request failed", "error", err)
		writeJSONError(w, "Internal server error", http.StatusInternalServerError, logger)
	}
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeJSONError(w, "Invalid request body", http.StatusBadRequest, h.logger)
		return false
	}
	return true
}

func (h *Handler) pathID(w http.ResponseWriter, r *http.Request, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	if err != nil {
		writeJSONError(w, "Invalid "+name, http.StatusBadRequest, h.logger)
		return uuid.Nil, false
	}
	return id, true
}

// student returns the caller id from the token subject.
func (h *Handler) student(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	claims, ok := claimsFromContext(r.Context())
	if !ok {
		writeJSONError(w, "Authorization required", http.StatusUnauthorized, h.logger)
		return uuid.Nil, false
	}
	id, ok := claims.Subject()
	if !ok {
		writeJSONError(w, "Token subject is not a student id", http.StatusForbidden, h.logger)
		return uuid.Nil, false
	}
	return id, true
}
