package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"

	"github.com/clinicdesk/clinic-scheduling/internal/identity"
	"github.com/clinicdesk/clinic-scheduling/internal/scheduling"
	"github.com/clinicdesk/clinic-scheduling/internal/survey"
)

type RouterConfig struct {
	Scheduling *scheduling.Service
	Surveys    *survey.Service
	Identity   *identity.Service
	PgPool     *pgxpool.Pool
	Mongo      *mongo.Client
	Redis      *redis.Client
	Logger     *zap.Logger
	Env        string
	Version    string
}

// NewRouter wires the whole HTTP surface. Role gating happens here, in front
// of the services; the services themselves are role-agnostic.
func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware(cfg.Logger))

	health := NewHealthHandler(cfg.PgPool, cfg.Mongo, cfg.Redis, cfg.Env, cfg.Version)
	r.Get("/health/live", health.Liveness)
	r.Get("/health/ready", health.Readiness)

	r.Post("/auth/register", registerHandler(cfg.Identity))
	r.Post("/auth/login", loginHandler(cfg.Identity))

	// Booking calendar is readable without a login.
	r.Get("/slots", listSlotsHandler(cfg.Scheduling))
	r.Get("/practitioners", listPractitionersHandler(cfg.Identity))
	r.Get("/practitioners/{id}", getPractitionerHandler(cfg.Identity))

	r.Group(func(r chi.Router) {
		r.Use(AuthMiddleware(cfg.Identity))

		r.Get("/auth/me", meHandler(cfg.Identity))

		// Slot management belongs to practitioners and admins.
		r.Group(func(r chi.Router) {
			r.Use(RequireRole(identity.RoleDoctor, identity.RoleAdmin))

			r.Post("/slots", createSlotHandler(cfg.Scheduling))
			r.Post("/slots/batch", createSlotsBatchHandler(cfg.Scheduling))
			r.Delete("/slots/{id}", deleteSlotHandler(cfg.Scheduling))
			r.Patch("/slots/{id}/release", setSlotAvailabilityHandler(cfg.Scheduling, true))
			r.Patch("/slots/{id}/block", setSlotAvailabilityHandler(cfg.Scheduling, false))

			r.Get("/visits/pending", listPendingVisitsHandler(cfg.Scheduling))
			r.Patch("/visits/{id}/accept", acceptVisitHandler(cfg.Scheduling))
			r.Patch("/visits/{id}/reject", rejectVisitHandler(cfg.Scheduling))
			r.Patch("/visits/{id}/complete", completeVisitHandler(cfg.Scheduling))
		})

		// Patients book; any signed-in party may inspect or cancel a visit.
		r.Group(func(r chi.Router) {
			r.Use(RequireRole(identity.RolePatient, identity.RoleAdmin))

			r.Post("/visits/reserve", reserveVisitHandler(cfg.Scheduling))
		})

		r.Get("/visits/{id}", getVisitHandler(cfg.Scheduling))
		r.Patch("/visits/{id}/cancel", cancelVisitHandler(cfg.Scheduling))

		// Surveys: patients submit, everyone signed in may read their own,
		// admins manage.
		r.Group(func(r chi.Router) {
			r.Use(RequireRole(identity.RolePatient, identity.RoleAdmin))

			r.Post("/surveys", submitGeneralSurveyHandler(cfg.Surveys))
			r.Post("/surveys/rating", submitRatingSurveyHandler(cfg.Surveys, false))
			r.Post("/surveys/anonymous", submitRatingSurveyHandler(cfg.Surveys, true))
		})

		r.Get("/surveys", listSurveysHandler(cfg.Surveys))
		r.Get("/surveys/{id}", getSurveyHandler(cfg.Surveys))
		r.Get("/surveys/visit/{id}", getVisitSurveyHandler(cfg.Surveys))
		r.Get("/surveys/visit/{id}/eligible", surveyEligibilityHandler(cfg.Surveys))
		r.Get("/surveys/practitioner/{id}/rating", practitionerRatingHandler(cfg.Surveys))

		// Administrative surface.
		r.Group(func(r chi.Router) {
			r.Use(RequireRole(identity.RoleAdmin))

			r.Get("/visits", listVisitsHandler(cfg.Scheduling))
			r.Post("/visits", createVisitHandler(cfg.Scheduling))
			r.Put("/visits/{id}", updateVisitHandler(cfg.Scheduling))
			r.Delete("/visits/{id}", deleteVisitHandler(cfg.Scheduling))

			r.Put("/surveys/{id}", updateSurveyHandler(cfg.Surveys))
			r.Delete("/surveys/{id}", deleteSurveyHandler(cfg.Surveys))

			r.Get("/admin/users", listUsersHandler(cfg.Identity))
			r.Post("/admin/users", createUserHandler(cfg.Identity))
			r.Get("/admin/users/{id}", getUserHandler(cfg.Identity))
			r.Put("/admin/users/{id}", updateUserHandler(cfg.Identity))
			r.Put("/admin/users/{id}/role", changeRoleHandler(cfg.Identity))
			r.Delete("/admin/users/{id}", deleteUserHandler(cfg.Identity))

			r.Post("/practitioners", createPractitionerHandler(cfg.Identity))
			r.Put("/practitioners/{id}", updatePractitionerHandler(cfg.Identity))
			r.Delete("/practitioners/{id}", deletePractitionerHandler(cfg.Identity))

			r.Get("/patients", listPatientsHandler(cfg.Identity))
			r.Get("/patients/{id}", getPatientHandler(cfg.Identity))
			r.Post("/patients", createPatientHandler(cfg.Identity))
			r.Put("/patients/{id}", updatePatientHandler(cfg.Identity))
			r.Delete("/patients/{id}", deletePatientHandler(cfg.Identity))
		})
	})

	return r
}
