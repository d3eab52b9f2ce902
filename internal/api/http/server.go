// Package http exposes grading, CGPA planning and mark entry over a chi
// router.
package http

import (
	"database/sql"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/mind-engage/satresults/internal/audit"
	auth "github.com/mind-engage/satresults/internal/auth/middleware"
	"github.com/mind-engage/satresults/internal/grading"
	"github.com/mind-engage/satresults/internal/marks"
	"github.com/mind-engage/satresults/internal/metrics"
	"github.com/mind-engage/satresults/internal/plan"
	"github.com/mind-engage/satresults/internal/rbac"
	"github.com/mind-engage/satresults/internal/users"
)

// Deps is everything the router needs. DB is only pinged by /readyz and may
// be nil.
type Deps struct {
	Log         *zap.Logger
	Auth        *auth.AuthService
	Credentials auth.CredentialsFunc // nil disables /auth/login
	Scale       *grading.Scale
	Marks       *marks.Service
	Plans       *plan.Service
	Users       *users.Repo
	Audit       audit.Recorder
	DB          *sql.DB
	CORSOrigins []string
}

type server struct {
	Deps
}

func NewRouter(d Deps) http.Handler {
	if d.Log == nil {
		d.Log = zap.NewNop()
	}
	if d.Audit == nil {
		d.Audit = audit.Nop{}
	}
	if d.Scale == nil {
		d.Scale = grading.Default()
	}
	s := &server{Deps: d}

	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, requestLogger(d.Log), middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   d.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	if d.Credentials != nil {
		r.Post("/auth/login", auth.LoginHandler(d.Auth, d.Credentials))
	}

	r.Group(func(pr chi.Router) {
		pr.Use(auth.JWTMiddleware(d.Auth))

		pr.With(rbac.Require(rbac.PermGradesView)).Get("/grades/scale", s.getScale)
		pr.With(rbac.Require(rbac.PermGradesView)).Post("/grades/lookup", s.lookupGrades)

		pr.With(rbac.Require(rbac.PermCGPACompute)).Post("/cgpa/plan", s.computePlan)

		pr.Route("/plans/me", func(pl chi.Router) {
			pl.With(rbac.Require(rbac.PermPlanRead)).Get("/", s.getMyPlan)
			pl.With(rbac.Require(rbac.PermPlanRead)).Get("/evaluation", s.evaluateMyPlan)
			pl.With(rbac.Require(rbac.PermPlanWrite)).Put("/", s.putMyPlan)
			pl.With(rbac.Require(rbac.PermPlanWrite)).Post("/courses", s.addCourse)
			pl.With(rbac.Require(rbac.PermPlanWrite)).Put("/courses/{courseID}", s.updateCourse)
			pl.With(rbac.Require(rbac.PermPlanWrite)).Delete("/courses/{courseID}", s.removeCourse)
		})

		pr.With(rbac.Require(rbac.PermCriteriaView)).Get("/criteria/{name}", s.getCriteria)
		pr.With(rbac.Require(rbac.PermCriteriaEdit)).Put("/criteria/{name}", s.putCriteria)

		pr.Route("/marks", func(mr chi.Router) {
			mr.With(rbac.RequireAny(rbac.PermMarksViewAll, rbac.PermMarksViewOwn)).Get("/", s.listMarks)
			mr.With(rbac.Require(rbac.PermMarksEnter)).Post("/preview", s.previewFinal)
			mr.With(rbac.Require(rbac.PermMarksEnter)).Post("/batch", s.saveMarks)
			mr.With(rbac.Require(rbac.PermMarksSubmit)).Post("/submit", s.submitMarks)
			mr.With(rbac.Require(rbac.PermMarksFinals)).Post("/finals", s.computeFinals)
		})

		pr.With(rbac.Require(rbac.PermUsersUpsert)).Post("/users/bulk", s.bulkUpsertUsers)
		pr.With(rbac.Require(rbac.PermUsersList)).Get("/users", s.listUsers)
		pr.With(rbac.Require(rbac.PermPasswordSelf)).Post("/users/me/password", s.changePassword)
	})

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
	r.Get("/readyz", s.ready)
	r.Handle("/metrics", promhttp.Handler())
	return r
}

func (s *server) ready(w http.ResponseWriter, r *http.Request) {
	if s.DB != nil {
		if err := s.DB.PingContext(r.Context()); err != nil {
			s.Log.Warn("readiness ping failed", zap.Error(err))
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
	}
	w.WriteHeader(http.StatusOK)
}

// requestLogger logs one line per request and records its duration by route
// pattern.
func requestLogger(log *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			route := r.URL.Path
			if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
				route = rc.RoutePattern()
			}
			elapsed := time.Since(start)
			metrics.HTTPDuration.WithLabelValues(r.Method, route, strconv.Itoa(status)).Observe(elapsed.Seconds())
			log.Info("http request",
				zap.String("request_id", middleware.GetReqID(r.Context())),
				zap.String("method", r.Method),
				zap.String("route", route),
				zap.Int("status", status),
				zap.Int("bytes", ww.BytesWritten()),
				zap.Duration("duration", elapsed),
			)
		})
	}
}
