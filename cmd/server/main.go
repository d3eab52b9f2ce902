package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	api "github.com/mind-engage/satresults/internal/api/http"
	"github.com/mind-engage/satresults/internal/audit"
	auth "github.com/mind-engage/satresults/internal/auth/middleware"
	"github.com/mind-engage/satresults/internal/config"
	"github.com/mind-engage/satresults/internal/db"
	"github.com/mind-engage/satresults/internal/grading"
	"github.com/mind-engage/satresults/internal/logger"
	"github.com/mind-engage/satresults/internal/marks"
	"github.com/mind-engage/satresults/internal/plan"
	"github.com/mind-engage/satresults/internal/users"
)

func main() {
	cfg, err := config.Load(envFile())
	if err != nil {
		// no logger yet
		_, _ = os.Stderr.WriteString(err.Error() + "\n")
		os.Exit(1)
	}
	log, err := logger.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		_, _ = os.Stderr.WriteString(err.Error() + "\n")
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	if err := run(cfg, log); err != nil {
		log.Fatal("server exited", zap.Error(err))
	}
}

func envFile() string {
	if v := os.Getenv("ENV_FILE"); v != "" {
		return v
	}
	return ".env"
}

func run(cfg config.Config, log *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// --- DB ---
	openCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	dbh, err := db.Open(openCtx, db.Driver(cfg.DBDriver), cfg.DBDSN)
	cancel()
	if err != nil {
		return err
	}
	defer dbh.Close()

	// --- Grading ---
	scale, ok := grading.Lookup(cfg.GradeScale)
	if !ok {
		return errors.New("unknown grade scale " + cfg.GradeScale)
	}
	accept := marks.SubjectRefPredicate(marks.IsObjectID)
	if cfg.SubjectRefPattern != "" {
		if accept, err = marks.MatchPattern(cfg.SubjectRefPattern); err != nil {
			return err
		}
	}
	marksSvc := marks.NewService(marks.NewSQLStore(dbh), marks.NewSQLCriteriaStore(dbh), accept, scale)

	// --- Plans ---
	planStore, closeStore, err := openPlanStore(ctx, cfg, dbh)
	if err != nil {
		return err
	}
	defer closeStore()
	plans := plan.NewService(planStore, scale)

	// --- Auth ---
	authSvc := auth.NewAuthService(cfg.AuthHMACSecret, cfg.TokenTTL)
	userRepo := users.NewRepo(dbh)
	var creds auth.CredentialsFunc
	if cfg.EnableLocalAuth {
		creds = auth.FirstMatch(
			auth.AdminCredentials(cfg.AdminUser, cfg.AdminPassHash),
			userCredentials(userRepo),
		)
	}

	h := api.NewRouter(api.Deps{
		Log:         log,
		Auth:        authSvc,
		Credentials: creds,
		Scale:       scale,
		Marks:       marksSvc,
		Plans:       plans,
		Users:       userRepo,
		Audit:       audit.NewEventRepo(dbh),
		DB:          dbh,
		CORSOrigins: cfg.CORSOrigins(),
	})

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errc := make(chan error, 1)
	go func() {
		log.Info("listening",
			zap.String("addr", cfg.HTTPAddr),
			zap.String("mode", string(cfg.Mode)),
			zap.String("db", cfg.DBDriver),
			zap.String("scale", scale.Key()),
			zap.String("plan_store", cfg.PlanStore),
		)
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}
	log.Info("shutting down")
	shutCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return srv.Shutdown(shutCtx)
}

func openPlanStore(ctx context.Context, cfg config.Config, dbh *sql.DB) (plan.Store, func(), error) {
	nop := func() {}
	switch cfg.PlanStore {
	case config.PlanStoreMemory:
		return plan.NewMemoryStore(), nop, nil
	case config.PlanStoreRedis:
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := rdb.Ping(pingCtx).Err(); err != nil {
			_ = rdb.Close()
			return nil, nop, err
		}
		return plan.NewRedisStore(rdb, cfg.PlanTTL), func() { _ = rdb.Close() }, nil
	default:
		return plan.NewSQLStore(dbh), nop, nil
	}
}

// userCredentials checks provisioned users. Unknown users and wrong
// passwords fall through to the next check.
func userCredentials(repo *users.Repo) auth.CredentialsFunc {
	return func(ctx context.Context, username, password string) (string, string, bool, error) {
		u, err := repo.Authenticate(ctx, username, password)
		switch {
		case errors.Is(err, users.ErrInvalidCredentials), errors.Is(err, users.ErrNotFound):
			return "", "", false, nil
		case err != nil:
			return "", "", false, err
		}
		return u.ID, u.Role, true, nil
	}
}
