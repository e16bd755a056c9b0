package main

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/joho/godotenv"

	"github.com/certlane/certlane-exam/internal/admission"
	api "github.com/certlane/certlane-exam/internal/api/http"
	authmw "github.com/certlane/certlane-exam/internal/auth/middleware"
	"github.com/certlane/certlane-exam/internal/config"
	"github.com/certlane/certlane-exam/internal/db"
	"github.com/certlane/certlane-exam/internal/exam"
	"github.com/certlane/certlane-exam/internal/question"
	"github.com/certlane/certlane-exam/internal/rbac"
)

func main() {
	_ = godotenv.Load()
	cfg := config.FromEnv()

	// --- DB ---
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	dbh, err := db.Open(ctx, db.Driver(cfg.DBDriver), cfg.DBDSN)
	if err != nil {
		log.Fatalf("db open failed: %v", err)
	}

	// --- Engine wiring ---
	questions := question.NewSQLStore(dbh)
	selector := exam.NewSelector(questions)
	attempts := exam.NewSQLStore(dbh, selector)

	settings := &config.Settings{
		Cache: config.NewCache(config.NewSQLSource(dbh), time.Duration(cfg.SettingsTTLSeconds)*time.Second),
		Cfg:   cfg,
	}
	admissions := admission.NewService(
		admission.NewSQLStore(dbh),
		attempts,
		admission.PolicyByName(cfg.AdmissionPolicy),
		settings,
	)
	attempts.SetCompletionHook(admissions.ResultCallback)

	// --- Auth ---
	authSvc := authmw.NewAuthService(cfg.AuthSecret)

	// --- Router ---
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, middleware.Logger, middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Post("/auth/login", authmw.LoginHandler(authSvc, dbh))

	// Protected API (JWT → subject/role in context → RBAC)
	r.Group(func(pr chi.Router) {
		pr.Use(authmw.JWTMiddleware(authSvc))
		pr.Use(authmw.AttachRoleFromDB(dbh, true))

		// Candidate session flow
		pr.With(rbac.Require("attempt:start")).
			Post("/attempts", api.StartAttemptHandler(attempts, settings))
		pr.With(rbac.RequireAny("attempt:view-own", "attempt:view-all")).
			Get("/attempts/{attemptID}", api.LoadAttemptHandler(attempts))
		pr.With(rbac.Require("answer:save")).
			Put("/responses/{responseID}", api.SaveAnswerHandler(attempts))
		pr.With(rbac.Require("attempt:submit")).
			Post("/attempts/{attemptID}/submit", api.SubmitAttemptHandler(attempts))

		// Application lifecycle
		pr.With(rbac.Require("application:create")).
			Post("/applications", api.CreateApplicationHandler(admissions))
		pr.With(rbac.Require("application:update-own")).
			Put("/applications/{applicationID}", api.UpdateApplicationHandler(admissions))
		pr.With(rbac.Require("application:submit-own")).
			Post("/applications/{applicationID}/submit", api.SubmitApplicationHandler(admissions))
		pr.With(rbac.Require("application:admit")).
			Post("/applications/{applicationID}/admit", api.AdmitApplicationHandler(admissions))
		pr.With(rbac.Require("application:start-exam")).
			Post("/applications/{applicationID}/attempts", api.StartExamHandler(admissions))
		pr.With(rbac.RequireAny("application:view-own", "application:view-all")).
			Get("/applications/{applicationID}", api.ApplicationStatusHandler(admissions))

		// Question bank authoring (admin collaborator)
		pr.With(rbac.Require("question:upsert")).
			Post("/questions", api.UpsertQuestionsHandler(questions))
	})

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200) })
	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200) })

	log.Printf("listening on %s (db=%s, policy=%s)", cfg.HTTPAddr, cfg.DBDriver, cfg.AdmissionPolicy)
	log.Fatal(http.ListenAndServe(cfg.HTTPAddr, r))
}
