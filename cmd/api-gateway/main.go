package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/noah-isme/trivsel-api/api/swagger"
	"github.com/noah-isme/trivsel-api/internal/handler"
	"github.com/noah-isme/trivsel-api/internal/middleware"
	"github.com/noah-isme/trivsel-api/internal/models"
	"github.com/noah-isme/trivsel-api/internal/repository"
	"github.com/noah-isme/trivsel-api/internal/service"
	"github.com/noah-isme/trivsel-api/pkg/cache"
	"github.com/noah-isme/trivsel-api/pkg/config"
	"github.com/noah-isme/trivsel-api/pkg/database"
	"github.com/noah-isme/trivsel-api/pkg/jobs"
	"github.com/noah-isme/trivsel-api/pkg/logger"
	"github.com/noah-isme/trivsel-api/pkg/mailer"
	corsmiddleware "github.com/noah-isme/trivsel-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/trivsel-api/pkg/middleware/requestid"
	"github.com/noah-isme/trivsel-api/pkg/storage"
)

// @title TrivselsTracker API
// @version 1.0.0
// @description Survey-based wellbeing monitoring for FGU students
// @BasePath /api/v1
// @schemes http

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("postgres connection failed", "error", err)
	}
	defer db.Close()

	// Redis is optional: without it every cache layer degrades to pass-through.
	var cacheRepo service.CacheRepository
	cacheEnabled := false
	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Sugar().Warnw("redis unavailable, caching disabled", "error", err)
	} else {
		defer redisClient.Close()
		cacheRepo = repository.NewCacheRepository(redisClient, logr)
		cacheEnabled = true
	}

	// Background context for queue workers and periodic jobs.
	rootCtx, stopBackground := context.WithCancel(context.Background())
	defer stopBackground()

	userRepo := repository.NewUserRepository(db)
	studentRepo := repository.NewStudentRepository(db)
	sessionRepo := repository.NewSessionRepository(db)
	questionRepo := repository.NewQuestionRepository(db)
	scoreRepo := repository.NewScoreRepository(db)
	notificationRepo := repository.NewNotificationRepository(db)
	assignmentRepo := repository.NewAssignmentRepository(db)
	groupRepo := repository.NewGroupRepository(db)
	interventionRepo := repository.NewInterventionRepository(db)
	analyticsRepo := repository.NewAnalyticsRepository(db)
	reportRepo := repository.NewReportRepository(db)

	metricsSvc := service.NewMetricsService()
	cacheSvc := service.NewCacheService(cacheRepo, metricsSvc, 0, logr, cacheEnabled)

	emailWorker := service.NewEmailWorker(mailer.NewFromConfig(cfg.Email, logr), logr)
	emailQueue := jobs.NewQueue("email", emailWorker.Handle, jobs.QueueConfig{
		Workers:    cfg.Jobs.EmailWorkers,
		BufferSize: cfg.Jobs.EmailBuffer,
		MaxRetries: cfg.Jobs.EmailRetries,
		RetryDelay: cfg.Jobs.EmailRetryDelay,
		Logger:     logr,
	})
	emailQueue.Start(rootCtx)
	defer emailQueue.Stop()
	emailSvc := service.NewEmailService(emailQueue, cfg.Survey, logr)

	authSvc := service.NewAuthService(userRepo, nil, logr, service.AuthConfig{
		AccessTokenSecret:  cfg.JWT.Secret,
		AccessTokenExpiry:  cfg.JWT.Expiration,
		RefreshTokenExpiry: cfg.JWT.RefreshExpiration,
		Issuer:             "trivsel-api",
	})
	scoringSvc := service.NewScoringService(scoreRepo, cfg.Survey, logr)
	alertSvc := service.NewAlertService(assignmentRepo, notificationRepo, userRepo, sessionRepo, emailSvc, metricsSvc, logr)
	surveySvc := service.NewSurveyService(sessionRepo, studentRepo, questionRepo, scoringSvc, alertSvc, emailSvc, cacheSvc, metricsSvc, cfg.Survey, nil, logr)
	consentSvc := service.NewConsentService(studentRepo, emailSvc, userRepo, cacheSvc, logr)
	studentSvc := service.NewStudentService(studentRepo, assignmentRepo, sessionRepo, scoreRepo, scoringSvc, emailSvc, cacheSvc, nil, logr)
	questionSvc := service.NewQuestionService(questionRepo, nil, logr)
	assignmentSvc := service.NewAssignmentService(assignmentRepo, studentRepo, userRepo, nil, logr)
	groupSvc := service.NewGroupService(groupRepo, studentRepo, nil, logr)
	interventionSvc := service.NewInterventionService(interventionRepo, studentRepo, nil, logr)
	userSvc := service.NewUserService(userRepo, nil, logr)
	dashboardSvc := service.NewDashboardService(scoreRepo, notificationRepo, cacheSvc, logr, service.DashboardServiceConfig{
		CacheTTL: cfg.Dashboard.CacheTTL,
	})
	analyticsSvc := service.NewAnalyticsService(analyticsRepo, sessionRepo, cacheSvc, metricsSvc, logr, cfg.Analytics.CacheTTL)

	var reportSvc *service.ReportService
	var reportQueue *jobs.Queue
	if cfg.Reports.Enabled {
		store, err := storage.NewLocalStorage(cfg.Reports.StorageDir)
		if err != nil {
			logr.Sugar().Fatalw("report storage init failed", "dir", cfg.Reports.StorageDir, "error", err)
		}
		signer := storage.NewSignedURLSigner(cfg.Reports.SignedURLSecret, cfg.Reports.SignedURLTTL)
		exportSvc := service.NewExportService(analyticsRepo, studentRepo, store, signer, service.ExportConfig{
			APIPrefix: cfg.APIPrefix,
			ResultTTL: cfg.Reports.SignedURLTTL,
		}, logr, nil, nil)

		reportWorker := service.NewReportWorker(reportRepo, exportSvc, cfg.Reports.WorkerRetries, logr)
		reportQueue = jobs.NewQueue("reports", reportWorker.Handle, jobs.QueueConfig{
			Workers:    cfg.Reports.WorkerConcurrency,
			MaxRetries: cfg.Reports.WorkerRetries,
			Logger:     logr,
		})
		reportQueue.Start(rootCtx)
		defer reportQueue.Stop()

		reportSvc = service.NewReportService(reportRepo, assignmentRepo, reportQueue, exportSvc, logr, service.ReportServiceConfig{
			ResultTTL:       cfg.Reports.SignedURLTTL,
			CleanupInterval: time.Hour,
			MaxRetries:      cfg.Reports.WorkerRetries,
		})
		reportSvc.RecoverPendingJobs(rootCtx)
		reportSvc.StartCleanup(rootCtx)
	}

	authHandler := handler.NewAuthHandler(authSvc)
	studentHandler := handler.NewStudentHandler(studentSvc, consentSvc)
	consentHandler := handler.NewConsentHandler(consentSvc)
	surveyHandler := handler.NewSurveyHandler(surveySvc)
	questionHandler := handler.NewQuestionHandler(questionSvc)
	assignmentHandler := handler.NewAssignmentHandler(assignmentSvc)
	groupHandler := handler.NewGroupHandler(groupSvc)
	interventionHandler := handler.NewInterventionHandler(interventionSvc)
	userHandler := handler.NewUserHandler(userSvc)
	dashboardHandler := handler.NewDashboardHandler(dashboardSvc)
	analyticsHandler := handler.NewAnalyticsHandler(analyticsSvc)
	systemHandler := handler.NewSystemHandler(surveySvc, analyticsSvc)
	metricsHandler := handler.NewMetricsHandler(metricsSvc)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsSvc))

	r.GET("/healthz", metricsHandler.Health)
	r.GET("/ready", metricsHandler.Health)
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)

	// Public tokenized flows: no staff auth, the token is the credential.
	api.GET("/survey/:token", surveyHandler.View)
	api.POST("/survey/:token/submit", surveyHandler.Submit)
	api.GET("/consent/:token", consentHandler.Status)
	api.POST("/consent/:token/accept", consentHandler.Accept)
	api.POST("/consent/:token/decline", consentHandler.Decline)

	auth := api.Group("/auth")
	auth.POST("/login", authHandler.Login)
	auth.POST("/refresh", authHandler.Refresh)
	authSession := auth.Group("", middleware.JWT(authSvc))
	authSession.POST("/logout", authHandler.Logout)
	authSession.GET("/me", authHandler.Me)
	authSession.POST("/change-password", authHandler.ChangePassword)

	staff := api.Group("", middleware.JWT(authSvc))

	students := staff.Group("/students")
	students.GET("", studentHandler.List)
	students.POST("", middleware.Audit(userRepo, "create", "student"), studentHandler.Create)
	students.GET("/:id", studentHandler.Get)
	students.PATCH("/:id", middleware.Audit(userRepo, "update", "student"), studentHandler.Update)
	students.DELETE("/:id", middleware.Audit(userRepo, "deactivate", "student"), studentHandler.Delete)
	students.GET("/:id/sessions", studentHandler.Sessions)
	students.GET("/:id/scores", studentHandler.Scores)
	students.GET("/:id/trend", studentHandler.Trend)
	students.POST("/:id/consent-request", middleware.Audit(userRepo, "consent_request", "student"), studentHandler.RequestConsent)

	questions := staff.Group("/questions")
	questions.GET("", questionHandler.List)
	questions.GET("/:id", questionHandler.Get)
	questionAdmin := questions.Group("", middleware.RequireRoles(models.RoleAdmin))
	questionAdmin.POST("", middleware.Audit(userRepo, "create", "question"), questionHandler.Create)
	questionAdmin.PATCH("/:id", middleware.Audit(userRepo, "update", "question"), questionHandler.Update)
	questionAdmin.DELETE("/:id", middleware.Audit(userRepo, "delete", "question"), questionHandler.Delete)
	questionAdmin.POST("/reorder", middleware.Audit(userRepo, "reorder", "question"), questionHandler.Reorder)

	assignments := staff.Group("/assignments")
	assignments.GET("", assignmentHandler.List)
	assignments.GET("/student/:studentId", assignmentHandler.ListForStudent)
	assignmentAdmin := assignments.Group("", middleware.RequireRoles(models.RoleAdmin))
	assignmentAdmin.POST("", middleware.Audit(userRepo, "create", "assignment"), assignmentHandler.Create)
	assignmentAdmin.DELETE("/:id", middleware.Audit(userRepo, "delete", "assignment"), assignmentHandler.Delete)

	groups := staff.Group("/groups")
	groups.GET("", groupHandler.List)
	groups.GET("/:id", groupHandler.Get)
	groups.GET("/:id/members", groupHandler.Members)
	groupAdmin := groups.Group("", middleware.RequireRoles(models.RoleAdmin))
	groupAdmin.POST("", middleware.Audit(userRepo, "create", "group"), groupHandler.Create)
	groupAdmin.PATCH("/:id", middleware.Audit(userRepo, "update", "group"), groupHandler.Update)
	groupAdmin.DELETE("/:id", middleware.Audit(userRepo, "delete", "group"), groupHandler.Delete)
	groupAdmin.POST("/:id/members/:studentId", middleware.Audit(userRepo, "add_member", "group"), groupHandler.AddMember)
	groupAdmin.DELETE("/:id/members/:studentId", middleware.Audit(userRepo, "remove_member", "group"), groupHandler.RemoveMember)

	dashboard := staff.Group("/dashboard", middleware.WithResponseMeta())
	dashboard.GET("/overview", dashboardHandler.Overview)
	dashboard.GET("/high-risk", dashboardHandler.HighRisk)
	dashboard.GET("/alerts", dashboardHandler.Alerts)
	dashboard.GET("/alerts/summary", dashboardHandler.AlertSummary)
	dashboard.POST("/alerts/:id/read", dashboardHandler.MarkAlertRead)

	analytics := staff.Group("/analytics", middleware.RequireRoles(models.RoleAdmin, models.RoleAnalyst), middleware.WithResponseMeta())
	analytics.GET("/summary", analyticsHandler.Summary)
	analytics.GET("/export", analyticsHandler.Export)

	if reportSvc != nil {
		reportHandler := handler.NewReportHandler(reportSvc)
		reports := staff.Group("/reports")
		reports.GET("", reportHandler.List)
		reports.POST("", middleware.Audit(userRepo, "create", "report"), reportHandler.Create)
		reports.GET("/:id", reportHandler.Status)
		reports.GET("/:id/download", reportHandler.Download)
	}

	interventions := staff.Group("/interventions")
	interventions.GET("", interventionHandler.List)
	interventions.POST("", middleware.Audit(userRepo, "create", "intervention"), interventionHandler.Create)
	interventions.PATCH("/:id", middleware.Audit(userRepo, "update", "intervention"), interventionHandler.Update)

	users := staff.Group("/users")
	users.GET("", middleware.RequireRoles(models.RoleAdmin), userHandler.List)
	users.GET("/:id", middleware.RBAC("SELF", string(models.RoleAdmin)), userHandler.Get)
	users.POST("", middleware.RequireRoles(models.RoleAdmin), middleware.Audit(userRepo, "create", "user"), userHandler.Create)
	users.PATCH("/:id", middleware.RequireRoles(models.RoleAdmin), middleware.Audit(userRepo, "update", "user"), userHandler.Update)
	users.DELETE("/:id", middleware.RequireRoles(models.RoleAdmin), middleware.Audit(userRepo, "delete", "user"), userHandler.Delete)

	system := staff.Group("/system", middleware.RequireRoles(models.RoleAdmin))
	system.POST("/send-surveys", middleware.Audit(userRepo, "send_surveys", "system"), systemHandler.SendSurveys)
	system.POST("/send-reminders", middleware.Audit(userRepo, "send_reminders", "system"), systemHandler.SendReminders)
	system.POST("/process-expired", middleware.Audit(userRepo, "process_expired", "system"), systemHandler.ProcessExpired)
	system.GET("/stats", systemHandler.Stats)

	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logr.Sugar().Infow("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Sugar().Errorw("forced shutdown", "error", err)
	}
	stopBackground()
	logr.Sugar().Infow("server stopped")
}
