package router

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/stemsi/tryout-backend/internal/config"
	"github.com/stemsi/tryout-backend/internal/handler"
	"github.com/stemsi/tryout-backend/internal/metrics"
	"github.com/stemsi/tryout-backend/internal/middleware"
	"github.com/stemsi/tryout-backend/internal/model"
	"github.com/stemsi/tryout-backend/internal/response"
	"github.com/stemsi/tryout-backend/internal/service"
)

// Handlers groups all handler instances for route setup.
type Handlers struct {
	Auth        *handler.AuthHandler
	Participant *handler.ParticipantHandler
	Exam        *handler.ExamHandler
	Question    *handler.QuestionHandler
	Dashboard   *handler.DashboardHandler
	WS          *handler.WSHandler
	System      *handler.SystemHandler
}

// SetupRouter configures all Gin route groups with appropriate middlewares.
func SetupRouter(
	authService *service.AuthService,
	loginLimiter *middleware.RateLimiter,
	handlers *Handlers,
	cfg *config.Config,
) *gin.Engine {
	gin.SetMode(cfg.GinMode)
	router := gin.Default()

	// ─── CORS ──────────────────────────────────────────────────────────
	// If AllowedOrigins is set in config, restrict to that list;
	// otherwise allow all (*) so dev works without extra config.
	corsConfig := cors.DefaultConfig()
	if len(cfg.AllowedOrigins) > 0 {
		corsConfig.AllowOrigins = cfg.AllowedOrigins
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Authorization", "X-Request-ID"}
	corsConfig.ExposeHeaders = []string{"X-Request-ID"}
	corsConfig.MaxAge = 12 * time.Hour
	router.Use(cors.New(corsConfig))

	// Apply request ID middleware globally so every response includes metadata.
	router.Use(response.RequestIDMiddleware())
	router.Use(metrics.MetricsMiddleware())
	router.Use(middleware.Brotli())

	router.GET("/health", handlers.System.Health)
	router.GET("/metrics", metrics.PrometheusHandler())

	authenticated := []gin.HandlerFunc{
		middleware.RequireAuth(authService),
		middleware.CheckLoginSession(authService),
	}

	// ─── 1. Auth Group (Public, Rate Limited) ──────────────────────────
	auth := router.Group("/api/v1/auth")
	{
		auth.POST("/login", loginLimiter.Middleware(), handlers.Auth.Login)
		auth.GET("/me", append(authenticated, handlers.Auth.Me)...)
		auth.POST("/logout", append(authenticated, handlers.Auth.Logout)...)
	}

	// ─── 2. Admin Group (JWT + Role) ───────────────────────────────────
	adminAPI := router.Group("/api/v1/admin")
	adminAPI.Use(authenticated...)
	adminAPI.Use(middleware.RequireRole(model.RoleAdmin))
	{
		adminAPI.GET("/dashboard", handlers.Dashboard.GetDashboardData)
		adminAPI.GET("/system", handlers.System.SystemStatus)

		// Exam management
		adminAPI.GET("/exams", handlers.Exam.ListExams)
		adminAPI.POST("/exams", handlers.Exam.CreateExam)
		adminAPI.GET("/exams/:id", handlers.Exam.GetExam)
		adminAPI.PUT("/exams/:id", handlers.Exam.UpdateExam)
		adminAPI.DELETE("/exams/:id", handlers.Exam.DeleteExam)
		adminAPI.POST("/exams/:id/publish", handlers.Exam.PublishExam)

		// Question management
		adminAPI.GET("/exams/:id/questions", handlers.Question.ListQuestions)
		adminAPI.POST("/exams/:id/questions", handlers.Question.CreateQuestion)
		adminAPI.PUT("/questions/:question_id", handlers.Question.UpdateQuestion)
		adminAPI.DELETE("/questions/:question_id", handlers.Question.DeleteQuestion)
	}

	// ─── 3. Tryout Group (JWT + Participant Role) ──────────────────────
	tryoutAPI := router.Group("/api/v1/tryout")
	tryoutAPI.Use(authenticated...)
	tryoutAPI.Use(middleware.RequireRole(model.RoleUser))
	{
		tryoutAPI.GET("/exams", handlers.Participant.ListExams)
		tryoutAPI.GET("/exams/:exam_id", handlers.Participant.GetExam)
		tryoutAPI.POST("/exams/:exam_id/session", handlers.Participant.StartSession)
		tryoutAPI.GET("/exams/:exam_id/latest-session", handlers.Participant.LatestSession)
		tryoutAPI.GET("/exams/:exam_id/latest-result", handlers.Participant.LatestResult)

		tryoutAPI.GET("/sessions/:session_id", handlers.Participant.GetSession)
		tryoutAPI.PUT("/sessions/:session_id/answers", handlers.Participant.RecordAnswer)
		tryoutAPI.POST("/sessions/:session_id/complete", handlers.Participant.CompleteSession)
		tryoutAPI.GET("/sessions/:session_id/result", handlers.Participant.GetResult)
	}

	// ─── 4. WebSocket Group (Query Token) ──────────────────────────────
	ws := router.Group("/ws/v1")
	ws.Use(
		middleware.RequireWSAuth(authService),
		middleware.CheckLoginSession(authService),
		middleware.RequireRole(model.RoleUser),
	)
	{
		ws.GET("/tryout/sessions/:session_id", handlers.WS.SessionWorkspace)
	}

	return router
}
