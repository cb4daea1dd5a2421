package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/klaslab/school-api/internal/middleware"
	"github.com/klaslab/school-api/internal/models"
	"github.com/klaslab/school-api/internal/service"
	"github.com/klaslab/school-api/pkg/config"
	"github.com/klaslab/school-api/pkg/logger"
	corsmiddleware "github.com/klaslab/school-api/pkg/middleware/cors"
	reqidmiddleware "github.com/klaslab/school-api/pkg/middleware/requestid"
)

// Handlers bundles every route handler the router mounts.
type Handlers struct {
	Auth         *AuthHandler
	User         *UserHandler
	Department   *DepartmentHandler
	Course       *CourseHandler
	Class        *ClassHandler
	Attendance   *AttendanceHandler
	Assignment   *AssignmentHandler
	Student      *StudentHandler
	Notification *NotificationHandler
}

// NewRouter builds the gin engine with all middleware and routes
// mounted.
func NewRouter(cfg *config.Config, logr *zap.Logger, authService *service.AuthService, metricsService *service.MetricsService, h Handlers) *gin.Engine {
	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsService))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(metricsService.Handler()))

	r.GET("/files", h.Assignment.Download)

	api := r.Group(cfg.APIPrefix)

	auth := api.Group("/auth")
	{
		auth.POST("/register", h.Auth.Register)
		auth.POST("/login", h.Auth.Login)
		auth.POST("/refresh", h.Auth.Refresh)
		auth.POST("/logout", h.Auth.Logout)
	}

	authed := api.Group("")
	authed.Use(middleware.JWT(authService))

	admin := authed.Group("", middleware.RequireRoles(models.RoleAdmin))
	{
		admin.GET("/users", h.User.List)
		admin.GET("/users/stats", h.User.Stats)
		admin.GET("/users/:id", h.User.Get)
		admin.PUT("/users/:id", h.User.Update)
		admin.DELETE("/users/:id", h.User.Deactivate)

		admin.POST("/departments", h.Department.Create)
		admin.GET("/departments", h.Department.List)
		admin.GET("/departments/:id", h.Department.Get)
		admin.PUT("/departments/:id", h.Department.Update)
		admin.DELETE("/departments/:id", h.Department.Deactivate)

		admin.POST("/courses", h.Course.Create)
		admin.GET("/courses", h.Course.List)
		admin.GET("/courses/:id", h.Course.Get)
		admin.PUT("/courses/:id", h.Course.Update)
		admin.DELETE("/courses/:id", h.Course.Deactivate)

		admin.POST("/notifications", h.Notification.Broadcast)
	}

	teacher := authed.Group("", middleware.RequireRoles(models.RoleTeacher))
	{
		teacher.POST("/classes", h.Class.Create)
		teacher.GET("/classes", h.Class.List)
		teacher.GET("/classes/:id", h.Class.Get)
		teacher.PUT("/classes/:id", h.Class.Update)
		teacher.DELETE("/classes/:id", h.Class.Deactivate)
		teacher.POST("/classes/:id/students", h.Class.EnrollStudent)
		teacher.GET("/classes/:id/students", h.Class.Roster)

		teacher.POST("/classes/:id/attendance", h.Attendance.Mark)
		teacher.POST("/classes/:id/attendance/bulk", h.Attendance.MarkBulk)
		teacher.GET("/classes/:id/attendance/summary", h.Attendance.Summary)
		teacher.GET("/classes/:id/attendance/export", h.Attendance.Export)
		teacher.GET("/classes/:id/attendance/students/:studentId", h.Attendance.StudentHistory)
		teacher.GET("/attendance", h.Attendance.List)

		teacher.POST("/classes/:id/assignments", h.Assignment.Create)
		teacher.GET("/classes/:id/assignments", h.Assignment.ListByClass)
		teacher.PUT("/assignments/:id", h.Assignment.Update)
		teacher.DELETE("/assignments/:id", h.Assignment.Delete)
		teacher.GET("/assignments/:id/submissions", h.Assignment.Submissions)
		teacher.PUT("/submissions/:id/grade", h.Assignment.Grade)
		teacher.GET("/submissions/:id/download", h.Assignment.DownloadLink)

		teacher.POST("/classes/:id/notifications", h.Notification.SendToClass)
	}

	student := authed.Group("/students/me", middleware.RequireRoles(models.RoleStudent))
	{
		student.GET("/classes", h.Student.Classes)
		student.GET("/attendance", h.Student.Attendance)
		student.GET("/assignments", h.Student.Assignments)
		student.GET("/grades", h.Student.Grades)
		student.GET("/dashboard", h.Student.Dashboard)

		student.POST("/assignments/:id/submissions", h.Assignment.Submit)

		student.GET("/notifications", h.Notification.List)
		student.GET("/notifications/unread-count", h.Notification.UnreadCount)
		student.PUT("/notifications/:id/read", h.Notification.MarkRead)
	}

	return r
}
