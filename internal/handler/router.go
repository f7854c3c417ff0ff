package handler

import (
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/noah-isme/student-management/internal/middleware"
	"github.com/noah-isme/student-management/internal/service"
	"github.com/noah-isme/student-management/pkg/logger"
	corsmiddleware "github.com/noah-isme/student-management/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/student-management/pkg/middleware/requestid"
)

// Handlers groups the HTTP handlers mounted by NewRouter.
type Handlers struct {
	Students *StudentHandler
	Fees     *FeeHandler
	Courses  *CourseHandler
	Metrics  *MetricsHandler
}

// RouterOptions controls router assembly.
type RouterOptions struct {
	APIPrefix      string
	AllowedOrigins []string
	Logger         *zap.Logger
	Metrics        *service.MetricsService
}

// NewRouter builds the gin engine with middleware and every API route.
func NewRouter(h Handlers, opts RouterOptions) *gin.Engine {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(opts.Logger))
	r.Use(corsmiddleware.New(opts.AllowedOrigins))
	r.Use(middleware.Metrics(opts.Metrics))

	r.GET("/health", h.Metrics.Health)
	r.GET("/metrics", h.Metrics.Prometheus)

	prefix := "/" + strings.Trim(opts.APIPrefix, "/")
	api := r.Group(prefix)

	students := api.Group("/students")
	students.GET("", h.Students.List)
	students.POST("", h.Students.Create)
	students.GET("/by-email", h.Students.GetByEmail)
	students.GET("/export", h.Students.Export)
	students.GET("/:id", h.Students.Get)
	students.PUT("/:id", h.Students.Update)
	students.DELETE("/:id", h.Students.Delete)
	students.POST("/:id/enroll", h.Students.Enroll)
	students.POST("/:id/payments", h.Fees.Pay)
	students.POST("/:id/refunds", h.Fees.Refund)
	students.GET("/:id/balance", h.Fees.Balance)
	students.POST("/:id/pay-full-fee", h.Fees.PayFullFee)
	students.GET("/:id/transactions", h.Fees.Transactions)

	courses := api.Group("/courses")
	courses.GET("", h.Courses.List)
	courses.POST("", h.Courses.Create)
	courses.GET("/:id", h.Courses.Get)
	courses.PUT("/:id", h.Courses.Update)
	courses.DELETE("/:id", h.Courses.Delete)
	courses.GET("/:id/students", h.Courses.Students)

	return r
}
