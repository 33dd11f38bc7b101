package app

import (
	"video_edu_backend/docs"
	"video_edu_backend/internal/config"
	"video_edu_backend/internal/middleware"
	"video_edu_backend/internal/model"
	"video_edu_backend/pkg/monitoring"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

func (a *App) registerRoutes(router *gin.Engine, c *controllers, cfg *config.Config) {
	docs.SwaggerInfo.BasePath = "/api"
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler, ginSwagger.URL("/swagger/doc.json")))

	router.GET("/metrics", monitoring.PrometheusHandler())

	// 1. 公共路由(无需登录)
	a.registerPublicRoutes(router, c)

	// 2. 需要授权的路由
	authGroup := router.Group("/api")
	authGroup.Use(middleware.AuthMiddleware(cfg))
	{
		a.registerStudentRoutes(authGroup, c)
	}

	// 3. 管理员相关接口
	a.registerAdminRoutes(router, c, cfg)
}

func (a *App) registerPublicRoutes(router *gin.Engine, c *controllers) {
	public := router.Group("/api")
	{
		public.GET("/health", c.health.HealthCheck)
		public.POST("/register", c.auth.Register)
		public.POST("/login", c.auth.Login)
		public.GET("/courses", c.course.List)
		public.GET("/certificates/verify/:code", c.certificate.Verify)
	}
}

func (a *App) registerStudentRoutes(group *gin.RouterGroup, c *controllers) {
	group.GET("/profile", c.auth.Profile)

	group.GET("/courses/:id", c.course.Get)
	group.POST("/courses/:id/enroll", c.enrollment.Enroll)
	group.POST("/courses/:id/certificate", c.certificate.Issue)

	group.POST("/progress/video", c.progress.UpdateVideo)
	group.POST("/progress/update", c.progress.UpdateDirect)
	group.POST("/progress/video/reset", c.progress.ResetVideo)
	group.GET("/progress/:courseId", c.progress.GetProgress)

	group.GET("/certificates", c.certificate.List)
	group.POST("/certificates/:id/retry-upload", c.certificate.RetryUpload)
}

func (a *App) registerAdminRoutes(router *gin.Engine, c *controllers, cfg *config.Config) {
	admin := router.Group("/api/admin")
	admin.Use(middleware.AuthMiddleware(cfg), middleware.RoleMiddleware(model.Admin))
	{
		admin.POST("/courses", c.course.Create)
		admin.GET("/progress-review", c.progress.ListReview)
		admin.POST("/grant-access", c.enrollment.GrantAccess)
		admin.POST("/certificates/:id/revoke", c.certificate.Revoke)
	}
}
