package main

import (
	"net/http"

	"menu_translator/auth_system/middleware"
	"menu_translator/config"
	"menu_translator/languages"
	taskhttp "menu_translator/translation_task/httpapi"
	visionhttp "menu_translator/vision_agent/httpapi"

	"github.com/gin-gonic/gin"
)

// services 路由依赖；verifier 为 nil 表示 presence 模式，limiter 为 nil 表示不限流。
type services struct {
	verifier middleware.TokenVerifier
	limiter  middleware.Limiter
	vision   *visionhttp.VisionHandler
	tasks    *taskhttp.TaskHandler
}

// newRouter 挂载中间件与全部路由。CORS 在鉴权之前，401 响应同样带跨域头。
func newRouter(cfg *config.Config, svc services) *gin.Engine {
	r := gin.Default()
	origins := cfg.OriginList()

	r.Use(middleware.RequestIDMiddleware())
	r.Use(middleware.CORSMiddleware(origins))

	r.OPTIONS("/api/*path", middleware.PreflightHandle(origins))
	r.GET("/api/languages", LanguagesHandle)

	api := r.Group("/api")
	api.Use(middleware.AuthMiddleware(svc.verifier))
	api.Use(middleware.RateLimitMiddleware(svc.limiter))
	{
		api.POST("/translate", svc.vision.TranslateHandle)
		api.POST("/recognize", svc.vision.RecognizeHandle)
		api.POST("/upload", svc.tasks.UploadHandle)
		api.GET("/task/:taskId", svc.tasks.TaskStatusHandle)
	}

	return r
}

// LanguagesHandle 返回可选目标语言列表。
func LanguagesHandle(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"languages": languages.All()})
}
