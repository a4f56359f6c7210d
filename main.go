package main

import (
	"context"
	"flag"
	"log"
	"time"

	"menu_translator/auth_system/middleware"
	"menu_translator/auth_system/token"
	"menu_translator/config"
	"menu_translator/translation_task"
	taskhttp "menu_translator/translation_task/httpapi"
	"menu_translator/vision_agent"
	visionhttp "menu_translator/vision_agent/httpapi"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

// main 加载配置，组装上游客户端、鉴权与限流后启动 HTTP 服务。
func main() {
	configPath := flag.String("config", "", "path to the JSON config file")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("[main] load config: %v", err)
	}
	gin.SetMode(cfg.GinMode)

	svc := services{
		vision: visionhttp.NewVisionHandler(newVisionClient(cfg), newFoodLister(cfg), cfg.MaxUploadBytes),
		tasks:  taskhttp.NewTaskHandler(newTaskClient(cfg), cfg.MaxUploadBytes),
	}

	if cfg.AuthMode == config.AuthModeJWT {
		verifier, err := token.NewVerifierFromFile(cfg.JWTSecret, cfg.JWTPublicKeyFile, cfg.JWTIssuer)
		if err != nil {
			log.Fatalf("[main] init token verifier: %v", err)
		}
		svc.verifier = verifier
	} else {
		log.Printf("[main] auth mode %q: bearer tokens are required but not verified", cfg.AuthMode)
	}

	if cfg.RateLimitMax > 0 {
		svc.limiter = newLimiter(cfg)
	}

	log.Printf("[main] vision key: %s, labeler: %s, translation key: %s, origins: %s",
		presence(cfg.VisionAPIKey), presence(cfg.LabelerModel), presence(cfg.TranslationAPIKey), cfg.AllowedOrigins)

	r := newRouter(cfg, svc)
	if err := r.Run(":" + cfg.Port); err != nil {
		log.Fatalf("[main] server stopped: %v", err)
	}
}

func newVisionClient(cfg *config.Config) vision_agent.VisionClient {
	if cfg.VisionAPIKey == "" {
		return nil
	}
	return vision_agent.NewGeminiClient(cfg.VisionAPIKey, cfg.VisionBaseURL, cfg.VisionModel, cfg.VisionTimeout())
}

func newFoodLister(cfg *config.Config) visionhttp.FoodLister {
	labeler := vision_agent.NewLabeler(cfg.LabelerAPIKey, cfg.LabelerBaseURL, cfg.LabelerModel)
	if labeler == nil {
		return nil
	}
	return labeler
}

func newTaskClient(cfg *config.Config) translation_task.TaskClient {
	if cfg.TranslationBaseURL == "" || cfg.TranslationAPIKey == "" {
		return nil
	}
	return translation_task.NewHTTPTaskClient(cfg.TranslationBaseURL, cfg.TranslationAPIKey, cfg.TranslationOCRFullImage, cfg.TranslationTimeout())
}

// newLimiter 配置了 Redis 且可连通时跨实例共享计数，否则退回进程内计数。
func newLimiter(cfg *config.Config) middleware.Limiter {
	if cfg.RedisAddr == "" {
		return middleware.NewMemoryLimiter(cfg.RateLimitWindow(), cfg.RateLimitMax)
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Printf("[main] redis %s unreachable, using in-memory rate limit: %v", cfg.RedisAddr, err)
		_ = rdb.Close()
		return middleware.NewMemoryLimiter(cfg.RateLimitWindow(), cfg.RateLimitMax)
	}
	return middleware.NewRedisLimiter(rdb, cfg.RateLimitWindow(), cfg.RateLimitMax)
}

func presence(value string) string {
	if value == "" {
		return "[MISSING]"
	}
	return "[PRESENT]"
}
