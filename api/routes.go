/*
 * @module api/routes
 * @description API路由配置模块，负责初始化和配置所有HTTP路由
 * @architecture RESTful API架构
 * @stateFlow 无状态HTTP请求处理
 * @rules 遵循RESTful API设计规范，统一错误处理和响应格式
 * @dependencies github.com/go-chi/chi/v5, github.com/go-chi/cors, github.com/go-chi/render
 * @refs api/controllers
 */

package api

import (
	"os"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/render"
	"github.com/spf13/cast"

	"fairness-audit-service/api/controllers"
	"fairness-audit-service/api/middleware"
	"fairness-audit-service/service"
	"fairness-audit-service/service/alerting"
	"fairness-audit-service/service/audit"
	"fairness-audit-service/service/config"
	"fairness-audit-service/service/event"
	"fairness-audit-service/service/export"
	"fairness-audit-service/service/monitoring"
)

// Dependencies 路由依赖的服务
type Dependencies struct {
	Audit         *audit.Service
	Thresholds    *config.ThresholdManager
	Alerts        *alerting.AlertManager
	Events        *event.EventService
	Metrics       *monitoring.MetricsCollector
	Pseudonymizer *export.Pseudonymizer
	DefaultDSN    string
	Auth          *middleware.TokenAuthMiddleware
	LoadLimiter   middleware.RateLimiter
}

// InitRoute 使用全局服务初始化所有API路由
func InitRoute(r *chi.Mux) {
	Register(r, Dependencies{
		Audit:         service.GlobalAuditService,
		Thresholds:    service.GlobalThresholdManager,
		Alerts:        service.GlobalAlertManager,
		Events:        service.GlobalEventService,
		Metrics:       service.GlobalMetricsCollector,
		Pseudonymizer: service.GlobalPseudonymizer,
		DefaultDSN:    service.PostgresDSN(),
		Auth:          middleware.NewTokenAuthMiddleware(os.Getenv("API_TOKENS")),
		LoadLimiter:   loadLimiter(),
	})
}

// loadLimiter Redis 可用且配置了 LOAD_RATE_LIMIT 时限制数据集加载频率
func loadLimiter() middleware.RateLimiter {
	if service.GlobalRedisConnector == nil {
		return nil
	}
	limit := cast.ToInt(os.Getenv("LOAD_RATE_LIMIT"))
	if limit <= 0 {
		return nil
	}
	window := cast.ToDuration(os.Getenv("LOAD_RATE_WINDOW"))
	return middleware.NewRedisRateLimiter(service.GlobalRedisConnector.Client(), window, limit)
}

// Register 注册中间件和路由
func Register(r chi.Router, deps Dependencies) {
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.RequestID)
	r.Use(render.SetContentType(render.ContentTypeJSON))

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token", "X-User"},
		ExposedHeaders:   []string{"Link", "Content-Disposition"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	if deps.Auth != nil {
		r.Use(deps.Auth.Middleware)
	}

	// 健康检查
	healthController := controllers.NewHealthController(deps.Audit, deps.Metrics)
	r.Get("/health", healthController.Health)
	r.Get("/ready", healthController.Ready)

	// 数据集
	r.Route("/datasets", func(r chi.Router) {
		datasetController := controllers.NewDatasetController(deps.Audit, deps.DefaultDSN)
		r.Group(func(r chi.Router) {
			if deps.LoadLimiter != nil {
				r.Use(middleware.RateLimit(deps.LoadLimiter))
			}
			r.Post("/upload", datasetController.Upload)
			r.Post("/import-sql", datasetController.ImportSQL)
		})
		r.Get("/current", datasetController.Current)
		r.Get("/current/records", datasetController.Records)
		r.Get("/history", datasetController.History)
	})

	// 差异分析
	r.Route("/disparity", func(r chi.Router) {
		disparityController := controllers.NewDisparityController(deps.Audit)
		r.Get("/report", disparityController.Report)
		r.Get("/intersectional", disparityController.Intersectional)
		r.Get("/findings", disparityController.Findings)
		r.Post("/reaudit", disparityController.ReAudit)
	})

	// 导出
	r.Route("/export", func(r chi.Router) {
		exportController := controllers.NewExportController(deps.Audit, deps.Pseudonymizer)
		r.Get("/records", exportController.Records)
		r.Get("/groups", exportController.Groups)
		r.Get("/intersectional", exportController.Intersectional)
	})

	// 助手
	assistantController := controllers.NewAssistantController(deps.Audit)
	r.Get("/assistant/summary", assistantController.Summary)

	// 配置
	if deps.Thresholds != nil {
		r.Route("/config", func(r chi.Router) {
			configController := controllers.NewConfigController(deps.Thresholds, deps.Alerts)
			r.Get("/thresholds", configController.GetThresholds)
			r.Put("/thresholds", configController.UpdateThresholds)
			r.Get("/thresholds/history", configController.GetThresholdHistory)
			r.Post("/thresholds/rollback", configController.RollbackThresholds)
			r.Get("/channels", configController.GetChannels)
			r.Put("/channels/{channel}", configController.ConfigureChannel)
		})
	}

	// SSE事件
	if deps.Events != nil {
		eventController := controllers.NewEventController(deps.Events)
		r.Get("/sse/{user_name}", eventController.HandleSSE)
		r.Route("/events", func(r chi.Router) {
			r.Post("/send", eventController.SendEvent)
			r.Post("/broadcast", eventController.BroadcastEvent)
			r.Get("/history", eventController.GetEventHistory)
			r.Get("/connections", eventController.GetConnections)
		})
	}
}
