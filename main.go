package main

import (
	"log"
	"log/slog"
	"net/http"
	"os"
	"strconv"

	daprd "github.com/dapr/go-sdk/service/http"
	"github.com/go-chi/chi/v5"
	httpSwagger "github.com/swaggo/http-swagger"

	"fairness-audit-service/api"
	_ "fairness-audit-service/docs"
	"fairness-audit-service/logger"
	"fairness-audit-service/service"
)

var (
	PORT         = 80
	BASE_CONTEXT = ""
	PUBSUB_NAME  = "pubsub"
)

func init() {
	if val := os.Getenv("LISTEN_PORT"); val != "" {
		PORT, _ = strconv.Atoi(val)
	}

	if val := os.Getenv("BASE_CONTEXT"); val != "" {
		BASE_CONTEXT = val
	}

	if val := os.Getenv("PUBSUB_NAME"); val != "" {
		PUBSUB_NAME = val
	}
}

// @title 量刑公平性审计服务 API
// @version 1.0
// @description 加载法院案件记录，计算人口群体间的代表性、处置、量刑和案件时长差异，并对超出阈值的差异告警
// @BasePath /swagger/fairness-audit-service
func main() {
	logger.InitLogger()

	if err := service.Init(); err != nil {
		log.Fatalf("服务初始化失败: %v", err)
	}
	defer service.Shutdown()

	mux := chi.NewRouter()

	// 如果有BASE_CONTEXT，则在该路径下挂载所有路由
	if BASE_CONTEXT != "" {
		mux.Route(BASE_CONTEXT, func(r chi.Router) {
			subMux := r.(*chi.Mux)
			api.InitRoute(subMux)
			r.Handle("/metrics", service.GlobalMetricsCollector.Handler())
			r.Handle("/swagger*", httpSwagger.WrapHandler)
		})
	} else {
		api.InitRoute(mux)
		mux.Handle("/metrics", service.GlobalMetricsCollector.Handler())
		mux.Handle("/swagger*", httpSwagger.WrapHandler)
	}

	s := daprd.NewServiceWithMux(":"+strconv.Itoa(PORT), mux)
	if err := s.AddTopicEventHandler(api.ThresholdSubscription(PUBSUB_NAME), api.ThresholdTopicHandler(service.GlobalThresholdManager)); err != nil {
		slog.Warn("注册阈值订阅失败", "error", err)
	}

	slog.Info("服务启动", "port", PORT, "base_context", BASE_CONTEXT)
	if err := s.Start(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("error: %v", err)
	}
}
