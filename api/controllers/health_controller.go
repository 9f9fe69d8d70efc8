/*
 * @module api/controllers/health_controller
 * @description 健康检查控制器，提供服务存活和就绪状态
 * @architecture MVC架构 - 控制器层
 * @stateFlow HTTP请求处理流程
 * @rules 存活检查不依赖外部资源；就绪检查报告数据集和运行时状态
 * @dependencies net/http, github.com/go-chi/render
 * @refs service/monitoring/metrics_collector.go
 */

package controllers

import (
	"net/http"
	"time"

	"github.com/go-chi/render"

	"fairness-audit-service/service/audit"
	"fairness-audit-service/service/monitoring"
)

// ServiceName 服务名称
const ServiceName = "fairness-audit-service"

// ServiceVersion 服务版本
const ServiceVersion = "1.0.0"

// HealthController 健康检查控制器
type HealthController struct {
	auditService *audit.Service
	collector    *monitoring.MetricsCollector
}

// NewHealthController 创建健康检查控制器实例
func NewHealthController(auditService *audit.Service, collector *monitoring.MetricsCollector) *HealthController {
	return &HealthController{auditService: auditService, collector: collector}
}

// HealthResponse 健康检查响应结构
type HealthResponse struct {
	Status    string    `json:"status" example:"ok"`
	Timestamp time.Time `json:"timestamp" example:"2024-01-01T00:00:00Z"`
	Version   string    `json:"version" example:"1.0.0"`
	Service   string    `json:"service" example:"fairness-audit-service"`
}

// ReadyResponse 就绪检查响应结构
type ReadyResponse struct {
	HealthResponse
	DatasetLoaded bool                      `json:"dataset_loaded"`
	DatasetID     string                    `json:"dataset_id,omitempty"`
	System        *monitoring.SystemMetrics `json:"system,omitempty"`
}

// Health 健康检查
// @Summary 健康检查
// @Description 检查服务健康状态
// @Tags 系统
// @Produce json
// @Success 200 {object} HealthResponse
// @Router /health [get]
func (c *HealthController) Health(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, HealthResponse{
		Status:    "ok",
		Timestamp: time.Now(),
		Version:   ServiceVersion,
		Service:   ServiceName,
	})
}

// Ready 就绪检查
// @Summary 就绪检查
// @Description 检查服务是否就绪，并返回当前数据集和运行时指标
// @Tags 系统
// @Produce json
// @Success 200 {object} ReadyResponse
// @Router /ready [get]
func (c *HealthController) Ready(w http.ResponseWriter, r *http.Request) {
	response := ReadyResponse{
		HealthResponse: HealthResponse{
			Status:    "ready",
			Timestamp: time.Now(),
			Version:   ServiceVersion,
			Service:   ServiceName,
		},
	}
	if c.auditService != nil {
		if ds := c.auditService.Current(); ds != nil {
			response.DatasetLoaded = true
			response.DatasetID = ds.ID
		}
	}
	if c.collector != nil {
		response.System = c.collector.CollectSystemMetrics()
	}
	render.JSON(w, r, response)
}
