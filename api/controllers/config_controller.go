/*
 * @module api/controllers/config_controller
 * @description 配置管理控制器，提供差异阈值的查询、更新、版本历史和回滚，以及告警渠道配置
 * @architecture RESTful API架构
 * @stateFlow HTTP请求 -> 控制器 -> 阈值管理器 -> 数据库 -> 变更通知 -> 重新审计
 * @rules 阈值更新先校验，校验失败时保持原配置
 * @dependencies github.com/go-chi/chi/v5, github.com/go-chi/render
 * @refs service/config/threshold_manager.go, service/alerting/alert_manager.go
 */

package controllers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	"fairness-audit-service/api/middleware"
	"fairness-audit-service/service/alerting"
	"fairness-audit-service/service/config"
)

// ConfigController 配置控制器
type ConfigController struct {
	manager      *config.ThresholdManager
	alertManager *alerting.AlertManager
}

// NewConfigController 创建配置控制器实例，alertManager 可为空
func NewConfigController(manager *config.ThresholdManager, alertManager *alerting.AlertManager) *ConfigController {
	return &ConfigController{manager: manager, alertManager: alertManager}
}

// ThresholdsResponse 当前阈值
type ThresholdsResponse struct {
	Version    int         `json:"version"`
	Thresholds interface{} `json:"thresholds"`
}

// RollbackRequest 回滚请求
type RollbackRequest struct {
	Version   int    `json:"version" example:"1"`
	UpdatedBy string `json:"updated_by,omitempty" example:"admin"`
}

// GetThresholds 获取当前阈值
// @Summary 获取差异阈值
// @Tags 系统配置
// @Produce json
// @Success 200 {object} APIResponse{data=ThresholdsResponse}
// @Router /config/thresholds [get]
func (c *ConfigController) GetThresholds(w http.ResponseWriter, r *http.Request) {
	render.Render(w, r, SuccessResponse("获取配置成功", ThresholdsResponse{
		Version:    c.manager.Version(),
		Thresholds: c.manager.Get(),
	}))
}

// UpdateThresholds 更新阈值
// @Summary 更新差异阈值
// @Description 按字段名局部更新阈值，例如 {"sentencing_ratio": 1.3}；更新后清理报告缓存并重新审计
// @Tags 系统配置
// @Accept json
// @Produce json
// @Param X-User header string false "操作人"
// @Param request body map[string]interface{} true "阈值字段"
// @Success 200 {object} APIResponse{data=ThresholdsResponse}
// @Failure 400 {object} APIResponse
// @Router /config/thresholds [put]
func (c *ConfigController) UpdateThresholds(w http.ResponseWriter, r *http.Request) {
	var patch map[string]interface{}
	if err := render.DecodeJSON(r.Body, &patch); err != nil {
		render.Render(w, r, BadRequestResponse("请求参数解析失败", err))
		return
	}
	if len(patch) == 0 {
		render.Render(w, r, BadRequestResponse("没有需要更新的阈值", nil))
		return
	}

	updated, err := c.manager.Update(patch, operator(r))
	if err != nil {
		render.Render(w, r, BadRequestResponse("更新阈值失败", err))
		return
	}
	render.Render(w, r, SuccessResponse("更新配置成功", ThresholdsResponse{
		Version:    c.manager.Version(),
		Thresholds: updated,
	}))
}

// GetThresholdHistory 阈值版本历史
// @Summary 阈值版本历史
// @Tags 系统配置
// @Produce json
// @Success 200 {object} APIResponse{data=[]config.ThresholdVersion}
// @Router /config/thresholds/history [get]
func (c *ConfigController) GetThresholdHistory(w http.ResponseWriter, r *http.Request) {
	render.Render(w, r, SuccessResponse("查询成功", c.manager.GetHistory()))
}

// RollbackThresholds 回滚到指定版本
// @Summary 回滚阈值
// @Tags 系统配置
// @Accept json
// @Produce json
// @Param request body RollbackRequest true "回滚请求"
// @Success 200 {object} APIResponse{data=ThresholdsResponse}
// @Failure 400 {object} APIResponse
// @Router /config/thresholds/rollback [post]
func (c *ConfigController) RollbackThresholds(w http.ResponseWriter, r *http.Request) {
	var req RollbackRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		render.Render(w, r, BadRequestResponse("请求参数解析失败", err))
		return
	}
	by := req.UpdatedBy
	if by == "" {
		by = operator(r)
	}
	updated, err := c.manager.RollbackToVersion(req.Version, by)
	if err != nil {
		render.Render(w, r, BadRequestResponse("回滚失败", err))
		return
	}
	render.Render(w, r, SuccessResponse("回滚成功", ThresholdsResponse{
		Version:    c.manager.Version(),
		Thresholds: updated,
	}))
}

// GetChannels 告警渠道状态
// @Summary 告警渠道状态
// @Tags 系统配置
// @Produce json
// @Success 200 {object} APIResponse{data=map[string]bool}
// @Router /config/channels [get]
func (c *ConfigController) GetChannels(w http.ResponseWriter, r *http.Request) {
	if c.alertManager == nil {
		render.Render(w, r, SuccessResponse("查询成功", map[string]bool{}))
		return
	}
	render.Render(w, r, SuccessResponse("查询成功", c.alertManager.GetChannels()))
}

// ConfigureChannel 配置告警渠道
// @Summary 配置告警渠道
// @Tags 系统配置
// @Accept json
// @Produce json
// @Param channel path string true "渠道类型: webhook, kafka, mqtt, redis"
// @Param request body map[string]interface{} true "渠道配置"
// @Success 200 {object} APIResponse
// @Failure 400 {object} APIResponse
// @Router /config/channels/{channel} [put]
func (c *ConfigController) ConfigureChannel(w http.ResponseWriter, r *http.Request) {
	if c.alertManager == nil {
		render.Render(w, r, NotFoundResponse("告警管理器未启用", nil))
		return
	}
	var cfg map[string]interface{}
	if err := render.DecodeJSON(r.Body, &cfg); err != nil {
		render.Render(w, r, BadRequestResponse("请求参数解析失败", err))
		return
	}
	channel := chi.URLParam(r, "channel")
	if err := c.alertManager.ConfigureChannel(channel, cfg); err != nil {
		render.Render(w, r, BadRequestResponse("配置告警渠道失败", err))
		return
	}
	render.Render(w, r, SuccessResponse("配置成功", map[string]interface{}{
		"channel": channel,
		"enabled": c.alertManager.GetChannels()[channel],
	}))
}

func operator(r *http.Request) string {
	if name, ok := middleware.Operator(r.Context()); ok {
		return name
	}
	if user := r.Header.Get("X-User"); user != "" {
		return user
	}
	return "api"
}
