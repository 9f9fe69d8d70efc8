/*
 * @module api/controllers/disparity_controller
 * @description 差异分析控制器，提供分组差异报告、交叉统计和告警发现历史接口
 * @architecture RESTful API架构 - 控制器层
 * @stateFlow HTTP请求 -> 筛选/维度解析 -> 审计服务 -> 统一响应
 * @rules 未加载数据集时返回 404；筛选参数非法时返回 400
 * @dependencies github.com/go-chi/render
 * @refs service/audit/service.go, service/disparity
 */

package controllers

import (
	"net/http"

	"github.com/go-chi/render"

	"fairness-audit-service/service/audit"
)

// DisparityController 差异分析控制器
type DisparityController struct {
	auditService *audit.Service
}

// NewDisparityController 创建差异分析控制器
func NewDisparityController(auditService *audit.Service) *DisparityController {
	return &DisparityController{auditService: auditService}
}

// Report 差异报告
// @Summary 差异报告
// @Description 按筛选条件和分组维度计算代表性、处置、量刑和案件时长差异，并评估阈值
// @Tags 差异分析
// @Produce json
// @Param year_min query int false "起始年份"
// @Param year_max query int false "结束年份"
// @Param offense query string false "罪名类别"
// @Param city query string false "案发城市"
// @Param dimension query string false "分组维度: race, gender, age_group, intersection" default(race)
// @Success 200 {object} APIResponse{data=audit.DisparityReport}
// @Failure 400 {object} APIResponse
// @Failure 404 {object} APIResponse
// @Router /disparity/report [get]
func (c *DisparityController) Report(w http.ResponseWriter, r *http.Request) {
	filter, err := parseFilter(r)
	if err != nil {
		render.Render(w, r, BadRequestResponse("筛选参数错误", err))
		return
	}
	dim, err := resolveDimension(r)
	if err != nil {
		render.Render(w, r, BadRequestResponse("维度参数错误", err))
		return
	}

	report, err := c.auditService.Report(r.Context(), filter, dim)
	if err != nil {
		renderServiceError(w, r, err)
		return
	}
	render.Render(w, r, SuccessResponse("查询成功", report))
}

// Intersectional 交叉统计
// @Summary 交叉统计
// @Description 按种族、性别、年龄段三元组统计案件数、判决率、平均刑期和平均时长
// @Tags 差异分析
// @Produce json
// @Param year_min query int false "起始年份"
// @Param year_max query int false "结束年份"
// @Param offense query string false "罪名类别"
// @Param city query string false "案发城市"
// @Success 200 {object} APIResponse{data=[]disparity.IntersectionalRow}
// @Router /disparity/intersectional [get]
func (c *DisparityController) Intersectional(w http.ResponseWriter, r *http.Request) {
	filter, err := parseFilter(r)
	if err != nil {
		render.Render(w, r, BadRequestResponse("筛选参数错误", err))
		return
	}
	rows, err := c.auditService.Intersectional(filter)
	if err != nil {
		renderServiceError(w, r, err)
		return
	}
	render.Render(w, r, SuccessResponse("查询成功", rows))
}

// Findings 告警发现历史
// @Summary 告警发现历史
// @Description 查询已分发的阈值告警，dataset_id 为空时返回全部
// @Tags 差异分析
// @Produce json
// @Param dataset_id query string false "数据集ID"
// @Param limit query int false "返回条数" default(100)
// @Success 200 {object} APIResponse{data=[]models.AuditFinding}
// @Router /disparity/findings [get]
func (c *DisparityController) Findings(w http.ResponseWriter, r *http.Request) {
	findings, err := c.auditService.FindingHistory(r.URL.Query().Get("dataset_id"), queryInt(r, "limit", 100))
	if err != nil {
		render.Render(w, r, InternalErrorResponse("查询告警历史失败", err))
		return
	}
	render.Render(w, r, SuccessResponse("查询成功", findings))
}

// ReAudit 立即重新审计
// @Summary 重新审计
// @Description 使用当前阈值对当前数据集执行全量审计并分发告警
// @Tags 差异分析
// @Produce json
// @Success 200 {object} APIResponse
// @Failure 404 {object} APIResponse
// @Router /disparity/reaudit [post]
func (c *DisparityController) ReAudit(w http.ResponseWriter, r *http.Request) {
	if err := c.auditService.ReAudit(r.Context()); err != nil {
		renderServiceError(w, r, err)
		return
	}
	render.Render(w, r, SuccessResponse("重新审计完成", nil))
}
