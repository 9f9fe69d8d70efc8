/*
 * @module api/controllers/assistant_controller
 * @description 助手摘要控制器，为外部对话助手提供当前数据集的纯文本摘要
 * @architecture 分层架构 - 控制器层
 * @stateFlow 查询参数 -> 筛选条件 -> 审计服务生成摘要 -> 纯文本响应
 * @rules 摘要按需生成，服务端不保留任何状态
 * @dependencies github.com/go-chi/render, service/audit
 * @refs service/export/digest.go
 */

package controllers

import (
	"net/http"

	"github.com/go-chi/render"

	"fairness-audit-service/service/audit"
)

// AssistantController 数据集文本摘要，供问答助手作为上下文
type AssistantController struct {
	auditService *audit.Service
}

// NewAssistantController 创建摘要控制器
func NewAssistantController(auditService *audit.Service) *AssistantController {
	return &AssistantController{auditService: auditService}
}

// Summary 数据集摘要
// @Summary 数据集摘要
// @Description 以纯文本返回筛选后记录的分布、常见罪名、平均刑期和平均案件时长
// @Tags 助手
// @Produce plain
// @Param year_min query int false "起始年份"
// @Param year_max query int false "结束年份"
// @Param offense query string false "罪名类别"
// @Param city query string false "案发城市"
// @Success 200 {string} string "摘要文本"
// @Router /assistant/summary [get]
func (c *AssistantController) Summary(w http.ResponseWriter, r *http.Request) {
	filter, err := parseFilter(r)
	if err != nil {
		render.Render(w, r, BadRequestResponse("筛选参数错误", err))
		return
	}
	digest, err := c.auditService.Digest(filter)
	if err != nil {
		renderServiceError(w, r, err)
		return
	}
	render.PlainText(w, r, digest)
}
