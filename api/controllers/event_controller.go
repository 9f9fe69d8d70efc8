/*
 * @module api/controllers/event_controller
 * @description 事件控制器，提供 SSE 连接、事件发送/广播、历史和连接查询接口
 * @architecture RESTful API架构 - 控制器层
 * @stateFlow HTTP请求 -> 事件服务 -> 响应返回
 * @rules SSE 连接断开或服务停止时结束推送循环
 * @dependencies github.com/go-chi/chi/v5, github.com/go-chi/render, github.com/google/uuid
 * @refs service/event/event_service.go
 */

package controllers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/google/uuid"

	"fairness-audit-service/service/event"
	"fairness-audit-service/service/models"
)

// EventController 事件控制器
type EventController struct {
	eventService *event.EventService
}

// NewEventController 创建事件控制器实例
func NewEventController(eventService *event.EventService) *EventController {
	return &EventController{eventService: eventService}
}

// SendEventRequest 发送事件请求
type SendEventRequest struct {
	UserName  string       `json:"user_name" example:"auditor"`
	EventType string       `json:"event_type" example:"notice"`
	Data      models.JSONB `json:"data"`
}

// BroadcastEventRequest 广播事件请求
type BroadcastEventRequest struct {
	EventType string       `json:"event_type" example:"notice"`
	Data      models.JSONB `json:"data"`
}

// HandleSSE 处理SSE连接
// @Summary 建立SSE连接
// @Description 通过此接口建立SSE连接，接收数据集加载、审计发现和阈值变更事件
// @Tags 事件管理
// @Param user_name path string true "用户名"
// @Success 200 {string} string "SSE事件流"
// @Router /sse/{user_name} [get]
func (c *EventController) HandleSSE(w http.ResponseWriter, r *http.Request) {
	userName := chi.URLParam(r, "user_name")
	if userName == "" {
		http.Error(w, "用户名不能为空", http.StatusBadRequest)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	connectionID := uuid.New().String()
	clientIP := r.RemoteAddr
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		clientIP = forwarded
	}

	client := c.eventService.AddSSEConnection(userName, connectionID, clientIP)
	defer c.eventService.RemoveSSEConnection(userName, connectionID)

	fmt.Fprintf(w, "data: {\"type\":\"connected\",\"connection_id\":\"%s\",\"timestamp\":\"%s\"}\n\n",
		connectionID, time.Now().Format(time.RFC3339))
	flush(w)

	for {
		select {
		case evt := <-client.Channel:
			fmt.Fprintf(w, "event: %s\ndata: %s\n\n", evt.EventType, toJSON(evt))
			flush(w)
		case <-client.Done:
			return
		case <-c.eventService.Done():
			return
		case <-r.Context().Done():
			return
		}
	}
}

// SendEvent 发送事件给指定用户
// @Summary 发送事件
// @Description 向指定用户发送SSE事件
// @Tags 事件管理
// @Accept json
// @Produce json
// @Param request body SendEventRequest true "发送事件请求"
// @Success 200 {object} APIResponse
// @Router /events/send [post]
func (c *EventController) SendEvent(w http.ResponseWriter, r *http.Request) {
	var req SendEventRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		render.Render(w, r, BadRequestResponse("请求参数解析失败", err))
		return
	}
	if req.UserName == "" || req.EventType == "" {
		render.Render(w, r, BadRequestResponse("用户名和事件类型不能为空", nil))
		return
	}

	evt := &models.SSEEvent{
		EventType: req.EventType,
		Data:      req.Data,
		CreatedAt: time.Now(),
	}
	if err := c.eventService.SendEventToUser(req.UserName, evt); err != nil {
		render.Render(w, r, NotFoundResponse("发送事件失败", err))
		return
	}
	render.Render(w, r, SuccessResponse("事件发送成功", map[string]interface{}{"event_id": evt.ID}))
}

// BroadcastEvent 广播事件
// @Summary 广播事件
// @Description 向所有连接的用户广播SSE事件
// @Tags 事件管理
// @Accept json
// @Produce json
// @Param request body BroadcastEventRequest true "广播事件请求"
// @Success 200 {object} APIResponse
// @Router /events/broadcast [post]
func (c *EventController) BroadcastEvent(w http.ResponseWriter, r *http.Request) {
	var req BroadcastEventRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		render.Render(w, r, BadRequestResponse("请求参数解析失败", err))
		return
	}
	if req.EventType == "" {
		render.Render(w, r, BadRequestResponse("事件类型不能为空", nil))
		return
	}

	evt := &models.SSEEvent{
		EventType: req.EventType,
		Data:      req.Data,
		CreatedAt: time.Now(),
	}
	if err := c.eventService.BroadcastEvent(evt); err != nil {
		render.Render(w, r, InternalErrorResponse("广播事件失败", err))
		return
	}
	render.Render(w, r, SuccessResponse("事件广播成功", map[string]interface{}{"event_id": evt.ID}))
}

// GetEventHistory 事件历史
// @Summary 事件历史
// @Description 分页查询已推送的事件
// @Tags 事件管理
// @Produce json
// @Param page query int false "页码" default(1)
// @Param size query int false "每页大小" default(20)
// @Param event_type query string false "事件类型"
// @Success 200 {object} PaginatedResponse
// @Router /events/history [get]
func (c *EventController) GetEventHistory(w http.ResponseWriter, r *http.Request) {
	page := queryInt(r, "page", 1)
	size := queryInt(r, "size", 20)
	events, total, err := c.eventService.GetEventHistoryList(page, size, r.URL.Query().Get("event_type"))
	if err != nil {
		render.Render(w, r, InternalErrorResponse("查询事件历史失败", err))
		return
	}
	render.Render(w, r, &PaginatedResponse{
		Status: 0,
		Msg:    "查询成功",
		Data:   events,
		Total:  total,
		Page:   page,
		Size:   size,
	})
}

// GetConnections 活跃连接
// @Summary 活跃SSE连接
// @Tags 事件管理
// @Produce json
// @Success 200 {object} APIResponse{data=[]event.ConnectionInfo}
// @Router /events/connections [get]
func (c *EventController) GetConnections(w http.ResponseWriter, r *http.Request) {
	connections := c.eventService.GetConnections()
	if connections == nil {
		connections = []event.ConnectionInfo{}
	}
	render.Render(w, r, SuccessResponse("查询成功", connections))
}

func flush(w http.ResponseWriter) {
	if flusher, ok := w.(http.Flusher); ok {
		flusher.Flush()
	}
}

func toJSON(v interface{}) string {
	data, err := json.Marshal(v)
	if err != nil {
		return "{}"
	}
	return string(data)
}
