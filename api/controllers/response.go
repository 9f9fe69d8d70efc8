package controllers

import (
	"fmt"
	"net/http"

	"github.com/go-chi/render"
)

// APIResponse 统一API响应结构
type APIResponse struct {
	Status     int         `json:"status" example:"0"`
	Msg        string      `json:"msg" example:"操作成功"`
	Data       interface{} `json:"data,omitempty"`
	httpStatus int
}

// Render 实现 render.Renderer，设置 HTTP 状态码
func (a *APIResponse) Render(w http.ResponseWriter, r *http.Request) error {
	if a.httpStatus != 0 {
		render.Status(r, a.httpStatus)
	}
	return nil
}

// PaginatedResponse 分页响应结构
type PaginatedResponse struct {
	Status int         `json:"status" example:"0"`
	Msg    string      `json:"msg" example:"操作成功"`
	Data   interface{} `json:"data"`
	Total  int64       `json:"total" example:"100"`
	Page   int         `json:"page" example:"1"`
	Size   int         `json:"size" example:"10"`
}

// Render 实现 render.Renderer
func (p *PaginatedResponse) Render(w http.ResponseWriter, r *http.Request) error {
	return nil
}

// SuccessResponse 成功响应
func SuccessResponse(msg string, data interface{}) *APIResponse {
	return &APIResponse{Status: 0, Msg: msg, Data: data, httpStatus: http.StatusOK}
}

// ErrorResponse 错误响应，status 同时作为 HTTP 状态码
func ErrorResponse(status int, msg string, err error) *APIResponse {
	if err != nil {
		msg = fmt.Sprintf("%s: %v", msg, err)
	}
	return &APIResponse{Status: status, Msg: msg, httpStatus: status}
}

// BadRequestResponse 400 响应
func BadRequestResponse(msg string, err error) *APIResponse {
	return ErrorResponse(http.StatusBadRequest, msg, err)
}

// NotFoundResponse 404 响应
func NotFoundResponse(msg string, err error) *APIResponse {
	return ErrorResponse(http.StatusNotFound, msg, err)
}

// InternalErrorResponse 500 响应
func InternalErrorResponse(msg string, err error) *APIResponse {
	return ErrorResponse(http.StatusInternalServerError, msg, err)
}
