// Package docs 注册 Swagger 文档，由 swag init 根据控制器注解生成
package docs

import "github.com/swaggo/swag"

const docTemplate = `{
    "schemes": {{ marshal .Schemes }},
    "swagger": "2.0",
    "info": {
        "description": "{{escape .Description}}",
        "title": "{{.Title}}",
        "contact": {},
        "version": "{{.Version}}"
    },
    "host": "{{.Host}}",
    "basePath": "{{.BasePath}}",
    "paths": {
        "/health": {"get": {"tags": ["系统"], "summary": "健康检查", "produces": ["application/json"], "responses": {"200": {"description": "OK"}}}},
        "/ready": {"get": {"tags": ["系统"], "summary": "就绪检查", "produces": ["application/json"], "responses": {"200": {"description": "OK"}}}},
        "/datasets/upload": {"post": {"tags": ["数据集"], "summary": "上传数据集", "consumes": ["multipart/form-data", "text/csv"], "produces": ["application/json"],
            "parameters": [
                {"type": "file", "name": "file", "in": "formData"},
                {"type": "string", "name": "name", "in": "query"},
                {"type": "string", "name": "delimiter", "in": "query"},
                {"type": "integer", "default": 20, "name": "preview", "in": "query"}
            ],
            "responses": {"200": {"description": "OK"}, "400": {"description": "Bad Request"}}}},
        "/datasets/import-sql": {"post": {"tags": ["数据集"], "summary": "从数据库导入数据集", "consumes": ["application/json"], "produces": ["application/json"],
            "parameters": [{"name": "request", "in": "body", "required": true, "schema": {"$ref": "#/definitions/controllers.ImportSQLRequest"}}],
            "responses": {"200": {"description": "OK"}, "400": {"description": "Bad Request"}}}},
        "/datasets/current": {"get": {"tags": ["数据集"], "summary": "当前数据集", "produces": ["application/json"], "responses": {"200": {"description": "OK"}, "404": {"description": "Not Found"}}}},
        "/datasets/current/records": {"get": {"tags": ["数据集"], "summary": "查询记录", "produces": ["application/json"],
            "parameters": [
                {"type": "integer", "name": "year_min", "in": "query"},
                {"type": "integer", "name": "year_max", "in": "query"},
                {"type": "string", "name": "offense", "in": "query"},
                {"type": "string", "name": "city", "in": "query"},
                {"type": "integer", "default": 1, "name": "page", "in": "query"},
                {"type": "integer", "default": 50, "name": "size", "in": "query"}
            ],
            "responses": {"200": {"description": "OK"}}}},
        "/datasets/history": {"get": {"tags": ["数据集"], "summary": "加载历史", "produces": ["application/json"], "responses": {"200": {"description": "OK"}}}},
        "/disparity/report": {"get": {"tags": ["差异分析"], "summary": "差异报告", "produces": ["application/json"],
            "parameters": [
                {"type": "integer", "name": "year_min", "in": "query"},
                {"type": "integer", "name": "year_max", "in": "query"},
                {"type": "string", "name": "offense", "in": "query"},
                {"type": "string", "name": "city", "in": "query"},
                {"type": "string", "default": "race", "name": "dimension", "in": "query"}
            ],
            "responses": {"200": {"description": "OK"}, "400": {"description": "Bad Request"}, "404": {"description": "Not Found"}}}},
        "/disparity/intersectional": {"get": {"tags": ["差异分析"], "summary": "交叉统计", "produces": ["application/json"], "responses": {"200": {"description": "OK"}}}},
        "/disparity/findings": {"get": {"tags": ["差异分析"], "summary": "告警发现历史", "produces": ["application/json"], "responses": {"200": {"description": "OK"}}}},
        "/disparity/reaudit": {"post": {"tags": ["差异分析"], "summary": "重新审计", "produces": ["application/json"], "responses": {"200": {"description": "OK"}}}},
        "/export/records": {"get": {"tags": ["导出"], "summary": "导出记录", "produces": ["text/csv"], "responses": {"200": {"description": "CSV"}}}},
        "/export/groups": {"get": {"tags": ["导出"], "summary": "导出分组汇总", "produces": ["text/csv"], "responses": {"200": {"description": "CSV"}}}},
        "/export/intersectional": {"get": {"tags": ["导出"], "summary": "导出交叉统计", "produces": ["text/csv"], "responses": {"200": {"description": "CSV"}}}},
        "/assistant/summary": {"get": {"tags": ["助手"], "summary": "数据集摘要", "produces": ["text/plain"], "responses": {"200": {"description": "摘要文本"}}}},
        "/config/thresholds": {
            "get": {"tags": ["系统配置"], "summary": "获取差异阈值", "produces": ["application/json"], "responses": {"200": {"description": "OK"}}},
            "put": {"tags": ["系统配置"], "summary": "更新差异阈值", "consumes": ["application/json"], "produces": ["application/json"],
                "parameters": [{"name": "request", "in": "body", "required": true, "schema": {"type": "object"}}],
                "responses": {"200": {"description": "OK"}, "400": {"description": "Bad Request"}}}
        },
        "/config/thresholds/history": {"get": {"tags": ["系统配置"], "summary": "阈值版本历史", "produces": ["application/json"], "responses": {"200": {"description": "OK"}}}},
        "/config/thresholds/rollback": {"post": {"tags": ["系统配置"], "summary": "回滚阈值", "produces": ["application/json"], "responses": {"200": {"description": "OK"}}}},
        "/config/channels": {"get": {"tags": ["系统配置"], "summary": "告警渠道状态", "produces": ["application/json"], "responses": {"200": {"description": "OK"}}}},
        "/config/channels/{channel}": {"put": {"tags": ["系统配置"], "summary": "配置告警渠道", "produces": ["application/json"],
            "parameters": [{"type": "string", "name": "channel", "in": "path", "required": true}],
            "responses": {"200": {"description": "OK"}}}},
        "/sse/{user_name}": {"get": {"tags": ["事件管理"], "summary": "建立SSE连接",
            "parameters": [{"type": "string", "name": "user_name", "in": "path", "required": true}],
            "responses": {"200": {"description": "SSE事件流"}}}},
        "/events/send": {"post": {"tags": ["事件管理"], "summary": "发送事件", "responses": {"200": {"description": "OK"}}}},
        "/events/broadcast": {"post": {"tags": ["事件管理"], "summary": "广播事件", "responses": {"200": {"description": "OK"}}}},
        "/events/history": {"get": {"tags": ["事件管理"], "summary": "事件历史", "responses": {"200": {"description": "OK"}}}},
        "/events/connections": {"get": {"tags": ["事件管理"], "summary": "活跃SSE连接", "responses": {"200": {"description": "OK"}}}}
    },
    "definitions": {
        "controllers.ImportSQLRequest": {
            "type": "object",
            "properties": {
                "dsn": {"type": "string"},
                "table": {"type": "string", "example": "public.court_cases"},
                "limit": {"type": "integer", "example": 0}
            }
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/swagger/fairness-audit-service",
	Schemes:          []string{},
	Title:            "量刑公平性审计服务 API",
	Description:      "加载法院案件记录，计算人口群体间的代表性、处置、量刑和案件时长差异，并对超出阈值的差异告警",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
