/*
 * @module api/controllers/export_controller
 * @description 导出控制器，以 CSV 下载筛选后的记录、分组汇总和交叉统计
 * @architecture RESTful API架构 - 控制器层
 * @stateFlow HTTP请求 -> 筛选 -> 审计服务 -> CSV 写出
 * @rules 配置了假名化密钥时对案件和参与人标识做假名化
 * @dependencies github.com/go-chi/render
 * @refs service/export/csv_export.go
 */

package controllers

import (
	"bytes"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/render"

	"fairness-audit-service/service/audit"
	"fairness-audit-service/service/export"
)

// ExportController 导出控制器
type ExportController struct {
	auditService  *audit.Service
	pseudonymizer *export.Pseudonymizer
}

// NewExportController 创建导出控制器，pseudonymizer 可为空
func NewExportController(auditService *audit.Service, pseudonymizer *export.Pseudonymizer) *ExportController {
	return &ExportController{auditService: auditService, pseudonymizer: pseudonymizer}
}

// Records 导出记录
// @Summary 导出记录
// @Tags 导出
// @Produce text/csv
// @Param year_min query int false "起始年份"
// @Param year_max query int false "结束年份"
// @Param offense query string false "罪名类别"
// @Param city query string false "案发城市"
// @Param delimiter query string false "分隔符: , ; tab |"
// @Success 200 {string} string "CSV"
// @Router /export/records [get]
func (c *ExportController) Records(w http.ResponseWriter, r *http.Request) {
	opts, ok := c.options(w, r)
	if !ok {
		return
	}
	filter, err := parseFilter(r)
	if err != nil {
		render.Render(w, r, BadRequestResponse("筛选参数错误", err))
		return
	}
	records, err := c.auditService.Records(filter)
	if err != nil {
		renderServiceError(w, r, err)
		return
	}

	var buf bytes.Buffer
	if err := export.WriteRecordsCSV(&buf, records, opts); err != nil {
		render.Render(w, r, InternalErrorResponse("导出失败", err))
		return
	}
	writeCSV(w, "records", buf.Bytes())
}

// Groups 导出分组汇总
// @Summary 导出分组汇总
// @Tags 导出
// @Produce text/csv
// @Param year_min query int false "起始年份"
// @Param year_max query int false "结束年份"
// @Param offense query string false "罪名类别"
// @Param city query string false "案发城市"
// @Param dimension query string false "分组维度" default(race)
// @Param delimiter query string false "分隔符"
// @Success 200 {string} string "CSV"
// @Router /export/groups [get]
func (c *ExportController) Groups(w http.ResponseWriter, r *http.Request) {
	opts, ok := c.options(w, r)
	if !ok {
		return
	}
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

	var buf bytes.Buffer
	if err := export.WriteGroupSummaryCSV(&buf, report.Metrics.Groups, opts); err != nil {
		render.Render(w, r, InternalErrorResponse("导出失败", err))
		return
	}
	writeCSV(w, "groups-"+string(dim), buf.Bytes())
}

// Intersectional 导出交叉统计
// @Summary 导出交叉统计
// @Tags 导出
// @Produce text/csv
// @Param year_min query int false "起始年份"
// @Param year_max query int false "结束年份"
// @Param offense query string false "罪名类别"
// @Param city query string false "案发城市"
// @Param delimiter query string false "分隔符"
// @Success 200 {string} string "CSV"
// @Router /export/intersectional [get]
func (c *ExportController) Intersectional(w http.ResponseWriter, r *http.Request) {
	opts, ok := c.options(w, r)
	if !ok {
		return
	}
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

	var buf bytes.Buffer
	if err := export.WriteIntersectionalCSV(&buf, rows, opts); err != nil {
		render.Render(w, r, InternalErrorResponse("导出失败", err))
		return
	}
	writeCSV(w, "intersectional", buf.Bytes())
}

func (c *ExportController) options(w http.ResponseWriter, r *http.Request) (export.Options, bool) {
	delimiter, err := parseDelimiter(r.URL.Query().Get("delimiter"))
	if err != nil {
		render.Render(w, r, BadRequestResponse("参数错误", err))
		return export.Options{}, false
	}
	return export.Options{Delimiter: delimiter, Pseudonymizer: c.pseudonymizer}, true
}

func writeCSV(w http.ResponseWriter, name string, data []byte) {
	filename := fmt.Sprintf("%s-%s.csv", name, time.Now().Format("20060102"))
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}
