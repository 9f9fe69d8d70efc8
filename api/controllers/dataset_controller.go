/*
 * @module api/controllers/dataset_controller
 * @description 数据集控制器，提供上传、SQL 导入、当前数据集信息、加载历史和记录查询接口
 * @architecture RESTful API架构 - 控制器层
 * @stateFlow HTTP请求 -> 审计服务 -> 接入/筛选 -> 统一响应
 * @rules 加载失败返回 400 并附带 IngestOutput，当前数据集保持不变
 * @dependencies github.com/go-chi/render
 * @refs service/audit/service.go
 */

package controllers

import (
	"errors"
	"io"
	"mime"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/render"

	"fairness-audit-service/service/audit"
	"fairness-audit-service/service/disparity"
	"fairness-audit-service/service/ingestion"
)

// maxUploadBytes 上传大小上限
const maxUploadBytes = 64 << 20

// defaultPreview 上传响应中默认返回的记录数
const defaultPreview = 20

// DatasetController 数据集控制器
type DatasetController struct {
	auditService *audit.Service
	defaultDSN   string
}

// NewDatasetController 创建数据集控制器，defaultDSN 为导入请求未指定连接串时使用的 PostgreSQL 地址
func NewDatasetController(auditService *audit.Service, defaultDSN string) *DatasetController {
	return &DatasetController{auditService: auditService, defaultDSN: defaultDSN}
}

// UploadResponse 上传结果
type UploadResponse struct {
	Dataset *audit.Dataset     `json:"dataset,omitempty"`
	Output  audit.IngestOutput `json:"output"`
}

// ImportSQLRequest SQL 导入请求
type ImportSQLRequest struct {
	DSN   string `json:"dsn,omitempty"`
	Table string `json:"table" example:"public.court_cases"`
	Limit int    `json:"limit,omitempty" example:"0"`
}

// DatasetInfo 当前数据集信息
type DatasetInfo struct {
	*audit.Dataset
	RecordCount int `json:"record_count"`
}

// RecordPage 记录分页
type RecordPage struct {
	Records []ingestion.CanonicalCase `json:"records"`
	Total   int                       `json:"total"`
	Page    int                       `json:"page"`
	Size    int                       `json:"size"`
}

// Upload 上传分隔文本数据集
// @Summary 上传数据集
// @Description 以 multipart 的 file 字段或原始请求体上传 CSV，规范化后替换当前数据集
// @Tags 数据集
// @Accept multipart/form-data,text/csv
// @Produce json
// @Param file formData file false "CSV 文件"
// @Param name query string false "数据集名称"
// @Param delimiter query string false "分隔符: , ; tab |，为空时自动识别"
// @Param preview query int false "响应中返回的记录数" default(20)
// @Success 200 {object} APIResponse{data=UploadResponse}
// @Failure 400 {object} APIResponse{data=UploadResponse}
// @Router /datasets/upload [post]
func (c *DatasetController) Upload(w http.ResponseWriter, r *http.Request) {
	delimiter, err := parseDelimiter(r.URL.Query().Get("delimiter"))
	if err != nil {
		render.Render(w, r, BadRequestResponse("参数错误", err))
		return
	}

	body, name, err := uploadBody(r)
	if err != nil {
		render.Render(w, r, BadRequestResponse("读取上传内容失败", err))
		return
	}
	defer body.Close()

	ds, err := c.auditService.Load(r.Context(), name, body, ingestion.LoadOptions{Delimiter: delimiter})
	if err != nil {
		resp := BadRequestResponse("数据集加载失败", err)
		resp.Data = UploadResponse{Output: audit.NewIngestOutput(nil, err)}
		render.Render(w, r, resp)
		return
	}

	preview := queryInt(r, "preview", defaultPreview)
	records := ds.Records
	if preview >= 0 && preview < len(records) {
		records = records[:preview]
	}
	render.Render(w, r, SuccessResponse("数据集加载成功", UploadResponse{
		Dataset: ds,
		Output:  audit.IngestOutput{Records: records},
	}))
}

// ImportSQL 从 PostgreSQL 表导入数据集
// @Summary 从数据库导入数据集
// @Description 读取 PostgreSQL 表的全部列作为原始表格，规范化后替换当前数据集
// @Tags 数据集
// @Accept json
// @Produce json
// @Param request body ImportSQLRequest true "导入请求"
// @Success 200 {object} APIResponse{data=audit.Dataset}
// @Failure 400 {object} APIResponse
// @Router /datasets/import-sql [post]
func (c *DatasetController) ImportSQL(w http.ResponseWriter, r *http.Request) {
	var req ImportSQLRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		render.Render(w, r, BadRequestResponse("请求参数解析失败", err))
		return
	}
	if req.Table == "" {
		render.Render(w, r, BadRequestResponse("表名不能为空", nil))
		return
	}
	dsn := req.DSN
	if dsn == "" {
		dsn = c.defaultDSN
	}

	ds, err := c.auditService.LoadFromPostgres(r.Context(), dsn, req.Table, req.Limit)
	if err != nil {
		resp := BadRequestResponse("数据集导入失败", err)
		resp.Data = UploadResponse{Output: audit.NewIngestOutput(nil, err)}
		render.Render(w, r, resp)
		return
	}
	render.Render(w, r, SuccessResponse("数据集导入成功", ds))
}

// Current 当前数据集信息
// @Summary 当前数据集
// @Description 返回当前数据集的年份范围、筛选选项、中位数和规范化统计
// @Tags 数据集
// @Produce json
// @Success 200 {object} APIResponse{data=DatasetInfo}
// @Failure 404 {object} APIResponse
// @Router /datasets/current [get]
func (c *DatasetController) Current(w http.ResponseWriter, r *http.Request) {
	ds := c.auditService.Current()
	if ds == nil {
		render.Render(w, r, NotFoundResponse("当前没有已加载的数据集", nil))
		return
	}
	render.Render(w, r, SuccessResponse("查询成功", DatasetInfo{Dataset: ds, RecordCount: len(ds.Records)}))
}

// History 加载历史
// @Summary 加载历史
// @Description 返回数据集加载记录，包含失败的加载
// @Tags 数据集
// @Produce json
// @Param limit query int false "返回条数" default(50)
// @Success 200 {object} APIResponse{data=[]models.DatasetLoad}
// @Router /datasets/history [get]
func (c *DatasetController) History(w http.ResponseWriter, r *http.Request) {
	loads, err := c.auditService.LoadHistory(queryInt(r, "limit", 50))
	if err != nil {
		render.Render(w, r, InternalErrorResponse("查询加载历史失败", err))
		return
	}
	render.Render(w, r, SuccessResponse("查询成功", loads))
}

// Records 筛选后的记录
// @Summary 查询记录
// @Description 按年份区间、罪名和城市筛选当前数据集，分页返回
// @Tags 数据集
// @Produce json
// @Param year_min query int false "起始年份"
// @Param year_max query int false "结束年份"
// @Param offense query string false "罪名类别，All 表示不限"
// @Param city query string false "案发城市，All 表示不限"
// @Param page query int false "页码" default(1)
// @Param size query int false "每页大小" default(50)
// @Success 200 {object} APIResponse{data=RecordPage}
// @Router /datasets/current/records [get]
func (c *DatasetController) Records(w http.ResponseWriter, r *http.Request) {
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

	page := queryInt(r, "page", 1)
	size := queryInt(r, "size", 50)
	if page < 1 {
		page = 1
	}
	if size < 1 || size > 1000 {
		size = 50
	}
	start := (page - 1) * size
	if start > len(records) {
		start = len(records)
	}
	end := start + size
	if end > len(records) {
		end = len(records)
	}

	render.Render(w, r, SuccessResponse("查询成功", RecordPage{
		Records: records[start:end],
		Total:   len(records),
		Page:    page,
		Size:    size,
	}))
}

// uploadBody 读取 multipart 的 file 字段或原始请求体
func uploadBody(r *http.Request) (io.ReadCloser, string, error) {
	r.Body = http.MaxBytesReader(nil, r.Body, maxUploadBytes)
	name := r.URL.Query().Get("name")

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if strings.HasPrefix(mediaType, "multipart/") {
		file, header, err := r.FormFile("file")
		if err != nil {
			return nil, "", err
		}
		if name == "" {
			name = header.Filename
		}
		return file, name, nil
	}

	if name == "" {
		name = "upload-" + time.Now().Format("20060102150405") + ".csv"
	}
	return r.Body, name, nil
}

// renderServiceError 将审计服务错误映射为响应
func renderServiceError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, audit.ErrNoDataset) {
		render.Render(w, r, NotFoundResponse("当前没有已加载的数据集", nil))
		return
	}
	render.Render(w, r, InternalErrorResponse("处理失败", err))
}

// resolveDimension 解析 dimension 查询参数
func resolveDimension(r *http.Request) (disparity.Dimension, error) {
	return disparity.ParseDimension(r.URL.Query().Get("dimension"))
}
