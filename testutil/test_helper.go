/*
 * @module testutil/test_helper
 * @description 测试工具和辅助函数：内存数据库、测试数据工厂、CSV 样本和 HTTP 请求封装
 * @architecture 测试基础设施 - 提供测试通用工具和数据工厂
 * @stateFlow 测试环境初始化 -> 测试数据创建 -> 测试执行 -> 清理资源
 * @rules 提供可重用的测试工具，确保测试环境的一致性
 * @dependencies gorm, sqlite, testify, time
 * @refs service/models
 */

package testutil

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"fairness-audit-service/service/models"
)

// TestDB 测试数据库配置
type TestDB struct {
	DB *gorm.DB
}

// NewTestDB 创建测试数据库
func NewTestDB() *TestDB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		panic(fmt.Sprintf("failed to connect test database: %v", err))
	}

	// 内存库每个连接独立，限制为单连接
	if sqlDB, err := db.DB(); err == nil {
		sqlDB.SetMaxOpenConns(1)
	}

	if err := db.AutoMigrate(models.AllModels()...); err != nil {
		panic(fmt.Sprintf("failed to migrate test database: %v", err))
	}

	return &TestDB{DB: db}
}

// CleanDB 清理数据库
func (tdb *TestDB) CleanDB() {
	tables := []string{
		"dataset_loads",
		"audit_findings",
		"system_configs",
		"sse_events",
	}
	for _, table := range tables {
		tdb.DB.Exec(fmt.Sprintf("DELETE FROM %s", table))
	}
}

// Close 关闭数据库连接
func (tdb *TestDB) Close() {
	if db, err := tdb.DB.DB(); err == nil {
		db.Close()
	}
}

// TestDataFactory 测试数据工厂
type TestDataFactory struct {
	DB *gorm.DB
}

// NewTestDataFactory 创建测试数据工厂
func NewTestDataFactory(db *gorm.DB) *TestDataFactory {
	return &TestDataFactory{DB: db}
}

// DatasetLoadOption 加载记录选项函数类型
type DatasetLoadOption func(*models.DatasetLoad)

// CreateDatasetLoad 创建测试加载记录
func (f *TestDataFactory) CreateDatasetLoad(opts ...DatasetLoadOption) *models.DatasetLoad {
	load := &models.DatasetLoad{
		Name:         "test_" + generateSuffix() + ".csv",
		Source:       models.LoadSourceUpload,
		Status:       models.LoadStatusSuccess,
		RawRows:      4,
		AcceptedRows: 4,
		MedianAge:    30,
		Stats:        models.JSONB{},
		CreatedAt:    time.Now(),
	}
	for _, opt := range opts {
		opt(load)
	}
	if err := f.DB.Create(load).Error; err != nil {
		panic(fmt.Sprintf("failed to create test dataset load: %v", err))
	}
	return load
}

// CreateSystemConfig 创建测试配置项
func (f *TestDataFactory) CreateSystemConfig(key, value string) *models.SystemConfig {
	cfg := &models.SystemConfig{
		ID:          generateID("cfg"),
		Key:         key,
		Value:       value,
		Environment: "test",
		Version:     1,
	}
	if err := f.DB.Create(cfg).Error; err != nil {
		panic(fmt.Sprintf("failed to create test system config: %v", err))
	}
	return cfg
}

// CaseRow CSV 样本中的一行，字段顺序与 CaseHeaders 一致
type CaseRow struct {
	CaseID       string
	ReceivedDate string
	Offense      string
	Disposition  string
	SentenceType string
	Term         string
	Unit         string
	Age          string
	Race         string
	Gender       string
	City         string
	Judge        string
	Duration     string
}

// CaseHeaders 主命名方式的表头
var CaseHeaders = []string{
	"CASE_ID", "RECEIVED_DATE", "OFFENSE_CATEGORY", "CHARGE_DISPOSITION", "SENTENCE_TYPE",
	"COMMITMENT_TERM", "COMMITMENT_UNIT", "AGE_AT_INCIDENT", "RACE", "GENDER",
	"INCIDENT_CITY", "SENTENCE_JUDGE", "LENGTH_OF_CASE_in_Days",
}

// NewCaseRow 默认的有效样本行
func NewCaseRow(id, race, term string) CaseRow {
	return CaseRow{
		CaseID:       id,
		ReceivedDate: "3/15/2018 12:00:00 AM",
		Offense:      "Narcotics",
		Disposition:  "Plea Of Guilty",
		SentenceType: "Prison",
		Term:         term,
		Unit:         "Year(s)",
		Age:          "30",
		Race:         race,
		Gender:       "Male",
		City:         "Chicago",
		Judge:        "Jane Doe",
		Duration:     "100",
	}
}

func (r CaseRow) cells() []string {
	return []string{r.CaseID, r.ReceivedDate, r.Offense, r.Disposition, r.SentenceType,
		r.Term, r.Unit, r.Age, r.Race, r.Gender, r.City, r.Judge, r.Duration}
}

// BuildCSV 生成带表头的 CSV 文本
func BuildCSV(rows ...CaseRow) string {
	var sb strings.Builder
	sb.WriteString(strings.Join(CaseHeaders, ","))
	sb.WriteString("\n")
	for _, r := range rows {
		sb.WriteString(strings.Join(r.cells(), ","))
		sb.WriteString("\n")
	}
	return sb.String()
}

// DisparityCSV 两组种族刑期差距为 4 倍的四行样本
func DisparityCSV() string {
	return BuildCSV(
		NewCaseRow("c1", "Black", "3"),
		NewCaseRow("c2", "Black", "5"),
		NewCaseRow("c3", "White", "1"),
		NewCaseRow("c4", "White", "1"),
	)
}

// PerformRequest 执行 HTTP 请求
func PerformRequest(handler http.Handler, method, path string, body io.Reader, headers ...string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, body)
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

// PerformJSONRequest 以 JSON 请求体执行 HTTP 请求
func PerformJSONRequest(handler http.Handler, method, path string, payload interface{}) *httptest.ResponseRecorder {
	data, _ := json.Marshal(payload)
	return PerformRequest(handler, method, path, bytes.NewReader(data), "Content-Type", "application/json")
}

// APIEnvelope 统一响应结构
type APIEnvelope struct {
	Status int             `json:"status"`
	Msg    string          `json:"msg"`
	Data   json.RawMessage `json:"data"`
}

// DecodeResponse 解析统一响应
func DecodeResponse(t *testing.T, rec *httptest.ResponseRecorder) APIEnvelope {
	t.Helper()
	var env APIEnvelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	return env
}

// DecodeData 将统一响应中的 data 字段解析到 dest
func DecodeData(t *testing.T, rec *httptest.ResponseRecorder, dest interface{}) APIEnvelope {
	t.Helper()
	env := DecodeResponse(t, rec)
	require.NoError(t, json.Unmarshal(env.Data, dest))
	return env
}

// 辅助函数
func generateID(prefix string) string {
	return fmt.Sprintf("%s_%d_%s", prefix, time.Now().UnixNano(), generateSuffix())
}

func generateSuffix() string {
	return fmt.Sprintf("%d", time.Now().UnixNano()%100000)
}
