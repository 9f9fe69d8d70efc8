/*
 * @module service/ingestion/postgres_source
 * @description PostgreSQL 数据源，从数据库表读取案件记录并转换为原始表
 * @architecture 连接池模式 - 管理数据库连接的生命周期
 * @stateFlow 打开连接 -> 构建查询 -> 读取列名和行 -> RawTable -> 统一规范化管道
 * @rules 表名必须经过标识符转义，NULL 值按空字符串处理
 * @dependencies database/sql, github.com/lib/pq, context
 * @refs csv_reader.go, record_normalizer.go
 */

package ingestion

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"
)

// PostgresSource PostgreSQL 数据源
type PostgresSource struct {
	db          *sql.DB
	maxConns    int
	connTimeout time.Duration
}

// NewPostgresSource 基于已有连接创建数据源
func NewPostgresSource(db *sql.DB) *PostgresSource {
	return &PostgresSource{
		db:          db,
		maxConns:    10,
		connTimeout: 30 * time.Second,
	}
}

// OpenPostgresSource 根据连接字符串打开数据源
func OpenPostgresSource(ctx context.Context, dsn string) (*PostgresSource, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("打开PostgreSQL连接失败: %w", err)
	}

	source := NewPostgresSource(db)
	db.SetMaxOpenConns(source.maxConns)
	db.SetConnMaxLifetime(time.Hour)

	pingCtx, cancel := context.WithTimeout(ctx, source.connTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("PostgreSQL连接测试失败: %w", err)
	}
	return source, nil
}

// Close 关闭连接池
func (p *PostgresSource) Close() error {
	if p.db == nil {
		return nil
	}
	return p.db.Close()
}

// ReadTable 读取整张表，limit <= 0 表示不限制
func (p *PostgresSource) ReadTable(ctx context.Context, table string, limit int) (*RawTable, error) {
	query, err := BuildSelectQuery(table, limit)
	if err != nil {
		return nil, err
	}

	rows, err := p.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("查询表 %s 失败: %w", table, err)
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("获取列信息失败: %w", err)
	}

	result := &RawTable{Headers: columns}
	values := make([]sql.NullString, len(columns))
	scanArgs := make([]interface{}, len(columns))
	for i := range values {
		scanArgs[i] = &values[i]
	}

	for rows.Next() {
		if err := rows.Scan(scanArgs...); err != nil {
			return nil, fmt.Errorf("读取数据行失败: %w", err)
		}
		cells := make([]string, len(columns))
		for i, v := range values {
			if v.Valid {
				cells[i] = v.String
			}
		}
		result.Rows = append(result.Rows, cells)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("遍历数据行失败: %w", err)
	}

	return result, nil
}

// BuildSelectQuery 构建查询语句，支持 schema.table 形式
func BuildSelectQuery(table string, limit int) (string, error) {
	table = strings.TrimSpace(table)
	if table == "" {
		return "", fmt.Errorf("表名不能为空")
	}

	parts := strings.Split(table, ".")
	if len(parts) > 2 {
		return "", fmt.Errorf("无效的表名: %s", table)
	}
	quoted := make([]string, 0, len(parts))
	for _, part := range parts {
		if strings.TrimSpace(part) == "" {
			return "", fmt.Errorf("无效的表名: %s", table)
		}
		quoted = append(quoted, pq.QuoteIdentifier(part))
	}

	query := "SELECT * FROM " + strings.Join(quoted, ".")
	if limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", limit)
	}
	return query, nil
}
