package controllers

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/spf13/cast"

	"fairness-audit-service/service/disparity"
	"fairness-audit-service/service/ingestion"
)

// parseFilter 从查询参数解析筛选条件：year_min、year_max、offense、city
func parseFilter(r *http.Request) (disparity.FilterSpec, error) {
	q := r.URL.Query()
	var spec disparity.FilterSpec

	if v := q.Get("year_min"); v != "" {
		year, err := cast.ToIntE(v)
		if err != nil {
			return spec, fmt.Errorf("year_min 不是有效年份: %s", v)
		}
		spec.Years.Min = year
	}
	if v := q.Get("year_max"); v != "" {
		year, err := cast.ToIntE(v)
		if err != nil {
			return spec, fmt.Errorf("year_max 不是有效年份: %s", v)
		}
		spec.Years.Max = year
	}
	if spec.Years.Max != 0 && spec.Years.Min > spec.Years.Max {
		return spec, fmt.Errorf("year_min 不能大于 year_max")
	}

	spec.Offense = strings.TrimSpace(q.Get("offense"))
	spec.City = strings.TrimSpace(q.Get("city"))
	return spec, nil
}

// parseDelimiter 解析分隔符参数
func parseDelimiter(value string) (rune, error) {
	return ingestion.ParseDelimiter(value)
}

// queryInt 读取整数查询参数，缺失或无效时返回默认值
func queryInt(r *http.Request, key string, defaultValue int) int {
	v := r.URL.Query().Get(key)
	if v == "" {
		return defaultValue
	}
	n, err := cast.ToIntE(v)
	if err != nil {
		return defaultValue
	}
	return n
}
