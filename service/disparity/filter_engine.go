/*
 * @module service/disparity/filter_engine
 * @description 筛选引擎，按受理年份区间、罪名类别和案发城市生成规范记录集的子集
 * @architecture 纯函数
 * @stateFlow 规范记录集 + FilterSpec -> 新切片
 * @rules
 *   - 不修改输入切片，输出长度不超过输入
 *   - 罪名和城市为空或 All 时不限制
 *   - 年份区间为闭区间
 * @dependencies sort
 * @refs metrics_engine.go
 */

package disparity

import (
	"fmt"
	"sort"

	"fairness-audit-service/service/ingestion"
)

// AllValue 表示不做限制的筛选值
const AllValue = "All"

// YearRange 闭区间年份范围
type YearRange struct {
	Min int `json:"min"`
	Max int `json:"max"`
}

// DefaultYearRange 空记录集时的年份范围
var DefaultYearRange = YearRange{Min: 2010, Max: 2024}

// Contains 年份是否在区间内
func (r YearRange) Contains(year int) bool {
	return year >= r.Min && year <= r.Max
}

// FilterSpec 筛选条件
type FilterSpec struct {
	Years   YearRange `json:"years"`
	Offense string    `json:"offense"`
	City    string    `json:"city"`
}

// Key 稳定的字符串表示，用于缓存键
func (f FilterSpec) Key() string {
	return fmt.Sprintf("%d-%d|%s|%s", f.Years.Min, f.Years.Max, normalizeAll(f.Offense), normalizeAll(f.City))
}

// Matches 记录是否满足筛选条件
func (f FilterSpec) Matches(c ingestion.CanonicalCase) bool {
	if !f.Years.Contains(c.ReceivedYear()) {
		return false
	}
	if offense := normalizeAll(f.Offense); offense != AllValue && c.OffenseCategory != offense {
		return false
	}
	if city := normalizeAll(f.City); city != AllValue && c.IncidentCity != city {
		return false
	}
	return true
}

// ApplyFilter 返回满足条件的新切片
func ApplyFilter(records []ingestion.CanonicalCase, spec FilterSpec) []ingestion.CanonicalCase {
	result := make([]ingestion.CanonicalCase, 0, len(records))
	for _, c := range records {
		if spec.Matches(c) {
			result = append(result, c)
		}
	}
	return result
}

// YearBounds 记录集的受理年份范围
func YearBounds(records []ingestion.CanonicalCase) YearRange {
	if len(records) == 0 {
		return DefaultYearRange
	}
	bounds := YearRange{Min: records[0].ReceivedYear(), Max: records[0].ReceivedYear()}
	for _, c := range records[1:] {
		y := c.ReceivedYear()
		if y < bounds.Min {
			bounds.Min = y
		}
		if y > bounds.Max {
			bounds.Max = y
		}
	}
	return bounds
}

// FullExtent 覆盖整个记录集的筛选条件
func FullExtent(records []ingestion.CanonicalCase) FilterSpec {
	return FilterSpec{Years: YearBounds(records), Offense: AllValue, City: AllValue}
}

// CategoryOptions 筛选下拉选项
type CategoryOptions struct {
	Offenses []string `json:"offenses"`
	Cities   []string `json:"cities"`
}

// Categories 返回排序后的罪名类别和城市
func Categories(records []ingestion.CanonicalCase) CategoryOptions {
	offenses := make(map[string]struct{})
	cities := make(map[string]struct{})
	for _, c := range records {
		offenses[c.OffenseCategory] = struct{}{}
		cities[c.IncidentCity] = struct{}{}
	}
	return CategoryOptions{Offenses: sortedKeys(offenses), Cities: sortedKeys(cities)}
}

// Resolve 用记录集范围补全未指定的年份
func (f FilterSpec) Resolve(records []ingestion.CanonicalCase) FilterSpec {
	if f.Years.Min == 0 && f.Years.Max == 0 {
		f.Years = YearBounds(records)
	} else if f.Years.Max == 0 {
		f.Years.Max = YearBounds(records).Max
	}
	f.Offense = normalizeAll(f.Offense)
	f.City = normalizeAll(f.City)
	return f
}

func normalizeAll(v string) string {
	if v == "" || v == AllValue {
		return AllValue
	}
	return v
}

func sortedKeys(m map[string]struct{}) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
