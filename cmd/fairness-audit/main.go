// fairness-audit 离线审计命令行：读取案件 CSV，输出差异报告、交叉统计、摘要或 CSV 导出
package main

import (
	"log/slog"
	"os"

	"fairness-audit-service/logger"
)

func main() {
	// 标准输出留给结果
	slog.SetDefault(logger.New(os.Stderr, getEnvWithDefault("LOG_LEVEL", "warn"), "text"))
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func getEnvWithDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
