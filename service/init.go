/*
 * @module service/init
 * @description 服务初始化模块，负责数据库连接、表结构迁移、外部连接器、阈值配置和业务服务的装配
 * @architecture 分层架构 - 服务层
 * @stateFlow 应用启动 -> 数据库 -> 迁移 -> 连接器 -> 阈值 -> 告警/事件/指标 -> 审计服务 -> 调度器
 * @rules
 *   - 数据库和阈值配置失败时启动失败
 *   - Redis、Kafka、MQTT、Webhook 均为可选，未配置或连接失败时只记录日志
 * @dependencies gorm.io/gorm, gorm.io/driver/postgres, gorm.io/driver/sqlite
 * @refs service/audit/service.go
 */

package service

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/spf13/cast"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"fairness-audit-service/client/connectors"
	"fairness-audit-service/service/alerting"
	"fairness-audit-service/service/audit"
	"fairness-audit-service/service/cleanup"
	"fairness-audit-service/service/config"
	"fairness-audit-service/service/disparity"
	"fairness-audit-service/service/event"
	"fairness-audit-service/service/export"
	"fairness-audit-service/service/models"
	"fairness-audit-service/service/monitoring"
	"fairness-audit-service/service/scheduler"
)

var (
	DB                     *gorm.DB
	GlobalEventService     *event.EventService
	GlobalThresholdManager *config.ThresholdManager
	GlobalAlertManager     *alerting.AlertManager
	GlobalMetricsCollector *monitoring.MetricsCollector
	GlobalAuditService     *audit.Service
	GlobalSchedulerService *scheduler.SchedulerService
	GlobalRetentionService *cleanup.RetentionService
	GlobalRedisConnector   *connectors.RedisConnector
	GlobalKafkaConnector   *connectors.KafkaConnector
	GlobalMQTTConnector    *connectors.MQTTConnector
	GlobalPseudonymizer    *export.Pseudonymizer
)

// Init 初始化所有服务
func Init() error {
	if err := initDatabase(); err != nil {
		return err
	}
	if err := runMigrations(); err != nil {
		return err
	}
	initConnectors()
	return initServices()
}

// initDatabase 初始化数据库连接，DB_DRIVER 支持 postgres 和 sqlite
func initDatabase() error {
	gormConfig := &gorm.Config{Logger: gormlogger.Default.LogMode(gormlogger.Warn)}

	var dialector gorm.Dialector
	switch driver := getEnvWithDefault("DB_DRIVER", "postgres"); driver {
	case "sqlite":
		dialector = sqlite.Open(getEnvWithDefault("SQLITE_PATH", "fairness-audit.db"))
	case "postgres":
		dialector = postgres.Open(PostgresDSN())
	default:
		return fmt.Errorf("不支持的数据库驱动: %s", driver)
	}

	var err error
	DB, err = gorm.Open(dialector, gormConfig)
	if err != nil {
		return fmt.Errorf("数据库连接失败: %w", err)
	}

	slog.Info("数据库连接成功")
	return nil
}

// PostgresDSN 优先使用 DATABASE_URL，否则由分离的环境变量构建
func PostgresDSN() string {
	if databaseURL := os.Getenv("DATABASE_URL"); databaseURL != "" {
		return databaseURL
	}
	host := getEnvWithDefault("DB_HOST", "localhost")
	port := getEnvWithDefault("DB_PORT", "5432")
	user := getEnvWithDefault("DB_USER", "postgres")
	password := getEnvWithDefault("DB_PASSWORD", "postgres")
	dbname := getEnvWithDefault("DB_NAME", "postgres")
	sslmode := getEnvWithDefault("DB_SSLMODE", "disable")
	schema := getEnvWithDefault("DB_SCHEMA", "public")

	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s search_path=%s",
		host, port, user, password, dbname, sslmode, schema)
}

// getEnvWithDefault 获取环境变量，如果不存在则返回默认值
func getEnvWithDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// runMigrations 运行数据库迁移
func runMigrations() error {
	if err := DB.AutoMigrate(models.AllModels()...); err != nil {
		return fmt.Errorf("数据库迁移失败: %w", err)
	}
	slog.Info("数据库表结构迁移完成")
	return nil
}

// initConnectors 初始化可选的外部连接器
func initConnectors() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if host := os.Getenv("REDIS_HOST"); host != "" {
		cfg := connectors.DefaultRedisConfig(host + ":" + getEnvWithDefault("REDIS_PORT", "6379"))
		cfg.Password = os.Getenv("REDIS_PASSWORD")
		cfg.Database = cast.ToInt(getEnvWithDefault("REDIS_DB", "0"))
		redis := connectors.NewRedisConnector(cfg)
		if err := redis.Connect(ctx); err != nil {
			slog.Warn("Redis连接失败，报告缓存已禁用", "error", err)
		} else {
			GlobalRedisConnector = redis
		}
	}

	if brokers := os.Getenv("KAFKA_BROKERS"); brokers != "" {
		kafka := connectors.NewKafkaConnector(&connectors.KafkaConfig{
			Brokers:      strings.Split(brokers, ","),
			Topic:        getEnvWithDefault("KAFKA_TOPIC", "fairness-findings"),
			RequiredAcks: cast.ToInt(getEnvWithDefault("KAFKA_REQUIRED_ACKS", "1")),
		})
		if err := kafka.Connect(); err != nil {
			slog.Warn("Kafka连接器初始化失败", "error", err)
		} else {
			GlobalKafkaConnector = kafka
		}
	}

	if broker := os.Getenv("MQTT_BROKER"); broker != "" {
		mqtt := connectors.NewMQTTConnector(&connectors.MQTTConfig{
			Broker:   broker,
			ClientID: getEnvWithDefault("MQTT_CLIENT_ID", "fairness-audit-service"),
			Username: os.Getenv("MQTT_USERNAME"),
			Password: os.Getenv("MQTT_PASSWORD"),
			QoS:      byte(cast.ToUint8(getEnvWithDefault("MQTT_QOS", "1"))),
		})
		if err := mqtt.Connect(); err != nil {
			slog.Warn("MQTT连接失败", "error", err)
		} else {
			GlobalMQTTConnector = mqtt
		}
	}
}

// initServices 初始化业务服务
func initServices() error {
	GlobalEventService = event.NewEventService(DB)
	GlobalMetricsCollector = monitoring.NewMetricsCollector()

	GlobalThresholdManager = config.NewThresholdManager(DB,
		config.WithFile(os.Getenv("THRESHOLDS_FILE")),
		config.WithEnvironment(getEnvWithDefault("APP_ENV", "default")),
	)
	if err := GlobalThresholdManager.Load(); err != nil {
		return err
	}

	GlobalAlertManager = alerting.NewAlertManager(DB)
	if interval := os.Getenv("ALERT_REPEAT_INTERVAL"); interval != "" {
		GlobalAlertManager.SetConfig(&alerting.AlertConfig{
			RepeatInterval: cast.ToDuration(interval),
			SendTimeout:    10 * time.Second,
			MaxHistory:     1000,
		})
	}
	registerNotificationChannels(GlobalAlertManager)

	if key := os.Getenv("EXPORT_PSEUDONYM_KEY"); key != "" {
		p, err := export.NewPseudonymizer([]byte(key))
		if err != nil {
			return err
		}
		GlobalPseudonymizer = p
	}

	opts := []audit.Option{
		audit.WithDB(DB),
		audit.WithDispatcher(GlobalAlertManager),
		audit.WithEventPublisher(GlobalEventService),
		audit.WithMetrics(GlobalMetricsCollector),
	}
	if GlobalRedisConnector != nil {
		opts = append(opts, audit.WithReportCache(GlobalRedisConnector,
			cast.ToDuration(getEnvWithDefault("REPORT_CACHE_TTL", "10m"))))
	}
	GlobalAuditService = audit.NewService(GlobalThresholdManager, opts...)

	GlobalThresholdManager.AddChangeNotifier(config.ThresholdChangeFunc(
		func(_, _ disparity.Thresholds, _ []config.ConfigChange) {
			GlobalAuditService.HandleThresholdsChanged(context.Background())
		}))

	GlobalSchedulerService = scheduler.NewSchedulerService(GlobalAuditService, os.Getenv("AUDIT_CRON"))
	if GlobalRedisConnector != nil {
		GlobalSchedulerService.SetLock(scheduler.NewRedisLock(GlobalRedisConnector.Client()),
			cast.ToDuration(getEnvWithDefault("AUDIT_LOCK_TTL", "10m")))
	}
	if err := GlobalSchedulerService.Start(); err != nil {
		return fmt.Errorf("启动审计调度器失败: %w", err)
	}

	GlobalRetentionService = cleanup.NewRetentionService(DB, cleanup.RetentionPolicy{
		EventDays:   cast.ToInt(getEnvWithDefault("EVENT_RETENTION_DAYS", "30")),
		FindingDays: cast.ToInt(getEnvWithDefault("FINDING_RETENTION_DAYS", "365")),
		LoadDays:    cast.ToInt(getEnvWithDefault("LOAD_RETENTION_DAYS", "365")),
	})
	if err := GlobalRetentionService.Start(os.Getenv("CLEANUP_CRON")); err != nil {
		return fmt.Errorf("启动历史清理调度器失败: %w", err)
	}

	slog.Info("服务初始化完成")
	return nil
}

// registerNotificationChannels 按已初始化的连接器注册通知渠道
func registerNotificationChannels(manager *alerting.AlertManager) {
	manager.RegisterChannel(alerting.NewWebhookNotificationChannel(os.Getenv("ALERT_WEBHOOK_URL")))
	if GlobalKafkaConnector != nil {
		manager.RegisterChannel(alerting.NewKafkaNotificationChannel(GlobalKafkaConnector))
	}
	if GlobalMQTTConnector != nil {
		manager.RegisterChannel(alerting.NewMQTTNotificationChannel(GlobalMQTTConnector, os.Getenv("MQTT_TOPIC_PREFIX")))
	}
	if GlobalRedisConnector != nil {
		manager.RegisterChannel(alerting.NewRedisNotificationChannel(GlobalRedisConnector, os.Getenv("REDIS_FINDINGS_CHANNEL")))
	}
}

// Shutdown 释放资源
func Shutdown() {
	if GlobalSchedulerService != nil {
		GlobalSchedulerService.Stop()
	}
	if GlobalRetentionService != nil {
		GlobalRetentionService.Stop()
	}
	if GlobalEventService != nil {
		GlobalEventService.Stop()
	}
	if GlobalKafkaConnector != nil {
		GlobalKafkaConnector.Disconnect()
	}
	if GlobalMQTTConnector != nil {
		GlobalMQTTConnector.Disconnect()
	}
	if GlobalRedisConnector != nil {
		GlobalRedisConnector.Disconnect()
	}
}
