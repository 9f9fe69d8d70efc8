/*
 * @module service/event_service
 * @description 事件推送服务，通过 SSE 向前端推送数据集加载、告警发现和阈值变更事件
 * @architecture 事件驱动架构 - 业务服务层
 * @stateFlow 事件产生 -> 持久化 -> 分发到用户连接 -> 客户端推送
 * @rules
 *   - 单个连接的事件队列满时丢弃该事件，不阻塞发布方
 *   - 数据库为空时只做内存分发
 * @dependencies fairness-audit-service/service/models, gorm.io/gorm
 * @refs api/controllers/event_controller.go
 */

package event

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"gorm.io/gorm"

	"fairness-audit-service/service/models"
)

// clientBufferSize 每个连接缓冲的事件数
const clientBufferSize = 100

// EventService 事件推送服务
type EventService struct {
	db          *gorm.DB
	connections map[string]map[string]*SSEClient // userName -> connectionID -> client
	mu          sync.RWMutex
	ctx         context.Context
	cancel      context.CancelFunc
}

// SSEClient SSE客户端连接
type SSEClient struct {
	ID          string
	UserName    string
	Channel     chan *models.SSEEvent
	Done        chan bool
	ClientIP    string
	ConnectedAt time.Time
}

// ConnectionInfo 连接概要
type ConnectionInfo struct {
	ID          string    `json:"id"`
	UserName    string    `json:"user_name"`
	ClientIP    string    `json:"client_ip"`
	ConnectedAt time.Time `json:"connected_at"`
	Pending     int       `json:"pending"`
}

// NewEventService 创建事件服务实例
func NewEventService(db *gorm.DB) *EventService {
	ctx, cancel := context.WithCancel(context.Background())
	return &EventService{
		db:          db,
		connections: make(map[string]map[string]*SSEClient),
		ctx:         ctx,
		cancel:      cancel,
	}
}

// === SSE连接管理 ===

// AddSSEConnection 添加SSE连接
func (s *EventService) AddSSEConnection(userName, connectionID, clientIP string) *SSEClient {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.connections[userName] == nil {
		s.connections[userName] = make(map[string]*SSEClient)
	}

	client := &SSEClient{
		ID:          connectionID,
		UserName:    userName,
		Channel:     make(chan *models.SSEEvent, clientBufferSize),
		Done:        make(chan bool),
		ClientIP:    clientIP,
		ConnectedAt: time.Now(),
	}
	s.connections[userName][connectionID] = client

	slog.Info("SSE连接已建立", "user", userName, "connection_id", connectionID, "ip", clientIP)
	return client
}

// RemoveSSEConnection 移除SSE连接
func (s *EventService) RemoveSSEConnection(userName, connectionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	userConnections, exists := s.connections[userName]
	if !exists {
		return
	}
	client, exists := userConnections[connectionID]
	if !exists {
		return
	}
	close(client.Done)
	delete(userConnections, connectionID)
	if len(userConnections) == 0 {
		delete(s.connections, userName)
	}
	slog.Info("SSE连接已断开", "user", userName, "connection_id", connectionID)
}

// SendEventToUser 向指定用户发送事件
func (s *EventService) SendEventToUser(userName string, event *models.SSEEvent) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	userConnections, exists := s.connections[userName]
	if !exists {
		return fmt.Errorf("用户 %s 没有活跃的SSE连接", userName)
	}

	event.UserName = userName
	if err := s.saveEvent(event); err != nil {
		return err
	}

	for _, client := range userConnections {
		deliver(client, event)
	}
	return nil
}

// BroadcastEvent 广播事件给所有用户
func (s *EventService) BroadcastEvent(event *models.SSEEvent) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if err := s.saveEvent(event); err != nil {
		return err
	}

	for userName, userConnections := range s.connections {
		for _, client := range userConnections {
			eventCopy := *event
			eventCopy.UserName = userName
			deliver(client, &eventCopy)
		}
	}
	return nil
}

// Publish 以广播方式发布业务事件，失败只记录日志
func (s *EventService) Publish(eventType string, data map[string]interface{}) {
	event := &models.SSEEvent{
		EventType: eventType,
		Data:      models.JSONB(data),
		CreatedAt: time.Now(),
	}
	if err := s.BroadcastEvent(event); err != nil {
		slog.Warn("发布事件失败", "event_type", eventType, "error", err)
	}
}

// GetConnections 当前活跃连接
func (s *EventService) GetConnections() []ConnectionInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []ConnectionInfo
	for _, userConnections := range s.connections {
		for _, client := range userConnections {
			result = append(result, ConnectionInfo{
				ID:          client.ID,
				UserName:    client.UserName,
				ClientIP:    client.ClientIP,
				ConnectedAt: client.ConnectedAt,
				Pending:     len(client.Channel),
			})
		}
	}
	return result
}

// GetEventHistoryList 分页查询事件历史
func (s *EventService) GetEventHistoryList(page, pageSize int, eventType string) ([]models.SSEEvent, int64, error) {
	if s.db == nil {
		return nil, 0, fmt.Errorf("事件历史未启用持久化")
	}
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 20
	}

	query := s.db.Model(&models.SSEEvent{})
	if eventType != "" {
		query = query.Where("event_type = ?", eventType)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("统计事件历史失败: %w", err)
	}

	var events []models.SSEEvent
	if err := query.Order("created_at DESC").Offset((page - 1) * pageSize).Limit(pageSize).Find(&events).Error; err != nil {
		return nil, 0, fmt.Errorf("查询事件历史失败: %w", err)
	}
	return events, total, nil
}

// Stop 关闭所有连接
func (s *EventService) Stop() {
	s.cancel()

	s.mu.Lock()
	defer s.mu.Unlock()
	for userName, userConnections := range s.connections {
		for id, client := range userConnections {
			close(client.Done)
			delete(userConnections, id)
		}
		delete(s.connections, userName)
	}
	slog.Info("事件服务已停止")
}

// Done 服务停止信号
func (s *EventService) Done() <-chan struct{} {
	return s.ctx.Done()
}

func (s *EventService) saveEvent(event *models.SSEEvent) error {
	if event.Data == nil {
		event.Data = models.JSONB{}
	}
	if s.db == nil {
		return nil
	}
	if err := s.db.Create(event).Error; err != nil {
		return fmt.Errorf("保存SSE事件失败: %w", err)
	}
	return nil
}

func deliver(client *SSEClient, event *models.SSEEvent) {
	select {
	case client.Channel <- event:
	default:
		slog.Warn("事件队列已满，跳过发送", "user", client.UserName, "connection_id", client.ID)
	}
}
