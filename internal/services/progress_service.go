// internal/services/progress_service.go
package services

import (
	"fmt"
	"sync"
	"time"
)

// 任务状态
const (
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// ProgressUpdate 表示进度更新
type ProgressUpdate struct {
	TaskID   string    `json:"task_id"`
	Progress int       `json:"progress"` // 进度百分比 (0-100)
	Stage    string    `json:"stage,omitempty"`
	Message  string    `json:"message"` // 描述性消息
	Status   string    `json:"status"`  // running, completed, failed
	Time     time.Time `json:"time"`
}

// ProgressTracker 跟踪一次生成任务的进度
type ProgressTracker struct {
	TaskID     string
	Key        string // 所属会话
	Progress   int
	Stage      string
	Message    string
	Status     string
	StartTime  time.Time
	UpdateTime time.Time

	service *ProgressService
	mutex   sync.Mutex
}

// ProgressService 按会话管理进度跟踪器和订阅者
type ProgressService struct {
	trackers    map[string]*ProgressTracker          // key -> 最近一次任务
	subscribers map[string]map[chan ProgressUpdate]bool // key -> 订阅通道
	mutex       sync.RWMutex
}

// NewProgressService 创建进度服务实例
func NewProgressService() *ProgressService {
	return &ProgressService{
		trackers:    make(map[string]*ProgressTracker),
		subscribers: make(map[string]map[chan ProgressUpdate]bool),
	}
}

// Start 为 key 创建新的跟踪器，替换之前的任务
func (s *ProgressService) Start(key, taskID string) *ProgressTracker {
	now := time.Now()
	tracker := &ProgressTracker{
		TaskID:     taskID,
		Key:        key,
		Message:    "Starting generation...",
		Status:     StatusRunning,
		StartTime:  now,
		UpdateTime: now,
		service:    s,
	}

	s.mutex.Lock()
	s.trackers[key] = tracker
	s.mutex.Unlock()

	s.publish(key, tracker.snapshot())
	return tracker
}

// Get 返回 key 最近一次任务的进度
func (s *ProgressService) Get(key string) (ProgressUpdate, bool) {
	s.mutex.RLock()
	tracker, exists := s.trackers[key]
	s.mutex.RUnlock()
	if !exists {
		return ProgressUpdate{}, false
	}

	tracker.mutex.Lock()
	defer tracker.mutex.Unlock()
	return tracker.snapshot(), true
}

// Subscribe 订阅 key 的进度更新，跨多次任务有效
func (s *ProgressService) Subscribe(key string) chan ProgressUpdate {
	// 缓冲区设为16以避免阻塞
	ch := make(chan ProgressUpdate, 16)

	s.mutex.Lock()
	if s.subscribers[key] == nil {
		s.subscribers[key] = make(map[chan ProgressUpdate]bool)
	}
	s.subscribers[key][ch] = true
	tracker := s.trackers[key]
	s.mutex.Unlock()

	// 立即发送当前状态
	if tracker != nil {
		tracker.mutex.Lock()
		ch <- tracker.snapshot()
		tracker.mutex.Unlock()
	}
	return ch
}

// Unsubscribe 取消订阅并关闭通道
func (s *ProgressService) Unsubscribe(key string, ch chan ProgressUpdate) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	subs, ok := s.subscribers[key]
	if !ok || !subs[ch] {
		return
	}
	delete(subs, ch)
	if len(subs) == 0 {
		delete(s.subscribers, key)
	}
	close(ch)
}

// publish 非阻塞地通知订阅者，通道已满时丢弃
func (s *ProgressService) publish(key string, update ProgressUpdate) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	for ch := range s.subscribers[key] {
		select {
		case ch <- update:
		default:
		}
	}
}

// CleanupCompletedTasks 清理已结束且超过 maxAge 的任务
func (s *ProgressService) CleanupCompletedTasks(maxAge time.Duration) int {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	removed := 0
	now := time.Now()
	for key, tracker := range s.trackers {
		tracker.mutex.Lock()
		done := tracker.Status == StatusCompleted || tracker.Status == StatusFailed
		old := now.Sub(tracker.UpdateTime) > maxAge
		tracker.mutex.Unlock()

		if done && old {
			delete(s.trackers, key)
			removed++
		}
	}
	return removed
}

// Forget 删除 key 的跟踪器（会话过期时调用）
func (s *ProgressService) Forget(key string) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	delete(s.trackers, key)
}

// 调用方需持有 t.mutex
func (t *ProgressTracker) snapshot() ProgressUpdate {
	return ProgressUpdate{
		TaskID:   t.TaskID,
		Progress: t.Progress,
		Stage:    t.Stage,
		Message:  t.Message,
		Status:   t.Status,
		Time:     t.UpdateTime,
	}
}

// UpdateProgress 更新任务进度，进度只增不减
func (t *ProgressTracker) UpdateProgress(progress int, stage, message string) {
	t.mutex.Lock()
	if t.Status != StatusRunning {
		t.mutex.Unlock()
		return
	}
	if progress > t.Progress {
		t.Progress = progress
	}
	if stage != "" {
		t.Stage = stage
	}
	if message != "" {
		t.Message = message
	}
	t.UpdateTime = time.Now()
	update := t.snapshot()
	t.mutex.Unlock()

	t.service.publish(t.Key, update)
}

// Complete 标记任务完成
func (t *ProgressTracker) Complete(message string) {
	t.mutex.Lock()
	if t.Status != StatusRunning {
		t.mutex.Unlock()
		return
	}
	t.Progress = 100
	if message == "" {
		message = "Generation complete."
	}
	t.Message = message
	t.Status = StatusCompleted
	t.UpdateTime = time.Now()
	update := t.snapshot()
	t.mutex.Unlock()

	t.service.publish(t.Key, update)
}

// Fail 标记任务失败
func (t *ProgressTracker) Fail(errorMsg string) {
	t.mutex.Lock()
	if t.Status != StatusRunning {
		t.mutex.Unlock()
		return
	}
	t.Message = fmt.Sprintf("Generation failed: %s", errorMsg)
	t.Status = StatusFailed
	t.UpdateTime = time.Now()
	update := t.snapshot()
	t.mutex.Unlock()

	t.service.publish(t.Key, update)
}
