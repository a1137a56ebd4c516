// internal/services/session_service.go
package services

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Corphon/CoffeeWithCinema/internal/config"
	apperrors "github.com/Corphon/CoffeeWithCinema/internal/errors"
	"github.com/Corphon/CoffeeWithCinema/internal/models"
	"github.com/Corphon/CoffeeWithCinema/internal/utils"
)

// SessionService 管理内存中的会话，每个浏览器一个，互不共享
type SessionService struct {
	sessions map[string]*models.Session
	mutex    sync.RWMutex

	defaults config.Settings
	ttl      time.Duration
	now      func() time.Time

	// 会话过期时的回调（例如清理进度跟踪器）
	onExpire func(id string)

	metrics       *utils.APIMetrics
	cleanupTicker *time.Ticker
	stop          chan struct{}
	stopOnce      sync.Once
}

// NewSessionService 创建会话服务
func NewSessionService(defaults config.Settings, ttl time.Duration) *SessionService {
	if ttl <= 0 {
		ttl = 12 * time.Hour
	}
	return &SessionService{
		sessions: make(map[string]*models.Session),
		defaults: defaults.Normalize(),
		ttl:      ttl,
		now:      time.Now,
		metrics:  utils.NewAPIMetrics(),
		stop:     make(chan struct{}),
	}
}

// OnExpire 设置会话过期回调
func (s *SessionService) OnExpire(fn func(id string)) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.onExpire = fn
}

// Defaults 新会话使用的默认设置
func (s *SessionService) Defaults() config.Settings {
	return s.defaults
}

// Create 创建新会话
func (s *SessionService) Create() *models.Session {
	sess := models.NewSession(uuid.New().String(), s.defaults, s.now())

	s.mutex.Lock()
	s.sessions[sess.ID] = sess
	n := len(s.sessions)
	s.mutex.Unlock()

	s.metrics.SetActiveSessions(n)
	return sess
}

// Get 获取会话并刷新最后访问时间
func (s *SessionService) Get(id string) (*models.Session, bool) {
	if id == "" {
		return nil, false
	}
	s.mutex.RLock()
	sess, ok := s.sessions[id]
	s.mutex.RUnlock()
	if ok {
		sess.Touch(s.now())
	}
	return sess, ok
}

// GetOrCreate 返回已有会话，不存在时新建；第二个返回值表示是否新建
func (s *SessionService) GetOrCreate(id string) (*models.Session, bool) {
	if sess, ok := s.Get(id); ok {
		return sess, false
	}
	return s.Create(), true
}

// Delete 删除会话
func (s *SessionService) Delete(id string) {
	s.mutex.Lock()
	delete(s.sessions, id)
	n := len(s.sessions)
	s.mutex.Unlock()
	s.metrics.SetActiveSessions(n)
}

// Count 当前会话数量
func (s *SessionService) Count() int {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return len(s.sessions)
}

// UpdateSettings 规范化并校验设置，校验失败时会话保持不变
func (s *SessionService) UpdateSettings(sess *models.Session, in config.Settings) (config.Settings, error) {
	normalized := in.NormalizeWith(s.defaults)
	if err := normalized.Validate(); err != nil {
		return sess.Settings(), apperrors.NewValidationError("invalid settings", err)
	}
	return sess.UpdateSettings(normalized, s.defaults), nil
}

// ResetSettings 恢复默认设置
func (s *SessionService) ResetSettings(sess *models.Session) config.Settings {
	return sess.UpdateSettings(s.defaults, s.defaults)
}

// CleanupExpired 删除超过 TTL 未访问且没有生成在进行的会话
func (s *SessionService) CleanupExpired() int {
	now := s.now()
	var expired []string

	s.mutex.Lock()
	for id, sess := range s.sessions {
		if now.Sub(sess.LastSeen()) > s.ttl && !sess.Running() {
			delete(s.sessions, id)
			expired = append(expired, id)
		}
	}
	n := len(s.sessions)
	onExpire := s.onExpire
	s.mutex.Unlock()

	s.metrics.SetActiveSessions(n)
	if onExpire != nil {
		for _, id := range expired {
			onExpire(id)
		}
	}
	return len(expired)
}

// StartCleanup 定期清理过期会话
func (s *SessionService) StartCleanup(interval time.Duration) {
	s.cleanupTicker = time.NewTicker(interval)
	go func() {
		for {
			select {
			case <-s.cleanupTicker.C:
				if n := s.CleanupExpired(); n > 0 {
					utils.GetLogger().Info("expired sessions removed", map[string]interface{}{"count": n})
				}
			case <-s.stop:
				return
			}
		}
	}()
}

// Stop 停止清理协程
func (s *SessionService) Stop() {
	s.stopOnce.Do(func() {
		if s.cleanupTicker != nil {
			s.cleanupTicker.Stop()
		}
		close(s.stop)
	})
}
