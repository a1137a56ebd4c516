// internal/api/websocket.go
package api

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/Corphon/CoffeeWithCinema/internal/services"
	"github.com/Corphon/CoffeeWithCinema/internal/utils"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

// WebSocket 升级器配置；页面与接口同源，跨域由 CORS 中间件处理
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// ProgressHub 把会话的进度更新推送给该会话的 WebSocket 连接
type ProgressHub struct {
	progress *services.ProgressService
	logger   *utils.Logger

	mutex   sync.Mutex
	clients map[*websocket.Conn]struct{}
}

// NewProgressHub 创建进度推送中心
func NewProgressHub(progress *services.ProgressService) *ProgressHub {
	return &ProgressHub{
		progress: progress,
		logger:   utils.GetLogger(),
		clients:  make(map[*websocket.Conn]struct{}),
	}
}

// CloseAll 关闭所有连接，用于优雅停机
func (hub *ProgressHub) CloseAll() {
	hub.mutex.Lock()
	defer hub.mutex.Unlock()
	for conn := range hub.clients {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
			time.Now().Add(writeWait))
		_ = conn.Close()
	}
	hub.clients = make(map[*websocket.Conn]struct{})
}

func (hub *ProgressHub) register(conn *websocket.Conn) {
	hub.mutex.Lock()
	hub.clients[conn] = struct{}{}
	hub.mutex.Unlock()
}

func (hub *ProgressHub) unregister(conn *websocket.Conn) {
	hub.mutex.Lock()
	delete(hub.clients, conn)
	hub.mutex.Unlock()
	_ = conn.Close()
}

// ServeProgress 升级连接并持续推送当前会话的进度
func (hub *ProgressHub) ServeProgress(c *gin.Context) {
	sess := currentSession(c)

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		hub.logger.Warn("websocket upgrade failed", map[string]interface{}{"error": err.Error()})
		return
	}
	hub.register(conn)
	defer hub.unregister(conn)

	updates := hub.progress.Subscribe(sess.ID)
	defer hub.progress.Unsubscribe(sess.ID, updates)

	hub.logger.Debug("🔌 progress stream connected", map[string]interface{}{"session_id": sess.ID})

	// 读循环只处理 pong 和关闭帧
	done := make(chan struct{})
	go func() {
		defer close(done)
		conn.SetReadLimit(512)
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(pongWait))
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case update, ok := <-updates:
			if !ok {
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(update); err != nil {
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
