package realtime

import (
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/gorilla/websocket"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

// HubStats WebSocket推送统计
type HubStats struct {
	Clients     int   `json:"clients"`
	Connections int64 `json:"connections"`
	Sent        int64 `json:"sent"`
	Dropped     int64 `json:"dropped"`
}

type hubClient struct {
	conn *websocket.Conn
	send chan []byte
	once sync.Once
}

func (c *hubClient) close() {
	c.once.Do(func() { close(c.send) })
}

// Hub 把快照广播给所有WebSocket客户端（对外导出）
// 新客户端连接后立即收到最近一次快照
type Hub struct {
	upgrader   websocket.Upgrader
	logger     watermill.LoggerAdapter
	sendBuffer int

	mu      sync.RWMutex
	clients map[*hubClient]struct{}
	last    []byte
	closed  bool

	connections, sent, dropped atomic.Int64
}

// NewHub 创建广播中心
func NewHub(logger watermill.LoggerAdapter, sendBuffer int) *Hub {
	if logger == nil {
		logger = watermill.NopLogger{}
	}
	if sendBuffer <= 0 {
		sendBuffer = 8
	}
	return &Hub{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		logger:     logger,
		sendBuffer: sendBuffer,
		clients:    make(map[*hubClient]struct{}),
	}
}

// Publish 广播快照，实现publisher.Sink；慢客户端的快照被丢弃
func (h *Hub) Publish(payload string) error {
	data := []byte(payload)

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil
	}
	h.last = data
	for c := range h.clients {
		select {
		case c.send <- data:
			h.sent.Add(1)
		default:
			h.dropped.Add(1)
		}
	}
	return nil
}

// HandleEvent 作为总线订阅者转发快照事件
func (h *Hub) HandleEvent(event *Event) error {
	return h.Publish(string(event.Payload))
}

// ServeHTTP 升级为WebSocket连接
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("WebSocket升级失败", err, nil)
		return
	}

	c := &hubClient{conn: conn, send: make(chan []byte, h.sendBuffer)}
	if !h.register(c) {
		conn.Close()
		return
	}
	h.connections.Add(1)
	h.logger.Debug("WebSocket客户端已连接", watermill.LogFields{"remote": r.RemoteAddr})

	go h.writePump(c)
	h.readPump(c)
}

// Stats 获取推送统计
func (h *Hub) Stats() HubStats {
	h.mu.RLock()
	clients := len(h.clients)
	h.mu.RUnlock()
	return HubStats{
		Clients:     clients,
		Connections: h.connections.Load(),
		Sent:        h.sent.Load(),
		Dropped:     h.dropped.Load(),
	}
}

// Close 断开所有客户端
func (h *Hub) Close() {
	h.mu.Lock()
	h.closed = true
	clients := h.clients
	h.clients = make(map[*hubClient]struct{})
	h.mu.Unlock()

	for c := range clients {
		c.close()
	}
}

func (h *Hub) register(c *hubClient) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return false
	}
	h.clients[c] = struct{}{}
	if h.last != nil {
		c.send <- h.last
		h.sent.Add(1)
	}
	return true
}

func (h *Hub) unregister(c *hubClient) {
	h.mu.Lock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
	}
	h.mu.Unlock()
	c.close()
}

// readPump 只处理控制帧，客户端断开时注销
func (h *Hub) readPump(c *hubClient) {
	defer h.unregister(c)
	c.conn.SetReadLimit(512)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				h.logger.Error("WebSocket读取失败", err, nil)
			}
			return
		}
	}
}

func (h *Hub) writePump(c *hubClient) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()
	for {
		select {
		case data, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
