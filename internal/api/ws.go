package api

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/ProAltro/stock-market-simulator-sub002/internal/events"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	// 模拟器面向本机/内网前端，不做跨域限制
	CheckOrigin: func(r *http.Request) bool { return true },
}

const (
	writeWait      = 5 * time.Second
	pingInterval   = 30 * time.Second
	clientBuffer   = 256
)

// Hub WS 推流集线器
// 引擎回调在 tick 线程上调用 Publish，这里只做一次非阻塞投递，
// 写不动的慢客户端直接断开，绝不反压到 tick 循环。
type Hub struct {
	mu      sync.RWMutex
	clients map[*wsClient]struct{}
	closed  bool
}

// NewHub 创建集线器
func NewHub() *Hub {
	return &Hub{clients: map[*wsClient]struct{}{}}
}

// Publish 广播一个事件信封
func (h *Hub) Publish(env events.Envelope) {
	data, err := json.Marshal(env)
	if err != nil {
		log.Warnf("事件序列化失败: %v", err)
		return
	}
	var stale []*wsClient
	h.mu.RLock()
	for c := range h.clients {
		select {
		case c.send <- data:
		default:
			// 发不进去说明客户端积压，记下来松锁后再踢
			stale = append(stale, c)
		}
	}
	h.mu.RUnlock()
	for _, c := range stale {
		c.drop()
	}
}

// Clients 当前连接数
func (h *Hub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Close 断开全部客户端
func (h *Hub) Close() {
	h.mu.Lock()
	h.closed = true
	clients := make([]*wsClient, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.Unlock()
	for _, c := range clients {
		c.drop()
	}
}

func (h *Hub) add(c *wsClient) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return false
	}
	h.clients[c] = struct{}{}
	return true
}

func (h *Hub) remove(c *wsClient) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.clients, c)
}

type wsClient struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte
	once sync.Once
}

func (c *wsClient) drop() {
	c.once.Do(func() {
		c.hub.remove(c)
		close(c.send)
	})
}

// serveWS 升级连接并挂到集线器
func (h *Hub) serveWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warnf("WS 升级失败: %v", err)
		return
	}
	c := &wsClient{hub: h, conn: conn, send: make(chan []byte, clientBuffer)}
	if !h.add(c) {
		_ = conn.Close()
		return
	}
	go c.writePump()
	go c.readPump()
}

func (c *wsClient) writePump() {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()
	for {
		select {
		case data, ok := <-c.send:
			if !ok {
				_ = c.conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
					time.Now().Add(writeWait))
				return
			}
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				c.drop()
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.drop()
				return
			}
		}
	}
}

// readPump 只为感知断连，丢弃入站消息
func (c *wsClient) readPump() {
	defer c.drop()
	c.conn.SetReadLimit(1024)
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}
