package server

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"campus-access/internal/apiserver/auth"
	"campus-access/internal/apiserver/authz"
	"campus-access/internal/shared/eventbus"
	"campus-access/internal/shared/model"
	"campus-access/pkg/logging"
)

const (
	wsWriteWait  = 10 * time.Second
	wsPongWait   = 60 * time.Second
	wsPingPeriod = 30 * time.Second
)

// upgrader WebSocket 升级器配置
//
// CheckOrigin 当前允许所有来源，令牌通过 ?token= 校验
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// wsMessage 推送消息格式
//
//	状态事件：{"type": "status", "data": {...}}
//	心跳响应：{"type": "pong"}
type wsMessage struct {
	Type string                `json:"type"`
	Data *eventbus.StatusEvent `json:"data,omitempty"`
}

// EventGateway WebSocket 事件网关
//
// 客户端连接 /ws/requests 后，网关订阅事件总线，
// 把调用方可见申请的状态变更实时推送出去。
type EventGateway struct {
	bus     eventbus.Bus
	metrics *Metrics
	log     *logging.Logger

	mu      sync.Mutex
	clients map[*wsClient]struct{}
}

// wsClient 单个连接；gorilla/websocket 不允许并发写，写操作串行化
type wsClient struct {
	conn    *websocket.Conn
	user    *model.User
	writeMu sync.Mutex
}

func (c *wsClient) writeJSON(v any) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	c.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
	return c.conn.WriteJSON(v)
}

func (c *wsClient) ping() error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	c.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
	return c.conn.WriteMessage(websocket.PingMessage, nil)
}

// NewEventGateway 创建事件网关
func NewEventGateway(bus eventbus.Bus, metrics *Metrics, log *logging.Logger) *EventGateway {
	return &EventGateway{
		bus:     bus,
		metrics: metrics,
		log:     log,
		clients: make(map[*wsClient]struct{}),
	}
}

// ClientCount 当前连接数
func (g *EventGateway) ClientCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.clients)
}

// HandleWebSocket 处理 WebSocket 连接请求
//
// 路由: GET /ws/requests
//
// 查询参数：
//   - token: 访问令牌（由认证中间件校验）
//   - recent: 连接后先补发最近 N 条可见事件（可选）
//
// 客户端消息：
//
//	心跳：{"type": "ping"} -> 响应 {"type": "pong"}
func (g *EventGateway) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	user := auth.SessionFrom(r.Context()).User()
	if user == nil {
		writeError(w, http.StatusUnauthorized, "not authenticated")
		return
	}
	recent, _ := strconv.ParseInt(r.URL.Query().Get("recent"), 10, 64)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	events, err := g.bus.Subscribe(ctx)
	if err != nil {
		g.log.WithContext(ctx).WithError(err).Error("Event bus subscribe failed")
		writeError(w, http.StatusServiceUnavailable, "event stream unavailable")
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		g.log.WithContext(ctx).WithError(err).Warn("WebSocket upgrade failed")
		return
	}
	defer conn.Close()

	client := &wsClient{conn: conn, user: user}
	g.addClient(client)
	defer g.removeClient(client)

	g.log.WithContext(ctx).Info("WebSocket client connected", "user_id", user.ID)

	go g.readPump(client, cancel)

	if recent > 0 {
		g.replay(ctx, client, min(recent, eventbus.MaxStreamLength))
	}
	g.writePump(ctx, client, events)
}

func (g *EventGateway) addClient(c *wsClient) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.clients[c] = struct{}{}
	g.metrics.WSConnectionOpened()
}

func (g *EventGateway) removeClient(c *wsClient) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.clients[c]; ok {
		delete(g.clients, c)
		g.metrics.WSConnectionClosed()
	}
}

// readPump 读取客户端消息，连接关闭时取消上下文
func (g *EventGateway) readPump(c *wsClient, cancel context.CancelFunc) {
	defer cancel()
	c.conn.SetReadLimit(512)
	c.conn.SetReadDeadline(time.Now().Add(wsPongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(wsPongWait))
		return nil
	})

	for {
		_, msg, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				g.log.WithError(err).Debug("WebSocket read error")
			}
			return
		}

		var req map[string]interface{}
		if json.Unmarshal(msg, &req) == nil && req["type"] == "ping" {
			g.metrics.RecordWSMessage("in", "ping")
			if err := c.writeJSON(wsMessage{Type: "pong"}); err != nil {
				return
			}
			g.metrics.RecordWSMessage("out", "pong")
		}
	}
}

// replay 按时间正序补发最近的可见事件
func (g *EventGateway) replay(ctx context.Context, c *wsClient, count int64) {
	events, err := recentVisible(ctx, g.bus, c.user, count)
	if err != nil {
		g.log.WithContext(ctx).WithError(err).Warn("Recent events unavailable")
		return
	}
	for i := len(events) - 1; i >= 0; i-- {
		if err := g.send(c, events[i]); err != nil {
			return
		}
	}
}

// writePump 推送事件并定时发送 ping
func (g *EventGateway) writePump(ctx context.Context, c *wsClient, events <-chan *eventbus.StatusEvent) {
	pingTicker := time.NewTicker(wsPingPeriod)
	defer pingTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-pingTicker.C:
			if err := c.ping(); err != nil {
				return
			}
		case event, ok := <-events:
			if !ok {
				return
			}
			if err := g.send(c, event); err != nil {
				return
			}
		}
	}
}

func (g *EventGateway) send(c *wsClient, event *eventbus.StatusEvent) error {
	if !authz.CanView(c.user, eventRequest(event)) {
		return nil
	}
	if err := c.writeJSON(wsMessage{Type: "status", Data: event}); err != nil {
		return err
	}
	g.metrics.RecordWSMessage("out", "status")
	return nil
}

// recentVisible 返回 user 可见的最近 limit 条事件，最新的在前
//
// 先读出整个保留窗口再过滤，不可见事件不占用 limit。
func recentVisible(ctx context.Context, bus eventbus.Bus, user *model.User, limit int64) ([]*eventbus.StatusEvent, error) {
	events, err := bus.Recent(ctx, eventbus.MaxStreamLength)
	if err != nil {
		return nil, err
	}
	out := make([]*eventbus.StatusEvent, 0, min(limit, int64(len(events))))
	for _, e := range events {
		if int64(len(out)) == limit {
			break
		}
		if authz.CanView(user, eventRequest(e)) {
			out = append(out, e)
		}
	}
	return out, nil
}

// eventRequest 用事件携带的归属字段还原可见性判断所需的申请视图
func eventRequest(e *eventbus.StatusEvent) *model.Request {
	return &model.Request{
		ID:          e.RequestID,
		BuildingID:  e.BuildingID,
		StudentID:   e.StudentID,
		RequestedBy: e.RequestedBy,
	}
}
